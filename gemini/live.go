package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"sync"

	"nhooyr.io/websocket"

	"livetext/encoder"
)

const liveEndpoint = "wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"

// Outbound backlog bound. At one frame per 256ms of audio this holds about
// a minute of capture before newest frames are dropped and counted.
const outboundQueueFrames = 256

type LiveConfig struct {
	APIKey string
	Model  string
}

type EventKind int

const (
	EventOpened EventKind = iota
	EventFragment
	EventTurnComplete
	EventFailed
	EventClosed
)

func (k EventKind) String() string {
	switch k {
	case EventOpened:
		return "opened"
	case EventFragment:
		return "fragment"
	case EventTurnComplete:
		return "turn_complete"
	case EventFailed:
		return "failed"
	case EventClosed:
		return "closed"
	}
	return "unknown"
}

// Event is one inbound occurrence on the live session, delivered in receive
// order. Text is set for EventFragment, Err for EventFailed.
type Event struct {
	Kind EventKind
	Text string
	Err  error
}

// Stats counts session traffic for the diagnostics log.
type Stats struct {
	SentFrames int
	SentBytes  uint64
	Dropped    int
	Fragments  int
	Turns      int
}

// rawConn is the minimal wire surface, injectable for tests.
type rawConn interface {
	Write(data []byte) error
	Read() ([]byte, error)
	Close() error
}

// LiveSession is one bidirectional transcription session. Dial returns it
// immediately while the handshake runs in the background; frames submitted
// during the pending window are queued and flushed once open. Close is
// idempotent and safe to call while the dial is still pending.
type LiveSession struct {
	events    chan Event
	frames    chan encoder.Frame
	connected chan struct{}
	stop      chan struct{}
	sendDone  chan struct{}
	cancel    context.CancelFunc
	closeOnce sync.Once

	mu      sync.Mutex
	conn    rawConn
	err     error
	closing bool
	stats   Stats
}

// Dial opens a live session against the transcription service. The returned
// session is pending until EventOpened (or EventFailed) arrives on Events.
func Dial(ctx context.Context, cfg LiveConfig) *LiveSession {
	dialCtx, cancel := context.WithCancel(ctx)
	return newLiveSession(func() (rawConn, error) {
		return dialLive(dialCtx, cfg)
	}, cancel)
}

func newLiveSession(dial func() (rawConn, error), cancel context.CancelFunc) *LiveSession {
	s := &LiveSession{
		events:    make(chan Event, 64),
		frames:    make(chan encoder.Frame, outboundQueueFrames),
		connected: make(chan struct{}),
		stop:      make(chan struct{}),
		sendDone:  make(chan struct{}),
		cancel:    cancel,
	}

	go func() {
		conn, err := dial()
		if err != nil {
			s.mu.Lock()
			closing := s.closing
			if !closing {
				s.err = err
			}
			s.mu.Unlock()
			close(s.connected)
			close(s.sendDone)
			if closing {
				s.events <- Event{Kind: EventClosed}
			} else {
				s.events <- Event{Kind: EventFailed, Err: err}
			}
			close(s.events)
			return
		}

		s.mu.Lock()
		s.conn = conn
		closing := s.closing
		s.mu.Unlock()
		close(s.connected)

		if closing {
			// Close raced the pending dial; the deferred close wins and
			// the connection must not be left open.
			conn.Close()
			close(s.sendDone)
			s.events <- Event{Kind: EventClosed}
			close(s.events)
			return
		}

		s.events <- Event{Kind: EventOpened}
		go s.runSender(conn)
		go s.runReceiver(conn)
	}()

	return s
}

// Send enqueues one frame for transmission in capture order. Before the
// session resolves the frame waits in the queue; it is flushed, not lost,
// once the session opens. When the backlog bound is reached the frame is
// dropped and counted instead of growing the queue without limit.
func (s *LiveSession) Send(f encoder.Frame) {
	s.mu.Lock()
	if s.closing || s.err != nil {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	select {
	case s.frames <- f:
	default:
		s.mu.Lock()
		s.stats.Dropped++
		s.mu.Unlock()
	}
}

// Events delivers inbound events in receive order. The channel closes after
// the final EventFailed or EventClosed; consumers should drain it fully.
func (s *LiveSession) Events() <-chan Event {
	return s.events
}

// Close tears the session down. Idempotent; if the dial is still pending the
// close is deferred until it resolves, and the connection is never left open.
func (s *LiveSession) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closing = true
		s.mu.Unlock()

		s.cancel()
		close(s.stop)

		<-s.connected
		s.mu.Lock()
		conn := s.conn
		s.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
	})
}

// Stats returns a snapshot of the session's traffic counters.
func (s *LiveSession) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func (s *LiveSession) fail(err error) {
	s.mu.Lock()
	if s.err == nil && !s.closing {
		s.err = err
	}
	conn := s.conn
	s.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}

func (s *LiveSession) runSender(conn rawConn) {
	defer close(s.sendDone)
	for {
		select {
		case <-s.stop:
			return
		case f := <-s.frames:
			msg := realtimeInputMessage{
				RealtimeInput: realtimeInput{
					MediaChunks: []mediaChunk{{MIMEType: f.MIMEType, Data: f.Data}},
				},
			}
			data, err := json.Marshal(msg)
			if err != nil {
				s.fail(fmt.Errorf("encoding frame: %w", err))
				return
			}
			if err := conn.Write(data); err != nil {
				s.fail(fmt.Errorf("sending frame: %w", err))
				return
			}
			s.mu.Lock()
			s.stats.SentFrames++
			s.stats.SentBytes += uint64(len(data))
			s.mu.Unlock()
		}
	}
}

func (s *LiveSession) runReceiver(conn rawConn) {
	defer close(s.events)
	for {
		data, err := conn.Read()
		if err != nil {
			s.mu.Lock()
			closing := s.closing
			failure := s.err
			s.mu.Unlock()

			switch {
			case closing:
				s.events <- Event{Kind: EventClosed}
			case failure != nil:
				s.events <- Event{Kind: EventFailed, Err: failure}
			case isNormalClosure(err):
				// Remote ended the session without a local stop.
				s.events <- Event{Kind: EventClosed}
			default:
				s.fail(err)
				s.events <- Event{Kind: EventFailed, Err: fmt.Errorf("receiving event: %w", err)}
			}
			return
		}

		var msg serverMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.fail(fmt.Errorf("decoding event: %w", err))
			s.events <- Event{Kind: EventFailed, Err: s.errSnapshot()}
			return
		}

		sc := msg.ServerContent
		if sc == nil {
			continue
		}
		if sc.InputTranscription != nil && sc.InputTranscription.Text != "" {
			s.mu.Lock()
			s.stats.Fragments++
			s.mu.Unlock()
			s.events <- Event{Kind: EventFragment, Text: sc.InputTranscription.Text}
		}
		if sc.TurnComplete {
			s.mu.Lock()
			s.stats.Turns++
			s.mu.Unlock()
			s.events <- Event{Kind: EventTurnComplete}
		}
	}
}

func (s *LiveSession) errSnapshot() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func isNormalClosure(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
		return true
	}
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return true
	}
	return false
}

type wsConn struct {
	conn *websocket.Conn
	ctx  context.Context
}

func (c *wsConn) Write(data []byte) error {
	return c.conn.Write(c.ctx, websocket.MessageText, data)
}

func (c *wsConn) Read() ([]byte, error) {
	_, data, err := c.conn.Read(c.ctx)
	return data, err
}

func (c *wsConn) Close() error {
	return c.conn.Close(websocket.StatusNormalClosure, "")
}

func dialLive(ctx context.Context, cfg LiveConfig) (rawConn, error) {
	endpoint := liveEndpoint + "?key=" + url.QueryEscape(cfg.APIKey)
	conn, _, err := websocket.Dial(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("dialing live session: %w", err)
	}
	conn.SetReadLimit(1 << 20)

	c := &wsConn{conn: conn, ctx: ctx}

	setup, err := json.Marshal(newSetupMessage(cfg.Model))
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("encoding setup: %w", err)
	}
	if err := c.Write(setup); err != nil {
		c.Close()
		return nil, fmt.Errorf("sending setup: %w", err)
	}

	// The session is usable only after the service acknowledges the setup.
	data, err := c.Read()
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("waiting for setup ack: %w", err)
	}
	var msg serverMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.Close()
		return nil, fmt.Errorf("decoding setup ack: %w", err)
	}
	if msg.SetupComplete == nil {
		c.Close()
		return nil, fmt.Errorf("unexpected message before setup completion")
	}
	return c, nil
}
