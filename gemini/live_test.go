package gemini

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"livetext/encoder"
)

type fakeConn struct {
	reads chan readResult

	mu     sync.Mutex
	writes [][]byte
	closed int
}

type readResult struct {
	data []byte
	err  error
}

func newFakeConn() *fakeConn {
	return &fakeConn{reads: make(chan readResult, 16)}
}

func (c *fakeConn) serve(msgs ...string) {
	for _, m := range msgs {
		c.reads <- readResult{data: []byte(m)}
	}
}

func (c *fakeConn) endWith(err error) {
	c.reads <- readResult{err: err}
}

func (c *fakeConn) Write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	c.writes = append(c.writes, cp)
	return nil
}

func (c *fakeConn) Read() ([]byte, error) {
	r, ok := <-c.reads
	if !ok {
		return nil, io.EOF
	}
	return r.data, r.err
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed++
	if c.closed == 1 {
		close(c.reads)
	}
	return nil
}

func (c *fakeConn) writeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.writes)
}

func (c *fakeConn) closeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func collectEvents(t *testing.T, s *LiveSession) []Event {
	t.Helper()
	var evs []Event
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-s.Events():
			if !ok {
				return evs
			}
			evs = append(evs, ev)
		case <-timeout:
			t.Fatalf("timed out waiting for events, got %v", evs)
		}
	}
}

func fragment(text string) string {
	return fmt.Sprintf(`{"serverContent":{"inputTranscription":{"text":%q}}}`, text)
}

func TestEventsDeliveredInReceiveOrder(t *testing.T) {
	conn := newFakeConn()
	conn.serve(
		fragment("Hello "),
		fragment("world"),
		fragment("."),
		`{"serverContent":{"turnComplete":true}}`,
	)
	conn.endWith(io.EOF)

	s := newLiveSession(func() (rawConn, error) { return conn, nil }, func() {})
	evs := collectEvents(t, s)

	wantKinds := []EventKind{EventOpened, EventFragment, EventFragment, EventFragment, EventTurnComplete, EventClosed}
	if len(evs) != len(wantKinds) {
		t.Fatalf("got %d events %v, want %d", len(evs), evs, len(wantKinds))
	}
	for i, k := range wantKinds {
		if evs[i].Kind != k {
			t.Errorf("event %d = %v, want %v", i, evs[i].Kind, k)
		}
	}
	if got := evs[1].Text + evs[2].Text + evs[3].Text; got != "Hello world." {
		t.Errorf("fragments = %q, want %q", got, "Hello world.")
	}

	stats := s.Stats()
	if stats.Fragments != 3 || stats.Turns != 1 {
		t.Errorf("stats = %+v, want 3 fragments and 1 turn", stats)
	}
}

func TestFramesQueuedDuringPendingDialAreFlushedInOrder(t *testing.T) {
	conn := newFakeConn()
	release := make(chan struct{})

	s := newLiveSession(func() (rawConn, error) {
		<-release
		return conn, nil
	}, func() {})

	frames := []encoder.Frame{
		encoder.EncodeBlock([]float32{0.1}),
		encoder.EncodeBlock([]float32{0.2}),
		encoder.EncodeBlock([]float32{0.3}),
	}
	for _, f := range frames {
		s.Send(f)
	}

	close(release)

	deadline := time.Now().Add(2 * time.Second)
	for conn.writeCount() < len(frames) {
		if time.Now().After(deadline) {
			t.Fatalf("only %d of %d frames written", conn.writeCount(), len(frames))
		}
		time.Sleep(5 * time.Millisecond)
	}

	conn.mu.Lock()
	defer conn.mu.Unlock()
	for i, w := range conn.writes {
		var msg realtimeInputMessage
		if err := json.Unmarshal(w, &msg); err != nil {
			t.Fatalf("write %d is not a realtimeInput message: %v", i, err)
		}
		chunks := msg.RealtimeInput.MediaChunks
		if len(chunks) != 1 {
			t.Fatalf("write %d has %d chunks, want 1", i, len(chunks))
		}
		if chunks[0].Data != frames[i].Data {
			t.Errorf("write %d out of order", i)
		}
		if chunks[0].MIMEType != encoder.MIMEType {
			t.Errorf("write %d MIME = %q, want %q", i, chunks[0].MIMEType, encoder.MIMEType)
		}
	}
}

func TestCloseDuringPendingDialNeverLeaksConnection(t *testing.T) {
	conn := newFakeConn()
	release := make(chan struct{})

	s := newLiveSession(func() (rawConn, error) {
		<-release
		return conn, nil
	}, func() {})

	closed := make(chan struct{})
	go func() {
		s.Close()
		close(closed)
	}()

	// Close must be waiting on the pending dial, not returning early.
	select {
	case <-closed:
		t.Fatal("Close returned before the pending dial resolved")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	<-closed

	if conn.closeCount() == 0 {
		t.Fatal("underlying connection left open after deferred close")
	}

	evs := collectEvents(t, s)
	if len(evs) != 1 || evs[0].Kind != EventClosed {
		t.Errorf("events = %v, want a single closed event", evs)
	}
}

func TestDialFailure(t *testing.T) {
	dialErr := errors.New("handshake rejected")
	s := newLiveSession(func() (rawConn, error) { return nil, dialErr }, func() {})

	evs := collectEvents(t, s)
	if len(evs) != 1 || evs[0].Kind != EventFailed {
		t.Fatalf("events = %v, want a single failed event", evs)
	}
	if !errors.Is(evs[0].Err, dialErr) {
		t.Errorf("Err = %v, want %v", evs[0].Err, dialErr)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	conn := newFakeConn()
	s := newLiveSession(func() (rawConn, error) { return conn, nil }, func() {})

	s.Close()
	s.Close()
	s.Close()

	evs := collectEvents(t, s)
	if len(evs) == 0 || evs[len(evs)-1].Kind != EventClosed {
		t.Errorf("events = %v, want trailing closed event", evs)
	}
	if conn.closeCount() == 0 {
		t.Error("underlying connection not closed")
	}
}

func TestSendAfterCloseIsDropped(t *testing.T) {
	conn := newFakeConn()
	s := newLiveSession(func() (rawConn, error) { return conn, nil }, func() {})
	s.Close()
	collectEvents(t, s)

	before := conn.writeCount()
	s.Send(encoder.EncodeBlock([]float32{0.5}))
	if conn.writeCount() != before {
		t.Error("frame written after close")
	}
}

func TestBacklogBoundDropsAndCounts(t *testing.T) {
	// Dial never resolves, so every frame stays queued.
	s := newLiveSession(func() (rawConn, error) {
		select {}
	}, func() {})

	const extra = 10
	for range outboundQueueFrames + extra {
		s.Send(encoder.EncodeBlock([]float32{0}))
	}

	if got := s.Stats().Dropped; got != extra {
		t.Errorf("Dropped = %d, want %d", got, extra)
	}
}

func TestSetupMessageShape(t *testing.T) {
	data, err := json.Marshal(newSetupMessage("models/gemini-2.0-flash-live-001"))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, want := range []string{
		`"model":"models/gemini-2.0-flash-live-001"`,
		`"responseModalities":["TEXT"]`,
		`"inputAudioTranscription":{}`,
	} {
		if !strings.Contains(string(data), want) {
			t.Errorf("setup message missing %s: %s", want, data)
		}
	}
}

func TestReceiveErrorMidSession(t *testing.T) {
	conn := newFakeConn()
	conn.serve(fragment("partial"))
	conn.endWith(errors.New("connection reset"))

	s := newLiveSession(func() (rawConn, error) { return conn, nil }, func() {})
	evs := collectEvents(t, s)

	last := evs[len(evs)-1]
	if last.Kind != EventFailed {
		t.Fatalf("last event = %v, want failed", last.Kind)
	}
	if !strings.Contains(last.Err.Error(), "connection reset") {
		t.Errorf("Err = %v, want underlying error text preserved", last.Err)
	}
}
