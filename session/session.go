package session

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"livetext/audio"
	"livetext/encoder"
	"livetext/gemini"
	"livetext/log"
	"livetext/notes"
	"livetext/transcript"
)

type Status int

const (
	StatusIdle Status = iota
	StatusConnecting
	StatusRecording
	StatusStopping
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusConnecting:
		return "connecting"
	case StatusRecording:
		return "recording"
	case StatusStopping:
		return "stopping"
	case StatusError:
		return "error"
	}
	return "unknown"
}

var (
	// ErrNoAPIKey is reported before any device or session acquisition.
	ErrNoAPIKey = errors.New("missing API key: set GEMINI_API_KEY or api_key in config.toml")

	// ErrUnexpectedClose is reported when the remote ends the session
	// outside of a requested stop.
	ErrUnexpectedClose = errors.New("transcription service closed the session unexpectedly")
)

// Stream is the live transcription session surface the lifecycle drives.
// gemini.LiveSession satisfies it.
type Stream interface {
	Send(f encoder.Frame)
	Events() <-chan gemini.Event
	Close()
	Stats() gemini.Stats
}

// Dialer opens a pending stream. The default dials the Gemini Live API.
type Dialer func(ctx context.Context) Stream

// Summarizer turns one finished turn into a note. Nil disables notes.
type Summarizer interface {
	Summarize(ctx context.Context, chunk string) (string, error)
}

// Observer receives display-layer updates. All methods may be called from
// internal goroutines; implementations must be safe for that.
type Observer interface {
	StatusChanged(s Status, err error)
	TranscriptChanged(display string)
	NotesChanged(text string)
	AudioLevel(level float64)
}

type noopObserver struct{}

func (noopObserver) StatusChanged(Status, error)  {}
func (noopObserver) TranscriptChanged(string)     {}
func (noopObserver) NotesChanged(string)          {}
func (noopObserver) AudioLevel(float64)           {}

type Config struct {
	APIKey string
	Model  string

	// Device selects a capture source; nil means system default.
	Device *audio.DeviceInfo

	// NewContext acquires the audio context. Defaults to audio.NewContext.
	NewContext func() (audio.Context, error)

	// Dial opens the live session. Defaults to gemini.Dial with APIKey and
	// Model.
	Dial Dialer

	Summarizer Summarizer
	Observer   Observer

	// Tap receives each captured block as 16-bit samples, for diagnostics
	// dumps. Runs on the capture cadence; keep it fast.
	Tap func(block []int16)
}

// resources is everything one session attempt owns. Teardown runs exactly
// once per attempt regardless of how many paths request it.
type resources struct {
	ctx     audio.Context
	capture audio.CaptureDevice
	stream  Stream
	started time.Time
	once    sync.Once
}

// Lifecycle coordinates one user-facing transcription session: it owns the
// capture context, the capture device, and the live stream, drives the
// idle/connecting/recording/stopping/error state machine, and guarantees
// ordered teardown on every exit path. Multiple independent Lifecycle
// values may coexist.
type Lifecycle struct {
	cfg        Config
	transcript *transcript.Aggregator
	notebook   *notes.Notebook

	mu      sync.Mutex
	status  Status
	lastErr error
	res     *resources
}

func New(cfg Config) *Lifecycle {
	if cfg.Observer == nil {
		cfg.Observer = noopObserver{}
	}
	if cfg.NewContext == nil {
		cfg.NewContext = audio.NewContext
	}
	if cfg.Dial == nil {
		liveCfg := gemini.LiveConfig{APIKey: cfg.APIKey, Model: cfg.Model}
		cfg.Dial = func(ctx context.Context) Stream {
			return gemini.Dial(ctx, liveCfg)
		}
	}
	return &Lifecycle{
		cfg:        cfg,
		transcript: transcript.New(),
		notebook:   notes.New(),
	}
}

// Start begins a new session attempt. Accepted from Idle and Error only.
// A missing credential fails fast: status becomes Error and no device or
// session is acquired.
func (l *Lifecycle) Start() error {
	l.mu.Lock()
	switch l.status {
	case StatusIdle, StatusError:
	default:
		l.mu.Unlock()
		return fmt.Errorf("session already active (%s)", l.status)
	}

	if l.cfg.APIKey == "" {
		l.toStatusLocked(StatusError, ErrNoAPIKey)
		l.mu.Unlock()
		l.notifyStatus()
		return ErrNoAPIKey
	}

	l.transcript.Reset()
	l.notebook.Reset()
	l.toStatusLocked(StatusConnecting, nil)
	l.mu.Unlock()
	l.notifyStatus()
	l.cfg.Observer.TranscriptChanged("")
	l.cfg.Observer.NotesChanged("")

	actx, err := l.cfg.NewContext()
	if err != nil {
		err = fmt.Errorf("initializing audio: %w", err)
		l.setStatus(StatusError, err)
		return err
	}

	capture, err := actx.NewCapture(l.cfg.Device, audio.CaptureConfig{
		SampleRate: encoder.SampleRate,
		Channels:   encoder.Channels,
		BlockSize:  encoder.BlockSize,
	})
	if err != nil {
		actx.Close()
		err = fmt.Errorf("acquiring capture device: %w", err)
		l.setStatus(StatusError, err)
		return err
	}

	res := &resources{
		ctx:     actx,
		capture: capture,
		stream:  l.cfg.Dial(context.Background()),
		started: time.Now(),
	}

	l.mu.Lock()
	if l.status != StatusConnecting {
		// Stop or disposal raced the acquisitions; release everything.
		l.mu.Unlock()
		l.teardown(res)
		return nil
	}
	l.res = res
	l.mu.Unlock()

	go l.eventLoop(res)
	return nil
}

// Stop ends the session and returns to Idle. Idempotent: safe while the
// dial is still pending, while frames are in flight, and after an error
// has already begun teardown; overlapping stops collapse into one
// teardown sequence.
func (l *Lifecycle) Stop() {
	l.mu.Lock()
	switch l.status {
	case StatusIdle, StatusStopping, StatusError:
		l.mu.Unlock()
		return
	}
	res := l.res
	l.res = nil
	l.toStatusLocked(StatusStopping, nil)
	l.mu.Unlock()
	l.notifyStatus()

	l.transcript.Flush()
	l.cfg.Observer.TranscriptChanged(l.transcript.Display())

	if res != nil {
		l.teardown(res)
	}

	l.mu.Lock()
	// A failure handled concurrently may already have moved us to Error;
	// that result wins.
	if l.status == StatusStopping {
		l.toStatusLocked(StatusIdle, nil)
	}
	l.mu.Unlock()
	l.notifyStatus()
}

// Close disposes the lifecycle, releasing any held resources synchronously.
func (l *Lifecycle) Close() {
	l.Stop()

	// Stop is a no-op in Error, but an errored attempt may still hold
	// resources if failure handling is mid-flight. Teardown is per-attempt
	// idempotent, so releasing again here is safe.
	l.mu.Lock()
	res := l.res
	l.res = nil
	l.mu.Unlock()
	if res != nil {
		l.teardown(res)
	}
}

func (l *Lifecycle) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.status
}

func (l *Lifecycle) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastErr
}

// Transcript returns the committed transcript across completed turns.
func (l *Lifecycle) Transcript() string {
	return l.transcript.Committed()
}

// Display returns the committed transcript with the live turn appended.
func (l *Lifecycle) Display() string {
	return l.transcript.Display()
}

// Notes returns the accumulated per-turn notes in turn order.
func (l *Lifecycle) Notes() string {
	return l.notebook.Text()
}

func (l *Lifecycle) eventLoop(res *resources) {
	// Drain to the end even after teardown so the stream never blocks
	// emitting its trailing events.
	for ev := range res.stream.Events() {
		l.handleEvent(res, ev)
	}
}

// handleEvent applies one inbound event against the state held at handling
// time, never against state captured when the session was started.
func (l *Lifecycle) handleEvent(res *resources, ev gemini.Event) {
	switch ev.Kind {
	case gemini.EventOpened:
		// Starting capture and entering Recording must be atomic with
		// respect to Stop, or a concurrent teardown could leave a
		// restarted capture behind.
		l.mu.Lock()
		if l.res != res || l.status != StatusConnecting {
			l.mu.Unlock()
			return
		}
		res.capture.SetCallback(l.blockFunc(res))
		err := res.capture.Start()
		if err == nil {
			l.toStatusLocked(StatusRecording, nil)
		}
		l.mu.Unlock()
		if err != nil {
			l.fail(res, fmt.Errorf("starting capture: %w", err))
			return
		}
		l.notifyStatus()

	case gemini.EventFragment:
		if !l.owns(res, StatusRecording) {
			return
		}
		l.transcript.OnFragment(ev.Text)
		l.cfg.Observer.TranscriptChanged(l.transcript.Display())

	case gemini.EventTurnComplete:
		if !l.owns(res, StatusRecording) {
			return
		}
		chunk, turn, ok := l.transcript.OnTurnComplete()
		l.cfg.Observer.TranscriptChanged(l.transcript.Display())
		if ok && l.cfg.Summarizer != nil {
			go l.summarize(turn, chunk)
		}

	case gemini.EventFailed:
		if !l.owns(res, StatusConnecting) && !l.owns(res, StatusRecording) {
			return
		}
		l.fail(res, fmt.Errorf("transcription failed: %w", ev.Err))

	case gemini.EventClosed:
		// A close while not stopping is a remote disconnect and takes the
		// same teardown path as a failure.
		if !l.owns(res, StatusConnecting) && !l.owns(res, StatusRecording) {
			return
		}
		l.fail(res, ErrUnexpectedClose)
	}
}

func (l *Lifecycle) owns(res *resources, st Status) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.res == res && l.status == st
}

func (l *Lifecycle) blockFunc(res *resources) audio.BlockFunc {
	return func(block []float32) {
		if !l.owns(res, StatusRecording) {
			return
		}
		if l.cfg.Tap != nil {
			l.cfg.Tap(encoder.Samples(block))
		}
		res.stream.Send(encoder.EncodeBlock(block))
		l.cfg.Observer.AudioLevel(rms(block))
	}
}

func (l *Lifecycle) fail(res *resources, err error) {
	l.mu.Lock()
	mine := l.res == res
	if mine {
		l.res = nil
		l.toStatusLocked(StatusStopping, nil)
	}
	l.mu.Unlock()
	if !mine {
		return
	}
	l.notifyStatus()

	l.transcript.Flush()
	l.cfg.Observer.TranscriptChanged(l.transcript.Display())
	l.teardown(res)
	l.setStatus(StatusError, err)
}

// teardown releases one attempt's resources in order: session, capture
// tracks, capture device, audio context. Each step is guarded; repeated
// calls from racing paths release nothing twice.
func (l *Lifecycle) teardown(res *resources) {
	res.once.Do(func() {
		if res.stream != nil {
			res.stream.Close()
		}
		if res.capture != nil {
			res.capture.Stop()
			res.capture.ClearCallback()
			res.capture.Close()
		}
		if res.ctx != nil {
			res.ctx.Close()
		}

		if res.stream != nil {
			stats := res.stream.Stats()
			log.SessionMetrics(log.SessionMetricsData{
				SentFrames:    stats.SentFrames,
				SentKB:        float64(stats.SentBytes) / 1024,
				DroppedFrames: stats.Dropped,
				Fragments:     stats.Fragments,
				Turns:         stats.Turns,
				TotalMs:       float64(time.Since(res.started).Milliseconds()),
			})
		}
	})
}

func (l *Lifecycle) summarize(turn int, chunk string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	text, err := l.cfg.Summarizer.Summarize(ctx, chunk)
	if err != nil {
		// Non-fatal: the transcription session is unaffected.
		log.Warnf("note for turn %d failed: %v", turn, err)
		l.notebook.Skip(turn)
	} else {
		l.notebook.Add(turn, text)
		log.NoteText(turn, text)
	}
	l.cfg.Observer.NotesChanged(l.notebook.Text())
}

func (l *Lifecycle) setStatus(s Status, err error) {
	l.mu.Lock()
	l.toStatusLocked(s, err)
	l.mu.Unlock()
	l.notifyStatus()
}

func (l *Lifecycle) toStatusLocked(s Status, err error) {
	if l.status != s {
		log.StateChange(l.status.String(), s.String())
	}
	l.status = s
	l.lastErr = err
	if err != nil {
		log.Errorf("session error: %v", err)
	}
}

func (l *Lifecycle) notifyStatus() {
	l.mu.Lock()
	s, err := l.status, l.lastErr
	l.mu.Unlock()
	l.cfg.Observer.StatusChanged(s, err)
}

func rms(block []float32) float64 {
	if len(block) == 0 {
		return 0
	}
	var sum float64
	for _, s := range block {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(block)))
}
