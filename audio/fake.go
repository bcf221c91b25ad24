package audio

import (
	"sync"
	"time"
)

// FakeContext serves canned float samples in place of a real microphone.
// With realtime set, blocks are paced at the configured sample rate;
// otherwise they are delivered as fast as the callback accepts them,
// followed by silence until Stop.
type FakeContext struct {
	samples  []float32
	realtime bool

	mu       sync.Mutex
	captures int
	last     *FakeCapture
	closed   bool
}

func NewFakeContext(samples []float32, realtime bool) *FakeContext {
	return &FakeContext{samples: samples, realtime: realtime}
}

func (f *FakeContext) Devices() ([]DeviceInfo, error) {
	return []DeviceInfo{{ID: "fake", Name: "fake"}}, nil
}

func (f *FakeContext) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

// Closed reports whether Close was called. Used by lifecycle tests to check
// teardown.
func (f *FakeContext) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Captures reports how many capture devices were acquired.
func (f *FakeContext) Captures() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.captures
}

// LastCapture returns the most recently acquired capture device, or nil.
func (f *FakeContext) LastCapture() *FakeCapture {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

func (f *FakeContext) NewCapture(_ *DeviceInfo, config CaptureConfig) (CaptureDevice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.captures++
	f.last = &FakeCapture{
		samples:  f.samples,
		realtime: f.realtime,
		config:   config,
	}
	return f.last, nil
}

type FakeCapture struct {
	samples  []float32
	realtime bool
	config   CaptureConfig

	mu       sync.Mutex
	cb       BlockFunc
	stopCh   chan struct{}
	feedDone chan struct{}
	stopped  bool
	closed   bool
}

func (f *FakeCapture) SetCallback(cb BlockFunc) {
	f.mu.Lock()
	f.cb = cb
	f.mu.Unlock()
}

func (f *FakeCapture) ClearCallback() {
	f.mu.Lock()
	f.cb = nil
	f.mu.Unlock()
}

// Stopped reports whether Stop was called at least once.
func (f *FakeCapture) Stopped() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopped
}

// ClosedDevice reports whether Close was called.
func (f *FakeCapture) ClosedDevice() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *FakeCapture) loadCallback() BlockFunc {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cb
}

func (f *FakeCapture) Start() error {
	f.stopCh = make(chan struct{})
	f.feedDone = make(chan struct{})

	blockSize := f.config.BlockSize
	interval := time.Duration(blockSize) * time.Second / time.Duration(f.config.SampleRate)

	go func() {
		defer close(f.feedDone)
		pos := 0
		silence := make([]float32, blockSize)

		for {
			select {
			case <-f.stopCh:
				return
			default:
			}

			cb := f.loadCallback()
			if cb == nil {
				time.Sleep(time.Millisecond)
				continue
			}

			if pos < len(f.samples) {
				end := min(pos+blockSize, len(f.samples))
				block := make([]float32, end-pos)
				copy(block, f.samples[pos:end])
				pos = end
				cb(block)
			} else {
				cb(silence)
			}

			if f.realtime {
				select {
				case <-f.stopCh:
					return
				case <-time.After(interval):
				}
			} else {
				select {
				case <-f.stopCh:
					return
				case <-time.After(time.Millisecond):
				}
			}
		}
	}()

	return nil
}

func (f *FakeCapture) Stop() {
	f.mu.Lock()
	f.stopped = true
	f.mu.Unlock()
	if f.stopCh == nil {
		return
	}
	select {
	case <-f.stopCh:
	default:
		close(f.stopCh)
	}
	<-f.feedDone
}

func (f *FakeCapture) Close() {
	f.Stop()
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}
