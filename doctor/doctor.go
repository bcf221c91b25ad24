package doctor

import (
	"bufio"
	"context"
	"fmt"
	"math"
	"os"
	"strings"
	"sync"
	"time"

	"livetext/audio"
	"livetext/clipboard"
	"livetext/config"
	"livetext/encoder"
	"livetext/gemini"
)

// Run executes interactive diagnostic checks and returns an exit code
// (0=all pass, 1=any fail).
func Run() int {
	resetTerminal()
	setupInterruptHandler()

	fmt.Println("livetext doctor - interactive system diagnostics")
	fmt.Println("================================================")

	cfg := config.Load()

	allPass := true
	if !checkConfig(cfg) {
		allPass = false
	}
	if !checkMicrophone() {
		allPass = false
	}
	if allPass && !checkLiveService(cfg) {
		allPass = false
	}
	if !checkClipboard() {
		allPass = false
	}

	fmt.Println()
	if allPass {
		fmt.Println("All checks passed!")
		return 0
	}
	fmt.Println("Some checks failed. See details above.")
	return 1
}

func checkConfig(cfg *config.Config) bool {
	fmt.Println()
	fmt.Println("[1/4] Configuration")

	if cfg.APIKey == "" {
		fmt.Println("  FAIL: no API key found (set GEMINI_API_KEY or api_key in config.toml)")
		return false
	}
	fmt.Println("  PASS: API key present")
	fmt.Printf("  live model: %s\n", cfg.LiveModel)
	return true
}

func checkMicrophone() bool {
	fmt.Println()
	fmt.Println("[2/4] Microphone")

	ctx, err := audio.NewContext()
	if err != nil {
		fmt.Printf("  FAIL: cannot connect to audio: %v\n", err)
		return false
	}
	defer ctx.Close()

	devices, err := ctx.Devices()
	if err != nil {
		fmt.Printf("  FAIL: cannot list devices: %v\n", err)
		return false
	}
	if len(devices) == 0 {
		fmt.Println("  FAIL: no capture devices found")
		return false
	}

	device := pickDevice(devices)
	if device == nil {
		fmt.Println("  FAIL: invalid choice")
		return false
	}
	fmt.Printf("  Using device: %s\n", device.Name)
	if audio.IsBluetooth(device.Name) {
		fmt.Println("  Warning: looks like a bluetooth headset, capture quality may be reduced")
	}

	reader := bufio.NewReader(os.Stdin)
	fmt.Print("  Press Enter and speak for 3 seconds...")
	reader.ReadString('\n')

	peak, err := recordLevel(ctx, device, 3*time.Second)
	if err != nil {
		fmt.Printf("  FAIL: recording error: %v\n", err)
		return false
	}

	fmt.Printf("  Peak level: %.3f\n", peak)
	if peak < 0.005 {
		fmt.Println("  FAIL: no signal detected (is the microphone muted?)")
		return false
	}
	fmt.Println("  PASS: microphone captures audio")
	return true
}

func pickDevice(devices []audio.DeviceInfo) *audio.DeviceInfo {
	if len(devices) == 1 {
		return &devices[0]
	}

	fmt.Println()
	fmt.Println("  Select input device:")
	for i, d := range devices {
		fmt.Printf("    %d. %s\n", i+1, d.Name)
	}
	fmt.Printf("  Choice [1-%d]: ", len(devices))

	reader := bufio.NewReader(os.Stdin)
	choice, _ := reader.ReadString('\n')
	choice = strings.TrimSpace(choice)
	idx := 0
	if choice != "" {
		fmt.Sscanf(choice, "%d", &idx)
		idx--
	}
	if idx < 0 || idx >= len(devices) {
		return nil
	}
	return &devices[idx]
}

// recordLevel captures for the given duration and returns the peak block RMS.
func recordLevel(ctx audio.Context, device *audio.DeviceInfo, d time.Duration) (float64, error) {
	capture, err := ctx.NewCapture(device, audio.CaptureConfig{
		SampleRate: encoder.SampleRate,
		Channels:   encoder.Channels,
		BlockSize:  encoder.BlockSize,
	})
	if err != nil {
		return 0, err
	}
	defer capture.Close()

	var mu sync.Mutex
	var peak float64
	capture.SetCallback(func(block []float32) {
		var sum float64
		for _, s := range block {
			sum += float64(s) * float64(s)
		}
		rms := math.Sqrt(sum / float64(len(block)))
		mu.Lock()
		if rms > peak {
			peak = rms
		}
		mu.Unlock()
	})

	if err := capture.Start(); err != nil {
		return 0, err
	}

	fmt.Print("  Recording")
	ticker := time.NewTicker(500 * time.Millisecond)
	deadline := time.After(d)
	for {
		select {
		case <-ticker.C:
			fmt.Print(".")
		case <-deadline:
			ticker.Stop()
			capture.Stop()
			fmt.Println(" done")
			mu.Lock()
			defer mu.Unlock()
			return peak, nil
		}
	}
}

// checkLiveService opens a real session and waits for the service handshake.
func checkLiveService(cfg *config.Config) bool {
	fmt.Println()
	fmt.Println("[3/4] Live transcription service")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	stream := gemini.Dial(ctx, gemini.LiveConfig{APIKey: cfg.APIKey, Model: cfg.LiveModel})
	defer stream.Close()

	for {
		select {
		case ev, ok := <-stream.Events():
			if !ok {
				fmt.Println("  FAIL: session closed before handshake")
				return false
			}
			switch ev.Kind {
			case gemini.EventOpened:
				fmt.Println("  PASS: session established")
				return true
			case gemini.EventFailed:
				fmt.Printf("  FAIL: %v\n", ev.Err)
				return false
			}
		case <-ctx.Done():
			fmt.Println("  FAIL: timeout waiting for handshake")
			return false
		}
	}
}

func checkClipboard() bool {
	fmt.Println()
	fmt.Println("[4/4] Clipboard")

	previous, prevErr := clipboard.Read()

	sentinel := fmt.Sprintf("livetext-doctor-%d", os.Getpid())
	if err := clipboard.Copy(sentinel); err != nil {
		fmt.Printf("  FAIL: clipboard copy failed: %v\n", err)
		return false
	}
	got, err := clipboard.Read()
	if err != nil {
		fmt.Printf("  FAIL: clipboard read failed: %v\n", err)
		return false
	}
	if got != sentinel {
		fmt.Printf("  FAIL: clipboard roundtrip mismatch (got %q)\n", got)
		return false
	}

	if prevErr == nil {
		clipboard.Copy(previous)
	}
	fmt.Println("  PASS: clipboard roundtrip verified")
	return true
}
