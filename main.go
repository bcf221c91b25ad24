package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	"livetext/audio"
	"livetext/beep"
	"livetext/clipboard"
	"livetext/config"
	"livetext/doctor"
	"livetext/encoder"
	"livetext/gemini"
	"livetext/log"
	"livetext/session"
	"livetext/shutdown"
	"livetext/update"
)

var version = "dev"

func main() {
	run()
}

func run() {
	if len(os.Args) > 1 && os.Args[1] == "update" {
		runUpdate()
		return
	}

	setupFlag := flag.Bool("setup", false, "Select microphone device (otherwise uses system default)")
	deviceFlag := flag.String("device", "", "Use named microphone device")
	modelFlag := flag.String("model", "", "Live transcription model (default from config)")
	notesFlag := flag.Bool("notes", false, "Summarize each finished turn into running notes")
	copyFlag := flag.Bool("copy", false, "Copy the transcript to the clipboard on stop")
	dumpFlag := flag.String("dump", "", "Write captured audio to a FLAC file for diagnostics")
	muteFlag := flag.Bool("mute", false, "Disable audio cues on start/stop")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	doctorFlag := flag.Bool("doctor", false, "Run system diagnostics and exit")
	logPathFlag := flag.String("logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	headlessFlag := flag.Bool("headless", false, "Run without the TUI, driven by stdin commands (start/stop/quit)")
	flag.Parse()

	logPath, err := log.ResolveDir(*logPathFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		os.Exit(1)
	}
	log.SetDir(logPath)
	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log directory: %v\n", err)
	}

	crashPath := filepath.Join(log.Dir(), "crash_log.txt")
	if crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644); err == nil {
		fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
		debug.SetCrashOutput(crashFile, debug.CrashOptions{})
	}

	if *versionFlag {
		fmt.Printf("livetext %s\n", version)
		os.Exit(0)
	}

	if *doctorFlag {
		os.Exit(doctor.Run())
	}

	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: logging disabled: %v\n", err)
	}
	defer log.Close()

	cfg := config.Load()
	if *modelFlag != "" {
		cfg.LiveModel = *modelFlag
	}
	if *deviceFlag != "" {
		cfg.Device = *deviceFlag
	}
	if *muteFlag {
		beep.Disable()
	}
	beep.Init()

	device, err := resolveDevice(cfg.Device, *setupFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if device != nil && audio.IsBluetooth(device.Name) {
		fmt.Fprintf(os.Stderr, "Warning: %q looks like a bluetooth headset; capture quality may be reduced\n", device.Name)
	}

	var summarizer session.Summarizer
	if *notesFlag {
		s, err := gemini.NewSummarizer(context.Background(), cfg.APIKey, cfg.NotesModel, cfg.NotesPrompt)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: notes unavailable: %v\n", err)
			os.Exit(1)
		}
		summarizer = s
	}

	var dump *encoder.Dump
	if *dumpFlag != "" {
		dump, err = encoder.NewDump()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: audio dump unavailable: %v\n", err)
			os.Exit(1)
		}
	}

	sessionCfg := session.Config{
		APIKey:     cfg.APIKey,
		Model:      cfg.LiveModel,
		Device:     device,
		Summarizer: summarizer,
	}
	if dump != nil {
		sessionCfg.Tap = func(block []int16) { dump.WriteBlock(block) }
	}

	log.SessionStart(cfg.LiveModel, *notesFlag)

	var exitCode int
	if *headlessFlag {
		exitCode = runHeadless(sessionCfg)
	} else {
		exitCode = runTUI(sessionCfg, cfg.LiveModel, device, *notesFlag)
	}

	if *copyFlag {
		copyTranscript()
	}
	if dump != nil {
		writeDump(dump, *dumpFlag)
	}
	os.Exit(exitCode)
}

func runUpdate() {
	if version == "dev" {
		fmt.Println("Dev build — cannot check for updates.")
		return
	}
	fmt.Printf("livetext %s — checking for updates...\n", version)
	rel, err := update.CheckLatest(version)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	if rel == nil {
		fmt.Println("Already up to date.")
		return
	}
	fmt.Printf("Update available: %s -> %s\n", version, rel.Version)
	fmt.Print("Continue? [y/N] ")
	var answer string
	fmt.Scanln(&answer)
	if answer != "y" && answer != "Y" {
		fmt.Println("Aborted.")
		return
	}
	fmt.Printf("Downloading %s...\n", rel.Version)
	if err := update.Apply(rel); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Updated to %s\n", rel.Version)
}

// resolveDevice maps a configured device name, or an interactive pick, to a
// concrete capture device. Nil means system default.
func resolveDevice(name string, interactive bool) (*audio.DeviceInfo, error) {
	if name == "" && !interactive {
		return nil, nil
	}

	actx, err := audio.NewContext()
	if err != nil {
		return nil, fmt.Errorf("initializing audio: %w", err)
	}
	defer actx.Close()

	if interactive {
		return audio.SelectDevice(actx)
	}

	devices, err := actx.Devices()
	if err != nil {
		return nil, fmt.Errorf("listing capture devices: %w", err)
	}

	for i, dev := range devices {
		if strings.Contains(strings.ToLower(dev.Name), strings.ToLower(name)) {
			return &devices[i], nil
		}
	}
	return nil, fmt.Errorf("no capture device matching %q", name)
}

// lastTranscript holds the committed transcript of the most recent session,
// for -copy and the transcript log.
var lastTranscript string

func finishSession(l *session.Lifecycle) {
	l.Close()
	if text := strings.TrimSpace(l.Transcript()); text != "" {
		lastTranscript = l.Transcript()
		log.TranscriptText(text)
	}
}

func copyTranscript() {
	text := strings.TrimSpace(lastTranscript)
	if text == "" {
		return
	}
	if err := clipboard.Copy(text); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: clipboard copy failed: %v\n", err)
	}
}

func writeDump(dump *encoder.Dump, path string) {
	if dump.TotalSamples() == 0 {
		return
	}
	if err := dump.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: finalizing audio dump failed: %v\n", err)
		return
	}
	if err := os.WriteFile(path, dump.Bytes(), 0644); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: writing audio dump failed: %v\n", err)
		return
	}
	secs := float64(dump.TotalSamples()) / float64(encoder.SampleRate)
	fmt.Fprintf(os.Stderr, "Wrote %.1fs of audio to %s\n", secs, path)
}

// headlessObserver prints transitions to stdout so a driving process (or a
// person piping commands) can follow along without a terminal UI.
type headlessObserver struct{}

func (headlessObserver) StatusChanged(s session.Status, err error) {
	if err != nil {
		fmt.Printf("status: %s (%v)\n", s, err)
		return
	}
	fmt.Printf("status: %s\n", s)
}

func (headlessObserver) TranscriptChanged(string) {}
func (headlessObserver) NotesChanged(string)      {}
func (headlessObserver) AudioLevel(float64)       {}

func runHeadless(cfg session.Config) int {
	cfg.Observer = headlessObserver{}
	lifecycle := session.New(cfg)
	defer finishSession(lifecycle)

	sigCh := make(chan os.Signal, 1)
	shutdown.Notify(sigCh)

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- strings.TrimSpace(scanner.Text())
		}
		close(lines)
	}()

	for {
		select {
		case <-sigCh:
			return 0
		case line, ok := <-lines:
			if !ok {
				return 0
			}
			switch line {
			case "start":
				if err := lifecycle.Start(); err != nil {
					fmt.Printf("error: %v\n", err)
				} else {
					beep.PlayStart()
				}
			case "stop":
				lifecycle.Stop()
				beep.PlayEnd()
				fmt.Println("--- transcript ---")
				fmt.Print(lifecycle.Transcript())
				if notes := lifecycle.Notes(); notes != "" {
					fmt.Println("--- notes ---")
					fmt.Println(notes)
				}
			case "quit", "":
				return 0
			default:
				fmt.Printf("unknown command %q (start, stop, quit)\n", line)
			}
		}
	}
}
