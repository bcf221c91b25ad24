package log

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestResolveDirPriority(t *testing.T) {
	t.Setenv("LIVETEXT_LOG_PATH", "/env/path")

	got, err := ResolveDir("/flag/path")
	if err != nil {
		t.Fatalf("ResolveDir: %v", err)
	}
	if got != "/flag/path" {
		t.Errorf("flag should win: got %q", got)
	}

	got, err = ResolveDir("")
	if err != nil {
		t.Fatalf("ResolveDir: %v", err)
	}
	if got != "/env/path" {
		t.Errorf("env should win over default: got %q", got)
	}
}

func TestResolveDirRelativeFlag(t *testing.T) {
	got, err := ResolveDir("logs")
	if err != nil {
		t.Fatalf("ResolveDir: %v", err)
	}
	if !filepath.IsAbs(got) {
		t.Errorf("relative flag not resolved to absolute: %q", got)
	}
}

func TestInitAndWrite(t *testing.T) {
	SetDir(t.TempDir())
	if err := Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer Close()

	Info("hello")
	TranscriptText("committed text")
	Close()

	diag, err := os.ReadFile(filepath.Join(Dir(), "diagnostics_log.txt"))
	if err != nil {
		t.Fatalf("reading diagnostics log: %v", err)
	}
	if !strings.Contains(string(diag), "hello") {
		t.Error("diagnostics log missing info message")
	}

	transcript, err := os.ReadFile(filepath.Join(Dir(), "transcript_log.txt"))
	if err != nil {
		t.Fatalf("reading transcript log: %v", err)
	}
	if !strings.Contains(string(transcript), "committed text") {
		t.Error("transcript log missing text")
	}
}

func TestLoggingBeforeInitIsNoop(t *testing.T) {
	Close() // ensure not ready
	Info("dropped")
	Warn("dropped")
	TranscriptText("dropped")
	SessionMetrics(SessionMetricsData{})
}
