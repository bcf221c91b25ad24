package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("GEMINI_API_KEY", "")

	cfg := Load()
	if cfg.APIKey != "" {
		t.Errorf("APIKey = %q, want empty", cfg.APIKey)
	}
	if cfg.LiveModel != DefaultLiveModel {
		t.Errorf("LiveModel = %q, want %q", cfg.LiveModel, DefaultLiveModel)
	}
	if cfg.NotesModel != DefaultNotesModel {
		t.Errorf("NotesModel = %q, want %q", cfg.NotesModel, DefaultNotesModel)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("GEMINI_API_KEY", "")

	cfgDir := filepath.Join(dir, "livetext")
	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	content := `
api_key = "file-key"
live_model = "models/custom-live"
notes_prompt = "one line per turn"
device = "USB Microphone"
`
	if err := os.WriteFile(filepath.Join(cfgDir, "config.toml"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := Load()
	if cfg.APIKey != "file-key" {
		t.Errorf("APIKey = %q, want %q", cfg.APIKey, "file-key")
	}
	if cfg.LiveModel != "models/custom-live" {
		t.Errorf("LiveModel = %q, want %q", cfg.LiveModel, "models/custom-live")
	}
	if cfg.NotesModel != DefaultNotesModel {
		t.Errorf("NotesModel = %q, want default %q", cfg.NotesModel, DefaultNotesModel)
	}
	if cfg.NotesPrompt != "one line per turn" {
		t.Errorf("NotesPrompt = %q", cfg.NotesPrompt)
	}
	if cfg.Device != "USB Microphone" {
		t.Errorf("Device = %q", cfg.Device)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	cfgDir := filepath.Join(dir, "livetext")
	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(cfgDir, "config.toml"), []byte(`api_key = "file-key"`), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("GEMINI_API_KEY", "env-key")
	cfg := Load()
	if cfg.APIKey != "env-key" {
		t.Errorf("APIKey = %q, want env override", cfg.APIKey)
	}
}
