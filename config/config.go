package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

const (
	DefaultLiveModel  = "models/gemini-2.0-flash-live-001"
	DefaultNotesModel = "gemini-2.0-flash"
)

type Config struct {
	APIKey      string
	LiveModel   string
	NotesModel  string
	NotesPrompt string // empty means the summarizer's built-in prompt
	Device      string // preferred capture device name
}

type fileConfig struct {
	APIKey      string `toml:"api_key"`
	LiveModel   string `toml:"live_model"`
	NotesModel  string `toml:"notes_model"`
	NotesPrompt string `toml:"notes_prompt"`
	Device      string `toml:"device"`
}

// Load reads config.toml if present and applies environment overrides.
// A missing API key is not an error here; the session lifecycle reports it
// when a recording is actually started.
func Load() *Config {
	cfg := &Config{
		LiveModel:  DefaultLiveModel,
		NotesModel: DefaultNotesModel,
	}

	if path := configFilePath(); path != "" {
		var fc fileConfig
		if _, err := toml.DecodeFile(path, &fc); err == nil {
			if fc.APIKey != "" {
				cfg.APIKey = fc.APIKey
			}
			if fc.LiveModel != "" {
				cfg.LiveModel = fc.LiveModel
			}
			if fc.NotesModel != "" {
				cfg.NotesModel = fc.NotesModel
			}
			if fc.NotesPrompt != "" {
				cfg.NotesPrompt = fc.NotesPrompt
			}
			if fc.Device != "" {
				cfg.Device = fc.Device
			}
		}
	}

	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.APIKey = v
	}

	return cfg
}

func configFilePath() string {
	var configDir string
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		configDir = filepath.Join(xdg, "livetext")
	} else if home, err := os.UserHomeDir(); err == nil {
		configDir = filepath.Join(home, ".config", "livetext")
	} else {
		return ""
	}

	path := filepath.Join(configDir, "config.toml")
	if _, err := os.Stat(path); err == nil {
		return path
	}
	return ""
}
