// Package config loads focusloop configuration from a TOML file with
// environment overrides. Resolution order, later wins: built-in defaults,
// the config file, environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/adrg/xdg"
)

// Config is the full application configuration.
type Config struct {
	DataDir string    `toml:"data_dir"`
	Log     LogConfig `toml:"log"`
	AI      AIConfig  `toml:"ai"`
}

// LogConfig controls the zerolog setup.
type LogConfig struct {
	Level string `toml:"level"`
}

// AIConfig controls the completion client. An empty APIKey disables AI
// features; everything else keeps working.
type AIConfig struct {
	APIKey         string `toml:"api_key"`
	Model          string `toml:"model"`
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		DataDir: filepath.Join(xdg.DataHome, "focusloop"),
		Log:     LogConfig{Level: "info"},
		AI:      AIConfig{TimeoutSeconds: 60},
	}
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return filepath.Join(xdg.ConfigHome, "focusloop", "config.toml")
}

// Load reads the config file at path (DefaultPath when empty), layers it
// over the defaults, and applies environment overrides. A missing file is
// not an error; a malformed one is.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = DefaultPath()
	}
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("config: stat %s: %w", path, err)
	}

	applyEnv(&cfg)
	return cfg, nil
}

// applyEnv maps environment variables onto the config. OPENROUTER_API_KEY
// is honored alongside the FOCUSLOOP_ prefix because that is the name the
// provider documents.
func applyEnv(cfg *Config) {
	if v := os.Getenv("FOCUSLOOP_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("FOCUSLOOP_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("OPENROUTER_API_KEY"); v != "" {
		cfg.AI.APIKey = v
	}
	if v := os.Getenv("FOCUSLOOP_AI_MODEL"); v != "" {
		cfg.AI.Model = v
	}
	if v := os.Getenv("FOCUSLOOP_AI_BASE_URL"); v != "" {
		cfg.AI.BaseURL = v
	}
	if v := os.Getenv("FOCUSLOOP_AI_TIMEOUT_SECONDS"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			cfg.AI.TimeoutSeconds = secs
		}
	}
}
