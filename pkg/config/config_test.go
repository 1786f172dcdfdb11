package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/butter-bot-machines/slskconf/pkg/config/env"
	"github.com/butter-bot-machines/slskconf/pkg/logging"
)

func TestDefault(t *testing.T) {
	cfg := Default("/home/me")
	if cfg.Settings != "/home/me/.nicotine/config" {
		t.Errorf("Got settings %q", cfg.Settings)
	}
	if cfg.DataDir != "/home/me/.nicotine" {
		t.Errorf("Got data dir %q", cfg.DataDir)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Defaults should validate: %v", err)
	}
	if cfg.LogLevel() != logging.LevelInfo || cfg.LogFormat() != logging.FormatText {
		t.Errorf("Got log %v/%v", cfg.LogLevel(), cfg.LogFormat())
	}
}

func TestConfigLoading(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "slskconf.yaml")

	configData := []byte(`
settings: /srv/nicotine/config
log:
  level: debug
  format: json
watch:
  debounce: 100ms
  max_delay: 1s
`)
	if err := os.WriteFile(configPath, configData, 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := Load(configPath, "/home/me")
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Settings != "/srv/nicotine/config" {
		t.Errorf("Got settings %q", cfg.Settings)
	}
	if cfg.DataDir != "/home/me/.nicotine" {
		t.Errorf("Unset fields should keep defaults, got %q", cfg.DataDir)
	}
	if cfg.LogLevel() != logging.LevelDebug || cfg.LogFormat() != logging.FormatJSON {
		t.Errorf("Got log %v/%v", cfg.LogLevel(), cfg.LogFormat())
	}
	if cfg.Watch.Debounce != 100*time.Millisecond || cfg.Watch.MaxDelay != time.Second {
		t.Errorf("Got watch %+v", cfg.Watch)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), "/home/me"); err == nil {
		t.Error("Expected error for missing file")
	}
	if _, err := ParseConfig([]byte("log: [unclosed"), "/home/me"); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Got %v, want ErrInvalidConfig", err)
	}
	cfg, err := Load("", "/home/me")
	if err != nil || cfg.Settings != Default("/home/me").Settings {
		t.Errorf("Empty path should yield defaults, got %+v, %v", cfg, err)
	}
}

func TestApplyEnv(t *testing.T) {
	cfg := Default("/home/me")
	cfg.ApplyEnv(env.FromMap(map[string]string{
		EnvSettings:  "/tmp/config",
		EnvDataDir:   "/tmp/data",
		EnvLogLevel:  "warning",
		EnvLogFormat: "json",
		EnvLogSource: "true",
		EnvDebounce:  "50",
		EnvMaxDelay:  "3s",
	}))

	if cfg.Settings != "/tmp/config" || cfg.DataDir != "/tmp/data" {
		t.Errorf("Got paths %q, %q", cfg.Settings, cfg.DataDir)
	}
	if cfg.LogLevel() != logging.LevelWarn || cfg.LogFormat() != logging.FormatJSON {
		t.Errorf("Got log %v/%v", cfg.LogLevel(), cfg.LogFormat())
	}
	if !cfg.Log.Source {
		t.Error("Log source not enabled")
	}
	if cfg.Watch.Debounce != 50*time.Millisecond || cfg.Watch.MaxDelay != 3*time.Second {
		t.Errorf("Got debounce %v, max delay %v", cfg.Watch.Debounce, cfg.Watch.MaxDelay)
	}

	untouched := Default("/home/me")
	untouched.ApplyEnv(env.FromMap(nil))
	if *untouched != *Default("/home/me") {
		t.Error("Empty environment should change nothing")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"empty settings", func(c *Config) { c.Settings = "" }},
		{"empty data dir", func(c *Config) { c.DataDir = "" }},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }},
		{"negative debounce", func(c *Config) { c.Watch.Debounce = -time.Second }},
		{"max delay below debounce", func(c *Config) {
			c.Watch.Debounce = time.Second
			c.Watch.MaxDelay = time.Millisecond
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default("/home/me")
			tt.modify(cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalidValue) {
				t.Errorf("Got %v, want ErrInvalidValue", err)
			}
		})
	}
}
