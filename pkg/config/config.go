// Package config holds the runtime configuration of the slskconf tool: where
// the client settings live, how to log and how to watch the settings file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/butter-bot-machines/slskconf/pkg/logging"
)

// Environment variable names
const (
	EnvSettings  = "SLSKCONF_SETTINGS"
	EnvDataDir   = "SLSKCONF_DATA_DIR"
	EnvLogLevel  = "SLSKCONF_LOG_LEVEL"
	EnvLogFormat = "SLSKCONF_LOG_FORMAT"
	EnvLogSource = "SLSKCONF_LOG_SOURCE"
	EnvDebounce  = "SLSKCONF_WATCH_DEBOUNCE"
	EnvMaxDelay  = "SLSKCONF_WATCH_MAX_DELAY"
)

// Config represents the root configuration structure
type Config struct {
	Settings string      `yaml:"settings"`
	DataDir  string      `yaml:"data_dir"`
	Log      LogConfig   `yaml:"log"`
	Watch    WatchConfig `yaml:"watch"`
}

// LogConfig configures the log output
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source,omitempty"`
}

// WatchConfig configures the settings file watcher
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce"`
	MaxDelay time.Duration `yaml:"max_delay"`
}

// Default returns the configuration of a client whose files live under
// <home>/.nicotine
func Default(home string) *Config {
	base := filepath.Join(home, ".nicotine")
	return &Config{
		Settings: filepath.Join(base, "config"),
		DataDir:  base,
		Log: LogConfig{
			Level:  "info",
			Format: string(logging.FormatText),
		},
		Watch: WatchConfig{
			Debounce: 250 * time.Millisecond,
			MaxDelay: 2 * time.Second,
		},
	}
}

// ParseConfig parses YAML over the defaults for home
func ParseConfig(data []byte, home string) (*Config, error) {
	cfg := Default(home)
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return cfg, nil
}

// Load reads the YAML file at path over the defaults. An empty path
// yields the defaults.
func Load(path, home string) (*Config, error) {
	if path == "" {
		return Default(home), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err := ParseConfig(data, home)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields set in the environment
func (c *Config) ApplyEnv(env Environment) {
	c.Settings = env.GetStringWithDefault(EnvSettings, c.Settings)
	c.DataDir = env.GetStringWithDefault(EnvDataDir, c.DataDir)
	c.Log.Level = env.GetStringWithDefault(EnvLogLevel, c.Log.Level)
	c.Log.Format = env.GetStringWithDefault(EnvLogFormat, c.Log.Format)
	c.Log.Source = env.GetBoolWithDefault(EnvLogSource, c.Log.Source)
	c.Watch.Debounce = env.GetDurationWithDefault(EnvDebounce, c.Watch.Debounce)
	c.Watch.MaxDelay = env.GetDurationWithDefault(EnvMaxDelay, c.Watch.MaxDelay)
}

// Validate checks the configuration
func (c *Config) Validate() error {
	if c.Settings == "" {
		return fmt.Errorf("%w: settings path is required", ErrInvalidValue)
	}
	if c.DataDir == "" {
		return fmt.Errorf("%w: data directory is required", ErrInvalidValue)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	if _, err := logging.ParseFormat(c.Log.Format); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	if c.Watch.Debounce < 0 || c.Watch.MaxDelay < 0 {
		return fmt.Errorf("%w: watch delays cannot be negative", ErrInvalidValue)
	}
	if c.Watch.MaxDelay != 0 && c.Watch.MaxDelay < c.Watch.Debounce {
		return fmt.Errorf("%w: max_delay %v is shorter than debounce %v", ErrInvalidValue,
			c.Watch.MaxDelay, c.Watch.Debounce)
	}
	return nil
}

// LogLevel returns the parsed log level
func (c *Config) LogLevel() logging.Level {
	level, _ := logging.ParseLevel(c.Log.Level)
	return level
}

// LogFormat returns the parsed log format
func (c *Config) LogFormat() logging.Format {
	format, _ := logging.ParseFormat(c.Log.Format)
	return format
}
