// Package config handles configuration loading, validation, and management
// for keyosd.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds the complete keyosd configuration.
type Config struct {
	// Display configuration for the visible key set.
	Display DisplayConfig `toml:"display" json:"display" yaml:"display"`

	// Input configuration for device capture.
	Input InputConfig `toml:"input" json:"input" yaml:"input"`

	// Logging configuration.
	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging"`
}

// DisplayConfig controls the bounded, time-decaying visible key set.
type DisplayConfig struct {
	// MaxKeys is the capacity bound of the visible key set.
	MaxKeys int `toml:"max_keys" json:"max_keys" yaml:"max_keys"`

	// TimeoutMs is how long a released non-modifier key stays visible.
	TimeoutMs int `toml:"timeout_ms" json:"timeout_ms" yaml:"timeout_ms"`

	// SweepMs is the eviction sweep interval. Clamped to TimeoutMs so
	// display staleness stays bounded.
	SweepMs int `toml:"sweep_ms" json:"sweep_ms" yaml:"sweep_ms"`
}

// InputConfig controls device capture.
type InputConfig struct {
	// AllKeyboards captures from every detected keyboard. When false,
	// only the first detected keyboard is used.
	AllKeyboards bool `toml:"all_keyboards" json:"all_keyboards" yaml:"all_keyboards"`

	// IgnoredKeys lists evdev key names (e.g. "KEY_CAPSLOCK") that are
	// dropped at the listener before they reach the engine.
	IgnoredKeys []string `toml:"ignored_keys" json:"ignored_keys" yaml:"ignored_keys"`

	// StartPaused starts capture in the paused state.
	StartPaused bool `toml:"start_paused" json:"start_paused" yaml:"start_paused"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string `toml:"level" json:"level" yaml:"level"`

	// Format is "text" or "json".
	Format string `toml:"format" json:"format" yaml:"format"`

	// Output is "stdout", "stderr", "file", or "both".
	Output string `toml:"output" json:"output" yaml:"output"`

	// FilePath overrides the default log file location.
	FilePath string `toml:"file_path" json:"file_path" yaml:"file_path"`
}

// Default returns a configuration with all defaults applied.
func Default() *Config {
	return &Config{
		Display: DisplayConfig{
			MaxKeys:   5,
			TimeoutMs: 2000,
			SweepMs:   100,
		},
		Input: InputConfig{
			AllKeyboards: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// Timeout returns the decay timeout as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Display.TimeoutMs) * time.Millisecond
}

// SweepInterval returns the sweep interval as a duration.
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.Display.SweepMs) * time.Millisecond
}

// Validate checks the configuration for invalid values and clamps the
// sweep interval to the decay timeout.
func (c *Config) Validate() error {
	var errs ValidationErrors

	if c.Display.MaxKeys < 1 {
		errs = append(errs, ValidationError{
			Field:   "display.max_keys",
			Message: fmt.Sprintf("must be positive, got %d", c.Display.MaxKeys),
		})
	}
	if c.Display.TimeoutMs < 1 {
		errs = append(errs, ValidationError{
			Field:   "display.timeout_ms",
			Message: fmt.Sprintf("must be positive, got %d", c.Display.TimeoutMs),
		})
	}
	if c.Display.SweepMs < 1 {
		errs = append(errs, ValidationError{
			Field:   "display.sweep_ms",
			Message: fmt.Sprintf("must be positive, got %d", c.Display.SweepMs),
		})
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("unknown level %q", c.Logging.Level),
		})
	}

	if len(errs) > 0 {
		return errs
	}

	// Sweeping slower than the timeout would leave expired keys on screen.
	if c.Display.SweepMs > c.Display.TimeoutMs {
		c.Display.SweepMs = c.Display.TimeoutMs
	}

	return nil
}

// ApplyEnvOverrides applies KEYOSD_* environment variables on top of the
// loaded configuration.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("KEYOSD_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("KEYOSD_MAX_KEYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Display.MaxKeys = n
		}
	}
	if v := os.Getenv("KEYOSD_TIMEOUT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Display.TimeoutMs = n
		}
	}
}

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// DefaultPath returns the default configuration file path,
// $XDG_CONFIG_HOME/keyosd/config.toml.
func DefaultPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		homeDir, _ := os.UserHomeDir()
		configHome = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configHome, "keyosd", "config.toml")
}
