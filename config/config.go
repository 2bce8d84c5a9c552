// Package config handles loading and managing application configuration
// from YAML files, an optional .env file and environment variable
// overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Notification controls how long notifications stay on screen.
type Notification struct {
	Visible Duration `yaml:"visible"`
	Slide   Duration `yaml:"slide"`
}

// Config holds all application configuration values.
type Config struct {
	Port           int          `yaml:"port"`
	DataDir        string       `yaml:"data_dir"`
	LogLevel       string       `yaml:"log_level"`
	Encoder        string       `yaml:"encoder"`
	Sizes          []int        `yaml:"sizes"`
	DefaultSize    int          `yaml:"default_size"`
	AnimationDelay Duration     `yaml:"animation_delay"`
	Notification   Notification `yaml:"notification"`
	SessionTTL     Duration     `yaml:"session_ttl"`
	History        bool         `yaml:"history"`
}

// Duration is a wrapper around time.Duration that supports YAML unmarshalling
// from human-readable strings like "300ms", "3s", "30m".
type Duration struct {
	time.Duration
}

// UnmarshalYAML implements the yaml.Unmarshaler interface for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// MarshalYAML implements the yaml.Marshaler interface for Duration.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.Duration.String(), nil
}

// Defaults returns a Config populated with sensible default values.
func Defaults() *Config {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}
	return &Config{
		Port:           8565,
		DataDir:        filepath.Join(homeDir, ".qrgen"),
		LogLevel:       "info",
		Encoder:        "image",
		Sizes:          []int{128, 256, 512, 1024},
		DefaultSize:    256,
		AnimationDelay: Duration{100 * time.Millisecond},
		Notification: Notification{
			Visible: Duration{3 * time.Second},
			Slide:   Duration{300 * time.Millisecond},
		},
		SessionTTL: Duration{30 * time.Minute},
		History:    true,
	}
}

// Load reads configuration from the YAML file at path, falling back to
// defaults if the file does not exist. A .env file in the working
// directory is loaded first; QRGEN_* environment variables then override
// file and default values.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env file: %w", err)
	}

	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// No file: proceed with defaults.
	} else {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies QRGEN_* environment variable overrides to cfg.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("QRGEN_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Port = p
		}
	}
	if v := os.Getenv("QRGEN_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("QRGEN_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("QRGEN_ENCODER"); v != "" {
		cfg.Encoder = v
	}
	if v := os.Getenv("QRGEN_SIZES"); v != "" {
		if sizes, err := parseSizes(v); err == nil {
			cfg.Sizes = sizes
		}
	}
	if v := os.Getenv("QRGEN_DEFAULT_SIZE"); v != "" {
		if s, err := strconv.Atoi(v); err == nil {
			cfg.DefaultSize = s
		}
	}
	if v := os.Getenv("QRGEN_SESSION_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.SessionTTL = Duration{d}
		}
	}
	if v := os.Getenv("QRGEN_HISTORY"); v != "" {
		switch strings.ToLower(v) {
		case "true", "1", "yes":
			cfg.History = true
		case "false", "0", "no":
			cfg.History = false
		}
	}
}

func parseSizes(v string) ([]int, error) {
	var sizes []int
	for _, part := range strings.Split(v, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		sizes = append(sizes, n)
	}
	return sizes, nil
}

// Validate checks that the size presets are usable. A DefaultSize that is
// not one of the presets falls back to the first preset.
func (c *Config) Validate() error {
	if len(c.Sizes) == 0 {
		return fmt.Errorf("sizes: at least one preset is required")
	}
	found := false
	for _, s := range c.Sizes {
		if s <= 0 {
			return fmt.Errorf("sizes: %d is not a positive pixel size", s)
		}
		if s == c.DefaultSize {
			found = true
		}
	}
	if !found {
		c.DefaultSize = c.Sizes[0]
	}
	return nil
}

// HistoryPath is the generation log database inside DataDir.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.DataDir, "history.db")
}

// EnsureDataDir creates the DataDir if it does not already exist.
func (c *Config) EnsureDataDir() error {
	if err := os.MkdirAll(c.DataDir, 0o755); err != nil {
		return fmt.Errorf("creating data dir %s: %w", c.DataDir, err)
	}
	return nil
}
