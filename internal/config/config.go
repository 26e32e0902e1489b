// Package config loads the daemon configuration from YAML.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds daemon configuration.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen"`
	// DBPath is the SQLite database file. A leading ~ expands to the home dir.
	DBPath string `yaml:"db_path"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
	// Stats configures productivity aggregation.
	Stats StatsConfig `yaml:"stats"`
}

// StatsConfig configures productivity aggregation.
type StatsConfig struct {
	// WindowDays is used when a request gives no usable window.
	WindowDays int `yaml:"window_days"`
	// Timezone is the IANA zone whose calendar days count toward streaks.
	Timezone string `yaml:"timezone"`
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:   "127.0.0.1:7477",
		DBPath:   "~/.worklog/worklog.db",
		LogLevel: "info",
		Stats: StatsConfig{
			WindowDays: 30,
			Timezone:   "UTC",
		},
	}
}

// LoadConfig loads configuration from a YAML file. A missing file yields the
// defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// HomePath returns ~/.worklog/config.yaml.
func HomePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home dir: %w", err)
	}
	return filepath.Join(home, ".worklog", "config.yaml"), nil
}

// LoadConfigFromHome loads configuration from ~/.worklog/config.yaml.
func LoadConfigFromHome() (*Config, error) {
	path, err := HomePath()
	if err != nil {
		return DefaultConfig(), nil
	}
	return LoadConfig(path)
}

// SaveConfig saves configuration to a YAML file, creating parent directories if needed.
func SaveConfig(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Listen) == "" {
		return fmt.Errorf("listen must not be empty")
	}
	if strings.TrimSpace(c.DBPath) == "" {
		return fmt.Errorf("db_path must not be empty")
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.Stats.WindowDays < 1 {
		return fmt.Errorf("stats.window_days must be at least 1")
	}
	if _, err := time.LoadLocation(c.Stats.Timezone); err != nil {
		return fmt.Errorf("invalid stats.timezone %q: %w", c.Stats.Timezone, err)
	}
	return nil
}

// Keys lists the settable configuration keys.
var Keys = []string{"listen", "db_path", "log_level", "stats.window_days", "stats.timezone"}

// Set assigns one key by its YAML path and re-validates.
func (c *Config) Set(key, value string) error {
	next := *c
	switch key {
	case "listen":
		next.Listen = value
	case "db_path":
		next.DBPath = value
	case "log_level":
		next.LogLevel = value
	case "stats.window_days":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("stats.window_days must be an integer: %w", err)
		}
		next.Stats.WindowDays = n
	case "stats.timezone":
		next.Stats.Timezone = value
	default:
		return fmt.Errorf("unknown key %q, must be one of: %s", key, strings.Join(Keys, ", "))
	}
	if err := next.Validate(); err != nil {
		return err
	}
	*c = next
	return nil
}

// ResolvedDBPath expands a leading ~ in DBPath.
func (c *Config) ResolvedDBPath() (string, error) {
	if c.DBPath != "~" && !strings.HasPrefix(c.DBPath, "~/") {
		return c.DBPath, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home dir: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(c.DBPath, "~")), nil
}

// Location returns the configured stats time zone, UTC when unset.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Stats.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// SlogLevel returns the configured log level.
func (c *Config) SlogLevel() slog.Level {
	lvl, _ := parseLevel(c.LogLevel)
	return lvl
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("invalid log_level %q, must be: debug, info, warn, or error", s)
}
