// Package config loads and persists the YAML application configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// SourceConfig describes one ICS subscription feed.
type SourceConfig struct {
	// URL is the ICS endpoint.
	URL string `yaml:"url" json:"url"`
	// ID is an internal identifier used for de-dup and logging.
	ID string `yaml:"id" json:"id"`
	// Name is a human-friendly label.
	Name string `yaml:"name" json:"name"`
	// CalendarID maps the feed onto a calendar in the event model.
	CalendarID string `yaml:"calendar_id" json:"calendar_id"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen" json:"listen"`

	// LogLevel is DEBUG, INFO, WARN or ERROR.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// TimeZone is the IANA zone all views are computed in.
	TimeZone string `yaml:"timezone" json:"timezone"`

	// WeekStartsOn is the ISO weekday the week begins on
	// (Monday=1 .. Sunday=7).
	WeekStartsOn int `yaml:"week_starts_on" json:"week_starts_on"`

	// Use12Hour selects 12-hour clock labels in the rendering layer.
	Use12Hour bool `yaml:"use_12_hour" json:"use_12_hour"`

	// Locale is the BCP-47 tag handed through to the rendering layer.
	Locale string `yaml:"locale" json:"locale"`

	// MinVisibleLanes is the all-day row capacity before overflow.
	MinVisibleLanes int `yaml:"min_visible_lanes" json:"min_visible_lanes"`

	// DayStartHour is the first hour shown by the timed grid.
	DayStartHour int `yaml:"day_start_hour" json:"day_start_hour"`

	// PixelsPerHour scales the timed grid's vertical axis.
	PixelsPerHour float64 `yaml:"pixels_per_hour" json:"pixels_per_hour"`

	// HorizonDays bounds the default /api/events window.
	HorizonDays int `yaml:"horizon_days" json:"horizon_days"`

	// RefreshCron schedules periodic feed refresh (e.g. "*/15 * * * *").
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// Sources is the list of subscribed ICS feeds.
	Sources []SourceConfig `yaml:"sources" json:"sources"`

	// BasicAuth, if non-nil, protects all endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:          "127.0.0.1:8080",
		LogLevel:        "INFO",
		TimeZone:        "UTC",
		WeekStartsOn:    1,
		Use12Hour:       false,
		Locale:          "en-US",
		MinVisibleLanes: 2,
		DayStartHour:    0,
		PixelsPerHour:   48,
		HorizonDays:     7,
		RefreshCron:     "*/15 * * * *",
		Sources:         []SourceConfig{},
	}
}

// Normalize fills missing or out-of-range values with defaults so partial
// configs from older versions keep working.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8080"
	}
	if c.LogLevel == "" {
		c.LogLevel = "INFO"
	}
	if c.TimeZone == "" {
		c.TimeZone = "UTC"
	}
	if c.WeekStartsOn < 1 || c.WeekStartsOn > 7 {
		c.WeekStartsOn = 1
	}
	if c.Locale == "" {
		c.Locale = "en-US"
	}
	if c.MinVisibleLanes <= 0 {
		c.MinVisibleLanes = 2
	}
	if c.DayStartHour < 0 || c.DayStartHour > 23 {
		c.DayStartHour = 0
	}
	if c.PixelsPerHour <= 0 {
		c.PixelsPerHour = 48
	}
	if c.HorizonDays <= 0 {
		c.HorizonDays = 7
	}
	if c.RefreshCron == "" {
		c.RefreshCron = "*/15 * * * *"
	}
	if c.Sources == nil {
		c.Sources = []SourceConfig{}
	}
}

// Validate rejects values Normalize cannot repair.
func (c *Config) Validate() error {
	if _, err := time.LoadLocation(c.TimeZone); err != nil {
		return fmt.Errorf("config: invalid timezone %q: %w", c.TimeZone, err)
	}
	return nil
}

// Load reads configuration from the given YAML path. A missing file is a
// first run: the default config is written (0600) and returned.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the configuration atomically (temp file + rename) with 0600
// permissions, creating the parent directory if needed.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".calview-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
