package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrEmptyPath is returned by Load and Save when no config path is given.
var ErrEmptyPath = errors.New("config: path is empty")

// ICSConfig describes a single ICS source.
type ICSConfig struct {
	// URL is an http(s) subscription endpoint, a file:// URL or a local path.
	URL string `yaml:"url" json:"url"`
	// ID is an internal identifier, also used as the calendar id of events.
	ID string `yaml:"id" json:"id"`
	// Name is a human-friendly label.
	Name string `yaml:"name" json:"name"`
	// Color is the bar color for events of this calendar (e.g. "#4A90E2").
	Color string `yaml:"color,omitempty" json:"color,omitempty"`
}

// SourceID returns ID, falling back to Name and then URL.
func (c ICSConfig) SourceID() string {
	switch {
	case c.ID != "":
		return c.ID
	case c.Name != "":
		return c.Name
	default:
		return c.URL
	}
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// LayoutConfig tunes the grid layout engine.
type LayoutConfig struct {
	// LaneCap is the index of the overflow lane in a week.
	LaneCap int `yaml:"lane_cap" json:"lane_cap"`
	// HourHeight is the pixel height of one hour in week/day views.
	HourHeight float64 `yaml:"hour_height" json:"hour_height"`
	// MinEventHeight is the smallest pixel height of a timed block.
	MinEventHeight float64 `yaml:"min_event_height" json:"min_event_height"`
	// MaxBarsPerCell limits bars per month cell; the rest become "+N".
	// Zero shows every bar.
	MaxBarsPerCell int `yaml:"max_bars_per_cell" json:"max_bars_per_cell"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA timezone used as display zone (e.g. "Asia/Seoul").
	Timezone string `yaml:"timezone" json:"timezone"`

	// WeekStart is the first weekday of every calendar week, by English
	// name ("sunday", "monday", ...).
	WeekStart string `yaml:"week_start" json:"week_start"`

	// RefreshCron is a cron spec (e.g. "*/15 * * * *") for re-fetching
	// ICS sources.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// CacheDir holds the HTTP cache of fetched ICS feeds.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	// PreviewPath, if set, is where the serve loop writes a PNG capture of
	// the month grid after each refresh.
	PreviewPath string `yaml:"preview_path,omitempty" json:"preview_path,omitempty"`

	Layout LayoutConfig `yaml:"layout" json:"layout"`

	// ICS is the list of event sources.
	ICS []ICSConfig `yaml:"ics" json:"ics"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all
	// endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

const (
	defaultListen      = "127.0.0.1:8080"
	defaultTimezone    = "Asia/Seoul"
	defaultWeekStart   = "sunday"
	defaultRefreshCron = "*/15 * * * *"
	defaultLogLevel    = "info"
	defaultCacheDir    = "./var/ics-cache"
	defaultLaneCap     = 10
	defaultHourHeight  = 44
	defaultMinHeight   = 20
	defaultMaxBars     = 3
)

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:      defaultListen,
		Timezone:    defaultTimezone,
		WeekStart:   defaultWeekStart,
		RefreshCron: defaultRefreshCron,
		LogLevel:    defaultLogLevel,
		CacheDir:    defaultCacheDir,
		Layout: LayoutConfig{
			LaneCap:        defaultLaneCap,
			HourHeight:     defaultHourHeight,
			MinEventHeight: defaultMinHeight,
			MaxBarsPerCell: defaultMaxBars,
		},
		ICS: []ICSConfig{},
	}
}

// Normalize fills in missing/zero values so partially-filled configs
// still behave.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	if _, ok := parseWeekday(c.WeekStart); !ok {
		// Unknown value; fall back rather than guessing a layout.
		c.WeekStart = defaultWeekStart
	}
	c.WeekStart = strings.ToLower(strings.TrimSpace(c.WeekStart))
	if c.RefreshCron == "" {
		c.RefreshCron = defaultRefreshCron
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	if c.CacheDir == "" {
		c.CacheDir = defaultCacheDir
	}
	if c.Layout.LaneCap <= 0 {
		c.Layout.LaneCap = defaultLaneCap
	}
	if c.Layout.HourHeight <= 0 {
		c.Layout.HourHeight = defaultHourHeight
	}
	if c.Layout.MinEventHeight <= 0 {
		c.Layout.MinEventHeight = defaultMinHeight
	}
	if c.Layout.MaxBarsPerCell < 0 {
		c.Layout.MaxBarsPerCell = 0
	}
	if c.ICS == nil {
		c.ICS = []ICSConfig{}
	}
}

// WeekStartDay returns WeekStart as a time.Weekday (Sunday if invalid).
func (c *Config) WeekStartDay() time.Weekday {
	d, ok := parseWeekday(c.WeekStart)
	if !ok {
		return time.Sunday
	}
	return d
}

// Location resolves Timezone. An unknown zone is reported together with
// time.Local so callers can log and continue.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local, fmt.Errorf("config: load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func parseWeekday(s string) (time.Weekday, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for d := time.Sunday; d <= time.Saturday; d++ {
		name := strings.ToLower(d.String())
		if s == name || s == name[:3] {
			return d, true
		}
	}
	return time.Sunday, false
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes cfg to path: parent directory 0700, YAML written to a temp
// file in the same directory, chmod 0600, then renamed over path.
func Save(path string, cfg *Config) error {
	if path == "" {
		return ErrEmptyPath
	}
	if cfg == nil {
		return errors.New("config: nil config")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("config: create dir: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".calgrid-config-*.tmp")
	if err != nil {
		return fmt.Errorf("config: create temp file: %w", err)
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
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

// Save is a convenience method delegating to the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
