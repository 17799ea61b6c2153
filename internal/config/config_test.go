package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Listen != defaultListen || cfg.WeekStart != "sunday" || cfg.Layout.LaneCap != 10 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("config file not written: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("perm = %o, want 600", perm)
	}
}

func TestLoadNormalizes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
listen: ":9000"
week_start: Monday
layout:
  lane_cap: 4
  max_bars_per_cell: -1
ics:
  - name: work
    url: https://example.com/work.ics
    color: "#ff0000"
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Listen != ":9000" || cfg.Timezone != defaultTimezone {
		t.Fatalf("listen/timezone: %q %q", cfg.Listen, cfg.Timezone)
	}
	if cfg.WeekStart != "monday" || cfg.WeekStartDay() != time.Monday {
		t.Fatalf("week start: %q", cfg.WeekStart)
	}
	if cfg.Layout.LaneCap != 4 || cfg.Layout.HourHeight != defaultHourHeight || cfg.Layout.MaxBarsPerCell != 0 {
		t.Fatalf("layout: %+v", cfg.Layout)
	}
	if len(cfg.ICS) != 1 || cfg.ICS[0].SourceID() != "work" || cfg.ICS[0].Color != "#ff0000" {
		t.Fatalf("ics: %+v", cfg.ICS)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("listen: [unclosed"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestEmptyPath(t *testing.T) {
	if _, err := Load(""); !errors.Is(err, ErrEmptyPath) {
		t.Fatalf("Load: %v", err)
	}
	if err := Save("", DefaultConfig()); !errors.Is(err, ErrEmptyPath) {
		t.Fatalf("Save: %v", err)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := DefaultConfig()
	cfg.WeekStart = "sat"
	cfg.ICS = append(cfg.ICS, ICSConfig{ID: "home", URL: "file:///tmp/home.ics"})
	cfg.BasicAuth = &BasicAuthConfig{Username: "u", Password: "p"}

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.WeekStartDay() != time.Saturday {
		t.Fatalf("week start = %v", got.WeekStartDay())
	}
	if len(got.ICS) != 1 || got.ICS[0].ID != "home" {
		t.Fatalf("ics = %+v", got.ICS)
	}
	if got.BasicAuth == nil || got.BasicAuth.Username != "u" {
		t.Fatalf("basic auth lost")
	}
}

func TestNormalizeUnknownWeekStart(t *testing.T) {
	cfg := &Config{WeekStart: "someday"}
	cfg.Normalize()
	if cfg.WeekStart != defaultWeekStart {
		t.Fatalf("week start = %q", cfg.WeekStart)
	}
}

func TestLocation(t *testing.T) {
	cfg := &Config{Timezone: "Not/AZone"}
	loc, err := cfg.Location()
	if err == nil || loc != time.Local {
		t.Fatalf("expected fallback with error, got %v %v", loc, err)
	}
	cfg.Timezone = "UTC"
	if loc, err := cfg.Location(); err != nil || loc.String() != "UTC" {
		t.Fatalf("UTC: %v %v", loc, err)
	}
}
