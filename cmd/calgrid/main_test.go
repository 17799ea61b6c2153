package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestGridURL(t *testing.T) {
	cases := map[string]string{
		"127.0.0.1:8080": "http://127.0.0.1:8080/calendar.svg",
		"0.0.0.0:9000":   "http://127.0.0.1:9000/calendar.svg",
		":8080":          "http://127.0.0.1:8080/calendar.svg",
		"[::]:8080":      "http://127.0.0.1:8080/calendar.svg",
		"calgrid.lan":    "http://calgrid.lan/calendar.svg",
	}
	for in, want := range cases {
		if got := gridURL(in); got != want {
			t.Errorf("gridURL(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSourcesFromArgs(t *testing.T) {
	got := sourcesFromArgs([]string{"/data/work.ics", "https://example.com/feeds/home.ics"})
	if len(got) != 2 || got[0].ID != "work" || got[1].ID != "home" {
		t.Fatalf("got %+v", got)
	}
}

func TestLayoutCommand(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "calgrid.yaml")
	cfgYAML := "timezone: UTC\nweek_start: monday\ncache_dir: " + filepath.Join(dir, "cache") + "\n"
	if err := os.WriteFile(cfgPath, []byte(cfgYAML), 0o600); err != nil {
		t.Fatal(err)
	}
	feed := strings.Join([]string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//calgrid//test//EN",
		"BEGIN:VEVENT",
		"UID:trip",
		"SUMMARY:Trip",
		"DTSTART;VALUE=DATE:20251006",
		"DTEND;VALUE=DATE:20251009",
		"END:VEVENT",
		"END:VCALENDAR",
		"",
	}, "\r\n")
	icsPath := filepath.Join(dir, "work.ics")
	if err := os.WriteFile(icsPath, []byte(feed), 0o600); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{
		"layout", "--config", cfgPath,
		"--date", "2025-10-07", "--view", "week",
		"--ics", icsPath, "--format", "json",
	})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("layout: %v", err)
	}

	var resp struct {
		Mode       string `json:"mode"`
		RangeStart string `json:"range_start"`
		Weeks      []struct {
			Segments []struct {
				EventID    string `json:"event_id"`
				CalendarID string `json:"calendar_id"`
			} `json:"segments"`
		} `json:"weeks"`
	}
	if err := json.Unmarshal(out.Bytes(), &resp); err != nil {
		t.Fatalf("not JSON: %v\n%s", err, out.String())
	}
	if resp.Mode != "week" || resp.RangeStart != "2025-10-06" {
		t.Fatalf("unexpected header: %+v", resp)
	}
	if len(resp.Weeks) != 1 || len(resp.Weeks[0].Segments) != 1 || resp.Weeks[0].Segments[0].CalendarID != "work" {
		t.Fatalf("unexpected segments: %+v", resp.Weeks)
	}
}
