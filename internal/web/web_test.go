package web

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"calgrid/internal/config"
	"calgrid/internal/layout"
)

const feed = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//calgrid//test//EN
BEGIN:VEVENT
UID:trip
SUMMARY:Trip
DTSTART;VALUE=DATE:20251006
DTEND;VALUE=DATE:20251009
END:VEVENT
BEGIN:VEVENT
UID:review
SUMMARY:Review
DTSTART:20251007T020000Z
DTEND:20251007T030000Z
END:VEVENT
END:VCALENDAR
`

func writeFeed(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(strings.ReplaceAll(body, "\n", "\r\n")), 0o600); err != nil {
		t.Fatal(err)
	}
}

func newTestServer(t *testing.T, mutate func(*config.Config)) (*Server, string) {
	t.Helper()
	dir := t.TempDir()
	feedPath := filepath.Join(dir, "work.ics")
	writeFeed(t, feedPath, feed)

	cfg := config.DefaultConfig()
	cfg.Timezone = "UTC"
	cfg.CacheDir = filepath.Join(dir, "cache")
	cfg.ICS = []config.ICSConfig{{ID: "work", URL: feedPath, Color: "#FF0000"}}
	if mutate != nil {
		mutate(cfg)
	}
	return NewServer(cfg), feedPath
}

func do(t *testing.T, h http.Handler, method, target string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, nil)
	rec := do(t, s.Handler(), http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Fatalf("health: %d %q", rec.Code, rec.Body.String())
	}
}

func TestBasicAuth(t *testing.T) {
	s, _ := newTestServer(t, func(c *config.Config) {
		c.BasicAuth = &config.BasicAuthConfig{Username: "u", Password: "p"}
	})
	h := s.Handler()

	if rec := do(t, h, http.MethodGet, "/health", nil); rec.Code != http.StatusOK {
		t.Fatalf("/health must stay open, got %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/api/events", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/events?date=2025-10-07", nil)
	req.SetBasicAuth("u", "p")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with credentials, got %d", rec.Code)
	}
}

func TestEvents(t *testing.T) {
	s, _ := newTestServer(t, nil)
	rec := do(t, s.Handler(), http.MethodGet, "/api/events?date=2025-10-07&view=week", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}

	var resp eventsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.RangeStart != "2025-10-05" || resp.RangeEnd != "2025-10-11" {
		t.Fatalf("range %s..%s", resp.RangeStart, resp.RangeEnd)
	}
	if len(resp.Events) != 2 || resp.DisplayTimeZone != "UTC" {
		t.Fatalf("events: %+v", resp)
	}
}

func TestEventsBadParams(t *testing.T) {
	s, _ := newTestServer(t, nil)
	for _, target := range []string{
		"/api/events?view=year",
		"/api/events?date=10/07/2025",
		"/api/layout?view=fortnight",
		"/calendar.svg?date=yesterday",
	} {
		if rec := do(t, s.Handler(), http.MethodGet, target, nil); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: got %d, want 400", target, rec.Code)
		}
	}
}

func TestEventsSnapshotAndInvalidate(t *testing.T) {
	s, feedPath := newTestServer(t, nil)
	h := s.Handler()

	count := func() int {
		rec := do(t, h, http.MethodGet, "/api/events?date=2025-10-07", nil)
		var resp eventsResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatal(err)
		}
		return len(resp.Events)
	}

	if n := count(); n != 2 {
		t.Fatalf("first read: %d events", n)
	}

	writeFeed(t, feedPath, strings.Replace(feed, "BEGIN:VEVENT\nUID:review", "BEGIN:VEVENT\nUID:extra\nSUMMARY:Extra\nDTSTART:20251010T020000Z\nDTEND:20251010T030000Z\nEND:VEVENT\nBEGIN:VEVENT\nUID:review", 1))
	if n := count(); n != 2 {
		t.Fatalf("snapshot should still be served, got %d", n)
	}

	s.Invalidate()
	if n := count(); n != 3 {
		t.Fatalf("after invalidate: %d events", n)
	}
}

func TestEventsLoadedBeforeInvalidateNotStored(t *testing.T) {
	var (
		srv  atomic.Pointer[Server]
		hits atomic.Int32
	)
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			// The config changes while this load is in flight.
			srv.Load().Invalidate()
		}
		_, _ = w.Write([]byte(strings.ReplaceAll(feed, "\n", "\r\n")))
	}))
	defer upstream.Close()

	s, _ := newTestServer(t, func(cfg *config.Config) {
		cfg.ICS = []config.ICSConfig{{ID: "work", URL: upstream.URL + "/work.ics"}}
	})
	srv.Store(s)
	h := s.Handler()

	for i := 0; i < 2; i++ {
		rec := do(t, h, http.MethodGet, "/api/events?date=2025-10-07", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: status %d: %s", i, rec.Code, rec.Body.String())
		}
	}
	if n := hits.Load(); n != 2 {
		t.Fatalf("second request should refetch, upstream hits = %d", n)
	}

	do(t, h, http.MethodGet, "/api/events?date=2025-10-07", nil)
	if n := hits.Load(); n != 2 {
		t.Fatalf("third request should be served from the snapshot, upstream hits = %d", n)
	}
}

func TestLayoutGet(t *testing.T) {
	s, _ := newTestServer(t, nil)
	rec := do(t, s.Handler(), http.MethodGet, "/api/layout?date=2025-10-07&view=month", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}

	var resp layoutResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Mode != "month" || resp.RangeStart != "2025-09-28" || resp.RangeEnd != "2025-11-01" {
		t.Fatalf("unexpected range: %+v", resp)
	}
	if len(resp.Weeks) != 5 || len(resp.Cells) != 35 {
		t.Fatalf("weeks=%d cells=%d", len(resp.Weeks), len(resp.Cells))
	}

	segs := resp.Weeks[1].Segments
	if len(segs) != 2 || segs[0].EventID != "trip" || segs[0].Lane != 0 || segs[1].Lane != 1 {
		t.Fatalf("week 2 segments: %+v", segs)
	}
	if segs[0].StartOffset != 1 || segs[0].EndOffset != 3 {
		t.Fatalf("trip offsets: %+v", segs[0])
	}
}

func TestLayoutPostWithDraft(t *testing.T) {
	s, _ := newTestServer(t, nil)
	body := []byte(`{
		"date": "2025-10-07",
		"view": "week",
		"events": [
			{"id": "a", "title": "A", "start": "2025-10-06T00:00:00Z", "end": "2025-10-08T00:00:00Z", "all_day": true},
			{"id": "b", "title": "B", "start": "2025-10-07T09:00:00Z", "end": "2025-10-07T10:00:00Z"}
		],
		"draft": {"calendar_id": "work", "start": "2025-10-07T00:00:00Z", "end": "2025-10-07T00:00:00Z", "all_day": true}
	}`)
	rec := do(t, s.Handler(), http.MethodPost, "/api/layout", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}

	var resp layoutResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Weeks) != 1 {
		t.Fatalf("week view should have one week, got %d", len(resp.Weeks))
	}
	segs := resp.Weeks[0].Segments
	if len(segs) != 2 {
		t.Fatalf("expected all-day bar and draft, got %+v", segs)
	}
	last := segs[len(segs)-1]
	if !last.Draft || !strings.HasPrefix(last.EventID, "temp-") || last.Lane <= segs[0].Lane {
		t.Fatalf("draft should come last above the existing bar: %+v", segs)
	}

	if len(resp.Columns) != 7 {
		t.Fatalf("columns=%d", len(resp.Columns))
	}
	blocks := resp.Columns[2].Blocks
	if len(blocks) != 1 || blocks[0].EventID != "b" || blocks[0].Top != 9*44 || blocks[0].Height != 44 {
		t.Fatalf("timed block: %+v", blocks)
	}
}

func TestLayoutPostRejects(t *testing.T) {
	s, _ := newTestServer(t, nil)
	cases := map[string]string{
		"bad json":       `{`,
		"reversed event": `{"events":[{"id":"x","start":"2025-10-08T00:00:00Z","end":"2025-10-07T00:00:00Z"}]}`,
		"missing id":     `{"events":[{"start":"2025-10-07T00:00:00Z","end":"2025-10-07T00:00:00Z"}]}`,
		"bad draft id":   `{"draft":{"id":"real-1","start":"2025-10-07T00:00:00Z","end":"2025-10-07T00:00:00Z"}}`,
		"bad view":       `{"view":"year"}`,
	}
	for name, body := range cases {
		if rec := do(t, s.Handler(), http.MethodPost, "/api/layout", []byte(body)); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: got %d, want 400", name, rec.Code)
		}
	}
	if rec := do(t, s.Handler(), http.MethodDelete, "/api/layout", nil); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("DELETE: got %d", rec.Code)
	}
}

func TestCalendarSVG(t *testing.T) {
	s, _ := newTestServer(t, nil)
	rec := do(t, s.Handler(), http.MethodGet, "/calendar.svg?date=2025-10-07", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "image/svg+xml") {
		t.Fatalf("content type %q", ct)
	}
	out := rec.Body.String()
	if !strings.Contains(out, `data-ready="true"`) || !strings.Contains(out, "Trip") || !strings.Contains(out, `fill="#FF0000"`) {
		t.Fatalf("svg body incomplete")
	}
}

func TestPreview(t *testing.T) {
	s, _ := newTestServer(t, nil)
	if rec := do(t, s.Handler(), http.MethodGet, "/preview.png", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("no preview path: got %d", rec.Code)
	}

	png := filepath.Join(t.TempDir(), "preview.png")
	if err := os.WriteFile(png, []byte("\x89PNG\r\n\x1a\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	s.Apply(func() *config.Config {
		c := config.DefaultConfig()
		c.PreviewPath = png
		return c
	}())
	if rec := do(t, s.Handler(), http.MethodGet, "/preview.png", nil); rec.Code != http.StatusOK {
		t.Fatalf("preview: got %d", rec.Code)
	}
}

func TestApplySwapsSources(t *testing.T) {
	s, _ := newTestServer(t, nil)
	cfg := config.DefaultConfig()
	cfg.Timezone = "UTC"
	cfg.CacheDir = t.TempDir()
	s.Apply(cfg)

	rec := do(t, s.Handler(), http.MethodGet, "/api/events?date=2025-10-07", nil)
	var resp eventsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Events) != 0 {
		t.Fatalf("expected no events after removing sources, got %d", len(resp.Events))
	}
}

func TestEncodeLayout(t *testing.T) {
	s, _ := newTestServer(t, nil)
	res := s.current().layouts.Engine().Layout(layout.Request{Mode: layout.ModeDay})

	var buf bytes.Buffer
	if err := EncodeLayout(&buf, res); err != nil {
		t.Fatal(err)
	}
	var resp layoutResponse
	if err := json.Unmarshal(buf.Bytes(), &resp); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}
	if resp.Mode != "day" || resp.RangeStart != resp.RangeEnd {
		t.Fatalf("unexpected day layout: %+v", resp)
	}
}
