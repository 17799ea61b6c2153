package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"calgrid/internal/config"
	"calgrid/internal/ics"
	"calgrid/internal/layout"
	appLog "calgrid/internal/log"
)

// DefaultEventsTTL is how long an expanded events snapshot is served before
// the sources are read again.
const DefaultEventsTTL = 2 * time.Minute

// maxSnapshots bounds the per-range events cache.
const maxSnapshots = 16

// Server provides the HTTP API: health, expanded events, layout results and
// the rendered month grid.
type Server struct {
	mux *http.ServeMux

	// EventsTTL overrides DefaultEventsTTL when positive.
	EventsTTL time.Duration

	mu sync.RWMutex
	st *state

	// In-memory cache of expanded events per visible range so repeated
	// requests skip fetch/parse/expand.
	eventsMu  sync.Mutex
	snapshots map[rangeKey]eventsSnapshot
	// gen counts invalidations; a load started under an older gen is
	// returned but not stored.
	gen uint64
}

// state is everything derived from one config generation.
type state struct {
	cfg     *config.Config
	loc     *time.Location
	layouts *layout.Cache
	loader  *ics.Loader
	colors  map[string]string
}

type rangeKey struct {
	start, end string
}

type eventsSnapshot struct {
	res       ics.LoadResult
	updatedAt time.Time
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config) *Server {
	s := &Server{
		mux:       http.NewServeMux(),
		snapshots: make(map[rangeKey]eventsSnapshot),
	}
	s.st = newState(cfg)
	s.registerRoutes()
	return s
}

func newState(cfg *config.Config) *state {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	cfg.Normalize()

	loc, err := cfg.Location()
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", cfg.Timezone)
	}

	return &state{
		cfg:     cfg,
		loc:     loc,
		layouts: layout.NewCache(layout.New(EngineOptions(cfg, loc)), 0),
		loader: &ics.Loader{
			Fetcher:  ics.NewFetcher(cfg.CacheDir),
			Sources:  ics.SourcesFromConfig(cfg.ICS),
			Location: loc,
		},
		colors: Colors(cfg),
	}
}

// EngineOptions maps the layout section of cfg onto engine options.
func EngineOptions(cfg *config.Config, loc *time.Location) layout.Options {
	return layout.Options{
		WeekStart: cfg.WeekStartDay(),
		LaneCap:   cfg.Layout.LaneCap,
		Track: layout.TrackConfig{
			HourHeight: cfg.Layout.HourHeight,
			MinHeight:  cfg.Layout.MinEventHeight,
		},
		MaxBarsPerCell: cfg.Layout.MaxBarsPerCell,
		Location:       loc,
	}
}

// Colors returns the configured color per calendar id.
func Colors(cfg *config.Config) map[string]string {
	colors := make(map[string]string, len(cfg.ICS))
	for _, c := range cfg.ICS {
		if c.Color != "" {
			colors[c.SourceID()] = c.Color
		}
	}
	return colors
}

func (s *Server) current() *state {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st
}

// Apply swaps in a new configuration (e.g. after the config file changed).
// Cached events and layouts of the old configuration are dropped. The listen
// address is not rebound.
func (s *Server) Apply(cfg *config.Config) {
	st := newState(cfg)
	s.mu.Lock()
	s.st = st
	s.mu.Unlock()
	s.Invalidate()
	appLog.Info("server config applied", "ics_count", len(st.loader.Sources), "timezone", st.loc.String())
}

// Invalidate drops every cached events snapshot and layout result.
func (s *Server) Invalidate() {
	s.eventsMu.Lock()
	s.snapshots = make(map[rangeKey]eventsSnapshot)
	s.gen++
	s.eventsMu.Unlock()
	s.current().layouts.Reset()
}

// Refresh drops cached data and re-reads the sources for the current month,
// so the next request is served warm.
func (s *Server) Refresh(ctx context.Context) error {
	s.Invalidate()
	st := s.current()
	first, last := layout.VisibleRange(time.Now().In(st.loc), layout.ModeMonth, st.cfg.WeekStartDay())
	_, err := s.events(ctx, st, first, last)
	return err
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.basicAuthMiddleware(s.mux)
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/events", s.handleEvents)
	s.mux.HandleFunc("/api/layout", s.handleLayout)
	s.mux.HandleFunc("/calendar.svg", s.handleCalendarSVG)
	s.mux.HandleFunc("/preview.png", s.handlePreview)
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth
// when credentials are configured.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ba := s.current().cfg.BasicAuth
		// Empty user name or password means auth is disabled.
		if r.URL.Path == "/health" || ba == nil || ba.Username == "" || ba.Password == "" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, ba.Username) || !secureCompare(p, ba.Password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="calgrid", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handlePreview serves the last captured PNG from cfg.PreviewPath.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	path := s.current().cfg.PreviewPath
	if path == "" {
		http.NotFound(w, r)
		return
	}
	// ServeFile answers 404 for a missing file and 500 for other errors.
	http.ServeFile(w, r, path)
}

// events returns the expanded events of [first, last] (dates, inclusive),
// from the snapshot cache when fresh.
func (s *Server) events(ctx context.Context, st *state, first, last time.Time) (ics.LoadResult, error) {
	key := rangeKey{first.Format(time.DateOnly), last.Format(time.DateOnly)}
	ttl := s.EventsTTL
	if ttl <= 0 {
		ttl = DefaultEventsTTL
	}

	s.eventsMu.Lock()
	snap, ok := s.snapshots[key]
	gen := s.gen
	s.eventsMu.Unlock()
	if ok && time.Since(snap.updatedAt) < ttl {
		return snap.res, nil
	}

	// The range end is the last instant of the last visible date.
	res, err := st.loader.Load(ctx, first, last.AddDate(0, 0, 1).Add(-time.Nanosecond))
	if err != nil {
		return res, err
	}
	if len(res.Errors) > 0 {
		appLog.Error("one or more ICS sources failed", ics.JoinErrors(res.Errors), "error_count", len(res.Errors))
	}

	s.eventsMu.Lock()
	defer s.eventsMu.Unlock()
	if gen != s.gen || s.current() != st {
		appLog.Debug("dropping events loaded before invalidation", "range_start", key.start, "range_end", key.end)
		return res, nil
	}
	if len(s.snapshots) >= maxSnapshots {
		s.snapshots = make(map[rangeKey]eventsSnapshot)
	}
	s.snapshots[key] = eventsSnapshot{res: res, updatedAt: time.Now()}
	return res, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
