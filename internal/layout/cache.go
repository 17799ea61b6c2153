package layout

import (
	"crypto/sha256"
	"fmt"
	"io"
	"sync"

	"calgrid/internal/model"
)

const defaultCacheSize = 32

// Cache memoizes Engine results keyed by a fingerprint of the request and
// the engine options. Cached results are shared between callers and must be
// treated as read-only.
type Cache struct {
	engine *Engine
	size   int

	mu      sync.Mutex
	entries map[[sha256.Size]byte]Result
	order   [][sha256.Size]byte
	hits    uint64
	misses  uint64
}

// NewCache wraps engine with a memo of at most size results (<= 0 picks a
// small default). Oldest entries are evicted first.
func NewCache(engine *Engine, size int) *Cache {
	if size <= 0 {
		size = defaultCacheSize
	}
	return &Cache{
		engine:  engine,
		size:    size,
		entries: make(map[[sha256.Size]byte]Result, size),
	}
}

// Engine returns the wrapped engine.
func (c *Cache) Engine() *Engine {
	return c.engine
}

// Layout returns the memoized result for req, computing it on a miss.
func (c *Cache) Layout(req Request) Result {
	key := Fingerprint(c.engine.opts, req)

	c.mu.Lock()
	if res, ok := c.entries[key]; ok {
		c.hits++
		c.mu.Unlock()
		return res
	}
	c.misses++
	c.mu.Unlock()

	res := c.engine.Layout(req)

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[key]; !ok {
		if len(c.order) >= c.size {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.entries, oldest)
		}
		c.order = append(c.order, key)
	}
	c.entries[key] = res
	return res
}

// Reset drops every memoized result.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[[sha256.Size]byte]Result, c.size)
	c.order = nil
}

// Stats returns hit and miss counters.
func (c *Cache) Stats() (hits, misses uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

// Fingerprint hashes everything a layout pass depends on: the visible range
// rather than the raw anchor, so any anchor inside the same month or week
// maps to the same key.
func Fingerprint(opts Options, req Request) [sha256.Size]byte {
	h := sha256.New()

	loc := "Local"
	if opts.Location != nil {
		loc = opts.Location.String()
	}
	mode := req.Mode
	if mode == "" {
		mode = ModeMonth
	}
	anchor := req.Anchor
	if opts.Location != nil {
		anchor = anchor.In(opts.Location)
	}
	first, last := VisibleRange(anchor, mode, opts.WeekStart)

	fmt.Fprintf(h, "%s|%s|%s|%d|%d|%g|%g|%d|%s\n",
		mode, first.Format("2006-01-02"), last.Format("2006-01-02"),
		opts.WeekStart, opts.LaneCap,
		opts.Track.HourHeight, opts.Track.MinHeight, opts.MaxBarsPerCell, loc)

	for _, ev := range req.Events {
		writeEvent(h, "e", ev)
	}
	if req.Draft != nil {
		writeEvent(h, "d", *req.Draft)
	}

	var out [sha256.Size]byte
	copy(out[:], h.Sum(nil))
	return out
}

func writeEvent(w io.Writer, kind string, ev model.CalendarEvent) {
	fmt.Fprintf(w, "%s|%q|%q|%q|%q|%q|%d|%d|%t|%t|%t\n",
		kind, ev.ID, ev.CalendarID, ev.Title, ev.Description, ev.Location,
		ev.Start.UnixNano(), ev.End.UnixNano(), ev.AllDay, ev.CanEdit, ev.CanDelete)
}
