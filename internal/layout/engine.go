package layout

import (
	"sort"
	"time"

	"calgrid/internal/model"
)

// Options configures an Engine.
type Options struct {
	// WeekStart is the first weekday of every week window.
	WeekStart time.Weekday
	// LaneCap is the overflow lane index; <= 0 means DefaultLaneCap.
	LaneCap int
	// Track sizes timed blocks in week/day views.
	Track TrackConfig
	// MaxBarsPerCell truncates day cells and reports the rest as Hidden.
	// Zero keeps every bar.
	MaxBarsPerCell int
	// Location is the display timezone. Nil means time.Local.
	Location *time.Location
}

// Request is the input of one layout pass.
type Request struct {
	Anchor time.Time
	Mode   ViewMode
	Events []model.CalendarEvent
	// Draft, if set, is laid out with the lowest stacking priority.
	Draft *model.CalendarEvent
}

// WeekLayout is one week window with its lane-assigned segments, sorted in
// placement order.
type WeekLayout struct {
	Window    WeekWindow
	Segments  []Segment
	LaneCount int
}

// DayCell is what one date of the bar area shows.
type DayCell struct {
	Date   time.Time
	Week   int
	Offset int
	Bars   []Segment
	Hidden int
}

// DayColumn holds the timed blocks of one date in week/day views.
type DayColumn struct {
	Date     time.Time
	DayIndex int
	Blocks   []TimedBlock
}

// Result is the full output of a layout pass.
type Result struct {
	Mode ViewMode
	// RangeStart/RangeEnd are the first and last visible dates.
	RangeStart time.Time
	RangeEnd   time.Time

	Weeks   []WeekLayout
	Cells   []DayCell
	Columns []DayColumn
}

// Engine runs layout passes. It holds configuration only and is safe for
// concurrent use.
type Engine struct {
	opts Options
}

// New returns an Engine with defaults filled into opts.
func New(opts Options) *Engine {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.LaneCap <= 0 {
		opts.LaneCap = DefaultLaneCap
	}
	if opts.MaxBarsPerCell < 0 {
		opts.MaxBarsPerCell = 0
	}
	opts.Track = opts.Track.withDefaults()
	return &Engine{opts: opts}
}

// Options returns the effective options.
func (e *Engine) Options() Options {
	return e.opts
}

// Layout computes the grid for req. Month views stack every event as bars;
// week and day views stack all-day events and put timed events in day
// columns. The caller's events are copied and never modified.
func (e *Engine) Layout(req Request) Result {
	mode := req.Mode
	if mode == "" {
		mode = ModeMonth
	}

	anchor := req.Anchor.In(e.opts.Location)
	first, last := VisibleRange(anchor, mode, e.opts.WeekStart)

	res := Result{
		Mode:       mode,
		RangeStart: first,
		RangeEnd:   last,
	}

	events := e.prepare(req)
	asBar := func(ev *model.CalendarEvent) bool {
		return mode == ModeMonth || ev.AllDay
	}

	for wi, w := range Partition(first, last, e.opts.WeekStart) {
		var segs []Segment
		for i := range events {
			ev := &events[i]
			if !asBar(ev) {
				continue
			}
			if seg, ok := Clip(ev, w); ok {
				seg.Week = wi
				segs = append(segs, seg)
			}
		}
		SortSegments(segs)
		lanes := AssignLanes(segs, e.opts.LaneCap)
		res.Weeks = append(res.Weeks, WeekLayout{Window: w, Segments: segs, LaneCount: lanes})

		for off, d := range w.Days {
			if d.Before(first) || d.After(last) {
				continue
			}
			res.Cells = append(res.Cells, e.cell(wi, off, w, segs, d))
		}
	}

	if mode != ModeMonth {
		for i, d := 0, first; !d.After(last); i, d = i+1, d.AddDate(0, 0, 1) {
			res.Columns = append(res.Columns, e.column(events, i, d))
		}
	}

	return res
}

func (e *Engine) prepare(req Request) []model.CalendarEvent {
	n := len(req.Events)
	if req.Draft != nil {
		n++
	}
	events := make([]model.CalendarEvent, 0, n)
	for _, ev := range req.Events {
		events = append(events, e.localize(ev))
	}
	if req.Draft != nil {
		events = append(events, e.localize(*req.Draft))
	}
	return events
}

// localize moves ev into the display location. All-day events keep their
// calendar dates: each bound is rebuilt as a local midnight from the date it
// carries in its own offset.
func (e *Engine) localize(ev model.CalendarEvent) model.CalendarEvent {
	if ev.AllDay {
		ev.Start = dateIn(ev.Start, e.opts.Location)
		ev.End = dateIn(ev.End, e.opts.Location)
		return ev
	}
	ev.Start = ev.Start.In(e.opts.Location)
	ev.End = ev.End.In(e.opts.Location)
	return ev
}

func (e *Engine) cell(week, off int, w WeekWindow, segs []Segment, d time.Time) DayCell {
	c := DayCell{
		Date:   d,
		Week:   week,
		Offset: off,
		Bars:   ProjectDay(w, segs, d),
	}
	if limit := e.opts.MaxBarsPerCell; limit > 0 && len(c.Bars) > limit {
		c.Hidden = len(c.Bars) - limit
		c.Bars = c.Bars[:limit]
	}
	return c
}

func (e *Engine) column(events []model.CalendarEvent, idx int, d time.Time) DayColumn {
	col := DayColumn{Date: d, DayIndex: idx}
	for i := range events {
		if b, ok := ProjectTimed(&events[i], d, e.opts.Track); ok {
			b.DayIndex = idx
			col.Blocks = append(col.Blocks, b)
		}
	}
	sort.SliceStable(col.Blocks, func(i, j int) bool {
		a, b := col.Blocks[i], col.Blocks[j]
		if a.Offset != b.Offset {
			return a.Offset < b.Offset
		}
		return a.Event.ID < b.Event.ID
	})
	return col
}
