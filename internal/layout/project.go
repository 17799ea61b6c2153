package layout

import (
	"sort"
	"time"

	"calgrid/internal/model"
)

// Timed track defaults, in pixels.
const (
	DefaultHourHeight = 44
	DefaultMinHeight  = 20

	minutesPerDay = 24 * 60
)

// TrackConfig describes the vertical hour track of week/day views.
type TrackConfig struct {
	// HourHeight is the height of one hour row.
	HourHeight float64 `json:"hour_height"`
	// MinHeight is the smallest height a block is drawn with.
	MinHeight float64 `json:"min_height"`
}

func (c TrackConfig) withDefaults() TrackConfig {
	if c.HourHeight <= 0 {
		c.HourHeight = DefaultHourHeight
	}
	if c.MinHeight <= 0 {
		c.MinHeight = DefaultMinHeight
	}
	return c
}

// DayHeight is the full height of one day column.
func (c TrackConfig) DayHeight() float64 {
	return 24 * c.withDefaults().HourHeight
}

// TimedBlock is a timed event's box within one day column.
type TimedBlock struct {
	Event    *model.CalendarEvent
	DayIndex int
	Offset   float64
	Height   float64

	ContinuesBefore bool
	ContinuesAfter  bool
}

// ProjectDay returns the segments of week w that cover date, in lane order.
func ProjectDay(w WeekWindow, segs []Segment, date time.Time) []Segment {
	off := w.Offset(date)
	if off < 0 || off > 6 {
		return nil
	}

	var out []Segment
	for _, s := range segs {
		if s.Covers(off) {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Lane < out[j].Lane
	})
	return out
}

// ProjectTimed places a timed event on the track of the given day. On days
// strictly inside a multi-day event the block spans the whole track; the
// first day starts at the start time and the last day ends at the end
// time. ok is false for all-day events and for days the event misses.
func ProjectTimed(ev *model.CalendarEvent, date time.Time, track TrackConfig) (TimedBlock, bool) {
	if ev.AllDay {
		return TimedBlock{}, false
	}
	track = track.withDefaults()

	loc := date.Location()
	dayStart := midnight(date)
	nextDay := dayStart.AddDate(0, 0, 1)
	dayEnd := nextDay.Add(-time.Nanosecond)
	if !Overlaps(*ev, dayStart, dayEnd) {
		return TimedBlock{}, false
	}
	// An end at exactly midnight closes the previous day's column.
	if ev.End.Equal(dayStart) && ev.Start.Before(dayStart) {
		return TimedBlock{}, false
	}

	b := TimedBlock{Event: ev}

	startMin := 0
	if start := ev.Start.In(loc); start.Before(dayStart) {
		b.ContinuesBefore = true
	} else {
		startMin = minuteOfDay(start)
	}

	endMin := minutesPerDay
	if end := ev.End.In(loc); end.After(nextDay) {
		b.ContinuesAfter = true
	} else if end.Before(nextDay) {
		endMin = minuteOfDay(end)
	}

	span := endMin - startMin
	if span < 0 {
		span = 0
	}

	b.Offset = float64(startMin) / 60 * track.HourHeight
	b.Height = float64(span) / 60 * track.HourHeight
	if b.Height < track.MinHeight {
		b.Height = track.MinHeight
	}
	return b, true
}
