package layout

import (
	"errors"
	"strings"
	"time"
)

// ViewMode selects which dates are visible around an anchor date.
type ViewMode string

const (
	ModeMonth ViewMode = "month"
	ModeWeek  ViewMode = "week"
	ModeDay   ViewMode = "day"
)

// ErrUnknownMode is returned by ParseMode for unsupported view names.
var ErrUnknownMode = errors.New("layout: unknown view mode")

// ParseMode parses a view mode name. An empty name means month.
func ParseMode(s string) (ViewMode, error) {
	switch ViewMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeMonth:
		return ModeMonth, nil
	case ModeWeek:
		return ModeWeek, nil
	case ModeDay:
		return ModeDay, nil
	}
	return "", ErrUnknownMode
}

// WeekWindow is seven consecutive dates starting on the week-start day.
// Each entry is local midnight in the display location.
type WeekWindow struct {
	Days [7]time.Time
}

// NewWeekWindow builds the window whose first date is day0's date.
func NewWeekWindow(day0 time.Time) WeekWindow {
	var w WeekWindow
	first := midnight(day0)
	for i := range w.Days {
		w.Days[i] = first.AddDate(0, 0, i)
	}
	return w
}

// Start is midnight of the first date.
func (w WeekWindow) Start() time.Time {
	return w.Days[0]
}

// End is the last instant of the seventh date.
func (w WeekWindow) End() time.Time {
	return w.Days[6].AddDate(0, 0, 1).Add(-time.Nanosecond)
}

// Offset returns the day index of t relative to the window's first date.
// Values outside 0..6 mean t falls before or after the window.
func (w WeekWindow) Offset(t time.Time) int {
	return daysBetween(w.Days[0], t.In(w.Days[0].Location()))
}

// Contains reports whether t's date is one of the window's dates.
func (w WeekWindow) Contains(t time.Time) bool {
	o := w.Offset(t)
	return o >= 0 && o <= 6
}

// StartOfWeek returns midnight of the week-start day on or before t.
func StartOfWeek(t time.Time, weekStart time.Weekday) time.Time {
	d := midnight(t)
	diff := (int(d.Weekday()) - int(weekStart) + 7) % 7
	return d.AddDate(0, 0, -diff)
}

// EndOfWeek returns midnight of the last date of t's week.
func EndOfWeek(t time.Time, weekStart time.Weekday) time.Time {
	return StartOfWeek(t, weekStart).AddDate(0, 0, 6)
}

// Partition splits [visibleStart, visibleEnd] into week windows with no gaps
// or overlaps. visibleStart is aligned back to weekStart when it is not
// already. A reversed range yields no windows.
func Partition(visibleStart, visibleEnd time.Time, weekStart time.Weekday) []WeekWindow {
	if visibleEnd.Before(visibleStart) {
		return nil
	}
	last := midnight(visibleEnd.In(visibleStart.Location()))

	var out []WeekWindow
	for d := StartOfWeek(visibleStart, weekStart); !d.After(last); d = d.AddDate(0, 0, 7) {
		out = append(out, NewWeekWindow(d))
	}
	return out
}

// VisibleRange expands an anchor date into the first and last visible dates
// for the given mode. Month views cover whole weeks around the anchor's
// month; unknown modes are treated as month.
func VisibleRange(anchor time.Time, mode ViewMode, weekStart time.Weekday) (time.Time, time.Time) {
	switch mode {
	case ModeDay:
		d := midnight(anchor)
		return d, d
	case ModeWeek:
		return StartOfWeek(anchor, weekStart), EndOfWeek(anchor, weekStart)
	default:
		y, m, _ := anchor.Date()
		first := time.Date(y, m, 1, 0, 0, 0, 0, anchor.Location())
		lastOfMonth := first.AddDate(0, 1, -1)
		return StartOfWeek(first, weekStart), EndOfWeek(lastOfMonth, weekStart)
	}
}
