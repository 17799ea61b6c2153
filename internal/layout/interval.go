// Package layout computes calendar grid placement for events: which week
// windows an event touches, which lane (row) each week segment occupies,
// which bars appear in a day cell and where timed events sit on an hourly
// track.
//
// Everything here is a pure function of its inputs. Nothing is cached
// across calls except by the optional Cache wrapper.
package layout

import (
	"time"

	"calgrid/internal/model"
)

const day = 24 * time.Hour

// Overlaps reports whether ev intersects the closed range
// [rangeStart, rangeEnd]. Touching endpoints count as overlap.
func Overlaps(ev model.CalendarEvent, rangeStart, rangeEnd time.Time) bool {
	return !ev.End.Before(rangeStart) && !ev.Start.After(rangeEnd)
}

// DurationDays returns the number of calendar-day boundaries between the
// event's start date and end date. A single-day event has duration 0.
func DurationDays(ev model.CalendarEvent) int {
	n := daysBetween(ev.Start, ev.End.In(ev.Start.Location()))
	if n < 0 {
		return 0
	}
	return n
}

// civil maps t to midnight UTC of its own calendar date, so date
// differences are never skewed by DST.
func civil(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// daysBetween counts calendar days from a's date to b's date, each taken in
// its own location.
func daysBetween(a, b time.Time) int {
	return int(civil(b).Sub(civil(a)) / day)
}

// dateIn is midnight in loc of the calendar date t shows in its own
// location.
func dateIn(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func minuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}
