package ics

import (
	"errors"
	"time"

	"github.com/teambition/rrule-go"

	appLog "calgrid/internal/log"
	"calgrid/internal/model"
)

const defaultMaxOccurrencesPerEvent = 5000

// ExpandConfig controls recurrence expansion.
type ExpandConfig struct {
	// DisplayLocation is the zone events are converted to. Nil means
	// time.Local.
	DisplayLocation *time.Location

	// RangeStart/RangeEnd bound the occurrences (inclusive).
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrencesPerEvent caps runaway RRULEs. Zero picks a default.
	MaxOccurrencesPerEvent int
}

// ExpandResult wraps the expanded events and the UIDs that hit the cap.
type ExpandResult struct {
	Events          []model.CalendarEvent
	TruncatedEvents []string
}

// ExpandOccurrences turns parsed VEVENTs into concrete calendar events inside
// the configured range: single events, RRULE series with EXDATEs and
// RECURRENCE-ID overrides. All-day events come out with an inclusive end
// date, timed events with their end instant, all in the display zone.
func ExpandOccurrences(events []ParsedEvent, cfg ExpandConfig) (ExpandResult, error) {
	var result ExpandResult

	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return result, errors.New("ics: expand range end is before start")
	}
	if cfg.DisplayLocation == nil {
		cfg.DisplayLocation = time.Local
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	// Group base events and overrides by UID, keeping first-seen order so
	// output is stable.
	var uids []string
	baseByUID := make(map[string][]ParsedEvent)
	overridesByUID := make(map[string][]ParsedEvent)
	for _, ev := range events {
		if ev.IsOverride && ev.Recurrence != nil {
			overridesByUID[ev.UID] = append(overridesByUID[ev.UID], ev)
			continue
		}
		if _, seen := baseByUID[ev.UID]; !seen {
			uids = append(uids, ev.UID)
		}
		baseByUID[ev.UID] = append(baseByUID[ev.UID], ev)
	}

	out := make([]model.CalendarEvent, 0)
	for _, uid := range uids {
		truncated := false
		for _, ev := range baseByUID[uid] {
			occ, hitCap := expandEvent(ev, overridesByUID[uid], cfg)
			truncated = truncated || hitCap
			out = append(out, occ...)
		}
		if truncated {
			result.TruncatedEvents = append(result.TruncatedEvents, uid)
			appLog.Warn("expand: occurrences truncated", "uid", uid, "cap", cfg.MaxOccurrencesPerEvent)
		}
	}

	result.Events = out
	return result, nil
}

func expandEvent(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) ([]model.CalendarEvent, bool) {
	if ev.RawRRule == "" {
		return expandSingleEvent(ev, overrides, cfg), false
	}
	return expandRecurringEvent(ev, overrides, cfg)
}

func expandSingleEvent(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) []model.CalendarEvent {
	if o, ok := findOverrideForStart(overrides, ev.Start); ok {
		ev = o
	}
	if !timeRangesOverlap(ev.Start, ev.End, cfg.RangeStart, cfg.RangeEnd) {
		return nil
	}
	return []model.CalendarEvent{makeEvent(ev, ev.Start, ev.End, "", cfg.DisplayLocation)}
}

func expandRecurringEvent(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) ([]model.CalendarEvent, bool) {
	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		appLog.Error("expand: failed to parse RRULE", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return nil, false
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	// Widen the lower bound by the event duration so instances that began
	// before the range but are still running are included.
	dur := ev.End.Sub(ev.Start)
	rangeStart := cfg.RangeStart.Add(-dur).In(ev.Start.Location())
	rangeEnd := cfg.RangeEnd.In(ev.Start.Location())

	starts := set.Between(rangeStart, rangeEnd, true)
	hitCap := false
	if len(starts) > cfg.MaxOccurrencesPerEvent {
		starts = starts[:cfg.MaxOccurrencesPerEvent]
		hitCap = true
	}

	out := make([]model.CalendarEvent, 0, len(starts))
	for _, occStart := range starts {
		base := ev
		start, end := occStart, occStart.Add(dur)
		if ev.AllDay {
			// Keep the whole-day span; Add would drift across DST.
			start = time.Date(occStart.Year(), occStart.Month(), occStart.Day(), 0, 0, 0, 0, occStart.Location())
			end = start.AddDate(0, 0, allDaySpan(ev))
		}
		key := occStart.Format(time.RFC3339)

		if o, ok := findOverrideForStart(overrides, occStart); ok {
			base = o
			start, end = o.Start, o.End
		}
		if !timeRangesOverlap(start, end, cfg.RangeStart, cfg.RangeEnd) {
			continue
		}
		out = append(out, makeEvent(base, start, end, key, cfg.DisplayLocation))
	}
	return out, hitCap
}

// allDaySpan is the number of dates an all-day event covers (DTEND is
// exclusive), at least one.
func allDaySpan(ev ParsedEvent) int {
	sy, sm, sd := ev.Start.Date()
	ey, em, ed := ev.End.Date()
	s := time.Date(sy, sm, sd, 0, 0, 0, 0, time.UTC)
	e := time.Date(ey, em, ed, 0, 0, 0, 0, time.UTC)
	n := int(e.Sub(s) / (24 * time.Hour))
	if n < 1 {
		return 1
	}
	return n
}

// findOverrideForStart returns the override whose RECURRENCE-ID equals
// start.
func findOverrideForStart(overrides []ParsedEvent, start time.Time) (ParsedEvent, bool) {
	for _, ov := range overrides {
		if ov.Recurrence != nil && ov.Recurrence.Equal(start) {
			return ov, true
		}
	}
	return ParsedEvent{}, false
}

// makeEvent converts one occurrence into a model.CalendarEvent. instanceKey
// is empty for non-recurring events, whose id is the UID alone.
func makeEvent(ev ParsedEvent, start, end time.Time, instanceKey string, displayLoc *time.Location) model.CalendarEvent {
	id := ev.UID
	if instanceKey != "" {
		id = ev.UID + "/" + instanceKey
	}

	out := model.CalendarEvent{
		ID:          id,
		CalendarID:  ev.Source.ID,
		Title:       ev.Summary,
		Description: ev.Description,
		Location:    ev.Location,
		AllDay:      ev.AllDay,
	}

	if ev.AllDay {
		// All-day values are dates, not instants: keep the calendar date
		// and make the exclusive DTEND inclusive.
		out.Start = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, displayLoc)
		last := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, displayLoc).AddDate(0, 0, -1)
		if last.Before(out.Start) {
			last = out.Start
		}
		out.End = last
		return out
	}

	out.Start = start.In(displayLoc)
	out.End = end.In(displayLoc)
	return out
}

func timeRangesOverlap(aStart, aEnd, bStart, bEnd time.Time) bool {
	return !aEnd.Before(bStart) && !bEnd.Before(aStart)
}
