package layout

import "sort"

// SortSegments orders one week's segments for lane assignment:
//
//  1. drafts last
//  2. all-day before timed
//  3. all-day: longer first, then earlier start
//  4. timed: earlier start
//
// Event ID breaks remaining ties so the result does not depend on the
// order events were supplied in.
func SortSegments(segs []Segment) {
	sort.SliceStable(segs, func(i, j int) bool {
		return lessSegment(segs[i], segs[j])
	})
}

func lessSegment(a, b Segment) bool {
	ae, be := a.Event, b.Event

	if ad, bd := ae.IsDraft(), be.IsDraft(); ad != bd {
		return bd
	}
	if ae.AllDay != be.AllDay {
		return ae.AllDay
	}
	if ae.AllDay {
		if da, db := DurationDays(*ae), DurationDays(*be); da != db {
			return da > db
		}
	}
	if !ae.Start.Equal(be.Start) {
		return ae.Start.Before(be.Start)
	}
	return ae.ID < be.ID
}
