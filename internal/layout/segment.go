package layout

import "calgrid/internal/model"

// Segment is the part of one event that falls inside one week window.
//
// Event points into the event slice of the layout pass that produced the
// segment and must not be retained beyond it.
type Segment struct {
	Event *model.CalendarEvent

	// Week is the index of the window within the layout result.
	Week int

	// StartOffset/EndOffset are inclusive day indexes (0..6).
	StartOffset int
	EndOffset   int

	ContinuesBefore bool
	ContinuesAfter  bool

	Lane int
	// Overflow is set when the segment was forced into the cap lane on top
	// of another segment.
	Overflow bool
}

// Width is the number of days the segment covers.
func (s Segment) Width() int {
	return s.EndOffset - s.StartOffset + 1
}

// Covers reports whether the segment occupies the given day offset.
func (s Segment) Covers(offset int) bool {
	return offset >= s.StartOffset && offset <= s.EndOffset
}

func (s Segment) collides(o Segment) bool {
	return !(s.EndOffset < o.StartOffset || o.EndOffset < s.StartOffset)
}

// Clip computes ev's segment within w. ok is false when the event does not
// touch the window, or when its range is reversed.
func Clip(ev *model.CalendarEvent, w WeekWindow) (seg Segment, ok bool) {
	if !Overlaps(*ev, w.Start(), w.End()) {
		return Segment{}, false
	}

	seg = Segment{
		Event:       ev,
		StartOffset: w.Offset(ev.Start),
		EndOffset:   w.Offset(ev.End),
	}
	if seg.StartOffset < 0 {
		seg.StartOffset = 0
		seg.ContinuesBefore = true
	}
	if seg.EndOffset > 6 {
		seg.EndOffset = 6
		seg.ContinuesAfter = true
	}
	if seg.EndOffset < seg.StartOffset {
		return Segment{}, false
	}
	return seg, true
}
