package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// DraftIDPrefix marks events that have not been persisted yet.
const DraftIDPrefix = "temp-"

// CalendarEvent is a single concrete event as handed to the layout engine.
//
// Start/End are in the display timezone. For all-day events End is the
// inclusive last date; for timed events it is the inclusive end instant.
// Callers are expected to reject events with End before Start.
type CalendarEvent struct {
	ID         string `json:"id"`
	CalendarID string `json:"calendar_id"`

	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Location    string `json:"location,omitempty"`

	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	AllDay bool      `json:"all_day"`

	// Authorization flags decided by whoever supplied the event. Passed
	// through untouched.
	CanEdit   bool `json:"can_edit,omitempty"`
	CanDelete bool `json:"can_delete,omitempty"`
}

// IsDraft reports whether the event is an unsaved draft.
func (e CalendarEvent) IsDraft() bool {
	return strings.HasPrefix(e.ID, DraftIDPrefix)
}

// NewDraft returns an all-day draft event spanning start..end on the given
// calendar. New events start out all-day, matching the creation flow of
// the grid UI.
func NewDraft(calendarID string, start, end time.Time) CalendarEvent {
	if end.Before(start) {
		start, end = end, start
	}
	return CalendarEvent{
		ID:         DraftIDPrefix + uuid.NewString(),
		CalendarID: calendarID,
		Start:      start,
		End:        end,
		AllDay:     true,
		CanEdit:    true,
		CanDelete:  true,
	}
}
