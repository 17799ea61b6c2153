package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"calgrid/internal/layout"
	appLog "calgrid/internal/log"
	"calgrid/internal/model"
	"calgrid/internal/render"
)

const maxLayoutBody = 4 << 20

// eventsResponse is the JSON response shape for /api/events.
type eventsResponse struct {
	Events          []model.CalendarEvent `json:"events"`
	TruncatedUIDs   []string              `json:"truncated_uids,omitempty"`
	RangeStart      string                `json:"range_start"`
	RangeEnd        string                `json:"range_end"`
	DisplayTimeZone string                `json:"display_timezone"`
	WeekStart       string                `json:"week_start"`
}

// layoutRequest is the POST /api/layout body.
type layoutRequest struct {
	Date   string                `json:"date"`
	View   string                `json:"view"`
	Events []model.CalendarEvent `json:"events"`
	Draft  *model.CalendarEvent  `json:"draft,omitempty"`
}

type layoutResponse struct {
	Mode       string      `json:"mode"`
	RangeStart string      `json:"range_start"`
	RangeEnd   string      `json:"range_end"`
	Weeks      []weekDTO   `json:"weeks"`
	Cells      []cellDTO   `json:"cells"`
	Columns    []columnDTO `json:"columns,omitempty"`
}

type weekDTO struct {
	Start     string       `json:"start"`
	LaneCount int          `json:"lane_count"`
	Segments  []segmentDTO `json:"segments"`
}

type segmentDTO struct {
	EventID         string `json:"event_id"`
	CalendarID      string `json:"calendar_id"`
	Title           string `json:"title"`
	AllDay          bool   `json:"all_day"`
	StartOffset     int    `json:"start_offset"`
	EndOffset       int    `json:"end_offset"`
	ContinuesBefore bool   `json:"continues_before"`
	ContinuesAfter  bool   `json:"continues_after"`
	Lane            int    `json:"lane"`
	Overflow        bool   `json:"overflow,omitempty"`
	Draft           bool   `json:"draft,omitempty"`
}

type cellBarDTO struct {
	EventID string `json:"event_id"`
	Lane    int    `json:"lane"`
}

type cellDTO struct {
	Date   string       `json:"date"`
	Week   int          `json:"week"`
	Offset int          `json:"offset"`
	Bars   []cellBarDTO `json:"bars"`
	Hidden int          `json:"hidden,omitempty"`
}

type blockDTO struct {
	EventID         string  `json:"event_id"`
	CalendarID      string  `json:"calendar_id"`
	Title           string  `json:"title"`
	Top             float64 `json:"top"`
	Height          float64 `json:"height"`
	ContinuesBefore bool    `json:"continues_before"`
	ContinuesAfter  bool    `json:"continues_after"`
	Draft           bool    `json:"draft,omitempty"`
}

type columnDTO struct {
	Date   string     `json:"date"`
	Blocks []blockDTO `json:"blocks"`
}

// viewParams resolves ?date=YYYY-MM-DD&view=month|week|day. A missing date
// means today in the display zone; a missing view means month.
func viewParams(q url.Values, loc *time.Location) (time.Time, layout.ViewMode, error) {
	return parseView(q.Get("date"), q.Get("view"), loc)
}

func parseView(date, view string, loc *time.Location) (time.Time, layout.ViewMode, error) {
	mode, err := layout.ParseMode(view)
	if err != nil {
		return time.Time{}, "", err
	}
	if date == "" {
		return time.Now().In(loc), mode, nil
	}
	anchor, err := time.ParseInLocation(time.DateOnly, date, loc)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("invalid date %q: want YYYY-MM-DD", date)
	}
	return anchor, mode, nil
}

// handleEvents returns the expanded events of the configured sources inside
// the visible range of ?date and ?view.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	st := s.current()

	anchor, mode, err := viewParams(r.URL.Query(), st.loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	first, last := layout.VisibleRange(anchor, mode, st.cfg.WeekStartDay())

	appLog.Info("api events request",
		"view", string(mode),
		"range_start", first.Format(time.DateOnly),
		"range_end", last.Format(time.DateOnly),
	)

	res, err := s.events(r.Context(), st, first, last)
	if err != nil {
		appLog.Error("api events: load failed", err)
		writeError(w, http.StatusInternalServerError, "failed to load events")
		return
	}

	events := res.Events
	if events == nil {
		events = []model.CalendarEvent{}
	}
	writeJSON(w, http.StatusOK, eventsResponse{
		Events:          events,
		TruncatedUIDs:   res.TruncatedUIDs,
		RangeStart:      first.Format(time.DateOnly),
		RangeEnd:        last.Format(time.DateOnly),
		DisplayTimeZone: st.loc.String(),
		WeekStart:       st.cfg.WeekStart,
	})
}

// handleLayout serves GET (layout over the configured sources) and POST
// (layout over the events in the request body, plus an optional draft).
func (s *Server) handleLayout(w http.ResponseWriter, r *http.Request) {
	st := s.current()

	var req layout.Request
	switch r.Method {
	case http.MethodGet:
		anchor, mode, err := viewParams(r.URL.Query(), st.loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		first, last := layout.VisibleRange(anchor, mode, st.cfg.WeekStartDay())
		res, err := s.events(r.Context(), st, first, last)
		if err != nil {
			appLog.Error("api layout: load failed", err)
			writeError(w, http.StatusInternalServerError, "failed to load events")
			return
		}
		req = layout.Request{Anchor: anchor, Mode: mode, Events: res.Events}

	case http.MethodPost:
		var err error
		req, err = decodeLayoutRequest(w, r, st.loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

	default:
		w.Header().Set("Allow", "GET, POST")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	writeJSON(w, http.StatusOK, toLayoutResponse(st.layouts.Layout(req)))
}

func decodeLayoutRequest(w http.ResponseWriter, r *http.Request, loc *time.Location) (layout.Request, error) {
	var body layoutRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxLayoutBody))
	if err := dec.Decode(&body); err != nil {
		return layout.Request{}, fmt.Errorf("invalid JSON body: %w", err)
	}

	anchor, mode, err := parseView(body.Date, body.View, loc)
	if err != nil {
		return layout.Request{}, err
	}

	for _, ev := range body.Events {
		if err := validateEvent(ev); err != nil {
			return layout.Request{}, err
		}
	}

	req := layout.Request{Anchor: anchor, Mode: mode, Events: body.Events}
	if body.Draft != nil {
		draft := *body.Draft
		if draft.ID == "" {
			draft.ID = model.NewDraft(draft.CalendarID, draft.Start, draft.End).ID
		}
		if !draft.IsDraft() {
			return layout.Request{}, fmt.Errorf("draft id %q must start with %q", draft.ID, model.DraftIDPrefix)
		}
		if err := validateEvent(draft); err != nil {
			return layout.Request{}, err
		}
		req.Draft = &draft
	}
	return req, nil
}

func validateEvent(ev model.CalendarEvent) error {
	if strings.TrimSpace(ev.ID) == "" {
		return errors.New("event id is required")
	}
	if ev.Start.IsZero() || ev.End.IsZero() {
		return fmt.Errorf("event %q: start and end are required", ev.ID)
	}
	if ev.End.Before(ev.Start) {
		return fmt.Errorf("event %q ends before it starts", ev.ID)
	}
	return nil
}

// EncodeLayout writes res as indented JSON in the /api/layout format.
func EncodeLayout(w io.Writer, res layout.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(toLayoutResponse(res))
}

func toLayoutResponse(res layout.Result) layoutResponse {
	out := layoutResponse{
		Mode:       string(res.Mode),
		RangeStart: res.RangeStart.Format(time.DateOnly),
		RangeEnd:   res.RangeEnd.Format(time.DateOnly),
		Weeks:      make([]weekDTO, 0, len(res.Weeks)),
		Cells:      make([]cellDTO, 0, len(res.Cells)),
	}

	for _, wk := range res.Weeks {
		dto := weekDTO{
			Start:     wk.Window.Start().Format(time.DateOnly),
			LaneCount: wk.LaneCount,
			Segments:  make([]segmentDTO, 0, len(wk.Segments)),
		}
		for _, seg := range wk.Segments {
			dto.Segments = append(dto.Segments, segmentDTO{
				EventID:         seg.Event.ID,
				CalendarID:      seg.Event.CalendarID,
				Title:           seg.Event.Title,
				AllDay:          seg.Event.AllDay,
				StartOffset:     seg.StartOffset,
				EndOffset:       seg.EndOffset,
				ContinuesBefore: seg.ContinuesBefore,
				ContinuesAfter:  seg.ContinuesAfter,
				Lane:            seg.Lane,
				Overflow:        seg.Overflow,
				Draft:           seg.Event.IsDraft(),
			})
		}
		out.Weeks = append(out.Weeks, dto)
	}

	for _, c := range res.Cells {
		dto := cellDTO{
			Date:   c.Date.Format(time.DateOnly),
			Week:   c.Week,
			Offset: c.Offset,
			Bars:   make([]cellBarDTO, 0, len(c.Bars)),
			Hidden: c.Hidden,
		}
		for _, b := range c.Bars {
			dto.Bars = append(dto.Bars, cellBarDTO{EventID: b.Event.ID, Lane: b.Lane})
		}
		out.Cells = append(out.Cells, dto)
	}

	for _, col := range res.Columns {
		dto := columnDTO{
			Date:   col.Date.Format(time.DateOnly),
			Blocks: make([]blockDTO, 0, len(col.Blocks)),
		}
		for _, b := range col.Blocks {
			dto.Blocks = append(dto.Blocks, blockDTO{
				EventID:         b.Event.ID,
				CalendarID:      b.Event.CalendarID,
				Title:           b.Event.Title,
				Top:             b.Offset,
				Height:          b.Height,
				ContinuesBefore: b.ContinuesBefore,
				ContinuesAfter:  b.ContinuesAfter,
				Draft:           b.Event.IsDraft(),
			})
		}
		out.Columns = append(out.Columns, dto)
	}
	return out
}

// handleCalendarSVG renders the configured sources as an SVG grid.
func (s *Server) handleCalendarSVG(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	st := s.current()

	anchor, mode, err := viewParams(r.URL.Query(), st.loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	first, last := layout.VisibleRange(anchor, mode, st.cfg.WeekStartDay())
	events, err := s.events(r.Context(), st, first, last)
	if err != nil {
		appLog.Error("calendar svg: load failed", err)
		writeError(w, http.StatusInternalServerError, "failed to load events")
		return
	}

	res := st.layouts.Layout(layout.Request{Anchor: anchor, Mode: mode, Events: events.Events})
	svg := render.MonthSVG(res, render.SVGOptions{
		MaxLanes: st.cfg.Layout.MaxBarsPerCell,
		Colors:   st.colors,
	})

	w.Header().Set("Content-Type", "image/svg+xml; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(svg))
}
