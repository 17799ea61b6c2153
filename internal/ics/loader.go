package ics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"calgrid/internal/config"
	appLog "calgrid/internal/log"
	"calgrid/internal/model"
)

// SourcesFromConfig converts configured feeds into sources, skipping
// entries without a URL.
func SourcesFromConfig(cfgs []config.ICSConfig) []Source {
	sources := make([]Source, 0, len(cfgs))
	for _, c := range cfgs {
		if c.URL == "" {
			continue
		}
		sources = append(sources, Source{ID: c.SourceID(), URL: c.URL})
	}
	return sources
}

// Loader runs the fetch → parse → expand pipeline for a set of sources.
type Loader struct {
	Fetcher  *Fetcher
	Sources  []Source
	Location *time.Location
}

// LoadResult is the outcome of one Load call.
type LoadResult struct {
	Events        []model.CalendarEvent
	TruncatedUIDs []string
	// Errors holds per-source failures that were skipped.
	Errors []error
}

// Load returns every event of every source overlapping [rangeStart,
// rangeEnd]. A failing source is skipped and reported in Errors; Load only
// fails when the range itself is invalid.
func (l *Loader) Load(ctx context.Context, rangeStart, rangeEnd time.Time) (LoadResult, error) {
	var res LoadResult
	if len(l.Sources) == 0 {
		return res, nil
	}

	fetched, fetchErrs := l.Fetcher.FetchAll(ctx, l.Sources)
	res.Errors = append(res.Errors, fetchErrs...)

	parsed := make([]ParsedEvent, 0)
	for _, fr := range fetched {
		evs, err := ParseICS(fr.Source, fr.Body)
		if err != nil {
			appLog.Error("ics parse failed", err, "id", fr.Source.ID)
			res.Errors = append(res.Errors, err)
			continue
		}
		parsed = append(parsed, evs...)
	}

	expanded, err := ExpandOccurrences(parsed, ExpandConfig{
		DisplayLocation: l.Location,
		RangeStart:      rangeStart,
		RangeEnd:        rangeEnd,
	})
	if err != nil {
		return res, fmt.Errorf("ics: load: %w", err)
	}

	res.Events = expanded.Events
	res.TruncatedUIDs = expanded.TruncatedEvents
	appLog.Info("ics load completed",
		"sources", len(l.Sources),
		"events", len(res.Events),
		"errors", len(res.Errors),
	)
	return res, nil
}

// JoinErrors folds per-source errors into one, or nil.
func JoinErrors(errs []error) error {
	return errors.Join(errs...)
}
