package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"calgrid/internal/ics"
	"calgrid/internal/layout"
	appLog "calgrid/internal/log"
	"calgrid/internal/render"
	"calgrid/internal/web"
)

var (
	layoutDate   string
	layoutView   string
	layoutFormat string
	layoutICS    []string
)

var layoutCmd = &cobra.Command{
	Use:   "layout",
	Short: "Lay out events once and print the grid",
	Long: `Load the configured ICS sources (or the files given with --ics), lay
them out for one view and print the result.

Examples:
  calgrid layout
  calgrid layout --date 2025-10-01 --view week
  calgrid layout --ics work.ics --ics home.ics --format json`,
	RunE: runLayout,
}

func init() {
	layoutCmd.Flags().StringVarP(&layoutDate, "date", "d", "", "Anchor date YYYY-MM-DD (default today)")
	layoutCmd.Flags().StringVarP(&layoutView, "view", "v", "month", "View mode: month, week or day")
	layoutCmd.Flags().StringVarP(&layoutFormat, "format", "f", "text", "Output format: text or json")
	layoutCmd.Flags().StringSliceVar(&layoutICS, "ics", nil, "ICS file or URL to use instead of the configured sources (repeatable)")

	rootCmd.AddCommand(layoutCmd)
}

func runLayout(cmd *cobra.Command, _ []string) error {
	format := strings.ToLower(layoutFormat)
	if format != "text" && format != "json" {
		return fmt.Errorf("unknown format %q (want text or json)", layoutFormat)
	}

	mode, err := layout.ParseMode(layoutView)
	if err != nil {
		return fmt.Errorf("--view %q: %w", layoutView, err)
	}

	loc, err := conf.Location()
	if err != nil {
		appLog.Warn("timezone not found; using local time", "timezone", conf.Timezone, "err", err)
	}

	anchor := time.Now().In(loc)
	if layoutDate != "" {
		anchor, err = time.ParseInLocation(time.DateOnly, layoutDate, loc)
		if err != nil {
			return fmt.Errorf("--date %q: want YYYY-MM-DD", layoutDate)
		}
	}

	sources := ics.SourcesFromConfig(conf.ICS)
	if len(layoutICS) > 0 {
		sources = sourcesFromArgs(layoutICS)
	}

	first, last := layout.VisibleRange(anchor, mode, conf.WeekStartDay())
	loader := &ics.Loader{
		Fetcher:  ics.NewFetcher(conf.CacheDir),
		Sources:  sources,
		Location: loc,
	}
	loaded, err := loader.Load(cmd.Context(), first, last.AddDate(0, 0, 1).Add(-time.Nanosecond))
	if err != nil {
		return err
	}
	if err := ics.JoinErrors(loaded.Errors); err != nil {
		appLog.Warn("some sources were skipped", "err", err)
	}

	engine := layout.New(web.EngineOptions(conf, loc))
	res := engine.Layout(layout.Request{Anchor: anchor, Mode: mode, Events: loaded.Events})

	out := cmd.OutOrStdout()
	if format == "json" {
		return web.EncodeLayout(out, res)
	}

	colors := web.Colors(conf)
	_, err = fmt.Fprint(out, render.Terminal(res, func(id string) string { return colors[id] }))
	return err
}

// sourcesFromArgs names each --ics argument after its file name.
func sourcesFromArgs(args []string) []ics.Source {
	sources := make([]ics.Source, 0, len(args))
	for _, a := range args {
		id := strings.TrimSuffix(filepath.Base(a), filepath.Ext(a))
		sources = append(sources, ics.Source{ID: id, URL: a})
	}
	return sources
}
