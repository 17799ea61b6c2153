// calgrid lays out calendar events on a week-row grid, serves the result
// over HTTP and renders it to the terminal or a PNG preview.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"calgrid/internal/config"
	appLog "calgrid/internal/log"
)

var version = "0.1.0-dev"

// Global flags.
var (
	configPath string
	logLevel   string
)

// conf is the loaded configuration, set by the root PersistentPreRunE.
var conf *config.Config

var rootCmd = &cobra.Command{
	Use:   "calgrid",
	Short: "Calendar grid layout engine and server",
	Long: `calgrid turns ICS calendars into a month/week/day grid: multi-day bars
stacked in lanes, timed blocks on an hour track.

Examples:
  calgrid serve --config ./calgrid.yaml
  calgrid layout --date 2025-10-01 --view month
  calgrid capture --out preview.png`,
	Version:           version,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "calgrid.yaml", "Path to config file (created with defaults if missing)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		if cfg == nil || errors.Is(err, config.ErrEmptyPath) {
			return fmt.Errorf("load config: %w", err)
		}
		// First-run save failed; keep going with the defaults.
		appLog.Warn("could not write default config", "config_path", configPath, "err", err)
	}

	level := cfg.LogLevel
	if logLevel != "" {
		level = logLevel
	}
	appLog.SetLevel(appLog.ParseLevel(level))

	appLog.Debug("effective config",
		"command", cmd.Name(),
		"listen", cfg.Listen,
		"timezone", cfg.Timezone,
		"week_start", cfg.WeekStart,
		"refresh", cfg.RefreshCron,
		"ics_count", len(cfg.ICS),
	)
	conf = cfg
	return nil
}
