package main

import (
	"time"

	"github.com/spf13/cobra"

	"calgrid/internal/capture"
)

var (
	captureURL     string
	captureOut     string
	captureWidth   int
	captureHeight  int
	captureTimeout time.Duration
)

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Capture a rendered grid to PNG with headless Chromium",
	Long: `Load a grid page (by default the running server's /calendar.svg), wait
for it to report data-ready and save a PNG screenshot.

Examples:
  calgrid capture --out preview.png
  calgrid capture --url "http://127.0.0.1:8080/calendar.svg?date=2025-10-01" --out oct.png`,
	RunE: runCapture,
}

func init() {
	captureCmd.Flags().StringVar(&captureURL, "url", "", "Page to capture (default: this config's server /calendar.svg)")
	captureCmd.Flags().StringVarP(&captureOut, "out", "o", "", "Output PNG path (default: preview_path from config, else preview.png)")
	captureCmd.Flags().IntVar(&captureWidth, "width", 0, "Viewport width in pixels")
	captureCmd.Flags().IntVar(&captureHeight, "height", 0, "Viewport height in pixels")
	captureCmd.Flags().DurationVar(&captureTimeout, "timeout", capture.DefaultTimeout, "Overall capture timeout")

	rootCmd.AddCommand(captureCmd)
}

func runCapture(cmd *cobra.Command, _ []string) error {
	opts := capture.Options{
		URL:        captureURL,
		OutputPath: captureOut,
		Width:      captureWidth,
		Height:     captureHeight,
		Timeout:    captureTimeout,
	}
	if opts.URL == "" {
		opts.URL = gridURL(conf.Listen)
		if ba := conf.BasicAuth; ba != nil && ba.Username != "" && ba.Password != "" {
			opts.Headers = capture.BasicAuthHeaders(ba.Username, ba.Password)
		}
	}
	if opts.OutputPath == "" {
		opts.OutputPath = conf.PreviewPath
	}
	if opts.OutputPath == "" {
		opts.OutputPath = "preview.png"
	}
	return capture.CapturePNG(cmd.Context(), opts)
}
