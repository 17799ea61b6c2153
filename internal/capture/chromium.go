package capture

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	appLog "calgrid/internal/log"
	"calgrid/internal/render"
)

// DefaultTimeout bounds a whole capture when Options.Timeout is zero.
const DefaultTimeout = 30 * time.Second

// readySelector matches the root element of a finished grid rendering.
const readySelector = `[data-ready="true"]`

// Options defines parameters for a Chromium-based screenshot capture.
type Options struct {
	// URL to capture, e.g. "http://127.0.0.1:8080/calendar.svg".
	URL string

	// OutputPath is where the PNG is written.
	OutputPath string

	// Width and Height are the viewport size in pixels. Zero picks the
	// SVG grid's default size.
	Width  int
	Height int

	Timeout time.Duration

	// Headers are sent with every request, e.g. an Authorization header
	// when the grid sits behind basic auth.
	Headers map[string]string
}

func (o Options) validate() (Options, error) {
	if o.URL == "" {
		return o, errors.New("capture: URL is required")
	}
	if o.OutputPath == "" {
		return o, errors.New("capture: OutputPath is required")
	}
	if o.Width <= 0 {
		o.Width = render.DefaultWidth
	}
	if o.Height <= 0 {
		o.Height = render.DefaultHeight
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	return o, nil
}

// BasicAuthHeaders returns Headers carrying HTTP basic credentials.
func BasicAuthHeaders(username, password string) map[string]string {
	token := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
	return map[string]string{"Authorization": "Basic " + token}
}

// CapturePNG launches a headless Chromium via chromedp, loads opts.URL,
// waits until the page marks itself data-ready="true" and writes a
// full-page PNG screenshot to opts.OutputPath.
func CapturePNG(parentCtx context.Context, opts Options) error {
	opts, err := opts.validate()
	if err != nil {
		return err
	}

	ctx, cancel := chromedp.NewContext(parentCtx)
	defer cancel()

	ctx, timeoutCancel := context.WithTimeout(ctx, opts.Timeout)
	defer timeoutCancel()

	started := time.Now()
	var png []byte
	var tasks chromedp.Tasks
	if len(opts.Headers) > 0 {
		headers := make(network.Headers, len(opts.Headers))
		for k, v := range opts.Headers {
			headers[k] = v
		}
		tasks = append(tasks, network.Enable(), network.SetExtraHTTPHeaders(headers))
	}
	tasks = append(tasks,
		chromedp.EmulateViewport(int64(opts.Width), int64(opts.Height)),
		chromedp.Navigate(opts.URL),
		chromedp.WaitVisible(readySelector, chromedp.ByQuery),
		// Let the last paint settle.
		chromedp.Sleep(300 * time.Millisecond),
		chromedp.FullScreenshot(&png, 100),
	)
	if err := chromedp.Run(ctx, tasks); err != nil {
		return fmt.Errorf("capture: chromedp run failed: %w", err)
	}

	if err := writeFileAtomic(opts.OutputPath, png); err != nil {
		return fmt.Errorf("capture: write PNG: %w", err)
	}

	appLog.Info("capture completed",
		"out", opts.OutputPath,
		"bytes", len(png),
		"elapsed_ms", time.Since(started).Milliseconds(),
	)
	return nil
}

// writeFileAtomic writes data next to path and renames it into place so the
// preview endpoint never serves a half-written file.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".calgrid-preview-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
