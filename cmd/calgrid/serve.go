package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"calgrid/internal/capture"
	"calgrid/internal/config"
	"calgrid/internal/ics"
	appLog "calgrid/internal/log"
	"calgrid/internal/refresh"
	"calgrid/internal/watch"
	"calgrid/internal/web"
)

const shutdownTimeout = 10 * time.Second

var (
	serveListen  string
	serveNoWatch bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server and the refresh loop",
	Long: `Serve the layout API and the SVG grid, refresh the ICS sources on the
configured cron schedule and reload when the config file or a local ICS file
changes.

Endpoints:
  GET  /health
  GET  /api/events?date=YYYY-MM-DD&view=month|week|day
  GET  /api/layout?date=YYYY-MM-DD&view=month|week|day
  POST /api/layout
  GET  /calendar.svg?date=YYYY-MM-DD
  GET  /preview.png`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "HTTP listen address (overrides config)")
	serveCmd.Flags().BoolVar(&serveNoWatch, "no-watch", false, "Do not watch the config and local ICS files")

	rootCmd.AddCommand(serveCmd)
}

// app ties the server to the config file across reloads.
type app struct {
	configPath string
	listen     string
	srv        *web.Server
	watcher    *watch.Watcher

	mu  sync.RWMutex
	cfg *config.Config
}

func (a *app) config() *config.Config {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cfg
}

// refresh re-reads the sources and, when a preview path is configured,
// captures the month grid to PNG.
func (a *app) refresh(ctx context.Context) error {
	if err := a.srv.Refresh(ctx); err != nil {
		return err
	}

	cfg := a.config()
	if cfg.PreviewPath == "" {
		return nil
	}
	opts := capture.Options{
		URL:        gridURL(a.listen),
		OutputPath: cfg.PreviewPath,
	}
	if ba := cfg.BasicAuth; ba != nil && ba.Username != "" && ba.Password != "" {
		opts.Headers = capture.BasicAuthHeaders(ba.Username, ba.Password)
	}
	return capture.CapturePNG(ctx, opts)
}

// onChange reloads the config or drops cached events after a watched file
// changed.
func (a *app) onChange(path string) error {
	cfgPath, _ := filepath.Abs(a.configPath)
	if path != cfgPath {
		appLog.Info("local ICS source changed", "path", path)
		a.srv.Invalidate()
		return nil
	}

	cfg, err := config.Load(a.configPath)
	if err != nil {
		return fmt.Errorf("reload config: %w", err)
	}
	if old := a.config(); old.RefreshCron != cfg.RefreshCron || old.Listen != cfg.Listen {
		appLog.Warn("refresh schedule and listen address changes apply after restart")
	}
	if logLevel == "" {
		appLog.SetLevel(appLog.ParseLevel(cfg.LogLevel))
	}

	a.mu.Lock()
	a.cfg = cfg
	a.mu.Unlock()
	a.srv.Apply(cfg)
	a.watchSources(cfg)
	appLog.Info("config reloaded", "path", path)
	return nil
}

func (a *app) watchSources(cfg *config.Config) {
	if a.watcher == nil {
		return
	}
	for _, src := range ics.SourcesFromConfig(cfg.ICS) {
		p, ok := src.LocalPath()
		if !ok {
			continue
		}
		if err := a.watcher.Watch(p); err != nil {
			appLog.Warn("cannot watch ICS file", "path", p, "err", err)
		}
	}
}

// gridURL is the address the capture browser loads: the server's own
// /calendar.svg, via loopback when bound to all interfaces.
func gridURL(listen string) string {
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return "http://" + listen + "/calendar.svg"
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port) + "/calendar.svg"
}

func runServe(cmd *cobra.Command, _ []string) error {
	if serveListen != "" {
		conf.Listen = serveListen
	}
	loc, err := conf.Location()
	if err != nil {
		appLog.Warn("timezone not found; using local time", "timezone", conf.Timezone, "err", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{
		configPath: configPath,
		listen:     conf.Listen,
		srv:        web.NewServer(conf),
		cfg:        conf,
	}

	sched, err := refresh.New(conf.RefreshCron, loc, a.refresh)
	if err != nil {
		return err
	}

	if !serveNoWatch {
		w, err := watch.NewWatcher(0)
		if err != nil {
			appLog.Warn("file watching disabled", "err", err)
		} else {
			a.watcher = w
			w.OnChange = a.onChange
			w.OnError = func(path string, err error) {
				appLog.Error("watch error", err, "path", path)
			}
			if err := w.Watch(configPath); err != nil {
				appLog.Warn("cannot watch config file", "path", configPath, "err", err)
			}
			a.watchSources(conf)
			go func() {
				if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
					appLog.Error("watcher stopped", err)
				}
			}()
		}
	}

	httpServer := &http.Server{
		Addr:              conf.Listen,
		Handler:           a.srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+conf.Listen, "version", version)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sched.Start(ctx)
	// Warm the cache (and the preview) without waiting for the first tick.
	go func() { _ = sched.RunNow(ctx) }()

	select {
	case <-ctx.Done():
		appLog.Info("signal received, shutting down")
	case err := <-errCh:
		sched.Stop()
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		appLog.Error("http shutdown failed", err)
	}
	sched.Stop()
	appLog.Info("calgrid exiting")
	return nil
}
