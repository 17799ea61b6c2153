// Package refresh runs the periodic source refresh on a cron schedule.
package refresh

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	appLog "calgrid/internal/log"
)

// Job is one refresh pass.
type Job func(ctx context.Context) error

// Scheduler runs a Job on a cron spec, never two passes at once.
type Scheduler struct {
	cron *cron.Cron
	job  Job
	spec string

	ctx    context.Context
	cancel context.CancelFunc

	running sync.Mutex
}

// ValidateSpec reports whether spec is a valid five-field cron expression
// (descriptors like "@every 10m" are accepted too).
func ValidateSpec(spec string) error {
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("refresh: invalid cron spec %q: %w", spec, err)
	}
	return nil
}

// New returns a scheduler evaluating spec in loc.
func New(spec string, loc *time.Location, job Job) (*Scheduler, error) {
	if err := ValidateSpec(spec); err != nil {
		return nil, err
	}
	if loc == nil {
		loc = time.Local
	}
	s := &Scheduler{
		cron: cron.New(cron.WithLocation(loc)),
		job:  job,
		spec: spec,
	}
	if _, err := s.cron.AddFunc(spec, s.tick); err != nil {
		return nil, fmt.Errorf("refresh: add job: %w", err)
	}
	return s, nil
}

// Start begins the schedule; jobs get a context derived from ctx.
func (s *Scheduler) Start(ctx context.Context) {
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.cron.Start()
	appLog.Info("refresh scheduler started", "spec", s.spec)
}

// RunNow runs the job immediately in the caller's goroutine. It is skipped
// when a scheduled pass is already running.
func (s *Scheduler) RunNow(ctx context.Context) error {
	if !s.running.TryLock() {
		appLog.Debug("refresh already running; skipped")
		return nil
	}
	defer s.running.Unlock()

	started := time.Now()
	err := s.job(ctx)
	if err != nil {
		appLog.Error("refresh failed", err, "elapsed_ms", time.Since(started).Milliseconds())
		return err
	}
	appLog.Info("refresh completed", "elapsed_ms", time.Since(started).Milliseconds())
	return nil
}

func (s *Scheduler) tick() {
	ctx := s.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	_ = s.RunNow(ctx)
}

// Stop halts the schedule and waits for a running job to finish.
func (s *Scheduler) Stop() {
	done := s.cron.Stop()
	if s.cancel != nil {
		s.cancel()
	}
	<-done.Done()
	appLog.Info("refresh scheduler stopped")
}
