package refresh

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestValidateSpec(t *testing.T) {
	for _, spec := range []string{"*/15 * * * *", "0 6 * * 1-5", "@every 10m", "@hourly"} {
		if err := ValidateSpec(spec); err != nil {
			t.Errorf("%q: %v", spec, err)
		}
	}
	for _, spec := range []string{"", "every minute", "* * *", "61 * * * *"} {
		if err := ValidateSpec(spec); err == nil {
			t.Errorf("%q: expected error", spec)
		}
	}
}

func TestNewRejectsBadSpec(t *testing.T) {
	if _, err := New("nope", time.UTC, func(context.Context) error { return nil }); err == nil {
		t.Fatalf("expected error")
	}
}

func TestRunNow(t *testing.T) {
	var calls atomic.Int32
	boom := errors.New("boom")
	s, err := New("@hourly", time.UTC, func(context.Context) error {
		if calls.Add(1) == 2 {
			return boom
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := s.RunNow(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if err := s.RunNow(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("second run: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("calls = %d", calls.Load())
	}
}

func TestRunNowSkipsWhileRunning(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	var calls atomic.Int32
	s, err := New("@hourly", time.UTC, func(context.Context) error {
		calls.Add(1)
		close(entered)
		<-release
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		_ = s.RunNow(context.Background())
		close(done)
	}()
	<-entered

	if err := s.RunNow(context.Background()); err != nil {
		t.Fatalf("overlapping run should be skipped silently: %v", err)
	}
	close(release)
	<-done

	if calls.Load() != 1 {
		t.Fatalf("calls = %d, want 1", calls.Load())
	}
}

func TestStartStop(t *testing.T) {
	s, err := New("@every 1h", time.UTC, func(context.Context) error { return nil })
	if err != nil {
		t.Fatal(err)
	}
	s.Start(context.Background())
	s.Stop()
}
