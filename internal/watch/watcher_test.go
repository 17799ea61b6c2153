package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcherReportsChange(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "config.yaml")
	other := filepath.Join(dir, "other.txt")
	if err := os.WriteFile(target, []byte("a: 1\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	w, err := NewWatcher(20 * time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Watch(target); err != nil {
		t.Fatal(err)
	}
	if got := w.Paths(); len(got) != 1 {
		t.Fatalf("Paths() = %v", got)
	}

	changed := make(chan string, 4)
	w.OnChange = func(path string) error {
		changed <- path
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	if err := os.WriteFile(other, []byte("ignored"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(target, []byte("a: 2\nb: 3\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-changed:
		want, _ := filepath.Abs(target)
		if got != want {
			t.Fatalf("changed %q, want %q", got, want)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("no change reported")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Run did not return after cancel")
	}
}

func TestWatchMissingFileIsAllowed(t *testing.T) {
	w, err := NewWatcher(0)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	if w.debounce != DefaultDebounce {
		t.Fatalf("debounce %v", w.debounce)
	}
	if err := w.Watch(filepath.Join(t.TempDir(), "not-yet.ics")); err != nil {
		t.Fatalf("watching a file that does not exist yet: %v", err)
	}
}
