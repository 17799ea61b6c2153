// Package watch reports changes to individual files, such as the config file
// and local ICS sources.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce coalesces bursts of events for one file (editors and
// atomic saves emit several).
const DefaultDebounce = 500 * time.Millisecond

// Watcher monitors a set of files and calls OnChange once per burst of
// changes to one of them.
type Watcher struct {
	watcher  *fsnotify.Watcher
	debounce time.Duration

	mu    sync.RWMutex
	files map[string]*fileState

	// OnChange is called with the absolute path of a changed file.
	OnChange func(path string) error
	// OnError receives watcher errors and OnChange failures.
	OnError func(path string, err error)
}

type fileState struct {
	lastModified time.Time
	size         int64
	processing   bool
}

// NewWatcher creates a watcher; debounce <= 0 picks DefaultDebounce.
func NewWatcher(debounce time.Duration) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create watcher: %w", err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		watcher:  fsWatcher,
		debounce: debounce,
		files:    make(map[string]*fileState),
	}, nil
}

// Watch adds path to the watched set. The parent directory is what gets
// registered so renames over the file are seen too.
func (w *Watcher) Watch(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("watch: resolve %s: %w", path, err)
	}

	st := &fileState{}
	if stat, err := os.Stat(absPath); err == nil {
		st.lastModified = stat.ModTime()
		st.size = stat.Size()
	}

	w.mu.Lock()
	w.files[absPath] = st
	w.mu.Unlock()

	if err := w.watcher.Add(filepath.Dir(absPath)); err != nil {
		return fmt.Errorf("watch: add %s: %w", filepath.Dir(absPath), err)
	}
	return nil
}

// Paths returns the watched files.
func (w *Watcher) Paths() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]string, 0, len(w.files))
	for p := range w.files {
		out = append(out, p)
	}
	return out
}

// Run dispatches events until ctx is cancelled or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	timers := make(map[string]*time.Timer)
	defer func() {
		for _, t := range timers {
			t.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			w.watcher.Close()
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			absPath, err := filepath.Abs(event.Name)
			if err != nil {
				continue
			}
			w.mu.RLock()
			st, watched := w.files[absPath]
			w.mu.RUnlock()
			if !watched {
				continue
			}

			if t, exists := timers[absPath]; exists {
				t.Stop()
			}
			timers[absPath] = time.AfterFunc(w.debounce, func() {
				w.handleChange(absPath, st)
			})

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			if w.OnError != nil {
				w.OnError("", err)
			}
		}
	}
}

func (w *Watcher) handleChange(path string, st *fileState) {
	w.mu.Lock()
	if st.processing {
		w.mu.Unlock()
		return
	}
	st.processing = true
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		st.processing = false
		w.mu.Unlock()
	}()

	stat, err := os.Stat(path)
	if err != nil {
		if w.OnError != nil {
			w.OnError(path, err)
		}
		return
	}

	w.mu.Lock()
	unchanged := stat.ModTime().Equal(st.lastModified) && stat.Size() == st.size
	st.lastModified = stat.ModTime()
	st.size = stat.Size()
	w.mu.Unlock()
	if unchanged {
		return
	}

	if w.OnChange != nil {
		if err := w.OnChange(path); err != nil && w.OnError != nil {
			w.OnError(path, err)
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
