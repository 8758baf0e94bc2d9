package configwatch

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"
)

// Watcher polls registered files for modification-time changes and invokes
// their callbacks from Run's goroutine. Files need not exist at watch time;
// they start being reported once they appear and change.
type Watcher struct {
	interval time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	entries []entry
}

type entry struct {
	path    string
	modTime time.Time
	cb      func()
}

// New creates a Watcher polling at the given interval.
func New(interval time.Duration, logger *slog.Logger) *Watcher {
	return &Watcher{interval: interval, logger: logger}
}

// Watch registers a file. cb fires whenever the file's modification time
// changes.
func (w *Watcher) Watch(path string, cb func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.entries = append(w.entries, entry{
		path:    path,
		modTime: modTime(path),
		cb:      cb,
	})
}

// Run blocks, polling until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.sweep()
		}
	}
}

func (w *Watcher) sweep() {
	w.mu.Lock()
	defer w.mu.Unlock()

	for i := range w.entries {
		e := &w.entries[i]
		current := modTime(e.path)
		// A zero time means the file is unreadable, possibly mid-save.
		if current.IsZero() || current.Equal(e.modTime) {
			continue
		}
		e.modTime = current
		w.logger.Info("watched file changed", "path", e.path)
		e.cb()
	}
}

func modTime(path string) time.Time {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}
