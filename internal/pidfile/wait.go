package pidfile

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// pollInterval is the fallback cadence when fsnotify events are missed
// (some filesystems drop remove events).
const pollInterval = 250 * time.Millisecond

// WaitGone blocks until the PID file at path no longer exists or ctx is
// done. It watches the parent directory with fsnotify and double-checks
// with a stat poll. Used by "stoker kill --wait".
func WaitGone(ctx context.Context, path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return pollGone(ctx, path)
	}
	defer w.Close() //nolint:errcheck // best-effort cleanup

	if err := w.Add(filepath.Dir(path)); err != nil {
		return pollGone(ctx, path)
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-w.Events:
			if ev.Name == path && ev.Op.Has(fsnotify.Remove|fsnotify.Rename) {
				return nil
			}
		case <-w.Errors:
			// Watcher broke; polling below still makes progress.
		case <-ticker.C:
			if _, err := os.Stat(path); os.IsNotExist(err) {
				return nil
			}
		}
	}
}

// pollGone is the no-watcher fallback: stat until gone or ctx done.
func pollGone(ctx context.Context, path string) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := os.Stat(path); os.IsNotExist(err) {
				return nil
			}
		}
	}
}
