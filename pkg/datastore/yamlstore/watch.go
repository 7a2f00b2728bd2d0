package yamlstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const minWatchTick = time.Millisecond

// Watch calls notify after the file has been created, written, renamed over
// or removed and then left alone for the debounce interval. It watches the
// parent directory because commits replace the file by rename.
func (s *Store) Watch(ctx context.Context, notify func()) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating preferences directory: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}
	s.logger.Debug("yamlstore: watching", "path", s.path)

	tick := max(s.debounce/4, minWatchTick)
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	var lastEvent time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != s.path {
				continue
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
				!event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
				continue
			}
			lastEvent = time.Now()

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("yamlstore: watcher error", "path", s.path, "error", err)

		case <-ticker.C:
			if lastEvent.IsZero() || time.Since(lastEvent) < s.debounce {
				continue
			}
			lastEvent = time.Time{}
			notify()
		}
	}
}
