package storage

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// Watch calls onChange whenever a recording appears, disappears or is
// renamed in the store directory, until ctx is done.
func (s *RecordStore) Watch(ctx context.Context, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	if err := watcher.Add(s.dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", s.dir, err)
	}

	slog.Info("Watching recordings directory", "path", s.dir)

	go func() {
		defer watcher.Close()

		for {
			select {
			case <-ctx.Done():
				slog.Debug("Recordings watch stopped")
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !isRecordEvent(event) {
					continue
				}
				slog.Debug("Recordings directory changed", "path", event.Name, "op", event.Op.String())
				onChange()

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Error("Recordings watch error", "error", err)
			}
		}
	}()

	return nil
}

func isRecordEvent(event fsnotify.Event) bool {
	base := filepath.Base(event.Name)
	if strings.HasPrefix(base, tmpPrefix) || !strings.EqualFold(filepath.Ext(base), Ext) {
		return false
	}
	return event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)
}
