package pilot

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/hazyhaar/proseai/platform"
)

// profileDebounce absorbs the burst of events an editor save produces.
const profileDebounce = 250 * time.Millisecond

// WatchProfiles calls fn with a freshly loaded registry each time the
// profiles file is written, created or renamed into place. A file that
// fails to parse is logged and the previous registry stays. It blocks
// until ctx is cancelled.
func WatchProfiles(ctx context.Context, path string, logger *slog.Logger, fn func(*platform.Registry)) error {
	if logger == nil {
		logger = slog.Default()
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("pilot: profiles watcher: %w", err)
	}
	defer w.Close()

	// Editors replace files by rename, so watch the directory.
	dir, name := filepath.Split(filepath.Clean(path))
	if dir == "" {
		dir = "."
	}
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("pilot: watch %s: %w", dir, err)
	}
	logger.Info("pilot: watching profiles", "path", path)

	var (
		timer  *time.Timer
		timerC <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != name {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(profileDebounce)
			timerC = timer.C

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("pilot: profiles watcher error", "error", err)

		case <-timerC:
			timerC = nil
			reg, err := platform.LoadFile(path)
			if err != nil {
				logger.Error("pilot: profiles reload failed", "path", path, "error", err)
				continue
			}
			fn(reg)
		}
	}
}
