package registry

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const watchDebounce = 200 * time.Millisecond

// Watch reloads the registry whenever its YAML file changes, until ctx is
// cancelled. The parent directory is watched so that editors replacing the
// file by rename are seen. Bursts of events are debounced.
func (r *Registry) Watch(ctx context.Context) error {
	if r.path == "" {
		return errors.New("registry: no file to watch")
	}
	target := filepath.Clean(r.path)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Add(filepath.Dir(target)); err != nil {
		return err
	}
	slog.Info("registry: watching", "path", target)

	var (
		timer   *time.Timer
		reloadC <-chan time.Time
	)
	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(watchDebounce)
			reloadC = timer.C
		} else {
			timer.Reset(watchDebounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			slog.Info("registry: watcher stopped")
			return nil

		case <-reloadC:
			if err := r.Reload(ctx); err != nil {
				slog.Warn("registry: reload failed, keeping previous entries", "error", err)
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) != 0 {
				slog.Debug("registry: file event", "op", ev.Op.String())
				schedule()
			}

		case werr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			slog.Error("registry: watcher error", "error", werr)
		}
	}
}
