package persona

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/suPer8Hu/nextile-ai/internal/observability"
)

// Watch reloads the persona at path into h whenever the file is written or
// replaced. Invalid edits are logged and the previous persona stays active.
// It returns once the watcher is running; the watcher stops with ctx.
func Watch(ctx context.Context, path string, h *Holder) error {
	if path == "" {
		return nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("persona watcher: %w", err)
	}
	// Watch the directory: editors often replace the file instead of writing it.
	if err := w.Add(filepath.Dir(path)); err != nil {
		_ = w.Close()
		return fmt.Errorf("watch %s: %w", path, err)
	}

	target := filepath.Clean(path)
	log := observability.WithFields("component", "persona", "path", target)

	go func() {
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				p, err := Load(target)
				if err != nil {
					log.Warn("persona reload failed", "error", err)
					continue
				}
				h.Set(p)
				log.Info("persona reloaded", "greetings", len(p.Greetings))

			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Warn("persona watcher error", "error", err)
			}
		}
	}()
	return nil
}
