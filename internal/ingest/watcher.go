package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher re-imports a local dataset file when it changes on disk. The parent
// directory is watched so editors and tools that replace the file by rename
// are still seen.
type Watcher struct {
	importer *Importer
	path     string
	debounce time.Duration
}

func NewWatcher(importer *Importer, path string) *Watcher {
	return &Watcher{
		importer: importer,
		path:     filepath.Clean(strings.TrimPrefix(path, "file://")),
		debounce: 2 * time.Second,
	}
}

func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
	}

	log := slog.Default().With("component", "watcher", "path", w.path)
	log.Info("watching dataset for changes")

	// A single large copy emits many write events; wait for them to settle.
	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			timer.Reset(w.debounce)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			log.Warn("watch error", "error", err)
		case <-timer.C:
			log.Info("dataset changed, re-importing")
			if _, err := w.importer.Import(ctx, w.path); err != nil {
				log.Error("re-import failed", "error", err)
			}
		}
	}
}
