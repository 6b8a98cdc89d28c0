package ingestion

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/54b3r/infohub-go/internal/logging"
)

// defaultDebounce is how long a watched file must be quiet before it is
// re-ingested. Editors often emit several writes per save.
const defaultDebounce = 500 * time.Millisecond

// Watcher re-ingests documentation files under a directory as they change
// and removes the chunks of files that are deleted.
type Watcher struct {
	// pipeline performs the re-ingestion.
	pipeline *Pipeline
	// fsw is the underlying fsnotify watcher.
	fsw *fsnotify.Watcher
	// root is the absolute watched directory.
	root string
	// Debounce overrides defaultDebounce when positive.
	Debounce time.Duration
	// Progress receives one line per applied change. Optional.
	Progress func(msg string)
}

// NewWatcher registers dir and all its subdirectories for change events.
// Call Run to start processing and Close when done.
func (p *Pipeline) NewWatcher(dir string) (*Watcher, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("ingestion: resolve %s: %w", dir, err)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("ingestion: create watcher: %w", err)
	}
	w := &Watcher{pipeline: p, fsw: fsw, root: root}
	if err := w.addTree(root); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return w, nil
}

// addTree watches dir and every non-hidden directory below it.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("ingestion: watch %s: %w", path, err)
		}
		return nil
	})
}

// Run processes change events until ctx is cancelled. Failures on single
// files are logged and reported through Progress; they do not stop Run.
func (w *Watcher) Run(ctx context.Context) error {
	log := logging.FromContext(ctx).With(slog.String("dir", w.root))
	debounce := w.Debounce
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	progress := w.Progress
	if progress == nil {
		progress = func(string) {}
	}

	// pending maps a file to whether its last event was a removal.
	pending := make(map[string]bool)
	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	log.Info("watching for documentation changes")
	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := w.addTree(ev.Name); err != nil {
						log.Warn("watch new directory failed", slog.Any("error", err))
					}
					continue
				}
			}
			if !Supported(ev.Name) {
				continue
			}
			switch {
			case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
				pending[ev.Name] = true
			case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
				pending[ev.Name] = false
			default:
				continue
			}
			timer.Reset(debounce)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			log.Warn("watcher error", slog.Any("error", err))

		case <-timer.C:
			for path, removed := range pending {
				w.apply(ctx, log, path, removed, progress)
			}
			clear(pending)
		}
	}
}

// apply re-ingests or removes one file.
func (w *Watcher) apply(ctx context.Context, log *slog.Logger, path string, removed bool, progress func(string)) {
	if !removed {
		if _, err := os.Stat(path); err != nil {
			removed = true
		}
	}
	if removed {
		if err := w.pipeline.Remove(ctx, path); err != nil {
			log.Error("remove failed", slog.String("path", path), slog.Any("error", err))
			progress(fmt.Sprintf("remove failed for %s: %v", path, err))
			return
		}
		progress(fmt.Sprintf("removed %s", path))
		return
	}

	n, err := w.pipeline.IngestSource(ctx, Source{Location: path})
	if err != nil {
		log.Error("re-ingest failed", slog.String("path", path), slog.Any("error", err))
		progress(fmt.Sprintf("re-ingest failed for %s: %v", path, err))
		return
	}
	progress(fmt.Sprintf("re-ingested %d chunks from %s", n, path))
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}
