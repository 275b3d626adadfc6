package syncer

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/schemasync/schemasync/pkg/telemetry"
)

// DefaultDebounce is how long the watcher waits for changes to settle.
const DefaultDebounce = 500 * time.Millisecond

// ChangeFunc is called once per settled burst of document changes with the
// paths that changed.
type ChangeFunc func(ctx context.Context, paths []string) error

// Watcher watches a document directory and reports settled changes.
type Watcher struct {
	tel      *telemetry.Telemetry
	logger   *telemetry.Logger
	debounce time.Duration

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	changed map[string]bool
	timer   *time.Timer

	// runMu serializes change callbacks.
	runMu sync.Mutex
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce overrides DefaultDebounce.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// NewWatcher creates a watcher. A nil tel uses no-op telemetry.
func NewWatcher(tel *telemetry.Telemetry, opts ...WatcherOption) *Watcher {
	if tel == nil {
		tel = telemetry.NewNopTelemetry()
	}
	w := &Watcher{
		tel:      tel,
		logger:   tel.Logger.NewComponentLogger("watcher"),
		debounce: DefaultDebounce,
		changed:  make(map[string]bool),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Watch starts watching dir and its subdirectories in the background.
// onChange runs after changes settle, never concurrently with itself. The
// watcher stops when ctx is done or Stop is called.
func (w *Watcher) Watch(ctx context.Context, dir string, onChange ChangeFunc) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	w.mu.Lock()
	w.watcher = watcher
	w.mu.Unlock()

	if err := w.watchDirectory(dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch directory: %w", err)
	}

	go w.processEvents(ctx, watcher, onChange)

	w.logger.WithPath(dir).Info("Started watching document directory")
	return nil
}

// watchDirectory adds dir and every non-hidden subdirectory to the watcher.
func (w *Watcher) watchDirectory(dir string) error {
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
		return w.watcher.Add(path)
	})
}

// processEvents collects document events and fires onChange once they settle.
func (w *Watcher) processEvents(ctx context.Context, watcher *fsnotify.Watcher, onChange ChangeFunc) {
	for {
		select {
		case <-ctx.Done():
			w.stopTimer()
			_ = watcher.Close()
			return

		case event, ok := <-watcher.Events:
			if !ok {
				w.stopTimer()
				return
			}
			w.handleEvent(ctx, event, onChange)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			w.logger.WithError(err).Error("Watcher error")
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event, onChange ChangeFunc) {
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.watchDirectory(event.Name); err != nil {
				w.logger.WithError(err).WithPath(event.Name).Warn("Failed to watch new directory")
			}
			return
		}
	}

	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return
	}
	if !IsDocumentPath(event.Name) {
		return
	}

	w.logger.WithPath(event.Name).WithField("op", event.Op.String()).Debug("Document changed")
	_ = w.tel.Events.PublishDocumentChanged(event.Name, event.Op.String())

	w.mu.Lock()
	defer w.mu.Unlock()

	w.changed[event.Name] = true
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		w.fire(ctx, onChange)
	})
}

func (w *Watcher) fire(ctx context.Context, onChange ChangeFunc) {
	if ctx.Err() != nil {
		return
	}

	w.mu.Lock()
	paths := make([]string, 0, len(w.changed))
	for p := range w.changed {
		paths = append(paths, p)
	}
	w.changed = make(map[string]bool)
	w.mu.Unlock()

	if len(paths) == 0 {
		return
	}
	sort.Strings(paths)

	w.runMu.Lock()
	defer w.runMu.Unlock()

	if err := onChange(ctx, paths); err != nil {
		w.logger.WithError(err).Error("Failed to apply document changes")
	}
}

func (w *Watcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
}

// Stop stops watching for file changes.
func (w *Watcher) Stop() error {
	w.stopTimer()

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watcher != nil {
		return w.watcher.Close()
	}
	return nil
}
