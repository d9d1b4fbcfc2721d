package fs

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	"github.com/aretw0/lifecycle/pkg/core/worker"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/aretw0/linemark/pkg/core"
)

// WatchConfig configures a workspace watcher.
type WatchConfig struct {
	// Root is the workspace directory to watch recursively.
	Root string

	// Pattern is a doublestar glob matched against workspace-relative
	// paths; empty means "**/*".
	Pattern string

	// SystemDir is the hidden directory to ignore (default ".linemark").
	SystemDir string

	Logger       *slog.Logger
	ErrorHandler func(error)
}

// Watcher turns filesystem changes into debounced core events so the
// service can re-anchor bookmarks after a file is saved, and purge them
// when the file is deleted.
type Watcher struct {
	*worker.BaseWorker

	config    WatchConfig
	provider  *Provider
	events    chan<- core.Event
	watcher   *fsnotify.Watcher
	debouncer *debouncer
	cancel    context.CancelFunc
}

// NewWatcher creates a watcher emitting events into the given channel. The
// provider's cache is invalidated for every changed path before the event
// is delivered.
func NewWatcher(config WatchConfig, provider *Provider, events chan<- core.Event) *Watcher {
	if config.Pattern == "" {
		config.Pattern = "**/*"
	}
	if config.SystemDir == "" {
		config.SystemDir = ".linemark"
	}
	return &Watcher{
		BaseWorker: worker.NewBaseWorker("fs-watcher"),
		config:     config,
		provider:   provider,
		events:     events,
	}
}

// Start begins watching. It is an error to start a watcher twice.
func (w *Watcher) Start(ctx context.Context) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	status := w.State().Status
	if status != worker.StatusCreated && status != worker.StatusPending {
		return fmt.Errorf("watcher already started (status: %s)", status)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	if err := w.recursiveAdd(watcher); err != nil {
		_ = watcher.Close()
		return err
	}

	w.watcher = watcher
	w.debouncer = newDebouncer(50 * time.Millisecond)

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.SetStatus(worker.StatusRunning)
	return w.StartFunc(runCtx, w.run)
}

// Stop requests shutdown and waits for the event loop to drain.
func (w *Watcher) Stop(ctx context.Context) error {
	if w.cancel != nil {
		w.StopRequested = true
		w.cancel()
	}

	return w.BaseWorker.Stop(ctx)
}

// State implements the worker state contract.
func (w *Watcher) State() worker.State {
	return w.ExportState(func(s *worker.State) {
		s.Metadata = map[string]string{
			worker.MetadataType: string(worker.TypeGoroutine),
		}
	})
}

// recursiveAdd registers the root and every non-ignored subdirectory.
func (w *Watcher) recursiveAdd(watcher *fsnotify.Watcher) error {
	return filepath.WalkDir(w.config.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if d.Name() == w.config.SystemDir || d.Name() == ".git" {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}

// shouldIgnore filters out system files, temp files, and anything not
// matching the configured pattern.
func (w *Watcher) shouldIgnore(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, TempFilePrefix) {
		return true
	}

	rel, err := filepath.Rel(w.config.Root, path)
	if err != nil {
		return true
	}
	rel = filepath.ToSlash(rel)

	if rel == w.config.SystemDir || strings.HasPrefix(rel, w.config.SystemDir+"/") {
		return true
	}
	if strings.HasPrefix(rel, ".git/") {
		return true
	}

	match, err := doublestar.Match(w.config.Pattern, rel)
	if err != nil || !match {
		return true
	}
	return false
}

// mapEventType translates fsnotify operations to domain event types.
// Chmod-only events carry no content change and are dropped.
func (w *Watcher) mapEventType(event fsnotify.Event) core.EventType {
	switch {
	case event.Has(fsnotify.Create):
		return core.EventCreate
	case event.Has(fsnotify.Write):
		return core.EventModify
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		return core.EventDelete
	default:
		return ""
	}
}

// processFilesystemEvent handles filtering, mapping, and debouncing of one
// filesystem event. Returns true if the event was accepted.
func (w *Watcher) processFilesystemEvent(ctx context.Context, event fsnotify.Event) bool {
	if w.config.Logger != nil {
		w.config.Logger.Debug("event received", "name", event.Name)
	}

	if w.shouldIgnore(event.Name) {
		return false
	}

	eType := w.mapEventType(event)
	if eType == "" {
		return false
	}

	if w.provider != nil {
		w.provider.Invalidate(event.Name)
	}

	// New directories must be added to the watch set.
	if eType == core.EventCreate && w.watcher != nil {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			_ = w.watcher.Add(event.Name)
			return false
		}
	}

	w.sendEvent(ctx, core.Event{
		Type:      eType,
		ID:        event.Name,
		Timestamp: time.Now().Unix(),
	})

	return true
}

// sendEvent enqueues an event via the debouncer, protecting against channel
// closure during shutdown.
func (w *Watcher) sendEvent(ctx context.Context, event core.Event) {
	w.debouncer.add(event, func(e core.Event) {
		defer func() {
			// Recover from panic if channel was closed (worker stopping)
			_ = recover()
		}()
		select {
		case w.events <- e:
		case <-ctx.Done():
		}
	})
}

// handleWatcherError processes errors from the fsnotify watcher.
func (w *Watcher) handleWatcherError(err error) {
	if w.config.Logger != nil {
		w.config.Logger.Error("fsnotify error", "error", err)
	}
	if w.config.ErrorHandler != nil {
		w.config.ErrorHandler(err)
	}
}

// run is the main event loop for the watcher worker.
func (w *Watcher) run(ctx context.Context) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			panicErr := fmt.Errorf("watcher panic: %v", recovered)

			var stack string
			if w.config.Logger != nil && w.config.Logger.Enabled(ctx, slog.LevelDebug) {
				stack = string(debug.Stack())
			}

			if w.config.Logger != nil {
				if stack != "" {
					w.config.Logger.Error("watcher panic", "error", panicErr, "stack", stack)
				} else {
					w.config.Logger.Error("watcher panic", "error", panicErr)
				}
			}
		}
	}()
	defer w.watcher.Close()

	err = w.mainEventLoop(ctx)

	// Shutdown debouncer: stop accepting new events and wait for all
	// in-flight timers, so cleanup can safely close the events channel.
	w.debouncer.stopAndWait(5 * time.Second)

	return err
}

// mainEventLoop is the core select loop processing filesystem and watcher
// events.
func (w *Watcher) mainEventLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				if w.StopRequested || ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("watcher events channel closed")
			}
			w.processFilesystemEvent(ctx, event)

		case wErr, ok := <-w.watcher.Errors:
			if !ok {
				if w.StopRequested || ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("watcher errors channel closed")
			}
			w.handleWatcherError(wErr)
		}
	}
}
