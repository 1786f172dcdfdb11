// Package concrete watches the settings file with fsnotify.
package concrete

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/fsnotify/fsnotify"

	"github.com/butter-bot-machines/slskconf/pkg/logging"
	slogwrap "github.com/butter-bot-machines/slskconf/pkg/logging/slog"
	"github.com/butter-bot-machines/slskconf/pkg/watcher"
)

// Options configures a watcher
type Options struct {
	Debounce time.Duration
	MaxDelay time.Duration
	Clock    clock.Clock
	Logger   logging.Logger
}

// watcherImpl implements watcher.FileWatcher
type watcherImpl struct {
	path      string
	fsWatcher *fsnotify.Watcher
	handler   watcher.EventHandler
	debouncer watcher.Debouncer
	logger    logging.Logger
	done      chan struct{}
	wg        sync.WaitGroup
	stopped   bool
	mu        sync.Mutex
}

// NewWatcher watches the directory of path and calls handler, debounced,
// whenever path is written or replaced.
func NewWatcher(path string, handler watcher.EventHandler, opts Options) (watcher.FileWatcher, error) {
	if path == "" {
		return nil, fmt.Errorf("path is required")
	}
	if handler == nil {
		return nil, fmt.Errorf("handler is required")
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path %s: %w", path, err)
	}
	if opts.Logger == nil {
		opts.Logger = slogwrap.NewLogger(logging.LevelInfo, nil)
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	dir := filepath.Dir(absPath)
	if err := fsWatcher.Add(dir); err != nil {
		fsWatcher.Close()
		return nil, fmt.Errorf("failed to watch path %s: %w", dir, err)
	}
	opts.Logger.Info("watching settings file", "path", absPath)

	w := &watcherImpl{
		path:      absPath,
		fsWatcher: fsWatcher,
		handler:   handler,
		debouncer: newDebouncer(opts.Debounce, opts.MaxDelay, opts.Clock),
		logger:    opts.Logger,
		done:      make(chan struct{}),
	}
	w.wg.Add(1)
	go w.watch()
	return w, nil
}

// Stop stops the watcher
func (w *watcherImpl) Stop() error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.stopped = true
	close(w.done)
	w.mu.Unlock()

	w.wg.Wait()
	w.debouncer.Stop()
	return w.fsWatcher.Close()
}

func (w *watcherImpl) watch() {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path || !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			w.debouncer.Debounce(w.path, w.handleEvent)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("watcher error", "error", err)
		}
	}
}

func (w *watcherImpl) handleEvent() {
	if err := w.handler.HandleEvent(w.path); err != nil {
		w.logger.Error("failed to handle settings change", "path", w.path, "error", err)
	}
}
