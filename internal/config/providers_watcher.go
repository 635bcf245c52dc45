package config

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/opsloop/triage/internal/logging"
)

// ReloadCallback is called when the providers file is successfully
// reloaded. A callback error is logged but the watcher keeps watching.
type ReloadCallback func(cfg *ProvidersFile) error

// ProvidersWatcherConfig holds configuration for the ProvidersWatcher.
type ProvidersWatcherConfig struct {
	// FilePath is the path to the providers YAML file to watch
	FilePath string

	// DebounceMillis coalesces multiple file change events within this
	// period into a single reload. Default: 500ms.
	DebounceMillis int
}

// ProvidersWatcher watches the providers config file for changes and
// triggers reload callbacks with debouncing. Invalid configs during a
// reload are logged and skipped; the previous valid config stays in
// effect.
type ProvidersWatcher struct {
	config   ProvidersWatcherConfig
	callback ReloadCallback
	logger   *logging.Logger
	cancel   context.CancelFunc
	stopped  chan struct{}
	ready    chan struct{}
	mu       sync.Mutex

	debounceTimer *time.Timer
}

// NewProvidersWatcher creates a watcher for the given providers file.
func NewProvidersWatcher(cfg ProvidersWatcherConfig, callback ReloadCallback) (*ProvidersWatcher, error) {
	if cfg.FilePath == "" {
		return nil, fmt.Errorf("FilePath cannot be empty")
	}

	if callback == nil {
		return nil, fmt.Errorf("callback cannot be nil")
	}

	if cfg.DebounceMillis == 0 {
		cfg.DebounceMillis = 500
	}

	return &ProvidersWatcher{
		config:   cfg,
		callback: callback,
		logger:   logging.GetLogger("config.watcher"),
		stopped:  make(chan struct{}),
		ready:    make(chan struct{}),
	}, nil
}

// Start begins watching the providers file. The file must already have
// been loaded once by the caller; Start only reacts to subsequent
// changes. Returns once the underlying fsnotify watcher is established.
func (w *ProvidersWatcher) Start(ctx context.Context) error {
	watchCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	go w.watchLoop(watchCtx)

	select {
	case <-w.ready:
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Second):
		return fmt.Errorf("timeout waiting for file watcher to initialize")
	}

	return nil
}

// Stop stops the watcher and waits for the watch loop to exit.
func (w *ProvidersWatcher) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	<-w.stopped
}

// signalReady closes the ready channel exactly once.
func (w *ProvidersWatcher) signalReady() {
	w.mu.Lock()
	defer w.mu.Unlock()
	select {
	case <-w.ready:
	default:
		close(w.ready)
	}
}

func (w *ProvidersWatcher) watchLoop(ctx context.Context) {
	defer close(w.stopped)
	defer w.signalReady()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.logger.Error("failed to create file watcher: %v", err)
		return
	}
	defer watcher.Close()

	if err := watcher.Add(w.config.FilePath); err != nil {
		w.logger.Error("failed to watch file %s: %v", w.config.FilePath, err)
		return
	}

	w.logger.Info("watching %s for changes (debounce: %dms)",
		w.config.FilePath, w.config.DebounceMillis)

	w.signalReady()

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("context cancelled, stopping")
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}

			// Rename/Remove happen on atomic writes where the old file
			// is unlinked before the new one lands; re-add the watch
			// since the inode changed.
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			if event.Op&(fsnotify.Rename|fsnotify.Remove) != 0 {
				time.Sleep(50 * time.Millisecond)
				if err := watcher.Add(w.config.FilePath); err != nil {
					w.logger.Warn("failed to re-add watch after %s: %v", event.Op, err)
				}
			}
			w.handleFileChange()

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error: %v", err)
		}
	}
}

// handleFileChange debounces change events by resetting a timer.
func (w *ProvidersWatcher) handleFileChange() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}

	w.debounceTimer = time.AfterFunc(
		time.Duration(w.config.DebounceMillis)*time.Millisecond,
		w.reloadConfig,
	)
}

// reloadConfig reloads the providers file and calls the callback.
// Invalid configs keep the previous config in effect.
func (w *ProvidersWatcher) reloadConfig() {
	w.logger.Info("reloading providers config from %s", w.config.FilePath)

	newConfig, err := LoadProvidersFile(w.config.FilePath)
	if err != nil {
		w.logger.Warn("failed to load providers config (keeping previous): %v", err)
		return
	}

	if err := w.callback(newConfig); err != nil {
		w.logger.Warn("reload callback error (continuing to watch): %v", err)
	}
}
