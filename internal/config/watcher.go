package config

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounceDelay coalesces bursts of file events into one reload.
// Editors typically emit several writes per save.
const DefaultDebounceDelay = 100 * time.Millisecond

// Callback receives the new configuration after a successful reload.
type Callback func(*Config)

// ErrorCallback receives errors from failed reload attempts.
type ErrorCallback func(error)

// Watcher watches a configuration file and reloads it on change. A reload
// that fails to parse or validate keeps the previous configuration.
type Watcher struct {
	path          string
	callback      Callback
	errorCallback ErrorCallback
	logger        *zap.Logger
	debounceDelay time.Duration

	fsWatcher *fsnotify.Watcher

	mu         sync.RWMutex
	lastConfig *Config

	stopOnce  sync.Once
	stopCh    chan struct{}
	stoppedCh chan struct{}
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounceDelay overrides the event coalescing delay.
func WithDebounceDelay(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounceDelay = d
		}
	}
}

// WithWatcherLogger sets the logger.
func WithWatcherLogger(logger *zap.Logger) WatcherOption {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithErrorCallback sets a callback invoked when a reload fails.
func WithErrorCallback(cb ErrorCallback) WatcherOption {
	return func(w *Watcher) {
		w.errorCallback = cb
	}
}

// NewWatcher creates a watcher for the given file. The callback runs on
// the watcher goroutine after every successful reload.
func NewWatcher(path string, callback Callback, opts ...WatcherOption) (*Watcher, error) {
	if path == "" {
		return nil, fmt.Errorf("watcher requires a config path")
	}
	if callback == nil {
		return nil, fmt.Errorf("watcher requires a callback")
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path %s: %w", path, err)
	}

	w := &Watcher{
		path:          abs,
		callback:      callback,
		logger:        zap.NewNop(),
		debounceDelay: DefaultDebounceDelay,
		stopCh:        make(chan struct{}),
		stoppedCh:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Start loads and validates the initial configuration, then begins
// watching for changes.
func (w *Watcher) Start() error {
	cfg, err := Load(w.path)
	if err != nil {
		return err
	}
	if err := Validate(cfg); err != nil {
		return fmt.Errorf("validate config %s: %w", w.path, err)
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}

	// Watch the directory rather than the file. Editors and config
	// management tools replace files by rename, which drops a direct
	// file watch.
	if err := fsWatcher.Add(filepath.Dir(w.path)); err != nil {
		fsWatcher.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
	}

	w.mu.Lock()
	w.lastConfig = cfg
	w.fsWatcher = fsWatcher
	w.mu.Unlock()

	go w.watch()

	w.logger.Info("config watcher started", zap.String("path", w.path))
	return nil
}

func (w *Watcher) watch() {
	defer close(w.stoppedCh)

	var debounceTimer *time.Timer
	var debounceCh <-chan time.Time

	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.NewTimer(w.debounceDelay)
			debounceCh = debounceTimer.C

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("config watcher error", zap.Error(err))

		case <-debounceCh:
			debounceCh = nil
			w.reload()

		case <-w.stopCh:
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != w.path {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create) != 0
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err == nil {
		if verr := Validate(cfg); verr != nil {
			err = verr
		}
	}
	if err != nil {
		w.logger.Error("config reload failed, keeping previous config",
			zap.String("path", w.path),
			zap.Error(err))
		if w.errorCallback != nil {
			w.errorCallback(err)
		}
		return
	}

	w.mu.Lock()
	w.lastConfig = cfg
	w.mu.Unlock()

	w.logger.Info("config reloaded", zap.String("path", w.path))
	w.callback(cfg)
}

// ForceReload reloads the configuration immediately, bypassing file
// events. Used by SIGHUP handlers.
func (w *Watcher) ForceReload() error {
	cfg, err := Load(w.path)
	if err != nil {
		return err
	}
	if err := Validate(cfg); err != nil {
		return fmt.Errorf("validate config %s: %w", w.path, err)
	}

	w.mu.Lock()
	w.lastConfig = cfg
	w.mu.Unlock()

	w.callback(cfg)
	return nil
}

// LastConfig returns the most recently loaded valid configuration.
func (w *Watcher) LastConfig() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.lastConfig
}

// Stop shuts the watcher down and waits for the watch goroutine to exit.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		w.mu.RLock()
		started := w.fsWatcher != nil
		w.mu.RUnlock()
		if !started {
			close(w.stoppedCh)
			return
		}
		close(w.stopCh)
		<-w.stoppedCh
		w.fsWatcher.Close()
		w.logger.Info("config watcher stopped")
	})
}
