package daemon

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"reflect"
	"sync"
	"time"

	"github.com/jmylchreest/taskdock/internal/config"
)

// ConfigWatcher polls daemon.toml and hands validated configs to a reload
// callback. A file is reloaded only when its modification time moves and
// its bytes differ from the last version read. A config that parses but
// changes no section is not reported.
type ConfigWatcher struct {
	mu     sync.RWMutex
	logger *slog.Logger
	path   string

	modTime time.Time
	content []byte
	current *config.DaemonConfig

	interval time.Duration
	onReload func(*config.DaemonConfig)
	onError  func(error)

	cancel context.CancelFunc
	done   chan struct{}
}

// NewConfigWatcher creates a ConfigWatcher for path, or for the default
// daemon config location when path is empty.
func NewConfigWatcher(path string, logger *slog.Logger) (*ConfigWatcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if path == "" {
		p, err := config.DaemonConfigPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	return &ConfigWatcher{
		logger:   logger,
		path:     path,
		interval: time.Second,
	}, nil
}

// Path returns the watched file.
func (w *ConfigWatcher) Path() string {
	return w.path
}

// SetPollInterval sets how often the file is checked. It applies from the
// next Start.
func (w *ConfigWatcher) SetPollInterval(interval time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.interval = interval
}

// SetReloadCallback sets the function given each new valid config. It runs
// on the watcher goroutine.
func (w *ConfigWatcher) SetReloadCallback(fn func(*config.DaemonConfig)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onReload = fn
}

// SetErrorCallback sets the function told about configs that fail to load.
func (w *ConfigWatcher) SetErrorCallback(fn func(error)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onError = fn
}

// Start records the running config and the file's current state, then
// polls until ctx is done or Stop is called.
func (w *ConfigWatcher) Start(ctx context.Context, running *config.DaemonConfig) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		return nil
	}

	w.current = running
	if info, err := os.Stat(w.path); err == nil {
		w.modTime = info.ModTime()
		w.content, _ = os.ReadFile(w.path)
	}

	ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})
	go w.poll(ctx, w.interval, w.done)

	w.logger.Debug("config watcher started", "path", w.path, "interval", w.interval)
	return nil
}

// Stop ends polling and waits for the poller to exit.
func (w *ConfigWatcher) Stop() {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.cancel = nil
	w.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	w.logger.Debug("config watcher stopped")
}

// GetCurrentConfig returns the last config accepted.
func (w *ConfigWatcher) GetCurrentConfig() *config.DaemonConfig {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

func (w *ConfigWatcher) poll(ctx context.Context, interval time.Duration, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.checkForChanges()
		}
	}
}

// checkForChanges reloads the file if it was rewritten with new content.
func (w *ConfigWatcher) checkForChanges() {
	info, err := os.Stat(w.path)
	if err != nil {
		if !os.IsNotExist(err) {
			w.logger.Debug("failed to stat config file", "path", w.path, "error", err)
		}
		return
	}

	w.mu.RLock()
	moved := info.ModTime().After(w.modTime)
	w.mu.RUnlock()
	if !moved {
		return
	}

	data, err := os.ReadFile(w.path)
	if err != nil {
		w.logger.Debug("failed to read config file", "path", w.path, "error", err)
		return
	}

	w.mu.Lock()
	w.modTime = info.ModTime()
	same := bytes.Equal(data, w.content)
	w.content = data
	onReload, onError, current := w.onReload, w.onError, w.current
	w.mu.Unlock()

	if same {
		return
	}

	next, err := config.LoadDaemonConfig(w.path)
	if err != nil {
		w.logger.Warn("config file changed but is invalid, keeping current settings", "error", err)
		if onError != nil {
			onError(err)
		}
		return
	}

	changed := changedSections(current, next)
	if len(changed) == 0 {
		w.logger.Debug("config file rewritten without changes")
		return
	}

	w.mu.Lock()
	w.current = next
	w.mu.Unlock()

	w.logger.Info("config reloaded", "sections", changed)
	if onReload != nil {
		onReload(next)
	}
}

// changedSections names the top-level sections that differ between two
// configs. A nil old config counts as every section changed.
func changedSections(old, next *config.DaemonConfig) []string {
	if old == nil {
		old = &config.DaemonConfig{}
	}
	sections := []struct {
		name string
		a, b any
	}{
		{"selector", old.Selector, next.Selector},
		{"popup", old.Popup, next.Popup},
		{"switcher", old.Switcher, next.Switcher},
		{"aggregate", old.Aggregate, next.Aggregate},
		{"backend", old.Backend, next.Backend},
	}

	var changed []string
	for _, s := range sections {
		if !reflect.DeepEqual(s.a, s.b) {
			changed = append(changed, s.name)
		}
	}
	return changed
}
