// Package settings provides the read-only settings store behind the
// taskbar: the list of pinned programs.
package settings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/pelletier/go-toml/v2"
)

// pinnedFile is the on-disk layout of pinned.toml.
type pinnedFile struct {
	Programs []string `toml:"programs"`
}

// LoadPinned reads a pinned programs file. A missing file yields an empty
// list. Names are trimmed; blanks and duplicates are dropped.
func LoadPinned(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to read pinned programs: %w", err)
	}

	var f pinnedFile
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse pinned programs: %w", err)
	}

	out := make([]string, 0, len(f.Programs))
	for _, name := range f.Programs {
		name = strings.TrimSpace(name)
		if name == "" || slices.Contains(out, name) {
			continue
		}
		out = append(out, name)
	}
	return out, nil
}

// PinnedStore serves the pinned programs list and reloads it when the file
// changes. It implements registry.SettingsStore.
type PinnedStore struct {
	path   string
	logger *slog.Logger

	mu       sync.RWMutex
	pinned   []string
	onChange func([]string)

	watcher *fsnotify.Watcher
	done    chan struct{}
	running bool
}

// NewPinnedStore creates a store for path. Call Load before use.
func NewPinnedStore(path string, logger *slog.Logger) *PinnedStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PinnedStore{
		path:   path,
		logger: logger,
		pinned: []string{},
	}
}

// Path returns the watched file path.
func (s *PinnedStore) Path() string {
	return s.path
}

// Load reads the file. On error the previous list is kept.
func (s *PinnedStore) Load() error {
	pinned, err := LoadPinned(s.path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.pinned = pinned
	s.mu.Unlock()
	return nil
}

// PinnedPrograms returns a copy of the pinned names in display order.
func (s *PinnedStore) PinnedPrograms(context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.pinned), nil
}

// SetChangeCallback sets the function called after a successful reload.
// It runs on the watcher goroutine.
func (s *PinnedStore) SetChangeCallback(fn func(pinned []string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

// Watch starts reloading the list whenever the file is written.
func (s *PinnedStore) Watch() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	// Watch the directory containing the file (more reliable for editors
	// that replace the file on save)
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to create settings directory: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	s.watcher = watcher
	s.done = make(chan struct{})
	s.running = true
	go s.watch(watcher, s.done)

	s.logger.Debug("watching pinned programs", "path", s.path)
	return nil
}

func (s *PinnedStore) watch(watcher *fsnotify.Watcher, done chan struct{}) {
	filename := filepath.Base(s.path)

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filename {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			s.reload()

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn("pinned programs watcher error", "error", err)

		case <-done:
			return
		}
	}
}

func (s *PinnedStore) reload() {
	if err := s.Load(); err != nil {
		s.logger.Warn("failed to reload pinned programs, keeping previous list", "error", err)
		return
	}

	s.mu.RLock()
	pinned := slices.Clone(s.pinned)
	callback := s.onChange
	s.mu.RUnlock()

	s.logger.Debug("pinned programs reloaded", "count", len(pinned))
	if callback != nil {
		callback(pinned)
	}
}

// Stop stops watching the file.
func (s *PinnedStore) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false
	close(s.done)
	return s.watcher.Close()
}
