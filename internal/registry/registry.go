// Package registry defines the external process, window and settings
// sources the shell reads from, with no-op defaults and concrete backends.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmylchreest/taskdock/internal/model"
)

// Sentinel errors returned by registries.
var (
	ErrNotFound    = errors.New("not found")
	ErrProtected   = errors.New("protected process")
	ErrUnavailable = errors.New("registry unavailable")
)

// ProcessRegistry lists processes and terminates them.
type ProcessRegistry interface {
	All(ctx context.Context) ([]model.ProcessRecord, error)
	ByPID(ctx context.Context, pid int) (*model.ProcessRecord, error)
	Kill(ctx context.Context, pid int) error

	// ProtectedPID is the always-on process that must never be killed.
	// Zero means none.
	ProtectedPID() int
}

// WindowRegistry lists windows and performs window-manager actions.
type WindowRegistry interface {
	WindowsByPID(ctx context.Context, pid int) ([]model.WindowRecord, error)
	WindowInfo(ctx context.Context, windowID string) (*model.WindowRecord, error)
	Focus(ctx context.Context, windowID string) error
	Minimize(ctx context.Context, windowID string) error
	Restore(ctx context.Context, windowID string) error
	CloseWindow(ctx context.Context, windowID string, force bool) error
}

// SettingsStore provides the user's pinned programs.
type SettingsStore interface {
	PinnedPrograms(ctx context.Context) ([]string, error)
}

// DelegateError wraps a failed action performed on behalf of the shell.
type DelegateError struct {
	Op     string
	Target string
	Cause  error
}

func (e *DelegateError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Target, e.Cause)
	}
	return fmt.Sprintf("%s %s failed", e.Op, e.Target)
}

func (e *DelegateError) Unwrap() error {
	return e.Cause
}

// NoProcesses is the default ProcessRegistry when none is configured.
// It reports no processes and refuses every kill.
type NoProcesses struct{}

func (NoProcesses) All(context.Context) ([]model.ProcessRecord, error) { return nil, nil }
func (NoProcesses) ByPID(context.Context, int) (*model.ProcessRecord, error) {
	return nil, ErrNotFound
}
func (NoProcesses) Kill(context.Context, int) error { return ErrUnavailable }
func (NoProcesses) ProtectedPID() int               { return 0 }

// NoWindows is the default WindowRegistry when none is configured.
// It reports no windows and refuses every action.
type NoWindows struct{}

func (NoWindows) WindowsByPID(context.Context, int) ([]model.WindowRecord, error) { return nil, nil }
func (NoWindows) WindowInfo(context.Context, string) (*model.WindowRecord, error) {
	return nil, ErrNotFound
}
func (NoWindows) Focus(context.Context, string) error             { return ErrUnavailable }
func (NoWindows) Minimize(context.Context, string) error          { return ErrUnavailable }
func (NoWindows) Restore(context.Context, string) error           { return ErrUnavailable }
func (NoWindows) CloseWindow(context.Context, string, bool) error { return ErrUnavailable }

// NoSettings is the default SettingsStore: nothing is pinned.
type NoSettings struct{}

func (NoSettings) PinnedPrograms(context.Context) ([]string, error) { return nil, nil }

// Set bundles the three registries. Missing members are replaced with the
// no-op defaults by Normalize.
type Set struct {
	Processes ProcessRegistry
	Windows   WindowRegistry
	Settings  SettingsStore
}

// Normalize fills missing registries with no-op defaults and logs a warning
// for each one.
func (s Set) Normalize(logger *slog.Logger) Set {
	if logger == nil {
		logger = slog.Default()
	}
	if s.Processes == nil {
		logger.Warn("no process registry configured, using empty default")
		s.Processes = NoProcesses{}
	}
	if s.Windows == nil {
		logger.Warn("no window registry configured, using empty default")
		s.Windows = NoWindows{}
	}
	if s.Settings == nil {
		s.Settings = NoSettings{}
	}
	return s
}

// Available reports whether both live registries are real implementations.
func (s Set) Available() bool {
	_, noProc := s.Processes.(NoProcesses)
	_, noWin := s.Windows.(NoWindows)
	return s.Processes != nil && s.Windows != nil && !noProc && !noWin
}
