package registry

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/jmylchreest/taskdock/internal/model"
)

// MemoryProcesses is an in-memory ProcessRegistry used in tests and demo mode.
type MemoryProcesses struct {
	mu        sync.Mutex
	procs     []model.ProcessRecord
	protected int
	killErr   map[int]error
	listErr   error
	onKill    func(pid int)
	kills     []int
}

// NewMemoryProcesses creates a registry holding the given records.
func NewMemoryProcesses(records ...model.ProcessRecord) *MemoryProcesses {
	return &MemoryProcesses{
		procs:   slices.Clone(records),
		killErr: make(map[int]error),
	}
}

// Add appends a process record.
func (m *MemoryProcesses) Add(rec model.ProcessRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.procs = append(m.procs, rec)
}

// SetStatus updates the status of pid.
func (m *MemoryProcesses) SetStatus(pid int, status model.ProcessStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.procs {
		if m.procs[i].PID == pid {
			m.procs[i].Status = status
		}
	}
}

// SetProtected sets the protected pid.
func (m *MemoryProcesses) SetProtected(pid int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.protected = pid
}

// FailKill makes Kill(pid) return err.
func (m *MemoryProcesses) FailKill(pid int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.killErr[pid] = err
}

// FailList makes All return err.
func (m *MemoryProcesses) FailList(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listErr = err
}

// OnKill registers a hook invoked after a successful kill.
func (m *MemoryProcesses) OnKill(fn func(pid int)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onKill = fn
}

// Kills returns the pids killed so far.
func (m *MemoryProcesses) Kills() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.kills)
}

// All implements ProcessRegistry.
func (m *MemoryProcesses) All(context.Context) ([]model.ProcessRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	return slices.Clone(m.procs), nil
}

// ByPID implements ProcessRegistry.
func (m *MemoryProcesses) ByPID(_ context.Context, pid int) (*model.ProcessRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.procs {
		if p.PID == pid {
			rec := p
			return &rec, nil
		}
	}
	return nil, fmt.Errorf("pid %d: %w", pid, ErrNotFound)
}

// Kill implements ProcessRegistry. The process is marked exited.
func (m *MemoryProcesses) Kill(_ context.Context, pid int) error {
	m.mu.Lock()
	if pid == m.protected && pid != 0 {
		m.mu.Unlock()
		return &DelegateError{Op: "kill", Target: fmt.Sprintf("pid %d", pid), Cause: ErrProtected}
	}
	if err := m.killErr[pid]; err != nil {
		m.mu.Unlock()
		return &DelegateError{Op: "kill", Target: fmt.Sprintf("pid %d", pid), Cause: err}
	}
	found := false
	for i := range m.procs {
		if m.procs[i].PID == pid {
			m.procs[i].Status = model.StatusExited
			found = true
		}
	}
	if !found {
		m.mu.Unlock()
		return fmt.Errorf("kill pid %d: %w", pid, ErrNotFound)
	}
	m.kills = append(m.kills, pid)
	hook := m.onKill
	m.mu.Unlock()

	if hook != nil {
		hook(pid)
	}
	return nil
}

// ProtectedPID implements ProcessRegistry.
func (m *MemoryProcesses) ProtectedPID() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.protected
}

// MemoryWindows is an in-memory WindowRegistry used in tests and demo mode.
type MemoryWindows struct {
	mu        sync.Mutex
	windows   []model.WindowRecord
	lookupErr map[int]error
	actionErr map[string]error
	calls     []string
}

// NewMemoryWindows creates a registry holding the given windows. Windows
// without a handle get a fresh attached one.
func NewMemoryWindows(windows ...model.WindowRecord) *MemoryWindows {
	m := &MemoryWindows{
		lookupErr: make(map[int]error),
		actionErr: make(map[string]error),
	}
	for _, w := range windows {
		m.Add(w)
	}
	return m
}

// Add appends a window.
func (m *MemoryWindows) Add(w model.WindowRecord) {
	if w.Handle == nil {
		w.Handle = model.NewHandle(w.WindowID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.windows = append(m.windows, w)
}

// Remove drops a window and detaches its handle.
func (m *MemoryWindows) Remove(windowID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeLocked(func(w model.WindowRecord) bool { return w.WindowID == windowID })
}

// RemovePID drops every window owned by pid.
func (m *MemoryWindows) RemovePID(pid int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeLocked(func(w model.WindowRecord) bool { return w.PID == pid })
}

func (m *MemoryWindows) removeLocked(match func(model.WindowRecord) bool) {
	kept := m.windows[:0]
	for _, w := range m.windows {
		if match(w) {
			if h, ok := w.Handle.(*model.Handle); ok {
				h.Detach()
			}
			continue
		}
		kept = append(kept, w)
	}
	m.windows = kept
}

// FailLookup makes WindowsByPID(pid) return err.
func (m *MemoryWindows) FailLookup(pid int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookupErr[pid] = err
}

// FailAction makes every action on windowID return err.
func (m *MemoryWindows) FailAction(windowID string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actionErr[windowID] = err
}

// Calls returns the actions performed, formatted as "op:id".
func (m *MemoryWindows) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.calls)
}

// WindowsByPID implements WindowRegistry.
func (m *MemoryWindows) WindowsByPID(_ context.Context, pid int) ([]model.WindowRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.lookupErr[pid]; err != nil {
		return nil, err
	}
	var out []model.WindowRecord
	for _, w := range m.windows {
		if w.PID == pid {
			out = append(out, w)
		}
	}
	return out, nil
}

// WindowInfo implements WindowRegistry.
func (m *MemoryWindows) WindowInfo(_ context.Context, windowID string) (*model.WindowRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i := m.indexLocked(windowID); i >= 0 {
		w := m.windows[i]
		return &w, nil
	}
	return nil, fmt.Errorf("window %s: %w", windowID, ErrNotFound)
}

// Focus implements WindowRegistry.
func (m *MemoryWindows) Focus(_ context.Context, windowID string) error {
	return m.act("focus", windowID, func(i int) {
		for j := range m.windows {
			m.windows[j].IsFocused = j == i
		}
	})
}

// Minimize implements WindowRegistry.
func (m *MemoryWindows) Minimize(_ context.Context, windowID string) error {
	return m.act("minimize", windowID, func(i int) {
		m.windows[i].IsMinimized = true
		m.windows[i].IsFocused = false
	})
}

// Restore implements WindowRegistry.
func (m *MemoryWindows) Restore(_ context.Context, windowID string) error {
	return m.act("restore", windowID, func(i int) {
		m.windows[i].IsMinimized = false
	})
}

// CloseWindow implements WindowRegistry.
func (m *MemoryWindows) CloseWindow(_ context.Context, windowID string, force bool) error {
	op := "close"
	if force {
		op = "kill"
	}
	return m.act(op, windowID, func(i int) {
		m.removeLocked(func(w model.WindowRecord) bool { return w.WindowID == windowID })
	})
}

func (m *MemoryWindows) act(op, windowID string, apply func(i int)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, op+":"+windowID)
	if err := m.actionErr[windowID]; err != nil {
		return &DelegateError{Op: op, Target: windowID, Cause: err}
	}
	i := m.indexLocked(windowID)
	if i < 0 {
		return &DelegateError{Op: op, Target: windowID, Cause: ErrNotFound}
	}
	apply(i)
	return nil
}

func (m *MemoryWindows) indexLocked(windowID string) int {
	for i, w := range m.windows {
		if w.WindowID == windowID {
			return i
		}
	}
	return -1
}

// StaticSettings is a SettingsStore returning a fixed pinned list.
type StaticSettings []string

// PinnedPrograms implements SettingsStore.
func (s StaticSettings) PinnedPrograms(context.Context) ([]string, error) {
	return slices.Clone([]string(s)), nil
}
