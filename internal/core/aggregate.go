// Package core builds the program/instance view of the desktop from the
// process and window registries, and provides lookup and filtering over it.
package core

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/jmylchreest/taskdock/internal/model"
	"github.com/jmylchreest/taskdock/internal/registry"
)

// WindowLookup returns the windows owned by pid.
type WindowLookup func(pid int) ([]model.WindowRecord, error)

// Snapshot is an ordered set of program entries: pinned programs first in
// pinned order, then running programs in discovery order.
type Snapshot struct {
	Entries []model.ProgramEntry
	index   map[string]int
}

func newSnapshot(capacity int) *Snapshot {
	return &Snapshot{
		Entries: make([]model.ProgramEntry, 0, capacity),
		index:   make(map[string]int, capacity),
	}
}

func (s *Snapshot) put(e model.ProgramEntry) {
	if i, ok := s.index[e.Name]; ok {
		s.Entries[i] = e
		return
	}
	s.index[e.Name] = len(s.Entries)
	s.Entries = append(s.Entries, e)
}

// Lookup returns the entry for name.
func (s *Snapshot) Lookup(name string) (model.ProgramEntry, bool) {
	if s == nil {
		return model.ProgramEntry{}, false
	}
	i, ok := s.index[name]
	if !ok {
		return model.ProgramEntry{}, false
	}
	return s.Entries[i], true
}

// Len returns the number of entries.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Entries)
}

// Equal reports whether two snapshots hold the same entries in the same order.
func (s *Snapshot) Equal(other *Snapshot) bool {
	if s.Len() != other.Len() {
		return false
	}
	if s.Len() == 0 {
		return true
	}
	for i := range s.Entries {
		a, b := s.Entries[i], other.Entries[i]
		if a.Name != b.Name || a.IsRunning != b.IsRunning || a.IsMinimized != b.IsMinimized ||
			a.IsPinned != b.IsPinned || a.RepresentativePID != b.RepresentativePID ||
			!slices.Equal(a.Instances, b.Instances) {
			return false
		}
	}
	return true
}

// Aggregate builds a snapshot from raw registry data using the default logger.
func Aggregate(processes []model.ProcessRecord, windows WindowLookup, pinned []string) *Snapshot {
	return aggregate(slog.Default(), processes, windows, pinned)
}

type group struct {
	name      string
	instances []model.InstanceRef
	failed    bool
}

func aggregate(logger *slog.Logger, processes []model.ProcessRecord, windows WindowLookup, pinned []string) *Snapshot {
	var (
		groups []*group
		byName = make(map[string]*group)
	)
	groupFor := func(name string) *group {
		g, ok := byName[name]
		if !ok {
			g = &group{name: name}
			byName[name] = g
			groups = append(groups, g)
		}
		return g
	}

	for _, p := range processes {
		if !p.Running() || p.CLILaunchedFromTerminal || p.CLITerminal {
			continue
		}

		wins, err := windows(p.PID)
		if err != nil {
			logger.Warn("window lookup failed", "pid", p.PID, "program", p.ProgramName, "error", err)
			if !p.Background {
				groupFor(p.ProgramName).failed = true
			}
			continue
		}

		live := wins[:0:0]
		for _, w := range wins {
			if w.Attached() {
				live = append(live, w)
			}
		}
		if p.Background && len(live) == 0 {
			continue
		}

		g := groupFor(p.ProgramName)
		if len(live) == 0 {
			g.instances = append(g.instances, model.InstanceRef{
				PID:         p.PID,
				IsMinimized: p.IsMinimized,
			})
			continue
		}
		for _, w := range live {
			g.instances = append(g.instances, model.InstanceRef{
				PID:          p.PID,
				WindowID:     w.WindowID,
				IsMainWindow: w.IsMainWindow,
				Title:        w.Title,
				IsMinimized:  w.IsMinimized,
				IsFocused:    w.IsFocused,
			})
		}
	}

	snap := newSnapshot(len(pinned) + len(groups))
	for _, name := range pinned {
		if name == "" {
			continue
		}
		if _, ok := snap.index[name]; ok {
			continue
		}
		snap.put(model.ProgramEntry{Name: name, IsPinned: true, Instances: []model.InstanceRef{}})
	}

	for _, g := range groups {
		entry := model.ProgramEntry{
			Name:      g.name,
			Instances: g.instances,
			IsRunning: len(g.instances) > 0,
		}
		if existing, ok := snap.Lookup(g.name); ok {
			entry.IsPinned = existing.IsPinned
		}
		if entry.Instances == nil {
			entry.Instances = []model.InstanceRef{}
		}
		if entry.IsRunning {
			entry.RepresentativePID = g.instances[0].PID
			entry.IsMinimized = allMinimized(g.instances)
		} else if g.failed {
			entry.Unresolved = true
		}
		snap.put(entry)
	}

	return snap
}

// allMinimized reports whether every instance is minimized. A program whose
// instances are only partly minimized is shown as not minimized.
func allMinimized(instances []model.InstanceRef) bool {
	if len(instances) == 1 {
		return instances[0].IsMinimized
	}
	for _, inst := range instances {
		if !inst.IsMinimized {
			return false
		}
	}
	return len(instances) > 0
}

// Aggregator reads the registries and produces snapshots. It remembers the
// last snapshot so that programs caught mid-update keep their previous state.
type Aggregator struct {
	reg    registry.Set
	logger *slog.Logger

	mu   sync.Mutex
	last *Snapshot
}

// NewAggregator creates an aggregator over the given registries.
func NewAggregator(reg registry.Set, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{
		reg:    reg.Normalize(logger),
		logger: logger,
	}
}

// Registries returns the registries the aggregator reads from.
func (a *Aggregator) Registries() registry.Set {
	return a.reg
}

// Aggregate is the pure aggregation step, logging through the aggregator's
// logger.
func (a *Aggregator) Aggregate(processes []model.ProcessRecord, windows WindowLookup, pinned []string) *Snapshot {
	return aggregate(a.logger, processes, windows, pinned)
}

// Refresh reads every registry and returns a fresh snapshot. Registry
// failures are logged and treated as missing data, except a failed process
// list, which returns the previous snapshot unchanged when there is one.
func (a *Aggregator) Refresh(ctx context.Context) *Snapshot {
	processes, err := a.reg.Processes.All(ctx)
	if err != nil {
		a.logger.Warn("process registry read failed", "error", err)
		if last := a.Last(); last != nil {
			return last
		}
		processes = nil
	}

	pinned, err := a.reg.Settings.PinnedPrograms(ctx)
	if err != nil {
		a.logger.Warn("pinned programs read failed", "error", err)
		pinned = nil
	}

	lookup := func(pid int) ([]model.WindowRecord, error) {
		return a.reg.Windows.WindowsByPID(ctx, pid)
	}
	snap := aggregate(a.logger, processes, lookup, pinned)

	a.mu.Lock()
	defer a.mu.Unlock()
	snap = a.resolveLocked(snap)
	a.last = snap
	return snap
}

// Last returns the most recent snapshot, or nil before the first Refresh.
func (a *Aggregator) Last() *Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.last
}

// resolveLocked replaces unresolved entries with their previous state, or
// drops them when there is none.
func (a *Aggregator) resolveLocked(snap *Snapshot) *Snapshot {
	unresolved := false
	for _, e := range snap.Entries {
		if e.Unresolved {
			unresolved = true
			break
		}
	}
	if !unresolved {
		return snap
	}

	out := newSnapshot(snap.Len())
	for _, e := range snap.Entries {
		if !e.Unresolved {
			out.put(e)
			continue
		}
		if prev, ok := a.last.Lookup(e.Name); ok && prev.IsRunning {
			a.logger.Info("program running without resolved instances, keeping previous state",
				"program", e.Name, "instances", len(prev.Instances))
			prev.IsPinned = e.IsPinned
			out.put(prev)
			continue
		}
		if e.IsPinned {
			e.Unresolved = false
			out.put(e)
		}
	}
	return out
}
