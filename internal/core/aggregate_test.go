package core

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/taskdock/internal/model"
	"github.com/jmylchreest/taskdock/internal/registry"
)

func noWindows(int) ([]model.WindowRecord, error) { return nil, nil }

func windowsFrom(m map[int][]model.WindowRecord) WindowLookup {
	return func(pid int) ([]model.WindowRecord, error) {
		return m[pid], nil
	}
}

func win(id string, pid int, main bool) model.WindowRecord {
	return model.WindowRecord{
		WindowID:     id,
		PID:          pid,
		Title:        "title " + id,
		IsMainWindow: main,
		Handle:       model.NewHandle(id),
	}
}

func TestAggregate_PartialMinimizeIsNotMinimized(t *testing.T) {
	procs := []model.ProcessRecord{
		{PID: 1, ProgramName: "notes", IsMinimized: true},
		{PID: 2, ProgramName: "notes"},
		{PID: 3, ProgramName: "notes", IsMinimized: true},
	}

	snap := Aggregate(procs, noWindows, nil)
	require.Equal(t, 1, snap.Len())

	notes, ok := snap.Lookup("notes")
	require.True(t, ok)
	assert.True(t, notes.IsRunning)
	assert.False(t, notes.IsMinimized)
	assert.Len(t, notes.Instances, 3)
	assert.Equal(t, 1, notes.RepresentativePID)
}

func TestAggregate_AllMinimized(t *testing.T) {
	tests := []struct {
		name      string
		minimized []bool
		want      bool
	}{
		{"single minimized", []bool{true}, true},
		{"single visible", []bool{false}, false},
		{"all minimized", []bool{true, true}, true},
		{"one visible", []bool{true, false}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var procs []model.ProcessRecord
			for i, m := range tt.minimized {
				procs = append(procs, model.ProcessRecord{PID: i + 1, ProgramName: "app", IsMinimized: m})
			}
			entry, ok := Aggregate(procs, noWindows, nil).Lookup("app")
			require.True(t, ok)
			assert.Equal(t, tt.want, entry.IsMinimized)
		})
	}
}

func TestAggregate_WindowExpansion(t *testing.T) {
	procs := []model.ProcessRecord{{PID: 10, ProgramName: "editor"}}
	lookup := windowsFrom(map[int][]model.WindowRecord{
		10: {win("0x1", 10, true), win("0x2", 10, false)},
	})

	entry, ok := Aggregate(procs, lookup, nil).Lookup("editor")
	require.True(t, ok)
	require.Len(t, entry.Instances, 2)

	assert.Equal(t, "0x1", entry.Instances[0].WindowID)
	assert.True(t, entry.Instances[0].IsMainWindow)
	assert.Equal(t, "0x2", entry.Instances[1].WindowID)
	assert.False(t, entry.Instances[1].IsMainWindow)
	assert.Equal(t, 10, entry.Instances[0].PID)
	assert.Equal(t, 10, entry.Instances[1].PID)
}

func TestAggregate_SingleWindowCarriesWindowFields(t *testing.T) {
	procs := []model.ProcessRecord{{PID: 5, ProgramName: "term"}}
	w := win("0x5", 5, true)
	w.IsMinimized = true
	w.IsFocused = true

	entry, _ := Aggregate(procs, windowsFrom(map[int][]model.WindowRecord{5: {w}}), nil).Lookup("term")
	require.Len(t, entry.Instances, 1)
	assert.Equal(t, model.InstanceRef{
		PID: 5, WindowID: "0x5", IsMainWindow: true, Title: "title 0x5", IsMinimized: true, IsFocused: true,
	}, entry.Instances[0])
	assert.True(t, entry.IsMinimized)
	assert.True(t, entry.IsFocused())
}

func TestAggregate_Filters(t *testing.T) {
	detached := win("0x9", 4, true)
	detached.Handle.(*model.Handle).Detach()

	procs := []model.ProcessRecord{
		{PID: 1, ProgramName: "helper", Background: true},
		{PID: 2, ProgramName: "visible-helper", Background: true},
		{PID: 3, ProgramName: "vim", CLILaunchedFromTerminal: true},
		{PID: 4, ProgramName: "zsh", CLITerminal: true},
		{PID: 5, ProgramName: "dead", Status: model.StatusExited},
		{PID: 6, ProgramName: "ghost-helper", Background: true},
	}
	lookup := windowsFrom(map[int][]model.WindowRecord{
		2: {win("0x2", 2, true)},
		6: {detached},
	})

	snap := Aggregate(procs, lookup, nil)
	require.Equal(t, 1, snap.Len())
	assert.Equal(t, "visible-helper", snap.Entries[0].Name)
}

func TestAggregate_PinnedOrder(t *testing.T) {
	procs := []model.ProcessRecord{
		{PID: 1, ProgramName: "zeta"},
		{PID: 2, ProgramName: "files"},
		{PID: 3, ProgramName: "alpha"},
	}
	pinned := []string{"browser", "files", "browser", ""}

	snap := Aggregate(procs, noWindows, pinned)

	var names []string
	for _, e := range snap.Entries {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{"browser", "files", "zeta", "alpha"}, names)

	browser, _ := snap.Lookup("browser")
	assert.False(t, browser.IsRunning)
	assert.True(t, browser.IsPinned)
	assert.Empty(t, browser.Instances)
	assert.NotNil(t, browser.Instances)

	files, _ := snap.Lookup("files")
	assert.True(t, files.IsRunning)
	assert.True(t, files.IsPinned)

	for _, e := range snap.Entries {
		assert.Equal(t, len(e.Instances) > 0, e.IsRunning, e.Name)
	}
}

func TestAggregate_LookupFailureIsNoData(t *testing.T) {
	procs := []model.ProcessRecord{
		{PID: 1, ProgramName: "ok"},
		{PID: 2, ProgramName: "broken"},
	}
	lookup := func(pid int) ([]model.WindowRecord, error) {
		if pid == 2 {
			return nil, errors.New("x server went away")
		}
		return nil, nil
	}

	snap := Aggregate(procs, lookup, nil)
	broken, ok := snap.Lookup("broken")
	require.True(t, ok)
	assert.True(t, broken.Unresolved)
	assert.False(t, broken.IsRunning)

	okEntry, _ := snap.Lookup("ok")
	assert.True(t, okEntry.IsRunning)
}

func TestAggregator_RefreshKeepsPreviousStateOnRace(t *testing.T) {
	procs := registry.NewMemoryProcesses(model.ProcessRecord{PID: 1, ProgramName: "mail"})
	wins := registry.NewMemoryWindows(win("0x1", 1, true), win("0x2", 1, false))
	agg := NewAggregator(registry.Set{
		Processes: procs,
		Windows:   wins,
		Settings:  registry.StaticSettings{"pinned-only"},
	}, nil)

	first := agg.Refresh(context.Background())
	mail, _ := first.Lookup("mail")
	require.Len(t, mail.Instances, 2)

	procs.Add(model.ProcessRecord{PID: 2, ProgramName: "chat"})
	wins.FailLookup(1, errors.New("transient"))
	wins.FailLookup(2, errors.New("transient"))
	second := agg.Refresh(context.Background())

	mail, ok := second.Lookup("mail")
	require.True(t, ok)
	assert.True(t, mail.IsRunning, "previous state is kept")
	assert.Len(t, mail.Instances, 2)

	_, ok = second.Lookup("chat")
	assert.False(t, ok, "no previous running state to keep")

	pinned, ok := second.Lookup("pinned-only")
	require.True(t, ok)
	assert.False(t, pinned.IsRunning)
	assert.Same(t, second, agg.Last())
}

func TestAggregator_MissingRegistries(t *testing.T) {
	agg := NewAggregator(registry.Set{}, nil)
	snap := agg.Refresh(context.Background())
	assert.Equal(t, 0, snap.Len())
}

func TestAggregator_ProcessListFailure(t *testing.T) {
	procs := registry.NewMemoryProcesses(model.ProcessRecord{PID: 1, ProgramName: "a"})
	procs.FailList(errors.New("permission denied"))
	agg := NewAggregator(registry.Set{Processes: procs, Windows: registry.NewMemoryWindows()}, nil)

	snap := agg.Refresh(context.Background())
	assert.Equal(t, 0, snap.Len())
}

func TestAggregator_ProcessListFailureKeepsLastSnapshot(t *testing.T) {
	procs := registry.NewMemoryProcesses(model.ProcessRecord{PID: 1, ProgramName: "a"})
	agg := NewAggregator(registry.Set{
		Processes: procs,
		Windows:   registry.NewMemoryWindows(win("0x1", 1, true)),
	}, nil)

	first := agg.Refresh(context.Background())
	require.True(t, first.Entries[0].IsRunning)

	procs.FailList(errors.New("permission denied"))
	second := agg.Refresh(context.Background())
	assert.Same(t, first, second)
	a, ok := second.Lookup("a")
	require.True(t, ok)
	assert.True(t, a.IsRunning, "a failed read does not flip programs to stopped")

	procs.FailList(nil)
	procs.SetStatus(1, model.StatusExited)
	third := agg.Refresh(context.Background())
	_, ok = third.Lookup("a")
	assert.False(t, ok)
}

func TestSnapshot_Equal(t *testing.T) {
	procs := []model.ProcessRecord{{PID: 1, ProgramName: "a"}}
	a := Aggregate(procs, noWindows, nil)
	b := Aggregate(procs, noWindows, nil)
	assert.True(t, a.Equal(b))

	c := Aggregate(append(procs, model.ProcessRecord{PID: 2, ProgramName: "a"}), noWindows, nil)
	assert.False(t, a.Equal(c))

	var empty *Snapshot
	assert.True(t, empty.Equal(newSnapshot(0)))
}
