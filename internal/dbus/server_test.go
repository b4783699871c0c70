package dbus

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/taskdock/internal/model"
	"github.com/jmylchreest/taskdock/internal/registry"
	"github.com/jmylchreest/taskdock/internal/switcher"
)

// fakeShell records calls as "method:args".
type fakeShell struct {
	calls    []string
	programs []model.ProgramEntry
	snapshot switcher.Snapshot
	entered  bool
	err      error
}

func (f *fakeShell) record(format string, args ...interface{}) error {
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
	return f.err
}

func (f *fakeShell) Programs(context.Context) ([]model.ProgramEntry, error) {
	return f.programs, f.record("programs")
}

func (f *fakeShell) HoverEnter(_ context.Context, program, anchor string) error {
	return f.record("hover-enter:%s:%s", program, anchor)
}

func (f *fakeShell) HoverLeave(_ context.Context, program string) error {
	return f.record("hover-leave:%s", program)
}

func (f *fakeShell) DetachAnchor(_ context.Context, anchor string) error {
	return f.record("detach:%s", anchor)
}

func (f *fakeShell) SelectorActivate(_ context.Context, pid int, windowID string) error {
	return f.record("activate:%d:%s", pid, windowID)
}

func (f *fakeShell) SelectorClose(_ context.Context, pid int, windowID string) error {
	return f.record("close:%d:%s", pid, windowID)
}

func (f *fakeShell) SwitcherEnter(context.Context) (bool, error) {
	return f.entered, f.record("enter")
}

func (f *fakeShell) SwitcherKey(_ context.Context, key string) error {
	return f.record("key:%s", key)
}

func (f *fakeShell) SwitcherWheel(_ context.Context, deltaY float64) error {
	return f.record("wheel:%g", deltaY)
}

func (f *fakeShell) SwitcherPress(context.Context) error {
	return f.record("press")
}

func (f *fakeShell) SwitcherState(context.Context) (switcher.Snapshot, error) {
	return f.snapshot, f.record("state")
}

func (f *fakeShell) PopupShow(_ context.Context, id string) (bool, error) {
	return true, f.record("show:%s", id)
}

func (f *fakeShell) PopupHide(_ context.Context, id string, immediate bool) error {
	return f.record("hide:%s:%t", id, immediate)
}

func (f *fakeShell) PopupRegister(_ context.Context, id string) error {
	return f.record("register:%s", id)
}

func (f *fakeShell) PopupUnregister(_ context.Context, id string) error {
	return f.record("unregister:%s", id)
}

func (f *fakeShell) Click(_ context.Context, target string) error {
	return f.record("click:%s", target)
}

func TestShellServer_Dispatch(t *testing.T) {
	shell := &fakeShell{entered: true}
	s := NewShellServer(shell, nil)

	assert.Nil(t, s.HoverEnter("editor", "icon-1"))
	assert.Nil(t, s.HoverLeave("editor"))
	assert.Nil(t, s.DetachAnchor("icon-1"))
	assert.Nil(t, s.SelectorActivate(42, "0x1"))
	assert.Nil(t, s.SelectorClose(42, ""))
	entered, derr := s.SwitcherEnter()
	assert.Nil(t, derr)
	assert.True(t, entered)
	assert.Nil(t, s.SwitcherKey("Tab"))
	assert.Nil(t, s.SwitcherWheel(-60))
	assert.Nil(t, s.SwitcherPress())
	shown, derr := s.PopupShow("notifications")
	assert.Nil(t, derr)
	assert.True(t, shown)
	assert.Nil(t, s.PopupHide("notifications", true))
	assert.Nil(t, s.PopupRegister("menu"))
	assert.Nil(t, s.PopupUnregister("menu"))
	assert.Nil(t, s.Click("desktop"))

	assert.Equal(t, []string{
		"hover-enter:editor:icon-1",
		"hover-leave:editor",
		"detach:icon-1",
		"activate:42:0x1",
		"close:42:",
		"enter",
		"key:Tab",
		"wheel:-60",
		"press",
		"show:notifications",
		"hide:notifications:true",
		"register:menu",
		"unregister:menu",
		"click:desktop",
	}, shell.calls)
}

func TestShellServer_GetPrograms(t *testing.T) {
	shell := &fakeShell{programs: testPrograms()}
	s := NewShellServer(shell, nil)

	programs, derr := s.GetPrograms()
	require.Nil(t, derr)
	require.Len(t, programs, 2)
	assert.Equal(t, "editor", programs[0].Name)
	assert.Len(t, programs[0].Instances, 2)
}

func TestShellServer_SwitcherState(t *testing.T) {
	shell := &fakeShell{snapshot: switcher.Snapshot{
		ID:       "abc",
		State:    switcher.Active.String(),
		Items:    []model.SwitcherItem{{WindowID: "0x1", PID: 1}},
		Selected: 0,
	}}
	s := NewShellServer(shell, nil)

	state, derr := s.SwitcherState()
	require.Nil(t, derr)
	assert.Equal(t, "abc", state.ID)
	assert.Equal(t, "active", state.State)
	assert.Len(t, state.Items, 1)
}

func TestShellServer_Errors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"not found", fmt.Errorf("lookup: %w", registry.ErrNotFound), ErrorNotFound},
		{"unavailable", registry.ErrUnavailable, ErrorUnavailable},
		{"other", errors.New("boom"), ErrorFailed},
		{"loop timeout", context.DeadlineExceeded, ErrorFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewShellServer(&fakeShell{err: tt.err}, nil)

			derr := s.HoverLeave("editor")
			require.NotNil(t, derr)
			assert.Equal(t, tt.expected, derr.Name)

			_, derr = s.GetPrograms()
			require.NotNil(t, derr)
			assert.Equal(t, tt.expected, derr.Name)
		})
	}
}

func TestShellServer_EmitWithoutConnection(t *testing.T) {
	s := NewShellServer(&fakeShell{}, nil)
	assert.Error(t, s.EmitSwitcherClosed())
	assert.Error(t, s.EmitProgramsChanged(testPrograms()))
	assert.NoError(t, s.Stop(), "stopping a server that never started is a no-op")
}

func TestIntrospectionCoversMethods(t *testing.T) {
	names := make(map[string]bool)
	for _, m := range shellMethods() {
		names[m.Name] = true
	}
	for _, want := range []string{
		"GetPrograms", "HoverEnter", "HoverLeave", "DetachAnchor",
		"SelectorActivate", "SelectorClose",
		"SwitcherEnter", "SwitcherKey", "SwitcherWheel", "SwitcherPress", "SwitcherState",
		"PopupShow", "PopupHide", "PopupRegister", "PopupUnregister", "Click",
	} {
		assert.True(t, names[want], "missing method %s", want)
	}
	assert.Len(t, shellSignals(), 10)
}

func TestParseSignal(t *testing.T) {
	sig := func(member string, body ...interface{}) *dbus.Signal {
		return &dbus.Signal{Path: ShellPath, Name: ShellInterface + "." + member, Body: body}
	}

	t.Run("programs changed", func(t *testing.T) {
		ev, ok := ParseSignal(sig(SignalProgramsChanged, ProgramsToWire(testPrograms())))
		require.True(t, ok)
		assert.Equal(t, testPrograms(), ev.Programs)
	})

	t.Run("selector shown", func(t *testing.T) {
		ev, ok := ParseSignal(sig(SignalSelectorShown, ProgramToWire(testPrograms()[0]), "icon-1"))
		require.True(t, ok)
		assert.Equal(t, "editor", ev.Program.Name)
		assert.Equal(t, "icon-1", ev.Anchor)
	})

	t.Run("switcher updated", func(t *testing.T) {
		items := []model.SwitcherItem{{Index: 0, WindowID: "0x1", PID: 1}}
		ev, ok := ParseSignal(sig(SignalSwitcherUpdated, SwitcherItemsToWire(items), int32(0)))
		require.True(t, ok)
		assert.Equal(t, items, ev.Items)
		assert.Equal(t, 0, ev.Index)
	})

	t.Run("selection", func(t *testing.T) {
		ev, ok := ParseSignal(sig(SignalSwitcherSelection, int32(2)))
		require.True(t, ok)
		assert.Equal(t, 2, ev.Index)
	})

	t.Run("closed", func(t *testing.T) {
		ev, ok := ParseSignal(sig(SignalSwitcherClosed))
		require.True(t, ok)
		assert.Equal(t, SignalSwitcherClosed, ev.Name)
	})

	t.Run("peer close", func(t *testing.T) {
		ev, ok := ParseSignal(sig(SignalPeerCloseRequested, "menu", true))
		require.True(t, ok)
		assert.Equal(t, "menu", ev.PopupID)
		assert.True(t, ev.Immediate)
	})

	t.Run("wrong body", func(t *testing.T) {
		_, ok := ParseSignal(sig(SignalSwitcherSelection, "two"))
		assert.False(t, ok)
	})

	t.Run("unknown member", func(t *testing.T) {
		_, ok := ParseSignal(sig("Bogus"))
		assert.False(t, ok)
	})

	t.Run("other interface", func(t *testing.T) {
		_, ok := ParseSignal(&dbus.Signal{Path: ShellPath, Name: "org.other.Iface.ProgramsChanged"})
		assert.False(t, ok)
	})
}
