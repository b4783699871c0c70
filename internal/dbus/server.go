package dbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"

	"github.com/jmylchreest/taskdock/internal/model"
	"github.com/jmylchreest/taskdock/internal/registry"
	"github.com/jmylchreest/taskdock/internal/switcher"
)

// callTimeout bounds the time a method call may wait for the event loop.
const callTimeout = 3 * time.Second

// Shell is the daemon behind the control interface. Implementations hand
// every call to the event loop and wait for it, bounded by ctx.
type Shell interface {
	Programs(ctx context.Context) ([]model.ProgramEntry, error)

	HoverEnter(ctx context.Context, program, anchor string) error
	HoverLeave(ctx context.Context, program string) error
	DetachAnchor(ctx context.Context, anchor string) error
	SelectorActivate(ctx context.Context, pid int, windowID string) error
	SelectorClose(ctx context.Context, pid int, windowID string) error

	SwitcherEnter(ctx context.Context) (bool, error)
	SwitcherKey(ctx context.Context, key string) error
	SwitcherWheel(ctx context.Context, deltaY float64) error
	SwitcherPress(ctx context.Context) error
	SwitcherState(ctx context.Context) (switcher.Snapshot, error)

	PopupShow(ctx context.Context, id string) (bool, error)
	PopupHide(ctx context.Context, id string, immediate bool) error
	PopupRegister(ctx context.Context, id string) error
	PopupUnregister(ctx context.Context, id string) error
	Click(ctx context.Context, target string) error
}

// ShellServer exports a Shell as org.taskdock.Shell on the session bus.
type ShellServer struct {
	conn   *dbus.Conn
	shell  Shell
	logger *slog.Logger

	mu      sync.Mutex
	running bool
}

// NewShellServer creates a server for shell.
func NewShellServer(shell Shell, logger *slog.Logger) *ShellServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &ShellServer{
		shell:  shell,
		logger: logger,
	}
}

// Start connects to the session bus and exports the control object.
func (s *ShellServer) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("server already running")
	}

	conn, err := dbus.SessionBus()
	if err != nil {
		return fmt.Errorf("failed to connect to session bus: %w", err)
	}
	s.conn = conn

	if err := conn.Export(s, ShellPath, ShellInterface); err != nil {
		return fmt.Errorf("failed to export object: %w", err)
	}

	node := &introspect.Node{
		Name: ShellPath,
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			{
				Name:    ShellInterface,
				Methods: shellMethods(),
				Signals: shellSignals(),
			},
		},
	}
	if err := conn.Export(introspect.NewIntrospectable(node), ShellPath,
		"org.freedesktop.DBus.Introspectable"); err != nil {
		return fmt.Errorf("failed to export introspectable: %w", err)
	}

	reply, err := conn.RequestName(ShellBusName, dbus.NameFlagDoNotQueue)
	if err != nil {
		return fmt.Errorf("failed to request bus name: %w", err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return fmt.Errorf("bus name %s already taken, is another taskdockd running?", ShellBusName)
	}

	s.running = true
	s.logger.Info("D-Bus control server started", "interface", ShellInterface, "path", ShellPath)
	return nil
}

// Stop releases the bus name and unexports the object.
func (s *ShellServer) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false

	if s.conn != nil {
		if _, err := s.conn.ReleaseName(ShellBusName); err != nil {
			s.logger.Warn("failed to release bus name", "error", err)
		}
		_ = s.conn.Export(nil, ShellPath, ShellInterface)
		// Don't close the connection as it's shared (SessionBus)
	}

	s.logger.Info("D-Bus control server stopped")
	return nil
}

// Connection returns the underlying D-Bus connection, or nil before Start.
func (s *ShellServer) Connection() *dbus.Conn {
	return s.conn
}

// GetPrograms returns the current program list.
// D-Bus method: GetPrograms() -> a(sibbba(isbsbb))
func (s *ShellServer) GetPrograms() ([]Program, *dbus.Error) {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	entries, err := s.shell.Programs(ctx)
	if err != nil {
		return nil, s.fail("GetPrograms", err)
	}
	return ProgramsToWire(entries), nil
}

// HoverEnter reports the pointer entering a taskbar item.
// D-Bus method: HoverEnter(ss)
func (s *ShellServer) HoverEnter(program, anchor string) *dbus.Error {
	return s.call("HoverEnter", func(ctx context.Context) error {
		return s.shell.HoverEnter(ctx, program, anchor)
	})
}

// HoverLeave reports the pointer leaving a taskbar item.
// D-Bus method: HoverLeave(s)
func (s *ShellServer) HoverLeave(program string) *dbus.Error {
	return s.call("HoverLeave", func(ctx context.Context) error {
		return s.shell.HoverLeave(ctx, program)
	})
}

// DetachAnchor marks a client-side anchor as removed.
// D-Bus method: DetachAnchor(s)
func (s *ShellServer) DetachAnchor(anchor string) *dbus.Error {
	return s.call("DetachAnchor", func(ctx context.Context) error {
		return s.shell.DetachAnchor(ctx, anchor)
	})
}

// SelectorActivate activates an instance from the selector.
// D-Bus method: SelectorActivate(is)
func (s *ShellServer) SelectorActivate(pid int32, windowID string) *dbus.Error {
	return s.call("SelectorActivate", func(ctx context.Context) error {
		return s.shell.SelectorActivate(ctx, int(pid), windowID)
	})
}

// SelectorClose closes an instance from the selector.
// D-Bus method: SelectorClose(is)
func (s *ShellServer) SelectorClose(pid int32, windowID string) *dbus.Error {
	return s.call("SelectorClose", func(ctx context.Context) error {
		return s.shell.SelectorClose(ctx, int(pid), windowID)
	})
}

// SwitcherEnter opens the task switcher.
// D-Bus method: SwitcherEnter() -> b
func (s *ShellServer) SwitcherEnter() (bool, *dbus.Error) {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	ok, err := s.shell.SwitcherEnter(ctx)
	if err != nil {
		return false, s.fail("SwitcherEnter", err)
	}
	return ok, nil
}

// SwitcherKey feeds a key press to the switcher.
// D-Bus method: SwitcherKey(s)
func (s *ShellServer) SwitcherKey(key string) *dbus.Error {
	return s.call("SwitcherKey", func(ctx context.Context) error {
		return s.shell.SwitcherKey(ctx, key)
	})
}

// SwitcherWheel feeds a wheel delta to the switcher.
// D-Bus method: SwitcherWheel(d)
func (s *ShellServer) SwitcherWheel(deltaY float64) *dbus.Error {
	return s.call("SwitcherWheel", func(ctx context.Context) error {
		return s.shell.SwitcherWheel(ctx, deltaY)
	})
}

// SwitcherPress confirms the highlighted switcher item.
// D-Bus method: SwitcherPress()
func (s *ShellServer) SwitcherPress() *dbus.Error {
	return s.call("SwitcherPress", func(ctx context.Context) error {
		return s.shell.SwitcherPress(ctx)
	})
}

// SwitcherState returns the current switcher session.
// D-Bus method: SwitcherState() -> (ssia(isissbb))
func (s *ShellServer) SwitcherState() (SwitcherState, *dbus.Error) {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	snap, err := s.shell.SwitcherState(ctx)
	if err != nil {
		return SwitcherState{}, s.fail("SwitcherState", err)
	}
	return SwitcherStateToWire(snap), nil
}

// PopupShow asks the coordinator to show a popup.
// D-Bus method: PopupShow(s) -> b
func (s *ShellServer) PopupShow(id string) (bool, *dbus.Error) {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	ok, err := s.shell.PopupShow(ctx, id)
	if err != nil {
		return false, s.fail("PopupShow", err)
	}
	return ok, nil
}

// PopupHide asks the coordinator to hide a popup.
// D-Bus method: PopupHide(sb)
func (s *ShellServer) PopupHide(id string, immediate bool) *dbus.Error {
	return s.call("PopupHide", func(ctx context.Context) error {
		return s.shell.PopupHide(ctx, id, immediate)
	})
}

// PopupRegister joins a peer popup to the exclusivity group.
// D-Bus method: PopupRegister(s)
func (s *ShellServer) PopupRegister(id string) *dbus.Error {
	return s.call("PopupRegister", func(ctx context.Context) error {
		return s.shell.PopupRegister(ctx, id)
	})
}

// PopupUnregister removes a peer popup from the exclusivity group.
// D-Bus method: PopupUnregister(s)
func (s *ShellServer) PopupUnregister(id string) *dbus.Error {
	return s.call("PopupUnregister", func(ctx context.Context) error {
		return s.shell.PopupUnregister(ctx, id)
	})
}

// Click reports a pointer click on target for outside-click handling.
// D-Bus method: Click(s)
func (s *ShellServer) Click(target string) *dbus.Error {
	return s.call("Click", func(ctx context.Context) error {
		return s.shell.Click(ctx, target)
	})
}

// call runs fn with a bounded context and converts its error.
func (s *ShellServer) call(method string, fn func(ctx context.Context) error) *dbus.Error {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	if err := fn(ctx); err != nil {
		return s.fail(method, err)
	}
	return nil
}

// fail logs err and maps it to a D-Bus error name.
func (s *ShellServer) fail(method string, err error) *dbus.Error {
	s.logger.Debug("D-Bus method failed", "method", method, "error", err)
	return toDBusError(err)
}

func toDBusError(err error) *dbus.Error {
	name := ErrorFailed
	switch {
	case errors.Is(err, registry.ErrNotFound):
		name = ErrorNotFound
	case errors.Is(err, registry.ErrUnavailable):
		name = ErrorUnavailable
	}
	return dbus.NewError(name, []interface{}{err.Error()})
}

// shellMethods returns the D-Bus method introspection data.
func shellMethods() []introspect.Method {
	in := func(name, typ string) introspect.Arg {
		return introspect.Arg{Name: name, Type: typ, Direction: "in"}
	}
	out := func(name, typ string) introspect.Arg {
		return introspect.Arg{Name: name, Type: typ, Direction: "out"}
	}
	return []introspect.Method{
		{Name: "GetPrograms", Args: []introspect.Arg{out("programs", "a"+ProgramSignature)}},
		{Name: "HoverEnter", Args: []introspect.Arg{in("program", "s"), in("anchor", "s")}},
		{Name: "HoverLeave", Args: []introspect.Arg{in("program", "s")}},
		{Name: "DetachAnchor", Args: []introspect.Arg{in("anchor", "s")}},
		{Name: "SelectorActivate", Args: []introspect.Arg{in("pid", "i"), in("window_id", "s")}},
		{Name: "SelectorClose", Args: []introspect.Arg{in("pid", "i"), in("window_id", "s")}},
		{Name: "SwitcherEnter", Args: []introspect.Arg{out("entered", "b")}},
		{Name: "SwitcherKey", Args: []introspect.Arg{in("key", "s")}},
		{Name: "SwitcherWheel", Args: []introspect.Arg{in("delta_y", "d")}},
		{Name: "SwitcherPress"},
		{Name: "SwitcherState", Args: []introspect.Arg{out("state", SwitcherStateSignature)}},
		{Name: "PopupShow", Args: []introspect.Arg{in("id", "s"), out("shown", "b")}},
		{Name: "PopupHide", Args: []introspect.Arg{in("id", "s"), in("immediate", "b")}},
		{Name: "PopupRegister", Args: []introspect.Arg{in("id", "s")}},
		{Name: "PopupUnregister", Args: []introspect.Arg{in("id", "s")}},
		{Name: "Click", Args: []introspect.Arg{in("target", "s")}},
	}
}

// shellSignals returns the D-Bus signal introspection data.
func shellSignals() []introspect.Signal {
	arg := func(name, typ string) introspect.Arg {
		return introspect.Arg{Name: name, Type: typ}
	}
	return []introspect.Signal{
		{Name: SignalProgramsChanged, Args: []introspect.Arg{arg("programs", "a"+ProgramSignature)}},
		{Name: SignalSelectorShown, Args: []introspect.Arg{arg("program", ProgramSignature), arg("anchor", "s")}},
		{Name: SignalSelectorHidden, Args: []introspect.Arg{arg("immediate", "b")}},
		{Name: SignalSwitcherOpened, Args: []introspect.Arg{arg("state", SwitcherStateSignature)}},
		{Name: SignalSwitcherSelection, Args: []introspect.Arg{arg("index", "i")}},
		{Name: SignalSwitcherScroll, Args: []introspect.Arg{arg("index", "i")}},
		{Name: SignalSwitcherUpdated, Args: []introspect.Arg{arg("items", "a"+SwitcherItemSignature), arg("selected", "i")}},
		{Name: SignalSwitcherClosed},
		{Name: SignalPeerShow, Args: []introspect.Arg{arg("id", "s")}},
		{Name: SignalPeerCloseRequested, Args: []introspect.Arg{arg("id", "s"), arg("immediate", "b")}},
	}
}
