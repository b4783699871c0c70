package dbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/godbus/dbus/v5"

	"github.com/jmylchreest/taskdock/internal/model"
	"github.com/jmylchreest/taskdock/internal/switcher"
)

// ErrDaemonNotRunning is returned when nothing owns the taskdock bus name.
var ErrDaemonNotRunning = errors.New("taskdockd is not running")

// Client talks to a running taskdockd over the session bus.
type Client struct {
	conn   *dbus.Conn
	obj    dbus.BusObject
	logger *slog.Logger
}

// Connect opens a private session bus connection and checks that taskdockd
// owns its bus name.
func Connect(logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}

	var owned bool
	if err := conn.BusObject().Call("org.freedesktop.DBus.NameHasOwner", 0, ShellBusName).Store(&owned); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to query bus name owner: %w", err)
	}
	if !owned {
		_ = conn.Close()
		return nil, ErrDaemonNotRunning
	}

	return &Client{
		conn:   conn,
		obj:    conn.Object(ShellBusName, ShellPath),
		logger: logger,
	}, nil
}

// Close closes the client connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Conn returns the underlying connection.
func (c *Client) Conn() *dbus.Conn {
	return c.conn
}

func (c *Client) call(ctx context.Context, method string, args ...interface{}) *dbus.Call {
	return c.obj.CallWithContext(ctx, ShellInterface+"."+method, 0, args...)
}

// Programs fetches the current program list.
func (c *Client) Programs(ctx context.Context) ([]model.ProgramEntry, error) {
	var programs []Program
	if err := c.call(ctx, "GetPrograms").Store(&programs); err != nil {
		return nil, fmt.Errorf("GetPrograms: %w", err)
	}
	return ProgramsFromWire(programs), nil
}

// HoverEnter reports the pointer entering the taskbar item of program.
func (c *Client) HoverEnter(ctx context.Context, program, anchor string) error {
	return c.call(ctx, "HoverEnter", program, anchor).Err
}

// HoverLeave reports the pointer leaving the taskbar item of program.
func (c *Client) HoverLeave(ctx context.Context, program string) error {
	return c.call(ctx, "HoverLeave", program).Err
}

// DetachAnchor marks an anchor as removed from the client's view.
func (c *Client) DetachAnchor(ctx context.Context, anchor string) error {
	return c.call(ctx, "DetachAnchor", anchor).Err
}

// SelectorActivate activates an instance shown in the selector.
func (c *Client) SelectorActivate(ctx context.Context, pid int, windowID string) error {
	return c.call(ctx, "SelectorActivate", int32(pid), windowID).Err
}

// SelectorClose closes an instance shown in the selector.
func (c *Client) SelectorClose(ctx context.Context, pid int, windowID string) error {
	return c.call(ctx, "SelectorClose", int32(pid), windowID).Err
}

// SwitcherEnter opens the switcher. It returns false when entry was refused.
func (c *Client) SwitcherEnter(ctx context.Context) (bool, error) {
	var ok bool
	if err := c.call(ctx, "SwitcherEnter").Store(&ok); err != nil {
		return false, fmt.Errorf("SwitcherEnter: %w", err)
	}
	return ok, nil
}

// SwitcherKey sends a key name to the switcher.
func (c *Client) SwitcherKey(ctx context.Context, key string) error {
	return c.call(ctx, "SwitcherKey", key).Err
}

// SwitcherWheel sends a wheel delta to the switcher.
func (c *Client) SwitcherWheel(ctx context.Context, deltaY float64) error {
	return c.call(ctx, "SwitcherWheel", deltaY).Err
}

// SwitcherPress confirms the highlighted switcher item.
func (c *Client) SwitcherPress(ctx context.Context) error {
	return c.call(ctx, "SwitcherPress").Err
}

// SwitcherState fetches the current switcher session.
func (c *Client) SwitcherState(ctx context.Context) (switcher.Snapshot, error) {
	var state SwitcherState
	if err := c.call(ctx, "SwitcherState").Store(&state); err != nil {
		return switcher.Snapshot{}, fmt.Errorf("SwitcherState: %w", err)
	}
	return state.Snapshot(), nil
}

// PopupShow asks the coordinator to show popup id.
func (c *Client) PopupShow(ctx context.Context, id string) (bool, error) {
	var ok bool
	if err := c.call(ctx, "PopupShow", id).Store(&ok); err != nil {
		return false, fmt.Errorf("PopupShow: %w", err)
	}
	return ok, nil
}

// PopupHide asks the coordinator to hide popup id.
func (c *Client) PopupHide(ctx context.Context, id string, immediate bool) error {
	return c.call(ctx, "PopupHide", id, immediate).Err
}

// PopupRegister joins popup id to the exclusivity group.
func (c *Client) PopupRegister(ctx context.Context, id string) error {
	return c.call(ctx, "PopupRegister", id).Err
}

// PopupUnregister removes popup id from the exclusivity group.
func (c *Client) PopupUnregister(ctx context.Context, id string) error {
	return c.call(ctx, "PopupUnregister", id).Err
}

// Click reports a click on target.
func (c *Client) Click(ctx context.Context, target string) error {
	return c.call(ctx, "Click", target).Err
}

// Subscribe delivers taskdockd signals until ctx is cancelled. The returned
// channel is closed afterwards.
func (c *Client) Subscribe(ctx context.Context) (<-chan Event, error) {
	opts := []dbus.MatchOption{
		dbus.WithMatchObjectPath(ShellPath),
		dbus.WithMatchInterface(ShellInterface),
	}
	if err := c.conn.AddMatchSignal(opts...); err != nil {
		return nil, fmt.Errorf("failed to add match rule: %w", err)
	}

	raw := make(chan *dbus.Signal, 64)
	c.conn.Signal(raw)

	events := make(chan Event, 16)
	go func() {
		defer close(events)
		defer func() {
			c.conn.RemoveSignal(raw)
			if err := c.conn.RemoveMatchSignal(opts...); err != nil {
				c.logger.Debug("failed to remove match rule", "error", err)
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case sig, ok := <-raw:
				if !ok {
					return
				}
				ev, ok := ParseSignal(sig)
				if !ok {
					continue
				}
				select {
				case events <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return events, nil
}

// Notify sends a desktop notification through org.freedesktop.Notifications
// and returns the id assigned by the notification daemon.
func Notify(ctx context.Context, conn *dbus.Conn, n *DesktopNotification) (uint32, error) {
	if conn == nil {
		return 0, fmt.Errorf("not connected to D-Bus")
	}

	obj := conn.Object(NotificationsBusName, NotificationsPath)
	var id uint32
	if err := obj.CallWithContext(ctx, NotificationsInterface+".Notify", 0, n.args()...).Store(&id); err != nil {
		return 0, fmt.Errorf("failed to send notification: %w", err)
	}
	return id, nil
}
