package dbus

import (
	"fmt"
	"strings"

	"github.com/godbus/dbus/v5"

	"github.com/jmylchreest/taskdock/internal/model"
)

// Signal member names on org.taskdock.Shell.
const (
	SignalProgramsChanged    = "ProgramsChanged"
	SignalSelectorShown      = "SelectorShown"
	SignalSelectorHidden     = "SelectorHidden"
	SignalSwitcherOpened     = "SwitcherOpened"
	SignalSwitcherSelection  = "SwitcherSelection"
	SignalSwitcherScroll     = "SwitcherScroll"
	SignalSwitcherUpdated    = "SwitcherUpdated"
	SignalSwitcherClosed     = "SwitcherClosed"
	SignalPeerShow           = "PeerShow"
	SignalPeerCloseRequested = "PeerCloseRequested"
)

// emit sends one signal from the control object.
func (s *ShellServer) emit(member string, args ...interface{}) error {
	if s.conn == nil {
		return fmt.Errorf("not connected to D-Bus")
	}

	if err := s.conn.Emit(ShellPath, ShellInterface+"."+member, args...); err != nil {
		return fmt.Errorf("failed to emit %s signal: %w", member, err)
	}

	s.logger.Debug("emitted signal", "signal", member)
	return nil
}

// EmitProgramsChanged publishes a new program list.
func (s *ShellServer) EmitProgramsChanged(entries []model.ProgramEntry) error {
	return s.emit(SignalProgramsChanged, ProgramsToWire(entries))
}

// EmitSelectorShown asks the renderer to show the selector for entry.
func (s *ShellServer) EmitSelectorShown(entry model.ProgramEntry, anchor string) error {
	return s.emit(SignalSelectorShown, ProgramToWire(entry), anchor)
}

// EmitSelectorHidden asks the renderer to remove the selector.
func (s *ShellServer) EmitSelectorHidden(immediate bool) error {
	return s.emit(SignalSelectorHidden, immediate)
}

// EmitSwitcherOpened publishes a new switcher session.
func (s *ShellServer) EmitSwitcherOpened(state SwitcherState) error {
	return s.emit(SignalSwitcherOpened, state)
}

// EmitSwitcherSelection publishes the highlighted index.
func (s *ShellServer) EmitSwitcherSelection(index int) error {
	return s.emit(SignalSwitcherSelection, int32(index))
}

// EmitSwitcherScroll asks the renderer to scroll index into view.
func (s *ShellServer) EmitSwitcherScroll(index int) error {
	return s.emit(SignalSwitcherScroll, int32(index))
}

// EmitSwitcherUpdated publishes the item list after a live removal.
func (s *ShellServer) EmitSwitcherUpdated(items []model.SwitcherItem, selected int) error {
	return s.emit(SignalSwitcherUpdated, SwitcherItemsToWire(items), int32(selected))
}

// EmitSwitcherClosed asks the renderer to remove the switcher overlay.
func (s *ShellServer) EmitSwitcherClosed() error {
	return s.emit(SignalSwitcherClosed)
}

// EmitPeerShow tells a peer popup it may show.
func (s *ShellServer) EmitPeerShow(id string) error {
	return s.emit(SignalPeerShow, id)
}

// EmitPeerCloseRequested tells a peer popup to close.
func (s *ShellServer) EmitPeerCloseRequested(id string, immediate bool) error {
	return s.emit(SignalPeerCloseRequested, id, immediate)
}

// Event is a decoded org.taskdock.Shell signal. Only the fields relevant to
// Name are set.
type Event struct {
	Name string

	Programs  []model.ProgramEntry
	Program   model.ProgramEntry
	Anchor    string
	Immediate bool

	Switcher SwitcherState
	Items    []model.SwitcherItem
	Index    int

	PopupID string
}

// ParseSignal decodes a signal received from taskdockd. It returns false for
// signals from other interfaces or with an unexpected body.
func ParseSignal(sig *dbus.Signal) (Event, bool) {
	if sig == nil || sig.Path != ShellPath {
		return Event{}, false
	}
	member, ok := strings.CutPrefix(sig.Name, ShellInterface+".")
	if !ok {
		return Event{}, false
	}

	ev := Event{Name: member}
	var err error
	switch member {
	case SignalProgramsChanged:
		var programs []Program
		err = dbus.Store(sig.Body, &programs)
		ev.Programs = ProgramsFromWire(programs)
	case SignalSelectorShown:
		var program Program
		err = dbus.Store(sig.Body, &program, &ev.Anchor)
		if err == nil {
			ev.Program = ProgramsFromWire([]Program{program})[0]
		}
	case SignalSelectorHidden:
		err = dbus.Store(sig.Body, &ev.Immediate)
	case SignalSwitcherOpened:
		err = dbus.Store(sig.Body, &ev.Switcher)
	case SignalSwitcherSelection, SignalSwitcherScroll:
		var index int32
		err = dbus.Store(sig.Body, &index)
		ev.Index = int(index)
	case SignalSwitcherUpdated:
		var items []SwitcherItem
		var selected int32
		err = dbus.Store(sig.Body, &items, &selected)
		ev.Items = SwitcherItemsFromWire(items)
		ev.Index = int(selected)
	case SignalSwitcherClosed:
	case SignalPeerShow:
		err = dbus.Store(sig.Body, &ev.PopupID)
	case SignalPeerCloseRequested:
		err = dbus.Store(sig.Body, &ev.PopupID, &ev.Immediate)
	default:
		return Event{}, false
	}
	if err != nil {
		return Event{}, false
	}
	return ev, true
}
