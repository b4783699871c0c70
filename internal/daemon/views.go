package daemon

import (
	"github.com/jmylchreest/taskdock/internal/dbus"
	"github.com/jmylchreest/taskdock/internal/model"
	"github.com/jmylchreest/taskdock/internal/switcher"
)

// Emitter publishes view state to renderers. dbus.ShellServer implements it.
type Emitter interface {
	EmitProgramsChanged(entries []model.ProgramEntry) error
	EmitSelectorShown(entry model.ProgramEntry, anchor string) error
	EmitSelectorHidden(immediate bool) error
	EmitSwitcherOpened(state dbus.SwitcherState) error
	EmitSwitcherSelection(index int) error
	EmitSwitcherScroll(index int) error
	EmitSwitcherUpdated(items []model.SwitcherItem, selected int) error
	EmitSwitcherClosed() error
	EmitPeerShow(id string) error
	EmitPeerCloseRequested(id string, immediate bool) error
}

var _ Emitter = (*dbus.ShellServer)(nil)

// signal runs fn against the current emitter. Failures are logged; the
// renderer catches up on the next state change.
func (sh *Shell) signal(name string, fn func(e Emitter) error) {
	if sh.emitter == nil {
		return
	}
	if err := fn(sh.emitter); err != nil {
		sh.logger.Debug("failed to emit signal", "signal", name, "error", err)
	}
}

// selectorView renders the instance selector through signals.
type selectorView struct{ sh *Shell }

func (v selectorView) ShowSelector(entry model.ProgramEntry, anchor model.ViewHandle) {
	v.sh.signal(dbus.SignalSelectorShown, func(e Emitter) error {
		return e.EmitSelectorShown(entry, anchorName(anchor))
	})
}

func (v selectorView) HideSelector(immediate bool) {
	v.sh.signal(dbus.SignalSelectorHidden, func(e Emitter) error {
		return e.EmitSelectorHidden(immediate)
	})
}

// switcherView renders the task switcher through signals.
type switcherView struct{ sh *Shell }

func (v switcherView) Open(s switcher.Snapshot) {
	v.sh.signal(dbus.SignalSwitcherOpened, func(e Emitter) error {
		return e.EmitSwitcherOpened(dbus.SwitcherStateToWire(s))
	})
}

func (v switcherView) Select(index int) {
	v.sh.signal(dbus.SignalSwitcherSelection, func(e Emitter) error {
		return e.EmitSwitcherSelection(index)
	})
}

func (v switcherView) ScrollIntoView(index int) {
	v.sh.signal(dbus.SignalSwitcherScroll, func(e Emitter) error {
		return e.EmitSwitcherScroll(index)
	})
}

func (v switcherView) Update(items []model.SwitcherItem, selected int) {
	v.sh.signal(dbus.SignalSwitcherUpdated, func(e Emitter) error {
		return e.EmitSwitcherUpdated(items, selected)
	})
}

func (v switcherView) Close() {
	v.sh.signal(dbus.SignalSwitcherClosed, func(e Emitter) error {
		return e.EmitSwitcherClosed()
	})
}
