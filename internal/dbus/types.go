package dbus

import (
	"github.com/godbus/dbus/v5"

	"github.com/jmylchreest/taskdock/internal/model"
	"github.com/jmylchreest/taskdock/internal/switcher"
)

const (
	// ShellInterface is the taskdock control interface name.
	ShellInterface = "org.taskdock.Shell"
	// ShellPath is the control object path.
	ShellPath = "/org/taskdock/Shell"
	// ShellBusName is the bus name claimed by taskdockd.
	ShellBusName = "org.taskdock.Shell"

	// NotificationsInterface is the desktop notification interface.
	NotificationsInterface = "org.freedesktop.Notifications"
	// NotificationsPath is the desktop notification object path.
	NotificationsPath = "/org/freedesktop/Notifications"
	// NotificationsBusName is the bus name of the notification daemon.
	NotificationsBusName = "org.freedesktop.Notifications"
)

// Error names returned by the control interface.
const (
	ErrorNotFound    = ShellInterface + ".Error.NotFound"
	ErrorUnavailable = ShellInterface + ".Error.Unavailable"
	ErrorFailed      = ShellInterface + ".Error.Failed"
)

// D-Bus signatures of the wire structs, used in introspection data.
const (
	InstanceSignature      = "(isbsbb)"
	ProgramSignature       = "(sibbba" + InstanceSignature + ")"
	SwitcherItemSignature  = "(isissbb)"
	SwitcherStateSignature = "(ssia" + SwitcherItemSignature + ")"
)

// Instance is the wire form of model.InstanceRef.
// D-Bus type: (isbsbb)
type Instance struct {
	PID          int32
	WindowID     string
	IsMainWindow bool
	Title        string
	IsMinimized  bool
	IsFocused    bool
}

// Program is the wire form of model.ProgramEntry.
// D-Bus type: (sibbba(isbsbb))
type Program struct {
	Name              string
	RepresentativePID int32
	IsRunning         bool
	IsMinimized       bool
	IsPinned          bool
	Instances         []Instance
}

// SwitcherItem is the wire form of model.SwitcherItem.
// D-Bus type: (isissbb)
type SwitcherItem struct {
	Index       int32
	WindowID    string
	PID         int32
	ProgramName string
	Title       string
	IsMinimized bool
	IsFocused   bool
}

// SwitcherState is the wire form of switcher.Snapshot.
// D-Bus type: (ssia(isissbb))
type SwitcherState struct {
	ID       string
	State    string
	Selected int32
	Items    []SwitcherItem
}

// ProgramsToWire converts program entries for transmission.
func ProgramsToWire(entries []model.ProgramEntry) []Program {
	out := make([]Program, 0, len(entries))
	for _, e := range entries {
		out = append(out, ProgramToWire(e))
	}
	return out
}

// ProgramToWire converts one program entry for transmission.
func ProgramToWire(e model.ProgramEntry) Program {
	return Program{
		Name:              e.Name,
		RepresentativePID: int32(e.RepresentativePID),
		IsRunning:         e.IsRunning,
		IsMinimized:       e.IsMinimized,
		IsPinned:          e.IsPinned,
		Instances:         InstancesToWire(e.Instances),
	}
}

// InstancesToWire converts instances for transmission.
func InstancesToWire(instances []model.InstanceRef) []Instance {
	out := make([]Instance, 0, len(instances))
	for _, inst := range instances {
		out = append(out, Instance{
			PID:          int32(inst.PID),
			WindowID:     inst.WindowID,
			IsMainWindow: inst.IsMainWindow,
			Title:        inst.Title,
			IsMinimized:  inst.IsMinimized,
			IsFocused:    inst.IsFocused,
		})
	}
	return out
}

// ProgramsFromWire converts received programs back into model entries.
func ProgramsFromWire(programs []Program) []model.ProgramEntry {
	out := make([]model.ProgramEntry, 0, len(programs))
	for _, p := range programs {
		out = append(out, model.ProgramEntry{
			Name:              p.Name,
			RepresentativePID: int(p.RepresentativePID),
			IsRunning:         p.IsRunning,
			IsMinimized:       p.IsMinimized,
			IsPinned:          p.IsPinned,
			Instances:         InstancesFromWire(p.Instances),
		})
	}
	return out
}

// InstancesFromWire converts received instances back into model refs.
func InstancesFromWire(instances []Instance) []model.InstanceRef {
	out := make([]model.InstanceRef, 0, len(instances))
	for _, inst := range instances {
		out = append(out, model.InstanceRef{
			PID:          int(inst.PID),
			WindowID:     inst.WindowID,
			IsMainWindow: inst.IsMainWindow,
			Title:        inst.Title,
			IsMinimized:  inst.IsMinimized,
			IsFocused:    inst.IsFocused,
		})
	}
	return out
}

// SwitcherItemsToWire converts switcher rows for transmission.
func SwitcherItemsToWire(items []model.SwitcherItem) []SwitcherItem {
	out := make([]SwitcherItem, 0, len(items))
	for _, it := range items {
		out = append(out, SwitcherItem{
			Index:       int32(it.Index),
			WindowID:    it.WindowID,
			PID:         int32(it.PID),
			ProgramName: it.ProgramName,
			Title:       it.Title,
			IsMinimized: it.IsMinimized,
			IsFocused:   it.IsFocused,
		})
	}
	return out
}

// SwitcherItemsFromWire converts received switcher rows.
func SwitcherItemsFromWire(items []SwitcherItem) []model.SwitcherItem {
	out := make([]model.SwitcherItem, 0, len(items))
	for _, it := range items {
		out = append(out, model.SwitcherItem{
			Index:       int(it.Index),
			WindowID:    it.WindowID,
			PID:         int(it.PID),
			ProgramName: it.ProgramName,
			Title:       it.Title,
			IsMinimized: it.IsMinimized,
			IsFocused:   it.IsFocused,
		})
	}
	return out
}

// SwitcherStateToWire converts an engine snapshot for transmission.
func SwitcherStateToWire(s switcher.Snapshot) SwitcherState {
	return SwitcherState{
		ID:       s.ID,
		State:    s.State,
		Selected: int32(s.Selected),
		Items:    SwitcherItemsToWire(s.Items),
	}
}

// Snapshot converts the wire state back into an engine snapshot.
func (s SwitcherState) Snapshot() switcher.Snapshot {
	return switcher.Snapshot{
		ID:       s.ID,
		State:    s.State,
		Items:    SwitcherItemsFromWire(s.Items),
		Selected: int(s.Selected),
	}
}

// Urgency levels of the desktop notification "urgency" hint.
const (
	UrgencyLow      byte = 0
	UrgencyNormal   byte = 1
	UrgencyCritical byte = 2
)

// DesktopNotification is an outgoing org.freedesktop.Notifications Notify
// call.
type DesktopNotification struct {
	AppName       string
	ReplacesID    uint32
	AppIcon       string
	Summary       string
	Body          string
	Actions       []string
	Hints         map[string]dbus.Variant
	ExpireTimeout int32 // -1 = server default, 0 = never
}

// NewDesktopNotification creates a transient notification from taskdockd.
func NewDesktopNotification(summary, body string, urgency byte) *DesktopNotification {
	return &DesktopNotification{
		AppName: "taskdock",
		AppIcon: "dialog-information",
		Summary: summary,
		Body:    body,
		Hints: map[string]dbus.Variant{
			"urgency":   dbus.MakeVariant(urgency),
			"transient": dbus.MakeVariant(true),
		},
		ExpireTimeout: -1,
	}
}

// Urgency extracts the urgency hint. Returns UrgencyNormal if not specified.
func (n *DesktopNotification) Urgency() byte {
	if v, ok := n.Hints["urgency"]; ok {
		switch u := v.Value().(type) {
		case byte:
			return u
		case int32:
			return byte(u)
		case uint32:
			return byte(u)
		}
	}
	return UrgencyNormal
}

// Transient returns true if the transient hint is set.
func (n *DesktopNotification) Transient() bool {
	if v, ok := n.Hints["transient"]; ok {
		if b, ok := v.Value().(bool); ok {
			return b
		}
	}
	return false
}

// args returns the Notify call arguments. Nil collections are sent empty.
func (n *DesktopNotification) args() []interface{} {
	actions := n.Actions
	if actions == nil {
		actions = []string{}
	}
	hints := n.Hints
	if hints == nil {
		hints = map[string]dbus.Variant{}
	}
	return []interface{}{
		n.AppName, n.ReplacesID, n.AppIcon, n.Summary, n.Body,
		actions, hints, n.ExpireTimeout,
	}
}
