package model

// InstanceRef is one taskbar instance of a program: either a window or a
// bare, windowless process.
type InstanceRef struct {
	PID          int    `json:"pid" yaml:"pid"`
	WindowID     string `json:"window_id,omitempty" yaml:"window_id,omitempty"`
	IsMainWindow bool   `json:"is_main_window,omitempty" yaml:"is_main_window,omitempty"`
	Title        string `json:"title,omitempty" yaml:"title,omitempty"`
	IsMinimized  bool   `json:"is_minimized" yaml:"is_minimized"`
	IsFocused    bool   `json:"is_focused,omitempty" yaml:"is_focused,omitempty"`
}

// HasWindow reports whether the instance refers to a window.
func (i InstanceRef) HasWindow() bool {
	return i.WindowID != ""
}

// ProgramEntry is the display-level representation of every running
// instance of one named application.
type ProgramEntry struct {
	Name              string        `json:"name" yaml:"name"`
	RepresentativePID int           `json:"representative_pid,omitempty" yaml:"representative_pid,omitempty"`
	IsRunning         bool          `json:"is_running" yaml:"is_running"`
	IsMinimized       bool          `json:"is_minimized" yaml:"is_minimized"`
	IsPinned          bool          `json:"is_pinned,omitempty" yaml:"is_pinned,omitempty"`
	Instances         []InstanceRef `json:"instances" yaml:"instances"`

	// Unresolved is set when the registries reported the program running
	// but no instance could be resolved for it.
	Unresolved bool `json:"-" yaml:"-"`
}

// IsFocused reports whether any instance holds input focus.
func (p ProgramEntry) IsFocused() bool {
	for _, inst := range p.Instances {
		if inst.IsFocused {
			return true
		}
	}
	return false
}

// FocusedTitle returns the title of the focused instance, if any.
func (p ProgramEntry) FocusedTitle() string {
	for _, inst := range p.Instances {
		if inst.IsFocused {
			return inst.Title
		}
	}
	return ""
}

// Instance finds an instance by pid and window id.
func (p ProgramEntry) Instance(pid int, windowID string) (InstanceRef, bool) {
	for _, inst := range p.Instances {
		if inst.PID == pid && inst.WindowID == windowID {
			return inst, true
		}
	}
	return InstanceRef{}, false
}

// WindowsForPID counts the instances of pid that carry a window.
func (p ProgramEntry) WindowsForPID(pid int) int {
	n := 0
	for _, inst := range p.Instances {
		if inst.PID == pid && inst.HasWindow() {
			n++
		}
	}
	return n
}

// SwitcherItem is one selectable row of a task switcher session.
type SwitcherItem struct {
	Index       int    `json:"index" yaml:"index"`
	WindowID    string `json:"window_id" yaml:"window_id"`
	PID         int    `json:"pid" yaml:"pid"`
	ProgramName string `json:"program_name" yaml:"program_name"`
	Title       string `json:"title" yaml:"title"`
	IsMinimized bool   `json:"is_minimized" yaml:"is_minimized"`
	IsFocused   bool   `json:"is_focused" yaml:"is_focused"`
}
