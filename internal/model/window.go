package model

import "sync/atomic"

// ViewHandle is an opaque reference to an on-screen element (a window, a
// taskbar icon, an overlay). Deferred work checks Attached before acting.
type ViewHandle interface {
	Attached() bool
}

// Container is implemented by handles that enclose other handles. Outside
// click detection treats a click on a contained handle as inside.
type Container interface {
	Contains(other ViewHandle) bool
}

// WindowRecord is a snapshot of one top-level window.
type WindowRecord struct {
	WindowID     string     `json:"window_id"`
	PID          int        `json:"pid"`
	Title        string     `json:"title"`
	IsMainWindow bool       `json:"is_main_window"`
	IsMinimized  bool       `json:"is_minimized"`
	IsFocused    bool       `json:"is_focused"`
	Handle       ViewHandle `json:"-"`
}

// Attached reports whether the window's view handle is still live.
// Windows without a handle are treated as detached.
func (w WindowRecord) Attached() bool {
	return w.Handle != nil && w.Handle.Attached()
}

// Handle is a ViewHandle backed by an atomic flag. It is used for anchors
// supplied by remote clients and by the in-memory registries.
type Handle struct {
	ID       string
	detached atomic.Bool
}

// NewHandle returns an attached handle.
func NewHandle(id string) *Handle {
	return &Handle{ID: id}
}

// Attached implements ViewHandle.
func (h *Handle) Attached() bool {
	return h != nil && !h.detached.Load()
}

// Detach marks the handle as removed from the view tree.
func (h *Handle) Detach() {
	h.detached.Store(true)
}

// String returns the handle id.
func (h *Handle) String() string {
	return h.ID
}
