package daemon

import (
	"fmt"

	"github.com/jmylchreest/taskdock/internal/model"
)

// anchorTable maps anchor names supplied by remote clients to view handles.
// Only touched on the loop goroutine.
type anchorTable struct {
	handles map[string]*model.Handle
}

func newAnchorTable() *anchorTable {
	return &anchorTable{handles: make(map[string]*model.Handle)}
}

// resolve returns the handle for name, creating it on first use. An empty
// name yields nil.
func (t *anchorTable) resolve(name string) model.ViewHandle {
	if name == "" {
		return nil
	}
	if h, ok := t.handles[name]; ok && h.Attached() {
		return h
	}
	h := model.NewHandle(name)
	t.handles[name] = h
	return h
}

// detach marks the handle for name as gone. Deferred work holding the old
// handle sees it detached; a later resolve creates a fresh one.
func (t *anchorTable) detach(name string) bool {
	h, ok := t.handles[name]
	if !ok {
		return false
	}
	h.Detach()
	delete(t.handles, name)
	return true
}

func (t *anchorTable) len() int {
	return len(t.handles)
}

// anchorName returns the client-facing name of a handle.
func anchorName(h model.ViewHandle) string {
	switch v := h.(type) {
	case nil:
		return ""
	case *model.Handle:
		if v == nil {
			return ""
		}
		return v.ID
	case fmt.Stringer:
		return v.String()
	default:
		return ""
	}
}
