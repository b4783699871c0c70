// Package popup coordinates transient overlays (menus, panels, selectors)
// so that at most one of them is visible at a time.
package popup

import (
	"log/slog"
	"slices"
	"time"

	"github.com/jmylchreest/taskdock/internal/loop"
	"github.com/jmylchreest/taskdock/internal/model"
)

// Options describes one overlay kind.
type Options struct {
	Anchor            model.ViewHandle
	OutsideExclusions []model.ViewHandle

	// OnShow starts the show transition. OnShown fires once it completes.
	OnShow  func()
	OnShown func()

	// OnHide removes the overlay. immediate is true when the overlay must
	// disappear without animation.
	OnHide func(immediate bool)

	// OnClickOutside handles a click outside the overlay. When nil the
	// overlay is hidden.
	OnClickOutside func()

	ShowDelay     time.Duration // debounce for ScheduleShow
	HideDelay     time.Duration // debounce for ScheduleHide
	ShowAnimation time.Duration
	HideAnimation time.Duration
}

type registration struct {
	id      string
	opts    Options
	visible bool
	closing bool
	latched bool

	showDebounce *loop.Debouncer
	hideDebounce *loop.Debouncer
	transition   *loop.Timer
}

// cancelTimers invalidates every pending callback of the registration.
func (r *registration) cancelTimers() {
	r.showDebounce.Cancel()
	r.hideDebounce.Cancel()
	r.transition.Stop()
	r.transition = nil
}

// Coordinator owns the exclusivity group. All methods must be called on the
// loop goroutine.
type Coordinator struct {
	s      loop.Scheduler
	logger *slog.Logger

	regs  map[string]*registration
	order []string

	// latches set before the overlay registers
	pendingLatches map[string]bool
}

// NewCoordinator creates an empty exclusivity group.
func NewCoordinator(s loop.Scheduler, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		s:              s,
		logger:         logger,
		regs:           make(map[string]*registration),
		pendingLatches: make(map[string]bool),
	}
}

// RegisterExclusive adds an overlay to the group. Registering an existing id
// replaces its options and keeps its state and timers.
func (c *Coordinator) RegisterExclusive(id string, opts Options) {
	if r, ok := c.regs[id]; ok {
		r.opts = opts
		r.showDebounce.SetDelay(opts.ShowDelay)
		r.hideDebounce.SetDelay(opts.HideDelay)
		c.logger.Debug("popup re-registered", "id", id)
		return
	}

	c.regs[id] = &registration{
		id:           id,
		opts:         opts,
		latched:      c.pendingLatches[id],
		showDebounce: loop.NewDebouncer(c.s, opts.ShowDelay),
		hideDebounce: loop.NewDebouncer(c.s, opts.HideDelay),
	}
	delete(c.pendingLatches, id)
	c.order = append(c.order, id)
	c.logger.Debug("popup registered", "id", id)
}

// Unregister removes an overlay and invalidates its timers. Its visual
// state is left alone; hide it first.
func (c *Coordinator) Unregister(id string) {
	r, ok := c.regs[id]
	if !ok {
		return
	}
	r.cancelTimers()
	delete(c.regs, id)
	c.order = slices.DeleteFunc(c.order, func(s string) bool { return s == id })
	if r.latched {
		c.pendingLatches[id] = true
	}
	c.logger.Debug("popup unregistered", "id", id, "was_visible", r.visible)
}

// Registered reports whether id is part of the group.
func (c *Coordinator) Registered(id string) bool {
	_, ok := c.regs[id]
	return ok
}

// RequestShow opens id, force-closing whichever other overlay is showing.
// It returns false when id is unknown or latched.
func (c *Coordinator) RequestShow(id string) bool {
	r, ok := c.regs[id]
	if !ok {
		c.logger.Warn("show requested for unregistered popup", "id", id)
		return false
	}
	if r.latched {
		c.logger.Debug("show refused, popup is force-closed", "id", id)
		return false
	}

	r.showDebounce.Cancel()
	r.hideDebounce.Cancel()

	if r.visible {
		return true
	}

	if r.closing {
		// Restart the show from the half-closed state.
		r.transition.Stop()
		r.transition = nil
		r.closing = false
		c.logger.Debug("popup hide interrupted by show", "id", id)
	}

	c.closeOthers(id)

	r.visible = true
	if r.opts.OnShow != nil {
		r.opts.OnShow()
	}
	r.transition = c.s.After(r.opts.ShowAnimation, func() {
		cur, ok := c.regs[id]
		if !ok || cur != r || !r.visible {
			return
		}
		r.transition = nil
		if r.opts.OnShown != nil {
			r.opts.OnShown()
		}
	})

	c.logger.Debug("popup shown", "id", id)
	return true
}

// RequestHide closes id. An immediate hide clears the overlay synchronously;
// otherwise the overlay is logically hidden now and visually removed after
// its hide animation.
func (c *Coordinator) RequestHide(id string, immediate bool) {
	r, ok := c.regs[id]
	if !ok {
		return
	}

	r.showDebounce.Cancel()
	r.hideDebounce.Cancel()

	if immediate {
		if r.visible || r.closing {
			c.forceHide(r)
		}
		return
	}

	if !r.visible {
		return
	}

	r.transition.Stop()
	r.visible = false
	r.closing = true
	r.transition = c.s.After(r.opts.HideAnimation, func() {
		cur, ok := c.regs[id]
		if !ok || cur != r || !r.closing {
			return
		}
		r.transition = nil
		r.closing = false
		if r.opts.OnHide != nil {
			r.opts.OnHide(false)
		}
		c.logger.Debug("popup hidden", "id", id)
	})
}

// ScheduleShow shows id after its show delay, unless a hide or another
// ScheduleShow intervenes.
func (c *Coordinator) ScheduleShow(id string) {
	r, ok := c.regs[id]
	if !ok {
		return
	}
	r.hideDebounce.Cancel()
	r.showDebounce.Trigger(func() {
		c.RequestShow(id)
	})
}

// ScheduleHide hides id after its hide delay, unless a show intervenes.
func (c *Coordinator) ScheduleHide(id string) {
	r, ok := c.regs[id]
	if !ok {
		return
	}
	r.showDebounce.Cancel()
	if !r.visible {
		return
	}
	r.hideDebounce.Trigger(func() {
		c.RequestHide(id, false)
	})
}

// CancelScheduled drops pending debounced show and hide requests for id.
func (c *Coordinator) CancelScheduled(id string) {
	if r, ok := c.regs[id]; ok {
		r.showDebounce.Cancel()
		r.hideDebounce.Cancel()
	}
}

// CloseAllExcept force-hides every overlay other than excludeID. An empty
// excludeID closes everything.
func (c *Coordinator) CloseAllExcept(excludeID string) {
	c.closeOthers(excludeID)
}

func (c *Coordinator) closeOthers(keep string) {
	for _, id := range slices.Clone(c.order) {
		if id == keep {
			continue
		}
		r, ok := c.regs[id]
		if !ok {
			continue
		}
		r.showDebounce.Cancel()
		r.hideDebounce.Cancel()
		if r.visible || r.closing {
			c.forceHide(r)
		}
	}
}

// forceHide clears the overlay without animation.
func (c *Coordinator) forceHide(r *registration) {
	r.cancelTimers()
	r.visible = false
	r.closing = false
	if r.opts.OnHide != nil {
		r.opts.OnHide(true)
	}
	c.logger.Debug("popup force-closed", "id", r.id)
}

// Latch blocks id from being shown until Unlatch. A visible overlay is
// closed immediately.
func (c *Coordinator) Latch(id string) {
	r, ok := c.regs[id]
	if !ok {
		c.pendingLatches[id] = true
		return
	}
	r.latched = true
	r.showDebounce.Cancel()
	if r.visible || r.closing {
		c.forceHide(r)
	}
}

// Unlatch clears the force-closed latch on id.
func (c *Coordinator) Unlatch(id string) {
	delete(c.pendingLatches, id)
	if r, ok := c.regs[id]; ok {
		r.latched = false
	}
}

// Latched reports whether id is force-closed.
func (c *Coordinator) Latched(id string) bool {
	if r, ok := c.regs[id]; ok {
		return r.latched
	}
	return c.pendingLatches[id]
}

// HandleClick routes a pointer press to the visible overlay when it landed
// outside the overlay's anchor and exclusions.
func (c *Coordinator) HandleClick(target model.ViewHandle) {
	for _, id := range slices.Clone(c.order) {
		r, ok := c.regs[id]
		if !ok || !r.visible {
			continue
		}
		if inside(target, r.opts.Anchor) || slices.ContainsFunc(r.opts.OutsideExclusions, func(h model.ViewHandle) bool {
			return inside(target, h)
		}) {
			continue
		}
		if r.opts.OnClickOutside != nil {
			r.opts.OnClickOutside()
		} else {
			c.RequestHide(id, false)
		}
	}
}

func inside(target, h model.ViewHandle) bool {
	if target == nil || h == nil {
		return false
	}
	if target == h {
		return true
	}
	if ct, ok := h.(model.Container); ok {
		return ct.Contains(target)
	}
	return false
}

// IsVisible reports whether id is logically visible.
func (c *Coordinator) IsVisible(id string) bool {
	r, ok := c.regs[id]
	return ok && r.visible
}

// IsClosing reports whether id is animating closed.
func (c *Coordinator) IsClosing(id string) bool {
	r, ok := c.regs[id]
	return ok && r.closing
}

// Current returns the visible overlay id, or "" when none is visible.
func (c *Coordinator) Current() string {
	for _, id := range c.order {
		if c.regs[id].visible {
			return id
		}
	}
	return ""
}

// Visible returns every visible overlay id. Outside of bugs this has at
// most one element.
func (c *Coordinator) Visible() []string {
	var out []string
	for _, id := range c.order {
		if c.regs[id].visible {
			out = append(out, id)
		}
	}
	return out
}

// Pending returns the number of live timers held by the group.
func (c *Coordinator) Pending() int {
	n := 0
	for _, r := range c.regs {
		if r.showDebounce.Pending() {
			n++
		}
		if r.hideDebounce.Pending() {
			n++
		}
		if r.transition.Active() {
			n++
		}
	}
	return n
}
