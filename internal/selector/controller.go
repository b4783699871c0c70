// Package selector implements the hover-driven popup that lists every
// instance of a taskbar program.
package selector

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jmylchreest/taskdock/internal/core"
	"github.com/jmylchreest/taskdock/internal/loop"
	"github.com/jmylchreest/taskdock/internal/model"
	"github.com/jmylchreest/taskdock/internal/popup"
	"github.com/jmylchreest/taskdock/internal/registry"
)

// PopupID is the selector's id in the popup exclusivity group.
const PopupID = "instance-selector"

// delegateTimeout bounds every window or process action.
const delegateTimeout = 2 * time.Second

// View renders the selector popup.
type View interface {
	ShowSelector(entry model.ProgramEntry, anchor model.ViewHandle)
	HideSelector(immediate bool)
}

// NopView discards rendering requests.
type NopView struct{}

func (NopView) ShowSelector(model.ProgramEntry, model.ViewHandle) {}
func (NopView) HideSelector(bool)                                 {}

// Options configures selector timing.
type Options struct {
	ShowDelay     time.Duration // hover time before the selector opens
	HideDelay     time.Duration // grace period after the pointer leaves
	RetryBackoff  time.Duration // wait before retrying a show blocked by another
	SettleDelay   time.Duration // wait after an action before re-showing
	ShowAnimation time.Duration
	HideAnimation time.Duration
	MaxRetries    int
}

// DefaultOptions returns the standard selector timing.
func DefaultOptions() Options {
	return Options{
		ShowDelay:     300 * time.Millisecond,
		HideDelay:     200 * time.Millisecond,
		RetryBackoff:  400 * time.Millisecond,
		SettleDelay:   450 * time.Millisecond,
		ShowAnimation: 150 * time.Millisecond,
		HideAnimation: 150 * time.Millisecond,
		MaxRetries:    10,
	}
}

// Controller drives the instance selector. All methods must be called on
// the loop goroutine.
type Controller struct {
	s      loop.Scheduler
	coord  *popup.Coordinator
	agg    *core.Aggregator
	view   View
	logger *slog.Logger
	opts   Options

	hover  *loop.Debouncer
	retry  *loop.Backoff
	settle *loop.Debouncer

	// showing is set from the show request until the popup's show
	// transition completes.
	showing        bool
	showingProgram string

	// resolving names the program whose instances are being read off the
	// loop. gen invalidates resolutions superseded by a later show or hide.
	resolving string
	gen       uint64

	current *model.ProgramEntry
	anchor  model.ViewHandle
	hovered string
}

// New creates a controller and registers its popup with coord.
func New(s loop.Scheduler, coord *popup.Coordinator, agg *core.Aggregator, view View, logger *slog.Logger, opts Options) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	if view == nil {
		view = NopView{}
	}
	c := &Controller{
		s:      s,
		coord:  coord,
		agg:    agg,
		view:   view,
		logger: logger,
		opts:   opts,
		hover:  loop.NewDebouncer(s, opts.ShowDelay),
		retry:  loop.NewBackoff(s, opts.RetryBackoff, opts.MaxRetries),
		settle: loop.NewDebouncer(s, opts.SettleDelay),
	}
	coord.RegisterExclusive(PopupID, c.popupOptions())
	return c
}

// SetOptions applies new timing. Pending timers keep their old delays.
func (c *Controller) SetOptions(opts Options) {
	c.opts = opts
	c.hover.SetDelay(opts.ShowDelay)
	c.retry.SetDelay(opts.RetryBackoff)
	c.settle.SetDelay(opts.SettleDelay)
	c.coord.RegisterExclusive(PopupID, c.popupOptions())
}

func (c *Controller) popupOptions() popup.Options {
	return popup.Options{
		Anchor:        c.anchor,
		OnShow:        c.onShow,
		OnShown:       c.clearShowing,
		OnHide:        c.onHide,
		HideDelay:     c.opts.HideDelay,
		ShowAnimation: c.opts.ShowAnimation,
		HideAnimation: c.opts.HideAnimation,
	}
}

// OnHoverEnter is called when the pointer enters a program's taskbar icon.
func (c *Controller) OnHoverEnter(program string, anchor model.ViewHandle) {
	c.hovered = program
	c.coord.CancelScheduled(PopupID)
	c.hover.Trigger(func() {
		c.show(program, anchor)
	})
}

// OnHoverLeave is called when the pointer leaves a program's taskbar icon.
func (c *Controller) OnHoverLeave(program string) {
	if c.hovered == program {
		c.hovered = ""
		c.hover.Cancel()
	}
	c.coord.ScheduleHide(PopupID)
}

// OnPopupEnter keeps the selector open while the pointer is over it.
func (c *Controller) OnPopupEnter() {
	c.coord.CancelScheduled(PopupID)
}

// OnPopupLeave starts the hide grace period.
func (c *Controller) OnPopupLeave() {
	c.coord.ScheduleHide(PopupID)
}

// Hide closes the selector and drops every pending hover, retry, settle or
// resolution that would reopen it.
func (c *Controller) Hide(immediate bool) {
	c.hover.Cancel()
	c.retry.Reset()
	c.settle.Cancel()
	c.gen++
	c.resolving = ""
	c.coord.RequestHide(PopupID, immediate)
}

// Showing reports whether a show is in flight and for which program.
func (c *Controller) Showing() (bool, string) {
	return c.showing, c.showingProgram
}

// Current returns the program displayed by the selector.
func (c *Controller) Current() (model.ProgramEntry, bool) {
	if c.current == nil {
		return model.ProgramEntry{}, false
	}
	return *c.current, true
}

// show resolves program off the loop and opens the selector for it when it
// has more than one instance.
func (c *Controller) show(program string, anchor model.ViewHandle) {
	if !c.canShow(program, anchor) {
		return
	}

	if c.showing {
		if c.showingProgram == program {
			c.logger.Debug("selector show already in flight", "program", program)
			return
		}
		if !c.retry.Retry(func() { c.show(program, anchor) }) {
			c.logger.Warn("selector show abandoned after retries", "program", program)
			c.retry.Reset()
		}
		return
	}

	if c.resolving == program {
		c.logger.Debug("selector lookup already in flight", "program", program)
		return
	}
	if !c.agg.Registries().Available() {
		return
	}

	c.gen++
	gen := c.gen
	c.resolving = program

	var snap *core.Snapshot
	c.s.Go(func() {
		ctx, cancel := context.WithTimeout(context.Background(), delegateTimeout)
		defer cancel()
		snap = c.agg.Refresh(ctx)
	}, func() {
		if gen != c.gen {
			c.logger.Debug("selector lookup superseded", "program", program)
			return
		}
		c.resolving = ""
		if !c.canShow(program, anchor) {
			return
		}
		c.open(program, anchor, snap)
	})
}

// canShow reports whether a show for program may go ahead: the selector is
// not latched and the anchor is still attached.
func (c *Controller) canShow(program string, anchor model.ViewHandle) bool {
	if c.coord.Latched(PopupID) {
		c.logger.Debug("selector latched, skipping show", "program", program)
		return false
	}
	if anchor != nil && !anchor.Attached() {
		c.logger.Debug("selector anchor detached, skipping show", "program", program)
		return false
	}
	return true
}

func (c *Controller) open(program string, anchor model.ViewHandle, snap *core.Snapshot) {
	entry, ok := snap.Lookup(program)
	if !ok || len(entry.Instances) <= 1 {
		c.logger.Debug("no selector for program", "program", program, "instances", len(entry.Instances))
		if c.current != nil && c.current.Name == program {
			c.coord.RequestHide(PopupID, false)
		}
		return
	}

	if c.coord.IsVisible(PopupID) {
		if c.current != nil && c.current.Name == program {
			c.current = &entry
			c.view.ShowSelector(entry, c.anchor)
			return
		}
		c.coord.RequestHide(PopupID, true)
	}

	c.retry.Reset()
	c.showing = true
	c.showingProgram = program
	c.current = &entry
	c.anchor = anchor
	c.coord.RegisterExclusive(PopupID, c.popupOptions())

	if !c.coord.RequestShow(PopupID) {
		c.clearShowing()
		c.current = nil
	}
}

func (c *Controller) onShow() {
	if c.current == nil {
		return
	}
	c.view.ShowSelector(*c.current, c.anchor)
}

func (c *Controller) onHide(immediate bool) {
	c.view.HideSelector(immediate)
	c.current = nil
	c.clearShowing()
}

func (c *Controller) clearShowing() {
	c.showing = false
	c.showingProgram = ""
}

// Activate handles a click on an instance row. Secondary windows toggle
// between minimized and focused; main windows are restored and focused.
func (c *Controller) Activate(pid int, windowID string) {
	if windowID == "" {
		c.logger.Debug("activate on windowless instance ignored", "pid", pid)
		return
	}
	program, anchor := c.target()
	windows := c.agg.Registries().Windows

	var err error
	c.s.Go(func() {
		ctx, cancel := context.WithTimeout(context.Background(), delegateTimeout)
		defer cancel()

		info, lookupErr := windows.WindowInfo(ctx, windowID)
		if lookupErr != nil {
			err = lookupErr
			return
		}
		switch {
		case info.IsMinimized:
			if err = windows.Restore(ctx, windowID); err == nil {
				err = windows.Focus(ctx, windowID)
			}
		case !info.IsMainWindow && info.IsFocused:
			err = windows.Minimize(ctx, windowID)
		default:
			err = windows.Focus(ctx, windowID)
		}
	}, func() {
		c.logDelegate("activate", pid, windowID, err)
		c.afterAction(program, anchor)
	})
}

// Close handles the close glyph on an instance row. When the window was
// the last one of its process, the process is terminated too.
func (c *Controller) Close(pid int, windowID string) {
	program, anchor := c.target()
	reg := c.agg.Registries()

	var err error
	c.s.Go(func() {
		ctx, cancel := context.WithTimeout(context.Background(), delegateTimeout)
		defer cancel()

		if windowID == "" {
			err = reg.Processes.Kill(ctx, pid)
			return
		}
		if err = reg.Windows.CloseWindow(ctx, windowID, false); err != nil {
			return
		}
		remaining, lookupErr := reg.Windows.WindowsByPID(ctx, pid)
		if lookupErr != nil {
			err = lookupErr
			return
		}
		for _, w := range remaining {
			if w.WindowID != windowID && w.Attached() {
				return
			}
		}
		err = reg.Processes.Kill(ctx, pid)
	}, func() {
		c.logDelegate("close", pid, windowID, err)
		c.afterAction(program, anchor)
	})
}

func (c *Controller) target() (string, model.ViewHandle) {
	if c.current == nil {
		return "", c.anchor
	}
	return c.current.Name, c.anchor
}

// afterAction hides the selector and re-shows it with fresh data once the
// window manager has settled.
func (c *Controller) afterAction(program string, anchor model.ViewHandle) {
	c.coord.RequestHide(PopupID, false)
	if program == "" {
		return
	}
	c.settle.Trigger(func() {
		c.show(program, anchor)
	})
}

func (c *Controller) logDelegate(op string, pid int, windowID string, err error) {
	switch {
	case err == nil:
		c.logger.Debug("selector action done", "op", op, "pid", pid, "window", windowID)
	case errors.Is(err, registry.ErrNotFound):
		c.logger.Debug("selector action target gone", "op", op, "pid", pid, "window", windowID)
	default:
		c.logger.Warn("selector action failed", "op", op, "pid", pid, "window", windowID, "error", err)
	}
}
