package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/jmylchreest/taskdock/internal/config"
	"github.com/jmylchreest/taskdock/internal/core"
	"github.com/jmylchreest/taskdock/internal/dbus"
	"github.com/jmylchreest/taskdock/internal/loop"
	"github.com/jmylchreest/taskdock/internal/model"
	"github.com/jmylchreest/taskdock/internal/popup"
	"github.com/jmylchreest/taskdock/internal/registry"
	"github.com/jmylchreest/taskdock/internal/selector"
	"github.com/jmylchreest/taskdock/internal/switcher"
)

// refreshTimeout bounds one aggregation pass.
const refreshTimeout = 2 * time.Second

// ErrUnknownPopup is returned for popup ids that were never registered.
var ErrUnknownPopup = fmt.Errorf("unknown popup: %w", registry.ErrNotFound)

// Shell owns the taskbar core: aggregator, popup coordinator, selector and
// switcher. Its state lives on the loop goroutine; the exported
// context-taking methods hand work to the loop and wait for it, so they are
// safe to call from D-Bus handlers.
type Shell struct {
	s      loop.Scheduler
	poster loop.Poster
	logger *slog.Logger
	cfg    *config.DaemonConfig

	agg      *core.Aggregator
	coord    *popup.Coordinator
	selector *selector.Controller
	switcher *switcher.Engine
	input    *switcher.Bus
	anchors  *anchorTable
	emitter  Emitter

	last       *core.Snapshot
	refresh    *loop.Timer
	refreshing bool
	again      bool
	running    bool

	peers map[string]bool
}

// NewShell wires the core over reg. Timers run on s; calls from other
// goroutines are posted through poster.
func NewShell(s loop.Scheduler, poster loop.Poster, reg registry.Set, cfg *config.DaemonConfig, logger *slog.Logger) *Shell {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg == nil {
		cfg = config.DefaultDaemonConfig()
	}

	sh := &Shell{
		s:       s,
		poster:  poster,
		logger:  logger,
		cfg:     cfg,
		anchors: newAnchorTable(),
		peers:   make(map[string]bool),
	}

	sh.agg = core.NewAggregator(reg, logger.With("component", "aggregator"))
	reg = sh.agg.Registries()
	sh.coord = popup.NewCoordinator(s, logger.With("component", "popup"))
	sh.input = switcher.NewBus(poster)
	sh.selector = selector.New(s, sh.coord, sh.agg, selectorView{sh},
		logger.With("component", "selector"), SelectorOptions(cfg))
	sh.switcher = switcher.New(s, reg, sh.coord, sh.input, switcherView{sh},
		logger.With("component", "switcher"), SwitcherOptions(cfg))
	return sh
}

// SetEmitter sets the signal sink. Must be called before the loop runs.
func (sh *Shell) SetEmitter(e Emitter) {
	sh.emitter = e
}

// Start begins periodic refreshes. Loop goroutine only.
func (sh *Shell) Start() {
	if sh.running {
		return
	}
	sh.running = true
	sh.Refresh()
}

// Stop cancels refreshes and closes every overlay. Loop goroutine only.
func (sh *Shell) Stop() {
	sh.running = false
	sh.refresh.Stop()
	sh.refresh = nil
	sh.switcher.Exit()
	sh.selector.Hide(true)
	sh.coord.CloseAllExcept("")
}

// Refresh re-aggregates off the loop and publishes the result when it
// changed. Concurrent requests collapse into one follow-up pass.
func (sh *Shell) Refresh() {
	if sh.refreshing {
		sh.again = true
		return
	}
	sh.refresh.Stop()
	sh.refresh = nil
	sh.refreshing = true

	var snap *core.Snapshot
	sh.s.Go(func() {
		ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
		defer cancel()
		snap = sh.agg.Refresh(ctx)
	}, func() {
		sh.refreshing = false
		sh.publish(snap)

		if sh.again {
			sh.again = false
			sh.Refresh()
			return
		}
		if sh.running {
			sh.refresh = sh.s.After(sh.cfg.Aggregate.RefreshInterval.Duration(), sh.Refresh)
		}
	})
}

func (sh *Shell) publish(snap *core.Snapshot) {
	if snap == nil {
		return
	}
	if sh.last != nil && sh.last.Equal(snap) {
		return
	}
	sh.last = snap
	sh.logger.Debug("programs changed", "programs", snap.Len())
	sh.signal(dbus.SignalProgramsChanged, func(e Emitter) error {
		return e.EmitProgramsChanged(snap.Entries)
	})
}

// ApplyConfig applies reloaded settings. Loop goroutine only. Backend
// settings take effect on restart.
func (sh *Shell) ApplyConfig(cfg *config.DaemonConfig) {
	old := sh.cfg
	sh.cfg = cfg
	sh.selector.SetOptions(SelectorOptions(cfg))
	sh.switcher.SetOptions(SwitcherOptions(cfg))
	for id := range sh.peers {
		sh.coord.RegisterExclusive(id, sh.peerOptions(id))
	}
	if old.Backend != cfg.Backend {
		sh.logger.Warn("backend settings changed, restart taskdockd to apply them")
	}
	sh.logger.Info("configuration applied")
}

// Coordinator returns the popup coordinator. Loop goroutine only.
func (sh *Shell) Coordinator() *popup.Coordinator {
	return sh.coord
}

// Switcher returns the switcher engine. Loop goroutine only.
func (sh *Shell) Switcher() *switcher.Engine {
	return sh.switcher
}

// Selector returns the selector controller. Loop goroutine only.
func (sh *Shell) Selector() *selector.Controller {
	return sh.selector
}

// do runs fn on the loop and waits for it.
func (sh *Shell) do(ctx context.Context, fn func()) error {
	_, err := loop.Invoke(ctx, sh.poster, func() struct{} {
		fn()
		return struct{}{}
	})
	return err
}

// Programs returns the latest program list. Before the first refresh has
// completed it aggregates on the calling goroutine and publishes the result.
func (sh *Shell) Programs(ctx context.Context) ([]model.ProgramEntry, error) {
	entries, err := loop.Invoke(ctx, sh.poster, sh.lastEntries)
	if err != nil || entries != nil {
		return entries, err
	}

	rctx, cancel := context.WithTimeout(ctx, refreshTimeout)
	defer cancel()
	snap := sh.agg.Refresh(rctx)

	return loop.Invoke(ctx, sh.poster, func() []model.ProgramEntry {
		if sh.last == nil {
			sh.publish(snap)
		}
		return sh.lastEntries()
	})
}

// lastEntries copies the published program list, or returns nil before the
// first publish.
func (sh *Shell) lastEntries() []model.ProgramEntry {
	if sh.last == nil {
		return nil
	}
	entries := slices.Clone(sh.last.Entries)
	if entries == nil {
		entries = []model.ProgramEntry{}
	}
	return entries
}

// HoverEnter starts the selector hover delay for program. Hovering the
// selector popup itself is reported with program set to selector.PopupID.
func (sh *Shell) HoverEnter(ctx context.Context, program, anchor string) error {
	return sh.do(ctx, func() {
		if program == selector.PopupID {
			sh.selector.OnPopupEnter()
			return
		}
		sh.selector.OnHoverEnter(program, sh.anchors.resolve(anchor))
	})
}

// HoverLeave cancels or schedules the selector hide.
func (sh *Shell) HoverLeave(ctx context.Context, program string) error {
	return sh.do(ctx, func() {
		if program == selector.PopupID {
			sh.selector.OnPopupLeave()
			return
		}
		sh.selector.OnHoverLeave(program)
	})
}

// DetachAnchor marks a client anchor as removed from its view.
func (sh *Shell) DetachAnchor(ctx context.Context, anchor string) error {
	return sh.do(ctx, func() {
		if !sh.anchors.detach(anchor) {
			sh.logger.Debug("detach of unknown anchor", "anchor", anchor)
		}
	})
}

// SelectorActivate activates an instance listed in the selector.
func (sh *Shell) SelectorActivate(ctx context.Context, pid int, windowID string) error {
	return sh.do(ctx, func() {
		sh.selector.Activate(pid, windowID)
	})
}

// SelectorClose closes an instance listed in the selector.
func (sh *Shell) SelectorClose(ctx context.Context, pid int, windowID string) error {
	return sh.do(ctx, func() {
		sh.selector.Close(pid, windowID)
	})
}

// SwitcherEnter opens the switcher and reports whether a session started.
// Windows are collected on the calling goroutine; entering the session and
// dropping any pending selector show happen on the loop.
func (sh *Shell) SwitcherEnter(ctx context.Context) (bool, error) {
	candidates := sh.switcher.Collect(ctx)
	return loop.Invoke(ctx, sh.poster, func() bool {
		if !sh.switcher.Enter(candidates) {
			return false
		}
		sh.selector.Hide(true)
		return true
	})
}

// SwitcherKey delivers a key press to the active session.
func (sh *Shell) SwitcherKey(ctx context.Context, key string) error {
	return sh.do(ctx, func() {
		sh.input.Dispatch(switcher.Event{Kind: switcher.EventKey, Key: key})
	})
}

// SwitcherWheel delivers a wheel delta to the active session.
func (sh *Shell) SwitcherWheel(ctx context.Context, deltaY float64) error {
	return sh.do(ctx, func() {
		sh.input.Dispatch(switcher.Event{Kind: switcher.EventWheel, DeltaY: deltaY})
	})
}

// SwitcherPress delivers a primary press to the active session.
func (sh *Shell) SwitcherPress(ctx context.Context) error {
	return sh.do(ctx, func() {
		sh.input.Dispatch(switcher.Event{Kind: switcher.EventPress})
	})
}

// SwitcherState returns the current session snapshot.
func (sh *Shell) SwitcherState(ctx context.Context) (switcher.Snapshot, error) {
	return loop.Invoke(ctx, sh.poster, sh.switcher.Snapshot)
}

// PopupShow shows a registered popup through the coordinator.
func (sh *Shell) PopupShow(ctx context.Context, id string) (bool, error) {
	type result struct {
		shown bool
		err   error
	}
	r, err := loop.Invoke(ctx, sh.poster, func() result {
		if !sh.coord.Registered(id) {
			return result{err: fmt.Errorf("%s: %w", id, ErrUnknownPopup)}
		}
		return result{shown: sh.coord.RequestShow(id)}
	})
	if err != nil {
		return false, err
	}
	return r.shown, r.err
}

// PopupHide hides a registered popup.
func (sh *Shell) PopupHide(ctx context.Context, id string, immediate bool) error {
	return sh.invokeErr(ctx, func() error {
		if !sh.coord.Registered(id) {
			return fmt.Errorf("%s: %w", id, ErrUnknownPopup)
		}
		if id == selector.PopupID {
			sh.selector.Hide(immediate)
			return nil
		}
		sh.coord.RequestHide(id, immediate)
		return nil
	})
}

// PopupRegister joins a peer overlay to the exclusivity group. The peer is
// told to show or close through PeerShow and PeerCloseRequested.
func (sh *Shell) PopupRegister(ctx context.Context, id string) error {
	return sh.invokeErr(ctx, func() error {
		if id == "" || id == selector.PopupID {
			return fmt.Errorf("popup id %q is reserved", id)
		}
		sh.peers[id] = true
		sh.coord.RegisterExclusive(id, sh.peerOptions(id))
		sh.logger.Debug("peer popup registered", "popup", id)
		return nil
	})
}

// PopupUnregister removes a peer overlay.
func (sh *Shell) PopupUnregister(ctx context.Context, id string) error {
	return sh.invokeErr(ctx, func() error {
		if !sh.peers[id] {
			return fmt.Errorf("%s: %w", id, ErrUnknownPopup)
		}
		delete(sh.peers, id)
		sh.coord.Unregister(id)
		sh.anchors.detach(id)
		return nil
	})
}

// Click routes a pointer click on target to the visible overlay.
func (sh *Shell) Click(ctx context.Context, target string) error {
	return sh.do(ctx, func() {
		sh.coord.HandleClick(sh.anchors.resolve(target))
	})
}

func (sh *Shell) invokeErr(ctx context.Context, fn func() error) error {
	err, ierr := loop.Invoke(ctx, sh.poster, fn)
	if ierr != nil {
		return ierr
	}
	return err
}

// peerOptions describes a remote overlay. Its anchor is the handle named
// after the popup id, so clicks reported on that name count as inside.
func (sh *Shell) peerOptions(id string) popup.Options {
	return popup.Options{
		Anchor: sh.anchors.resolve(id),
		OnShow: func() {
			sh.signal(dbus.SignalPeerShow, func(e Emitter) error {
				return e.EmitPeerShow(id)
			})
		},
		OnHide: func(immediate bool) {
			sh.signal(dbus.SignalPeerCloseRequested, func(e Emitter) error {
				return e.EmitPeerCloseRequested(id, immediate)
			})
		},
		ShowAnimation: sh.cfg.Popup.ShowAnimation.Duration(),
		HideAnimation: sh.cfg.Popup.HideAnimation.Duration(),
	}
}

var _ dbus.Shell = (*Shell)(nil)
