// Package switcher implements the full-screen task switcher: a modal
// session over every live window, driven by keys, wheel and pointer.
package switcher

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/jmylchreest/taskdock/internal/loop"
	"github.com/jmylchreest/taskdock/internal/model"
	"github.com/jmylchreest/taskdock/internal/popup"
	"github.com/jmylchreest/taskdock/internal/registry"
)

// State is the engine's session state.
type State int

const (
	Inactive State = iota
	Active
)

func (s State) String() string {
	if s == Active {
		return "active"
	}
	return "inactive"
}

const delegateTimeout = 2 * time.Second

// Keys maps key names to switcher commands. Matching is case-insensitive.
type Keys struct {
	Next    string `toml:"next"`
	Prev    string `toml:"prev"`
	Confirm string `toml:"confirm"`
	Close   string `toml:"close"`
	Exit    string `toml:"exit"`
}

// DefaultKeys returns the standard bindings.
func DefaultKeys() Keys {
	return Keys{
		Next:    "Tab",
		Prev:    "shift+Tab",
		Confirm: "Return",
		Close:   "ctrl+w",
		Exit:    "Escape",
	}
}

// Options configures the engine.
type Options struct {
	WheelThreshold   float64
	WheelMinInterval time.Duration
	FadeOut          time.Duration
	LauncherID       string
	// Suppress lists further popups latched for the length of a session.
	Suppress []string
	Keys     Keys
}

// DefaultOptions returns the standard switcher settings.
func DefaultOptions() Options {
	return Options{
		WheelThreshold:   50,
		WheelMinInterval: 100 * time.Millisecond,
		FadeOut:          200 * time.Millisecond,
		LauncherID:       "launcher",
		Keys:             DefaultKeys(),
	}
}

// Snapshot is a read-only copy of the session state.
type Snapshot struct {
	ID       string               `json:"id,omitempty"`
	State    string               `json:"state"`
	Items    []model.SwitcherItem `json:"items"`
	Selected int                  `json:"selected"`
}

// View renders the switcher overlay.
type View interface {
	Open(s Snapshot)
	Select(index int)
	ScrollIntoView(index int)
	Update(items []model.SwitcherItem, selected int)
	Close()
}

// NopView discards rendering requests.
type NopView struct{}

func (NopView) Open(Snapshot)                    {}
func (NopView) Select(int)                       {}
func (NopView) ScrollIntoView(int)               {}
func (NopView) Update([]model.SwitcherItem, int) {}
func (NopView) Close()                           {}

type session struct {
	id       ulid.ULID
	items    []model.SwitcherItem
	selected int
	handles  map[string]model.ViewHandle

	wheelAcc float64
	lastStep time.Time

	frame       *loop.Timer
	unsubscribe func()
}

// Engine drives switcher sessions. All methods must be called on the loop
// goroutine.
type Engine struct {
	s      loop.Scheduler
	reg    registry.Set
	coord  *popup.Coordinator
	input  Input
	view   View
	logger *slog.Logger
	opts   Options

	sess *session
	fade *loop.Timer
}

// New creates an engine in the Inactive state.
func New(s loop.Scheduler, reg registry.Set, coord *popup.Coordinator, input Input, view View, logger *slog.Logger, opts Options) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if view == nil {
		view = NopView{}
	}
	if input == nil {
		input = NewBus(s)
	}
	return &Engine{
		s:      s,
		reg:    reg.Normalize(logger),
		coord:  coord,
		input:  input,
		view:   view,
		logger: logger,
		opts:   opts,
	}
}

// SetOptions applies new settings. An active session picks them up
// immediately, except for the latched popup ids which are fixed on entry.
func (e *Engine) SetOptions(opts Options) {
	if e.sess != nil {
		opts.LauncherID = e.opts.LauncherID
		opts.Suppress = e.opts.Suppress
	}
	e.opts = opts
}

func (e *Engine) latchIDs() []string {
	return append([]string{e.opts.LauncherID}, e.opts.Suppress...)
}

// State returns the current state.
func (e *Engine) State() State {
	if e.sess != nil {
		return Active
	}
	return Inactive
}

// Snapshot returns a copy of the session state.
func (e *Engine) Snapshot() Snapshot {
	if e.sess == nil {
		return Snapshot{State: Inactive.String(), Items: []model.SwitcherItem{}}
	}
	return e.snapshotOf(e.sess)
}

func (e *Engine) snapshotOf(sess *session) Snapshot {
	return Snapshot{
		ID:       sess.id.String(),
		State:    Active.String(),
		Items:    slices.Clone(sess.items),
		Selected: sess.selected,
	}
}

// Candidates is the window list a session is entered with.
type Candidates struct {
	Items   []model.SwitcherItem
	Handles map[string]model.ViewHandle
}

// Enter starts a session over the valid windows in c, which Collect read
// off the loop. Windows detached since then are dropped. It reports whether
// a session was started.
func (e *Engine) Enter(c Candidates) bool {
	if e.sess != nil {
		e.logger.Debug("switcher already active")
		return false
	}

	items := slices.DeleteFunc(slices.Clone(c.Items), func(it model.SwitcherItem) bool {
		h := c.Handles[it.WindowID]
		return h != nil && !h.Attached()
	})
	if len(items) == 0 {
		e.logger.Debug("switcher entry refused, no valid windows")
		return false
	}
	reindex(items)

	if e.fade.Stop() {
		e.fade = nil
		e.view.Close()
	}

	e.coord.CloseAllExcept("")
	for _, id := range e.latchIDs() {
		e.coord.Latch(id)
	}

	sess := &session{
		id:      ulid.MustNew(ulid.Timestamp(e.s.Now()), ulid.DefaultEntropy()),
		items:   items,
		handles: c.Handles,
	}
	e.sess = sess
	sess.unsubscribe = e.input.Subscribe(e.handle)

	e.view.Open(e.snapshotOf(sess))
	e.logger.Debug("switcher opened", "session", sess.id, "items", len(items))
	return true
}

// Collect reads the registries and builds the item list, grouped by
// program name with discovery order kept inside each program. It blocks on
// the registries and is safe to call from any goroutine.
func (e *Engine) Collect(ctx context.Context) Candidates {
	ctx, cancel := context.WithTimeout(ctx, delegateTimeout)
	defer cancel()

	procs, err := e.reg.Processes.All(ctx)
	if err != nil {
		e.logger.Warn("process registry read failed", "error", err)
		return Candidates{}
	}

	var items []model.SwitcherItem
	handles := make(map[string]model.ViewHandle)
	for _, p := range procs {
		if !p.Running() {
			continue
		}
		wins, err := e.reg.Windows.WindowsByPID(ctx, p.PID)
		if err != nil {
			e.logger.Warn("window lookup failed", "pid", p.PID, "program", p.ProgramName, "error", err)
			continue
		}
		for _, w := range wins {
			if !w.Attached() {
				continue
			}
			items = append(items, model.SwitcherItem{
				WindowID:    w.WindowID,
				PID:         p.PID,
				ProgramName: p.ProgramName,
				Title:       w.Title,
				IsMinimized: w.IsMinimized,
				IsFocused:   w.IsFocused,
			})
			handles[w.WindowID] = w.Handle
		}
	}

	slices.SortStableFunc(items, func(a, b model.SwitcherItem) int {
		return cmp.Compare(a.ProgramName, b.ProgramName)
	})
	reindex(items)
	return Candidates{Items: items, Handles: handles}
}

func reindex(items []model.SwitcherItem) {
	for i := range items {
		items[i].Index = i
	}
}

func (e *Engine) handle(ev Event) {
	switch ev.Kind {
	case EventKey:
		e.HandleKey(ev.Key)
	case EventWheel:
		e.Wheel(ev.DeltaY)
	case EventPress:
		e.Confirm()
	}
}

// HandleKey maps a key name to a switcher command.
func (e *Engine) HandleKey(key string) {
	if e.sess == nil {
		return
	}
	k := e.opts.Keys
	switch {
	case keyIs(key, k.Next):
		e.Step(1)
	case keyIs(key, k.Prev):
		e.Step(-1)
	case keyIs(key, k.Confirm):
		e.Confirm()
	case keyIs(key, k.Close):
		e.CloseSelected()
	case keyIs(key, k.Exit):
		e.Exit()
	default:
		e.logger.Debug("switcher key ignored", "key", key)
	}
}

func keyIs(key, binding string) bool {
	return binding != "" && strings.EqualFold(key, binding)
}

// Wheel feeds one wheel event into the throttle. A step is taken once the
// accumulated magnitude reaches the threshold and the minimum interval has
// passed since the previous step.
func (e *Engine) Wheel(deltaY float64) {
	sess := e.sess
	if sess == nil {
		return
	}
	sess.wheelAcc += math.Abs(deltaY)

	now := e.s.Now()
	if !sess.lastStep.IsZero() && now.Sub(sess.lastStep) < e.opts.WheelMinInterval {
		return
	}
	if sess.wheelAcc < e.opts.WheelThreshold {
		return
	}
	sess.wheelAcc = 0
	sess.lastStep = now

	if deltaY > 0 {
		e.Step(1)
	} else {
		e.Step(-1)
	}
}

// Step moves the selection by delta with wrap-around. The highlight is
// updated on the next frame.
func (e *Engine) Step(delta int) {
	sess := e.sess
	if sess == nil {
		return
	}
	n := len(sess.items)
	sess.selected = ((sess.selected+delta)%n + n) % n
	e.scheduleHighlight(sess)
}

func (e *Engine) scheduleHighlight(sess *session) {
	if sess.frame.Active() {
		return
	}
	sess.frame = loop.NextFrame(e.s, func() {
		if e.sess != sess {
			return
		}
		sess.frame = nil
		e.view.Select(sess.selected)
		e.view.ScrollIntoView(sess.selected)
	})
}

// Confirm focuses the selected window, restoring it first when minimized,
// and ends the session.
func (e *Engine) Confirm() {
	sess := e.sess
	if sess == nil {
		return
	}
	item := sess.items[sess.selected]
	if h := sess.handles[item.WindowID]; h != nil && !h.Attached() {
		e.logger.Debug("switcher selection went away", "window", item.WindowID)
		e.end("stale")
		return
	}

	windows := e.reg.Windows
	var err error
	e.s.Go(func() {
		ctx, cancel := context.WithTimeout(context.Background(), delegateTimeout)
		defer cancel()

		info, lookupErr := windows.WindowInfo(ctx, item.WindowID)
		if lookupErr != nil {
			err = lookupErr
			return
		}
		if info.IsMinimized {
			if err = windows.Restore(ctx, item.WindowID); err != nil {
				return
			}
		}
		err = windows.Focus(ctx, item.WindowID)
	}, func() {
		switch {
		case err == nil:
		case errors.Is(err, registry.ErrNotFound):
			e.logger.Debug("switcher target gone", "window", item.WindowID)
		default:
			e.logger.Warn("switcher focus failed", "window", item.WindowID, "error", err)
		}
	})
	e.end("confirm")
}

// CloseSelected terminates the process owning the selected window. The
// protected process is never closed.
func (e *Engine) CloseSelected() {
	sess := e.sess
	if sess == nil {
		return
	}
	item := sess.items[sess.selected]
	if protected := e.reg.Processes.ProtectedPID(); protected != 0 && item.PID == protected {
		e.logger.Warn("refusing to close protected process", "pid", item.PID, "program", item.ProgramName)
		return
	}

	processes := e.reg.Processes
	pids := make([]int, 0, len(sess.items))
	for _, it := range sess.items {
		if !slices.Contains(pids, it.PID) {
			pids = append(pids, it.PID)
		}
	}

	var (
		err     error
		running map[int]bool
	)
	e.s.Go(func() {
		ctx, cancel := context.WithTimeout(context.Background(), delegateTimeout)
		defer cancel()
		err = processes.Kill(ctx, item.PID)
		running = e.liveness(ctx, pids)
	}, func() {
		if e.sess != sess {
			e.logger.Debug("switcher session ended before close completed", "pid", item.PID)
			return
		}
		if err != nil {
			e.logger.Warn("switcher close failed", "pid", item.PID, "program", item.ProgramName, "error", err)
		} else {
			sess.items = slices.DeleteFunc(sess.items, func(it model.SwitcherItem) bool {
				return it.WindowID == item.WindowID
			})
		}
		e.revalidate(sess, running)
	})
}

// liveness looks up each pid. Lookups that fail for reasons other than a
// missing process count as running.
func (e *Engine) liveness(ctx context.Context, pids []int) map[int]bool {
	running := make(map[int]bool, len(pids))
	for _, pid := range pids {
		rec, err := e.reg.Processes.ByPID(ctx, pid)
		switch {
		case errors.Is(err, registry.ErrNotFound):
			running[pid] = false
		case err != nil:
			e.logger.Debug("process lookup failed during revalidation", "pid", pid, "error", err)
			running[pid] = true
		default:
			running[pid] = rec.Running()
		}
	}
	return running
}

// revalidate drops items whose window detached or whose process is no
// longer running, clamps the selection and ends the session when nothing
// is left. Pids missing from running are kept.
func (e *Engine) revalidate(sess *session, running map[int]bool) {
	sess.items = slices.DeleteFunc(sess.items, func(it model.SwitcherItem) bool {
		if h := sess.handles[it.WindowID]; h != nil && !h.Attached() {
			return true
		}
		r, ok := running[it.PID]
		return ok && !r
	})
	reindex(sess.items)

	if len(sess.items) == 0 {
		e.end("empty")
		return
	}
	sess.selected = min(sess.selected, len(sess.items)-1)
	e.view.Update(slices.Clone(sess.items), sess.selected)
	e.view.ScrollIntoView(sess.selected)
}

// Exit ends the session without acting on the selection.
func (e *Engine) Exit() {
	e.end("exit")
}

func (e *Engine) end(reason string) {
	sess := e.sess
	if sess == nil {
		return
	}
	e.sess = nil

	sess.frame.Stop()
	sess.frame = nil
	if sess.unsubscribe != nil {
		sess.unsubscribe()
	}
	for _, id := range e.latchIDs() {
		e.coord.Unlatch(id)
	}

	e.fade = e.s.After(e.opts.FadeOut, func() {
		e.fade = nil
		e.view.Close()
	})
	e.logger.Debug("switcher closed", "session", sess.id, "reason", reason)
}
