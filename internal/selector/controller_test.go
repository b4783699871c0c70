package selector

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/taskdock/internal/core"
	"github.com/jmylchreest/taskdock/internal/loop"
	"github.com/jmylchreest/taskdock/internal/model"
	"github.com/jmylchreest/taskdock/internal/popup"
	"github.com/jmylchreest/taskdock/internal/registry"
)

type viewRecorder struct {
	events []string
}

func (v *viewRecorder) ShowSelector(entry model.ProgramEntry, _ model.ViewHandle) {
	v.events = append(v.events, fmt.Sprintf("show:%s:%d", entry.Name, len(entry.Instances)))
}

func (v *viewRecorder) HideSelector(immediate bool) {
	if immediate {
		v.events = append(v.events, "hide:immediate")
		return
	}
	v.events = append(v.events, "hide:animated")
}

type fixture struct {
	c     *Controller
	m     *loop.Manual
	coord *popup.Coordinator
	view  *viewRecorder
	procs *registry.MemoryProcesses
	wins  *registry.MemoryWindows
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()

	procs := registry.NewMemoryProcesses(
		model.ProcessRecord{PID: 1, ProgramName: "alpha"},
		model.ProcessRecord{PID: 2, ProgramName: "alpha"},
		model.ProcessRecord{PID: 3, ProgramName: "beta"},
		model.ProcessRecord{PID: 4, ProgramName: "beta"},
		model.ProcessRecord{PID: 5, ProgramName: "solo"},
	)
	secondary := model.WindowRecord{WindowID: "0x6", PID: 2, Title: "prefs", IsFocused: true}
	wins := registry.NewMemoryWindows(
		model.WindowRecord{WindowID: "0x1", PID: 1, Title: "alpha one", IsMainWindow: true, IsMinimized: true},
		model.WindowRecord{WindowID: "0x2", PID: 2, Title: "alpha two", IsMainWindow: true},
		model.WindowRecord{WindowID: "0x3", PID: 3, Title: "beta one", IsMainWindow: true},
		model.WindowRecord{WindowID: "0x4", PID: 4, Title: "beta two", IsMainWindow: true},
		model.WindowRecord{WindowID: "0x5", PID: 5, Title: "solo", IsMainWindow: true},
		secondary,
	)

	m := loop.NewManual()
	coord := popup.NewCoordinator(m, nil)
	agg := core.NewAggregator(registry.Set{Processes: procs, Windows: wins}, nil)
	view := &viewRecorder{}

	return &fixture{
		c:     New(m, coord, agg, view, nil, opts),
		m:     m,
		coord: coord,
		view:  view,
		procs: procs,
		wins:  wins,
	}
}

func TestHover_ShowsAfterDelay(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	anchor := model.NewHandle("alpha-icon")

	f.c.OnHoverEnter("alpha", anchor)
	f.m.Advance(299 * time.Millisecond)
	assert.Empty(t, f.view.events)

	f.m.Advance(time.Millisecond)
	assert.Equal(t, []string{"show:alpha:3"}, f.view.events)
	assert.True(t, f.coord.IsVisible(PopupID))

	showing, program := f.c.Showing()
	assert.True(t, showing, "flag held until the transition completes")
	assert.Equal(t, "alpha", program)

	f.m.Advance(150 * time.Millisecond)
	showing, _ = f.c.Showing()
	assert.False(t, showing)

	cur, ok := f.c.Current()
	require.True(t, ok)
	assert.Equal(t, "alpha", cur.Name)
}

func TestHover_LeaveCancels(t *testing.T) {
	f := newFixture(t, DefaultOptions())

	f.c.OnHoverEnter("alpha", model.NewHandle("alpha-icon"))
	f.m.Advance(200 * time.Millisecond)
	f.c.OnHoverLeave("alpha")
	f.m.Advance(time.Second)

	assert.Empty(t, f.view.events)
	assert.Equal(t, 0, f.m.Pending())
}

func TestHover_LeaveHidesAfterGrace(t *testing.T) {
	f := newFixture(t, DefaultOptions())

	f.c.OnHoverEnter("alpha", model.NewHandle("alpha-icon"))
	f.m.Advance(time.Second)
	f.c.OnHoverLeave("alpha")
	f.m.Advance(100 * time.Millisecond)
	f.c.OnPopupEnter()
	f.m.Advance(time.Second)
	assert.True(t, f.coord.IsVisible(PopupID), "pointer moved onto the popup")

	f.c.OnPopupLeave()
	f.m.Advance(time.Second)
	assert.False(t, f.coord.IsVisible(PopupID))
	assert.Equal(t, []string{"show:alpha:3", "hide:animated"}, f.view.events)
	_, ok := f.c.Current()
	assert.False(t, ok)
}

func TestHover_SingleInstanceNoShow(t *testing.T) {
	f := newFixture(t, DefaultOptions())

	f.c.OnHoverEnter("solo", model.NewHandle("solo-icon"))
	f.c.OnHoverEnter("missing", model.NewHandle("missing-icon"))
	f.m.Advance(time.Second)

	assert.Empty(t, f.view.events)
	assert.False(t, f.coord.IsVisible(PopupID))
}

func TestHover_DetachedAnchor(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	anchor := model.NewHandle("alpha-icon")

	f.c.OnHoverEnter("alpha", anchor)
	anchor.Detach()
	f.m.Advance(time.Second)

	assert.Empty(t, f.view.events)
}

func TestShow_DifferentProgramWaitsForInFlightShow(t *testing.T) {
	opts := DefaultOptions()
	opts.ShowAnimation = 500 * time.Millisecond
	f := newFixture(t, opts)

	f.c.OnHoverEnter("alpha", model.NewHandle("alpha-icon"))
	f.m.Advance(310 * time.Millisecond)
	require.Equal(t, []string{"show:alpha:3"}, f.view.events)

	// beta's show request lands at 610ms, while alpha animates until 800ms.
	f.c.OnHoverEnter("beta", model.NewHandle("beta-icon"))
	f.m.Advance(300 * time.Millisecond)
	assert.Equal(t, []string{"show:alpha:3"}, f.view.events)
	showing, program := f.c.Showing()
	assert.True(t, showing)
	assert.Equal(t, "alpha", program)

	f.m.Advance(399 * time.Millisecond)
	assert.Equal(t, []string{"show:alpha:3"}, f.view.events, "retry waits the full backoff")

	f.m.Advance(time.Millisecond)
	assert.Equal(t, []string{"show:alpha:3", "hide:immediate", "show:beta:2"}, f.view.events)
	assert.Equal(t, []string{PopupID}, f.coord.Visible())
}

func TestShow_SameProgramDeduplicated(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	anchor := model.NewHandle("alpha-icon")

	f.c.OnHoverEnter("alpha", anchor)
	f.m.Advance(300 * time.Millisecond)
	f.c.show("alpha", anchor)
	f.m.Advance(time.Second)

	assert.Equal(t, []string{"show:alpha:3"}, f.view.events)
	assert.Equal(t, 0, f.c.retry.Attempts())
}

func TestShow_RetryBudget(t *testing.T) {
	opts := DefaultOptions()
	opts.ShowAnimation = time.Hour
	opts.MaxRetries = 2
	f := newFixture(t, opts)

	f.c.OnHoverEnter("alpha", model.NewHandle("alpha-icon"))
	f.m.Advance(300 * time.Millisecond)
	f.c.show("beta", model.NewHandle("beta-icon"))
	f.m.Advance(2 * time.Second)

	assert.Equal(t, []string{"show:alpha:3"}, f.view.events)
	assert.False(t, f.c.retry.Pending(), "gives up once the budget is spent")
}

func TestActivate_RestoresMinimizedMainWindow(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	f.c.OnHoverEnter("alpha", model.NewHandle("alpha-icon"))
	f.m.Advance(time.Second)

	f.c.Activate(1, "0x1")
	f.m.Flush()

	assert.Equal(t, []string{"restore:0x1", "focus:0x1"}, f.wins.Calls())
	assert.True(t, f.coord.IsClosing(PopupID))
}

func TestActivate_TogglesFocusedSecondaryWindow(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	f.c.OnHoverEnter("alpha", model.NewHandle("alpha-icon"))
	f.m.Advance(time.Second)

	f.c.Activate(2, "0x6")
	f.m.Flush()
	assert.Equal(t, []string{"minimize:0x6"}, f.wins.Calls())

	f.c.Activate(2, "0x6")
	f.m.Flush()
	assert.Equal(t, []string{"minimize:0x6", "restore:0x6", "focus:0x6"}, f.wins.Calls())
}

func TestActivate_ReshowsAfterSettle(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	f.c.OnHoverEnter("alpha", model.NewHandle("alpha-icon"))
	f.m.Advance(time.Second)

	f.c.Activate(2, "0x2")
	f.m.Advance(449 * time.Millisecond)
	assert.Equal(t, []string{"show:alpha:3", "hide:animated"}, f.view.events)

	f.m.Advance(time.Millisecond)
	assert.Equal(t, []string{"show:alpha:3", "hide:animated", "show:alpha:3"}, f.view.events)
}

func TestClose_LastWindowKillsProcess(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	f.c.OnHoverEnter("alpha", model.NewHandle("alpha-icon"))
	f.m.Advance(time.Second)

	f.c.Close(1, "0x1")
	f.m.Flush()
	assert.Equal(t, []string{"close:0x1"}, f.wins.Calls())
	assert.Equal(t, []int{1}, f.procs.Kills())

	f.m.Advance(time.Second)
	assert.Equal(t, []string{"show:alpha:3", "hide:animated", "show:alpha:2"}, f.view.events)
}

func TestClose_KeepsProcessWithOtherWindows(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	f.c.OnHoverEnter("alpha", model.NewHandle("alpha-icon"))
	f.m.Advance(time.Second)

	f.c.Close(2, "0x2")
	f.m.Advance(time.Second)

	assert.Equal(t, []string{"close:0x2"}, f.wins.Calls())
	assert.Empty(t, f.procs.Kills())
	assert.Equal(t, []string{"show:alpha:3", "hide:animated", "show:alpha:2"}, f.view.events)
}

func TestClose_NoReshowWhenOneInstanceLeft(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	f.c.OnHoverEnter("beta", model.NewHandle("beta-icon"))
	f.m.Advance(time.Second)

	f.c.Close(3, "0x3")
	f.m.Advance(time.Second)

	assert.Equal(t, []int{3}, f.procs.Kills())
	assert.Equal(t, []string{"show:beta:2", "hide:animated"}, f.view.events)
	assert.False(t, f.coord.IsVisible(PopupID))
}

func TestClose_DelegateFailureStillRefreshes(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	f.c.OnHoverEnter("alpha", model.NewHandle("alpha-icon"))
	f.m.Advance(time.Second)

	f.wins.FailAction("0x2", errors.New("bad window"))
	f.c.Close(2, "0x2")
	f.m.Advance(time.Second)

	assert.Empty(t, f.procs.Kills())
	assert.Equal(t, []string{"show:alpha:3", "hide:animated", "show:alpha:3"}, f.view.events)
}

func TestMissingRegistriesNeverShow(t *testing.T) {
	m := loop.NewManual()
	coord := popup.NewCoordinator(m, nil)
	view := &viewRecorder{}
	c := New(m, coord, core.NewAggregator(registry.Set{}, nil), view, nil, DefaultOptions())

	c.OnHoverEnter("alpha", model.NewHandle("alpha-icon"))
	m.Advance(time.Second)

	assert.Empty(t, view.events)
	assert.False(t, coord.IsVisible(PopupID))
}

func TestHide(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	f.c.OnHoverEnter("alpha", model.NewHandle("alpha-icon"))
	f.m.Advance(time.Second)

	f.c.Hide(true)
	assert.Equal(t, []string{"show:alpha:3", "hide:immediate"}, f.view.events)
	assert.Equal(t, 0, f.m.Pending())
}

func TestShow_LatchedSkipsPendingHover(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	anchor := model.NewHandle("alpha-icon")

	f.c.OnHoverEnter("alpha", anchor)
	f.m.Advance(100 * time.Millisecond)
	f.coord.Latch(PopupID)
	f.m.Advance(time.Second)

	assert.Empty(t, f.view.events)
	assert.False(t, f.coord.IsVisible(PopupID))

	f.coord.Unlatch(PopupID)
	f.c.OnHoverEnter("alpha", anchor)
	f.m.Advance(time.Second)
	assert.Equal(t, []string{"show:alpha:3"}, f.view.events)
}

func TestShow_LatchedSkipsSettleReshow(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	f.c.OnHoverEnter("alpha", model.NewHandle("alpha-icon"))
	f.m.Advance(time.Second)

	f.c.Activate(2, "0x2")
	f.m.Advance(100 * time.Millisecond)
	f.coord.Latch(PopupID)
	f.m.Advance(time.Second)

	assert.Equal(t, "show:alpha:3", f.view.events[0])
	assert.NotContains(t, f.view.events[1:], "show:alpha:3")
	assert.False(t, f.coord.IsVisible(PopupID))
}

func TestShow_LatchRecheckedAfterLookup(t *testing.T) {
	f := newFixture(t, DefaultOptions())

	f.c.show("alpha", model.NewHandle("alpha-icon"))
	f.coord.Latch(PopupID)
	f.m.Flush()

	assert.Empty(t, f.view.events)
	showing, _ := f.c.Showing()
	assert.False(t, showing)
}

func TestShow_DetachRecheckedAfterLookup(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	anchor := model.NewHandle("alpha-icon")

	f.c.show("alpha", anchor)
	anchor.Detach()
	f.m.Flush()

	assert.Empty(t, f.view.events)
}

func TestShow_LaterShowSupersedesLookup(t *testing.T) {
	f := newFixture(t, DefaultOptions())

	f.c.show("alpha", model.NewHandle("alpha-icon"))
	f.c.show("beta", model.NewHandle("beta-icon"))
	f.m.Flush()

	assert.Equal(t, []string{"show:beta:2"}, f.view.events)
}

func TestHide_CancelsSettleAndLookup(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	f.c.OnHoverEnter("alpha", model.NewHandle("alpha-icon"))
	f.m.Advance(time.Second)

	f.c.Activate(2, "0x2")
	f.m.Flush()
	f.c.Hide(true)
	f.m.Advance(time.Second)
	assert.Equal(t, 1, countShows(f.view.events))

	f.c.show("alpha", model.NewHandle("alpha-icon"))
	f.c.Hide(true)
	f.m.Flush()
	assert.Equal(t, 1, countShows(f.view.events))
	assert.Equal(t, 0, f.m.Pending())
}

func countShows(events []string) int {
	n := 0
	for _, ev := range events {
		if strings.HasPrefix(ev, "show:") {
			n++
		}
	}
	return n
}
