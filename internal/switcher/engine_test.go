package switcher

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/taskdock/internal/loop"
	"github.com/jmylchreest/taskdock/internal/model"
	"github.com/jmylchreest/taskdock/internal/popup"
	"github.com/jmylchreest/taskdock/internal/registry"
)

type viewRecorder struct {
	events []string
}

func (v *viewRecorder) Open(s Snapshot) {
	v.events = append(v.events, fmt.Sprintf("open:%d", len(s.Items)))
}

func (v *viewRecorder) Select(i int) {
	v.events = append(v.events, fmt.Sprintf("select:%d", i))
}

func (v *viewRecorder) ScrollIntoView(i int) {
	v.events = append(v.events, fmt.Sprintf("scroll:%d", i))
}

func (v *viewRecorder) Update(items []model.SwitcherItem, selected int) {
	v.events = append(v.events, fmt.Sprintf("update:%d:%d", len(items), selected))
}

func (v *viewRecorder) Close() {
	v.events = append(v.events, "close")
}

type fixture struct {
	e     *Engine
	m     *loop.Manual
	view  *viewRecorder
	procs *registry.MemoryProcesses
	wins  *registry.MemoryWindows
	coord *popup.Coordinator
	bus   *Bus
}

func newFixture(t *testing.T, procs []model.ProcessRecord, wins []model.WindowRecord) *fixture {
	t.Helper()

	m := loop.NewManual()
	f := &fixture{
		m:     m,
		view:  &viewRecorder{},
		procs: registry.NewMemoryProcesses(procs...),
		wins:  registry.NewMemoryWindows(wins...),
		coord: popup.NewCoordinator(m, nil),
		bus:   NewBus(m),
	}
	f.e = New(m, registry.Set{Processes: f.procs, Windows: f.wins}, f.coord, f.bus, f.view, nil, DefaultOptions())
	return f
}

func (f *fixture) enter() bool {
	return f.e.Enter(f.e.Collect(context.Background()))
}

func threeApps(t *testing.T) *fixture {
	return newFixture(t,
		[]model.ProcessRecord{
			{PID: 1, ProgramName: "a"},
			{PID: 2, ProgramName: "b"},
			{PID: 3, ProgramName: "c"},
		},
		[]model.WindowRecord{
			{WindowID: "0x1", PID: 1, IsMainWindow: true},
			{WindowID: "0x2", PID: 2, IsMainWindow: true},
			{WindowID: "0x3", PID: 3, IsMainWindow: true},
		},
	)
}

func windowIDs(s Snapshot) []string {
	var ids []string
	for _, it := range s.Items {
		ids = append(ids, it.WindowID)
	}
	return ids
}

func TestEnter_RefusedWithoutValidWindows(t *testing.T) {
	detached := model.NewHandle("0x1")
	detached.Detach()
	f := newFixture(t,
		[]model.ProcessRecord{
			{PID: 1, ProgramName: "a"},
			{PID: 2, ProgramName: "b", Status: model.StatusExited},
		},
		[]model.WindowRecord{
			{WindowID: "0x1", PID: 1, Handle: detached},
			{WindowID: "0x2", PID: 2},
		},
	)
	f.coord.RegisterExclusive("menu", popup.Options{})
	f.coord.RequestShow("menu")

	assert.False(t, f.enter())
	assert.Equal(t, Inactive, f.e.State())
	assert.Empty(t, f.view.events, "no overlay is created")
	assert.True(t, f.coord.IsVisible("menu"), "no popup is closed")
	assert.False(t, f.coord.Latched("launcher"))
	assert.Equal(t, 0, f.bus.Subscribers())
}

func TestEnter_GroupsByProgram(t *testing.T) {
	f := newFixture(t,
		[]model.ProcessRecord{
			{PID: 1, ProgramName: "term"},
			{PID: 2, ProgramName: "browser"},
			{PID: 3, ProgramName: "browser"},
		},
		[]model.WindowRecord{
			{WindowID: "0x1", PID: 1},
			{WindowID: "0x2", PID: 2},
			{WindowID: "0x3", PID: 3},
			{WindowID: "0x4", PID: 2},
		},
	)

	require.True(t, f.enter())
	snap := f.e.Snapshot()
	assert.Equal(t, []string{"0x2", "0x4", "0x3", "0x1"}, windowIDs(snap))
	for i, it := range snap.Items {
		assert.Equal(t, i, it.Index)
	}
	assert.Equal(t, 0, snap.Selected)
	assert.Equal(t, "active", snap.State)
	assert.NotEmpty(t, snap.ID)
	assert.Equal(t, []string{"open:4"}, f.view.events)
}

func TestEnter_ClosesPopupsAndLatchesLauncher(t *testing.T) {
	f := threeApps(t)
	f.coord.RegisterExclusive("launcher", popup.Options{})
	f.coord.RegisterExclusive("menu", popup.Options{})
	f.coord.RequestShow("menu")

	require.True(t, f.enter())
	assert.Empty(t, f.coord.Visible())
	assert.False(t, f.coord.RequestShow("launcher"))

	f.e.Exit()
	assert.True(t, f.coord.RequestShow("launcher"))
}

func TestEnter_LatchesSuppressedPopups(t *testing.T) {
	f := threeApps(t)
	opts := DefaultOptions()
	opts.Suppress = []string{"selector"}
	f.e.SetOptions(opts)
	f.coord.RegisterExclusive("selector", popup.Options{})
	f.coord.RequestShow("selector")

	require.True(t, f.enter())
	assert.True(t, f.coord.Latched("selector"))
	assert.False(t, f.coord.RequestShow("selector"))

	opts.Suppress = nil
	f.e.SetOptions(opts)
	f.e.Exit()
	assert.False(t, f.coord.Latched("selector"), "latches taken on entry are released on exit")
	assert.True(t, f.coord.RequestShow("selector"))
}

func TestEnter_DropsWindowsDetachedSinceCollect(t *testing.T) {
	gone := model.NewHandle("0x1")
	f := newFixture(t,
		[]model.ProcessRecord{
			{PID: 1, ProgramName: "a"},
			{PID: 2, ProgramName: "b"},
		},
		[]model.WindowRecord{
			{WindowID: "0x1", PID: 1, Handle: gone},
			{WindowID: "0x2", PID: 2},
		},
	)

	c := f.e.Collect(context.Background())
	require.Len(t, c.Items, 2)
	gone.Detach()

	require.True(t, f.e.Enter(c))
	snap := f.e.Snapshot()
	assert.Equal(t, []string{"0x2"}, windowIDs(snap))
	assert.Equal(t, 0, snap.Items[0].Index)
}

func TestEnter_AllCandidatesDetached(t *testing.T) {
	gone := model.NewHandle("0x1")
	f := newFixture(t,
		[]model.ProcessRecord{{PID: 1, ProgramName: "a"}},
		[]model.WindowRecord{{WindowID: "0x1", PID: 1, Handle: gone}},
	)

	c := f.e.Collect(context.Background())
	gone.Detach()
	assert.False(t, f.e.Enter(c))
	assert.Equal(t, Inactive, f.e.State())
}

func TestEnter_ReentryIsNoop(t *testing.T) {
	f := threeApps(t)

	require.True(t, f.enter())
	id := f.e.Snapshot().ID
	assert.False(t, f.enter())

	assert.Equal(t, id, f.e.Snapshot().ID)
	assert.Equal(t, []string{"open:3"}, f.view.events)
	assert.Equal(t, 1, f.bus.Subscribers())
}

func TestStep_WrapAround(t *testing.T) {
	f := threeApps(t)
	require.True(t, f.enter())

	f.e.Step(1)
	f.e.Step(1)
	assert.Equal(t, 2, f.e.Snapshot().Selected)

	f.e.Step(1)
	assert.Equal(t, 0, f.e.Snapshot().Selected)

	f.e.Step(-1)
	assert.Equal(t, 2, f.e.Snapshot().Selected)
}

func TestWheel_Throttle(t *testing.T) {
	f := threeApps(t)
	require.True(t, f.enter())

	f.e.Wheel(30)
	assert.Equal(t, 0, f.e.Snapshot().Selected, "below threshold")

	f.e.Wheel(30)
	assert.Equal(t, 1, f.e.Snapshot().Selected)

	f.e.Wheel(60)
	f.e.Wheel(60)
	assert.Equal(t, 1, f.e.Snapshot().Selected, "within the minimum interval")

	f.m.Advance(100 * time.Millisecond)
	f.e.Wheel(-1)
	assert.Equal(t, 0, f.e.Snapshot().Selected, "negative delta retreats")

	f.m.Advance(100 * time.Millisecond)
	f.e.Wheel(-10)
	assert.Equal(t, 0, f.e.Snapshot().Selected, "accumulator was reset by the step")
}

func TestStep_HighlightBatchedPerFrame(t *testing.T) {
	f := threeApps(t)
	require.True(t, f.enter())

	f.e.Step(1)
	f.e.Step(1)
	assert.Equal(t, []string{"open:3"}, f.view.events)

	f.m.Advance(loop.FrameInterval)
	assert.Equal(t, []string{"open:3", "select:2", "scroll:2"}, f.view.events)
}

func TestConfirm_RestoresMinimizedAndExits(t *testing.T) {
	f := newFixture(t,
		[]model.ProcessRecord{{PID: 1, ProgramName: "a"}},
		[]model.WindowRecord{{WindowID: "0x1", PID: 1, IsMinimized: true}},
	)
	require.True(t, f.enter())

	f.bus.Publish(Event{Kind: EventPress})
	f.m.Flush()

	assert.Equal(t, []string{"restore:0x1", "focus:0x1"}, f.wins.Calls())
	assert.Equal(t, Inactive, f.e.State())
	assert.Equal(t, 0, f.bus.Subscribers())
	assert.Equal(t, []string{"open:1"}, f.view.events, "overlay fades out")

	f.m.Advance(200 * time.Millisecond)
	assert.Equal(t, []string{"open:1", "close"}, f.view.events)
}

func TestConfirm_FocusesVisibleWindow(t *testing.T) {
	f := threeApps(t)
	require.True(t, f.enter())
	f.e.Step(1)

	f.e.Confirm()
	f.m.Flush()
	assert.Equal(t, []string{"focus:0x2"}, f.wins.Calls())
}

func TestCloseSelected_LiveRemoval(t *testing.T) {
	f := threeApps(t)
	require.True(t, f.enter())
	f.e.Step(1)
	f.e.Step(1)

	f.e.CloseSelected()
	f.m.Flush()

	assert.Equal(t, []int{3}, f.procs.Kills())
	snap := f.e.Snapshot()
	assert.Equal(t, []string{"0x1", "0x2"}, windowIDs(snap))
	assert.Equal(t, 1, snap.Selected)
	assert.Equal(t, []string{"open:3", "update:2:1", "scroll:1"}, f.view.events)
}

func TestCloseSelected_CascadeRevalidation(t *testing.T) {
	f := newFixture(t,
		[]model.ProcessRecord{
			{PID: 1, ProgramName: "a"},
			{PID: 2, ProgramName: "b"},
		},
		[]model.WindowRecord{
			{WindowID: "0x1", PID: 1},
			{WindowID: "0x2", PID: 2},
			{WindowID: "0x3", PID: 2},
		},
	)
	require.True(t, f.enter())
	f.e.Step(1)

	f.e.CloseSelected()
	f.m.Flush()

	snap := f.e.Snapshot()
	assert.Equal(t, []string{"0x1"}, windowIDs(snap), "the other window of the killed process goes too")
	assert.Equal(t, 0, snap.Selected)
	assert.Equal(t, 0, snap.Items[0].Index)
}

func TestCloseSelected_ProtectedPID(t *testing.T) {
	f := threeApps(t)
	f.procs.SetProtected(1)
	require.True(t, f.enter())

	f.e.CloseSelected()
	f.m.Flush()

	assert.Empty(t, f.procs.Kills())
	assert.Len(t, f.e.Snapshot().Items, 3)
	assert.Equal(t, Active, f.e.State())
}

func TestCloseSelected_LastItemEndsSession(t *testing.T) {
	f := newFixture(t,
		[]model.ProcessRecord{{PID: 1, ProgramName: "a"}},
		[]model.WindowRecord{{WindowID: "0x1", PID: 1}},
	)
	require.True(t, f.enter())

	f.e.CloseSelected()
	f.m.Flush()
	assert.Equal(t, Inactive, f.e.State())

	f.m.Advance(time.Second)
	assert.Equal(t, []string{"open:1", "close"}, f.view.events)
}

func TestCloseSelected_KillFailureRefreshes(t *testing.T) {
	f := threeApps(t)
	f.procs.FailKill(1, errors.New("operation not permitted"))
	require.True(t, f.enter())

	f.e.CloseSelected()
	f.m.Flush()

	assert.Len(t, f.e.Snapshot().Items, 3)
	assert.Equal(t, []string{"open:3", "update:3:0", "scroll:0"}, f.view.events)
}

func TestCloseSelected_SessionEndedFirst(t *testing.T) {
	f := threeApps(t)
	require.True(t, f.enter())

	f.e.CloseSelected()
	f.e.Exit()
	f.m.Flush()

	assert.Equal(t, []int{1}, f.procs.Kills())
	assert.Equal(t, []string{"open:3"}, f.view.events, "stale continuation does not touch the view")
}

func TestExit_Cleanup(t *testing.T) {
	f := threeApps(t)
	require.True(t, f.enter())
	f.e.Step(1)
	require.Equal(t, 1, f.m.Pending(), "frame callback pending")

	f.bus.Publish(Event{Kind: EventKey, Key: "escape"})
	f.m.Flush()

	assert.Equal(t, Inactive, f.e.State())
	assert.Equal(t, 0, f.bus.Subscribers())
	assert.False(t, f.coord.Latched("launcher"))
	assert.Equal(t, 1, f.m.Pending(), "only the fade-out remains")

	f.m.Advance(time.Second)
	assert.Equal(t, []string{"open:3", "close"}, f.view.events)
	assert.Equal(t, 0, f.m.Pending())
}

func TestEnter_DuringFadeClosesOldOverlay(t *testing.T) {
	f := threeApps(t)
	require.True(t, f.enter())
	f.e.Exit()
	require.True(t, f.enter())

	f.m.Advance(time.Second)
	assert.Equal(t, []string{"open:3", "close", "open:3"}, f.view.events)
	assert.Equal(t, Active, f.e.State())
}

func TestHandleKey_Bindings(t *testing.T) {
	f := threeApps(t)
	require.True(t, f.enter())

	tests := []struct {
		key  string
		want int
	}{
		{"tab", 1},
		{"TAB", 2},
		{"shift+tab", 1},
		{"x", 1},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			f.bus.Publish(Event{Kind: EventKey, Key: tt.key})
			f.m.Flush()
			assert.Equal(t, tt.want, f.e.Snapshot().Selected)
		})
	}
}

func TestInputIgnoredWhileInactive(t *testing.T) {
	f := threeApps(t)

	f.e.HandleKey("Tab")
	f.e.Wheel(500)
	f.e.Confirm()
	f.e.CloseSelected()

	assert.Equal(t, Inactive, f.e.State())
	assert.Empty(t, f.wins.Calls())
	assert.Empty(t, f.procs.Kills())
	assert.Equal(t, 0, f.m.Pending())
}

func TestBus_Unsubscribe(t *testing.T) {
	m := loop.NewManual()
	bus := NewBus(m)

	var got []string
	unA := bus.Subscribe(func(ev Event) { got = append(got, "a:"+ev.Key) })
	bus.Subscribe(func(ev Event) { got = append(got, "b:"+ev.Key) })

	bus.Publish(Event{Kind: EventKey, Key: "1"})
	m.Flush()
	unA()
	bus.Dispatch(Event{Kind: EventKey, Key: "2"})

	assert.Equal(t, []string{"a:1", "b:1", "b:2"}, got)
	assert.Equal(t, 1, bus.Subscribers())
}
