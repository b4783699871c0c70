package popup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/taskdock/internal/loop"
	"github.com/jmylchreest/taskdock/internal/model"
)

// recorder captures overlay callbacks in order.
type recorder struct {
	events []string
}

func (r *recorder) options(id string) Options {
	return Options{
		OnShow:        func() { r.events = append(r.events, id+":show") },
		OnShown:       func() { r.events = append(r.events, id+":shown") },
		OnHide:        func(immediate bool) { r.events = append(r.events, id+":hide:"+boolStr(immediate)) },
		ShowDelay:     100 * time.Millisecond,
		HideDelay:     200 * time.Millisecond,
		ShowAnimation: 150 * time.Millisecond,
		HideAnimation: 150 * time.Millisecond,
	}
}

func boolStr(b bool) string {
	if b {
		return "immediate"
	}
	return "animated"
}

func newTestCoordinator() (*Coordinator, *loop.Manual, *recorder) {
	m := loop.NewManual()
	return NewCoordinator(m, nil), m, &recorder{}
}

func TestRequestShow_Exclusive(t *testing.T) {
	c, _, rec := newTestCoordinator()
	c.RegisterExclusive("a", rec.options("a"))
	c.RegisterExclusive("b", rec.options("b"))

	require.True(t, c.RequestShow("a"))
	assert.Equal(t, []string{"a"}, c.Visible())

	require.True(t, c.RequestShow("b"))
	assert.Equal(t, []string{"b"}, c.Visible())
	assert.False(t, c.IsVisible("a"))
	assert.False(t, c.IsClosing("a"))

	// a is removed before b starts showing, so both are never up together.
	assert.Equal(t, []string{"a:show", "a:hide:immediate", "b:show"}, rec.events)
}

func TestRequestShow_AlreadyVisibleIsNoop(t *testing.T) {
	c, m, rec := newTestCoordinator()
	c.RegisterExclusive("a", rec.options("a"))

	c.RequestShow("a")
	c.RequestShow("a")
	m.Advance(time.Second)

	assert.Equal(t, []string{"a:show", "a:shown"}, rec.events)
}

func TestRequestShow_Unregistered(t *testing.T) {
	c, _, _ := newTestCoordinator()
	assert.False(t, c.RequestShow("nope"))
	assert.Empty(t, c.Visible())
}

func TestRequestHide_Animated(t *testing.T) {
	c, m, rec := newTestCoordinator()
	c.RegisterExclusive("a", rec.options("a"))
	c.RequestShow("a")
	m.Advance(150 * time.Millisecond)

	c.RequestHide("a", false)
	assert.False(t, c.IsVisible("a"))
	assert.True(t, c.IsClosing("a"))
	assert.Equal(t, []string{"a:show", "a:shown"}, rec.events, "visual hide is deferred")

	m.Advance(150 * time.Millisecond)
	assert.False(t, c.IsClosing("a"))
	assert.Equal(t, []string{"a:show", "a:shown", "a:hide:animated"}, rec.events)
	assert.Equal(t, 0, c.Pending())
}

func TestRequestShow_DuringHideRestarts(t *testing.T) {
	c, m, rec := newTestCoordinator()
	c.RegisterExclusive("a", rec.options("a"))
	c.RequestShow("a")
	m.Advance(150 * time.Millisecond)

	c.RequestHide("a", false)
	m.Advance(50 * time.Millisecond)
	require.True(t, c.RequestShow("a"))

	assert.True(t, c.IsVisible("a"))
	assert.False(t, c.IsClosing("a"))

	m.Advance(time.Second)
	assert.Equal(t, []string{"a:show", "a:shown", "a:show", "a:shown"}, rec.events, "the pending hide never fires")
}

func TestRequestShow_ForceClosesClosingOverlay(t *testing.T) {
	c, m, rec := newTestCoordinator()
	c.RegisterExclusive("a", rec.options("a"))
	c.RegisterExclusive("b", rec.options("b"))

	c.RequestShow("a")
	c.RequestHide("a", false)
	c.RequestShow("b")

	assert.False(t, c.IsClosing("a"))
	m.Advance(time.Second)
	assert.Equal(t, []string{"a:show", "a:hide:immediate", "b:show", "b:shown"}, rec.events)
}

func TestRequestHide_CancelsDebouncedShow(t *testing.T) {
	c, m, rec := newTestCoordinator()
	c.RegisterExclusive("a", rec.options("a"))

	c.ScheduleShow("a")
	m.Advance(50 * time.Millisecond)
	c.RequestHide("a", false)
	m.Advance(time.Second)

	assert.Empty(t, rec.events)
	assert.Equal(t, 0, c.Pending())
}

func TestScheduleShowAndHide(t *testing.T) {
	c, m, rec := newTestCoordinator()
	c.RegisterExclusive("a", rec.options("a"))

	c.ScheduleShow("a")
	m.Advance(99 * time.Millisecond)
	assert.False(t, c.IsVisible("a"))
	m.Advance(time.Millisecond)
	assert.True(t, c.IsVisible("a"))

	c.ScheduleHide("a")
	m.Advance(100 * time.Millisecond)
	c.ScheduleShow("a") // pointer came back: cancels the pending hide
	m.Advance(time.Second)
	assert.True(t, c.IsVisible("a"))

	c.ScheduleHide("a")
	m.Advance(200 * time.Millisecond)
	assert.True(t, c.IsClosing("a"))
	m.Advance(150 * time.Millisecond)
	assert.False(t, c.IsClosing("a"))
}

func TestCloseAllExcept(t *testing.T) {
	c, _, rec := newTestCoordinator()
	c.RegisterExclusive("a", rec.options("a"))
	c.RegisterExclusive("b", rec.options("b"))

	c.RequestShow("a")
	c.CloseAllExcept("a")
	assert.True(t, c.IsVisible("a"))

	c.CloseAllExcept("")
	assert.Empty(t, c.Visible())
	assert.Equal(t, []string{"a:show", "a:hide:immediate"}, rec.events)
	assert.Equal(t, 0, c.Pending())
}

func TestIdempotentReconstruction(t *testing.T) {
	c, m, rec := newTestCoordinator()
	c.RegisterExclusive("a", rec.options("a"))

	c.RequestShow("a")
	firstVisible, firstClosing, firstPending := c.IsVisible("a"), c.IsClosing("a"), c.Pending()

	c.RequestHide("a", true)
	assert.Equal(t, 0, c.Pending(), "hide invalidates the show transition")
	assert.Equal(t, 0, m.Pending())

	c.RequestShow("a")
	assert.Equal(t, firstVisible, c.IsVisible("a"))
	assert.Equal(t, firstClosing, c.IsClosing("a"))
	assert.Equal(t, firstPending, c.Pending())

	m.Advance(time.Second)
	assert.Equal(t, []string{"a:show", "a:hide:immediate", "a:show", "a:shown"}, rec.events)
}

func TestRegisterExclusive_Idempotent(t *testing.T) {
	c, m, rec := newTestCoordinator()
	c.RegisterExclusive("a", rec.options("a"))
	c.RequestShow("a")

	var replaced []string
	opts := rec.options("a")
	opts.OnShown = func() { replaced = append(replaced, "shown") }
	c.RegisterExclusive("a", opts)

	assert.True(t, c.IsVisible("a"), "state survives re-registration")
	m.Advance(time.Second)
	assert.Equal(t, []string{"shown"}, replaced)
	assert.Equal(t, []string{"a:show"}, rec.events)
}

func TestUnregister(t *testing.T) {
	c, m, rec := newTestCoordinator()
	c.RegisterExclusive("a", rec.options("a"))
	c.RequestShow("a")

	c.Unregister("a")
	assert.False(t, c.Registered("a"))
	m.Advance(time.Second)
	assert.Equal(t, []string{"a:show"}, rec.events, "no callback after unregister")
	assert.Equal(t, 0, m.Pending())
}

func TestLatch(t *testing.T) {
	c, _, rec := newTestCoordinator()
	c.RegisterExclusive("launcher", rec.options("launcher"))
	c.RequestShow("launcher")

	c.Latch("launcher")
	assert.False(t, c.IsVisible("launcher"))
	assert.False(t, c.RequestShow("launcher"))
	assert.True(t, c.Latched("launcher"))

	c.Unlatch("launcher")
	assert.True(t, c.RequestShow("launcher"))
}

func TestLatch_BeforeRegister(t *testing.T) {
	c, _, rec := newTestCoordinator()
	c.Latch("launcher")
	c.RegisterExclusive("launcher", rec.options("launcher"))

	assert.False(t, c.RequestShow("launcher"))
	c.Unlatch("launcher")
	assert.True(t, c.RequestShow("launcher"))
}

type box struct {
	model.Handle
	children []model.ViewHandle
}

func (b *box) Contains(other model.ViewHandle) bool {
	for _, c := range b.children {
		if c == other {
			return true
		}
	}
	return false
}

func TestHandleClick(t *testing.T) {
	c, m, rec := newTestCoordinator()

	inner := model.NewHandle("inner")
	anchor := &box{children: []model.ViewHandle{inner}}
	excluded := model.NewHandle("tray")
	outside := model.NewHandle("desktop")

	opts := rec.options("menu")
	opts.Anchor = anchor
	opts.OutsideExclusions = []model.ViewHandle{excluded}
	c.RegisterExclusive("menu", opts)
	c.RequestShow("menu")

	c.HandleClick(inner)
	c.HandleClick(excluded)
	c.HandleClick(anchor)
	assert.True(t, c.IsVisible("menu"))

	c.HandleClick(outside)
	assert.True(t, c.IsClosing("menu"))
	m.Advance(time.Second)
	assert.False(t, c.IsClosing("menu"))

	clicked := 0
	opts.OnClickOutside = func() { clicked++ }
	c.RegisterExclusive("menu", opts)
	c.RequestShow("menu")
	c.HandleClick(outside)
	assert.Equal(t, 1, clicked)
	assert.True(t, c.IsVisible("menu"))
}
