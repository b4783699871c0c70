// Package loop provides the single-goroutine event loop that owns all shell
// state, plus the timer, debounce and backoff primitives built on it.
//
// Every callback handed to a Scheduler runs on the loop goroutine, so code
// driven by the loop needs no locking. Work that blocks (registry calls,
// D-Bus round trips) is started with Go and its continuation is posted back.
package loop

import "time"

// FrameInterval is the delay used for next-frame deferrals.
const FrameInterval = 16 * time.Millisecond

// Poster queues a function for execution on the loop goroutine.
// Post is safe to call from any goroutine.
type Poster interface {
	Post(fn func())
}

// Scheduler is the cooperative runtime used by the popup coordinator, the
// instance selector and the task switcher.
type Scheduler interface {
	Poster

	// Now returns the scheduler's notion of the current time.
	Now() time.Time

	// After runs fn on the loop once d has elapsed, unless the returned
	// timer is stopped first.
	After(d time.Duration, fn func()) *Timer

	// Go runs work off the loop and then runs then on the loop.
	Go(work func(), then func())
}

// NextFrame defers fn to the next frame.
func NextFrame(s Scheduler, fn func()) *Timer {
	return s.After(FrameInterval, fn)
}

// Timer is a handle to a scheduled callback. Timers are only touched on the
// loop goroutine. A stopped timer never fires.
type Timer struct {
	fn      func()
	stopped bool
	fired   bool

	// manual scheduler bookkeeping
	at  time.Time
	seq uint64

	rt *time.Timer
}

// Stop cancels the timer. It reports whether the call prevented the
// callback from running.
func (t *Timer) Stop() bool {
	if t == nil || t.stopped || t.fired {
		return false
	}
	t.stopped = true
	if t.rt != nil {
		t.rt.Stop()
	}
	return true
}

// Active reports whether the timer is still waiting to fire.
func (t *Timer) Active() bool {
	return t != nil && !t.stopped && !t.fired
}

func (t *Timer) fire() {
	if !t.Active() {
		return
	}
	t.fired = true
	t.fn()
}
