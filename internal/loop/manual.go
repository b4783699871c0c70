package loop

import (
	"sync"
	"time"
)

// Manual is a deterministic Scheduler for tests. Time only moves when
// Advance is called, and Go runs its work inline.
type Manual struct {
	mu     sync.Mutex
	now    time.Time
	seq    uint64
	timers []*Timer
	posted []func()
}

// NewManual returns a manual scheduler starting at a fixed instant.
func NewManual() *Manual {
	return &Manual{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

// Now implements Scheduler.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Post implements Poster. Posted functions run on the next Flush or Advance.
func (m *Manual) Post(fn func()) {
	m.mu.Lock()
	m.posted = append(m.posted, fn)
	m.mu.Unlock()
}

// After implements Scheduler.
func (m *Manual) After(d time.Duration, fn func()) *Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	t := &Timer{fn: fn, at: m.now.Add(d), seq: m.seq}
	m.timers = append(m.timers, t)
	return t
}

// Go implements Scheduler. The continuation is posted, not run inline.
func (m *Manual) Go(work func(), then func()) {
	work()
	if then != nil {
		m.Post(then)
	}
}

// Flush runs posted functions until none remain.
func (m *Manual) Flush() {
	for {
		m.mu.Lock()
		batch := m.posted
		m.posted = nil
		m.mu.Unlock()
		if len(batch) == 0 {
			return
		}
		for _, fn := range batch {
			fn()
		}
	}
}

// Advance moves time forward by d, firing due timers in order.
func (m *Manual) Advance(d time.Duration) {
	m.Flush()

	m.mu.Lock()
	target := m.now.Add(d)
	m.mu.Unlock()

	for {
		t := m.nextDue(target)
		if t == nil {
			break
		}
		t.fire()
		m.Flush()
	}

	m.mu.Lock()
	m.now = target
	m.mu.Unlock()
}

// nextDue pops the earliest active timer due at or before target and moves
// the clock to its deadline.
func (m *Manual) nextDue(target time.Time) *Timer {
	m.mu.Lock()
	defer m.mu.Unlock()

	var next *Timer
	live := m.timers[:0]
	for _, t := range m.timers {
		if !t.Active() {
			continue
		}
		live = append(live, t)
		if t.at.After(target) {
			continue
		}
		if next == nil || t.at.Before(next.at) || (t.at.Equal(next.at) && t.seq < next.seq) {
			next = t
		}
	}
	m.timers = live

	if next != nil && next.at.After(m.now) {
		m.now = next.at
	}
	return next
}

// Pending returns the number of timers that have not fired or been stopped.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.timers {
		if t.Active() {
			n++
		}
	}
	return n
}
