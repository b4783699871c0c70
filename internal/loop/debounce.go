package loop

import "time"

// Debouncer runs the most recently triggered function once its delay has
// elapsed without another trigger.
type Debouncer struct {
	s     Scheduler
	delay time.Duration
	timer *Timer
}

// NewDebouncer creates a debouncer with the given delay.
func NewDebouncer(s Scheduler, delay time.Duration) *Debouncer {
	return &Debouncer{s: s, delay: delay}
}

// Trigger (re)starts the delay. Any previously triggered function is dropped.
func (d *Debouncer) Trigger(fn func()) {
	d.Cancel()
	var t *Timer
	t = d.s.After(d.delay, func() {
		if d.timer == t {
			d.timer = nil
		}
		fn()
	})
	d.timer = t
}

// Cancel drops the pending function. It reports whether one was pending.
func (d *Debouncer) Cancel() bool {
	t := d.timer
	d.timer = nil
	return t.Stop()
}

// Pending reports whether a function is waiting to run.
func (d *Debouncer) Pending() bool {
	return d.timer.Active()
}

// Delay returns the configured delay.
func (d *Debouncer) Delay() time.Duration {
	return d.delay
}

// SetDelay changes the delay for subsequent triggers.
func (d *Debouncer) SetDelay(delay time.Duration) {
	d.delay = delay
}

// Backoff retries a function after a fixed delay, up to a maximum number of
// consecutive attempts. A zero maximum means unlimited.
type Backoff struct {
	s        Scheduler
	delay    time.Duration
	max      int
	attempts int
	timer    *Timer
}

// NewBackoff creates a fixed-delay backoff.
func NewBackoff(s Scheduler, delay time.Duration, maxAttempts int) *Backoff {
	return &Backoff{s: s, delay: delay, max: maxAttempts}
}

// Retry schedules fn after the delay, replacing any pending retry. It returns
// false, and schedules nothing, once the attempt budget is spent.
func (b *Backoff) Retry(fn func()) bool {
	if b.max > 0 && b.attempts >= b.max {
		return false
	}
	b.timer.Stop()
	b.attempts++
	var t *Timer
	t = b.s.After(b.delay, func() {
		if b.timer == t {
			b.timer = nil
		}
		fn()
	})
	b.timer = t
	return true
}

// Reset cancels any pending retry and restores the attempt budget.
func (b *Backoff) Reset() {
	b.timer.Stop()
	b.timer = nil
	b.attempts = 0
}

// Pending reports whether a retry is scheduled.
func (b *Backoff) Pending() bool {
	return b.timer.Active()
}

// Attempts returns the number of retries scheduled since the last Reset.
func (b *Backoff) Attempts() int {
	return b.attempts
}

// SetDelay changes the delay for subsequent retries.
func (b *Backoff) SetDelay(delay time.Duration) {
	b.delay = delay
}
