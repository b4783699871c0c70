package loop

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Loop is the production Scheduler. Run must be called exactly once; it
// executes posted functions in FIFO order on the calling goroutine.
type Loop struct {
	logger *slog.Logger

	mu     sync.Mutex
	queue  []func()
	wake   chan struct{}
	closed bool
}

// New creates a new event loop.
func New(logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		logger: logger,
		wake:   make(chan struct{}, 1),
	}
}

// Now implements Scheduler.
func (l *Loop) Now() time.Time {
	return time.Now()
}

// Post implements Poster. Functions posted after Run returns are dropped.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// After implements Scheduler.
func (l *Loop) After(d time.Duration, fn func()) *Timer {
	t := &Timer{fn: fn}
	t.rt = time.AfterFunc(d, func() {
		l.Post(t.fire)
	})
	return t
}

// Go implements Scheduler.
func (l *Loop) Go(work func(), then func()) {
	go func() {
		work()
		if then != nil {
			l.Post(then)
		}
	}()
}

// Run processes posted functions until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	defer func() {
		l.mu.Lock()
		l.closed = true
		l.queue = nil
		l.mu.Unlock()
	}()

	for {
		l.mu.Lock()
		batch := l.queue
		l.queue = nil
		l.mu.Unlock()

		for _, fn := range batch {
			l.run(fn)
		}

		if len(batch) > 0 {
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		}
	}
}

// run executes one task. A panicking task is logged and the loop carries on.
func (l *Loop) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("loop task panicked", "panic", r)
		}
	}()
	fn()
}

// Invoke runs fn on the loop and waits for its result.
func Invoke[T any](ctx context.Context, p Poster, fn func() T) (T, error) {
	done := make(chan T, 1)
	p.Post(func() {
		done <- fn()
	})

	select {
	case v := <-done:
		return v, nil
	case <-ctx.Done():
		var zero T
		return zero, fmt.Errorf("waiting for event loop: %w", ctx.Err())
	}
}
