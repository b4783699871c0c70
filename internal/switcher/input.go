package switcher

import "github.com/jmylchreest/taskdock/internal/loop"

// EventKind identifies the input delivered to a session.
type EventKind int

const (
	EventKey EventKind = iota
	EventWheel
	EventPress
)

// Event is one input event routed to the switcher.
type Event struct {
	Kind   EventKind
	Key    string
	DeltaY float64
}

// Handler receives input events on the loop goroutine.
type Handler func(Event)

// Input is a source of session-scoped input subscriptions.
type Input interface {
	Subscribe(h Handler) (unsubscribe func())
}

// Bus fans input events out to its subscribers. Events published while
// nobody is subscribed are dropped.
type Bus struct {
	p      loop.Poster
	nextID int
	subs   map[int]Handler
	order  []int
}

// NewBus creates a bus that delivers events through p.
func NewBus(p loop.Poster) *Bus {
	return &Bus{p: p, subs: make(map[int]Handler)}
}

// Subscribe implements Input. It must be called on the loop goroutine.
func (b *Bus) Subscribe(h Handler) func() {
	b.nextID++
	id := b.nextID
	b.subs[id] = h
	b.order = append(b.order, id)
	return func() {
		delete(b.subs, id)
		for i, v := range b.order {
			if v == id {
				b.order = append(b.order[:i], b.order[i+1:]...)
				break
			}
		}
	}
}

// Publish queues ev for delivery. It is safe to call from any goroutine.
func (b *Bus) Publish(ev Event) {
	b.p.Post(func() {
		b.Dispatch(ev)
	})
}

// Dispatch delivers ev synchronously. It must be called on the loop goroutine.
func (b *Bus) Dispatch(ev Event) {
	for _, id := range append([]int(nil), b.order...) {
		if h, ok := b.subs[id]; ok {
			h(ev)
		}
	}
}

// Subscribers returns the number of live subscriptions.
func (b *Bus) Subscribers() int {
	return len(b.subs)
}
