// Package eventbus implements the Event Bus: the fan-out publisher that
// the Collective Registry, Agent Runtime, and Communicator each hold a
// narrow Publish(models.Event)-only view of. Subscribers are opaque to the
// core and receive events best-effort, off the publishing goroutine.
package eventbus

import (
	"sync"

	"github.com/legionai/legion/pkg/models"
)

// Subscriber receives published events. It must not block for long;
// Bus delivers to each subscriber on its own goroutine per event.
type Subscriber func(models.Event)

// Bus is an in-process, unbuffered fan-out publisher, the same shape as
// the teacher's canvas.Hub but keyed by subscriber rather than session.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[int]Subscriber
	nextID      int
}

// New builds an empty Bus.
func New() *Bus {
	return &Bus{subscribers: make(map[int]Subscriber)}
}

// Subscribe registers fn and returns a function that removes it.
func (b *Bus) Subscribe(fn Subscriber) (cancel func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subscribers[id] = fn
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.subscribers, id)
		b.mu.Unlock()
	}
}

// Publish delivers evt to every current subscriber. Each delivery runs on
// its own goroutine so a slow or blocking subscriber cannot stall the
// publishing call (the Communicator's dispatch path, most commonly).
func (b *Bus) Publish(evt models.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, fn := range b.subscribers {
		fn := fn
		go fn(evt)
	}
}
