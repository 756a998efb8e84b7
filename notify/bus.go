// Package notify carries process-wide "session changed" notifications so that
// independently mounted consumers converge on the token store without holding
// references to each other.
//
// Delivery is synchronous and in registration order, with no queueing and no
// replay: a handler registered after an event fires misses it. Consumers are
// expected to re-derive state from the token store rather than trust the
// event payload, so a missed event is recovered on the next read.
package notify

import (
	"sync"

	"github.com/Dynpro/NextBI/tokenstore"
	"github.com/Dynpro/NextBI/users"
)

// Event describes a completed identity exchange.
type Event struct {
	Method tokenstore.Method
	User   *users.User
}

// Handler receives published events.
type Handler func(Event)

type subscriber struct {
	id      int
	handler Handler
}

// Bus is a process-wide broadcast channel for session changes.
type Bus struct {
	lock        sync.Mutex
	nextID      int
	subscribers []subscriber
}

func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers handler and returns a function that removes it again.
func (b *Bus) Subscribe(handler Handler) func() {
	b.lock.Lock()
	defer b.lock.Unlock()

	id := b.nextID
	b.nextID++
	b.subscribers = append(b.subscribers, subscriber{id: id, handler: handler})

	return func() {
		b.lock.Lock()
		defer b.lock.Unlock()
		for i, s := range b.subscribers {
			if s.id == id {
				b.subscribers = append(b.subscribers[:i], b.subscribers[i+1:]...)
				return
			}
		}
	}
}

// Publish delivers event to every currently registered handler, synchronously
// and in registration order. Handlers run outside the bus lock so they may
// subscribe or unsubscribe freely.
func (b *Bus) Publish(event Event) {
	b.lock.Lock()
	subs := make([]subscriber, len(b.subscribers))
	copy(subs, b.subscribers)
	b.lock.Unlock()

	for _, s := range subs {
		s.handler(event)
	}
}
