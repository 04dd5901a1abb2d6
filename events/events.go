// Package events implements a synchronous, in-process event bus.
//
// Controllers buffer events while an operation runs and publish the batch
// only once the operation's store changes were committed, so a subscriber
// never observes an event for a rolled back state change.
package events

import (
	"reflect"
	"sync"
)

// Listener consumes a single published event.
type Listener func(event interface{})

// Typed wraps a listener for a concrete event type. Events of any other
// type are ignored.
func Typed[T any](fn func(typed T)) Listener {
	return func(event interface{}) {
		if typed, ok := event.(T); ok {
			fn(typed)
		}
	}
}

// Bus dispatches published events to listeners registered for the event
// type. A Bus is safe for concurrent use. Publishing an event that no one
// listens for is a no-op.
type Bus struct {
	mx        sync.RWMutex
	listeners map[string][]Listener
}

// NewBus returns an empty event bus.
func NewBus() *Bus {
	return &Bus{
		listeners: make(map[string][]Listener),
	}
}

// Subscribe registers a listener for events of the same type as the given
// sample value. It returns the bus to allow chaining.
func (b *Bus) Subscribe(sample interface{}, l Listener) *Bus {
	b.mx.Lock()
	defer b.mx.Unlock()

	name := reflect.TypeOf(sample).Name()
	b.listeners[name] = append(b.listeners[name], l)
	return b
}

// Publish delivers the event synchronously to every listener registered
// for its type. Listeners observe protocol state as it is after the
// operation committed. Publishing never fails.
func (b *Bus) Publish(event interface{}) {
	b.mx.RLock()
	defer b.mx.RUnlock()

	name := reflect.TypeOf(event).Name()
	for _, l := range b.listeners[name] {
		l(event)
	}
}

// PublishAll delivers a batch of events in order.
func (b *Bus) PublishAll(events []interface{}) {
	for _, e := range events {
		b.Publish(e)
	}
}
