// Package events fans indicator lifecycle events out to in-process observers.
package events

import (
	"github.com/kelindar/event"
)

// Bus wraps kelindar/event dispatcher for event broadcasting.
// Handlers run asynchronously on the dispatcher's goroutines.
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Publish publishes an event to all subscribers.
// A nil bus drops the event so producers can run without observers.
func (b *Bus) Publish(ev Event) {
	if b == nil {
		return
	}
	switch e := ev.(type) {
	case StatePublished:
		event.Publish(b.dispatcher, e)
	case PatternStarted:
		event.Publish(b.dispatcher, e)
	case StorageCleared:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe registers handler for the event type named by its parameter.
// Returns an unsubscribe function.
// Usage: unsub := bus.Subscribe(func(e PatternStarted) { ... })
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(StatePublished):
		return event.Subscribe(b.dispatcher, h)
	case func(PatternStarted):
		return event.Subscribe(b.dispatcher, h)
	case func(StorageCleared):
		return event.Subscribe(b.dispatcher, h)
	default:
		return func() {}
	}
}
