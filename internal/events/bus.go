// Package events is the in-process event bus connecting the camera to
// its reactive subsystems (status LED, telemetry, metrics).
package events

import (
	"github.com/kelindar/event"
)

// Bus wraps a kelindar/event dispatcher for event broadcasting.
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus.
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Publish delivers an event to all subscribers of its type.
// Usage: events.Publish(bus, StateChangedEvent{...})
func Publish[T event.Event](b *Bus, ev T) {
	event.Publish(b.dispatcher, ev)
}

// Subscribe registers a handler for one event type, inferred from the
// handler signature. Returns an unsubscribe function.
// Usage: unsub := events.Subscribe(bus, func(e StateChangedEvent) { ... })
func Subscribe[T event.Event](b *Bus, handler func(T)) func() {
	return event.Subscribe(b.dispatcher, handler)
}

// SubscribeToChannel bridges callback-based subscriptions to channels
// for subscribers that run a select loop, like the telemetry publisher.
// Events are dropped rather than blocking when the channel is full.
func SubscribeToChannel[T event.Event](b *Bus, ch chan<- any) func() {
	return event.Subscribe(b.dispatcher, func(e T) {
		select {
		case ch <- e:
		default:
		}
	})
}
