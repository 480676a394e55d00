package events

import (
	"github.com/kelindar/event"
)

// Bus wraps kelindar/event dispatcher for event broadcasting.
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus.
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Publish publishes an event to all subscribers.
// Usage: bus.Publish(SessionOpenedEvent{...})
func (b *Bus) Publish(ev Event) {
	// kelindar/event is generic, so dispatch on the concrete type
	switch e := ev.(type) {
	case SessionOpenedEvent:
		event.Publish(b.dispatcher, e)
	case SessionClosedEvent:
		event.Publish(b.dispatcher, e)
	case TransformChangedEvent:
		event.Publish(b.dispatcher, e)
	case ResolutionChangedEvent:
		event.Publish(b.dispatcher, e)
	case ConfigReloadedEvent:
		event.Publish(b.dispatcher, e)
	case SessionMetricsEvent:
		event.Publish(b.dispatcher, e)
	case DeviceChangedEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe subscribes to events with a handler function.
// The handler type determines which events it receives.
// Returns an unsubscribe function; unknown handler types get a no-op.
// Usage: unsub := bus.Subscribe(func(e SessionOpenedEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(SessionOpenedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(SessionClosedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(TransformChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(ResolutionChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(ConfigReloadedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(SessionMetricsEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(DeviceChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		return func() {}
	}
}
