package events

import "github.com/kelindar/event"

// SubscribeToChannel bridges kelindar/event callback-based subscriptions to channels.
// This is needed for SSE integration where Huma expects a channel-based select loop.
func SubscribeToChannel[T Event](bus *Bus, ch chan<- any) func() {
	return event.Subscribe(bus.dispatcher, func(e T) {
		select {
		case ch <- e:
		default:
			// Drop event if channel is full (non-blocking)
		}
	})
}

// SubscribeAll subscribes ch to every event type and returns a single
// function that removes all subscriptions.
func SubscribeAll(bus *Bus, ch chan<- any) func() {
	unsubs := []func(){
		SubscribeToChannel[SessionOpenedEvent](bus, ch),
		SubscribeToChannel[SessionClosedEvent](bus, ch),
		SubscribeToChannel[TransformChangedEvent](bus, ch),
		SubscribeToChannel[ResolutionChangedEvent](bus, ch),
		SubscribeToChannel[ConfigReloadedEvent](bus, ch),
		SubscribeToChannel[SessionMetricsEvent](bus, ch),
		SubscribeToChannel[DeviceChangedEvent](bus, ch),
	}
	return func() {
		for _, unsub := range unsubs {
			unsub()
		}
	}
}
