package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/smazurov/phonecam/internal/events"
)

// registerSSERoutes registers the native Huma SSE endpoint.
func (s *Server) registerSSERoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Session lifecycle, transform and resolution changes, device changes and config reloads",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"session-opened":     events.SessionOpenedEvent{},
		"session-closed":     events.SessionClosedEvent{},
		"transform-changed":  events.TransformChangedEvent{},
		"resolution-changed": events.ResolutionChangedEvent{},
		"config-reloaded":    events.ConfigReloadedEvent{},
		"device-changed":     events.DeviceChangedEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan any, 32)

		unsubscribe := events.SubscribeAll(s.eventBus, eventCh)
		defer unsubscribe()

		// Replay the sessions that are already connected so a new client
		// starts with the full picture.
		if s.options.Controller != nil {
			for _, info := range s.options.Controller.Registry().List() {
				if err := send.Data(events.SessionOpenedEvent{
					SessionID: info.ID,
					Remote:    info.Remote,
					Timestamp: info.ConnectedAt.UTC().Format(time.RFC3339),
				}); err != nil {
					return
				}
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				// Metrics have their own stream
				if _, ok := event.(events.SessionMetricsEvent); ok {
					continue
				}
				if err := send.Data(event); err != nil {
					return
				}
			}
		}
	})
}
