package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/edgevision/perceptd/internal/events"
)

// registerSSERoutes registers the native Huma SSE endpoint.
func (s *Server) registerSSERoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Real-time event stream for detections, dropped cycles, session state, and device changes",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"detection":     events.DetectionEvent{},
		"cycle-dropped": events.CycleDroppedEvent{},
		"session-state": events.SessionStateEvent{},
		"device-change": events.DeviceChangeEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		// Channel per connection; slow readers drop events rather than
		// stalling publishers.
		eventCh := make(chan any, 10)

		unsubscribers := []func(){
			events.SubscribeToChannel[events.DetectionEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.CycleDroppedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.SessionStateEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.DeviceChangeEvent](s.eventBus, eventCh),
		}
		defer func() {
			for _, unsub := range unsubscribers {
				unsub()
			}
		}()

		// Initial event confirms the stream is live before the first
		// detection arrives.
		if err := send.Data(events.SessionStateEvent{
			State:      "connected",
			DevicePath: "",
			Timestamp:  time.Now().UTC().Format(time.RFC3339),
		}); err != nil {
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				if err := send.Data(event); err != nil {
					return
				}
			}
		}
	})
}
