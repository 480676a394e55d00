package exporters

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/smazurov/phonecam/internal/events"
	"github.com/smazurov/phonecam/internal/metrics"
)

// EventPublisher interface for publishing events.
type EventPublisher interface {
	Publish(ev events.Event)
}

// SSEExporter exports per-session throughput via Server-Sent Events.
type SSEExporter struct {
	eventBus EventPublisher
	interval time.Duration
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	// frames written per session at the previous tick
	last map[string]uint64
}

// NewSSEExporter creates a new SSE exporter.
func NewSSEExporter(eventBus EventPublisher) *SSEExporter {
	return &SSEExporter{
		eventBus: eventBus,
		interval: 1 * time.Second,
		last:     make(map[string]uint64),
	}
}

// Start begins the SSE export loop.
func (s *SSEExporter) Start(ctx context.Context) {
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.run()
}

// Stop stops the SSE exporter and waits for the goroutine to finish.
func (s *SSEExporter) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *SSEExporter) run() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.publishMetrics()
		}
	}
}

func (s *SSEExporter) publishMetrics() {
	all := metrics.GetAllSessionMetrics()
	for id := range s.last {
		if _, ok := all[id]; !ok {
			delete(s.last, id)
		}
	}

	for id, m := range all {
		delta := m.FramesWritten - s.last[id]
		s.last[id] = m.FramesWritten
		fps := float64(delta) / s.interval.Seconds()

		s.eventBus.Publish(events.SessionMetricsEvent{
			SessionID:     id,
			FramesWritten: strconv.FormatUint(m.FramesWritten, 10),
			FramesDropped: strconv.FormatUint(m.FramesDropped, 10),
			FPS:           strconv.FormatFloat(fps, 'f', 2, 64),
		})
	}
}

// GetEventTypes returns event types for SSE endpoint registration.
func GetEventTypes() map[string]any {
	return map[string]any{
		"session-metrics": events.SessionMetricsEvent{},
	}
}
