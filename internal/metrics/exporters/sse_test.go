package exporters

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/smazurov/phonecam/internal/events"
	"github.com/smazurov/phonecam/internal/metrics"
)

type mockEventBus struct {
	mu        sync.Mutex
	events    []events.Event
	published chan struct{}
}

func newMockEventBus() *mockEventBus {
	return &mockEventBus{
		events:    make([]events.Event, 0),
		published: make(chan struct{}, 100),
	}
}

func (m *mockEventBus) Publish(ev events.Event) {
	m.mu.Lock()
	m.events = append(m.events, ev)
	m.mu.Unlock()
	select {
	case m.published <- struct{}{}:
	default:
	}
}

func (m *mockEventBus) getEvents() []events.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]events.Event, len(m.events))
	copy(result, m.events)
	return result
}

func TestSSEExporterPublishesMetrics(t *testing.T) {
	id := "sse-test-session"
	metrics.SessionOpened(id)
	defer metrics.SessionClosed(id)

	for range 5 {
		metrics.IncFramesWritten(id)
	}
	metrics.IncFramesDropped(id, metrics.DropDecode)

	mock := newMockEventBus()
	exporter := NewSSEExporter(mock)
	exporter.interval = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	exporter.Start(ctx)

	select {
	case <-mock.published:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timeout waiting for metrics publish")
	}

	cancel()
	exporter.Stop()

	var found bool
	for _, ev := range mock.getEvents() {
		sme, ok := ev.(events.SessionMetricsEvent)
		if !ok || sme.SessionID != id {
			continue
		}
		found = true
		if sme.FramesWritten != "5" {
			t.Errorf("FramesWritten = %q, want \"5\"", sme.FramesWritten)
		}
		if sme.FramesDropped != "1" {
			t.Errorf("FramesDropped = %q, want \"1\"", sme.FramesDropped)
		}
		// 5 frames over a 50ms interval
		if sme.FPS != "100.00" {
			t.Errorf("FPS = %q, want \"100.00\"", sme.FPS)
		}
		break
	}
	if !found {
		t.Error("expected SessionMetricsEvent for test session")
	}
}

func TestSSEExporterFPSIsDelta(t *testing.T) {
	id := "sse-delta-session"
	metrics.SessionOpened(id)
	defer metrics.SessionClosed(id)

	mock := newMockEventBus()
	exporter := NewSSEExporter(mock)
	exporter.interval = time.Second

	metrics.IncFramesWritten(id)
	exporter.publishMetrics()
	exporter.publishMetrics()

	var fps []string
	for _, ev := range mock.getEvents() {
		if sme, ok := ev.(events.SessionMetricsEvent); ok && sme.SessionID == id {
			fps = append(fps, sme.FPS)
		}
	}
	if len(fps) != 2 || fps[0] != "1.00" || fps[1] != "0.00" {
		t.Errorf("FPS sequence = %v, want [1.00 0.00]", fps)
	}
}

func TestSSEExporterForgetsClosedSessions(t *testing.T) {
	id := "sse-closed-session"
	metrics.SessionOpened(id)
	metrics.IncFramesWritten(id)

	exporter := NewSSEExporter(newMockEventBus())
	exporter.publishMetrics()
	if _, ok := exporter.last[id]; !ok {
		t.Fatal("expected session to be tracked")
	}

	metrics.SessionClosed(id)
	exporter.publishMetrics()
	if _, ok := exporter.last[id]; ok {
		t.Error("closed session still tracked")
	}
}

func TestSSEExporterStopIdempotent(t *testing.T) {
	id := "sse-idempotent-session"
	metrics.SessionOpened(id)
	defer metrics.SessionClosed(id)

	mock := newMockEventBus()
	exporter := NewSSEExporter(mock)
	exporter.interval = 10 * time.Millisecond

	exporter.Start(context.Background())
	time.Sleep(30 * time.Millisecond)

	exporter.Stop()
	exporter.Stop()
	exporter.Stop()

	countAfterStop := len(mock.getEvents())
	time.Sleep(30 * time.Millisecond)
	if got := len(mock.getEvents()); got != countAfterStop {
		t.Errorf("events published after stop: got %d, want %d", got, countAfterStop)
	}
}

func TestSSEExporterStopBeforeStart(t *testing.T) {
	id := "sse-stop-before-start-session"
	metrics.SessionOpened(id)
	defer metrics.SessionClosed(id)

	mock := newMockEventBus()
	exporter := NewSSEExporter(mock)
	exporter.interval = 10 * time.Millisecond

	// Stop before start should not panic
	exporter.Stop()

	exporter.Start(t.Context())
	time.Sleep(30 * time.Millisecond)
	exporter.Stop()

	if len(mock.getEvents()) == 0 {
		t.Error("expected events after Start(), got none")
	}
}

func TestGetEventTypes(t *testing.T) {
	if _, ok := GetEventTypes()["session-metrics"]; !ok {
		t.Error("expected session-metrics event type")
	}
}
