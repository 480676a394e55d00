package session

import (
	"context"
	"image"
	"log/slog"
	"sync/atomic"

	"github.com/smazurov/phonecam/internal/events"
	"github.com/smazurov/phonecam/internal/frame"
	"github.com/smazurov/phonecam/internal/logging"
	"github.com/smazurov/phonecam/internal/metrics"
)

// FrameSink is the shared, fixed-size output every session writes to.
type FrameSink interface {
	Canvas() image.Point
	WriteFrame(img *image.RGBA) error
}

// EventPublisher publishes session lifecycle events.
type EventPublisher interface {
	Publish(ev events.Event)
}

// Controller owns what sessions share: the sink, the decoder settings,
// the event bus and the registry of live sessions.
type Controller struct {
	sink      FrameSink
	decoder   frame.Decoder
	threshold int
	defaults  atomic.Pointer[State]
	bus       EventPublisher
	registry  *Registry
	logger    *slog.Logger
}

// Option configures a Controller.
type Option func(*Controller)

// WithDecoder sets the frame decoder.
func WithDecoder(d frame.Decoder) Option {
	return func(c *Controller) { c.decoder = d }
}

// WithStabilityThreshold sets how many same-size frames a new resolution
// needs before it is accepted.
func WithStabilityThreshold(n int) Option {
	return func(c *Controller) { c.threshold = n }
}

// WithDefaults sets the transform new sessions start with.
func WithDefaults(t State) Option {
	return func(c *Controller) { c.SetDefaults(t) }
}

// WithEventBus sets where lifecycle events are published.
func WithEventBus(bus EventPublisher) Option {
	return func(c *Controller) { c.bus = bus }
}

// WithRegistry sets the registry live sessions are tracked in.
func WithRegistry(r *Registry) Option {
	return func(c *Controller) { c.registry = r }
}

// WithLogger overrides the session logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) { c.logger = logger }
}

// NewController creates a controller writing to sink.
func NewController(sink FrameSink, opts ...Option) *Controller {
	c := &Controller{
		sink:      sink,
		decoder:   frame.Decoder{MaxPixels: frame.DefaultMaxPixels},
		threshold: frame.DefaultStabilityThreshold,
		registry:  NewRegistry(),
		logger:    logging.GetLogger("session"),
	}
	c.defaults.Store(&State{})
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Registry returns the registry of live sessions.
func (c *Controller) Registry() *Registry { return c.registry }

// Defaults returns the transform new sessions start with.
func (c *Controller) Defaults() State { return *c.defaults.Load() }

// SetDefaults changes the transform for sessions created from now on.
// Running sessions keep their own state.
func (c *Controller) SetDefaults(t State) {
	c.defaults.Store(&t)
}

// Serve runs a new session for one connection until it closes and
// returns its summary.
func (c *Controller) Serve(ctx context.Context, remote string, r MessageReader) Summary {
	s := newSession(c, remote)

	c.registry.Add(s)
	metrics.SessionOpened(s.id)
	s.logger.Info("Client connected")
	c.publish(events.SessionOpenedEvent{
		SessionID: s.id,
		Remote:    remote,
		Timestamp: timestamp(),
	})

	summary := s.Run(ctx, r)

	c.registry.Remove(s.id)
	metrics.SessionClosed(s.id)

	reason := "connection closed"
	if summary.Err != nil {
		reason = summary.Err.Error()
		s.logger.Warn("Client disconnected with error", "frames", summary.Frames, "duration", summary.Duration, "error", summary.Err)
	} else {
		s.logger.Info("Client disconnected", "frames", summary.Frames, "duration", summary.Duration)
	}
	c.publish(events.SessionClosedEvent{
		SessionID:      s.id,
		Remote:         remote,
		FramesReceived: summary.Counters.Received,
		FramesWritten:  summary.Frames,
		Reason:         reason,
		Timestamp:      timestamp(),
	})
	return summary
}

func (c *Controller) publish(ev events.Event) {
	if c.bus != nil {
		c.bus.Publish(ev)
	}
}
