// Package session runs the per-connection frame pipeline: binary messages
// are decoded, debounced on resolution changes, transformed and written to
// the shared sink; text messages update the connection's transform.
package session

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/smazurov/phonecam/internal/events"
	"github.com/smazurov/phonecam/internal/frame"
	"github.com/smazurov/phonecam/internal/metrics"
	"github.com/smazurov/phonecam/internal/sink"
)

// progressEvery is how often, in processed frames, a progress line is logged.
const progressEvery = 10

// MessageType distinguishes the two kinds of message on a stream.
type MessageType int

// Message types.
const (
	MessageBinary MessageType = iota + 1
	MessageText
)

func (t MessageType) String() string {
	switch t {
	case MessageBinary:
		return "binary"
	case MessageText:
		return "text"
	default:
		return fmt.Sprintf("MessageType(%d)", int(t))
	}
}

// Message is one framed unit read from a connection.
type Message struct {
	Type MessageType
	Data []byte
}

// MessageReader yields the messages of one ordered stream. It returns
// io.EOF when the peer closes the stream normally.
type MessageReader interface {
	ReadMessage(ctx context.Context) (Message, error)
}

// Counters are per-session totals.
type Counters struct {
	Received        uint64 `json:"received" doc:"Binary messages received"`
	Frames          uint64 `json:"frames" doc:"Frames decoded, accepted and transformed"`
	DroppedUnstable uint64 `json:"dropped_unstable" doc:"Frames held back while the resolution settled"`
	DecodeErrors    uint64 `json:"decode_errors" doc:"Binary messages that were not a decodable image"`
	TransformErrors uint64 `json:"transform_errors" doc:"Frames the transform rejected"`
	SinkErrors      uint64 `json:"sink_errors" doc:"Frames the sink did not accept"`
	Commands        uint64 `json:"commands" doc:"Text commands applied"`
	CommandErrors   uint64 `json:"command_errors" doc:"Text messages that were not a command"`
	Panics          uint64 `json:"panics" doc:"Messages whose processing panicked"`
}

// Info is a point-in-time copy of a session for the status API.
type Info struct {
	ID          string          `json:"id" doc:"Session identifier"`
	Remote      string          `json:"remote" doc:"Remote address of the client"`
	ConnectedAt time.Time       `json:"connected_at" doc:"When the client connected"`
	Transform   frame.Transform `json:"transform" doc:"Current transform"`
	Width       int             `json:"width" doc:"Width of the last accepted frame, 0 before the first"`
	Height      int             `json:"height" doc:"Height of the last accepted frame, 0 before the first"`
	Counters    Counters        `json:"counters"`
}

// Summary is reported when a session ends.
type Summary struct {
	ID       string
	Remote   string
	Frames   uint64
	Duration time.Duration
	Counters Counters
	// Err is the transport error that ended the session, nil on a clean close.
	Err error
}

// Session is the state of one connection. Run must be called at most once;
// Info may be called from any goroutine.
type Session struct {
	id        string
	remote    string
	connected time.Time
	ctrl      *Controller
	logger    *slog.Logger
	tracker   *frame.StabilityTracker
	sinkLog   rate.Sometimes

	mu       sync.Mutex
	state    State
	dims     image.Point
	counters Counters
}

func newSession(ctrl *Controller, remote string) *Session {
	id := uuid.NewString()
	return &Session{
		id:        id,
		remote:    remote,
		connected: time.Now(),
		ctrl:      ctrl,
		logger:    ctrl.logger.With("session_id", id, "remote", remote),
		tracker:   frame.NewStabilityTracker(ctrl.threshold),
		sinkLog:   rate.Sometimes{First: 1, Interval: 5 * time.Second},
		state:     ctrl.Defaults(),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Info returns a copy of the session's current state.
func (s *Session) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Info{
		ID:          s.id,
		Remote:      s.remote,
		ConnectedAt: s.connected,
		Transform:   s.state,
		Width:       s.dims.X,
		Height:      s.dims.Y,
		Counters:    s.counters,
	}
}

// Run processes messages from r until the stream ends, the transport
// fails or ctx is cancelled. Per-message failures are logged and counted
// and never end the session.
func (s *Session) Run(ctx context.Context, r MessageReader) Summary {
	var endErr error
	for {
		if err := ctx.Err(); err != nil {
			endErr = err
			break
		}
		msg, err := r.ReadMessage(ctx)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				endErr = err
			}
			break
		}
		s.handle(msg)
	}

	info := s.Info()
	return Summary{
		ID:       s.id,
		Remote:   s.remote,
		Frames:   info.Counters.Frames,
		Duration: time.Since(s.connected),
		Counters: info.Counters,
		Err:      endErr,
	}
}

// handle processes one message, containing any panic to that message.
func (s *Session) handle(msg Message) {
	defer func() {
		if r := recover(); r != nil {
			s.count(func(c *Counters) { c.Panics++ })
			s.logger.Error("Panic while processing message", "type", msg.Type, "panic", r)
		}
	}()

	switch msg.Type {
	case MessageBinary:
		s.handleFrame(msg.Data)
	case MessageText:
		s.handleCommand(string(msg.Data))
	default:
		s.logger.Debug("Ignoring message", "type", msg.Type)
	}
}

func (s *Session) handleFrame(payload []byte) {
	s.count(func(c *Counters) { c.Received++ })
	metrics.IncFramesReceived()

	img, err := s.ctrl.decoder.Decode(payload)
	if err != nil {
		s.count(func(c *Counters) { c.DecodeErrors++ })
		metrics.IncFramesDropped(s.id, metrics.DropDecode)
		s.logger.Warn("Image error", "bytes", len(payload), "error", err)
		return
	}

	size := img.Bounds().Size()
	if !s.tracker.Check(size.X, size.Y) {
		s.count(func(c *Counters) { c.DroppedUnstable++ })
		metrics.IncFramesDropped(s.id, metrics.DropUnstable)
		s.logger.Debug("Frame dropped while resolution settles", "width", size.X, "height", size.Y)
		return
	}
	s.noteDims(size)

	s.mu.Lock()
	state := s.state
	s.mu.Unlock()

	start := time.Now()
	out, err := frame.Apply(img, state, s.ctrl.sink.Canvas())
	metrics.ObserveTransform(time.Since(start))
	if err != nil {
		s.count(func(c *Counters) { c.TransformErrors++ })
		metrics.IncFramesDropped(s.id, metrics.DropTransform)
		s.logger.Warn("Transform failed", "error", err)
		return
	}

	var frames uint64
	s.count(func(c *Counters) {
		c.Frames++
		frames = c.Frames
	})

	if err := s.ctrl.sink.WriteFrame(out); err != nil {
		s.count(func(c *Counters) { c.SinkErrors++ })
		metrics.IncFramesDropped(s.id, metrics.DropSink)
		s.sinkLog.Do(func() {
			level := slog.LevelWarn
			if errors.Is(err, sink.ErrUnavailable) {
				level = slog.LevelDebug
			}
			s.logger.Log(context.Background(), level, "Error writing to camera", "error", err)
		})
	} else {
		metrics.IncFramesWritten(s.id)
	}

	if frames%progressEvery == 0 {
		b := out.Bounds().Size()
		orientation := "portrait"
		if b.X > b.Y {
			orientation = "landscape"
		}
		s.logger.Debug("Frame progress",
			"frame", frames,
			"source", fmt.Sprintf("%dx%d", size.X, size.Y),
			"output", fmt.Sprintf("%dx%d", b.X, b.Y),
			"orientation", orientation,
			"rotation", frame.NormalizeRotation(state.Rotation))
	}
}

// noteDims records the accepted frame size and announces changes.
func (s *Session) noteDims(size image.Point) {
	s.mu.Lock()
	changed := s.dims != size
	s.dims = size
	s.mu.Unlock()

	if !changed {
		return
	}
	s.logger.Info("Resolution changed", "width", size.X, "height", size.Y)
	s.ctrl.publish(events.ResolutionChangedEvent{
		SessionID: s.id,
		Width:     size.X,
		Height:    size.Y,
		Timestamp: timestamp(),
	})
}

func (s *Session) handleCommand(text string) {
	cmd, err := ParseCommand(text)
	if err != nil {
		s.count(func(c *Counters) { c.CommandErrors++ })
		metrics.IncCommand("invalid")
		s.logger.Info("Ignoring message", "message", truncate(text, 128), "error", err)
		return
	}

	s.mu.Lock()
	cmd.Apply(&s.state)
	state := s.state
	s.counters.Commands++
	s.mu.Unlock()

	metrics.IncCommand(string(cmd.Action))
	s.logger.Info("Transform updated", "command", cmd.String(),
		"rotation", state.Rotation,
		"flip_horizontal", state.FlipHorizontal,
		"flip_vertical", state.FlipVertical)
	s.ctrl.publish(events.TransformChangedEvent{
		SessionID:      s.id,
		Rotation:       frame.NormalizeRotation(state.Rotation),
		FlipHorizontal: state.FlipHorizontal,
		FlipVertical:   state.FlipVertical,
		Timestamp:      timestamp(),
	})
}

func (s *Session) count(update func(*Counters)) {
	s.mu.Lock()
	update(&s.counters)
	s.mu.Unlock()
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}
