// Package sink wraps the fixed-resolution virtual camera that receives
// normalized frames from every session.
package sink

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

var (
	// ErrUnavailable is returned when the output device could not be opened.
	ErrUnavailable = errors.New("sink unavailable")
	// ErrSize is returned for frames that do not match the sink canvas.
	ErrSize = errors.New("frame size does not match sink canvas")
)

// Device is a fixed-resolution raster consumer.
type Device interface {
	Name() string
	Size() image.Point
	WriteFrame(img *image.RGBA) error
	Close() error
}

// Opener creates the device for a canvas. It is called at most once.
type Opener func(canvas image.Point) (Device, error)

// Status describes the shared sink for the status API.
type Status struct {
	Available bool   `json:"available" doc:"Whether the output device is open"`
	Device    string `json:"device" example:"/dev/video2" doc:"Output device name"`
	Width     int    `json:"width" example:"1920" doc:"Fixed canvas width"`
	Height    int    `json:"height" example:"1080" doc:"Fixed canvas height"`
	Error     string `json:"error,omitempty" doc:"Initialization error, if any"`
	Writes    uint64 `json:"writes" doc:"Frames written to the device"`
	Failures  uint64 `json:"failures" doc:"Frames the device rejected"`
}

// Shared is the process-wide sink handle. Initialization happens once and
// writes from concurrent sessions are serialized; the last write wins.
type Shared struct {
	canvas   image.Point
	open     Opener
	snapshot *Snapshot
	logger   *slog.Logger

	once    sync.Once
	dev     Device
	initErr error

	mu       sync.Mutex
	closed   bool
	writes   atomic.Uint64
	failures atomic.Uint64

	snapLog rate.Sometimes
}

// Option configures a Shared sink.
type Option func(*Shared)

// WithSnapshot persists written frames for inspection.
func WithSnapshot(s *Snapshot) Option {
	return func(sh *Shared) {
		sh.snapshot = s
	}
}

// WithLogger sets the logger used for device lifecycle messages.
func WithLogger(logger *slog.Logger) Option {
	return func(sh *Shared) {
		sh.logger = logger
	}
}

// NewShared creates the shared sink for a fixed canvas. The device is not
// opened until Init or the first WriteFrame.
func NewShared(canvas image.Point, open Opener, opts ...Option) *Shared {
	s := &Shared{
		canvas:  canvas,
		open:    open,
		logger:  slog.Default(),
		snapLog: rate.Sometimes{First: 1, Interval: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Init opens the device exactly once. Later calls return the first result.
func (s *Shared) Init() error {
	s.once.Do(func() {
		dev, err := s.openDevice()

		s.mu.Lock()
		s.dev, s.initErr = dev, err
		s.mu.Unlock()

		if err == nil {
			s.logger.Info("Virtual camera initialized", "device", dev.Name(), "width", s.canvas.X, "height", s.canvas.Y)
		}
	})
	return s.initErr
}

func (s *Shared) openDevice() (Device, error) {
	if s.canvas.X <= 0 || s.canvas.Y <= 0 {
		return nil, fmt.Errorf("invalid canvas %dx%d", s.canvas.X, s.canvas.Y)
	}
	if s.open == nil {
		return nil, errors.New("no output device configured")
	}

	dev, err := s.open(s.canvas)
	if err != nil {
		return nil, err
	}
	if dev.Size() != s.canvas {
		_ = dev.Close()
		return nil, fmt.Errorf("device %s opened at %v, want %v", dev.Name(), dev.Size(), s.canvas)
	}
	return dev, nil
}

// Canvas returns the fixed output size.
func (s *Shared) Canvas() image.Point {
	return s.canvas
}

// WriteFrame hands img to the device. img must be exactly canvas sized and
// is not modified afterwards by the caller. The snapshot, when configured, is
// updated even if the device is missing; it is encoded on the caller's
// goroutine outside the write lock.
func (s *Shared) WriteFrame(img *image.RGBA) error {
	if img == nil || img.Rect.Size() != s.canvas {
		var got image.Point
		if img != nil {
			got = img.Rect.Size()
		}
		return fmt.Errorf("%w: got %v, want %v", ErrSize, got, s.canvas)
	}

	initErr := s.Init()

	if s.snapshot != nil {
		if err := s.snapshot.Observe(img); err != nil {
			s.snapLog.Do(func() {
				s.logger.Warn("Failed to save snapshot", "path", s.snapshot.Path(), "error", err)
			})
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if initErr != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, initErr)
	}
	if s.closed {
		return fmt.Errorf("%w: closed", ErrUnavailable)
	}

	if err := s.dev.WriteFrame(img); err != nil {
		s.failures.Add(1)
		return err
	}
	s.writes.Add(1)
	return nil
}

// Status reports the device state.
func (s *Shared) Status() Status {
	st := Status{
		Width:    s.canvas.X,
		Height:   s.canvas.Y,
		Writes:   s.writes.Load(),
		Failures: s.failures.Load(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dev != nil {
		st.Device = s.dev.Name()
		st.Available = !s.closed
	}
	if s.initErr != nil {
		st.Error = s.initErr.Error()
	}
	return st
}

// Close releases the device. Writes after Close fail with ErrUnavailable.
func (s *Shared) Close() error {
	// Prevent a later Init from opening a device nobody will close.
	s.once.Do(func() {
		s.mu.Lock()
		s.initErr = errors.New("sink closed before init")
		s.mu.Unlock()
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.dev == nil {
		s.closed = true
		return nil
	}
	s.closed = true
	return s.dev.Close()
}
