package sink

import (
	"image"
	"sync/atomic"
)

// Discard accepts frames of its size and drops them. It stands in for the
// virtual camera on hosts without a loopback device.
type Discard struct {
	size   image.Point
	frames atomic.Uint64
}

// NewDiscard returns a discarding device of the given size.
func NewDiscard(size image.Point) *Discard {
	return &Discard{size: size}
}

// DiscardOpener opens a Discard device at the requested canvas.
func DiscardOpener(canvas image.Point) (Device, error) {
	return NewDiscard(canvas), nil
}

// Name implements Device.
func (d *Discard) Name() string { return "discard" }

// Size implements Device.
func (d *Discard) Size() image.Point { return d.size }

// WriteFrame implements Device.
func (d *Discard) WriteFrame(img *image.RGBA) error {
	if img.Rect.Size() != d.size {
		return ErrSize
	}
	d.frames.Add(1)
	return nil
}

// Frames returns the number of frames accepted.
func (d *Discard) Frames() uint64 { return d.frames.Load() }

// Close implements Device.
func (d *Discard) Close() error { return nil }
