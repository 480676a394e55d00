package frame

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"

	// Registered still-image codecs accepted from clients.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// DefaultMaxPixels bounds the decoded raster size (64 megapixels).
const DefaultMaxPixels = 64 << 20

// ErrDecode is returned for payloads that are not a decodable still image.
var ErrDecode = errors.New("frame decode failed")

// Decoder turns compressed still-image payloads into RGBA rasters.
type Decoder struct {
	// MaxPixels rejects images whose header declares more pixels than this.
	// Zero means DefaultMaxPixels.
	MaxPixels int
}

// Decode decodes payload with the default pixel budget.
func Decode(payload []byte) (*image.RGBA, error) {
	return Decoder{}.Decode(payload)
}

// Decode decodes one payload. The header is inspected before the pixel data
// so oversized or garbage input is rejected without allocating a raster.
func (d Decoder) Decode(payload []byte) (img *image.RGBA, err error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrDecode)
	}

	maxPixels := d.MaxPixels
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("%w: invalid %s dimensions %dx%d", ErrDecode, format, cfg.Width, cfg.Height)
	}
	if cfg.Width > maxPixels/cfg.Height {
		return nil, fmt.Errorf("%w: %s image %dx%d exceeds pixel budget", ErrDecode, format, cfg.Width, cfg.Height)
	}

	// Third-party codecs have panicked on crafted input before; keep that
	// inside the decode error contract.
	defer func() {
		if r := recover(); r != nil {
			img = nil
			err = fmt.Errorf("%w: %s decoder panic: %v", ErrDecode, format, r)
		}
	}()

	src, _, err := image.Decode(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	return toRGBA(src), nil
}

// toRGBA returns src as a zero-origin *image.RGBA, converting when needed.
func toRGBA(src image.Image) *image.RGBA {
	b := src.Bounds()
	if rgba, ok := src.(*image.RGBA); ok && b.Min == (image.Point{}) {
		return rgba
	}
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}
