package frame

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// ErrTransform is returned when a frame cannot be mapped onto the canvas.
var ErrTransform = errors.New("frame transform failed")

// Transform is the per-session geometry applied to every accepted frame.
type Transform struct {
	// Rotation in clockwise degrees. Any integer; reduced mod 360 on use.
	Rotation       int  `json:"rotation"`
	FlipHorizontal bool `json:"flip_horizontal"`
	FlipVertical   bool `json:"flip_vertical"`
}

// NormalizeRotation reduces degrees to [0, 360).
func NormalizeRotation(degrees int) int {
	return ((degrees % 360) + 360) % 360
}

// Apply runs the fixed pipeline: rotate, flip horizontally, flip vertically,
// then letterbox into a canvas of exactly the given size. The source image is
// never modified; when no step applies the source itself is returned.
func Apply(img *image.RGBA, t Transform, canvas image.Point) (*image.RGBA, error) {
	if canvas.X <= 0 || canvas.Y <= 0 {
		return nil, fmt.Errorf("%w: non-positive canvas %dx%d", ErrTransform, canvas.X, canvas.Y)
	}
	if img == nil || img.Rect.Empty() {
		return nil, fmt.Errorf("%w: empty source image", ErrTransform)
	}

	out := toRGBA(img)
	out = Rotate(out, t.Rotation)
	if t.FlipHorizontal {
		out = FlipHorizontal(out)
	}
	if t.FlipVertical {
		out = FlipVertical(out)
	}
	return Letterbox(out, canvas), nil
}

// Rotate turns img clockwise by degrees. Right angles are exact pixel
// permutations, 90 and 270 swap width and height, and no resampling is
// involved. Other angles rotate about
// the centre with nearest-neighbour sampling inside the original bounds and
// fill uncovered pixels with black.
func Rotate(img *image.RGBA, degrees int) *image.RGBA {
	switch NormalizeRotation(degrees) {
	case 0:
		return img
	case 90:
		return rotate90(img)
	case 180:
		return rotate180(img)
	case 270:
		return rotate270(img)
	default:
		return rotateArbitrary(img, NormalizeRotation(degrees))
	}
}

func rotate90(src *image.RGBA) *image.RGBA {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	dst := image.NewRGBA(image.Rect(0, 0, h, w))
	for y := 0; y < w; y++ {
		for x := 0; x < h; x++ {
			copyPixel(dst, x, y, src, y, h-1-x)
		}
	}
	return dst
}

func rotate180(src *image.RGBA) *image.RGBA {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			copyPixel(dst, x, y, src, w-1-x, h-1-y)
		}
	}
	return dst
}

func rotate270(src *image.RGBA) *image.RGBA {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	dst := image.NewRGBA(image.Rect(0, 0, h, w))
	for y := 0; y < w; y++ {
		for x := 0; x < h; x++ {
			copyPixel(dst, x, y, src, w-1-y, x)
		}
	}
	return dst
}

// rotateArbitrary turns src clockwise about its centre. The affine map takes
// source coordinates to destination coordinates; pixels it leaves uncovered
// stay black.
func rotateArbitrary(src *image.RGBA, degrees int) *image.RGBA {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	fillBlack(dst)

	theta := float64(degrees) * math.Pi / 180
	sin, cos := math.Sin(theta), math.Cos(theta)
	cx := float64(src.Rect.Min.X) + float64(w)/2
	cy := float64(src.Rect.Min.Y) + float64(h)/2
	ox, oy := float64(w)/2, float64(h)/2

	m := f64.Aff3{
		cos, -sin, ox - cos*cx + sin*cy,
		sin, cos, oy - sin*cx - cos*cy,
	}
	draw.NearestNeighbor.Transform(dst, m, src, src.Rect, draw.Src, nil)
	return dst
}

// FlipHorizontal mirrors img left to right.
func FlipHorizontal(src *image.RGBA) *image.RGBA {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			copyPixel(dst, x, y, src, w-1-x, y)
		}
	}
	return dst
}

// FlipVertical mirrors img top to bottom.
func FlipVertical(src *image.RGBA) *image.RGBA {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	rowLen := w * 4
	for y := 0; y < h; y++ {
		from := src.PixOffset(src.Rect.Min.X, src.Rect.Min.Y+h-1-y)
		to := dst.PixOffset(0, y)
		copy(dst.Pix[to:to+rowLen], src.Pix[from:from+rowLen])
	}
	return dst
}

// Letterbox scales img to fit inside canvas preserving its aspect ratio and
// centres it on black. Odd padding leaves the extra pixel at the bottom/right.
// An image already the canvas size is returned unchanged.
func Letterbox(img *image.RGBA, canvas image.Point) *image.RGBA {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	if w == canvas.X && h == canvas.Y {
		return img
	}

	fit := FitSize(image.Pt(w, h), canvas)
	off := image.Pt((canvas.X-fit.X)/2, (canvas.Y-fit.Y)/2)

	dst := image.NewRGBA(image.Rect(0, 0, canvas.X, canvas.Y))
	fillBlack(dst)
	draw.CatmullRom.Scale(dst, image.Rectangle{Min: off, Max: off.Add(fit)}, img, img.Rect, draw.Src, nil)
	return dst
}

// FitSize returns the largest size with src's aspect ratio that fits canvas.
// The constrained axis fills the canvas and the other is truncated.
func FitSize(src, canvas image.Point) image.Point {
	srcAspect := float64(src.X) / float64(src.Y)
	canvasAspect := float64(canvas.X) / float64(canvas.Y)

	if srcAspect > canvasAspect {
		return image.Pt(canvas.X, clamp(int(float64(canvas.X)/srcAspect), 1, canvas.Y))
	}
	return image.Pt(clamp(int(float64(canvas.Y)*srcAspect), 1, canvas.X), canvas.Y)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func fillBlack(img *image.RGBA) {
	draw.Draw(img, img.Rect, image.NewUniform(color.RGBA{A: 0xff}), image.Point{}, draw.Src)
}

// copyPixel copies src(sx, sy) to dst(dx, dy). Coordinates are relative to
// each image's origin.
func copyPixel(dst *image.RGBA, dx, dy int, src *image.RGBA, sx, sy int) {
	d := dst.PixOffset(dst.Rect.Min.X+dx, dst.Rect.Min.Y+dy)
	s := src.PixOffset(src.Rect.Min.X+sx, src.Rect.Min.Y+sy)
	copy(dst.Pix[d:d+4], src.Pix[s:s+4])
}
