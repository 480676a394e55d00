package sink

import (
	"image"
	"image/color"
)

// RGBAToYUYV packs img into dst as YUYV 4:2:2 (BT.601, full range as produced
// by image/color). Chroma is averaged over each horizontal pixel pair. dst must
// hold at least width*height*2 bytes and width must be even.
func RGBAToYUYV(dst []byte, img *image.RGBA) {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	i := 0
	for y := 0; y < h; y++ {
		row := img.Pix[img.PixOffset(img.Rect.Min.X, img.Rect.Min.Y+y):]
		for x := 0; x+1 < w; x += 2 {
			p := row[x*4 : x*4+8]
			y0, cb0, cr0 := color.RGBToYCbCr(p[0], p[1], p[2])
			y1, cb1, cr1 := color.RGBToYCbCr(p[4], p[5], p[6])

			dst[i] = y0
			dst[i+1] = uint8((uint16(cb0) + uint16(cb1) + 1) / 2)
			dst[i+2] = y1
			dst[i+3] = uint8((uint16(cr0) + uint16(cr1) + 1) / 2)
			i += 4
		}
	}
}
