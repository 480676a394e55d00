//go:build linux && arm && !arm64

package v4l2

import "unsafe"

// Compile-time struct size assertions for 32-bit ARM.
var (
	_ [104]byte = [unsafe.Sizeof(v4l2Capability{})]byte{}
	_ [48]byte  = [unsafe.Sizeof(v4l2PixFormat{})]byte{}
	_ [204]byte = [unsafe.Sizeof(v4l2Format{})]byte{}
)

// IOCTL constants for 32-bit ARM.
// v4l2_format is 204 bytes here (no union padding), so G/S_FMT differ from 64-bit.
const (
	vidiocQuerycap = 0x80685600
	vidiocGFmt     = 0xc0cc5604
	vidiocSFmt     = 0xc0cc5605
)

// v4l2Format has size 204 bytes on 32-bit ARM.
type v4l2Format struct {
	typ uint32        // offset 0
	pix v4l2PixFormat // offset 4 (union fmt)
	_   [152]byte     // rest of the 200-byte union
}
