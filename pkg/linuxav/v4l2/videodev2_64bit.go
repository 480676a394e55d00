//go:build linux && (amd64 || arm64)

package v4l2

import "unsafe"

// Compile-time struct size assertions.
// These will cause build failures if struct sizes don't match kernel expectations.
var (
	_ [104]byte = [unsafe.Sizeof(v4l2Capability{})]byte{}
	_ [48]byte  = [unsafe.Sizeof(v4l2PixFormat{})]byte{}
	_ [208]byte = [unsafe.Sizeof(v4l2Format{})]byte{}
)

// IOCTL constants for 64-bit architectures.
const (
	vidiocQuerycap = 0x80685600
	vidiocGFmt     = 0xc0d05604
	vidiocSFmt     = 0xc0d05605
)

// v4l2Format has size 208 bytes. The kernel union is 8-byte aligned on
// 64-bit because v4l2_window carries pointers.
type v4l2Format struct {
	typ uint32        // offset 0
	_   [4]byte       // padding
	pix v4l2PixFormat // offset 8 (union fmt)
	_   [152]byte     // rest of the 200-byte union
}
