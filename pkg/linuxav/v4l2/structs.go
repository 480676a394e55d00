//go:build linux

package v4l2

// v4l2Capability has size 104 bytes on every supported architecture.
type v4l2Capability struct {
	driver       [16]byte  // offset 0
	card         [32]byte  // offset 16
	busInfo      [32]byte  // offset 48
	version      uint32    // offset 80
	capabilities uint32    // offset 84
	deviceCaps   uint32    // offset 88
	reserved     [3]uint32 // offset 92
}

// effectiveCaps returns the per-node capabilities when the driver reports them.
func (c *v4l2Capability) effectiveCaps() uint32 {
	if c.capabilities&v4l2CapDeviceCaps != 0 {
		return c.deviceCaps
	}
	return c.capabilities
}

// v4l2PixFormat has size 48 bytes.
type v4l2PixFormat struct {
	width        uint32 // offset 0
	height       uint32 // offset 4
	pixelformat  uint32 // offset 8
	field        uint32 // offset 12
	bytesperline uint32 // offset 16
	sizeimage    uint32 // offset 20
	colorspace   uint32 // offset 24
	priv         uint32 // offset 28
	flags        uint32 // offset 32
	ycbcrEnc     uint32 // offset 36
	quantization uint32 // offset 40
	xferFunc     uint32 // offset 44
}
