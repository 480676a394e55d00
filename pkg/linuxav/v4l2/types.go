//go:build linux

package v4l2

// DeviceInfo contains information about a V4L2 device.
type DeviceInfo struct {
	DevicePath string
	DeviceName string
	Driver     string
	BusInfo    string
	Caps       uint32
}

// IsLoopback reports whether the device is driven by v4l2loopback.
func (d DeviceInfo) IsLoopback() bool {
	return d.Driver == "v4l2 loopback"
}

// Capability flags.
const (
	v4l2CapVideoOutput = 0x00000002
	v4l2CapDeviceCaps  = 0x80000000
)

// PixFmtYUYV is the packed 4:2:2 format written to output devices.
const PixFmtYUYV = 0x56595559 // 'YUYV'

const v4l2BufTypeVideoOutput = 2

// Field order and colorspace used for output negotiation.
const (
	v4l2FieldNone      = 1
	v4l2ColorspaceSRGB = 8
)
