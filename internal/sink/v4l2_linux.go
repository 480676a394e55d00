//go:build linux

package sink

import (
	"fmt"
	"image"
	"os"
	"sync"

	"github.com/smazurov/phonecam/pkg/linuxav/v4l2"
)

// V4L2Device writes frames to a v4l2loopback output node as YUYV.
type V4L2Device struct {
	out *v4l2.Output

	mu  sync.Mutex
	buf []byte
}

// OpenV4L2 opens devicePath with a fixed YUYV format of canvas size.
func OpenV4L2(devicePath string, canvas image.Point) (*V4L2Device, error) {
	if _, err := os.Stat(devicePath); err != nil {
		return nil, fmt.Errorf("virtual camera device %s not found "+
			"(load it with: sudo modprobe v4l2loopback video_nr=2 card_label='Mobile Camera' exclusive_caps=1): %w",
			devicePath, err)
	}

	out, err := v4l2.OpenOutput(devicePath, canvas.X, canvas.Y)
	if err != nil {
		return nil, err
	}
	return &V4L2Device{
		out: out,
		buf: make([]byte, out.FrameSize()),
	}, nil
}

// V4L2Opener returns an Opener for devicePath.
func V4L2Opener(devicePath string) Opener {
	return func(canvas image.Point) (Device, error) {
		return OpenV4L2(devicePath, canvas)
	}
}

// Name implements Device.
func (d *V4L2Device) Name() string { return d.out.Path() }

// Size implements Device.
func (d *V4L2Device) Size() image.Point { return image.Pt(d.out.Width(), d.out.Height()) }

// WriteFrame converts img to YUYV and writes it to the device.
func (d *V4L2Device) WriteFrame(img *image.RGBA) error {
	if img.Rect.Size() != d.Size() {
		return fmt.Errorf("%w: got %v, want %v", ErrSize, img.Rect.Size(), d.Size())
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	RGBAToYUYV(d.buf, img)
	if err := d.out.Write(d.buf); err != nil {
		return fmt.Errorf("write to %s: %w", d.out.Path(), err)
	}
	return nil
}

// Close implements Device.
func (d *V4L2Device) Close() error {
	return d.out.Close()
}

// ListOutputDevices returns the video output nodes on this host.
func ListOutputDevices() ([]OutputDevice, error) {
	found, err := v4l2.FindOutputDevices()
	if err != nil {
		return nil, err
	}
	devices := make([]OutputDevice, 0, len(found))
	for _, d := range found {
		devices = append(devices, OutputDevice{
			Path:     d.DevicePath,
			Name:     d.DeviceName,
			Driver:   d.Driver,
			BusInfo:  d.BusInfo,
			Loopback: d.IsLoopback(),
		})
	}
	return devices, nil
}
