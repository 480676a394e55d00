//go:build linux

package v4l2

import (
	"errors"
	"fmt"
	"sync"
	"syscall"
	"unsafe"
)

// ErrFrameSize is returned when a frame does not match the negotiated size.
var ErrFrameSize = errors.New("frame size does not match output format")

// Output is a V4L2 video output node opened with a fixed YUYV format.
type Output struct {
	path      string
	fd        int
	width     int
	height    int
	frameSize int
	mu        sync.Mutex
	closed    bool
}

// OpenOutput opens devicePath for writing and sets a packed YUYV format of
// the given size. The driver may adjust the stride; the adjusted frame size
// is reported by FrameSize.
func OpenOutput(devicePath string, width, height int) (*Output, error) {
	if width <= 0 || height <= 0 || width%2 != 0 {
		return nil, fmt.Errorf("invalid output geometry %dx%d (width must be positive and even)", width, height)
	}

	info, err := QueryDevice(devicePath)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", devicePath, err)
	}
	if info.Caps&v4l2CapVideoOutput == 0 {
		return nil, fmt.Errorf("%s (%s) is not a video output device", devicePath, info.DeviceName)
	}

	fd, err := syscall.Open(devicePath, syscall.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", devicePath, err)
	}

	format := v4l2Format{typ: v4l2BufTypeVideoOutput}
	if err := ioctl(fd, vidiocGFmt, unsafe.Pointer(&format)); err != nil {
		// Fresh loopback devices have no format yet; S_FMT below still works.
		format = v4l2Format{typ: v4l2BufTypeVideoOutput}
	}

	format.pix.width = uint32(width)
	format.pix.height = uint32(height)
	format.pix.pixelformat = PixFmtYUYV
	format.pix.field = v4l2FieldNone
	format.pix.bytesperline = uint32(width * 2)
	format.pix.sizeimage = uint32(width * height * 2)
	format.pix.colorspace = v4l2ColorspaceSRGB

	if err := ioctl(fd, vidiocSFmt, unsafe.Pointer(&format)); err != nil {
		_ = close(fd)
		return nil, fmt.Errorf("VIDIOC_S_FMT %dx%d YUYV on %s: %w", width, height, devicePath, err)
	}

	if int(format.pix.width) != width || int(format.pix.height) != height || format.pix.pixelformat != PixFmtYUYV {
		_ = close(fd)
		return nil, fmt.Errorf("%s negotiated %dx%d fourcc 0x%08x, want %dx%d YUYV",
			devicePath, format.pix.width, format.pix.height, format.pix.pixelformat, width, height)
	}

	frameSize := int(format.pix.sizeimage)
	if frameSize < width*height*2 {
		frameSize = width * height * 2
	}

	return &Output{
		path:      devicePath,
		fd:        fd,
		width:     width,
		height:    height,
		frameSize: frameSize,
	}, nil
}

// Path returns the device path.
func (o *Output) Path() string { return o.path }

// Width returns the negotiated frame width.
func (o *Output) Width() int { return o.width }

// Height returns the negotiated frame height.
func (o *Output) Height() int { return o.height }

// FrameSize returns the number of bytes expected by Write.
func (o *Output) FrameSize() int { return o.frameSize }

// Write writes one complete frame.
func (o *Output) Write(frame []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return syscall.EBADF
	}
	if len(frame) != o.frameSize {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrFrameSize, len(frame), o.frameSize)
	}

	for written := 0; written < len(frame); {
		n, err := syscall.Write(o.fd, frame[written:])
		if err != nil {
			if errors.Is(err, syscall.EINTR) {
				continue
			}
			return err
		}
		written += n
	}
	return nil
}

// Close releases the device.
func (o *Output) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return nil
	}
	o.closed = true
	return close(o.fd)
}
