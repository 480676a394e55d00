//go:build linux

package v4l2

import (
	"errors"
	"os"
	"path/filepath"
	"syscall"
	"testing"
)

func TestCstr(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want string
	}{
		{"null terminated", []byte{'v', '4', 'l', 0, 'x'}, "v4l"},
		{"no terminator", []byte("loopback"), "loopback"},
		{"empty", []byte{0, 0, 0}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cstr(tt.in); got != tt.want {
				t.Errorf("cstr(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestEffectiveCaps(t *testing.T) {
	c := v4l2Capability{capabilities: v4l2CapDeviceCaps | 0x3, deviceCaps: v4l2CapVideoOutput}
	if got := c.effectiveCaps(); got != v4l2CapVideoOutput {
		t.Errorf("effectiveCaps with device caps = 0x%x, want 0x%x", got, v4l2CapVideoOutput)
	}

	c = v4l2Capability{capabilities: v4l2CapVideoOutput}
	if got := c.effectiveCaps(); got != v4l2CapVideoOutput {
		t.Errorf("effectiveCaps without device caps = 0x%x, want 0x%x", got, v4l2CapVideoOutput)
	}
}

func TestIsLoopback(t *testing.T) {
	if !(DeviceInfo{Driver: "v4l2 loopback"}).IsLoopback() {
		t.Error("v4l2loopback driver not recognised")
	}
	if (DeviceInfo{Driver: "uvcvideo"}).IsLoopback() {
		t.Error("uvcvideo reported as loopback")
	}
}

func TestOpenOutputRejectsBadGeometry(t *testing.T) {
	for _, dims := range [][2]int{{0, 10}, {10, 0}, {-2, 4}, {11, 4}} {
		if _, err := OpenOutput("/dev/null", dims[0], dims[1]); err == nil {
			t.Errorf("OpenOutput(%dx%d) expected error", dims[0], dims[1])
		}
	}
}

func TestOpenOutputRejectsNonV4L2Node(t *testing.T) {
	path := filepath.Join(t.TempDir(), "video9")
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := OpenOutput(path, 640, 480); err == nil {
		t.Error("OpenOutput on a regular file expected error")
	}
}

func TestOutputWriteChecksSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frames")
	fd, err := syscall.Open(path, syscall.O_RDWR|syscall.O_CREAT, 0o600)
	if err != nil {
		t.Fatal(err)
	}
	out := &Output{path: path, fd: fd, width: 2, height: 1, frameSize: 4}

	if err := out.Write(make([]byte, 3)); !errors.Is(err, ErrFrameSize) {
		t.Errorf("short frame error = %v, want ErrFrameSize", err)
	}
	if err := out.Write([]byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("Write() error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != 4 {
		t.Errorf("wrote %d bytes, want 4", len(data))
	}

	if err := out.Close(); err != nil {
		t.Errorf("Close() error: %v", err)
	}
	if err := out.Close(); err != nil {
		t.Errorf("second Close() error: %v", err)
	}
	if err := out.Write([]byte{1, 2, 3, 4}); err == nil {
		t.Error("Write after Close expected error")
	}
}

func TestFindOutputDevicesNoPanic(t *testing.T) {
	if _, err := FindOutputDevices(); err != nil {
		t.Logf("FindOutputDevices: %v", err)
	}
}
