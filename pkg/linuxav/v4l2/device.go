//go:build linux

package v4l2

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"unsafe"
)

const sysfsVideoDir = "/sys/class/video4linux"

// FindOutputDevices finds all V4L2 nodes that accept frames via write(),
// which is what v4l2loopback exposes.
func FindOutputDevices() ([]DeviceInfo, error) {
	entries, err := os.ReadDir(sysfsVideoDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []DeviceInfo{}, nil
		}
		return nil, fmt.Errorf("failed to read video4linux directory: %w", err)
	}

	var devices []DeviceInfo
	for _, entry := range entries {
		devicePath := "/dev/" + filepath.Base(entry.Name())

		info, err := QueryDevice(devicePath)
		if err != nil {
			slog.With("component", "linuxav").Debug("failed to query video device", "path", devicePath, "error", err)
			continue
		}

		if info.Caps&v4l2CapVideoOutput == 0 {
			continue
		}
		devices = append(devices, info)
	}

	sort.Slice(devices, func(i, j int) bool {
		return devices[i].DevicePath < devices[j].DevicePath
	})
	return devices, nil
}

// QueryDevice opens devicePath and reads its capabilities.
func QueryDevice(devicePath string) (DeviceInfo, error) {
	fd, err := open(devicePath)
	if err != nil {
		return DeviceInfo{}, err
	}
	defer close(fd)

	cap := v4l2Capability{}
	if err := ioctl(fd, vidiocQuerycap, unsafe.Pointer(&cap)); err != nil {
		return DeviceInfo{}, fmt.Errorf("VIDIOC_QUERYCAP: %w", err)
	}

	return DeviceInfo{
		DevicePath: devicePath,
		DeviceName: cstr(cap.card[:]),
		Driver:     cstr(cap.driver[:]),
		BusInfo:    cstr(cap.busInfo[:]),
		Caps:       cap.effectiveCaps(),
	}, nil
}

// cstr converts a null-terminated byte slice to a Go string.
func cstr(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return string(b[:i])
	}
	return string(b)
}
