//go:build linux

package v4l2

import (
	"syscall"
	"unsafe"
)

// ioctl issues req on fd, retrying when interrupted by a signal.
func ioctl(fd int, req uint, arg unsafe.Pointer) error {
	for {
		_, _, errno := syscall.Syscall(syscall.SYS_IOCTL, uintptr(fd), uintptr(req), uintptr(arg))
		switch errno {
		case 0:
			return nil
		case syscall.EINTR:
			continue
		default:
			return errno
		}
	}
}

// open opens a device node for capability queries without blocking on it.
func open(path string) (int, error) {
	return syscall.Open(path, syscall.O_RDWR|syscall.O_NONBLOCK, 0)
}

func close(fd int) error {
	return syscall.Close(fd)
}
