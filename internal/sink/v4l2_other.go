//go:build !linux

package sink

import (
	"errors"
	"image"
)

// V4L2Opener returns an Opener that always fails: v4l2loopback is Linux only.
func V4L2Opener(devicePath string) Opener {
	return func(image.Point) (Device, error) {
		return nil, errors.New("virtual camera output " + devicePath + " requires linux v4l2loopback")
	}
}

// ListOutputDevices is not supported off linux.
func ListOutputDevices() ([]OutputDevice, error) {
	return nil, errors.New("video output devices can only be listed on linux")
}
