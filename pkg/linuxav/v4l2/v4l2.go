//go:build linux

// Package v4l2 provides pure Go bindings to the Video4Linux2 (V4L2) API
// for driving video output devices such as v4l2loopback nodes.
//
// This package does not use cgo, enabling simple cross-compilation for
// different Linux architectures (amd64, arm64, arm).
//
// # Device Enumeration
//
// Use FindOutputDevices to discover nodes that accept frames from userspace:
//
//	devices, err := v4l2.FindOutputDevices()
//	for _, dev := range devices {
//	    fmt.Printf("%s: %s (%s)\n", dev.DevicePath, dev.DeviceName, dev.Driver)
//	}
//
// # Writing Frames
//
// Open an output with a fixed geometry and write packed YUYV frames:
//
//	out, err := v4l2.OpenOutput("/dev/video2", 1080, 1920)
//	if err != nil {
//	    return err
//	}
//	defer out.Close()
//	err = out.Write(frame) // len(frame) == out.FrameSize()
//
// The negotiated format is fixed for the lifetime of the Output; consumers
// of a loopback device see a stable capture format.
package v4l2
