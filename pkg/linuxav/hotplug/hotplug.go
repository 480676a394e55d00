//go:build linux

// Package hotplug listens for kernel uevents over netlink, so callers learn
// when device nodes such as v4l2loopback cameras appear or go away.
package hotplug

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"syscall"
)

// Uevent actions.
const (
	ActionAdd    = "add"
	ActionRemove = "remove"
	ActionChange = "change"
)

// SubsystemVideo4Linux is the subsystem of V4L2 device nodes.
const SubsystemVideo4Linux = "video4linux"

// netlinkKobjectUEvent is the netlink protocol for kernel object events.
const netlinkKobjectUEvent = 15

// kernelGroup is the multicast group the kernel itself broadcasts on,
// as opposed to the group udevd re-broadcasts on.
const kernelGroup = 1

// Event is one kernel device event.
type Event struct {
	Action    string
	KObj      string // kernel object path, e.g. /devices/virtual/video4linux/video2
	Subsystem string
	DevName   string // node name relative to /dev, e.g. video2
	Env       map[string]string
}

// DevicePath returns the /dev node the event refers to, or "" when the
// kernel did not name one.
func (e Event) DevicePath() string {
	switch {
	case e.DevName == "":
		return ""
	case strings.HasPrefix(e.DevName, "/"):
		return e.DevName
	default:
		return "/dev/" + e.DevName
	}
}

// Monitor receives kernel uevents for a fixed set of subsystems.
type Monitor struct {
	fd         int
	subsystems map[string]struct{}
}

// NewMonitor opens a netlink socket. Events are limited to subsystems;
// with none given every event is delivered.
func NewMonitor(subsystems ...string) (*Monitor, error) {
	fd, err := syscall.Socket(syscall.AF_NETLINK, syscall.SOCK_DGRAM|syscall.SOCK_CLOEXEC, netlinkKobjectUEvent)
	if err != nil {
		return nil, err
	}

	addr := &syscall.SockaddrNetlink{Family: syscall.AF_NETLINK, Groups: kernelGroup}
	if err := syscall.Bind(fd, addr); err != nil {
		syscall.Close(fd)
		return nil, err
	}

	// Wake up once a second so Run can notice cancellation
	tv := syscall.Timeval{Sec: 1}
	if err := syscall.SetsockoptTimeval(fd, syscall.SOL_SOCKET, syscall.SO_RCVTIMEO, &tv); err != nil {
		syscall.Close(fd)
		return nil, err
	}

	m := &Monitor{fd: fd, subsystems: make(map[string]struct{}, len(subsystems))}
	for _, s := range subsystems {
		m.subsystems[s] = struct{}{}
	}
	return m, nil
}

// Close releases the socket.
func (m *Monitor) Close() error {
	return syscall.Close(m.fd)
}

func (m *Monitor) accepts(subsystem string) bool {
	if len(m.subsystems) == 0 {
		return true
	}
	_, ok := m.subsystems[subsystem]
	return ok
}

// Run calls handle for every matching event until ctx is cancelled or the
// socket fails. handle runs on the calling goroutine.
func (m *Monitor) Run(ctx context.Context, handle func(Event)) error {
	buf := make([]byte, 8192)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, _, err := syscall.Recvfrom(m.fd, buf, 0)
		if err != nil {
			if errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.EINTR) {
				continue
			}
			return err
		}

		ev, ok := ParseUEvent(buf[:n])
		if !ok || !m.accepts(ev.Subsystem) {
			continue
		}
		handle(ev)
	}
}

// ParseUEvent parses a kernel uevent message of the form
// "ACTION@KOBJ\0KEY=VALUE\0KEY=VALUE\0...".
func ParseUEvent(data []byte) (Event, bool) {
	parts := bytes.Split(data, []byte{0})
	if len(parts) == 0 || len(parts[0]) == 0 {
		return Event{}, false
	}

	action, kobj, found := strings.Cut(string(parts[0]), "@")
	if !found || action == "" {
		return Event{}, false
	}

	ev := Event{
		Action: action,
		KObj:   kobj,
		Env:    make(map[string]string),
	}
	for _, part := range parts[1:] {
		key, value, ok := strings.Cut(string(part), "=")
		if !ok || key == "" {
			continue
		}
		ev.Env[key] = value

		switch key {
		case "SUBSYSTEM":
			ev.Subsystem = value
		case "DEVNAME":
			ev.DevName = value
		}
	}
	return ev, true
}
