//go:build linux

package devices

import (
	"context"
	"errors"
	"fmt"

	"github.com/smazurov/phonecam/pkg/linuxav/hotplug"
)

// Run scans once, then rescans on every video4linux add or remove uevent
// until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.Scan(); err != nil {
		w.logger.Warn("Failed to list video output devices", "error", err)
	}

	mon, err := hotplug.NewMonitor(hotplug.SubsystemVideo4Linux)
	if err != nil {
		return fmt.Errorf("hotplug monitor: %w", err)
	}
	defer mon.Close()

	err = mon.Run(ctx, func(ev hotplug.Event) {
		if ev.Action != hotplug.ActionAdd && ev.Action != hotplug.ActionRemove {
			return
		}
		w.logger.Debug("Video device uevent", "action", ev.Action, "device", ev.DevicePath())
		if scanErr := w.Scan(); scanErr != nil {
			w.logger.Warn("Failed to list video output devices", "error", scanErr)
		}
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
