//go:build !linux

package devices

import "context"

// Run records the starting device set and waits for ctx. Hotplug
// notifications are only available on linux.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.Scan(); err != nil {
		w.logger.Debug("Video output devices unavailable", "error", err)
	}
	<-ctx.Done()
	return nil
}
