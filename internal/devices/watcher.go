// Package devices keeps track of the video output devices on the host and
// announces them as they come and go.
package devices

import (
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/smazurov/phonecam/internal/events"
	"github.com/smazurov/phonecam/internal/logging"
	"github.com/smazurov/phonecam/internal/sink"
)

// Device actions carried by events.DeviceChangedEvent.
const (
	ActionAdded   = "added"
	ActionRemoved = "removed"
)

// Publisher receives device change events.
type Publisher interface {
	Publish(ev events.Event)
}

// Watcher diffs successive device listings and publishes the changes.
type Watcher struct {
	list       func() ([]sink.OutputDevice, error)
	bus        Publisher
	sinkDevice string
	logger     *slog.Logger

	mu     sync.Mutex
	primed bool
	known  map[string]sink.OutputDevice
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLister replaces sink.ListOutputDevices as the source of devices.
func WithLister(list func() ([]sink.OutputDevice, error)) Option {
	return func(w *Watcher) { w.list = list }
}

// WithLogger sets the watcher's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Watcher) { w.logger = logger }
}

// NewWatcher creates a watcher that publishes to bus. sinkDevice marks the
// device frames are written to.
func NewWatcher(bus Publisher, sinkDevice string, opts ...Option) *Watcher {
	w := &Watcher{
		list:       sink.ListOutputDevices,
		bus:        bus,
		sinkDevice: sinkDevice,
		logger:     logging.GetLogger("devices"),
		known:      make(map[string]sink.OutputDevice),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Devices returns the devices found by the last scan, ordered by path.
func (w *Watcher) Devices() []sink.OutputDevice {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]sink.OutputDevice, 0, len(w.known))
	for _, d := range w.known {
		out = append(out, d)
	}
	slices.SortFunc(out, func(a, b sink.OutputDevice) int { return strings.Compare(a.Path, b.Path) })
	return out
}

// Scan lists the devices and publishes what changed since the previous
// scan. The first scan only records the starting set.
func (w *Watcher) Scan() error {
	found, err := w.list()
	if err != nil {
		return err
	}

	current := make(map[string]sink.OutputDevice, len(found))
	for _, d := range found {
		current[d.Path] = d
	}

	w.mu.Lock()
	primed := w.primed
	previous := w.known
	w.known = current
	w.primed = true
	w.mu.Unlock()

	if !primed {
		_, present := current[w.sinkDevice]
		w.logger.Info("Video output devices found", "count", len(current), "sink_present", present)
		return nil
	}

	var changes []events.DeviceChangedEvent
	for path, d := range current {
		if _, ok := previous[path]; !ok {
			changes = append(changes, w.change(ActionAdded, d))
		}
	}
	for path, d := range previous {
		if _, ok := current[path]; !ok {
			changes = append(changes, w.change(ActionRemoved, d))
		}
	}
	slices.SortFunc(changes, func(a, b events.DeviceChangedEvent) int {
		return strings.Compare(a.DevicePath, b.DevicePath)
	})

	for _, ev := range changes {
		w.log(ev)
		if w.bus != nil {
			w.bus.Publish(ev)
		}
	}
	return nil
}

func (w *Watcher) change(action string, d sink.OutputDevice) events.DeviceChangedEvent {
	return events.DeviceChangedEvent{
		Action:     action,
		DevicePath: d.Path,
		DeviceName: d.Name,
		Loopback:   d.Loopback,
		InUse:      d.Path == w.sinkDevice,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}
}

func (w *Watcher) log(ev events.DeviceChangedEvent) {
	switch {
	case ev.InUse && ev.Action == ActionRemoved:
		w.logger.Warn("Virtual camera device removed", "device", ev.DevicePath)
	case ev.InUse:
		w.logger.Info("Virtual camera device appeared; restart to start writing to it", "device", ev.DevicePath)
	default:
		w.logger.Info("Video output device "+ev.Action, "device", ev.DevicePath, "name", ev.DeviceName, "loopback", ev.Loopback)
	}
}
