package devices

import (
	"errors"
	"sync"
	"testing"

	"github.com/smazurov/phonecam/internal/events"
	"github.com/smazurov/phonecam/internal/sink"
)

type recordingBus struct {
	mu     sync.Mutex
	events []events.DeviceChangedEvent
}

func (b *recordingBus) Publish(ev events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if e, ok := ev.(events.DeviceChangedEvent); ok {
		b.events = append(b.events, e)
	}
}

// scriptedLister returns one listing per call, repeating the last.
type scriptedLister struct {
	listings [][]sink.OutputDevice
	err      error
	calls    int
}

func (l *scriptedLister) list() ([]sink.OutputDevice, error) {
	if l.err != nil {
		return nil, l.err
	}
	i := min(l.calls, len(l.listings)-1)
	l.calls++
	return l.listings[i], nil
}

var (
	loopback = sink.OutputDevice{Path: "/dev/video2", Name: "Mobile Camera", Driver: "v4l2 loopback", Loopback: true}
	other    = sink.OutputDevice{Path: "/dev/video5", Name: "Dummy", Driver: "vivid"}
)

func TestWatcherFirstScanIsSilent(t *testing.T) {
	bus := &recordingBus{}
	l := &scriptedLister{listings: [][]sink.OutputDevice{{loopback, other}}}
	w := NewWatcher(bus, "/dev/video2", WithLister(l.list))

	if err := w.Scan(); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(bus.events) != 0 {
		t.Errorf("published %d events on the first scan", len(bus.events))
	}
	if got := w.Devices(); len(got) != 2 || got[0].Path != "/dev/video2" || got[1].Path != "/dev/video5" {
		t.Errorf("Devices() = %+v", got)
	}
}

func TestWatcherPublishesChanges(t *testing.T) {
	tests := []struct {
		name   string
		before []sink.OutputDevice
		after  []sink.OutputDevice
		want   []events.DeviceChangedEvent
	}{
		{
			name:   "sink appears",
			before: nil,
			after:  []sink.OutputDevice{loopback},
			want: []events.DeviceChangedEvent{
				{Action: ActionAdded, DevicePath: "/dev/video2", DeviceName: "Mobile Camera", Loopback: true, InUse: true},
			},
		},
		{
			name:   "other removed",
			before: []sink.OutputDevice{loopback, other},
			after:  []sink.OutputDevice{loopback},
			want: []events.DeviceChangedEvent{
				{Action: ActionRemoved, DevicePath: "/dev/video5", DeviceName: "Dummy"},
			},
		},
		{
			name:   "swap",
			before: []sink.OutputDevice{other},
			after:  []sink.OutputDevice{loopback},
			want: []events.DeviceChangedEvent{
				{Action: ActionAdded, DevicePath: "/dev/video2", DeviceName: "Mobile Camera", Loopback: true, InUse: true},
				{Action: ActionRemoved, DevicePath: "/dev/video5", DeviceName: "Dummy"},
			},
		},
		{
			name:   "unchanged",
			before: []sink.OutputDevice{loopback},
			after:  []sink.OutputDevice{loopback},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bus := &recordingBus{}
			l := &scriptedLister{listings: [][]sink.OutputDevice{tt.before, tt.after}}
			w := NewWatcher(bus, "/dev/video2", WithLister(l.list))

			if err := w.Scan(); err != nil {
				t.Fatal(err)
			}
			if err := w.Scan(); err != nil {
				t.Fatal(err)
			}

			if len(bus.events) != len(tt.want) {
				t.Fatalf("events = %+v, want %+v", bus.events, tt.want)
			}
			for i, want := range tt.want {
				got := bus.events[i]
				if got.Timestamp == "" {
					t.Errorf("event %d has no timestamp", i)
				}
				got.Timestamp = ""
				if got != want {
					t.Errorf("event %d = %+v, want %+v", i, got, want)
				}
			}
		})
	}
}

func TestWatcherScanError(t *testing.T) {
	bus := &recordingBus{}
	l := &scriptedLister{err: errors.New("no sysfs")}
	w := NewWatcher(bus, "/dev/video2", WithLister(l.list))

	if err := w.Scan(); err == nil {
		t.Fatal("expected error")
	}
	if len(w.Devices()) != 0 || len(bus.events) != 0 {
		t.Error("failed scan should not change state")
	}
}
