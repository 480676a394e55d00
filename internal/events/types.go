package events

// Event type constants for kelindar/event.
const (
	TypeSessionOpened uint32 = iota + 1
	TypeSessionClosed
	TypeTransformChanged
	TypeResolutionChanged
	TypeConfigReloaded
	TypeSessionMetrics
	TypeDeviceChanged
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// SessionOpenedEvent is published when a phone connects.
type SessionOpenedEvent struct {
	SessionID string `json:"session_id" example:"3f0c2f8e-5a6b-4a39-9a55-0b9c1f5f2d11" doc:"Session identifier"`
	Remote    string `json:"remote" example:"192.168.1.23:51544" doc:"Remote address of the client"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for SessionOpenedEvent.
func (e SessionOpenedEvent) Type() uint32 { return TypeSessionOpened }

// SessionClosedEvent is published when a session's connection ends.
type SessionClosedEvent struct {
	SessionID      string `json:"session_id" doc:"Session identifier"`
	Remote         string `json:"remote" doc:"Remote address of the client"`
	FramesReceived uint64 `json:"frames_received" example:"1200" doc:"Binary messages received"`
	FramesWritten  uint64 `json:"frames_written" example:"1180" doc:"Frames transformed and handed to the sink"`
	Reason         string `json:"reason,omitempty" example:"connection closed" doc:"Why the session ended"`
	Timestamp      string `json:"timestamp" doc:"Event timestamp"`
}

// Type returns the event type identifier for SessionClosedEvent.
func (e SessionClosedEvent) Type() uint32 { return TypeSessionClosed }

// TransformChangedEvent is published after a command updates a session's transform.
type TransformChangedEvent struct {
	SessionID      string `json:"session_id" doc:"Session identifier"`
	Rotation       int    `json:"rotation" example:"90" doc:"Rotation in degrees, normalized to [0, 360)"`
	FlipHorizontal bool   `json:"flip_horizontal" doc:"Mirror left to right"`
	FlipVertical   bool   `json:"flip_vertical" doc:"Mirror top to bottom"`
	Timestamp      string `json:"timestamp" doc:"Event timestamp"`
}

// Type returns the event type identifier for TransformChangedEvent.
func (e TransformChangedEvent) Type() uint32 { return TypeTransformChanged }

// ResolutionChangedEvent is published when a session's incoming frame
// dimensions settle on a new value.
type ResolutionChangedEvent struct {
	SessionID string `json:"session_id" doc:"Session identifier"`
	Width     int    `json:"width" example:"640" doc:"New frame width"`
	Height    int    `json:"height" example:"480" doc:"New frame height"`
	Timestamp string `json:"timestamp" doc:"Event timestamp"`
}

// Type returns the event type identifier for ResolutionChangedEvent.
func (e ResolutionChangedEvent) Type() uint32 { return TypeResolutionChanged }

// ConfigReloadedEvent is published after the config file is re-read.
type ConfigReloadedEvent struct {
	Path      string `json:"path" example:"config.toml" doc:"Config file path"`
	Error     string `json:"error,omitempty" doc:"Load error, empty on success"`
	Timestamp string `json:"timestamp" doc:"Event timestamp"`
}

// Type returns the event type identifier for ConfigReloadedEvent.
func (e ConfigReloadedEvent) Type() uint32 { return TypeConfigReloaded }

// SessionMetricsEvent carries periodic per-session throughput.
type SessionMetricsEvent struct {
	SessionID     string `json:"session_id" doc:"Session identifier"`
	FramesWritten string `json:"frames_written" example:"1180" doc:"Frames handed to the sink so far"`
	FramesDropped string `json:"frames_dropped" example:"3" doc:"Frames dropped so far"`
	FPS           string `json:"fps" example:"29.97" doc:"Frames written per second over the last interval"`
}

// Type returns the event type identifier for SessionMetricsEvent.
func (e SessionMetricsEvent) Type() uint32 { return TypeSessionMetrics }

// DeviceChangedEvent is published when a video output device appears or
// goes away.
type DeviceChangedEvent struct {
	Action     string `json:"action" example:"added" enum:"added,removed" doc:"What happened to the device"`
	DevicePath string `json:"device_path" example:"/dev/video2" doc:"Device node"`
	DeviceName string `json:"device_name" example:"Mobile Camera" doc:"Card label"`
	Loopback   bool   `json:"loopback" doc:"Whether the device is a v4l2loopback node"`
	InUse      bool   `json:"in_use" doc:"Whether this is the configured sink device"`
	Timestamp  string `json:"timestamp" doc:"Event timestamp"`
}

// Type returns the event type identifier for DeviceChangedEvent.
func (e DeviceChangedEvent) Type() uint32 { return TypeDeviceChanged }
