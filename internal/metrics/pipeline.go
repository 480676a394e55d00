// Package metrics provides Prometheus metrics for the frame pipeline.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Drop reasons used as the "reason" label on dropped frames.
const (
	DropDecode    = "decode"
	DropUnstable  = "unstable"
	DropTransform = "transform"
	DropSink      = "sink"
)

var (
	framesReceived = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "phonecam",
		Subsystem: "frames",
		Name:      "received_total",
		Help:      "Binary frames received from clients",
	})

	framesWritten = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "phonecam",
		Subsystem: "frames",
		Name:      "written_total",
		Help:      "Frames successfully written to the sink",
	})

	framesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "phonecam",
		Subsystem: "frames",
		Name:      "dropped_total",
		Help:      "Frames dropped before or at the sink, by reason",
	}, []string{"reason"})

	commands = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "phonecam",
		Subsystem: "session",
		Name:      "commands_total",
		Help:      "Text commands handled, by action",
	}, []string{"action"})

	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "phonecam",
		Subsystem: "session",
		Name:      "active",
		Help:      "Currently connected sessions",
	})

	transformSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "phonecam",
		Subsystem: "frames",
		Name:      "transform_seconds",
		Help:      "Time spent rotating, flipping and letterboxing one frame",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 10),
	})

	sessionFrames = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "phonecam",
		Subsystem: "session",
		Name:      "frames_written",
		Help:      "Frames written by a connected session",
	}, []string{"session_id"})

	// Local cache for SSE exporter access.
	sessionCache   = make(map[string]*SessionMetrics)
	sessionCacheMu sync.RWMutex
)

// SessionMetrics holds current counter values for a session.
type SessionMetrics struct {
	FramesWritten uint64
	FramesDropped uint64
}

// IncFramesReceived counts one binary message.
func IncFramesReceived() { framesReceived.Inc() }

// IncFramesWritten counts a frame handed to the sink by sessionID.
func IncFramesWritten(sessionID string) {
	framesWritten.Inc()
	sessionFrames.WithLabelValues(sessionID).Inc()
	updateCache(sessionID, func(m *SessionMetrics) { m.FramesWritten++ })
}

// IncFramesDropped counts a frame dropped for reason by sessionID.
func IncFramesDropped(sessionID, reason string) {
	framesDropped.WithLabelValues(reason).Inc()
	updateCache(sessionID, func(m *SessionMetrics) { m.FramesDropped++ })
}

// IncCommand counts a handled text command.
func IncCommand(action string) { commands.WithLabelValues(action).Inc() }

// ObserveTransform records how long one transform took.
func ObserveTransform(d time.Duration) { transformSeconds.Observe(d.Seconds()) }

// SessionOpened registers a new session.
func SessionOpened(sessionID string) {
	activeSessions.Inc()
	updateCache(sessionID, func(*SessionMetrics) {})
}

// SessionClosed removes all metrics for a session.
func SessionClosed(sessionID string) {
	activeSessions.Dec()
	sessionFrames.DeleteLabelValues(sessionID)

	sessionCacheMu.Lock()
	delete(sessionCache, sessionID)
	sessionCacheMu.Unlock()
}

// GetSessionMetrics returns current values for a session, or nil.
func GetSessionMetrics(sessionID string) *SessionMetrics {
	sessionCacheMu.RLock()
	defer sessionCacheMu.RUnlock()
	if m, ok := sessionCache[sessionID]; ok {
		dup := *m
		return &dup
	}
	return nil
}

// GetAllSessionMetrics returns metrics for all connected sessions.
func GetAllSessionMetrics() map[string]*SessionMetrics {
	sessionCacheMu.RLock()
	defer sessionCacheMu.RUnlock()
	result := make(map[string]*SessionMetrics, len(sessionCache))
	for id, m := range sessionCache {
		dup := *m
		result[id] = &dup
	}
	return result
}

func updateCache(sessionID string, update func(*SessionMetrics)) {
	sessionCacheMu.Lock()
	defer sessionCacheMu.Unlock()
	m, ok := sessionCache[sessionID]
	if !ok {
		m = &SessionMetrics{}
		sessionCache[sessionID] = m
	}
	update(m)
}
