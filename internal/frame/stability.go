package frame

import "image"

// DefaultStabilityThreshold is the number of consecutive frames at one
// resolution required before a resolution change is trusted.
const DefaultStabilityThreshold = 3

// StabilityTracker debounces decoded frame dimensions. Mobile encoders emit
// a frame or two at a transitional size while the phone rotates; those are
// dropped until the new size repeats for threshold consecutive frames.
//
// Not safe for concurrent use; each session owns one.
type StabilityTracker struct {
	threshold   int
	lastSeen    image.Point
	hasLast     bool
	changeCount int
	stableCount int
}

// NewStabilityTracker creates a tracker. Thresholds below 1 use the default.
func NewStabilityTracker(threshold int) *StabilityTracker {
	if threshold < 1 {
		threshold = DefaultStabilityThreshold
	}
	return &StabilityTracker{threshold: threshold}
}

// Check records one decoded frame and reports whether it may be forwarded.
func (t *StabilityTracker) Check(width, height int) bool {
	dims := image.Pt(width, height)

	if !t.hasLast {
		t.lastSeen = dims
		t.hasLast = true
		return true
	}

	if dims == t.lastSeen {
		if t.changeCount == 0 {
			return true
		}
		// The frame that introduced these dims is the first of the run.
		t.stableCount++
		if 1+t.stableCount >= t.threshold {
			t.changeCount = 0
			t.stableCount = 0
			return true
		}
		return false
	}

	accept := t.changeCount >= t.threshold
	t.changeCount++
	t.stableCount = 0
	t.lastSeen = dims
	return accept
}

// Transitioning reports whether a resolution change is pending confirmation.
func (t *StabilityTracker) Transitioning() bool {
	return t.changeCount > 0
}

// Dims returns the last observed dimensions and whether any were seen.
func (t *StabilityTracker) Dims() (image.Point, bool) {
	return t.lastSeen, t.hasLast
}

// Reset forgets all observed dimensions.
func (t *StabilityTracker) Reset() {
	*t = StabilityTracker{threshold: t.threshold}
}
