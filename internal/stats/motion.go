// Package stats derives motion statistics from the tracked position
// sequence: cumulative distance, instantaneous and average speed. All
// speed computations use actual sample timestamps, never a fixed
// frame-rate assumption.
package stats

import "math"

// position is the last accepted observation, retained for deltas.
type position struct {
	x, y, ts float64
}

// Motion accumulates statistics over a single subject's world position
// stream. It is not safe for concurrent use; the owning session
// serialises access.
type Motion struct {
	prev     *position
	lastTs   float64
	hasTs    bool
	total    float64 // cumulative distance, metres
	validDur float64 // elapsed time across valid-to-valid deltas, seconds
	instant  float64 // speed over the last valid delta, m/s
	samples  int     // accepted observations
}

// NewMotion returns empty motion statistics.
func NewMotion() *Motion {
	return &Motion{}
}

// Observe consumes one tracked position. Invalid positions break the
// delta chain: the next valid position starts a fresh segment and
// contributes no phantom teleport distance. Duplicate timestamps are
// idempotent — the second observation at the same instant is dropped.
func (m *Motion) Observe(x, y float64, timestampSeconds float64, valid bool) {
	if !valid {
		// Occlusion or rejection: no observation this frame. The chain
		// is broken so the gap adds neither distance nor elapsed time.
		m.prev = nil
		return
	}
	if m.hasTs && timestampSeconds <= m.lastTs {
		return
	}
	m.hasTs = true
	m.lastTs = timestampSeconds
	m.samples++

	if m.prev != nil {
		dt := timestampSeconds - m.prev.ts
		d := math.Hypot(x-m.prev.x, y-m.prev.y)
		m.total += d
		m.validDur += dt
		m.instant = d / dt
	}
	m.prev = &position{x: x, y: y, ts: timestampSeconds}
}

// Reset clears all accumulated statistics.
func (m *Motion) Reset() {
	*m = Motion{}
}

// Report is a point-in-time copy of the derived statistics.
type Report struct {
	TotalDistanceMeters float64 `json:"total_distance_meters"`
	CurrentSpeedMps     float64 `json:"current_speed_mps"`
	AverageSpeedMps     float64 `json:"average_speed_mps"`
	ValidSamples        int     `json:"valid_samples"`
	TrackedSeconds      float64 `json:"tracked_seconds"`
}

// Report returns the current statistics. Average speed is cumulative
// distance over elapsed valid-tracking time; zero before two valid
// observations exist.
func (m *Motion) Report() Report {
	r := Report{
		TotalDistanceMeters: m.total,
		CurrentSpeedMps:     m.instant,
		ValidSamples:        m.samples,
		TrackedSeconds:      m.validDur,
	}
	if m.validDur > 0 {
		r.AverageSpeedMps = m.total / m.validDur
	}
	return r
}
