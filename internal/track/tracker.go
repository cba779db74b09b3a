// Package track turns per-frame pose-landmark pixel observations into
// court-space world positions: it gates on detection confidence,
// projects through the solved calibration, checks court bounds, and
// smooths jitter with an exponential moving average.
package track

import (
	"math"

	"github.com/coenhallie/video-annotation-sub003/internal/calibration"
	"github.com/coenhallie/video-annotation-sub003/internal/config"
	"github.com/coenhallie/video-annotation-sub003/internal/court"
	"github.com/coenhallie/video-annotation-sub003/internal/geom"
)

// PoseSample is one frame's landmark observation from the upstream pose
// detector. X and Y are normalised to [0,1] relative to the video frame
// and are scaled by the configured frame pixel dimensions before
// projection.
type PoseSample struct {
	X                float64 `json:"x"`
	Y                float64 `json:"y"`
	Confidence       float64 `json:"confidence"`
	FrameIndex       int64   `json:"frame_index"`
	TimestampSeconds float64 `json:"timestamp_seconds"`
}

// RejectReason explains why a sample produced no valid observation.
// Rejections are per-frame and non-fatal; they never corrupt tracker
// state.
type RejectReason string

const (
	RejectNone           RejectReason = ""
	RejectLowConfidence  RejectReason = "low_confidence"
	RejectNoCalibration  RejectReason = "no_calibration"
	RejectOutOfBounds    RejectReason = "out_of_bounds"
	RejectStaleTimestamp RejectReason = "stale_timestamp"
)

// WorldPosition is a tracked point on the court ground plane in metres.
// Valid is false when the frame carried no usable observation; X and Y
// are undefined in that case and must not be accumulated.
type WorldPosition struct {
	X                float64      `json:"x"`
	Y                float64      `json:"y"`
	TimestampSeconds float64      `json:"timestamp_seconds"`
	Valid            bool         `json:"valid"`
	Reject           RejectReason `json:"reject,omitempty"`
}

// TrackerConfig holds the tracker's tunable thresholds.
type TrackerConfig struct {
	MinConfidence      float64 // Samples below this confidence are rejected
	SmoothingAlpha     float64 // EMA weight of the newest accepted position
	MaxGapSeconds      float64 // Gap above which smoothing state resets
	BoundsMarginMeters float64 // Allowed overshoot outside the court footprint
	FrameWidth         float64 // Video frame width in pixels
	FrameHeight        float64 // Video frame height in pixels
}

// DefaultFrameWidth and DefaultFrameHeight are used until the caller
// reports the real video dimensions.
const (
	DefaultFrameWidth  = 1920.0
	DefaultFrameHeight = 1080.0
)

// TrackerConfigFromTuning builds a TrackerConfig from a loaded
// TuningConfig, with default frame dimensions.
func TrackerConfigFromTuning(cfg *config.TuningConfig) TrackerConfig {
	return TrackerConfig{
		MinConfidence:      cfg.GetMinConfidence(),
		SmoothingAlpha:     cfg.GetSmoothingAlpha(),
		MaxGapSeconds:      cfg.GetMaxGapSeconds(),
		BoundsMarginMeters: cfg.GetBoundsMarginMeters(),
		FrameWidth:         DefaultFrameWidth,
		FrameHeight:        DefaultFrameHeight,
	}
}

// Tracker maps pose samples into world positions for one subject.
// Not safe for concurrent use; the owning session serialises access.
type Tracker struct {
	cfg   TrackerConfig
	court *court.Model

	// EMA smoothing state over accepted positions only.
	hasState       bool
	emaX, emaY     float64
	lastAcceptedTs float64

	// Timestamp monotonicity across all samples, accepted or not.
	hasLastTs bool
	lastTs    float64
}

// NewTracker creates a tracker for the given court model.
func NewTracker(model *court.Model, cfg TrackerConfig) *Tracker {
	return &Tracker{cfg: cfg, court: model}
}

// SetFrameSize updates the pixel dimensions used to denormalise sample
// coordinates. Zero or negative dimensions are ignored.
func (t *Tracker) SetFrameSize(width, height float64) {
	if width > 0 && height > 0 {
		t.cfg.FrameWidth = width
		t.cfg.FrameHeight = height
	}
}

// Reset clears all smoothing and timestamp state, for a new tracking
// session.
func (t *Tracker) Reset() {
	t.hasState = false
	t.emaX, t.emaY = 0, 0
	t.lastAcceptedTs = 0
	t.hasLastTs = false
	t.lastTs = 0
}

// Update consumes one pose sample and produces a world position. A
// rejected sample yields Valid=false and leaves smoothing state exactly
// as it was: callers must treat it as "no observation this frame", not
// as a spatial jump.
func (t *Tracker) Update(sample PoseSample, cal *calibration.Result) WorldPosition {
	out := WorldPosition{TimestampSeconds: sample.TimestampSeconds}

	// Timestamps must increase strictly within a session; a duplicate or
	// regressed timestamp is a stream fault, not an observation.
	if t.hasLastTs && sample.TimestampSeconds <= t.lastTs {
		out.Reject = RejectStaleTimestamp
		return out
	}
	t.hasLastTs = true
	t.lastTs = sample.TimestampSeconds

	if cal == nil || !cal.Valid || cal.Homography == nil {
		out.Reject = RejectNoCalibration
		return out
	}
	if sample.Confidence < t.cfg.MinConfidence {
		out.Reject = RejectLowConfidence
		return out
	}

	pixel := geom.Vec2{X: sample.X * t.cfg.FrameWidth, Y: sample.Y * t.cfg.FrameHeight}
	world := cal.Homography.Project(pixel)
	if math.IsInf(world.X, 0) || math.IsInf(world.Y, 0) || math.IsNaN(world.X) || math.IsNaN(world.Y) ||
		!t.court.Contains(world, t.cfg.BoundsMarginMeters) {
		// Far outside the footprint means detection or calibration
		// error; report it rather than silently clamping.
		out.Reject = RejectOutOfBounds
		return out
	}

	// Reset smoothing across occlusion gaps so the EMA does not blend
	// positions from either side of a discontinuity.
	if t.hasState && sample.TimestampSeconds-t.lastAcceptedTs > t.cfg.MaxGapSeconds {
		t.hasState = false
	}

	if !t.hasState {
		t.emaX, t.emaY = world.X, world.Y
		t.hasState = true
	} else {
		a := t.cfg.SmoothingAlpha
		t.emaX = a*world.X + (1-a)*t.emaX
		t.emaY = a*world.Y + (1-a)*t.emaY
	}
	t.lastAcceptedTs = sample.TimestampSeconds

	out.X, out.Y = t.emaX, t.emaY
	out.Valid = true
	return out
}
