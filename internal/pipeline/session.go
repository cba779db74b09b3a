// Package pipeline owns a tracking session: one subject's pose-sample
// stream flowing through the position tracker into the occupancy grid
// and motion statistics. A session has a single logical writer; all
// consumer reads are snapshot copies.
package pipeline

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/coenhallie/video-annotation-sub003/internal/calibration"
	"github.com/coenhallie/video-annotation-sub003/internal/config"
	"github.com/coenhallie/video-annotation-sub003/internal/court"
	"github.com/coenhallie/video-annotation-sub003/internal/geom"
	"github.com/coenhallie/video-annotation-sub003/internal/heatmap"
	"github.com/coenhallie/video-annotation-sub003/internal/stats"
	"github.com/coenhallie/video-annotation-sub003/internal/track"
)

// Zone describes the most-visited region of the court, both as a grid
// cell and as a coarse named zone.
type Zone struct {
	Name    court.Zone `json:"name"`
	CellX   int        `json:"cell_x"`
	CellY   int        `json:"cell_y"`
	CenterX float64    `json:"center_x"`
	CenterY float64    `json:"center_y"`
	Weight  float64    `json:"weight"`
}

// Session is one tracking session over one court. Safe for concurrent
// use; sample ingest is serialised under the session mutex so the grid
// and statistics always agree.
type Session struct {
	mu sync.Mutex

	id      string
	court   *court.Model
	tracker *track.Tracker
	grid    *heatmap.Accumulator
	motion  *stats.Motion
	cal     *calibration.Result

	history     []track.WorldPosition
	maxHistory  int
	decayFactor float64
	startedAt   time.Time
}

// NewSession builds a tracking session for the given court model with
// thresholds from cfg.
func NewSession(model *court.Model, cfg *config.TuningConfig) *Session {
	return &Session{
		id:          uuid.NewString(),
		court:       model,
		tracker:     track.NewTracker(model, track.TrackerConfigFromTuning(cfg)),
		grid:        heatmap.NewAccumulator(model, cfg),
		motion:      stats.NewMotion(),
		maxHistory:  cfg.GetMaxPositionHistory(),
		decayFactor: cfg.GetDecayFactor(),
		startedAt:   time.Now(),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// Court returns the court model this session tracks over.
func (s *Session) Court() *court.Model { return s.court }

// StartedAt returns the session start time.
func (s *Session) StartedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startedAt
}

// SetCalibration installs the mapping used for subsequent samples. A
// nil or invalid calibration makes every sample an invalid observation
// until a valid one is installed.
func (s *Session) SetCalibration(res *calibration.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cal = res
}

// Calibration returns the installed calibration, or nil.
func (s *Session) Calibration() *calibration.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cal
}

// SetFrameSize reports the video frame pixel dimensions used to
// denormalise sample coordinates.
func (s *Session) SetFrameSize(width, height float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tracker.SetFrameSize(width, height)
}

// Ingest consumes one pose sample: projects it to world space, feeds
// motion statistics, and deposits into the occupancy grid. Rejected
// samples degrade to "no observation this frame" and never corrupt
// accumulated state.
func (s *Session) Ingest(sample track.PoseSample) track.WorldPosition {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos := s.tracker.Update(sample, s.cal)
	s.motion.Observe(pos.X, pos.Y, pos.TimestampSeconds, pos.Valid)
	s.grid.Accumulate(pos)

	s.history = append(s.history, pos)
	if s.maxHistory > 0 && len(s.history) > s.maxHistory {
		s.history = s.history[len(s.history)-s.maxHistory:]
	}
	return pos
}

// Decay applies the configured decay factor to the occupancy grid.
// Callers drive the cadence (for example once per second of video).
func (s *Session) Decay() {
	s.mu.Lock()
	factor := s.decayFactor
	s.mu.Unlock()
	s.grid.Decay(factor)
}

// Stats returns the current motion statistics.
func (s *Session) Stats() stats.Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.motion.Report()
}

// GridSnapshot returns a copy of the occupancy grid.
func (s *Session) GridSnapshot() heatmap.Snapshot {
	return s.grid.Snapshot()
}

// History returns a copy of the recent world-position stream, rejected
// frames included.
func (s *Session) History() []track.WorldPosition {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]track.WorldPosition, len(s.history))
	copy(out, s.history)
	return out
}

// MostVisitedZone reports the heaviest grid cell and its named court
// zone. The boolean is false when nothing has been accumulated yet.
func (s *Session) MostVisitedZone() (Zone, bool) {
	cx, cy, w, ok := s.grid.MostVisitedCell()
	if !ok {
		return Zone{}, false
	}
	center := s.grid.CellCenter(cx, cy)
	return Zone{
		Name:    s.court.ZoneFor(geom.Vec2{X: center.X, Y: center.Y}),
		CellX:   cx,
		CellY:   cy,
		CenterX: center.X,
		CenterY: center.Y,
		Weight:  w,
	}, true
}

// Reset starts a new tracking session: grid, statistics, smoothing
// state, and history are cleared and a fresh session ID is assigned.
// The court model and any installed calibration are retained.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	old := s.id
	s.id = uuid.NewString()
	s.tracker.Reset()
	s.grid.Reset()
	s.motion.Reset()
	s.history = nil
	s.startedAt = time.Now()
	log.Printf("[TrackingSession] Reset: %s -> %s", old, s.id)
}
