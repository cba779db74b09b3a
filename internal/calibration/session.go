// Package calibration collects user-supplied correspondences between a
// court template and video pixels, and solves them into an image→world
// homography with a quality metric.
package calibration

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/coenhallie/video-annotation-sub003/internal/config"
	"github.com/coenhallie/video-annotation-sub003/internal/court"
	"github.com/coenhallie/video-annotation-sub003/internal/geom"
)

// State is the lifecycle state of a calibration session.
type State string

const (
	StateEmpty         State = "empty"
	StateCollecting    State = "collecting"
	StateSolvedValid   State = "solved_valid"
	StateSolvedInvalid State = "solved_invalid"
)

// Correspondence pairs one court reference with user-drawn image points
// for the current video frame. Line references take two image points in
// endpoint order; point references take one.
type Correspondence struct {
	ReferenceID string      `json:"reference_id"`
	ImagePoints []geom.Vec2 `json:"image_points"`
	AddedAt     time.Time   `json:"added_at"`
}

// Result is one solved calibration. It is immutable: a re-solve
// produces a new Result, never mutates a stored one.
type Result struct {
	ID                      string           `json:"id"`
	Court                   court.Type       `json:"court"`
	Homography              *geom.Homography `json:"-"`
	ReprojectionErrorMeters float64          `json:"reprojection_error_meters"`
	Valid                   bool             `json:"valid"`
	CorrespondenceCount     int              `json:"correspondence_count"`
	SolvedUnixNanos         int64            `json:"solved_unix_nanos"`
}

// Session accumulates correspondences against one court model and
// solves them on demand. All methods are safe for concurrent use; state
// transitions are atomic under the session mutex, so a reader sees
// either the pre-solve state or exactly one complete Result.
type Session struct {
	mu         sync.Mutex
	court      *court.Model
	threshold  float64
	entries    []Correspondence
	byRef      map[string]struct{}
	result     *Result
	generation uint64
}

// NewSession creates an empty calibration session for the given court
// model using thresholds from cfg.
func NewSession(model *court.Model, cfg *config.TuningConfig) *Session {
	return &Session{
		court:     model,
		threshold: cfg.GetReprojectionThresholdMeters(),
		byRef:     make(map[string]struct{}),
	}
}

// Court returns the model this session calibrates against.
func (s *Session) Court() *court.Model { return s.court }

// State reports the session's lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.result != nil && s.result.Valid:
		return StateSolvedValid
	case s.result != nil:
		return StateSolvedInvalid
	case len(s.entries) > 0:
		return StateCollecting
	default:
		return StateEmpty
	}
}

// AddCorrespondence records image points for the named court reference.
// Each reference may only be supplied once per session; line references
// require two image points and point references one.
func (s *Session) AddCorrespondence(referenceID string, imagePoints []geom.Vec2) error {
	ref, ok := s.court.Reference(referenceID)
	if !ok {
		return &UnknownReferenceError{ReferenceID: referenceID}
	}
	if len(imagePoints) != len(ref.Points) {
		return fmt.Errorf("reference %q needs %d image point(s), got %d", referenceID, len(ref.Points), len(imagePoints))
	}
	if ref.Kind == court.ReferenceLine {
		seg := geom.Segment{A: imagePoints[0], B: imagePoints[1]}
		if seg.Len() == 0 {
			return fmt.Errorf("image line for reference %q has zero length", referenceID)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.byRef[referenceID]; dup {
		return &DuplicateReferenceError{ReferenceID: referenceID}
	}
	s.byRef[referenceID] = struct{}{}
	s.entries = append(s.entries, Correspondence{
		ReferenceID: referenceID,
		ImagePoints: append([]geom.Vec2(nil), imagePoints...),
		AddedAt:     time.Now(),
	})
	// New input supersedes any solve still in flight.
	s.generation++
	return nil
}

// Correspondences returns a copy of the collected correspondences, in
// insertion order. Retained for audit until Reset.
func (s *Session) Correspondences() []Correspondence {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Correspondence, len(s.entries))
	copy(out, s.entries)
	return out
}

// Result returns the current calibration result, or nil before a solve.
// The returned Result is immutable.
func (s *Session) Result() *Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// Reset clears all correspondences and any prior result. Safe to call
// from any state; any in-flight async solve is superseded.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
	s.byRef = make(map[string]struct{})
	s.result = nil
	s.generation++
}

// Solve runs the homography solve over the collected correspondences
// and stores (and returns) the Result. A Result whose reprojection
// error exceeds the configured threshold is marked invalid but still
// stored and returned; accepting it or recalibrating is the caller's
// decision.
func (s *Session) Solve() (*Result, error) {
	s.mu.Lock()
	entries := make([]Correspondence, len(s.entries))
	copy(entries, s.entries)
	generation := s.generation
	s.mu.Unlock()

	res, err := s.solveEntries(entries)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != generation {
		// Session was reset or amended while solving; discard.
		return nil, context.Canceled
	}
	s.result = res
	return res, nil
}

// AsyncOutcome is delivered by SolveAsync when a background solve
// completes. Superseded is true when the session was reset or amended
// while the solve ran; the result was discarded and not stored.
type AsyncOutcome struct {
	Result     *Result
	Err        error
	Superseded bool
}

// SolveAsync runs Solve off the caller's path so an interactive caller
// stays responsive. The returned channel receives exactly one outcome.
// Starting a new solve (or Reset, or AddCorrespondence) while one is
// pending supersedes the pending solve: its result is discarded, never
// merged.
func (s *Session) SolveAsync(ctx context.Context) <-chan AsyncOutcome {
	s.mu.Lock()
	entries := make([]Correspondence, len(s.entries))
	copy(entries, s.entries)
	generation := s.generation
	s.mu.Unlock()

	ch := make(chan AsyncOutcome, 1)
	go func() {
		res, err := s.solveEntries(entries)

		if ctx.Err() != nil {
			ch <- AsyncOutcome{Err: ctx.Err(), Superseded: true}
			return
		}

		s.mu.Lock()
		stale := s.generation != generation
		if !stale && err == nil {
			s.result = res
		}
		s.mu.Unlock()

		if stale {
			log.Printf("[CalibrationSession] Discarded superseded solve (generation changed)")
			ch <- AsyncOutcome{Superseded: true}
			return
		}
		ch <- AsyncOutcome{Result: res, Err: err}
	}()
	return ch
}

// solveEntries performs the pure solve over a snapshot of the collected
// correspondences. It holds no locks.
func (s *Session) solveEntries(entries []Correspondence) (*Result, error) {
	if len(entries) < MinCorrespondences {
		return nil, &InsufficientCorrespondencesError{Got: len(entries), Need: MinCorrespondences}
	}
	if err := s.checkParallelism(entries); err != nil {
		return nil, err
	}

	pairs := make([]geom.PointPair, 0, 2*len(entries))
	for _, e := range entries {
		ref, ok := s.court.Reference(e.ReferenceID)
		if !ok {
			return nil, &UnknownReferenceError{ReferenceID: e.ReferenceID}
		}
		for i := range ref.Points {
			pairs = append(pairs, geom.PointPair{Image: e.ImagePoints[i], World: ref.Points[i]})
		}
	}

	h, err := geom.SolveHomography(pairs)
	if err != nil {
		return nil, err
	}

	reproj := geom.ReprojectionError(h, pairs)
	res := &Result{
		ID:                      uuid.NewString(),
		Court:                   s.court.Type,
		Homography:              h,
		ReprojectionErrorMeters: reproj,
		Valid:                   reproj <= s.threshold,
		CorrespondenceCount:     len(entries),
		SolvedUnixNanos:         time.Now().UnixNano(),
	}
	if !res.Valid {
		log.Printf("[CalibrationSession] Solve exceeded error threshold: %.3fm > %.3fm", reproj, s.threshold)
	}
	return res, nil
}

// checkParallelism enforces the constraint that at least one pair of
// line correspondences is non-parallel in both image and world space
// simultaneously. A set of mutually parallel lines leaves the
// homography under-constrained even when the point count looks
// sufficient.
func (s *Session) checkParallelism(entries []Correspondence) error {
	type segPair struct{ img, wld geom.Segment }
	var lines []segPair
	for _, e := range entries {
		ref, ok := s.court.Reference(e.ReferenceID)
		if !ok || ref.Kind != court.ReferenceLine {
			continue
		}
		lines = append(lines, segPair{
			img: geom.Segment{A: e.ImagePoints[0], B: e.ImagePoints[1]},
			wld: ref.Segment(),
		})
	}
	if len(lines) < 2 {
		// Point-only (or single-line) sets are constrained by the
		// kernel's own rank check instead.
		return nil
	}
	for i := range lines {
		for j := i + 1; j < len(lines); j++ {
			if !geom.Parallel(lines[i].img, lines[j].img) && !geom.Parallel(lines[i].wld, lines[j].wld) {
				return nil
			}
		}
	}
	return &geom.DegenerateInputError{Reason: "no pair of correspondences is non-parallel in both image and world space"}
}
