package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/coenhallie/video-annotation-sub003/internal/calibration"
	"github.com/coenhallie/video-annotation-sub003/internal/court"
	"github.com/coenhallie/video-annotation-sub003/internal/geom"
	"github.com/coenhallie/video-annotation-sub003/internal/track"
	"github.com/coenhallie/video-annotation-sub003/internal/units"
)

// calibrationStatusCode maps the calibration error taxonomy onto HTTP
// statuses so UI collaborators can branch without parsing messages.
func calibrationStatusCode(err error) int {
	var insufficient *calibration.InsufficientCorrespondencesError
	var duplicate *calibration.DuplicateReferenceError
	var unknown *calibration.UnknownReferenceError
	var degenerate *geom.DegenerateInputError
	switch {
	case errors.As(err, &insufficient):
		return http.StatusBadRequest
	case errors.As(err, &duplicate):
		return http.StatusConflict
	case errors.As(err, &unknown):
		return http.StatusNotFound
	case errors.As(err, &degenerate):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadRequest
	}
}

func (s *Server) showCalibration(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	res := s.cal.Result()
	if res == nil {
		s.writeJSON(w, http.StatusOK, map[string]any{
			"state":           s.cal.State(),
			"correspondences": s.cal.Correspondences(),
		})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"state":           s.cal.State(),
		"result":          res,
		"correspondences": s.cal.Correspondences(),
	})
}

func (s *Server) listReferences(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	model := s.cal.Court()
	type refOut struct {
		ID     string              `json:"id"`
		Kind   court.ReferenceKind `json:"kind"`
		Points []geom.Vec2         `json:"points"`
	}
	refs := make([]refOut, 0)
	for _, id := range model.ReferenceIDs() {
		ref, _ := model.Reference(id)
		refs = append(refs, refOut{ID: ref.ID, Kind: ref.Kind, Points: ref.Points})
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"court":         model.Type,
		"length_meters": model.LengthMeters,
		"width_meters":  model.WidthMeters,
		"references":    refs,
	})
}

type correspondenceRequest struct {
	ReferenceID string      `json:"reference_id"`
	ImagePoints []geom.Vec2 `json:"image_points"`
}

func (s *Server) addCorrespondence(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req correspondenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if err := s.cal.AddCorrespondence(req.ReferenceID, req.ImagePoints); err != nil {
		s.writeJSONError(w, calibrationStatusCode(err), err.Error())
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]any{
		"state":           s.cal.State(),
		"correspondences": len(s.cal.Correspondences()),
	})
}

func (s *Server) solveCalibration(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	res, err := s.cal.Solve()
	if err != nil {
		s.writeJSONError(w, calibrationStatusCode(err), err.Error())
		return
	}

	// A solved mapping feeds the tracking pipeline immediately; callers
	// can still inspect Valid and force a recalibration.
	s.session.SetCalibration(res)

	if s.db != nil {
		if err := s.db.SaveCalibration(res); err != nil {
			// Persistence failure does not invalidate the solve.
			s.writeJSON(w, http.StatusOK, map[string]any{"result": res, "persist_error": err.Error()})
			return
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"result": res})
}

func (s *Server) resetCalibration(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.cal.Reset()
	s.session.SetCalibration(nil)
	s.writeJSON(w, http.StatusOK, map[string]any{"state": s.cal.State()})
}

type sampleRequest struct {
	track.PoseSample
	FrameWidth  float64 `json:"frame_width,omitempty"`
	FrameHeight float64 `json:"frame_height,omitempty"`
}

func (s *Server) ingestSample(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req sampleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if req.FrameWidth > 0 && req.FrameHeight > 0 {
		s.session.SetFrameSize(req.FrameWidth, req.FrameHeight)
	}
	pos := s.session.Ingest(req.PoseSample)
	s.writeJSON(w, http.StatusOK, pos)
}

func (s *Server) showStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	report := s.session.Stats()
	out := map[string]any{
		"session_id": s.session.ID(),
		"stats":      report,
	}
	if unit := r.URL.Query().Get("units"); unit != "" && unit != units.MPS {
		current, err := units.ConvertSpeed(report.CurrentSpeedMps, unit)
		if err != nil {
			s.writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		average, _ := units.ConvertSpeed(report.AverageSpeedMps, unit)
		out["speeds"] = map[string]any{
			"units":         unit,
			"current_speed": current,
			"average_speed": average,
		}
	}
	if zone, ok := s.session.MostVisitedZone(); ok {
		out["most_visited_zone"] = zone
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) showGrid(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	snap := s.session.GridSnapshot()
	out := map[string]any{
		"session_id": s.session.ID(),
		"grid":       snap,
	}
	// Normalisation is a read-time concern; callers pick the scheme.
	switch r.URL.Query().Get("normalize") {
	case "max":
		out["normalized"] = snap.NormalizedMax()
	case "percentile":
		out["normalized"] = snap.NormalizedPercentile(0.95)
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) resetTracking(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	// Persist the finished session before discarding it, when there is
	// anything to keep and a database is attached.
	report := s.session.Stats()
	if s.db != nil && report.ValidSamples > 0 {
		err := s.db.SaveSession(
			s.session.ID(),
			string(s.session.Court().Type),
			s.session.StartedAt(),
			report,
			s.session.GridSnapshot(),
		)
		if err != nil {
			s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to persist session: %v", err))
			return
		}
	}

	s.session.Reset()
	s.writeJSON(w, http.StatusOK, map[string]any{"session_id": s.session.ID()})
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.db == nil {
		s.writeJSONError(w, http.StatusServiceUnavailable, "no database attached")
		return
	}
	sessions, err := s.db.ListSessions(100)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}
