package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coenhallie/video-annotation-sub003/internal/calibration"
	"github.com/coenhallie/video-annotation-sub003/internal/config"
	"github.com/coenhallie/video-annotation-sub003/internal/court"
	"github.com/coenhallie/video-annotation-sub003/internal/pipeline"
	"github.com/coenhallie/video-annotation-sub003/internal/trackdb"
)

const migrationsDir = "../../migrations"

func newTestServer(t *testing.T, withDB bool) (*Server, *http.ServeMux) {
	t.Helper()
	m, err := court.ModelFor(court.Badminton)
	require.NoError(t, err)
	cfg := config.EmptyTuningConfig()

	var db *trackdb.DB
	if withDB {
		db, err = trackdb.Open(filepath.Join(t.TempDir(), "court.db"))
		require.NoError(t, err)
		t.Cleanup(func() { db.Close() })
		require.NoError(t, db.MigrateUp(migrationsDir))
	}

	session := pipeline.NewSession(m, cfg)
	session.SetFrameSize(1340, 610)
	srv := NewServer(calibration.NewSession(m, cfg), session, db, cfg)
	return srv, srv.ServeMux()
}

func doJSON(t *testing.T, mux *http.ServeMux, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(data)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

// addCorrespondences posts the synthetic 100 px/m camera view of the
// named references.
func addCorrespondences(t *testing.T, mux *http.ServeMux, m *court.Model, refIDs ...string) {
	t.Helper()
	for _, id := range refIDs {
		ref, ok := m.Reference(id)
		require.True(t, ok)
		pts := make([]map[string]float64, len(ref.Points))
		for i, p := range ref.Points {
			pts[i] = map[string]float64{"x": 100 * p.X, "y": 100 * p.Y}
		}
		rec := doJSON(t, mux, http.MethodPost, "/api/calibration/correspondences", map[string]any{
			"reference_id": id,
			"image_points": pts,
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}
}

func badmintonModel(t *testing.T) *court.Model {
	t.Helper()
	m, err := court.ModelFor(court.Badminton)
	require.NoError(t, err)
	return m
}

func TestListReferences(t *testing.T) {
	_, mux := newTestServer(t, false)

	rec := doJSON(t, mux, http.MethodGet, "/api/calibration/references", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var out struct {
		Court        string  `json:"court"`
		LengthMeters float64 `json:"length_meters"`
		References   []struct {
			ID   string `json:"id"`
			Kind string `json:"kind"`
		} `json:"references"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "badminton", out.Court)
	assert.Equal(t, 13.4, out.LengthMeters)
	assert.NotEmpty(t, out.References)
}

func TestAddCorrespondenceErrors(t *testing.T) {
	_, mux := newTestServer(t, false)
	m := badmintonModel(t)

	// Unknown reference → 404.
	rec := doJSON(t, mux, http.MethodPost, "/api/calibration/correspondences", map[string]any{
		"reference_id": "penalty_box",
		"image_points": []map[string]float64{{"x": 0, "y": 0}, {"x": 1, "y": 1}},
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Duplicate reference → 409.
	addCorrespondences(t, mux, m, "baseline_near")
	ref, _ := m.Reference("baseline_near")
	pts := make([]map[string]float64, len(ref.Points))
	for i, p := range ref.Points {
		pts[i] = map[string]float64{"x": 100 * p.X, "y": 100 * p.Y}
	}
	rec = doJSON(t, mux, http.MethodPost, "/api/calibration/correspondences", map[string]any{
		"reference_id": "baseline_near",
		"image_points": pts,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Malformed body → 400.
	req := httptest.NewRequest(http.MethodPost, "/api/calibration/correspondences", strings.NewReader("{"))
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSolveInsufficientCorrespondences(t *testing.T) {
	_, mux := newTestServer(t, false)
	m := badmintonModel(t)
	addCorrespondences(t, mux, m, "baseline_near", "sideline_left")

	rec := doJSON(t, mux, http.MethodPost, "/api/calibration/solve", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSolveDegenerateParallelLines(t *testing.T) {
	_, mux := newTestServer(t, false)
	m := badmintonModel(t)
	addCorrespondences(t, mux, m, "sideline_left", "singles_sideline_left", "sideline_right")

	rec := doJSON(t, mux, http.MethodPost, "/api/calibration/solve", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestSolveAndTrackFlow(t *testing.T) {
	srv, mux := newTestServer(t, true)
	m := badmintonModel(t)
	addCorrespondences(t, mux, m, "sideline_left", "sideline_right", "baseline_near")

	rec := doJSON(t, mux, http.MethodPost, "/api/calibration/solve", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var solveOut struct {
		Result struct {
			ID                      string  `json:"id"`
			Valid                   bool    `json:"valid"`
			ReprojectionErrorMeters float64 `json:"reprojection_error_meters"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &solveOut))
	assert.True(t, solveOut.Result.Valid)
	assert.Less(t, solveOut.Result.ReprojectionErrorMeters, 0.05)

	// Solve installed the calibration into the pipeline.
	require.NotNil(t, srv.session.Calibration())

	// Solve persisted the calibration.
	recs, err := srv.db.ListCalibrations(10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, solveOut.Result.ID, recs[0].ID)

	// A confident frame-centre sample tracks to court centre.
	rec = doJSON(t, mux, http.MethodPost, "/api/track/sample", map[string]any{
		"x": 0.5, "y": 0.5, "confidence": 0.9,
		"frame_index": 1, "timestamp_seconds": 1.0,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var pos struct {
		X     float64 `json:"x"`
		Y     float64 `json:"y"`
		Valid bool    `json:"valid"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pos))
	assert.True(t, pos.Valid)
	assert.InDelta(t, 6.7, pos.X, 0.1)
	assert.InDelta(t, 3.05, pos.Y, 0.1)
}

func TestIngestLowConfidenceSample(t *testing.T) {
	_, mux := newTestServer(t, false)
	m := badmintonModel(t)
	addCorrespondences(t, mux, m, "sideline_left", "sideline_right", "baseline_near")
	require.Equal(t, http.StatusOK, doJSON(t, mux, http.MethodPost, "/api/calibration/solve", nil).Code)

	rec := doJSON(t, mux, http.MethodPost, "/api/track/sample", map[string]any{
		"x": 0.5, "y": 0.5, "confidence": 0.4, "timestamp_seconds": 1.0,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var pos struct {
		Valid  bool   `json:"valid"`
		Reject string `json:"reject"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pos))
	assert.False(t, pos.Valid)
	assert.Equal(t, "low_confidence", pos.Reject)

	// Grid stayed empty.
	rec = doJSON(t, mux, http.MethodGet, "/api/track/grid", nil)
	var gridOut struct {
		Grid struct {
			MaxWeight float64 `json:"max_weight"`
		} `json:"grid"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &gridOut))
	assert.Zero(t, gridOut.Grid.MaxWeight)
}

func TestShowStatsAndGrid(t *testing.T) {
	_, mux := newTestServer(t, false)
	m := badmintonModel(t)
	addCorrespondences(t, mux, m, "sideline_left", "sideline_right", "baseline_near")
	require.Equal(t, http.StatusOK, doJSON(t, mux, http.MethodPost, "/api/calibration/solve", nil).Code)

	for i := 0; i < 5; i++ {
		rec := doJSON(t, mux, http.MethodPost, "/api/track/sample", map[string]any{
			"x": 0.4 + 0.02*float64(i), "y": 0.5, "confidence": 0.9,
			"frame_index": i, "timestamp_seconds": 1.0 + 0.2*float64(i),
		})
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := doJSON(t, mux, http.MethodGet, "/api/track/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var statsOut struct {
		Stats struct {
			TotalDistanceMeters float64 `json:"total_distance_meters"`
			ValidSamples        int     `json:"valid_samples"`
		} `json:"stats"`
		MostVisitedZone *struct {
			Name string `json:"name"`
		} `json:"most_visited_zone"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &statsOut))
	assert.Equal(t, 5, statsOut.Stats.ValidSamples)
	assert.Greater(t, statsOut.Stats.TotalDistanceMeters, 0.0)
	require.NotNil(t, statsOut.MostVisitedZone)

	// Speed conversion is a read-time option.
	rec = doJSON(t, mux, http.MethodGet, "/api/track/stats?units=kmh", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var converted struct {
		Speeds struct {
			Units        string  `json:"units"`
			AverageSpeed float64 `json:"average_speed"`
		} `json:"speeds"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &converted))
	assert.Equal(t, "kmh", converted.Speeds.Units)

	rec = doJSON(t, mux, http.MethodGet, "/api/track/stats?units=knots", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, mux, http.MethodGet, "/api/track/grid?normalize=max", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var gridOut struct {
		Grid struct {
			CellsX  int       `json:"cells_x"`
			CellsY  int       `json:"cells_y"`
			Weights []float64 `json:"weights"`
		} `json:"grid"`
		Normalized []float64 `json:"normalized"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &gridOut))
	assert.Equal(t, 54, gridOut.Grid.CellsX)
	assert.Equal(t, 25, gridOut.Grid.CellsY)
	assert.Len(t, gridOut.Normalized, len(gridOut.Grid.Weights))
}

func TestResetTrackingPersistsSession(t *testing.T) {
	srv, mux := newTestServer(t, true)
	m := badmintonModel(t)
	addCorrespondences(t, mux, m, "sideline_left", "sideline_right", "baseline_near")
	require.Equal(t, http.StatusOK, doJSON(t, mux, http.MethodPost, "/api/calibration/solve", nil).Code)

	oldID := srv.session.ID()
	for i := 0; i < 3; i++ {
		doJSON(t, mux, http.MethodPost, "/api/track/sample", map[string]any{
			"x": 0.5, "y": 0.5, "confidence": 0.9, "timestamp_seconds": 1.0 + 0.1*float64(i),
		})
	}

	rec := doJSON(t, mux, http.MethodPost, "/api/track/reset", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEqual(t, oldID, srv.session.ID())

	rec = doJSON(t, mux, http.MethodGet, "/api/sessions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var sessOut struct {
		Sessions []struct {
			ID           string `json:"id"`
			ValidSamples int    `json:"valid_samples"`
		} `json:"sessions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sessOut))
	require.Len(t, sessOut.Sessions, 1)
	assert.Equal(t, oldID, sessOut.Sessions[0].ID)
	assert.Equal(t, 3, sessOut.Sessions[0].ValidSamples)
}

func TestListSessionsWithoutDB(t *testing.T) {
	_, mux := newTestServer(t, false)
	rec := doJSON(t, mux, http.MethodGet, "/api/sessions", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestResetCalibrationClearsPipeline(t *testing.T) {
	srv, mux := newTestServer(t, false)
	m := badmintonModel(t)
	addCorrespondences(t, mux, m, "sideline_left", "sideline_right", "baseline_near")
	require.Equal(t, http.StatusOK, doJSON(t, mux, http.MethodPost, "/api/calibration/solve", nil).Code)
	require.NotNil(t, srv.session.Calibration())

	rec := doJSON(t, mux, http.MethodPost, "/api/calibration/reset", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, srv.session.Calibration())
	assert.Equal(t, calibration.StateEmpty, srv.cal.State())
}

func TestShowConfig(t *testing.T) {
	_, mux := newTestServer(t, false)
	rec := doJSON(t, mux, http.MethodGet, "/api/config", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
}

func TestDebugHeatmapChart(t *testing.T) {
	_, mux := newTestServer(t, false)

	// Empty grid → 404.
	rec := doJSON(t, mux, http.MethodGet, "/debug/heatmap", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	m := badmintonModel(t)
	addCorrespondences(t, mux, m, "sideline_left", "sideline_right", "baseline_near")
	require.Equal(t, http.StatusOK, doJSON(t, mux, http.MethodPost, "/api/calibration/solve", nil).Code)
	doJSON(t, mux, http.MethodPost, "/api/track/sample", map[string]any{
		"x": 0.5, "y": 0.5, "confidence": 0.9, "timestamp_seconds": 1.0,
	})

	rec = doJSON(t, mux, http.MethodGet, "/debug/heatmap", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "echarts")
}

func TestMethodNotAllowed(t *testing.T) {
	_, mux := newTestServer(t, false)
	for path, method := range map[string]string{
		"/api/calibration/solve":           http.MethodGet,
		"/api/calibration/correspondences": http.MethodGet,
		"/api/calibration/reset":           http.MethodGet,
		"/api/track/sample":                http.MethodGet,
		"/api/track/stats":                 http.MethodPost,
		"/api/track/grid":                  http.MethodPost,
		"/api/track/reset":                 http.MethodGet,
		"/api/config":                      http.MethodPost,
	} {
		rec := doJSON(t, mux, method, path, nil)
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code, fmt.Sprintf("%s %s", method, path))
	}
}
