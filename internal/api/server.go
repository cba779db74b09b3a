// Package api exposes the calibration and tracking engine over HTTP
// for UI and export collaborators.
package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/coenhallie/video-annotation-sub003/internal/calibration"
	"github.com/coenhallie/video-annotation-sub003/internal/config"
	"github.com/coenhallie/video-annotation-sub003/internal/pipeline"
	"github.com/coenhallie/video-annotation-sub003/internal/trackdb"
	"github.com/coenhallie/video-annotation-sub003/internal/version"
)

// ANSI escape codes for request logging.
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// Server wires the calibration session and tracking pipeline to HTTP
// handlers. db may be nil; persistence endpoints then degrade to 503.
type Server struct {
	cal     *calibration.Session
	session *pipeline.Session
	db      *trackdb.DB
	cfg     *config.TuningConfig
}

// NewServer builds a server over an existing calibration session and
// tracking session.
func NewServer(cal *calibration.Session, session *pipeline.Session, db *trackdb.DB, cfg *config.TuningConfig) *Server {
	return &Server{cal: cal, session: session, db: db, cfg: cfg}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, status, and duration.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

// ServeMux returns the route table.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/calibration", s.showCalibration)
	mux.HandleFunc("/api/calibration/references", s.listReferences)
	mux.HandleFunc("/api/calibration/correspondences", s.addCorrespondence)
	mux.HandleFunc("/api/calibration/solve", s.solveCalibration)
	mux.HandleFunc("/api/calibration/reset", s.resetCalibration)
	mux.HandleFunc("/api/track/sample", s.ingestSample)
	mux.HandleFunc("/api/track/stats", s.showStats)
	mux.HandleFunc("/api/track/grid", s.showGrid)
	mux.HandleFunc("/api/track/reset", s.resetTracking)
	mux.HandleFunc("/api/sessions", s.listSessions)
	mux.HandleFunc("/api/config", s.showConfig)
	mux.HandleFunc("/debug/heatmap", s.debugHeatmapChart)
	return mux
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[API] Failed to encode response: %v", err)
	}
}

func (s *Server) writeJSONError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"version": version.Version,
		"git_sha": version.GitSHA,
		"tuning":  s.cfg,
	})
}
