// Package trackdb persists calibration results and finished tracking
// session summaries to sqlite, so calibrations can be audited and
// re-used and session statistics survive the process.
package trackdb

import (
	"bytes"
	"compress/gzip"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"time"

	_ "modernc.org/sqlite"

	"github.com/coenhallie/video-annotation-sub003/internal/calibration"
	"github.com/coenhallie/video-annotation-sub003/internal/heatmap"
	"github.com/coenhallie/video-annotation-sub003/internal/stats"
)

// DB wraps the sqlite handle.
type DB struct {
	*sql.DB
}

// Open opens (or creates) the database at path. Run MigrateUp before
// first use.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// modernc sqlite is single-writer; serialise at the pool level.
	db.SetMaxOpenConns(1)
	return &DB{db}, nil
}

// CalibrationRecord is the persisted form of a calibration result. The
// homography is stored as the row-major 3x3 forward matrix in JSON.
type CalibrationRecord struct {
	ID                      string  `json:"id"`
	Court                   string  `json:"court"`
	SolvedUnixNanos         int64   `json:"solved_unix_nanos"`
	ReprojectionErrorMeters float64 `json:"reprojection_error_meters"`
	Valid                   bool    `json:"valid"`
	CorrespondenceCount     int     `json:"correspondence_count"`
	HomographyJSON          string  `json:"homography_json"`
}

// SaveCalibration persists a solved calibration.
func (db *DB) SaveCalibration(res *calibration.Result) error {
	if res == nil || res.Homography == nil {
		return fmt.Errorf("cannot save nil calibration")
	}
	m := res.Homography.Matrix()
	hj, err := json.Marshal(m[:])
	if err != nil {
		return fmt.Errorf("failed to encode homography: %w", err)
	}

	_, err = db.Exec(`
		INSERT INTO calibrations
			(id, court, solved_unix_nanos, reprojection_error_m, valid, correspondence_count, homography_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		res.ID, string(res.Court), res.SolvedUnixNanos,
		res.ReprojectionErrorMeters, res.Valid, res.CorrespondenceCount, string(hj),
	)
	if err != nil {
		return fmt.Errorf("failed to insert calibration: %w", err)
	}
	return nil
}

// GetCalibration loads one calibration record by ID.
func (db *DB) GetCalibration(id string) (*CalibrationRecord, error) {
	row := db.QueryRow(`
		SELECT id, court, solved_unix_nanos, reprojection_error_m, valid, correspondence_count, homography_json
		FROM calibrations WHERE id = ?`, id)
	var rec CalibrationRecord
	if err := row.Scan(&rec.ID, &rec.Court, &rec.SolvedUnixNanos,
		&rec.ReprojectionErrorMeters, &rec.Valid, &rec.CorrespondenceCount, &rec.HomographyJSON); err != nil {
		return nil, fmt.Errorf("failed to load calibration %s: %w", id, err)
	}
	return &rec, nil
}

// ListCalibrations returns calibration records, newest first.
func (db *DB) ListCalibrations(limit int) ([]CalibrationRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.Query(`
		SELECT id, court, solved_unix_nanos, reprojection_error_m, valid, correspondence_count, homography_json
		FROM calibrations ORDER BY solved_unix_nanos DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list calibrations: %w", err)
	}
	defer rows.Close()

	var out []CalibrationRecord
	for rows.Next() {
		var rec CalibrationRecord
		if err := rows.Scan(&rec.ID, &rec.Court, &rec.SolvedUnixNanos,
			&rec.ReprojectionErrorMeters, &rec.Valid, &rec.CorrespondenceCount, &rec.HomographyJSON); err != nil {
			return nil, fmt.Errorf("failed to scan calibration: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// SessionSummary is the persisted form of a finished tracking session:
// the derived statistics plus a compressed snapshot of the occupancy
// grid.
type SessionSummary struct {
	ID                  string  `json:"id"`
	Court               string  `json:"court"`
	StartedUnixNanos    int64   `json:"started_unix_nanos"`
	EndedUnixNanos      int64   `json:"ended_unix_nanos"`
	TotalDistanceMeters float64 `json:"total_distance_meters"`
	AverageSpeedMps     float64 `json:"average_speed_mps"`
	ValidSamples        int     `json:"valid_samples"`
	GridBlob            []byte  `json:"-"`
}

// SaveSession persists a finished session's statistics and grid.
func (db *DB) SaveSession(id, courtType string, startedAt time.Time, report stats.Report, grid heatmap.Snapshot) error {
	blob, err := compressGrid(grid)
	if err != nil {
		return err
	}
	_, err = db.Exec(`
		INSERT INTO sessions
			(id, court, started_unix_nanos, ended_unix_nanos, total_distance_m, average_speed_mps, valid_samples, grid_blob)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, courtType, startedAt.UnixNano(), time.Now().UnixNano(),
		report.TotalDistanceMeters, report.AverageSpeedMps, report.ValidSamples, blob,
	)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

// GetSession loads one session summary by ID, grid blob included.
func (db *DB) GetSession(id string) (*SessionSummary, error) {
	row := db.QueryRow(`
		SELECT id, court, started_unix_nanos, ended_unix_nanos, total_distance_m, average_speed_mps, valid_samples, grid_blob
		FROM sessions WHERE id = ?`, id)
	var s SessionSummary
	if err := row.Scan(&s.ID, &s.Court, &s.StartedUnixNanos, &s.EndedUnixNanos,
		&s.TotalDistanceMeters, &s.AverageSpeedMps, &s.ValidSamples, &s.GridBlob); err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", id, err)
	}
	return &s, nil
}

// ListSessions returns session summaries without grid blobs, newest
// first.
func (db *DB) ListSessions(limit int) ([]SessionSummary, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.Query(`
		SELECT id, court, started_unix_nanos, ended_unix_nanos, total_distance_m, average_speed_mps, valid_samples
		FROM sessions ORDER BY ended_unix_nanos DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionSummary
	for rows.Next() {
		var s SessionSummary
		if err := rows.Scan(&s.ID, &s.Court, &s.StartedUnixNanos, &s.EndedUnixNanos,
			&s.TotalDistanceMeters, &s.AverageSpeedMps, &s.ValidSamples); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// DecodeGrid decompresses a stored grid blob back into a snapshot.
func DecodeGrid(blob []byte) (heatmap.Snapshot, error) {
	var snap heatmap.Snapshot
	zr, err := gzip.NewReader(bytes.NewReader(blob))
	if err != nil {
		return snap, fmt.Errorf("failed to open grid blob: %w", err)
	}
	defer zr.Close()
	data, err := io.ReadAll(zr)
	if err != nil {
		return snap, fmt.Errorf("failed to decompress grid blob: %w", err)
	}
	if err := json.Unmarshal(data, &snap); err != nil {
		return snap, fmt.Errorf("failed to decode grid snapshot: %w", err)
	}
	return snap, nil
}

func compressGrid(grid heatmap.Snapshot) ([]byte, error) {
	data, err := json.Marshal(grid)
	if err != nil {
		return nil, fmt.Errorf("failed to encode grid snapshot: %w", err)
	}
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, fmt.Errorf("failed to compress grid snapshot: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish grid compression: %w", err)
	}
	return buf.Bytes(), nil
}
