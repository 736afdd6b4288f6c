// Package store persists batch runs and their unit results in sqlite.
package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/vegetation.report/internal/batch"
	"github.com/banshee-data/vegetation.report/internal/ndvi"
)

// Store wraps the sqlite database holding run history.
type Store struct {
	*sql.DB
}

// Run is one recorded batch run.
type Run struct {
	ID         string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	RegionKm   float64   `json:"region_km"`
	Workers    int       `json:"workers"`
	PointCount int       `json:"point_count"`
	FileCount  int       `json:"file_count"`
	Succeeded  int       `json:"succeeded"`
	Failed     int       `json:"failed"`
}

// NewStore opens (creating if needed) the sqlite database at path and
// ensures the baseline schema exists.
func NewStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			run_id       TEXT PRIMARY KEY,
			started_at   TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			region_km    DOUBLE,
			workers      BIGINT,
			point_count  BIGINT,
			file_count   BIGINT,
			succeeded    BIGINT,
			failed       BIGINT
		);
		CREATE TABLE IF NOT EXISTS unit_results (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id        TEXT NOT NULL,
			point_no      TEXT,
			lat           DOUBLE,
			lon           DOUBLE,
			file          TEXT,
			date          TEXT,
			state         TEXT,
			region_km     DOUBLE,
			mean          DOUBLE,
			max           DOUBLE,
			min           DOUBLE,
			median        DOUBLE,
			std_dev       DOUBLE,
			valid_count   BIGINT,
			total_count   BIGINT,
			valid_percent DOUBLE,
			error         TEXT,
			elapsed_ms    BIGINT,
			FOREIGN KEY(run_id) REFERENCES runs(run_id)
		);
		CREATE INDEX IF NOT EXISTS idx_unit_results_run ON unit_results (run_id);
	`)
	if err != nil {
		return nil, err
	}

	return &Store{db}, nil
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// InsertRun records a run's header row.
func (s *Store) InsertRun(r Run) error {
	_, err := s.Exec(`
		INSERT INTO runs (run_id, started_at, region_km, workers, point_count, file_count, succeeded, failed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.StartedAt, r.RegionKm, r.Workers, r.PointCount, r.FileCount, r.Succeeded, r.Failed,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

// InsertResults records a run's unit results in one transaction.
func (s *Store) InsertResults(runID string, results []batch.UnitResult) error {
	tx, err := s.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO unit_results (run_id, point_no, lat, lon, file, date, state,
			region_km, mean, max, min, median, std_dev, valid_count, total_count,
			valid_percent, error, elapsed_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, res := range results {
		var regionKm, mean, maxVal, minVal, median, stdDev, validPct sql.NullFloat64
		var validCount, totalCount sql.NullInt64
		if res.Stats != nil {
			regionKm = sql.NullFloat64{Float64: res.Stats.RegionKm, Valid: true}
			mean = sql.NullFloat64{Float64: res.Stats.Mean, Valid: true}
			maxVal = sql.NullFloat64{Float64: res.Stats.Max, Valid: true}
			minVal = sql.NullFloat64{Float64: res.Stats.Min, Valid: true}
			median = sql.NullFloat64{Float64: res.Stats.Median, Valid: true}
			stdDev = sql.NullFloat64{Float64: res.Stats.StdDev, Valid: true}
			validPct = sql.NullFloat64{Float64: res.Stats.ValidPercent, Valid: true}
			validCount = sql.NullInt64{Int64: int64(res.Stats.ValidCount), Valid: true}
			totalCount = sql.NullInt64{Int64: int64(res.Stats.TotalCount), Valid: true}
		}

		_, err := stmt.Exec(runID, res.PointID, res.Lat, res.Lon, res.File, res.Date,
			res.State.String(), regionKm, mean, maxVal, minVal, median, stdDev,
			validCount, totalCount, validPct, res.Err, res.Elapsed.Milliseconds())
		if err != nil {
			return fmt.Errorf("failed to insert unit result: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit results: %w", err)
	}
	return nil
}

// ListRuns returns all recorded runs, most recent first.
func (s *Store) ListRuns() ([]Run, error) {
	rows, err := s.Query(`
		SELECT run_id, started_at, region_km, workers, point_count, file_count, succeeded, failed
		FROM runs ORDER BY started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.RegionKm, &r.Workers,
			&r.PointCount, &r.FileCount, &r.Succeeded, &r.Failed); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRun returns one run by id, or sql.ErrNoRows.
func (s *Store) GetRun(id string) (*Run, error) {
	var r Run
	err := s.QueryRow(`
		SELECT run_id, started_at, region_km, workers, point_count, file_count, succeeded, failed
		FROM runs WHERE run_id = ?`, id).
		Scan(&r.ID, &r.StartedAt, &r.RegionKm, &r.Workers,
			&r.PointCount, &r.FileCount, &r.Succeeded, &r.Failed)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ResultsForRun reconstructs a run's unit results, succeeded units with
// their statistics and failed units with their error text. Rows come
// back ordered by date then point label for stable presentation.
func (s *Store) ResultsForRun(runID string) ([]batch.UnitResult, error) {
	rows, err := s.Query(`
		SELECT point_no, lat, lon, file, date, state,
			region_km, mean, max, min, median, std_dev, valid_count, total_count,
			valid_percent, error, elapsed_ms
		FROM unit_results WHERE run_id = ?
		ORDER BY date, point_no`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query unit results: %w", err)
	}
	defer rows.Close()

	var results []batch.UnitResult
	for rows.Next() {
		var res batch.UnitResult
		var state string
		var regionKm, mean, maxVal, minVal, median, stdDev, validPct sql.NullFloat64
		var validCount, totalCount sql.NullInt64
		var elapsedMs int64

		err := rows.Scan(&res.PointID, &res.Lat, &res.Lon, &res.File, &res.Date, &state,
			&regionKm, &mean, &maxVal, &minVal, &median, &stdDev,
			&validCount, &totalCount, &validPct, &res.Err, &elapsedMs)
		if err != nil {
			return nil, fmt.Errorf("failed to scan unit result: %w", err)
		}

		res.Elapsed = time.Duration(elapsedMs) * time.Millisecond
		if state == batch.Succeeded.String() {
			res.State = batch.Succeeded
			res.Stats = &ndvi.StatsRecord{
				PointID: res.PointID, Lat: res.Lat, Lon: res.Lon, Date: res.Date,
				RegionKm: regionKm.Float64,
				Mean:     mean.Float64, Max: maxVal.Float64, Min: minVal.Float64,
				Median: median.Float64, StdDev: stdDev.Float64,
				ValidCount: int(validCount.Int64), TotalCount: int(totalCount.Int64),
				ValidPercent: validPct.Float64,
			}
		} else {
			res.State = batch.Failed
		}
		results = append(results, res)
	}
	return results, rows.Err()
}
