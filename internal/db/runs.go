package db

import (
	"context"
	"fmt"
	"time"
)

// RunStats accumulates per-run counters for the fetch_runs table.
type RunStats struct {
	StationsOK     int
	StationsFailed int
	TripsWritten   int
	StopTimes      int
	RecordsSkipped int
}

// StartRun records the beginning of a fetch run.
func (db *DB) StartRun(ctx context.Context, runID string, startedAt time.Time) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO fetch_runs (run_id, started_at_utc) VALUES (?, ?)`,
		runID, startedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to record run start: %w", err)
	}
	return nil
}

// FinishRun records the end of a fetch run along with its counters.
func (db *DB) FinishRun(ctx context.Context, runID string, stats RunStats) error {
	_, err := db.conn.ExecContext(ctx, `
		UPDATE fetch_runs SET
			finished_at_utc = ?,
			stations_ok = ?,
			stations_failed = ?,
			trips_written = ?,
			stop_times_written = ?,
			records_skipped = ?
		WHERE run_id = ?
	`, time.Now().UTC().Format(time.RFC3339),
		stats.StationsOK, stats.StationsFailed, stats.TripsWritten,
		stats.StopTimes, stats.RecordsSkipped, runID)
	if err != nil {
		return fmt.Errorf("failed to record run finish: %w", err)
	}
	return nil
}
