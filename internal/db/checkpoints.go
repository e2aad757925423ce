package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Checkpoint returns the latest processed timestamp for a station search
// name. The second return value is false when the station has never been
// fetched.
func (db *DB) Checkpoint(ctx context.Context, station string) (time.Time, bool, error) {
	var unix int64
	err := db.conn.QueryRowContext(ctx,
		`SELECT latest_unix FROM fetch_checkpoints WHERE station = ?`, station,
	).Scan(&unix)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to read checkpoint for %s: %w", station, err)
	}
	return time.Unix(unix, 0), true, nil
}

// SetCheckpoint records the latest processed timestamp for a station.
// It never moves a checkpoint backwards.
func (db *DB) SetCheckpoint(ctx context.Context, station string, latest time.Time) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO fetch_checkpoints (station, latest_unix, updated_at_utc)
		VALUES (?, ?, ?)
		ON CONFLICT (station) DO UPDATE SET
			latest_unix = MAX(latest_unix, excluded.latest_unix),
			updated_at_utc = excluded.updated_at_utc
	`, station, latest.Unix(), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to set checkpoint for %s: %w", station, err)
	}
	return nil
}
