package db

import (
	"context"
	"fmt"
	"log"
	"time"
)

// PruneStaleDelays removes realtime delay observations older than the
// retention window. Stale delays would otherwise leak into TripUpdates
// exports long after the affected trains have run.
func (db *DB) PruneStaleDelays(ctx context.Context, retention time.Duration) error {
	cutoff := time.Now().UTC().Add(-retention).Format(time.RFC3339)

	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM trip_delays WHERE recorded_at_utc < ?`, cutoff)
	if err != nil {
		return fmt.Errorf("failed to prune delays: %w", err)
	}

	if n, err := result.RowsAffected(); err == nil && n > 0 {
		log.Printf("Pruned %d stale delay records", n)
	}
	return nil
}
