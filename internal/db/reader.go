package db

import (
	"context"
	"fmt"
)

// DelayUpdate is one realtime delay joined with its stop sequence, ready
// for the TripUpdates export.
type DelayUpdate struct {
	TripID         string
	RouteID        string
	StopID         string
	Sequence       int
	ArrivalDelay   *int
	DepartureDelay *int
}

// DelayUpdates returns all recorded delays ordered by trip and stop
// sequence. Delays whose (trip, stop) no longer exists in stop_times are
// dropped by the join.
func (db *DB) DelayUpdates(ctx context.Context) ([]DelayUpdate, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT d.trip_id, t.route_id, d.stop_id, st.stop_sequence,
		       d.arrival_delay_seconds, d.departure_delay_seconds
		FROM trip_delays d
		JOIN stop_times st ON st.trip_id = d.trip_id AND st.stop_id = d.stop_id
		JOIN trips t ON t.trip_id = d.trip_id
		ORDER BY d.trip_id, st.stop_sequence
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query delays: %w", err)
	}
	defer rows.Close()

	var updates []DelayUpdate
	for rows.Next() {
		var u DelayUpdate
		if err := rows.Scan(&u.TripID, &u.RouteID, &u.StopID, &u.Sequence,
			&u.ArrivalDelay, &u.DepartureDelay); err != nil {
			return nil, fmt.Errorf("failed to scan delay: %w", err)
		}
		updates = append(updates, u)
	}
	return updates, rows.Err()
}

// CountStopTimes returns the number of stop_times rows for one trip.
func (db *DB) CountStopTimes(ctx context.Context, tripID string) (int, error) {
	var n int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM stop_times WHERE trip_id = ?`, tripID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count stop times: %w", err)
	}
	return n, nil
}
