package db

import (
	"context"
	"fmt"
	"time"
)

// Agency is one row of the agencies table (GTFS agency.txt).
type Agency struct {
	ID       string
	Name     string
	URL      string
	Timezone string
	Phone    *string
	FareURL  *string
	Email    *string
}

// FeedInfo is the single row of the feed_info table.
type FeedInfo struct {
	PublisherName string
	PublisherURL  string
	Lang          string
	ContactEmail  *string
}

// Route is one row of the routes table.
type Route struct {
	ID        string
	AgencyID  string
	ShortName *string
	LongName  *string
	Type      int
	Color     *string
	TextColor *string
}

// Trip is one row of the trips table.
type Trip struct {
	RouteID   string
	ServiceID string
	ID        string
	Headsign  *string
	ShortName *string
}

// Stop is one row of the stops table.
type Stop struct {
	ID       string
	Name     string
	Lat      float64
	Lon      float64
	Timezone *string
}

// StopTime is one row of the stop_times table. Sequence is 1-based and
// strictly increasing within a trip.
type StopTime struct {
	TripID        string
	ArrivalTime   string
	DepartureTime string
	StopID        string
	Sequence      int
	Timepoint     *int
}

// CalendarDate is one row of the calendar_dates table. Date is YYYYMMDD.
type CalendarDate struct {
	ServiceID     string
	Date          int
	ExceptionType int
}

// TripDelay is an observed realtime delay for one (trip, stop) pair.
type TripDelay struct {
	TripID         string
	StopID         string
	ArrivalDelay   *int
	DepartureDelay *int
}

// TripBundle is everything one fetched trip contributes to the store.
// It is written atomically: a trip either lands completely or not at all.
type TripBundle struct {
	Route        Route
	Trip         Trip
	CalendarDate CalendarDate
	Stops        []Stop
	StopTimes    []StopTime
	Delays       []TripDelay
}

// UpsertAgency inserts or replaces the agency row.
func (db *DB) UpsertAgency(ctx context.Context, a Agency) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT OR REPLACE INTO agencies (
			agency_id, agency_name, agency_url, agency_timezone,
			agency_phone, agency_fare_url, agency_email
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`, a.ID, a.Name, a.URL, a.Timezone, a.Phone, a.FareURL, a.Email)
	if err != nil {
		return fmt.Errorf("failed to upsert agency %s: %w", a.ID, err)
	}
	return nil
}

// UpsertFeedInfo inserts or replaces the feed_info row.
func (db *DB) UpsertFeedInfo(ctx context.Context, fi FeedInfo) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT OR REPLACE INTO feed_info (
			feed_publisher_name, feed_publisher_url, feed_lang, feed_contact_email
		) VALUES (?, ?, ?, ?)
	`, fi.PublisherName, fi.PublisherURL, fi.Lang, fi.ContactEmail)
	if err != nil {
		return fmt.Errorf("failed to upsert feed_info: %w", err)
	}
	return nil
}

// UpsertTripBundle writes one trip and everything it references in a
// single transaction. Stop times for the trip are rewritten wholesale, so
// re-fetching an overlapping window can never duplicate a (trip, station)
// pair or leave sequence gaps.
func (db *DB) UpsertTripBundle(ctx context.Context, b *TripBundle) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO routes (
			route_id, agency_id, route_short_name, route_long_name,
			route_desc, route_type, route_url, route_color,
			route_text_color, route_sort_order
		) VALUES (?, ?, ?, ?, NULL, ?, NULL, ?, ?, NULL)
	`, b.Route.ID, b.Route.AgencyID, b.Route.ShortName, b.Route.LongName,
		b.Route.Type, b.Route.Color, b.Route.TextColor)
	if err != nil {
		return fmt.Errorf("failed to upsert route %s: %w", b.Route.ID, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO trips (
			route_id, service_id, trip_id, trip_headsign, trip_short_name,
			direction_id, block_id, shape_id, wheelchair_accessible, bikes_allowed
		) VALUES (?, ?, ?, ?, ?, NULL, NULL, NULL, NULL, NULL)
	`, b.Trip.RouteID, b.Trip.ServiceID, b.Trip.ID, b.Trip.Headsign, b.Trip.ShortName)
	if err != nil {
		return fmt.Errorf("failed to upsert trip %s: %w", b.Trip.ID, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO calendar_dates (service_id, date, exception_type)
		VALUES (?, ?, ?)
	`, b.CalendarDate.ServiceID, b.CalendarDate.Date, b.CalendarDate.ExceptionType)
	if err != nil {
		return fmt.Errorf("failed to upsert calendar date for %s: %w", b.CalendarDate.ServiceID, err)
	}

	stopStmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO stops (
			stop_id, stop_code, stop_name, stop_desc, stop_lat, stop_lon,
			zone_id, stop_url, location_type, parent_station, stop_timezone,
			wheelchair_boarding, platform_code
		) VALUES (?, NULL, ?, NULL, ?, ?, NULL, NULL, 0, NULL, ?, NULL, NULL)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare stop statement: %w", err)
	}
	defer stopStmt.Close()

	for _, s := range b.Stops {
		if _, err := stopStmt.ExecContext(ctx, s.ID, s.Name, s.Lat, s.Lon, s.Timezone); err != nil {
			return fmt.Errorf("failed to upsert stop %s: %w", s.ID, err)
		}
	}

	// Rewrite the trip's stop times from scratch.
	if _, err := tx.ExecContext(ctx, `DELETE FROM stop_times WHERE trip_id = ?`, b.Trip.ID); err != nil {
		return fmt.Errorf("failed to clear stop times for trip %s: %w", b.Trip.ID, err)
	}

	stStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO stop_times (
			trip_id, arrival_time, departure_time, stop_id, stop_sequence,
			stop_headsign, pickup_type, drop_off_type, timepoint
		) VALUES (?, ?, ?, ?, ?, NULL, NULL, NULL, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare stop_times statement: %w", err)
	}
	defer stStmt.Close()

	for _, st := range b.StopTimes {
		_, err := stStmt.ExecContext(ctx, st.TripID, st.ArrivalTime, st.DepartureTime,
			st.StopID, st.Sequence, st.Timepoint)
		if err != nil {
			return fmt.Errorf("failed to insert stop time %s/%d: %w", st.TripID, st.Sequence, err)
		}
	}

	recordedAt := time.Now().UTC().Format(time.RFC3339)
	for _, d := range b.Delays {
		_, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO trip_delays (
				trip_id, stop_id, arrival_delay_seconds,
				departure_delay_seconds, recorded_at_utc
			) VALUES (?, ?, ?, ?, ?)
		`, d.TripID, d.StopID, d.ArrivalDelay, d.DepartureDelay, recordedAt)
		if err != nil {
			return fmt.Errorf("failed to upsert delay %s/%s: %w", d.TripID, d.StopID, err)
		}
	}

	return tx.Commit()
}
