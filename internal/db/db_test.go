package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	database, err := Connect(filepath.Join(t.TempDir(), "gtfs.sqlite"))
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	if err := database.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema failed: %v", err)
	}
	return database
}

func intPtr(v int) *int { return &v }

func TestConnectAppliesPragmas(t *testing.T) {
	database := testDB(t)

	var mode string
	if err := database.Conn().QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("journal_mode query failed: %v", err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q, expected wal", mode)
	}

	var fk int
	if err := database.Conn().QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil {
		t.Fatalf("foreign_keys query failed: %v", err)
	}
	if fk != 1 {
		t.Errorf("foreign_keys = %d, expected 1", fk)
	}
}

func testBundle(tripID string, stops int) *TripBundle {
	b := &TripBundle{
		Route: Route{ID: "R 6100", AgencyID: "zpcg", Type: 106},
		Trip:  Trip{RouteID: "R 6100", ServiceID: "svc-" + tripID, ID: tripID},
		CalendarDate: CalendarDate{
			ServiceID: "svc-" + tripID, Date: 20260301, ExceptionType: 1,
		},
	}
	for i := 0; i < stops; i++ {
		stopID := []string{"7100001", "7100007", "7100015"}[i%3]
		b.Stops = append(b.Stops, Stop{
			ID: stopID, Name: "Stop", Lat: 42.0 + float64(i), Lon: 19.0,
		})
		b.StopTimes = append(b.StopTimes, StopTime{
			TripID:        tripID,
			ArrivalTime:   "08:00:00",
			DepartureTime: "08:01:00",
			StopID:        stopID,
			Sequence:      i + 1,
		})
	}
	return b
}

func TestUpsertTripBundleIdempotent(t *testing.T) {
	database := testDB(t)
	ctx := context.Background()

	bundle := testBundle("trip-1", 3)
	if err := database.UpsertTripBundle(ctx, bundle); err != nil {
		t.Fatalf("first upsert failed: %v", err)
	}
	if err := database.UpsertTripBundle(ctx, bundle); err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}

	n, err := database.CountStopTimes(ctx, "trip-1")
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("got %d stop_times after re-upsert, expected 3", n)
	}
}

func TestUpsertTripBundleRepeatedStop(t *testing.T) {
	database := testDB(t)
	ctx := context.Background()

	// An out-and-back run visiting its origin station twice.
	bundle := &TripBundle{
		Route: Route{ID: "R 6200", AgencyID: "zpcg", Type: 106},
		Trip:  Trip{RouteID: "R 6200", ServiceID: "svc-loop", ID: "trip-loop"},
		CalendarDate: CalendarDate{
			ServiceID: "svc-loop", Date: 20260301, ExceptionType: 1,
		},
		Stops: []Stop{
			{ID: "7100001", Name: "Podgorica", Lat: 42.4411, Lon: 19.2743},
			{ID: "7100007", Name: "Virpazar", Lat: 42.2458, Lon: 19.0917},
		},
		StopTimes: []StopTime{
			{TripID: "trip-loop", ArrivalTime: "08:00:00", DepartureTime: "08:00:00", StopID: "7100001", Sequence: 1},
			{TripID: "trip-loop", ArrivalTime: "08:30:00", DepartureTime: "08:35:00", StopID: "7100007", Sequence: 2},
			{TripID: "trip-loop", ArrivalTime: "09:05:00", DepartureTime: "09:05:00", StopID: "7100001", Sequence: 3},
		},
	}
	if err := database.UpsertTripBundle(ctx, bundle); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	rows, err := database.Conn().QueryContext(ctx,
		`SELECT stop_sequence, stop_id FROM stop_times WHERE trip_id = ? ORDER BY stop_sequence`, "trip-loop")
	if err != nil {
		t.Fatal(err)
	}
	defer rows.Close()

	var sequences []int
	var stopIDs []string
	for rows.Next() {
		var seq int
		var stopID string
		if err := rows.Scan(&seq, &stopID); err != nil {
			t.Fatal(err)
		}
		sequences = append(sequences, seq)
		stopIDs = append(stopIDs, stopID)
	}
	if len(sequences) != 3 || sequences[0] != 1 || sequences[1] != 2 || sequences[2] != 3 {
		t.Fatalf("sequences = %v, expected [1 2 3] with the repeated stop kept", sequences)
	}
	if stopIDs[0] != "7100001" || stopIDs[2] != "7100001" {
		t.Errorf("stop ids = %v, expected the origin station at both ends", stopIDs)
	}
}

func TestStopTimeSequencesContiguous(t *testing.T) {
	database := testDB(t)
	ctx := context.Background()

	if err := database.UpsertTripBundle(ctx, testBundle("trip-2", 3)); err != nil {
		t.Fatal(err)
	}

	rows, err := database.Conn().QueryContext(ctx,
		`SELECT stop_sequence FROM stop_times WHERE trip_id = ? ORDER BY stop_sequence`, "trip-2")
	if err != nil {
		t.Fatal(err)
	}
	defer rows.Close()

	want := 1
	for rows.Next() {
		var seq int
		if err := rows.Scan(&seq); err != nil {
			t.Fatal(err)
		}
		if seq != want {
			t.Errorf("sequence = %d, expected %d", seq, want)
		}
		want++
	}
	if want != 4 {
		t.Errorf("scanned %d rows, expected 3", want-1)
	}
}

func TestStopTimesReferenceExistingStops(t *testing.T) {
	database := testDB(t)
	ctx := context.Background()

	if err := database.UpsertTripBundle(ctx, testBundle("trip-3", 3)); err != nil {
		t.Fatal(err)
	}

	var orphans int
	err := database.Conn().QueryRowContext(ctx, `
		SELECT COUNT(*) FROM stop_times st
		LEFT JOIN stops s ON s.stop_id = st.stop_id
		WHERE s.stop_id IS NULL
	`).Scan(&orphans)
	if err != nil {
		t.Fatal(err)
	}
	if orphans != 0 {
		t.Errorf("found %d stop_times without a matching stop", orphans)
	}
}

func TestCheckpointRoundTrip(t *testing.T) {
	database := testDB(t)
	ctx := context.Background()

	if _, ok, err := database.Checkpoint(ctx, "Podgorica"); err != nil || ok {
		t.Fatalf("expected no checkpoint initially, got ok=%v err=%v", ok, err)
	}

	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := database.SetCheckpoint(ctx, "Podgorica", ts); err != nil {
		t.Fatal(err)
	}

	got, ok, err := database.Checkpoint(ctx, "Podgorica")
	if err != nil || !ok {
		t.Fatalf("Checkpoint failed: ok=%v err=%v", ok, err)
	}
	if !got.Equal(ts) {
		t.Errorf("checkpoint = %v, expected %v", got, ts)
	}
}

func TestCheckpointNeverMovesBackwards(t *testing.T) {
	database := testDB(t)
	ctx := context.Background()

	later := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	earlier := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	if err := database.SetCheckpoint(ctx, "Bar", later); err != nil {
		t.Fatal(err)
	}
	if err := database.SetCheckpoint(ctx, "Bar", earlier); err != nil {
		t.Fatal(err)
	}

	got, _, err := database.Checkpoint(ctx, "Bar")
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(later) {
		t.Errorf("checkpoint = %v, expected it to stay at %v", got, later)
	}
}

func TestDelayUpdatesJoin(t *testing.T) {
	database := testDB(t)
	ctx := context.Background()

	bundle := testBundle("trip-4", 2)
	bundle.Delays = []TripDelay{
		{TripID: "trip-4", StopID: "7100007", ArrivalDelay: intPtr(120)},
		// Not present in stop_times; must be dropped by the join.
		{TripID: "trip-4", StopID: "9999999", ArrivalDelay: intPtr(60)},
	}
	if err := database.UpsertTripBundle(ctx, bundle); err != nil {
		t.Fatal(err)
	}

	updates, err := database.DelayUpdates(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(updates) != 1 {
		t.Fatalf("got %d delay updates, expected 1", len(updates))
	}
	u := updates[0]
	if u.StopID != "7100007" || u.Sequence != 2 {
		t.Errorf("update = %+v, expected stop 7100007 at sequence 2", u)
	}
	if u.ArrivalDelay == nil || *u.ArrivalDelay != 120 {
		t.Errorf("arrival delay = %v, expected 120", u.ArrivalDelay)
	}
}

func TestPruneStaleDelays(t *testing.T) {
	database := testDB(t)
	ctx := context.Background()

	bundle := testBundle("trip-5", 1)
	bundle.Delays = []TripDelay{{TripID: "trip-5", StopID: "7100001", ArrivalDelay: intPtr(30)}}
	if err := database.UpsertTripBundle(ctx, bundle); err != nil {
		t.Fatal(err)
	}

	// Fresh records survive a prune.
	if err := database.PruneStaleDelays(ctx, time.Hour); err != nil {
		t.Fatal(err)
	}
	updates, err := database.DelayUpdates(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(updates) != 1 {
		t.Fatalf("fresh delay was pruned, got %d updates", len(updates))
	}

	// A cutoff in the future prunes everything recorded so far.
	if err := database.PruneStaleDelays(ctx, -time.Minute); err != nil {
		t.Fatal(err)
	}
	updates, err = database.DelayUpdates(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(updates) != 0 {
		t.Errorf("got %d updates after full prune, expected 0", len(updates))
	}
}
