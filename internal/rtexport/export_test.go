package rtexport

import (
	"testing"
	"time"

	"github.com/zpcg-gtfs/feedbuilder/internal/db"
)

func intPtr(v int) *int { return &v }

func TestBuildGroupsByTrip(t *testing.T) {
	updates := []db.DelayUpdate{
		{TripID: "trip-1", RouteID: "R 6100", StopID: "7100001", Sequence: 1, ArrivalDelay: intPtr(60)},
		{TripID: "trip-1", RouteID: "R 6100", StopID: "7100007", Sequence: 2, ArrivalDelay: intPtr(120), DepartureDelay: intPtr(90)},
		{TripID: "trip-2", RouteID: "R 6101", StopID: "7100015", Sequence: 1, DepartureDelay: intPtr(-30)},
	}

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	feed := Build(updates, now)

	if got := feed.GetHeader().GetGtfsRealtimeVersion(); got != "2.0" {
		t.Errorf("version = %q, expected 2.0", got)
	}
	if got := feed.GetHeader().GetTimestamp(); got != uint64(now.Unix()) {
		t.Errorf("timestamp = %d, expected %d", got, now.Unix())
	}

	if len(feed.Entity) != 2 {
		t.Fatalf("got %d entities, expected 2", len(feed.Entity))
	}

	first := feed.Entity[0].GetTripUpdate()
	if first.GetTrip().GetTripId() != "trip-1" {
		t.Errorf("first trip id = %q", first.GetTrip().GetTripId())
	}
	if len(first.StopTimeUpdate) != 2 {
		t.Fatalf("trip-1 has %d stop time updates, expected 2", len(first.StopTimeUpdate))
	}
	stu := first.StopTimeUpdate[1]
	if stu.GetStopSequence() != 2 || stu.GetStopId() != "7100007" {
		t.Errorf("second update = seq %d stop %q", stu.GetStopSequence(), stu.GetStopId())
	}
	if stu.GetArrival().GetDelay() != 120 {
		t.Errorf("arrival delay = %d, expected 120", stu.GetArrival().GetDelay())
	}
	if stu.GetDeparture().GetDelay() != 90 {
		t.Errorf("departure delay = %d, expected 90", stu.GetDeparture().GetDelay())
	}

	second := feed.Entity[1].GetTripUpdate()
	if second.GetTrip().GetRouteId() != "R 6101" {
		t.Errorf("second route id = %q", second.GetTrip().GetRouteId())
	}
	if second.StopTimeUpdate[0].Arrival != nil {
		t.Error("expected no arrival event when only departure delay recorded")
	}
	if second.StopTimeUpdate[0].GetDeparture().GetDelay() != -30 {
		t.Errorf("early departure delay = %d, expected -30",
			second.StopTimeUpdate[0].GetDeparture().GetDelay())
	}
}

func TestBuildEmpty(t *testing.T) {
	feed := Build(nil, time.Now())
	if len(feed.Entity) != 0 {
		t.Errorf("got %d entities for no updates", len(feed.Entity))
	}
}
