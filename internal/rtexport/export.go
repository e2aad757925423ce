// Package rtexport renders recorded realtime delays as a GTFS-Realtime
// TripUpdates feed.
package rtexport

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	gtfsrt "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"

	"github.com/zpcg-gtfs/feedbuilder/internal/db"
)

// Export reads all recorded delays and writes a TripUpdates protobuf
// feed to path.
func Export(ctx context.Context, database *db.DB, path string) error {
	updates, err := database.DelayUpdates(ctx)
	if err != nil {
		return err
	}

	feed := Build(updates, time.Now())
	data, err := proto.Marshal(feed)
	if err != nil {
		return fmt.Errorf("failed to encode feed: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write feed: %w", err)
	}

	log.Printf("rtexport: wrote %d trip updates to %s", len(feed.Entity), path)
	return nil
}

// Build assembles a FeedMessage from delay updates. Updates must be
// ordered by trip and stop sequence, as DelayUpdates returns them.
func Build(updates []db.DelayUpdate, now time.Time) *gtfsrt.FeedMessage {
	feed := &gtfsrt.FeedMessage{
		Header: &gtfsrt.FeedHeader{
			GtfsRealtimeVersion: proto.String("2.0"),
			Incrementality:      gtfsrt.FeedHeader_FULL_DATASET.Enum(),
			Timestamp:           proto.Uint64(uint64(now.Unix())),
		},
	}

	var current *gtfsrt.TripUpdate
	for _, u := range updates {
		if current == nil || current.GetTrip().GetTripId() != u.TripID {
			current = &gtfsrt.TripUpdate{
				Trip: &gtfsrt.TripDescriptor{
					TripId:  proto.String(u.TripID),
					RouteId: proto.String(u.RouteID),
				},
			}
			feed.Entity = append(feed.Entity, &gtfsrt.FeedEntity{
				Id:         proto.String(u.TripID),
				TripUpdate: current,
			})
		}

		stu := &gtfsrt.TripUpdate_StopTimeUpdate{
			StopSequence: proto.Uint32(uint32(u.Sequence)),
			StopId:       proto.String(u.StopID),
		}
		if u.ArrivalDelay != nil {
			stu.Arrival = &gtfsrt.TripUpdate_StopTimeEvent{
				Delay: proto.Int32(int32(*u.ArrivalDelay)),
			}
		}
		if u.DepartureDelay != nil {
			stu.Departure = &gtfsrt.TripUpdate_StopTimeEvent{
				Delay: proto.Int32(int32(*u.DepartureDelay)),
			}
		}
		current.StopTimeUpdate = append(current.StopTimeUpdate, stu)
	}

	return feed
}
