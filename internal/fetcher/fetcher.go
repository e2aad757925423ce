// Package fetcher turns journey-planning API responses into GTFS-shaped
// rows in the local store.
package fetcher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/zpcg-gtfs/feedbuilder/internal/config"
	"github.com/zpcg-gtfs/feedbuilder/internal/db"
	"github.com/zpcg-gtfs/feedbuilder/internal/gtfs"
	"github.com/zpcg-gtfs/feedbuilder/internal/hafas"
	"github.com/zpcg-gtfs/feedbuilder/internal/stations"
)

// ErrStorage marks local store failures. Unlike per-station API errors
// these abort the whole run.
var ErrStorage = errors.New("fetcher: storage failure")

// Route colors for the rendered feed.
const (
	routeColor     = "D82234"
	routeTextColor = "F6F6F6"
)

// maxBoardPages bounds the forward pagination of one station per run, so
// an API that keeps returning fresh board entries cannot stall the run.
const maxBoardPages = 10

// Fetcher runs fetch/normalize passes over the configured stations.
type Fetcher struct {
	db     *db.DB
	client *hafas.Client
	index  *stations.Index
	cfg    *config.Config

	// now is swappable for tests.
	now func() time.Time
}

// New creates a Fetcher.
func New(database *db.DB, client *hafas.Client, index *stations.Index, cfg *config.Config) *Fetcher {
	return &Fetcher{
		db:     database,
		client: client,
		index:  index,
		cfg:    cfg,
		now:    time.Now,
	}
}

// Report summarizes one fetch run.
type Report struct {
	RunID string
	Stats db.RunStats
}

// Run fetches departures and arrivals for every configured station and
// upserts the resulting rows. A failed station is logged and skipped;
// storage failures abort the run.
func (f *Fetcher) Run(ctx context.Context) (*Report, error) {
	runID := uuid.New().String()
	startedAt := f.now()
	log.Printf("fetch: run %s starting, %d stations", runID, len(f.cfg.Stations))

	if err := f.db.StartRun(ctx, runID, startedAt); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	agency := f.cfg.Agency
	if err := f.db.UpsertAgency(ctx, db.Agency{
		ID:       agency.ID,
		Name:     agency.Name,
		URL:      agency.URL,
		Timezone: agency.Timezone,
		Phone:    optional(agency.Phone),
		Email:    optional(agency.Email),
	}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	feed := f.cfg.Feed
	if err := f.db.UpsertFeedInfo(ctx, db.FeedInfo{
		PublisherName: feed.PublisherName,
		PublisherURL:  feed.PublisherURL,
		Lang:          feed.Language,
		ContactEmail:  optional(feed.ContactEmail),
	}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	report := &Report{RunID: runID}
	for _, station := range f.cfg.Stations {
		err := f.fetchStation(ctx, station, &report.Stats)
		if errors.Is(err, ErrStorage) {
			return report, err
		}
		if err != nil {
			log.Printf("fetch: station %q failed: %v", station, err)
			report.Stats.StationsFailed++
			continue
		}
		report.Stats.StationsOK++
	}

	if err := f.db.FinishRun(ctx, runID, report.Stats); err != nil {
		return report, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	log.Printf("fetch: run %s done: %d stations ok, %d failed, %d trips, %d stop times, %d skipped",
		runID, report.Stats.StationsOK, report.Stats.StationsFailed,
		report.Stats.TripsWritten, report.Stats.StopTimes, report.Stats.RecordsSkipped)
	return report, nil
}

func (f *Fetcher) fetchStation(ctx context.Context, station string, stats *db.RunStats) error {
	locations, err := f.client.Locations(ctx, station)
	if err != nil {
		return err
	}
	if len(locations) == 0 {
		return fmt.Errorf("no location found for %q", station)
	}
	loc := locations[0]

	from, ok, err := f.db.Checkpoint(ctx, station)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if !ok {
		from = f.now()
	}
	log.Printf("fetch: %s (%s) from %s", station, loc.ID, from.Format(time.RFC3339))

	// Page forward through the boards until they run dry, the cursor
	// stops moving, or the page bound is hit. A board failure past the
	// first page keeps the progress made so far.
	window := f.cfg.Window()
	seen := make(map[string]struct{})
	cursor := from
	for page := 0; page < maxBoardPages; page++ {
		departures, err := f.client.Departures(ctx, loc.ID, cursor, window)
		if err != nil {
			if page == 0 {
				return err
			}
			log.Printf("fetch: %s: stopping after %d pages: %v", station, page, err)
			break
		}
		arrivals, err := f.client.Arrivals(ctx, loc.ID, cursor, window)
		if err != nil {
			if page == 0 {
				return err
			}
			log.Printf("fetch: %s: stopping after %d pages: %v", station, page, err)
			break
		}

		board := make([]hafas.BoardEntry, 0, len(departures)+len(arrivals))
		board = append(board, departures...)
		board = append(board, arrivals...)
		if len(board) == 0 {
			break
		}

		if err := f.processBoard(ctx, board, seen, stats); err != nil {
			return err
		}

		next := nextCheckpoint(departures, arrivals)
		if !next.After(cursor) {
			break
		}
		cursor = next
	}

	if !cursor.After(from) {
		log.Printf("fetch: %s: no new board entries, checkpoint unchanged", station)
		return nil
	}
	if err := f.db.SetCheckpoint(ctx, station, cursor); err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	log.Printf("fetch: %s: checkpoint advanced to %s", station, cursor.Format(time.RFC3339))
	return nil
}

// processBoard fetches and upserts every not-yet-seen trip on a board.
func (f *Fetcher) processBoard(ctx context.Context, board []hafas.BoardEntry, seen map[string]struct{}, stats *db.RunStats) error {
	for _, entry := range board {
		if entry.TripID == "" || entry.EffectiveWhen().IsZero() {
			stats.RecordsSkipped++
			continue
		}
		if _, dup := seen[entry.TripID]; dup {
			continue
		}
		seen[entry.TripID] = struct{}{}

		trip, err := f.client.Trip(ctx, entry.TripID)
		if err != nil {
			log.Printf("fetch: skipping trip %s: %v", entry.TripID, err)
			stats.RecordsSkipped++
			continue
		}

		bundle, skipped, err := f.buildBundle(trip)
		stats.RecordsSkipped += skipped
		if err != nil {
			log.Printf("fetch: skipping malformed trip %s: %v", entry.TripID, err)
			stats.RecordsSkipped++
			continue
		}

		if err := f.db.UpsertTripBundle(ctx, bundle); err != nil {
			return fmt.Errorf("%w: trip %s: %v", ErrStorage, entry.TripID, err)
		}
		stats.TripsWritten++
		stats.StopTimes += len(bundle.StopTimes)
	}
	return nil
}

// nextCheckpoint picks the new checkpoint: the earlier of the latest
// departure and the latest arrival processed, so neither board is skipped
// past on the next run.
func nextCheckpoint(departures, arrivals []hafas.BoardEntry) time.Time {
	latestDep := latestWhen(departures)
	latestArr := latestWhen(arrivals)
	switch {
	case latestDep.IsZero():
		return latestArr
	case latestArr.IsZero():
		return latestDep
	case latestArr.Before(latestDep):
		return latestArr
	default:
		return latestDep
	}
}

func latestWhen(entries []hafas.BoardEntry) time.Time {
	var latest time.Time
	for _, e := range entries {
		if when := e.EffectiveWhen(); when.After(latest) {
			latest = when
		}
	}
	return latest
}

// buildBundle normalizes one fetched trip into store rows. It returns the
// number of stopovers skipped as malformed alongside the bundle.
func (f *Fetcher) buildBundle(trip *hafas.Trip) (*db.TripBundle, int, error) {
	if trip.Line == nil || trip.Line.Name == "" {
		return nil, 0, errors.New("trip has no line")
	}

	serviceDay := serviceDayOf(trip)
	if serviceDay.IsZero() {
		return nil, 0, errors.New("trip has no planned departure")
	}

	class, number := splitTripName(trip.Line.Name)
	tripID := digest(trip.ID)
	serviceID := digest("service" + trip.ID)

	exceptionType := 1
	if trip.Cancelled {
		exceptionType = 0
	}

	bundle := &db.TripBundle{
		Route: db.Route{
			ID:        trip.Line.Name,
			AgencyID:  f.cfg.Agency.ID,
			Type:      routeTypeFor(trip.Line, class),
			Color:     optional(routeColor),
			TextColor: optional(routeTextColor),
		},
		Trip: db.Trip{
			RouteID:   trip.Line.Name,
			ServiceID: serviceID,
			ID:        tripID,
			ShortName: optional(number),
		},
		CalendarDate: db.CalendarDate{
			ServiceID:     serviceID,
			Date:          serviceDay.Year()*10000 + int(serviceDay.Month())*100 + serviceDay.Day(),
			ExceptionType: exceptionType,
		},
	}

	skipped := 0
	sequence := 1
	var firstName, lastName string
	for _, so := range trip.Stopovers {
		stop, err := f.resolveStop(so)
		if err != nil {
			log.Printf("fetch: trip %s: skipping stopover: %v", trip.ID, err)
			skipped++
			continue
		}

		arrival := firstTime(so.PlannedArrival, so.PlannedDeparture)
		departure := firstTime(so.PlannedDeparture, so.PlannedArrival)
		if arrival == nil {
			log.Printf("fetch: trip %s: stopover %s has no timestamps", trip.ID, stop.ID)
			skipped++
			continue
		}

		bundle.Stops = append(bundle.Stops, *stop)
		bundle.StopTimes = append(bundle.StopTimes, db.StopTime{
			TripID:        tripID,
			ArrivalTime:   gtfs.NewTime(serviceDay, *arrival).String(),
			DepartureTime: gtfs.NewTime(serviceDay, *departure).String(),
			StopID:        stop.ID,
			Sequence:      sequence,
			Timepoint:     optionalInt(1),
		})
		if so.ArrivalDelay != nil || so.DepartureDelay != nil {
			bundle.Delays = append(bundle.Delays, db.TripDelay{
				TripID:         tripID,
				StopID:         stop.ID,
				ArrivalDelay:   so.ArrivalDelay,
				DepartureDelay: so.DepartureDelay,
			})
		}

		if firstName == "" {
			firstName = stop.Name
		}
		lastName = stop.Name
		sequence++
	}

	if len(bundle.StopTimes) < 2 {
		return nil, skipped, fmt.Errorf("only %d usable stopovers", len(bundle.StopTimes))
	}

	longName := firstName + " - " + lastName
	bundle.Route.LongName = optional(longName)
	bundle.Trip.Headsign = optional(lastName)
	return bundle, skipped, nil
}

// resolveStop canonicalizes a stopover against the OSM station index,
// falling back to the API's own name and coordinates when the station is
// missing from the extract.
func (f *Fetcher) resolveStop(so hafas.Stopover) (*db.Stop, error) {
	if so.Stop == nil || so.Stop.ID == "" {
		return nil, errors.New("stopover has no stop")
	}

	stop := &db.Stop{
		ID:       so.Stop.ID,
		Name:     so.Stop.Name,
		Timezone: optional(f.cfg.Agency.Timezone),
	}
	if so.Stop.Location != nil {
		stop.Lat = so.Stop.Location.Latitude
		stop.Lon = so.Stop.Location.Longitude

		if osm, err := f.index.Find(stop.Lat, stop.Lon); err == nil {
			stop.Name = osm.Name
			stop.Lat = osm.Latitude
			stop.Lon = osm.Longitude
			return stop, nil
		}
		log.Printf("fetch: %s not found in OSM data near %f, %f", so.Stop.Name, stop.Lat, stop.Lon)
	}

	if stop.Name == "" {
		return nil, fmt.Errorf("stop %s has no name", stop.ID)
	}
	if so.Stop.Location == nil {
		return nil, fmt.Errorf("stop %s has no coordinates", stop.ID)
	}
	return stop, nil
}

func serviceDayOf(trip *hafas.Trip) time.Time {
	if trip.PlannedDeparture != nil {
		return *trip.PlannedDeparture
	}
	for _, so := range trip.Stopovers {
		if so.PlannedDeparture != nil {
			return *so.PlannedDeparture
		}
	}
	return time.Time{}
}

// splitTripName separates a train class prefix from the train number:
// "R 6100" becomes ("R", "6100"). Names without a letter prefix are
// returned unsplit.
func splitTripName(name string) (class, number string) {
	for i, r := range name {
		if r == ' ' && i > 0 {
			prefix := name[:i]
			if isAlpha(prefix) {
				return prefix, name[i+1:]
			}
			break
		}
		if r < 'A' || (r > 'Z' && r < 'a') || r > 'z' {
			break
		}
	}
	return "", name
}

func isAlpha(s string) bool {
	for _, r := range s {
		if (r < 'A' || r > 'Z') && (r < 'a' || r > 'z') {
			return false
		}
	}
	return s != ""
}

// routeTypeFor maps the API's mode and train class to a GTFS route type.
// Regional trains get the extended regional-rail type, long-distance
// classes the long-distance type.
func routeTypeFor(line *hafas.Line, class string) int {
	if line.Product == "bus" || line.Mode == "bus" {
		return 3
	}
	switch class {
	case "R", "E":
		return 106
	case "IC", "EC", "D":
		return 102
	case "":
		return 2
	default:
		log.Printf("fetch: unknown train class %q, using generic rail", class)
		return 2
	}
}

func digest(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func optionalInt(v int) *int { return &v }

func firstTime(a, b *time.Time) *time.Time {
	if a != nil {
		return a
	}
	return b
}
