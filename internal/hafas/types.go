package hafas

import "time"

// Location is a stop or station returned by the /locations endpoint.
type Location struct {
	Type     string `json:"type"`
	ID       string `json:"id"`
	Name     string `json:"name"`
	Location *struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"location"`
}

// Line carries route classification for a departure or trip.
type Line struct {
	Name    string `json:"name"`
	Product string `json:"product"`
	Mode    string `json:"mode"`
}

// BoardEntry is one row of a departure or arrival board.
type BoardEntry struct {
	TripID      string     `json:"tripId"`
	When        *time.Time `json:"when"`
	PlannedWhen *time.Time `json:"plannedWhen"`
	Direction   string     `json:"direction"`
	Line        *Line      `json:"line"`
	Cancelled   bool       `json:"cancelled"`
}

// EffectiveWhen returns the board time: realtime if present, planned
// otherwise. The zero time means the entry carries no usable timestamp.
func (e *BoardEntry) EffectiveWhen() time.Time {
	if e.When != nil {
		return *e.When
	}
	if e.PlannedWhen != nil {
		return *e.PlannedWhen
	}
	return time.Time{}
}

// Stopover is one stop visit within a trip.
type Stopover struct {
	Stop             *Location  `json:"stop"`
	Arrival          *time.Time `json:"arrival"`
	PlannedArrival   *time.Time `json:"plannedArrival"`
	Departure        *time.Time `json:"departure"`
	PlannedDeparture *time.Time `json:"plannedDeparture"`
	ArrivalDelay     *int       `json:"arrivalDelay"`
	DepartureDelay   *int       `json:"departureDelay"`
}

// Trip is a full journey with its ordered stopovers.
type Trip struct {
	ID               string     `json:"id"`
	Line             *Line      `json:"line"`
	Direction        string     `json:"direction"`
	Cancelled        bool       `json:"cancelled"`
	PlannedDeparture *time.Time `json:"plannedDeparture"`
	Stopovers        []Stopover `json:"stopovers"`
}

// boardResponse wraps departure/arrival board payloads.
type boardResponse struct {
	Departures []BoardEntry `json:"departures"`
	Arrivals   []BoardEntry `json:"arrivals"`
}

// tripResponse wraps the /trips/{id} payload.
type tripResponse struct {
	Trip *Trip `json:"trip"`
}
