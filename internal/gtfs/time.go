// Package gtfs renders the relational store into a GTFS flat-file bundle.
package gtfs

import (
	"fmt"
	"time"
)

// Time is a GTFS time of day: seconds past midnight of the service day.
// Trips crossing midnight produce values past 24:00:00, as the GTFS
// reference requires.
type Time int

// NewTime converts an absolute timestamp to a GTFS time relative to the
// service day. Midnight is taken in the timestamp's own location so DST
// transitions follow the operator's clock.
func NewTime(serviceDay time.Time, t time.Time) Time {
	midnight := time.Date(serviceDay.Year(), serviceDay.Month(), serviceDay.Day(),
		0, 0, 0, 0, t.Location())
	return Time(int(t.Sub(midnight).Seconds()))
}

func (t Time) String() string {
	s := int(t)
	m, s := s/60, s%60
	h, m := m/60, m%60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
