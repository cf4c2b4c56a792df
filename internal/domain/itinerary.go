package domain

import "time"

const (
	// MinLayover is the shortest permitted connection time between legs.
	MinLayover = 60 * time.Minute
	// MaxLayover bounds the connection window; a second leg departing at or
	// past this offset from the first leg's arrival is not a connection.
	MaxLayover = 48 * time.Hour
)

// Itinerary is a derived, unpersisted sequence of one or two flight legs.
type Itinerary struct {
	Legs    int      `json:"legs"`
	Flights []Flight `json:"flights"`
	// LayoverMinutes is zero for direct itineraries.
	LayoverMinutes int `json:"layover_minutes,omitempty"`
}

// ValidConnection reports whether second can follow first as a one-stop
// connection: same airport and a layover in [MinLayover, MaxLayover).
func ValidConnection(first, second Flight) bool {
	if second.OriginAirportID != first.DestinationAirportID {
		return false
	}
	layover := second.DepartureTime.Sub(first.ArrivalTime)
	return layover >= MinLayover && layover < MaxLayover
}
