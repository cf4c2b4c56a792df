package domain

import (
	"time"

	"github.com/google/uuid"
)

type FlightStatus string

const (
	FlightScheduled FlightStatus = "SCHEDULED"
	FlightDelayed   FlightStatus = "DELAYED"
	FlightCanceled  FlightStatus = "CANCELED"
)

// Bookable reports whether the flight can appear in search results or be
// part of a new itinerary. CANCELED flights are never bookable.
func (s FlightStatus) Bookable() bool {
	return s == FlightScheduled || s == FlightDelayed
}

// Airport is reference data, created by import and read-only at runtime.
type Airport struct {
	ID      uuid.UUID `json:"id"`
	Code    string    `json:"code"`
	Name    string    `json:"name"`
	City    string    `json:"city"`
	Country string    `json:"country"`
}

type Flight struct {
	ID                   uuid.UUID    `json:"id"`
	FlightNumber         string       `json:"flight_number"`
	OriginAirportID      uuid.UUID    `json:"origin_airport_id"`
	DestinationAirportID uuid.UUID    `json:"destination_airport_id"`
	DepartureTime        time.Time    `json:"departure_time"`
	ArrivalTime          time.Time    `json:"arrival_time"`
	DurationMinutes      int          `json:"duration_minutes"`
	PriceCents           int64        `json:"price_cents"`
	Currency             string       `json:"currency"`
	AvailableSeats       int          `json:"available_seats"`
	Status               FlightStatus `json:"status"`
	CreatedAt            time.Time    `json:"-"`
	UpdatedAt            time.Time    `json:"-"`
}
