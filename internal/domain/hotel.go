package domain

import (
	"github.com/google/uuid"
)

type Hotel struct {
	ID      uuid.UUID `json:"id"`
	OwnerID uuid.UUID `json:"owner_id"`
	Name    string    `json:"name"`
	City    string    `json:"city"`
	Country string    `json:"country"`
}

type RoomType struct {
	ID                 uuid.UUID `json:"id"`
	HotelID            uuid.UUID `json:"hotel_id"`
	Name               string    `json:"name"`
	PricePerNightCents int64     `json:"price_per_night_cents"`
	Currency           string    `json:"currency"`
	TotalRooms         int       `json:"total_rooms"`
	Amenities          []string  `json:"amenities"`
}

// RoomTypeAvailability is a RoomType annotated with the rooms remaining for
// a requested date window. Remaining is derived, never stored.
type RoomTypeAvailability struct {
	RoomType
	Remaining int `json:"remaining"`
}
