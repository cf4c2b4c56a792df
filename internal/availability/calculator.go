// Package availability computes remaining hotel room inventory over a stay
// window, counting every non-canceled booking against capacity.
package availability

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/robertarktes/travel-bookings-and-inventory/internal/domain"
)

type Store interface {
	GetHotel(ctx context.Context, id uuid.UUID) (*domain.Hotel, error)
	ListRoomTypeAvailability(ctx context.Context, hotelID uuid.UUID, checkIn, checkOut time.Time) ([]domain.RoomTypeAvailability, error)
}

type Calculator struct {
	store Store
}

func NewCalculator(store Store) *Calculator {
	return &Calculator{store: store}
}

type HotelAvailability struct {
	Hotel     domain.Hotel                  `json:"hotel"`
	CheckIn   time.Time                     `json:"check_in"`
	CheckOut  time.Time                     `json:"check_out"`
	RoomTypes []domain.RoomTypeAvailability `json:"room_types"`
}

// ForHotel reports the remaining rooms per room type of a hotel for a stay.
// Room types with nothing left are included with a remaining count of zero.
func (c *Calculator) ForHotel(ctx context.Context, hotelID uuid.UUID, checkIn, checkOut time.Time) (*HotelAvailability, error) {
	if !checkIn.Before(checkOut) {
		return nil, domain.NewValidationError("checkOut", "must be after checkIn")
	}

	hotel, err := c.store.GetHotel(ctx, hotelID)
	if err != nil {
		return nil, errors.Wrap(err, "get hotel")
	}

	roomTypes, err := c.store.ListRoomTypeAvailability(ctx, hotelID, checkIn, checkOut)
	if err != nil {
		return nil, errors.Wrap(err, "list room type availability")
	}
	for i := range roomTypes {
		if roomTypes[i].Remaining < 0 {
			roomTypes[i].Remaining = 0
		}
	}

	return &HotelAvailability{
		Hotel:     *hotel,
		CheckIn:   checkIn,
		CheckOut:  checkOut,
		RoomTypes: roomTypes,
	}, nil
}
