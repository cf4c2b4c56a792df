package postgres

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/robertarktes/travel-bookings-and-inventory/internal/domain"
)

func (r *Repository) GetHotel(ctx context.Context, id uuid.UUID) (*domain.Hotel, error) {
	var h domain.Hotel
	err := r.pool.QueryRow(ctx, `
		SELECT id, owner_id, name, city, country FROM hotels WHERE id = $1
	`, id).Scan(&h.ID, &h.OwnerID, &h.Name, &h.City, &h.Country)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errors.Wrapf(domain.ErrNotFound, "hotel %s", id)
	}
	if err != nil {
		return nil, err
	}
	return &h, nil
}

// ListRoomTypeAvailability returns every room type of the hotel together
// with the rooms remaining for the half-open [checkIn, checkOut) window.
// Remaining counts every non-CANCELED booking whose window overlaps.
func (r *Repository) ListRoomTypeAvailability(ctx context.Context, hotelID uuid.UUID, checkIn, checkOut time.Time) ([]domain.RoomTypeAvailability, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT rt.id, rt.hotel_id, rt.name, rt.price_per_night_cents, rt.currency,
		       rt.total_rooms, rt.amenities,
		       rt.total_rooms - COUNT(hb.id)::int AS remaining
		FROM room_types rt
		LEFT JOIN hotel_bookings hb
		  ON hb.room_type_id = rt.id
		 AND hb.status <> 'CANCELED'
		 AND hb.check_in < $3
		 AND hb.check_out > $2
		WHERE rt.hotel_id = $1
		GROUP BY rt.id, rt.hotel_id, rt.name, rt.price_per_night_cents, rt.currency,
		         rt.total_rooms, rt.amenities
		ORDER BY rt.name
	`, hotelID, checkIn, checkOut)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.RoomTypeAvailability, 0)
	for rows.Next() {
		var a domain.RoomTypeAvailability
		if err := rows.Scan(&a.ID, &a.HotelID, &a.Name, &a.PricePerNightCents, &a.Currency,
			&a.TotalRooms, &a.Amenities, &a.Remaining); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// RoomTypeRemaining computes the remaining rooms for one room type and
// window; used for the pre-create availability check.
func (r *Repository) RoomTypeRemaining(ctx context.Context, roomTypeID uuid.UUID, checkIn, checkOut time.Time) (int, error) {
	return roomTypeRemaining(ctx, r.pool, roomTypeID, checkIn, checkOut)
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func roomTypeRemaining(ctx context.Context, q querier, roomTypeID uuid.UUID, checkIn, checkOut time.Time) (int, error) {
	var remaining int
	err := q.QueryRow(ctx, `
		SELECT rt.total_rooms - (
			SELECT COUNT(*) FROM hotel_bookings hb
			WHERE hb.room_type_id = rt.id
			  AND hb.status <> 'CANCELED'
			  AND hb.check_in < $3
			  AND hb.check_out > $2
		)::int
		FROM room_types rt WHERE rt.id = $1
	`, roomTypeID, checkIn, checkOut).Scan(&remaining)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, errors.Wrapf(domain.ErrNotFound, "room type %s", roomTypeID)
	}
	if err != nil {
		return 0, err
	}
	return remaining, nil
}
