package postgres

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/robertarktes/travel-bookings-and-inventory/internal/domain"
)

const hotelBookingColumns = `id, user_id, hotel_id, room_type_id, check_in, check_out, status, created_at, updated_at`

func scanHotelBooking(row pgx.Row) (*domain.HotelBooking, error) {
	var b domain.HotelBooking
	err := row.Scan(&b.ID, &b.UserID, &b.HotelID, &b.RoomTypeID, &b.CheckIn, &b.CheckOut,
		&b.Status, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

const flightBookingColumns = `id, user_id, first_name, last_name, email, passport_number,
	external_reference, status, cost_cents, currency, created_at, updated_at`

func scanFlightBooking(row pgx.Row) (*domain.FlightBooking, error) {
	var b domain.FlightBooking
	err := row.Scan(&b.ID, &b.UserID, &b.Passenger.FirstName, &b.Passenger.LastName,
		&b.Passenger.Email, &b.Passenger.PassportNumber, &b.ExternalReference,
		&b.Status, &b.CostCents, &b.Currency, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// CreateHotelBooking inserts a PENDING booking and re-checks the room-type
// stock inside the same transaction. If the insert overcommits the room
// type for any night of the window, the transaction aborts with ErrConflict.
func (r *Repository) CreateHotelBooking(ctx context.Context, b *domain.HotelBooking) error {
	return r.WithTx(ctx, func(tx pgx.Tx) error {
		b.Status = domain.BookingPending
		err := tx.QueryRow(ctx, `
			INSERT INTO hotel_bookings (id, user_id, hotel_id, room_type_id, check_in, check_out, status)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING created_at, updated_at
		`, b.ID, b.UserID, b.HotelID, b.RoomTypeID, b.CheckIn, b.CheckOut, b.Status).
			Scan(&b.CreatedAt, &b.UpdatedAt)
		if err != nil {
			return err
		}

		// Post-insert re-check: the count now includes this booking, so a
		// negative remainder means two requests raced past the pre-check.
		remaining, err := roomTypeRemaining(ctx, tx, b.RoomTypeID, b.CheckIn, b.CheckOut)
		if err != nil {
			return err
		}
		if remaining < 0 {
			return errors.Wrap(domain.ErrConflict, "room type overcommitted")
		}

		return r.InsertOutbox(ctx, tx, bookingEvent(domain.KindHotel, b.ID, b.UserID, b.Status, "booking.created"))
	})
}

// CreateFlightBooking inserts a PENDING booking and its ordered legs. No
// seat is held; availability is enforced at confirmation.
func (r *Repository) CreateFlightBooking(ctx context.Context, b *domain.FlightBooking) error {
	return r.WithTx(ctx, func(tx pgx.Tx) error {
		b.Status = domain.BookingPending
		err := tx.QueryRow(ctx, `
			INSERT INTO flight_bookings (id, user_id, first_name, last_name, email, passport_number, status, cost_cents, currency)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING created_at, updated_at
		`, b.ID, b.UserID, b.Passenger.FirstName, b.Passenger.LastName, b.Passenger.Email,
			b.Passenger.PassportNumber, b.Status, b.CostCents, b.Currency).
			Scan(&b.CreatedAt, &b.UpdatedAt)
		if err != nil {
			return err
		}

		for i, flightID := range b.FlightIDs {
			_, err := tx.Exec(ctx, `
				INSERT INTO flight_booking_legs (booking_id, leg_no, flight_id)
				VALUES ($1, $2, $3)
			`, b.ID, i, flightID)
			if err != nil {
				return err
			}
		}

		return r.InsertOutbox(ctx, tx, bookingEvent(domain.KindFlight, b.ID, b.UserID, b.Status, "booking.created"))
	})
}

func (r *Repository) GetHotelBooking(ctx context.Context, id uuid.UUID) (*domain.HotelBooking, error) {
	b, err := scanHotelBooking(r.pool.QueryRow(ctx, `
		SELECT `+hotelBookingColumns+` FROM hotel_bookings WHERE id = $1
	`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errors.Wrapf(domain.ErrNotFound, "hotel booking %s", id)
	}
	return b, err
}

func (r *Repository) GetFlightBooking(ctx context.Context, id uuid.UUID) (*domain.FlightBooking, error) {
	b, err := scanFlightBooking(r.pool.QueryRow(ctx, `
		SELECT `+flightBookingColumns+` FROM flight_bookings WHERE id = $1
	`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errors.Wrapf(domain.ErrNotFound, "flight booking %s", id)
	}
	if err != nil {
		return nil, err
	}
	b.FlightIDs, err = r.bookingLegs(ctx, r.pool, id)
	return b, err
}

type rowQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (r *Repository) bookingLegs(ctx context.Context, q rowQuerier, bookingID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := q.Query(ctx, `
		SELECT flight_id FROM flight_booking_legs WHERE booking_id = $1 ORDER BY leg_no
	`, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ConfirmHotelBooking moves a PENDING hotel booking to CONFIRMED. Purely
// local; hotel inventory is derived from bookings, not a counter.
func (r *Repository) ConfirmHotelBooking(ctx context.Context, id uuid.UUID) (*domain.HotelBooking, error) {
	var confirmed *domain.HotelBooking
	err := r.WithTx(ctx, func(tx pgx.Tx) error {
		b, err := lockHotelBooking(ctx, tx, id)
		if err != nil {
			return err
		}
		if b.Status != domain.BookingPending {
			return errors.Wrapf(domain.ErrInvalidState, "hotel booking %s is %s", id, b.Status)
		}

		b, err = scanHotelBooking(tx.QueryRow(ctx, `
			UPDATE hotel_bookings SET status = 'CONFIRMED', updated_at = now()
			WHERE id = $1 RETURNING `+hotelBookingColumns, id))
		if err != nil {
			return err
		}
		confirmed = b

		return r.InsertOutbox(ctx, tx, bookingEvent(domain.KindHotel, b.ID, b.UserID, b.Status, "booking.confirmed"))
	})
	return confirmed, err
}

// ConfirmFlightBooking moves a PENDING flight booking to CONFIRMED, stores
// the external reference, and decrements one seat per leg. Status write and
// seat mutations commit or roll back together; a leg with no seats left
// aborts the whole transaction with ErrConflict.
func (r *Repository) ConfirmFlightBooking(ctx context.Context, id uuid.UUID, externalRef string) (*domain.FlightBooking, error) {
	var confirmed *domain.FlightBooking
	err := r.WithTx(ctx, func(tx pgx.Tx) error {
		b, err := lockFlightBooking(ctx, tx, id)
		if err != nil {
			return err
		}
		if b.Status != domain.BookingPending {
			return errors.Wrapf(domain.ErrInvalidState, "flight booking %s is %s", id, b.Status)
		}

		legs, err := r.bookingLegs(ctx, tx, id)
		if err != nil {
			return err
		}
		for _, flightID := range legs {
			res, err := tx.Exec(ctx, `
				UPDATE flights SET available_seats = available_seats - 1, updated_at = now()
				WHERE id = $1 AND available_seats > 0
			`, flightID)
			if err != nil {
				return err
			}
			if res.RowsAffected() == 0 {
				return errors.Wrapf(domain.ErrConflict, "no seats left on flight %s", flightID)
			}
		}

		b, err = scanFlightBooking(tx.QueryRow(ctx, `
			UPDATE flight_bookings SET status = 'CONFIRMED', external_reference = $2, updated_at = now()
			WHERE id = $1 RETURNING `+flightBookingColumns, id, externalRef))
		if err != nil {
			return err
		}
		b.FlightIDs = legs
		confirmed = b

		return r.InsertOutbox(ctx, tx, bookingEvent(domain.KindFlight, b.ID, b.UserID, b.Status, "booking.confirmed"))
	})
	return confirmed, err
}

// CancelHotelBooking moves a hotel booking to CANCELED. Canceling an
// already-CANCELED booking returns the booking unchanged.
func (r *Repository) CancelHotelBooking(ctx context.Context, id uuid.UUID) (*domain.HotelBooking, error) {
	var canceled *domain.HotelBooking
	err := r.WithTx(ctx, func(tx pgx.Tx) error {
		b, err := lockHotelBooking(ctx, tx, id)
		if err != nil {
			return err
		}
		if b.Status == domain.BookingCanceled {
			canceled = b
			return nil
		}

		b, err = scanHotelBooking(tx.QueryRow(ctx, `
			UPDATE hotel_bookings SET status = 'CANCELED', updated_at = now()
			WHERE id = $1 RETURNING `+hotelBookingColumns, id))
		if err != nil {
			return err
		}
		canceled = b

		return r.InsertOutbox(ctx, tx, bookingEvent(domain.KindHotel, b.ID, b.UserID, b.Status, "booking.canceled"))
	})
	return canceled, err
}

// CancelFlightBooking moves a flight booking to CANCELED and, when it was
// CONFIRMED, returns one seat per leg in the same transaction. Any remote
// cancellation must already have succeeded before this is called.
func (r *Repository) CancelFlightBooking(ctx context.Context, id uuid.UUID) (*domain.FlightBooking, error) {
	var canceled *domain.FlightBooking
	err := r.WithTx(ctx, func(tx pgx.Tx) error {
		b, err := lockFlightBooking(ctx, tx, id)
		if err != nil {
			return err
		}
		legs, err := r.bookingLegs(ctx, tx, id)
		if err != nil {
			return err
		}
		if b.Status == domain.BookingCanceled {
			b.FlightIDs = legs
			canceled = b
			return nil
		}
		wasConfirmed := b.Status == domain.BookingConfirmed

		b, err = scanFlightBooking(tx.QueryRow(ctx, `
			UPDATE flight_bookings SET status = 'CANCELED', updated_at = now()
			WHERE id = $1 RETURNING `+flightBookingColumns, id))
		if err != nil {
			return err
		}
		b.FlightIDs = legs
		canceled = b

		if wasConfirmed {
			for _, flightID := range legs {
				_, err := tx.Exec(ctx, `
					UPDATE flights SET available_seats = available_seats + 1, updated_at = now()
					WHERE id = $1
				`, flightID)
				if err != nil {
					return err
				}
			}
		}

		return r.InsertOutbox(ctx, tx, bookingEvent(domain.KindFlight, b.ID, b.UserID, b.Status, "booking.canceled"))
	})
	return canceled, err
}

// CancelStalePending cancels PENDING bookings created before the cutoff
// with set-based updates. No inventory moves: PENDING bookings hold no
// flight seats, and canceling hotel bookings only frees derived stock.
func (r *Repository) CancelStalePending(ctx context.Context, cutoff time.Time) (int, error) {
	total := 0
	err := r.WithTx(ctx, func(tx pgx.Tx) error {
		for _, t := range []struct {
			table string
			kind  domain.BookingKind
		}{
			{"hotel_bookings", domain.KindHotel},
			{"flight_bookings", domain.KindFlight},
		} {
			rows, err := tx.Query(ctx, `
				UPDATE `+t.table+` SET status = 'CANCELED', updated_at = now()
				WHERE status = 'PENDING' AND created_at <= $1
				RETURNING id, user_id
			`, cutoff)
			if err != nil {
				return err
			}
			type swept struct{ id, userID uuid.UUID }
			var batch []swept
			for rows.Next() {
				var s swept
				if err := rows.Scan(&s.id, &s.userID); err != nil {
					rows.Close()
					return err
				}
				batch = append(batch, s)
			}
			rows.Close()
			if err := rows.Err(); err != nil {
				return err
			}
			for _, s := range batch {
				if err := r.InsertOutbox(ctx, tx, bookingEvent(t.kind, s.id, s.userID, domain.BookingCanceled, "booking.canceled")); err != nil {
					return err
				}
			}
			total += len(batch)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}

func lockHotelBooking(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.HotelBooking, error) {
	b, err := scanHotelBooking(tx.QueryRow(ctx, `
		SELECT `+hotelBookingColumns+` FROM hotel_bookings WHERE id = $1 FOR UPDATE
	`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errors.Wrapf(domain.ErrNotFound, "hotel booking %s", id)
	}
	return b, err
}

func lockFlightBooking(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.FlightBooking, error) {
	b, err := scanFlightBooking(tx.QueryRow(ctx, `
		SELECT `+flightBookingColumns+` FROM flight_bookings WHERE id = $1 FOR UPDATE
	`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errors.Wrapf(domain.ErrNotFound, "flight booking %s", id)
	}
	return b, err
}
