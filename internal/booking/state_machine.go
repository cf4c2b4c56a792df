// Package booking drives the booking lifecycle. Every booking starts as
// PENDING and moves to CONFIRMED or CANCELED exactly once; CANCELED is
// terminal. Flight confirmations and cancellations go through the remote
// reservation service before any local state changes.
package booking

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/robertarktes/travel-bookings-and-inventory/internal/clock"
	"github.com/robertarktes/travel-bookings-and-inventory/internal/domain"
	"github.com/robertarktes/travel-bookings-and-inventory/internal/observability"
)

const passportLength = 9

// Store is the persistence surface of the lifecycle, implemented by the
// postgres repository.
type Store interface {
	CreateHotelBooking(ctx context.Context, b *domain.HotelBooking) error
	CreateFlightBooking(ctx context.Context, b *domain.FlightBooking) error
	GetHotelBooking(ctx context.Context, id uuid.UUID) (*domain.HotelBooking, error)
	GetFlightBooking(ctx context.Context, id uuid.UUID) (*domain.FlightBooking, error)
	ConfirmHotelBooking(ctx context.Context, id uuid.UUID) (*domain.HotelBooking, error)
	ConfirmFlightBooking(ctx context.Context, id uuid.UUID, externalRef string) (*domain.FlightBooking, error)
	CancelHotelBooking(ctx context.Context, id uuid.UUID) (*domain.HotelBooking, error)
	CancelFlightBooking(ctx context.Context, id uuid.UUID) (*domain.FlightBooking, error)
	GetHotel(ctx context.Context, id uuid.UUID) (*domain.Hotel, error)
	GetFlight(ctx context.Context, id uuid.UUID) (*domain.Flight, error)
	RoomTypeRemaining(ctx context.Context, roomTypeID uuid.UUID, checkIn, checkOut time.Time) (int, error)
}

// ReservationClient is the remote airline reservation service.
type ReservationClient interface {
	CreateReservation(ctx context.Context, p domain.Passenger, flightIDs []uuid.UUID) (string, error)
	CancelReservation(ctx context.Context, reference, lastName string) error
}

// Auditor records lifecycle transitions out of band. Implementations must
// not fail the transition.
type Auditor interface {
	LogTransition(ctx context.Context, kind domain.BookingKind, bookingID, actorID uuid.UUID, from, to domain.BookingStatus)
}

type StateMachine struct {
	store   Store
	afs     ReservationClient
	auditor Auditor
	clock   clock.Clock
	logger  observability.Logger
}

type Option func(*StateMachine)

func WithAuditor(a Auditor) Option {
	return func(sm *StateMachine) {
		sm.auditor = a
	}
}

func WithClock(c clock.Clock) Option {
	return func(sm *StateMachine) {
		sm.clock = c
	}
}

func NewStateMachine(store Store, afs ReservationClient, logger observability.Logger, opts ...Option) *StateMachine {
	sm := &StateMachine{store: store, afs: afs, clock: clock.NewSystem(), logger: logger}
	for _, opt := range opts {
		opt(sm)
	}
	return sm
}

type HotelBookingRequest struct {
	HotelID    uuid.UUID
	RoomTypeID uuid.UUID
	CheckIn    time.Time
	CheckOut   time.Time
}

// CreateHotelBooking records a PENDING stay after checking that the room
// type has stock for every night of the window. The check is advisory; the
// repository re-validates inside the insert transaction.
func (sm *StateMachine) CreateHotelBooking(ctx context.Context, userID uuid.UUID, req HotelBookingRequest) (*domain.HotelBooking, error) {
	if !req.CheckIn.Before(req.CheckOut) {
		return nil, domain.NewValidationError("checkOut", "must be after checkIn")
	}
	if req.CheckIn.Before(sm.clock.Now().Truncate(24 * time.Hour)) {
		return nil, domain.NewValidationError("checkIn", "must not be in the past")
	}

	if _, err := sm.store.GetHotel(ctx, req.HotelID); err != nil {
		return nil, errors.Wrap(err, "get hotel")
	}
	remaining, err := sm.store.RoomTypeRemaining(ctx, req.RoomTypeID, req.CheckIn, req.CheckOut)
	if err != nil {
		return nil, errors.Wrap(err, "room type remaining")
	}
	if remaining <= 0 {
		return nil, errors.Wrap(domain.ErrConflict, "no rooms left for the requested window")
	}

	b := &domain.HotelBooking{
		ID:         uuid.New(),
		UserID:     userID,
		HotelID:    req.HotelID,
		RoomTypeID: req.RoomTypeID,
		CheckIn:    req.CheckIn,
		CheckOut:   req.CheckOut,
	}
	if err := sm.store.CreateHotelBooking(ctx, b); err != nil {
		return nil, err
	}
	sm.transition(ctx, domain.KindHotel, b.ID, userID, "", domain.BookingPending)
	return b, nil
}

type FlightBookingRequest struct {
	FlightIDs []uuid.UUID
	Passenger domain.Passenger
}

// CreateFlightBooking records a PENDING itinerary. The cost is the sum of
// the current leg prices and never changes afterwards, even if fares move
// before checkout. No seats are held until confirmation.
func (sm *StateMachine) CreateFlightBooking(ctx context.Context, userID uuid.UUID, req FlightBookingRequest) (*domain.FlightBooking, error) {
	if err := validatePassenger(req.Passenger); err != nil {
		return nil, err
	}
	if len(req.FlightIDs) == 0 {
		return nil, domain.NewValidationError("flightIds", "must contain at least one flight")
	}

	var costCents int64
	currency := ""
	for _, id := range req.FlightIDs {
		f, err := sm.store.GetFlight(ctx, id)
		if err != nil {
			return nil, errors.Wrap(err, "get flight")
		}
		if !f.Status.Bookable() {
			return nil, errors.Wrapf(domain.ErrInvalidState, "flight %s is %s", f.FlightNumber, f.Status)
		}
		if currency == "" {
			currency = f.Currency
		} else if currency != f.Currency {
			return nil, domain.NewValidationError("flightIds", "legs must share one currency")
		}
		costCents += f.PriceCents
	}

	b := &domain.FlightBooking{
		ID:        uuid.New(),
		UserID:    userID,
		FlightIDs: req.FlightIDs,
		Passenger: req.Passenger,
		CostCents: costCents,
		Currency:  currency,
	}
	if err := sm.store.CreateFlightBooking(ctx, b); err != nil {
		return nil, err
	}
	sm.transition(ctx, domain.KindFlight, b.ID, userID, "", domain.BookingPending)
	return b, nil
}

// Confirm moves a PENDING booking to CONFIRMED. For flights the remote
// reservation is created first; only a remote success reaches the local
// store, so a remote failure leaves the booking PENDING and retryable.
func (sm *StateMachine) Confirm(ctx context.Context, kind domain.BookingKind, id, actorID uuid.UUID) (*domain.BookingView, error) {
	switch kind {
	case domain.KindHotel:
		b, err := sm.store.ConfirmHotelBooking(ctx, id)
		if err != nil {
			return nil, err
		}
		sm.transition(ctx, kind, id, actorID, domain.BookingPending, domain.BookingConfirmed)
		return b.View(), nil

	case domain.KindFlight:
		b, err := sm.store.GetFlightBooking(ctx, id)
		if err != nil {
			return nil, err
		}
		if b.Status != domain.BookingPending {
			return nil, errors.Wrapf(domain.ErrInvalidState, "flight booking %s is %s", id, b.Status)
		}

		ref, err := sm.afs.CreateReservation(ctx, b.Passenger, b.FlightIDs)
		if err != nil {
			return nil, errors.Wrap(err, "remote reservation")
		}

		confirmed, err := sm.store.ConfirmFlightBooking(ctx, id, ref)
		if err != nil {
			if errors.Is(err, domain.ErrConflict) {
				observability.SeatConflicts.Inc()
				sm.compensate(ctx, ref, b.Passenger.LastName)
			}
			return nil, err
		}
		sm.transition(ctx, kind, id, actorID, domain.BookingPending, domain.BookingConfirmed)
		return confirmed.View(), nil

	default:
		return nil, domain.NewValidationError("kind", "must be hotel or flight")
	}
}

// Cancel moves a booking to CANCELED. Only the booking owner, or for hotel
// bookings the hotel owner, may cancel. Canceling an already-CANCELED
// booking succeeds without side effects. For confirmed flights the remote
// reservation is released first; the local write happens only after the
// remote cancel succeeds.
func (sm *StateMachine) Cancel(ctx context.Context, kind domain.BookingKind, id, actorID uuid.UUID) (*domain.BookingView, error) {
	switch kind {
	case domain.KindHotel:
		b, err := sm.store.GetHotelBooking(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := sm.authorizeHotelCancel(ctx, b, actorID); err != nil {
			return nil, err
		}
		prev := b.Status
		canceled, err := sm.store.CancelHotelBooking(ctx, id)
		if err != nil {
			return nil, err
		}
		if prev != domain.BookingCanceled {
			sm.transition(ctx, kind, id, actorID, prev, domain.BookingCanceled)
		}
		return canceled.View(), nil

	case domain.KindFlight:
		b, err := sm.store.GetFlightBooking(ctx, id)
		if err != nil {
			return nil, err
		}
		if b.UserID != actorID {
			return nil, errors.Wrap(domain.ErrForbidden, "not the booking owner")
		}
		if b.Status == domain.BookingConfirmed && b.ExternalReference != nil {
			if err := sm.afs.CancelReservation(ctx, *b.ExternalReference, b.Passenger.LastName); err != nil {
				return nil, errors.Wrap(err, "remote cancellation")
			}
		}
		prev := b.Status
		canceled, err := sm.store.CancelFlightBooking(ctx, id)
		if err != nil {
			return nil, err
		}
		if prev != domain.BookingCanceled {
			sm.transition(ctx, kind, id, actorID, prev, domain.BookingCanceled)
		}
		return canceled.View(), nil

	default:
		return nil, domain.NewValidationError("kind", "must be hotel or flight")
	}
}

// Get returns the kind-independent view of a booking.
func (sm *StateMachine) Get(ctx context.Context, kind domain.BookingKind, id uuid.UUID) (*domain.BookingView, error) {
	switch kind {
	case domain.KindHotel:
		b, err := sm.store.GetHotelBooking(ctx, id)
		if err != nil {
			return nil, err
		}
		return b.View(), nil
	case domain.KindFlight:
		b, err := sm.store.GetFlightBooking(ctx, id)
		if err != nil {
			return nil, err
		}
		return b.View(), nil
	default:
		return nil, domain.NewValidationError("kind", "must be hotel or flight")
	}
}

func (sm *StateMachine) authorizeHotelCancel(ctx context.Context, b *domain.HotelBooking, actorID uuid.UUID) error {
	if b.UserID == actorID {
		return nil
	}
	hotel, err := sm.store.GetHotel(ctx, b.HotelID)
	if err != nil {
		return errors.Wrap(err, "get hotel")
	}
	if hotel.OwnerID == actorID {
		return nil
	}
	return errors.Wrap(domain.ErrForbidden, "not the booking or hotel owner")
}

// compensate releases a remote reservation whose local confirmation failed.
// Best effort: a failure here leaves an orphaned remote booking behind,
// which the logs surface for manual cleanup.
func (sm *StateMachine) compensate(ctx context.Context, ref, lastName string) {
	if err := sm.afs.CancelReservation(ctx, ref, lastName); err != nil {
		sm.logger.WithError(err).WithField("external_reference", ref).
			Error("failed to release remote reservation after local conflict")
	}
}

func (sm *StateMachine) transition(ctx context.Context, kind domain.BookingKind, id, actorID uuid.UUID, from, to domain.BookingStatus) {
	observability.BookingTransitions.WithLabelValues(string(kind), string(to)).Inc()
	if sm.auditor != nil {
		sm.auditor.LogTransition(ctx, kind, id, actorID, from, to)
	}
}

func validatePassenger(p domain.Passenger) error {
	if p.FirstName == "" {
		return domain.NewValidationError("firstName", "must not be empty")
	}
	if p.LastName == "" {
		return domain.NewValidationError("lastName", "must not be empty")
	}
	if p.Email == "" {
		return domain.NewValidationError("email", "must not be empty")
	}
	if len(p.PassportNumber) != passportLength {
		return domain.NewValidationError("passportNumber", "must be exactly 9 characters")
	}
	return nil
}
