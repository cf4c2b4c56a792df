// Package checkout validates payment details and confirms the booking. No
// charge is captured; card checks are structural only.
package checkout

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/robertarktes/travel-bookings-and-inventory/internal/clock"
	"github.com/robertarktes/travel-bookings-and-inventory/internal/domain"
)

// Confirmer is the lifecycle service behind checkout.
type Confirmer interface {
	Get(ctx context.Context, kind domain.BookingKind, id uuid.UUID) (*domain.BookingView, error)
	Confirm(ctx context.Context, kind domain.BookingKind, id, actorID uuid.UUID) (*domain.BookingView, error)
}

type Orchestrator struct {
	confirmer Confirmer
	clock     clock.Clock
}

func NewOrchestrator(confirmer Confirmer, c clock.Clock) *Orchestrator {
	return &Orchestrator{confirmer: confirmer, clock: c}
}

type Card struct {
	Number      string
	HolderName  string
	ExpiryMonth int
	ExpiryYear  int
}

// Checkout validates the card and the caller's ownership of the booking,
// then confirms it. A failed confirmation leaves the booking PENDING, so the
// caller can retry checkout with the same booking.
func (o *Orchestrator) Checkout(ctx context.Context, kind domain.BookingKind, bookingID, actorID uuid.UUID, card Card) (*domain.BookingView, error) {
	if err := o.validateCard(card); err != nil {
		return nil, err
	}

	b, err := o.confirmer.Get(ctx, kind, bookingID)
	if err != nil {
		return nil, err
	}
	if b.UserID != actorID {
		return nil, errors.Wrap(domain.ErrForbidden, "not the booking owner")
	}
	if b.Status != domain.BookingPending {
		return nil, errors.Wrapf(domain.ErrInvalidState, "booking %s is %s", bookingID, b.Status)
	}

	return o.confirmer.Confirm(ctx, kind, bookingID, actorID)
}

func (o *Orchestrator) validateCard(card Card) error {
	if !luhnValid(card.Number) {
		return domain.NewValidationError("cardNumber", "failed checksum validation")
	}
	if card.ExpiryMonth < 1 || card.ExpiryMonth > 12 {
		return domain.NewValidationError("expiryMonth", "must be between 1 and 12")
	}
	now := o.clock.Now()
	if card.ExpiryYear < now.Year() ||
		(card.ExpiryYear == now.Year() && card.ExpiryMonth < int(now.Month())) {
		return domain.NewValidationError("expiry", "card has expired")
	}
	return nil
}

// luhnValid reports whether the digits pass the Luhn checksum. Non-digit
// characters, or fewer than 12 digits, fail outright.
func luhnValid(number string) bool {
	if len(number) < 12 {
		return false
	}
	sum := 0
	double := false
	for i := len(number) - 1; i >= 0; i-- {
		c := number[i]
		if c < '0' || c > '9' {
			return false
		}
		d := int(c - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}
