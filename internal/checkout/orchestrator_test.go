package checkout

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robertarktes/travel-bookings-and-inventory/internal/clock"
	"github.com/robertarktes/travel-bookings-and-inventory/internal/domain"
)

// a number that passes the Luhn checksum
const validCardNumber = "4539578763621486"

type fakeConfirmer struct {
	view      *domain.BookingView
	confirmed bool
}

func (f *fakeConfirmer) Get(context.Context, domain.BookingKind, uuid.UUID) (*domain.BookingView, error) {
	return f.view, nil
}

func (f *fakeConfirmer) Confirm(context.Context, domain.BookingKind, uuid.UUID, uuid.UUID) (*domain.BookingView, error) {
	f.confirmed = true
	confirmed := *f.view
	confirmed.Status = domain.BookingConfirmed
	return &confirmed, nil
}

func fixedClock() clock.Clock {
	return clock.NewFixed(time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC))
}

func validCard() Card {
	return Card{Number: validCardNumber, HolderName: "Ada Morris", ExpiryMonth: 12, ExpiryYear: 2027}
}

func TestCheckout_ConfirmsPendingBooking(t *testing.T) {
	userID := uuid.New()
	bookingID := uuid.New()
	confirmer := &fakeConfirmer{view: &domain.BookingView{
		ID: bookingID, Kind: domain.KindFlight, UserID: userID, Status: domain.BookingPending,
	}}
	o := NewOrchestrator(confirmer, fixedClock())

	view, err := o.Checkout(context.Background(), domain.KindFlight, bookingID, userID, validCard())
	require.NoError(t, err)
	assert.Equal(t, domain.BookingConfirmed, view.Status)
	assert.True(t, confirmer.confirmed)
}

func TestCheckout_CardValidation(t *testing.T) {
	userID := uuid.New()
	confirmer := &fakeConfirmer{view: &domain.BookingView{
		ID: uuid.New(), UserID: userID, Status: domain.BookingPending,
	}}
	o := NewOrchestrator(confirmer, fixedClock())

	cases := []struct {
		name  string
		mut   func(*Card)
		field string
	}{
		{"luhn failure", func(c *Card) { c.Number = "4539578763621487" }, "cardNumber"},
		{"non-digit characters", func(c *Card) { c.Number = "4539-5787-6362-1486" }, "cardNumber"},
		{"too short", func(c *Card) { c.Number = "42" }, "cardNumber"},
		{"month zero", func(c *Card) { c.ExpiryMonth = 0 }, "expiryMonth"},
		{"month thirteen", func(c *Card) { c.ExpiryMonth = 13 }, "expiryMonth"},
		{"expired last year", func(c *Card) { c.ExpiryYear = 2025 }, "expiry"},
		{"expired last month", func(c *Card) { c.ExpiryMonth = 8; c.ExpiryYear = 2026 }, "expiry"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			card := validCard()
			tc.mut(&card)
			_, err := o.Checkout(context.Background(), domain.KindFlight, uuid.New(), userID, card)
			var vErr *domain.ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tc.field, vErr.Field)
		})
	}
}

func TestCheckout_CurrentMonthStillValid(t *testing.T) {
	userID := uuid.New()
	confirmer := &fakeConfirmer{view: &domain.BookingView{
		ID: uuid.New(), UserID: userID, Status: domain.BookingPending,
	}}
	o := NewOrchestrator(confirmer, fixedClock())

	card := validCard()
	card.ExpiryMonth = 9
	card.ExpiryYear = 2026
	_, err := o.Checkout(context.Background(), domain.KindFlight, uuid.New(), userID, card)
	require.NoError(t, err)
}

func TestCheckout_NotOwner(t *testing.T) {
	confirmer := &fakeConfirmer{view: &domain.BookingView{
		ID: uuid.New(), UserID: uuid.New(), Status: domain.BookingPending,
	}}
	o := NewOrchestrator(confirmer, fixedClock())

	_, err := o.Checkout(context.Background(), domain.KindFlight, uuid.New(), uuid.New(), validCard())
	assert.ErrorIs(t, err, domain.ErrForbidden)
	assert.False(t, confirmer.confirmed)
}

func TestCheckout_NotPending(t *testing.T) {
	userID := uuid.New()
	confirmer := &fakeConfirmer{view: &domain.BookingView{
		ID: uuid.New(), UserID: userID, Status: domain.BookingConfirmed,
	}}
	o := NewOrchestrator(confirmer, fixedClock())

	_, err := o.Checkout(context.Background(), domain.KindFlight, uuid.New(), userID, validCard())
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}
