package domain

import (
	"time"

	"github.com/google/uuid"
)

type BookingStatus string

const (
	BookingPending   BookingStatus = "PENDING"
	BookingConfirmed BookingStatus = "CONFIRMED"
	BookingCanceled  BookingStatus = "CANCELED"
)

type BookingKind string

const (
	KindHotel  BookingKind = "hotel"
	KindFlight BookingKind = "flight"
)

type HotelBooking struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	HotelID    uuid.UUID
	RoomTypeID uuid.UUID
	CheckIn    time.Time
	CheckOut   time.Time
	Status     BookingStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type Passenger struct {
	FirstName      string
	LastName       string
	Email          string
	PassportNumber string
}

// FlightBooking is one priced itinerary of one or more legs. The external
// reference is set only after the remote reservation service confirms.
type FlightBooking struct {
	ID                uuid.UUID
	UserID            uuid.UUID
	FlightIDs         []uuid.UUID
	Passenger         Passenger
	ExternalReference *string
	Status            BookingStatus
	CostCents         int64
	Currency          string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// BookingView is the kind-independent projection returned by lifecycle
// operations and served by the API.
type BookingView struct {
	ID        uuid.UUID     `json:"id"`
	Kind      BookingKind   `json:"kind"`
	UserID    uuid.UUID     `json:"user_id"`
	Status    BookingStatus `json:"status"`
	CostCents int64         `json:"cost_cents"`
	Currency  string        `json:"currency"`
}

func (b *HotelBooking) View() *BookingView {
	return &BookingView{ID: b.ID, Kind: KindHotel, UserID: b.UserID, Status: b.Status}
}

func (b *FlightBooking) View() *BookingView {
	return &BookingView{
		ID:        b.ID,
		Kind:      KindFlight,
		UserID:    b.UserID,
		Status:    b.Status,
		CostCents: b.CostCents,
		Currency:  b.Currency,
	}
}
