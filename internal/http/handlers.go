package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/robertarktes/travel-bookings-and-inventory/internal/afs"
	"github.com/robertarktes/travel-bookings-and-inventory/internal/availability"
	"github.com/robertarktes/travel-bookings-and-inventory/internal/booking"
	"github.com/robertarktes/travel-bookings-and-inventory/internal/checkout"
	"github.com/robertarktes/travel-bookings-and-inventory/internal/domain"
	"github.com/robertarktes/travel-bookings-and-inventory/internal/idempotency"
	"github.com/robertarktes/travel-bookings-and-inventory/internal/observability"
)

type SearchService interface {
	Search(ctx context.Context, origin, destination, date string) ([]domain.Itinerary, error)
}

type AvailabilityService interface {
	ForHotel(ctx context.Context, hotelID uuid.UUID, checkIn, checkOut time.Time) (*availability.HotelAvailability, error)
}

type BookingService interface {
	CreateHotelBooking(ctx context.Context, userID uuid.UUID, req booking.HotelBookingRequest) (*domain.HotelBooking, error)
	CreateFlightBooking(ctx context.Context, userID uuid.UUID, req booking.FlightBookingRequest) (*domain.FlightBooking, error)
	Cancel(ctx context.Context, kind domain.BookingKind, id, actorID uuid.UUID) (*domain.BookingView, error)
	Get(ctx context.Context, kind domain.BookingKind, id uuid.UUID) (*domain.BookingView, error)
}

type CheckoutService interface {
	Checkout(ctx context.Context, kind domain.BookingKind, bookingID, actorID uuid.UUID, card checkout.Card) (*domain.BookingView, error)
}

// ReferenceStore serves read-only reference data and readiness probes.
type ReferenceStore interface {
	ListAirports(ctx context.Context) ([]domain.Airport, error)
	Ping(ctx context.Context) error
}

// RemoteFlights is the passthrough to the remote reservation service's own
// flight inventory.
type RemoteFlights interface {
	SearchFlights(ctx context.Context, origin, destination, date string) ([]afs.RemoteItinerary, error)
}

type Handlers struct {
	search    SearchService
	avail     AvailabilityService
	bookings  BookingService
	checkout  CheckoutService
	reference ReferenceStore
	remote    RemoteFlights
	idemp     *idempotency.Idempotency
	logger    observability.Logger
}

func NewHandlers(
	search SearchService,
	avail AvailabilityService,
	bookings BookingService,
	co CheckoutService,
	reference ReferenceStore,
	remote RemoteFlights,
	idemp *idempotency.Idempotency,
	logger observability.Logger,
) *Handlers {
	return &Handlers{
		search:    search,
		avail:     avail,
		bookings:  bookings,
		checkout:  co,
		reference: reference,
		remote:    remote,
		idemp:     idemp,
		logger:    logger,
	}
}

func (h *Handlers) SearchItineraries(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Origin      string `json:"origin"`
		Destination string `json:"destination"`
		Date        string `json:"date"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, domain.NewValidationError("body", "malformed JSON"))
		return
	}

	results, err := h.search.Search(r.Context(), req.Origin, req.Destination, req.Date)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if results == nil {
		results = []domain.Itinerary{}
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"itineraries": results})
}

func (h *Handlers) HotelAvailability(w http.ResponseWriter, r *http.Request) {
	hotelID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, domain.NewValidationError("id", "must be a UUID"))
		return
	}
	checkIn, err := time.Parse("2006-01-02", r.URL.Query().Get("check_in"))
	if err != nil {
		h.writeError(w, r, domain.NewValidationError("check_in", "must be formatted as YYYY-MM-DD"))
		return
	}
	checkOut, err := time.Parse("2006-01-02", r.URL.Query().Get("check_out"))
	if err != nil {
		h.writeError(w, r, domain.NewValidationError("check_out", "must be formatted as YYYY-MM-DD"))
		return
	}

	result, err := h.avail.ForHotel(r.Context(), hotelID, checkIn, checkOut)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handlers) CreateHotelBooking(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	if done := h.replayIdempotent(w, r); done {
		return
	}

	var req struct {
		HotelID    uuid.UUID `json:"hotel_id"`
		RoomTypeID uuid.UUID `json:"room_type_id"`
		CheckIn    string    `json:"check_in"`
		CheckOut   string    `json:"check_out"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, domain.NewValidationError("body", "malformed JSON"))
		return
	}
	checkIn, err := time.Parse("2006-01-02", req.CheckIn)
	if err != nil {
		h.writeError(w, r, domain.NewValidationError("check_in", "must be formatted as YYYY-MM-DD"))
		return
	}
	checkOut, err := time.Parse("2006-01-02", req.CheckOut)
	if err != nil {
		h.writeError(w, r, domain.NewValidationError("check_out", "must be formatted as YYYY-MM-DD"))
		return
	}

	b, err := h.bookings.CreateHotelBooking(r.Context(), actor, booking.HotelBookingRequest{
		HotelID:    req.HotelID,
		RoomTypeID: req.RoomTypeID,
		CheckIn:    checkIn,
		CheckOut:   checkOut,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := map[string]interface{}{
		"id":        b.ID,
		"kind":      domain.KindHotel,
		"status":    b.Status,
		"check_in":  b.CheckIn.Format("2006-01-02"),
		"check_out": b.CheckOut.Format("2006-01-02"),
	}
	h.writeStoredJSON(w, r, http.StatusCreated, resp)
}

func (h *Handlers) CreateFlightBooking(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	if done := h.replayIdempotent(w, r); done {
		return
	}

	var req struct {
		FlightIDs []uuid.UUID `json:"flight_ids"`
		Passenger struct {
			FirstName      string `json:"first_name"`
			LastName       string `json:"last_name"`
			Email          string `json:"email"`
			PassportNumber string `json:"passport_number"`
		} `json:"passenger"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, domain.NewValidationError("body", "malformed JSON"))
		return
	}

	b, err := h.bookings.CreateFlightBooking(r.Context(), actor, booking.FlightBookingRequest{
		FlightIDs: req.FlightIDs,
		Passenger: domain.Passenger{
			FirstName:      req.Passenger.FirstName,
			LastName:       req.Passenger.LastName,
			Email:          req.Passenger.Email,
			PassportNumber: req.Passenger.PassportNumber,
		},
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := map[string]interface{}{
		"id":         b.ID,
		"kind":       domain.KindFlight,
		"status":     b.Status,
		"cost_cents": b.CostCents,
		"currency":   b.Currency,
	}
	h.writeStoredJSON(w, r, http.StatusCreated, resp)
}

func (h *Handlers) Checkout(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, domain.NewValidationError("id", "must be a UUID"))
		return
	}
	if done := h.replayIdempotent(w, r); done {
		return
	}

	var req struct {
		Kind        domain.BookingKind `json:"kind"`
		CardNumber  string             `json:"card_number"`
		HolderName  string             `json:"holder_name"`
		ExpiryMonth int                `json:"expiry_month"`
		ExpiryYear  int                `json:"expiry_year"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, domain.NewValidationError("body", "malformed JSON"))
		return
	}

	view, err := h.checkout.Checkout(r.Context(), req.Kind, id, actor, checkout.Card{
		Number:      req.CardNumber,
		HolderName:  req.HolderName,
		ExpiryMonth: req.ExpiryMonth,
		ExpiryYear:  req.ExpiryYear,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeStoredJSON(w, r, http.StatusOK, view)
}

func (h *Handlers) CancelBooking(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, domain.NewValidationError("id", "must be a UUID"))
		return
	}

	var req struct {
		Kind domain.BookingKind `json:"kind"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, domain.NewValidationError("body", "malformed JSON"))
		return
	}

	view, err := h.bookings.Cancel(r.Context(), req.Kind, id, actor)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, view)
}

func (h *Handlers) GetBooking(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, domain.NewValidationError("id", "must be a UUID"))
		return
	}
	kind := domain.BookingKind(r.URL.Query().Get("kind"))

	view, err := h.bookings.Get(r.Context(), kind, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, view)
}

func (h *Handlers) ListAirports(w http.ResponseWriter, r *http.Request) {
	airports, err := h.reference.ListAirports(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"airports": airports})
}

func (h *Handlers) RemoteFlightSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	results, err := h.remote.SearchFlights(r.Context(), q.Get("origin"), q.Get("destination"), q.Get("date"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if results == nil {
		results = []afs.RemoteItinerary{}
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"results": results})
}

func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *Handlers) Readyz(w http.ResponseWriter, r *http.Request) {
	if err := h.reference.Ping(r.Context()); err != nil {
		http.Error(w, "database unreachable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Ready"))
}

// actor reads the authenticated user from the X-User-ID header. Session
// issuance lives upstream; the header is the gateway's contract.
func (h *Handlers) actor(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.Header.Get("X-User-ID"))
	if err != nil {
		http.Error(w, "missing or invalid X-User-ID", http.StatusUnauthorized)
		return uuid.Nil, false
	}
	return id, true
}

// replayIdempotent writes the stored response for a repeated key and
// reports whether the request is already handled.
func (h *Handlers) replayIdempotent(w http.ResponseWriter, r *http.Request) bool {
	key := r.Header.Get("Idempotency-Key")
	if key == "" {
		return false
	}
	existing, err := h.idemp.Get(r.Context(), key)
	if err != nil {
		h.logger.WithError(err).Warn("idempotency lookup failed")
		return false
	}
	if existing == nil {
		return false
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(existing.Status)
	w.Write(existing.Result)
	return true
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	data, err := json.Marshal(body)
	if err != nil {
		http.Error(w, "encoding failure", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

// writeStoredJSON writes the response and records it under the request's
// Idempotency-Key so a retry replays the same body.
func (h *Handlers) writeStoredJSON(w http.ResponseWriter, r *http.Request, status int, body interface{}) {
	data, err := json.Marshal(body)
	if err != nil {
		http.Error(w, "encoding failure", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)

	if key := r.Header.Get("Idempotency-Key"); key != "" {
		if err := h.idemp.Set(r.Context(), key, idempotency.Response{Status: status, Result: data}); err != nil {
			h.logger.WithError(err).Warn("idempotency store failed")
		}
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	msg := "internal error"

	var vErr *domain.ValidationError
	var extErr *domain.ExternalBookingError
	switch {
	case errors.As(err, &vErr):
		status = http.StatusBadRequest
		msg = vErr.Error()
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
		msg = err.Error()
	case errors.Is(err, domain.ErrForbidden):
		status = http.StatusForbidden
		msg = err.Error()
	case errors.Is(err, domain.ErrConflict), errors.Is(err, domain.ErrInvalidState):
		status = http.StatusConflict
		msg = err.Error()
	case errors.Is(err, domain.ErrSerializationFailure):
		status = http.StatusConflict
		msg = "conflicting update, try again"
	case errors.As(err, &extErr):
		status = http.StatusBadGateway
		msg = extErr.Error()
	default:
		h.logger.WithError(err).WithField("path", r.URL.Path).Error("request failed")
	}

	h.writeJSON(w, status, map[string]string{"error": msg})
}
