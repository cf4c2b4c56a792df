package postgres_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/robertarktes/travel-bookings-and-inventory/internal/adapters/postgres"
	"github.com/robertarktes/travel-bookings-and-inventory/internal/domain"
)

const schema = `
	CREATE TABLE airports (
		id UUID PRIMARY KEY,
		code TEXT NOT NULL,
		name TEXT NOT NULL,
		city TEXT NOT NULL,
		country TEXT NOT NULL
	);
	CREATE TABLE flights (
		id UUID PRIMARY KEY,
		flight_number TEXT NOT NULL,
		origin_airport_id UUID NOT NULL,
		destination_airport_id UUID NOT NULL,
		departure_time TIMESTAMPTZ NOT NULL,
		arrival_time TIMESTAMPTZ NOT NULL,
		duration_minutes INT NOT NULL,
		price_cents BIGINT NOT NULL,
		currency TEXT NOT NULL,
		available_seats INT NOT NULL CHECK (available_seats >= 0),
		status TEXT NOT NULL CHECK (status IN ('SCHEDULED', 'DELAYED', 'CANCELED')),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	CREATE TABLE hotels (
		id UUID PRIMARY KEY,
		owner_id UUID NOT NULL,
		name TEXT NOT NULL,
		city TEXT NOT NULL,
		country TEXT NOT NULL
	);
	CREATE TABLE room_types (
		id UUID PRIMARY KEY,
		hotel_id UUID NOT NULL REFERENCES hotels (id),
		name TEXT NOT NULL,
		price_per_night_cents BIGINT NOT NULL,
		currency TEXT NOT NULL,
		total_rooms INT NOT NULL,
		amenities TEXT[] NOT NULL DEFAULT '{}'
	);
	CREATE TABLE hotel_bookings (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL,
		hotel_id UUID NOT NULL,
		room_type_id UUID NOT NULL,
		check_in TIMESTAMPTZ NOT NULL,
		check_out TIMESTAMPTZ NOT NULL,
		status TEXT NOT NULL CHECK (status IN ('PENDING', 'CONFIRMED', 'CANCELED')),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	CREATE TABLE flight_bookings (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL,
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL,
		email TEXT NOT NULL,
		passport_number TEXT NOT NULL,
		external_reference TEXT,
		status TEXT NOT NULL CHECK (status IN ('PENDING', 'CONFIRMED', 'CANCELED')),
		cost_cents BIGINT NOT NULL,
		currency TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	CREATE TABLE flight_booking_legs (
		booking_id UUID NOT NULL REFERENCES flight_bookings (id),
		leg_no INT NOT NULL,
		flight_id UUID NOT NULL REFERENCES flights (id),
		PRIMARY KEY (booking_id, leg_no)
	);
	CREATE TABLE outbox (
		id UUID PRIMARY KEY,
		aggregate_type TEXT NOT NULL,
		aggregate_id UUID NOT NULL,
		event_type TEXT NOT NULL,
		payload_json JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		published_at TIMESTAMPTZ,
		status TEXT NOT NULL CHECK (status IN ('NEW', 'PUBLISHED')),
		dedupe_key TEXT NOT NULL
	);
`

func setupRepo(t *testing.T) (*postgres.Repository, *pgxpool.Pool) {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "tbi",
				"POSTGRES_PASSWORD": "tbi",
				"POSTGRES_DB":       "tbi",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { container.Terminate(ctx) })

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatal(err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatal(err)
	}

	dsn := "postgres://tbi:tbi@" + host + ":" + port.Port() + "/tbi?sslmode=disable"
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(pool.Close)

	if _, err := pool.Exec(ctx, schema); err != nil {
		t.Fatal(err)
	}
	return postgres.NewRepository(pool), pool
}

func seedFlight(t *testing.T, pool *pgxpool.Pool, seats int) uuid.UUID {
	t.Helper()
	id := uuid.New()
	dep := time.Now().Add(48 * time.Hour).UTC()
	_, err := pool.Exec(context.Background(), `
		INSERT INTO flights (id, flight_number, origin_airport_id, destination_airport_id,
			departure_time, arrival_time, duration_minutes, price_cents, currency,
			available_seats, status)
		VALUES ($1, 'TB101', $2, $3, $4, $5, 300, 25000, 'USD', $6, 'SCHEDULED')
	`, id, uuid.New(), uuid.New(), dep, dep.Add(5*time.Hour), seats)
	if err != nil {
		t.Fatal(err)
	}
	return id
}

func seedRoomType(t *testing.T, pool *pgxpool.Pool, totalRooms int) (hotelID, roomTypeID uuid.UUID) {
	t.Helper()
	hotelID = uuid.New()
	roomTypeID = uuid.New()
	ctx := context.Background()
	_, err := pool.Exec(ctx, `
		INSERT INTO hotels (id, owner_id, name, city, country)
		VALUES ($1, $2, 'Harbour View', 'Vancouver', 'Canada')
	`, hotelID, uuid.New())
	if err != nil {
		t.Fatal(err)
	}
	_, err = pool.Exec(ctx, `
		INSERT INTO room_types (id, hotel_id, name, price_per_night_cents, currency, total_rooms, amenities)
		VALUES ($1, $2, 'Standard', 15000, 'USD', $3, '{wifi}')
	`, roomTypeID, hotelID, totalRooms)
	if err != nil {
		t.Fatal(err)
	}
	return hotelID, roomTypeID
}

func newFlightBooking(userID uuid.UUID, legs ...uuid.UUID) *domain.FlightBooking {
	return &domain.FlightBooking{
		ID:     uuid.New(),
		UserID: userID,
		Passenger: domain.Passenger{
			FirstName:      "Ada",
			LastName:       "Morris",
			Email:          "ada@example.com",
			PassportNumber: "AB1234567",
		},
		FlightIDs: legs,
		CostCents: 25000,
		Currency:  "USD",
	}
}

func TestRepository_HotelBookingOvercommitRejected(t *testing.T) {
	repo, pool := setupRepo(t)
	hotelID, roomTypeID := seedRoomType(t, pool, 1)

	ctx := context.Background()
	checkIn := time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC)
	checkOut := checkIn.AddDate(0, 0, 3)

	first := &domain.HotelBooking{
		ID: uuid.New(), UserID: uuid.New(), HotelID: hotelID, RoomTypeID: roomTypeID,
		CheckIn: checkIn, CheckOut: checkOut,
	}
	if err := repo.CreateHotelBooking(ctx, first); err != nil {
		t.Fatalf("first booking: %v", err)
	}

	// overlapping window against the same single-room type
	second := &domain.HotelBooking{
		ID: uuid.New(), UserID: uuid.New(), HotelID: hotelID, RoomTypeID: roomTypeID,
		CheckIn: checkIn.AddDate(0, 0, 1), CheckOut: checkOut.AddDate(0, 0, 1),
	}
	err := repo.CreateHotelBooking(ctx, second)
	if !errors.Is(err, domain.ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}

	// back-to-back stay reusing the checkout day must succeed
	third := &domain.HotelBooking{
		ID: uuid.New(), UserID: uuid.New(), HotelID: hotelID, RoomTypeID: roomTypeID,
		CheckIn: checkOut, CheckOut: checkOut.AddDate(0, 0, 2),
	}
	if err := repo.CreateHotelBooking(ctx, third); err != nil {
		t.Errorf("back-to-back booking: %v", err)
	}
}

func TestRepository_ConcurrentHotelBookingsOneRoom(t *testing.T) {
	repo, pool := setupRepo(t)
	hotelID, roomTypeID := seedRoomType(t, pool, 1)

	ctx := context.Background()
	checkIn := time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC)
	checkOut := checkIn.AddDate(0, 0, 2)

	const attempts = 6
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			b := &domain.HotelBooking{
				ID: uuid.New(), UserID: uuid.New(), HotelID: hotelID, RoomTypeID: roomTypeID,
				CheckIn: checkIn.AddDate(0, 0, i%2), CheckOut: checkOut.AddDate(0, 0, i%2),
			}
			errs[i] = repo.CreateHotelBooking(ctx, b)
		}(i)
	}
	wg.Wait()

	// Serializable commits may lose after the availability re-check passed,
	// so losers surface either conflict or a retryable serialization failure.
	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		if !errors.Is(err, domain.ErrConflict) && !errors.Is(err, domain.ErrSerializationFailure) {
			t.Errorf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Errorf("expected exactly one booking to win the room, got %d", succeeded)
	}

	var active int
	err := pool.QueryRow(ctx, `
		SELECT count(*) FROM hotel_bookings
		WHERE room_type_id = $1 AND status <> 'CANCELED'
	`, roomTypeID).Scan(&active)
	if err != nil {
		t.Fatal(err)
	}
	if active != 1 {
		t.Errorf("expected 1 active booking, got %d", active)
	}
}

func TestRepository_ListRoomTypeAvailability(t *testing.T) {
	repo, pool := setupRepo(t)
	hotelID, roomTypeID := seedRoomType(t, pool, 3)

	ctx := context.Background()
	checkIn := time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC)
	checkOut := checkIn.AddDate(0, 0, 2)

	booked := &domain.HotelBooking{
		ID: uuid.New(), UserID: uuid.New(), HotelID: hotelID, RoomTypeID: roomTypeID,
		CheckIn: checkIn, CheckOut: checkOut,
	}
	if err := repo.CreateHotelBooking(ctx, booked); err != nil {
		t.Fatal(err)
	}
	canceled := &domain.HotelBooking{
		ID: uuid.New(), UserID: uuid.New(), HotelID: hotelID, RoomTypeID: roomTypeID,
		CheckIn: checkIn, CheckOut: checkOut,
	}
	if err := repo.CreateHotelBooking(ctx, canceled); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.CancelHotelBooking(ctx, canceled.ID); err != nil {
		t.Fatal(err)
	}

	avail, err := repo.ListRoomTypeAvailability(ctx, hotelID, checkIn, checkOut)
	if err != nil {
		t.Fatal(err)
	}
	if len(avail) != 1 {
		t.Fatalf("expected 1 room type, got %d", len(avail))
	}
	// one active booking counts, the canceled one does not
	if avail[0].Remaining != 2 {
		t.Errorf("expected 2 remaining, got %d", avail[0].Remaining)
	}
}

func TestRepository_ConfirmFlightBookingDecrementsSeat(t *testing.T) {
	repo, pool := setupRepo(t)
	flightID := seedFlight(t, pool, 2)

	ctx := context.Background()
	b := newFlightBooking(uuid.New(), flightID)
	if err := repo.CreateFlightBooking(ctx, b); err != nil {
		t.Fatal(err)
	}

	confirmed, err := repo.ConfirmFlightBooking(ctx, b.ID, "AFS-REF-1")
	if err != nil {
		t.Fatal(err)
	}
	if confirmed.Status != domain.BookingConfirmed {
		t.Errorf("expected CONFIRMED, got %s", confirmed.Status)
	}
	if confirmed.ExternalReference == nil || *confirmed.ExternalReference != "AFS-REF-1" {
		t.Errorf("external reference not stored: %v", confirmed.ExternalReference)
	}

	f, err := repo.GetFlight(ctx, flightID)
	if err != nil {
		t.Fatal(err)
	}
	if f.AvailableSeats != 1 {
		t.Errorf("expected 1 seat left, got %d", f.AvailableSeats)
	}

	// confirming again is an invalid transition
	if _, err := repo.ConfirmFlightBooking(ctx, b.ID, "AFS-REF-1"); !errors.Is(err, domain.ErrInvalidState) {
		t.Errorf("expected ErrInvalidState, got %v", err)
	}
}

func TestRepository_ConcurrentConfirmsOneSeat(t *testing.T) {
	repo, pool := setupRepo(t)
	flightID := seedFlight(t, pool, 1)

	ctx := context.Background()
	b1 := newFlightBooking(uuid.New(), flightID)
	b2 := newFlightBooking(uuid.New(), flightID)
	if err := repo.CreateFlightBooking(ctx, b1); err != nil {
		t.Fatal(err)
	}
	if err := repo.CreateFlightBooking(ctx, b2); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, id := range []uuid.UUID{b1.ID, b2.ID} {
		wg.Add(1)
		go func(i int, id uuid.UUID) {
			defer wg.Done()
			_, errs[i] = repo.ConfirmFlightBooking(ctx, id, "AFS-REF")
		}(i, id)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		if !errors.Is(err, domain.ErrConflict) && !errors.Is(err, domain.ErrSerializationFailure) {
			t.Errorf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Errorf("expected exactly one confirmation to win, got %d", succeeded)
	}

	f, err := repo.GetFlight(ctx, flightID)
	if err != nil {
		t.Fatal(err)
	}
	if f.AvailableSeats != 0 {
		t.Errorf("expected 0 seats, got %d", f.AvailableSeats)
	}
}

func TestRepository_CancelFlightBookingRestoresSeats(t *testing.T) {
	repo, pool := setupRepo(t)
	flightID := seedFlight(t, pool, 1)

	ctx := context.Background()
	b := newFlightBooking(uuid.New(), flightID)
	if err := repo.CreateFlightBooking(ctx, b); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.ConfirmFlightBooking(ctx, b.ID, "AFS-REF-1"); err != nil {
		t.Fatal(err)
	}

	canceled, err := repo.CancelFlightBooking(ctx, b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if canceled.Status != domain.BookingCanceled {
		t.Errorf("expected CANCELED, got %s", canceled.Status)
	}

	f, err := repo.GetFlight(ctx, flightID)
	if err != nil {
		t.Fatal(err)
	}
	if f.AvailableSeats != 1 {
		t.Errorf("expected seat restored, got %d", f.AvailableSeats)
	}

	// canceling again is a no-op and must not restore another seat
	if _, err := repo.CancelFlightBooking(ctx, b.ID); err != nil {
		t.Fatal(err)
	}
	f, err = repo.GetFlight(ctx, flightID)
	if err != nil {
		t.Fatal(err)
	}
	if f.AvailableSeats != 1 {
		t.Errorf("idempotent cancel moved inventory: %d seats", f.AvailableSeats)
	}
}

func TestRepository_CancelStalePending(t *testing.T) {
	repo, pool := setupRepo(t)
	flightID := seedFlight(t, pool, 5)
	hotelID, roomTypeID := seedRoomType(t, pool, 5)

	ctx := context.Background()
	stale := newFlightBooking(uuid.New(), flightID)
	if err := repo.CreateFlightBooking(ctx, stale); err != nil {
		t.Fatal(err)
	}
	staleHotel := &domain.HotelBooking{
		ID: uuid.New(), UserID: uuid.New(), HotelID: hotelID, RoomTypeID: roomTypeID,
		CheckIn:  time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC),
		CheckOut: time.Date(2026, 9, 12, 0, 0, 0, 0, time.UTC),
	}
	if err := repo.CreateHotelBooking(ctx, staleHotel); err != nil {
		t.Fatal(err)
	}
	confirmed := newFlightBooking(uuid.New(), flightID)
	if err := repo.CreateFlightBooking(ctx, confirmed); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.ConfirmFlightBooking(ctx, confirmed.ID, "AFS-REF-1"); err != nil {
		t.Fatal(err)
	}

	swept, err := repo.CancelStalePending(ctx, time.Now().Add(time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if swept != 2 {
		t.Errorf("expected 2 swept bookings, got %d", swept)
	}

	got, err := repo.GetFlightBooking(ctx, confirmed.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != domain.BookingConfirmed {
		t.Errorf("sweep touched a confirmed booking: %s", got.Status)
	}
}

func TestRepository_OutboxRecordsWritten(t *testing.T) {
	repo, pool := setupRepo(t)
	flightID := seedFlight(t, pool, 2)

	ctx := context.Background()
	b := newFlightBooking(uuid.New(), flightID)
	if err := repo.CreateFlightBooking(ctx, b); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.ConfirmFlightBooking(ctx, b.ID, "AFS-REF-1"); err != nil {
		t.Fatal(err)
	}

	records, err := repo.GetUnpublishedOutbox(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("expected created + confirmed outbox records, got %d", len(records))
	}
	if records[0].EventType != "booking.created" || records[1].EventType != "booking.confirmed" {
		t.Errorf("unexpected event types: %s, %s", records[0].EventType, records[1].EventType)
	}

	if err := repo.MarkPublished(ctx, records[0].ID, time.Now()); err != nil {
		t.Fatal(err)
	}
	remaining, err := repo.GetUnpublishedOutbox(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(remaining) != 1 {
		t.Errorf("expected 1 unpublished record, got %d", len(remaining))
	}
}
