package postgres

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/robertarktes/travel-bookings-and-inventory/internal/domain"
)

const flightColumns = `id, flight_number, origin_airport_id, destination_airport_id,
	departure_time, arrival_time, duration_minutes, price_cents, currency,
	available_seats, status, created_at, updated_at`

func scanFlight(row pgx.Row) (*domain.Flight, error) {
	var f domain.Flight
	err := row.Scan(&f.ID, &f.FlightNumber, &f.OriginAirportID, &f.DestinationAirportID,
		&f.DepartureTime, &f.ArrivalTime, &f.DurationMinutes, &f.PriceCents, &f.Currency,
		&f.AvailableSeats, &f.Status, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *Repository) ListAirports(ctx context.Context) ([]domain.Airport, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, code, name, city, country FROM airports ORDER BY code
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	airports := make([]domain.Airport, 0)
	for rows.Next() {
		var a domain.Airport
		if err := rows.Scan(&a.ID, &a.Code, &a.Name, &a.City, &a.Country); err != nil {
			return nil, err
		}
		airports = append(airports, a)
	}
	return airports, rows.Err()
}

// ResolveAirports maps a locator (airport code or city name, case
// insensitive) to the ids of all matching airports.
func (r *Repository) ResolveAirports(ctx context.Context, locator string) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id FROM airports WHERE lower(code) = lower($1) OR lower(city) = lower($1)
	`, locator)
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

func (r *Repository) GetFlight(ctx context.Context, id uuid.UUID) (*domain.Flight, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+flightColumns+` FROM flights WHERE id = $1`, id)
	f, err := scanFlight(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errors.Wrapf(domain.ErrNotFound, "flight %s", id)
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

// ListDepartures returns bookable flights leaving any of the given airports
// with a departure time in [from, to). CANCELED flights and flights without
// seats are filtered here so the search engine never sees them.
func (r *Repository) ListDepartures(ctx context.Context, origins []uuid.UUID, from, to time.Time) ([]domain.Flight, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+flightColumns+` FROM flights
		WHERE origin_airport_id = ANY($1::uuid[])
		  AND departure_time >= $2 AND departure_time < $3
		  AND available_seats > 0
		  AND status IN ('SCHEDULED', 'DELAYED')
		ORDER BY departure_time
	`, idStrings(origins), from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectFlights(rows)
}

// ListConnections returns bookable flights from any origin to any
// destination departing in [from, to); used for candidate second legs.
func (r *Repository) ListConnections(ctx context.Context, origins, destinations []uuid.UUID, from, to time.Time) ([]domain.Flight, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+flightColumns+` FROM flights
		WHERE origin_airport_id = ANY($1::uuid[])
		  AND destination_airport_id = ANY($2::uuid[])
		  AND departure_time >= $3 AND departure_time < $4
		  AND available_seats > 0
		  AND status IN ('SCHEDULED', 'DELAYED')
		ORDER BY departure_time
	`, idStrings(origins), idStrings(destinations), from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectFlights(rows)
}

func collectFlights(rows pgx.Rows) ([]domain.Flight, error) {
	flights := make([]domain.Flight, 0)
	for rows.Next() {
		f, err := scanFlight(rows)
		if err != nil {
			return nil, err
		}
		flights = append(flights, *f)
	}
	return flights, rows.Err()
}

func idStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
