// Package search builds itineraries from local flight inventory, combining
// direct flights with one-stop connections.
package search

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/robertarktes/travel-bookings-and-inventory/internal/domain"
	"github.com/robertarktes/travel-bookings-and-inventory/internal/observability"
)

// FlightSource reads bookable flights. Implemented by the postgres repository.
type FlightSource interface {
	ResolveAirports(ctx context.Context, locator string) ([]uuid.UUID, error)
	ListDepartures(ctx context.Context, origins []uuid.UUID, from, to time.Time) ([]domain.Flight, error)
	ListConnections(ctx context.Context, origins []uuid.UUID, destinations []uuid.UUID, from, to time.Time) ([]domain.Flight, error)
}

// ResultCache stores search results keyed by the normalized query. A nil
// result with a nil error means a miss.
type ResultCache interface {
	GetItineraries(ctx context.Context, key string) ([]domain.Itinerary, error)
	SetItineraries(ctx context.Context, key string, its []domain.Itinerary, ttl time.Duration) error
}

type Engine struct {
	source FlightSource
	cache  ResultCache
	ttl    time.Duration
	logger observability.Logger
}

func NewEngine(source FlightSource, cache ResultCache, ttl time.Duration, logger observability.Logger) *Engine {
	return &Engine{source: source, cache: cache, ttl: ttl, logger: logger}
}

// Search returns all itineraries from origin to destination departing on the
// given date, direct flights first, then one-stop connections ordered by
// departure time.
func (e *Engine) Search(ctx context.Context, origin, destination, date string) ([]domain.Itinerary, error) {
	if origin == "" {
		return nil, domain.NewValidationError("origin", "must not be empty")
	}
	if destination == "" {
		return nil, domain.NewValidationError("destination", "must not be empty")
	}
	if origin == destination {
		return nil, domain.NewValidationError("destination", "must differ from origin")
	}
	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		return nil, domain.NewValidationError("date", "must be formatted as YYYY-MM-DD")
	}

	cacheKey := fmt.Sprintf("%s|%s|%s", origin, destination, date)
	if e.cache != nil {
		cached, err := e.cache.GetItineraries(ctx, cacheKey)
		if err != nil {
			e.logger.WithError(err).Warn("search cache read failed")
		} else if cached != nil {
			observability.SearchCacheHits.Inc()
			return cached, nil
		}
	}

	var originIDs, destIDs []uuid.UUID
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		originIDs, err = e.source.ResolveAirports(gctx, origin)
		return errors.Wrap(err, "resolve origin")
	})
	g.Go(func() error {
		var err error
		destIDs, err = e.source.ResolveAirports(gctx, destination)
		return errors.Wrap(err, "resolve destination")
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if len(originIDs) == 0 {
		return nil, errors.Wrapf(domain.ErrNotFound, "no airports matching %q", origin)
	}
	if len(destIDs) == 0 {
		return nil, errors.Wrapf(domain.ErrNotFound, "no airports matching %q", destination)
	}
	destSet := make(map[uuid.UUID]struct{}, len(destIDs))
	for _, id := range destIDs {
		destSet[id] = struct{}{}
	}

	dayStart := day
	dayEnd := day.Add(24 * time.Hour)
	departures, err := e.source.ListDepartures(ctx, originIDs, dayStart, dayEnd)
	if err != nil {
		return nil, errors.Wrap(err, "list departures")
	}

	var results []domain.Itinerary
	var firstLegs []domain.Flight
	for _, f := range departures {
		if _, ok := destSet[f.DestinationAirportID]; ok {
			results = append(results, domain.Itinerary{Legs: 1, Flights: []domain.Flight{f}})
		} else {
			firstLegs = append(firstLegs, f)
		}
	}

	connecting, err := e.connections(ctx, firstLegs, destIDs)
	if err != nil {
		return nil, err
	}
	results = append(results, connecting...)

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Legs != results[j].Legs {
			return results[i].Legs < results[j].Legs
		}
		return results[i].Flights[0].DepartureTime.Before(results[j].Flights[0].DepartureTime)
	})

	if e.cache != nil {
		if err := e.cache.SetItineraries(ctx, cacheKey, results, e.ttl); err != nil {
			e.logger.WithError(err).Warn("search cache write failed")
		}
	}
	return results, nil
}

// connections fetches every candidate second leg in one query spanning the
// combined layover window of all first legs, then pairs legs in memory.
func (e *Engine) connections(ctx context.Context, firstLegs []domain.Flight, destIDs []uuid.UUID) ([]domain.Itinerary, error) {
	if len(firstLegs) == 0 {
		return nil, nil
	}

	midpoints := make([]uuid.UUID, 0, len(firstLegs))
	seen := make(map[uuid.UUID]struct{}, len(firstLegs))
	windowStart := firstLegs[0].ArrivalTime.Add(domain.MinLayover)
	windowEnd := firstLegs[0].ArrivalTime.Add(domain.MaxLayover)
	for _, f := range firstLegs {
		if _, ok := seen[f.DestinationAirportID]; !ok {
			seen[f.DestinationAirportID] = struct{}{}
			midpoints = append(midpoints, f.DestinationAirportID)
		}
		if s := f.ArrivalTime.Add(domain.MinLayover); s.Before(windowStart) {
			windowStart = s
		}
		if e := f.ArrivalTime.Add(domain.MaxLayover); e.After(windowEnd) {
			windowEnd = e
		}
	}

	secondLegs, err := e.source.ListConnections(ctx, midpoints, destIDs, windowStart, windowEnd)
	if err != nil {
		return nil, errors.Wrap(err, "list connections")
	}

	byOrigin := make(map[uuid.UUID][]domain.Flight)
	for _, f := range secondLegs {
		byOrigin[f.OriginAirportID] = append(byOrigin[f.OriginAirportID], f)
	}

	var results []domain.Itinerary
	for _, first := range firstLegs {
		for _, second := range byOrigin[first.DestinationAirportID] {
			if !domain.ValidConnection(first, second) {
				continue
			}
			layover := int(second.DepartureTime.Sub(first.ArrivalTime) / time.Minute)
			results = append(results, domain.Itinerary{
				Legs:           2,
				Flights:        []domain.Flight{first, second},
				LayoverMinutes: layover,
			})
		}
	}
	return results, nil
}
