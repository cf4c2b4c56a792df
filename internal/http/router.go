package http

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/robertarktes/travel-bookings-and-inventory/internal/observability"
	"github.com/robertarktes/travel-bookings-and-inventory/internal/rateLimit"
)

func SetupRouter(h *Handlers, logger observability.Logger, rl *rateLimit.RateLimiter) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(LoggerMiddleware(logger))
	r.Use(TracingMiddleware)
	r.Use(MetricsMiddleware)
	r.Use(RateLimitMiddleware(rl))
	r.Use(IdempotencyKeyMiddleware)

	mountRoutes(r, h)
	return r
}

// Routes is the bare route table without the middleware stack; handler tests
// mount it directly.
func Routes(h *Handlers) *chi.Mux {
	r := chi.NewRouter()
	mountRoutes(r, h)
	return r
}

func mountRoutes(r *chi.Mux, h *Handlers) {
	r.Post("/v1/itineraries/search", h.SearchItineraries)
	r.Get("/v1/hotels/{id}/availability", h.HotelAvailability)
	r.Post("/v1/bookings/hotel", h.CreateHotelBooking)
	r.Post("/v1/bookings/flight", h.CreateFlightBooking)
	r.Post("/v1/bookings/{id}/checkout", h.Checkout)
	r.Post("/v1/bookings/{id}/cancel", h.CancelBooking)
	r.Get("/v1/bookings/{id}", h.GetBooking)
	r.Get("/v1/airports", h.ListAirports)
	r.Get("/v1/afs/flights", h.RemoteFlightSearch)
	r.Get("/v1/healthz", h.Healthz)
	r.Get("/v1/readyz", h.Readyz)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
}
