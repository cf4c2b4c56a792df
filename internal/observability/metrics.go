package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tbi_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "code", "method"},
	)

	DBTxDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tbi_db_tx_seconds",
			Help:    "Duration of DB transactions",
			Buckets: prometheus.DefBuckets,
		},
	)

	BookingTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tbi_booking_transitions_total",
			Help: "Booking lifecycle transitions by kind and target status",
		},
		[]string{"kind", "to"},
	)

	SeatConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tbi_seat_conflicts_total",
			Help: "Confirmations rejected because no seats remained",
		},
	)

	AFSRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tbi_afs_retries_total",
			Help: "Retried requests to the reservation service",
		},
	)

	OutboxLag = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tbi_outbox_lag_seconds",
			Help: "Age of the oldest unpublished outbox record",
		},
	)

	SearchCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tbi_search_cache_hits_total",
			Help: "Itinerary searches served from cache",
		},
	)

	RateLimitExceeded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tbi_rate_limit_exceeded_total",
			Help: "Total rate limit exceeded",
		},
	)
)
