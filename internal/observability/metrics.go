package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shs_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "code", "method"},
	)

	DBTxDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "shs_db_tx_seconds",
			Help:    "Duration of store transactions",
			Buckets: prometheus.DefBuckets,
		},
	)

	SeatOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shs_seat_operations_total",
			Help: "Per-seat outcomes of hold, release and confirm calls",
		},
		[]string{"op", "outcome"},
	)

	HoldsExpiredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shs_holds_expired_total",
			Help: "Total holds reclaimed by the sweeper",
		},
	)

	SweepFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shs_sweep_failures_total",
			Help: "Total sweeper ticks that failed",
		},
	)

	EventsPublishedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shs_events_published_total",
			Help: "Total seat state change events published",
		},
	)

	WSSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "shs_ws_subscribers",
			Help: "Currently connected event subscribers",
		},
	)

	RateLimitExceeded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shs_rate_limit_exceeded_total",
			Help: "Total rate limited requests",
		},
	)
)
