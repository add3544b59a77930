// Package monitoring exposes Prometheus metrics for the reservation
// pipeline. All metrics are registered via promauto at init time and
// served on /metrics by the HTTP router.
package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TokensIssued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "queue_tokens_issued_total",
			Help: "Total admission tokens issued",
		},
	)

	TokensActivated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "queue_tokens_activated_total",
			Help: "Total tokens promoted from WAITING to ACTIVE",
		},
	)

	TokensExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "queue_tokens_expired_total",
			Help: "Total tokens expired by the cleanup scheduler",
		},
	)

	HoldOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seat_hold_attempts_total",
			Help: "Seat hold attempts by outcome",
		},
		[]string{"outcome"},
	)

	ReservationsExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reservations_expired_total",
			Help: "Total holds released after the payment window lapsed",
		},
	)

	PaymentOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_attempts_total",
			Help: "Payment attempts by outcome",
		},
		[]string{"outcome"},
	)

	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_published_total",
			Help: "Domain events published to the broker",
		},
		[]string{"type"},
	)

	EventsConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_consumed_total",
			Help: "Domain events consumed from the broker",
		},
		[]string{"queue", "status"},
	)
)
