package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BookingsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bookings_created_total",
		Help: "Total number of bookings committed",
	})

	BookingsRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bookings_rejected_total",
		Help: "Total number of rejected booking attempts",
	}, []string{"reason"})

	SeatsBookedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "seats_booked_total",
		Help: "Total number of seats booked",
	})

	OrdersCancelledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_cancelled_total",
		Help: "Total number of owner-cancelled orders",
	})

	StatusOverridesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_status_overrides_total",
		Help: "Total number of staff status overrides",
	}, []string{"status"})

	AdmissionLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "booking_admission_latency_seconds",
		Help:    "Latency of the locked admission check plus writes",
		Buckets: prometheus.DefBuckets,
	})

	AvailabilityCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "availability_cache_hits_total",
		Help: "Advisory availability reads served from cache",
	})

	AvailabilityCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "availability_cache_misses_total",
		Help: "Advisory availability reads recomputed from the ledger",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
