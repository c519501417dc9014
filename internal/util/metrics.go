package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BookingsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bookings_created_total",
		Help: "Total number of bookings created",
	})

	BookingsConfirmedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bookings_confirmed_total",
		Help: "Total number of bookings confirmed after payment",
	})

	BookingsCancelledTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bookings_cancelled_total",
		Help: "Total number of cancelled bookings",
	}, []string{"reason"})

	BookingsExpiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bookings_expired_total",
		Help: "Total number of bookings expired past the checkout window",
	})

	BookingsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bookings_failed_total",
		Help: "Total number of failed booking attempts",
	}, []string{"reason"})

	InventoryReserveLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "inventory_reserve_latency_seconds",
		Help:    "Latency of inventory reservation operations",
		Buckets: prometheus.DefBuckets,
	})

	InventoryReservationsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_reservations_failed_total",
		Help: "Total number of failed inventory reservations",
	}, []string{"reason"})

	InventoryInvariantViolations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inventory_invariant_violations_total",
		Help: "Ledger operations rejected because they would corrupt the counters",
	})

	PaymentAttemptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payment_attempts_total",
		Help: "Total number of payment capture attempts",
	})

	PaymentSuccessTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payment_success_total",
		Help: "Total number of successful payment captures",
	})

	PaymentFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payment_failed_total",
		Help: "Total number of failed payment captures",
	})

	RefundsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "refunds_total",
		Help: "Total number of refunds issued",
	})

	TicketsIssuedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tickets_issued_total",
		Help: "Total number of tickets issued",
	})

	TasksExecutedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tasks_executed_total",
		Help: "Total number of task executions",
	}, []string{"type", "outcome"})

	TaskRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "task_retries_total",
		Help: "Total number of task retry attempts scheduled",
	}, []string{"type"})

	TasksParkedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tasks_parked_total",
		Help: "Tasks parked for manual reconciliation after exhausting retries",
	}, []string{"type"})

	NotificationsSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_sent_total",
		Help: "Total number of notifications dispatched",
	}, []string{"kind"})

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
