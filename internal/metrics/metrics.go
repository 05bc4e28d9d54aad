package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "medbook"

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		},
		[]string{"route", "status"},
	)

	orderTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_transitions_total",
			Help:      "Successful order status transitions by target status.",
		},
		[]string{"to"},
	)

	reservationConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "slot_reservation_conflicts_total",
			Help:      "Approvals rejected because a covering slot was already reserved.",
		},
	)

	slotsGenerated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "slots_generated_total",
			Help:      "Slots newly materialized from availability rules.",
		},
	)

	operationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "engine_operation_seconds",
			Help:      "Latency of availability and order operations.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"op"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, orderTransitions, reservationConflicts, slotsGenerated, operationSeconds)
	})
}

// IncHTTP increments the counter for a route and status code.
func IncHTTP(route, status string) {
	httpRequests.WithLabelValues(route, status).Inc()
}

func IncTransition(to string) {
	orderTransitions.WithLabelValues(to).Inc()
}

func IncReservationConflict() {
	reservationConflicts.Inc()
}

func AddSlotsGenerated(n int) {
	if n > 0 {
		slotsGenerated.Add(float64(n))
	}
}

// ObserveOperation records the time elapsed since start under op.
func ObserveOperation(op string, start time.Time) {
	operationSeconds.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
