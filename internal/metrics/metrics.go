package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "tablebook"

var (
	once sync.Once

	allocationResult = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "allocation_result_total",
			Help:      "Count of table allocation attempts by outcome.",
		},
		[]string{"result"},
	)

	allocationRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "allocation_retries_total",
			Help:      "Count of allocation transactions retried after contention.",
		},
	)

	allocationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "allocation_duration_seconds",
			Help:      "Time spent allocating a table, retries included.",
			Buckets:   prometheus.DefBuckets,
		},
	)

	availabilityQueries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "availability_queries_total",
			Help:      "Count of availability queries by outcome.",
		},
		[]string{"result"},
	)

	statusChanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_status_changes_total",
			Help:      "Count of booking status transitions by target status.",
		},
		[]string{"status"},
	)

	confirmations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_confirmations_total",
			Help:      "Count of customer confirmation deliveries by outcome.",
		},
		[]string{"result"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			allocationResult,
			allocationRetries,
			allocationDuration,
			availabilityQueries,
			statusChanges,
			confirmations,
		)
	})
}

func IncAllocation(result string) {
	allocationResult.WithLabelValues(result).Inc()
}

func IncAllocationRetry() {
	allocationRetries.Inc()
}

func ObserveAllocation(started time.Time) {
	allocationDuration.Observe(time.Since(started).Seconds())
}

func IncAvailabilityQuery(result string) {
	availabilityQueries.WithLabelValues(result).Inc()
}

func IncStatusChange(status string) {
	statusChanges.WithLabelValues(status).Inc()
}

func IncConfirmation(result string) {
	confirmations.WithLabelValues(result).Inc()
}
