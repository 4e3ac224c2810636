package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Renewal scheduler metrics
	RenewalsAdvanced        prometheus.Counter
	PrescriptionsMarkedLate prometheus.Counter
	CyclesExpired           prometheus.Counter
	SchedulerPassErrors     *prometheus.CounterVec
	SchedulerTickDuration   prometheus.Histogram

	// Outbox related metrics
	OutboxEventsProcessed   prometheus.Counter
	OutboxEventsFailed      prometheus.Counter
	OutboxProcessingLatency prometheus.Histogram

	// Database metrics
	DatabaseOperations *prometheus.CounterVec
}

// New creates and registers all application metrics under the given namespace.
func New(namespace string) *Metrics {
	return &Metrics{
		RenewalsAdvanced: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "renewals_advanced_total",
			Help:      "Total number of renewal cycles opened by the scheduler",
		}),
		PrescriptionsMarkedLate: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prescriptions_marked_late_total",
			Help:      "Total number of single prescriptions promoted to late",
		}),
		CyclesExpired: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_expired_total",
			Help:      "Total number of pending cycles expired to late",
		}),
		SchedulerPassErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduler_pass_errors_total",
			Help:      "Per-record failures caught during a scheduler pass",
		}, []string{"pass"}),
		SchedulerTickDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scheduler_tick_duration_seconds",
			Help:      "Time spent running one full scheduler tick",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}),

		OutboxEventsProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_events_processed_total",
			Help:      "Total number of successfully published outbox events",
		}),
		OutboxEventsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_events_failed_total",
			Help:      "Total number of outbox events that failed publishing",
		}),
		OutboxProcessingLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "outbox_processing_duration_seconds",
			Help:      "Time spent processing outbox batches",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}),

		DatabaseOperations: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "database_operations_total",
			Help:      "Total number of database operations",
		}, []string{"operation", "status"}),
	}
}
