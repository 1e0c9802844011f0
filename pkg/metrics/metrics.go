package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the orchestrator's prometheus metrics
type Metrics struct {
	ExecutionsStarted      prometheus.Counter
	ExecutionsCompleted    prometheus.Counter
	ExecutionsFailed       prometheus.Counter
	NotificationsPublished *prometheus.CounterVec
	GeneratorFallbacks     prometheus.Counter
	EventsIngested         *prometheus.CounterVec
	ExecutionDuration      prometheus.Histogram
}

// New registers the orchestrator metrics on the given registerer. Tests
// pass a fresh prometheus.NewRegistry so suites do not collide.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ExecutionsStarted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "executions_started_total",
			Help:      "The total number of workflow executions started",
		}),
		ExecutionsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "executions_completed_total",
			Help:      "The total number of workflow executions completed successfully",
		}),
		ExecutionsFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "executions_failed_total",
			Help:      "The total number of workflow executions that ended in terminal failure",
		}),
		NotificationsPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_published_total",
			Help:      "The total number of notification events published, by channel",
		}, []string{"channel"}),
		GeneratorFallbacks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generator_fallbacks_total",
			Help:      "The total number of message generations that fell back to templates",
		}),
		EventsIngested: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_ingested_total",
			Help:      "The total number of operational events classified and published, by detail type",
		}, []string{"detail_type"}),
		ExecutionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "execution_duration_seconds",
			Help:      "Time taken to run a workflow execution to completion",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}
