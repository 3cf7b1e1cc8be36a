package workflow

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the worker pool's Prometheus instrumentation, grounded on
// the spec's per-activity processed/succeeded/failed counters (spec §4.6)
// rather than on the teacher's in-memory WorkerMetrics struct, since this
// component needs Prometheus-scrapeable counters instead.
type Metrics struct {
	ActivitiesProcessed *prometheus.CounterVec
	ActivitiesSucceeded *prometheus.CounterVec
	ActivitiesFailed    *prometheus.CounterVec
	ActivityDuration    *prometheus.HistogramVec
	WorkflowsCompleted  prometheus.Counter
	WorkflowsFailed     prometheus.Counter
	ActiveWorkers       prometheus.Gauge
}

// NewMetrics registers the worker pool's metrics against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ActivitiesProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "transcribe_core",
			Subsystem: "workflow",
			Name:      "activities_processed_total",
			Help:      "Total activity executions attempted, by activity name.",
		}, []string{"activity"}),
		ActivitiesSucceeded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "transcribe_core",
			Subsystem: "workflow",
			Name:      "activities_succeeded_total",
			Help:      "Total activity executions that succeeded, by activity name.",
		}, []string{"activity"}),
		ActivitiesFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "transcribe_core",
			Subsystem: "workflow",
			Name:      "activities_failed_total",
			Help:      "Total activity executions that failed, by activity name and failure kind.",
		}, []string{"activity", "kind"}),
		ActivityDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "transcribe_core",
			Subsystem: "workflow",
			Name:      "activity_duration_seconds",
			Help:      "Activity execution duration in seconds, by activity name.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 14),
		}, []string{"activity"}),
		WorkflowsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "transcribe_core",
			Subsystem: "workflow",
			Name:      "workflows_completed_total",
			Help:      "Total workflows that reached the completed state.",
		}),
		WorkflowsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "transcribe_core",
			Subsystem: "workflow",
			Name:      "workflows_failed_total",
			Help:      "Total workflows that reached the failed state.",
		}),
		ActiveWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "transcribe_core",
			Subsystem: "workflow",
			Name:      "active_workers",
			Help:      "Number of worker pool slots currently executing a workflow.",
		}),
	}

	reg.MustRegister(
		m.ActivitiesProcessed,
		m.ActivitiesSucceeded,
		m.ActivitiesFailed,
		m.ActivityDuration,
		m.WorkflowsCompleted,
		m.WorkflowsFailed,
		m.ActiveWorkers,
	)
	return m
}
