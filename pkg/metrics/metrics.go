// Package metrics provides Prometheus instrumentation for taskchain components.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds all metric instances for taskchain components.
type Registry struct {
	// Worker Pool Metrics
	WorkerPoolSize     *prometheus.GaugeVec
	WorkerPoolActive   *prometheus.GaugeVec
	WorkerPoolQueued   *prometheus.GaugeVec
	PoolTasksSubmitted *prometheus.CounterVec
	PoolTasksCompleted *prometheus.CounterVec
	PoolTaskDuration   *prometheus.HistogramVec

	// Timer Metrics
	TimerEntries *prometheus.GaugeVec
	TimerFirings *prometheus.CounterVec

	// Executor Metrics
	Submissions      *prometheus.CounterVec
	SubmitRejected   *prometheus.CounterVec
	TaskOutcomes     *prometheus.CounterVec
	TaskRunDuration  *prometheus.HistogramVec
	TasksNeverRun    *prometheus.CounterVec
	LifecycleChanges *prometheus.CounterVec

	// Chain Metrics
	ChainRejected  *prometheus.CounterVec
	Notifications  *prometheus.CounterVec
	RegistryLength *prometheus.GaugeVec
}

// DefaultRegistry is the default metrics registry used by taskchain components.
var DefaultRegistry *Registry

func init() {
	DefaultRegistry = NewRegistry(prometheus.DefaultRegisterer)
}

// NewRegistry creates a new metrics registry with the given Prometheus registerer.
func NewRegistry(reg prometheus.Registerer) *Registry {
	return NewRegistryWithConfig(Config{Registry: reg})
}

// NewRegistryWithConfig creates a metrics registry honoring the namespace and
// constant labels of config.
func NewRegistryWithConfig(config Config) *Registry {
	if config.Registry == nil {
		config.Registry = prometheus.DefaultRegisterer
	}
	if config.Namespace == "" {
		config.Namespace = DefaultNamespace
	}
	factory := promauto.With(config.Registry)
	ns, labels := config.Namespace, config.Labels

	return &Registry{
		// Worker Pool Metrics
		WorkerPoolSize: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   ns,
				Subsystem:   "workerpool",
				Name:        "size",
				Help:        "Current worker pool size",
				ConstLabels: labels,
			},
			[]string{"pool_name"},
		),

		WorkerPoolActive: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   ns,
				Subsystem:   "workerpool",
				Name:        "active_workers",
				Help:        "Number of workers currently running a task",
				ConstLabels: labels,
			},
			[]string{"pool_name"},
		),

		WorkerPoolQueued: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   ns,
				Subsystem:   "workerpool",
				Name:        "queued_tasks",
				Help:        "Number of tasks waiting for a worker",
				ConstLabels: labels,
			},
			[]string{"pool_name"},
		),

		PoolTasksSubmitted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "workerpool",
				Name:        "tasks_submitted_total",
				Help:        "Total number of tasks submitted to the pool",
				ConstLabels: labels,
			},
			[]string{"pool_name"},
		),

		PoolTasksCompleted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "workerpool",
				Name:        "tasks_completed_total",
				Help:        "Total number of pool tasks finished, by status",
				ConstLabels: labels,
			},
			[]string{"pool_name", "status"},
		),

		PoolTaskDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace:   ns,
				Subsystem:   "workerpool",
				Name:        "task_duration_seconds",
				Help:        "Time spent executing pool tasks",
				Buckets:     prometheus.DefBuckets,
				ConstLabels: labels,
			},
			[]string{"pool_name"},
		),

		// Timer Metrics
		TimerEntries: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   ns,
				Subsystem:   "scheduler",
				Name:        "entries",
				Help:        "Number of armed timer entries",
				ConstLabels: labels,
			},
			[]string{"scheduler_name"},
		),

		TimerFirings: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "scheduler",
				Name:        "firings_total",
				Help:        "Total number of timer firings",
				ConstLabels: labels,
			},
			[]string{"scheduler_name"},
		),

		// Executor Metrics
		Submissions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "executor",
				Name:        "submissions_total",
				Help:        "Total number of accepted submissions, by mode",
				ConstLabels: labels,
			},
			[]string{"executor_name", "mode"},
		),

		SubmitRejected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "executor",
				Name:        "rejected_total",
				Help:        "Total number of submissions rejected after shutdown",
				ConstLabels: labels,
			},
			[]string{"executor_name", "mode"},
		),

		TaskOutcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "executor",
				Name:        "task_outcomes_total",
				Help:        "Total number of task runs, by mode and final state",
				ConstLabels: labels,
			},
			[]string{"executor_name", "mode", "state"},
		),

		TaskRunDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace:   ns,
				Subsystem:   "executor",
				Name:        "task_duration_seconds",
				Help:        "Time spent running task bodies",
				Buckets:     prometheus.DefBuckets,
				ConstLabels: labels,
			},
			[]string{"executor_name", "mode"},
		),

		TasksNeverRun: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "executor",
				Name:        "tasks_never_run_total",
				Help:        "Total number of tasks drained by a forced shutdown before starting",
				ConstLabels: labels,
			},
			[]string{"executor_name"},
		),

		LifecycleChanges: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "executor",
				Name:        "lifecycle_transitions_total",
				Help:        "Total number of lifecycle transitions, by target state",
				ConstLabels: labels,
			},
			[]string{"executor_name", "state"},
		),

		// Chain Metrics
		ChainRejected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "chain",
				Name:        "rejected_total",
				Help:        "Total number of chain operations turned into no-ops",
				ConstLabels: labels,
			},
			[]string{"chain_name", "operation"},
		),

		Notifications: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "chain",
				Name:        "notifications_total",
				Help:        "Total number of failure events broadcast to listeners",
				ConstLabels: labels,
			},
			[]string{"chain_name", "event"},
		),

		RegistryLength: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   ns,
				Subsystem:   "chain",
				Name:        "registered_futures",
				Help:        "Number of futures waiting to be retrieved",
				ConstLabels: labels,
			},
			[]string{"chain_name", "registry"},
		),
	}
}
