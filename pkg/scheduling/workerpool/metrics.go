package workerpool

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vnykmshr/taskchain/pkg/metrics"
)

// MetricsPool wraps a worker Pool with Prometheus metrics collection.
type MetricsPool struct {
	pool     Pool
	name     string
	registry *metrics.Registry
}

// NewWithMetrics creates a new worker pool with metrics enabled.
func NewWithMetrics(workerCount int, name string) Pool {
	// Use a separate registry for each metrics-enabled component to avoid conflicts
	registry := prometheus.NewRegistry()
	config := metrics.Config{
		Enabled:  true,
		Registry: registry,
	}

	return NewWithConfigAndMetrics(Config{
		WorkerCount: workerCount,
	}, name, config)
}

// NewWithConfigAndMetrics creates a new worker pool with custom config and metrics.
func NewWithConfigAndMetrics(config Config, name string, metricsConfig metrics.Config) Pool {
	registry := metrics.Resolve(metricsConfig)
	if registry == nil {
		return NewWithConfig(config)
	}
	return NewWithRegistry(config, name, registry)
}

// NewWithRegistry creates a metrics-enabled pool recording into an existing
// registry. Several components can share one registry this way.
func NewWithRegistry(config Config, name string, registry *metrics.Registry) Pool {
	mp := &MetricsPool{
		name:     name,
		registry: registry,
	}

	onComplete := config.OnTaskComplete
	config.OnTaskComplete = func(result Result) {
		mp.observe(result)
		if onComplete != nil {
			onComplete(result)
		}
	}
	mp.pool = NewWithConfig(config)

	// Initialize metrics
	mp.updateMetrics()

	return mp
}

// updateMetrics updates the current state metrics.
func (mp *MetricsPool) updateMetrics() {
	mp.registry.WorkerPoolSize.WithLabelValues(mp.name).Set(float64(mp.pool.Size()))
	mp.registry.WorkerPoolActive.WithLabelValues(mp.name).Set(float64(mp.pool.ActiveWorkers()))
	mp.registry.WorkerPoolQueued.WithLabelValues(mp.name).Set(float64(mp.pool.QueueSize()))
}

func (mp *MetricsPool) observe(result Result) {
	status := "success"
	if result.Error != nil {
		status = "error"
	}
	mp.registry.PoolTaskDuration.WithLabelValues(mp.name).Observe(result.Duration.Seconds())
	mp.registry.PoolTasksCompleted.WithLabelValues(mp.name, status).Inc()

	// The finishing worker is still counted as active here.
	mp.registry.WorkerPoolActive.WithLabelValues(mp.name).Set(float64(mp.pool.ActiveWorkers() - 1))
	mp.registry.WorkerPoolQueued.WithLabelValues(mp.name).Set(float64(mp.pool.QueueSize()))
}

// Submit adds a task to the pool for execution.
func (mp *MetricsPool) Submit(task Task) error {
	return mp.SubmitWithContext(context.Background(), task)
}

// SubmitWithContext submits a task with a context for cancellation.
func (mp *MetricsPool) SubmitWithContext(ctx context.Context, task Task) error {
	err := mp.pool.SubmitWithContext(ctx, task)
	if err == nil {
		mp.registry.PoolTasksSubmitted.WithLabelValues(mp.name).Inc()
	}
	mp.updateMetrics()
	return err
}

// Shutdown initiates graceful shutdown of the pool.
func (mp *MetricsPool) Shutdown() <-chan struct{} {
	return mp.pool.Shutdown()
}

// ShutdownNow abandons queued tasks and returns them.
func (mp *MetricsPool) ShutdownNow() []Task {
	tasks := mp.pool.ShutdownNow()
	mp.updateMetrics()
	return tasks
}

// Done returns a channel that closes once the pool has terminated.
func (mp *MetricsPool) Done() <-chan struct{} {
	return mp.pool.Done()
}

// IsShutdown reports whether the pool stopped accepting tasks.
func (mp *MetricsPool) IsShutdown() bool {
	return mp.pool.IsShutdown()
}

// Size returns the current number of workers.
func (mp *MetricsPool) Size() int {
	return mp.pool.Size()
}

// QueueSize returns the current number of queued tasks.
func (mp *MetricsPool) QueueSize() int {
	queueSize := mp.pool.QueueSize()
	mp.registry.WorkerPoolQueued.WithLabelValues(mp.name).Set(float64(queueSize))
	return queueSize
}

// ActiveWorkers returns the number of workers currently executing tasks.
func (mp *MetricsPool) ActiveWorkers() int {
	activeWorkers := mp.pool.ActiveWorkers()
	mp.registry.WorkerPoolActive.WithLabelValues(mp.name).Set(float64(activeWorkers))
	return activeWorkers
}

// TotalSubmitted returns the total number of tasks submitted.
func (mp *MetricsPool) TotalSubmitted() int64 {
	return mp.pool.TotalSubmitted()
}

// TotalCompleted returns the total number of tasks completed.
func (mp *MetricsPool) TotalCompleted() int64 {
	return mp.pool.TotalCompleted()
}

// Registry returns the metrics registry the pool records into.
func (mp *MetricsPool) Registry() *metrics.Registry {
	return mp.registry
}

// Name returns the pool_name label value.
func (mp *MetricsPool) Name() string {
	return mp.name
}

