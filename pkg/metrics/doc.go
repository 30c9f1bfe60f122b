// Package metrics provides Prometheus instrumentation for taskchain components.
//
// # Overview
//
// The metrics package instruments:
//   - Worker pools (pool size, active workers, queued and completed tasks)
//   - The timer facility (armed entries, firings)
//   - The executor (submissions by mode, rejections, task outcomes, drained tasks)
//   - Task chains (no-op operations, broadcast failure events, registry sizes)
//
// # Quick Start
//
// Metrics are recorded when a component is given a Registry:
//
//	chain := taskchain.NewWithConfig(taskchain.Config{
//		PoolSize: 4,
//		Metrics:  metrics.DefaultConfig(),
//	})
//
// Then expose metrics via HTTP:
//
//	http.Handle("/metrics", promhttp.Handler())
//	log.Fatal(http.ListenAndServe(":8080", nil))
//
// # Custom Registry
//
// Use a custom Prometheus registry for isolation, for example in tests or
// when several chains live in one process:
//
//	reg := prometheus.NewRegistry()
//	m := metrics.NewRegistryWithConfig(metrics.Config{
//		Enabled:  true,
//		Registry: reg,
//		Labels:   prometheus.Labels{"service": "billing"},
//	})
//
// A collector can only be registered once per registerer, so create one
// Registry per registerer and share it between components.
//
// # Available Metrics
//
// ## Worker Pool Metrics
//
//   - taskchain_workerpool_size: Current worker pool size
//   - taskchain_workerpool_active_workers: Number of workers currently running a task
//   - taskchain_workerpool_queued_tasks: Number of tasks waiting for a worker
//   - taskchain_workerpool_tasks_submitted_total: Tasks submitted to the pool
//   - taskchain_workerpool_tasks_completed_total: Tasks finished, by status
//   - taskchain_workerpool_task_duration_seconds: Time spent executing pool tasks
//
// ## Timer Metrics
//
//   - taskchain_scheduler_entries: Number of armed timer entries
//   - taskchain_scheduler_firings_total: Total number of timer firings
//
// ## Executor Metrics
//
//   - taskchain_executor_submissions_total: Accepted submissions, by mode
//   - taskchain_executor_rejected_total: Submissions rejected after shutdown
//   - taskchain_executor_task_outcomes_total: Task runs by mode and final state
//   - taskchain_executor_task_duration_seconds: Time spent running task bodies
//   - taskchain_executor_tasks_never_run_total: Tasks drained by a forced shutdown
//   - taskchain_executor_lifecycle_transitions_total: Lifecycle transitions
//
// ## Chain Metrics
//
//   - taskchain_chain_rejected_total: Chain operations turned into no-ops
//   - taskchain_chain_notifications_total: Failure events broadcast to listeners
//   - taskchain_chain_registered_futures: Futures waiting to be retrieved
//
// # Labels
//
// Every metric carries the component name label (pool_name, scheduler_name,
// executor_name or chain_name) so several instances can share a registry.
package metrics
