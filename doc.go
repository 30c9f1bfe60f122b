/*
Package taskchain provides a fluent API for running chains of tasks on a
shared, bounded worker pool.

Chain Controller (pkg/taskchain):
  - AsyncRun, AsyncCall: submit now, optionally with callbacks
  - SyncRun, SyncRunTimeout: block the caller until done or timed out
  - TimerAsyncRun, TimerSyncRun: run once after a delay
  - ScheduleAsyncRun, ScheduleCronRun: fixed-rate and cron repeats
  - Shutdown, ShutdownNow, ShutdownTimeout: graceful and forced termination

Building Blocks:
  - task: runnable and callable tasks with generated identities, retries
  - future: result handles with blocking and bounded waits
  - executor: immediate, delayed, periodic and cron submission with tracing
  - registry: insertion-ordered, take-once future registries
  - notify: failure listeners, a zap log listener and a Redis publisher
  - scheduling/workerpool, scheduling/scheduler: the pool and the timer
  - metrics: Prometheus instrumentation

Example usage:

	import (
		"github.com/vnykmshr/taskchain/pkg/notify"
		"github.com/vnykmshr/taskchain/pkg/taskchain"
	)

	chain := taskchain.New(4).AddListener(notify.NewLogListener(logger))
	chain.
		AsyncRun(fetch, store).
		SyncRunTimeout(report, 10*time.Second).
		ScheduleAsyncRun(heartbeat, 0, time.Minute)

	never := chain.ShutdownTimeout(30 * time.Second)
*/
package taskchain
