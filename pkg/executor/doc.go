// Package executor runs tasks on a fixed pool of workers, either right away,
// after a delay, at a fixed rate or on a cron schedule.
//
// Every accepted submission returns a *future.Future. One-shot futures
// settle when the task returns. Periodic and cron futures stay Running
// across firings and only settle when cancelled, when a firing fails, or
// when the executor shuts down. Firings of one periodic task may overlap
// when a run outlasts its interval.
//
// Shutdown is graceful: queued and delayed one-shot tasks still run while
// repeating schedules are cancelled. ShutdownNow discards everything that
// has not started, cancels the context of running tasks and returns the
// tasks that never ran.
//
//	exec := executor.New(4)
//	fut, err := exec.SubmitAfter(task.NewRunnable(flush), time.Second)
//	if err != nil {
//		return err
//	}
//	_, err = fut.Get(ctx)
//	exec.Shutdown()
//
// Each run is wrapped in an OpenTelemetry span, and when a metrics.Registry
// is configured the pool, the timer and the executor record into it.
package executor
