// Package taskchain is a fluent facade for running work on a shared worker
// pool.
//
// Callers chain asynchronous, synchronous, delayed and periodic runs:
//
//	chain := taskchain.New(4).AddListener(notify.NewLogListener(logger))
//	chain.
//		AsyncRun(fetch, store).
//		SyncRunTimeout(migrate, 30*time.Second).
//		TimerAsyncRun(warmCache, time.Minute).
//		ScheduleAsyncRun(heartbeat, 0, 10*time.Second)
//
// Every operation returns the chain, so a long sequence never stops on one
// bad argument. An invalid argument or a submission after shutdown turns
// the operation into a no-op that is logged at debug level, counted and
// passed to Config.OnReject.
//
// Failures are not returned either. Execution failures, timeouts and
// interrupted waits are delivered to the subscribed notify.Listener values
// in subscription order. With no listener they are dropped.
//
// Value-producing tasks submitted with AsyncCall, and the periodic tasks
// started by ScheduleAsyncRun and ScheduleCronRun, keep their future in a
// registry until GetFuture takes it out.
//
// Synchronous waits are bounded by the chain context. WithContext returns
// a view whose waits end when the given context is cancelled; the wait is
// then reported as interrupted and the task keeps running.
package taskchain
