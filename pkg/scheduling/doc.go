/*
Package scheduling holds the execution primitives underneath the task chain.

  - workerpool: fixed-size pool with a FIFO queue, graceful and forced shutdown
  - scheduler: heap timer handing one-shot, fixed-rate and cron entries to a pool

Worker Pool:

The worker pool runs tasks on a fixed number of goroutines:

	pool := workerpool.New(4)
	defer func() { <-pool.Shutdown() }()

	task := workerpool.TaskFunc(func(ctx context.Context) error {
		// Do work
		return nil
	})

	pool.Submit(task)

ShutdownNow abandons queued tasks, cancels the context of running ones and
returns what never started.

Task Scheduler:

The scheduler hands entries to a pool when they are due:

	sched := scheduler.NewWithConfig(scheduler.Config{WorkerPool: pool})
	sched.Start()
	defer func() { <-sched.Stop() }()

	// One-time task
	sched.ScheduleAfter("reminder", task, time.Minute)

	// Fixed-rate task, next firing computed from the previous scheduled time
	sched.ScheduleFixedRate("heartbeat", task, 0, 10*time.Second)

	// Cron-style scheduling
	sched.ScheduleCron("report", "0 0 9 * * MON-FRI", task) // Weekdays at 9 AM

Drain stops repeating entries and lets pending one-shot entries fire; Stop
discards everything.

All scheduling components are thread-safe and integrate with context
for cancellation and timeout handling.
*/
package scheduling
