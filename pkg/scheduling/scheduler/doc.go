/*
Package scheduler provides the timer facility behind delayed and periodic
task submission.

A scheduler holds entries in a min-heap ordered by due time and a single
goroutine sleeps until the earliest one is due. Due tasks are handed to a
workerpool.Pool; the scheduler never runs task bodies itself.

Basic Usage:

	s := scheduler.NewWithConfig(scheduler.Config{WorkerPool: pool})
	defer func() { <-s.Stop() }()
	s.Start()

	task := workerpool.TaskFunc(func(ctx context.Context) error {
		fmt.Println("Task executed!")
		return nil
	})

	// Schedule a one-time task
	s.ScheduleAfter("warmup", task, time.Second)

	// Every 30 seconds, first run after 5 seconds
	s.ScheduleFixedRate("report", task, 5*time.Second, 30*time.Second)

	// Cron expressions carry a seconds field; descriptors are accepted
	s.ScheduleCron("nightly", "0 0 2 * * *", task)
	s.ScheduleCron("heartbeat", "@every 10s", task)

Fixed-Rate Semantics:

Each repeat is computed from the previous scheduled time, not from when the
previous run finished. When the process stalls or the pool is saturated,
overdue firings are caught up back to back and the long-run rate is kept.
Firings of the same entry may overlap in the pool; serializing them is left
to the task.

Shutdown:

Drain stops accepting entries and cancels repeating ones; one-shot entries
still fire at their time and the returned channel closes once the last has
been handed to the pool. Stop discards everything at once.
*/
package scheduler
