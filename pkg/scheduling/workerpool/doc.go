/*
Package workerpool provides the fixed-size worker pool that runs every task
of a chain.

A pool owns a fixed number of worker goroutines fed from an unbounded FIFO
queue, so Submit never blocks the caller. The queueing itself is delegated to
github.com/gammazero/workerpool; this package adds context propagation,
panic recovery, counters and a forced shutdown that reports exactly which
tasks never started.

Basic usage:

	pool := workerpool.New(4)
	defer func() { <-pool.Shutdown() }()

	task := workerpool.TaskFunc(func(ctx context.Context) error {
		// Do work
		return nil
	})

	if err := pool.Submit(task); err != nil {
		log.Printf("Failed to submit: %v", err)
	}

Task Interface:

Tasks implement a simple interface:

	type Task interface {
		Execute(ctx context.Context) error
	}

The TaskFunc type provides a convenient way to create tasks from functions.

Configuration Options:

	config := workerpool.Config{
		WorkerCount: 8,
		TaskTimeout: 30 * time.Second,
		OnTaskComplete: func(r workerpool.Result) {
			if r.Error != nil {
				log.Printf("task failed after %v: %v", r.Duration, r.Error)
			}
		},
	}
	pool := workerpool.NewWithConfig(config)

Shutdown:

Shutdown stops accepting work and lets the queue drain; the returned channel
closes once all workers have exited. ShutdownNow abandons the queue, cancels
the context of running tasks and returns the abandoned tasks in submission
order. A task is either returned by ShutdownNow or executed, never both.

Submissions after either call fail with errors.ErrShutdown.

Metrics:

NewWithConfigAndMetrics and NewWithRegistry return a MetricsPool that
records pool size, active workers, queue length, submissions, completions
and task durations into a metrics.Registry.
*/
package workerpool
