// Package task defines the units of work accepted by a task chain.
//
// A Runnable only has side effects; a Callable produces a value. Both are
// created through constructors that assign a random ID, and the ID is the
// task's identity everywhere else in the library: registries, futures,
// listener events and the set returned by a forced shutdown. Wrapping the
// same function twice yields two distinct tasks.
//
//	ping := task.NewNamedRunnable("ping", func(ctx context.Context) error {
//		return client.Ping(ctx)
//	})
//	flaky := task.Retry(ping, task.DefaultRetryPolicy())
package task
