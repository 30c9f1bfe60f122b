// Package future provides the handle returned for every submission.
//
// A Future starts Pending, moves to Running when a worker picks it up, and
// ends in exactly one of Completed, Failed, Cancelled or TimedOut. Waiters
// use Get or GetTimeout with a context. Cancelling the waiter's context or
// letting a bounded wait expire abandons the wait without touching the task;
// Timeout marks the future TimedOut and cancels the task's own context.
//
//	f := future.New(ctx, t)
//	if f.Start() {
//		f.Complete(t.Call(f.Context()))
//	}
//	v, err := f.GetTimeout(ctx, time.Second)
package future
