// Package notify broadcasts task failures to registered listeners.
//
// Three events exist: an interrupted wait, a failed execution and a timed
// out wait. Each carries the error and the task that caused it; pool-wide
// events such as an interrupted shutdown carry a nil task.
//
// Listeners run on whichever goroutine detected the failure, usually a pool
// worker, so they should return quickly. Embed ListenerAdapter or use
// ListenerFuncs to handle only some events:
//
//	hub.Subscribe(&notify.ListenerFuncs{
//		Timeout: func(err error, t task.Task) {
//			log.Printf("%s timed out: %v", t.Name(), err)
//		},
//	})
package notify
