package workerpool

import (
	"context"
	"runtime/debug"
	"sort"
	"time"

	"go.uber.org/zap"

	tcerrors "github.com/vnykmshr/taskchain/pkg/common/errors"
)

// Submit adds a task to the pool for execution.
// The task will be executed with context.Background().
// Use SubmitWithContext to provide a custom context.
func (p *workerPool) Submit(task Task) error {
	return p.SubmitWithContext(context.Background(), task)
}

// SubmitWithContext adds a task to the pool for execution with the given context.
// The context is passed to the task's Execute method, enabling timeout and
// cancellation propagation. If the pool has a TaskTimeout configured, the
// effective timeout will be the minimum of the context deadline and TaskTimeout.
func (p *workerPool) SubmitWithContext(ctx context.Context, task Task) error {
	if task == nil {
		return tcerrors.ErrNilTask
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.isShutdown {
		return tcerrors.ErrShutdown
	}

	s := &slot{task: task, ctx: ctx, submitted: time.Now()}
	p.pendingMu.Lock()
	p.nextSeq++
	s.seq = p.nextSeq
	p.pending[s.seq] = s
	p.pendingMu.Unlock()

	p.totalSubmitted.Add(1)
	p.wp.Submit(func() { p.run(s) })
	return nil
}

// Shutdown initiates a graceful shutdown of the pool.
func (p *workerPool) Shutdown() <-chan struct{} {
	p.markShutdown()
	p.stop(true)
	return p.done
}

// ShutdownNow abandons queued tasks and cancels running ones.
func (p *workerPool) ShutdownNow() []Task {
	p.markShutdown()

	p.pendingMu.Lock()
	drained := make([]*slot, 0, len(p.pending))
	for seq, s := range p.pending {
		if s.claimed.CompareAndSwap(false, true) {
			drained = append(drained, s)
			delete(p.pending, seq)
		}
	}
	p.pendingMu.Unlock()

	p.runCancel()
	p.stop(false)

	sort.Slice(drained, func(i, j int) bool { return drained[i].seq < drained[j].seq })
	tasks := make([]Task, len(drained))
	for i, s := range drained {
		tasks[i] = s.task
	}
	return tasks
}

func (p *workerPool) markShutdown() {
	p.mu.Lock()
	p.isShutdown = true
	p.mu.Unlock()
}

// stop runs exactly once. A graceful stop drains the queue; queued slots
// already claimed by ShutdownNow return immediately when reached.
func (p *workerPool) stop(wait bool) {
	p.stopOnce.Do(func() {
		go func() {
			if wait {
				p.wp.StopWait()
			} else {
				p.wp.Stop()
			}
			p.runCancel()
			close(p.done)
		}()
	})
}

// Done returns a channel that closes once the pool has terminated.
func (p *workerPool) Done() <-chan struct{} {
	return p.done
}

// IsShutdown reports whether the pool stopped accepting tasks.
func (p *workerPool) IsShutdown() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.isShutdown
}

// Size returns the number of workers in the pool.
func (p *workerPool) Size() int {
	return p.config.WorkerCount
}

// QueueSize returns the current number of queued tasks waiting for execution.
func (p *workerPool) QueueSize() int {
	p.pendingMu.Lock()
	defer p.pendingMu.Unlock()
	return len(p.pending)
}

// ActiveWorkers returns the number of workers currently executing tasks.
func (p *workerPool) ActiveWorkers() int {
	return int(p.activeWorkers.Load())
}

// TotalSubmitted returns the total number of tasks submitted to the pool.
func (p *workerPool) TotalSubmitted() int64 {
	return p.totalSubmitted.Load()
}

// TotalCompleted returns the total number of tasks completed by the pool.
func (p *workerPool) TotalCompleted() int64 {
	return p.totalCompleted.Load()
}

// run is called on a gammazero worker for every submitted slot.
func (p *workerPool) run(s *slot) {
	if !s.claimed.CompareAndSwap(false, true) {
		return
	}
	p.pendingMu.Lock()
	delete(p.pending, s.seq)
	p.pendingMu.Unlock()

	p.activeWorkers.Add(1)
	defer p.activeWorkers.Add(-1)

	p.executeTask(s)
}

// executeTask executes a single task with the provided context.
func (p *workerPool) executeTask(s *slot) {
	start := time.Now()
	var err error

	// Handle panics during task execution
	defer func() {
		if r := recover(); r != nil {
			if p.config.PanicHandler != nil {
				p.config.PanicHandler(s.task, r)
			} else {
				stack := debug.Stack()
				p.logger.Error("task panicked", zap.Any("panic", r), zap.ByteString("stack", stack))
				err = tcerrors.NewPanicError("", r, stack)
			}
		}

		p.totalCompleted.Add(1)
		if p.config.OnTaskComplete != nil {
			p.config.OnTaskComplete(Result{
				Task:     s.task,
				Error:    err,
				Duration: time.Since(start),
				Waited:   start.Sub(s.submitted),
			})
		}
	}()

	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	stop := context.AfterFunc(p.runCtx, cancel)
	defer stop()

	// Apply TaskTimeout if configured
	// The effective timeout is the minimum of the context deadline and TaskTimeout
	if p.config.TaskTimeout > 0 {
		var tcancel context.CancelFunc
		ctx, tcancel = context.WithTimeout(ctx, p.config.TaskTimeout)
		defer tcancel()
	}

	if p.config.OnTaskStart != nil {
		p.config.OnTaskStart(s.task)
	}

	err = s.task.Execute(ctx)
}
