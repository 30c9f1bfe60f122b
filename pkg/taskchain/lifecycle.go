package taskchain

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	tcerrors "github.com/vnykmshr/taskchain/pkg/common/errors"
	"github.com/vnykmshr/taskchain/pkg/task"
)

// Shutdown stops accepting work. Queued and delayed one-shot tasks still
// run; periodic and cron schedules are cancelled. It does not block.
func (c *TaskChain) Shutdown() {
	c.logger.Info("shutdown requested")
	c.exec.Shutdown()
}

// ShutdownNow stops accepting work, cancels running tasks and returns the
// tasks that were queued or scheduled but never started.
func (c *TaskChain) ShutdownNow() []task.Task {
	drained := c.exec.ShutdownNow()
	c.logger.Info("shutdown forced", zap.Int("never_run", len(drained)))
	return drained
}

// ShutdownTimeout requests a graceful shutdown and waits up to timeout for
// it to finish. If the wait times out, or the chain context is cancelled
// while waiting, it escalates to ShutdownNow and returns the tasks that
// never started. An interrupted wait is also reported to listeners with a
// nil task.
func (c *TaskChain) ShutdownTimeout(timeout time.Duration) []task.Task {
	drained, err := c.exec.ShutdownTimeout(c.ctx, timeout)
	switch {
	case err == nil:
		c.logger.Info("shutdown complete")
	case errors.Is(err, tcerrors.ErrInterrupted):
		c.logger.Warn("shutdown wait interrupted", zap.Int("never_run", len(drained)), zap.Error(err))
		c.hub.NotifyInterrupted(nil, err)
	default:
		c.logger.Warn("shutdown timed out", zap.Duration("timeout", timeout), zap.Int("never_run", len(drained)))
	}
	return drained
}

// AwaitTermination blocks until shutdown has completed or ctx is done, and
// reports whether the chain terminated.
func (c *TaskChain) AwaitTermination(ctx context.Context) bool {
	return c.exec.AwaitTermination(ctx)
}

// IsShutdown reports whether a shutdown has been requested.
func (c *TaskChain) IsShutdown() bool { return c.exec.IsShutdown() }

// IsTerminated reports whether shutdown has completed.
func (c *TaskChain) IsTerminated() bool { return c.exec.IsTerminated() }
