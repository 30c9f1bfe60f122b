package taskchain

import (
	"context"
	"errors"
	"runtime/debug"
	"time"

	"go.uber.org/zap"

	tcerrors "github.com/vnykmshr/taskchain/pkg/common/errors"
	"github.com/vnykmshr/taskchain/pkg/common/validation"
	"github.com/vnykmshr/taskchain/pkg/executor"
	"github.com/vnykmshr/taskchain/pkg/future"
	"github.com/vnykmshr/taskchain/pkg/metrics"
	"github.com/vnykmshr/taskchain/pkg/notify"
	"github.com/vnykmshr/taskchain/pkg/registry"
	"github.com/vnykmshr/taskchain/pkg/task"
)

// Operation names passed to Config.OnReject and used as metric labels.
const (
	OpAsyncRun            = "AsyncRun"
	OpAsyncCall           = "AsyncCall"
	OpAsyncRunTimeout     = "AsyncRunTimeout"
	OpSyncRun             = "SyncRun"
	OpSyncRunTimeout      = "SyncRunTimeout"
	OpTimerAsyncRun       = "TimerAsyncRun"
	OpTimerSyncRun        = "TimerSyncRun"
	OpTimerSyncRunTimeout = "TimerSyncRunTimeout"
	OpScheduleAsyncRun    = "ScheduleAsyncRun"
	OpScheduleCronRun     = "ScheduleCronRun"
)

// core is the state shared by a chain and every view created by WithContext.
type core struct {
	name     string
	exec     *executor.Executor
	hub      *notify.Hub
	logger   *zap.Logger
	metrics  *metrics.Registry
	onReject func(op string, err error)

	callables *registry.Registry[task.ID, *future.Future]
	runnables *registry.Registry[task.ID, *future.Future]
}

// TaskChain is a fluent facade over a shared worker pool. Every operation
// returns the chain. Invalid arguments and submissions after shutdown turn
// the operation into a no-op reported through Config.OnReject. Task
// failures, timeouts and interruptions are never returned to the caller;
// they are delivered to the subscribed listeners.
type TaskChain struct {
	*core
	ctx context.Context
}

// New creates a chain with poolSize workers; non-positive means
// runtime.NumCPU().
func New(poolSize int) *TaskChain {
	return NewWithConfig(Config{PoolSize: poolSize})
}

// NewWithConfig creates a chain with the given configuration.
func NewWithConfig(cfg Config) *TaskChain {
	cfg.setDefaults()
	reg := metrics.Resolve(cfg.Metrics)
	logger := cfg.Logger.Named("taskchain").With(zap.String("chain", cfg.Name))

	c := &core{
		name:      cfg.Name,
		hub:       notify.NewHub(cfg.Logger),
		logger:    logger,
		metrics:   reg,
		onReject:  cfg.OnReject,
		callables: registry.New[task.ID, *future.Future](),
		runnables: registry.New[task.ID, *future.Future](),
	}
	c.exec = executor.NewWithConfig(executor.Config{
		PoolSize:       cfg.PoolSize,
		Name:           cfg.Name,
		MaxScheduled:   cfg.MaxScheduled,
		Location:       cfg.Location,
		Clock:          cfg.Clock,
		Logger:         cfg.Logger,
		TracerProvider: cfg.TracerProvider,
		Metrics:        reg,
	})
	if reg != nil {
		c.hub.OnEvent = func(ev notify.Event) {
			reg.Notifications.WithLabelValues(c.name, ev.String()).Inc()
		}
	}
	for _, l := range cfg.Listeners {
		c.hub.Subscribe(l)
	}

	logger.Debug("created", zap.Int("workers", c.exec.Size()))
	return &TaskChain{core: c, ctx: cfg.Context}
}

// WithContext returns a view of the chain whose synchronous waits are
// interrupted when ctx is cancelled. The view shares the pool, the
// registries and the listeners.
func (c *TaskChain) WithContext(ctx context.Context) *TaskChain {
	if ctx == nil {
		ctx = context.Background()
	}
	return &TaskChain{core: c.core, ctx: ctx}
}

// Context returns the context bounding the chain's synchronous waits.
func (c *TaskChain) Context() context.Context { return c.ctx }

// Executor exposes the underlying executor.
func (c *TaskChain) Executor() *executor.Executor { return c.exec }

// Metrics returns the metrics registry, or nil when metrics are disabled.
func (c *TaskChain) Metrics() *metrics.Registry { return c.metrics }

// AddListener subscribes l to failure notifications.
func (c *TaskChain) AddListener(l notify.Listener) *TaskChain {
	c.hub.Subscribe(l)
	return c
}

// RemoveListener unsubscribes l.
func (c *TaskChain) RemoveListener(l notify.Listener) *TaskChain {
	c.hub.Unsubscribe(l)
	return c
}

// AsyncRun submits r for immediate execution. Callbacks run in order on the
// same worker once r succeeds. A failure of r or of any callback is
// reported as one execution failure of r.
func (c *TaskChain) AsyncRun(r *task.Runnable, callbacks ...*task.Runnable) *TaskChain {
	if r == nil {
		return c.reject(OpAsyncRun, tcerrors.ErrNilTask)
	}
	f, err := c.exec.SubmitNow(r.Then(callbacks...))
	if err != nil {
		return c.reject(OpAsyncRun, err)
	}
	c.reportFailure(r, f)
	return c
}

// AsyncCall submits a value-producing task for immediate execution. Its
// future is kept until retrieved with GetFuture.
func (c *TaskChain) AsyncCall(t *task.Callable) *TaskChain {
	if t == nil {
		return c.reject(OpAsyncCall, tcerrors.ErrNilTask)
	}
	f, err := c.exec.SubmitNow(t)
	if err != nil {
		return c.reject(OpAsyncCall, err)
	}
	c.register(c.callables, "callable", t.ID(), f)
	return c
}

// AsyncRunTimeout submits r for immediate execution and waits for it on a
// pool worker until timeout has elapsed since the call. On success callback
// runs on that worker. Otherwise the failure, the timeout or the
// interruption is reported and callback is skipped. A timed out task is left
// to finish or stays queued. A non-positive timeout is AsyncRun(r, callback).
func (c *TaskChain) AsyncRunTimeout(r *task.Runnable, timeout time.Duration, callback *task.Runnable) *TaskChain {
	if timeout <= 0 {
		return c.AsyncRun(r, callback)
	}
	if r == nil {
		return c.reject(OpAsyncRunTimeout, tcerrors.ErrNilTask)
	}
	deadline := time.Now().Add(timeout)
	f, err := c.exec.SubmitNow(r)
	if err != nil {
		return c.reject(OpAsyncRunTimeout, err)
	}
	_, err = c.exec.Go("await "+r.Name(), func(ctx context.Context) {
		if c.await(ctx, r, f, deadline) {
			c.runCallback(ctx, callback)
		}
	})
	if err != nil {
		f.Cancel()
		return c.reject(OpAsyncRunTimeout, err)
	}
	return c
}

// SyncRun runs r on the pool and blocks until it finishes or the chain
// context is cancelled.
func (c *TaskChain) SyncRun(r *task.Runnable) *TaskChain {
	return c.syncRun(OpSyncRun, r, time.Time{})
}

// SyncRunTimeout is SyncRun bounded by timeout. When the bound elapses first
// a timeout is reported and the call returns without waiting for the task,
// which keeps running or stays queued. A non-positive timeout is SyncRun(r).
func (c *TaskChain) SyncRunTimeout(r *task.Runnable, timeout time.Duration) *TaskChain {
	if timeout <= 0 {
		return c.SyncRun(r)
	}
	return c.syncRun(OpSyncRunTimeout, r, time.Now().Add(timeout))
}

func (c *TaskChain) syncRun(op string, r *task.Runnable, deadline time.Time) *TaskChain {
	if r == nil {
		return c.reject(op, tcerrors.ErrNilTask)
	}
	f, err := c.exec.SubmitNow(r)
	if err != nil {
		return c.reject(op, err)
	}
	c.await(c.ctx, r, f, deadline)
	return c
}

// TimerAsyncRun runs r once after delay. Non-positive delays are rejected.
func (c *TaskChain) TimerAsyncRun(r *task.Runnable, delay time.Duration) *TaskChain {
	if err := c.checkTimer(r, delay); err != nil {
		return c.reject(OpTimerAsyncRun, err)
	}
	f, err := c.exec.SubmitAfter(r, delay)
	if err != nil {
		return c.reject(OpTimerAsyncRun, err)
	}
	c.reportFailure(r, f)
	return c
}

// TimerSyncRun runs r once after delay and waits for it on a pool worker.
// The caller is not blocked. Non-positive delays are rejected.
func (c *TaskChain) TimerSyncRun(r *task.Runnable, delay time.Duration) *TaskChain {
	return c.timerSyncRun(OpTimerSyncRun, r, delay, time.Time{})
}

// TimerSyncRunTimeout is TimerSyncRun whose wait is bounded by timeout,
// measured from the call so that it includes the delay. An expired wait
// reports a timeout and leaves the task alone. A non-positive timeout is
// TimerSyncRun(r, delay).
func (c *TaskChain) TimerSyncRunTimeout(r *task.Runnable, delay, timeout time.Duration) *TaskChain {
	if timeout <= 0 {
		return c.TimerSyncRun(r, delay)
	}
	return c.timerSyncRun(OpTimerSyncRunTimeout, r, delay, time.Now().Add(timeout))
}

func (c *TaskChain) timerSyncRun(op string, r *task.Runnable, delay time.Duration, deadline time.Time) *TaskChain {
	if err := c.checkTimer(r, delay); err != nil {
		return c.reject(op, err)
	}
	f, err := c.exec.SubmitAfter(r, delay)
	if err != nil {
		return c.reject(op, err)
	}
	// The waiter fires in the same timer pass as the task, right after it.
	_, err = c.exec.GoAfter("await "+r.Name(), delay, func(ctx context.Context) {
		c.await(ctx, r, f, deadline)
	})
	if err != nil {
		f.Cancel()
		return c.reject(op, err)
	}
	return c
}

// ScheduleAsyncRun runs r at a fixed rate, first after delay. The future is
// kept until retrieved with GetFuture. A failed run stops the schedule and
// is reported.
func (c *TaskChain) ScheduleAsyncRun(r *task.Runnable, delay, interval time.Duration) *TaskChain {
	switch {
	case r == nil:
		return c.reject(OpScheduleAsyncRun, tcerrors.ErrNilTask)
	case delay < 0:
		return c.reject(OpScheduleAsyncRun, validation.ValidateNonNegativeDuration("taskchain", "delay", delay))
	case interval <= 0:
		return c.reject(OpScheduleAsyncRun, validation.ValidatePositiveDuration("taskchain", "interval", interval))
	}
	f, err := c.exec.SubmitPeriodic(r, delay, interval)
	if err != nil {
		return c.reject(OpScheduleAsyncRun, err)
	}
	c.register(c.runnables, "runnable", r.ID(), f)
	c.reportFailure(r, f)
	return c
}

// ScheduleCronRun runs r on a cron schedule: six fields starting with
// seconds, or a descriptor such as "@hourly" or "@every 5m".
func (c *TaskChain) ScheduleCronRun(r *task.Runnable, expr string) *TaskChain {
	if r == nil {
		return c.reject(OpScheduleCronRun, tcerrors.ErrNilTask)
	}
	f, err := c.exec.SubmitCron(r, expr)
	if err != nil {
		return c.reject(OpScheduleCronRun, err)
	}
	c.register(c.runnables, "runnable", r.ID(), f)
	c.reportFailure(r, f)
	return c
}

// GetFuture removes and returns the future kept for t by AsyncCall,
// ScheduleAsyncRun or ScheduleCronRun. A second call for the same task
// reports false.
func (c *TaskChain) GetFuture(t task.Task) (*future.Future, bool) {
	var (
		reg  *registry.Registry[task.ID, *future.Future]
		kind string
	)
	switch v := t.(type) {
	case *task.Callable:
		if v == nil {
			return nil, false
		}
		reg, kind = c.callables, "callable"
	case *task.Runnable:
		if v == nil {
			return nil, false
		}
		reg, kind = c.runnables, "runnable"
	default:
		return nil, false
	}

	f, ok := reg.Take(t.ID())
	c.recordRegistry(reg, kind)
	return f, ok
}

func (c *TaskChain) checkTimer(r *task.Runnable, delay time.Duration) error {
	if r == nil {
		return tcerrors.ErrNilTask
	}
	if delay <= 0 {
		return tcerrors.NewValidationError("taskchain", "delay", delay, "must be positive").
			WithHint("use AsyncRun or SyncRun for immediate execution")
	}
	return nil
}

// await waits for f and reports anything but success. A zero deadline waits
// without bound.
func (c *TaskChain) await(ctx context.Context, t task.Task, f *future.Future, deadline time.Time) bool {
	waitCtx, cancel := c.waitContext(ctx)
	defer cancel()

	var err error
	if deadline.IsZero() {
		_, err = f.Get(waitCtx)
	} else {
		_, err = f.GetUntil(waitCtx, deadline)
	}

	switch {
	case err == nil:
		return true
	case errors.Is(err, tcerrors.ErrInterrupted):
		c.hub.NotifyInterrupted(t, err)
	case errors.Is(err, tcerrors.ErrTimeout):
		c.hub.NotifyTimeout(t, err)
	default:
		c.hub.NotifyExecutionFailure(t, err)
	}
	return false
}

// waitContext merges ctx with the chain context.
func (c *TaskChain) waitContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == c.ctx {
		return ctx, func() {}
	}
	merged, cancel := context.WithCancelCause(ctx)
	stop := context.AfterFunc(c.ctx, func() { cancel(context.Cause(c.ctx)) })
	return merged, func() {
		stop()
		cancel(nil)
	}
}

func (c *TaskChain) runCallback(ctx context.Context, cb *task.Runnable) {
	if cb == nil {
		return
	}
	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = tcerrors.NewPanicError(cb.ID().String(), r, debug.Stack())
			}
		}()
		if runErr := cb.Run(ctx); runErr != nil {
			err = tcerrors.NewExecutionError(cb.ID().String(), runErr)
		}
	}()
	if err != nil {
		c.hub.NotifyExecutionFailure(cb, err)
	}
}

// reportFailure delivers an execution failure of f once it settles.
func (c *TaskChain) reportFailure(t task.Task, f *future.Future) {
	context.AfterFunc(f.Context(), func() {
		if f.State() == future.Failed {
			c.hub.NotifyExecutionFailure(t, f.Err())
		}
	})
}

func (c *TaskChain) register(reg *registry.Registry[task.ID, *future.Future], kind string, id task.ID, f *future.Future) {
	if old, replaced := reg.Register(id, f); replaced {
		c.logger.Debug("future replaced", zap.String("registry", kind), zap.Stringer("task_id", id),
			zap.Stringer("previous", old.State()))
	}
	c.recordRegistry(reg, kind)
}

func (c *TaskChain) recordRegistry(reg *registry.Registry[task.ID, *future.Future], kind string) {
	if c.metrics != nil {
		c.metrics.RegistryLength.WithLabelValues(c.name, kind).Set(float64(reg.Len()))
	}
}

// reject turns op into a no-op.
func (c *TaskChain) reject(op string, err error) *TaskChain {
	c.logger.Debug("operation rejected", zap.String("op", op), zap.Error(err))
	if c.metrics != nil {
		c.metrics.ChainRejected.WithLabelValues(c.name, op).Inc()
	}
	if c.onReject != nil {
		c.onReject(op, err)
	}
	return c
}
