package executor

import (
	"context"
	"errors"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	tcctx "github.com/vnykmshr/taskchain/pkg/common/context"
	tcerrors "github.com/vnykmshr/taskchain/pkg/common/errors"
	"github.com/vnykmshr/taskchain/pkg/common/validation"
	"github.com/vnykmshr/taskchain/pkg/future"
	"github.com/vnykmshr/taskchain/pkg/metrics"
	"github.com/vnykmshr/taskchain/pkg/registry"
	"github.com/vnykmshr/taskchain/pkg/scheduling/scheduler"
	"github.com/vnykmshr/taskchain/pkg/scheduling/workerpool"
	"github.com/vnykmshr/taskchain/pkg/task"
)

const tracerName = "github.com/vnykmshr/taskchain/pkg/executor"

// submission is one live Future together with what produced it.
type submission struct {
	fut    *future.Future
	task   task.Executable
	mode   Mode
	hidden bool
}

// Executor runs tasks on a fixed-size pool, immediately, after a delay, at a
// fixed rate or on a cron schedule. Every accepted submission returns a
// Future. It is safe for concurrent use.
type Executor struct {
	name    string
	ctx     context.Context
	cfg     Config
	logger  *zap.Logger
	tracer  trace.Tracer
	metrics *metrics.Registry

	pool  workerpool.Pool
	timer scheduler.Scheduler

	state atomic.Int32

	// Live submissions keyed by submission ID, in submission order.
	live *registry.Registry[task.ID, *submission]

	nowOnce       sync.Once
	nowDrained    []task.Task
	terminateOnce sync.Once
	terminated    chan struct{}
}

// New creates an executor with poolSize workers; non-positive means
// runtime.NumCPU().
func New(poolSize int) *Executor {
	return NewWithConfig(Config{PoolSize: poolSize})
}

// NewWithConfig creates an executor with the given configuration.
func NewWithConfig(cfg Config) *Executor {
	cfg.setDefaults()

	e := &Executor{
		name:       cfg.Name,
		ctx:        cfg.Context,
		cfg:        cfg,
		logger:     cfg.Logger.Named("executor").With(zap.String("executor", cfg.Name)),
		metrics:    cfg.Metrics,
		live:       registry.New[task.ID, *submission](),
		terminated: make(chan struct{}),
	}

	tp := cfg.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	e.tracer = tp.Tracer(tracerName)

	poolCfg := workerpool.Config{
		WorkerCount: cfg.PoolSize,
		Logger:      cfg.Logger,
	}
	if cfg.Metrics != nil {
		e.pool = workerpool.NewWithRegistry(poolCfg, cfg.Name, cfg.Metrics)
	} else {
		e.pool = workerpool.NewWithConfig(poolCfg)
	}

	e.timer = scheduler.NewWithConfig(scheduler.Config{
		WorkerPool:    e.pool,
		Location:      cfg.Location,
		MaxTasks:      cfg.MaxScheduled,
		OnSubmitError: e.onTimerSubmitError,
		Name:          cfg.Name,
		Metrics:       cfg.Metrics,
		Logger:        cfg.Logger,
	})
	// A fresh scheduler always starts.
	_ = e.timer.Start()

	e.recordState(Running)
	return e
}

// Size returns the number of pool workers.
func (e *Executor) Size() int { return e.pool.Size() }

// State returns the lifecycle state.
func (e *Executor) State() State { return State(e.state.Load()) }

// IsShutdown reports whether a shutdown has been requested.
func (e *Executor) IsShutdown() bool { return e.State() != Running }

// IsTerminated reports whether shutdown has completed.
func (e *Executor) IsTerminated() bool { return e.State() == Terminated }

// Stats is a point-in-time view of the executor.
type Stats struct {
	State     State
	PoolSize  int
	Active    int
	Queued    int
	Scheduled int
	Live      int
	Submitted int64
	Completed int64
}

// Stats returns current counters.
func (e *Executor) Stats() Stats {
	return Stats{
		State:     e.State(),
		PoolSize:  e.pool.Size(),
		Active:    e.pool.ActiveWorkers(),
		Queued:    e.pool.QueueSize(),
		Scheduled: e.timer.Len(),
		Live:      e.live.Len(),
		Submitted: e.pool.TotalSubmitted(),
		Completed: e.pool.TotalCompleted(),
	}
}

// SubmitNow queues t for immediate execution.
func (e *Executor) SubmitNow(t task.Executable) (*future.Future, error) {
	s, err := e.accept(t, ModeNow, false)
	if err != nil {
		return nil, err
	}
	return e.enqueue(s)
}

// SubmitAfter runs t once after delay. A zero delay queues it on the next
// timer pass.
func (e *Executor) SubmitAfter(t task.Executable, delay time.Duration) (*future.Future, error) {
	if err := validation.ValidateNonNegativeDuration("executor", "delay", delay); err != nil {
		return nil, err
	}
	s, err := e.accept(t, ModeDelayed, false)
	if err != nil {
		return nil, err
	}
	return e.arm(s, func(id string, fire workerpool.Task) error {
		return e.timer.ScheduleAfter(id, fire, delay)
	})
}

// SubmitPeriodic runs t at a fixed rate starting after initialDelay. The
// Future stays Running until it is cancelled, a run fails, or the executor
// shuts down.
func (e *Executor) SubmitPeriodic(t task.Executable, initialDelay, interval time.Duration) (*future.Future, error) {
	if err := validation.ValidateNonNegativeDuration("executor", "initialDelay", initialDelay); err != nil {
		return nil, err
	}
	if err := validation.ValidatePositiveDuration("executor", "interval", interval); err != nil {
		return nil, err
	}
	s, err := e.accept(t, ModePeriodic, false)
	if err != nil {
		return nil, err
	}
	return e.arm(s, func(id string, fire workerpool.Task) error {
		return e.timer.ScheduleFixedRate(id, fire, initialDelay, interval)
	})
}

// SubmitCron runs t on a cron schedule with the same lifecycle as
// SubmitPeriodic.
func (e *Executor) SubmitCron(t task.Executable, expr string) (*future.Future, error) {
	if err := scheduler.ValidateCronExpression(expr); err != nil {
		return nil, tcerrors.NewValidationError("executor", "cron", expr, err.Error())
	}
	s, err := e.accept(t, ModeCron, false)
	if err != nil {
		return nil, err
	}
	return e.arm(s, func(id string, fire workerpool.Task) error {
		return e.timer.ScheduleCron(id, expr, fire)
	})
}

// Go runs fn on a pool worker. Helpers started this way are not reported
// by ShutdownNow.
func (e *Executor) Go(name string, fn func(ctx context.Context)) (*future.Future, error) {
	s, err := e.accept(helper(name, fn), ModeWait, true)
	if err != nil {
		return nil, err
	}
	return e.enqueue(s)
}

// GoAfter is Go delayed by delay.
func (e *Executor) GoAfter(name string, delay time.Duration, fn func(ctx context.Context)) (*future.Future, error) {
	if delay < 0 {
		delay = 0
	}
	s, err := e.accept(helper(name, fn), ModeWait, true)
	if err != nil {
		return nil, err
	}
	return e.arm(s, func(id string, fire workerpool.Task) error {
		return e.timer.ScheduleAfter(id, fire, delay)
	})
}

func helper(name string, fn func(ctx context.Context)) task.Executable {
	return task.NewNamedRunnable(name, func(ctx context.Context) error {
		fn(ctx)
		return nil
	})
}

// accept validates t and registers a Pending future for it.
func (e *Executor) accept(t task.Executable, mode Mode, hidden bool) (*submission, error) {
	if t == nil {
		return nil, tcerrors.ErrNilTask
	}
	if e.IsShutdown() {
		e.reject(mode)
		return nil, tcerrors.ErrShutdown
	}

	s := &submission{
		fut:    future.New(e.ctx, t, future.WithClock(e.cfg.Clock)),
		task:   t,
		mode:   mode,
		hidden: hidden,
	}
	e.live.Register(s.fut.ID(), s)
	return s, nil
}

func (e *Executor) enqueue(s *submission) (*future.Future, error) {
	err := e.pool.Submit(workerpool.TaskFunc(func(context.Context) error {
		e.runOnce(s)
		return nil
	}))
	if err != nil {
		return nil, e.abandon(s, err)
	}
	e.submitted(s.mode)
	return s.fut, nil
}

func (e *Executor) arm(s *submission, schedule func(id string, fire workerpool.Task) error) (*future.Future, error) {
	fire := workerpool.TaskFunc(func(context.Context) error {
		if s.mode.Repeating() {
			e.runRepeating(s)
		} else {
			e.runOnce(s)
		}
		return nil
	})
	if err := schedule(s.fut.ID().String(), fire); err != nil {
		return nil, e.abandon(s, err)
	}
	e.submitted(s.mode)
	return s.fut, nil
}

// abandon undoes accept after the pool or timer refused the submission.
func (e *Executor) abandon(s *submission, err error) error {
	e.live.Take(s.fut.ID())
	s.fut.CancelPending()
	if errors.Is(err, tcerrors.ErrShutdown) {
		e.reject(s.mode)
	}
	return err
}

func (e *Executor) onTimerSubmitError(id string, err error) {
	s, ok := e.live.Take(task.ID(id))
	if !ok {
		return
	}
	if s.mode.Repeating() {
		e.timer.Cancel(id)
		s.fut.Cancel()
	} else {
		s.fut.CancelPending()
	}
	e.recordOutcome(s)
}

// runOnce executes a one-shot submission on a pool worker.
func (e *Executor) runOnce(s *submission) {
	if !s.fut.Start() {
		e.retire(s)
		return
	}
	v, err := e.execute(s)
	s.fut.Complete(v, err)
	e.retire(s)
}

// runRepeating executes one firing of a periodic or cron submission.
func (e *Executor) runRepeating(s *submission) {
	switch s.fut.State() {
	case future.Pending:
		if !s.fut.Start() {
			e.stopRepeating(s)
			return
		}
	case future.Running:
	default:
		e.stopRepeating(s)
		return
	}

	if _, err := e.execute(s); err != nil {
		s.fut.Complete(nil, err)
		e.stopRepeating(s)
	}
}

func (e *Executor) stopRepeating(s *submission) {
	e.timer.Cancel(s.fut.ID().String())
	e.retire(s)
}

// retire drops s from the live set once its future is terminal.
func (e *Executor) retire(s *submission) {
	if e.live.Remove(s.fut.ID(), func(cur *submission) bool { return cur == s }) {
		e.recordOutcome(s)
	}
}

func (e *Executor) recordOutcome(s *submission) {
	if e.metrics != nil {
		e.metrics.TaskOutcomes.WithLabelValues(e.name, string(s.mode), s.fut.State().String()).Inc()
	}
}

// execute runs the task body under a span and converts panics and errors
// into ExecutionErrors.
func (e *Executor) execute(s *submission) (v any, err error) {
	ctx, span := e.tracer.Start(s.fut.Context(), "taskchain."+string(s.mode),
		trace.WithAttributes(
			attribute.String("task.id", s.task.ID().String()),
			attribute.String("task.submission_id", s.fut.ID().String()),
			attribute.String("task.mode", string(s.mode)),
			attribute.String("task.name", s.task.Name()),
		),
	)
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			stack := debug.Stack()
			err = tcerrors.NewPanicError(s.task.ID().String(), r, stack)
			e.logger.Error("task panicked",
				zap.String("task", s.task.Name()),
				zap.Any("panic", r),
				zap.ByteString("stack", stack),
			)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		if e.metrics != nil {
			e.metrics.TaskRunDuration.WithLabelValues(e.name, string(s.mode)).Observe(time.Since(start).Seconds())
		}
	}()

	v, err = s.task.Call(ctx)
	if err != nil {
		err = tcerrors.NewExecutionError(s.task.ID().String(), err)
	}
	return v, err
}

func (e *Executor) submitted(mode Mode) {
	if e.metrics != nil {
		e.metrics.Submissions.WithLabelValues(e.name, string(mode)).Inc()
	}
}

func (e *Executor) reject(mode Mode) {
	e.logger.Debug("submission rejected", zap.String("mode", string(mode)), zap.Stringer("state", e.State()))
	if e.metrics != nil {
		e.metrics.SubmitRejected.WithLabelValues(e.name, string(mode)).Inc()
	}
}

func (e *Executor) recordState(s State) {
	if e.metrics != nil {
		e.metrics.LifecycleChanges.WithLabelValues(e.name, s.String()).Inc()
	}
}

// advance moves the state forward to to. It never moves backwards.
func (e *Executor) advance(to State) bool {
	for {
		cur := e.state.Load()
		if State(cur) >= to {
			return false
		}
		if e.state.CompareAndSwap(cur, int32(to)) {
			e.logger.Debug("lifecycle", zap.Stringer("state", to))
			e.recordState(to)
			return true
		}
	}
}

// Shutdown stops accepting submissions and cancels periodic and cron
// futures. Queued and delayed one-shot tasks still run. It does not block;
// use AwaitTermination to wait.
func (e *Executor) Shutdown() {
	if !e.advance(ShuttingDown) {
		return
	}
	for _, s := range e.live.Values() {
		if s.mode.Repeating() && s.fut.Cancel() {
			e.retire(s)
		}
	}
	go func() {
		<-e.timer.Drain()
		<-e.pool.Shutdown()
		<-e.timer.Stop()
		e.terminate()
	}()
}

// ShutdownNow stops accepting submissions, discards delayed entries,
// cancels running tasks and returns the tasks that never started, in
// submission order with duplicates removed. Later calls return the same
// slice.
func (e *Executor) ShutdownNow() []task.Task {
	e.advance(ShuttingDown)
	e.nowOnce.Do(func() {
		<-e.timer.Stop()
		e.pool.ShutdownNow()

		seen := make(map[task.ID]struct{})
		for _, s := range e.live.Drain() {
			if !s.fut.CancelPending() {
				s.fut.Cancel()
				e.recordOutcome(s)
				continue
			}
			e.recordOutcome(s)
			if s.hidden {
				continue
			}
			if _, dup := seen[s.task.ID()]; dup {
				continue
			}
			seen[s.task.ID()] = struct{}{}
			e.nowDrained = append(e.nowDrained, s.task)
		}

		if e.metrics != nil {
			e.metrics.TasksNeverRun.WithLabelValues(e.name).Add(float64(len(e.nowDrained)))
		}
		e.logger.Info("shutdown now", zap.Int("never_run", len(e.nowDrained)))

		go func() {
			<-e.pool.Done()
			e.terminate()
		}()
	})
	return e.nowDrained
}

// ShutdownTimeout shuts down gracefully and waits up to timeout for
// termination. On timeout it escalates to ShutdownNow and returns the
// drained tasks with ErrTimeout. If ctx ends first it escalates the same
// way and returns an error matching ErrInterrupted. A non-positive timeout
// waits without bound.
func (e *Executor) ShutdownTimeout(ctx context.Context, timeout time.Duration) ([]task.Task, error) {
	ctx = tcctx.OrBackground(ctx)
	e.Shutdown()

	waitCtx, cancel := tcctx.WithTimeoutOrCancel(ctx, timeout)
	defer cancel()

	select {
	case <-e.terminated:
		return nil, nil
	case <-waitCtx.Done():
	}
	if tcctx.IsTimedOut(waitCtx) && !tcctx.IsCanceled(ctx) {
		e.logger.Warn("shutdown timed out", zap.Duration("timeout", timeout))
		return e.ShutdownNow(), tcerrors.ErrTimeout
	}
	return e.ShutdownNow(), tcctx.Interrupted(ctx)
}

// AwaitTermination blocks until the executor terminates or ctx is done.
// It reports whether the executor terminated.
func (e *Executor) AwaitTermination(ctx context.Context) bool {
	select {
	case <-e.terminated:
		return true
	case <-tcctx.OrBackground(ctx).Done():
		return e.IsTerminated()
	}
}

// Terminated returns a channel that closes once the executor terminates.
func (e *Executor) Terminated() <-chan struct{} { return e.terminated }

func (e *Executor) terminate() {
	e.terminateOnce.Do(func() {
		for _, s := range e.live.Drain() {
			s.fut.Cancel()
			e.recordOutcome(s)
		}
		e.advance(Terminated)
		e.logger.Debug("terminated")
		close(e.terminated)
	})
}
