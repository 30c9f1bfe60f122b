package future

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jacobsa/timeutil"

	tcctx "github.com/vnykmshr/taskchain/pkg/common/context"
	tcerrors "github.com/vnykmshr/taskchain/pkg/common/errors"
	"github.com/vnykmshr/taskchain/pkg/task"
)

// State is the lifecycle position of a Future.
type State int32

const (
	Pending State = iota
	Running
	Completed
	Failed
	Cancelled
	TimedOut
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	case Cancelled:
		return "cancelled"
	case TimedOut:
		return "timed_out"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s >= Completed
}

// Option configures a Future.
type Option func(*Future)

// WithClock sets the clock used for timestamps. Defaults to the real clock.
func WithClock(c timeutil.Clock) Option {
	return func(f *Future) {
		if c != nil {
			f.clock = c
		}
	}
}

// WithID overrides the generated submission ID.
func WithID(id task.ID) Option {
	return func(f *Future) {
		if id != "" {
			f.id = id
		}
	}
}

// Future is the handle of one submission. It is safe for concurrent use.
//
// Transitions are Pending -> Running -> {Completed, Failed, Cancelled,
// TimedOut}, plus Pending -> {Cancelled, TimedOut}. The first terminal
// transition wins; later ones are ignored.
type Future struct {
	id    task.ID
	task  task.Task
	clock timeutil.Clock

	state atomic.Int32
	done  chan struct{}

	ctx    context.Context
	cancel context.CancelCauseFunc

	mu        sync.Mutex
	value     any
	err       error
	submitted time.Time
	started   time.Time
	finished  time.Time
}

// New creates a Pending future for t. The task's execution context derives
// from parent and is cancelled when the future is cancelled or times out.
func New(parent context.Context, t task.Task, opts ...Option) *Future {
	f := &Future{
		id:    task.NewID(),
		task:  t,
		clock: timeutil.RealClock(),
		done:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.ctx, f.cancel = context.WithCancelCause(tcctx.OrBackground(parent))
	f.submitted = f.clock.Now()
	return f
}

// ID returns the submission ID, distinct from the task's own ID.
func (f *Future) ID() task.ID { return f.id }

// Task returns the submitted task.
func (f *Future) Task() task.Task { return f.task }

// Context is the context a task body should run under.
func (f *Future) Context() context.Context { return f.ctx }

// State returns the current state.
func (f *Future) State() State { return State(f.state.Load()) }

// Done is closed once the future reaches a terminal state.
func (f *Future) Done() <-chan struct{} { return f.done }

// IsDone reports whether the future is in a terminal state.
func (f *Future) IsDone() bool { return f.State().Terminal() }

// IsCancelled reports whether the future was cancelled.
func (f *Future) IsCancelled() bool { return f.State() == Cancelled }

// Start moves Pending to Running. It returns false if the future was already
// started or finished; the caller must then skip execution.
func (f *Future) Start() bool {
	if !f.state.CompareAndSwap(int32(Pending), int32(Running)) {
		return false
	}
	f.mu.Lock()
	f.started = f.clock.Now()
	f.mu.Unlock()
	return true
}

// Complete records the outcome of the task: Completed when err is nil,
// Failed otherwise. It returns false if the future was already terminal.
func (f *Future) Complete(value any, err error) bool {
	to := Completed
	if err != nil {
		to = Failed
	}
	return f.finish(to, value, err)
}

// Cancel moves a Pending or Running future to Cancelled and cancels the
// task context. Running bodies see ctx.Done and are expected to return.
func (f *Future) Cancel() bool {
	return f.finish(Cancelled, nil, tcerrors.ErrCancelled)
}

// CancelPending cancels the future only if it never started. Exactly one of
// CancelPending and Start succeeds for a given future.
func (f *Future) CancelPending() bool {
	if !f.state.CompareAndSwap(int32(Pending), int32(Cancelled)) {
		return false
	}
	f.settle(nil, tcerrors.ErrCancelled)
	return true
}

// Timeout moves a Pending or Running future to TimedOut and cancels the task
// context. Bounded waits never call it; a caller that wants the task
// abandoned when its wait expires does so explicitly.
func (f *Future) Timeout() bool {
	return f.finish(TimedOut, nil, tcerrors.ErrTimeout)
}

func (f *Future) finish(to State, value any, err error) bool {
	for {
		cur := f.state.Load()
		if State(cur).Terminal() {
			return false
		}
		if f.state.CompareAndSwap(cur, int32(to)) {
			f.settle(value, err)
			return true
		}
	}
}

func (f *Future) settle(value any, err error) {
	f.mu.Lock()
	f.value = value
	f.err = err
	f.finished = f.clock.Now()
	f.mu.Unlock()
	close(f.done)
	f.cancel(err)
}

// Get blocks until the future is done or ctx is cancelled. A cancelled ctx
// yields an error matching ErrInterrupted; the task itself keeps running.
func (f *Future) Get(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		return f.Result()
	default:
	}
	ctx = tcctx.OrBackground(ctx)
	select {
	case <-f.done:
		return f.Result()
	case <-ctx.Done():
		return nil, tcctx.Interrupted(ctx)
	}
}

// GetTimeout is Get bounded by d. When d elapses first ErrTimeout is
// returned and the future is left untouched: the task keeps running or stays
// queued. A non-positive d waits without bound.
func (f *Future) GetTimeout(ctx context.Context, d time.Duration) (any, error) {
	if d <= 0 {
		return f.Get(ctx)
	}
	return f.GetUntil(ctx, time.Now().Add(d))
}

// GetUntil is GetTimeout with an absolute deadline.
func (f *Future) GetUntil(ctx context.Context, deadline time.Time) (any, error) {
	select {
	case <-f.done:
		return f.Result()
	default:
	}
	if !time.Now().Before(deadline) {
		return nil, fmt.Errorf("waiting for %s: %w", f.id.Short(), tcerrors.ErrTimeout)
	}
	ctx = tcctx.OrBackground(ctx)
	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()

	select {
	case <-f.done:
		return f.Result()
	case <-ctx.Done():
		return nil, tcctx.Interrupted(ctx)
	case <-timer.C:
		return nil, fmt.Errorf("waiting for %s: %w", f.id.Short(), tcerrors.ErrTimeout)
	}
}

// Result returns the outcome without blocking. Before completion it returns
// (nil, nil).
func (f *Future) Result() (any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value, f.err
}

// Err returns the failure of a finished future, or nil.
func (f *Future) Err() error {
	_, err := f.Result()
	return err
}

// Submitted returns when the future was created.
func (f *Future) Submitted() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submitted
}

// Started returns when the task began running, or the zero time.
func (f *Future) Started() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.started
}

// Finished returns when the future became terminal, or the zero time.
func (f *Future) Finished() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.finished
}

// Duration is the run time of a finished task, zero if it never started.
func (f *Future) Duration() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.started.IsZero() || f.finished.IsZero() {
		return 0
	}
	return f.finished.Sub(f.started)
}

func (f *Future) String() string {
	name := "<nil>"
	if f.task != nil {
		name = f.task.Name()
	}
	return fmt.Sprintf("future(%s %s %s)", f.id.Short(), name, f.State())
}
