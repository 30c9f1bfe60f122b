package executor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/vnykmshr/taskchain/internal/testutil"
	tcerrors "github.com/vnykmshr/taskchain/pkg/common/errors"
	"github.com/vnykmshr/taskchain/pkg/future"
	"github.com/vnykmshr/taskchain/pkg/metrics"
	"github.com/vnykmshr/taskchain/pkg/task"
)

func awaitTermination(t *testing.T, e *Executor) {
	t.Helper()
	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()
	require.True(t, e.AwaitTermination(ctx), "executor did not terminate")
}

func stop(t *testing.T, e *Executor) {
	t.Helper()
	e.Shutdown()
	awaitTermination(t, e)
}

func blocker(latch *testutil.Latch) *task.Runnable {
	return task.NewNamedRunnable("blocker", latch.Wait)
}

func TestSubmitNowReturnsValue(t *testing.T) {
	e := New(2)
	defer stop(t, e)

	fut, err := e.SubmitNow(task.NewCallable(func(context.Context) (any, error) {
		return 42, nil
	}))
	require.NoError(t, err)

	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()
	v, err := fut.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, future.Completed, fut.State())
	assert.Equal(t, 0, e.Stats().Live)
}

func TestSubmitNowNilTask(t *testing.T) {
	e := New(1)
	defer stop(t, e)

	_, err := e.SubmitNow(nil)
	assert.ErrorIs(t, err, tcerrors.ErrNilTask)
}

func TestSubmitNowFailure(t *testing.T) {
	e := New(1)
	defer stop(t, e)

	boom := errors.New("boom")
	r := task.NewRunnable(func(context.Context) error { return boom })
	fut, err := e.SubmitNow(r)
	require.NoError(t, err)

	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()
	_, err = fut.Get(ctx)
	assert.ErrorIs(t, err, boom)

	var execErr *tcerrors.ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, r.ID().String(), execErr.TaskID)
	assert.False(t, execErr.IsPanic())
	assert.Equal(t, future.Failed, fut.State())
}

func TestSubmitNowPanic(t *testing.T) {
	e := New(1)
	defer stop(t, e)

	fut, err := e.SubmitNow(task.NewRunnable(func(context.Context) error {
		panic("kaboom")
	}))
	require.NoError(t, err)

	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()
	_, err = fut.Get(ctx)

	var execErr *tcerrors.ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.True(t, execErr.IsPanic())

	// The worker survives the panic.
	fut, err = e.SubmitNow(task.NewRunnable(func(context.Context) error { return nil }))
	require.NoError(t, err)
	_, err = fut.Get(ctx)
	assert.NoError(t, err)
}

func TestSubmitAfter(t *testing.T) {
	e := New(1)
	defer stop(t, e)

	const delay = 50 * time.Millisecond
	start := time.Now()
	var ranAt atomic.Int64
	fut, err := e.SubmitAfter(task.NewRunnable(func(context.Context) error {
		ranAt.Store(int64(time.Since(start)))
		return nil
	}), delay)
	require.NoError(t, err)
	assert.Equal(t, future.Pending, fut.State())

	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()
	_, err = fut.Get(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Duration(ranAt.Load()), delay)
}

func TestSubmitAfterValidation(t *testing.T) {
	e := New(1)
	defer stop(t, e)

	_, err := e.SubmitAfter(task.NewRunnable(func(context.Context) error { return nil }), -time.Second)
	assert.True(t, tcerrors.IsValidationError(err))

	_, err = e.SubmitPeriodic(task.NewRunnable(func(context.Context) error { return nil }), 0, 0)
	assert.True(t, tcerrors.IsValidationError(err))

	_, err = e.SubmitCron(task.NewRunnable(func(context.Context) error { return nil }), "not a cron")
	assert.True(t, tcerrors.IsValidationError(err))
	assert.Equal(t, 0, e.Stats().Live)
}

func TestCancelDelayed(t *testing.T) {
	e := New(1)
	defer stop(t, e)

	var ran atomic.Bool
	fut, err := e.SubmitAfter(task.NewRunnable(func(context.Context) error {
		ran.Store(true)
		return nil
	}), 30*time.Millisecond)
	require.NoError(t, err)
	require.True(t, fut.Cancel())

	time.Sleep(80 * time.Millisecond)
	assert.False(t, ran.Load())
	assert.Equal(t, future.Cancelled, fut.State())
}

func TestSubmitPeriodic(t *testing.T) {
	e := New(2)
	defer stop(t, e)

	var runs atomic.Int32
	fut, err := e.SubmitPeriodic(task.NewRunnable(func(context.Context) error {
		runs.Add(1)
		return nil
	}), 0, 20*time.Millisecond)
	require.NoError(t, err)

	testutil.AssertEventually(t, func() bool { return runs.Load() >= 3 })
	assert.Equal(t, future.Running, fut.State())

	require.True(t, fut.Cancel())
	testutil.AssertEventually(t, func() bool { return e.Stats().Scheduled == 0 })

	after := runs.Load()
	time.Sleep(60 * time.Millisecond)
	assert.LessOrEqual(t, runs.Load(), after+2)
}

func TestSubmitPeriodicStopsOnFailure(t *testing.T) {
	e := New(1)
	defer stop(t, e)

	var runs atomic.Int32
	fut, err := e.SubmitPeriodic(task.NewRunnable(func(context.Context) error {
		if runs.Add(1) == 3 {
			return errors.New("third run fails")
		}
		return nil
	}), 0, 10*time.Millisecond)
	require.NoError(t, err)

	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()
	_, err = fut.Get(ctx)
	require.Error(t, err)
	assert.True(t, tcerrors.IsExecutionError(err))
	assert.Equal(t, future.Failed, fut.State())

	testutil.AssertEventually(t, func() bool { return e.Stats().Scheduled == 0 })
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, int32(3), runs.Load())
}

func TestSubmitCron(t *testing.T) {
	e := New(1)
	defer stop(t, e)

	var runs atomic.Int32
	fut, err := e.SubmitCron(task.NewRunnable(func(context.Context) error {
		runs.Add(1)
		return nil
	}), "@every 1s")
	require.NoError(t, err)

	testutil.Eventually(t, func() bool { return runs.Load() >= 1 }, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, future.Running, fut.State())
}

func TestSubmitAfterShutdown(t *testing.T) {
	e := New(1)
	stop(t, e)

	noop := task.NewRunnable(func(context.Context) error { return nil })
	_, err := e.SubmitNow(noop)
	assert.ErrorIs(t, err, tcerrors.ErrShutdown)
	_, err = e.SubmitAfter(noop, time.Millisecond)
	assert.ErrorIs(t, err, tcerrors.ErrShutdown)
	_, err = e.SubmitPeriodic(noop, 0, time.Millisecond)
	assert.ErrorIs(t, err, tcerrors.ErrShutdown)
	_, err = e.Go("helper", func(context.Context) {})
	assert.ErrorIs(t, err, tcerrors.ErrShutdown)

	assert.True(t, e.IsShutdown())
	assert.True(t, e.IsTerminated())
	assert.Equal(t, Terminated, e.State())
}

func TestShutdownIsGraceful(t *testing.T) {
	e := New(1)

	latch := testutil.NewLatch()
	running, err := e.SubmitNow(blocker(latch))
	require.NoError(t, err)
	testutil.WaitForChan(t, latch.Entered(), testutil.TestTimeout)

	queued, err := e.SubmitNow(task.NewRunnable(func(context.Context) error { return nil }))
	require.NoError(t, err)
	delayed, err := e.SubmitAfter(task.NewRunnable(func(context.Context) error { return nil }), 20*time.Millisecond)
	require.NoError(t, err)
	periodic, err := e.SubmitPeriodic(task.NewRunnable(func(context.Context) error { return nil }), time.Hour, time.Hour)
	require.NoError(t, err)

	e.Shutdown()
	assert.True(t, e.IsShutdown())
	assert.False(t, e.IsTerminated())
	assert.Equal(t, future.Cancelled, periodic.State())

	latch.Release()
	awaitTermination(t, e)

	assert.Equal(t, future.Completed, running.State())
	assert.Equal(t, future.Completed, queued.State())
	assert.Equal(t, future.Completed, delayed.State())
}

func TestShutdownNowReturnsTasksThatNeverRan(t *testing.T) {
	e := New(1)

	latch := testutil.NewLatch()
	running, err := e.SubmitNow(blocker(latch))
	require.NoError(t, err)
	testutil.WaitForChan(t, latch.Entered(), testutil.TestTimeout)

	a := task.NewNamedRunnable("a", func(context.Context) error { return nil })
	b := task.NewNamedRunnable("b", func(context.Context) error { return nil })
	c := task.NewNamedRunnable("c", func(context.Context) error { return nil })

	futA, err := e.SubmitNow(a)
	require.NoError(t, err)
	_, err = e.SubmitNow(b)
	require.NoError(t, err)
	_, err = e.SubmitNow(a)
	require.NoError(t, err)
	helper, err := e.Go("helper", func(context.Context) {})
	require.NoError(t, err)
	_, err = e.SubmitAfter(c, time.Hour)
	require.NoError(t, err)

	drained := e.ShutdownNow()
	awaitTermination(t, e)

	ids := make([]task.ID, len(drained))
	for i, d := range drained {
		ids[i] = d.ID()
	}
	assert.Equal(t, []task.ID{a.ID(), b.ID(), c.ID()}, ids)

	assert.Equal(t, future.Cancelled, running.State())
	assert.Equal(t, future.Cancelled, futA.State())
	assert.Equal(t, future.Cancelled, helper.State())
	assert.Equal(t, drained, e.ShutdownNow())
}

func TestShutdownTimeoutEscalates(t *testing.T) {
	e := New(1)

	latch := testutil.NewLatch()
	_, err := e.SubmitNow(blocker(latch))
	require.NoError(t, err)
	testutil.WaitForChan(t, latch.Entered(), testutil.TestTimeout)

	queued := task.NewRunnable(func(context.Context) error { return nil })
	_, err = e.SubmitNow(queued)
	require.NoError(t, err)

	drained, err := e.ShutdownTimeout(context.Background(), 30*time.Millisecond)
	assert.ErrorIs(t, err, tcerrors.ErrTimeout)
	require.Len(t, drained, 1)
	assert.Equal(t, queued.ID(), drained[0].ID())
	awaitTermination(t, e)
}

func TestShutdownTimeoutCompletes(t *testing.T) {
	e := New(2)

	var ran atomic.Bool
	_, err := e.SubmitNow(task.NewRunnable(func(context.Context) error {
		ran.Store(true)
		return nil
	}))
	require.NoError(t, err)

	drained, err := e.ShutdownTimeout(context.Background(), testutil.TestTimeout)
	require.NoError(t, err)
	assert.Empty(t, drained)
	assert.True(t, ran.Load())
	assert.True(t, e.IsTerminated())
}

func TestShutdownTimeoutInterrupted(t *testing.T) {
	e := New(1)

	latch := testutil.NewLatch()
	_, err := e.SubmitNow(blocker(latch))
	require.NoError(t, err)
	testutil.WaitForChan(t, latch.Entered(), testutil.TestTimeout)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = e.ShutdownTimeout(ctx, time.Hour)
	assert.ErrorIs(t, err, tcerrors.ErrInterrupted)
	awaitTermination(t, e)
}

func TestExecutionSpans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	e := NewWithConfig(Config{PoolSize: 1, TracerProvider: tp})
	defer stop(t, e)

	r := task.NewNamedRunnable("failing", func(context.Context) error { return errors.New("nope") })
	fut, err := e.SubmitNow(r)
	require.NoError(t, err)

	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()
	_, _ = fut.Get(ctx)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, "taskchain.now", span.Name)
	assert.Equal(t, codes.Error, span.Status.Code)
	assert.Contains(t, span.Attributes, attribute.String("task.id", r.ID().String()))
	assert.Contains(t, span.Attributes, attribute.String("task.name", "failing"))
	assert.Contains(t, span.Attributes, attribute.String("task.mode", "now"))
}

func TestExecutorMetrics(t *testing.T) {
	registry := metrics.NewRegistry(prometheus.NewRegistry())
	e := NewWithConfig(Config{PoolSize: 1, Name: "m", Metrics: registry})

	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()

	fut, err := e.SubmitNow(task.NewRunnable(func(context.Context) error { return nil }))
	require.NoError(t, err)
	_, err = fut.Get(ctx)
	require.NoError(t, err)

	stop(t, e)
	_, err = e.SubmitNow(task.NewRunnable(func(context.Context) error { return nil }))
	require.ErrorIs(t, err, tcerrors.ErrShutdown)

	assert.Equal(t, 1.0, promtest.ToFloat64(registry.Submissions.WithLabelValues("m", "now")))
	assert.Equal(t, 1.0, promtest.ToFloat64(registry.SubmitRejected.WithLabelValues("m", "now")))
	testutil.AssertEventually(t, func() bool {
		return promtest.ToFloat64(registry.TaskOutcomes.WithLabelValues("m", "now", "completed")) == 1.0
	})
	assert.Equal(t, 1.0, promtest.ToFloat64(registry.LifecycleChanges.WithLabelValues("m", "terminated")))
}
