package cli

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/vnykmshr/taskchain/pkg/metrics"
	"github.com/vnykmshr/taskchain/pkg/notify"
	"github.com/vnykmshr/taskchain/pkg/notify/redisnotify"
	"github.com/vnykmshr/taskchain/pkg/task"
	"github.com/vnykmshr/taskchain/pkg/taskchain"
)

// DemoResult summarises a demo run.
type DemoResult struct {
	// NeverRan lists the tasks the final shutdown discarded.
	NeverRan []string
	// Events counts delivered notifications by event name.
	Events map[string]int
}

type eventCounter struct {
	mu     sync.Mutex
	counts map[string]int
}

func (c *eventCounter) add(ev notify.Event) {
	c.mu.Lock()
	c.counts[ev.String()]++
	c.mu.Unlock()
}

func (c *eventCounter) snapshot() map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]int, len(c.counts))
	for k, v := range c.counts {
		out[k] = v
	}
	return out
}

// RunDemo replays the reference chain:
//
//	AsyncRun(B).SyncRunTimeout(C).TimerAsyncRun(A).AsyncRun(A, C).ShutdownTimeout()
//
// A, B and C sleep 1s, 5s and 3s times cfg.Demo.Scale. With the defaults
// the synchronous wait for C times out while C keeps running, and the timed
// run of A never starts.
func RunDemo(ctx context.Context, cfg Config, reg *prometheus.Registry, logger *zap.Logger) (DemoResult, error) {
	counter := &eventCounter{counts: make(map[string]int)}
	listeners := []notify.Listener{
		notify.NewLogListener(logger),
		&notify.ListenerFuncs{
			Interrupted:      func(error, task.Task) { counter.add(notify.EventInterrupted) },
			ExecutionFailure: func(error, task.Task) { counter.add(notify.EventExecutionFailure) },
			Timeout:          func(error, task.Task) { counter.add(notify.EventTimeout) },
		},
	}

	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		defer client.Close()
		listeners = append(listeners, redisnotify.NewWithConfig(redisnotify.Config{
			Redis:   client,
			Channel: cfg.Redis.Channel,
			Source:  cfg.Name,
			Logger:  logger,
		}))
	}

	chainCfg := taskchain.Config{
		PoolSize:  cfg.Workers,
		Name:      cfg.Name,
		Context:   ctx,
		Logger:    logger,
		Listeners: listeners,
		OnReject: func(op string, err error) {
			logger.Warn("operation rejected", zap.String("op", op), zap.Error(err))
		},
	}
	if reg != nil {
		chainCfg.Metrics = metrics.Config{Enabled: true, Registry: reg}
	}
	chain := taskchain.NewWithConfig(chainCfg)

	scale := func(d time.Duration) time.Duration {
		return time.Duration(float64(d) * cfg.Demo.Scale)
	}
	a := sleepTask("taskA", scale(time.Second), logger)
	b := sleepTask("taskB", scale(5*time.Second), logger)
	c := sleepTask("taskC", scale(3*time.Second), logger)

	drained := chain.
		AsyncRun(b).
		SyncRunTimeout(c, scale(cfg.Demo.SyncTimeout)).
		TimerAsyncRun(a, scale(cfg.Demo.TimerDelay)).
		AsyncRun(a, c).
		ShutdownTimeout(scale(cfg.Demo.ShutdownTimeout))

	// Termination follows promptly once running tasks see cancellation.
	chain.AwaitTermination(context.Background())

	result := DemoResult{Events: counter.snapshot()}
	for _, t := range drained {
		result.NeverRan = append(result.NeverRan, t.Name())
	}
	logger.Info("demo finished", zap.Strings("never_ran", result.NeverRan), zap.Any("events", result.Events))
	if err := ctx.Err(); err != nil {
		return result, context.Cause(ctx)
	}
	return result, nil
}

// sleepTask logs its start and end and sleeps for d unless cancelled.
func sleepTask(name string, d time.Duration, logger *zap.Logger) *task.Runnable {
	return task.NewNamedRunnable(name, func(ctx context.Context) error {
		logger.Info(name+": start", zap.Duration("sleep", d))
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-t.C:
			logger.Info(name + ": end")
			return nil
		case <-ctx.Done():
			logger.Info(name+": cancelled", zap.Error(context.Cause(ctx)))
			return ctx.Err()
		}
	})
}
