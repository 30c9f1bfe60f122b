package workerpool_test

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/vnykmshr/taskchain/pkg/metrics"
	"github.com/vnykmshr/taskchain/pkg/scheduling/workerpool"
)

// Example demonstrates basic usage of the worker pool
func Example() {
	pool := workerpool.New(3)

	task := workerpool.TaskFunc(func(ctx context.Context) error {
		fmt.Println("Task executed")
		return nil
	})

	if err := pool.Submit(task); err != nil {
		log.Printf("Failed to submit task: %v", err)
		return
	}

	// Shutdown waits for queued tasks
	<-pool.Shutdown()

	// Output: Task executed
}

// Example_shutdownNow shows that queued tasks are handed back, not run.
func Example_shutdownNow() {
	pool := workerpool.New(1)

	release := make(chan struct{})
	pool.Submit(workerpool.TaskFunc(func(ctx context.Context) error {
		<-release
		return nil
	}))

	for i := 0; i < 3; i++ {
		pool.Submit(workerpool.TaskFunc(func(ctx context.Context) error {
			fmt.Println("never printed")
			return nil
		}))
	}

	drained := pool.ShutdownNow()
	close(release)
	<-pool.Done()

	fmt.Printf("%d tasks never started\n", len(drained))

	// Output: 3 tasks never started
}

// Example_callbacks demonstrates completion callbacks.
func Example_callbacks() {
	var failed atomic.Int32
	pool := workerpool.NewWithConfig(workerpool.Config{
		WorkerCount: 2,
		TaskTimeout: time.Second,
		OnTaskComplete: func(r workerpool.Result) {
			if r.Error != nil {
				failed.Add(1)
			}
		},
	})

	pool.Submit(workerpool.TaskFunc(func(ctx context.Context) error { return nil }))
	pool.Submit(workerpool.TaskFunc(func(ctx context.Context) error { return fmt.Errorf("bad input") }))
	<-pool.Shutdown()

	fmt.Printf("completed=%d failed=%d\n", pool.TotalCompleted(), failed.Load())

	// Output: completed=2 failed=1
}

// Example_metrics demonstrates a pool reporting into a custom registry.
func Example_metrics() {
	reg := prometheus.NewRegistry()
	registry := metrics.NewRegistry(reg)

	pool := workerpool.NewWithRegistry(workerpool.Config{WorkerCount: 2}, "example", registry)
	for i := 0; i < 4; i++ {
		pool.Submit(workerpool.TaskFunc(func(ctx context.Context) error { return nil }))
	}
	<-pool.Shutdown()

	fmt.Println(promtest.ToFloat64(registry.PoolTasksSubmitted.WithLabelValues("example")))
	fmt.Println(promtest.ToFloat64(registry.PoolTasksCompleted.WithLabelValues("example", "success")))
	fmt.Println(promtest.ToFloat64(registry.WorkerPoolSize.WithLabelValues("example")))

	// Output:
	// 4
	// 4
	// 2
}
