package executor_test

import (
	"context"
	"fmt"
	"time"

	"github.com/vnykmshr/taskchain/pkg/executor"
	"github.com/vnykmshr/taskchain/pkg/task"
)

func Example() {
	exec := executor.New(2)

	fut, err := exec.SubmitNow(task.NewCallable(func(context.Context) (any, error) {
		return "hello", nil
	}))
	if err != nil {
		fmt.Println(err)
		return
	}

	v, err := fut.Get(context.Background())
	fmt.Println(v, err)

	exec.Shutdown()
	exec.AwaitTermination(context.Background())
	fmt.Println(exec.State())

	// Output:
	// hello <nil>
	// terminated
}

func ExampleExecutor_SubmitAfter() {
	exec := executor.New(1)
	defer exec.ShutdownNow()

	fut, _ := exec.SubmitAfter(task.NewCallable(func(context.Context) (any, error) {
		return 7 * 6, nil
	}), 10*time.Millisecond)

	v, _ := fut.GetTimeout(context.Background(), time.Second)
	fmt.Println(v, fut.State())

	// Output: 42 completed
}

func ExampleExecutor_ShutdownNow() {
	exec := executor.New(1)

	pending := task.NewNamedRunnable("report", func(context.Context) error { return nil })
	_, _ = exec.SubmitAfter(pending, time.Hour)

	for _, t := range exec.ShutdownNow() {
		fmt.Println(t.Name())
	}
	exec.AwaitTermination(context.Background())

	// Output: report
}
