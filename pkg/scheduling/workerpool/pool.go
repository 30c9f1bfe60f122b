package workerpool

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gammazero/workerpool"
	"go.uber.org/zap"
)

// Task represents a unit of work that can be executed by a worker.
type Task interface {
	// Execute runs the task with the given context.
	// It should respect context cancellation and return any error encountered.
	Execute(ctx context.Context) error
}

// TaskFunc is a function type that implements the Task interface.
type TaskFunc func(ctx context.Context) error

// Execute implements the Task interface for TaskFunc.
func (f TaskFunc) Execute(ctx context.Context) error {
	return f(ctx)
}

// Result represents the result of a task execution.
type Result struct {
	// Task is the original task that was executed
	Task Task

	// Error is any error that occurred during task execution
	Error error

	// Duration is how long the task took to execute
	Duration time.Duration

	// Waited is how long the task sat in the queue before a worker took it
	Waited time.Duration
}

// Pool represents a fixed-size worker pool with an unbounded FIFO queue.
type Pool interface {
	// Submit adds a task to the pool for execution. It never blocks.
	// Returns ErrShutdown once the pool is shutting down.
	Submit(task Task) error

	// SubmitWithContext submits a task whose execution context derives from ctx.
	// A ctx that is already done rejects the submission.
	SubmitWithContext(ctx context.Context, task Task) error

	// Shutdown stops accepting tasks and lets queued tasks finish.
	// Returns a channel that closes when every worker has exited.
	Shutdown() <-chan struct{}

	// ShutdownNow stops accepting tasks, abandons queued tasks and cancels
	// the context of running ones. It returns the abandoned tasks in
	// submission order; those tasks never run.
	ShutdownNow() []Task

	// Done closes when the pool has terminated.
	Done() <-chan struct{}

	// IsShutdown reports whether Shutdown or ShutdownNow has been called.
	IsShutdown() bool

	// Size returns the number of workers in the pool.
	Size() int

	// QueueSize returns the current number of queued tasks waiting for execution.
	QueueSize() int

	// ActiveWorkers returns the number of workers currently executing tasks.
	ActiveWorkers() int

	// TotalSubmitted returns the total number of tasks submitted to the pool.
	TotalSubmitted() int64

	// TotalCompleted returns the total number of tasks completed by the pool.
	TotalCompleted() int64
}

// Config holds configuration options for creating a worker pool.
type Config struct {
	// WorkerCount is the number of workers in the pool.
	// Must be greater than 0.
	WorkerCount int

	// TaskTimeout is the default timeout for individual task execution.
	// Zero means no timeout.
	TaskTimeout time.Duration

	// PanicHandler is called when a task panics. If nil, panics are recovered
	// and reported as the task's error.
	PanicHandler func(task Task, recovered interface{})

	// OnTaskStart is called before a task begins execution.
	OnTaskStart func(task Task)

	// OnTaskComplete is called after a task completes (success or failure).
	OnTaskComplete func(result Result)

	// Logger receives panic reports. Defaults to zap.L().
	Logger *zap.Logger
}

// slot is a queued task. Exactly one of the worker and ShutdownNow claims it.
type slot struct {
	seq       uint64
	task      Task
	ctx       context.Context
	submitted time.Time
	claimed   atomic.Bool
}

// workerPool implements the Pool interface on top of gammazero/workerpool.
type workerPool struct {
	config Config
	logger *zap.Logger
	wp     *workerpool.WorkerPool

	// Cancelled by ShutdownNow; parent of every running task context.
	runCtx    context.Context
	runCancel context.CancelFunc

	// Guards isShutdown against concurrent Submit. gammazero panics when a
	// task is submitted after Stop, so Submit holds the read lock while
	// handing the task over.
	mu         sync.RWMutex
	isShutdown bool

	pendingMu sync.Mutex
	pending   map[uint64]*slot
	nextSeq   uint64

	activeWorkers  atomic.Int32
	totalSubmitted atomic.Int64
	totalCompleted atomic.Int64

	stopOnce sync.Once
	done     chan struct{}
}

// New creates a new worker pool with the specified number of workers.
func New(workerCount int) Pool {
	return NewWithConfig(Config{
		WorkerCount: workerCount,
	})
}

// NewWithConfig creates a new worker pool with the specified configuration.
func NewWithConfig(config Config) Pool {
	if config.WorkerCount <= 0 {
		panic("worker count must be positive")
	}
	if config.Logger == nil {
		config.Logger = zap.L()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &workerPool{
		config:    config,
		logger:    config.Logger.Named("workerpool"),
		wp:        workerpool.New(config.WorkerCount),
		runCtx:    ctx,
		runCancel: cancel,
		pending:   make(map[uint64]*slot),
		done:      make(chan struct{}),
	}
}
