package executor

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/jacobsa/timeutil"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/vnykmshr/taskchain/pkg/metrics"
)

// Mode is how a task was submitted.
type Mode string

const (
	ModeNow      Mode = "now"
	ModeDelayed  Mode = "delayed"
	ModePeriodic Mode = "periodic"
	ModeCron     Mode = "cron"
	// ModeWait marks internal helpers that wait on other futures.
	ModeWait Mode = "wait"
)

// Repeating reports whether the mode re-fires until cancelled.
func (m Mode) Repeating() bool {
	return m == ModePeriodic || m == ModeCron
}

// State is the executor lifecycle position. It only moves forward.
type State int32

const (
	Running State = iota
	ShuttingDown
	Terminated
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case ShuttingDown:
		return "shutting_down"
	case Terminated:
		return "terminated"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Config holds executor configuration.
type Config struct {
	// PoolSize is the number of workers. Non-positive means runtime.NumCPU().
	PoolSize int

	// Name labels metrics, logs and spans. Defaults to "taskchain".
	Name string

	// MaxScheduled bounds pending delayed and periodic entries. Defaults to 10000.
	MaxScheduled int

	// Location evaluates cron expressions. Defaults to time.Local.
	Location *time.Location

	// Context is the parent of every task context. Defaults to context.Background().
	Context context.Context

	// Clock stamps futures. Defaults to the real clock.
	Clock timeutil.Clock

	// Logger defaults to zap.L().
	Logger *zap.Logger

	// TracerProvider creates the execution tracer. Defaults to the global provider.
	TracerProvider trace.TracerProvider

	// Metrics records pool, timer and executor metrics when set.
	Metrics *metrics.Registry
}

func (c *Config) setDefaults() {
	if c.Name == "" {
		c.Name = "taskchain"
	}
	if c.MaxScheduled <= 0 {
		c.MaxScheduled = 10000
	}
	if c.PoolSize <= 0 {
		c.PoolSize = runtime.NumCPU()
	}
	if c.Location == nil {
		c.Location = time.Local
	}
	if c.Context == nil {
		c.Context = context.Background()
	}
	if c.Clock == nil {
		c.Clock = timeutil.RealClock()
	}
	if c.Logger == nil {
		c.Logger = zap.L()
	}
}
