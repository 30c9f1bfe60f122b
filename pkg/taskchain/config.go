package taskchain

import (
	"context"
	"time"

	"github.com/jacobsa/timeutil"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/vnykmshr/taskchain/pkg/metrics"
	"github.com/vnykmshr/taskchain/pkg/notify"
)

// DefaultName labels logs and metrics when Config.Name is empty.
const DefaultName = "taskchain"

// Config holds task chain configuration.
type Config struct {
	// PoolSize is the number of workers. Non-positive means runtime.NumCPU().
	PoolSize int

	// Name labels logs, spans and metrics.
	Name string

	// Context bounds the synchronous waits of the chain. Cancelling it
	// interrupts them. Defaults to context.Background().
	Context context.Context

	// MaxScheduled bounds pending delayed and periodic entries.
	MaxScheduled int

	// Location evaluates cron expressions. Defaults to time.Local.
	Location *time.Location

	// Clock stamps futures. Defaults to the real clock.
	Clock timeutil.Clock

	Logger         *zap.Logger
	TracerProvider trace.TracerProvider

	// Metrics enables Prometheus instrumentation. Disabled when zero.
	Metrics metrics.Config

	// Listeners are subscribed before the chain is returned.
	Listeners []notify.Listener

	// OnReject is called for every operation turned into a no-op, with the
	// operation name and the reason.
	OnReject func(op string, err error)
}

func (c *Config) setDefaults() {
	if c.Name == "" {
		c.Name = DefaultName
	}
	if c.Context == nil {
		c.Context = context.Background()
	}
	if c.Logger == nil {
		c.Logger = zap.L()
	}
}
