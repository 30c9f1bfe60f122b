package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Kind classifies a scheduled entry.
type Kind int

const (
	// KindOnce fires a single time.
	KindOnce Kind = iota
	// KindFixedRate repeats at a fixed interval measured between scheduled times.
	KindFixedRate
	// KindCron repeats on a cron expression.
	KindCron
)

func (k Kind) String() string {
	switch k {
	case KindOnce:
		return "once"
	case KindFixedRate:
		return "fixed_rate"
	case KindCron:
		return "cron"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Repeating reports whether entries of this kind re-arm after firing.
func (k Kind) Repeating() bool {
	return k != KindOnce
}

// cronParser accepts six fields with seconds plus descriptors such as
// "@every 1s" and "@hourly".
var cronParser = cron.NewParser(
	cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ParseCron parses a cron expression. Examples:
//
//	"*/5 * * * * *"   - every 5 seconds
//	"0 30 14 * * 1-5" - 2:30 PM on weekdays
//	"@every 1m30s"    - every 90 seconds
//	"@daily"          - every day at midnight
func ParseCron(expr string) (cron.Schedule, error) {
	if expr == "" {
		return nil, fmt.Errorf("cron expression cannot be empty")
	}
	schedule, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return schedule, nil
}

// ValidateCronExpression validates a cron expression without scheduling it.
func ValidateCronExpression(expr string) error {
	_, err := ParseCron(expr)
	return err
}

// once fires at a single instant and never again.
type once struct{}

func (once) Next(time.Time) time.Time { return time.Time{} }

// fixedRate repeats every interval measured from the previous scheduled
// time, not from when the previous run finished. A late timer therefore
// catches up instead of drifting.
type fixedRate struct {
	interval time.Duration
}

func (f fixedRate) Next(prev time.Time) time.Time { return prev.Add(f.interval) }

var (
	_ cron.Schedule = once{}
	_ cron.Schedule = fixedRate{}
)
