package task

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"

	tcerrors "github.com/vnykmshr/taskchain/pkg/common/errors"
)

// RetryPolicy configures exponential backoff for Retry.
type RetryPolicy struct {
	// MaxTries bounds the number of attempts, including the first one.
	// Zero means no bound other than MaxElapsedTime.
	MaxTries uint

	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64

	// RandomizationFactor jitters each interval by +/- this fraction.
	RandomizationFactor float64

	// MaxElapsedTime bounds the total time spent retrying. Zero disables it.
	MaxElapsedTime time.Duration
}

// DefaultRetryPolicy returns three attempts starting at 100ms, doubling up to 5s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxTries:            3,
		InitialInterval:     100 * time.Millisecond,
		MaxInterval:         5 * time.Second,
		Multiplier:          2,
		RandomizationFactor: 0,
	}
}

func (p RetryPolicy) backOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}
	if p.Multiplier >= 1 {
		b.Multiplier = p.Multiplier
	}
	b.RandomizationFactor = p.RandomizationFactor
	return b
}

func (p RetryPolicy) options() []backoff.RetryOption {
	opts := []backoff.RetryOption{backoff.WithBackOff(p.backOff())}
	if p.MaxTries > 0 {
		opts = append(opts, backoff.WithMaxTries(p.MaxTries))
	}
	if p.MaxElapsedTime > 0 {
		opts = append(opts, backoff.WithMaxElapsedTime(p.MaxElapsedTime))
	}
	return opts
}

// Retry returns a new runnable that re-runs r with exponential backoff until
// it succeeds or the policy gives up. The returned task has its own identity.
// Context cancellation and errors that are not retryable (see
// errors.IsRetryable) stop retrying immediately.
func Retry(r *Runnable, policy RetryPolicy) *Runnable {
	if r == nil {
		return nil
	}
	return NewNamedRunnable(r.Name()+"+retry", func(ctx context.Context) error {
		_, err := backoff.Retry(ctx, func() (struct{}, error) {
			return struct{}{}, attempt(ctx, r.Run(ctx))
		}, policy.options()...)
		return err
	})
}

// RetryCall is Retry for value-producing tasks.
func RetryCall(c *Callable, policy RetryPolicy) *Callable {
	if c == nil {
		return nil
	}
	return NewNamedCallable(c.Name()+"+retry", func(ctx context.Context) (any, error) {
		return backoff.Retry(ctx, func() (any, error) {
			v, err := c.Call(ctx)
			return v, attempt(ctx, err)
		}, policy.options()...)
	})
}

// attempt marks err permanent when another try cannot help.
func attempt(ctx context.Context, err error) error {
	if err != nil && (ctx.Err() != nil || !tcerrors.IsRetryable(err)) {
		return backoff.Permanent(err)
	}
	return err
}
