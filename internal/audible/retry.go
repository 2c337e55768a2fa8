package audible

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// RetryPolicy bounds the retries applied to transient catalog failures.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Factor     float64
	Jitter     bool
}

// DefaultRetryPolicy retries three times starting at one second, doubling up
// to a minute, with jitter.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 3,
		BaseDelay:  time.Second,
		MaxDelay:   60 * time.Second,
		Factor:     2,
		Jitter:     true,
	}
}

func (p RetryPolicy) normalized() RetryPolicy {
	def := DefaultRetryPolicy()
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = def.BaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = def.MaxDelay
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = p.BaseDelay
	}
	if p.Factor < 1 {
		p.Factor = def.Factor
	}
	return p
}

func (p RetryPolicy) backOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.BaseDelay
	b.MaxInterval = p.MaxDelay
	b.Multiplier = p.Factor
	b.RandomizationFactor = 0
	if p.Jitter {
		b.RandomizationFactor = 0.5
	}
	return b
}

// withRetry runs op until it succeeds, fails permanently, or the policy's
// attempts are used up. Only errors IsRetriable accepts are retried. A
// Retry-After hint on a 429 replaces the computed delay, capped at MaxDelay.
// The last error op returned is reported, not the backoff wrapper.
func withRetry[T any](ctx context.Context, policy RetryPolicy, notify func(err error, next time.Duration), op func(context.Context) (T, error)) (T, error) {
	policy = policy.normalized()
	var last error
	attempt := func() (T, error) {
		value, err := op(ctx)
		if err == nil {
			return value, nil
		}
		last = err
		if !IsRetriable(err) {
			return value, backoff.Permanent(err)
		}
		var status *StatusError
		if errors.As(err, &status) && status.RetryAfter > 0 {
			wait := min(status.RetryAfter, policy.MaxDelay)
			return value, backoff.RetryAfter(int(math.Ceil(wait.Seconds())))
		}
		return value, err
	}

	opts := []backoff.RetryOption{
		backoff.WithBackOff(policy.backOff()),
		backoff.WithMaxTries(uint(policy.MaxRetries + 1)),
		backoff.WithMaxElapsedTime(0),
	}
	if notify != nil {
		opts = append(opts, backoff.WithNotify(func(err error, next time.Duration) {
			if last != nil {
				err = last
			}
			notify(err, next)
		}))
	}
	value, err := backoff.Retry(ctx, attempt, opts...)
	if err == nil {
		return value, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return value, ctxErr
	}
	if last != nil {
		return value, last
	}
	return value, err
}
