package audible

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"
)

// DefaultCallsPerMinute is the catalog call budget when none is configured.
const DefaultCallsPerMinute = 10

// RateLimiter spaces the start of successive catalog calls by a minimum
// interval. One limiter is shared by every client in a process so the global
// call cadence is bounded, not the per-query cadence.
//
// Callers block until their slot comes up; nothing is dropped. Concurrent
// callers are handed successive slots.
type RateLimiter struct {
	limiter  *rate.Limiter
	interval time.Duration
	now      func() time.Time
	sleep    func(context.Context, time.Duration) error
	observe  func(time.Duration)
}

// LimiterOption configures a RateLimiter.
type LimiterOption func(*RateLimiter)

// WithClock overrides the time source.
func WithClock(now func() time.Time) LimiterOption {
	return func(l *RateLimiter) {
		if now != nil {
			l.now = now
		}
	}
}

// WithSleeper overrides how the limiter blocks.
func WithSleeper(sleep func(context.Context, time.Duration) error) LimiterOption {
	return func(l *RateLimiter) {
		if sleep != nil {
			l.sleep = sleep
		}
	}
}

// WithWaitObserver registers a callback receiving every wait duration,
// including zero waits.
func WithWaitObserver(observe func(time.Duration)) LimiterOption {
	return func(l *RateLimiter) {
		l.observe = observe
	}
}

// NewRateLimiter returns a limiter allowing callsPerMinute call starts per
// minute. Values below 1 are raised to 1.
func NewRateLimiter(callsPerMinute int, opts ...LimiterOption) *RateLimiter {
	if callsPerMinute < 1 {
		callsPerMinute = 1
	}
	interval := time.Minute / time.Duration(callsPerMinute)
	l := &RateLimiter{
		limiter:  rate.NewLimiter(rate.Every(interval), 1),
		interval: interval,
		now:      time.Now,
		sleep:    SleepWithContext,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// MinInterval reports the enforced spacing between call starts.
func (l *RateLimiter) MinInterval() time.Duration {
	if l == nil {
		return 0
	}
	return l.interval
}

// Wait blocks until the caller may start a call. If ctx ends first the
// reserved slot is released and ctx's error is returned.
func (l *RateLimiter) Wait(ctx context.Context) error {
	if l == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	now := l.now()
	reservation := l.limiter.ReserveN(now, 1)
	if !reservation.OK() {
		return errors.New("audible: rate limiter cannot grant a call")
	}
	delay := reservation.DelayFrom(now)
	if delay > 0 {
		if err := l.sleep(ctx, delay); err != nil {
			reservation.CancelAt(l.now())
			return err
		}
	}
	if l.observe != nil {
		l.observe(max(delay, 0))
	}
	return nil
}
