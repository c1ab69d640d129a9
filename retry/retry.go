// Package retry implements the shared retry policy for provider calls.
// Transient failures (rate limiting, unhealthy backends, timeouts) are
// retried; everything else aborts immediately.
package retry

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/gftj/tipjar-go/errs"
	"github.com/gftj/tipjar-go/internal/constants"
)

// Policy describes how an operation is retried
type Policy struct {
	// Attempts is the total number of tries, including the first
	Attempts int
	// Delay is the base delay between tries
	Delay time.Duration
	// BackoffCap bounds exponential sleeps in DoBackoff
	BackoffCap time.Duration
	// Logger defaults to a no-op logger
	Logger *zap.Logger
}

// Default returns the standard policy for RPC calls
func Default() Policy {
	return Policy{
		Attempts:   constants.DefaultRetryAttempts,
		Delay:      constants.DefaultRetryDelay,
		BackoffCap: constants.DefaultBackoffCap,
	}
}

func (p Policy) normalized() Policy {
	if p.Attempts <= 0 {
		p.Attempts = constants.DefaultRetryAttempts
	}
	if p.Delay <= 0 {
		p.Delay = constants.DefaultRetryDelay
	}
	if p.BackoffCap <= 0 {
		p.BackoffCap = constants.DefaultBackoffCap
	}
	if p.Logger == nil {
		p.Logger = zap.NewNop()
	}
	return p
}

// Do runs fn up to Attempts times with a linearly growing delay
// (Delay, 2*Delay, ...) between transient failures. A non-transient
// error aborts immediately. The last error is returned once attempts
// are exhausted.
func (p Policy) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	return p.run(ctx, op, fn, func(p Policy, attempt int) time.Duration {
		return p.Delay * time.Duration(attempt)
	})
}

// DoBackoff runs fn up to Attempts times with exponentially growing
// delays (Delay, 2*Delay, 4*Delay, ...) capped at BackoffCap.
func (p Policy) DoBackoff(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	return p.run(ctx, op, fn, func(p Policy, attempt int) time.Duration {
		delay := p.Delay << (attempt - 1)
		if delay > p.BackoffCap || delay <= 0 {
			delay = p.BackoffCap
		}
		return delay
	})
}

func (p Policy) run(ctx context.Context, op string, fn func(ctx context.Context) error, delayFor func(Policy, int) time.Duration) error {
	p = p.normalized()

	var lastErr error
	for attempt := 1; attempt <= p.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !errs.IsTransient(lastErr) {
			return lastErr
		}
		if attempt == p.Attempts {
			break
		}

		delay := delayFor(p, attempt)
		p.Logger.Warn("transient failure, retrying",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", p.Attempts),
			zap.Duration("delay", delay),
			zap.Error(lastErr))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return lastErr
}
