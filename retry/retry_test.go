package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errRateLimited = errors.New("over rate limit")

func fastPolicy(attempts int) Policy {
	return Policy{
		Attempts:   attempts,
		Delay:      time.Millisecond,
		BackoffCap: 4 * time.Millisecond,
	}
}

func TestDoSucceedsFirstTry(t *testing.T) {
	calls := 0
	err := fastPolicy(3).Do(context.Background(), "op", func(ctx context.Context) error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoRetriesTransient(t *testing.T) {
	calls := 0
	err := fastPolicy(3).Do(context.Background(), "op", func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errRateLimited
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoExhaustsTransient(t *testing.T) {
	calls := 0
	err := fastPolicy(3).Do(context.Background(), "op", func(ctx context.Context) error {
		calls++
		return errRateLimited
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, errRateLimited)
	assert.Equal(t, 3, calls)
}

func TestDoAbortsOnNonTransient(t *testing.T) {
	fatal := errors.New("execution reverted: not owner")
	calls := 0
	err := fastPolicy(3).Do(context.Background(), "op", func(ctx context.Context) error {
		calls++
		return fatal
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, fatal)
	assert.Equal(t, 1, calls, "non-transient errors must not be retried")
}

func TestDoRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	err := Policy{Attempts: 5, Delay: time.Minute}.Do(ctx, "op", func(ctx context.Context) error {
		calls++
		cancel()
		return errRateLimited
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestDoBackoffGrowsAndCaps(t *testing.T) {
	p := Policy{Attempts: 4, Delay: time.Millisecond, BackoffCap: 2 * time.Millisecond}

	var delays []time.Duration
	last := time.Now()
	calls := 0
	err := p.DoBackoff(context.Background(), "op", func(ctx context.Context) error {
		now := time.Now()
		if calls > 0 {
			delays = append(delays, now.Sub(last))
		}
		last = now
		calls++
		return errRateLimited
	})

	require.Error(t, err)
	require.Len(t, delays, 3)
	// 1ms, 2ms, then capped at 2ms; allow generous scheduling slack upward only
	assert.GreaterOrEqual(t, delays[1], delays[0])
	assert.Less(t, delays[2], 100*time.Millisecond)
}
