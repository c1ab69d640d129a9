package feed

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPoller(t *testing.T, client Client) *Poller {
	t.Helper()
	scanner := newTestScanner(t, client, 15_000, 6, 20)
	return NewPoller(scanner, time.Hour, nil)
}

func TestPollerKeepsLastGoodResultOnFailure(t *testing.T) {
	var fail atomic.Bool
	client := &mockClient{
		blockNumber: 10_000,
		filterFn: func(call int, q ethereum.FilterQuery) ([]types.Log, error) {
			if fail.Load() {
				return nil, errRateLimited
			}
			return []types.Log{tippedLog(t, 9_999, 1, 0, 10, "kept")}, nil
		},
	}

	p := newTestPoller(t, client)

	first, err := p.Refresh(context.Background())
	require.NoError(t, err)
	require.Len(t, first.Tips, 1)

	fail.Store(true)
	got, err := p.Refresh(context.Background())
	require.Error(t, err)
	require.NotNil(t, got, "previous result survives a failed refresh")
	assert.Equal(t, "kept", got.Tips[0].Message)

	last, lastErr := p.Last()
	assert.Equal(t, first.Tips, last.Tips)
	assert.Error(t, lastErr)

	// recovery clears the recorded error
	fail.Store(false)
	_, err = p.Refresh(context.Background())
	require.NoError(t, err)
	_, lastErr = p.Last()
	assert.NoError(t, lastErr)
}

func TestPollerNotifiesSubscribers(t *testing.T) {
	client := &mockClient{
		blockNumber: 10_000,
		filterFn: func(call int, q ethereum.FilterQuery) ([]types.Log, error) {
			return []types.Log{tippedLog(t, 9_999, byte(call), 0, 10, "update")}, nil
		},
	}

	p := newTestPoller(t, client)
	ch, cancel := p.Subscribe()
	defer cancel()

	_, err := p.Refresh(context.Background())
	require.NoError(t, err)

	select {
	case result := <-ch:
		require.Len(t, result.Tips, 1)
	case <-time.After(time.Second):
		t.Fatal("subscriber did not receive refresh result")
	}

	cancel()
	_, err = p.Refresh(context.Background())
	require.NoError(t, err)
	select {
	case <-ch:
		t.Fatal("cancelled subscriber still receiving")
	default:
	}
}

func TestPollerVisibilityTransitionWakesRun(t *testing.T) {
	var scans atomic.Int32
	client := &mockClient{
		blockNumber: 10_000,
		filterFn: func(call int, q ethereum.FilterQuery) ([]types.Log, error) {
			scans.Add(1)
			return nil, nil
		},
	}

	p := newTestPoller(t, client)
	p.SetHidden(true)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	// initial refresh on start
	require.Eventually(t, func() bool { return scans.Load() == 1 }, time.Second, 5*time.Millisecond)

	// regaining visibility forces an immediate refresh
	p.SetHidden(false)
	require.Eventually(t, func() bool { return scans.Load() == 2 }, time.Second, 5*time.Millisecond)

	// setting visible again without a transition does nothing
	p.SetHidden(false)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(2), scans.Load())
}

func TestManagerReusesPollerPerJar(t *testing.T) {
	client := &mockClient{
		blockNumber: 10_000,
		filterFn: func(call int, q ethereum.FilterQuery) ([]types.Log, error) {
			return []types.Log{tippedLog(t, 9_999, 1, 0, 10, "hello")}, nil
		},
	}

	m, err := NewManager(ManagerConfig{
		Window:          15_000,
		MaxChunks:       6,
		Cap:             20,
		RefreshInterval: time.Hour,
		Retry:           fastRetry(),
	}, client)
	require.NoError(t, err)
	defer m.Stop()

	p1, err := m.Poller(testJar)
	require.NoError(t, err)
	p2, err := m.Poller(testJar)
	require.NoError(t, err)
	assert.Same(t, p1, p2)

	result, err := m.Feed(context.Background(), testJar)
	require.NoError(t, err)
	require.Len(t, result.Tips, 1)
}
