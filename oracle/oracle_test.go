package oracle

import (
	"context"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gftj/tipjar-go/internal/constants"
	"github.com/gftj/tipjar-go/storage"
)

func priceServer(t *testing.T, fail *atomic.Bool, usd float64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ethereum":{"usd":` + big.NewFloat(usd).Text('f', 2) + `}}`))
	}))
}

func TestPriceFeedFetches(t *testing.T) {
	var fail atomic.Bool
	srv := priceServer(t, &fail, 3210.55)
	defer srv.Close()

	f := NewPriceFeed(PriceConfig{URL: srv.URL}, storage.NewMemoryStore())
	assert.Nil(t, f.Snapshot())

	f.Refresh(context.Background())

	snap := f.Snapshot()
	require.NotNil(t, snap)
	assert.Equal(t, 3210.55, snap.USD)
	assert.False(t, snap.Stale)
}

func TestPriceFeedKeepsInMemoryValueOnFailure(t *testing.T) {
	var fail atomic.Bool
	srv := priceServer(t, &fail, 3210.55)
	defer srv.Close()

	f := NewPriceFeed(PriceConfig{URL: srv.URL}, storage.NewMemoryStore())
	f.Refresh(context.Background())

	fail.Store(true)
	f.Refresh(context.Background())

	snap := f.Snapshot()
	require.NotNil(t, snap)
	assert.Equal(t, 3210.55, snap.USD)
	assert.True(t, snap.Stale, "a fallback snapshot is marked stale")
}

func TestPriceFeedFallsBackToPersistedSnapshot(t *testing.T) {
	var fail atomic.Bool
	srv := priceServer(t, &fail, 2800.00)
	defer srv.Close()

	store := storage.NewMemoryStore()

	// a previous process persisted a price
	first := NewPriceFeed(PriceConfig{URL: srv.URL}, store)
	first.Refresh(context.Background())

	// a fresh process starts while the source is down
	fail.Store(true)
	second := NewPriceFeed(PriceConfig{URL: srv.URL}, store)
	second.Refresh(context.Background())

	snap := second.Snapshot()
	require.NotNil(t, snap, "persisted snapshot has no expiry")
	assert.Equal(t, 2800.00, snap.USD)
	assert.True(t, snap.Stale)
}

func TestPriceFeedNoSnapshotWithoutAnySource(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	srv := priceServer(t, &fail, 0)
	defer srv.Close()

	f := NewPriceFeed(PriceConfig{URL: srv.URL}, storage.NewMemoryStore())
	f.Refresh(context.Background())
	assert.Nil(t, f.Snapshot())
}

type mockGasClient struct {
	price *big.Int
	err   error
}

func (m *mockGasClient) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return m.price, m.err
}

func TestGasFeedUsesProviderPrice(t *testing.T) {
	f := NewGasFeed(GasConfig{}, &mockGasClient{price: big.NewInt(2_500_000_000)})
	assert.Nil(t, f.Estimate())

	f.Refresh(context.Background())

	est := f.Estimate()
	require.NotNil(t, est)
	assert.Equal(t, big.NewInt(2_500_000_000), est.PriceWei)
	assert.False(t, est.FallbackUsed)
}

func TestGasFeedFallsBackOnError(t *testing.T) {
	f := NewGasFeed(GasConfig{}, &mockGasClient{err: errors.New("rpc down")})
	f.Refresh(context.Background())

	est := f.Estimate()
	require.NotNil(t, est)
	assert.Equal(t, big.NewInt(constants.FallbackGasPriceWei), est.PriceWei)
	assert.True(t, est.FallbackUsed)
}

func TestGasFeedFallsBackOnNonPositivePrice(t *testing.T) {
	for _, price := range []*big.Int{nil, big.NewInt(0), big.NewInt(-5)} {
		f := NewGasFeed(GasConfig{}, &mockGasClient{price: price})
		f.Refresh(context.Background())

		est := f.Estimate()
		require.NotNil(t, est)
		assert.True(t, est.FallbackUsed)
		assert.Equal(t, big.NewInt(constants.FallbackGasPriceWei), est.PriceWei)
	}
}

func TestGasEstimateIsACopy(t *testing.T) {
	f := NewGasFeed(GasConfig{}, &mockGasClient{price: big.NewInt(100)})
	f.Refresh(context.Background())

	est := f.Estimate()
	est.PriceWei.SetInt64(999)

	assert.Equal(t, big.NewInt(100), f.Estimate().PriceWei)
}
