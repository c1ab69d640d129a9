package oracle

import (
	"context"
	"math/big"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/gftj/tipjar-go/internal/constants"
)

// GasEstimate is the cached safe gas price
type GasEstimate struct {
	// PriceWei is the safe gas price in wei
	PriceWei *big.Int `json:"priceWei"`
	// FallbackUsed marks an estimate substituted with the conservative
	// floor because the provider failed or returned nonsense
	FallbackUsed bool `json:"fallbackUsed"`
	// FetchedAt is when the estimate was taken
	FetchedAt time.Time `json:"fetchedAt"`
}

// GasClient is the chain access the gas feed needs
type GasClient interface {
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
}

// GasConfig holds gas feed configuration
type GasConfig struct {
	// RefreshInterval drives the background loop
	RefreshInterval time.Duration
	// Logger defaults to a no-op logger
	Logger *zap.Logger
}

// GasFeed periodically fetches the provider's suggested gas price.
// A failing or non-positive suggestion is replaced with a fixed
// conservative floor so tip cost previews always have a number.
type GasFeed struct {
	cfg    GasConfig
	client GasClient
	logger *zap.Logger

	mu       sync.RWMutex
	estimate *GasEstimate
}

// NewGasFeed creates a gas feed
func NewGasFeed(cfg GasConfig, client GasClient) *GasFeed {
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = constants.DefaultGasRefreshInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &GasFeed{
		cfg:    cfg,
		client: client,
		logger: cfg.Logger,
	}
}

// Run refreshes on the configured interval until ctx is cancelled
func (f *GasFeed) Run(ctx context.Context) {
	f.Refresh(ctx)

	ticker := time.NewTicker(f.cfg.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.Refresh(ctx)
		}
	}
}

// Refresh fetches the gas price now
func (f *GasFeed) Refresh(ctx context.Context) {
	estimate := &GasEstimate{FetchedAt: time.Now().UTC()}

	price, err := f.client.SuggestGasPrice(ctx)
	if err != nil || price == nil || price.Sign() <= 0 {
		if err != nil {
			f.logger.Warn("gas price fetch failed, using fallback", zap.Error(err))
		}
		estimate.PriceWei = big.NewInt(constants.FallbackGasPriceWei)
		estimate.FallbackUsed = true
	} else {
		estimate.PriceWei = price
	}

	f.mu.Lock()
	f.estimate = estimate
	f.mu.Unlock()
}

// Estimate returns the current safe gas price, or nil before the
// first refresh
func (f *GasFeed) Estimate() *GasEstimate {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.estimate == nil {
		return nil
	}
	copied := *f.estimate
	copied.PriceWei = new(big.Int).Set(f.estimate.PriceWei)
	return &copied
}
