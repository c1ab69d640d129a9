// Package oracle maintains the reference price and safe gas price
// caches the tipping flows read from.
package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/gftj/tipjar-go/internal/constants"
	"github.com/gftj/tipjar-go/storage"
)

// PriceSnapshot is the cached native token reference price
type PriceSnapshot struct {
	// USD is the price of one native token in US dollars
	USD float64 `json:"usd"`
	// FetchedAt is when the price was fetched from the source
	FetchedAt time.Time `json:"fetchedAt"`
	// Stale marks a snapshot served from persistence after a failed
	// fetch. Stale snapshots have no expiry; an old price beats none.
	Stale bool `json:"stale"`
}

// PriceConfig holds price feed configuration
type PriceConfig struct {
	// URL is a coingecko simple-price shaped endpoint
	URL string
	// RefreshInterval drives the background loop
	RefreshInterval time.Duration
	// HTTPClient defaults to a client with a sane timeout
	HTTPClient *http.Client
	// Logger defaults to a no-op logger
	Logger *zap.Logger
}

// PriceFeed periodically fetches the reference price and falls back to
// the last persisted snapshot when the source is unreachable
type PriceFeed struct {
	cfg    PriceConfig
	store  storage.Store
	logger *zap.Logger

	mu   sync.RWMutex
	snap *PriceSnapshot
}

// NewPriceFeed creates a price feed. The store may be nil, in which
// case fallbacks only survive for the process lifetime.
func NewPriceFeed(cfg PriceConfig, store storage.Store) *PriceFeed {
	if cfg.URL == "" {
		cfg.URL = constants.DefaultPriceURL
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = constants.DefaultPriceRefreshInterval
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &PriceFeed{
		cfg:    cfg,
		store:  store,
		logger: cfg.Logger,
	}
}

// Run refreshes on the configured interval until ctx is cancelled
func (f *PriceFeed) Run(ctx context.Context) {
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

// Refresh fetches the price now. On failure the last known snapshot,
// in-memory or persisted, is installed marked stale.
func (f *PriceFeed) Refresh(ctx context.Context) {
	snap, err := f.fetch(ctx)
	if err != nil {
		f.logger.Warn("price fetch failed, falling back to last snapshot", zap.Error(err))
		f.installFallback()
		return
	}

	f.mu.Lock()
	f.snap = snap
	f.mu.Unlock()
	f.persist(snap)
}

// Snapshot returns the current price, or nil when no price has ever
// been fetched or persisted
func (f *PriceFeed) Snapshot() *PriceSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.snap == nil {
		return nil
	}
	copied := *f.snap
	return &copied
}

func (f *PriceFeed) fetch(ctx context.Context) (*PriceSnapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build price request: %w", err)
	}

	resp, err := f.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("price request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("price source returned status %d", resp.StatusCode)
	}

	var payload map[string]map[string]float64
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode price payload: %w", err)
	}

	usd, ok := payload["ethereum"]["usd"]
	if !ok || usd <= 0 {
		return nil, fmt.Errorf("price payload missing usd quote")
	}

	return &PriceSnapshot{USD: usd, FetchedAt: time.Now().UTC()}, nil
}

func (f *PriceFeed) installFallback() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.snap != nil {
		f.snap.Stale = true
		return
	}

	if f.store == nil {
		return
	}
	raw, err := f.store.Get(storage.PriceSnapshotKey())
	if errors.Is(err, storage.ErrNotFound) {
		return
	}
	if err != nil {
		f.logger.Warn("price snapshot read failed", zap.Error(err))
		return
	}

	var snap PriceSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		f.logger.Warn("price snapshot corrupt, ignoring", zap.Error(err))
		return
	}
	snap.Stale = true
	f.snap = &snap
}

func (f *PriceFeed) persist(snap *PriceSnapshot) {
	if f.store == nil {
		return
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return
	}
	if err := f.store.Set(storage.PriceSnapshotKey(), raw); err != nil {
		f.logger.Warn("price snapshot write failed", zap.Error(err))
	}
}
