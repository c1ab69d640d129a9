package feed

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/gftj/tipjar-go/internal/constants"
)

// Poller refreshes one jar's feed on an interval and fans results out
// to subscribers. Refreshes are skipped while the consumer is hidden;
// regaining visibility forces an immediate refresh. A failed refresh
// keeps the last good result.
type Poller struct {
	scanner  *Scanner
	interval time.Duration
	logger   *zap.Logger

	hidden atomic.Bool
	wake   chan struct{}

	// refreshMu serializes refreshes so a manual refresh waits for an
	// in-progress tick instead of observing a partial state
	refreshMu sync.Mutex

	mu      sync.RWMutex
	last    *Result
	lastErr error
	subs    map[chan *Result]struct{}
}

// NewPoller creates a poller around a scanner
func NewPoller(scanner *Scanner, interval time.Duration, logger *zap.Logger) *Poller {
	if interval <= 0 {
		interval = constants.DefaultFeedRefreshInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{
		scanner:  scanner,
		interval: interval,
		logger:   logger.With(zap.String("jar", scanner.Jar().Hex())),
		wake:     make(chan struct{}, 1),
		subs:     make(map[chan *Result]struct{}),
	}
}

// Run refreshes on the configured interval until ctx is cancelled
func (p *Poller) Run(ctx context.Context) {
	p.refresh(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.wake:
			p.refresh(ctx)
		case <-ticker.C:
			if p.hidden.Load() {
				p.logger.Debug("skipping refresh while hidden")
				continue
			}
			p.refresh(ctx)
		}
	}
}

// SetHidden marks the consumer hidden or visible. The transition back
// to visible triggers an immediate refresh.
func (p *Poller) SetHidden(hidden bool) {
	was := p.hidden.Swap(hidden)
	if was && !hidden {
		select {
		case p.wake <- struct{}{}:
		default:
		}
	}
}

// Refresh runs a scan now and returns the outcome. On failure the
// previous result is retained and the error recorded.
func (p *Poller) Refresh(ctx context.Context) (*Result, error) {
	return p.refresh(ctx)
}

func (p *Poller) refresh(ctx context.Context) (*Result, error) {
	p.refreshMu.Lock()
	defer p.refreshMu.Unlock()

	result, err := p.scanner.Scan(ctx)
	if err == ErrScanInFlight {
		p.mu.RLock()
		defer p.mu.RUnlock()
		return p.last, p.lastErr
	}

	p.mu.Lock()
	if err != nil {
		p.lastErr = err
		p.logger.Warn("feed refresh failed, keeping last results", zap.Error(err))
		last := p.last
		p.mu.Unlock()
		return last, err
	}
	p.last = result
	p.lastErr = nil
	subs := make([]chan *Result, 0, len(p.subs))
	for ch := range p.subs {
		subs = append(subs, ch)
	}
	p.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- result:
		default:
			// slow subscribers drop updates rather than block the poller
		}
	}
	return result, nil
}

// Last returns the most recent good result and the most recent error.
// Both may be non-nil when a refresh failed after an earlier success.
func (p *Poller) Last() (*Result, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.last, p.lastErr
}

// Subscribe registers for refresh results. The returned cancel func
// must be called to release the subscription.
func (p *Poller) Subscribe() (<-chan *Result, func()) {
	ch := make(chan *Result, 1)

	p.mu.Lock()
	p.subs[ch] = struct{}{}
	p.mu.Unlock()

	cancel := func() {
		p.mu.Lock()
		delete(p.subs, ch)
		p.mu.Unlock()
	}
	return ch, cancel
}
