package feed

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/gftj/tipjar-go/retry"
)

// ManagerConfig holds the shared settings applied to every jar feed
type ManagerConfig struct {
	Window          uint64
	MaxChunks       int
	Cap             int
	RefreshInterval time.Duration
	Retry           retry.Policy
	Logger          *zap.Logger
	Metrics         *Metrics
}

// Manager maintains one poller per jar, created lazily on first use
type Manager struct {
	cfg    ManagerConfig
	client Client
	logger *zap.Logger

	mu      sync.Mutex
	pollers map[common.Address]*Poller
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewManager creates a feed manager
func NewManager(cfg ManagerConfig, client Client) (*Manager, error) {
	if client == nil {
		return nil, fmt.Errorf("client cannot be nil")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		cfg:     cfg,
		client:  client,
		logger:  cfg.Logger,
		pollers: make(map[common.Address]*Poller),
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// Poller returns the poller for a jar, creating and starting it on
// first use
func (m *Manager) Poller(jar common.Address) (*Poller, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p, ok := m.pollers[jar]; ok {
		return p, nil
	}

	scanner, err := NewScanner(Config{
		Jar:       jar,
		Window:    m.cfg.Window,
		MaxChunks: m.cfg.MaxChunks,
		Cap:       m.cfg.Cap,
		Retry:     m.cfg.Retry,
		Logger:    m.logger,
		Metrics:   m.cfg.Metrics,
	}, m.client)
	if err != nil {
		return nil, fmt.Errorf("failed to create scanner for %s: %w", jar.Hex(), err)
	}

	p := NewPoller(scanner, m.cfg.RefreshInterval, m.logger)
	m.pollers[jar] = p

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		p.Run(m.ctx)
	}()

	m.logger.Info("started feed poller", zap.String("jar", jar.Hex()))
	return p, nil
}

// Feed returns the current feed for a jar. The first call for a jar
// blocks on an initial scan; later calls return the cached result.
func (m *Manager) Feed(ctx context.Context, jar common.Address) (*Result, error) {
	p, err := m.Poller(jar)
	if err != nil {
		return nil, err
	}

	if last, lastErr := p.Last(); last != nil {
		return last, nil
	} else if lastErr != nil {
		return nil, lastErr
	}

	result, err := p.Refresh(ctx)
	if result != nil {
		return result, nil
	}
	return nil, err
}

// Stop cancels all pollers and waits for them to exit
func (m *Manager) Stop() {
	m.cancel()
	m.wg.Wait()
}
