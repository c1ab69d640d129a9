// Package feed scans jar contracts for Tipped events. Scans walk the
// chain backwards in bounded windows, shrinking the window under
// provider pressure so a rate-limited free tier still makes progress.
package feed

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/gftj/tipjar-go/contracts"
	"github.com/gftj/tipjar-go/errs"
	"github.com/gftj/tipjar-go/internal/constants"
	"github.com/gftj/tipjar-go/retry"
)

// ErrScanInFlight is returned when a scan is requested while another
// scan for the same jar is still running
var ErrScanInFlight = errors.New("feed: scan already in flight")

// Client is the chain access the scanner needs
type Client interface {
	BlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
}

// Config holds scanner configuration
type Config struct {
	// Jar is the contract address to scan
	Jar common.Address
	// Window is the initial block range per query
	Window uint64
	// MaxChunks bounds range queries per scan
	MaxChunks int
	// Cap is the maximum number of tips returned
	Cap int
	// Retry is the policy for transient provider failures
	Retry retry.Policy
	// Logger defaults to a no-op logger
	Logger *zap.Logger
	// Metrics may be nil
	Metrics *Metrics
}

// Validate checks the configuration
func (c *Config) Validate() error {
	if c.Jar == (common.Address{}) {
		return fmt.Errorf("jar address is required")
	}
	if c.Window == 0 {
		return fmt.Errorf("window must be positive")
	}
	if c.MaxChunks <= 0 {
		return fmt.Errorf("max chunks must be positive")
	}
	if c.Cap <= 0 {
		return fmt.Errorf("cap must be positive")
	}
	return nil
}

// Scanner scans one jar for tips. At most one scan runs at a time;
// concurrent callers get ErrScanInFlight.
type Scanner struct {
	cfg      Config
	client   Client
	logger   *zap.Logger
	inFlight atomic.Bool
}

// NewScanner creates a scanner for a single jar
func NewScanner(cfg Config, client Client) (*Scanner, error) {
	if client == nil {
		return nil, fmt.Errorf("client cannot be nil")
	}
	if cfg.Window == 0 {
		cfg.Window = constants.DefaultScanWindow
	}
	if cfg.MaxChunks == 0 {
		cfg.MaxChunks = constants.DefaultMaxChunks
	}
	if cfg.Cap == 0 {
		cfg.Cap = constants.DefaultFeedCap
	}
	if cfg.Retry.Attempts == 0 {
		cfg.Retry = retry.Default()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scanner config: %w", err)
	}

	return &Scanner{
		cfg:    cfg,
		client: client,
		logger: cfg.Logger.With(zap.String("jar", cfg.Jar.Hex())),
	}, nil
}

// Jar returns the scanned contract address
func (s *Scanner) Jar() common.Address {
	return s.cfg.Jar
}

// Scan walks the chain backwards from the head and returns the newest
// tips, capped and sorted newest-first. The window halves after each
// transient failure and never regrows within a scan; a failing range
// is retried at the same upper bound with the smaller window.
func (s *Scanner) Scan(ctx context.Context) (*Result, error) {
	if !s.inFlight.CompareAndSwap(false, true) {
		return nil, ErrScanInFlight
	}
	defer s.inFlight.Store(false)

	s.cfg.Metrics.recordScan()
	start := time.Now()

	var latest uint64
	err := s.cfg.Retry.Do(ctx, "block_number", func(ctx context.Context) error {
		var err error
		latest, err = s.client.BlockNumber(ctx)
		return err
	})
	if err != nil {
		s.cfg.Metrics.recordScanError()
		return nil, fmt.Errorf("failed to resolve chain head: %w", err)
	}

	window := s.cfg.Window
	to := latest
	lowest := latest
	chunks := 0
	consecutive := 0
	seen := make(map[common.Hash]struct{})
	var tips []TipRecord

	for chunks < s.cfg.MaxChunks && len(tips) < s.cfg.Cap {
		var from uint64
		if to >= window {
			from = to - window + 1
		}

		logs, err := s.client.FilterLogs(ctx, ethereum.FilterQuery{
			FromBlock: new(big.Int).SetUint64(from),
			ToBlock:   new(big.Int).SetUint64(to),
			Addresses: []common.Address{s.cfg.Jar},
			Topics:    [][]common.Hash{{contracts.TippedTopic}},
		})
		if err != nil {
			if !errs.IsTransient(err) {
				s.cfg.Metrics.recordScanError()
				return nil, fmt.Errorf("log query failed: %w", err)
			}

			consecutive++
			s.cfg.Metrics.recordTransientRetry()
			if consecutive >= s.cfg.Retry.Attempts {
				s.cfg.Metrics.recordScanError()
				return nil, errs.Wrap(errs.BackendUnhealthy,
					"The network provider is unstable right now. Please try again later.", err)
			}

			if window > constants.MinScanWindow {
				window = window / 2
				if window < constants.MinScanWindow {
					window = constants.MinScanWindow
				}
				s.cfg.Metrics.recordWindowShrink()
			}

			delay := backoffDelay(s.cfg.Retry, consecutive)
			s.logger.Warn("transient log query failure, shrinking window",
				zap.Uint64("to_block", to),
				zap.Uint64("window", window),
				zap.Int("consecutive", consecutive),
				zap.Duration("delay", delay),
				zap.Error(err))

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			continue
		}

		consecutive = 0
		chunks++
		s.cfg.Metrics.recordChunk()

		for _, lg := range logs {
			if _, dup := seen[lg.TxHash]; dup {
				continue
			}
			ev, err := contracts.DecodeTipped(lg)
			if err != nil {
				s.logger.Warn("skipping undecodable log",
					zap.String("tx_hash", lg.TxHash.Hex()),
					zap.Error(err))
				continue
			}
			seen[lg.TxHash] = struct{}{}
			tips = append(tips, TipRecord{
				From:        ev.From,
				Amount:      ev.Amount,
				Message:     SanitizeMessage(ev.Message),
				BlockNumber: lg.BlockNumber,
				TxHash:      lg.TxHash,
				LogIndex:    lg.Index,
			})
		}

		lowest = from
		if from == 0 {
			break
		}
		to = from - 1
	}

	sortTips(tips)
	if len(tips) > s.cfg.Cap {
		tips = tips[:s.cfg.Cap]
	}

	s.cfg.Metrics.recordResult(len(tips), time.Since(start).Seconds())
	s.logger.Debug("scan complete",
		zap.Int("tips", len(tips)),
		zap.Int("chunks", chunks),
		zap.Uint64("from_block", lowest),
		zap.Uint64("to_block", latest))

	return &Result{
		Tips:       tips,
		FromBlock:  lowest,
		ToBlock:    latest,
		ChunksUsed: chunks,
	}, nil
}

func backoffDelay(p retry.Policy, consecutive int) time.Duration {
	delay := p.Delay << (consecutive - 1)
	if delay > p.BackoffCap || delay <= 0 {
		delay = p.BackoffCap
	}
	return delay
}

// sortTips orders newest-first: block number descending, then log
// index descending within a block
func sortTips(tips []TipRecord) {
	sort.SliceStable(tips, func(i, j int) bool {
		if tips[i].BlockNumber != tips[j].BlockNumber {
			return tips[i].BlockNumber > tips[j].BlockNumber
		}
		return tips[i].LogIndex > tips[j].LogIndex
	})
}
