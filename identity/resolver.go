// Package identity resolves tipper addresses to primary names so the
// feed can show "vitalik.eth" instead of a hex string. Lookups run on
// a small fixed worker pool and results, including misses, are cached.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/gftj/tipjar-go/internal/constants"
	"github.com/gftj/tipjar-go/storage"
)

// NameService performs a single reverse lookup
type NameService interface {
	// ResolveName returns the primary name for an address, or "" when
	// the address has none
	ResolveName(ctx context.Context, addr common.Address) (string, error)
}

// AvatarService extends a name service with avatar text lookups
type AvatarService interface {
	// ResolveAvatar returns the avatar record for a name, or ""
	ResolveAvatar(ctx context.Context, name string) (string, error)
}

// Profile is a fully resolved identity
type Profile struct {
	Address common.Address `json:"address"`
	Name    string         `json:"name,omitempty"`
	Avatar  string         `json:"avatar,omitempty"`
}

// cacheEntry is the persisted form of a lookup result. Misses are
// stored with an empty name so they are not retried on every refresh.
type cacheEntry struct {
	Name       string    `json:"name"`
	ResolvedAt time.Time `json:"resolvedAt"`
}

// Config holds resolver configuration
type Config struct {
	// Workers is the fixed pool size
	Workers int
	// BatchLimit caps unique addresses per batch
	BatchLimit int
	// Logger defaults to a no-op logger
	Logger *zap.Logger
}

// Resolver resolves batches of addresses through a worker pool
type Resolver struct {
	svc    NameService
	store  storage.Store
	cfg    Config
	logger *zap.Logger
}

// NewResolver creates a resolver. The store may be nil, in which case
// nothing is cached across batches.
func NewResolver(svc NameService, store storage.Store, cfg Config) (*Resolver, error) {
	if svc == nil {
		return nil, fmt.Errorf("name service cannot be nil")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = constants.DefaultResolverWorkers
	}
	if cfg.BatchLimit <= 0 {
		cfg.BatchLimit = constants.DefaultResolverBatch
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Resolver{
		svc:    svc,
		store:  store,
		cfg:    cfg,
		logger: cfg.Logger,
	}, nil
}

// ResolveBatch resolves up to the batch limit of unique addresses and
// returns the names found. Addresses without a name are absent from
// the result. Lookup failures are logged and skipped; a failed batch
// never fails the caller.
func (r *Resolver) ResolveBatch(ctx context.Context, addrs []common.Address) map[common.Address]string {
	unique := dedupe(addrs, r.cfg.BatchLimit)

	results := make(map[common.Address]string)
	var mu sync.Mutex

	pending := make([]common.Address, 0, len(unique))
	for _, addr := range unique {
		if name, ok, hit := r.cached(addr); hit {
			if ok {
				results[addr] = name
			}
			continue
		}
		pending = append(pending, addr)
	}

	if len(pending) == 0 {
		return results
	}

	jobs := make(chan common.Address)
	var wg sync.WaitGroup

	for i := 0; i < r.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for addr := range jobs {
				name, err := r.svc.ResolveName(ctx, addr)
				if err != nil {
					r.logger.Debug("name lookup failed",
						zap.String("address", addr.Hex()),
						zap.Error(err))
					continue
				}
				r.cache(addr, name)
				if name != "" {
					mu.Lock()
					results[addr] = name
					mu.Unlock()
				}
			}
		}()
	}

	for _, addr := range pending {
		select {
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return results
		case jobs <- addr:
		}
	}
	close(jobs)
	wg.Wait()

	return results
}

// Profile resolves one address in full: the primary name plus, when
// the underlying service supports it, the avatar record. Avatars are
// not cached; callers ask for a profile far less often than for names.
func (r *Resolver) Profile(ctx context.Context, addr common.Address) Profile {
	p := Profile{Address: addr}

	names := r.ResolveBatch(ctx, []common.Address{addr})
	p.Name = names[addr]
	if p.Name == "" {
		return p
	}

	if svc, ok := r.svc.(AvatarService); ok {
		avatar, err := svc.ResolveAvatar(ctx, p.Name)
		if err != nil {
			r.logger.Debug("avatar lookup failed",
				zap.String("name", p.Name),
				zap.Error(err))
			return p
		}
		p.Avatar = avatar
	}
	return p
}

// cached returns (name, hasName, cacheHit)
func (r *Resolver) cached(addr common.Address) (string, bool, bool) {
	if r.store == nil {
		return "", false, false
	}
	raw, err := r.store.Get(storage.NameKey(addr.Hex()))
	if errors.Is(err, storage.ErrNotFound) {
		return "", false, false
	}
	if err != nil {
		r.logger.Warn("name cache read failed", zap.Error(err))
		return "", false, false
	}

	var entry cacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return "", false, false
	}
	return entry.Name, entry.Name != "", true
}

func (r *Resolver) cache(addr common.Address, name string) {
	if r.store == nil {
		return
	}
	raw, err := json.Marshal(cacheEntry{Name: name, ResolvedAt: time.Now().UTC()})
	if err != nil {
		return
	}
	if err := r.store.Set(storage.NameKey(addr.Hex()), raw); err != nil {
		r.logger.Warn("name cache write failed", zap.Error(err))
	}
}

// dedupe lowercases, de-duplicates and caps an address list while
// preserving first-seen order
func dedupe(addrs []common.Address, limit int) []common.Address {
	seen := make(map[string]struct{}, len(addrs))
	out := make([]common.Address, 0, len(addrs))
	for _, addr := range addrs {
		key := strings.ToLower(addr.Hex())
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, addr)
		if len(out) == limit {
			break
		}
	}
	return out
}
