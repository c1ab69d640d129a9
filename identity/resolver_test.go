package identity

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gftj/tipjar-go/storage"
)

type mockNameService struct {
	mu    sync.Mutex
	names map[common.Address]string
	errs  map[common.Address]error
	calls map[common.Address]int
}

func newMockNameService() *mockNameService {
	return &mockNameService{
		names: make(map[common.Address]string),
		errs:  make(map[common.Address]error),
		calls: make(map[common.Address]int),
	}
}

func (m *mockNameService) ResolveName(ctx context.Context, addr common.Address) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[addr]++
	if err := m.errs[addr]; err != nil {
		return "", err
	}
	return m.names[addr], nil
}

func (m *mockNameService) callCount(addr common.Address) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[addr]
}

func addr(seed byte) common.Address {
	var a common.Address
	a[19] = seed
	return a
}

func TestResolveBatch(t *testing.T) {
	svc := newMockNameService()
	svc.names[addr(1)] = "alice.eth"
	svc.names[addr(2)] = "bob.eth"

	r, err := NewResolver(svc, storage.NewMemoryStore(), Config{})
	require.NoError(t, err)

	got := r.ResolveBatch(context.Background(), []common.Address{addr(1), addr(2), addr(3)})

	assert.Equal(t, map[common.Address]string{
		addr(1): "alice.eth",
		addr(2): "bob.eth",
	}, got)
}

func TestResolveBatchDeduplicates(t *testing.T) {
	svc := newMockNameService()
	svc.names[addr(1)] = "alice.eth"

	r, err := NewResolver(svc, nil, Config{})
	require.NoError(t, err)

	got := r.ResolveBatch(context.Background(), []common.Address{addr(1), addr(1), addr(1)})

	assert.Len(t, got, 1)
	assert.Equal(t, 1, svc.callCount(addr(1)))
}

func TestResolveBatchHonorsLimit(t *testing.T) {
	svc := newMockNameService()
	addrs := make([]common.Address, 10)
	for i := range addrs {
		addrs[i] = addr(byte(i + 1))
		svc.names[addrs[i]] = "name.eth"
	}

	r, err := NewResolver(svc, nil, Config{BatchLimit: 4})
	require.NoError(t, err)

	got := r.ResolveBatch(context.Background(), addrs)
	assert.Len(t, got, 4)
	assert.Equal(t, 0, svc.callCount(addrs[9]), "addresses past the limit are not looked up")
}

func TestResolveBatchCachesMisses(t *testing.T) {
	svc := newMockNameService()
	// addr(1) has no name

	r, err := NewResolver(svc, storage.NewMemoryStore(), Config{})
	require.NoError(t, err)

	got := r.ResolveBatch(context.Background(), []common.Address{addr(1)})
	assert.Empty(t, got)
	assert.Equal(t, 1, svc.callCount(addr(1)))

	got = r.ResolveBatch(context.Background(), []common.Address{addr(1)})
	assert.Empty(t, got)
	assert.Equal(t, 1, svc.callCount(addr(1)), "negative result served from cache")
}

func TestResolveBatchCachesHitsAcrossBatches(t *testing.T) {
	svc := newMockNameService()
	svc.names[addr(1)] = "alice.eth"

	r, err := NewResolver(svc, storage.NewMemoryStore(), Config{})
	require.NoError(t, err)

	first := r.ResolveBatch(context.Background(), []common.Address{addr(1)})
	second := r.ResolveBatch(context.Background(), []common.Address{addr(1)})

	assert.Equal(t, first, second)
	assert.Equal(t, 1, svc.callCount(addr(1)))
}

func TestResolveBatchDoesNotCacheErrors(t *testing.T) {
	svc := newMockNameService()
	svc.errs[addr(1)] = errors.New("rpc unreachable")

	r, err := NewResolver(svc, storage.NewMemoryStore(), Config{})
	require.NoError(t, err)

	got := r.ResolveBatch(context.Background(), []common.Address{addr(1)})
	assert.Empty(t, got)

	// a later batch retries after a transport failure
	svc.mu.Lock()
	delete(svc.errs, addr(1))
	svc.names[addr(1)] = "alice.eth"
	svc.mu.Unlock()

	got = r.ResolveBatch(context.Background(), []common.Address{addr(1)})
	assert.Equal(t, "alice.eth", got[addr(1)])
	assert.Equal(t, 2, svc.callCount(addr(1)))
}

type mockAvatarService struct {
	*mockNameService
	avatars map[string]string
}

func (m *mockAvatarService) ResolveAvatar(ctx context.Context, name string) (string, error) {
	return m.avatars[name], nil
}

func TestProfile(t *testing.T) {
	svc := &mockAvatarService{
		mockNameService: newMockNameService(),
		avatars:         map[string]string{"alice.eth": "https://example.com/a.png"},
	}
	svc.names[addr(1)] = "alice.eth"

	r, err := NewResolver(svc, storage.NewMemoryStore(), Config{})
	require.NoError(t, err)

	p := r.Profile(context.Background(), addr(1))
	assert.Equal(t, "alice.eth", p.Name)
	assert.Equal(t, "https://example.com/a.png", p.Avatar)

	p = r.Profile(context.Background(), addr(2))
	assert.Empty(t, p.Name)
	assert.Empty(t, p.Avatar, "no avatar lookup without a name")
}

func TestProfileWithoutAvatarSupport(t *testing.T) {
	svc := newMockNameService()
	svc.names[addr(1)] = "alice.eth"

	r, err := NewResolver(svc, nil, Config{})
	require.NoError(t, err)

	p := r.Profile(context.Background(), addr(1))
	assert.Equal(t, "alice.eth", p.Name)
	assert.Empty(t, p.Avatar)
}

func TestNamehash(t *testing.T) {
	assert.Equal(t, common.Hash{}, Namehash(""))
	assert.Equal(t,
		common.HexToHash("0x93cdeb708b7545dc668eb9280176169d1c33cfd8ed6f04690a0bcc88a93fc4ae"),
		Namehash("eth"))
	assert.Equal(t,
		common.HexToHash("0xde9b09fd7c5f901e23a3f19fecc54828e9c848539801e86591bd9801b019f84f"),
		Namehash("foo.eth"))
}
