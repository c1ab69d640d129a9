package jars

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gftj/tipjar-go/storage"
)

func newTestRegistry(t *testing.T) (*Registry, storage.Store) {
	t.Helper()
	store := storage.NewMemoryStore()
	reg, err := NewRegistry(store)
	require.NoError(t, err)
	return reg, store
}

func TestRegistryEmpty(t *testing.T) {
	reg, _ := newTestRegistry(t)
	entries, err := reg.List()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRegistryUpsertAndOrder(t *testing.T) {
	reg, _ := newTestRegistry(t)

	require.NoError(t, reg.Upsert("0xaaaa000000000000000000000000000000000001", "first"))
	time.Sleep(2 * time.Millisecond)
	require.NoError(t, reg.Upsert("0xaaaa000000000000000000000000000000000002", "second"))

	entries, err := reg.List()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "second", entries[0].Name, "newest first")
	assert.Equal(t, "first", entries[1].Name)
}

func TestRegistryUpsertDeduplicatesCaseInsensitively(t *testing.T) {
	reg, _ := newTestRegistry(t)

	require.NoError(t, reg.Upsert("0xAAAA000000000000000000000000000000000001", "original"))
	require.NoError(t, reg.Upsert("0xaaaa000000000000000000000000000000000001", "renamed"))

	entries, err := reg.List()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "renamed", entries[0].Name)
	assert.Equal(t, "0xAAAA000000000000000000000000000000000001", entries[0].Address,
		"original casing preserved")
}

func TestRegistryUpsertEmptyNameKeepsExisting(t *testing.T) {
	reg, _ := newTestRegistry(t)

	require.NoError(t, reg.Upsert("0xaaaa000000000000000000000000000000000001", "kept"))
	require.NoError(t, reg.Upsert("0xaaaa000000000000000000000000000000000001", ""))

	entries, err := reg.List()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "kept", entries[0].Name)
}

func TestRegistryRename(t *testing.T) {
	reg, _ := newTestRegistry(t)

	require.NoError(t, reg.Upsert("0xaaaa000000000000000000000000000000000001", "old"))
	require.NoError(t, reg.Rename("0xAAAA000000000000000000000000000000000001", "new"))

	entries, err := reg.List()
	require.NoError(t, err)
	assert.Equal(t, "new", entries[0].Name)

	// renaming an unknown jar is a no-op
	require.NoError(t, reg.Rename("0xbbbb000000000000000000000000000000000001", "ghost"))
	entries, err = reg.List()
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestRegistryRemove(t *testing.T) {
	reg, _ := newTestRegistry(t)

	require.NoError(t, reg.Upsert("0xaaaa000000000000000000000000000000000001", "a"))
	require.NoError(t, reg.Upsert("0xaaaa000000000000000000000000000000000002", "b"))
	require.NoError(t, reg.Remove("0xAAAA000000000000000000000000000000000001"))

	entries, err := reg.List()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "b", entries[0].Name)

	require.NoError(t, reg.Remove("0xcccc000000000000000000000000000000000001"))
}

func TestRegistryToleratesCorruptRecord(t *testing.T) {
	reg, store := newTestRegistry(t)
	require.NoError(t, store.Set(storage.JarRegistryKey(), []byte("{not json")))

	entries, err := reg.List()
	require.NoError(t, err)
	assert.Empty(t, entries)

	// writing through the corruption recovers the registry
	require.NoError(t, reg.Upsert("0xaaaa000000000000000000000000000000000001", "fresh"))
	entries, err = reg.List()
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
