package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()

	_, err := s.Get([]byte("missing"))
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set([]byte("k"), []byte("v")))
	got, err := s.Get([]byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	require.NoError(t, s.Delete([]byte("k")))
	_, err = s.Get([]byte("k"))
	assert.ErrorIs(t, err, ErrNotFound)

	// deleting an absent key is fine
	assert.NoError(t, s.Delete([]byte("k")))
}

func TestMemoryStoreCopiesValues(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()

	value := []byte("original")
	require.NoError(t, s.Set([]byte("k"), value))
	value[0] = 'X'

	got, err := s.Get([]byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), got)

	got[0] = 'Y'
	again, err := s.Get([]byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), again)
}

func TestPebbleStoreRoundTrip(t *testing.T) {
	s, err := NewPebbleStore(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Get(OwnerKey("0xAbC"))
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set(OwnerKey("0xAbC"), []byte("payload")))
	got, err := s.Get(OwnerKey("0xabc"))
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), got)

	require.NoError(t, s.Delete(OwnerKey("0xABC")))
	_, err = s.Get(OwnerKey("0xabc"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestKeysAreCaseInsensitive(t *testing.T) {
	assert.Equal(t, OwnerKey("0xAAbb"), OwnerKey("0xaabb"))
	assert.Equal(t, NameKey("0xAAbb"), NameKey("0xaabb"))
	assert.NotEqual(t, OwnerKey("0xaabb"), NameKey("0xaabb"))
}
