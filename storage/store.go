// Package storage provides the local key-value store used for caches
// and user data: the jar registry, owner reads, price snapshots and
// resolved names.
package storage

import "errors"

// ErrNotFound is returned when a key does not exist
var ErrNotFound = errors.New("storage: key not found")

// Store is the local key-value capability
type Store interface {
	// Get returns the value for a key, or ErrNotFound
	Get(key []byte) ([]byte, error)
	// Set stores a value under a key
	Set(key, value []byte) error
	// Delete removes a key; deleting an absent key is not an error
	Delete(key []byte) error
	// Close releases the underlying resources
	Close() error
}
