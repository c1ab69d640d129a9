package jars

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gftj/tipjar-go/storage"
)

// Entry is one registered jar
type Entry struct {
	// Address is the jar contract, stored in its original casing
	Address string `json:"address"`
	// Name is a user-chosen label
	Name string `json:"name"`
	// CreatedAt orders the registry newest-first
	CreatedAt time.Time `json:"createdAt"`
}

// Registry is the persisted list of the user's jars. Addresses are
// matched case-insensitively. A corrupt or absent record reads as an
// empty registry rather than an error.
type Registry struct {
	mu    sync.Mutex
	store storage.Store
}

// NewRegistry creates a registry over a store
func NewRegistry(store storage.Store) (*Registry, error) {
	if store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	return &Registry{store: store}, nil
}

// List returns all jars, newest first
func (r *Registry) List() ([]Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load(), nil
}

// Upsert adds a jar or renames it if the address is already present.
// New jars get the current time as CreatedAt.
func (r *Registry) Upsert(address, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries := r.load()
	for i := range entries {
		if strings.EqualFold(entries[i].Address, address) {
			if name != "" {
				entries[i].Name = name
			}
			return r.save(entries)
		}
	}

	entries = append(entries, Entry{
		Address:   address,
		Name:      name,
		CreatedAt: time.Now().UTC(),
	})
	return r.save(entries)
}

// Rename changes a jar's label; renaming an unknown jar is a no-op
func (r *Registry) Rename(address, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries := r.load()
	for i := range entries {
		if strings.EqualFold(entries[i].Address, address) {
			entries[i].Name = name
			return r.save(entries)
		}
	}
	return nil
}

// Remove deletes a jar; removing an unknown jar is a no-op
func (r *Registry) Remove(address string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries := r.load()
	kept := entries[:0]
	for _, e := range entries {
		if !strings.EqualFold(e.Address, address) {
			kept = append(kept, e)
		}
	}
	return r.save(kept)
}

func (r *Registry) load() []Entry {
	raw, err := r.store.Get(storage.JarRegistryKey())
	if err != nil {
		return nil
	}

	var entries []Entry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil
	}

	// older writers may have disagreed on address casing
	seen := make(map[string]struct{}, len(entries))
	out := entries[:0]
	for _, e := range entries {
		key := strings.ToLower(e.Address)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, e)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (r *Registry) save(entries []Entry) error {
	raw, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("failed to encode jar registry: %w", err)
	}
	if err := r.store.Set(storage.JarRegistryKey(), raw); err != nil {
		return fmt.Errorf("failed to persist jar registry: %w", err)
	}
	return nil
}
