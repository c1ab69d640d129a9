package storage

import "strings"

// Key layout. Addresses are lowercased so lookups are case-insensitive.
const (
	prefixLastJar       = "lastjar"
	prefixOwner         = "owner:"
	prefixPriceSnapshot = "price:snapshot"
	prefixName          = "name:"
	prefixJarRegistry   = "jars:registry"
)

// LastJarKey returns the key holding the most recently created jar address
func LastJarKey() []byte {
	return []byte(prefixLastJar)
}

// OwnerKey returns the owner cache key for a jar address
func OwnerKey(jar string) []byte {
	return []byte(prefixOwner + strings.ToLower(jar))
}

// PriceSnapshotKey returns the key holding the persisted price snapshot
func PriceSnapshotKey() []byte {
	return []byte(prefixPriceSnapshot)
}

// NameKey returns the resolved-name cache key for an address
func NameKey(addr string) []byte {
	return []byte(prefixName + strings.ToLower(addr))
}

// JarRegistryKey returns the key holding the jar registry
func JarRegistryKey() []byte {
	return []byte(prefixJarRegistry)
}
