package cache

import "time"

// TTL classes for provider caching. Adapters pick a class instead of an
// ad-hoc duration so lifetimes stay tunable in one place.
const (
	TTLShort  = 5 * time.Minute  // volatile data: social posts, trending lists
	TTLMedium = 30 * time.Minute // market snapshots, taste correlations
	TTLLong   = 2 * time.Hour    // theme expansions, collection metadata
)

// Store is the key/value contract consumed by provider adapters and the
// pipeline. Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the stored value, or nil/false when the key is absent or
	// its TTL has elapsed. Stale entries are never returned.
	Get(key string) (interface{}, bool)

	// Set stores a value under key for ttl. Writes are wholesale
	// replacements; stored values must not be mutated afterwards.
	Set(key string, value interface{}, ttl time.Duration)

	// Has reports whether key holds an unexpired value.
	Has(key string) bool

	// Delete removes key. Removing an absent key is a no-op.
	Delete(key string)

	// GetOrSet returns the cached value for key, calling factory and storing
	// its result only on a miss. A factory error is returned without
	// caching anything.
	GetOrSet(key string, factory func() (interface{}, error), ttl time.Duration) (interface{}, error)

	// MGet returns the values for keys in order; absent or expired keys
	// yield nil entries.
	MGet(keys []string) []interface{}

	// MSet stores every pair with the same ttl.
	MSet(pairs map[string]interface{}, ttl time.Duration)

	// Keys returns all unexpired keys matching pattern. Pattern supports
	// the `*` wildcard; empty pattern matches everything.
	Keys(pattern string) []string

	// DeleteByPattern removes all keys matching pattern and returns the
	// number removed.
	DeleteByPattern(pattern string) int

	// Stop halts background maintenance. The store is unusable afterwards.
	Stop()
}
