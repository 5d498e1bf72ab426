// Package cache provides a generic, thread-safe cache engine with TTL expiry
// and byte-budget LRU eviction.
//
// The engine keys arbitrary values by string, expires entries after a
// time-to-live, and evicts least-recently-used entries when an approximate
// byte-size budget is exceeded. Statistics are always enabled for
// observability; Prometheus metrics are optional via functional options.
package cache

import (
	"time"

	"github.com/c360/geocache/errors"
)

// Cache is the operation surface of the engine. It is satisfied by *Engine
// and exists so collaborators can depend on the contract rather than the
// concrete type.
type Cache[V any] interface {
	// Set stores a value under key with the engine's default TTL.
	// Returns false if the entry could not be constructed (size estimation
	// failed); the cache state is unchanged in that case.
	Set(key string, value V) bool

	// SetTTL stores a value with an explicit TTL. ttl <= 0 means the entry
	// never expires.
	SetTTL(key string, value V, ttl time.Duration) bool

	// Get retrieves a value by key, marking it most recently used.
	// An expired entry is deleted on access and reported as a miss.
	Get(key string) (V, bool)

	// Has reports whether key holds a live entry. It shares Get's
	// lazy-delete-on-expiry side effect but does not promote the entry
	// and does not count a hit or a miss. This asymmetry is deliberate:
	// recency promotion happens only through Get.
	Has(key string) bool

	// Delete removes an entry by key. Returns true if the key existed.
	Delete(key string) bool

	// Clear drops all entries. Cumulative statistics are not reset.
	Clear()

	// SetMany applies entries one at a time with the default TTL, in
	// ascending key order. Best-effort and non-transactional: it stops at
	// the first failed set and returns false, leaving prior entries
	// committed.
	SetMany(entries map[string]V) bool

	// SetManyTTL is SetMany with an explicit TTL.
	SetManyTTL(entries map[string]V, ttl time.Duration) bool

	// GetMany returns the values found for the given keys.
	GetMany(keys []string) map[string]V

	// DeleteMany deletes the given keys, returning how many existed.
	DeleteMany(keys []string) int

	// Keys returns all live keys in recency order (most recently used
	// first). Expired-but-uncollected keys are included.
	Keys() []string

	// Values returns all live values, lazily deleting any entry found
	// expired during the scan (counted as an expiration, not a miss).
	Values() []V

	// Entries returns snapshots of all live entries with the same lazy
	// expiry behavior as Values.
	Entries() []Entry[V]

	// Prune removes every expired entry and returns the count removed.
	Prune() int

	// SetMaxSize updates the byte budget, evicting immediately if the
	// cache is now over it.
	SetMaxSize(bytes int64)

	// SetDefaultTTL updates the TTL applied by future Set calls. Existing
	// entries are unaffected.
	SetDefaultTTL(ttl time.Duration)

	// OnEviction registers the single eviction observer, or clears it
	// when passed nil.
	OnEviction(observer EvictionObserver[V])

	// DeletePattern deletes every key matching the regular expression and
	// returns the count deleted. The pattern is compiled with the
	// standard regexp package.
	DeletePattern(pattern string) (int, error)

	// Len returns the number of live entries.
	Len() int

	// SizeBytes returns the approximate total size of live entries.
	SizeBytes() int64

	// Stats returns the engine's statistics tracker.
	Stats() *Statistics

	// Destroy stops the prune loop and clears the cache. Idempotent.
	Destroy()

	// Close is Destroy with an error return for defer-friendly use.
	Close() error
}

// EvictionObserver is notified once per entry removed by the capacity
// eviction loop. At most one observer is registered per engine.
type EvictionObserver[V any] interface {
	OnEvict(key string, value V)
}

// ObserverFunc adapts a function to the EvictionObserver interface.
type ObserverFunc[V any] func(key string, value V)

// OnEvict implements EvictionObserver.
func (f ObserverFunc[V]) OnEvict(key string, value V) {
	f(key, value)
}

// Sized is implemented by value types that report their own byte estimate.
// Values implementing Sized are never walked by the reflective size
// estimator, which makes it the opt-out for cyclic object graphs.
type Sized interface {
	SizeBytes() int64
}

// Entry is a point-in-time snapshot of a cached entry as returned by
// Entries. ExpiresAt is the zero time for entries that never expire.
type Entry[V any] struct {
	Key       string
	Value     V
	SizeBytes int64
	ExpiresAt time.Time
}

// validateKey validates a cache key for basic requirements.
// Returns a classified error if the key is invalid.
func validateKey(key string) error {
	if key == "" {
		return errors.WrapInvalid(errors.ErrInvalidKey, "cache", "validateKey", "key cannot be empty")
	}
	return nil
}
