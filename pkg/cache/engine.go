package cache

import (
	"container/list"
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/c360/geocache/errors"
)

// entry is the value stored in the recency list elements. The list element
// owns the recency links; the entry itself is never shared between lists.
type entry[V any] struct {
	key       string
	value     V
	size      int64     // computed once at creation, immutable
	expiresAt time.Time // zero means never expires
}

// expired reports whether the entry's TTL has elapsed at now.
func (e *entry[V]) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// Engine is a thread-safe cache with TTL expiry and byte-budget LRU
// eviction. The key index, recency list, and size counter form a single
// unit guarded by one coarse mutex; all operations are O(1) or linear
// scans bounded by key count.
type Engine[V any] struct {
	mu           sync.Mutex
	items        map[string]*list.Element // key -> list element
	order        *list.List               // doubly-linked list, front = most recently used
	currentBytes int64                    // sum of live entries' approximate sizes
	maxBytes     int64
	defaultTTL   time.Duration

	stats    *Statistics        // ALWAYS initialized
	metrics  *engineMetrics     // Optional, if metrics enabled
	observer EvictionObserver[V] // At most one, registered via OnEviction
	logger   *slog.Logger

	// Background prune coordination
	pruneInterval time.Duration
	pruneRunning  bool
	shutdown      chan struct{}
	done          chan struct{}
	closed        bool
}

var _ Cache[any] = (*Engine[any])(nil)

// New creates a cache engine from the provided configuration and starts the
// background prune loop when cfg.PruneInterval is positive. The loop stops
// when ctx is canceled or Destroy is called.
// Returns an error if the configuration is invalid or metrics registration fails.
func New[V any](ctx context.Context, cfg Config, options ...Option[V]) (*Engine[V], error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.WrapInvalid(err, "cache", "New", "config validation")
	}

	opts := applyOptions(options...)

	// Stats are ALWAYS initialized - observability is not optional
	stats := NewStatistics()
	stats.UpdateUsage(0, 0, cfg.MaxSizeBytes)

	var metrics *engineMetrics
	if opts.metricsReg != nil && opts.metricsPrefix != "" {
		var err error
		metrics, err = newEngineMetrics(opts.metricsReg, opts.metricsPrefix)
		if err != nil {
			return nil, errors.WrapTransient(err, "cache", "New", "metrics registration")
		}
	}

	e := &Engine[V]{
		items:         make(map[string]*list.Element),
		order:         list.New(),
		maxBytes:      cfg.MaxSizeBytes,
		defaultTTL:    cfg.DefaultTTL,
		stats:         stats,
		metrics:       metrics,
		observer:      opts.observer,
		logger:        opts.logger,
		pruneInterval: cfg.PruneInterval,
		shutdown:      make(chan struct{}),
		done:          make(chan struct{}),
	}

	if cfg.PruneInterval > 0 {
		e.pruneRunning = true
		go e.pruneLoop(ctx)
	}

	return e, nil
}

// Set stores a value under key with the engine's default TTL.
func (e *Engine[V]) Set(key string, value V) bool {
	e.mu.Lock()
	ttl := e.defaultTTL
	e.mu.Unlock()
	return e.SetTTL(key, value, ttl)
}

// SetTTL stores a value with an explicit TTL. ttl <= 0 means the entry never
// expires. An existing entry under the same key is fully removed first, so
// replacement is exact rather than additive. The eviction loop runs
// synchronously within the same call; zero or more entries may be evicted.
//
// Returns false without mutating state if entry construction fails (the
// value's size estimation panicked, or the key is invalid).
func (e *Engine[V]) SetTTL(key string, value V, ttl time.Duration) bool {
	if err := validateKey(key); err != nil {
		e.logger.Error("cache set rejected", "error", err)
		return false
	}

	// Size estimation runs before any state mutation, so a failure leaves
	// the cache unchanged.
	size, err := safeEstimateSize(value)
	if err != nil {
		e.logger.Error("cache set failed during size estimation", "key", key, "error", err)
		return false
	}

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return false
	}

	// Replace-by-delete keeps the size counter exact.
	if element, exists := e.items[key]; exists {
		e.removeLocked(element)
	}

	ent := &entry[V]{key: key, value: value, size: size, expiresAt: expiresAt}
	e.items[key] = e.order.PushFront(ent)
	e.currentBytes += size

	e.stats.Set()
	if e.metrics != nil {
		e.metrics.recordSet()
	}

	evicted := e.evictLocked()
	e.updateUsageLocked()
	e.mu.Unlock()

	e.notifyEvicted(evicted)
	return true
}

// Get retrieves a value by key and marks it most recently used. An entry
// found expired is deleted, counted as a miss and an expiration.
func (e *Engine[V]) Get(key string) (V, bool) {
	var zero V

	e.mu.Lock()
	element, exists := e.items[key]
	if !exists {
		e.mu.Unlock()
		e.stats.Miss()
		if e.metrics != nil {
			e.metrics.recordMiss()
		}
		return zero, false
	}

	ent := element.Value.(*entry[V])
	if ent.expired(time.Now()) {
		e.removeLocked(element)
		e.updateUsageLocked()
		e.mu.Unlock()

		e.stats.Miss()
		e.stats.Expiration()
		if e.metrics != nil {
			e.metrics.recordMiss()
			e.metrics.recordExpiration()
		}
		return zero, false
	}

	// Move to front (most recently used)
	e.order.MoveToFront(element)
	value := ent.value
	e.mu.Unlock()

	e.stats.Hit()
	if e.metrics != nil {
		e.metrics.recordHit()
	}
	return value, true
}

// Has reports whether key holds a live entry. It shares Get's lazy expiry
// side effect but deliberately does not promote the entry and does not
// count a hit or a miss; recency changes only through Get.
func (e *Engine[V]) Has(key string) bool {
	e.mu.Lock()
	element, exists := e.items[key]
	if !exists {
		e.mu.Unlock()
		return false
	}

	ent := element.Value.(*entry[V])
	if ent.expired(time.Now()) {
		e.removeLocked(element)
		e.updateUsageLocked()
		e.mu.Unlock()

		e.stats.Expiration()
		if e.metrics != nil {
			e.metrics.recordExpiration()
		}
		return false
	}

	e.mu.Unlock()
	return true
}

// Delete removes an entry by key. Returns false if the key is absent.
func (e *Engine[V]) Delete(key string) bool {
	e.mu.Lock()
	element, exists := e.items[key]
	if !exists {
		e.mu.Unlock()
		return false
	}

	e.removeLocked(element)
	e.updateUsageLocked()
	e.mu.Unlock()

	e.stats.Delete()
	if e.metrics != nil {
		e.metrics.recordDelete()
	}
	return true
}

// Clear removes all entries. Cumulative statistics keep counting.
func (e *Engine[V]) Clear() {
	e.mu.Lock()
	e.items = make(map[string]*list.Element)
	e.order.Init()
	e.currentBytes = 0
	e.updateUsageLocked()
	e.mu.Unlock()
}

// SetMany applies entries one at a time with the default TTL, in ascending
// key order. Best-effort and non-transactional: the first failed set stops
// the batch and returns false while prior entries remain committed.
func (e *Engine[V]) SetMany(entries map[string]V) bool {
	e.mu.Lock()
	ttl := e.defaultTTL
	e.mu.Unlock()
	return e.SetManyTTL(entries, ttl)
}

// SetManyTTL is SetMany with an explicit TTL.
func (e *Engine[V]) SetManyTTL(entries map[string]V, ttl time.Duration) bool {
	keys := make([]string, 0, len(entries))
	for key := range entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if !e.SetTTL(key, entries[key], ttl) {
			return false
		}
	}
	return true
}

// GetMany returns the values found for the given keys.
func (e *Engine[V]) GetMany(keys []string) map[string]V {
	found := make(map[string]V, len(keys))
	for _, key := range keys {
		if value, ok := e.Get(key); ok {
			found[key] = value
		}
	}
	return found
}

// DeleteMany deletes the given keys and returns how many existed.
func (e *Engine[V]) DeleteMany(keys []string) int {
	deleted := 0
	for _, key := range keys {
		if e.Delete(key) {
			deleted++
		}
	}
	return deleted
}

// Keys returns all live keys in recency order (most recently used first).
// Expired entries not yet collected are included; Values and Entries are
// the accessors with lazy expiry.
func (e *Engine[V]) Keys() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	keys := make([]string, 0, len(e.items))
	for element := e.order.Front(); element != nil; element = element.Next() {
		keys = append(keys, element.Value.(*entry[V]).key)
	}
	return keys
}

// Values returns all live values in recency order, lazily deleting any entry
// found expired during the scan. Expired removals count as expirations, not
// hits or misses.
func (e *Engine[V]) Values() []V {
	now := time.Now()

	e.mu.Lock()
	values := make([]V, 0, len(e.items))
	expired := e.scanLocked(now, func(ent *entry[V]) {
		values = append(values, ent.value)
	})
	e.mu.Unlock()

	e.countExpirations(expired)
	return values
}

// Entries returns snapshots of all live entries in recency order, with the
// same lazy expiry behavior as Values.
func (e *Engine[V]) Entries() []Entry[V] {
	now := time.Now()

	e.mu.Lock()
	snapshots := make([]Entry[V], 0, len(e.items))
	expired := e.scanLocked(now, func(ent *entry[V]) {
		snapshots = append(snapshots, Entry[V]{
			Key:       ent.key,
			Value:     ent.value,
			SizeBytes: ent.size,
			ExpiresAt: ent.expiresAt,
		})
	})
	e.mu.Unlock()

	e.countExpirations(expired)
	return snapshots
}

// Prune removes every expired entry and returns the count removed. It is
// called by the background loop and may be invoked directly.
func (e *Engine[V]) Prune() int {
	now := time.Now()

	e.mu.Lock()
	expired := e.scanLocked(now, nil)
	e.mu.Unlock()

	e.countExpirations(expired)
	if expired > 0 {
		e.logger.Debug("cache prune removed expired entries", "count", expired)
	}
	return expired
}

// SetMaxSize updates the byte budget. If the cache now exceeds it, the
// eviction loop runs immediately.
func (e *Engine[V]) SetMaxSize(bytes int64) {
	e.mu.Lock()
	e.maxBytes = bytes
	evicted := e.evictLocked()
	e.updateUsageLocked()
	e.mu.Unlock()

	e.notifyEvicted(evicted)
}

// SetDefaultTTL updates the TTL used by future Set calls. Existing entries
// keep their original expiry.
func (e *Engine[V]) SetDefaultTTL(ttl time.Duration) {
	e.mu.Lock()
	e.defaultTTL = ttl
	e.mu.Unlock()
}

// OnEviction registers the single eviction observer, replacing any previous
// one. Passing nil clears it.
func (e *Engine[V]) OnEviction(observer EvictionObserver[V]) {
	e.mu.Lock()
	e.observer = observer
	e.mu.Unlock()
}

// DeletePattern deletes every key matching the regular expression and
// returns the count deleted. Each removal counts as a delete.
func (e *Engine[V]) DeletePattern(pattern string) (int, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return 0, errors.WrapInvalid(err, "cache", "DeletePattern", "compile pattern")
	}

	e.mu.Lock()
	var matched []*list.Element
	for key, element := range e.items {
		if re.MatchString(key) {
			matched = append(matched, element)
		}
	}
	for _, element := range matched {
		e.removeLocked(element)
	}
	e.updateUsageLocked()
	e.mu.Unlock()

	for range matched {
		e.stats.Delete()
		if e.metrics != nil {
			e.metrics.recordDelete()
		}
	}
	return len(matched), nil
}

// Len returns the number of live entries.
func (e *Engine[V]) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.items)
}

// SizeBytes returns the approximate total size of live entries.
func (e *Engine[V]) SizeBytes() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.currentBytes
}

// Stats returns the engine's statistics tracker.
func (e *Engine[V]) Stats() *Statistics {
	return e.stats
}

// Destroy stops the prune loop and clears the cache. Safe to call multiple
// times.
func (e *Engine[V]) Destroy() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	waitForLoop := e.pruneRunning
	e.mu.Unlock()

	close(e.shutdown)
	if waitForLoop {
		select {
		case <-e.done:
		case <-time.After(5 * time.Second):
			e.logger.Warn("timeout waiting for prune loop to stop")
		}
	}

	e.Clear()
}

// Close implements io.Closer on top of Destroy.
func (e *Engine[V]) Close() error {
	e.Destroy()
	return nil
}

// evictLocked removes least-recently-used entries until the cache fits its
// byte budget or the list is empty. The capacity bound is restored before
// observers run; evicted entries are returned for notification outside the
// lock. Must be called with mutex held.
func (e *Engine[V]) evictLocked() []*entry[V] {
	var evicted []*entry[V]
	for e.currentBytes > e.maxBytes {
		element := e.order.Back()
		if element == nil {
			// A single entry larger than the budget was already
			// removed; over-capacity is tolerated, not retried.
			break
		}
		ent := element.Value.(*entry[V])
		e.removeLocked(element)
		e.stats.Eviction()
		if e.metrics != nil {
			e.metrics.recordEviction()
		}
		evicted = append(evicted, ent)
	}
	return evicted
}

// removeLocked unlinks an element from both the list and the index and
// subtracts its size. Counters are the caller's responsibility since the
// same removal backs deletes, expirations, and evictions.
// Must be called with mutex held.
func (e *Engine[V]) removeLocked(element *list.Element) {
	ent := element.Value.(*entry[V])
	delete(e.items, ent.key)
	e.order.Remove(element)
	e.currentBytes -= ent.size
}

// scanLocked walks the recency list front to back, removing expired entries
// and passing live ones to visit (when non-nil). Returns the number removed.
// Must be called with mutex held.
func (e *Engine[V]) scanLocked(now time.Time, visit func(*entry[V])) int {
	removed := 0
	for element := e.order.Front(); element != nil; {
		next := element.Next()
		ent := element.Value.(*entry[V])
		if ent.expired(now) {
			e.removeLocked(element)
			removed++
		} else if visit != nil {
			visit(ent)
		}
		element = next
	}
	if removed > 0 {
		e.updateUsageLocked()
	}
	return removed
}

// countExpirations records n expirations in stats and metrics.
func (e *Engine[V]) countExpirations(n int) {
	for i := 0; i < n; i++ {
		e.stats.Expiration()
		if e.metrics != nil {
			e.metrics.recordExpiration()
		}
	}
}

// updateUsageLocked pushes the current entry count and byte size into stats
// and metrics. Must be called with mutex held.
func (e *Engine[V]) updateUsageLocked() {
	e.stats.UpdateUsage(int64(len(e.items)), e.currentBytes, e.maxBytes)
	if e.metrics != nil {
		e.metrics.updateUsage(len(e.items), e.currentBytes)
	}
}

// notifyEvicted invokes the observer once per evicted entry, after the lock
// is released. Observer panics are isolated per entry and logged; the
// capacity bound was already restored regardless of observer behavior.
func (e *Engine[V]) notifyEvicted(evicted []*entry[V]) {
	if len(evicted) == 0 {
		return
	}

	e.mu.Lock()
	observer := e.observer
	e.mu.Unlock()
	if observer == nil {
		return
	}

	for _, ent := range evicted {
		func() {
			defer func() {
				if r := recover(); r != nil {
					e.logger.Error("eviction observer panicked", "key", ent.key, "panic", r)
				}
			}()
			observer.OnEvict(ent.key, ent.value)
		}()
	}
}

// pruneLoop runs in a background goroutine and periodically removes expired
// entries, so never-accessed keys don't linger purely via lazy expiry.
// Each sweep is fault-isolated: a panic is logged without killing the ticker.
func (e *Engine[V]) pruneLoop(ctx context.Context) {
	defer close(e.done)

	ticker := time.NewTicker(e.pruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-e.shutdown:
			return
		case <-ticker.C:
			e.safePrune()
		}
	}
}

// safePrune runs one prune sweep with panic isolation.
func (e *Engine[V]) safePrune() {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("cache prune sweep panicked", "panic", r)
		}
	}()
	e.Prune()
}

// safeEstimateSize runs EstimateSize with panic recovery, so a value whose
// traversal fails (including a panicking Sized implementation) yields an
// error instead of unwinding through the caller.
func safeEstimateSize(value any) (size int64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("size estimation panicked: %v", r)
		}
	}()
	return EstimateSize(value), nil
}
