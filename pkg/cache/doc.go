// Package cache implements the geocache engine: a generic, thread-safe,
// in-process cache with per-entry TTL expiry and byte-budget LRU eviction.
//
// # Overview
//
// The engine keys arbitrary values by string. Each entry carries an
// approximate byte size computed once at creation and an optional absolute
// expiry. A doubly linked recency list orders entries from most to least
// recently used; when the total approximate size exceeds the configured
// budget, entries are evicted from the least-recently-used end until the
// cache fits again.
//
// Expiry is enforced three ways: lazily when an expired key is accessed,
// during Values/Entries scans, and actively by a background prune loop.
//
// # Quick Start
//
//	engine, err := cache.New[string](ctx, cache.DefaultConfig())
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer engine.Destroy()
//
//	engine.Set("greeting", "hello")
//	value, ok := engine.Get("greeting")
//
// With an explicit TTL, metrics, and an eviction observer:
//
//	engine, err := cache.New[*Response](ctx, cache.Config{
//		MaxSizeBytes:  32 << 20,
//		DefaultTTL:    10 * time.Minute,
//		PruneInterval: time.Minute,
//	},
//		cache.WithMetrics[*Response](registry, "api_cache"),
//		cache.WithObserver[*Response](cache.ObserverFunc[*Response](func(key string, _ *Response) {
//			slog.Debug("evicted", "key", key)
//		})),
//	)
//
// # Size Estimation
//
// Entry sizes come from EstimateSize: a coarse, depth-first reflective walk
// with a fixed cost for scalars, two bytes per character for strings, and
// recursive sums for containers. The walk has no cycle detection; value
// types holding cyclic references must implement Sized to report their own
// estimate and bypass the traversal. A Set whose size estimation fails
// returns false and leaves the cache unchanged.
//
// # Recency Semantics
//
// Only Get promotes an entry to most recently used. Has performs the same
// expiry check and lazy removal but never changes recency and never counts
// a hit or miss. This asymmetry is part of the contract: existence probes
// must not perturb eviction order.
//
// # Observability
//
// Statistics (hits, misses, sets, deletes, evictions, expirations, entry
// count, byte usage) are always collected with atomic counters and available
// via Stats. The same figures can optionally be exported as Prometheus
// metrics through WithMetrics; see the metric package.
//
// # Concurrency
//
// The key index, recency list, and size counter are a single unit guarded
// by one engine-wide mutex. Eviction observers run outside the lock, after
// the capacity bound is restored, and are panic-isolated per entry. The
// prune loop is a goroutine owned by the engine; Destroy stops it and is
// idempotent.
//
// # Failure Policy
//
// Reads never fail: absence and expiry uniformly yield a "not found"
// result. Writes return a boolean success indicator. The cache is an
// optimization layer, not a source of truth - a failed Set means only that
// the value was not cached.
package cache
