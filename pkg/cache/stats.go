package cache

import (
	"sync"
	"sync/atomic"
	"time"
)

// Statistics tracks cache performance counters. Counters are monotonic and
// never decrease except through Reset.
type Statistics struct {
	// Atomic counters for thread-safe updates
	hits        int64
	misses      int64
	sets        int64
	deletes     int64
	evictions   int64
	expirations int64

	// Protected by mutex
	mu           sync.RWMutex
	startTime    time.Time
	entries      int64
	currentBytes int64
	maxBytes     int64
}

// NewStatistics creates a new statistics tracker.
func NewStatistics() *Statistics {
	return &Statistics{
		startTime: time.Now(),
	}
}

// Hit records a cache hit.
func (s *Statistics) Hit() {
	atomic.AddInt64(&s.hits, 1)
}

// Miss records a cache miss.
func (s *Statistics) Miss() {
	atomic.AddInt64(&s.misses, 1)
}

// Set records a cache set operation.
func (s *Statistics) Set() {
	atomic.AddInt64(&s.sets, 1)
}

// Delete records a cache delete operation.
func (s *Statistics) Delete() {
	atomic.AddInt64(&s.deletes, 1)
}

// Eviction records a capacity-triggered eviction.
func (s *Statistics) Eviction() {
	atomic.AddInt64(&s.evictions, 1)
}

// Expiration records a TTL-triggered removal, whether discovered lazily on
// access or by an active prune sweep.
func (s *Statistics) Expiration() {
	atomic.AddInt64(&s.expirations, 1)
}

// UpdateUsage updates the entry count, current byte size, and byte budget.
func (s *Statistics) UpdateUsage(entries, currentBytes, maxBytes int64) {
	s.mu.Lock()
	s.entries = entries
	s.currentBytes = currentBytes
	s.maxBytes = maxBytes
	s.mu.Unlock()
}

// Hits returns the total number of cache hits.
func (s *Statistics) Hits() int64 {
	return atomic.LoadInt64(&s.hits)
}

// Misses returns the total number of cache misses.
func (s *Statistics) Misses() int64 {
	return atomic.LoadInt64(&s.misses)
}

// Sets returns the total number of set operations.
func (s *Statistics) Sets() int64 {
	return atomic.LoadInt64(&s.sets)
}

// Deletes returns the total number of delete operations.
func (s *Statistics) Deletes() int64 {
	return atomic.LoadInt64(&s.deletes)
}

// Evictions returns the total number of capacity evictions.
func (s *Statistics) Evictions() int64 {
	return atomic.LoadInt64(&s.evictions)
}

// Expirations returns the total number of TTL expirations.
func (s *Statistics) Expirations() int64 {
	return atomic.LoadInt64(&s.expirations)
}

// Entries returns the current number of entries in the cache.
func (s *Statistics) Entries() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries
}

// CurrentSizeBytes returns the approximate byte size of live entries.
func (s *Statistics) CurrentSizeBytes() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentBytes
}

// MaxSizeBytes returns the configured byte budget.
func (s *Statistics) MaxSizeBytes() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.maxBytes
}

// UsagePercentage returns current size as a percentage of the budget
// (0 when the budget is unset).
func (s *Statistics) UsagePercentage() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.maxBytes <= 0 {
		return 0.0
	}
	return float64(s.currentBytes) / float64(s.maxBytes) * 100.0
}

// HitRatio returns the cache hit ratio (0.0 to 1.0).
func (s *Statistics) HitRatio() float64 {
	hits := s.Hits()
	misses := s.Misses()
	total := hits + misses

	if total == 0 {
		return 0.0
	}

	return float64(hits) / float64(total)
}

// Uptime returns how long the cache has been running.
func (s *Statistics) Uptime() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return time.Since(s.startTime)
}

// Reset resets all statistics to zero.
func (s *Statistics) Reset() {
	atomic.StoreInt64(&s.hits, 0)
	atomic.StoreInt64(&s.misses, 0)
	atomic.StoreInt64(&s.sets, 0)
	atomic.StoreInt64(&s.deletes, 0)
	atomic.StoreInt64(&s.evictions, 0)
	atomic.StoreInt64(&s.expirations, 0)

	s.mu.Lock()
	s.startTime = time.Now()
	s.mu.Unlock()
}

// StatsSummary is a snapshot of all statistics.
type StatsSummary struct {
	Size             int64   `json:"size"`
	CurrentSizeBytes int64   `json:"current_size_bytes"`
	MaxSizeBytes     int64   `json:"max_size_bytes"`
	UsagePercentage  float64 `json:"usage_percentage"`
	Hits             int64   `json:"hits"`
	Misses           int64   `json:"misses"`
	Sets             int64   `json:"sets"`
	Deletes          int64   `json:"deletes"`
	Evictions        int64   `json:"evictions"`
	Expirations      int64   `json:"expirations"`
	HitRatio         float64 `json:"hit_ratio"`
}

// Summary returns a snapshot of all statistics.
func (s *Statistics) Summary() StatsSummary {
	return StatsSummary{
		Size:             s.Entries(),
		CurrentSizeBytes: s.CurrentSizeBytes(),
		MaxSizeBytes:     s.MaxSizeBytes(),
		UsagePercentage:  s.UsagePercentage(),
		Hits:             s.Hits(),
		Misses:           s.Misses(),
		Sets:             s.Sets(),
		Deletes:          s.Deletes(),
		Evictions:        s.Evictions(),
		Expirations:      s.Expirations(),
		HitRatio:         s.HitRatio(),
	}
}
