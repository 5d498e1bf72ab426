package cache

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
)

// val8 is a 4-character string costing 8 bytes under the estimator.
const val8 = "abcd"

// newTestEngine creates an engine without a background prune loop.
func newTestEngine(t *testing.T, maxBytes int64) *Engine[string] {
	t.Helper()
	engine, err := New[string](context.Background(), Config{
		MaxSizeBytes:  maxBytes,
		DefaultTTL:    0,
		PruneInterval: 0,
	})
	if err != nil {
		t.Fatalf("Unexpected error creating engine: %v", err)
	}
	return engine
}

func TestBasicOperations(t *testing.T) {
	engine := newTestEngine(t, 1<<20)
	defer engine.Close()

	if value, exists := engine.Get("key1"); exists {
		t.Errorf("Expected cache miss, got value: %s", value)
	}

	if !engine.Set("key1", "value1") {
		t.Error("Expected successful set")
	}
	if value, exists := engine.Get("key1"); !exists || value != "value1" {
		t.Errorf("Expected 'value1', got value: %s, exists: %t", value, exists)
	}

	// Update replaces the entry
	if !engine.Set("key1", "value1_updated") {
		t.Error("Expected successful update")
	}
	if value, exists := engine.Get("key1"); !exists || value != "value1_updated" {
		t.Errorf("Expected 'value1_updated', got value: %s, exists: %t", value, exists)
	}
	if engine.Len() != 1 {
		t.Errorf("Expected 1 entry after update, got %d", engine.Len())
	}

	if !engine.Delete("key1") {
		t.Error("Expected successful deletion")
	}
	if engine.Delete("key1") {
		t.Error("Expected deletion failure for already-deleted key")
	}
	if engine.Delete("never-existed") {
		t.Error("Expected deletion failure for unknown key")
	}
}

func TestReplaceIsExactNotAdditive(t *testing.T) {
	engine := newTestEngine(t, 1<<20)
	defer engine.Close()

	engine.Set("key1", strings.Repeat("x", 100)) // 200 bytes
	engine.Set("key1", val8)                     // 8 bytes

	if engine.SizeBytes() != 8 {
		t.Errorf("Expected 8 bytes after replacement, got %d", engine.SizeBytes())
	}
	if engine.Stats().Sets() != 2 {
		t.Errorf("Expected 2 sets, got %d", engine.Stats().Sets())
	}
	if engine.Stats().Deletes() != 0 {
		t.Errorf("Replacement must not count a delete, got %d", engine.Stats().Deletes())
	}
}

func TestSizeInvariant(t *testing.T) {
	engine := newTestEngine(t, 1<<20)
	defer engine.Close()

	engine.Set("a", "one")
	engine.Set("b", strings.Repeat("y", 32))
	engine.Set("c", val8)
	engine.Get("a")
	engine.Delete("b")
	engine.Set("d", "zz")
	engine.Set("a", "replaced")

	var total int64
	for _, ent := range engine.Entries() {
		total += ent.SizeBytes
	}

	if engine.SizeBytes() != total {
		t.Errorf("Expected currentSizeBytes %d to equal entry sum %d", engine.SizeBytes(), total)
	}
	if engine.Stats().CurrentSizeBytes() != total {
		t.Errorf("Expected stats size %d to equal entry sum %d", engine.Stats().CurrentSizeBytes(), total)
	}
	if int64(len(engine.Keys())) != engine.Stats().Entries() {
		t.Errorf("Expected %d keys, stats report %d entries", len(engine.Keys()), engine.Stats().Entries())
	}
}

func TestLRUEvictionOrder(t *testing.T) {
	t.Run("OldestEvictedByDefault", func(t *testing.T) {
		engine := newTestEngine(t, 24) // room for three 8-byte values
		defer engine.Close()

		engine.Set("key1", val8)
		engine.Set("key2", val8)
		engine.Set("key3", val8)
		engine.Set("key4", val8) // evicts key1

		if engine.Has("key1") {
			t.Error("Expected key1 to be evicted")
		}
		for _, key := range []string{"key2", "key3", "key4"} {
			if !engine.Has(key) {
				t.Errorf("Expected %s to survive", key)
			}
		}
	})

	t.Run("GetChangesEvictionVictim", func(t *testing.T) {
		engine := newTestEngine(t, 24)
		defer engine.Close()

		engine.Set("key1", val8)
		engine.Set("key2", val8)
		engine.Set("key3", val8)

		engine.Get("key1")       // key1 is now most recently used
		engine.Set("key4", val8) // evicts key2 instead

		if engine.Has("key2") {
			t.Error("Expected key2 to be evicted after key1 was touched")
		}
		for _, key := range []string{"key1", "key3", "key4"} {
			if !engine.Has(key) {
				t.Errorf("Expected %s to survive", key)
			}
		}
	})
}

func TestKeysInRecencyOrder(t *testing.T) {
	engine := newTestEngine(t, 1<<20)
	defer engine.Close()

	engine.Set("key1", val8)
	engine.Set("key2", val8)
	engine.Set("key3", val8)

	engine.Get("key2")
	engine.Get("key1")
	engine.Get("key3")

	keys := engine.Keys()
	expected := []string{"key3", "key1", "key2"}
	for i, key := range keys {
		if key != expected[i] {
			t.Errorf("Expected key order %v, got %v", expected, keys)
			break
		}
	}
}

func TestTTLExpiry(t *testing.T) {
	t.Run("GetCountsExpirationAndMiss", func(t *testing.T) {
		engine := newTestEngine(t, 1<<20)
		defer engine.Close()

		engine.SetTTL("key1", val8, 50*time.Millisecond)
		time.Sleep(60 * time.Millisecond)

		if _, exists := engine.Get("key1"); exists {
			t.Error("Expected key1 to be expired")
		}
		if engine.Stats().Expirations() != 1 {
			t.Errorf("Expected 1 expiration, got %d", engine.Stats().Expirations())
		}
		if engine.Stats().Misses() != 1 {
			t.Errorf("Expected 1 miss, got %d", engine.Stats().Misses())
		}
		if engine.Len() != 0 {
			t.Errorf("Expected expired entry to be removed, Len=%d", engine.Len())
		}
	})

	t.Run("HasExpiresWithoutHitOrMiss", func(t *testing.T) {
		engine := newTestEngine(t, 1<<20)
		defer engine.Close()

		engine.SetTTL("key1", val8, 50*time.Millisecond)
		time.Sleep(60 * time.Millisecond)

		if engine.Has("key1") {
			t.Error("Expected key1 to be expired")
		}
		if engine.Stats().Expirations() != 1 {
			t.Errorf("Expected 1 expiration, got %d", engine.Stats().Expirations())
		}
		if engine.Stats().Hits() != 0 || engine.Stats().Misses() != 0 {
			t.Errorf("Has must not count hits or misses, got hits=%d misses=%d",
				engine.Stats().Hits(), engine.Stats().Misses())
		}
	})

	t.Run("ZeroTTLNeverExpires", func(t *testing.T) {
		engine := newTestEngine(t, 1<<20)
		defer engine.Close()

		engine.SetTTL("key1", val8, 0)
		time.Sleep(20 * time.Millisecond)

		if !engine.Has("key1") {
			t.Error("Expected zero-TTL entry to persist")
		}
	})
}

func TestRecencyAsymmetry(t *testing.T) {
	engine := newTestEngine(t, 24)
	defer engine.Close()

	engine.Set("key1", val8)
	engine.Set("key2", val8)
	engine.Set("key3", val8)

	// Probing existence repeatedly must not promote key1.
	for i := 0; i < 10; i++ {
		if !engine.Has("key1") {
			t.Fatal("Expected key1 to exist")
		}
	}

	engine.Set("key4", val8) // key1 is still the LRU victim

	if engine.Has("key1") {
		t.Error("Has must not promote entries; expected key1 evicted")
	}
	if !engine.Has("key2") {
		t.Error("Expected key2 to survive")
	}
}

// panickyObserver records invocations and panics on every call.
type panickyObserver struct {
	mu   sync.Mutex
	keys []string
}

func (o *panickyObserver) OnEvict(key string, _ string) {
	o.mu.Lock()
	o.keys = append(o.keys, key)
	o.mu.Unlock()
	panic("observer failure")
}

func TestEvictionObserver(t *testing.T) {
	t.Run("InvokedOncePerEviction", func(t *testing.T) {
		var evictedKeys []string
		var evictedValues []string

		engine := newTestEngine(t, 8)
		defer engine.Close()
		engine.OnEviction(ObserverFunc[string](func(key, value string) {
			evictedKeys = append(evictedKeys, key)
			evictedValues = append(evictedValues, value)
		}))

		engine.Set("key1", val8)
		engine.Set("key2", "efgh") // evicts key1

		if len(evictedKeys) != 1 || evictedKeys[0] != "key1" {
			t.Errorf("Expected evicted keys [key1], got %v", evictedKeys)
		}
		if len(evictedValues) != 1 || evictedValues[0] != val8 {
			t.Errorf("Expected evicted values [%s], got %v", val8, evictedValues)
		}
		if engine.Stats().Evictions() != 1 {
			t.Errorf("Expected 1 eviction, got %d", engine.Stats().Evictions())
		}
	})

	t.Run("PanicDoesNotAbortLoop", func(t *testing.T) {
		engine := newTestEngine(t, 16)
		defer engine.Close()

		observer := &panickyObserver{}
		engine.OnEviction(observer)

		engine.Set("key1", val8)
		engine.Set("key2", val8)
		engine.Set("key3", "abcdefgh") // 16 bytes; both older entries must go

		observer.mu.Lock()
		defer observer.mu.Unlock()
		if len(observer.keys) != 2 {
			t.Fatalf("Expected observer to run for both evictions, got %v", observer.keys)
		}
		if observer.keys[0] != "key1" || observer.keys[1] != "key2" {
			t.Errorf("Expected eviction order [key1 key2], got %v", observer.keys)
		}
		if engine.Stats().Evictions() != 2 {
			t.Errorf("Expected 2 evictions, got %d", engine.Stats().Evictions())
		}
		if !engine.Has("key3") {
			t.Error("Expected key3 to survive")
		}
	})

	t.Run("NilClearsObserver", func(t *testing.T) {
		calls := 0
		engine := newTestEngine(t, 8)
		defer engine.Close()

		engine.OnEviction(ObserverFunc[string](func(string, string) { calls++ }))
		engine.OnEviction(nil)

		engine.Set("key1", val8)
		engine.Set("key2", val8)

		if calls != 0 {
			t.Errorf("Expected cleared observer not to run, got %d calls", calls)
		}
	})
}

func TestCapacityBoundScenario(t *testing.T) {
	engine := newTestEngine(t, 8) // room for exactly one 8-byte value
	defer engine.Close()

	engine.Set("a", val8)
	engine.Set("b", "efgh")

	if engine.Has("a") {
		t.Error("Expected a to be evicted")
	}
	if !engine.Has("b") {
		t.Error("Expected b to be present")
	}
	if engine.Stats().Evictions() != 1 {
		t.Errorf("Expected 1 eviction, got %d", engine.Stats().Evictions())
	}
}

func TestOversizedEntryTolerated(t *testing.T) {
	engine := newTestEngine(t, 8)
	defer engine.Close()

	// A single entry larger than the budget empties the cache instead of
	// looping forever.
	engine.Set("huge", strings.Repeat("x", 100))

	if engine.Len() != 0 {
		t.Errorf("Expected oversized entry to be evicted, Len=%d", engine.Len())
	}
	if engine.SizeBytes() != 0 {
		t.Errorf("Expected 0 bytes, got %d", engine.SizeBytes())
	}
}

// cyclicValue stands in for a value whose size estimation fails.
type cyclicValue struct{}

func (cyclicValue) SizeBytes() int64 {
	panic("cyclic value graph")
}

func TestSetFailureLeavesStateUnchanged(t *testing.T) {
	engine, err := New[any](context.Background(), Config{MaxSizeBytes: 1 << 20})
	if err != nil {
		t.Fatalf("Unexpected error creating engine: %v", err)
	}
	defer engine.Close()

	engine.Set("good", "value")

	if engine.Set("bad", cyclicValue{}) {
		t.Error("Expected set to fail when size estimation panics")
	}
	if engine.Has("bad") {
		t.Error("Failed set must not leave a partial entry")
	}
	if engine.Len() != 1 {
		t.Errorf("Expected 1 entry, got %d", engine.Len())
	}
}

func TestSetManyNonAtomic(t *testing.T) {
	engine, err := New[any](context.Background(), Config{MaxSizeBytes: 1 << 20})
	if err != nil {
		t.Fatalf("Unexpected error creating engine: %v", err)
	}
	defer engine.Close()

	// Entries apply in ascending key order, so "a" commits before "b" fails.
	ok := engine.SetMany(map[string]any{
		"a": 1,
		"b": cyclicValue{},
		"c": 3,
	})

	if ok {
		t.Error("Expected SetMany to report failure")
	}
	if !engine.Has("a") {
		t.Error("Expected a to remain committed")
	}
	if engine.Has("b") {
		t.Error("Expected b to be absent")
	}
	if engine.Has("c") {
		t.Error("Expected batch to stop at first failure; c should be absent")
	}
}

func TestGetManyDeleteMany(t *testing.T) {
	engine := newTestEngine(t, 1<<20)
	defer engine.Close()

	engine.SetMany(map[string]string{"a": "1", "b": "2", "c": "3"})

	found := engine.GetMany([]string{"a", "c", "missing"})
	if len(found) != 2 || found["a"] != "1" || found["c"] != "3" {
		t.Errorf("Unexpected GetMany result: %v", found)
	}

	if deleted := engine.DeleteMany([]string{"a", "b", "missing"}); deleted != 2 {
		t.Errorf("Expected 2 deletions, got %d", deleted)
	}
	if engine.Len() != 1 {
		t.Errorf("Expected 1 remaining entry, got %d", engine.Len())
	}
}

func TestValuesAndEntriesLazyExpiry(t *testing.T) {
	engine := newTestEngine(t, 1<<20)
	defer engine.Close()

	engine.SetTTL("stale", val8, 30*time.Millisecond)
	engine.Set("fresh", "efgh")
	time.Sleep(40 * time.Millisecond)

	values := engine.Values()
	if len(values) != 1 || values[0] != "efgh" {
		t.Errorf("Expected only the fresh value, got %v", values)
	}
	if engine.Stats().Expirations() != 1 {
		t.Errorf("Expected 1 expiration from scan, got %d", engine.Stats().Expirations())
	}
	if engine.Stats().Hits() != 0 || engine.Stats().Misses() != 0 {
		t.Error("Scans must not count hits or misses")
	}
	if engine.Len() != 1 {
		t.Errorf("Expected expired entry removed during scan, Len=%d", engine.Len())
	}

	entries := engine.Entries()
	if len(entries) != 1 || entries[0].Key != "fresh" || entries[0].SizeBytes != 8 {
		t.Errorf("Unexpected entries snapshot: %+v", entries)
	}
	if !entries[0].ExpiresAt.IsZero() {
		t.Error("Expected zero expiry for non-expiring entry")
	}
}

func TestPrune(t *testing.T) {
	engine := newTestEngine(t, 1<<20)
	defer engine.Close()

	engine.SetTTL("stale1", val8, 20*time.Millisecond)
	engine.SetTTL("stale2", val8, 20*time.Millisecond)
	engine.Set("fresh", val8)
	time.Sleep(30 * time.Millisecond)

	if removed := engine.Prune(); removed != 2 {
		t.Errorf("Expected prune to remove 2 entries, got %d", removed)
	}
	if engine.Stats().Expirations() != 2 {
		t.Errorf("Expected 2 expirations, got %d", engine.Stats().Expirations())
	}
	if engine.Len() != 1 {
		t.Errorf("Expected 1 entry after prune, got %d", engine.Len())
	}

	if removed := engine.Prune(); removed != 0 {
		t.Errorf("Expected second prune to remove nothing, got %d", removed)
	}
}

func TestBackgroundPruneLoop(t *testing.T) {
	engine, err := New[string](context.Background(), Config{
		MaxSizeBytes:  1 << 20,
		PruneInterval: 25 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Unexpected error creating engine: %v", err)
	}
	defer engine.Close()

	engine.SetTTL("stale", val8, 10*time.Millisecond)

	// Never accessed; only the active sweep can remove it.
	time.Sleep(80 * time.Millisecond)

	if engine.Len() != 0 {
		t.Errorf("Expected prune loop to remove expired entry, Len=%d", engine.Len())
	}
	if engine.Stats().Expirations() != 1 {
		t.Errorf("Expected 1 expiration, got %d", engine.Stats().Expirations())
	}
}

func TestPatternDeletion(t *testing.T) {
	engine := newTestEngine(t, 1<<20)
	defer engine.Close()

	engine.Set("a:1", val8)
	engine.Set("a:2", val8)
	engine.Set("b:1", val8)

	deleted, err := engine.DeletePattern("^a:")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if deleted != 2 {
		t.Errorf("Expected 2 deletions, got %d", deleted)
	}

	keys := engine.Keys()
	if len(keys) != 1 || keys[0] != "b:1" {
		t.Errorf("Expected only b:1 to remain, got %v", keys)
	}
	if engine.Stats().Deletes() != 2 {
		t.Errorf("Expected 2 deletes counted, got %d", engine.Stats().Deletes())
	}

	if _, err := engine.DeletePattern("["); err == nil {
		t.Error("Expected error for invalid pattern")
	}
}

func TestClearKeepsCumulativeStats(t *testing.T) {
	engine := newTestEngine(t, 1<<20)
	defer engine.Close()

	engine.Set("key1", val8)
	engine.Get("key1")
	engine.Clear()

	if engine.Len() != 0 {
		t.Errorf("Expected empty cache after clear, Len=%d", engine.Len())
	}
	if engine.SizeBytes() != 0 {
		t.Errorf("Expected 0 bytes after clear, got %d", engine.SizeBytes())
	}
	if engine.Stats().Sets() != 1 || engine.Stats().Hits() != 1 {
		t.Error("Clear must not reset cumulative stats")
	}
}

func TestSetMaxSizeEvictsImmediately(t *testing.T) {
	engine := newTestEngine(t, 1<<20)
	defer engine.Close()

	engine.Set("key1", val8)
	engine.Set("key2", val8)
	engine.Set("key3", val8)

	engine.SetMaxSize(16) // now over budget; key1 must go

	if engine.Has("key1") {
		t.Error("Expected key1 evicted after budget shrink")
	}
	if engine.Len() != 2 {
		t.Errorf("Expected 2 entries, got %d", engine.Len())
	}
	if engine.Stats().Evictions() != 1 {
		t.Errorf("Expected 1 eviction, got %d", engine.Stats().Evictions())
	}
}

func TestSetDefaultTTLAffectsFutureSetsOnly(t *testing.T) {
	engine := newTestEngine(t, 1<<20)
	defer engine.Close()

	engine.Set("old", val8) // default TTL is zero: never expires
	engine.SetDefaultTTL(30 * time.Millisecond)
	engine.Set("new", val8)

	time.Sleep(40 * time.Millisecond)

	if !engine.Has("old") {
		t.Error("Existing entries must keep their original expiry")
	}
	if engine.Has("new") {
		t.Error("Expected new entry to expire under the updated default TTL")
	}
}

func TestDestroyIdempotent(t *testing.T) {
	engine, err := New[string](context.Background(), Config{
		MaxSizeBytes:  1 << 20,
		PruneInterval: 10 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Unexpected error creating engine: %v", err)
	}

	engine.Set("key1", val8)
	engine.Destroy()
	engine.Destroy()

	if engine.Len() != 0 {
		t.Errorf("Expected empty cache after destroy, Len=%d", engine.Len())
	}
	if engine.Set("key2", val8) {
		t.Error("Expected set to fail after destroy")
	}
}

func TestStatsSummary(t *testing.T) {
	engine := newTestEngine(t, 100)
	defer engine.Close()

	engine.Set("key1", val8)
	engine.Get("key1")
	engine.Get("missing")

	summary := engine.Stats().Summary()
	if summary.Size != 1 {
		t.Errorf("Expected size 1, got %d", summary.Size)
	}
	if summary.CurrentSizeBytes != 8 {
		t.Errorf("Expected 8 bytes, got %d", summary.CurrentSizeBytes)
	}
	if summary.MaxSizeBytes != 100 {
		t.Errorf("Expected budget 100, got %d", summary.MaxSizeBytes)
	}
	if summary.UsagePercentage != 8.0 {
		t.Errorf("Expected 8%% usage, got %f", summary.UsagePercentage)
	}
	if summary.Hits != 1 || summary.Misses != 1 {
		t.Errorf("Expected 1 hit and 1 miss, got %d/%d", summary.Hits, summary.Misses)
	}
	if summary.HitRatio != 0.5 {
		t.Errorf("Expected hit ratio 0.5, got %f", summary.HitRatio)
	}
}

func TestConcurrency(t *testing.T) {
	engine := newTestEngine(t, 1<<20)
	defer engine.Close()

	const numGoroutines = 10
	const numOperations = 100

	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			defer wg.Done()

			for j := 0; j < numOperations; j++ {
				key := fmt.Sprintf("key%d-%d", id, j)
				value := fmt.Sprintf("value%d-%d", id, j)

				engine.Set(key, value)

				if retrieved, exists := engine.Get(key); exists && retrieved != value {
					t.Errorf("Expected %s, got %s", value, retrieved)
				}

				if j%10 == 0 {
					engine.Delete(key)
				}
			}
		}(i)
	}

	wg.Wait()
}
