package cache

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/geocache/metric"
)

// engineMetrics holds Prometheus metrics for cache operations.
type engineMetrics struct {
	// Counter metrics - directly incremented without stats duplication
	hits        prometheus.Counter
	misses      prometheus.Counter
	sets        prometheus.Counter
	deletes     prometheus.Counter
	evictions   prometheus.Counter
	expirations prometheus.Counter

	// Gauge metrics - updated on operations
	entries   prometheus.Gauge
	sizeBytes prometheus.Gauge
}

// newEngineMetrics creates and registers cache metrics with the provided registry.
func newEngineMetrics(registry *metric.MetricsRegistry, prefix string) (*engineMetrics, error) {
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "geocache",
			Subsystem:   "cache",
			Name:        name,
			ConstLabels: prometheus.Labels{"component": prefix},
			Help:        help,
		})
	}
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "geocache",
			Subsystem:   "cache",
			Name:        name,
			ConstLabels: prometheus.Labels{"component": prefix},
			Help:        help,
		})
	}

	m := &engineMetrics{
		hits:        counter("hits_total", "Total number of cache hits"),
		misses:      counter("misses_total", "Total number of cache misses"),
		sets:        counter("sets_total", "Total number of cache set operations"),
		deletes:     counter("deletes_total", "Total number of cache delete operations"),
		evictions:   counter("evictions_total", "Total number of capacity evictions"),
		expirations: counter("expirations_total", "Total number of TTL expirations"),
		entries:     gauge("entries", "Current number of entries in cache"),
		sizeBytes:   gauge("size_bytes", "Approximate byte size of live entries"),
	}

	registrations := []struct {
		name      string
		collector prometheus.Collector
	}{
		{"cache_hits", m.hits},
		{"cache_misses", m.misses},
		{"cache_sets", m.sets},
		{"cache_deletes", m.deletes},
		{"cache_evictions", m.evictions},
		{"cache_expirations", m.expirations},
	}
	for _, reg := range registrations {
		if err := registry.RegisterCounter(prefix, reg.name, reg.collector.(prometheus.Counter)); err != nil {
			return nil, err
		}
	}
	if err := registry.RegisterGauge(prefix, "cache_entries", m.entries); err != nil {
		return nil, err
	}
	if err := registry.RegisterGauge(prefix, "cache_size_bytes", m.sizeBytes); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *engineMetrics) recordHit()        { m.hits.Inc() }
func (m *engineMetrics) recordMiss()       { m.misses.Inc() }
func (m *engineMetrics) recordSet()        { m.sets.Inc() }
func (m *engineMetrics) recordDelete()     { m.deletes.Inc() }
func (m *engineMetrics) recordEviction()   { m.evictions.Inc() }
func (m *engineMetrics) recordExpiration() { m.expirations.Inc() }

// updateUsage sets the entry count and byte size gauges.
func (m *engineMetrics) updateUsage(entries int, sizeBytes int64) {
	m.entries.Set(float64(entries))
	m.sizeBytes.Set(float64(sizeBytes))
}
