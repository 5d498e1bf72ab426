package cache

import (
	"log/slog"

	"github.com/c360/geocache/metric"
)

// Option configures engine behavior using the functional options pattern.
type Option[V any] func(*engineOptions[V])

// engineOptions holds internal configuration for engine instances.
// Stats are ALWAYS collected - they are not optional.
// Metrics are optional and exposed via WithMetrics().
type engineOptions[V any] struct {
	// metricsReg is optional - if provided, engine stats are also exposed as Prometheus metrics
	metricsReg *metric.MetricsRegistry

	// metricsPrefix is used as the component label for Prometheus metrics
	metricsPrefix string

	// observer is notified once per capacity-evicted entry
	observer EvictionObserver[V]

	// logger receives engine diagnostics; log content is not load-bearing
	logger *slog.Logger
}

// WithMetrics enables Prometheus metrics export for engine statistics.
// If registry is nil or prefix is empty, this option is ignored.
func WithMetrics[V any](registry *metric.MetricsRegistry, prefix string) Option[V] {
	return func(opts *engineOptions[V]) {
		if registry != nil && prefix != "" {
			opts.metricsReg = registry
			opts.metricsPrefix = prefix
		}
	}
}

// WithObserver sets the eviction observer notified when entries are evicted
// by the capacity loop. Equivalent to calling OnEviction after construction.
func WithObserver[V any](observer EvictionObserver[V]) Option[V] {
	return func(opts *engineOptions[V]) {
		opts.observer = observer
	}
}

// WithLogger sets the logger used for engine diagnostics.
// If logger is nil, this option is ignored and slog.Default() is used.
func WithLogger[V any](logger *slog.Logger) Option[V] {
	return func(opts *engineOptions[V]) {
		if logger != nil {
			opts.logger = logger
		}
	}
}

// applyOptions applies functional options to create final engine configuration.
func applyOptions[V any](options ...Option[V]) *engineOptions[V] {
	opts := &engineOptions[V]{
		logger: slog.Default(),
	}

	for _, opt := range options {
		if opt != nil {
			opt(opts)
		}
	}

	return opts
}
