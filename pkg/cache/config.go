package cache

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/c360/geocache/errors"
)

// Default configuration values.
const (
	DefaultMaxSizeBytes  = 100 * 1024 * 1024 // 100 MiB
	DefaultTTL           = 1 * time.Hour
	DefaultPruneInterval = 5 * time.Minute
)

// Config contains configuration for engine creation.
type Config struct {
	// MaxSizeBytes is the approximate byte budget; exceeding it triggers
	// LRU eviction.
	MaxSizeBytes int64 `json:"max_size_bytes"`

	// DefaultTTL is applied by Set calls that do not specify a TTL.
	// Zero means entries never expire by default.
	DefaultTTL time.Duration `json:"default_ttl"`

	// PruneInterval is how often the background sweep removes expired
	// entries. Zero or negative disables the sweep; lazy expiry on access
	// still applies.
	PruneInterval time.Duration `json:"prune_interval"`
}

// DefaultConfig returns the default engine configuration:
// 100 MiB budget, 1 hour TTL, 5 minute prune interval.
func DefaultConfig() Config {
	return Config{
		MaxSizeBytes:  DefaultMaxSizeBytes,
		DefaultTTL:    DefaultTTL,
		PruneInterval: DefaultPruneInterval,
	}
}

// Validate checks if the configuration is valid.
func (c Config) Validate() error {
	if c.MaxSizeBytes <= 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "cache", "Validate",
			fmt.Sprintf("max_size_bytes must be positive, got %d", c.MaxSizeBytes))
	}
	if c.DefaultTTL < 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "cache", "Validate",
			fmt.Sprintf("default_ttl must not be negative, got %v", c.DefaultTTL))
	}
	return nil
}

// UnmarshalJSON implements custom JSON unmarshaling for Config to support
// duration strings (e.g., "1h", "5m", "30s") in addition to nanosecond integers.
func (c *Config) UnmarshalJSON(data []byte) error {
	// Use an alias to avoid infinite recursion
	type Alias Config

	aux := &struct {
		DefaultTTL    json.RawMessage `json:"default_ttl,omitempty"`
		PruneInterval json.RawMessage `json:"prune_interval,omitempty"`
		*Alias
	}{
		Alias: (*Alias)(c),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	if len(aux.DefaultTTL) > 0 {
		ttl, err := parseDurationField(aux.DefaultTTL, "default_ttl")
		if err != nil {
			return err
		}
		c.DefaultTTL = ttl
	}

	if len(aux.PruneInterval) > 0 {
		interval, err := parseDurationField(aux.PruneInterval, "prune_interval")
		if err != nil {
			return err
		}
		c.PruneInterval = interval
	}

	return nil
}

// parseDurationField parses a JSON duration field that can be either:
// - An integer (nanoseconds) for backward compatibility
// - A string (duration like "1h", "5m", "30s")
func parseDurationField(data json.RawMessage, fieldName string) (time.Duration, error) {
	// Try parsing as string first (most common case)
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		duration, err := time.ParseDuration(str)
		if err != nil {
			return 0, fmt.Errorf("invalid duration string for %s: %w", fieldName, err)
		}
		return duration, nil
	}

	// Fall back to integer (nanoseconds)
	var nsec int64
	if err := json.Unmarshal(data, &nsec); err != nil {
		return 0, fmt.Errorf("field %s must be either a duration string (e.g., '1h') or integer nanoseconds", fieldName)
	}
	return time.Duration(nsec), nil
}
