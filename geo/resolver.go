package geo

import (
	"context"
	"log/slog"

	"github.com/c360/geocache/errors"
	"github.com/c360/geocache/pkg/cache"
)

// CachedResolver memoizes location lookups and region config fetches in a
// shared cache engine. Cache-aside: reads consult the cache first, fall back
// to the authoritative source, and store the result. A failed cache write
// never fails a lookup; the source remains authoritative.
type CachedResolver struct {
	cache  cache.Cache[any]
	source LocationSource
	store  RegionConfigStore
	logger *slog.Logger
}

// NewCachedResolver wires a resolver over the given cache and collaborators.
// The logger may be nil, in which case slog.Default() is used.
func NewCachedResolver(c cache.Cache[any], source LocationSource, store RegionConfigStore, logger *slog.Logger) (*CachedResolver, error) {
	if c == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "geo", "NewCachedResolver", "cache is required")
	}
	if source == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "geo", "NewCachedResolver", "location source is required")
	}
	if store == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "geo", "NewCachedResolver", "region config store is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &CachedResolver{
		cache:  c,
		source: source,
		store:  store,
		logger: logger,
	}, nil
}

// Location resolves an IP address, serving from cache when possible.
func (r *CachedResolver) Location(ctx context.Context, ip string) (*Location, error) {
	if ip == "" {
		return nil, errors.WrapInvalid(errors.ErrInvalidData, "geo", "Location", "ip cannot be empty")
	}

	key := LocationKey(ip)
	if cached, ok := r.cache.Get(key); ok {
		if loc, ok := cached.(*Location); ok {
			return loc, nil
		}
		// Foreign value under our key; drop it and resolve fresh.
		r.cache.Delete(key)
	}

	loc, err := r.source.Lookup(ctx, ip)
	if err != nil {
		return nil, errors.Wrap(err, "geo", "Location", "lookup "+ip)
	}
	if loc == nil {
		return nil, errors.WrapInvalid(errors.ErrKeyNotFound, "geo", "Location", "no record for "+ip)
	}

	if !r.cache.Set(key, loc) {
		r.logger.Debug("location not cached", "ip", ip)
	}
	return loc, nil
}

// Region fetches a region's config document of the given type, serving from
// cache when possible.
func (r *CachedResolver) Region(ctx context.Context, code, configType string) (*RegionConfig, error) {
	if code == "" || configType == "" {
		return nil, errors.WrapInvalid(errors.ErrInvalidData, "geo", "Region", "code and type are required")
	}

	key := RegionConfigKey(code, configType)
	if cached, ok := r.cache.Get(key); ok {
		if cfg, ok := cached.(*RegionConfig); ok {
			return cfg, nil
		}
		r.cache.Delete(key)
	}

	cfg, err := r.store.RegionConfig(ctx, code, configType)
	if err != nil {
		return nil, errors.Wrap(err, "geo", "Region", "fetch config "+code+":"+configType)
	}
	if cfg == nil {
		return nil, errors.WrapInvalid(errors.ErrKeyNotFound, "geo", "Region", "no config for "+code+":"+configType)
	}

	if !r.cache.Set(key, cfg) {
		r.logger.Debug("region config not cached", "code", code, "type", configType)
	}
	return cfg, nil
}

// InvalidateLocation drops the cached record for an IP. Returns true if a
// record was cached.
func (r *CachedResolver) InvalidateLocation(ip string) bool {
	return r.cache.Delete(LocationKey(ip))
}

// InvalidateRegion drops every cached config for a region, across all config
// types, and returns the count removed.
func (r *CachedResolver) InvalidateRegion(code string) (int, error) {
	if code == "" {
		return 0, errors.WrapInvalid(errors.ErrInvalidData, "geo", "InvalidateRegion", "code cannot be empty")
	}
	return r.cache.DeletePattern(regionConfigPattern(code))
}
