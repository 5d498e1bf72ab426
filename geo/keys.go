package geo

import "regexp"

// Cache key scheme. Location records and region configs share one engine, so
// keys carry a namespace prefix and region configs can be invalidated as a
// group by pattern.
const (
	locationKeyPrefix     = "geolocation:location:"
	regionConfigKeyPrefix = "geolocation:config:region:"
)

// LocationKey returns the cache key for an IP's location record.
func LocationKey(ip string) string {
	return locationKeyPrefix + ip
}

// RegionConfigKey returns the cache key for a region's config document of the
// given type.
func RegionConfigKey(code, configType string) string {
	return regionConfigKeyPrefix + code + ":" + configType
}

// regionConfigPattern matches every config key for a region, across all
// config types. The region code is quoted so codes containing regexp
// metacharacters cannot widen the match.
func regionConfigPattern(code string) string {
	return "^" + regexp.QuoteMeta(regionConfigKeyPrefix+code+":")
}
