// Package geo memoizes IP geolocation lookups and region configuration
// fetches through the cache engine. The authoritative collaborators are
// behind interfaces: a geo-database reader and a persistent config store are
// out of scope here and supplied by the caller.
package geo

import (
	"context"
	"time"
	"unicode/utf8"
)

// Location is a resolved geolocation record for an IP address.
// It reports its own byte size so the cache never walks it reflectively.
type Location struct {
	IP          string  `json:"ip"`
	CountryCode string  `json:"country_code"`
	RegionCode  string  `json:"region_code"`
	City        string  `json:"city"`
	TimeZone    string  `json:"time_zone"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
}

// SizeBytes implements cache.Sized.
func (l *Location) SizeBytes() int64 {
	if l == nil {
		return 0
	}
	size := int64(16) // two float64 coordinates
	for _, s := range []string{l.IP, l.CountryCode, l.RegionCode, l.City, l.TimeZone} {
		size += int64(utf8.RuneCountInString(s)) * 2
	}
	return size
}

// RegionConfig is a typed configuration document for a region, as served by
// the persistent store.
type RegionConfig struct {
	Code      string            `json:"code"`
	Type      string            `json:"type"`
	Settings  map[string]string `json:"settings"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// SizeBytes implements cache.Sized.
func (c *RegionConfig) SizeBytes() int64 {
	if c == nil {
		return 0
	}
	size := int64(utf8.RuneCountInString(c.Code)+utf8.RuneCountInString(c.Type)) * 2
	for k, v := range c.Settings {
		size += int64(utf8.RuneCountInString(k)+utf8.RuneCountInString(v)) * 2
	}
	return size + 8 // timestamp
}

// LocationSource resolves IP addresses to locations. Implementations wrap a
// geo database reader or a remote lookup service.
type LocationSource interface {
	Lookup(ctx context.Context, ip string) (*Location, error)
}

// RegionConfigStore fetches region configuration documents from the
// persistent store.
type RegionConfigStore interface {
	RegionConfig(ctx context.Context, code, configType string) (*RegionConfig, error)
}
