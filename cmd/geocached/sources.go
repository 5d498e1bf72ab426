package main

import (
	"context"
	"fmt"
	"time"

	"github.com/c360/geocache/geo"
)

// staticLocationSource is an in-memory stand-in for a geo database reader,
// used until a real reader is wired in.
type staticLocationSource struct {
	records map[string]*geo.Location
}

func newStaticLocationSource() *staticLocationSource {
	return &staticLocationSource{
		records: map[string]*geo.Location{
			"203.0.113.9": {
				IP:          "203.0.113.9",
				CountryCode: "DE",
				RegionCode:  "BE",
				City:        "Berlin",
				TimeZone:    "Europe/Berlin",
				Latitude:    52.52,
				Longitude:   13.405,
			},
			"198.51.100.7": {
				IP:          "198.51.100.7",
				CountryCode: "US",
				RegionCode:  "CA",
				City:        "San Francisco",
				TimeZone:    "America/Los_Angeles",
				Latitude:    37.7749,
				Longitude:   -122.4194,
			},
		},
	}
}

func (s *staticLocationSource) Lookup(_ context.Context, ip string) (*geo.Location, error) {
	loc, ok := s.records[ip]
	if !ok {
		return nil, fmt.Errorf("no location record for %s", ip)
	}
	return loc, nil
}

// staticRegionStore is an in-memory stand-in for the persistent config store.
type staticRegionStore struct {
	configs map[string]*geo.RegionConfig
}

func newStaticRegionStore() *staticRegionStore {
	now := time.Now()
	return &staticRegionStore{
		configs: map[string]*geo.RegionConfig{
			"us:limits": {
				Code:      "us",
				Type:      "limits",
				Settings:  map[string]string{"requests_per_minute": "600"},
				UpdatedAt: now,
			},
			"eu:limits": {
				Code:      "eu",
				Type:      "limits",
				Settings:  map[string]string{"requests_per_minute": "300"},
				UpdatedAt: now,
			},
		},
	}
}

func (s *staticRegionStore) RegionConfig(_ context.Context, code, configType string) (*geo.RegionConfig, error) {
	cfg, ok := s.configs[code+":"+configType]
	if !ok {
		return nil, fmt.Errorf("no %s config for region %s", configType, code)
	}
	return cfg, nil
}
