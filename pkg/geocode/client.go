// Package geocode provides address geocoding via Nominatim (free) and
// OpenRouteService (keyed), plus great-circle distance helpers.
package geocode

import "context"

// Coordinate is a WGS84 latitude/longitude pair.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Provider represents a single geocoding backend.
//
// Geocode returns (nil, nil) when the provider answered but found no match
// for the address. Transport failures, timeouts, and malformed responses
// return an error. Callers treat both the same way: a recoverable miss
// that must never be cached.
type Provider interface {
	Name() string
	Geocode(ctx context.Context, address string) (*Coordinate, error)
	Available() bool
}
