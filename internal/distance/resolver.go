// Package distance turns address pairs into reconciled distances: a
// cache-first resolver per provider, and a validator that cross-checks the
// two providers' measurements.
package distance

import (
	"context"
	"math"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ddtlab/distance-cli/internal/geocache"
	"github.com/ddtlab/distance-cli/pkg/geocode"
)

// PairDistancer measures the distance of one address pair through a single
// backend. Implemented by Resolver; stubbed in tests.
type PairDistancer interface {
	Provider() string
	PairDistance(ctx context.Context, origin, destination string) (float64, error)
}

// Resolver resolves addresses to coordinates through one provider,
// consulting and populating the persistent cache, and computes pair
// distances from the resolved coordinates.
type Resolver struct {
	cache      *geocache.Cache
	provider   geocode.Provider
	roadFactor float64
}

// NewResolver creates a Resolver. roadFactor scales the great-circle
// distance to approximate road distance; values <= 0 default to 1.
func NewResolver(cache *geocache.Cache, provider geocode.Provider, roadFactor float64) *Resolver {
	if roadFactor <= 0 {
		roadFactor = 1
	}
	return &Resolver{cache: cache, provider: provider, roadFactor: roadFactor}
}

// Provider implements PairDistancer.
func (r *Resolver) Provider() string { return r.provider.Name() }

// ResolveCoordinate resolves a single address, cache-first. Provider
// failures and non-matches are returned as errors and never cached, so a
// later attempt retries the lookup. A cache write failure degrades to
// recompute-next-time rather than failing the resolution.
func (r *Resolver) ResolveCoordinate(ctx context.Context, address string) (*geocode.Coordinate, error) {
	entry, err := r.cache.Get(ctx, address, r.provider.Name())
	if err != nil {
		zap.L().Warn("cache read failed, falling through to provider",
			zap.String("provider", r.provider.Name()),
			zap.Error(err),
		)
	}
	if entry != nil {
		return &geocode.Coordinate{Lat: entry.Lat, Lon: entry.Lon}, nil
	}

	coord, err := r.provider.Geocode(ctx, address)
	if err != nil {
		return nil, eris.Wrapf(err, "distance: geocode %q via %s", address, r.provider.Name())
	}
	if coord == nil {
		return nil, eris.Errorf("distance: no match for %q via %s", address, r.provider.Name())
	}

	if err := r.cache.Put(ctx, address, r.provider.Name(), coord.Lat, coord.Lon); err != nil {
		zap.L().Warn("cache write failed, result not cached",
			zap.String("provider", r.provider.Name()),
			zap.Error(err),
		)
	}

	return coord, nil
}

// PairDistance resolves both endpoints and returns the road-adjusted
// distance in kilometers, rounded to two decimals. Identical normalized
// endpoints short-circuit to zero without touching cache or provider, and
// a great-circle distance under 1 km is treated as the same place.
func (r *Resolver) PairDistance(ctx context.Context, origin, destination string) (float64, error) {
	if geocode.NormalizeAddress(origin) == geocode.NormalizeAddress(destination) {
		return 0, nil
	}

	from, err := r.ResolveCoordinate(ctx, origin)
	if err != nil {
		return 0, err
	}
	to, err := r.ResolveCoordinate(ctx, destination)
	if err != nil {
		return 0, err
	}

	km := geocode.Haversine(*from, *to)
	if km < 1.0 {
		return 0, nil
	}

	return math.Round(km*r.roadFactor*100) / 100, nil
}
