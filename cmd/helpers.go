package main

import (
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ddtlab/distance-cli/internal/batch"
	"github.com/ddtlab/distance-cli/internal/distance"
	"github.com/ddtlab/distance-cli/internal/geocache"
	"github.com/ddtlab/distance-cli/internal/session"
	"github.com/ddtlab/distance-cli/pkg/geocode"
)

// env bundles the wired pipeline components for one command invocation.
type env struct {
	Cache     *geocache.Cache
	Sessions  *session.Store
	Validator *distance.Validator
	Processor *batch.Processor
}

// initEnv opens the store and wires providers, resolvers, validator, and
// processor from the loaded config.
func initEnv() (*env, error) {
	if dir := filepath.Dir(cfg.Store.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, eris.Wrapf(err, "create store dir %s", dir)
		}
	}

	cache, err := geocache.Open(cfg.Store.Path)
	if err != nil {
		return nil, err
	}
	sessions, err := session.Open(cfg.Store.Path)
	if err != nil {
		cache.Close()
		return nil, err
	}

	httpClient := &http.Client{Timeout: time.Duration(cfg.Geocode.TimeoutSecs) * time.Second}

	nominatim := geocode.NewNominatim(
		geocode.WithNominatimHTTPClient(httpClient),
		geocode.WithNominatimBaseURL(cfg.Geocode.NominatimBaseURL),
		geocode.WithNominatimRateLimit(cfg.Geocode.NominatimRPS),
		geocode.WithNominatimCountry(cfg.Geocode.Country),
	)
	ors := geocode.NewORS(cfg.Geocode.ORSKey,
		geocode.WithORSHTTPClient(httpClient),
		geocode.WithORSBaseURL(cfg.Geocode.ORSBaseURL),
		geocode.WithORSCountry(cfg.Geocode.Country),
	)

	primary := distance.NewResolver(cache, nominatim, cfg.Validate.RoadFactor)
	var secondary distance.PairDistancer
	if ors.Available() {
		secondary = distance.NewResolver(cache, ors, cfg.Validate.RoadFactor)
	} else {
		zap.L().Warn("ORS key not configured, running single-provider")
	}

	validator := distance.NewValidator(primary, secondary, distance.Config{
		MaxDisagreement: cfg.Validate.MaxDisagreement,
		MaxDistanceKM:   cfg.Validate.MaxDistanceKM,
	})
	processor := batch.NewProcessor(sessions, validator, batch.Config{
		Size:        cfg.Batch.Size,
		Concurrency: cfg.Batch.Concurrency,
	})

	return &env{
		Cache:     cache,
		Sessions:  sessions,
		Validator: validator,
		Processor: processor,
	}, nil
}

// Close releases the environment's resources.
func (e *env) Close() {
	if err := e.Sessions.Close(); err != nil {
		zap.L().Warn("close session store", zap.Error(err))
	}
	if err := e.Cache.Close(); err != nil {
		zap.L().Warn("close cache", zap.Error(err))
	}
}
