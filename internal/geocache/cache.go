// Package geocache is the durable geocoding cache: normalized address +
// provider → coordinate, surviving process restarts. It is the only piece
// of state shared by concurrent batch workers.
package geocache

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/ddtlab/distance-cli/pkg/geocode"
)

// Entry is a cached geocoding result. Entries are immutable once written;
// a put either commits the full coordinate pair or nothing.
type Entry struct {
	Lat        float64
	Lon        float64
	ResolvedAt time.Time
}

// Stats holds process-lifetime hit/miss counters. Reset only by Clear.
type Stats struct {
	Hits   int64
	Misses int64
}

// HitRate returns hits/(hits+misses), or 0 with no lookups.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Cache is a SQLite-backed geocoding cache safe for concurrent use.
type Cache struct {
	db     *sql.DB
	hits   atomic.Int64
	misses atomic.Int64
}

const cacheMigration = `
CREATE TABLE IF NOT EXISTS geocode_cache (
	address_key TEXT NOT NULL,
	provider    TEXT NOT NULL,
	latitude    REAL NOT NULL,
	longitude   REAL NOT NULL,
	resolved_at DATETIME NOT NULL,
	PRIMARY KEY (address_key, provider)
);
`

// Open opens (creating if needed) the cache database at path and
// configures WAL mode.
func Open(path string) (*Cache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "geocache: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "geocache: exec %s", pragma)
		}
	}
	if _, err := db.Exec(cacheMigration); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "geocache: migrate")
	}
	return &Cache{db: db}, nil
}

// Close releases the database connection.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Key returns the cache key for an address: SHA-256 hex of the normalized
// address. The provider is a separate column so both providers can hold
// coordinates for the same place.
func Key(address string) string {
	h := sha256.Sum256([]byte(geocode.NormalizeAddress(address)))
	return fmt.Sprintf("%x", h)
}

// Get looks up a cached coordinate. A nil Entry with nil error is a miss,
// not an error. The only side effect is the stats increment.
func (c *Cache) Get(ctx context.Context, address, provider string) (*Entry, error) {
	key := Key(address)

	var e Entry
	err := c.db.QueryRowContext(ctx,
		`SELECT latitude, longitude, resolved_at FROM geocode_cache WHERE address_key = ? AND provider = ?`,
		key, provider,
	).Scan(&e.Lat, &e.Lon, &e.ResolvedAt)
	if err == sql.ErrNoRows {
		c.misses.Add(1)
		return nil, nil
	}
	// Read errors are not misses; they would skew the hit rate.
	if err != nil {
		return nil, eris.Wrap(err, "geocache: get")
	}

	c.hits.Add(1)
	zap.L().Debug("geocache hit",
		zap.String("key", key[:12]),
		zap.String("provider", provider),
	)
	return &e, nil
}

// Put stores a resolved coordinate. Re-putting identical coordinates is a
// no-op; differing coordinates overwrite (last-write-wins). Once Put
// returns nil the entry is durable.
func (c *Cache) Put(ctx context.Context, address, provider string, lat, lon float64) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO geocode_cache (address_key, provider, latitude, longitude, resolved_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (address_key, provider) DO UPDATE SET
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			resolved_at = excluded.resolved_at
		WHERE geocode_cache.latitude <> excluded.latitude
		   OR geocode_cache.longitude <> excluded.longitude`,
		Key(address), provider, lat, lon, time.Now().UTC(),
	)
	if err != nil {
		return eris.Wrap(err, "geocache: put")
	}
	return nil
}

// Stats returns the process-lifetime hit/miss counters.
func (c *Cache) Stats() Stats {
	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load()}
}

// Size returns the number of cached entries.
func (c *Cache) Size(ctx context.Context) (int64, error) {
	var n int64
	err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM geocode_cache`).Scan(&n)
	if err != nil {
		return 0, eris.Wrap(err, "geocache: size")
	}
	return n, nil
}

// Clear drops every entry and resets the counters.
func (c *Cache) Clear(ctx context.Context) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM geocode_cache`); err != nil {
		return eris.Wrap(err, "geocache: clear")
	}
	c.hits.Store(0)
	c.misses.Store(0)
	zap.L().Info("geocache cleared")
	return nil
}
