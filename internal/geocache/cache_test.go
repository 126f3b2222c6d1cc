package geocache

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*Cache, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cache.db")
	c, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() }) //nolint:errcheck
	return c, path
}

func TestCache_PutGet(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "PARIS", "nominatim", 48.8566, 2.3522))

	e, err := c.Get(ctx, "PARIS", "nominatim")
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.InDelta(t, 48.8566, e.Lat, 1e-9)
	assert.InDelta(t, 2.3522, e.Lon, 1e-9)
	assert.False(t, e.ResolvedAt.IsZero())
}

func TestCache_MissIsNotError(t *testing.T) {
	c, _ := newTestCache(t)

	e, err := c.Get(context.Background(), "UNKNOWN", "nominatim")
	require.NoError(t, err)
	assert.Nil(t, e)
	assert.Equal(t, Stats{Hits: 0, Misses: 1}, c.Stats())
}

func TestCache_KeyedByProvider(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "PARIS", "nominatim", 48.85, 2.35))

	e, err := c.Get(ctx, "PARIS", "ors")
	require.NoError(t, err)
	assert.Nil(t, e, "entry for one provider must not satisfy the other")
}

func TestCache_NormalizedKeysShareSlot(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "st pierre", "nominatim", -21.34, 55.48))

	e, err := c.Get(ctx, "  SAINT-PIERRE ", "nominatim")
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.InDelta(t, -21.34, e.Lat, 1e-9)
}

func TestCache_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	ctx := context.Background()

	c1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, c1.Put(ctx, "LYON", "ors", 45.764, 4.8357))
	require.NoError(t, c1.Close())

	// Simulated restart: fresh handle on the same file.
	c2, err := Open(path)
	require.NoError(t, err)
	defer c2.Close() //nolint:errcheck

	e, err := c2.Get(ctx, "LYON", "ors")
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.InDelta(t, 45.764, e.Lat, 1e-9)
}

func TestCache_HitRateGrowsOnRepeatLookups(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "PARIS", "nominatim", 48.85, 2.35))

	_, err := c.Get(ctx, "PARIS", "nominatim")
	require.NoError(t, err)
	first := c.Stats().HitRate()

	_, err = c.Get(ctx, "PARIS", "nominatim")
	require.NoError(t, err)
	second := c.Stats().HitRate()

	assert.GreaterOrEqual(t, second, first)
	assert.Equal(t, int64(2), c.Stats().Hits)
}

func TestCache_ReadErrorDoesNotCountAsMiss(t *testing.T) {
	c, _ := newTestCache(t)
	require.NoError(t, c.Close())

	_, err := c.Get(context.Background(), "PARIS", "nominatim")
	require.Error(t, err)
	assert.Equal(t, int64(0), c.Stats().Misses, "a failed read is not a miss")
	assert.Equal(t, int64(0), c.Stats().Hits)
}

func TestCache_IdempotentRePut(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "PARIS", "nominatim", 48.85, 2.35))

	_, err := c.Get(ctx, "PARIS", "nominatim")
	require.NoError(t, err)
	before := c.Stats()

	// Redundant write with identical coordinates.
	require.NoError(t, c.Put(ctx, "PARIS", "nominatim", 48.85, 2.35))

	e, err := c.Get(ctx, "PARIS", "nominatim")
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, before.Hits+1, c.Stats().Hits)
	assert.Equal(t, before.Misses, c.Stats().Misses)
}

func TestCache_OverwriteOnDifferentCoordinates(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "PARIS", "nominatim", 48.85, 2.35))
	require.NoError(t, c.Put(ctx, "PARIS", "nominatim", 48.86, 2.36))

	e, err := c.Get(ctx, "PARIS", "nominatim")
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.InDelta(t, 48.86, e.Lat, 1e-9)
	assert.InDelta(t, 2.36, e.Lon, 1e-9)
}

func TestCache_ClearResetsEverything(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "PARIS", "nominatim", 48.85, 2.35))
	_, err := c.Get(ctx, "PARIS", "nominatim")
	require.NoError(t, err)

	require.NoError(t, c.Clear(ctx))

	assert.Equal(t, Stats{}, c.Stats())
	n, err := c.Size(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCache_ConcurrentPutGet(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	done := make(chan error, 20)
	for i := 0; i < 10; i++ {
		go func(i int) {
			done <- c.Put(ctx, "PARIS", "nominatim", 48.85, 2.35)
		}(i)
		go func() {
			_, err := c.Get(ctx, "PARIS", "nominatim")
			done <- err
		}()
	}
	for i := 0; i < 20; i++ {
		require.NoError(t, <-done)
	}

	// No reader may have observed a partial entry; the only committed
	// value is the full coordinate pair.
	e, err := c.Get(ctx, "PARIS", "nominatim")
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.InDelta(t, 48.85, e.Lat, 1e-9)
	assert.InDelta(t, 2.35, e.Lon, 1e-9)
}
