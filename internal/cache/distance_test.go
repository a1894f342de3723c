package cache_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hoangh20/transfleet-dispatch/internal/cache"
	"github.com/hoangh20/transfleet-dispatch/internal/domain"
	"github.com/hoangh20/transfleet-dispatch/internal/repo"
)

// memDistanceRepo is an in-memory DistanceRepo recording call counts, so
// tests can tell a cache hit from a read-through.
type memDistanceRepo struct {
	entries map[[2]uuid.UUID]domain.EmptyDistance
	gets    int
	puts    int
}

func newMemDistanceRepo() *memDistanceRepo {
	return &memDistanceRepo{entries: make(map[[2]uuid.UUID]domain.EmptyDistance)}
}

func (m *memDistanceRepo) Get(_ context.Context, deliveryRouteID, packingRouteID uuid.UUID) (domain.EmptyDistance, error) {
	m.gets++
	e, ok := m.entries[[2]uuid.UUID{deliveryRouteID, packingRouteID}]
	if !ok {
		return domain.EmptyDistance{}, domain.ErrNotFound
	}
	return e, nil
}

func (m *memDistanceRepo) Put(_ context.Context, e domain.EmptyDistance) error {
	m.puts++
	k := [2]uuid.UUID{e.DeliveryRouteID, e.PackingRouteID}
	if _, ok := m.entries[k]; ok {
		return nil // first writer wins
	}
	m.entries[k] = e
	return nil
}

var _ repo.DistanceRepo = (*memDistanceRepo)(nil)

func newTestCache(t *testing.T, next repo.DistanceRepo, ttl time.Duration) (*cache.DistanceCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return cache.NewDistanceCache(rdb, next, ttl, log), mr
}

func entryFixture() domain.EmptyDistance {
	return domain.EmptyDistance{
		DeliveryRouteID: uuid.New(),
		PackingRouteID:  uuid.New(),
		DistanceKm:      31.7,
	}
}

func TestDistanceCache_Get_ReadThrough(t *testing.T) {
	next := newMemDistanceRepo()
	entry := entryFixture()
	require.NoError(t, next.Put(context.Background(), entry))
	next.puts = 0

	c, _ := newTestCache(t, next, 0)
	ctx := context.Background()

	// First read misses the cache and hits the repo.
	got, err := c.Get(ctx, entry.DeliveryRouteID, entry.PackingRouteID)
	require.NoError(t, err)
	assert.Equal(t, 31.7, got.DistanceKm)
	assert.Equal(t, 1, next.gets)

	// Second read is served from Redis.
	got, err = c.Get(ctx, entry.DeliveryRouteID, entry.PackingRouteID)
	require.NoError(t, err)
	assert.Equal(t, 31.7, got.DistanceKm)
	assert.Equal(t, 1, next.gets, "repo must not be consulted on a cache hit")
}

func TestDistanceCache_Get_RepoMissNotCached(t *testing.T) {
	next := newMemDistanceRepo()
	c, _ := newTestCache(t, next, 0)
	ctx := context.Background()

	deliveryRoute, packingRoute := uuid.New(), uuid.New()

	_, err := c.Get(ctx, deliveryRoute, packingRoute)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// The miss must not stick: once the repo learns the pair, the cache
	// serves it.
	require.NoError(t, next.Put(ctx, domain.EmptyDistance{
		DeliveryRouteID: deliveryRoute,
		PackingRouteID:  packingRoute,
		DistanceKm:      8,
	}))

	got, err := c.Get(ctx, deliveryRoute, packingRoute)
	require.NoError(t, err)
	assert.Equal(t, 8.0, got.DistanceKm)
}

func TestDistanceCache_Get_BadCachedValueFallsThrough(t *testing.T) {
	next := newMemDistanceRepo()
	entry := entryFixture()
	require.NoError(t, next.Put(context.Background(), entry))

	c, mr := newTestCache(t, next, 0)
	ctx := context.Background()

	mr.Set("empty_distance:"+entry.DeliveryRouteID.String()+":"+entry.PackingRouteID.String(), "garbage")

	got, err := c.Get(ctx, entry.DeliveryRouteID, entry.PackingRouteID)

	require.NoError(t, err)
	assert.Equal(t, 31.7, got.DistanceKm)
}

func TestDistanceCache_Get_RedisDownFallsThrough(t *testing.T) {
	next := newMemDistanceRepo()
	entry := entryFixture()
	require.NoError(t, next.Put(context.Background(), entry))

	c, mr := newTestCache(t, next, 0)
	mr.Close()

	got, err := c.Get(context.Background(), entry.DeliveryRouteID, entry.PackingRouteID)

	require.NoError(t, err, "redis being down must not fail the lookup")
	assert.Equal(t, 31.7, got.DistanceKm)
}

func TestDistanceCache_Put_WriteThrough(t *testing.T) {
	next := newMemDistanceRepo()
	c, _ := newTestCache(t, next, 0)
	ctx := context.Background()

	entry := entryFixture()
	require.NoError(t, c.Put(ctx, entry))
	assert.Equal(t, 1, next.puts)

	// The write populated the cache: the following read skips the repo.
	gets := next.gets
	got, err := c.Get(ctx, entry.DeliveryRouteID, entry.PackingRouteID)
	require.NoError(t, err)
	assert.Equal(t, 31.7, got.DistanceKm)
	assert.Equal(t, gets, next.gets)
}

func TestDistanceCache_Put_LosingWriterCachesWinner(t *testing.T) {
	next := newMemDistanceRepo()
	c, _ := newTestCache(t, next, 0)
	ctx := context.Background()

	entry := entryFixture()
	require.NoError(t, c.Put(ctx, entry))

	// A second writer for the same pair loses in the repo; the cache must
	// carry the winner's value, not the loser's.
	loser := entry
	loser.DistanceKm = 99
	require.NoError(t, c.Put(ctx, loser))

	got, err := c.Get(ctx, entry.DeliveryRouteID, entry.PackingRouteID)
	require.NoError(t, err)
	assert.Equal(t, 31.7, got.DistanceKm)
}

func TestDistanceCache_Get_TTLExpiry(t *testing.T) {
	next := newMemDistanceRepo()
	entry := entryFixture()
	require.NoError(t, next.Put(context.Background(), entry))

	c, mr := newTestCache(t, next, time.Minute)
	ctx := context.Background()

	_, err := c.Get(ctx, entry.DeliveryRouteID, entry.PackingRouteID)
	require.NoError(t, err)
	require.Equal(t, 1, next.gets)

	mr.FastForward(2 * time.Minute)

	_, err = c.Get(ctx, entry.DeliveryRouteID, entry.PackingRouteID)
	require.NoError(t, err)
	assert.Equal(t, 2, next.gets, "expired entry should read through again")
}
