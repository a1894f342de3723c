// Package cache provides a Redis read-through layer over the learned
// empty-distance lookup. Route-pair distances are read on every match
// attempt and written once, so hot pairs are served from Redis while the
// Postgres table stays the source of truth.
package cache

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/hoangh20/transfleet-dispatch/internal/domain"
	"github.com/hoangh20/transfleet-dispatch/internal/repo"
)

// DistanceCache wraps a repo.DistanceRepo with a Redis cache.
// Redis failures are best-effort: they are logged and the call falls
// through to the underlying repo, never failing the lookup.
type DistanceCache struct {
	rdb  *redis.Client
	next repo.DistanceRepo
	ttl  time.Duration
	log  *slog.Logger
}

// compile-time check: the cache is a drop-in DistanceRepo.
var _ repo.DistanceRepo = (*DistanceCache)(nil)

// NewDistanceCache wraps next with a Redis read-through cache.
// Entries expire after ttl; pass 0 for no expiry.
func NewDistanceCache(rdb *redis.Client, next repo.DistanceRepo, ttl time.Duration, log *slog.Logger) *DistanceCache {
	return &DistanceCache{rdb: rdb, next: next, ttl: ttl, log: log}
}

// key builds the Redis key for a route pair. Direction matters: the empty
// run goes from the delivery route's end to the packing route's start.
func key(deliveryRouteID, packingRouteID uuid.UUID) string {
	return "empty_distance:" + deliveryRouteID.String() + ":" + packingRouteID.String()
}

// Get returns the cached distance when present, otherwise reads through to
// the repo and populates the cache. Misses of the repo itself (no learned
// entry) are not cached.
func (c *DistanceCache) Get(ctx context.Context, deliveryRouteID, packingRouteID uuid.UUID) (domain.EmptyDistance, error) {
	k := key(deliveryRouteID, packingRouteID)

	val, err := c.rdb.Get(ctx, k).Result()
	switch {
	case err == nil:
		km, parseErr := strconv.ParseFloat(val, 64)
		if parseErr == nil {
			return domain.EmptyDistance{
				DeliveryRouteID: deliveryRouteID,
				PackingRouteID:  packingRouteID,
				DistanceKm:      km,
			}, nil
		}
		c.log.WarnContext(ctx, "distance cache: bad cached value", "key", k, "value", val)
	case !errors.Is(err, redis.Nil):
		c.log.WarnContext(ctx, "distance cache: get failed", "key", k, "error", err)
	}

	e, err := c.next.Get(ctx, deliveryRouteID, packingRouteID)
	if err != nil {
		return domain.EmptyDistance{}, err
	}

	if err := c.rdb.Set(ctx, k, formatKm(e.DistanceKm), c.ttl).Err(); err != nil {
		c.log.WarnContext(ctx, "distance cache: set failed", "key", k, "error", err)
	}
	return e, nil
}

// Put writes through to the repo, then refreshes the cache with the
// authoritative stored value. The repo dedupes concurrent creators, so a
// losing writer's re-read returns the winner's distance.
func (c *DistanceCache) Put(ctx context.Context, e domain.EmptyDistance) error {
	if err := c.next.Put(ctx, e); err != nil {
		return err
	}

	stored, err := c.next.Get(ctx, e.DeliveryRouteID, e.PackingRouteID)
	if err != nil {
		// The entry was just written; treat a read-back failure as cache
		// trouble only and drop the stale key instead.
		c.log.WarnContext(ctx, "distance cache: read-back failed", "error", err)
		if delErr := c.rdb.Del(ctx, key(e.DeliveryRouteID, e.PackingRouteID)).Err(); delErr != nil {
			c.log.WarnContext(ctx, "distance cache: del failed", "error", delErr)
		}
		return nil
	}

	k := key(e.DeliveryRouteID, e.PackingRouteID)
	if err := c.rdb.Set(ctx, k, formatKm(stored.DistanceKm), c.ttl).Err(); err != nil {
		c.log.WarnContext(ctx, "distance cache: set failed", "key", k, "error", err)
	}
	return nil
}

func formatKm(km float64) string {
	return strconv.FormatFloat(km, 'f', -1, 64)
}
