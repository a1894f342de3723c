package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hoangh20/transfleet-dispatch/internal/domain"
)

// DistanceRepo defines the persistence operations for learned empty
// distances. Entries are shared reference data keyed by route pair.
type DistanceRepo interface {
	// Get looks up the learned distance for a route pair.
	// Returns domain.ErrNotFound when no entry exists yet.
	Get(ctx context.Context, deliveryRouteID, packingRouteID uuid.UUID) (domain.EmptyDistance, error)

	// Put records a distance for a route pair. Concurrent creators for the
	// same pair are deduped: the first writer wins and later writes are
	// silently dropped.
	Put(ctx context.Context, e domain.EmptyDistance) error
}

// pgDistanceRepo is the Postgres implementation of DistanceRepo.
type pgDistanceRepo struct {
	db db
}

// NewDistanceRepo constructs a DistanceRepo backed by the provided db connection.
func NewDistanceRepo(db db) DistanceRepo {
	return &pgDistanceRepo{db: db}
}

func (r *pgDistanceRepo) Get(ctx context.Context, deliveryRouteID, packingRouteID uuid.UUID) (domain.EmptyDistance, error) {
	const q = `
		SELECT delivery_route_id, packing_route_id, distance_km, created_at
		FROM empty_distances
		WHERE delivery_route_id = @delivery_route_id AND packing_route_id = @packing_route_id`

	args := pgx.NamedArgs{
		"delivery_route_id": deliveryRouteID,
		"packing_route_id":  packingRouteID,
	}

	var e domain.EmptyDistance
	err := r.db.QueryRow(ctx, q, args).Scan(&e.DeliveryRouteID, &e.PackingRouteID, &e.DistanceKm, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.EmptyDistance{}, fmt.Errorf("repo.DistanceRepo.Get: %w", domain.ErrNotFound)
		}
		return domain.EmptyDistance{}, fmt.Errorf("repo.DistanceRepo.Get: %w", err)
	}
	return e, nil
}

// Put inserts with ON CONFLICT DO NOTHING so first-writer-wins holds under
// concurrent creation for the same route pair.
func (r *pgDistanceRepo) Put(ctx context.Context, e domain.EmptyDistance) error {
	const q = `
		INSERT INTO empty_distances (delivery_route_id, packing_route_id, distance_km)
		VALUES (@delivery_route_id, @packing_route_id, @distance_km)
		ON CONFLICT (delivery_route_id, packing_route_id) DO NOTHING`

	args := pgx.NamedArgs{
		"delivery_route_id": e.DeliveryRouteID,
		"packing_route_id":  e.PackingRouteID,
		"distance_km":       e.DistanceKm,
	}

	if _, err := r.db.Exec(ctx, q, args); err != nil {
		return fmt.Errorf("repo.DistanceRepo.Put: %w", err)
	}
	return nil
}
