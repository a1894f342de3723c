package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/hoangh20/transfleet-dispatch/internal/domain"
	"github.com/hoangh20/transfleet-dispatch/internal/repo"
)

// MatchResult is the matcher's proposal for combining a delivery trip with
// a packing trip. When KnownDistance is false the dispatcher must supply a
// positive distance to Confirm, which then records it for future reuse.
type MatchResult struct {
	DeliveryTripID  uuid.UUID `json:"delivery_trip_id"`
	PackingTripID   uuid.UUID `json:"packing_trip_id"`
	DeliveryRouteID uuid.UUID `json:"delivery_route_id"`
	PackingRouteID  uuid.UUID `json:"packing_route_id"`
	DistanceKm      float64   `json:"distance_km"`
	KnownDistance   bool      `json:"known_distance"`
}

// CombineService is the combination matcher: it checks that two trips can
// be merged, resolves the empty distance between their routes, and creates
// the combined pairing.
type CombineService struct {
	trips     repo.TripRepo
	combined  repo.CombinedRepo
	distances repo.DistanceRepo
}

// NewCombineService constructs a CombineService. Pass the cached
// DistanceRepo so repeated matches of hot route pairs skip Postgres.
func NewCombineService(trips repo.TripRepo, combined repo.CombinedRepo, distances repo.DistanceRepo) *CombineService {
	return &CombineService{trips: trips, combined: combined, distances: distances}
}

// Match proposes a combination of the two trips. The proposed distance is
// still editable by the dispatcher before Confirm.
//
// Returns domain.ErrNeedsManualDistance (with the route pair filled in)
// when no learned distance exists yet for the pair.
func (s *CombineService) Match(ctx context.Context, deliveryTripID, packingTripID uuid.UUID) (MatchResult, error) {
	delivery, packing, err := s.loadPair(ctx, deliveryTripID, packingTripID)
	if err != nil {
		return MatchResult{}, fmt.Errorf("service.CombineService.Match: %w", err)
	}

	result := MatchResult{
		DeliveryTripID:  delivery.ID,
		PackingTripID:   packing.ID,
		DeliveryRouteID: *delivery.RouteID,
		PackingRouteID:  *packing.RouteID,
	}

	entry, err := s.distances.Get(ctx, *delivery.RouteID, *packing.RouteID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return result, fmt.Errorf("service.CombineService.Match: %w", domain.ErrNeedsManualDistance)
		}
		return MatchResult{}, fmt.Errorf("service.CombineService.Match: %w", err)
	}

	result.DistanceKm = entry.DistanceKm
	result.KnownDistance = true
	return result, nil
}

// Confirm creates the combined pairing at combined status 0 and marks both
// trips combined. When the route pair had no learned distance, the
// supplied distance is persisted as shared reference data for future
// matches; an existing entry is never overwritten.
func (s *CombineService) Confirm(ctx context.Context, deliveryTripID, packingTripID uuid.UUID, connType domain.ConnectionType, distanceKm float64) (domain.CombinedPairing, error) {
	if !connType.Valid() {
		return domain.CombinedPairing{}, fmt.Errorf("service.CombineService.Confirm: %w: unknown connection type", domain.ErrValidation)
	}

	delivery, packing, err := s.loadPair(ctx, deliveryTripID, packingTripID)
	if err != nil {
		return domain.CombinedPairing{}, fmt.Errorf("service.CombineService.Confirm: %w", err)
	}

	entry, err := s.distances.Get(ctx, *delivery.RouteID, *packing.RouteID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		if distanceKm <= 0 {
			return domain.CombinedPairing{}, fmt.Errorf("service.CombineService.Confirm: %w", domain.ErrNeedsManualDistance)
		}
		// First manual entry for this route pair: learn it. The repo keeps
		// the first writer under concurrent creation.
		put := domain.EmptyDistance{
			DeliveryRouteID: *delivery.RouteID,
			PackingRouteID:  *packing.RouteID,
			DistanceKm:      distanceKm,
		}
		if err := s.distances.Put(ctx, put); err != nil {
			return domain.CombinedPairing{}, fmt.Errorf("service.CombineService.Confirm: %w", err)
		}
	case err != nil:
		return domain.CombinedPairing{}, fmt.Errorf("service.CombineService.Confirm: %w", err)
	default:
		// Learned pair: the dispatcher may have edited the proposed value;
		// an omitted distance falls back to the learned one.
		if distanceKm <= 0 {
			distanceKm = entry.DistanceKm
		}
	}

	pairing := domain.CombinedPairing{
		DeliveryTripID:  delivery.ID,
		PackingTripID:   packing.ID,
		ConnectionType:  connType,
		EmptyDistanceKm: distanceKm,
	}

	created, err := s.combined.Create(ctx, pairing)
	if err != nil {
		return domain.CombinedPairing{}, fmt.Errorf("service.CombineService.Confirm: %w", err)
	}
	return created, nil
}

// loadPair fetches and validates both trips of a candidate combination.
func (s *CombineService) loadPair(ctx context.Context, deliveryTripID, packingTripID uuid.UUID) (delivery, packing domain.Trip, err error) {
	delivery, err = s.trips.GetByID(ctx, deliveryTripID)
	if err != nil {
		return domain.Trip{}, domain.Trip{}, err
	}
	packing, err = s.trips.GetByID(ctx, packingTripID)
	if err != nil {
		return domain.Trip{}, domain.Trip{}, err
	}

	if delivery.Kind != domain.KindDelivery {
		return domain.Trip{}, domain.Trip{}, fmt.Errorf("%w: first trip must be a delivery trip", domain.ErrValidation)
	}
	if packing.Kind != domain.KindPacking {
		return domain.Trip{}, domain.Trip{}, fmt.Errorf("%w: second trip must be a packing trip", domain.ErrValidation)
	}
	if packing.CombinationMode != domain.ModeCombinable {
		return domain.Trip{}, domain.Trip{}, domain.ErrNotCombinable
	}
	if delivery.IsCombined || packing.IsCombined {
		return domain.Trip{}, domain.Trip{}, domain.ErrAlreadyCombined
	}
	if delivery.RouteID == nil || packing.RouteID == nil {
		return domain.Trip{}, domain.Trip{}, domain.ErrRouteUnresolved
	}

	return delivery, packing, nil
}
