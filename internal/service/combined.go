package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hoangh20/transfleet-dispatch/internal/domain"
	"github.com/hoangh20/transfleet-dispatch/internal/repo"
)

// CombinedDetail is a pairing together with its member trips and the
// decoded per-leg progress display.
type CombinedDetail struct {
	domain.CombinedPairing
	Delivery domain.Trip             `json:"delivery"`
	Packing  domain.Trip             `json:"packing"`
	Progress domain.CombinedProgress `json:"progress"`
}

// CombinedService is the combined status mediator: it advances a pairing's
// single status counter and decodes it into the two per-leg displays.
// Unlinking — splitting an early pairing back into independent trips —
// also lives here.
type CombinedService struct {
	combined repo.CombinedRepo
	trips    repo.TripRepo
	log      *slog.Logger
}

// NewCombinedService constructs a CombinedService backed by the provided repos.
func NewCombinedService(combined repo.CombinedRepo, trips repo.TripRepo, log *slog.Logger) *CombinedService {
	return &CombinedService{combined: combined, trips: trips, log: log}
}

// GetByID returns a pairing with both member trips and decoded progress.
func (s *CombinedService) GetByID(ctx context.Context, id uuid.UUID) (CombinedDetail, error) {
	pairing, err := s.combined.GetByID(ctx, id)
	if err != nil {
		return CombinedDetail{}, fmt.Errorf("service.CombinedService.GetByID: %w", err)
	}
	detail, err := s.detail(ctx, pairing)
	if err != nil {
		return CombinedDetail{}, fmt.Errorf("service.CombinedService.GetByID: %w", err)
	}
	return detail, nil
}

// ListByDateRange returns pairings whose delivery trip falls in the
// inclusive date range, each with decoded progress.
func (s *CombinedService) ListByDateRange(ctx context.Context, from, to time.Time) ([]CombinedDetail, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("service.CombinedService.ListByDateRange: %w: to must not be before from", domain.ErrValidation)
	}

	pairings, err := s.combined.ListByDateRange(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("service.CombinedService.ListByDateRange: %w", err)
	}

	details := make([]CombinedDetail, 0, len(pairings))
	for _, p := range pairings {
		d, err := s.detail(ctx, p)
		if err != nil {
			return nil, fmt.Errorf("service.CombinedService.ListByDateRange: %w", err)
		}
		details = append(details, d)
	}
	return details, nil
}

// Advance moves the pairing forward by exactly one combined status step on
// behalf of actorID. Past the terminal status the only permitted action is
// export.
//
// Like trip advances, the increment is a compare-and-set against the
// status observed here; a stale dispatcher gets ErrConcurrentModification
// instead of double-advancing the round-trip.
func (s *CombinedService) Advance(ctx context.Context, id, actorID uuid.UUID) (CombinedDetail, error) {
	if actorID == uuid.Nil {
		return CombinedDetail{}, fmt.Errorf("service.CombinedService.Advance: %w: actor is required", domain.ErrValidation)
	}

	pairing, err := s.combined.GetByID(ctx, id)
	if err != nil {
		return CombinedDetail{}, fmt.Errorf("service.CombinedService.Advance: %w", err)
	}
	if pairing.Terminal() {
		return CombinedDetail{}, fmt.Errorf("service.CombinedService.Advance: %w", domain.ErrAlreadyTerminal)
	}
	if pairing.WrittenToLedger {
		return CombinedDetail{}, fmt.Errorf("service.CombinedService.Advance: %w", domain.ErrAlreadyExported)
	}

	advanced, err := s.combined.AdvanceStatus(ctx, id, pairing.CombinedStatus)
	if err != nil {
		return CombinedDetail{}, fmt.Errorf("service.CombinedService.Advance: %w", err)
	}

	s.log.InfoContext(ctx, "combined status advanced",
		"combined_id", id,
		"combined_status", advanced.CombinedStatus,
		"actor_id", actorID,
	)

	detail, err := s.detail(ctx, advanced)
	if err != nil {
		return CombinedDetail{}, fmt.Errorf("service.CombinedService.Advance: %w", err)
	}
	return detail, nil
}

// Unlink deletes the pairing and restores both trips to independent
// progression. Their individual status counters are not reset — each trip
// resumes from wherever it was.
//
// Allowed only while the delivery leg has not progressed meaningfully
// (combined status below 4); later the round-trip can no longer be split.
func (s *CombinedService) Unlink(ctx context.Context, id uuid.UUID) error {
	pairing, err := s.combined.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("service.CombinedService.Unlink: %w", err)
	}
	if !pairing.Unlinkable() {
		return fmt.Errorf("service.CombinedService.Unlink: %w", domain.ErrTooLateToUnlink)
	}

	if err := s.combined.Delete(ctx, id); err != nil {
		return fmt.Errorf("service.CombinedService.Unlink: %w", err)
	}

	s.log.InfoContext(ctx, "pairing unlinked",
		"combined_id", id,
		"delivery_trip_id", pairing.DeliveryTripID,
		"packing_trip_id", pairing.PackingTripID,
	)
	return nil
}

// detail loads both member trips and decodes the pairing's progress.
func (s *CombinedService) detail(ctx context.Context, p domain.CombinedPairing) (CombinedDetail, error) {
	delivery, err := s.trips.GetByID(ctx, p.DeliveryTripID)
	if err != nil {
		return CombinedDetail{}, err
	}
	packing, err := s.trips.GetByID(ctx, p.PackingTripID)
	if err != nil {
		return CombinedDetail{}, err
	}

	return CombinedDetail{
		CombinedPairing: p,
		Delivery:        delivery,
		Packing:         packing,
		Progress:        p.Progress(delivery, packing),
	}, nil
}
