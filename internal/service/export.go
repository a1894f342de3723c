package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/hoangh20/transfleet-dispatch/internal/domain"
	"github.com/hoangh20/transfleet-dispatch/internal/ledger"
	"github.com/hoangh20/transfleet-dispatch/internal/repo"
)

// ExportService is the export gate: it performs the one-time ledger write
// for a finished trip or pairing and flips the write-once flag.
//
// The flag is checked before the collaborator is called and set only after
// the write succeeds. A failed write leaves the flag unset so the caller
// may retry; the collaborator dedupes by entity ID in case a prior write
// landed but our flag-set did not.
type ExportService struct {
	trips    repo.TripRepo
	combined repo.CombinedRepo
	ledger   ledger.Writer
}

// NewExportService constructs an ExportService backed by the provided
// repos and ledger writer.
func NewExportService(trips repo.TripRepo, combined repo.CombinedRepo, w ledger.Writer) *ExportService {
	return &ExportService{trips: trips, combined: combined, ledger: w}
}

// ExportTrip records one completed independent trip in the ledger.
// The trip must be at its terminal status and not yet exported.
func (s *ExportService) ExportTrip(ctx context.Context, tripID uuid.UUID) error {
	trip, err := s.trips.GetByID(ctx, tripID)
	if err != nil {
		return fmt.Errorf("service.ExportService.ExportTrip: %w", err)
	}
	if trip.WrittenToLedger {
		return fmt.Errorf("service.ExportService.ExportTrip: %w", domain.ErrAlreadyExported)
	}
	if !trip.Terminal() {
		return fmt.Errorf("service.ExportService.ExportTrip: %w: trip is not at its terminal status", domain.ErrValidation)
	}

	if err := s.ledger.WriteTrip(ctx, tripID); err != nil {
		return fmt.Errorf("service.ExportService.ExportTrip: %w: %w", domain.ErrLedgerWrite, err)
	}

	if err := s.trips.MarkExported(ctx, tripID); err != nil {
		return fmt.Errorf("service.ExportService.ExportTrip: %w", err)
	}
	return nil
}

// ExportCombined records one completed combined round-trip in the ledger.
// The pairing must be at combined status 9; on success the pairing and
// both member trips are flagged together.
func (s *ExportService) ExportCombined(ctx context.Context, combinedID uuid.UUID) error {
	pairing, err := s.combined.GetByID(ctx, combinedID)
	if err != nil {
		return fmt.Errorf("service.ExportService.ExportCombined: %w", err)
	}
	if pairing.WrittenToLedger {
		return fmt.Errorf("service.ExportService.ExportCombined: %w", domain.ErrAlreadyExported)
	}
	if !pairing.Terminal() {
		return fmt.Errorf("service.ExportService.ExportCombined: %w: pairing is not at its terminal status", domain.ErrValidation)
	}

	// The packing leg's flag guards the whole pairing: a pairing whose
	// packing trip is already recorded counts as exported.
	packing, err := s.trips.GetByID(ctx, pairing.PackingTripID)
	if err != nil {
		return fmt.Errorf("service.ExportService.ExportCombined: %w", err)
	}
	if packing.WrittenToLedger {
		return fmt.Errorf("service.ExportService.ExportCombined: %w", domain.ErrAlreadyExported)
	}

	if err := s.ledger.WriteCombined(ctx, combinedID); err != nil {
		return fmt.Errorf("service.ExportService.ExportCombined: %w: %w", domain.ErrLedgerWrite, err)
	}

	if err := s.combined.MarkExported(ctx, combinedID); err != nil {
		return fmt.Errorf("service.ExportService.ExportCombined: %w", err)
	}
	return nil
}
