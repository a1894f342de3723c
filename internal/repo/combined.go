package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/hoangh20/transfleet-dispatch/internal/domain"
)

const pairingColumns = `id, delivery_trip_id, packing_trip_id, connection_type,
	empty_distance_km, combined_status, version, written_to_ledger, created_at, updated_at`

// CombinedRepo defines the persistence operations for CombinedPairings.
// Creation and deletion touch the two member trips in the same transaction
// so a pairing and its trips can never disagree about being combined.
type CombinedRepo interface {
	// Create inserts the pairing and marks both trips combined atomically.
	// Returns domain.ErrAlreadyCombined if either trip is already part of a
	// pairing, domain.ErrNotFound if either trip does not exist.
	Create(ctx context.Context, p domain.CombinedPairing) (domain.CombinedPairing, error)

	// GetByID retrieves a pairing by its UUID primary key.
	// Returns domain.ErrNotFound if no pairing with that ID exists.
	GetByID(ctx context.Context, id uuid.UUID) (domain.CombinedPairing, error)

	// ListByDateRange returns pairings whose delivery trip falls in the
	// inclusive date range, ordered by the delivery trip's date.
	ListByDateRange(ctx context.Context, from, to time.Time) ([]domain.CombinedPairing, error)

	// AdvanceStatus increments combined_status by exactly one, guarded by a
	// compare-and-set on the caller's observed status.
	// Returns domain.ErrConcurrentModification when the observed status is
	// stale, domain.ErrNotFound when the pairing does not exist.
	AdvanceStatus(ctx context.Context, id uuid.UUID, fromStatus int) (domain.CombinedPairing, error)

	// Delete removes the pairing and restores both trips to independent
	// status atomically. The trips' own status counters are untouched.
	// Returns domain.ErrNotFound if the pairing does not exist.
	Delete(ctx context.Context, id uuid.UUID) error

	// MarkExported flips written_to_ledger on the pairing and both member
	// trips in one transaction.
	// Returns domain.ErrAlreadyExported if the pairing flag was already set.
	MarkExported(ctx context.Context, id uuid.UUID) error
}

// pgCombinedRepo is the Postgres implementation of CombinedRepo.
type pgCombinedRepo struct {
	db db
}

// NewCombinedRepo constructs a CombinedRepo backed by the provided db connection.
// In production pass *pgxpool.Pool; in tests pass a pgx.Tx for rollback isolation.
func NewCombinedRepo(db db) CombinedRepo {
	return &pgCombinedRepo{db: db}
}

// Create inserts the pairing row and claims both trips. The claim updates
// carry `is_combined = false` in their WHERE clause, so the first creator
// wins and a second pairing for either trip rolls back.
func (r *pgCombinedRepo) Create(ctx context.Context, p domain.CombinedPairing) (domain.CombinedPairing, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return domain.CombinedPairing{}, fmt.Errorf("repo.CombinedRepo.Create: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	q := `
		INSERT INTO combined_pairings (delivery_trip_id, packing_trip_id, connection_type, empty_distance_km)
		VALUES (@delivery_trip_id, @packing_trip_id, @connection_type, @empty_distance_km)
		RETURNING ` + pairingColumns

	args := pgx.NamedArgs{
		"delivery_trip_id":  p.DeliveryTripID,
		"packing_trip_id":   p.PackingTripID,
		"connection_type":   string(p.ConnectionType),
		"empty_distance_km": p.EmptyDistanceKm,
	}

	row := tx.QueryRow(ctx, q, args)
	created, err := scanPairing(row)
	if err != nil {
		return domain.CombinedPairing{}, fmt.Errorf("repo.CombinedRepo.Create: %w", err)
	}

	for _, tripID := range []uuid.UUID{p.DeliveryTripID, p.PackingTripID} {
		const claimQ = `
			UPDATE trips
			SET is_combined = true, combined_id = @combined_id, updated_at = now()
			WHERE id = @id AND is_combined = false`

		tag, err := tx.Exec(ctx, claimQ, pgx.NamedArgs{"combined_id": created.ID, "id": tripID})
		if err != nil {
			return domain.CombinedPairing{}, fmt.Errorf("repo.CombinedRepo.Create: claim trip: %w", err)
		}
		if tag.RowsAffected() == 0 {
			var exists bool
			err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM trips WHERE id = @id)`,
				pgx.NamedArgs{"id": tripID}).Scan(&exists)
			if err != nil {
				return domain.CombinedPairing{}, fmt.Errorf("repo.CombinedRepo.Create: %w", err)
			}
			if exists {
				return domain.CombinedPairing{}, fmt.Errorf("repo.CombinedRepo.Create: %w", domain.ErrAlreadyCombined)
			}
			return domain.CombinedPairing{}, fmt.Errorf("repo.CombinedRepo.Create: %w", domain.ErrNotFound)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.CombinedPairing{}, fmt.Errorf("repo.CombinedRepo.Create: commit: %w", err)
	}
	return created, nil
}

// GetByID retrieves a pairing by primary key.
func (r *pgCombinedRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.CombinedPairing, error) {
	q := `SELECT ` + pairingColumns + ` FROM combined_pairings WHERE id = @id`

	row := r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id})
	result, err := scanPairing(row)
	if err != nil {
		return domain.CombinedPairing{}, fmt.Errorf("repo.CombinedRepo.GetByID: %w", err)
	}
	return result, nil
}

// ListByDateRange joins on the delivery trip to filter by its trip_date.
func (r *pgCombinedRepo) ListByDateRange(ctx context.Context, from, to time.Time) ([]domain.CombinedPairing, error) {
	q := `
		SELECT cp.id, cp.delivery_trip_id, cp.packing_trip_id, cp.connection_type,
			cp.empty_distance_km, cp.combined_status, cp.version, cp.written_to_ledger,
			cp.created_at, cp.updated_at
		FROM combined_pairings cp
		JOIN trips d ON d.id = cp.delivery_trip_id
		WHERE d.trip_date BETWEEN @from AND @to
		ORDER BY d.trip_date, cp.created_at`

	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{"from": from, "to": to})
	if err != nil {
		return nil, fmt.Errorf("repo.CombinedRepo.ListByDateRange: %w", err)
	}
	defer rows.Close()

	var pairings []domain.CombinedPairing
	for rows.Next() {
		p, err := scanPairing(rows)
		if err != nil {
			return nil, fmt.Errorf("repo.CombinedRepo.ListByDateRange: scan: %w", err)
		}
		pairings = append(pairings, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo.CombinedRepo.ListByDateRange: rows: %w", err)
	}

	return pairings, nil
}

// AdvanceStatus applies a compare-and-set increment on combined_status.
func (r *pgCombinedRepo) AdvanceStatus(ctx context.Context, id uuid.UUID, fromStatus int) (domain.CombinedPairing, error) {
	q := `
		UPDATE combined_pairings
		SET combined_status = combined_status + 1,
		    version = version + 1,
		    updated_at = now()
		WHERE id = @id AND combined_status = @status
		RETURNING ` + pairingColumns

	row := r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id, "status": fromStatus})
	result, err := scanPairing(row)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.CombinedPairing{}, fmt.Errorf("repo.CombinedRepo.AdvanceStatus: %w", r.classifyMiss(ctx, id))
		}
		return domain.CombinedPairing{}, fmt.Errorf("repo.CombinedRepo.AdvanceStatus: %w", err)
	}
	return result, nil
}

// classifyMiss distinguishes "pairing gone" from "pairing moved under us"
// after a zero-row compare-and-set.
func (r *pgCombinedRepo) classifyMiss(ctx context.Context, id uuid.UUID) error {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM combined_pairings WHERE id = @id)`,
		pgx.NamedArgs{"id": id}).Scan(&exists)
	if err != nil {
		return err
	}
	if exists {
		return domain.ErrConcurrentModification
	}
	return domain.ErrNotFound
}

// Delete releases both member trips and removes the pairing row.
func (r *pgCombinedRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("repo.CombinedRepo.Delete: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const releaseQ = `
		UPDATE trips
		SET is_combined = false, combined_id = NULL, updated_at = now()
		WHERE combined_id = @id`

	if _, err := tx.Exec(ctx, releaseQ, pgx.NamedArgs{"id": id}); err != nil {
		return fmt.Errorf("repo.CombinedRepo.Delete: release trips: %w", err)
	}

	tag, err := tx.Exec(ctx, `DELETE FROM combined_pairings WHERE id = @id`, pgx.NamedArgs{"id": id})
	if err != nil {
		return fmt.Errorf("repo.CombinedRepo.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("repo.CombinedRepo.Delete: %w", domain.ErrNotFound)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("repo.CombinedRepo.Delete: commit: %w", err)
	}
	return nil
}

// MarkExported sets the write-once ledger flag on the pairing and both trips.
func (r *pgCombinedRepo) MarkExported(ctx context.Context, id uuid.UUID) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("repo.CombinedRepo.MarkExported: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const q = `
		UPDATE combined_pairings
		SET written_to_ledger = true, updated_at = now()
		WHERE id = @id AND written_to_ledger = false`

	tag, err := tx.Exec(ctx, q, pgx.NamedArgs{"id": id})
	if err != nil {
		return fmt.Errorf("repo.CombinedRepo.MarkExported: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM combined_pairings WHERE id = @id)`,
			pgx.NamedArgs{"id": id}).Scan(&exists)
		if err != nil {
			return fmt.Errorf("repo.CombinedRepo.MarkExported: %w", err)
		}
		if exists {
			return fmt.Errorf("repo.CombinedRepo.MarkExported: %w", domain.ErrAlreadyExported)
		}
		return fmt.Errorf("repo.CombinedRepo.MarkExported: %w", domain.ErrNotFound)
	}

	const tripsQ = `
		UPDATE trips
		SET written_to_ledger = true, updated_at = now()
		WHERE combined_id = @id`

	if _, err := tx.Exec(ctx, tripsQ, pgx.NamedArgs{"id": id}); err != nil {
		return fmt.Errorf("repo.CombinedRepo.MarkExported: trips: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("repo.CombinedRepo.MarkExported: commit: %w", err)
	}
	return nil
}

// scanPairing maps a single database row into a domain.CombinedPairing.
func scanPairing(s scanner) (domain.CombinedPairing, error) {
	var (
		p          domain.CombinedPairing
		id         pgtype.UUID
		deliveryID pgtype.UUID
		packingID  pgtype.UUID
		connType   string
	)

	err := s.Scan(&id, &deliveryID, &packingID, &connType, &p.EmptyDistanceKm,
		&p.CombinedStatus, &p.Version, &p.WrittenToLedger, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.CombinedPairing{}, domain.ErrNotFound
		}
		return domain.CombinedPairing{}, err
	}

	p.ID = uuid.UUID(id.Bytes)
	p.DeliveryTripID = uuid.UUID(deliveryID.Bytes)
	p.PackingTripID = uuid.UUID(packingID.Bytes)
	p.ConnectionType = domain.ConnectionType(connType)

	return p, nil
}
