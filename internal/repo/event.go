package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/hoangh20/transfleet-dispatch/internal/domain"
)

// EventRepo exposes read access to the append-only status audit trail.
// Writes happen inside TripRepo.AdvanceStatus so the increment and its
// audit record commit together.
type EventRepo interface {
	// ListByTrip returns all status events for a trip ordered by status.
	ListByTrip(ctx context.Context, tripID uuid.UUID) ([]domain.StatusEvent, error)

	// GetByTripStatus returns the event recorded for one (trip, status)
	// pair. Returns domain.ErrNotFound when that status was never reached.
	GetByTripStatus(ctx context.Context, tripID uuid.UUID, status int) (domain.StatusEvent, error)
}

// pgEventRepo is the Postgres implementation of EventRepo.
type pgEventRepo struct {
	db db
}

// NewEventRepo constructs an EventRepo backed by the provided db connection.
func NewEventRepo(db db) EventRepo {
	return &pgEventRepo{db: db}
}

func (r *pgEventRepo) ListByTrip(ctx context.Context, tripID uuid.UUID) ([]domain.StatusEvent, error) {
	const q = `
		SELECT id, trip_id, status, actor_id, created_at
		FROM trip_status_events
		WHERE trip_id = @trip_id
		ORDER BY status`

	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{"trip_id": tripID})
	if err != nil {
		return nil, fmt.Errorf("repo.EventRepo.ListByTrip: %w", err)
	}
	defer rows.Close()

	var events []domain.StatusEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("repo.EventRepo.ListByTrip: scan: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo.EventRepo.ListByTrip: rows: %w", err)
	}

	return events, nil
}

func (r *pgEventRepo) GetByTripStatus(ctx context.Context, tripID uuid.UUID, status int) (domain.StatusEvent, error) {
	const q = `
		SELECT id, trip_id, status, actor_id, created_at
		FROM trip_status_events
		WHERE trip_id = @trip_id AND status = @status`

	row := r.db.QueryRow(ctx, q, pgx.NamedArgs{"trip_id": tripID, "status": status})
	e, err := scanEvent(row)
	if err != nil {
		return domain.StatusEvent{}, fmt.Errorf("repo.EventRepo.GetByTripStatus: %w", err)
	}
	return e, nil
}

// scanEvent maps a single database row into a domain.StatusEvent.
func scanEvent(s scanner) (domain.StatusEvent, error) {
	var (
		e       domain.StatusEvent
		id      pgtype.UUID
		tripID  pgtype.UUID
		actorID pgtype.UUID
	)

	err := s.Scan(&id, &tripID, &e.Status, &actorID, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.StatusEvent{}, domain.ErrNotFound
		}
		return domain.StatusEvent{}, err
	}

	e.ID = uuid.UUID(id.Bytes)
	e.TripID = uuid.UUID(tripID.Bytes)
	e.ActorID = uuid.UUID(actorID.Bytes)

	return e, nil
}
