// Package repo contains all database access logic for the dispatch service.
// Each resource has its own file with an interface and a Postgres implementation.
// No business logic lives here — only SQL and type mapping.
package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/hoangh20/transfleet-dispatch/internal/domain"
)

// db is the minimal interface satisfied by *pgxpool.Pool, pgx.Conn, and pgx.Tx.
// Accepting this interface instead of *pgxpool.Pool directly allows integration
// tests to pass a transaction that is rolled back after each test, giving free
// per-test isolation without any manual cleanup.
//
// Begin is included because status advances pair a compare-and-set update with
// an audit insert in one transaction; on pgx.Tx it opens a savepoint, so the
// test-rollback trick keeps working.
type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

const tripColumns = `id, kind, customer_id, container_number, owner_code, cont_type,
	status, version, dispatch_kind, vehicle_id, partner_id, partner_fee, partner_driver,
	route_id, combination_mode, is_combined, combined_id, written_to_ledger,
	trip_date, created_at, updated_at`

// TripRepo defines the persistence operations for Trips.
// The service layer depends on this interface, not the concrete Postgres
// implementation, which allows the service to be unit-tested with a mock.
type TripRepo interface {
	// Create inserts a new trip and returns the persisted record (with
	// DB-generated id, created_at, and updated_at populated).
	Create(ctx context.Context, trip domain.Trip) (domain.Trip, error)

	// GetByID retrieves a single trip by its UUID primary key.
	// Returns domain.ErrNotFound if no trip with that ID exists.
	GetByID(ctx context.Context, id uuid.UUID) (domain.Trip, error)

	// ListByDateRange returns trips of the given kind whose trip_date falls
	// in [from, to], ordered by trip_date then created_at, plus the total
	// count for pagination.
	ListByDateRange(ctx context.Context, kind domain.TripKind, from, to time.Time, p domain.PaginationParams) ([]domain.Trip, int64, error)

	// AdvanceStatus increments the trip's status by exactly one, guarded by
	// a compare-and-set on the caller's observed status, and records the
	// actor as an immutable audit event in the same transaction.
	// Returns domain.ErrConcurrentModification when the observed status is
	// stale, domain.ErrNotFound when the trip does not exist.
	AdvanceStatus(ctx context.Context, tripID uuid.UUID, fromStatus int, actorID uuid.UUID) (domain.Trip, error)

	// SetDispatch overwrites the dispatch fields and route reference of a
	// trip and returns the updated record.
	// Returns domain.ErrNotFound if the trip does not exist.
	SetDispatch(ctx context.Context, tripID uuid.UUID, d domain.Dispatch, routeID *uuid.UUID) (domain.Trip, error)

	// MarkExported flips written_to_ledger to true.
	// Returns domain.ErrAlreadyExported if the flag was already set and
	// domain.ErrNotFound if the trip does not exist.
	MarkExported(ctx context.Context, tripID uuid.UUID) error
}

// pgTripRepo is the Postgres implementation of TripRepo.
type pgTripRepo struct {
	db db
}

// NewTripRepo constructs a TripRepo backed by the provided db connection.
// In production pass *pgxpool.Pool; in tests pass a pgx.Tx for rollback isolation.
func NewTripRepo(db db) TripRepo {
	return &pgTripRepo{db: db}
}

// Create inserts a new trip row and returns the full persisted record.
func (r *pgTripRepo) Create(ctx context.Context, trip domain.Trip) (domain.Trip, error) {
	q := `
		INSERT INTO trips (kind, customer_id, container_number, owner_code, cont_type,
			dispatch_kind, vehicle_id, partner_id, partner_fee, partner_driver,
			route_id, combination_mode, trip_date)
		VALUES (@kind, @customer_id, @container_number, @owner_code, @cont_type,
			@dispatch_kind, @vehicle_id, @partner_id, @partner_fee, @partner_driver,
			@route_id, @combination_mode, @trip_date)
		RETURNING ` + tripColumns

	args := pgx.NamedArgs{
		"kind":             string(trip.Kind),
		"customer_id":      trip.CustomerID,
		"container_number": trip.ContainerNumber,
		"owner_code":       trip.OwnerCode,
		"cont_type":        trip.ContType,
		"dispatch_kind":    string(trip.Dispatch.Kind),
		"vehicle_id":       trip.Dispatch.VehicleID, // nil becomes NULL
		"partner_id":       trip.Dispatch.PartnerID,
		"partner_fee":      trip.Dispatch.Fee,
		"partner_driver":   trip.Dispatch.DriverInfo,
		"route_id":         trip.RouteID,
		"combination_mode": string(trip.CombinationMode),
		"trip_date":        trip.TripDate,
	}

	row := r.db.QueryRow(ctx, q, args)
	result, err := scanTrip(row)
	if err != nil {
		return domain.Trip{}, fmt.Errorf("repo.TripRepo.Create: %w", err)
	}
	return result, nil
}

// GetByID retrieves a trip by primary key.
func (r *pgTripRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Trip, error) {
	q := `SELECT ` + tripColumns + ` FROM trips WHERE id = @id`

	row := r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id})
	result, err := scanTrip(row)
	if err != nil {
		return domain.Trip{}, fmt.Errorf("repo.TripRepo.GetByID: %w", err)
	}
	return result, nil
}

// ListByDateRange returns trips of one kind within the inclusive date range.
func (r *pgTripRepo) ListByDateRange(ctx context.Context, kind domain.TripKind, from, to time.Time, p domain.PaginationParams) ([]domain.Trip, int64, error) {
	q := `
		SELECT ` + tripColumns + `
		FROM trips
		WHERE kind = @kind AND trip_date BETWEEN @from AND @to
		ORDER BY trip_date, created_at
		LIMIT @limit OFFSET @offset`

	args := pgx.NamedArgs{
		"kind":   string(kind),
		"from":   from,
		"to":     to,
		"limit":  p.Limit,
		"offset": p.Offset(),
	}

	rows, err := r.db.Query(ctx, q, args)
	if err != nil {
		return nil, 0, fmt.Errorf("repo.TripRepo.ListByDateRange: %w", err)
	}
	defer rows.Close()

	var trips []domain.Trip
	for rows.Next() {
		t, err := scanTrip(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("repo.TripRepo.ListByDateRange: scan: %w", err)
		}
		trips = append(trips, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("repo.TripRepo.ListByDateRange: rows: %w", err)
	}

	const countQ = `SELECT count(*) FROM trips WHERE kind = @kind AND trip_date BETWEEN @from AND @to`
	var total int64
	if err := r.db.QueryRow(ctx, countQ, args).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("repo.TripRepo.ListByDateRange: count: %w", err)
	}

	return trips, total, nil
}

// AdvanceStatus applies a compare-and-set increment and writes the audit
// event atomically. The WHERE clause on the observed status linearizes
// concurrent advances: a stale caller matches zero rows and gets
// ErrConcurrentModification instead of applying a double increment.
func (r *pgTripRepo) AdvanceStatus(ctx context.Context, tripID uuid.UUID, fromStatus int, actorID uuid.UUID) (domain.Trip, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return domain.Trip{}, fmt.Errorf("repo.TripRepo.AdvanceStatus: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	q := `
		UPDATE trips
		SET status = status + 1,
		    version = version + 1,
		    updated_at = now()
		WHERE id = @id AND status = @status
		RETURNING ` + tripColumns

	row := tx.QueryRow(ctx, q, pgx.NamedArgs{"id": tripID, "status": fromStatus})
	trip, err := scanTrip(row)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Trip{}, fmt.Errorf("repo.TripRepo.AdvanceStatus: %w", r.classifyMiss(ctx, tripID))
		}
		return domain.Trip{}, fmt.Errorf("repo.TripRepo.AdvanceStatus: %w", err)
	}

	const eventQ = `
		INSERT INTO trip_status_events (trip_id, status, actor_id)
		VALUES (@trip_id, @status, @actor_id)`

	_, err = tx.Exec(ctx, eventQ, pgx.NamedArgs{
		"trip_id":  tripID,
		"status":   trip.Status,
		"actor_id": actorID,
	})
	if err != nil {
		return domain.Trip{}, fmt.Errorf("repo.TripRepo.AdvanceStatus: audit: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Trip{}, fmt.Errorf("repo.TripRepo.AdvanceStatus: commit: %w", err)
	}
	return trip, nil
}

// classifyMiss distinguishes "trip gone" from "trip moved under us" after a
// zero-row compare-and-set.
func (r *pgTripRepo) classifyMiss(ctx context.Context, tripID uuid.UUID) error {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM trips WHERE id = @id)`,
		pgx.NamedArgs{"id": tripID}).Scan(&exists)
	if err != nil {
		return err
	}
	if exists {
		return domain.ErrConcurrentModification
	}
	return domain.ErrNotFound
}

// SetDispatch overwrites the dispatch columns and the route reference.
func (r *pgTripRepo) SetDispatch(ctx context.Context, tripID uuid.UUID, d domain.Dispatch, routeID *uuid.UUID) (domain.Trip, error) {
	q := `
		UPDATE trips
		SET dispatch_kind  = @dispatch_kind,
		    vehicle_id     = @vehicle_id,
		    partner_id     = @partner_id,
		    partner_fee    = @partner_fee,
		    partner_driver = @partner_driver,
		    route_id       = @route_id,
		    updated_at     = now()
		WHERE id = @id
		RETURNING ` + tripColumns

	args := pgx.NamedArgs{
		"id":             tripID,
		"dispatch_kind":  string(d.Kind),
		"vehicle_id":     d.VehicleID,
		"partner_id":     d.PartnerID,
		"partner_fee":    d.Fee,
		"partner_driver": d.DriverInfo,
		"route_id":       routeID,
	}

	row := r.db.QueryRow(ctx, q, args)
	result, err := scanTrip(row)
	if err != nil {
		return domain.Trip{}, fmt.Errorf("repo.TripRepo.SetDispatch: %w", err)
	}
	return result, nil
}

// MarkExported sets the write-once ledger flag.
func (r *pgTripRepo) MarkExported(ctx context.Context, tripID uuid.UUID) error {
	const q = `
		UPDATE trips
		SET written_to_ledger = true, updated_at = now()
		WHERE id = @id AND written_to_ledger = false`

	tag, err := r.db.Exec(ctx, q, pgx.NamedArgs{"id": tripID})
	if err != nil {
		return fmt.Errorf("repo.TripRepo.MarkExported: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM trips WHERE id = @id)`,
			pgx.NamedArgs{"id": tripID}).Scan(&exists)
		if err != nil {
			return fmt.Errorf("repo.TripRepo.MarkExported: %w", err)
		}
		if exists {
			return fmt.Errorf("repo.TripRepo.MarkExported: %w", domain.ErrAlreadyExported)
		}
		return fmt.Errorf("repo.TripRepo.MarkExported: %w", domain.ErrNotFound)
	}
	return nil
}

// scanner is satisfied by both pgx.Row and pgx.Rows, allowing scanTrip to be
// reused for both QueryRow and Query calls.
type scanner interface {
	Scan(dest ...any) error
}

// scanTrip maps a single database row into a domain.Trip.
// It handles the UUID, date, and nullable column conversions.
func scanTrip(s scanner) (domain.Trip, error) {
	var (
		t          domain.Trip
		id         pgtype.UUID
		kind       string
		custID     pgtype.UUID
		dispKind   string
		vehicleID  pgtype.UUID
		partnerID  pgtype.UUID
		partnerFee pgtype.Float8
		routeID    pgtype.UUID
		combMode   string
		combinedID pgtype.UUID
		tripDate   pgtype.Date
	)

	err := s.Scan(&id, &kind, &custID, &t.ContainerNumber, &t.OwnerCode, &t.ContType,
		&t.Status, &t.Version, &dispKind, &vehicleID, &partnerID, &partnerFee,
		&t.Dispatch.DriverInfo, &routeID, &combMode, &t.IsCombined, &combinedID,
		&t.WrittenToLedger, &tripDate, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Trip{}, domain.ErrNotFound
		}
		return domain.Trip{}, err
	}

	t.ID = uuid.UUID(id.Bytes)
	t.Kind = domain.TripKind(kind)
	t.CustomerID = uuid.UUID(custID.Bytes)
	t.Dispatch.Kind = domain.DispatchKind(dispKind)
	t.CombinationMode = domain.CombinationMode(combMode)
	t.TripDate = tripDate.Time

	if vehicleID.Valid {
		v := uuid.UUID(vehicleID.Bytes)
		t.Dispatch.VehicleID = &v
	}
	if partnerID.Valid {
		p := uuid.UUID(partnerID.Bytes)
		t.Dispatch.PartnerID = &p
	}
	if partnerFee.Valid {
		f := partnerFee.Float64
		t.Dispatch.Fee = &f
	}
	if routeID.Valid {
		rid := uuid.UUID(routeID.Bytes)
		t.RouteID = &rid
	}
	if combinedID.Valid {
		c := uuid.UUID(combinedID.Bytes)
		t.CombinedID = &c
	}

	return t, nil
}
