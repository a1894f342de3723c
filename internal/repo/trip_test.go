package repo_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hoangh20/transfleet-dispatch/internal/domain"
	"github.com/hoangh20/transfleet-dispatch/internal/repo"
	"github.com/hoangh20/transfleet-dispatch/testutil"
)

// newTestTx opens a transaction against the test database. The transaction
// is rolled back when the test finishes, giving free per-test isolation.
// Repos built on the same transaction see each other's writes, so fixtures
// created through one repo are visible to the others.
//
// Requires TEST_DATABASE_URL to be set and all migrations to be applied.
func newTestTx(t *testing.T) pgx.Tx {
	t.Helper()
	pool := testutil.NewPool(t)

	tx, err := pool.Begin(context.Background())
	require.NoError(t, err, "begin transaction")

	t.Cleanup(func() {
		_ = tx.Rollback(context.Background())
	})

	return tx
}

// tripFixture returns a domain.Trip with sensible defaults for use in tests.
// Callers can override individual fields after calling this function.
func tripFixture(kind domain.TripKind) domain.Trip {
	return domain.Trip{
		Kind:            kind,
		CustomerID:      uuid.New(),
		ContainerNumber: "TGHU7654321",
		OwnerCode:       "TGH",
		ContType:        20,
		Dispatch:        domain.Dispatch{Kind: domain.DispatchNone},
		CombinationMode: domain.ModeCombinable,
		TripDate:        time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
	}
}

func TestTripRepo_Create(t *testing.T) {
	r := repo.NewTripRepo(newTestTx(t))
	ctx := context.Background()

	input := tripFixture(domain.KindDelivery)
	got, err := r.Create(ctx, input)

	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, got.ID, "ID should be DB-generated UUID")
	assert.Equal(t, input.Kind, got.Kind)
	assert.Equal(t, input.CustomerID, got.CustomerID)
	assert.Equal(t, input.ContainerNumber, got.ContainerNumber)
	assert.Equal(t, 0, got.Status, "new trips start at status 0")
	assert.Equal(t, domain.DispatchNone, got.Dispatch.Kind)
	assert.False(t, got.IsCombined)
	assert.False(t, got.WrittenToLedger)
	assert.True(t, got.TripDate.Equal(input.TripDate), "TripDate mismatch")
	assert.False(t, got.CreatedAt.IsZero(), "CreatedAt should be set by DB")
	assert.False(t, got.UpdatedAt.IsZero(), "UpdatedAt should be set by DB")
}

func TestTripRepo_GetByID(t *testing.T) {
	r := repo.NewTripRepo(newTestTx(t))
	ctx := context.Background()

	created, err := r.Create(ctx, tripFixture(domain.KindPacking))
	require.NoError(t, err)

	got, err := r.GetByID(ctx, created.ID)

	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, domain.KindPacking, got.Kind)
}

func TestTripRepo_GetByID_NotFound(t *testing.T) {
	r := repo.NewTripRepo(newTestTx(t))

	_, err := r.GetByID(context.Background(), uuid.New())

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTripRepo_ListByDateRange(t *testing.T) {
	r := repo.NewTripRepo(newTestTx(t))
	ctx := context.Background()

	inRange := tripFixture(domain.KindDelivery)
	outOfRange := tripFixture(domain.KindDelivery)
	outOfRange.TripDate = inRange.TripDate.AddDate(0, 1, 0)
	otherKind := tripFixture(domain.KindPacking)

	for _, trip := range []domain.Trip{inRange, outOfRange, otherKind} {
		_, err := r.Create(ctx, trip)
		require.NoError(t, err)
	}

	from := inRange.TripDate.AddDate(0, 0, -1)
	to := inRange.TripDate.AddDate(0, 0, 1)
	trips, total, err := r.ListByDateRange(ctx, domain.KindDelivery, from, to, domain.NewPaginationParams(nil, nil))

	require.NoError(t, err)
	require.Len(t, trips, 1, "only the in-range delivery trip should match")
	assert.Equal(t, int64(1), total)
	assert.Equal(t, domain.KindDelivery, trips[0].Kind)
}

func TestTripRepo_ListByDateRange_Pagination(t *testing.T) {
	r := repo.NewTripRepo(newTestTx(t))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := r.Create(ctx, tripFixture(domain.KindDelivery))
		require.NoError(t, err)
	}

	page := 1
	limit := 2
	date := tripFixture(domain.KindDelivery).TripDate
	trips, total, err := r.ListByDateRange(ctx, domain.KindDelivery, date, date, domain.NewPaginationParams(&page, &limit))

	require.NoError(t, err)
	assert.Len(t, trips, 2)
	assert.Equal(t, int64(3), total)
}

func TestTripRepo_AdvanceStatus(t *testing.T) {
	tx := newTestTx(t)
	r := repo.NewTripRepo(tx)
	events := repo.NewEventRepo(tx)
	ctx := context.Background()

	created, err := r.Create(ctx, tripFixture(domain.KindDelivery))
	require.NoError(t, err)

	actor := uuid.New()
	advanced, err := r.AdvanceStatus(ctx, created.ID, 0, actor)

	require.NoError(t, err)
	assert.Equal(t, 1, advanced.Status)
	assert.Equal(t, created.Version+1, advanced.Version)

	// The advance must leave an audit event for the new status.
	event, err := events.GetByTripStatus(ctx, created.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, actor, event.ActorID)
}

func TestTripRepo_AdvanceStatus_StaleObservation(t *testing.T) {
	r := repo.NewTripRepo(newTestTx(t))
	ctx := context.Background()

	created, err := r.Create(ctx, tripFixture(domain.KindDelivery))
	require.NoError(t, err)

	_, err = r.AdvanceStatus(ctx, created.ID, 0, uuid.New())
	require.NoError(t, err)

	// A second caller still holding status 0 must lose the race.
	_, err = r.AdvanceStatus(ctx, created.ID, 0, uuid.New())

	assert.ErrorIs(t, err, domain.ErrConcurrentModification)
}

func TestTripRepo_AdvanceStatus_NotFound(t *testing.T) {
	r := repo.NewTripRepo(newTestTx(t))

	_, err := r.AdvanceStatus(context.Background(), uuid.New(), 0, uuid.New())

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTripRepo_SetDispatch_Internal(t *testing.T) {
	r := repo.NewTripRepo(newTestTx(t))
	ctx := context.Background()

	created, err := r.Create(ctx, tripFixture(domain.KindDelivery))
	require.NoError(t, err)

	vehicleID := uuid.New()
	routeID := uuid.New()
	d := domain.Dispatch{Kind: domain.DispatchInternal, VehicleID: &vehicleID}

	got, err := r.SetDispatch(ctx, created.ID, d, &routeID)

	require.NoError(t, err)
	assert.Equal(t, domain.DispatchInternal, got.Dispatch.Kind)
	require.NotNil(t, got.Dispatch.VehicleID)
	assert.Equal(t, vehicleID, *got.Dispatch.VehicleID)
	require.NotNil(t, got.RouteID)
	assert.Equal(t, routeID, *got.RouteID)
}

func TestTripRepo_SetDispatch_Partner(t *testing.T) {
	r := repo.NewTripRepo(newTestTx(t))
	ctx := context.Background()

	created, err := r.Create(ctx, tripFixture(domain.KindPacking))
	require.NoError(t, err)

	partnerID := uuid.New()
	fee := 350.0
	d := domain.Dispatch{
		Kind:       domain.DispatchPartner,
		PartnerID:  &partnerID,
		Fee:        &fee,
		DriverInfo: "Le Van C / 51D-222.33",
	}

	got, err := r.SetDispatch(ctx, created.ID, d, nil)

	require.NoError(t, err)
	assert.Equal(t, domain.DispatchPartner, got.Dispatch.Kind)
	require.NotNil(t, got.Dispatch.PartnerID)
	assert.Equal(t, partnerID, *got.Dispatch.PartnerID)
	require.NotNil(t, got.Dispatch.Fee)
	assert.Equal(t, fee, *got.Dispatch.Fee)
	assert.Equal(t, "Le Van C / 51D-222.33", got.Dispatch.DriverInfo)
	assert.Nil(t, got.Dispatch.VehicleID)
}

func TestTripRepo_SetDispatch_NotFound(t *testing.T) {
	r := repo.NewTripRepo(newTestTx(t))

	d := domain.Dispatch{Kind: domain.DispatchInternal}
	_, err := r.SetDispatch(context.Background(), uuid.New(), d, nil)

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTripRepo_MarkExported(t *testing.T) {
	r := repo.NewTripRepo(newTestTx(t))
	ctx := context.Background()

	created, err := r.Create(ctx, tripFixture(domain.KindDelivery))
	require.NoError(t, err)

	require.NoError(t, r.MarkExported(ctx, created.ID))

	got, err := r.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, got.WrittenToLedger)

	// The flag is write-once: a second call reports the prior export.
	err = r.MarkExported(ctx, created.ID)
	assert.ErrorIs(t, err, domain.ErrAlreadyExported)
}

func TestTripRepo_MarkExported_NotFound(t *testing.T) {
	r := repo.NewTripRepo(newTestTx(t))

	err := r.MarkExported(context.Background(), uuid.New())

	assert.ErrorIs(t, err, domain.ErrNotFound)
}
