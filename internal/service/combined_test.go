package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hoangh20/transfleet-dispatch/internal/domain"
	"github.com/hoangh20/transfleet-dispatch/internal/service"
)

// pairingFixture returns a pairing plus its two member trips and a trip
// repo serving them by ID.
func pairingFixture(combinedStatus int) (domain.CombinedPairing, *mockTripRepo) {
	delivery := validTrip(domain.KindDelivery)
	delivery.Dispatch = domain.Dispatch{Kind: domain.DispatchInternal}
	delivery.IsCombined = true

	packing := validTrip(domain.KindPacking)
	packing.Dispatch = domain.Dispatch{Kind: domain.DispatchInternal}
	packing.IsCombined = true

	pairing := domain.CombinedPairing{
		ID:              uuid.New(),
		DeliveryTripID:  delivery.ID,
		PackingTripID:   packing.ID,
		ConnectionType:  domain.SameDaySamePoint,
		EmptyDistanceKm: 12,
		CombinedStatus:  combinedStatus,
	}

	r := &mockTripRepo{
		getByID: func(_ context.Context, id uuid.UUID) (domain.Trip, error) {
			switch id {
			case delivery.ID:
				return delivery, nil
			case packing.ID:
				return packing, nil
			}
			return domain.Trip{}, domain.ErrNotFound
		},
	}
	return pairing, r
}

// ---- GetByID tests ---------------------------------------------------------

func TestCombinedService_GetByID(t *testing.T) {
	pairing, trips := pairingFixture(3)
	cr := &mockCombinedRepo{
		getByID: func(_ context.Context, _ uuid.UUID) (domain.CombinedPairing, error) { return pairing, nil },
	}
	svc := service.NewCombinedService(cr, trips, testLogger())

	got, err := svc.GetByID(context.Background(), pairing.ID)

	require.NoError(t, err)
	assert.Equal(t, pairing.ID, got.ID)
	assert.Equal(t, pairing.DeliveryTripID, got.Delivery.ID)
	assert.Equal(t, pairing.PackingTripID, got.Packing.ID)
	assert.Equal(t, 2, got.Progress.DeliveryStep)
	assert.Equal(t, domain.StepNotStarted, got.Progress.PackingStep)
}

func TestCombinedService_GetByID_NotFound(t *testing.T) {
	cr := &mockCombinedRepo{
		getByID: func(_ context.Context, _ uuid.UUID) (domain.CombinedPairing, error) {
			return domain.CombinedPairing{}, domain.ErrNotFound
		},
	}
	svc := service.NewCombinedService(cr, nil, testLogger())

	_, err := svc.GetByID(context.Background(), uuid.New())

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// ---- ListByDateRange tests -------------------------------------------------

func TestCombinedService_ListByDateRange(t *testing.T) {
	p1, trips := pairingFixture(1)
	cr := &mockCombinedRepo{
		listByDateRange: func(_ context.Context, _, _ time.Time) ([]domain.CombinedPairing, error) {
			return []domain.CombinedPairing{p1}, nil
		},
	}
	svc := service.NewCombinedService(cr, trips, testLogger())

	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	got, err := svc.ListByDateRange(context.Background(), from, from.AddDate(0, 0, 7))

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 0, got[0].Progress.DeliveryStep)
}

func TestCombinedService_ListByDateRange_InvertedRange(t *testing.T) {
	svc := service.NewCombinedService(nil, nil, testLogger())

	from := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	_, err := svc.ListByDateRange(context.Background(), from, from.AddDate(0, 0, -1))

	assert.ErrorIs(t, err, domain.ErrValidation)
}

// ---- Advance tests ---------------------------------------------------------

func TestCombinedService_Advance_OneStep(t *testing.T) {
	pairing, trips := pairingFixture(5)

	var gotFrom int
	cr := &mockCombinedRepo{
		getByID: func(_ context.Context, _ uuid.UUID) (domain.CombinedPairing, error) { return pairing, nil },
		advanceStatus: func(_ context.Context, _ uuid.UUID, fromStatus int) (domain.CombinedPairing, error) {
			gotFrom = fromStatus
			advanced := pairing
			advanced.CombinedStatus = fromStatus + 1
			return advanced, nil
		},
	}
	svc := service.NewCombinedService(cr, trips, testLogger())

	got, err := svc.Advance(context.Background(), pairing.ID, uuid.New())

	require.NoError(t, err)
	assert.Equal(t, 5, gotFrom, "CAS must use the observed status")
	assert.Equal(t, 6, got.CombinedStatus)
	// Status 6 hands progress over to the packing leg.
	assert.True(t, got.Progress.DeliveryDone)
	assert.Equal(t, 1, got.Progress.PackingStep)
}

func TestCombinedService_Advance_MissingActor(t *testing.T) {
	svc := service.NewCombinedService(nil, nil, testLogger())

	_, err := svc.Advance(context.Background(), uuid.New(), uuid.Nil)

	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestCombinedService_Advance_AlreadyTerminal(t *testing.T) {
	pairing, trips := pairingFixture(9)
	cr := &mockCombinedRepo{
		getByID: func(_ context.Context, _ uuid.UUID) (domain.CombinedPairing, error) { return pairing, nil },
	}
	svc := service.NewCombinedService(cr, trips, testLogger())

	_, err := svc.Advance(context.Background(), pairing.ID, uuid.New())

	assert.ErrorIs(t, err, domain.ErrAlreadyTerminal)
}

func TestCombinedService_Advance_AlreadyExported(t *testing.T) {
	pairing, trips := pairingFixture(9)
	pairing.CombinedStatus = 8
	pairing.WrittenToLedger = true
	cr := &mockCombinedRepo{
		getByID: func(_ context.Context, _ uuid.UUID) (domain.CombinedPairing, error) { return pairing, nil },
	}
	svc := service.NewCombinedService(cr, trips, testLogger())

	_, err := svc.Advance(context.Background(), pairing.ID, uuid.New())

	assert.ErrorIs(t, err, domain.ErrAlreadyExported)
}

func TestCombinedService_Advance_ConcurrentModification(t *testing.T) {
	pairing, trips := pairingFixture(2)
	cr := &mockCombinedRepo{
		getByID: func(_ context.Context, _ uuid.UUID) (domain.CombinedPairing, error) { return pairing, nil },
		advanceStatus: func(_ context.Context, _ uuid.UUID, _ int) (domain.CombinedPairing, error) {
			return domain.CombinedPairing{}, domain.ErrConcurrentModification
		},
	}
	svc := service.NewCombinedService(cr, trips, testLogger())

	_, err := svc.Advance(context.Background(), pairing.ID, uuid.New())

	assert.ErrorIs(t, err, domain.ErrConcurrentModification)
}

// ---- Unlink tests ----------------------------------------------------------

func TestCombinedService_Unlink(t *testing.T) {
	pairing, _ := pairingFixture(3)

	deleted := false
	cr := &mockCombinedRepo{
		getByID: func(_ context.Context, _ uuid.UUID) (domain.CombinedPairing, error) { return pairing, nil },
		delete: func(_ context.Context, id uuid.UUID) error {
			deleted = true
			assert.Equal(t, pairing.ID, id)
			return nil
		},
	}
	svc := service.NewCombinedService(cr, nil, testLogger())

	err := svc.Unlink(context.Background(), pairing.ID)

	require.NoError(t, err)
	assert.True(t, deleted)
}

func TestCombinedService_Unlink_TooLate(t *testing.T) {
	pairing, _ := pairingFixture(4)
	cr := &mockCombinedRepo{
		getByID: func(_ context.Context, _ uuid.UUID) (domain.CombinedPairing, error) { return pairing, nil },
	}
	svc := service.NewCombinedService(cr, nil, testLogger())

	err := svc.Unlink(context.Background(), pairing.ID)

	assert.ErrorIs(t, err, domain.ErrTooLateToUnlink)
}

func TestCombinedService_Unlink_NotFound(t *testing.T) {
	cr := &mockCombinedRepo{
		getByID: func(_ context.Context, _ uuid.UUID) (domain.CombinedPairing, error) {
			return domain.CombinedPairing{}, domain.ErrNotFound
		},
	}
	svc := service.NewCombinedService(cr, nil, testLogger())

	err := svc.Unlink(context.Background(), uuid.New())

	assert.ErrorIs(t, err, domain.ErrNotFound)
}
