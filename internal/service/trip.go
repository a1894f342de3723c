// Package service contains the business logic for the dispatch service.
// Services validate inputs, enforce lifecycle rules, and orchestrate repo
// calls. No SQL lives here — services depend on repo interfaces, not
// implementations.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hoangh20/transfleet-dispatch/internal/domain"
	"github.com/hoangh20/transfleet-dispatch/internal/repo"
)

// RouteNamer resolves a route ID to its display name via the master-data
// collaborator. Defined here, in the consumer package, so the HTTP adapter
// and test fakes both satisfy it.
type RouteNamer interface {
	Name(ctx context.Context, routeID uuid.UUID) (string, error)
}

// unknownRouteName is shown when the route-name lookup fails or the trip
// has no route yet. Lookup failures never block displaying the trip.
const unknownRouteName = "unknown"

// TripDetail is a Trip enriched with derived display fields.
type TripDetail struct {
	domain.Trip
	DisplayStep int      `json:"display_step"`
	StageNames  []string `json:"stage_names"`
	RouteName   string   `json:"route_name"`
}

// TripService implements trip creation, listing, and the status
// progression engine: one call advances a trip by exactly one step.
type TripService struct {
	trips    repo.TripRepo
	events   repo.EventRepo
	combined repo.CombinedRepo
	routes   RouteNamer
	log      *slog.Logger
}

// NewTripService constructs a TripService backed by the provided repos and
// route-name resolver. The combined repo is consulted only to cap direct
// advances on trips that belong to a pairing.
func NewTripService(trips repo.TripRepo, events repo.EventRepo, combined repo.CombinedRepo, routes RouteNamer, log *slog.Logger) *TripService {
	return &TripService{trips: trips, events: events, combined: combined, routes: routes, log: log}
}

// Create validates and persists a new trip. New trips start at status 0
// with no dispatch unless one is supplied.
func (s *TripService) Create(ctx context.Context, trip domain.Trip) (domain.Trip, error) {
	if !trip.Kind.Valid() {
		return domain.Trip{}, fmt.Errorf("service.TripService.Create: %w: kind must be delivery or packing", domain.ErrValidation)
	}
	if trip.CustomerID == uuid.Nil {
		return domain.Trip{}, fmt.Errorf("service.TripService.Create: %w: customer is required", domain.ErrValidation)
	}
	if trip.ContType != 20 && trip.ContType != 40 {
		return domain.Trip{}, fmt.Errorf("service.TripService.Create: %w: cont type must be 20 or 40", domain.ErrValidation)
	}
	if trip.TripDate.IsZero() {
		return domain.Trip{}, fmt.Errorf("service.TripService.Create: %w: trip date is required", domain.ErrValidation)
	}
	if trip.CombinationMode == "" {
		trip.CombinationMode = domain.ModeCombinable
	}
	if trip.Kind == domain.KindDelivery && trip.CombinationMode != domain.ModeCombinable {
		return domain.Trip{}, fmt.Errorf("service.TripService.Create: %w: delivery trips are always combinable", domain.ErrValidation)
	}
	if trip.Dispatch.Kind == "" {
		trip.Dispatch.Kind = domain.DispatchNone
	}

	created, err := s.trips.Create(ctx, trip)
	if err != nil {
		return domain.Trip{}, fmt.Errorf("service.TripService.Create: %w", err)
	}
	return created, nil
}

// GetByID returns a single trip with derived display fields. The route
// name is best-effort: a failed lookup degrades the label to "unknown" and
// logs a warning.
func (s *TripService) GetByID(ctx context.Context, id uuid.UUID) (TripDetail, error) {
	trip, err := s.trips.GetByID(ctx, id)
	if err != nil {
		return TripDetail{}, fmt.Errorf("service.TripService.GetByID: %w", err)
	}
	return s.detail(ctx, trip), nil
}

// ListByDateRange returns trips of one kind within the inclusive date
// range, with display fields derived per trip.
func (s *TripService) ListByDateRange(ctx context.Context, kind domain.TripKind, from, to time.Time, p domain.PaginationParams) ([]TripDetail, int64, error) {
	if !kind.Valid() {
		return nil, 0, fmt.Errorf("service.TripService.ListByDateRange: %w: kind must be delivery or packing", domain.ErrValidation)
	}
	if to.Before(from) {
		return nil, 0, fmt.Errorf("service.TripService.ListByDateRange: %w: to must not be before from", domain.ErrValidation)
	}

	trips, total, err := s.trips.ListByDateRange(ctx, kind, from, to, p)
	if err != nil {
		return nil, 0, fmt.Errorf("service.TripService.ListByDateRange: %w", err)
	}

	details := make([]TripDetail, 0, len(trips))
	for _, t := range trips {
		details = append(details, s.detail(ctx, t))
	}
	return details, total, nil
}

// Advance moves a trip forward by exactly one status step on behalf of
// actorID, recording an immutable audit event.
//
// The increment is a compare-and-set against the status observed here, so
// two dispatchers racing on the same trip produce one advance and one
// ErrConcurrentModification — never a double skip.
func (s *TripService) Advance(ctx context.Context, tripID, actorID uuid.UUID) (domain.Trip, error) {
	if actorID == uuid.Nil {
		return domain.Trip{}, fmt.Errorf("service.TripService.Advance: %w: actor is required", domain.ErrValidation)
	}

	trip, err := s.trips.GetByID(ctx, tripID)
	if err != nil {
		return domain.Trip{}, fmt.Errorf("service.TripService.Advance: %w", err)
	}
	if trip.Terminal() {
		return domain.Trip{}, fmt.Errorf("service.TripService.Advance: %w", domain.ErrAlreadyTerminal)
	}
	if trip.WrittenToLedger {
		return domain.Trip{}, fmt.Errorf("service.TripService.Advance: %w", domain.ErrAlreadyExported)
	}
	if trip.IsCombined {
		if err := s.checkCombinedCap(ctx, trip); err != nil {
			return domain.Trip{}, fmt.Errorf("service.TripService.Advance: %w", err)
		}
	}

	advanced, err := s.trips.AdvanceStatus(ctx, tripID, trip.Status, actorID)
	if err != nil {
		return domain.Trip{}, fmt.Errorf("service.TripService.Advance: %w", err)
	}
	return advanced, nil
}

// checkCombinedCap enforces that a combined trip's own status never runs
// ahead of what its pairing's progress permits.
func (s *TripService) checkCombinedCap(ctx context.Context, trip domain.Trip) error {
	if trip.CombinedID == nil {
		return fmt.Errorf("%w: combined trip has no pairing reference", domain.ErrValidation)
	}
	pairing, err := s.combined.GetByID(ctx, *trip.CombinedID)
	if err != nil {
		return err
	}

	delivery, packing := trip, trip
	switch trip.Kind {
	case domain.KindDelivery:
		packing, err = s.trips.GetByID(ctx, pairing.PackingTripID)
	case domain.KindPacking:
		delivery, err = s.trips.GetByID(ctx, pairing.DeliveryTripID)
	}
	if err != nil {
		return err
	}

	permitted := pairing.Progress(delivery, packing).PermittedStatus(trip.Kind)
	if trip.Status+1 > permitted {
		return fmt.Errorf("%w: pairing has not progressed this far", domain.ErrValidation)
	}
	return nil
}

// Events returns the status audit trail for a trip, ordered by status.
func (s *TripService) Events(ctx context.Context, tripID uuid.UUID) ([]domain.StatusEvent, error) {
	if _, err := s.trips.GetByID(ctx, tripID); err != nil {
		return nil, fmt.Errorf("service.TripService.Events: %w", err)
	}
	events, err := s.events.ListByTrip(ctx, tripID)
	if err != nil {
		return nil, fmt.Errorf("service.TripService.Events: %w", err)
	}
	if events == nil {
		events = []domain.StatusEvent{}
	}
	return events, nil
}

// detail derives the display fields for a trip.
func (s *TripService) detail(ctx context.Context, trip domain.Trip) TripDetail {
	d := TripDetail{
		Trip:        trip,
		DisplayStep: trip.DisplayStep(),
		StageNames:  trip.Kind.StageNames(),
		RouteName:   unknownRouteName,
	}
	if trip.RouteID == nil {
		return d
	}
	name, err := s.routes.Name(ctx, *trip.RouteID)
	if err != nil {
		s.log.WarnContext(ctx, "route name lookup failed", "trip_id", trip.ID, "route_id", *trip.RouteID, "error", err)
		return d
	}
	d.RouteName = name
	return d
}

// sentinel check helper shared by dispatch ops: once a dispatch kind other
// than none is chosen it cannot change.
func dispatchKindLocked(current, requested domain.DispatchKind) bool {
	return current != domain.DispatchNone && current != requested
}

var errDispatchLocked = errors.New("dispatch type cannot be changed once set")

// AssignInternalVehicle dispatches the trip onto a company-owned vehicle
// running the given route. Rejected if the trip is already dispatched.
func (s *TripService) AssignInternalVehicle(ctx context.Context, tripID, vehicleID uuid.UUID, routeID *uuid.UUID) (domain.Trip, error) {
	if vehicleID == uuid.Nil {
		return domain.Trip{}, fmt.Errorf("service.TripService.AssignInternalVehicle: %w: vehicle is required", domain.ErrValidation)
	}

	trip, err := s.trips.GetByID(ctx, tripID)
	if err != nil {
		return domain.Trip{}, fmt.Errorf("service.TripService.AssignInternalVehicle: %w", err)
	}
	if trip.Dispatch.Assigned() {
		return domain.Trip{}, fmt.Errorf("service.TripService.AssignInternalVehicle: %w: %s", domain.ErrValidation, errDispatchLocked)
	}

	d := domain.Dispatch{Kind: domain.DispatchInternal, VehicleID: &vehicleID}
	updated, err := s.trips.SetDispatch(ctx, tripID, d, routeID)
	if err != nil {
		return domain.Trip{}, fmt.Errorf("service.TripService.AssignInternalVehicle: %w", err)
	}
	return updated, nil
}

// AssignPartner dispatches the trip to a third-party carrier, or updates
// the fee and driver details of an existing partner dispatch. The partner
// itself and the dispatch kind cannot change once set.
func (s *TripService) AssignPartner(ctx context.Context, tripID, partnerID uuid.UUID, fee float64, driverInfo string, routeID *uuid.UUID) (domain.Trip, error) {
	if partnerID == uuid.Nil {
		return domain.Trip{}, fmt.Errorf("service.TripService.AssignPartner: %w: partner is required", domain.ErrValidation)
	}
	if fee < 0 {
		return domain.Trip{}, fmt.Errorf("service.TripService.AssignPartner: %w: fee must not be negative", domain.ErrValidation)
	}

	trip, err := s.trips.GetByID(ctx, tripID)
	if err != nil {
		return domain.Trip{}, fmt.Errorf("service.TripService.AssignPartner: %w", err)
	}
	if dispatchKindLocked(trip.Dispatch.Kind, domain.DispatchPartner) {
		return domain.Trip{}, fmt.Errorf("service.TripService.AssignPartner: %w: %s", domain.ErrValidation, errDispatchLocked)
	}
	if trip.Dispatch.Kind == domain.DispatchPartner && trip.Dispatch.PartnerID != nil && *trip.Dispatch.PartnerID != partnerID {
		return domain.Trip{}, fmt.Errorf("service.TripService.AssignPartner: %w: partner cannot be changed, only fee and driver details", domain.ErrValidation)
	}
	if routeID == nil {
		routeID = trip.RouteID
	}

	d := domain.Dispatch{
		Kind:       domain.DispatchPartner,
		PartnerID:  &partnerID,
		Fee:        &fee,
		DriverInfo: driverInfo,
	}
	updated, err := s.trips.SetDispatch(ctx, tripID, d, routeID)
	if err != nil {
		return domain.Trip{}, fmt.Errorf("service.TripService.AssignPartner: %w", err)
	}
	return updated, nil
}
