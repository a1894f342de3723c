// Package handler implements the HTTP handlers for the dispatch service.
// All handlers are methods on Server. Methods are split into
// domain-specific files (trip.go, combined.go, etc.) but all share the
// same Server struct so they can access its dependencies.
package handler

import (
	"context"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hoangh20/transfleet-dispatch/internal/domain"
	"github.com/hoangh20/transfleet-dispatch/internal/service"
)

// TripServicer defines the business operations the trip handlers depend on.
// Defining the interface here (in the consumer package) follows the Go
// convention: "accept interfaces, return concrete types". It lets handler
// tests inject a mock without touching the database or service layer.
type TripServicer interface {
	Create(ctx context.Context, trip domain.Trip) (domain.Trip, error)
	GetByID(ctx context.Context, id uuid.UUID) (service.TripDetail, error)
	ListByDateRange(ctx context.Context, kind domain.TripKind, from, to time.Time, p domain.PaginationParams) ([]service.TripDetail, int64, error)
	Advance(ctx context.Context, tripID, actorID uuid.UUID) (domain.Trip, error)
	Events(ctx context.Context, tripID uuid.UUID) ([]domain.StatusEvent, error)
	AssignInternalVehicle(ctx context.Context, tripID, vehicleID uuid.UUID, routeID *uuid.UUID) (domain.Trip, error)
	AssignPartner(ctx context.Context, tripID, partnerID uuid.UUID, fee float64, driverInfo string, routeID *uuid.UUID) (domain.Trip, error)
}

// CombineServicer defines the matcher operations the combination handlers
// depend on.
type CombineServicer interface {
	Match(ctx context.Context, deliveryTripID, packingTripID uuid.UUID) (service.MatchResult, error)
	Confirm(ctx context.Context, deliveryTripID, packingTripID uuid.UUID, connType domain.ConnectionType, distanceKm float64) (domain.CombinedPairing, error)
}

// CombinedServicer defines the mediator operations the pairing handlers
// depend on.
type CombinedServicer interface {
	GetByID(ctx context.Context, id uuid.UUID) (service.CombinedDetail, error)
	ListByDateRange(ctx context.Context, from, to time.Time) ([]service.CombinedDetail, error)
	Advance(ctx context.Context, id, actorID uuid.UUID) (service.CombinedDetail, error)
	Unlink(ctx context.Context, id uuid.UUID) error
}

// ExportServicer defines the export-gate operations the handlers depend on.
type ExportServicer interface {
	ExportTrip(ctx context.Context, tripID uuid.UUID) error
	ExportCombined(ctx context.Context, combinedID uuid.UUID) error
}

// Server holds the handler dependencies for all API endpoints.
// Methods are in domain-specific files but all operate on this struct.
type Server struct {
	trips    TripServicer
	combine  CombineServicer
	combined CombinedServicer
	export   ExportServicer
	openapi  []byte
}

// NewServer constructs the Server with all its dependencies.
// openapi is the raw spec document served at /openapi.yaml; pass nil to
// disable that route.
func NewServer(trips TripServicer, combine CombineServicer, combined CombinedServicer, export ExportServicer, openapi []byte) *Server {
	return &Server{trips: trips, combine: combine, combined: combined, export: export, openapi: openapi}
}

// Routes registers all endpoints on a fresh chi router.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/healthz", s.GetHealth)
	if s.openapi != nil {
		r.Get("/openapi.yaml", s.GetOpenAPI)
	}

	r.Route("/trips", func(r chi.Router) {
		r.Get("/", s.ListTrips)
		r.Post("/", s.CreateTrip)
		r.Get("/{id}", s.GetTrip)
		r.Get("/{id}/events", s.ListTripEvents)
		r.Post("/{id}/advance", s.AdvanceTrip)
		r.Post("/{id}/dispatch", s.DispatchTrip)
		r.Post("/{id}/export", s.ExportTrip)
	})

	r.Route("/combinations", func(r chi.Router) {
		r.Get("/", s.ListCombinations)
		r.Post("/", s.ConfirmCombination)
		r.Post("/match", s.MatchCombination)
		r.Get("/{id}", s.GetCombination)
		r.Post("/{id}/advance", s.AdvanceCombination)
		r.Delete("/{id}", s.UnlinkCombination)
		r.Post("/{id}/export", s.ExportCombination)
	})

	return r
}
