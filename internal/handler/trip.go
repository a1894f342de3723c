package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/hoangh20/transfleet-dispatch/internal/domain"
	"github.com/hoangh20/transfleet-dispatch/internal/service"
)

// createTripRequest is the JSON body for POST /trips.
type createTripRequest struct {
	Kind            string             `json:"kind"`
	CustomerID      uuid.UUID          `json:"customer_id"`
	ContainerNumber string             `json:"container_number"`
	OwnerCode       string             `json:"owner_code"`
	ContType        int                `json:"cont_type"`
	CombinationMode string             `json:"combination_mode,omitempty"`
	TripDate        openapi_types.Date `json:"trip_date"`
}

// dispatchRequest is the JSON body for POST /trips/{id}/dispatch.
// Kind selects the variant; the matching ID field is required.
type dispatchRequest struct {
	Kind       string     `json:"kind"` // "internal" or "partner"
	VehicleID  *uuid.UUID `json:"vehicle_id,omitempty"`
	PartnerID  *uuid.UUID `json:"partner_id,omitempty"`
	Fee        *float64   `json:"fee,omitempty"`
	DriverInfo string     `json:"driver_info,omitempty"`
	RouteID    *uuid.UUID `json:"route_id,omitempty"`
}

// pagination is the list envelope's paging block.
type pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
}

type tripListResponse struct {
	Data       []service.TripDetail `json:"data"`
	Pagination pagination           `json:"pagination"`
}

// CreateTrip handles POST /trips.
func (s *Server) CreateTrip(w http.ResponseWriter, r *http.Request) {
	var body createTripRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		requestError(w, r, "invalid request body")
		return
	}

	trip := domain.Trip{
		Kind:            domain.TripKind(body.Kind),
		CustomerID:      body.CustomerID,
		ContainerNumber: body.ContainerNumber,
		OwnerCode:       body.OwnerCode,
		ContType:        body.ContType,
		CombinationMode: domain.CombinationMode(body.CombinationMode),
		TripDate:        body.TripDate.Time,
	}

	created, err := s.trips.Create(r.Context(), trip)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, created)
}

// ListTrips handles GET /trips?kind=&from=&to=.
// Supports ?page= and ?limit= query parameters (defaults: page=1, limit=50, max=100).
func (s *Server) ListTrips(w http.ResponseWriter, r *http.Request) {
	kind := domain.TripKind(r.URL.Query().Get("kind"))

	from, err := parseDateQuery(r, "from")
	if err != nil {
		requestError(w, r, err.Error())
		return
	}
	to, err := parseDateQuery(r, "to")
	if err != nil {
		requestError(w, r, err.Error())
		return
	}

	params := domain.NewPaginationParams(intQuery(r, "page"), intQuery(r, "limit"))
	trips, total, err := s.trips.ListByDateRange(r.Context(), kind, from, to, params)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, tripListResponse{
		Data: trips,
		Pagination: pagination{
			Page:  params.Page,
			Limit: params.Limit,
			Total: total,
		},
	})
}

// GetTrip handles GET /trips/{id}.
func (s *Server) GetTrip(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		requestError(w, r, err.Error())
		return
	}

	detail, err := s.trips.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, detail)
}

// ListTripEvents handles GET /trips/{id}/events.
func (s *Server) ListTripEvents(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		requestError(w, r, err.Error())
		return
	}

	events, err := s.trips.Events(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, events)
}

// AdvanceTrip handles POST /trips/{id}/advance.
// The acting dispatcher is identified by the X-Actor-ID header.
func (s *Server) AdvanceTrip(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		requestError(w, r, err.Error())
		return
	}
	actor, err := actorID(r)
	if err != nil {
		requestError(w, r, err.Error())
		return
	}

	trip, err := s.trips.Advance(r.Context(), id, actor)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, trip)
}

// DispatchTrip handles POST /trips/{id}/dispatch.
func (s *Server) DispatchTrip(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		requestError(w, r, err.Error())
		return
	}

	var body dispatchRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		requestError(w, r, "invalid request body")
		return
	}

	var trip domain.Trip
	switch domain.DispatchKind(body.Kind) {
	case domain.DispatchInternal:
		if body.VehicleID == nil {
			requestError(w, r, "vehicle_id is required for internal dispatch")
			return
		}
		trip, err = s.trips.AssignInternalVehicle(r.Context(), id, *body.VehicleID, body.RouteID)
	case domain.DispatchPartner:
		if body.PartnerID == nil {
			requestError(w, r, "partner_id is required for partner dispatch")
			return
		}
		var fee float64
		if body.Fee != nil {
			fee = *body.Fee
		}
		trip, err = s.trips.AssignPartner(r.Context(), id, *body.PartnerID, fee, body.DriverInfo, body.RouteID)
	default:
		requestError(w, r, "kind must be internal or partner")
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, trip)
}

// ExportTrip handles POST /trips/{id}/export.
func (s *Server) ExportTrip(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		requestError(w, r, err.Error())
		return
	}

	if err := s.export.ExportTrip(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- request helpers --------------------------------------------------------

// uuidParam parses a UUID path parameter registered on the chi route.
func uuidParam(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, errors.New(name + " must be a valid UUID")
	}
	return id, nil
}

// parseDateQuery parses a required "2006-01-02" query parameter.
func parseDateQuery(r *http.Request, name string) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, errors.New(name + " is required")
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, errors.New(name + " must be a date in YYYY-MM-DD format")
	}
	return t, nil
}

// intQuery returns a pointer to the integer query parameter, or nil when
// absent or malformed.
func intQuery(r *http.Request, name string) *int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil
	}
	return &n
}

// actorID extracts the acting dispatcher from the X-Actor-ID header.
func actorID(r *http.Request) (uuid.UUID, error) {
	raw := r.Header.Get("X-Actor-ID")
	if raw == "" {
		return uuid.Nil, errors.New("X-Actor-ID header is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, errors.New("X-Actor-ID must be a valid UUID")
	}
	return id, nil
}
