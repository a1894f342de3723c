package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/hoangh20/transfleet-dispatch/internal/domain"
	"github.com/hoangh20/transfleet-dispatch/internal/service"
)

// matchRequest is the JSON body for POST /combinations/match.
type matchRequest struct {
	DeliveryTripID uuid.UUID `json:"delivery_trip_id"`
	PackingTripID  uuid.UUID `json:"packing_trip_id"`
}

// matchResponse wraps the matcher proposal. NeedsManualDistance is true
// when no learned distance exists for the route pair and the dispatcher
// must supply one on confirmation.
type matchResponse struct {
	service.MatchResult
	NeedsManualDistance bool `json:"needs_manual_distance"`
}

// confirmRequest is the JSON body for POST /combinations.
type confirmRequest struct {
	DeliveryTripID uuid.UUID `json:"delivery_trip_id"`
	PackingTripID  uuid.UUID `json:"packing_trip_id"`
	ConnectionType string    `json:"connection_type"`
	DistanceKm     float64   `json:"distance_km"`
}

// MatchCombination handles POST /combinations/match.
// An unknown route-pair distance is a normal outcome here, not an error:
// the response carries needs_manual_distance instead.
func (s *Server) MatchCombination(w http.ResponseWriter, r *http.Request) {
	var body matchRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		requestError(w, r, "invalid request body")
		return
	}

	result, err := s.combine.Match(r.Context(), body.DeliveryTripID, body.PackingTripID)
	if err != nil {
		if errors.Is(err, domain.ErrNeedsManualDistance) {
			writeJSON(w, r, http.StatusOK, matchResponse{MatchResult: result, NeedsManualDistance: true})
			return
		}
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, matchResponse{MatchResult: result})
}

// ConfirmCombination handles POST /combinations.
func (s *Server) ConfirmCombination(w http.ResponseWriter, r *http.Request) {
	var body confirmRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		requestError(w, r, "invalid request body")
		return
	}

	pairing, err := s.combine.Confirm(r.Context(), body.DeliveryTripID, body.PackingTripID,
		domain.ConnectionType(body.ConnectionType), body.DistanceKm)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, pairing)
}

// ListCombinations handles GET /combinations?from=&to=.
func (s *Server) ListCombinations(w http.ResponseWriter, r *http.Request) {
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

	details, err := s.combined.ListByDateRange(r.Context(), from, to)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, details)
}

// GetCombination handles GET /combinations/{id}.
func (s *Server) GetCombination(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		requestError(w, r, err.Error())
		return
	}

	detail, err := s.combined.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, detail)
}

// AdvanceCombination handles POST /combinations/{id}/advance.
// The acting dispatcher is identified by the X-Actor-ID header.
func (s *Server) AdvanceCombination(w http.ResponseWriter, r *http.Request) {
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

	detail, err := s.combined.Advance(r.Context(), id, actor)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, detail)
}

// UnlinkCombination handles DELETE /combinations/{id}.
func (s *Server) UnlinkCombination(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		requestError(w, r, err.Error())
		return
	}

	if err := s.combined.Unlink(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ExportCombination handles POST /combinations/{id}/export.
func (s *Server) ExportCombination(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		requestError(w, r, err.Error())
		return
	}

	if err := s.export.ExportCombined(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
