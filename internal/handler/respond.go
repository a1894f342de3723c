package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hoangh20/transfleet-dispatch/internal/domain"
)

// ErrorResponse is the JSON body returned for every handled error.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries a machine-readable code and a human-readable message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeJSON encodes v as the response body with the given status.
// Encoding failures are logged; headers are already out by then.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.ErrorContext(r.Context(), "response encode failed",
			"method", r.Method, "path", r.URL.Path, "error", err)
	}
}

// sentinelCodes maps each domain sentinel to its HTTP status and error code.
// Order matters only for the message fallback, not for matching.
var sentinelCodes = []struct {
	err    error
	status int
	code   string
}{
	{domain.ErrNotFound, http.StatusNotFound, "not_found"},
	{domain.ErrValidation, http.StatusUnprocessableEntity, "validation_error"},
	{domain.ErrAlreadyTerminal, http.StatusConflict, "already_terminal"},
	{domain.ErrAlreadyCombined, http.StatusConflict, "already_combined"},
	{domain.ErrNotCombinable, http.StatusConflict, "not_combinable"},
	{domain.ErrRouteUnresolved, http.StatusUnprocessableEntity, "route_unresolved"},
	{domain.ErrNeedsManualDistance, http.StatusUnprocessableEntity, "needs_manual_distance"},
	{domain.ErrTooLateToUnlink, http.StatusConflict, "too_late_to_unlink"},
	{domain.ErrAlreadyExported, http.StatusConflict, "already_exported"},
	{domain.ErrConcurrentModification, http.StatusConflict, "concurrent_modification"},
	{domain.ErrLedgerWrite, http.StatusBadGateway, "ledger_write_failed"},
}

// writeError maps a service error to its HTTP representation. Errors that
// match no sentinel are logged and answered with a bare 500 so internal
// details never leak to callers.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	for _, s := range sentinelCodes {
		if errors.Is(err, s.err) {
			writeJSON(w, r, s.status, ErrorResponse{Error: ErrorDetail{
				Code:    s.code,
				Message: sentinelMessage(err, s.err),
			}})
			return
		}
	}

	slog.ErrorContext(r.Context(), "unhandled error",
		"method", r.Method, "path", r.URL.Path, "error", err)
	writeJSON(w, r, http.StatusInternalServerError, ErrorResponse{Error: ErrorDetail{
		Code:    "internal_error",
		Message: "internal server error",
	}})
}

// requestError answers a request rejected before reaching the service
// layer (e.g. missing or malformed body).
func requestError(w http.ResponseWriter, r *http.Request, message string) {
	writeJSON(w, r, http.StatusUnprocessableEntity, ErrorResponse{Error: ErrorDetail{
		Code:    "validation_error",
		Message: message,
	}})
}

// sentinelMessage extracts the human-readable part from a wrapped sentinel
// error. Services wrap as "service.X.Y: <sentinel>: <detail>"; the caller
// only needs the part from the sentinel onward.
// e.g. "service.TripService.Create: validation error: customer is required"
// → "validation error: customer is required".
func sentinelMessage(err error, sentinel error) string {
	msg := err.Error()
	if i := strings.Index(msg, sentinel.Error()); i >= 0 {
		return msg[i:]
	}
	return sentinel.Error()
}
