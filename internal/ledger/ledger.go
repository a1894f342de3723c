// Package ledger talks to the external accounting system that records the
// financial outcome of completed trips. The service treats a ledger write
// as not safe to repeat: the Writer is invoked at most once per entity and
// the caller decides whether a retry is allowed.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Writer is the port the export service depends on. Implementations must
// surface transport and remote errors unchanged so the caller can decide
// whether to retry the whole export.
type Writer interface {
	// WriteTrip records one completed independent trip.
	WriteTrip(ctx context.Context, tripID uuid.UUID) error

	// WriteCombined records one completed combined round-trip.
	WriteCombined(ctx context.Context, combinedID uuid.UUID) error
}

// HTTPWriter posts ledger entries to the accounting collaborator's REST API.
type HTTPWriter struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// compile-time check: HTTPWriter satisfies Writer.
var _ Writer = (*HTTPWriter)(nil)

// NewHTTPWriter constructs an HTTPWriter for the given base URL.
// A nil client falls back to one with a 10-second timeout.
func NewHTTPWriter(baseURL, apiKey string, client *http.Client) *HTTPWriter {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPWriter{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  client,
	}
}

type entryRequest struct {
	EntityKind string `json:"entity_kind"` // "trip" or "combined_pairing"
	EntityID   string `json:"entity_id"`
}

// WriteTrip posts a trip entry to POST {base}/entries.
func (w *HTTPWriter) WriteTrip(ctx context.Context, tripID uuid.UUID) error {
	return w.post(ctx, entryRequest{EntityKind: "trip", EntityID: tripID.String()})
}

// WriteCombined posts a combined-pairing entry to POST {base}/entries.
func (w *HTTPWriter) WriteCombined(ctx context.Context, combinedID uuid.UUID) error {
	return w.post(ctx, entryRequest{EntityKind: "combined_pairing", EntityID: combinedID.String()})
}

// post sends one entry. The entity ID doubles as the collaborator's
// idempotency key, so a retried export after a failed flag-set is detected
// remotely and answered with 409, which is treated as success here.
func (w *HTTPWriter) post(ctx context.Context, entry entryRequest) error {
	body, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("ledger.HTTPWriter: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.baseURL+"/entries", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("ledger.HTTPWriter: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", entry.EntityKind+":"+entry.EntityID)
	if w.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+w.apiKey)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("ledger.HTTPWriter: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusConflict:
		// Already recorded remotely — a previous attempt succeeded before
		// our flag-set failed.
		return nil
	default:
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("ledger.HTTPWriter: status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
}
