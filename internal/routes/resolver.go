// Package routes resolves route identifiers to human-readable names via
// the master-data collaborator. Lookups are best-effort enrichment: a
// failure degrades the label, it never blocks displaying a trip.
package routes

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// HTTPResolver fetches route names from GET {base}/routes/{id}.
type HTTPResolver struct {
	baseURL string
	client  *http.Client
}

// NewHTTPResolver constructs an HTTPResolver for the given base URL.
// A nil client falls back to one with a 5-second timeout.
func NewHTTPResolver(baseURL string, client *http.Client) *HTTPResolver {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &HTTPResolver{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

// Name returns the display name for a route.
func (r *HTTPResolver) Name(ctx context.Context, routeID uuid.UUID) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/routes/"+routeID.String(), nil)
	if err != nil {
		return "", fmt.Errorf("routes.HTTPResolver: create request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("routes.HTTPResolver: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("routes.HTTPResolver: status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var body struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("routes.HTTPResolver: decode: %w", err)
	}
	return body.Name, nil
}
