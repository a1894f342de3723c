package domain

import (
	"time"

	"github.com/google/uuid"
)

// EmptyDistance is a learned lookup entry: the unladen kilometres between
// the end of a delivery route and the start of a packing route.
// Entries are shared reference data — not owned by any pairing — created
// on first manual entry and reused for every later match of the same
// route pair.
type EmptyDistance struct {
	DeliveryRouteID uuid.UUID `json:"delivery_route_id"`
	PackingRouteID  uuid.UUID `json:"packing_route_id"`
	DistanceKm      float64   `json:"distance_km"`
	CreatedAt       time.Time `json:"created_at"`
}
