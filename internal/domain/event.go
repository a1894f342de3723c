package domain

import (
	"time"

	"github.com/google/uuid"
)

// StatusEvent is one immutable audit record of a status advance: who moved
// the trip to which status, and when. Events are append-only and never
// overwritten; at most one event exists per (trip, status) pair.
type StatusEvent struct {
	ID        uuid.UUID `json:"id"`
	TripID    uuid.UUID `json:"trip_id"`
	Status    int       `json:"status"`
	ActorID   uuid.UUID `json:"actor_id"`
	CreatedAt time.Time `json:"created_at"`
}
