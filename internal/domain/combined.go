package domain

import (
	"time"

	"github.com/google/uuid"
)

// ConnectionType classifies how the two legs of a combined round-trip
// connect in space and time.
type ConnectionType string

const (
	// SameDaySamePoint: the packing pickup happens the same day at the
	// delivery drop-off point. No repositioning between legs.
	SameDaySamePoint ConnectionType = "same_day_same_point"
	// SameDayDiffPoint: same day, but the vehicle runs empty between the
	// delivery end point and the packing pickup point.
	SameDayDiffPoint ConnectionType = "same_day_diff_point"
	// DifferentDay: the legs run on different days.
	DifferentDay ConnectionType = "different_day"
)

// Valid reports whether c is a known connection type.
func (c ConnectionType) Valid() bool {
	switch c {
	case SameDaySamePoint, SameDayDiffPoint, DifferentDay:
		return true
	}
	return false
}

const (
	// CombinedTerminalStatus is the final combined status; advancing past
	// it fails and export becomes the only permitted action.
	CombinedTerminalStatus = 9
	// UnlinkStatusLimit is the first combined status at which unlinking is
	// no longer allowed: the delivery leg has progressed too far.
	UnlinkStatusLimit = 4
	// packingStageOffset is the combined status at which progress moves
	// from the delivery leg to the packing leg.
	packingStageOffset = 5
)

// CombinedPairing merges one delivery trip and one packing trip into a
// single round-trip schedule. CombinedStatus is a counter from 0 to 9
// that drives both legs in sequence; decode it with Progress rather than
// comparing ranges directly.
type CombinedPairing struct {
	ID              uuid.UUID      `json:"id"`
	DeliveryTripID  uuid.UUID      `json:"delivery_trip_id"`
	PackingTripID   uuid.UUID      `json:"packing_trip_id"`
	ConnectionType  ConnectionType `json:"connection_type"`
	EmptyDistanceKm float64        `json:"empty_distance_km"`
	CombinedStatus  int            `json:"combined_status"`
	Version         int            `json:"-"`
	WrittenToLedger bool           `json:"written_to_ledger"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// Terminal reports whether the pairing has reached its final status.
func (p CombinedPairing) Terminal() bool {
	return p.CombinedStatus >= CombinedTerminalStatus
}

// Unlinkable reports whether the pairing may still be split back into two
// independent trips.
func (p CombinedPairing) Unlinkable() bool {
	return p.CombinedStatus < UnlinkStatusLimit
}

// CombinedProgress is the decoded per-leg view of a pairing's single
// combined status counter. Step values are zero-based stage indexes;
// StepNotStarted marks a leg that has not begun.
type CombinedProgress struct {
	DeliveryStep int  `json:"delivery_step"`
	PackingStep  int  `json:"packing_step"`
	DeliveryDone bool `json:"delivery_done"`
	PackingDone  bool `json:"packing_done"`
}

// StepNotStarted is the display step of a leg that has not yet begun.
const StepNotStarted = -1

// Progress decodes the combined status into independent per-leg displays.
//
// Statuses 1..5 walk the delivery leg through its stages while the packing
// leg shows "not yet begun". Statuses 6..9 pin the delivery leg complete
// and walk the packing leg. Status 0 is the initial state before either
// leg starts.
//
// The delivery and packing trips are consulted for the partner override:
// a partner-operated leg with any confirmed progress displays complete
// regardless of the counter, matching Trip.DisplayStep.
func (p CombinedPairing) Progress(delivery, packing Trip) CombinedProgress {
	pr := CombinedProgress{
		DeliveryStep: StepNotStarted,
		PackingStep:  StepNotStarted,
	}

	lastDelivery := KindDelivery.StepCount() - 1
	switch {
	case p.CombinedStatus >= 1 && p.CombinedStatus < packingStageOffset+1:
		step := p.CombinedStatus - 1
		if step > lastDelivery {
			step = lastDelivery
		}
		pr.DeliveryStep = step
	case p.CombinedStatus >= packingStageOffset+1:
		pr.DeliveryStep = lastDelivery
		pr.DeliveryDone = true
		pr.PackingStep = p.CombinedStatus - packingStageOffset
		pr.PackingDone = p.CombinedStatus >= CombinedTerminalStatus
	}

	if delivery.Dispatch.Kind == DispatchPartner && delivery.Status > 0 {
		pr.DeliveryStep = lastDelivery
		pr.DeliveryDone = true
	}
	if packing.Dispatch.Kind == DispatchPartner && packing.Status > 0 {
		pr.PackingStep = KindPacking.StepCount() - 1
		pr.PackingDone = true
	}

	return pr
}

// PermittedStatus returns the highest own-status a combined leg may hold
// given the pairing's progress. A combined trip's individual status must
// never run ahead of its leg's display step, so direct advances are capped
// here.
func (p CombinedProgress) PermittedStatus(kind TripKind) int {
	step, done := p.DeliveryStep, p.DeliveryDone
	if kind == KindPacking {
		step, done = p.PackingStep, p.PackingDone
	}
	if done {
		return kind.TerminalStatus()
	}
	if step == StepNotStarted {
		return 0
	}
	return step + 1
}
