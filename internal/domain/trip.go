// Package domain contains the core data types for the dispatch service.
// This package has zero external dependencies beyond uuid and is imported
// by every other internal package (repo, service, handler).
package domain

import (
	"time"

	"github.com/google/uuid"
)

// TripKind discriminates the two movement types handled by the dispatcher.
type TripKind string

const (
	// KindDelivery is a laden trip carrying cargo to a customer location.
	KindDelivery TripKind = "delivery"
	// KindPacking is a trip picking up an empty container for packing.
	KindPacking TripKind = "packing"
)

// Valid reports whether k is one of the two known trip kinds.
func (k TripKind) Valid() bool {
	return k == KindDelivery || k == KindPacking
}

// TerminalStatus returns the status value at which a trip of this kind is
// finished. Advance is rejected at the terminal value; only export remains.
func (k TripKind) TerminalStatus() int {
	if k == KindPacking {
		return 7
	}
	return 6
}

// StepCount returns the number of named operational stages shown for this
// kind. Delivery trips have five stages, packing trips six.
func (k TripKind) StepCount() int {
	if k == KindPacking {
		return len(packingStageNames)
	}
	return len(deliveryStageNames)
}

var deliveryStageNames = []string{
	"Dispatched",
	"Container picked up",
	"En route",
	"Delivered",
	"Completed",
}

var packingStageNames = []string{
	"Dispatched",
	"Empty container picked up",
	"At packing point",
	"Packed",
	"Departed",
	"Completed",
}

// StageNames returns the ordered display names of this kind's stages.
// The returned slice is shared; callers must not modify it.
func (k TripKind) StageNames() []string {
	if k == KindPacking {
		return packingStageNames
	}
	return deliveryStageNames
}

// CombinationMode controls whether a packing trip may be merged into a
// combined round-trip. Delivery trips are always combinable.
type CombinationMode string

const (
	// ModeCombinable permits the trip to join a combined pairing.
	ModeCombinable CombinationMode = "combinable"
	// ModeContainerOnly marks a container-only movement that must stay
	// independent.
	ModeContainerOnly CombinationMode = "container_only"
)

// DispatchKind identifies who operates a trip.
type DispatchKind string

const (
	// DispatchNone means the trip has not been assigned yet.
	DispatchNone DispatchKind = "none"
	// DispatchInternal means a company-owned vehicle runs the trip.
	DispatchInternal DispatchKind = "internal"
	// DispatchPartner means a third-party carrier runs the trip.
	DispatchPartner DispatchKind = "partner"
)

// Dispatch is a tagged union: exactly one of the three kinds is active.
// VehicleID is set only for internal dispatch; PartnerID, Fee and
// DriverInfo only for partner dispatch. Once a kind other than none is
// chosen it cannot be changed, only partner detail fields may be updated.
type Dispatch struct {
	Kind       DispatchKind `json:"kind"`
	VehicleID  *uuid.UUID   `json:"vehicle_id,omitempty"`
	PartnerID  *uuid.UUID   `json:"partner_id,omitempty"`
	Fee        *float64     `json:"fee,omitempty"`
	DriverInfo string       `json:"driver_info,omitempty"`
}

// Assigned reports whether the trip has been handed to an operator.
func (d Dispatch) Assigned() bool {
	return d.Kind == DispatchInternal || d.Kind == DispatchPartner
}

// Trip represents a single delivery or packing movement.
// Status is a monotonically increasing counter from 0 to the kind's
// terminal value; every increment is recorded as a StatusEvent.
type Trip struct {
	ID              uuid.UUID       `json:"id"`
	Kind            TripKind        `json:"kind"`
	CustomerID      uuid.UUID       `json:"customer_id"`
	ContainerNumber string          `json:"container_number"`
	OwnerCode       string          `json:"owner_code"`
	ContType        int             `json:"cont_type"` // 20 or 40
	Status          int             `json:"status"`
	Version         int             `json:"-"` // optimistic lock, never exposed
	Dispatch        Dispatch        `json:"dispatch"`
	RouteID         *uuid.UUID      `json:"route_id,omitempty"`
	CombinationMode CombinationMode `json:"combination_mode,omitempty"`
	IsCombined      bool            `json:"is_combined"`
	CombinedID      *uuid.UUID      `json:"combined_id,omitempty"`
	WrittenToLedger bool            `json:"written_to_ledger"`
	TripDate        time.Time       `json:"trip_date"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Terminal reports whether the trip has reached its final status.
func (t Trip) Terminal() bool {
	return t.Status >= t.Kind.TerminalStatus()
}

// DisplayStep computes the zero-based stage index shown to a dispatcher.
//
// Partner-operated trips report no granular sub-stages: any confirmed
// progress pins the display to the final stage. Otherwise the step is
// status−1 clamped into [0, StepCount−1]; a trip at status 0 shows its
// first stage as pending.
func (t Trip) DisplayStep() int {
	last := t.Kind.StepCount() - 1
	if t.Dispatch.Kind == DispatchPartner && t.Status > 0 {
		return last
	}
	step := t.Status - 1
	if step < 0 {
		return 0
	}
	if step > last {
		return last
	}
	return step
}
