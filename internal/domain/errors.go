package domain

import "errors"

// ErrNotFound is returned by repo and service functions when the requested
// resource does not exist in the database.
// Handlers should map this to HTTP 404.
var ErrNotFound = errors.New("not found")

// ErrValidation is returned by service functions when input fails business
// rule validation (e.g. missing required field, non-positive distance).
// Handlers should map this to HTTP 422 Unprocessable Entity.
var ErrValidation = errors.New("validation error")

// ErrAlreadyTerminal is returned when advancing a trip or pairing whose
// status already sits at its terminal value. The only action left for a
// terminal entity is export.
var ErrAlreadyTerminal = errors.New("status already terminal")

// ErrAlreadyCombined is returned when either trip offered to Confirm is
// already part of an active combination. A trip can belong to at most one
// pairing at a time.
var ErrAlreadyCombined = errors.New("trip already combined")

// ErrNotCombinable is returned when the packing trip's combination mode
// forbids merging (container-only trips never join a round-trip).
var ErrNotCombinable = errors.New("packing trip not combinable")

// ErrRouteUnresolved is returned by Match when either trip has no route
// reference yet — a trip must be dispatched onto a route before its empty
// distance to another route can be resolved.
var ErrRouteUnresolved = errors.New("route unresolved")

// ErrNeedsManualDistance is returned by Match when no learned distance
// exists for the route pair. The dispatcher must supply a positive
// distance to Confirm, which then records it for future reuse.
var ErrNeedsManualDistance = errors.New("empty distance unknown, manual entry required")

// ErrTooLateToUnlink is returned when unlinking a pairing whose combined
// status has reached 4 or beyond — the delivery leg has progressed too far
// to split the round-trip back apart.
var ErrTooLateToUnlink = errors.New("too late to unlink")

// ErrAlreadyExported is returned when exporting an entity whose ledger
// flag is already set. The ledger collaborator is never called twice for
// the same entity.
var ErrAlreadyExported = errors.New("already written to ledger")

// ErrLedgerWrite wraps a failure from the accounting collaborator. The
// ledger flag is left unset, so the caller may retry the export.
var ErrLedgerWrite = errors.New("ledger write failed")

// ErrConcurrentModification is returned when an optimistic status update
// loses a race: the entity changed between the caller's read and write.
// The caller should re-read and decide whether the advance still applies.
var ErrConcurrentModification = errors.New("concurrent modification")
