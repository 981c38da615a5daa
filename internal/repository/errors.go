// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// services and handlers to distinguish between different failure
// scenarios without inspecting driver errors. The in-memory store in
// the memstore subpackage returns the same values, so callers behave
// identically against either backend.
package repository

import "errors"

// ErrForbidden is returned when the caller attempts an operation
// on a resource they do not own. Handlers should translate this
// into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when a delete or update cannot be
// performed because of conflicting state, such as removing a spot
// that is currently occupied. Handlers should translate this into
// an HTTP 409 response.
var ErrConflict = errors.New("conflict")

var (
	ErrLotNotFound         = errors.New("parking lot not found")
	ErrLotExists           = errors.New("parking lot with this address already exists")
	ErrSpotNotFound        = errors.New("parking spot not found")
	ErrReservationNotFound = errors.New("reservation not found")
)

// ErrSpotOccupied is returned by TrySetOccupied when the spot already
// has an open reservation.
var ErrSpotOccupied = errors.New("parking spot is not available")

// ErrAlreadyClosed is returned when a reservation has already been
// released.
var ErrAlreadyClosed = errors.New("reservation already closed")

// ErrInconsistent marks a state the booking protocol cannot produce on
// its own, e.g. releasing a reservation whose spot is already
// available. It is reported, never repaired.
var ErrInconsistent = errors.New("spot state inconsistent with reservation ledger")
