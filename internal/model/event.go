package model

import "time"

// EventType names a change in spot availability.
type EventType string

const (
    EventReservationStarted  EventType = "reservation.started"
    EventReservationReleased EventType = "reservation.released"
    EventLotResized          EventType = "lot.resized"
)

// ReservationEvent is emitted after a booking transaction commits.  It
// carries the lot's available count as observed right after the commit,
// which consumers may treat as a hint rather than a snapshot.  It is nil
// when the count could not be read.
type ReservationEvent struct {
    Type           EventType `json:"type"`
    ReservationID  uint64    `json:"reservation_id,omitempty"`
    UserID         uint64    `json:"user_id,omitempty"`
    SpotID         uint64    `json:"spot_id,omitempty"`
    LotID          uint64    `json:"lot_id"`
    CostCents      *int64    `json:"cost_cents,omitempty"`
    AvailableCount *int      `json:"available_count,omitempty"`
    OccurredAt     time.Time `json:"occurred_at"`
}
