package model

import "time"

// SpotStatus is the occupancy state of a parking spot.  It is stored as
// a single character in parking_spots.status.
type SpotStatus string

const (
    SpotAvailable SpotStatus = "A"
    SpotOccupied  SpotStatus = "O"
)

// ParkingSpot represents a row in the `parking_spots` table.  The status
// column is the ground truth for availability and is only toggled by the
// booking engine.
//
// Fields:
//  ID        – primary key identifier.
//  LotID     – owning lot.
//  Status    – A (available) or O (occupied).
//  CreatedAt – timestamp when the spot was provisioned.
type ParkingSpot struct {
    ID        uint64     `json:"id"`         // parking_spots.id
    LotID     uint64     `json:"lot_id"`     // parking_spots.lot_id
    Status    SpotStatus `json:"status"`     // parking_spots.status
    CreatedAt time.Time  `json:"created_at"` // parking_spots.created_at
}

// SpotDetail is the admin view of a single spot.  Open is set only while
// the spot is occupied.
type SpotDetail struct {
    ParkingSpot
    LotName string       `json:"lot_name"`
    Open    *Reservation `json:"open_reservation,omitempty"`
}
