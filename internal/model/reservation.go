package model

import "time"

// Reservation represents a row in the `reservations` table: one user's
// occupancy of one spot.  LeftAt and CostCents stay nil while the
// reservation is open and are written exactly once when it is released.
//
// Fields:
//  ID            – primary key identifier.
//  SpotID        – the occupied spot (fixed at creation).
//  UserID        – the user who parked (fixed at creation).
//  VehicleNumber – registration of the parked vehicle.
//  ParkedAt      – start timestamp.
//  LeftAt        – end timestamp; nil while open.
//  CostCents     – billed amount; nil while open.
type Reservation struct {
    ID            uint64     `json:"id"`             // reservations.id
    SpotID        uint64     `json:"spot_id"`        // reservations.spot_id
    UserID        uint64     `json:"user_id"`        // reservations.user_id
    VehicleNumber string     `json:"vehicle_number"` // reservations.vehicle_number
    ParkedAt      time.Time  `json:"parked_at"`      // reservations.parked_at
    LeftAt        *time.Time `json:"left_at"`        // reservations.left_at (nullable)
    CostCents     *int64     `json:"cost_cents"`     // reservations.cost_cents (nullable)
}

// IsOpen reports whether the reservation has not been released yet.
func (r Reservation) IsOpen() bool { return r.LeftAt == nil }

// Session is a reservation joined with the lot it was made in.  The
// usage aggregator, exports and history endpoints read sessions rather
// than bare reservations so that they can price and label each row.
type Session struct {
    Reservation
    LotID         uint64 `json:"lot_id"`
    LotName       string `json:"lot_name"`
    LotAddress    string `json:"lot_address"`
    LotPriceCents int64  `json:"lot_price_cents"`
}

// SessionFilter narrows a session listing.  Zero values mean "no bound".
// Since is inclusive and Until exclusive, both applied to ParkedAt.
type SessionFilter struct {
    UserID uint64
    LotID  uint64
    Since  *time.Time
    Until  *time.Time
}
