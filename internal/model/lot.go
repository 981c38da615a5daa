package model

import "time"

// ParkingLot represents a row in the `parking_lots` table.  A lot is a
// named collection of spots that share a single hourly price.  Capacity
// always equals the number of spots provisioned for the lot; the lot
// management operations keep both in step inside one transaction.
//
// Fields:
//  ID         – primary key identifier.
//  Name       – display name (prime location name).
//  Address    – street address.
//  Pincode    – postal code; (address, pincode) is unique.
//  PriceCents – hourly price in cents.
//  Capacity   – number of spots provisioned for the lot.
//  CreatedAt  – timestamp when the lot was created.
//  UpdatedAt  – timestamp of the last update.
type ParkingLot struct {
    ID         uint64    `json:"id"`          // parking_lots.id
    Name       string    `json:"name"`        // parking_lots.name
    Address    string    `json:"address"`     // parking_lots.address
    Pincode    string    `json:"pincode"`     // parking_lots.pincode
    PriceCents int64     `json:"price_cents"` // parking_lots.price_cents
    Capacity   int       `json:"capacity"`    // parking_lots.capacity
    CreatedAt  time.Time `json:"created_at"`  // parking_lots.created_at
    UpdatedAt  time.Time `json:"updated_at"`  // parking_lots.updated_at
}

// LotOverview is a lot together with its live occupancy counters and
// spots.  It is what the lot listing endpoints return.
type LotOverview struct {
    ParkingLot
    Available int           `json:"available_count"`
    Occupied  int           `json:"occupied_count"`
    Spots     []ParkingSpot `json:"spots,omitempty"`
}
