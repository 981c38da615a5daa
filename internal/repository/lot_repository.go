// This file defines the parking lot repository.  A lot owns its spots;
// capacity and the number of provisioned spots are changed together in
// one transaction so that they never drift apart.
package repository

import (
	"context"      // context allows passing deadlines and cancellation signals to DB operations
	"database/sql" // sql provides generic database operations and drivers
	"errors"       // errors is used to compare sentinel values
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/parking-reservation/internal/model"
)

// LotRepo encapsulates all database queries related to parking lots.
type LotRepo struct {
	db    *sql.DB
	spots *SpotRepo
}

// NewLotRepo constructs a LotRepo with the provided DB handle.
func NewLotRepo(db *sql.DB) *LotRepo {
	return &LotRepo{db: db, spots: NewSpotRepo(db)}
}

const lotColumns = "id, name, address, pincode, price_cents, capacity, created_at, updated_at"

func scanLot(row interface{ Scan(...interface{}) error }, l *model.ParkingLot) error {
	return row.Scan(&l.ID, &l.Name, &l.Address, &l.Pincode, &l.PriceCents, &l.Capacity, &l.CreatedAt, &l.UpdatedAt)
}

// CreateLot inserts a lot and provisions lot.Capacity available spots in
// the same transaction.  A lot with the same address and pincode yields
// ErrLotExists.  On success the ID and timestamps are populated.
func (r *LotRepo) CreateLot(ctx context.Context, lot *model.ParkingLot) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	var dup uint64
	err = tx.QueryRowContext(ctx, `SELECT id FROM parking_lots WHERE address = ? AND pincode = ? LIMIT 1`, lot.Address, lot.Pincode).Scan(&dup)
	if err == nil {
		return ErrLotExists
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	const qInsert = `INSERT INTO parking_lots (name, address, pincode, price_cents, capacity) VALUES (?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, qInsert, lot.Name, lot.Address, lot.Pincode, lot.PriceCents, lot.Capacity)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrLotExists
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	lot.ID = uint64(id)
	if err := r.spots.CreateSpotsTx(ctx, tx, lot.ID, lot.Capacity); err != nil {
		return err
	}
	// Query back the full row to populate timestamps and defaults.
	if err := scanLot(tx.QueryRowContext(ctx, `SELECT `+lotColumns+` FROM parking_lots WHERE id = ?`, lot.ID), lot); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// GetLot fetches a lot by id.
func (r *LotRepo) GetLot(ctx context.Context, id uint64) (model.ParkingLot, error) {
	var l model.ParkingLot
	err := scanLot(r.db.QueryRowContext(ctx, `SELECT `+lotColumns+` FROM parking_lots WHERE id = ?`, id), &l)
	if errors.Is(err, sql.ErrNoRows) {
		return l, ErrLotNotFound
	}
	return l, err
}

// LotForSpotTx returns the lot that owns a spot, inside a transaction.
func (r *LotRepo) LotForSpotTx(ctx context.Context, tx *sql.Tx, spotID uint64) (model.ParkingLot, error) {
	const q = `SELECT l.id, l.name, l.address, l.pincode, l.price_cents, l.capacity, l.created_at, l.updated_at
	           FROM parking_lots l
	           JOIN parking_spots s ON s.lot_id = l.id
	           WHERE s.id = ?`
	var l model.ParkingLot
	err := scanLot(tx.QueryRowContext(ctx, q, spotID), &l)
	if errors.Is(err, sql.ErrNoRows) {
		return l, ErrSpotNotFound
	}
	return l, err
}

// ListLots returns every lot ordered by id with its available and
// occupied counters.  When withSpots is true the spots are attached too.
func (r *LotRepo) ListLots(ctx context.Context, withSpots bool) ([]model.LotOverview, error) {
	const q = `SELECT l.id, l.name, l.address, l.pincode, l.price_cents, l.capacity, l.created_at, l.updated_at,
	                  COALESCE(SUM(s.status = 'A'), 0), COALESCE(SUM(s.status = 'O'), 0)
	           FROM parking_lots l
	           LEFT JOIN parking_spots s ON s.lot_id = l.id
	           GROUP BY l.id
	           ORDER BY l.id`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.LotOverview{}
	index := map[uint64]int{}
	for rows.Next() {
		var o model.LotOverview
		if err := rows.Scan(&o.ID, &o.Name, &o.Address, &o.Pincode, &o.PriceCents, &o.Capacity,
			&o.CreatedAt, &o.UpdatedAt, &o.Available, &o.Occupied); err != nil {
			return nil, err
		}
		index[o.ID] = len(out)
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if !withSpots || len(out) == 0 {
		return out, nil
	}
	srows, err := r.db.QueryContext(ctx, `SELECT id, lot_id, status, created_at FROM parking_spots ORDER BY lot_id, id`)
	if err != nil {
		return nil, err
	}
	defer srows.Close()
	for srows.Next() {
		var s model.ParkingSpot
		var st string
		if err := srows.Scan(&s.ID, &s.LotID, &st, &s.CreatedAt); err != nil {
			return nil, err
		}
		s.Status = model.SpotStatus(st)
		if i, ok := index[s.LotID]; ok {
			out[i].Spots = append(out[i].Spots, s)
		}
	}
	return out, srows.Err()
}

// UpdateLot rewrites the lot attributes and resizes it to lot.Capacity.
// Growing provisions new available spots.  Shrinking removes available
// spots, newest first; when not enough spots are available the update is
// refused with ErrConflict and nothing changes.
func (r *LotRepo) UpdateLot(ctx context.Context, lot *model.ParkingLot) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	var current int
	err = tx.QueryRowContext(ctx, `SELECT capacity FROM parking_lots WHERE id = ? FOR UPDATE`, lot.ID).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrLotNotFound
	}
	if err != nil {
		return err
	}
	var dup uint64
	err = tx.QueryRowContext(ctx, `SELECT id FROM parking_lots WHERE address = ? AND pincode = ? AND id <> ? LIMIT 1`,
		lot.Address, lot.Pincode, lot.ID).Scan(&dup)
	if err == nil {
		return ErrLotExists
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	switch {
	case lot.Capacity > current:
		if err := r.spots.CreateSpotsTx(ctx, tx, lot.ID, lot.Capacity-current); err != nil {
			return err
		}
	case lot.Capacity < current:
		if err := r.removeAvailableSpotsTx(ctx, tx, lot.ID, current-lot.Capacity); err != nil {
			return err
		}
	}
	const q = `UPDATE parking_lots
	           SET name = ?, address = ?, pincode = ?, price_cents = ?, capacity = ?, updated_at = ?
	           WHERE id = ?`
	if _, err := tx.ExecContext(ctx, q, lot.Name, lot.Address, lot.Pincode, lot.PriceCents, lot.Capacity, time.Now().UTC(), lot.ID); err != nil {
		if isDuplicateKey(err) {
			return ErrLotExists
		}
		return err
	}
	if err := scanLot(tx.QueryRowContext(ctx, `SELECT `+lotColumns+` FROM parking_lots WHERE id = ?`, lot.ID), lot); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// removeAvailableSpotsTx locks and deletes the n newest available spots
// of a lot.
func (r *LotRepo) removeAvailableSpotsTx(ctx context.Context, tx *sql.Tx, lotID uint64, n int) error {
	const q = `SELECT id FROM parking_spots WHERE lot_id = ? AND status = 'A' ORDER BY id DESC LIMIT ? FOR UPDATE`
	rows, err := tx.QueryContext(ctx, q, lotID, n)
	if err != nil {
		return err
	}
	ids := make([]interface{}, 0, n)
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	if len(ids) < n {
		return ErrConflict
	}
	del := `DELETE FROM parking_spots WHERE id IN (?` + strings.Repeat(",?", len(ids)-1) + `)`
	_, err = tx.ExecContext(ctx, del, ids...)
	return err
}

// DeleteLot removes a lot, its spots and their reservations.  It is
// refused with ErrConflict while any spot of the lot is occupied.
func (r *LotRepo) DeleteLot(ctx context.Context, id uint64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	var exists uint64
	err = tx.QueryRowContext(ctx, `SELECT id FROM parking_lots WHERE id = ? FOR UPDATE`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrLotNotFound
	}
	if err != nil {
		return err
	}
	// Lock every spot of the lot so no booking can flip one while we decide.
	rows, err := tx.QueryContext(ctx, `SELECT status FROM parking_spots WHERE lot_id = ? FOR UPDATE`, id)
	if err != nil {
		return err
	}
	occupied := 0
	for rows.Next() {
		var st string
		if err := rows.Scan(&st); err != nil {
			rows.Close()
			return err
		}
		if model.SpotStatus(st) == model.SpotOccupied {
			occupied++
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	if occupied > 0 {
		return ErrConflict
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM parking_lots WHERE id = ?`, id); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// isDuplicateKey reports whether err is a MySQL duplicate key error (1062).
func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}
