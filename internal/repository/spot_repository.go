package repository

import (
    "context"
    "database/sql"
    "errors"
    "strings"
    "time"

    "github.com/iliyamo/parking-reservation/internal/model"
)

// SpotRepo is the MySQL Spot State Store.  All status transitions are
// single conditional UPDATE statements so that InnoDB's row lock on the
// spot serialises concurrent callers: the second writer blocks until the
// first transaction ends and then re-evaluates the WHERE clause.
type SpotRepo struct {
    db *sql.DB
}

// NewSpotRepo returns a new SpotRepo bound to the given database.
func NewSpotRepo(db *sql.DB) *SpotRepo { return &SpotRepo{db: db} }

// GetStatus returns the current status of a spot outside any transaction.
func (r *SpotRepo) GetStatus(ctx context.Context, spotID uint64) (model.SpotStatus, error) {
    var st string
    err := r.db.QueryRowContext(ctx, `SELECT status FROM parking_spots WHERE id = ?`, spotID).Scan(&st)
    if errors.Is(err, sql.ErrNoRows) {
        return "", ErrSpotNotFound
    }
    if err != nil {
        return "", err
    }
    return model.SpotStatus(st), nil
}

// GetStatusTx returns the status of a spot and locks the row for the
// remainder of the transaction.
func (r *SpotRepo) GetStatusTx(ctx context.Context, tx *sql.Tx, spotID uint64) (model.SpotStatus, error) {
    var st string
    err := tx.QueryRowContext(ctx, `SELECT status FROM parking_spots WHERE id = ? FOR UPDATE`, spotID).Scan(&st)
    if errors.Is(err, sql.ErrNoRows) {
        return "", ErrSpotNotFound
    }
    if err != nil {
        return "", err
    }
    return model.SpotStatus(st), nil
}

// TrySetOccupiedTx flips an available spot to occupied.  When no row was
// changed the spot either does not exist (ErrSpotNotFound) or is already
// occupied (ErrSpotOccupied).
func (r *SpotRepo) TrySetOccupiedTx(ctx context.Context, tx *sql.Tx, spotID uint64) error {
    const q = `UPDATE parking_spots SET status = 'O' WHERE id = ? AND status = 'A'`
    res, err := tx.ExecContext(ctx, q, spotID)
    if err != nil {
        return err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return err
    }
    if n == 1 {
        return nil
    }
    if _, err := r.GetStatusTx(ctx, tx, spotID); err != nil {
        return err
    }
    return ErrSpotOccupied
}

// SetAvailableTx flips an occupied spot back to available.  A spot that
// is already available means the ledger and the state store disagree,
// which is reported as ErrInconsistent rather than silently accepted.
func (r *SpotRepo) SetAvailableTx(ctx context.Context, tx *sql.Tx, spotID uint64) error {
    const q = `UPDATE parking_spots SET status = 'A' WHERE id = ? AND status = 'O'`
    res, err := tx.ExecContext(ctx, q, spotID)
    if err != nil {
        return err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return err
    }
    if n == 1 {
        return nil
    }
    if _, err := r.GetStatusTx(ctx, tx, spotID); err != nil {
        return err
    }
    return ErrInconsistent
}

// CreateSpotsTx provisions n available spots for a lot using one
// multi-row INSERT.  Passing n <= 0 has no effect.
func (r *SpotRepo) CreateSpotsTx(ctx context.Context, tx *sql.Tx, lotID uint64, n int) error {
    if n <= 0 {
        return nil
    }
    var b strings.Builder
    b.WriteString(`INSERT INTO parking_spots (lot_id, status) VALUES `)
    args := make([]interface{}, 0, n)
    for i := 0; i < n; i++ {
        if i > 0 {
            b.WriteString(",")
        }
        b.WriteString("(?, 'A')")
        args = append(args, lotID)
    }
    _, err := tx.ExecContext(ctx, b.String(), args...)
    return err
}

// ListSpots returns the spots of a lot ordered by id.  An empty status
// returns every spot.  ErrLotNotFound is returned for an unknown lot so
// that callers can tell "no free spots" from "no such lot".
func (r *SpotRepo) ListSpots(ctx context.Context, lotID uint64, status model.SpotStatus) ([]model.ParkingSpot, error) {
    var exists int
    if err := r.db.QueryRowContext(ctx, `SELECT 1 FROM parking_lots WHERE id = ?`, lotID).Scan(&exists); err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return nil, ErrLotNotFound
        }
        return nil, err
    }
    q := `SELECT id, lot_id, status, created_at FROM parking_spots WHERE lot_id = ?`
    args := []interface{}{lotID}
    if status != "" {
        q += ` AND status = ?`
        args = append(args, string(status))
    }
    q += ` ORDER BY id`
    rows, err := r.db.QueryContext(ctx, q, args...)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    spots := []model.ParkingSpot{}
    for rows.Next() {
        var s model.ParkingSpot
        var st string
        if err := rows.Scan(&s.ID, &s.LotID, &st, &s.CreatedAt); err != nil {
            return nil, err
        }
        s.Status = model.SpotStatus(st)
        spots = append(spots, s)
    }
    return spots, rows.Err()
}

// CountAvailable returns the number of available spots in a lot.
func (r *SpotRepo) CountAvailable(ctx context.Context, lotID uint64) (int, error) {
    const q = `SELECT COUNT(s.id)
               FROM parking_lots l
               LEFT JOIN parking_spots s ON s.lot_id = l.id AND s.status = 'A'
               WHERE l.id = ?
               GROUP BY l.id`
    var n int
    err := r.db.QueryRowContext(ctx, q, lotID).Scan(&n)
    if errors.Is(err, sql.ErrNoRows) {
        return 0, ErrLotNotFound
    }
    return n, err
}

// GetSpotDetail loads a spot, its lot name and, when occupied, the open
// reservation holding it.
func (r *SpotRepo) GetSpotDetail(ctx context.Context, spotID uint64) (model.SpotDetail, error) {
    const q = `SELECT s.id, s.lot_id, s.status, s.created_at, l.name
               FROM parking_spots s
               JOIN parking_lots l ON l.id = s.lot_id
               WHERE s.id = ?`
    var d model.SpotDetail
    var st string
    err := r.db.QueryRowContext(ctx, q, spotID).Scan(&d.ID, &d.LotID, &st, &d.CreatedAt, &d.LotName)
    if errors.Is(err, sql.ErrNoRows) {
        return d, ErrSpotNotFound
    }
    if err != nil {
        return d, err
    }
    d.Status = model.SpotStatus(st)
    if d.Status != model.SpotOccupied {
        return d, nil
    }
    const openQ = `SELECT id, spot_id, user_id, vehicle_number, parked_at
                   FROM reservations
                   WHERE spot_id = ? AND left_at IS NULL
                   ORDER BY parked_at DESC LIMIT 1`
    var res model.Reservation
    err = r.db.QueryRowContext(ctx, openQ, spotID).Scan(&res.ID, &res.SpotID, &res.UserID, &res.VehicleNumber, &res.ParkedAt)
    if errors.Is(err, sql.ErrNoRows) {
        // Occupied without an open reservation; surfaced as-is for the
        // reconciliation sweep.
        return d, nil
    }
    if err != nil {
        return d, err
    }
    d.Open = &res
    return d, nil
}

// DeleteSpot removes an available spot and shrinks its lot's capacity by
// one.  Occupied spots are never deleted (ErrConflict).  Closed
// reservations of the spot go with it through the foreign key cascade.
func (r *SpotRepo) DeleteSpot(ctx context.Context, spotID uint64) error {
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
    var lotID uint64
    var st string
    err = tx.QueryRowContext(ctx, `SELECT lot_id, status FROM parking_spots WHERE id = ? FOR UPDATE`, spotID).Scan(&lotID, &st)
    if errors.Is(err, sql.ErrNoRows) {
        return ErrSpotNotFound
    }
    if err != nil {
        return err
    }
    if model.SpotStatus(st) != model.SpotAvailable {
        return ErrConflict
    }
    if _, err := tx.ExecContext(ctx, `DELETE FROM parking_spots WHERE id = ?`, spotID); err != nil {
        return err
    }
    if _, err := tx.ExecContext(ctx, `UPDATE parking_lots SET capacity = capacity - 1, updated_at = ? WHERE id = ? AND capacity > 0`, time.Now().UTC(), lotID); err != nil {
        return err
    }
    if err := tx.Commit(); err != nil {
        return err
    }
    committed = true
    return nil
}
