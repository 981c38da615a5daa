package repository

import (
    "context"
    "database/sql"
    "errors"
    "strings"
    "time"

    "github.com/iliyamo/parking-reservation/internal/model"
)

// ReservationRepo is the MySQL Reservation Ledger.  A reservation is
// appended once when parking starts and closed once when it is
// released; the close statement only matches open rows, so a second
// close can never overwrite the first.  All timestamp fields are
// stored in UTC.
type ReservationRepo struct {
    db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

// AppendTx inserts a new open reservation within the scope of an existing
// transaction and populates its generated ID.  The caller must commit or
// rollback the transaction.
func (r *ReservationRepo) AppendTx(ctx context.Context, tx *sql.Tx, res *model.Reservation) error {
    const q = `INSERT INTO reservations (spot_id, user_id, vehicle_number, parked_at) VALUES (?, ?, ?, ?)`
    result, err := tx.ExecContext(ctx, q, res.SpotID, res.UserID, res.VehicleNumber, res.ParkedAt)
    if err != nil {
        return err
    }
    id, err := result.LastInsertId()
    if err != nil {
        return err
    }
    res.ID = uint64(id)
    res.LeftAt = nil
    res.CostCents = nil
    return nil
}

// GetForUpdateTx loads a reservation and locks its row until the
// transaction ends.  ErrReservationNotFound is returned for unknown ids.
func (r *ReservationRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (model.Reservation, error) {
    const q = `SELECT id, spot_id, user_id, vehicle_number, parked_at, left_at, cost_cents
               FROM reservations WHERE id = ? FOR UPDATE`
    res, err := scanReservation(tx.QueryRowContext(ctx, q, id))
    if errors.Is(err, sql.ErrNoRows) {
        return res, ErrReservationNotFound
    }
    return res, err
}

// CloseTx sets the end timestamp and cost of an open reservation.  When
// the reservation is already closed no row matches and ErrAlreadyClosed
// is returned.
func (r *ReservationRepo) CloseTx(ctx context.Context, tx *sql.Tx, id uint64, leftAt time.Time, costCents int64) error {
    const q = `UPDATE reservations SET left_at = ?, cost_cents = ? WHERE id = ? AND left_at IS NULL`
    result, err := tx.ExecContext(ctx, q, leftAt.UTC(), costCents, id)
    if err != nil {
        return err
    }
    n, err := result.RowsAffected()
    if err != nil {
        return err
    }
    if n == 0 {
        return ErrAlreadyClosed
    }
    return nil
}

const sessionSelect = `SELECT r.id, r.spot_id, r.user_id, r.vehicle_number, r.parked_at, r.left_at, r.cost_cents,
                              l.id, l.name, l.address, l.price_cents
                       FROM reservations r
                       JOIN parking_spots s ON s.id = r.spot_id
                       JOIN parking_lots l ON l.id = s.lot_id`

// ListSessions returns the reservations matching f joined with their lot,
// oldest first.  Readers do not lock; an in-flight booking may or may not
// be visible depending on when it commits.
func (r *ReservationRepo) ListSessions(ctx context.Context, f model.SessionFilter) ([]model.Session, error) {
    var where []string
    var args []interface{}
    if f.UserID != 0 {
        where = append(where, "r.user_id = ?")
        args = append(args, f.UserID)
    }
    if f.LotID != 0 {
        where = append(where, "l.id = ?")
        args = append(args, f.LotID)
    }
    if f.Since != nil {
        where = append(where, "r.parked_at >= ?")
        args = append(args, f.Since.UTC())
    }
    if f.Until != nil {
        where = append(where, "r.parked_at < ?")
        args = append(args, f.Until.UTC())
    }
    q := sessionSelect
    if len(where) > 0 {
        q += " WHERE " + strings.Join(where, " AND ")
    }
    q += " ORDER BY r.parked_at, r.id"
    rows, err := r.db.QueryContext(ctx, q, args...)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := []model.Session{}
    for rows.Next() {
        s, err := scanSession(rows)
        if err != nil {
            return nil, err
        }
        out = append(out, s)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return out, nil
}

// GetSession returns a single reservation joined with its lot.
func (r *ReservationRepo) GetSession(ctx context.Context, id uint64) (model.Session, error) {
    s, err := scanSession(r.db.QueryRowContext(ctx, sessionSelect+" WHERE r.id = ?", id))
    if errors.Is(err, sql.ErrNoRows) {
        return s, ErrReservationNotFound
    }
    return s, err
}

type scanner interface {
    Scan(dest ...interface{}) error
}

func scanReservation(row scanner) (model.Reservation, error) {
    var res model.Reservation
    var leftAt sql.NullTime
    var cost sql.NullInt64
    if err := row.Scan(&res.ID, &res.SpotID, &res.UserID, &res.VehicleNumber, &res.ParkedAt, &leftAt, &cost); err != nil {
        return res, err
    }
    fillNullable(&res, leftAt, cost)
    return res, nil
}

func scanSession(row scanner) (model.Session, error) {
    var s model.Session
    var leftAt sql.NullTime
    var cost sql.NullInt64
    if err := row.Scan(&s.ID, &s.SpotID, &s.UserID, &s.VehicleNumber, &s.ParkedAt, &leftAt, &cost,
        &s.LotID, &s.LotName, &s.LotAddress, &s.LotPriceCents); err != nil {
        return s, err
    }
    fillNullable(&s.Reservation, leftAt, cost)
    return s, nil
}

func fillNullable(res *model.Reservation, leftAt sql.NullTime, cost sql.NullInt64) {
    res.ParkedAt = res.ParkedAt.UTC()
    if leftAt.Valid {
        t := leftAt.Time.UTC()
        res.LeftAt = &t
    }
    if cost.Valid {
        c := cost.Int64
        res.CostCents = &c
    }
}
