package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/parking-reservation/internal/model"
)

// SpotStateStore holds the occupancy state of every spot.  TrySetOccupied
// is a compare-and-swap: among concurrent callers on the same spot
// exactly one succeeds and the rest get ErrSpotOccupied.
type SpotStateStore interface {
	GetStatus(ctx context.Context, spotID uint64) (model.SpotStatus, error)
	TrySetOccupied(ctx context.Context, spotID uint64) error
	SetAvailable(ctx context.Context, spotID uint64) error
}

// ReservationLedger records parking sessions.  Close only succeeds on an
// open reservation and returns ErrAlreadyClosed otherwise.
type ReservationLedger interface {
	Append(ctx context.Context, r *model.Reservation) error
	GetForUpdate(ctx context.Context, id uint64) (model.Reservation, error)
	Close(ctx context.Context, id uint64, leftAt time.Time, costCents int64) error
}

// Tx is the transactional view used by the booking engine.  Every row
// touched through a Tx stays locked until the surrounding InTx call
// commits or rolls back.
type Tx interface {
	Spots() SpotStateStore
	Ledger() ReservationLedger
	LotForSpot(ctx context.Context, spotID uint64) (model.ParkingLot, error)
}

// TxRunner runs fn inside a single transaction.  The transaction commits
// when fn returns nil and rolls back otherwise.
type TxRunner interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// LotStore covers lot and spot management and the read paths around
// availability.
type LotStore interface {
	CreateLot(ctx context.Context, lot *model.ParkingLot) error
	GetLot(ctx context.Context, id uint64) (model.ParkingLot, error)
	ListLots(ctx context.Context, withSpots bool) ([]model.LotOverview, error)
	UpdateLot(ctx context.Context, lot *model.ParkingLot) error
	DeleteLot(ctx context.Context, id uint64) error
	CountAvailable(ctx context.Context, lotID uint64) (int, error)
	ListSpots(ctx context.Context, lotID uint64, status model.SpotStatus) ([]model.ParkingSpot, error)
	GetSpotDetail(ctx context.Context, spotID uint64) (model.SpotDetail, error)
	DeleteSpot(ctx context.Context, spotID uint64) error
}

// SessionReader is the read side of the ledger.  ListSessions returns
// sessions ordered by start time, oldest first, ties broken by id.
type SessionReader interface {
	ListSessions(ctx context.Context, f model.SessionFilter) ([]model.Session, error)
	GetSession(ctx context.Context, id uint64) (model.Session, error)
}

// SQLStore wires the MySQL repositories together and implements
// TxRunner, LotStore and SessionReader on top of one *sql.DB.
type SQLStore struct {
	db *sql.DB
	*LotRepo
	*SpotRepo
	*ReservationRepo
}

// NewSQLStore returns a store bound to the given database.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{
		db:              db,
		LotRepo:         NewLotRepo(db),
		SpotRepo:        NewSpotRepo(db),
		ReservationRepo: NewReservationRepo(db),
	}
}

// DB exposes the underlying handle for health checks.
func (s *SQLStore) DB() *sql.DB { return s.db }

// InTx begins a transaction, hands fn a Tx bound to it and commits when
// fn succeeds.  Any error from fn, or a panic, rolls the transaction back.
func (s *SQLStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(&sqlTx{ctxTx: tx, store: s}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// sqlTx binds the repositories' ...Tx methods to a single *sql.Tx.
type sqlTx struct {
	ctxTx *sql.Tx
	store *SQLStore
}

func (t *sqlTx) Spots() SpotStateStore     { return sqlSpots{t} }
func (t *sqlTx) Ledger() ReservationLedger { return sqlLedger{t} }

func (t *sqlTx) LotForSpot(ctx context.Context, spotID uint64) (model.ParkingLot, error) {
	return t.store.LotRepo.LotForSpotTx(ctx, t.ctxTx, spotID)
}

type sqlSpots struct{ t *sqlTx }

func (s sqlSpots) GetStatus(ctx context.Context, spotID uint64) (model.SpotStatus, error) {
	return s.t.store.SpotRepo.GetStatusTx(ctx, s.t.ctxTx, spotID)
}

func (s sqlSpots) TrySetOccupied(ctx context.Context, spotID uint64) error {
	return s.t.store.SpotRepo.TrySetOccupiedTx(ctx, s.t.ctxTx, spotID)
}

func (s sqlSpots) SetAvailable(ctx context.Context, spotID uint64) error {
	return s.t.store.SpotRepo.SetAvailableTx(ctx, s.t.ctxTx, spotID)
}

type sqlLedger struct{ t *sqlTx }

func (l sqlLedger) Append(ctx context.Context, r *model.Reservation) error {
	return l.t.store.ReservationRepo.AppendTx(ctx, l.t.ctxTx, r)
}

func (l sqlLedger) GetForUpdate(ctx context.Context, id uint64) (model.Reservation, error) {
	return l.t.store.ReservationRepo.GetForUpdateTx(ctx, l.t.ctxTx, id)
}

func (l sqlLedger) Close(ctx context.Context, id uint64, leftAt time.Time, costCents int64) error {
	return l.t.store.ReservationRepo.CloseTx(ctx, l.t.ctxTx, id, leftAt, costCents)
}

var (
	_ TxRunner      = (*SQLStore)(nil)
	_ LotStore      = (*SQLStore)(nil)
	_ SessionReader = (*SQLStore)(nil)
)
