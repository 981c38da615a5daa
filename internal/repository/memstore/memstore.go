// Package memstore is an in-process implementation of the repository
// interfaces.  It mirrors the MySQL semantics closely enough to run the
// booking engine's concurrency tests and local demos without a database:
// rows are locked individually for the lifetime of a transaction, writes
// are buffered and become visible atomically on commit, and operations on
// different spots never wait for each other.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/parking-reservation/internal/model"
	"github.com/iliyamo/parking-reservation/internal/repository"
)

type rowKind uint8

const (
	kindLot rowKind = iota + 1
	kindSpot
	kindReservation
)

type rowKey struct {
	kind rowKind
	id   uint64
}

// rowLocks hands out one mutex per row, created on first use.
type rowLocks struct {
	mu sync.Mutex
	m  map[rowKey]*sync.Mutex
}

func (l *rowLocks) get(k rowKey) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.m[k]
	if !ok {
		m = &sync.Mutex{}
		l.m[k] = m
	}
	return m
}

// Store keeps lots, spots and reservations in maps.  mu guards the maps
// themselves and is only held for the duration of a lookup or a commit;
// row locks provide the per-spot and per-reservation exclusion.
type Store struct {
	mu     sync.RWMutex
	lots   map[uint64]model.ParkingLot
	spots  map[uint64]model.ParkingSpot
	res    map[uint64]model.Reservation
	nextID map[rowKind]uint64

	locks rowLocks
	now   func() time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{
		lots:   map[uint64]model.ParkingLot{},
		spots:  map[uint64]model.ParkingSpot{},
		res:    map[uint64]model.Reservation{},
		nextID: map[rowKind]uint64{},
		locks:  rowLocks{m: map[rowKey]*sync.Mutex{}},
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// nextIDLocked allocates an id; s.mu must be held for writing.
func (s *Store) nextIDLocked(k rowKind) uint64 {
	s.nextID[k]++
	return s.nextID[k]
}

// GetStatus returns the committed status of a spot.
func (s *Store) GetStatus(_ context.Context, spotID uint64) (model.SpotStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sp, ok := s.spots[spotID]
	if !ok {
		return "", repository.ErrSpotNotFound
	}
	return sp.Status, nil
}

// ForceStatus overwrites a spot's status without going through the
// booking protocol.  Reconciliation drills use it to reproduce a
// diverged state.
func (s *Store) ForceStatus(spotID uint64, st model.SpotStatus) error {
	m := s.locks.get(rowKey{kindSpot, spotID})
	m.Lock()
	defer m.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	sp, ok := s.spots[spotID]
	if !ok {
		return repository.ErrSpotNotFound
	}
	sp.Status = st
	s.spots[spotID] = sp
	return nil
}

// InTx runs fn against a transaction whose writes are applied on success
// and discarded otherwise.  Row locks taken by fn are released on every
// exit path.
func (s *Store) InTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t := &tx{
		s:     s,
		held:  map[rowKey]*sync.Mutex{},
		spots: map[uint64]model.ParkingSpot{},
		res:   map[uint64]model.Reservation{},
	}
	defer t.release()
	if err := fn(t); err != nil {
		return err
	}
	t.commit()
	return nil
}

// lockRows acquires the row locks for keys in a fixed order and returns
// a function releasing them.
func (s *Store) lockRows(keys []rowKey) func() {
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].kind != keys[j].kind {
			return keys[i].kind < keys[j].kind
		}
		return keys[i].id < keys[j].id
	})
	held := make([]*sync.Mutex, 0, len(keys))
	for _, k := range keys {
		m := s.locks.get(k)
		m.Lock()
		held = append(held, m)
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}

// lockLot locks a lot row and then every spot currently in it.
func (s *Store) lockLot(lotID uint64) func() {
	unlockLot := s.lockRows([]rowKey{{kindLot, lotID}})
	s.mu.RLock()
	var keys []rowKey
	for id, sp := range s.spots {
		if sp.LotID == lotID {
			keys = append(keys, rowKey{kindSpot, id})
		}
	}
	s.mu.RUnlock()
	unlockSpots := s.lockRows(keys)
	return func() {
		unlockSpots()
		unlockLot()
	}
}

var (
	_ repository.TxRunner      = (*Store)(nil)
	_ repository.LotStore      = (*Store)(nil)
	_ repository.SessionReader = (*Store)(nil)
)
