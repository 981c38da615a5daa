package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/iliyamo/parking-reservation/internal/model"
	"github.com/iliyamo/parking-reservation/internal/repository"
)

// tx buffers its writes in spots and res until commit.  Reads check the
// buffer first so a transaction sees its own changes.
type tx struct {
	s     *Store
	held  map[rowKey]*sync.Mutex
	order []*sync.Mutex
	spots map[uint64]model.ParkingSpot
	res   map[uint64]model.Reservation
}

func (t *tx) lock(k rowKey) {
	if _, ok := t.held[k]; ok {
		return
	}
	m := t.s.locks.get(k)
	m.Lock()
	t.held[k] = m
	t.order = append(t.order, m)
}

func (t *tx) release() {
	for i := len(t.order) - 1; i >= 0; i-- {
		t.order[i].Unlock()
	}
	t.order = nil
}

func (t *tx) commit() {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	for id, sp := range t.spots {
		if _, ok := t.s.spots[id]; ok {
			t.s.spots[id] = sp
		}
	}
	for id, r := range t.res {
		t.s.res[id] = r
	}
}

func (t *tx) spot(id uint64) (model.ParkingSpot, bool) {
	if sp, ok := t.spots[id]; ok {
		return sp, true
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	sp, ok := t.s.spots[id]
	return sp, ok
}

func (t *tx) reservation(id uint64) (model.Reservation, bool) {
	if r, ok := t.res[id]; ok {
		return r, true
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	r, ok := t.s.res[id]
	return r, ok
}

func (t *tx) Spots() repository.SpotStateStore     { return txSpots{t} }
func (t *tx) Ledger() repository.ReservationLedger { return txLedger{t} }

func (t *tx) LotForSpot(_ context.Context, spotID uint64) (model.ParkingLot, error) {
	sp, ok := t.spot(spotID)
	if !ok {
		return model.ParkingLot{}, repository.ErrSpotNotFound
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	lot, ok := t.s.lots[sp.LotID]
	if !ok {
		return model.ParkingLot{}, repository.ErrLotNotFound
	}
	return lot, nil
}

type txSpots struct{ t *tx }

func (s txSpots) GetStatus(_ context.Context, spotID uint64) (model.SpotStatus, error) {
	s.t.lock(rowKey{kindSpot, spotID})
	sp, ok := s.t.spot(spotID)
	if !ok {
		return "", repository.ErrSpotNotFound
	}
	return sp.Status, nil
}

func (s txSpots) TrySetOccupied(_ context.Context, spotID uint64) error {
	s.t.lock(rowKey{kindSpot, spotID})
	sp, ok := s.t.spot(spotID)
	if !ok {
		return repository.ErrSpotNotFound
	}
	if sp.Status != model.SpotAvailable {
		return repository.ErrSpotOccupied
	}
	sp.Status = model.SpotOccupied
	s.t.spots[spotID] = sp
	return nil
}

func (s txSpots) SetAvailable(_ context.Context, spotID uint64) error {
	s.t.lock(rowKey{kindSpot, spotID})
	sp, ok := s.t.spot(spotID)
	if !ok {
		return repository.ErrSpotNotFound
	}
	if sp.Status != model.SpotOccupied {
		return repository.ErrInconsistent
	}
	sp.Status = model.SpotAvailable
	s.t.spots[spotID] = sp
	return nil
}

type txLedger struct{ t *tx }

func (l txLedger) Append(_ context.Context, r *model.Reservation) error {
	l.t.s.mu.Lock()
	r.ID = l.t.s.nextIDLocked(kindReservation)
	l.t.s.mu.Unlock()
	r.LeftAt = nil
	r.CostCents = nil
	l.t.lock(rowKey{kindReservation, r.ID})
	l.t.res[r.ID] = *r
	return nil
}

func (l txLedger) GetForUpdate(_ context.Context, id uint64) (model.Reservation, error) {
	if _, ok := l.t.reservation(id); !ok {
		return model.Reservation{}, repository.ErrReservationNotFound
	}
	l.t.lock(rowKey{kindReservation, id})
	r, ok := l.t.reservation(id)
	if !ok {
		return model.Reservation{}, repository.ErrReservationNotFound
	}
	return r, nil
}

func (l txLedger) Close(_ context.Context, id uint64, leftAt time.Time, costCents int64) error {
	l.t.lock(rowKey{kindReservation, id})
	r, ok := l.t.reservation(id)
	if !ok {
		return repository.ErrReservationNotFound
	}
	if r.LeftAt != nil {
		return repository.ErrAlreadyClosed
	}
	end := leftAt.UTC()
	cost := costCents
	r.LeftAt = &end
	r.CostCents = &cost
	l.t.res[id] = r
	return nil
}
