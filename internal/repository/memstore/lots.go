package memstore

import (
	"context"
	"sort"

	"github.com/iliyamo/parking-reservation/internal/model"
	"github.com/iliyamo/parking-reservation/internal/repository"
)

// duplicateLocked reports whether another lot uses the same address and
// pincode.  s.mu must be held.
func (s *Store) duplicateLocked(address, pincode string, except uint64) bool {
	for id, l := range s.lots {
		if id != except && l.Address == address && l.Pincode == pincode {
			return true
		}
	}
	return false
}

// addSpotsLocked provisions n available spots; s.mu must be held for writing.
func (s *Store) addSpotsLocked(lotID uint64, n int) {
	now := s.now()
	for i := 0; i < n; i++ {
		id := s.nextIDLocked(kindSpot)
		s.spots[id] = model.ParkingSpot{ID: id, LotID: lotID, Status: model.SpotAvailable, CreatedAt: now}
	}
}

// deleteSpotLocked removes a spot and every reservation made on it.
func (s *Store) deleteSpotLocked(spotID uint64) {
	delete(s.spots, spotID)
	for id, r := range s.res {
		if r.SpotID == spotID {
			delete(s.res, id)
		}
	}
}

func (s *Store) CreateLot(_ context.Context, lot *model.ParkingLot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.duplicateLocked(lot.Address, lot.Pincode, 0) {
		return repository.ErrLotExists
	}
	now := s.now()
	lot.ID = s.nextIDLocked(kindLot)
	lot.CreatedAt = now
	lot.UpdatedAt = now
	s.lots[lot.ID] = *lot
	s.addSpotsLocked(lot.ID, lot.Capacity)
	return nil
}

func (s *Store) GetLot(_ context.Context, id uint64) (model.ParkingLot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.lots[id]
	if !ok {
		return model.ParkingLot{}, repository.ErrLotNotFound
	}
	return l, nil
}

func (s *Store) ListLots(_ context.Context, withSpots bool) ([]model.LotOverview, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.LotOverview, 0, len(s.lots))
	index := make(map[uint64]int, len(s.lots))
	for _, l := range s.lots {
		out = append(out, model.LotOverview{ParkingLot: l})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	for i := range out {
		index[out[i].ID] = i
	}
	for _, sp := range s.sortedSpotsLocked(0) {
		i, ok := index[sp.LotID]
		if !ok {
			continue
		}
		if sp.Status == model.SpotAvailable {
			out[i].Available++
		} else {
			out[i].Occupied++
		}
		if withSpots {
			out[i].Spots = append(out[i].Spots, sp)
		}
	}
	return out, nil
}

// sortedSpotsLocked returns the spots of a lot (all lots when lotID is 0)
// ordered by id.
func (s *Store) sortedSpotsLocked(lotID uint64) []model.ParkingSpot {
	var out []model.ParkingSpot
	for _, sp := range s.spots {
		if lotID == 0 || sp.LotID == lotID {
			out = append(out, sp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) UpdateLot(_ context.Context, lot *model.ParkingLot) error {
	unlock := s.lockLot(lot.ID)
	defer unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.lots[lot.ID]
	if !ok {
		return repository.ErrLotNotFound
	}
	if s.duplicateLocked(lot.Address, lot.Pincode, lot.ID) {
		return repository.ErrLotExists
	}
	switch {
	case lot.Capacity > cur.Capacity:
		s.addSpotsLocked(lot.ID, lot.Capacity-cur.Capacity)
	case lot.Capacity < cur.Capacity:
		need := cur.Capacity - lot.Capacity
		spots := s.sortedSpotsLocked(lot.ID)
		var victims []uint64
		for i := len(spots) - 1; i >= 0 && len(victims) < need; i-- {
			if spots[i].Status == model.SpotAvailable {
				victims = append(victims, spots[i].ID)
			}
		}
		if len(victims) < need {
			return repository.ErrConflict
		}
		for _, id := range victims {
			s.deleteSpotLocked(id)
		}
	}
	lot.CreatedAt = cur.CreatedAt
	lot.UpdatedAt = s.now()
	s.lots[lot.ID] = *lot
	return nil
}

func (s *Store) DeleteLot(_ context.Context, id uint64) error {
	unlock := s.lockLot(id)
	defer unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lots[id]; !ok {
		return repository.ErrLotNotFound
	}
	spots := s.sortedSpotsLocked(id)
	for _, sp := range spots {
		if sp.Status == model.SpotOccupied {
			return repository.ErrConflict
		}
	}
	for _, sp := range spots {
		s.deleteSpotLocked(sp.ID)
	}
	delete(s.lots, id)
	return nil
}

func (s *Store) CountAvailable(_ context.Context, lotID uint64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.lots[lotID]; !ok {
		return 0, repository.ErrLotNotFound
	}
	n := 0
	for _, sp := range s.spots {
		if sp.LotID == lotID && sp.Status == model.SpotAvailable {
			n++
		}
	}
	return n, nil
}

func (s *Store) ListSpots(_ context.Context, lotID uint64, status model.SpotStatus) ([]model.ParkingSpot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.lots[lotID]; !ok {
		return nil, repository.ErrLotNotFound
	}
	out := []model.ParkingSpot{}
	for _, sp := range s.sortedSpotsLocked(lotID) {
		if status == "" || sp.Status == status {
			out = append(out, sp)
		}
	}
	return out, nil
}

func (s *Store) GetSpotDetail(_ context.Context, spotID uint64) (model.SpotDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sp, ok := s.spots[spotID]
	if !ok {
		return model.SpotDetail{}, repository.ErrSpotNotFound
	}
	d := model.SpotDetail{ParkingSpot: sp, LotName: s.lots[sp.LotID].Name}
	if sp.Status != model.SpotOccupied {
		return d, nil
	}
	for _, r := range s.res {
		if r.SpotID == spotID && r.IsOpen() {
			open := r
			d.Open = &open
			break
		}
	}
	return d, nil
}

func (s *Store) DeleteSpot(_ context.Context, spotID uint64) error {
	unlock := s.lockRows([]rowKey{{kindSpot, spotID}})
	defer unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	sp, ok := s.spots[spotID]
	if !ok {
		return repository.ErrSpotNotFound
	}
	if sp.Status != model.SpotAvailable {
		return repository.ErrConflict
	}
	s.deleteSpotLocked(spotID)
	if lot, ok := s.lots[sp.LotID]; ok && lot.Capacity > 0 {
		lot.Capacity--
		lot.UpdatedAt = s.now()
		s.lots[sp.LotID] = lot
	}
	return nil
}
