package memstore

import (
	"context"
	"sort"

	"github.com/iliyamo/parking-reservation/internal/model"
	"github.com/iliyamo/parking-reservation/internal/repository"
)

// sessionLocked joins a reservation with its lot; s.mu must be held.
func (s *Store) sessionLocked(r model.Reservation) model.Session {
	sess := model.Session{Reservation: r}
	if sp, ok := s.spots[r.SpotID]; ok {
		l := s.lots[sp.LotID]
		sess.LotID = l.ID
		sess.LotName = l.Name
		sess.LotAddress = l.Address
		sess.LotPriceCents = l.PriceCents
	}
	return sess
}

func (s *Store) ListSessions(_ context.Context, f model.SessionFilter) ([]model.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []model.Session{}
	for _, r := range s.res {
		if f.UserID != 0 && r.UserID != f.UserID {
			continue
		}
		if f.Since != nil && r.ParkedAt.Before(*f.Since) {
			continue
		}
		if f.Until != nil && !r.ParkedAt.Before(*f.Until) {
			continue
		}
		sess := s.sessionLocked(r)
		if f.LotID != 0 && sess.LotID != f.LotID {
			continue
		}
		out = append(out, sess)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ParkedAt.Equal(out[j].ParkedAt) {
			return out[i].ParkedAt.Before(out[j].ParkedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) GetSession(_ context.Context, id uint64) (model.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.res[id]
	if !ok {
		return model.Session{}, repository.ErrReservationNotFound
	}
	return s.sessionLocked(r), nil
}
