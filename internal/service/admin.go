package service

import (
	"context"

	"github.com/iliyamo/parking-reservation/internal/model"
)

type LotStats struct {
	LotRef
	PriceCents   int64   `json:"price_cents"`
	Capacity     int     `json:"capacity"`
	Occupied     int     `json:"occupied"`
	Available    int     `json:"available"`
	OccupancyPct float64 `json:"occupancy_pct"`
	Sessions     int     `json:"sessions"`
	RevenueCents int64   `json:"revenue_cents"`
}

type AdminTotals struct {
	Lots         int     `json:"lots"`
	Capacity     int     `json:"capacity"`
	Occupied     int     `json:"occupied"`
	Available    int     `json:"available"`
	OccupancyPct float64 `json:"occupancy_pct"`
	Sessions     int     `json:"sessions"`
	RevenueCents int64   `json:"revenue_cents"`
	ActiveUsers  int     `json:"active_users"`
}

type AdminSummary struct {
	Window Window      `json:"window"`
	Lots   []LotStats  `json:"lots"`
	Totals AdminTotals `json:"totals"`
}

// AdminSummary reports live occupancy per lot together with the sessions
// and revenue of w.  Revenue only counts closed sessions.
func (s *UsageService) AdminSummary(ctx context.Context, w Window) (AdminSummary, error) {
	lots, err := s.store.ListLots(ctx, false)
	if err != nil {
		return AdminSummary{}, classify(err)
	}
	sessions, err := s.store.ListSessions(ctx, model.SessionFilter{Since: w.Since, Until: w.Until})
	if err != nil {
		return AdminSummary{}, classify(err)
	}

	out := AdminSummary{Window: w, Lots: make([]LotStats, 0, len(lots))}
	index := make(map[uint64]int, len(lots))
	for _, l := range lots {
		index[l.ID] = len(out.Lots)
		out.Lots = append(out.Lots, LotStats{
			LotRef:       LotRef{ID: l.ID, Name: l.Name, Address: l.Address},
			PriceCents:   l.PriceCents,
			Capacity:     l.Capacity,
			Occupied:     l.Occupied,
			Available:    l.Available,
			OccupancyPct: pct(float64(l.Occupied), float64(l.Occupied+l.Available)),
		})
	}

	users := map[uint64]struct{}{}
	t := &out.Totals
	for _, sess := range sessions {
		users[sess.UserID] = struct{}{}
		t.Sessions++
		cost := SessionCost(sess)
		t.RevenueCents += cost
		if i, ok := index[sess.LotID]; ok {
			out.Lots[i].Sessions++
			out.Lots[i].RevenueCents += cost
		}
	}
	for _, ls := range out.Lots {
		t.Capacity += ls.Capacity
		t.Occupied += ls.Occupied
		t.Available += ls.Available
	}
	t.Lots = len(out.Lots)
	t.ActiveUsers = len(users)
	t.OccupancyPct = pct(float64(t.Occupied), float64(t.Occupied+t.Available))
	return out, nil
}
