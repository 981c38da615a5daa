package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/parking-reservation/internal/model"
)

func closedSession(id, lotID uint64, lotName string, price int64, start time.Time, d time.Duration, cost *int64) model.Session {
	end := start.Add(d)
	return model.Session{
		Reservation: model.Reservation{ID: id, SpotID: lotID * 10, UserID: 1, VehicleNumber: "KA01", ParkedAt: start, LeftAt: &end, CostCents: cost},
		LotID:       lotID, LotName: lotName, LotAddress: lotName + " St", LotPriceCents: price,
	}
}

func i64(v int64) *int64 { return &v }

func TestAggregateWithoutSessionsIsAllZero(t *testing.T) {
	now := t0
	w, err := ParseWindow("7", "", now)
	require.NoError(t, err)

	sum := Aggregate(1, nil, w, now, 0)
	ov := sum.Overview
	assert.Zero(t, ov.TotalSessions)
	assert.Zero(t, ov.TotalExpenditureCents)
	assert.Zero(t, ov.TotalHours)
	assert.Zero(t, ov.AverageCostCents)
	assert.Zero(t, ov.AverageHours)
	assert.Nil(t, ov.FavoriteLot)
	assert.Empty(t, sum.Lots)
	assert.Empty(t, sum.Recent)
	assert.Equal(t, "", sum.Patterns.MostActiveDay)
	assert.Empty(t, sum.Patterns.PeakHours)
	require.Len(t, sum.Daily, 7)
	for _, p := range sum.Daily {
		assert.Zero(t, p.Sessions)
		assert.Zero(t, p.ExpenditureCents)
	}
	assert.Equal(t, "2025-03-04", sum.Daily[0].Date)
	assert.Equal(t, "2025-03-10", sum.Daily[6].Date)
}

func TestAggregateTotalsAndBreakdown(t *testing.T) {
	now := t0.Add(12 * time.Hour) // 2025-03-10 21:00
	day := func(d int, h int) time.Time { return time.Date(2025, 3, d, h, 0, 0, 0, time.UTC) }

	sessions := []model.Session{
		closedSession(1, 1, "Central", 20, day(7, 9), 45*time.Minute, i64(20)),
		closedSession(2, 2, "North", 10, day(7, 18), 3*time.Hour, nil), // recomputed: 30
		closedSession(3, 1, "Central", 20, day(9, 9), 2*time.Hour, i64(40)),
		{
			Reservation: model.Reservation{ID: 4, SpotID: 20, UserID: 1, ParkedAt: day(10, 19)},
			LotID:       2, LotName: "North", LotAddress: "North St", LotPriceCents: 10,
		},
	}
	w, err := ParseWindow("", "2025-03-06", now)
	require.NoError(t, err)

	sum := Aggregate(1, sessions, w, now, 3)
	ov := sum.Overview
	assert.Equal(t, 4, ov.TotalSessions)
	assert.Equal(t, 3, ov.CompletedSessions)
	assert.Equal(t, 1, ov.ActiveSessions)
	assert.Equal(t, int64(90), ov.TotalExpenditureCents)
	assert.Equal(t, 7.75, ov.TotalHours) // 0.75 + 3 + 2 + 2 (open, to now)
	assert.Equal(t, 30.0, ov.AverageCostCents)
	assert.Equal(t, 1.94, ov.AverageHours)
	require.NotNil(t, ov.FavoriteLot)
	assert.Equal(t, uint64(1), ov.FavoriteLot.ID, "tie on session count goes to the lot seen first")

	require.Len(t, sum.Lots, 2)
	assert.Equal(t, "Central", sum.Lots[0].Name)
	assert.Equal(t, int64(60), sum.Lots[0].ExpenditureCents)
	assert.Equal(t, 66.67, sum.Lots[0].ExpenditurePct)
	assert.Equal(t, 50.0, sum.Lots[0].SessionsPct)
	assert.Equal(t, int64(30), sum.Lots[1].ExpenditureCents)
	assert.Equal(t, 33.33, sum.Lots[1].ExpenditurePct)

	require.Len(t, sum.Recent, 3)
	assert.Equal(t, uint64(4), sum.Recent[0].ID)
	assert.Equal(t, SessionOngoing, sum.Recent[0].Status)
	assert.Zero(t, sum.Recent[0].CostCents)
	assert.Equal(t, uint64(3), sum.Recent[1].ID)
	assert.Equal(t, SessionCompleted, sum.Recent[1].Status)
	assert.Equal(t, int64(30), sum.Recent[2].CostCents)

	assert.Equal(t, 2, sum.Patterns.DayOfWeek[time.Friday])
	assert.Equal(t, "Friday", sum.Patterns.MostActiveDay)
	assert.Equal(t, 2, sum.Patterns.HourOfDay[9])
	assert.Equal(t, []int{9, 18, 19}, sum.Patterns.PeakHours)

	require.Len(t, sum.Daily, 5) // 6th..10th inclusive
	assert.Equal(t, DailyPoint{Date: "2025-03-06"}, sum.Daily[0])
	assert.Equal(t, 2, sum.Daily[1].Sessions)
	assert.Equal(t, int64(50), sum.Daily[1].ExpenditureCents)
	assert.Zero(t, sum.Daily[2].Sessions)
	assert.Equal(t, int64(40), sum.Daily[3].ExpenditureCents)
}

func TestAggregateAllTimeStartsAtFirstSession(t *testing.T) {
	start := time.Date(2025, 3, 8, 10, 0, 0, 0, time.UTC)
	sessions := []model.Session{closedSession(1, 1, "Central", 10, start, time.Hour, nil)}
	w, err := ParseWindow("all", "", t0)
	require.NoError(t, err)

	sum := Aggregate(1, sessions, w, t0, 0)
	require.Len(t, sum.Daily, 3)
	assert.Equal(t, "2025-03-08", sum.Daily[0].Date)
	assert.Equal(t, int64(10), sum.Daily[0].ExpenditureCents)
}

func TestMonthWindowSeriesStopsAtMonthEnd(t *testing.T) {
	w := MonthWindow(time.Date(2025, 2, 14, 0, 0, 0, 0, time.UTC))
	sum := Aggregate(1, nil, w, t0, 0)
	require.Len(t, sum.Daily, 28)
	assert.Equal(t, "2025-02-28", sum.Daily[27].Date)
	assert.Equal(t, "2025-02", w.Label)
}

func TestParseWindow(t *testing.T) {
	w, err := ParseWindow("", "", t0)
	require.NoError(t, err)
	assert.Equal(t, "30", w.Label)
	assert.Equal(t, time.Date(2025, 2, 9, 0, 0, 0, 0, time.UTC), *w.Since)

	w, err = ParseWindow("all", "", t0)
	require.NoError(t, err)
	assert.Nil(t, w.Since)

	w, err = ParseWindow("7", "2025-01-01", t0)
	require.NoError(t, err)
	assert.Equal(t, "since", w.Label)

	_, err = ParseWindow("14", "", t0)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = ParseWindow("", "01/01/2025", t0)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = ParseWindow("", "2025-04-01", t0)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestParseWindowSinceIsBounded(t *testing.T) {
	year, err := ParseWindow("365", "", t0)
	require.NoError(t, err)

	w, err := ParseWindow("", year.Since.Format("2006-01-02"), t0)
	require.NoError(t, err)
	assert.Len(t, Aggregate(1, nil, w, t0, 0).Daily, MaxWindowDays)

	_, err = ParseWindow("", year.Since.AddDate(0, 0, -1).Format("2006-01-02"), t0)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = ParseWindow("", "0001-01-01", t0)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestGetUserSummaryAccess(t *testing.T) {
	f := newFixture(t, 20, 2)
	ctx := context.Background()
	res, err := f.booking.StartReservation(ctx, f.spots[0].ID, 1, "KA01")
	require.NoError(t, err)
	f.clock.Advance(45 * time.Minute)
	_, err = f.booking.ReleaseReservation(ctx, res.ID, 1, nil)
	require.NoError(t, err)

	usage := NewUsageService(f.store).WithClock(f.clock.Now)
	w, err := ParseWindow("7", "", f.clock.Now())
	require.NoError(t, err)

	_, err = usage.GetUserSummary(ctx, 2, model.RoleUser, 1, w, 0)
	assert.ErrorIs(t, err, ErrForbidden)

	sum, err := usage.GetUserSummary(ctx, 1, model.RoleUser, 1, w, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(20), sum.Overview.TotalExpenditureCents)

	sum, err = usage.GetUserSummary(ctx, 99, model.RoleAdmin, 1, w, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Overview.TotalSessions)
}

func TestAdminSummary(t *testing.T) {
	f := newFixture(t, 20, 4)
	ctx := context.Background()
	r1, err := f.booking.StartReservation(ctx, f.spots[0].ID, 1, "KA01")
	require.NoError(t, err)
	_, err = f.booking.StartReservation(ctx, f.spots[1].ID, 2, "KA02")
	require.NoError(t, err)
	f.clock.Advance(90 * time.Minute)
	_, err = f.booking.ReleaseReservation(ctx, r1.ID, 1, nil)
	require.NoError(t, err)

	usage := NewUsageService(f.store).WithClock(f.clock.Now)
	w, err := ParseWindow("all", "", f.clock.Now())
	require.NoError(t, err)
	sum, err := usage.AdminSummary(ctx, w)
	require.NoError(t, err)

	require.Len(t, sum.Lots, 1)
	ls := sum.Lots[0]
	assert.Equal(t, 4, ls.Capacity)
	assert.Equal(t, 1, ls.Occupied)
	assert.Equal(t, 3, ls.Available)
	assert.Equal(t, 25.0, ls.OccupancyPct)
	assert.Equal(t, 2, ls.Sessions)
	assert.Equal(t, int64(40), ls.RevenueCents)
	assert.Equal(t, 2, sum.Totals.ActiveUsers)
	assert.Equal(t, int64(40), sum.Totals.RevenueCents)
}
