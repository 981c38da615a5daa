package service

import (
	"context"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/iliyamo/parking-reservation/internal/billing"
	"github.com/iliyamo/parking-reservation/internal/model"
)

// DefaultRecentLimit is the number of recent sessions in a summary when
// the caller does not ask for a specific count.
const DefaultRecentLimit = 10

const dateLayout = "2006-01-02"

// MaxWindowDays bounds day-based windows, including since.  Longer
// ranges are served by period=all.
const MaxWindowDays = 365

// Window is the range a summary covers, applied to session start times.
// A nil Since means all time; a nil Until means up to now.
type Window struct {
	Label string     `json:"label"`
	Since *time.Time `json:"since,omitempty"`
	Until *time.Time `json:"until,omitempty"`
}

// ParseWindow reads the period query parameters.  since (YYYY-MM-DD)
// wins over period; period is one of 7, 30, 90, 365 or all and defaults
// to 30.  Day-based windows include today.
func ParseWindow(period, since string, now time.Time) (Window, error) {
	today := startOfDay(now)
	if since = strings.TrimSpace(since); since != "" {
		t, err := time.ParseInLocation(dateLayout, since, time.UTC)
		if err != nil {
			return Window{}, invalidf("since must be a date formatted as YYYY-MM-DD")
		}
		if t.After(today) {
			return Window{}, invalidf("since must not be in the future")
		}
		if t.Before(today.AddDate(0, 0, -(MaxWindowDays - 1))) {
			return Window{}, invalidf("since must be within the last %d days", MaxWindowDays)
		}
		return Window{Label: "since", Since: &t}, nil
	}
	switch p := strings.TrimSpace(period); p {
	case "all":
		return Window{Label: "all"}, nil
	case "", "7", "30", "90", "365":
		if p == "" {
			p = "30"
		}
		days, _ := strconv.Atoi(p)
		from := today.AddDate(0, 0, -(days - 1))
		return Window{Label: p, Since: &from}, nil
	default:
		return Window{}, invalidf("period must be one of 7, 30, 90, 365 or all")
	}
}

// MonthWindow covers the calendar month containing t.
func MonthWindow(t time.Time) Window {
	t = t.UTC()
	from := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)
	return Window{Label: from.Format("2006-01"), Since: &from, Until: &to}
}

func (w Window) filter(userID uint64) model.SessionFilter {
	return model.SessionFilter{UserID: userID, Since: w.Since, Until: w.Until}
}

type LotRef struct {
	ID      uint64 `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address"`
}

// Overview holds the headline totals of a summary.  Open sessions count
// towards hours (up to now) but not towards expenditure.
type Overview struct {
	TotalSessions         int     `json:"total_sessions"`
	CompletedSessions     int     `json:"completed_sessions"`
	ActiveSessions        int     `json:"active_sessions"`
	TotalExpenditureCents int64   `json:"total_expenditure_cents"`
	TotalHours            float64 `json:"total_hours"`
	AverageCostCents      float64 `json:"average_cost_cents"`
	AverageHours          float64 `json:"average_hours"`
	FavoriteLot           *LotRef `json:"favorite_lot"`
}

type LotBreakdown struct {
	LotRef
	Sessions         int     `json:"sessions"`
	ExpenditureCents int64   `json:"expenditure_cents"`
	Hours            float64 `json:"hours"`
	SessionsPct      float64 `json:"sessions_pct"`
	ExpenditurePct   float64 `json:"expenditure_pct"`
	HoursPct         float64 `json:"hours_pct"`
}

type RecentSession struct {
	ID            uint64     `json:"id"`
	Lot           LotRef     `json:"lot"`
	SpotID        uint64     `json:"spot_id"`
	VehicleNumber string     `json:"vehicle_number"`
	ParkedAt      time.Time  `json:"parked_at"`
	LeftAt        *time.Time `json:"left_at"`
	DurationHours float64    `json:"duration_hours"`
	CostCents     int64      `json:"cost_cents"`
	Status        string     `json:"status"`
}

const (
	SessionCompleted = "completed"
	SessionOngoing   = "ongoing"
)

// Patterns are histograms over session start times in UTC.  DayOfWeek is
// indexed Sunday first.
type Patterns struct {
	DayOfWeek     [7]int  `json:"day_of_week"`
	HourOfDay     [24]int `json:"hour_of_day"`
	MostActiveDay string  `json:"most_active_day"`
	PeakHours     []int   `json:"peak_hours"`
}

type DailyPoint struct {
	Date             string  `json:"date"`
	Sessions         int     `json:"sessions"`
	ExpenditureCents int64   `json:"expenditure_cents"`
	Hours            float64 `json:"hours"`
}

type UserSummary struct {
	UserID   uint64          `json:"user_id"`
	Window   Window          `json:"window"`
	Overview Overview        `json:"overview"`
	Lots     []LotBreakdown  `json:"lots"`
	Recent   []RecentSession `json:"recent_sessions"`
	Patterns Patterns        `json:"patterns"`
	Daily    []DailyPoint    `json:"daily"`
}

// SessionCost is the persisted cost of a closed session, or its billed
// cost when none was stored.  Open sessions cost nothing yet.
func SessionCost(s model.Session) int64 {
	if s.IsOpen() {
		return 0
	}
	if s.CostCents != nil {
		return *s.CostCents
	}
	return billing.Compute(s.LotPriceCents, s.ParkedAt, *s.LeftAt)
}

func sessionHours(s model.Session, now time.Time) float64 {
	if s.IsOpen() {
		return billing.Hours(s.ParkedAt, now)
	}
	return billing.Hours(s.ParkedAt, *s.LeftAt)
}

// Aggregate builds a summary from sessions ordered by start time, oldest
// first.  The favourite lot is the lot with most sessions; on a tie the
// lot seen first in that order wins.  limit <= 0 selects
// DefaultRecentLimit.
func Aggregate(userID uint64, sessions []model.Session, w Window, now time.Time, limit int) UserSummary {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	now = now.UTC()
	sum := UserSummary{UserID: userID, Window: w, Lots: []LotBreakdown{}, Recent: []RecentSession{}}

	byLot := map[uint64]*LotBreakdown{}
	var lotOrder []uint64
	daily := map[string]*DailyPoint{}
	ov := &sum.Overview

	for _, s := range sessions {
		cost := SessionCost(s)
		hours := sessionHours(s, now)

		ov.TotalSessions++
		if s.IsOpen() {
			ov.ActiveSessions++
		} else {
			ov.CompletedSessions++
		}
		ov.TotalExpenditureCents += cost
		ov.TotalHours += hours

		lb, ok := byLot[s.LotID]
		if !ok {
			lb = &LotBreakdown{LotRef: LotRef{ID: s.LotID, Name: s.LotName, Address: s.LotAddress}}
			byLot[s.LotID] = lb
			lotOrder = append(lotOrder, s.LotID)
		}
		lb.Sessions++
		lb.ExpenditureCents += cost
		lb.Hours += hours

		start := s.ParkedAt.UTC()
		sum.Patterns.DayOfWeek[start.Weekday()]++
		sum.Patterns.HourOfDay[start.Hour()]++

		key := start.Format(dateLayout)
		dp, ok := daily[key]
		if !ok {
			dp = &DailyPoint{Date: key}
			daily[key] = dp
		}
		dp.Sessions++
		dp.ExpenditureCents += cost
		dp.Hours += hours
	}

	ov.TotalHours = round2(ov.TotalHours)
	ov.AverageCostCents = round2(ratio(float64(ov.TotalExpenditureCents), float64(ov.CompletedSessions)))
	ov.AverageHours = round2(ratio(ov.TotalHours, float64(ov.TotalSessions)))

	best := 0
	for _, id := range lotOrder {
		lb := byLot[id]
		if lb.Sessions > best {
			best = lb.Sessions
			ref := lb.LotRef
			ov.FavoriteLot = &ref
		}
		lb.Hours = round2(lb.Hours)
		lb.SessionsPct = pct(float64(lb.Sessions), float64(ov.TotalSessions))
		lb.ExpenditurePct = pct(float64(lb.ExpenditureCents), float64(ov.TotalExpenditureCents))
		lb.HoursPct = pct(lb.Hours, ov.TotalHours)
		sum.Lots = append(sum.Lots, *lb)
	}
	sort.SliceStable(sum.Lots, func(i, j int) bool {
		return sum.Lots[i].ExpenditureCents > sum.Lots[j].ExpenditureCents
	})

	for i := len(sessions) - 1; i >= 0 && len(sum.Recent) < limit; i-- {
		s := sessions[i]
		rs := RecentSession{
			ID:            s.ID,
			Lot:           LotRef{ID: s.LotID, Name: s.LotName, Address: s.LotAddress},
			SpotID:        s.SpotID,
			VehicleNumber: s.VehicleNumber,
			ParkedAt:      s.ParkedAt,
			LeftAt:        s.LeftAt,
			DurationHours: round2(sessionHours(s, now)),
			CostCents:     SessionCost(s),
			Status:        SessionCompleted,
		}
		if s.IsOpen() {
			rs.Status = SessionOngoing
		}
		sum.Recent = append(sum.Recent, rs)
	}

	sum.Patterns.MostActiveDay, sum.Patterns.PeakHours = peaks(sum.Patterns)
	sum.Daily = dailySeries(daily, w, sessions, now)
	return sum
}

// peaks picks the busiest weekday (earliest on ties) and up to three
// busiest hours in ascending hour order.  Both are empty without data.
func peaks(p Patterns) (string, []int) {
	day, dayMax := "", 0
	for d, n := range p.DayOfWeek {
		if n > dayMax {
			day, dayMax = time.Weekday(d).String(), n
		}
	}
	hours := make([]int, 0, 24)
	for h, n := range p.HourOfDay {
		if n > 0 {
			hours = append(hours, h)
		}
	}
	sort.SliceStable(hours, func(i, j int) bool { return p.HourOfDay[hours[i]] > p.HourOfDay[hours[j]] })
	if len(hours) > 3 {
		hours = hours[:3]
	}
	sort.Ints(hours)
	return day, hours
}

// dailySeries emits one point per day from the window start (or the first
// session for all-time windows) to the window end, zero-filling gaps.
func dailySeries(daily map[string]*DailyPoint, w Window, sessions []model.Session, now time.Time) []DailyPoint {
	last := startOfDay(now)
	if w.Until != nil && !w.Until.After(now) {
		last = startOfDay(w.Until.Add(-time.Nanosecond))
	}
	var first time.Time
	switch {
	case w.Since != nil:
		first = startOfDay(*w.Since)
	case len(sessions) > 0:
		first = startOfDay(sessions[0].ParkedAt)
	default:
		first = last
	}
	out := []DailyPoint{}
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		key := d.Format(dateLayout)
		if dp, ok := daily[key]; ok {
			dp.Hours = round2(dp.Hours)
			out = append(out, *dp)
			continue
		}
		out = append(out, DailyPoint{Date: key})
	}
	return out
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ratio returns a/b, or 0 when b is 0.
func ratio(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}

func pct(part, total float64) float64 {
	return round2(ratio(part, total) * 100)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// UsageService serves the read-only reports.  Reads do not lock; a
// booking committing concurrently may or may not be included.
type UsageService struct {
	store Store
	now   func() time.Time
}

func NewUsageService(store Store) *UsageService {
	return &UsageService{store: store, now: time.Now}
}

// WithClock replaces the time source.
func (s *UsageService) WithClock(now func() time.Time) *UsageService {
	s.now = now
	return s
}

// Now is the reporting clock, in UTC.  Handlers resolve windows with it.
func (s *UsageService) Now() time.Time { return s.now().UTC() }

func canRead(requesterID uint64, requesterRole string, userID uint64) bool {
	return requesterID == userID || requesterRole == model.RoleAdmin
}

// GetUserSummary aggregates userID's sessions over w.  Only the user and
// admins may read it.
func (s *UsageService) GetUserSummary(ctx context.Context, requesterID uint64, requesterRole string, userID uint64, w Window, limit int) (UserSummary, error) {
	if !canRead(requesterID, requesterRole, userID) {
		return UserSummary{}, ErrForbidden
	}
	sessions, err := s.store.ListSessions(ctx, w.filter(userID))
	if err != nil {
		return UserSummary{}, classify(err)
	}
	return Aggregate(userID, sessions, w, s.now(), limit), nil
}

// UserSessions returns userID's sessions in w, oldest first.  The export
// and reporting jobs read through here.
func (s *UsageService) UserSessions(ctx context.Context, userID uint64, w Window) ([]model.Session, error) {
	sessions, err := s.store.ListSessions(ctx, w.filter(userID))
	if err != nil {
		return nil, classify(err)
	}
	return sessions, nil
}
