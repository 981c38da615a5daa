package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"

	"github.com/iliyamo/parking-reservation/internal/logging"
	"github.com/iliyamo/parking-reservation/internal/model"
	"github.com/iliyamo/parking-reservation/internal/notify"
	"github.com/iliyamo/parking-reservation/internal/service"
	"github.com/iliyamo/parking-reservation/internal/telemetry"
)

// UserLister lists active accounts by role.
type UserLister interface {
	ListUsers(ctx context.Context, role string) ([]model.User, error)
}

// TokenPurger removes dead refresh tokens.
type TokenPurger interface {
	PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

// Processor runs every task type.  One failed notification is logged and
// skipped; it never fails the whole run.
type Processor struct {
	users   UserLister
	usage   *service.UsageService
	sender  notify.Sender
	tokens  TokenPurger
	metrics *telemetry.Metrics
	log     *zap.Logger
	now     func() time.Time
}

func NewProcessor(users UserLister, usage *service.UsageService, sender notify.Sender, tokens TokenPurger, metrics *telemetry.Metrics, log *zap.Logger) *Processor {
	return &Processor{
		users:   users,
		usage:   usage,
		sender:  sender,
		tokens:  tokens,
		metrics: metrics,
		log:     logging.OrNop(log).Named("jobs"),
		now:     time.Now,
	}
}

// Mux routes task types to their handlers.
func (p *Processor) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeDailyReminder, p.HandleDailyReminder)
	mux.HandleFunc(TypeMonthlyReport, p.HandleMonthlyReport)
	mux.HandleFunc(TypeUserExport, p.HandleExport)
	mux.HandleFunc(TypeTokenPurge, p.HandleTokenPurge)
	return mux
}

func (p *Processor) done(task string, err error) error {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	p.metrics.JobRun(task, outcome)
	return err
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// HandleDailyReminder mails every USER who has not started a
// reservation today.
func (p *Processor) HandleDailyReminder(ctx context.Context, _ *asynq.Task) error {
	users, err := p.users.ListUsers(ctx, model.RoleUser)
	if err != nil {
		return p.done(TypeDailyReminder, fmt.Errorf("list users: %w", err))
	}
	today := startOfDay(p.now())
	w := service.Window{Label: "today", Since: &today}
	sent := 0
	for _, u := range users {
		sessions, err := p.usage.UserSessions(ctx, u.ID, w)
		if err != nil {
			p.log.Warn("reminder: read sessions failed", zap.Uint64("user_id", u.ID), zap.Error(err))
			continue
		}
		if len(sessions) > 0 {
			continue
		}
		body, err := notify.RenderReminder(notify.ReminderData{Name: u.FullName})
		if err != nil {
			return p.done(TypeDailyReminder, err)
		}
		if err := p.sender.Send(ctx, u.Email, "Daily Parking Reminder", body); err != nil {
			p.log.Warn("reminder: send failed", zap.Uint64("user_id", u.ID), zap.Error(err))
			continue
		}
		sent++
	}
	p.log.Info("daily reminders sent", zap.Int("users", len(users)), zap.Int("sent", sent))
	return p.done(TypeDailyReminder, nil)
}

// reportWindow resolves the month a report covers.
func (p *Processor) reportWindow(payload []byte) (service.Window, error) {
	var rp ReportPayload
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &rp); err != nil {
			return service.Window{}, fmt.Errorf("decode report payload: %v: %w", err, asynq.SkipRetry)
		}
	}
	if rp.Month != "" {
		t, err := time.ParseInLocation("2006-01", rp.Month, time.UTC)
		if err != nil {
			return service.Window{}, fmt.Errorf("bad month %q: %w", rp.Month, asynq.SkipRetry)
		}
		return service.MonthWindow(t), nil
	}
	now := p.now().UTC()
	firstOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return service.MonthWindow(firstOfMonth.AddDate(0, 0, -1)), nil
}

// HandleMonthlyReport mails every USER a summary of one calendar month.
func (p *Processor) HandleMonthlyReport(ctx context.Context, t *asynq.Task) error {
	w, err := p.reportWindow(t.Payload())
	if err != nil {
		return p.done(TypeMonthlyReport, err)
	}
	users, err := p.users.ListUsers(ctx, model.RoleUser)
	if err != nil {
		return p.done(TypeMonthlyReport, fmt.Errorf("list users: %w", err))
	}
	month := w.Since.Format("January 2006")
	sent := 0
	for _, u := range users {
		sessions, err := p.usage.UserSessions(ctx, u.ID, w)
		if err != nil {
			p.log.Warn("report: read sessions failed", zap.Uint64("user_id", u.ID), zap.Error(err))
			continue
		}
		body, err := notify.RenderMonthlyReport(reportData(u, month, sessions, w, p.now()))
		if err != nil {
			return p.done(TypeMonthlyReport, err)
		}
		subject := fmt.Sprintf("Your Monthly Parking Activity Report (%s)", month)
		if err := p.sender.Send(ctx, u.Email, subject, body); err != nil {
			p.log.Warn("report: send failed", zap.Uint64("user_id", u.ID), zap.Error(err))
			continue
		}
		sent++
	}
	p.log.Info("monthly reports sent", zap.String("month", w.Label), zap.Int("sent", sent))
	return p.done(TypeMonthlyReport, nil)
}

func reportData(u model.User, month string, sessions []model.Session, w service.Window, now time.Time) notify.ReportData {
	sum := service.Aggregate(u.ID, sessions, w, now, 0)
	d := notify.ReportData{
		Name:          u.FullName,
		Month:         month,
		TotalBookings: sum.Overview.TotalSessions,
		TotalCents:    sum.Overview.TotalExpenditureCents,
		TotalHours:    sum.Overview.TotalHours,
	}
	if sum.Overview.FavoriteLot != nil {
		d.MostUsedLot = sum.Overview.FavoriteLot.Name
	}
	for _, s := range sessions {
		d.Bookings = append(d.Bookings, notify.ReportBooking{
			ID:        s.ID,
			LotName:   s.LotName,
			SpotID:    s.SpotID,
			Date:      s.ParkedAt.UTC().Format("2006-01-02"),
			CostCents: service.SessionCost(s),
		})
	}
	return d
}

// Export builds the CSV for one user's full history.
func (p *Processor) Export(ctx context.Context, userID uint64) ([]byte, error) {
	sessions, err := p.usage.UserSessions(ctx, userID, service.Window{Label: "all"})
	if err != nil {
		return nil, err
	}
	return BuildCSV(sessions)
}

// HandleExport writes the CSV into the task result, where
// Client.ExportStatus picks it up.
func (p *Processor) HandleExport(ctx context.Context, t *asynq.Task) error {
	var payload ExportPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil || payload.UserID == 0 {
		return p.done(TypeUserExport, fmt.Errorf("bad export payload: %w", asynq.SkipRetry))
	}
	parent := otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier(payload.TraceContext))
	ctx, span := telemetry.Tracer().Start(parent, "job.export_user_csv")
	defer span.End()
	span.SetAttributes(attribute.Int64("user.id", int64(payload.UserID)), attribute.String("job.type", TypeUserExport))

	data, err := p.Export(ctx, payload.UserID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return p.done(TypeUserExport, err)
	}
	if rw := t.ResultWriter(); rw != nil {
		if _, err := rw.Write(data); err != nil {
			span.SetStatus(codes.Error, err.Error())
			return p.done(TypeUserExport, fmt.Errorf("write result: %w", err))
		}
	}
	p.log.Info("export built", zap.Uint64("user_id", payload.UserID), zap.Int("bytes", len(data)))
	return p.done(TypeUserExport, nil)
}

// HandleTokenPurge deletes refresh tokens that expired or were revoked
// more than a day ago.
func (p *Processor) HandleTokenPurge(ctx context.Context, _ *asynq.Task) error {
	n, err := p.tokens.PurgeExpired(ctx, p.now().UTC().Add(-24*time.Hour))
	if err != nil {
		return p.done(TypeTokenPurge, err)
	}
	p.log.Info("refresh tokens purged", zap.Int64("rows", n))
	return p.done(TypeTokenPurge, nil)
}
