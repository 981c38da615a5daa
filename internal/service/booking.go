// Package service holds the booking engine and the read-side services
// built on top of the repository interfaces.  Every operation takes a
// context, returns a typed error from errors.go and never panics on a
// single request's failure.
package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/iliyamo/parking-reservation/internal/billing"
	"github.com/iliyamo/parking-reservation/internal/logging"
	"github.com/iliyamo/parking-reservation/internal/model"
	"github.com/iliyamo/parking-reservation/internal/repository"
	"github.com/iliyamo/parking-reservation/internal/telemetry"
)

// MaxVehicleNumberLen bounds the vehicle registration accepted on start.
const MaxVehicleNumberLen = 20

// Store is everything the services need from a storage backend.  Both
// repository.SQLStore and memstore.Store satisfy it.
type Store interface {
	repository.TxRunner
	repository.LotStore
	repository.SessionReader
}

// EventPublisher receives reservation events after a booking commits.
// Publishing is best-effort: a failure is logged and never undoes the
// booking.
type EventPublisher interface {
	Publish(ctx context.Context, ev model.ReservationEvent) error
}

// BookingService is the booking engine.  Start flips the spot state and
// appends the reservation in one transaction; release closes the
// reservation and frees the spot in one transaction.
type BookingService struct {
	store   Store
	events  EventPublisher
	metrics *telemetry.Metrics
	log     *zap.Logger
	now     func() time.Time
}

// NewBookingService wires the engine.  events and metrics may be nil.
func NewBookingService(store Store, events EventPublisher, metrics *telemetry.Metrics, log *zap.Logger) *BookingService {
	return &BookingService{
		store:   store,
		events:  events,
		metrics: metrics,
		log:     logging.OrNop(log).Named("booking"),
		now:     time.Now,
	}
}

// WithClock replaces the time source.
func (s *BookingService) WithClock(now func() time.Time) *BookingService {
	s.now = now
	return s
}

// timestamps are stored with microsecond precision
func (s *BookingService) clock() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

// Receipt is the outcome of a successful release.
type Receipt struct {
	ReservationID uint64    `json:"reservation_id"`
	SpotID        uint64    `json:"spot_id"`
	LotID         uint64    `json:"lot_id"`
	ParkedAt      time.Time `json:"parked_at"`
	LeftAt        time.Time `json:"left_at"`
	DurationHours float64   `json:"duration_hours"`
	BilledHours   int64     `json:"billed_hours"`
	CostCents     int64     `json:"cost_cents"`
}

// ReservationView is a session with its lifecycle status and, while
// open, the cost accrued so far.
type ReservationView struct {
	model.Session
	Status             string `json:"status"`
	EstimatedCostCents *int64 `json:"estimated_cost_cents,omitempty"`
}

const (
	StatusActive    = "active"
	StatusParkedOut = "parked_out"
)

func normalizeVehicle(v string) (string, error) {
	v = strings.ToUpper(strings.TrimSpace(v))
	if v == "" {
		return "", invalidf("vehicle number is required")
	}
	if len(v) > MaxVehicleNumberLen {
		return "", invalidf("vehicle number must be at most %d characters", MaxVehicleNumberLen)
	}
	return v, nil
}

// StartReservation occupies spotID for userID.  The spot state flips
// first and the reservation row is appended in the same transaction, so
// a failure at any step leaves neither change behind.
func (s *BookingService) StartReservation(ctx context.Context, spotID, userID uint64, vehicle string) (model.Reservation, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "booking.start", trace.WithAttributes(
		attribute.Int64("spot.id", int64(spotID)),
		attribute.Int64("user.id", int64(userID)),
	))
	defer span.End()
	defer s.metrics.ObserveOperation("start", time.Now())

	vehicle, err := normalizeVehicle(vehicle)
	if err != nil {
		return model.Reservation{}, s.fail(ctx, span, "start", err)
	}
	res, lotID, err := s.start(ctx, spotID, userID, vehicle)
	if err != nil {
		return model.Reservation{}, s.fail(ctx, span, "start", err)
	}
	s.metrics.ReservationStarted()
	span.SetAttributes(attribute.Int64("reservation.id", int64(res.ID)))
	s.log.Info("reservation started",
		zap.Uint64("reservation_id", res.ID), zap.Uint64("spot_id", spotID),
		zap.Uint64("lot_id", lotID), zap.Uint64("user_id", userID))
	s.publish(ctx, model.EventReservationStarted, res, lotID)
	return res, nil
}

// StartInLot occupies the first available spot of a lot, trying spots in
// id order.  A spot taken by a concurrent caller between the listing and
// the flip is skipped.
func (s *BookingService) StartInLot(ctx context.Context, lotID, userID uint64, vehicle string) (model.Reservation, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "booking.start_in_lot", trace.WithAttributes(
		attribute.Int64("lot.id", int64(lotID)),
		attribute.Int64("user.id", int64(userID)),
	))
	defer span.End()
	defer s.metrics.ObserveOperation("start_in_lot", time.Now())

	vehicle, err := normalizeVehicle(vehicle)
	if err != nil {
		return model.Reservation{}, s.fail(ctx, span, "start", err)
	}
	spots, err := s.store.ListSpots(ctx, lotID, model.SpotAvailable)
	if err != nil {
		return model.Reservation{}, s.fail(ctx, span, "start", classify(err))
	}
	sort.Slice(spots, func(i, j int) bool { return spots[i].ID < spots[j].ID })
	for _, sp := range spots {
		res, gotLot, err := s.start(ctx, sp.ID, userID, vehicle)
		if errors.Is(err, ErrSpotNotAvailable) || errors.Is(err, ErrSpotNotFound) {
			continue
		}
		if err != nil {
			return model.Reservation{}, s.fail(ctx, span, "start", err)
		}
		s.metrics.ReservationStarted()
		s.log.Info("reservation started",
			zap.Uint64("reservation_id", res.ID), zap.Uint64("spot_id", sp.ID),
			zap.Uint64("lot_id", gotLot), zap.Uint64("user_id", userID))
		s.publish(ctx, model.EventReservationStarted, res, gotLot)
		return res, nil
	}
	return model.Reservation{}, s.fail(ctx, span, "start", ErrSpotNotAvailable)
}

func (s *BookingService) start(ctx context.Context, spotID, userID uint64, vehicle string) (model.Reservation, uint64, error) {
	var res model.Reservation
	var lotID uint64
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		if err := tx.Spots().TrySetOccupied(ctx, spotID); err != nil {
			return err
		}
		lot, err := tx.LotForSpot(ctx, spotID)
		if err != nil {
			return err
		}
		r := model.Reservation{
			SpotID:        spotID,
			UserID:        userID,
			VehicleNumber: vehicle,
			ParkedAt:      s.clock(),
		}
		if err := tx.Ledger().Append(ctx, &r); err != nil {
			return err
		}
		res, lotID = r, lot.ID
		return nil
	})
	if err != nil {
		return model.Reservation{}, 0, classify(err)
	}
	return res, lotID, nil
}

// ReleaseReservation closes an open reservation owned by requesterID and
// frees its spot.  The cost is explicitCost when given, otherwise it is
// billed from the lot's hourly price.  Of two concurrent releases of the
// same reservation exactly one succeeds; the other sees ErrAlreadyClosed.
func (s *BookingService) ReleaseReservation(ctx context.Context, reservationID, requesterID uint64, explicitCost *int64) (Receipt, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "booking.release", trace.WithAttributes(
		attribute.Int64("reservation.id", int64(reservationID)),
		attribute.Int64("user.id", int64(requesterID)),
	))
	defer span.End()
	defer s.metrics.ObserveOperation("release", time.Now())

	if explicitCost != nil && *explicitCost < 0 {
		return Receipt{}, s.fail(ctx, span, "release", invalidf("cost must not be negative"))
	}

	var rc Receipt
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		res, err := tx.Ledger().GetForUpdate(ctx, reservationID)
		if err != nil {
			return err
		}
		if res.UserID != requesterID {
			return ErrForbidden
		}
		if !res.IsOpen() {
			return ErrAlreadyClosed
		}
		lot, err := tx.LotForSpot(ctx, res.SpotID)
		if err != nil {
			return err
		}
		end := s.clock()
		if end.Before(res.ParkedAt) {
			end = res.ParkedAt
		}
		cost := billing.Compute(lot.PriceCents, res.ParkedAt, end)
		if explicitCost != nil {
			cost = *explicitCost
		}
		if err := tx.Ledger().Close(ctx, res.ID, end, cost); err != nil {
			return err
		}
		if err := tx.Spots().SetAvailable(ctx, res.SpotID); err != nil {
			return err
		}
		rc = Receipt{
			ReservationID: res.ID,
			SpotID:        res.SpotID,
			LotID:         lot.ID,
			ParkedAt:      res.ParkedAt,
			LeftAt:        end,
			DurationHours: billing.Hours(res.ParkedAt, end),
			BilledHours:   billing.BilledHours(res.ParkedAt, end),
			CostCents:     cost,
		}
		return nil
	})
	if err != nil {
		return Receipt{}, s.fail(ctx, span, "release", classify(err))
	}

	s.metrics.ReservationReleased(rc.CostCents)
	span.SetAttributes(attribute.Int64("reservation.cost_cents", rc.CostCents))
	s.log.Info("reservation released",
		zap.Uint64("reservation_id", rc.ReservationID), zap.Uint64("spot_id", rc.SpotID),
		zap.Int64("cost_cents", rc.CostCents), zap.Bool("explicit_cost", explicitCost != nil))
	cost := rc.CostCents
	left := rc.LeftAt
	s.publish(ctx, model.EventReservationReleased, model.Reservation{
		ID: rc.ReservationID, SpotID: rc.SpotID, UserID: requesterID,
		ParkedAt: rc.ParkedAt, LeftAt: &left, CostCents: &cost,
	}, rc.LotID)
	return rc, nil
}

// ListUserReservations returns a user's reservations, most recent first.
func (s *BookingService) ListUserReservations(ctx context.Context, userID uint64) ([]ReservationView, error) {
	sessions, err := s.store.ListSessions(ctx, model.SessionFilter{UserID: userID})
	if err != nil {
		return nil, classify(err)
	}
	now := s.clock()
	out := make([]ReservationView, 0, len(sessions))
	for i := len(sessions) - 1; i >= 0; i-- {
		out = append(out, viewOf(sessions[i], now))
	}
	return out, nil
}

// GetReservation returns one reservation to its owner or to an admin.
func (s *BookingService) GetReservation(ctx context.Context, id, requesterID uint64, requesterRole string) (ReservationView, error) {
	sess, err := s.store.GetSession(ctx, id)
	if err != nil {
		return ReservationView{}, classify(err)
	}
	if sess.UserID != requesterID && requesterRole != model.RoleAdmin {
		return ReservationView{}, ErrForbidden
	}
	return viewOf(sess, s.clock()), nil
}

func viewOf(sess model.Session, now time.Time) ReservationView {
	v := ReservationView{Session: sess, Status: StatusParkedOut}
	if sess.IsOpen() {
		v.Status = StatusActive
		est := billing.Compute(sess.LotPriceCents, sess.ParkedAt, now)
		v.EstimatedCostCents = &est
	}
	return v
}

// fail records a rejected or failed operation.  Rejections are expected
// traffic and only logged at debug; inconsistencies are logged at error
// and left for reconciliation.
func (s *BookingService) fail(ctx context.Context, span trace.Span, op string, err error) error {
	s.metrics.Rejected(op, reason(err))
	switch {
	case errors.Is(err, ErrInconsistent):
		span.RecordError(err)
		span.SetStatus(codes.Error, "spot state inconsistent")
		s.log.Error("booking inconsistency detected", zap.String("op", op), zap.Error(err))
	case errors.Is(err, ErrUnavailable):
		span.RecordError(err)
		span.SetStatus(codes.Error, "storage unavailable")
		s.log.Warn("booking operation failed", zap.String("op", op), zap.Error(err))
	default:
		span.SetAttributes(attribute.String("booking.rejected", reason(err)))
		s.log.Debug("booking rejected", zap.String("op", op), zap.Error(err))
	}
	return err
}

func (s *BookingService) publish(ctx context.Context, typ model.EventType, res model.Reservation, lotID uint64) {
	if s.events == nil {
		return
	}
	ev := model.ReservationEvent{
		Type:          typ,
		ReservationID: res.ID,
		UserID:        res.UserID,
		SpotID:        res.SpotID,
		LotID:         lotID,
		CostCents:     res.CostCents,
		OccurredAt:    s.clock(),
	}
	if n, err := s.store.CountAvailable(ctx, lotID); err == nil {
		ev.AvailableCount = &n
	} else {
		s.log.Warn("count available spots failed", zap.Uint64("lot_id", lotID), zap.Error(err))
	}
	if err := s.events.Publish(ctx, ev); err != nil {
		s.metrics.EventPublished(string(typ), "error")
		s.log.Warn("publish reservation event failed", zap.String("type", string(typ)), zap.Error(err))
		return
	}
	s.metrics.EventPublished(string(typ), "ok")
}
