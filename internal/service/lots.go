package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/parking-reservation/internal/billing"
	"github.com/iliyamo/parking-reservation/internal/logging"
	"github.com/iliyamo/parking-reservation/internal/model"
)

// MaxLotCapacity caps the number of spots a single lot can hold.
const MaxLotCapacity = 500

// LotInput carries the editable attributes of a lot.
type LotInput struct {
	Name       string `json:"name"`
	Address    string `json:"address"`
	Pincode    string `json:"pincode"`
	PriceCents int64  `json:"price_cents"`
	Capacity   int    `json:"capacity"`
}

func (in LotInput) validate() (model.ParkingLot, error) {
	lot := model.ParkingLot{
		Name:       strings.TrimSpace(in.Name),
		Address:    strings.TrimSpace(in.Address),
		Pincode:    strings.TrimSpace(in.Pincode),
		PriceCents: in.PriceCents,
		Capacity:   in.Capacity,
	}
	switch {
	case lot.Name == "":
		return lot, invalidf("name is required")
	case lot.Address == "":
		return lot, invalidf("address is required")
	case lot.Pincode == "":
		return lot, invalidf("pincode is required")
	case lot.PriceCents < 0:
		return lot, invalidf("price must not be negative")
	case lot.Capacity < 1 || lot.Capacity > MaxLotCapacity:
		return lot, invalidf("capacity must be between 1 and %d", MaxLotCapacity)
	}
	return lot, nil
}

// SpotView is the admin view of a spot; while occupied it includes the
// cost accrued by the open reservation so far.
type SpotView struct {
	model.SpotDetail
	EstimatedCostCents *int64 `json:"estimated_cost_cents,omitempty"`
}

// LotService is the lot-management collaborator.  Capacity is kept equal
// to the number of provisioned spots by the store, inside the same
// transaction as the spot changes.
type LotService struct {
	store  Store
	events EventPublisher
	log    *zap.Logger
	now    func() time.Time
}

func NewLotService(store Store, events EventPublisher, log *zap.Logger) *LotService {
	return &LotService{store: store, events: events, log: logging.OrNop(log).Named("lots"), now: time.Now}
}

func (s *LotService) CreateLot(ctx context.Context, in LotInput) (model.ParkingLot, error) {
	lot, err := in.validate()
	if err != nil {
		return model.ParkingLot{}, err
	}
	if err := s.store.CreateLot(ctx, &lot); err != nil {
		return model.ParkingLot{}, classify(err)
	}
	s.log.Info("lot created", zap.Uint64("lot_id", lot.ID), zap.Int("capacity", lot.Capacity))
	return lot, nil
}

// GetLot returns a lot with its counters and spots.
func (s *LotService) GetLot(ctx context.Context, id uint64) (model.LotOverview, error) {
	lot, err := s.store.GetLot(ctx, id)
	if err != nil {
		return model.LotOverview{}, classify(err)
	}
	spots, err := s.store.ListSpots(ctx, id, "")
	if err != nil {
		return model.LotOverview{}, classify(err)
	}
	ov := model.LotOverview{ParkingLot: lot, Spots: spots}
	for _, sp := range spots {
		if sp.Status == model.SpotOccupied {
			ov.Occupied++
		} else {
			ov.Available++
		}
	}
	return ov, nil
}

func (s *LotService) ListLots(ctx context.Context, withSpots bool) ([]model.LotOverview, error) {
	lots, err := s.store.ListLots(ctx, withSpots)
	if err != nil {
		return nil, classify(err)
	}
	return lots, nil
}

// UpdateLot edits a lot and resizes it.  Shrinking only removes available
// spots; ErrConflict is returned when not enough of them exist.
func (s *LotService) UpdateLot(ctx context.Context, id uint64, in LotInput) (model.ParkingLot, error) {
	lot, err := in.validate()
	if err != nil {
		return model.ParkingLot{}, err
	}
	lot.ID = id
	if err := s.store.UpdateLot(ctx, &lot); err != nil {
		return model.ParkingLot{}, classify(err)
	}
	s.log.Info("lot updated", zap.Uint64("lot_id", id), zap.Int("capacity", lot.Capacity))
	s.announce(ctx, id)
	return lot, nil
}

// DeleteLot removes a lot with no occupied spot.
func (s *LotService) DeleteLot(ctx context.Context, id uint64) error {
	if err := s.store.DeleteLot(ctx, id); err != nil {
		return classify(err)
	}
	s.log.Info("lot deleted", zap.Uint64("lot_id", id))
	return nil
}

// Availability returns the number of available spots in a lot.
func (s *LotService) Availability(ctx context.Context, lotID uint64) (int, error) {
	n, err := s.store.CountAvailable(ctx, lotID)
	if err != nil {
		return 0, classify(err)
	}
	return n, nil
}

func (s *LotService) ListAvailableSpots(ctx context.Context, lotID uint64) ([]model.ParkingSpot, error) {
	spots, err := s.store.ListSpots(ctx, lotID, model.SpotAvailable)
	if err != nil {
		return nil, classify(err)
	}
	return spots, nil
}

func (s *LotService) SpotDetail(ctx context.Context, spotID uint64) (SpotView, error) {
	d, err := s.store.GetSpotDetail(ctx, spotID)
	if err != nil {
		return SpotView{}, classify(err)
	}
	v := SpotView{SpotDetail: d}
	if d.Open != nil {
		lot, err := s.store.GetLot(ctx, d.LotID)
		if err != nil {
			return SpotView{}, classify(err)
		}
		est := billing.Compute(lot.PriceCents, d.Open.ParkedAt, s.now().UTC())
		v.EstimatedCostCents = &est
	}
	return v, nil
}

// DeleteSpot removes an available spot and shrinks its lot by one.  The
// lot itself stays even when it has no spots left.
func (s *LotService) DeleteSpot(ctx context.Context, spotID uint64) error {
	d, err := s.store.GetSpotDetail(ctx, spotID)
	if err != nil {
		return classify(err)
	}
	if err := s.store.DeleteSpot(ctx, spotID); err != nil {
		return classify(err)
	}
	s.log.Info("spot deleted", zap.Uint64("spot_id", spotID), zap.Uint64("lot_id", d.LotID))
	s.announce(ctx, d.LotID)
	return nil
}

func (s *LotService) announce(ctx context.Context, lotID uint64) {
	if s.events == nil {
		return
	}
	n, err := s.store.CountAvailable(ctx, lotID)
	if err != nil {
		s.log.Warn("count available spots failed", zap.Uint64("lot_id", lotID), zap.Error(err))
		return
	}
	ev := model.ReservationEvent{Type: model.EventLotResized, LotID: lotID, AvailableCount: &n, OccurredAt: s.now().UTC()}
	if err := s.events.Publish(ctx, ev); err != nil {
		s.log.Warn("publish lot event failed", zap.Uint64("lot_id", lotID), zap.Error(err))
	}
}
