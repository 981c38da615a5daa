package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/parking-reservation/internal/model"
	"github.com/iliyamo/parking-reservation/internal/repository"
	"github.com/iliyamo/parking-reservation/internal/repository/memstore"
)

var t0 = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []model.ReservationEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev model.ReservationEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

type fixture struct {
	store   *memstore.Store
	clock   *fakeClock
	booking *BookingService
	events  *recordingPublisher
	lot     model.ParkingLot
	spots   []model.ParkingSpot
}

func newFixture(t *testing.T, priceCents int64, capacity int) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memstore.New()
	lot := model.ParkingLot{Name: "Central", Address: "MG Road", Pincode: "560001", PriceCents: priceCents, Capacity: capacity}
	require.NoError(t, store.CreateLot(ctx, &lot))
	spots, err := store.ListSpots(ctx, lot.ID, "")
	require.NoError(t, err)
	require.Len(t, spots, capacity)

	clock := &fakeClock{t: t0}
	events := &recordingPublisher{}
	return &fixture{
		store:   store,
		clock:   clock,
		booking: NewBookingService(store, events, nil, nil).WithClock(clock.Now),
		events:  events,
		lot:     lot,
		spots:   spots,
	}
}

func (f *fixture) available(t *testing.T) int {
	t.Helper()
	n, err := f.store.CountAvailable(context.Background(), f.lot.ID)
	require.NoError(t, err)
	return n
}

func TestConcurrentStartsOnOneSpotHaveOneWinner(t *testing.T) {
	f := newFixture(t, 20, 1)
	spot := f.spots[0].ID

	const n = 64
	var wg sync.WaitGroup
	results := make(chan error, n)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(user uint64) {
			defer wg.Done()
			<-start
			_, err := f.booking.StartReservation(context.Background(), spot, user, "KA01AB1234")
			results <- err
		}(uint64(i + 1))
	}
	close(start)
	wg.Wait()
	close(results)

	wins := 0
	for err := range results {
		if err == nil {
			wins++
			continue
		}
		assert.ErrorIs(t, err, ErrSpotNotAvailable)
	}
	assert.Equal(t, 1, wins)

	sessions, err := f.store.ListSessions(context.Background(), model.SessionFilter{})
	require.NoError(t, err)
	open := 0
	for _, s := range sessions {
		if s.IsOpen() && s.SpotID == spot {
			open++
		}
	}
	assert.Equal(t, 1, open)
	st, err := f.store.GetStatus(context.Background(), spot)
	require.NoError(t, err)
	assert.Equal(t, model.SpotOccupied, st)
}

func TestConcurrentReleasesAreSingleShot(t *testing.T) {
	f := newFixture(t, 10, 1)
	res, err := f.booking.StartReservation(context.Background(), f.spots[0].ID, 7, "KA01")
	require.NoError(t, err)
	f.clock.Advance(30 * time.Minute)

	const n = 32
	var wg sync.WaitGroup
	results := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.booking.ReleaseReservation(context.Background(), res.ID, 7, nil)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	wins := 0
	for err := range results {
		if err == nil {
			wins++
			continue
		}
		assert.ErrorIs(t, err, ErrAlreadyClosed)
	}
	assert.Equal(t, 1, wins)

	sess, err := f.store.GetSession(context.Background(), res.ID)
	require.NoError(t, err)
	require.NotNil(t, sess.CostCents)
	assert.Equal(t, int64(10), *sess.CostCents)
	assert.Equal(t, 1, f.available(t))
}

func TestStartReleaseRoundTrip(t *testing.T) {
	f := newFixture(t, 15, 3)
	ctx := context.Background()
	before := f.available(t)

	res, err := f.booking.StartReservation(ctx, f.spots[1].ID, 42, " ka01ab1234 ")
	require.NoError(t, err)
	assert.Equal(t, "KA01AB1234", res.VehicleNumber)
	assert.Equal(t, t0, res.ParkedAt)
	assert.True(t, res.IsOpen())
	assert.Equal(t, before-1, f.available(t))

	f.clock.Advance(2*time.Hour + 10*time.Minute)
	rc, err := f.booking.ReleaseReservation(ctx, res.ID, 42, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(45), rc.CostCents)
	assert.Equal(t, int64(3), rc.BilledHours)
	assert.Equal(t, f.lot.ID, rc.LotID)
	assert.False(t, rc.LeftAt.Before(rc.ParkedAt))

	st, err := f.store.GetStatus(ctx, f.spots[1].ID)
	require.NoError(t, err)
	assert.Equal(t, model.SpotAvailable, st)
	assert.Equal(t, before, f.available(t))

	sess, err := f.store.GetSession(ctx, res.ID)
	require.NoError(t, err)
	require.NotNil(t, sess.LeftAt)
	assert.Equal(t, t0.Add(2*time.Hour+10*time.Minute), *sess.LeftAt)
}

func TestTwoUsersTwoSpotsScenario(t *testing.T) {
	f := newFixture(t, 20, 2)
	ctx := context.Background()
	a, b := f.spots[0].ID, f.spots[1].ID
	const u1, u2 = 1, 2

	r1, err := f.booking.StartReservation(ctx, a, u1, "U1-CAR")
	require.NoError(t, err)

	_, err = f.booking.StartReservation(ctx, a, u2, "U2-CAR")
	assert.ErrorIs(t, err, ErrSpotNotAvailable)

	_, err = f.booking.StartReservation(ctx, b, u2, "U2-CAR")
	require.NoError(t, err)

	f.clock.Advance(45 * time.Minute)
	rc, err := f.booking.ReleaseReservation(ctx, r1.ID, u1, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(20), rc.CostCents)

	assert.Equal(t, 1, f.available(t))
	st, err := f.store.GetStatus(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, model.SpotOccupied, st)
}

func TestReleaseRejections(t *testing.T) {
	f := newFixture(t, 10, 1)
	ctx := context.Background()
	res, err := f.booking.StartReservation(ctx, f.spots[0].ID, 5, "KA01")
	require.NoError(t, err)

	_, err = f.booking.ReleaseReservation(ctx, res.ID, 6, nil)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.booking.ReleaseReservation(ctx, 999, 5, nil)
	assert.ErrorIs(t, err, ErrReservationNotFound)

	neg := int64(-1)
	_, err = f.booking.ReleaseReservation(ctx, res.ID, 5, &neg)
	assert.ErrorIs(t, err, ErrInvalidInput)

	// none of the rejections touched the reservation
	sess, err := f.store.GetSession(ctx, res.ID)
	require.NoError(t, err)
	assert.True(t, sess.IsOpen())

	explicit := int64(999)
	rc, err := f.booking.ReleaseReservation(ctx, res.ID, 5, &explicit)
	require.NoError(t, err)
	assert.Equal(t, int64(999), rc.CostCents)

	// a second release never re-bills
	_, err = f.booking.ReleaseReservation(ctx, res.ID, 5, nil)
	assert.ErrorIs(t, err, ErrAlreadyClosed)
	sess, err = f.store.GetSession(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(999), *sess.CostCents)
}

func TestStartValidation(t *testing.T) {
	f := newFixture(t, 10, 1)
	ctx := context.Background()

	_, err := f.booking.StartReservation(ctx, f.spots[0].ID, 1, "   ")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.booking.StartReservation(ctx, f.spots[0].ID, 1, "ABCDEFGHIJKLMNOPQRSTUVWXYZ")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.booking.StartReservation(ctx, 12345, 1, "KA01")
	assert.ErrorIs(t, err, ErrSpotNotFound)

	assert.Equal(t, 1, f.available(t))
	sessions, err := f.store.ListSessions(ctx, model.SessionFilter{})
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestReleaseReportsInconsistencyWithoutRepairing(t *testing.T) {
	f := newFixture(t, 10, 1)
	ctx := context.Background()
	res, err := f.booking.StartReservation(ctx, f.spots[0].ID, 3, "KA01")
	require.NoError(t, err)

	// the spot was freed behind the ledger's back
	require.NoError(t, f.store.ForceStatus(f.spots[0].ID, model.SpotAvailable))

	_, err = f.booking.ReleaseReservation(ctx, res.ID, 3, nil)
	assert.ErrorIs(t, err, ErrInconsistent)

	sess, err := f.store.GetSession(ctx, res.ID)
	require.NoError(t, err)
	assert.True(t, sess.IsOpen(), "ledger write must roll back with the failed flip")
	assert.Nil(t, sess.CostCents)
}

func TestStartInLot(t *testing.T) {
	f := newFixture(t, 10, 2)
	ctx := context.Background()

	r1, err := f.booking.StartInLot(ctx, f.lot.ID, 1, "CAR1")
	require.NoError(t, err)
	assert.Equal(t, f.spots[0].ID, r1.SpotID)

	r2, err := f.booking.StartInLot(ctx, f.lot.ID, 2, "CAR2")
	require.NoError(t, err)
	assert.Equal(t, f.spots[1].ID, r2.SpotID)

	_, err = f.booking.StartInLot(ctx, f.lot.ID, 3, "CAR3")
	assert.ErrorIs(t, err, ErrSpotNotAvailable)

	_, err = f.booking.StartInLot(ctx, 777, 3, "CAR3")
	assert.ErrorIs(t, err, ErrLotNotFound)
}

func TestOperationsOnDifferentSpotsDoNotBlock(t *testing.T) {
	f := newFixture(t, 10, 2)
	ctx := context.Background()

	held := make(chan struct{})
	done := make(chan struct{})
	go func() {
		_ = f.store.InTx(ctx, func(tx repository.Tx) error {
			if err := tx.Spots().TrySetOccupied(ctx, f.spots[0].ID); err != nil {
				return err
			}
			close(held)
			<-done
			return errors.New("abort")
		})
	}()
	<-held

	finished := make(chan error, 1)
	go func() {
		_, err := f.booking.StartReservation(ctx, f.spots[1].ID, 9, "KA09")
		finished <- err
	}()
	select {
	case err := <-finished:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("start on a different spot blocked behind an open transaction")
	}
	close(done)
}

func TestEventsFollowCommittedBookings(t *testing.T) {
	f := newFixture(t, 10, 2)
	ctx := context.Background()

	res, err := f.booking.StartReservation(ctx, f.spots[0].ID, 4, "KA04")
	require.NoError(t, err)
	_, err = f.booking.StartReservation(ctx, f.spots[0].ID, 5, "KA05")
	require.Error(t, err)
	f.clock.Advance(time.Hour)
	_, err = f.booking.ReleaseReservation(ctx, res.ID, 4, nil)
	require.NoError(t, err)

	require.Len(t, f.events.events, 2)
	started, released := f.events.events[0], f.events.events[1]
	assert.Equal(t, model.EventReservationStarted, started.Type)
	assert.Equal(t, f.lot.ID, started.LotID)
	require.NotNil(t, started.AvailableCount)
	assert.Equal(t, 1, *started.AvailableCount)

	assert.Equal(t, model.EventReservationReleased, released.Type)
	require.NotNil(t, released.CostCents)
	assert.Equal(t, int64(10), *released.CostCents)
	assert.Equal(t, 2, *released.AvailableCount)
}

func TestPublishFailureDoesNotUndoBooking(t *testing.T) {
	f := newFixture(t, 10, 1)
	f.events.err = errors.New("broker down")

	res, err := f.booking.StartReservation(context.Background(), f.spots[0].ID, 1, "KA01")
	require.NoError(t, err)
	assert.NotZero(t, res.ID)
	assert.Equal(t, 0, f.available(t))
}

func TestReservationHistoryAndAccess(t *testing.T) {
	f := newFixture(t, 10, 2)
	ctx := context.Background()

	first, err := f.booking.StartReservation(ctx, f.spots[0].ID, 1, "KA01")
	require.NoError(t, err)
	f.clock.Advance(90 * time.Minute)
	_, err = f.booking.ReleaseReservation(ctx, first.ID, 1, nil)
	require.NoError(t, err)
	second, err := f.booking.StartReservation(ctx, f.spots[1].ID, 1, "KA01")
	require.NoError(t, err)
	f.clock.Advance(10 * time.Minute)

	history, err := f.booking.ListUserReservations(ctx, 1)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, second.ID, history[0].ID)
	assert.Equal(t, StatusActive, history[0].Status)
	require.NotNil(t, history[0].EstimatedCostCents)
	assert.Equal(t, int64(10), *history[0].EstimatedCostCents)
	assert.Equal(t, StatusParkedOut, history[1].Status)
	assert.Equal(t, "Central", history[1].LotName)

	_, err = f.booking.GetReservation(ctx, first.ID, 2, model.RoleUser)
	assert.ErrorIs(t, err, ErrForbidden)
	v, err := f.booking.GetReservation(ctx, first.ID, 2, model.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, first.ID, v.ID)
}

type failingStore struct {
	*memstore.Store
}

func (failingStore) InTx(context.Context, func(repository.Tx) error) error {
	return errors.New("connection refused")
}

func TestStorageFailuresSurfaceAsUnavailable(t *testing.T) {
	f := newFixture(t, 10, 1)
	svc := NewBookingService(failingStore{f.store}, nil, nil, nil)

	_, err := svc.StartReservation(context.Background(), f.spots[0].ID, 1, "KA01")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Contains(t, err.Error(), "connection refused")
}
