package queue

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/parking-reservation/internal/model"
)

func sampleEvent() model.ReservationEvent {
	cost, avail := int64(45), 3
	return model.ReservationEvent{
		Type:           model.EventReservationReleased,
		ReservationID:  11,
		UserID:         4,
		SpotID:         7,
		LotID:          2,
		CostCents:      &cost,
		AvailableCount: &avail,
		OccurredAt:     time.Date(2025, 3, 10, 11, 10, 0, 0, time.UTC),
	}
}

func TestDecodeRejectsIncompleteEvents(t *testing.T) {
	body, err := Encode(sampleEvent())
	require.NoError(t, err)
	ev, err := Decode(body)
	require.NoError(t, err)
	assert.Equal(t, sampleEvent(), ev)

	_, err = Decode([]byte(`{"type":"reservation.started"}`))
	assert.Error(t, err)
	_, err = Decode([]byte(`not json`))
	assert.Error(t, err)
}

type fakeChannel struct {
	declared  []string
	published []amqp.Publishing
	exchanges []string
	failNext  bool
	closed    bool
}

func (f *fakeChannel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	f.declared = append(f.declared, name+":"+kind)
	return nil
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	if f.failNext {
		f.failNext = false
		return errors.New("channel closed")
	}
	f.exchanges = append(f.exchanges, exchange)
	f.published = append(f.published, msg)
	return nil
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func TestPublisherDeclaresFanoutAndRedialsAfterFailure(t *testing.T) {
	var dials []*fakeChannel
	p := NewPublisher("amqp://test", nil)
	p.dial = func(string) (channel, func() error, error) {
		ch := &fakeChannel{}
		if len(dials) == 0 {
			ch.failNext = true
		}
		dials = append(dials, ch)
		return ch, func() error { return nil }, nil
	}

	ctx := context.Background()
	require.Error(t, p.Publish(ctx, sampleEvent()))
	require.Len(t, dials, 1)
	assert.True(t, dials[0].closed)

	require.NoError(t, p.Publish(ctx, sampleEvent()))
	require.NoError(t, p.Publish(ctx, sampleEvent()))
	require.Len(t, dials, 2, "a healthy channel is reused")

	ch := dials[1]
	assert.Equal(t, []string{ExchangeName + ":fanout"}, ch.declared)
	assert.Equal(t, []string{ExchangeName, ExchangeName}, ch.exchanges)
	msg := ch.published[0]
	assert.Equal(t, "application/json", msg.ContentType)
	assert.Equal(t, amqp.Persistent, msg.DeliveryMode)
	assert.Equal(t, string(model.EventReservationReleased), msg.Type)

	require.NoError(t, p.Close())
	assert.ErrorIs(t, p.Publish(ctx, sampleEvent()), errClosed)
}

func TestPublisherReportsDialFailure(t *testing.T) {
	p := NewPublisher("amqp://test", nil)
	p.dial = func(string) (channel, func() error, error) { return nil, nil, errors.New("refused") }
	assert.Error(t, p.Publish(context.Background(), sampleEvent()))
}

func TestAuditLogAppendsLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "reservations.log")
	a := NewAuditLog(path)
	ctx := context.Background()

	require.NoError(t, a.Handle(ctx, sampleEvent()))
	started := model.ReservationEvent{Type: model.EventReservationStarted, ReservationID: 12, LotID: 2, SpotID: 8, OccurredAt: time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)}
	require.NoError(t, a.Handle(ctx, started))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "[2025-03-10T11:10:00Z] reservation.released | reservation_id=11 | user_id=4 | lot_id=2 | spot_id=7 | cost=45 cents | available=3", lines[0])
	assert.Contains(t, lines[1], "cost=- | available=?")
}

func TestConsumerProcessDecodesBeforeHandling(t *testing.T) {
	var got []model.ReservationEvent
	c := NewConsumer("amqp://test", AuditBinding(), func(_ context.Context, ev model.ReservationEvent) error {
		got = append(got, ev)
		return nil
	}, nil)

	body, err := Encode(sampleEvent())
	require.NoError(t, err)
	require.NoError(t, c.process(context.Background(), body))
	assert.Error(t, c.process(context.Background(), []byte(`{}`)))
	require.Len(t, got, 1)

	assert.True(t, AuditBinding().Durable)
	assert.Equal(t, AuditQueueName, AuditBinding().Queue)
	assert.True(t, LiveBinding().Exclusive)
}
