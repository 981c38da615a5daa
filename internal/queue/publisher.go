package queue

import (
    "context"
    "errors"
    "sync"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
    "go.uber.org/zap"

    "github.com/iliyamo/parking-reservation/internal/logging"
    "github.com/iliyamo/parking-reservation/internal/model"
)

// channel is the subset of *amqp.Channel the publisher uses.
type channel interface {
    ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
    PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
    Close() error
}

type dialFunc func(url string) (channel, func() error, error)

func dialAMQP(url string) (channel, func() error, error) {
    conn, err := amqp.Dial(url)
    if err != nil {
        return nil, nil, err
    }
    ch, err := conn.Channel()
    if err != nil {
        _ = conn.Close()
        return nil, nil, err
    }
    return ch, conn.Close, nil
}

// Publisher sends reservation events to the fanout exchange.  The
// connection is opened lazily and re-opened after a failed publish, so a
// broker outage costs the events published during it and nothing else.
type Publisher struct {
    url  string
    dial dialFunc
    log  *zap.Logger

    mu        sync.Mutex
    ch        channel
    closeConn func() error
}

// NewPublisher returns a publisher for the broker at url.
func NewPublisher(url string, log *zap.Logger) *Publisher {
    return &Publisher{url: url, dial: dialAMQP, log: logging.OrNop(log).Named("publisher")}
}

var errClosed = errors.New("publisher closed")

func (p *Publisher) channelLocked() (channel, error) {
    if p.dial == nil {
        return nil, errClosed
    }
    if p.ch != nil {
        return p.ch, nil
    }
    ch, closeConn, err := p.dial(p.url)
    if err != nil {
        return nil, err
    }
    // durable so the exchange survives broker restarts
    if err := ch.ExchangeDeclare(ExchangeName, amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
        _ = ch.Close()
        _ = closeConn()
        return nil, err
    }
    p.ch, p.closeConn = ch, closeConn
    return ch, nil
}

func (p *Publisher) resetLocked() {
    if p.ch != nil {
        _ = p.ch.Close()
    }
    if p.closeConn != nil {
        _ = p.closeConn()
    }
    p.ch, p.closeConn = nil, nil
}

// Publish implements service.EventPublisher.  Messages are persistent.
func (p *Publisher) Publish(ctx context.Context, ev model.ReservationEvent) error {
    body, err := Encode(ev)
    if err != nil {
        return err
    }
    p.mu.Lock()
    defer p.mu.Unlock()
    ch, err := p.channelLocked()
    if err != nil {
        p.log.Warn("rabbitmq: connect failed", zap.Error(err))
        return err
    }
    msg := amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent,
        Timestamp:    time.Now().UTC(),
        Type:         string(ev.Type),
        Body:         body,
    }
    if err := ch.PublishWithContext(ctx, ExchangeName, "", false, false, msg); err != nil {
        p.log.Warn("rabbitmq: publish failed", zap.String("type", string(ev.Type)), zap.Error(err))
        p.resetLocked()
        return err
    }
    return nil
}

// Close releases the broker connection.  Later publishes fail.
func (p *Publisher) Close() error {
    p.mu.Lock()
    defer p.mu.Unlock()
    p.resetLocked()
    p.dial = nil
    return nil
}
