package queue

import (
    "context"
    "errors"
    "fmt"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
    "go.uber.org/zap"

    "github.com/iliyamo/parking-reservation/internal/logging"
    "github.com/iliyamo/parking-reservation/internal/model"
)

// Handler processes one decoded event.  Returning an error rejects the
// delivery without requeueing it.
type Handler func(ctx context.Context, ev model.ReservationEvent) error

// Binding describes the queue a consumer reads from.  An empty Queue
// with Exclusive set asks the broker for a private, auto-deleted queue.
type Binding struct {
    Queue     string
    Durable   bool
    Exclusive bool
    Prefetch  int
}

// AuditBinding is the worker's durable copy of every event.
func AuditBinding() Binding {
    return Binding{Queue: AuditQueueName, Durable: true, Prefetch: 50}
}

// LiveBinding is a per-process queue used to fan events out to local
// websocket clients.
func LiveBinding() Binding {
    return Binding{Exclusive: true, Prefetch: 100}
}

// Consumer binds a queue to the event exchange and feeds deliveries to a
// Handler, reconnecting with exponential backoff until ctx is done.
type Consumer struct {
    url     string
    binding Binding
    handle  Handler
    log     *zap.Logger
}

func NewConsumer(url string, b Binding, h Handler, log *zap.Logger) *Consumer {
    return &Consumer{url: url, binding: b, handle: h, log: logging.OrNop(log).Named("consumer")}
}

// Run blocks until ctx is cancelled.  Connection and processing errors
// are logged; the loop keeps going.
func (c *Consumer) Run(ctx context.Context) error {
    backoff := time.Second
    for {
        conn, err := amqp.Dial(c.url)
        if err != nil {
            c.log.Warn("failed to dial broker", zap.Error(err), zap.Duration("retry_in", backoff))
            if !sleep(ctx, backoff) {
                return ctx.Err()
            }
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second // reset after successful connect

        err = c.consumeLoop(ctx, conn)
        _ = conn.Close()
        if ctx.Err() != nil {
            return ctx.Err()
        }
        c.log.Warn("consume loop ended; reconnecting", zap.Error(err))
        if !sleep(ctx, 2*time.Second) {
            return ctx.Err()
        }
    }
}

func sleep(ctx context.Context, d time.Duration) bool {
    t := time.NewTimer(d)
    defer t.Stop()
    select {
    case <-ctx.Done():
        return false
    case <-t.C:
        return true
    }
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if c.binding.Prefetch > 0 {
        if err := ch.Qos(c.binding.Prefetch, 0, false); err != nil {
            c.log.Warn("set QoS failed", zap.Error(err))
        }
    }
    if err := ch.ExchangeDeclare(ExchangeName, amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
        return fmt.Errorf("exchange declare: %w", err)
    }
    q, err := ch.QueueDeclare(c.binding.Queue, c.binding.Durable, c.binding.Exclusive, c.binding.Exclusive, false, nil)
    if err != nil {
        return fmt.Errorf("queue declare: %w", err)
    }
    if err := ch.QueueBind(q.Name, "", ExchangeName, false, nil); err != nil {
        return fmt.Errorf("queue bind: %w", err)
    }
    msgs, err := ch.Consume(q.Name, "", false, c.binding.Exclusive, false, false, nil)
    if err != nil {
        return fmt.Errorf("queue consume: %w", err)
    }

    for {
        select {
        case <-ctx.Done():
            return ctx.Err()
        case d, ok := <-msgs:
            if !ok {
                return errors.New("deliveries channel closed")
            }
            if err := c.process(ctx, d.Body); err != nil {
                c.log.Warn("handle message failed", zap.Error(err))
                _ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
                continue
            }
            _ = d.Ack(false)
        }
    }
}

func (c *Consumer) process(ctx context.Context, body []byte) error {
    ev, err := Decode(body)
    if err != nil {
        return err
    }
    return c.handle(ctx, ev)
}
