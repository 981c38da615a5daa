// Package queue carries reservation events over RabbitMQ.  Events are
// published to a fanout exchange; the worker's durable audit queue and
// every API server's exclusive live queue each receive a copy.
package queue

import (
    "encoding/json"
    "fmt"

    "github.com/iliyamo/parking-reservation/internal/model"
)

const (
    // ExchangeName is the fanout exchange all reservation events go to.
    ExchangeName = "parking.reservations"
    // AuditQueueName is the durable queue drained by the worker.
    AuditQueueName = "parking.reservations.audit"
)

// Encode serialises an event for publishing.
func Encode(ev model.ReservationEvent) ([]byte, error) {
    return json.Marshal(ev)
}

// Decode parses a delivery body.  Events without a type or lot are
// rejected so that consumers never act on half-filled payloads.
func Decode(body []byte) (model.ReservationEvent, error) {
    var ev model.ReservationEvent
    if err := json.Unmarshal(body, &ev); err != nil {
        return ev, fmt.Errorf("unmarshal: %w", err)
    }
    if ev.Type == "" || ev.LotID == 0 {
        return ev, fmt.Errorf("incomplete event: type=%q lot_id=%d", ev.Type, ev.LotID)
    }
    return ev, nil
}
