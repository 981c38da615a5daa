package queue

import (
    "context"
    "fmt"
    "os"
    "path/filepath"
    "sync"
    "time"

    "github.com/iliyamo/parking-reservation/internal/model"
)

// AuditLog appends one human-readable line per event to a file,
// logs/reservations.log by default.
type AuditLog struct {
    path string
    mu   sync.Mutex
}

func NewAuditLog(path string) *AuditLog {
    if path == "" {
        path = filepath.Join("logs", "reservations.log")
    }
    return &AuditLog{path: path}
}

// Handle is a Handler writing ev to the log file.
func (a *AuditLog) Handle(_ context.Context, ev model.ReservationEvent) error {
    a.mu.Lock()
    defer a.mu.Unlock()
    if err := os.MkdirAll(filepath.Dir(a.path), 0o755); err != nil {
        return fmt.Errorf("mkdir logs: %w", err)
    }
    f, err := os.OpenFile(a.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
    if err != nil {
        return fmt.Errorf("open log file: %w", err)
    }
    defer f.Close()
    if _, err := f.WriteString(FormatLine(ev)); err != nil {
        return fmt.Errorf("write log: %w", err)
    }
    return nil
}

// FormatLine renders an event as a single log line.
func FormatLine(ev model.ReservationEvent) string {
    cost := "-"
    if ev.CostCents != nil {
        cost = fmt.Sprintf("%d cents", *ev.CostCents)
    }
    avail := "?"
    if ev.AvailableCount != nil {
        avail = fmt.Sprintf("%d", *ev.AvailableCount)
    }
    return fmt.Sprintf("[%s] %s | reservation_id=%d | user_id=%d | lot_id=%d | spot_id=%d | cost=%s | available=%s\n",
        ev.OccurredAt.UTC().Format(time.RFC3339), ev.Type, ev.ReservationID, ev.UserID, ev.LotID, ev.SpotID, cost, avail)
}
