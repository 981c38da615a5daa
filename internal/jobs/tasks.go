// Package jobs holds the background work run by the worker process:
// scheduled reminders and reports, refresh token cleanup and on-demand
// CSV exports.  Tasks travel through asynq on Redis.
package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"

	"github.com/iliyamo/parking-reservation/internal/config"
)

const (
	TypeDailyReminder = "reminder:daily"
	TypeMonthlyReport = "report:monthly"
	TypeUserExport    = "export:user_csv"
	TypeTokenPurge    = "tokens:purge"

	DefaultQueue = "default"
)

// ExportPayload asks for one user's reservation history as CSV.
type ExportPayload struct {
	UserID       uint64            `json:"user_id"`
	TraceContext map[string]string `json:"trace_context,omitempty"`
}

// ReportPayload optionally pins the month a report covers (YYYY-MM).
// Empty means the previous calendar month.
type ReportPayload struct {
	Month string `json:"month,omitempty"`
}

func NewExportTask(p ExportPayload, opts ...asynq.Option) (*asynq.Task, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeUserExport, b, opts...), nil
}

func NewMonthlyReportTask(month string) (*asynq.Task, error) {
	b, err := json.Marshal(ReportPayload{Month: month})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeMonthlyReport, b), nil
}

// RedisOpt converts the shared Redis settings into asynq's options.
func RedisOpt(c config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:      c.Addr,
		Password:  c.Password,
		DB:        c.DB,
		TLSConfig: c.TLSConfig(),
	}
}
