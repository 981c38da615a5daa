package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"

	"github.com/iliyamo/parking-reservation/internal/logging"
	"github.com/iliyamo/parking-reservation/internal/telemetry"
)

// ErrExportNotFound is returned for unknown task ids and for tasks that
// belong to another user.
var ErrExportNotFound = errors.New("export not found")

type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

type inspector interface {
	GetTaskInfo(queue, id string) (*asynq.TaskInfo, error)
	Close() error
}

// ExportInfo is the client-facing state of an export task.  CSV is set
// once the task has completed.
type ExportInfo struct {
	TaskID      string     `json:"task_id"`
	State       string     `json:"state"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	LastError   string     `json:"last_error,omitempty"`
	CSV         []byte     `json:"-"`
}

// Client enqueues export tasks and reads their results back.
type Client struct {
	client    enqueuer
	inspector inspector
	retention time.Duration
	log       *zap.Logger
}

func NewClient(opt asynq.RedisConnOpt, retention time.Duration, log *zap.Logger) *Client {
	return &Client{
		client:    asynq.NewClient(opt),
		inspector: asynq.NewInspector(opt),
		retention: retention,
		log:       logging.OrNop(log).Named("jobs"),
	}
}

func (c *Client) Close() error {
	return errors.Join(c.client.Close(), c.inspector.Close())
}

// EnqueueExport schedules a CSV export of userID's reservations and
// returns the task id.  The result is kept for the configured retention.
func (c *Client) EnqueueExport(ctx context.Context, userID uint64) (string, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "jobs.enqueue_export")
	defer span.End()

	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)

	id := uuid.NewString()
	task, err := NewExportTask(ExportPayload{UserID: userID, TraceContext: carrier})
	if err != nil {
		return "", err
	}
	info, err := c.client.EnqueueContext(ctx, task,
		asynq.TaskID(id),
		asynq.Queue(DefaultQueue),
		asynq.MaxRetry(3),
		asynq.Timeout(2*time.Minute),
		asynq.Retention(c.retention),
	)
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	span.SetAttributes(attribute.String("job.id", info.ID), attribute.Int64("user.id", int64(userID)))
	c.log.Info("export enqueued", zap.String("task_id", info.ID), zap.Uint64("user_id", userID))
	return info.ID, nil
}

// ExportStatus reports the state of taskID for userID.
func (c *Client) ExportStatus(_ context.Context, userID uint64, taskID string) (ExportInfo, error) {
	if _, err := uuid.Parse(taskID); err != nil {
		return ExportInfo{}, ErrExportNotFound
	}
	info, err := c.inspector.GetTaskInfo(DefaultQueue, taskID)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
			return ExportInfo{}, ErrExportNotFound
		}
		return ExportInfo{}, err
	}
	if info.Type != TypeUserExport {
		return ExportInfo{}, ErrExportNotFound
	}
	var p ExportPayload
	if err := json.Unmarshal(info.Payload, &p); err != nil || p.UserID != userID {
		return ExportInfo{}, ErrExportNotFound
	}
	out := ExportInfo{TaskID: info.ID, State: info.State.String(), LastError: info.LastErr}
	if info.State == asynq.TaskStateCompleted {
		done := info.CompletedAt.UTC()
		out.CompletedAt = &done
		out.CSV = info.Result
	}
	return out, nil
}
