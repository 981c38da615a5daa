package handler

import (
    "context"
    "errors"
    "fmt"
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/parking-reservation/internal/jobs"
)

// ExportQueue is implemented by jobs.Client.
type ExportQueue interface {
    EnqueueExport(ctx context.Context, userID uint64) (string, error)
    ExportStatus(ctx context.Context, userID uint64, taskID string) (jobs.ExportInfo, error)
}

// ExportHandler lets users request a CSV of their reservations and
// download it once the worker has produced it.
type ExportHandler struct {
    Queue ExportQueue
}

func NewExportHandler(q ExportQueue) *ExportHandler {
    return &ExportHandler{Queue: q}
}

func (h *ExportHandler) Create(c echo.Context) error {
    uid, _, err := currentUser(c)
    if err != nil {
        return err
    }
    id, err := h.Queue.EnqueueExport(c.Request().Context(), uid)
    if err != nil {
        return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "enqueue failed"})
    }
    return c.JSON(http.StatusAccepted, echo.Map{"task_id": id, "state": "pending"})
}

// Status returns the CSV once the export has completed and the task
// state otherwise.
func (h *ExportHandler) Status(c echo.Context) error {
    uid, _, err := currentUser(c)
    if err != nil {
        return err
    }
    info, err := h.Queue.ExportStatus(c.Request().Context(), uid, c.Param("id"))
    if err != nil {
        if errors.Is(err, jobs.ErrExportNotFound) {
            return c.JSON(http.StatusNotFound, echo.Map{"error": "export not found"})
        }
        return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "service unavailable"})
    }
    if info.CSV == nil {
        return c.JSON(http.StatusOK, info)
    }
    c.Response().Header().Set(echo.HeaderContentDisposition,
        fmt.Sprintf(`attachment; filename="reservations-%d.csv"`, uid))
    return c.Blob(http.StatusOK, "text/csv; charset=utf-8", info.CSV)
}
