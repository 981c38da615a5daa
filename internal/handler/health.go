package handler

import (
    "context"
    "net/http"
    "time"

    "github.com/labstack/echo/v4"
)

// Pinger is anything whose liveness the health check reports, such as
// *sql.DB.
type Pinger interface {
    PingContext(ctx context.Context) error
}

// Health returns "ok" while every pinger answers, and 503 otherwise.
// Load balancers use it to take an instance out of rotation.
func Health(deps ...Pinger) echo.HandlerFunc {
    return func(c echo.Context) error {
        ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
        defer cancel()
        for _, d := range deps {
            if err := d.PingContext(ctx); err != nil {
                return c.String(http.StatusServiceUnavailable, "unavailable")
            }
        }
        return c.String(http.StatusOK, "ok")
    }
}
