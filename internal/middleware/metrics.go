package middleware

import (
    "errors"
    "net/http"
    "strconv"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/parking-reservation/internal/telemetry"
)

// Metrics counts requests by method, route template and status code.
func Metrics(m *telemetry.Metrics) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            err := next(c)
            code := c.Response().Status
            var he *echo.HTTPError
            if err != nil && errors.As(err, &he) {
                code = he.Code
            } else if err != nil {
                code = http.StatusInternalServerError
            }
            route := c.Path()
            if route == "" {
                route = "unmatched"
            }
            m.HTTPRequest(c.Request().Method, route, strconv.Itoa(code))
            return err
        }
    }
}
