package handler // handler defines http handlers

import (
    "errors"
    "net/http"
    "strconv"
    "strings"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/parking-reservation/internal/middleware"
    "github.com/iliyamo/parking-reservation/internal/service"
)

// parseID reads a positive numeric path parameter.
func parseID(c echo.Context, name string) (uint64, bool) {
    id, err := strconv.ParseUint(c.Param(name), 10, 64)
    return id, err == nil && id > 0
}

func badID(c echo.Context, name string) error {
    return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid " + name})
}

// currentUser returns the caller's id and role.  Protected routes always
// run behind JWTAuth, so a missing id is reported as 401.
func currentUser(c echo.Context) (uint64, string, error) {
    id, ok := middleware.UserID(c)
    if !ok {
        return 0, "", c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    return id, middleware.Role(c), nil
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
    switch {
    case errors.Is(err, service.ErrInvalidInput), errors.Is(err, service.ErrSpotNotAvailable):
        return http.StatusBadRequest
    case errors.Is(err, service.ErrForbidden):
        return http.StatusForbidden
    case errors.Is(err, service.ErrLotNotFound), errors.Is(err, service.ErrSpotNotFound),
        errors.Is(err, service.ErrReservationNotFound):
        return http.StatusNotFound
    case errors.Is(err, service.ErrAlreadyClosed), errors.Is(err, service.ErrConflict),
        errors.Is(err, service.ErrLotExists), errors.Is(err, service.ErrEmailExists):
        return http.StatusConflict
    case errors.Is(err, service.ErrInconsistent):
        return http.StatusInternalServerError
    default:
        return http.StatusServiceUnavailable
    }
}

// respondError writes err as {"error": "..."}.  Validation messages are
// passed through; storage details never reach the client.
func respondError(c echo.Context, err error) error {
    code := statusFor(err)
    msg := err.Error()
    switch {
    case errors.Is(err, service.ErrInvalidInput):
        msg = strings.TrimPrefix(msg, service.ErrInvalidInput.Error()+": ")
    case errors.Is(err, service.ErrSpotNotAvailable):
        msg = "spot not available"
    case code == http.StatusServiceUnavailable:
        msg = "service unavailable"
    case code == http.StatusInternalServerError:
        msg = "internal error"
    }
    return c.JSON(code, echo.Map{"error": msg})
}
