package handler

import (
    "net/http"
    "strconv"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/parking-reservation/internal/service"
)

// ReportHandler serves usage summaries and spending forecasts.
type ReportHandler struct {
    Usage    *service.UsageService
    Forecast *service.ForecastService
}

func NewReportHandler(u *service.UsageService, f *service.ForecastService) *ReportHandler {
    return &ReportHandler{Usage: u, Forecast: f}
}

func intQuery(c echo.Context, name string, def int) (int, bool) {
    s := c.QueryParam(name)
    if s == "" {
        return def, true
    }
    n, err := strconv.Atoi(s)
    return n, err == nil
}

func (h *ReportHandler) summary(c echo.Context, userID uint64) error {
    uid, role, err := currentUser(c)
    if err != nil {
        return err
    }
    w, err := service.ParseWindow(c.QueryParam("period"), c.QueryParam("since"), h.Usage.Now())
    if err != nil {
        return respondError(c, err)
    }
    limit, ok := intQuery(c, "limit", service.DefaultRecentLimit)
    if !ok || limit < 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid limit"})
    }
    if userID == 0 {
        userID = uid
    }
    sum, err := h.Usage.GetUserSummary(c.Request().Context(), uid, role, userID, w, limit)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, sum)
}

// MySummary is the caller's own usage summary.
func (h *ReportHandler) MySummary(c echo.Context) error {
    return h.summary(c, 0)
}

// UserSummary returns another user's summary; only admins may read
// someone else's.
func (h *ReportHandler) UserSummary(c echo.Context) error {
    id, ok := parseID(c, "id")
    if !ok {
        return badID(c, "user id")
    }
    return h.summary(c, id)
}

// MyForecast projects daily spending ?horizon= days ahead.
func (h *ReportHandler) MyForecast(c echo.Context) error {
    uid, role, err := currentUser(c)
    if err != nil {
        return err
    }
    w, err := service.ParseWindow(c.QueryParam("period"), c.QueryParam("since"), h.Usage.Now())
    if err != nil {
        return respondError(c, err)
    }
    horizon, ok := intQuery(c, "horizon", service.DefaultForecastHorizon)
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid horizon"})
    }
    f, err := h.Forecast.Forecast(c.Request().Context(), uid, role, uid, w, horizon)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, f)
}
