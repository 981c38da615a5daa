package handler

import (
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/parking-reservation/internal/service"
)

// LotHandler serves lot browsing and, for admins, lot management.
type LotHandler struct {
    Lots  *service.LotService
    Usage *service.UsageService
}

func NewLotHandler(lots *service.LotService, usage *service.UsageService) *LotHandler {
    return &LotHandler{Lots: lots, Usage: usage}
}

// ListLots returns every lot with its counters; ?spots=true includes the
// spots themselves.
func (h *LotHandler) ListLots(c echo.Context) error {
    lots, err := h.Lots.ListLots(c.Request().Context(), c.QueryParam("spots") == "true")
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"items": lots})
}

func (h *LotHandler) GetLot(c echo.Context) error {
    id, ok := parseID(c, "id")
    if !ok {
        return badID(c, "lot id")
    }
    lot, err := h.Lots.GetLot(c.Request().Context(), id)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, lot)
}

// Availability is never cached: it reads the spot table on every call.
func (h *LotHandler) Availability(c echo.Context) error {
    id, ok := parseID(c, "id")
    if !ok {
        return badID(c, "lot id")
    }
    n, err := h.Lots.Availability(c.Request().Context(), id)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"lot_id": id, "available_count": n})
}

func (h *LotHandler) AvailableSpots(c echo.Context) error {
    id, ok := parseID(c, "id")
    if !ok {
        return badID(c, "lot id")
    }
    spots, err := h.Lots.ListAvailableSpots(c.Request().Context(), id)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"items": spots})
}

// ----- admin -----

func (h *LotHandler) CreateLot(c echo.Context) error {
    var in service.LotInput
    if err := c.Bind(&in); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    lot, err := h.Lots.CreateLot(c.Request().Context(), in)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusCreated, lot)
}

func (h *LotHandler) UpdateLot(c echo.Context) error {
    id, ok := parseID(c, "id")
    if !ok {
        return badID(c, "lot id")
    }
    var in service.LotInput
    if err := c.Bind(&in); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    lot, err := h.Lots.UpdateLot(c.Request().Context(), id, in)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, lot)
}

func (h *LotHandler) DeleteLot(c echo.Context) error {
    id, ok := parseID(c, "id")
    if !ok {
        return badID(c, "lot id")
    }
    if err := h.Lots.DeleteLot(c.Request().Context(), id); err != nil {
        return respondError(c, err)
    }
    return c.NoContent(http.StatusNoContent)
}

func (h *LotHandler) SpotDetail(c echo.Context) error {
    id, ok := parseID(c, "id")
    if !ok {
        return badID(c, "spot id")
    }
    v, err := h.Lots.SpotDetail(c.Request().Context(), id)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, v)
}

func (h *LotHandler) DeleteSpot(c echo.Context) error {
    id, ok := parseID(c, "id")
    if !ok {
        return badID(c, "spot id")
    }
    if err := h.Lots.DeleteSpot(c.Request().Context(), id); err != nil {
        return respondError(c, err)
    }
    return c.NoContent(http.StatusNoContent)
}

// AdminSummary reports occupancy and revenue per lot over ?period= or
// ?since=.
func (h *LotHandler) AdminSummary(c echo.Context) error {
    w, err := service.ParseWindow(c.QueryParam("period"), c.QueryParam("since"), h.Usage.Now())
    if err != nil {
        return respondError(c, err)
    }
    sum, err := h.Usage.AdminSummary(c.Request().Context(), w)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, sum)
}
