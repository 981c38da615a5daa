package handler

import (
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/parking-reservation/internal/service"
)

// BookingHandler exposes the booking engine.
type BookingHandler struct {
    Booking *service.BookingService
}

func NewBookingHandler(b *service.BookingService) *BookingHandler {
    return &BookingHandler{Booking: b}
}

type startReq struct {
    SpotID        uint64 `json:"spot_id"`
    VehicleNumber string `json:"vehicle_number"`
}

type releaseReq struct {
    TotalCostCents *int64 `json:"total_cost_cents"`
}

// Start occupies the requested spot for the caller.
func (h *BookingHandler) Start(c echo.Context) error {
    uid, _, err := currentUser(c)
    if err != nil {
        return err
    }
    var req startReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    if req.SpotID == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "spot_id required"})
    }
    res, err := h.Booking.StartReservation(c.Request().Context(), req.SpotID, uid, req.VehicleNumber)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusCreated, res)
}

// StartInLot occupies the first available spot of a lot.
func (h *BookingHandler) StartInLot(c echo.Context) error {
    uid, _, err := currentUser(c)
    if err != nil {
        return err
    }
    lotID, ok := parseID(c, "id")
    if !ok {
        return badID(c, "lot id")
    }
    var req startReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    res, err := h.Booking.StartInLot(c.Request().Context(), lotID, uid, req.VehicleNumber)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusCreated, res)
}

// Release closes the caller's reservation and returns the receipt.  An
// empty body bills by duration.
func (h *BookingHandler) Release(c echo.Context) error {
    uid, _, err := currentUser(c)
    if err != nil {
        return err
    }
    id, ok := parseID(c, "id")
    if !ok {
        return badID(c, "reservation id")
    }
    var req releaseReq
    if c.Request().ContentLength != 0 {
        if err := c.Bind(&req); err != nil {
            return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
        }
    }
    receipt, err := h.Booking.ReleaseReservation(c.Request().Context(), id, uid, req.TotalCostCents)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, receipt)
}

func (h *BookingHandler) MyReservations(c echo.Context) error {
    uid, _, err := currentUser(c)
    if err != nil {
        return err
    }
    items, err := h.Booking.ListUserReservations(c.Request().Context(), uid)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// GetReservation is visible to its owner and to admins.
func (h *BookingHandler) GetReservation(c echo.Context) error {
    uid, role, err := currentUser(c)
    if err != nil {
        return err
    }
    id, ok := parseID(c, "id")
    if !ok {
        return badID(c, "reservation id")
    }
    v, err := h.Booking.GetReservation(c.Request().Context(), id, uid, role)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, v)
}
