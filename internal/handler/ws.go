package handler

import (
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/parking-reservation/internal/realtime"
)

// LiveUpdates streams availability events for ?lot_id= over a websocket.
func LiveUpdates(hub *realtime.Hub) echo.HandlerFunc {
    return echo.WrapHandler(http.HandlerFunc(hub.ServeWS))
}
