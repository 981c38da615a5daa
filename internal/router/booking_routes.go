package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/parking-reservation/internal/handler"
	"github.com/iliyamo/parking-reservation/internal/model"
)

// RegisterBooking registers the reservation lifecycle.  Starting and
// releasing a reservation is reserved to USER accounts; history and
// detail are also open to admins.  Successful writes purge the lot cache
// because they change availability counters.
func RegisterBooking(e *echo.Echo, h *handler.BookingHandler, jwtSecret string, invalidate echo.MiddlewareFunc) {
	v1 := e.Group("/v1")

	user := append(guard(jwtSecret, model.RoleUser), invalidate)
	v1.POST("/reservations", h.Start, user...)
	v1.POST("/lots/:id/reservations", h.StartInLot, user...)
	v1.PUT("/reservations/:id/release", h.Release, user...)

	readers := guard(jwtSecret, model.RoleUser, model.RoleAdmin)
	v1.GET("/my-reservations", h.MyReservations, readers...)
	v1.GET("/reservations/:id", h.GetReservation, readers...)
}
