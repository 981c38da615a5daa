package router // router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/parking-reservation/internal/handler"
	"github.com/iliyamo/parking-reservation/internal/middleware"
	"github.com/iliyamo/parking-reservation/internal/model"
)

// RegisterAdmin registers ADMIN-scoped endpoints under /v1/admin.
// All routes require a valid JWT and the ADMIN role.
func RegisterAdmin(e *echo.Echo, l *handler.LotHandler, a *handler.AuthHandler, jwtSecret string, invalidate echo.MiddlewareFunc) {
	g := e.Group(
		"/v1/admin",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin),
		invalidate,
	)

	// ---- Lots ----
	g.POST("/lots", l.CreateLot)
	g.PUT("/lots/:id", l.UpdateLot)
	g.PATCH("/lots/:id", l.UpdateLot) // alias for clients that use PATCH
	g.DELETE("/lots/:id", l.DeleteLot)

	// ---- Spots ----
	g.GET("/spots/:id", l.SpotDetail)
	g.DELETE("/spots/:id", l.DeleteSpot)

	// ---- Reporting ----
	g.GET("/summary", l.AdminSummary)
	g.GET("/users", a.ListUsers)
}
