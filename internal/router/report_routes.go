package router

// This file registers per-user reporting routes: usage summaries,
// spending forecasts and asynchronous CSV exports.

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/parking-reservation/internal/handler"
	"github.com/iliyamo/parking-reservation/internal/model"
)

// RegisterReports mounts the reporting endpoints under /v1.  A summary
// of another user is refused by the service unless the caller is an
// admin.  exports may be nil when no task queue is configured.
func RegisterReports(e *echo.Echo, r *handler.ReportHandler, x *handler.ExportHandler, jwtSecret string) {
	v1 := e.Group("/v1")
	signedIn := guard(jwtSecret, model.RoleUser, model.RoleAdmin)

	v1.GET("/me/summary", r.MySummary, signedIn...)
	v1.GET("/me/forecast", r.MyForecast, signedIn...)
	v1.GET("/users/:id/summary", r.UserSummary, signedIn...)

	if x == nil {
		return
	}
	user := guard(jwtSecret, model.RoleUser)
	v1.POST("/me/exports", x.Create, user...)
	v1.GET("/me/exports/:id", x.Status, user...)
}
