package router // package router defines how HTTP routes are registered for the API

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/parking-reservation/internal/handler"
	"github.com/iliyamo/parking-reservation/internal/middleware"
	"github.com/iliyamo/parking-reservation/internal/model"
)

// RegisterRoutes registers the operational endpoints: the health check
// used by load balancers and the Prometheus scrape endpoint.
func RegisterRoutes(e *echo.Echo, health echo.HandlerFunc, metrics http.Handler) {
	e.GET("/healthz", health)
	e.GET("/metrics", echo.WrapHandler(metrics))
}

// guard is the JWT and role chain of an authenticated route.  Routes under
// the shared /v1 prefix take it per route: echo gives a group with
// middleware a catch-all for its prefix, which would turn unknown /v1
// paths into 401s.
func guard(jwtSecret string, roles ...string) []echo.MiddlewareFunc {
	return []echo.MiddlewareFunc{middleware.JWTAuth(jwtSecret), middleware.RequireRole(roles...)}
}

// RegisterAuth registers authentication routes.  Token exchange lives
// under /v1/auth without a session and behind its own rate limit;
// identity endpoints need a valid access token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string, limit echo.MiddlewareFunc) {
	g := e.Group("/v1/auth", limit)
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)              // rotates the refresh token
	g.POST("/refresh-access", a.RefreshAccess) // new access token only
	g.POST("/logout", a.Logout)

	v1 := e.Group("/v1")
	signedIn := guard(jwtSecret, model.RoleUser, model.RoleAdmin)
	v1.GET("/me", a.Me, signedIn...)
	v1.GET("/profile", a.Profile, signedIn...)

	// logout is also reachable at the top level with a refresh token in the body
	e.POST("/v1/logout", a.Logout, limit)
}

// RegisterPublic registers unauthenticated browse endpoints.  Lot
// listings go through the response cache; availability never does.
func RegisterPublic(e *echo.Echo, l *handler.LotHandler, cache echo.MiddlewareFunc, live echo.HandlerFunc) {
	e.GET("/v1/lots", l.ListLots, cache)
	e.GET("/v1/lots/:id", l.GetLot, cache)
	e.GET("/v1/lots/:id/availability", l.Availability)
	e.GET("/v1/lots/:id/spots/available", l.AvailableSpots)
	e.GET("/v1/ws/availability", live)
}
