package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/parking-reservation/internal/config"
	"github.com/iliyamo/parking-reservation/internal/handler"
	"github.com/iliyamo/parking-reservation/internal/middleware"
	"github.com/iliyamo/parking-reservation/internal/model"
	"github.com/iliyamo/parking-reservation/internal/realtime"
	"github.com/iliyamo/parking-reservation/internal/repository/memstore"
	"github.com/iliyamo/parking-reservation/internal/service"
	"github.com/iliyamo/parking-reservation/internal/utils"
)

const secret = "router-secret"

func passthrough(next echo.HandlerFunc) echo.HandlerFunc { return next }

func newServer(t *testing.T, authLimit echo.MiddlewareFunc) *echo.Echo {
	t.Helper()
	store := memstore.New()
	lot := model.ParkingLot{Name: "Central", Address: "MG Road", Pincode: "560001", PriceCents: 20, Capacity: 2}
	require.NoError(t, store.CreateLot(context.Background(), &lot))

	usage := service.NewUsageService(store)
	lots := handler.NewLotHandler(service.NewLotService(store, nil, nil), usage)
	auth := handler.NewAuthHandler(config.Config{JWTSecret: secret, AccessTTLMin: 5, RefreshTTLDays: 1, BcryptCost: 4}, nil, nil, nil)

	reg := prometheus.NewRegistry()
	e := echo.New()
	RegisterRoutes(e, handler.Health(), promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	RegisterAuth(e, auth, secret, authLimit)
	RegisterPublic(e, lots, passthrough, handler.LiveUpdates(realtime.NewHub(nil)))
	RegisterBooking(e, handler.NewBookingHandler(service.NewBookingService(store, nil, nil, nil)), secret, passthrough)
	RegisterReports(e, handler.NewReportHandler(usage, service.NewForecastService(usage, nil)), nil, secret)
	RegisterAdmin(e, lots, auth, secret, passthrough)
	return e
}

func token(t *testing.T, id uint64, role string) string {
	t.Helper()
	tok, err := utils.NewAccessToken(secret, id, role, 5)
	require.NoError(t, err)
	return tok.Token
}

func send(e *echo.Echo, method, path, tok, body string) int {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec.Code
}

func TestRouteGuards(t *testing.T) {
	e := newServer(t, passthrough)
	user, admin := token(t, 5, model.RoleUser), token(t, 1, model.RoleAdmin)
	start := `{"spot_id":1,"vehicle_number":"KA01"}`

	assert.Equal(t, http.StatusOK, send(e, http.MethodGet, "/healthz", "", ""))
	assert.Equal(t, http.StatusOK, send(e, http.MethodGet, "/metrics", "", ""))
	assert.Equal(t, http.StatusOK, send(e, http.MethodGet, "/v1/lots", "", ""))
	assert.Equal(t, http.StatusOK, send(e, http.MethodGet, "/v1/lots/1/availability", "", ""))
	assert.Equal(t, http.StatusOK, send(e, http.MethodGet, "/v1/lots/1/spots/available", "", ""))

	assert.Equal(t, http.StatusUnauthorized, send(e, http.MethodPost, "/v1/reservations", "", start))
	assert.Equal(t, http.StatusForbidden, send(e, http.MethodPost, "/v1/reservations", admin, start))
	assert.Equal(t, http.StatusCreated, send(e, http.MethodPost, "/v1/reservations", user, start))
	assert.Equal(t, http.StatusOK, send(e, http.MethodGet, "/v1/my-reservations", user, ""))
	assert.Equal(t, http.StatusOK, send(e, http.MethodGet, "/v1/reservations/1", admin, ""))

	assert.Equal(t, http.StatusForbidden, send(e, http.MethodPost, "/v1/admin/lots", user, "{}"))
	assert.Equal(t, http.StatusOK, send(e, http.MethodGet, "/v1/admin/spots/1", admin, ""))
	assert.Equal(t, http.StatusOK, send(e, http.MethodGet, "/v1/admin/summary", admin, ""))

	assert.Equal(t, http.StatusOK, send(e, http.MethodGet, "/v1/me", user, ""))
	assert.Equal(t, http.StatusOK, send(e, http.MethodGet, "/v1/me/summary", user, ""))
	assert.Equal(t, http.StatusForbidden, send(e, http.MethodGet, "/v1/users/6/summary", user, ""))
}

func TestUnknownPathsAreNotFound(t *testing.T) {
	e := newServer(t, passthrough)
	user := token(t, 5, model.RoleUser)

	assert.Equal(t, http.StatusNotFound, send(e, http.MethodGet, "/v1/nope", "", ""))
	assert.Equal(t, http.StatusNotFound, send(e, http.MethodGet, "/v1/nope", user, ""))
	assert.Equal(t, http.StatusNotFound, send(e, http.MethodGet, "/v1/me/nope", user, ""))
	assert.Equal(t, http.StatusUnauthorized, send(e, http.MethodGet, "/v1/my-reservations", "", ""))
	assert.Equal(t, http.StatusForbidden, send(e, http.MethodPost, "/v1/lots/1/reservations", token(t, 1, model.RoleAdmin), `{"vehicle_number":"KA01"}`))
}

func TestExportsAbsentWithoutQueue(t *testing.T) {
	e := newServer(t, passthrough)
	code := send(e, http.MethodPost, "/v1/me/exports", token(t, 5, model.RoleUser), "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestAuthRoutesHaveOwnLimit(t *testing.T) {
	cfg := config.RateLimitConfig{
		Enabled:            true,
		Capacity:           100,
		RefillTokens:       1,
		RefillInterval:     time.Second,
		TTL:                time.Minute,
		KeyStrategy:        "ip",
		Prefix:             "test:rl",
		AuthCapacity:       2,
		AuthRefillInterval: time.Minute,
	}
	limit := middleware.NewTokenBucket(cfg.ForAuth(), nil, nil)
	e := newServer(t, limit)

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusBadRequest, send(e, http.MethodPost, "/v1/auth/login", "", `{}`))
	}
	assert.Equal(t, http.StatusTooManyRequests, send(e, http.MethodPost, "/v1/auth/login", "", `{}`))
	assert.Equal(t, http.StatusOK, send(e, http.MethodGet, "/v1/lots", "", ""), "other routes keep their budget")
}
