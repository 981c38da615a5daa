package handler

import (
    "context"
    "database/sql"
    "errors"
    "net/http"
    "net/mail"
    "strings"
    "time"

    "github.com/labstack/echo/v4"
    "go.uber.org/zap"

    "github.com/iliyamo/parking-reservation/internal/config"
    "github.com/iliyamo/parking-reservation/internal/logging"
    "github.com/iliyamo/parking-reservation/internal/model"
    "github.com/iliyamo/parking-reservation/internal/repository"
    "github.com/iliyamo/parking-reservation/internal/utils"
)

// UserStore is the subset of repository.UserRepo used over HTTP.
type UserStore interface {
    Create(ctx context.Context, u model.User, password string, cost int) (uint64, error)
    GetByEmail(ctx context.Context, email string) (model.User, error)
    GetByID(ctx context.Context, id uint64) (model.User, error)
    ListUsers(ctx context.Context, role string) ([]model.User, error)
}

// TokenStore is the subset of repository.TokenRepo used over HTTP.
type TokenStore interface {
    StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error
    ValidateRefresh(ctx context.Context, tokenHash string) (uint64, error)
    RevokeByHash(ctx context.Context, tokenHash string) error
    RevokeAllForUser(ctx context.Context, userID uint64) error
}

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
    Cfg    config.Config
    Users  UserStore
    Tokens TokenStore
    Log    *zap.Logger
}

func NewAuthHandler(cfg config.Config, u UserStore, t TokenStore, log *zap.Logger) *AuthHandler {
    return &AuthHandler{Cfg: cfg, Users: u, Tokens: t, Log: logging.OrNop(log)}
}

// MinAge is the youngest age accepted at registration.
const MinAge = 18

// ----- DTOs -----

type registerReq struct {
    Email         string `json:"email"`
    Password      string `json:"password"`
    FullName      string `json:"full_name"`
    PhoneNumber   string `json:"phone_number"`
    VehicleNumber string `json:"vehicle_number"`
    Address       string `json:"address"`
    Age           int    `json:"age"`
}

func (r *registerReq) normalize() string {
    r.Email = strings.ToLower(strings.TrimSpace(r.Email))
    r.FullName = strings.TrimSpace(r.FullName)
    r.PhoneNumber = strings.TrimSpace(r.PhoneNumber)
    r.VehicleNumber = strings.ToUpper(strings.TrimSpace(r.VehicleNumber))
    r.Address = strings.TrimSpace(r.Address)
    switch {
    case r.Email == "" || r.Password == "" || r.FullName == "" || r.PhoneNumber == "" ||
        r.VehicleNumber == "" || r.Address == "" || r.Age == 0:
        return "all fields are required"
    case !validEmail(r.Email):
        return "invalid email"
    case len(r.Password) < 8:
        return "password must be at least 8 characters"
    case len(r.VehicleNumber) > 20:
        return "vehicle number must be at most 20 characters"
    case r.Age < MinAge:
        return "you must be at least 18 years old to register"
    }
    return ""
}

func validEmail(s string) bool {
    a, err := mail.ParseAddress(s)
    return err == nil && a.Address == s
}

type loginReq struct {
    Email    string `json:"email"`
    Password string `json:"password"`
}
type refreshReq struct {
    RefreshToken string `json:"refresh_token"`
}

type tokenPart struct {
    Token   string    `json:"token"`
    Expires time.Time `json:"expires"`
}
type userPart struct {
    ID    uint64 `json:"id"`
    Email string `json:"email"`
    Role  string `json:"role"`
}
type authResp struct {
    User    userPart  `json:"user"`
    Access  tokenPart `json:"access"`
    Refresh tokenPart `json:"refresh"`
}

// issue signs a new access token and stores a new refresh token.
func (h *AuthHandler) issue(ctx context.Context, c echo.Context, code int, u userPart) error {
    access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.Role, h.Cfg.AccessTTLMin)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue access failed"})
    }
    refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue refresh failed"})
    }
    if err := h.Tokens.StoreRefresh(ctx, u.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
        h.Log.Warn("store refresh token failed", zap.Uint64("user_id", u.ID), zap.Error(err))
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "save refresh failed"})
    }
    return c.JSON(code, authResp{
        User:    u,
        Access:  tokenPart{Token: access.Token, Expires: access.Exp},
        Refresh: tokenPart{Token: refresh.Raw, Expires: refresh.Exp}, // raw back to client
    })
}

// Register creates a USER account and returns tokens immediately.  The
// role is never taken from the request.
func (h *AuthHandler) Register(c echo.Context) error {
    var req registerReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    if msg := req.normalize(); msg != "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    u := model.User{
        Email:         req.Email,
        Role:          model.RoleUser,
        FullName:      req.FullName,
        PhoneNumber:   req.PhoneNumber,
        VehicleNumber: req.VehicleNumber,
        Address:       req.Address,
        Age:           req.Age,
    }
    uid, err := h.Users.Create(ctx, u, req.Password, h.Cfg.BcryptCost)
    if err != nil {
        if errors.Is(err, repository.ErrEmailExists) {
            return c.JSON(http.StatusConflict, echo.Map{"error": "email already exists"})
        }
        h.Log.Warn("create user failed", zap.Error(err))
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create user failed"})
    }
    return h.issue(ctx, c, http.StatusCreated, userPart{ID: uid, Email: req.Email, Role: model.RoleUser})
}

// Login: verify and return new pair.
func (h *AuthHandler) Login(c echo.Context) error {
    var req loginReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    req.Email = strings.ToLower(strings.TrimSpace(req.Email))
    if req.Email == "" || req.Password == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/password required"})
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    u, err := h.Users.GetByEmail(ctx, req.Email)
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
    }
    if !u.IsActive || !utils.VerifyPassword(u.PasswordHash, req.Password) {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
    }
    return h.issue(ctx, c, http.StatusOK, userPart{ID: u.ID, Email: u.Email, Role: u.Role})
}

// Refresh: validate by hash, revoke old, issue new.
func (h *AuthHandler) Refresh(c echo.Context) error {
    var req refreshReq
    if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh_token required"})
    }
    hash := utils.HashRefreshRaw(strings.TrimSpace(req.RefreshToken))

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    userID, err := h.Tokens.ValidateRefresh(ctx, hash)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
    }
    if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "revoke failed"})
    }
    u, err := h.Users.GetByID(ctx, userID)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load user failed"})
    }
    return h.issue(ctx, c, http.StatusOK, userPart{ID: userID, Email: u.Email, Role: u.Role})
}

// RefreshAccess returns a new access token without rotating the refresh
// token.
func (h *AuthHandler) RefreshAccess(c echo.Context) error {
    var req refreshReq
    if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh_token required"})
    }
    hash := utils.HashRefreshRaw(strings.TrimSpace(req.RefreshToken))

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    userID, err := h.Tokens.ValidateRefresh(ctx, hash)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
    }
    u, err := h.Users.GetByID(ctx, userID)
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load user failed"})
    }
    access, err := utils.NewAccessToken(h.Cfg.JWTSecret, userID, u.Role, h.Cfg.AccessTTLMin)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue access failed"})
    }
    return c.JSON(http.StatusOK, echo.Map{
        "access": tokenPart{Token: access.Token, Expires: access.Exp},
    })
}

// Logout revokes one session when a refresh_token is posted, or every
// session of the bearer's user when only an access token is present.
func (h *AuthHandler) Logout(c echo.Context) error {
    var (
        uid       uint64
        hasBearer bool
    )
    if auth := c.Request().Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
        if claims, err := utils.ParseAccessToken(h.Cfg.JWTSecret, strings.TrimPrefix(auth, "Bearer ")); err == nil {
            uid, hasBearer = claims.UserID, true
        }
    }

    var req refreshReq
    _ = c.Bind(&req)
    refreshToken := strings.TrimSpace(req.RefreshToken)

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    switch {
    case refreshToken != "":
        hash := utils.HashRefreshRaw(refreshToken)
        if _, err := h.Tokens.ValidateRefresh(ctx, hash); err != nil {
            return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh token"})
        }
        if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
            return c.JSON(http.StatusInternalServerError, echo.Map{"error": "logout failed"})
        }
        return c.NoContent(http.StatusNoContent)
    case hasBearer:
        if err := h.Tokens.RevokeAllForUser(ctx, uid); err != nil {
            return c.JSON(http.StatusInternalServerError, echo.Map{"error": "logout failed"})
        }
        return c.NoContent(http.StatusNoContent)
    }
    return c.JSON(http.StatusBadRequest, echo.Map{"error": "provide Authorization header or refresh_token"})
}

// Me: simple protected endpoint.
func (h *AuthHandler) Me(c echo.Context) error {
    uid, role, err := currentUser(c)
    if err != nil {
        return err
    }
    return c.JSON(http.StatusOK, echo.Map{"user_id": uid, "role": role})
}

// Profile returns the caller's full account record.
func (h *AuthHandler) Profile(c echo.Context) error {
    uid, _, err := currentUser(c)
    if err != nil {
        return err
    }
    u, err := h.Users.GetByID(c.Request().Context(), uid)
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load user failed"})
    }
    return c.JSON(http.StatusOK, u)
}

// ListUsers lists active accounts; ?role= narrows by role.
func (h *AuthHandler) ListUsers(c echo.Context) error {
    role := strings.ToUpper(strings.TrimSpace(c.QueryParam("role")))
    if role != "" && role != model.RoleUser && role != model.RoleAdmin {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid role"})
    }
    users, err := h.Users.ListUsers(c.Request().Context(), role)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list users failed"})
    }
    return c.JSON(http.StatusOK, echo.Map{"items": users})
}
