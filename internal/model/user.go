package model

import "time"

const (
    RoleAdmin = "ADMIN"
    RoleUser  = "USER"
)

// User represents an application user record as stored in the
// `users` table.  The booking core only reads the identity and role;
// profile attributes are owned by the registration flow.
//
// Fields:
//  ID            – primary key identifier of the user.
//  Email         – unique email address.
//  PasswordHash  – bcrypt hashed password.
//  Role          – ADMIN or USER.
//  FullName      – display name.
//  PhoneNumber   – contact number.
//  VehicleNumber – default vehicle registration.
//  Address       – postal address.
//  Age           – age in years (registration requires 18+).
//  IsActive      – whether the account is active.
//  CreatedAt     – timestamp of creation.
//  UpdatedAt     – timestamp of last update.
type User struct {
    ID            uint64    `json:"id"`             // users.id
    Email         string    `json:"email"`          // users.email
    PasswordHash  string    `json:"-"`              // users.password_hash
    Role          string    `json:"role"`           // users.role
    FullName      string    `json:"full_name"`      // users.full_name
    PhoneNumber   string    `json:"phone_number"`   // users.phone_number
    VehicleNumber string    `json:"vehicle_number"` // users.vehicle_number
    Address       string    `json:"address"`        // users.address
    Age           int       `json:"age"`            // users.age
    IsActive      bool      `json:"is_active"`      // users.is_active
    CreatedAt     time.Time `json:"created_at"`     // users.created_at
    UpdatedAt     time.Time `json:"updated_at"`     // users.updated_at
}

// RefreshToken models an entry in the `refresh_tokens` table.  Each
// refresh token belongs to a user and contains metadata for expiry
// and revocation.  The plain token is not stored; only its
// SHA‑256 hash.
//
// Fields:
//  ID        – primary key identifier.
//  UserID    – owner of the token.
//  TokenHash – SHA‑256 hex digest of the token value.
//  ExpiresAt – expiration timestamp of the token.
//  RevokedAt – when the token was revoked (null if still active).
//  CreatedAt – timestamp of creation.
type RefreshToken struct {
    ID        uint64     // refresh_tokens.id
    UserID    uint64     // refresh_tokens.user_id
    TokenHash string     // refresh_tokens.token_hash
    ExpiresAt time.Time  // refresh_tokens.expires_at
    RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
    CreatedAt time.Time  // refresh_tokens.created_at
}
