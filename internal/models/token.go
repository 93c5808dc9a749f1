package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenClaims is the payload carried inside a signed identity token.
// The identity is entirely self-contained; verification performs no lookup.
type TokenClaims struct {
	UserID int64  `json:"uid"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Identity is the resolved caller derived from a verified token, after the
// authorization guard has re-checked the stored account state.
type Identity struct {
	UserID    int64
	Role      string
	ExpiresAt time.Time
}

// IsAdmin reports whether the identity carries the admin role.
func (i *Identity) IsAdmin() bool {
	return i != nil && i.Role == RoleAdmin
}
