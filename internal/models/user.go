package models

import (
	"time"
)

// User roles
const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// Account states. PENDING and BLOCKED accounts cannot authenticate;
// ACTIVE <-> BLOCKED is the only reversible transition.
const (
	UserStatePending = "PENDING"
	UserStateActive  = "ACTIVE"
	UserStateBlocked = "BLOCKED"
)

type User struct {
	ID           int64
	Username     string // unique
	PasswordHash string // bcrypt, never the plaintext
	Role         string // RoleUser or RoleAdmin
	State        string // UserStatePending, UserStateActive, UserStateBlocked
	ProfileImage *string // object key in the asset store
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ValidUserState reports whether s is a recognized account state.
func ValidUserState(s string) bool {
	switch s {
	case UserStatePending, UserStateActive, UserStateBlocked:
		return true
	}
	return false
}
