package domain

import (
	"strings"
	"time"
)

// Role is the coarse access level of a user account.
type Role string

const (
	RoleAdmin  Role = "ADMIN"
	RoleStaff  Role = "STAFF"
	RoleClient Role = "CLIENT"
)

// ParseRole accepts any casing and returns ok=false for unknown roles.
func ParseRole(s string) (Role, bool) {
	switch r := Role(strings.ToUpper(strings.TrimSpace(s))); r {
	case RoleAdmin, RoleStaff, RoleClient:
		return r, true
	}
	return "", false
}

func (r Role) String() string { return string(r) }

type User struct {
	ID           string
	Email        string // lower-cased, unique
	DisplayName  string
	PasswordHash string // argon2id PHC
	Role         Role
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NormalizeEmail is the canonical form used for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// WebSession is a cookie-backed browser session for the portal and admin.
type WebSession struct {
	ID        string
	UserID    string
	TokenHash string
	UserAgent string
	IP        string
	ExpiresAt time.Time
	CreatedAt time.Time
}
