package domain

import "time"

// RefreshState is derived from a stored refresh token row, never persisted.
type RefreshState string

const (
	RefreshActive  RefreshState = "ACTIVE"
	RefreshRotated RefreshState = "ROTATED"
	RefreshRevoked RefreshState = "REVOKED"
	RefreshExpired RefreshState = "EXPIRED"
)

// RefreshToken is one link in a refresh family. Only the fingerprint of the
// signed token is stored.
type RefreshToken struct {
	ID        string // jti of the signed token
	UserID    string
	Family    string // 256-bit hex, shared by every rotation of one login
	TokenHash string
	ExpiresAt time.Time
	RotatedAt *time.Time
	RevokedAt *time.Time
	CreatedAt time.Time
}

// State reports the lifecycle state at now. Revocation wins over rotation,
// and both win over expiry.
func (t RefreshToken) State(now time.Time) RefreshState {
	switch {
	case t.RevokedAt != nil:
		return RefreshRevoked
	case t.RotatedAt != nil:
		return RefreshRotated
	case !now.Before(t.ExpiresAt):
		return RefreshExpired
	default:
		return RefreshActive
	}
}

// TokenPair is what the mobile token endpoints return.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
	Family           string
}
