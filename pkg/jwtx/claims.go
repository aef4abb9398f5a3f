package jwtx

import (
	"crypto/rand"
	"encoding/base64"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// DefaultAccessTokenTTL is the lifetime of mobile access tokens.
	DefaultAccessTokenTTL = 15 * time.Minute

	// DefaultRefreshTokenTTL is the lifetime of mobile refresh tokens.
	DefaultRefreshTokenTTL = 30 * 24 * time.Hour
)

// Audiences. A token is only ever accepted where its audience is expected,
// so a refresh token can never stand in for an access token.
const (
	AudienceAccess  = "ledgerdesk:access"
	AudienceRefresh = "ledgerdesk:refresh"
)

// Claims carried by both token kinds.
type Claims struct {
	jwt.RegisteredClaims

	// Role of the subject at issuance (ADMIN, CLIENT).
	Role string `json:"role,omitempty"`

	// Email of the subject, informational only.
	Email string `json:"email,omitempty"`

	// Family is the refresh token family the token belongs to. Access
	// tokens carry it too so a logout can target the device session.
	Family string `json:"fam,omitempty"`
}

// Payload is what callers supply when minting a token.
type Payload struct {
	UserID string
	Email  string
	Role   string
	Family string
}

func newClaims(p Payload, issuer, audience string, ttl time.Duration, now time.Time) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   p.UserID,
			Audience:  jwt.ClaimStrings{audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        NewJTI(),
		},
		Role:   p.Role,
		Email:  p.Email,
		Family: p.Family,
	}
}

// NewJTI returns a URL-safe random identifier for the "jti" claim.
func NewJTI() string {
	var b [20]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}

// ValidateIssuer checks the issuer. Empty expected means don't care.
func (c *Claims) ValidateIssuer(expected string) error {
	if expected == "" {
		return nil
	}
	if c.Issuer != expected {
		return ErrIssuer
	}
	return nil
}

// ValidateAudience requires expected to be present in the aud claim.
func (c *Claims) ValidateAudience(expected string) error {
	if !slices.Contains(c.Audience, expected) {
		return ErrAudience
	}
	return nil
}

// ValidateExpiry checks exp and nbf against now. A missing exp is rejected.
func (c *Claims) ValidateExpiry(now time.Time) error {
	if c.ExpiresAt == nil {
		return ErrInvalidClaim
	}
	if !now.Before(c.ExpiresAt.Time) {
		return ErrExpired
	}
	if c.NotBefore != nil && now.Before(c.NotBefore.Time) {
		return ErrNotYetValid
	}
	return nil
}
