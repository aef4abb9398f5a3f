package jwtx

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Verifier is what transport code needs to authenticate a bearer token.
type Verifier interface {
	VerifyAccessToken(token string) *Claims
}

var (
	ErrMalformed    = errors.New("jwtx: malformed token")
	ErrInvalidSig   = errors.New("jwtx: invalid signature")
	ErrIssuer       = errors.New("jwtx: issuer mismatch")
	ErrAudience     = errors.New("jwtx: audience mismatch")
	ErrExpired      = errors.New("jwtx: token expired")
	ErrNotYetValid  = errors.New("jwtx: token not yet valid")
	ErrInvalidClaim = errors.New("jwtx: invalid claims")
)

// Parse checks signature, issuer, audience and expiry of token.
//
// When everything but the expiry holds, the claims are returned together
// with ErrExpired so callers can still act on a genuine but stale token.
// Every other failure returns nil claims.
func (s *HS256) Parse(token, audience string) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)

	claims := &Claims{}
	_, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			return nil, ErrInvalidSig
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	if err := claims.ValidateIssuer(s.issuer); err != nil {
		return nil, err
	}
	if err := claims.ValidateAudience(audience); err != nil {
		return nil, err
	}
	if claims.Subject == "" {
		return nil, ErrInvalidClaim
	}
	if err := claims.ValidateExpiry(s.Now()); err != nil {
		if errors.Is(err, ErrExpired) {
			return claims, err
		}
		return nil, err
	}
	return claims, nil
}

// VerifyAccessToken returns the claims of a valid access token, or nil.
func (s *HS256) VerifyAccessToken(token string) *Claims {
	c, err := s.Parse(token, AudienceAccess)
	if err != nil {
		return nil
	}
	return c
}

// VerifyRefreshToken returns the claims of a valid refresh token, or nil.
func (s *HS256) VerifyRefreshToken(token string) *Claims {
	c, err := s.Parse(token, AudienceRefresh)
	if err != nil || c.Family == "" {
		return nil
	}
	return c
}
