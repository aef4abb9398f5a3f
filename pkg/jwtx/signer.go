package jwtx

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// MinSecretSize is the shortest HMAC secret accepted.
const MinSecretSize = 32

var ErrSecretTooShort = errors.New("jwtx: signing secret must be at least 32 bytes")

// HS256 signs and verifies the mobile access/refresh pair with a single
// symmetric secret.
type HS256 struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

type Option func(*HS256)

// WithTTLs overrides the default token lifetimes. Zero keeps the default.
func WithTTLs(access, refresh time.Duration) Option {
	return func(s *HS256) {
		if access > 0 {
			s.accessTTL = access
		}
		if refresh > 0 {
			s.refreshTTL = refresh
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *HS256) { s.now = now }
}

// NewHS256 returns a signer/verifier for the given secret and issuer.
func NewHS256(secret []byte, issuer string, opts ...Option) (*HS256, error) {
	if len(secret) < MinSecretSize {
		return nil, ErrSecretTooShort
	}
	s := &HS256{
		secret:     append([]byte(nil), secret...),
		issuer:     issuer,
		accessTTL:  DefaultAccessTokenTTL,
		refreshTTL: DefaultRefreshTokenTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *HS256) Issuer() string            { return s.issuer }
func (s *HS256) AccessTTL() time.Duration  { return s.accessTTL }
func (s *HS256) RefreshTTL() time.Duration { return s.refreshTTL }
func (s *HS256) Now() time.Time            { return s.now().UTC() }

// SignAccessToken mints an access token for p and returns it with its claims.
func (s *HS256) SignAccessToken(p Payload) (string, Claims, error) {
	return s.sign(newClaims(p, s.issuer, AudienceAccess, s.accessTTL, s.Now()))
}

// SignRefreshToken mints a refresh token for p. p.Family must be set.
func (s *HS256) SignRefreshToken(p Payload) (string, Claims, error) {
	if p.Family == "" {
		return "", Claims{}, ErrInvalidClaim
	}
	return s.sign(newClaims(p, s.issuer, AudienceRefresh, s.refreshTTL, s.Now()))
}

func (s *HS256) sign(c Claims) (string, Claims, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := t.SignedString(s.secret)
	if err != nil {
		return "", Claims{}, err
	}
	return signed, c, nil
}
