package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/ledgerdesk/internal/portal/domain"
	"github.com/aussiebroadwan/ledgerdesk/internal/portal/store"
	"github.com/aussiebroadwan/ledgerdesk/pkg/cryptox"
	"github.com/aussiebroadwan/ledgerdesk/pkg/httpx"
	"github.com/aussiebroadwan/ledgerdesk/pkg/idx"
	"github.com/aussiebroadwan/ledgerdesk/pkg/slogx"
)

const (
	SessionCookieName = "ledgerdesk_session"
	DefaultSessionTTL = 12 * time.Hour
)

// SessionService manages cookie sessions for the browser portal. Only the
// fingerprint of the session token is stored.
type SessionService struct {
	Store     store.Store
	Passwords *cryptox.PasswordHasher
	TTL       time.Duration
	Now       func() time.Time
}

func (s *SessionService) ttl() time.Duration {
	if s.TTL <= 0 {
		return DefaultSessionTTL
	}
	return s.TTL
}

// Login verifies credentials and returns the opaque cookie value.
func (s *SessionService) Login(ctx context.Context, email, password, userAgent, ip string) (string, domain.WebSession, domain.User, error) {
	u, err := authenticate(ctx, s.Store, s.Passwords, email, password)
	if err != nil {
		slogx.FromContext(ctx).Info("web login failed", slog.String("reason", err.Error()))
		return "", domain.WebSession{}, domain.User{}, err
	}

	token, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return "", domain.WebSession{}, domain.User{}, err
	}
	now := clock(s.Now).now()
	sess := domain.WebSession{
		ID:        idx.NewString(),
		UserID:    u.ID,
		TokenHash: cryptox.FingerprintToken(token),
		UserAgent: truncate(userAgent, 255),
		IP:        truncate(ip, 64),
		ExpiresAt: now.Add(s.ttl()),
		CreatedAt: now,
	}
	if err := s.Store.Sessions().CreateSession(ctx, sess); err != nil {
		return "", domain.WebSession{}, domain.User{}, err
	}

	slogx.FromContext(ctx).Info("web session created", slog.String("user_id", u.ID))
	return token, sess, u, nil
}

// ResolveSession implements httpx.SessionResolver.
func (s *SessionService) ResolveSession(ctx context.Context, token string) (httpx.Principal, error) {
	if token == "" {
		return httpx.Principal{}, ErrSessionInvalid
	}
	fp := cryptox.FingerprintToken(token)
	sess, err := s.Store.Sessions().GetSessionByHash(ctx, fp)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return httpx.Principal{}, ErrSessionInvalid
		}
		return httpx.Principal{}, err
	}
	if !clock(s.Now).now().Before(sess.ExpiresAt) {
		_ = s.Store.Sessions().DeleteSessionByHash(ctx, fp)
		return httpx.Principal{}, ErrSessionInvalid
	}

	u, err := s.Store.Users().GetUserByID(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return httpx.Principal{}, ErrSessionInvalid
		}
		return httpx.Principal{}, err
	}
	if !u.Active {
		return httpx.Principal{}, ErrSessionInvalid
	}

	return httpx.Principal{
		UserID: u.ID,
		Email:  u.Email,
		Role:   u.Role.String(),
		Via:    httpx.ViaSession,
	}, nil
}

// Logout deletes the session. Unknown tokens are ignored.
func (s *SessionService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.Store.Sessions().DeleteSessionByHash(ctx, cryptox.FingerprintToken(token))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
