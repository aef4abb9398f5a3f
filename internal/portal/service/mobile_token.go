package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/ledgerdesk/internal/portal/domain"
	"github.com/aussiebroadwan/ledgerdesk/internal/portal/metrics"
	"github.com/aussiebroadwan/ledgerdesk/internal/portal/policy"
	"github.com/aussiebroadwan/ledgerdesk/internal/portal/store"
	"github.com/aussiebroadwan/ledgerdesk/internal/portal/tasks"
	"github.com/aussiebroadwan/ledgerdesk/pkg/cryptox"
	"github.com/aussiebroadwan/ledgerdesk/pkg/jwtx"
	"github.com/aussiebroadwan/ledgerdesk/pkg/slogx"
)

// MobileTokenService issues and rotates the access/refresh pair used by
// the mobile app. Every refresh token belongs to a family created at
// login; presenting any token of a family that is no longer the active
// head revokes the whole family.
type MobileTokenService struct {
	Store     store.Store
	Tokens    *jwtx.HS256
	Passwords *cryptox.PasswordHasher
	Tasks     Enqueuer
}

// Login verifies credentials and issues a fresh family.
func (s *MobileTokenService) Login(ctx context.Context, email, password string) (domain.TokenPair, error) {
	u, err := authenticate(ctx, s.Store, s.Passwords, email, password)
	if err != nil {
		slogx.FromContext(ctx).Info("mobile login failed", slog.String("reason", err.Error()))
		return domain.TokenPair{}, err
	}
	return s.Issue(ctx, u)
}

// Issue starts a new refresh family for u. STAFF accounts are refused.
func (s *MobileTokenService) Issue(ctx context.Context, u domain.User) (domain.TokenPair, error) {
	if !policy.Can(u.Role, policy.MobileAccess) {
		slogx.FromContext(ctx).Info("mobile token refused for role",
			slog.String("user_id", u.ID),
			slog.String("role", u.Role.String()),
		)
		return domain.TokenPair{}, ErrRoleNotPermitted
	}

	family, err := cryptox.NewFamilyID()
	if err != nil {
		return domain.TokenPair{}, err
	}

	var pair domain.TokenPair
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		pair, err = s.mint(ctx, tx, u, family)
		return err
	})
	if err != nil {
		return domain.TokenPair{}, err
	}

	slogx.FromContext(ctx).Info("mobile token family issued", slog.String("user_id", u.ID))
	return pair, nil
}

// mint signs a pair in family and stores the refresh row.
func (s *MobileTokenService) mint(ctx context.Context, tx store.Tx, u domain.User, family string) (domain.TokenPair, error) {
	p := jwtx.Payload{UserID: u.ID, Email: u.Email, Role: u.Role.String(), Family: family}

	access, ac, err := s.Tokens.SignAccessToken(p)
	if err != nil {
		return domain.TokenPair{}, err
	}
	refresh, rc, err := s.Tokens.SignRefreshToken(p)
	if err != nil {
		return domain.TokenPair{}, err
	}

	row := domain.RefreshToken{
		ID:        rc.ID,
		UserID:    u.ID,
		Family:    family,
		TokenHash: cryptox.FingerprintToken(refresh),
		ExpiresAt: rc.ExpiresAt.Time,
		CreatedAt: rc.IssuedAt.Time,
	}
	if err := tx.RefreshTokens().CreateRefreshToken(ctx, row); err != nil {
		return domain.TokenPair{}, err
	}

	return domain.TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  ac.ExpiresAt.Time,
		RefreshExpiresAt: rc.ExpiresAt.Time,
		Family:           family,
	}, nil
}

// rotation outcomes decided inside the transaction and acted on after it.
var (
	errReplay  = errors.New("replay")
	errExpired = errors.New("expired")
)

// Rotate exchanges a refresh token for a new pair in the same family.
//
// The old row is marked rotated by a conditional update; only the caller
// whose update affected the row gets to insert the child. Anything else
// presenting a token of the family (already rotated, revoked, unknown) is
// treated as theft and the family is revoked.
func (s *MobileTokenService) Rotate(ctx context.Context, token, ip string) (domain.TokenPair, error) {
	l := slogx.FromContext(ctx)

	// 1. Verify the signature and audience
	claims, err := s.Tokens.Parse(token, jwtx.AudienceRefresh)
	if err != nil {
		if errors.Is(err, jwtx.ErrExpired) && claims != nil && claims.Family != "" {
			s.revoke(ctx, claims.Family, "refresh token expired")
			return domain.TokenPair{}, ErrRefreshExpired
		}
		return domain.TokenPair{}, ErrInvalidRefresh
	}
	if claims.Family == "" {
		return domain.TokenPair{}, ErrInvalidRefresh
	}

	fp := cryptox.FingerprintToken(token)
	now := s.Tokens.Now()

	// 2. Rotate atomically
	var pair domain.TokenPair
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		row, err := tx.RefreshTokens().GetRefreshTokenByHash(ctx, fp)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return errReplay
			}
			return err
		}
		if row.Family != claims.Family || row.UserID != claims.Subject {
			return errReplay
		}

		switch row.State(now) {
		case domain.RefreshActive:
		case domain.RefreshExpired:
			return errExpired
		default:
			return errReplay
		}

		if err := tx.RefreshTokens().MarkRotated(ctx, fp, now); err != nil {
			if errors.Is(err, store.ErrConflict) {
				return errReplay
			}
			return err
		}

		u, err := tx.Users().GetUserByID(ctx, row.UserID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrInvalidRefresh
			}
			return err
		}
		if !u.Active {
			return ErrUserInactive
		}
		if !policy.Can(u.Role, policy.MobileAccess) {
			return ErrRoleNotPermitted
		}

		pair, err = s.mint(ctx, tx, u, row.Family)
		return err
	})

	// 3. Act on the outcome once the transaction is closed
	switch {
	case err == nil:
		l.Info("refresh token rotated", slog.String("user_id", claims.Subject))
		return pair, nil
	case errors.Is(err, errReplay):
		n := s.revoke(ctx, claims.Family, "refresh token replay detected")
		metrics.RefreshReplaysTotal.Inc()
		s.alert(ctx, tasks.ReplayEvent{
			UserID:  claims.Subject,
			Family:  claims.Family,
			Revoked: n,
			IP:      ip,
			At:      now.Format(time.RFC3339),
		})
		return domain.TokenPair{}, ErrReplayDetected
	case errors.Is(err, errExpired):
		s.revoke(ctx, claims.Family, "refresh token expired")
		return domain.TokenPair{}, ErrRefreshExpired
	case errors.Is(err, ErrUserInactive):
		s.revoke(ctx, claims.Family, "refresh for inactive user")
		return domain.TokenPair{}, ErrInvalidRefresh
	case errors.Is(err, ErrRoleNotPermitted):
		s.revoke(ctx, claims.Family, "refresh for role without mobile access")
		return domain.TokenPair{}, ErrRoleNotPermitted
	default:
		return domain.TokenPair{}, err
	}
}

func (s *MobileTokenService) revoke(ctx context.Context, family, reason string) int64 {
	l := slogx.FromContext(ctx)
	n, err := s.Store.RefreshTokens().RevokeFamily(ctx, family, s.Tokens.Now())
	if err != nil {
		l.Error("failed to revoke refresh family", slog.String("reason", reason), slog.Any("error", err))
		return 0
	}
	l.Warn(reason, slog.Int64("revoked", n))
	return n
}

func (s *MobileTokenService) alert(ctx context.Context, ev tasks.ReplayEvent) {
	if s.Tasks == nil {
		return
	}
	if err := s.Tasks.Enqueue(ctx, tasks.KindReplayDetected, ev); err != nil {
		slogx.FromContext(ctx).Warn("failed to enqueue replay alert", slog.Any("error", err))
	}
}

// RevokeFamily ends one device session. Callers revoke only their own.
func (s *MobileTokenService) RevokeFamily(ctx context.Context, userID, family string) error {
	if family == "" {
		return ErrInvalidRefresh
	}
	rows, err := s.Store.RefreshTokens().ListFamily(ctx, family)
	if err != nil {
		return err
	}
	if len(rows) == 0 || rows[0].UserID != userID {
		return ErrForbidden
	}
	_, err = s.Store.RefreshTokens().RevokeFamily(ctx, family, s.Tokens.Now())
	return err
}

// RevokeAllForUser ends every mobile session of userID.
func (s *MobileTokenService) RevokeAllForUser(ctx context.Context, userID string) (int64, error) {
	n, err := s.Store.RefreshTokens().RevokeAllForUser(ctx, userID, s.Tokens.Now())
	if err != nil {
		return 0, err
	}
	slogx.FromContext(ctx).Info("revoked all refresh families", slog.String("user_id", userID), slog.Int64("revoked", n))
	return n, nil
}

// FamilyActive implements httpx.FamilyChecker.
func (s *MobileTokenService) FamilyActive(ctx context.Context, family string) (bool, error) {
	return s.Store.RefreshTokens().FamilyActive(ctx, family, s.Tokens.Now())
}
