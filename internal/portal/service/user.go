package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/aussiebroadwan/ledgerdesk/internal/portal/domain"
	"github.com/aussiebroadwan/ledgerdesk/internal/portal/policy"
	"github.com/aussiebroadwan/ledgerdesk/internal/portal/store"
	"github.com/aussiebroadwan/ledgerdesk/pkg/cryptox"
	"github.com/aussiebroadwan/ledgerdesk/pkg/idx"
	"github.com/aussiebroadwan/ledgerdesk/pkg/slogx"
)

const MinPasswordLength = 10

type UserService struct {
	Store          store.Store
	Passwords      *cryptox.PasswordHasher
	BootstrapToken string // PORTAL_BOOTSTRAP_TOKEN; empty disables bootstrap
	Tokens         *MobileTokenService
	Now            func() time.Time
}

type NewUser struct {
	Email       string
	DisplayName string
	Role        domain.Role
	Password    string // generated when empty
}

// BootstrapAdmin creates the first ADMIN. It only works while no admin
// exists and the caller presents the configured bootstrap token.
func (s *UserService) BootstrapAdmin(ctx context.Context, token string, in NewUser) (domain.User, error) {
	l := slogx.FromContext(ctx)

	// 1. Check the token
	if s.BootstrapToken == "" {
		return domain.User{}, ErrBootstrapDisabled
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.BootstrapToken)) != 1 {
		l.Warn("unauthorized bootstrap attempt")
		return domain.User{}, ErrBootstrapUnauthorized
	}

	in.Role = domain.RoleAdmin
	if in.Password == "" {
		return domain.User{}, invalid("password is required")
	}
	u, err := s.build(in)
	if err != nil {
		return domain.User{}, err
	}

	// 2. Create the admin only if none exists yet
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		n, err := tx.Users().CountAdmins(ctx)
		if err != nil {
			return err
		}
		if n > 0 {
			return ErrBootstrapAlready
		}
		return tx.Users().CreateUser(ctx, u)
	})
	if err != nil {
		if errors.Is(err, ErrBootstrapAlready) {
			l.Warn("attempted bootstrap on already-bootstrapped system")
		}
		return domain.User{}, err
	}

	l.Info("bootstrap admin created", slog.String("user_id", u.ID))
	return u, nil
}

// CreateUser adds an account. When in.Password is empty a random one is
// generated and returned.
func (s *UserService) CreateUser(ctx context.Context, actor policy.Actor, in NewUser) (domain.User, string, error) {
	if !actor.Can(policy.UsersManage) {
		return domain.User{}, "", ErrForbidden
	}

	generated := ""
	if in.Password == "" {
		pw, err := cryptox.GeneratePassword()
		if err != nil {
			return domain.User{}, "", err
		}
		in.Password, generated = pw, pw
	}

	u, err := s.build(in)
	if err != nil {
		return domain.User{}, "", err
	}
	if err := s.Store.Users().CreateUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.User{}, "", ErrEmailTaken
		}
		return domain.User{}, "", err
	}

	slogx.FromContext(ctx).Info("user created",
		slog.String("user_id", u.ID),
		slog.String("role", u.Role.String()),
		slog.String("by", actor.UserID),
	)
	return u, generated, nil
}

func (s *UserService) build(in NewUser) (domain.User, error) {
	email, err := validEmail(in.Email)
	if err != nil {
		return domain.User{}, err
	}
	name, err := optionalText("display_name", in.DisplayName, 120)
	if err != nil {
		return domain.User{}, err
	}
	role, ok := domain.ParseRole(string(in.Role))
	if !ok {
		return domain.User{}, invalid("role must be ADMIN, STAFF or CLIENT")
	}
	if len(in.Password) < MinPasswordLength {
		return domain.User{}, invalid("password must be at least %d characters", MinPasswordLength)
	}

	hash, err := s.Passwords.Hash(in.Password)
	if err != nil {
		return domain.User{}, err
	}
	now := clock(s.Now).now()
	return domain.User{
		ID:           idx.NewString(),
		Email:        email,
		DisplayName:  name,
		PasswordHash: hash,
		Role:         role,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// Get returns one account. Anyone may read their own.
func (s *UserService) Get(ctx context.Context, actor policy.Actor, userID string) (domain.User, error) {
	if userID != actor.UserID && !actor.Can(policy.UsersManage) {
		return domain.User{}, ErrForbidden
	}
	u, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, err
	}
	return u, nil
}

func (s *UserService) List(ctx context.Context, actor policy.Actor, role domain.Role) ([]domain.User, error) {
	if !actor.Can(policy.UsersManage) {
		return nil, ErrForbidden
	}
	return s.Store.Users().ListUsers(ctx, role)
}

// Deactivate disables an account and ends every session and refresh
// family it holds.
func (s *UserService) Deactivate(ctx context.Context, actor policy.Actor, userID string) error {
	if !actor.Can(policy.UsersManage) {
		return ErrForbidden
	}
	if userID == actor.UserID {
		return invalid("cannot deactivate yourself")
	}
	now := clock(s.Now).now()

	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Users().SetActive(ctx, userID, false, now); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrUserNotFound
			}
			return err
		}
		if _, err := tx.RefreshTokens().RevokeAllForUser(ctx, userID, now); err != nil {
			return err
		}
		return tx.Sessions().DeleteUserSessions(ctx, userID)
	})
	if err != nil {
		return err
	}

	slogx.FromContext(ctx).Info("user deactivated", slog.String("user_id", userID), slog.String("by", actor.UserID))
	return nil
}

var (
	dummyOnce sync.Once
	dummyHash string
)

// authenticate checks credentials. Unknown emails still pay for a hash so
// response time does not reveal which accounts exist.
func authenticate(ctx context.Context, st store.Store, h *cryptox.PasswordHasher, email, password string) (domain.User, error) {
	u, err := st.Users().GetUserByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			dummyOnce.Do(func() { dummyHash, _ = h.Hash("not-a-real-password") })
			_ = h.Verify(password, dummyHash)
			return domain.User{}, ErrInvalidCredentials
		}
		return domain.User{}, err
	}
	if err := h.Verify(password, u.PasswordHash); err != nil {
		return domain.User{}, ErrInvalidCredentials
	}
	if !u.Active {
		return domain.User{}, ErrUserInactive
	}
	return u, nil
}
