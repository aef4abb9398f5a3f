package service

import (
	"context"
	"testing"
	"time"

	"github.com/aussiebroadwan/ledgerdesk/internal/portal/domain"
	"github.com/aussiebroadwan/ledgerdesk/internal/portal/policy"
	"github.com/aussiebroadwan/ledgerdesk/pkg/httpx"
	"github.com/stretchr/testify/require"
)

func TestBootstrapAdmin(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	in := NewUser{Email: "Owner@Firm.example", DisplayName: "Owner", Password: testPassword}

	_, err := e.users.BootstrapAdmin(ctx, "wrong", in)
	require.ErrorIs(t, err, ErrBootstrapUnauthorized)

	u, err := e.users.BootstrapAdmin(ctx, "boot-token", in)
	require.NoError(t, err)
	require.Equal(t, domain.RoleAdmin, u.Role)
	require.Equal(t, "owner@firm.example", u.Email)

	in.Email = "second@firm.example"
	_, err = e.users.BootstrapAdmin(ctx, "boot-token", in)
	require.ErrorIs(t, err, ErrBootstrapAlready)
}

func TestBootstrapDisabled(t *testing.T) {
	e := newEnv(t)
	e.users.BootstrapToken = ""

	_, err := e.users.BootstrapAdmin(context.Background(), "", NewUser{Email: "a@b.example", Password: testPassword})
	require.ErrorIs(t, err, ErrBootstrapDisabled)
}

func TestCreateUser(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	staff := e.user(t, domain.RoleStaff)

	_, _, err := e.users.CreateUser(ctx, actorOf(staff), NewUser{Email: "c@example.com", Role: domain.RoleClient})
	require.ErrorIs(t, err, ErrForbidden)

	u, generated, err := e.users.CreateUser(ctx, rootActor, NewUser{Email: "c@example.com", Role: domain.RoleClient})
	require.NoError(t, err)
	require.NotEmpty(t, generated)
	_, err = e.mobile.Login(ctx, u.Email, generated)
	require.NoError(t, err)

	_, _, err = e.users.CreateUser(ctx, rootActor, NewUser{Email: "C@example.com", Role: domain.RoleClient, Password: testPassword})
	require.ErrorIs(t, err, ErrEmailTaken)

	for _, bad := range []NewUser{
		{Email: "not-an-email", Role: domain.RoleClient, Password: testPassword},
		{Email: "x@example.com", Role: "OWNER", Password: testPassword},
		{Email: "x@example.com", Role: domain.RoleClient, Password: "short"},
	} {
		_, _, err := e.users.CreateUser(ctx, rootActor, bad)
		require.ErrorIs(t, err, ErrInvalidInput, bad.Email)
	}
}

func TestDeactivateEndsSessions(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u := e.user(t, domain.RoleClient)

	pair, err := e.mobile.Login(ctx, u.Email, testPassword)
	require.NoError(t, err)
	cookie, _, _, err := e.sessions.Login(ctx, u.Email, testPassword, "test", "127.0.0.1")
	require.NoError(t, err)

	require.Error(t, e.users.Deactivate(ctx, rootActor, rootActor.UserID))
	require.ErrorIs(t, e.users.Deactivate(ctx, actorOf(u), u.ID), ErrForbidden)
	require.NoError(t, e.users.Deactivate(ctx, rootActor, u.ID))
	require.ErrorIs(t, e.users.Deactivate(ctx, rootActor, "missing"), ErrUserNotFound)

	ok, err := e.mobile.FamilyActive(ctx, pair.Family)
	require.NoError(t, err)
	require.False(t, ok)

	_, err = e.sessions.ResolveSession(ctx, cookie)
	require.ErrorIs(t, err, ErrSessionInvalid)

	_, err = e.mobile.Login(ctx, u.Email, testPassword)
	require.ErrorIs(t, err, ErrUserInactive)
}

func TestListUsers(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.user(t, domain.RoleClient)
	e.user(t, domain.RoleClient)
	staff := e.user(t, domain.RoleStaff)

	got, err := e.users.List(ctx, rootActor, domain.RoleClient)
	require.NoError(t, err)
	require.Len(t, got, 2)

	_, err = e.users.List(ctx, actorOf(staff), "")
	require.ErrorIs(t, err, ErrForbidden)
}

func TestWebSessionLifecycle(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u := e.user(t, domain.RoleStaff)

	token, sess, _, err := e.sessions.Login(ctx, u.Email, testPassword, "Mozilla/5.0", "192.0.2.1")
	require.NoError(t, err)
	require.Equal(t, envStart.Add(DefaultSessionTTL), sess.ExpiresAt)
	require.NotEqual(t, token, sess.TokenHash, "only the fingerprint is stored")

	p, err := e.sessions.ResolveSession(ctx, token)
	require.NoError(t, err)
	require.Equal(t, u.ID, p.UserID)
	require.Equal(t, httpx.ViaSession, p.Via)
	require.Equal(t, policy.ActorFromPrincipal(p).Role, domain.RoleStaff)

	require.NoError(t, e.sessions.Logout(ctx, token))
	_, err = e.sessions.ResolveSession(ctx, token)
	require.ErrorIs(t, err, ErrSessionInvalid)
}

func TestWebSessionExpires(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u := e.user(t, domain.RoleAdmin)

	token, _, _, err := e.sessions.Login(ctx, u.Email, testPassword, "", "")
	require.NoError(t, err)

	e.clock.Advance(DefaultSessionTTL + time.Second)
	_, err = e.sessions.ResolveSession(ctx, token)
	require.ErrorIs(t, err, ErrSessionInvalid)
}

func TestGetUser(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := e.user(t, domain.RoleClient)
	b := e.user(t, domain.RoleClient)

	got, err := e.users.Get(ctx, actorOf(a), a.ID)
	require.NoError(t, err)
	require.Equal(t, a.Email, got.Email)

	_, err = e.users.Get(ctx, actorOf(a), b.ID)
	require.ErrorIs(t, err, ErrForbidden)

	_, err = e.users.Get(ctx, rootActor, "missing")
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestCreateUserNormalizesRole(t *testing.T) {
	e := newEnv(t)

	u, _, err := e.users.CreateUser(context.Background(), rootActor, NewUser{Email: "lower@example.com", Role: "client", Password: testPassword})
	require.NoError(t, err)
	require.Equal(t, domain.RoleClient, u.Role)
}
