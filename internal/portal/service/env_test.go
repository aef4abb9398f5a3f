package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/ledgerdesk/internal/portal/blob"
	"github.com/aussiebroadwan/ledgerdesk/internal/portal/calendar"
	"github.com/aussiebroadwan/ledgerdesk/internal/portal/domain"
	"github.com/aussiebroadwan/ledgerdesk/internal/portal/policy"
	"github.com/aussiebroadwan/ledgerdesk/internal/portal/store/drivers/sqlstore"
	"github.com/aussiebroadwan/ledgerdesk/internal/portal/tasks"
	"github.com/aussiebroadwan/ledgerdesk/pkg/cryptox"
	"github.com/aussiebroadwan/ledgerdesk/pkg/idx"
	"github.com/aussiebroadwan/ledgerdesk/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

const testPassword = "correct horse battery"

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type enqueued struct {
	Kind    string
	Payload any
}

type fakeQueue struct {
	mu    sync.Mutex
	tasks []enqueued
}

func (q *fakeQueue) Enqueue(_ context.Context, kind string, payload any) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, enqueued{Kind: kind, Payload: payload})
	return nil
}

func (q *fakeQueue) emails() []tasks.Email {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []tasks.Email
	for _, t := range q.tasks {
		if e, ok := t.Payload.(tasks.Email); ok {
			out = append(out, e)
		}
	}
	return out
}

func (q *fakeQueue) kinds() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]string, 0, len(q.tasks))
	for _, t := range q.tasks {
		out = append(out, t.Kind)
	}
	return out
}

type staticInbox string

func (s staticInbox) NotifyAddress(context.Context) (string, error) { return string(s), nil }

type testEnv struct {
	store     *sqlstore.Store
	clock     *testClock
	queue     *fakeQueue
	blobs     *blob.LocalStore
	sealer    *cryptox.Sealer
	passwords *cryptox.PasswordHasher
	jwt       *jwtx.HS256

	users     *UserService
	sessions  *SessionService
	mobile    *MobileTokenService
	documents *DocumentService
	leads     *LeadService
	appts     *AppointmentService
	enquiries *EnquiryService
}

// Monday 10 March 2025, 08:00 UTC.
var envStart = time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)

func newEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := sqlstore.NewStore(sqlstore.DialectSQLite, ":memory:")
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })

	blobs, err := blob.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	clk := &testClock{t: envStart}
	signer, err := jwtx.NewHS256([]byte("0123456789abcdef0123456789abcdef"), "ledgerdesk", jwtx.WithClock(clk.Now))
	require.NoError(t, err)

	e := &testEnv{
		store:     st,
		clock:     clk,
		queue:     &fakeQueue{},
		blobs:     blobs,
		sealer:    cryptox.NewSealer([]byte("document-master-secret")),
		passwords: cryptox.NewPasswordHasher("test-pepper"),
		jwt:       signer,
	}
	inbox := staticInbox("office@firm.example")

	e.mobile = &MobileTokenService{Store: st, Tokens: signer, Passwords: e.passwords, Tasks: e.queue}
	e.users = &UserService{Store: st, Passwords: e.passwords, BootstrapToken: "boot-token", Tokens: e.mobile, Now: clk.Now}
	e.sessions = &SessionService{Store: st, Passwords: e.passwords, Now: clk.Now}
	e.documents = &DocumentService{Store: st, Blobs: blobs, Sealer: e.sealer, Tasks: e.queue, Inbox: inbox, Now: clk.Now}
	e.leads = &LeadService{Store: st, Blobs: blobs, Sealer: e.sealer, Tasks: e.queue, Issuer: "ledgerdesk", Now: clk.Now}
	e.appts = &AppointmentService{
		Store:    st,
		Calendar: calendar.Static{},
		Hours:    calendar.DefaultWorkingHours(time.UTC),
		Tasks:    e.queue,
		Inbox:    inbox,
		Now:      clk.Now,
	}
	e.enquiries = &EnquiryService{Store: st, Tasks: e.queue, Inbox: inbox, Now: clk.Now}
	return e
}

var rootActor = policy.Actor{UserID: "root", Role: domain.RoleAdmin}

func (e *testEnv) user(t *testing.T, role domain.Role) domain.User {
	t.Helper()
	u, _, err := e.users.CreateUser(context.Background(), rootActor, NewUser{
		Email:       strings.ToLower(string(role)+"-"+idx.NewString()) + "@example.com",
		DisplayName: "Test " + string(role),
		Role:        role,
		Password:    testPassword,
	})
	require.NoError(t, err)
	return u
}

func actorOf(u domain.User) policy.Actor {
	return policy.Actor{UserID: u.ID, Role: u.Role}
}
