package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/ledgerdesk/internal/portal/blob"
	"github.com/aussiebroadwan/ledgerdesk/internal/portal/calendar"
	"github.com/aussiebroadwan/ledgerdesk/internal/portal/domain"
	"github.com/aussiebroadwan/ledgerdesk/internal/portal/policy"
	"github.com/aussiebroadwan/ledgerdesk/internal/portal/service"
	"github.com/aussiebroadwan/ledgerdesk/internal/portal/settings"
	"github.com/aussiebroadwan/ledgerdesk/internal/portal/store/drivers/sqlstore"
	"github.com/aussiebroadwan/ledgerdesk/internal/portal/tasks"
	"github.com/aussiebroadwan/ledgerdesk/pkg/cryptox"
	"github.com/aussiebroadwan/ledgerdesk/pkg/idx"
	"github.com/aussiebroadwan/ledgerdesk/pkg/jwtx"
	"github.com/aussiebroadwan/ledgerdesk/pkg/portalsdk"
	"github.com/stretchr/testify/require"
)

const (
	testPassword  = "correct horse battery"
	testBootstrap = "boot-token"
)

var pdfBody = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n<< /Root 1 0 R >>\n%%EOF\n")

type recordingQueue struct {
	mu     sync.Mutex
	emails []tasks.Email
}

func (q *recordingQueue) Enqueue(_ context.Context, _ string, payload any) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if e, ok := payload.(tasks.Email); ok {
		q.emails = append(q.emails, e)
	}
	return nil
}

func (q *recordingQueue) last() tasks.Email {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.emails) == 0 {
		return tasks.Email{}
	}
	return q.emails[len(q.emails)-1]
}

type staticInbox string

func (s staticInbox) NotifyAddress(context.Context) (string, error) { return string(s), nil }

type testEnv struct {
	router  *Router
	handler http.Handler
	store   *sqlstore.Store
	blobs   *blob.LocalStore
	queue   *recordingQueue
}

var rootActor = policy.Actor{UserID: "root", Role: domain.RoleAdmin}

// newEnv wires the full router over sqlite and a temp directory. An empty
// documentKey leaves document encryption unconfigured.
func newEnv(t *testing.T, documentKey string) *testEnv {
	t.Helper()

	st, err := sqlstore.NewStore(sqlstore.DialectSQLite, ":memory:")
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })

	blobs, err := blob.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	signer, err := jwtx.NewHS256([]byte("0123456789abcdef0123456789abcdef"), "ledgerdesk")
	require.NoError(t, err)

	sealer := cryptox.NewSealer([]byte(documentKey))
	passwords := cryptox.NewPasswordHasher("test-pepper")
	queue := &recordingQueue{}
	inbox := staticInbox("office@firm.example")

	settingsSvc, err := service.NewSettingsService(st, sealer, 64, time.Minute, settings.SystemClock)
	require.NoError(t, err)

	mobile := &service.MobileTokenService{Store: st, Tokens: signer, Passwords: passwords, Tasks: queue}

	r := NewRouter(signer, "test", st, blobs, sealer, slog.New(slog.NewTextHandler(io.Discard, nil)))
	r.SecureCookies = false
	r.RateLimits = false
	r.MobileTokenService = mobile
	r.UserService = &service.UserService{Store: st, Passwords: passwords, BootstrapToken: testBootstrap, Tokens: mobile}
	r.SessionService = &service.SessionService{Store: st, Passwords: passwords}
	r.DocumentService = &service.DocumentService{Store: st, Blobs: blobs, Sealer: sealer, Tasks: queue, Inbox: inbox}
	r.LeadService = &service.LeadService{Store: st, Blobs: blobs, Sealer: sealer, Tasks: queue, Issuer: "ledgerdesk"}
	r.AppointmentService = &service.AppointmentService{
		Store:    st,
		Calendar: calendar.Static{},
		Hours:    calendar.DefaultWorkingHours(time.UTC),
		Tasks:    queue,
		Inbox:    inbox,
	}
	r.EnquiryService = &service.EnquiryService{Store: st, Tasks: queue, Inbox: inbox}
	r.SettingsService = settingsSvc
	r.ApplyRoutes()

	return &testEnv{router: r, handler: r.Handler(), store: st, blobs: blobs, queue: queue}
}

func (e *testEnv) user(t *testing.T, role domain.Role) domain.User {
	t.Helper()
	u, _, err := e.router.UserService.CreateUser(context.Background(), rootActor, service.NewUser{
		Email:       strings.ToLower(string(role)+"-"+idx.NewString()) + "@example.com",
		DisplayName: "Test " + string(role),
		Role:        role,
		Password:    testPassword,
	})
	require.NoError(t, err)
	return u
}

type authFunc func(*http.Request)

func noAuth(*http.Request) {}

func bearer(token string) authFunc {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }
}

func withCookie(c *http.Cookie) authFunc {
	return func(r *http.Request) { r.AddCookie(c) }
}

// do sends body as JSON unless it is already an io.Reader.
func (e *testEnv) do(t *testing.T, method, target string, body any, auth authFunc) *httptest.ResponseRecorder {
	t.Helper()

	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case io.Reader:
		rd = b
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, target, rd)
	if rd != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	auth(req)

	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) upload(t *testing.T, target string, fields map[string]string, filename, contentType string, data []byte, auth authFunc) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	auth(req)

	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

// accessToken signs u in through the mobile endpoint.
func (e *testEnv) accessToken(t *testing.T, u domain.User) string {
	t.Helper()
	return e.tokens(t, u).AccessToken
}

func (e *testEnv) tokens(t *testing.T, u domain.User) portalsdk.TokenResponse {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/v1/mobile/token", portalsdk.LoginRequest{Email: u.Email, Password: testPassword}, noAuth)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[portalsdk.TokenResponse](t, rec)
}

// sessionCookie signs u in through the web endpoint.
func (e *testEnv) sessionCookie(t *testing.T, u domain.User) *http.Cookie {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/v1/session", portalsdk.LoginRequest{Email: u.Email, Password: testPassword}, noAuth)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	for _, c := range rec.Result().Cookies() {
		if c.Name == service.SessionCookieName {
			return c
		}
	}
	t.Fatal("no session cookie set")
	return nil
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func requireError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	require.Equal(t, status, rec.Code, rec.Body.String())
	require.Equal(t, code, decode[portalsdk.ErrorResponse](t, rec).Error)
}

func (e *testEnv) serve(t *testing.T, h http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}
