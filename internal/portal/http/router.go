package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/ledgerdesk/internal/portal/blob"
	"github.com/aussiebroadwan/ledgerdesk/internal/portal/metrics"
	"github.com/aussiebroadwan/ledgerdesk/internal/portal/policy"
	"github.com/aussiebroadwan/ledgerdesk/internal/portal/service"
	"github.com/aussiebroadwan/ledgerdesk/internal/portal/store"
	"github.com/aussiebroadwan/ledgerdesk/pkg/cryptox"
	"github.com/aussiebroadwan/ledgerdesk/pkg/httpx"
	"github.com/aussiebroadwan/ledgerdesk/pkg/jwtx"
	"github.com/aussiebroadwan/ledgerdesk/pkg/slogx"

	_ "github.com/aussiebroadwan/ledgerdesk/internal/portal/docs" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware
	authn       *httpx.Authenticator

	tokens       *jwtx.HS256
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store  store.Store
	blobs  blob.Store
	sealer *cryptox.Sealer

	// TrustProxy takes the client IP from X-Forwarded-For.
	TrustProxy bool
	// SecureCookies marks the session cookie Secure. Only disable for local
	// development over plain HTTP.
	SecureCookies bool
	// RateLimits can be turned off for tests that hammer one endpoint.
	RateLimits bool

	UserService        *service.UserService
	SessionService     *service.SessionService
	MobileTokenService *service.MobileTokenService
	DocumentService    *service.DocumentService
	LeadService        *service.LeadService
	AppointmentService *service.AppointmentService
	EnquiryService     *service.EnquiryService
	SettingsService    *service.SettingsService
}

func NewRouter(
	tokens *jwtx.HS256,
	buildVersion string,
	st store.Store,
	blobs blob.Store,
	sealer *cryptox.Sealer,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:           http.NewServeMux(),
		tokens:        tokens,
		buildVersion:  buildVersion,
		startTime:     time.Now(),
		logger:        logger,
		store:         st,
		blobs:         blobs,
		sealer:        sealer,
		SecureCookies: true,
		RateLimits:    true,
	}

	// Metrics sits inside the logger so it sees the matched pattern.
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
		metrics.Middleware,
	}

	return r
}

// ApplyRoutes registers every route. Services must be set first.
func (r *Router) ApplyRoutes() {
	r.authn = &httpx.Authenticator{
		Verifier:   r.tokens,
		Families:   r.MobileTokenService,
		Sessions:   r.SessionService,
		CookieName: service.SessionCookieName,
	}

	r.registerSystem()
	r.registerBootstrap()
	r.registerSession()
	r.registerMobile()
	r.registerUsers()
	r.registerDocuments()
	r.registerLeads()
	r.registerAppointments()
	r.registerEnquiries()
	r.registerSettings()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			ledgerdesk Portal API
//	@version		0.1.0
//	@description	Back office API for the firm's client portal and mobile app: encrypted documents, mobile token pairs, lead capture, appointments, enquiries and settings.
//	@description
//	@description				Mobile access tokens are HS256 JWTs. Browser clients use the ledgerdesk_session cookie instead.
//
//	@contact.name				AussieBroadWAN Team
//	@contact.url				https://github.com/aussiebroadwan/ledgerdesk
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				JWT access token. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

// Handler returns the router wrapped in its middleware chain once, for
// servers that do not want the chain rebuilt on every request.
func (r *Router) Handler() http.Handler {
	return httpx.Chain(r.Mux, r.middlewares...)
}

func (r *Router) byIP(cfg httpx.RateLimitConfig) httpx.Middleware {
	if !r.RateLimits {
		return passthrough
	}
	return httpx.RateLimitByIP(cfg, r.TrustProxy)
}

func (r *Router) byUser(cfg httpx.RateLimitConfig) httpx.Middleware {
	if !r.RateLimits {
		return passthrough
	}
	return httpx.RateLimitByUser(cfg, r.TrustProxy)
}

func (r *Router) byIPAndField(cfg httpx.RateLimitConfig, field string) httpx.Middleware {
	if !r.RateLimits {
		return passthrough
	}
	return httpx.RateLimitByIPAndJSONField(cfg, r.TrustProxy, field)
}

func passthrough(next http.Handler) http.Handler { return next }

// secured chains authentication, an optional capability and a per-user limit.
func (r *Router) secured(h http.HandlerFunc, c policy.Capability, cfg httpx.RateLimitConfig) http.Handler {
	mws := []httpx.Middleware{r.authn.Middleware()}
	if c != "" {
		mws = append(mws, httpx.Require(policy.Allows(c)))
	}
	mws = append(mws, r.byUser(cfg))
	return httpx.Chain(h, mws...)
}

func (r *Router) registerSystem() {
	// Health check endpoints - lenient rate limits (monitoring systems may poll frequently)
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			r.byIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.blobs, r.sealer),
			r.byIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /metrics", metrics.Handler())
}

func (r *Router) registerBootstrap() {
	// POST /bootstrap - very strict rate limit by IP (one-time setup endpoint)
	h := &BootstrapHandler{UserService: r.UserService}
	r.Mux.Handle("POST /v1/bootstrap",
		httpx.Chain(h,
			r.byIP(httpx.StrictLimit),
		),
	)
}

func (r *Router) registerSession() {
	h := &SessionHandler{
		SessionService: r.SessionService,
		TrustProxy:     r.TrustProxy,
		SecureCookies:  r.SecureCookies,
	}
	users := &UsersHandler{UserService: r.UserService}

	// POST /session - strict limit by IP + email (password guessing)
	r.Mux.Handle("POST /v1/session",
		httpx.Chain(http.HandlerFunc(h.HandleLogin),
			r.byIPAndField(httpx.StrictLimit, "email"),
		),
	)
	r.Mux.Handle("DELETE /v1/session",
		httpx.Chain(http.HandlerFunc(h.HandleLogout),
			r.byIP(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("GET /v1/me", r.secured(users.HandleMe, "", httpx.LenientLimit))
}

func (r *Router) registerMobile() {
	h := &MobileHandler{
		MobileTokenService: r.MobileTokenService,
		Tokens:             r.tokens,
		TrustProxy:         r.TrustProxy,
	}

	// POST /mobile/token - strict limit by IP + email
	r.Mux.Handle("POST /v1/mobile/token",
		httpx.Chain(http.HandlerFunc(h.HandleToken),
			r.byIPAndField(httpx.StrictLimit, "email"),
		),
	)

	// POST /mobile/refresh - moderate limit by IP, apps refresh every 15 minutes
	r.Mux.Handle("POST /v1/mobile/refresh",
		httpx.Chain(http.HandlerFunc(h.HandleRefresh),
			r.byIP(httpx.ModerateLimit),
		),
	)

	r.Mux.Handle("POST /v1/mobile/logout", r.secured(h.HandleLogout, "", httpx.ModerateLimit))
	r.Mux.Handle("POST /v1/mobile/logout-all", r.secured(h.HandleLogoutAll, "", httpx.ModerateLimit))
}

func (r *Router) registerUsers() {
	h := &UsersHandler{UserService: r.UserService}

	r.Mux.Handle("POST /v1/users", r.secured(h.HandleCreate, policy.UsersManage, httpx.ModerateLimit))
	r.Mux.Handle("GET /v1/users", r.secured(h.HandleList, policy.UsersManage, httpx.LenientLimit))
	r.Mux.Handle("POST /v1/users/{id}/deactivate", r.secured(h.HandleDeactivate, policy.UsersManage, httpx.ModerateLimit))
}

func (r *Router) registerDocuments() {
	h := &DocumentsHandler{DocumentService: r.DocumentService}

	// Ownership is decided per document by the service, so only authn here.
	r.Mux.Handle("GET /v1/documents", r.secured(h.HandleList, "", httpx.LenientLimit))
	r.Mux.Handle("POST /v1/documents", r.secured(h.HandleUpload, "", httpx.ModerateLimit))
	r.Mux.Handle("GET /v1/documents/{id}", r.secured(h.HandleGet, "", httpx.LenientLimit))
	r.Mux.Handle("PATCH /v1/documents/{id}", r.secured(h.HandlePatch, policy.DocumentsWriteAny, httpx.ModerateLimit))
	r.Mux.Handle("DELETE /v1/documents/{id}", r.secured(h.HandleDelete, "", httpx.ModerateLimit))
	r.Mux.Handle("GET /v1/documents/{id}/content", r.secured(h.HandleContent, "", httpx.LenientLimit))

	r.Mux.Handle("GET /v1/folders", r.secured(h.HandleListFolders, "", httpx.LenientLimit))
	r.Mux.Handle("POST /v1/folders", r.secured(h.HandleCreateFolder, "", httpx.ModerateLimit))
	r.Mux.Handle("DELETE /v1/folders/{id}", r.secured(h.HandleDeleteFolder, "", httpx.ModerateLimit))
}

func (r *Router) registerLeads() {
	h := &LeadsHandler{LeadService: r.LeadService}

	r.Mux.Handle("GET /v1/tools",
		httpx.Chain(http.HandlerFunc(h.HandleListTools),
			r.byIP(httpx.PublicLimit),
		),
	)
	r.Mux.Handle("POST /v1/tools", r.secured(h.HandleCreateTool, policy.SettingsManage, httpx.ModerateLimit))

	// Codes are emailed, so limit by IP + email to stop mail bombing.
	r.Mux.Handle("POST /v1/leads/otp",
		httpx.Chain(http.HandlerFunc(h.HandleRequestCode),
			r.byIPAndField(httpx.StrictLimit, "email"),
		),
	)
	r.Mux.Handle("POST /v1/leads/verify",
		httpx.Chain(http.HandlerFunc(h.HandleVerifyCode),
			r.byIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("GET /v1/tools/download",
		httpx.Chain(http.HandlerFunc(h.HandleDownload),
			r.byIP(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("GET /v1/leads", r.secured(h.HandleListLeads, policy.LeadsRead, httpx.LenientLimit))
}

func (r *Router) registerAppointments() {
	h := &AppointmentsHandler{AppointmentService: r.AppointmentService}

	r.Mux.Handle("GET /v1/appointments/availability",
		httpx.Chain(http.HandlerFunc(h.HandleAvailability),
			r.byIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("POST /v1/appointments",
		httpx.Chain(http.HandlerFunc(h.HandleBook),
			r.byIPAndField(httpx.StrictLimit, "email"),
		),
	)
	r.Mux.Handle("PATCH /v1/appointments/{id}", r.secured(h.HandleUpdateStatus, policy.AppointmentsManage, httpx.ModerateLimit))
}

func (r *Router) registerEnquiries() {
	h := &EnquiriesHandler{EnquiryService: r.EnquiryService}

	r.Mux.Handle("POST /v1/enquiries",
		httpx.Chain(http.HandlerFunc(h.HandleSubmit),
			r.byIPAndField(httpx.StrictLimit, "email"),
		),
	)
	r.Mux.Handle("GET /v1/enquiries", r.secured(h.HandleList, policy.EnquiriesRead, httpx.LenientLimit))
	r.Mux.Handle("POST /v1/enquiries/{id}/handled", r.secured(h.HandleMarkHandled, policy.EnquiriesRead, httpx.ModerateLimit))
}

func (r *Router) registerSettings() {
	h := &SettingsHandler{SettingsService: r.SettingsService}

	r.Mux.Handle("GET /v1/settings", r.secured(h.HandleList, policy.SettingsManage, httpx.ModerateLimit))
	r.Mux.Handle("GET /v1/settings/{key}", r.secured(h.HandleGet, policy.SettingsManage, httpx.ModerateLimit))
	r.Mux.Handle("PUT /v1/settings/{key}", r.secured(h.HandlePut, policy.SettingsManage, httpx.ModerateLimit))
}
