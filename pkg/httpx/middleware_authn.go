package httpx

import (
	"context"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/ledgerdesk/pkg/jwtx"
	"github.com/aussiebroadwan/ledgerdesk/pkg/slogx"
)

// SessionResolver turns a web session cookie value into a principal.
type SessionResolver interface {
	ResolveSession(ctx context.Context, token string) (Principal, error)
}

// FamilyChecker reports whether a refresh family is still live. Access tokens
// of a revoked family are refused even before they expire.
type FamilyChecker interface {
	FamilyActive(ctx context.Context, family string) (bool, error)
}

// Authenticator accepts either a bearer access token or a session cookie.
type Authenticator struct {
	Verifier   jwtx.Verifier
	Families   FamilyChecker   // optional
	Sessions   SessionResolver // optional
	CookieName string
}

// Middleware rejects unauthenticated requests with 401.
func (a *Authenticator) Middleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, desc, ok := a.authenticate(r)
			if !ok {
				writeBearerError(w, desc)
				return
			}
			ctx := WithPrincipal(r.Context(), p)
			ctx = slogx.With(ctx, "user_id", p.UserID, "auth_via", p.Via)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (a *Authenticator) authenticate(r *http.Request) (Principal, string, bool) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	if authz := r.Header.Get("Authorization"); authz != "" {
		raw, found := strings.CutPrefix(authz, "Bearer ")
		if !found {
			return Principal{}, "malformed authorization header", false
		}

		claims := a.Verifier.VerifyAccessToken(strings.TrimSpace(raw))
		if claims == nil {
			return Principal{}, "token verification failed", false
		}

		if a.Families != nil && claims.Family != "" {
			active, err := a.Families.FamilyActive(ctx, claims.Family)
			if err != nil {
				log.Error("family lookup failed", "err", err)
				return Principal{}, "token verification failed", false
			}
			if !active {
				return Principal{}, "token revoked", false
			}
		}

		return Principal{
			UserID: claims.Subject,
			Email:  claims.Email,
			Role:   claims.Role,
			Family: claims.Family,
			Via:    ViaBearer,
		}, "", true
	}

	if a.Sessions != nil && a.CookieName != "" {
		if c, err := r.Cookie(a.CookieName); err == nil && c.Value != "" {
			p, err := a.Sessions.ResolveSession(ctx, c.Value)
			if err != nil {
				log.Debug("session rejected", "err", err)
				return Principal{}, "session invalid or expired", false
			}
			p.Via = ViaSession
			return p, "", true
		}
	}

	return Principal{}, "missing credentials", false
}

// writeBearerError writes an RFC 6750 invalid_token response.
func writeBearerError(w http.ResponseWriter, desc string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token", error_description="`+desc+`"`)
	WriteJSON(w, http.StatusUnauthorized, map[string]string{
		"error":             "invalid_token",
		"error_description": desc,
	})
}

// Require lets the request through only when allow accepts the principal.
// It must run after Authenticator.Middleware.
func Require(allow func(Principal) bool) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFromContext(r.Context())
			if !ok {
				writeBearerError(w, "missing credentials")
				return
			}
			if !allow(p) {
				WriteJSON(w, http.StatusForbidden, map[string]string{
					"error":             "forbidden",
					"error_description": "insufficient permissions",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
