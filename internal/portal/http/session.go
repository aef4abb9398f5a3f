package http

import (
	"net/http"

	"github.com/aussiebroadwan/ledgerdesk/internal/portal/service"
	"github.com/aussiebroadwan/ledgerdesk/pkg/httpx"
	"github.com/aussiebroadwan/ledgerdesk/pkg/portalsdk"
)

// SessionHandler signs browser users in and out with a cookie session.
type SessionHandler struct {
	SessionService *service.SessionService
	TrustProxy     bool
	SecureCookies  bool
}

// HandleLogin
//
//	@Summary		Sign in to the web portal
//	@Description	Verifies email and password and sets an HttpOnly session cookie.
//	@Tags			Session
//	@Accept			json
//	@Produce		json
//	@Param			request	body		portalsdk.LoginRequest		true	"Credentials"
//	@Success		200		{object}	portalsdk.SessionResponse	"Signed in"
//	@Failure		400		{object}	portalsdk.ErrorResponse		"Invalid request"
//	@Failure		401		{object}	portalsdk.ErrorResponse		"Invalid email or password"
//	@Failure		403		{object}	portalsdk.ErrorResponse		"Account deactivated"
//	@Router			/v1/session [post].
func (h *SessionHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req portalsdk.LoginRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	token, sess, u, err := h.SessionService.Login(r.Context(), req.Email, req.Password,
		r.UserAgent(), httpx.ClientIP(r, h.TrustProxy))
	if err != nil {
		writeError(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     service.SessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   h.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	httpx.WriteJSON(w, http.StatusOK, portalsdk.SessionResponse{
		User:      toUser(u),
		ExpiresAt: sess.ExpiresAt,
	})
}

// HandleLogout
//
//	@Summary		Sign out of the web portal
//	@Description	Deletes the session and clears the cookie. Succeeds without a session.
//	@Tags			Session
//	@Success		204	"Signed out"
//	@Router			/v1/session [delete].
func (h *SessionHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(service.SessionCookieName); err == nil && c.Value != "" {
		if err := h.SessionService.Logout(r.Context(), c.Value); err != nil {
			writeError(w, r, err)
			return
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     service.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}
