package http

import (
	"net/http"

	"github.com/aussiebroadwan/ledgerdesk/internal/portal/service"
	"github.com/aussiebroadwan/ledgerdesk/pkg/httpx"
	"github.com/aussiebroadwan/ledgerdesk/pkg/jwtx"
	"github.com/aussiebroadwan/ledgerdesk/pkg/portalsdk"
)

// MobileHandler serves the mobile app token endpoints.
type MobileHandler struct {
	MobileTokenService *service.MobileTokenService
	Tokens             *jwtx.HS256
	TrustProxy         bool
}

// HandleToken
//
//	@Summary		Issue a mobile token pair
//	@Description	Exchanges email and password for a 15 minute access token and a 30 day single-use refresh token. Only ADMIN and CLIENT accounts may use the mobile app.
//	@Tags			Mobile
//	@Accept			json
//	@Produce		json
//	@Param			request	body		portalsdk.LoginRequest	true	"Credentials"
//	@Success		200		{object}	portalsdk.TokenResponse
//	@Failure		400		{object}	portalsdk.ErrorResponse
//	@Failure		401		{object}	portalsdk.ErrorResponse	"invalid_credentials"
//	@Failure		403		{object}	portalsdk.ErrorResponse	"role_not_permitted"
//	@Router			/v1/mobile/token [post].
func (h *MobileHandler) HandleToken(w http.ResponseWriter, r *http.Request) {
	var req portalsdk.LoginRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	pair, err := h.MobileTokenService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toTokens(pair, h.Tokens.Now()))
}

// HandleRefresh
//
//	@Summary		Rotate a refresh token
//	@Description	Spends the refresh token and returns a new pair in the same family. Presenting a spent token revokes the whole family.
//	@Tags			Mobile
//	@Accept			json
//	@Produce		json
//	@Param			request	body		portalsdk.RefreshRequest	true	"Refresh token"
//	@Success		200		{object}	portalsdk.TokenResponse
//	@Failure		400		{object}	portalsdk.ErrorResponse
//	@Failure		401		{object}	portalsdk.ErrorResponse	"invalid_token, refresh_token_expired or token_replay_detected"
//	@Failure		403		{object}	portalsdk.ErrorResponse	"role_not_permitted"
//	@Router			/v1/mobile/refresh [post].
func (h *MobileHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	var req portalsdk.RefreshRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.RefreshToken == "" {
		badRequest(w, "refresh_token is required")
		return
	}

	pair, err := h.MobileTokenService.Rotate(r.Context(), req.RefreshToken, httpx.ClientIP(r, h.TrustProxy))
	if err != nil {
		writeError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toTokens(pair, h.Tokens.Now()))
}

// HandleLogout
//
//	@Summary		End this mobile sign-in
//	@Description	Revokes the refresh family of the presented access token.
//	@Tags			Mobile
//	@Success		204
//	@Failure		400	{object}	portalsdk.ErrorResponse	"Not a mobile access token"
//	@Failure		401	{object}	portalsdk.ErrorResponse
//	@Security		BearerAuth
//	@Router			/v1/mobile/logout [post].
func (h *MobileHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	p, _ := httpx.PrincipalFromContext(r.Context())
	if p.Family == "" {
		badRequest(w, "logout requires a mobile access token")
		return
	}

	if err := h.MobileTokenService.RevokeFamily(r.Context(), p.UserID, p.Family); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleLogoutAll
//
//	@Summary		End every mobile sign-in
//	@Description	Revokes every refresh token held by the caller.
//	@Tags			Mobile
//	@Produce		json
//	@Success		200	{object}	portalsdk.LogoutAllResponse
//	@Failure		401	{object}	portalsdk.ErrorResponse
//	@Security		BearerAuth
//	@Router			/v1/mobile/logout-all [post].
func (h *MobileHandler) HandleLogoutAll(w http.ResponseWriter, r *http.Request) {
	p, _ := httpx.PrincipalFromContext(r.Context())

	n, err := h.MobileTokenService.RevokeAllForUser(r.Context(), p.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, portalsdk.LogoutAllResponse{Revoked: n})
}
