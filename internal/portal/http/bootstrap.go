package http

import (
	"net/http"

	"github.com/aussiebroadwan/ledgerdesk/internal/portal/domain"
	"github.com/aussiebroadwan/ledgerdesk/internal/portal/service"
	"github.com/aussiebroadwan/ledgerdesk/pkg/httpx"
	"github.com/aussiebroadwan/ledgerdesk/pkg/portalsdk"
	"github.com/aussiebroadwan/ledgerdesk/pkg/slogx"
)

type BootstrapHandler struct {
	UserService *service.UserService
}

// ServeHTTP creates the first administrator.
//
//	@Summary		Bootstrap the portal
//	@Description	Creates the first ADMIN account. Only available while PORTAL_BOOTSTRAP_TOKEN is set and no admin exists.
//	@Tags			Bootstrap
//	@Accept			json
//	@Produce		json
//	@Param			X-Bootstrap-Token	header		string						true	"Bootstrap token"
//	@Param			request				body		portalsdk.BootstrapRequest	true	"Admin account"
//	@Success		201					{object}	portalsdk.UserResponse		"Admin created"
//	@Failure		400					{object}	portalsdk.ErrorResponse		"Invalid request body or validation failed"
//	@Failure		401					{object}	portalsdk.ErrorResponse		"Missing or wrong bootstrap token"
//	@Failure		404					{object}	portalsdk.ErrorResponse		"Bootstrap not enabled"
//	@Failure		409					{object}	portalsdk.ErrorResponse		"An admin already exists"
//	@Router			/v1/bootstrap [post].
func (h *BootstrapHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	l := slogx.FromContext(r.Context())
	l.Info("Starting to bootstrap")

	// 1. Require the bootstrap token header
	token := r.Header.Get("X-Bootstrap-Token")
	if token == "" && h.UserService.BootstrapToken != "" {
		writeError(w, r, service.ErrBootstrapUnauthorized)
		return
	}

	// 2. Parse request body
	var req portalsdk.BootstrapRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	// 3. Create the admin
	u, err := h.UserService.BootstrapAdmin(r.Context(), token, service.NewUser{
		Email:       req.Email,
		DisplayName: req.DisplayName,
		Role:        domain.RoleAdmin,
		Password:    req.Password,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, toUser(u))
}
