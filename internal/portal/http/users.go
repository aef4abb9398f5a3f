package http

import (
	"net/http"

	"github.com/aussiebroadwan/ledgerdesk/internal/portal/domain"
	"github.com/aussiebroadwan/ledgerdesk/internal/portal/service"
	"github.com/aussiebroadwan/ledgerdesk/pkg/httpx"
	"github.com/aussiebroadwan/ledgerdesk/pkg/portalsdk"
)

type UsersHandler struct {
	UserService *service.UserService
}

// HandleCreate
//
//	@Summary		Create a user
//	@Description	Creates an ADMIN, STAFF or CLIENT account. A password is generated and returned once when none is given. Requires users:manage.
//	@Tags			Users
//	@Accept			json
//	@Produce		json
//	@Param			request	body		portalsdk.CreateUserRequest	true	"New account"
//	@Success		201		{object}	portalsdk.UserResponse
//	@Failure		400		{object}	portalsdk.ErrorResponse
//	@Failure		403		{object}	portalsdk.ErrorResponse
//	@Failure		409		{object}	portalsdk.ErrorResponse	"Email already registered"
//	@Security		BearerAuth
//	@Router			/v1/users [post].
func (h *UsersHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req portalsdk.CreateUserRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	u, generated, err := h.UserService.CreateUser(r.Context(), actor(r), service.NewUser{
		Email:       req.Email,
		DisplayName: req.DisplayName,
		Role:        domain.Role(req.Role),
		Password:    req.Password,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := toUser(u)
	resp.GeneratedPassword = generated
	httpx.WriteJSON(w, http.StatusCreated, resp)
}

// HandleList
//
//	@Summary		List users
//	@Tags			Users
//	@Produce		json
//	@Param			role	query		string	false	"ADMIN, STAFF or CLIENT"
//	@Success		200		{object}	portalsdk.UserListResponse
//	@Failure		403		{object}	portalsdk.ErrorResponse
//	@Security		BearerAuth
//	@Router			/v1/users [get].
func (h *UsersHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	var role domain.Role
	if v := r.URL.Query().Get("role"); v != "" {
		parsed, ok := domain.ParseRole(v)
		if !ok {
			badRequest(w, "role must be ADMIN, STAFF or CLIENT")
			return
		}
		role = parsed
	}

	users, err := h.UserService.List(r.Context(), actor(r), role)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := portalsdk.UserListResponse{Users: make([]portalsdk.UserResponse, len(users))}
	for i, u := range users {
		resp.Users[i] = toUser(u)
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// HandleDeactivate
//
//	@Summary		Deactivate a user
//	@Description	Disables the account and revokes its web sessions and every mobile refresh family.
//	@Tags			Users
//	@Param			id	path	string	true	"User ID"
//	@Success		204
//	@Failure		403	{object}	portalsdk.ErrorResponse
//	@Failure		404	{object}	portalsdk.ErrorResponse
//	@Security		BearerAuth
//	@Router			/v1/users/{id}/deactivate [post].
func (h *UsersHandler) HandleDeactivate(w http.ResponseWriter, r *http.Request) {
	if err := h.UserService.Deactivate(r.Context(), actor(r), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleMe
//
//	@Summary		Current user
//	@Tags			Users
//	@Produce		json
//	@Success		200	{object}	portalsdk.UserResponse
//	@Failure		401	{object}	portalsdk.ErrorResponse
//	@Security		BearerAuth
//	@Router			/v1/me [get].
func (h *UsersHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	a := actor(r)
	u, err := h.UserService.Get(r.Context(), a, a.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toUser(u))
}
