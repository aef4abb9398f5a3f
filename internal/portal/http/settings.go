package http

import (
	"net/http"

	"github.com/aussiebroadwan/ledgerdesk/internal/portal/service"
	"github.com/aussiebroadwan/ledgerdesk/pkg/httpx"
	"github.com/aussiebroadwan/ledgerdesk/pkg/portalsdk"
)

type SettingsHandler struct {
	SettingsService *service.SettingsService
}

// HandleList
//
//	@Summary		List settings
//	@Description	Returns every known setting. Secret values are masked.
//	@Tags			Settings
//	@Produce		json
//	@Success		200	{array}		portalsdk.SettingResponse
//	@Failure		403	{object}	portalsdk.ErrorResponse
//	@Security		BearerAuth
//	@Router			/v1/settings [get].
func (h *SettingsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	views, err := h.SettingsService.List(r.Context(), actor(r))
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := make([]portalsdk.SettingResponse, len(views))
	for i, v := range views {
		resp[i] = toSetting(v)
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// HandleGet
//
//	@Summary		Read a setting
//	@Tags			Settings
//	@Produce		json
//	@Param			key	path		string	true	"Setting key, e.g. smtp.host"
//	@Success		200	{object}	portalsdk.SettingResponse
//	@Failure		403	{object}	portalsdk.ErrorResponse
//	@Failure		404	{object}	portalsdk.ErrorResponse	"unknown_setting"
//	@Security		BearerAuth
//	@Router			/v1/settings/{key} [get].
func (h *SettingsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	v, err := h.SettingsService.Get(r.Context(), actor(r), r.PathValue("key"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toSetting(v))
}

// HandlePut
//
//	@Summary		Change a setting
//	@Description	Secret settings are encrypted at rest. The settings cache is invalidated for the key.
//	@Tags			Settings
//	@Accept			json
//	@Produce		json
//	@Param			key		path		string						true	"Setting key"
//	@Param			request	body		portalsdk.SettingRequest	true	"New value"
//	@Success		200		{object}	portalsdk.SettingResponse
//	@Failure		400		{object}	portalsdk.ErrorResponse
//	@Failure		403		{object}	portalsdk.ErrorResponse
//	@Failure		404		{object}	portalsdk.ErrorResponse
//	@Failure		500		{object}	portalsdk.ErrorResponse	"server_misconfigured when a secret cannot be sealed"
//	@Security		BearerAuth
//	@Router			/v1/settings/{key} [put].
func (h *SettingsHandler) HandlePut(w http.ResponseWriter, r *http.Request) {
	var req portalsdk.SettingRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	v, err := h.SettingsService.Set(r.Context(), actor(r), r.PathValue("key"), req.Value)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toSetting(v))
}
