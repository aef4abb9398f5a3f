package http

import (
	"errors"
	"net/http"
	"path"

	"github.com/aussiebroadwan/ledgerdesk/internal/portal/service"
	"github.com/aussiebroadwan/ledgerdesk/pkg/httpx"
	"github.com/aussiebroadwan/ledgerdesk/pkg/portalsdk"
)

// maxToolUpload bounds POST /v1/tools bodies.
const maxToolUpload = 50<<20 + 1<<20

type LeadsHandler struct {
	LeadService *service.LeadService
}

// HandleCreateTool
//
//	@Summary		Publish a downloadable tool
//	@Description	Uploads a lead-capture asset. Requires settings:manage.
//	@Tags			Leads
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			slug	formData	string	true	"URL slug"
//	@Param			title	formData	string	true	"Title"
//	@Param			file	formData	file	true	"Asset"
//	@Success		201		{object}	portalsdk.ToolResponse
//	@Failure		400		{object}	portalsdk.ErrorResponse
//	@Failure		403		{object}	portalsdk.ErrorResponse
//	@Failure		409		{object}	portalsdk.ErrorResponse	"tool_exists"
//	@Security		BearerAuth
//	@Router			/v1/tools [post].
func (h *LeadsHandler) HandleCreateTool(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxToolUpload)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, r, service.ErrUploadTooLarge)
			return
		}
		badRequest(w, "request must be multipart/form-data with a file field")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, _, err := r.FormFile("file")
	if err != nil {
		badRequest(w, "file is required")
		return
	}
	defer file.Close()

	t, err := h.LeadService.CreateTool(r.Context(), actor(r), r.FormValue("slug"), r.FormValue("title"), file)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, toTool(t))
}

// HandleListTools
//
//	@Summary		List downloadable tools
//	@Tags			Leads
//	@Produce		json
//	@Success		200	{object}	portalsdk.ToolListResponse
//	@Router			/v1/tools [get].
func (h *LeadsHandler) HandleListTools(w http.ResponseWriter, r *http.Request) {
	tools, err := h.LeadService.ListTools(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := portalsdk.ToolListResponse{Tools: make([]portalsdk.ToolResponse, len(tools))}
	for i, t := range tools {
		resp.Tools[i] = toTool(t)
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// HandleRequestCode
//
//	@Summary		Email a download code
//	@Description	Records the lead and emails a six digit code valid for ten minutes.
//	@Tags			Leads
//	@Accept			json
//	@Produce		json
//	@Param			request	body		portalsdk.OTPRequest	true	"Lead details"
//	@Success		202		{object}	portalsdk.OTPResponse
//	@Failure		400		{object}	portalsdk.ErrorResponse
//	@Failure		404		{object}	portalsdk.ErrorResponse	"tool_not_found"
//	@Router			/v1/leads/otp [post].
func (h *LeadsHandler) HandleRequestCode(w http.ResponseWriter, r *http.Request) {
	var req portalsdk.OTPRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	ch, err := h.LeadService.RequestCode(r.Context(), req.Email, req.Name, req.Tool)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusAccepted, portalsdk.OTPResponse{ChallengeID: ch.ID, ExpiresAt: ch.ExpiresAt})
}

// HandleVerifyCode
//
//	@Summary		Verify a download code
//	@Description	Exchanges a correct code for a single-use download token valid for fifteen minutes.
//	@Tags			Leads
//	@Accept			json
//	@Produce		json
//	@Param			request	body		portalsdk.OTPVerifyRequest	true	"Challenge and code"
//	@Success		200		{object}	portalsdk.GrantResponse
//	@Failure		400		{object}	portalsdk.ErrorResponse	"invalid_code"
//	@Failure		404		{object}	portalsdk.ErrorResponse	"challenge_not_found"
//	@Failure		410		{object}	portalsdk.ErrorResponse	"challenge_expired"
//	@Failure		429		{object}	portalsdk.ErrorResponse	"too_many_attempts"
//	@Router			/v1/leads/verify [post].
func (h *LeadsHandler) HandleVerifyCode(w http.ResponseWriter, r *http.Request) {
	var req portalsdk.OTPVerifyRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	g, err := h.LeadService.VerifyCode(r.Context(), req.ChallengeID, req.Code)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, portalsdk.GrantResponse{
		DownloadToken: g.Token,
		Tool:          g.ToolSlug,
		ExpiresAt:     g.ExpiresAt,
	})
}

// HandleDownload
//
//	@Summary		Download a tool
//	@Description	Redeems a download token. Each token works once.
//	@Tags			Leads
//	@Produce		application/octet-stream
//	@Param			token	query	string	true	"Download token"
//	@Success		200		{file}	binary
//	@Failure		401		{object}	portalsdk.ErrorResponse	"invalid_download_grant"
//	@Router			/v1/tools/download [get].
func (h *LeadsHandler) HandleDownload(w http.ResponseWriter, r *http.Request) {
	t, data, err := h.LeadService.RedeemDownload(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeFile(w, path.Base(t.Slug), t.MIMEType, data)
}

// HandleListLeads
//
//	@Summary		List captured leads
//	@Tags			Leads
//	@Produce		json
//	@Param			limit	query		int	false	"Page size"
//	@Param			offset	query		int	false	"Page offset"
//	@Success		200		{object}	portalsdk.LeadListResponse
//	@Failure		403		{object}	portalsdk.ErrorResponse
//	@Security		BearerAuth
//	@Router			/v1/leads [get].
func (h *LeadsHandler) HandleListLeads(w http.ResponseWriter, r *http.Request) {
	limit, ok1 := queryInt(r, "limit")
	offset, ok2 := queryInt(r, "offset")
	if !ok1 || !ok2 {
		badRequest(w, "limit and offset must be non-negative integers")
		return
	}

	leads, err := h.LeadService.ListLeads(r.Context(), actor(r), limit, offset)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := portalsdk.LeadListResponse{Leads: make([]portalsdk.LeadResponse, len(leads))}
	for i, l := range leads {
		resp.Leads[i] = toLead(l)
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}
