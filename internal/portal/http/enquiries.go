package http

import (
	"net/http"

	"github.com/aussiebroadwan/ledgerdesk/internal/portal/service"
	"github.com/aussiebroadwan/ledgerdesk/pkg/httpx"
	"github.com/aussiebroadwan/ledgerdesk/pkg/portalsdk"
)

type EnquiriesHandler struct {
	EnquiryService *service.EnquiryService
}

// HandleSubmit
//
//	@Summary		Submit a contact enquiry
//	@Tags			Enquiries
//	@Accept			json
//	@Produce		json
//	@Param			request	body		portalsdk.EnquiryRequest	true	"Enquiry"
//	@Success		201		{object}	portalsdk.EnquiryResponse
//	@Failure		400		{object}	portalsdk.ErrorResponse
//	@Router			/v1/enquiries [post].
func (h *EnquiriesHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	var req portalsdk.EnquiryRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	e, err := h.EnquiryService.Submit(r.Context(), service.EnquiryInput{
		Name:    req.Name,
		Email:   req.Email,
		Phone:   req.Phone,
		Subject: req.Subject,
		Message: req.Message,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, toEnquiry(e))
}

// HandleList
//
//	@Summary		List enquiries
//	@Tags			Enquiries
//	@Produce		json
//	@Param			open	query		bool	false	"Only unhandled enquiries"
//	@Param			limit	query		int		false	"Page size"
//	@Param			offset	query		int		false	"Page offset"
//	@Success		200		{object}	portalsdk.EnquiryListResponse
//	@Failure		403		{object}	portalsdk.ErrorResponse
//	@Security		BearerAuth
//	@Router			/v1/enquiries [get].
func (h *EnquiriesHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit, ok1 := queryInt(r, "limit")
	offset, ok2 := queryInt(r, "offset")
	if !ok1 || !ok2 {
		badRequest(w, "limit and offset must be non-negative integers")
		return
	}
	open := r.URL.Query().Get("open") == "true"

	items, err := h.EnquiryService.List(r.Context(), actor(r), open, limit, offset)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := portalsdk.EnquiryListResponse{Enquiries: make([]portalsdk.EnquiryResponse, len(items))}
	for i, e := range items {
		resp.Enquiries[i] = toEnquiry(e)
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// HandleMarkHandled
//
//	@Summary		Mark an enquiry handled
//	@Tags			Enquiries
//	@Param			id	path	string	true	"Enquiry ID"
//	@Success		204
//	@Failure		403	{object}	portalsdk.ErrorResponse
//	@Failure		404	{object}	portalsdk.ErrorResponse
//	@Security		BearerAuth
//	@Router			/v1/enquiries/{id}/handled [post].
func (h *EnquiriesHandler) HandleMarkHandled(w http.ResponseWriter, r *http.Request) {
	if err := h.EnquiryService.MarkHandled(r.Context(), actor(r), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
