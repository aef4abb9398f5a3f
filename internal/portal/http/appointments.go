package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/aussiebroadwan/ledgerdesk/internal/portal/domain"
	"github.com/aussiebroadwan/ledgerdesk/internal/portal/service"
	"github.com/aussiebroadwan/ledgerdesk/pkg/httpx"
	"github.com/aussiebroadwan/ledgerdesk/pkg/portalsdk"
)

const dateLayout = "2006-01-02"

type AppointmentsHandler struct {
	AppointmentService *service.AppointmentService
}

// HandleAvailability
//
//	@Summary		Free appointment slots
//	@Description	Lists the bookable slots of one day, excluding busy calendar time, existing bookings and past slots.
//	@Tags			Appointments
//	@Produce		json
//	@Param			date	query		string	true	"Day as YYYY-MM-DD in the firm's time zone"
//	@Success		200		{object}	portalsdk.AvailabilityResponse
//	@Failure		400		{object}	portalsdk.ErrorResponse
//	@Failure		503		{object}	portalsdk.ErrorResponse	"calendar_unavailable"
//	@Router			/v1/appointments/availability [get].
func (h *AppointmentsHandler) HandleAvailability(w http.ResponseWriter, r *http.Request) {
	loc := h.AppointmentService.Hours.Location
	if loc == nil {
		loc = time.UTC
	}
	raw := r.URL.Query().Get("date")
	day, err := time.ParseInLocation(dateLayout, raw, loc)
	if err != nil {
		badRequest(w, "date must be YYYY-MM-DD")
		return
	}

	slots, err := h.AppointmentService.Availability(r.Context(), day)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := portalsdk.AvailabilityResponse{Date: raw, Slots: make([]portalsdk.SlotResponse, len(slots))}
	for i, s := range slots {
		resp.Slots[i] = portalsdk.SlotResponse{Start: s.Start, End: s.End}
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// HandleBook
//
//	@Summary		Request an appointment
//	@Description	Books one free slot. The firm confirms it later.
//	@Tags			Appointments
//	@Accept			json
//	@Produce		json
//	@Param			request	body		portalsdk.AppointmentRequest	true	"Booking"
//	@Success		201		{object}	portalsdk.AppointmentResponse
//	@Failure		400		{object}	portalsdk.ErrorResponse
//	@Failure		409		{object}	portalsdk.ErrorResponse	"slot_unavailable"
//	@Failure		503		{object}	portalsdk.ErrorResponse	"calendar_unavailable"
//	@Router			/v1/appointments [post].
func (h *AppointmentsHandler) HandleBook(w http.ResponseWriter, r *http.Request) {
	var req portalsdk.AppointmentRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	a, err := h.AppointmentService.Book(r.Context(), service.BookingRequest{
		Name:     req.Name,
		Email:    req.Email,
		Phone:    req.Phone,
		Topic:    req.Topic,
		Notes:    req.Notes,
		StartsAt: req.StartsAt,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, toAppointment(a))
}

// HandleUpdateStatus
//
//	@Summary		Change appointment status
//	@Description	REQUESTED moves to CONFIRMED or CANCELLED; CONFIRMED moves to COMPLETED or CANCELLED.
//	@Tags			Appointments
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string								true	"Appointment ID"
//	@Param			request	body		portalsdk.AppointmentStatusRequest	true	"New status"
//	@Success		200		{object}	portalsdk.AppointmentResponse
//	@Failure		403		{object}	portalsdk.ErrorResponse
//	@Failure		404		{object}	portalsdk.ErrorResponse
//	@Failure		409		{object}	portalsdk.ErrorResponse	"invalid_transition"
//	@Security		BearerAuth
//	@Router			/v1/appointments/{id} [patch].
func (h *AppointmentsHandler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req portalsdk.AppointmentStatusRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	to := domain.AppointmentStatus(strings.ToUpper(strings.TrimSpace(req.Status)))
	a, err := h.AppointmentService.UpdateStatus(r.Context(), actor(r), r.PathValue("id"), to)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toAppointment(a))
}
