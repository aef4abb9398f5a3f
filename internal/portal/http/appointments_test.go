package http

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/aussiebroadwan/ledgerdesk/internal/portal/calendar"
	"github.com/aussiebroadwan/ledgerdesk/internal/portal/domain"
	"github.com/aussiebroadwan/ledgerdesk/pkg/portalsdk"
	"github.com/stretchr/testify/require"
)

// nextMonday is at least a day ahead so none of its slots are in the past.
func nextMonday() time.Time {
	d := time.Now().UTC().AddDate(0, 0, 1)
	for d.Weekday() != time.Monday {
		d = d.AddDate(0, 0, 1)
	}
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
}

type downCalendar struct{}

func (downCalendar) FreeBusy(context.Context, time.Time, time.Time) ([]domain.Slot, error) {
	return nil, calendar.ErrUnavailable
}

func TestAvailabilityAndBooking(t *testing.T) {
	e := newEnv(t, "doc-key")
	day := nextMonday()
	path := "/v1/appointments/availability?date=" + day.Format(dateLayout)

	rec := e.do(t, http.MethodGet, path, nil, noAuth)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	avail := decode[portalsdk.AvailabilityResponse](t, rec)
	require.Equal(t, day.Format(dateLayout), avail.Date)
	require.Len(t, avail.Slots, 16)

	req := portalsdk.AppointmentRequest{Name: "Sam Client", Email: "sam@example.com", Topic: "BAS", StartsAt: avail.Slots[0].Start}
	rec = e.do(t, http.MethodPost, "/v1/appointments", req, noAuth)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	appt := decode[portalsdk.AppointmentResponse](t, rec)
	require.Equal(t, "REQUESTED", appt.Status)
	require.True(t, appt.StartsAt.Equal(avail.Slots[0].Start))

	req.Email = "other@example.com"
	rec = e.do(t, http.MethodPost, "/v1/appointments", req, noAuth)
	requireError(t, rec, http.StatusConflict, "slot_unavailable")

	rec = e.do(t, http.MethodGet, path, nil, noAuth)
	require.Len(t, decode[portalsdk.AvailabilityResponse](t, rec).Slots, 15)

	staff := withCookie(e.sessionCookie(t, e.user(t, domain.RoleStaff)))
	rec = e.do(t, http.MethodPatch, "/v1/appointments/"+appt.ID, portalsdk.AppointmentStatusRequest{Status: "confirmed"}, staff)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, "CONFIRMED", decode[portalsdk.AppointmentResponse](t, rec).Status)

	rec = e.do(t, http.MethodPatch, "/v1/appointments/"+appt.ID, portalsdk.AppointmentStatusRequest{Status: "REQUESTED"}, staff)
	requireError(t, rec, http.StatusConflict, "invalid_transition")

	client := bearer(e.accessToken(t, e.user(t, domain.RoleClient)))
	rec = e.do(t, http.MethodPatch, "/v1/appointments/"+appt.ID, portalsdk.AppointmentStatusRequest{Status: "CANCELLED"}, client)
	requireError(t, rec, http.StatusForbidden, "forbidden")
}

func TestAvailabilityErrors(t *testing.T) {
	e := newEnv(t, "doc-key")

	rec := e.do(t, http.MethodGet, "/v1/appointments/availability?date=10/03/2025", nil, noAuth)
	requireError(t, rec, http.StatusBadRequest, "invalid_request")

	e.router.AppointmentService.Calendar = downCalendar{}
	rec = e.do(t, http.MethodGet, "/v1/appointments/availability?date="+nextMonday().Format(dateLayout), nil, noAuth)
	requireError(t, rec, http.StatusServiceUnavailable, "calendar_unavailable")
}

func TestEnquiryEndpoints(t *testing.T) {
	e := newEnv(t, "doc-key")

	rec := e.do(t, http.MethodPost, "/v1/enquiries", portalsdk.EnquiryRequest{Name: "Pat", Email: "pat@example.com", Message: "Do you do SMSF audits?"}, noAuth)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	enq := decode[portalsdk.EnquiryResponse](t, rec)
	require.Equal(t, []string{"office@firm.example"}, e.queue.last().To)

	rec = e.do(t, http.MethodPost, "/v1/enquiries", portalsdk.EnquiryRequest{Name: "Pat", Email: "pat@example.com"}, noAuth)
	requireError(t, rec, http.StatusBadRequest, "invalid_request")

	rec = e.do(t, http.MethodGet, "/v1/enquiries", nil, bearer(e.accessToken(t, e.user(t, domain.RoleClient))))
	requireError(t, rec, http.StatusForbidden, "forbidden")

	staff := withCookie(e.sessionCookie(t, e.user(t, domain.RoleStaff)))
	rec = e.do(t, http.MethodPost, "/v1/enquiries/"+enq.ID+"/handled", nil, staff)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = e.do(t, http.MethodGet, "/v1/enquiries?open=true", nil, staff)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, decode[portalsdk.EnquiryListResponse](t, rec).Enquiries)

	rec = e.do(t, http.MethodGet, "/v1/enquiries", nil, staff)
	all := decode[portalsdk.EnquiryListResponse](t, rec).Enquiries
	require.Len(t, all, 1)
	require.NotNil(t, all[0].HandledAt)

	rec = e.do(t, http.MethodPost, "/v1/enquiries/missing/handled", nil, staff)
	requireError(t, rec, http.StatusNotFound, "enquiry_not_found")
}
