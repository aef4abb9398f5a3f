package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/ledgerdesk/internal/portal/blob"
	"github.com/aussiebroadwan/ledgerdesk/internal/portal/calendar"
	"github.com/aussiebroadwan/ledgerdesk/internal/portal/service"
	"github.com/aussiebroadwan/ledgerdesk/internal/portal/store"
	"github.com/aussiebroadwan/ledgerdesk/pkg/cryptox"
	"github.com/aussiebroadwan/ledgerdesk/pkg/httpx"
	"github.com/aussiebroadwan/ledgerdesk/pkg/portalsdk"
	"github.com/aussiebroadwan/ledgerdesk/pkg/slogx"
)

// errorMapping pairs a sentinel with the response written for it. Order
// matters: the first match wins.
type errorMapping struct {
	target error
	resp   *portalsdk.APIError
}

func coded(status int, err error, desc string) *portalsdk.APIError {
	return portalsdk.NewAPIError(status, err.Error(), desc)
}

var errorMappings = []errorMapping{
	// Configuration and integrity come first: they can wrap anything.
	{cryptox.ErrKeyNotConfigured, portalsdk.ErrServerMisconfigured},
	{cryptox.ErrIntegrity, portalsdk.ErrIntegrityFailure},
	{blob.ErrPathEscape, portalsdk.ErrInvalidPath},

	// Tokens and sessions
	{service.ErrReplayDetected, portalsdk.ErrReplayDetected},
	{service.ErrRefreshExpired, portalsdk.ErrRefreshExpired},
	{service.ErrInvalidRefresh, portalsdk.ErrInvalidToken},
	{service.ErrSessionInvalid, portalsdk.ErrInvalidToken},
	{service.ErrGrantInvalid, coded(http.StatusUnauthorized, service.ErrGrantInvalid, "download link is invalid, expired or already used")},
	{service.ErrInvalidCredentials, portalsdk.ErrInvalidCredentials},
	{service.ErrUserInactive, coded(http.StatusForbidden, service.ErrUserInactive, "this account has been deactivated")},
	{service.ErrRoleNotPermitted, portalsdk.ErrRoleNotPermitted},
	{service.ErrForbidden, portalsdk.ErrForbidden},

	// Bootstrap
	{service.ErrBootstrapDisabled, coded(http.StatusNotFound, service.ErrBootstrapDisabled, "bootstrap endpoint is not enabled")},
	{service.ErrBootstrapUnauthorized, coded(http.StatusUnauthorized, service.ErrBootstrapUnauthorized, "bootstrap token is missing or wrong")},
	{service.ErrBootstrapAlready, coded(http.StatusConflict, service.ErrBootstrapAlready, "an administrator already exists")},

	// Not found
	{service.ErrDocumentNotFound, coded(http.StatusNotFound, service.ErrDocumentNotFound, "document not found")},
	{service.ErrFolderNotFound, coded(http.StatusNotFound, service.ErrFolderNotFound, "folder not found")},
	{service.ErrUserNotFound, coded(http.StatusNotFound, service.ErrUserNotFound, "user not found")},
	{service.ErrToolNotFound, coded(http.StatusNotFound, service.ErrToolNotFound, "tool not found")},
	{service.ErrChallengeNotFound, coded(http.StatusNotFound, service.ErrChallengeNotFound, "verification code request not found")},
	{service.ErrAppointmentNotFound, coded(http.StatusNotFound, service.ErrAppointmentNotFound, "appointment not found")},
	{service.ErrEnquiryNotFound, coded(http.StatusNotFound, service.ErrEnquiryNotFound, "enquiry not found")},
	{service.ErrUnknownSetting, coded(http.StatusNotFound, service.ErrUnknownSetting, "unknown setting")},
	{blob.ErrNotFound, portalsdk.ErrNotFound},
	{store.ErrNotFound, portalsdk.ErrNotFound},

	// Conflicts
	{service.ErrEmailTaken, coded(http.StatusConflict, service.ErrEmailTaken, "a user with this email already exists")},
	{service.ErrFolderExists, coded(http.StatusConflict, service.ErrFolderExists, "a folder with this name already exists")},
	{service.ErrFolderNotEmpty, coded(http.StatusConflict, service.ErrFolderNotEmpty, "folder still contains documents")},
	{service.ErrToolExists, coded(http.StatusConflict, service.ErrToolExists, "a tool with this slug already exists")},
	{service.ErrSlotUnavailable, coded(http.StatusConflict, service.ErrSlotUnavailable, "that time is no longer available")},
	{service.ErrInvalidTransition, coded(http.StatusConflict, service.ErrInvalidTransition, "appointment cannot move to that status")},
	{store.ErrAlreadyExists, portalsdk.NewAPIError(http.StatusConflict, portalsdk.ErrorCodeConflict, "resource already exists")},
	{store.ErrConflict, portalsdk.NewAPIError(http.StatusConflict, portalsdk.ErrorCodeConflict, "resource was modified concurrently")},

	// Uploads and codes
	{service.ErrUploadTooLarge, portalsdk.NewAPIError(http.StatusRequestEntityTooLarge, portalsdk.ErrorCodePayloadTooLarge, "upload exceeds the size limit")},
	{service.ErrUnsupportedType, portalsdk.NewAPIError(http.StatusUnsupportedMediaType, portalsdk.ErrorCodeUnsupportedMediaType, "file type is not accepted")},
	{service.ErrTooManyAttempts, portalsdk.NewAPIError(http.StatusTooManyRequests, portalsdk.ErrorCodeTooManyAttempts, "too many attempts, request a new code")},
	{service.ErrChallengeExpired, coded(http.StatusGone, service.ErrChallengeExpired, "code has expired or was already used")},
	{service.ErrInvalidCode, coded(http.StatusBadRequest, service.ErrInvalidCode, "code is incorrect")},

	{calendar.ErrUnavailable, portalsdk.ErrCalendarUnavailable},
}

// writeError maps err onto the API error taxonomy. Unknown errors are
// logged and reported as a bare 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	apiErr(r, err).WriteError(w)
}

func apiErr(r *http.Request, err error) *portalsdk.APIError {
	// Validation errors carry their own description after the code.
	if errors.Is(err, service.ErrInvalidInput) || errors.Is(err, httpx.ErrBadJSON) {
		return portalsdk.ErrInvalidRequest.WithDescription(detail(err))
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return m.resp
		}
	}

	slogx.FromContext(r.Context()).Error("unhandled error", "error", err)
	return portalsdk.ErrServerError
}

// detail strips the sentinel prefix from a wrapped validation error.
func detail(err error) string {
	msg := err.Error()
	for _, prefix := range []string{service.ErrInvalidInput.Error() + ": ", httpx.ErrBadJSON.Error() + ": "} {
		if rest, ok := strings.CutPrefix(msg, prefix); ok {
			return rest
		}
	}
	return msg
}

// badRequest writes a 400 invalid_request with desc.
func badRequest(w http.ResponseWriter, desc string) {
	portalsdk.ErrInvalidRequest.WithDescription(desc).WriteError(w)
}
