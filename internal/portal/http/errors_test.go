package http

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aussiebroadwan/ledgerdesk/internal/portal/blob"
	"github.com/aussiebroadwan/ledgerdesk/internal/portal/calendar"
	"github.com/aussiebroadwan/ledgerdesk/internal/portal/service"
	"github.com/aussiebroadwan/ledgerdesk/pkg/cryptox"
	"github.com/aussiebroadwan/ledgerdesk/pkg/httpx"
	"github.com/stretchr/testify/require"
)

func TestErrorMapping(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"replay", service.ErrReplayDetected, http.StatusUnauthorized, "token_replay_detected"},
		{"expired refresh", service.ErrRefreshExpired, http.StatusUnauthorized, "refresh_token_expired"},
		{"bad refresh", service.ErrInvalidRefresh, http.StatusUnauthorized, "invalid_token"},
		{"role", service.ErrRoleNotPermitted, http.StatusForbidden, "role_not_permitted"},
		{"forbidden", service.ErrForbidden, http.StatusForbidden, "forbidden"},
		{"no key", fmt.Errorf("seal: %w", cryptox.ErrKeyNotConfigured), http.StatusInternalServerError, "server_misconfigured"},
		{"tampered", fmt.Errorf("open: %w", cryptox.ErrIntegrity), http.StatusUnprocessableEntity, "document_integrity_failure"},
		{"escape", blob.ErrPathEscape, http.StatusBadRequest, "invalid_path"},
		{"missing blob", blob.ErrNotFound, http.StatusNotFound, "not_found"},
		{"too large", service.ErrUploadTooLarge, http.StatusRequestEntityTooLarge, "payload_too_large"},
		{"media type", service.ErrUnsupportedType, http.StatusUnsupportedMediaType, "unsupported_media_type"},
		{"attempts", service.ErrTooManyAttempts, http.StatusTooManyRequests, "too_many_attempts"},
		{"calendar", fmt.Errorf("freebusy: %w", calendar.ErrUnavailable), http.StatusServiceUnavailable, "calendar_unavailable"},
		{"unknown", errors.New("disk on fire"), http.StatusInternalServerError, "server_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := apiErr(r, tt.err)
			require.Equal(t, tt.status, got.StatusCode)
			require.Equal(t, tt.code, got.Code)
		})
	}
}

func TestValidationErrorsKeepDetail(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	got := apiErr(r, fmt.Errorf("%w: title is required", service.ErrInvalidInput))
	require.Equal(t, http.StatusBadRequest, got.StatusCode)
	require.Equal(t, "invalid_request", got.Code)
	require.Equal(t, "title is required", got.Description)

	got = apiErr(r, fmt.Errorf("%w: unexpected EOF", httpx.ErrBadJSON))
	require.Equal(t, "invalid_request", got.Code)
	require.Equal(t, "unexpected EOF", got.Description)
}

func TestWriteErrorSetsNoStore(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, httptest.NewRequest(http.MethodGet, "/", nil), service.ErrForbidden)

	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Contains(t, rec.Header().Get("Cache-Control"), "no-store")
	requireError(t, rec, http.StatusForbidden, "forbidden")
}
