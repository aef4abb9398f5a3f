package portalsdk

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/aussiebroadwan/ledgerdesk/pkg/httpx"
)

// ============================================================================
// Error Codes
// ============================================================================

const (
	ErrorCodeInvalidRequest       = "invalid_request"
	ErrorCodeInvalidCredentials   = "invalid_credentials"
	ErrorCodeInvalidToken         = "invalid_token"
	ErrorCodeRefreshExpired       = "refresh_token_expired"
	ErrorCodeReplayDetected       = "token_replay_detected"
	ErrorCodeRoleNotPermitted     = "role_not_permitted"
	ErrorCodeForbidden            = "forbidden"
	ErrorCodeNotFound             = "not_found"
	ErrorCodeConflict             = "conflict"
	ErrorCodeInvalidPath          = "invalid_path"
	ErrorCodeIntegrityFailure     = "document_integrity_failure"
	ErrorCodeServerMisconfigured  = "server_misconfigured"
	ErrorCodeUnsupportedMediaType = "unsupported_media_type"
	ErrorCodePayloadTooLarge      = "payload_too_large"
	ErrorCodeTooManyAttempts      = "too_many_attempts"
	ErrorCodeCalendarUnavailable  = "calendar_unavailable"
	ErrorCodeServerError          = "server_error"
)

// ============================================================================
// APIError
// ============================================================================

// APIError is the error shape of every non-2xx response. The server writes
// it with WriteError and the client parses responses back into it.
type APIError struct {
	// StatusCode is the HTTP status code for this error
	StatusCode int `json:"-"`

	// Code is the machine readable error code (e.g. "invalid_token")
	Code string `json:"error"`

	// Description is a human-readable description of the error
	Description string `json:"error_description"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// Is matches on status and code so callers can compare with the predefined
// errors using errors.Is.
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	if !ok {
		return false
	}
	return e.StatusCode == t.StatusCode && e.Code == t.Code
}

// WriteError writes this APIError to an HTTP response writer.
func (e *APIError) WriteError(w http.ResponseWriter) {
	httpx.NoCache(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.StatusCode)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error:            e.Code,
		ErrorDescription: e.Description,
	})
}

// WithDescription returns a copy of e with a different description.
func (e *APIError) WithDescription(desc string) *APIError {
	c := *e
	c.Description = desc
	return &c
}

// NewAPIError creates an APIError with the given status, code and description.
func NewAPIError(statusCode int, code, description string) *APIError {
	return &APIError{StatusCode: statusCode, Code: code, Description: description}
}

// ============================================================================
// Predefined Errors
// ============================================================================

var (
	ErrInvalidRequest = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidRequest,
		Description: "the request is malformed or missing required parameters",
	}

	ErrInvalidCredentials = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeInvalidCredentials,
		Description: "invalid email or password",
	}

	// ErrInvalidToken is returned when a bearer, refresh or session token
	// is missing, invalid, expired or revoked.
	ErrInvalidToken = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeInvalidToken,
		Description: "the token is missing, invalid, expired or revoked",
	}

	ErrRefreshExpired = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeRefreshExpired,
		Description: "the refresh token has expired, sign in again",
	}

	// ErrReplayDetected is returned when a refresh token that was already
	// used is presented again. The whole token family has been revoked.
	ErrReplayDetected = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeReplayDetected,
		Description: "refresh token reuse detected, all sessions from this sign-in were ended",
	}

	ErrRoleNotPermitted = &APIError{
		StatusCode:  http.StatusForbidden,
		Code:        ErrorCodeRoleNotPermitted,
		Description: "this account may not use the mobile app",
	}

	ErrForbidden = &APIError{
		StatusCode:  http.StatusForbidden,
		Code:        ErrorCodeForbidden,
		Description: "you do not have access to this resource",
	}

	ErrNotFound = &APIError{
		StatusCode:  http.StatusNotFound,
		Code:        ErrorCodeNotFound,
		Description: "resource not found",
	}

	ErrInvalidPath = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidPath,
		Description: "storage path is invalid",
	}

	ErrIntegrityFailure = &APIError{
		StatusCode:  http.StatusUnprocessableEntity,
		Code:        ErrorCodeIntegrityFailure,
		Description: "the stored document failed its integrity check",
	}

	ErrServerMisconfigured = &APIError{
		StatusCode:  http.StatusInternalServerError,
		Code:        ErrorCodeServerMisconfigured,
		Description: "the server is not configured to serve this request",
	}

	ErrCalendarUnavailable = &APIError{
		StatusCode:  http.StatusServiceUnavailable,
		Code:        ErrorCodeCalendarUnavailable,
		Description: "availability is temporarily unavailable",
	}

	ErrServerError = &APIError{
		StatusCode:  http.StatusInternalServerError,
		Code:        ErrorCodeServerError,
		Description: "internal server error",
	}
)

// ============================================================================
// Error Parsing Helpers
// ============================================================================

// parseErrorResponse turns a non-2xx response into an *APIError.
func parseErrorResponse(resp *http.Response, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		return &APIError{
			StatusCode:  resp.StatusCode,
			Code:        errResp.Error,
			Description: errResp.ErrorDescription,
		}
	}

	return &APIError{
		StatusCode:  resp.StatusCode,
		Code:        ErrorCodeServerError,
		Description: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
	}
}
