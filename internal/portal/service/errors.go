package service

import "errors"

// Sentinels are mapped to HTTP responses in internal/portal/http. The
// messages double as the wire error codes.
var (
	ErrInvalidInput       = errors.New("invalid_request")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrUserInactive       = errors.New("user_inactive")
	ErrUserNotFound       = errors.New("user_not_found")
	ErrEmailTaken         = errors.New("email_taken")

	ErrBootstrapDisabled     = errors.New("bootstrap_disabled")
	ErrBootstrapAlready      = errors.New("already_bootstrapped")
	ErrBootstrapUnauthorized = errors.New("unauthorized_bootstrap")

	ErrInvalidRefresh   = errors.New("invalid_refresh_token")
	ErrRefreshExpired   = errors.New("refresh_token_expired")
	ErrReplayDetected   = errors.New("token_replay_detected")
	ErrRoleNotPermitted = errors.New("role_not_permitted")
	ErrSessionInvalid   = errors.New("invalid_session")

	ErrDocumentNotFound = errors.New("document_not_found")
	ErrFolderNotFound   = errors.New("folder_not_found")
	ErrFolderNotEmpty   = errors.New("folder_not_empty")
	ErrFolderExists     = errors.New("folder_exists")
	ErrUploadTooLarge   = errors.New("upload_too_large")
	ErrUnsupportedType  = errors.New("unsupported_media_type")

	ErrToolNotFound      = errors.New("tool_not_found")
	ErrToolExists        = errors.New("tool_exists")
	ErrChallengeNotFound = errors.New("challenge_not_found")
	ErrChallengeExpired  = errors.New("challenge_expired")
	ErrTooManyAttempts   = errors.New("too_many_attempts")
	ErrInvalidCode       = errors.New("invalid_code")
	ErrGrantInvalid      = errors.New("invalid_download_grant")

	ErrAppointmentNotFound = errors.New("appointment_not_found")
	ErrSlotUnavailable     = errors.New("slot_unavailable")
	ErrInvalidTransition   = errors.New("invalid_transition")

	ErrEnquiryNotFound = errors.New("enquiry_not_found")
	ErrUnknownSetting  = errors.New("unknown_setting")
)
