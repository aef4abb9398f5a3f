package portalsdk

import "time"

// ErrorResponse is the JSON body of every error response.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// ============================================================================
// Health
// ============================================================================

type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime"`
	Version string        `json:"version"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

type HealthChecks struct {
	Database string `json:"database"`
	Storage  string `json:"storage"`
	Crypto   string `json:"crypto"`
}

// ============================================================================
// Accounts & sessions
// ============================================================================

type BootstrapRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Password    string `json:"password"`
}

type CreateUserRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
	Password    string `json:"password,omitempty"`
}

type UserResponse struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	Role        string    `json:"role"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`

	// GeneratedPassword is only set when the server generated one.
	GeneratedPassword string `json:"generated_password,omitempty"`
}

type UserListResponse struct {
	Users []UserResponse `json:"users"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type SessionResponse struct {
	User      UserResponse `json:"user"`
	ExpiresAt time.Time    `json:"expires_at"`
}

// ============================================================================
// Mobile tokens
// ============================================================================

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type TokenResponse struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	TokenType        string    `json:"token_type"`
	ExpiresIn        int       `json:"expires_in"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

type LogoutAllResponse struct {
	Revoked int64 `json:"revoked"`
}

// ============================================================================
// Documents & folders
// ============================================================================

type DocumentResponse struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	MIMEType     string    `json:"mime_type"`
	OwnerID      string    `json:"owner_id"`
	UploaderRole string    `json:"uploader_role"`
	SizeBytes    int64     `json:"size_bytes"`
	Category     string    `json:"category"`
	FolderID     *string   `json:"folder_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type DocumentListResponse struct {
	Documents []DocumentResponse `json:"documents"`
}

// DocumentQuery filters GET /v1/documents. Empty fields are ignored.
type DocumentQuery struct {
	OwnerID  string
	FolderID string
	Category string
	Limit    int
	Offset   int
}

// DocumentPatchRequest edits metadata. Nil fields are left unchanged and an
// empty folder_id clears the folder.
type DocumentPatchRequest struct {
	Title    *string `json:"title,omitempty"`
	Category *string `json:"category,omitempty"`
	FolderID *string `json:"folder_id,omitempty"`
}

type FolderRequest struct {
	OwnerID string `json:"owner_id,omitempty"`
	Name    string `json:"name"`
}

type FolderResponse struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type FolderListResponse struct {
	Folders []FolderResponse `json:"folders"`
}

// ============================================================================
// Lead capture
// ============================================================================

type ToolResponse struct {
	Slug     string `json:"slug"`
	Title    string `json:"title"`
	MIMEType string `json:"mime_type"`
}

type ToolListResponse struct {
	Tools []ToolResponse `json:"tools"`
}

type OTPRequest struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	Tool  string `json:"tool"`
}

type OTPResponse struct {
	ChallengeID string    `json:"challenge_id"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type OTPVerifyRequest struct {
	ChallengeID string `json:"challenge_id"`
	Code        string `json:"code"`
}

type GrantResponse struct {
	DownloadToken string    `json:"download_token"`
	Tool          string    `json:"tool"`
	ExpiresAt     time.Time `json:"expires_at"`
}

type LeadResponse struct {
	ID         string     `json:"id"`
	Email      string     `json:"email"`
	Name       string     `json:"name"`
	Tool       string     `json:"tool"`
	VerifiedAt *time.Time `json:"verified_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

type LeadListResponse struct {
	Leads []LeadResponse `json:"leads"`
}

// ============================================================================
// Appointments
// ============================================================================

type SlotResponse struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type AvailabilityResponse struct {
	Date  string         `json:"date"`
	Slots []SlotResponse `json:"slots"`
}

type AppointmentRequest struct {
	Name     string    `json:"name"`
	Email    string    `json:"email"`
	Phone    string    `json:"phone,omitempty"`
	Topic    string    `json:"topic,omitempty"`
	Notes    string    `json:"notes,omitempty"`
	StartsAt time.Time `json:"starts_at"`
}

type AppointmentStatusRequest struct {
	Status string `json:"status"`
}

type AppointmentResponse struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Email    string    `json:"email"`
	StartsAt time.Time `json:"starts_at"`
	EndsAt   time.Time `json:"ends_at"`
	Status   string    `json:"status"`
}

// ============================================================================
// Enquiries & settings
// ============================================================================

type EnquiryRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone,omitempty"`
	Subject string `json:"subject,omitempty"`
	Message string `json:"message"`
}

type EnquiryResponse struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	Phone     string     `json:"phone,omitempty"`
	Subject   string     `json:"subject,omitempty"`
	Message   string     `json:"message"`
	HandledAt *time.Time `json:"handled_at,omitempty"`
	HandledBy string     `json:"handled_by,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

type EnquiryListResponse struct {
	Enquiries []EnquiryResponse `json:"enquiries"`
}

type SettingRequest struct {
	Value string `json:"value"`
}

type SettingResponse struct {
	Key       string     `json:"key"`
	Value     string     `json:"value"`
	Secret    bool       `json:"secret"`
	Set       bool       `json:"set"`
	UpdatedBy string     `json:"updated_by,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}
