package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/ledgerdesk/internal/portal/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")

	// ErrConflict is returned by conditional updates whose precondition no
	// longer holds (row already rotated, grant already used, ...).
	ErrConflict = errors.New("store: conditional update lost")
)

// Store is the root data access interface. Repositories hang off it so a
// transaction can hand out the same repositories bound to the tx.
type Store interface {
	Users() Users
	Sessions() Sessions
	RefreshTokens() RefreshTokens
	Documents() Documents
	Folders() Folders
	Tools() Tools
	Leads() Leads
	OTPChallenges() OTPChallenges
	DownloadGrants() DownloadGrants
	Appointments() Appointments
	Enquiries() Enquiries
	Settings() Settings
	DeadLetters() DeadLetters

	ApplyMigrations() error

	// Tx starts a read/write transaction. The caller MUST Commit or Rollback.
	Tx(ctx context.Context) (Tx, error)

	// WithTx runs fn in a transaction, committing when fn returns nil and
	// rolling back otherwise.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error
	Ping(ctx context.Context) error
}

// Tx is a transaction-scoped Store. Nested transactions are not supported.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	CreateUser(ctx context.Context, u domain.User) error
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByEmail expects a normalized email.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	ListUsers(ctx context.Context, role domain.Role) ([]domain.User, error)
	SetActive(ctx context.Context, id string, active bool, now time.Time) error
	UpdatePasswordHash(ctx context.Context, id, hash string, now time.Time) error

	// CountAdmins is used to guard bootstrap.
	CountAdmins(ctx context.Context) (int, error)
}

type Sessions interface {
	CreateSession(ctx context.Context, s domain.WebSession) error
	GetSessionByHash(ctx context.Context, hash string) (domain.WebSession, error)
	DeleteSessionByHash(ctx context.Context, hash string) error
	DeleteUserSessions(ctx context.Context, userID string) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

type RefreshTokens interface {
	CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error
	GetRefreshTokenByHash(ctx context.Context, hash string) (domain.RefreshToken, error)

	// MarkRotated moves an ACTIVE row to ROTATED. It returns ErrConflict when
	// the row is missing, already rotated, revoked or expired at now. This
	// is the single-use gate for rotation.
	MarkRotated(ctx context.Context, hash string, now time.Time) error

	// RevokeFamily revokes every not-yet-revoked row of family.
	RevokeFamily(ctx context.Context, family string, now time.Time) (int64, error)

	// RevokeAllForUser revokes every not-yet-revoked row of a user.
	RevokeAllForUser(ctx context.Context, userID string, now time.Time) (int64, error)

	// FamilyActive is true while at least one ACTIVE row exists in family.
	FamilyActive(ctx context.Context, family string, now time.Time) (bool, error)

	ListFamily(ctx context.Context, family string) ([]domain.RefreshToken, error)

	// DeleteStaleRefreshTokens removes rows that expired or were revoked or
	// rotated before cutoff.
	DeleteStaleRefreshTokens(ctx context.Context, cutoff time.Time) (int64, error)
}

type Documents interface {
	CreateDocument(ctx context.Context, d domain.Document) error
	GetDocument(ctx context.Context, id string) (domain.Document, error)
	ListDocuments(ctx context.Context, f domain.DocumentFilter) ([]domain.Document, error)

	// UpdateDocumentMetadata writes title, category and folder only.
	UpdateDocumentMetadata(ctx context.Context, d domain.Document) error
	DeleteDocument(ctx context.Context, id string) error
	CountFolderDocuments(ctx context.Context, folderID string) (int, error)
}

type Folders interface {
	CreateFolder(ctx context.Context, f domain.Folder) error
	GetFolder(ctx context.Context, id string) (domain.Folder, error)
	ListFolders(ctx context.Context, ownerID string) ([]domain.Folder, error)
	DeleteFolder(ctx context.Context, id string) error
}

type Tools interface {
	CreateTool(ctx context.Context, t domain.Tool) error
	GetToolBySlug(ctx context.Context, slug string) (domain.Tool, error)
	ListTools(ctx context.Context, activeOnly bool) ([]domain.Tool, error)
}

type Leads interface {
	CreateLead(ctx context.Context, l domain.Lead) error
	GetLead(ctx context.Context, id string) (domain.Lead, error)
	GetLeadByEmailAndTool(ctx context.Context, email, toolSlug string) (domain.Lead, error)
	TouchLead(ctx context.Context, id, name string, now time.Time) error
	MarkLeadVerified(ctx context.Context, id string, now time.Time) error
	ListLeads(ctx context.Context, limit, offset int) ([]domain.Lead, error)
}

type OTPChallenges interface {
	CreateChallenge(ctx context.Context, c domain.OTPChallenge) error
	GetChallenge(ctx context.Context, id string) (domain.OTPChallenge, error)

	// IncrementAttempts bumps the counter and returns the new value.
	IncrementAttempts(ctx context.Context, id string) (int, error)

	// MarkChallengeVerified returns ErrConflict if already verified.
	MarkChallengeVerified(ctx context.Context, id string, now time.Time) error
	DeleteExpiredChallenges(ctx context.Context, now time.Time) (int64, error)
}

type DownloadGrants interface {
	CreateGrant(ctx context.Context, g domain.DownloadGrant) error

	// RedeemGrant marks an unused, unexpired grant used and returns it.
	// Any other grant yields ErrConflict (or ErrNotFound if unknown).
	RedeemGrant(ctx context.Context, hash string, now time.Time) (domain.DownloadGrant, error)
	DeleteExpiredGrants(ctx context.Context, now time.Time) (int64, error)
}

type Appointments interface {
	CreateAppointment(ctx context.Context, a domain.Appointment) error
	GetAppointment(ctx context.Context, id string) (domain.Appointment, error)

	// ListActiveBetween returns non-cancelled appointments overlapping [from, to).
	ListActiveBetween(ctx context.Context, from, to time.Time) ([]domain.Appointment, error)

	// UpdateAppointmentStatus moves from -> to, ErrConflict if the row is
	// no longer in from.
	UpdateAppointmentStatus(ctx context.Context, id string, from, to domain.AppointmentStatus, now time.Time) error
}

type Enquiries interface {
	CreateEnquiry(ctx context.Context, e domain.Enquiry) error
	ListEnquiries(ctx context.Context, openOnly bool, limit, offset int) ([]domain.Enquiry, error)
	MarkEnquiryHandled(ctx context.Context, id, by string, now time.Time) error
}

type Settings interface {
	GetSetting(ctx context.Context, key string) (domain.Setting, error)
	PutSetting(ctx context.Context, s domain.Setting) error
	ListSettings(ctx context.Context) ([]domain.Setting, error)
}

type DeadLetters interface {
	CreateDeadLetter(ctx context.Context, d domain.DeadLetter) error
	ListDeadLetters(ctx context.Context, limit int) ([]domain.DeadLetter, error)
}
