package domain

import "time"

// Tool is a downloadable resource gated behind lead capture.
type Tool struct {
	ID        string
	Slug      string
	Title     string
	BlobKey   string
	MIMEType  string
	Active    bool
	CreatedAt time.Time
}

type Lead struct {
	ID         string
	Email      string
	Name       string
	ToolSlug   string
	VerifiedAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// OTPChallenge is one emailed code. The secret never leaves the server.
type OTPChallenge struct {
	ID         string
	LeadID     string
	ToolSlug   string
	Secret     string // base32 TOTP secret
	IssuedAt   time.Time
	Attempts   int
	ExpiresAt  time.Time
	VerifiedAt *time.Time
}

// DownloadGrant is a single-use ticket issued after a verified OTP.
type DownloadGrant struct {
	ID        string
	LeadID    string
	ToolSlug  string
	TokenHash string
	ExpiresAt time.Time
	UsedAt    *time.Time
}
