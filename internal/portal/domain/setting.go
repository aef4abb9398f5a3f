package domain

import "time"

// Setting is a persisted key/value pair. Secret values are stored sealed
// and base64 encoded.
type Setting struct {
	Key       string
	Value     string
	Secret    bool
	UpdatedBy string
	UpdatedAt time.Time
}

// SMTPConfig is the typed view over the smtp.* settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	NotifyTo string // firm inbox for enquiries, bookings and uploads
}

// DeadLetter is a background task that exhausted its retries.
type DeadLetter struct {
	ID        string
	Kind      string
	Payload   string
	Error     string
	Attempts  int
	CreatedAt time.Time
}
