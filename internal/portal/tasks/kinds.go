package tasks

const (
	KindEmailSend        = "email.send"
	KindReplayDetected   = "security.replay_detected"
	KindIntegrityFailure = "security.integrity_failure"
)

// Email is the payload of KindEmailSend.
type Email struct {
	To      []string `json:"to"`
	ReplyTo string   `json:"reply_to,omitempty"`
	Subject string   `json:"subject"`
	Body    string   `json:"body"`
}

// ReplayEvent is the payload of KindReplayDetected.
type ReplayEvent struct {
	UserID  string `json:"user_id"`
	Family  string `json:"family"`
	Revoked int64  `json:"revoked"`
	IP      string `json:"ip,omitempty"`
	At      string `json:"at"`
}

// IntegrityEvent is the payload of KindIntegrityFailure.
type IntegrityEvent struct {
	DocumentID string `json:"document_id"`
	OwnerID    string `json:"owner_id"`
	ActorID    string `json:"actor_id"`
	At         string `json:"at"`
}
