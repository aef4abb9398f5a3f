// Package mail delivers outbound email over SMTP using the settings-backed
// configuration read at send time.
package mail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/aussiebroadwan/ledgerdesk/internal/portal/domain"
	"github.com/aussiebroadwan/ledgerdesk/internal/portal/tasks"
	"github.com/aussiebroadwan/ledgerdesk/pkg/idx"
)

var (
	ErrNotConfigured = errors.New("mail: smtp not configured")
	ErrBadHeader     = errors.New("mail: invalid header value")
	ErrNoRecipients  = errors.New("mail: no recipients")
)

type Message struct {
	To      []string
	ReplyTo string
	Subject string
	Body    string
}

type Mailer interface {
	Send(ctx context.Context, m Message) error
}

// ConfigSource yields the current SMTP configuration.
type ConfigSource interface {
	SMTPConfig(ctx context.Context) (domain.SMTPConfig, error)
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

type SMTPMailer struct {
	cfg  ConfigSource
	send sendFunc
	now  func() time.Time
}

func NewSMTPMailer(cfg ConfigSource) *SMTPMailer {
	return &SMTPMailer{cfg: cfg, send: smtp.SendMail, now: time.Now}
}

func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	cfg, err := m.cfg.SMTPConfig(ctx)
	if err != nil {
		return err
	}
	if cfg.Host == "" || cfg.From == "" {
		return ErrNotConfigured
	}
	port := cfg.Port
	if port == 0 {
		port = 587
	}

	raw, rcpts, err := Compose(cfg.From, msg, m.now())
	if err != nil {
		return err
	}

	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(port))
	if err := m.send(addr, auth, bareAddress(cfg.From), rcpts, raw); err != nil {
		return fmt.Errorf("mail: send via %s: %w", addr, err)
	}
	return nil
}

// Compose renders an RFC 5322 plain-text message and returns it with the
// bare recipient addresses.
func Compose(from string, msg Message, now time.Time) ([]byte, []string, error) {
	if len(msg.To) == 0 {
		return nil, nil, ErrNoRecipients
	}
	fromAddr, err := mail.ParseAddress(from)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: from: %v", ErrBadHeader, err)
	}

	rcpts := make([]string, 0, len(msg.To))
	to := make([]string, 0, len(msg.To))
	for _, r := range msg.To {
		a, err := mail.ParseAddress(r)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: to: %v", ErrBadHeader, err)
		}
		rcpts = append(rcpts, a.Address)
		to = append(to, a.String())
	}
	if strings.ContainsAny(msg.Subject, "\r\n") {
		return nil, nil, fmt.Errorf("%w: subject", ErrBadHeader)
	}

	var b bytes.Buffer
	header := func(k, v string) { fmt.Fprintf(&b, "%s: %s\r\n", k, v) }
	header("From", fromAddr.String())
	header("To", strings.Join(to, ", "))
	if msg.ReplyTo != "" {
		a, err := mail.ParseAddress(msg.ReplyTo)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: reply-to: %v", ErrBadHeader, err)
		}
		header("Reply-To", a.String())
	}
	header("Subject", mime.QEncoding.Encode("utf-8", msg.Subject))
	header("Date", now.Format(time.RFC1123Z))
	header("Message-ID", fmt.Sprintf("<%s@%s>", idx.NewString(), domainOf(fromAddr.Address)))
	header("MIME-Version", "1.0")
	header("Content-Type", `text/plain; charset="utf-8"`)
	header("Content-Transfer-Encoding", "8bit")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(strings.ReplaceAll(msg.Body, "\r\n", "\n"), "\n", "\r\n"))
	return b.Bytes(), rcpts, nil
}

func bareAddress(s string) string {
	if a, err := mail.ParseAddress(s); err == nil {
		return a.Address
	}
	return s
}

func domainOf(addr string) string {
	if i := strings.LastIndexByte(addr, '@'); i >= 0 {
		return addr[i+1:]
	}
	return "localhost"
}

// LogMailer logs messages instead of sending them. Used when no SMTP host
// is configured in development.
type LogMailer struct {
	Logger *slog.Logger
}

func (m LogMailer) Send(ctx context.Context, msg Message) error {
	l := m.Logger
	if l == nil {
		l = slog.Default()
	}
	l.InfoContext(ctx, "mail (not sent)", "to", msg.To, "subject", msg.Subject)
	return nil
}

// TaskHandler adapts a Mailer to the email.send task kind.
func TaskHandler(m Mailer) tasks.Handler {
	return func(ctx context.Context, t tasks.Task) error {
		var e tasks.Email
		if err := t.Decode(&e); err != nil {
			return err
		}
		return m.Send(ctx, Message{To: e.To, ReplyTo: e.ReplyTo, Subject: e.Subject, Body: e.Body})
	}
}
