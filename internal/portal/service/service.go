// Package service holds the portal's business operations. Services take a
// policy.Actor for anything access controlled and return the sentinels in
// errors.go.
package service

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode"

	"github.com/aussiebroadwan/ledgerdesk/internal/portal/tasks"
	"github.com/aussiebroadwan/ledgerdesk/pkg/slogx"
)

// Enqueuer is satisfied by *tasks.Queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, kind string, payload any) error
}

// Inbox resolves the firm's notification address.
type Inbox interface {
	NotifyAddress(ctx context.Context) (string, error)
}

type clock func() time.Time

func (c clock) now() time.Time {
	if c == nil {
		return time.Now().UTC()
	}
	return c().UTC()
}

// sendEmail queues a message. Delivery problems never fail the caller.
func sendEmail(ctx context.Context, q Enqueuer, e tasks.Email) {
	if q == nil || len(e.To) == 0 {
		return
	}
	if err := q.Enqueue(ctx, tasks.KindEmailSend, e); err != nil {
		slogx.FromContext(ctx).Warn("failed to enqueue email", "subject", e.Subject, "error", err)
	}
}

// notifyFirm sends e to the firm inbox, if one is configured.
func notifyFirm(ctx context.Context, q Enqueuer, inbox Inbox, e tasks.Email) {
	if inbox == nil {
		return
	}
	addr, err := inbox.NotifyAddress(ctx)
	if err != nil {
		slogx.FromContext(ctx).Warn("failed to resolve firm inbox", "error", err)
		return
	}
	if addr == "" {
		return
	}
	e.To = []string{addr}
	sendEmail(ctx, q, e)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// requireText trims s and checks it is present, a single line and at most
// max runes.
func requireText(field, s string, max int) (string, error) {
	return checkText(field, s, max, true, false)
}

func optionalText(field, s string, max int) (string, error) {
	return checkText(field, s, max, false, false)
}

// requireProse is requireText for free-form fields that may span lines.
func requireProse(field, s string, max int) (string, error) {
	return checkText(field, s, max, true, true)
}

func optionalProse(field, s string, max int) (string, error) {
	return checkText(field, s, max, false, true)
}

func checkText(field, s string, max int, required, multiline bool) (string, error) {
	s = strings.TrimSpace(s)
	if required && s == "" {
		return "", invalid("%s is required", field)
	}
	if len([]rune(s)) > max {
		return "", invalid("%s is too long", field)
	}
	for _, r := range s {
		if multiline && (r == '\n' || r == '\r' || r == '\t') {
			continue
		}
		if unicode.IsControl(r) {
			return "", invalid("%s contains control characters", field)
		}
	}
	return s, nil
}

// validEmail normalises and checks an address.
func validEmail(s string) (string, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || len(s) > 254 {
		return "", invalid("email is required")
	}
	a, err := mail.ParseAddress(s)
	if err != nil || a.Address != s {
		return "", invalid("email is not a valid address")
	}
	return s, nil
}
