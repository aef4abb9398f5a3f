package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/ledgerdesk/internal/portal/domain"
	"github.com/aussiebroadwan/ledgerdesk/internal/portal/policy"
	"github.com/aussiebroadwan/ledgerdesk/internal/portal/store"
	"github.com/aussiebroadwan/ledgerdesk/internal/portal/tasks"
	"github.com/aussiebroadwan/ledgerdesk/pkg/idx"
	"github.com/aussiebroadwan/ledgerdesk/pkg/slogx"
)

type EnquiryService struct {
	Store store.Store
	Tasks Enqueuer
	Inbox Inbox
	Now   func() time.Time
}

type EnquiryInput struct {
	Name    string
	Email   string
	Phone   string
	Subject string
	Message string
}

// Submit stores a contact form enquiry and queues the firm notification.
func (s *EnquiryService) Submit(ctx context.Context, in EnquiryInput) (domain.Enquiry, error) {
	var (
		e   domain.Enquiry
		err error
	)
	if e.Name, err = requireText("name", in.Name, 120); err != nil {
		return domain.Enquiry{}, err
	}
	if e.Email, err = validEmail(in.Email); err != nil {
		return domain.Enquiry{}, err
	}
	if e.Phone, err = optionalText("phone", in.Phone, 40); err != nil {
		return domain.Enquiry{}, err
	}
	if e.Subject, err = optionalText("subject", in.Subject, 200); err != nil {
		return domain.Enquiry{}, err
	}
	if e.Message, err = requireProse("message", in.Message, 5000); err != nil {
		return domain.Enquiry{}, err
	}
	e.ID = idx.NewString()
	e.CreatedAt = clock(s.Now).now()

	if err := s.Store.Enquiries().CreateEnquiry(ctx, e); err != nil {
		return domain.Enquiry{}, err
	}

	subject := e.Subject
	if subject == "" {
		subject = "Website enquiry"
	}
	notifyFirm(ctx, s.Tasks, s.Inbox, tasks.Email{
		ReplyTo: e.Email,
		Subject: "Enquiry: " + subject,
		Body:    fmt.Sprintf("From: %s <%s>\nPhone: %s\n\n%s\n", e.Name, e.Email, e.Phone, e.Message),
	})

	slogx.FromContext(ctx).Info("enquiry received", slog.String("enquiry_id", e.ID))
	return e, nil
}

func (s *EnquiryService) List(ctx context.Context, actor policy.Actor, openOnly bool, limit, offset int) ([]domain.Enquiry, error) {
	if !actor.Can(policy.EnquiriesRead) {
		return nil, ErrForbidden
	}
	return s.Store.Enquiries().ListEnquiries(ctx, openOnly, limit, offset)
}

func (s *EnquiryService) MarkHandled(ctx context.Context, actor policy.Actor, id string) error {
	if !actor.Can(policy.EnquiriesRead) {
		return ErrForbidden
	}
	if err := s.Store.Enquiries().MarkEnquiryHandled(ctx, id, actor.UserID, clock(s.Now).now()); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrEnquiryNotFound
		}
		return err
	}
	return nil
}
