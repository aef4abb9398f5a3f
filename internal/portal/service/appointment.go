package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/ledgerdesk/internal/portal/calendar"
	"github.com/aussiebroadwan/ledgerdesk/internal/portal/domain"
	"github.com/aussiebroadwan/ledgerdesk/internal/portal/policy"
	"github.com/aussiebroadwan/ledgerdesk/internal/portal/store"
	"github.com/aussiebroadwan/ledgerdesk/internal/portal/tasks"
	"github.com/aussiebroadwan/ledgerdesk/pkg/idx"
	"github.com/aussiebroadwan/ledgerdesk/pkg/slogx"
	"golang.org/x/sync/errgroup"
)

type AppointmentService struct {
	Store    store.Store
	Calendar calendar.Client
	Hours    calendar.WorkingHours
	Tasks    Enqueuer
	Inbox    Inbox
	Now      func() time.Time
}

// Availability lists the free slots of the working day containing day.
// Calendar busy time and existing bookings are fetched concurrently.
func (s *AppointmentService) Availability(ctx context.Context, day time.Time) ([]domain.Slot, error) {
	win, ok := s.Hours.Window(day)
	if !ok {
		return []domain.Slot{}, nil
	}

	var busy, booked []domain.Slot
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		busy, err = s.Calendar.FreeBusy(gctx, win.Start, win.End)
		return err
	})
	g.Go(func() error {
		appts, err := s.Store.Appointments().ListActiveBetween(gctx, win.Start, win.End)
		if err != nil {
			return err
		}
		for _, a := range appts {
			booked = append(booked, domain.Slot{Start: a.StartsAt, End: a.EndsAt})
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return calendar.Free(s.Hours.Slots(day), append(busy, booked...), clock(s.Now).now()), nil
}

type BookingRequest struct {
	Name     string
	Email    string
	Phone    string
	Topic    string
	Notes    string
	StartsAt time.Time
}

// Book reserves a slot. The slot is checked against the calendar first and
// against other bookings inside the insert transaction.
func (s *AppointmentService) Book(ctx context.Context, req BookingRequest) (domain.Appointment, error) {
	l := slogx.FromContext(ctx)

	name, err := requireText("name", req.Name, 120)
	if err != nil {
		return domain.Appointment{}, err
	}
	email, err := validEmail(req.Email)
	if err != nil {
		return domain.Appointment{}, err
	}
	phone, err := optionalText("phone", req.Phone, 40)
	if err != nil {
		return domain.Appointment{}, err
	}
	topic, err := optionalText("topic", req.Topic, 200)
	if err != nil {
		return domain.Appointment{}, err
	}
	notes, err := optionalProse("notes", req.Notes, 2000)
	if err != nil {
		return domain.Appointment{}, err
	}

	now := clock(s.Now).now()
	slot := domain.Slot{Start: req.StartsAt, End: req.StartsAt.Add(s.Hours.SlotLength)}
	if !s.Hours.IsSlot(slot) {
		return domain.Appointment{}, invalid("starts_at is not a bookable slot")
	}
	if slot.Start.Before(now) {
		return domain.Appointment{}, ErrSlotUnavailable
	}

	busy, err := s.Calendar.FreeBusy(ctx, slot.Start, slot.End)
	if err != nil {
		return domain.Appointment{}, err
	}
	for _, b := range busy {
		if slot.Overlaps(b) {
			return domain.Appointment{}, ErrSlotUnavailable
		}
	}

	a := domain.Appointment{
		ID:        idx.NewString(),
		Name:      name,
		Email:     email,
		Phone:     phone,
		Topic:     topic,
		Notes:     notes,
		StartsAt:  slot.Start.UTC(),
		EndsAt:    slot.End.UTC(),
		Status:    domain.AppointmentRequested,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		taken, err := tx.Appointments().ListActiveBetween(ctx, slot.Start, slot.End)
		if err != nil {
			return err
		}
		if len(taken) > 0 {
			return ErrSlotUnavailable
		}
		if err := tx.Appointments().CreateAppointment(ctx, a); err != nil {
			if errors.Is(err, store.ErrAlreadyExists) {
				return ErrSlotUnavailable
			}
			return err
		}
		return nil
	})
	if err != nil {
		return domain.Appointment{}, err
	}

	when := slot.Start.In(s.Hours.Location).Format("Monday 2 January 2006 at 3:04pm MST")
	sendEmail(ctx, s.Tasks, tasks.Email{
		To:      []string{email},
		Subject: "We have received your appointment request",
		Body:    fmt.Sprintf("Hi %s,\n\nThanks for requesting an appointment on %s. We will confirm it shortly.\n", name, when),
	})
	notifyFirm(ctx, s.Tasks, s.Inbox, tasks.Email{
		ReplyTo: email,
		Subject: "Appointment request: " + name,
		Body:    fmt.Sprintf("%s <%s> requested %s.\nPhone: %s\nTopic: %s\n\n%s\n", name, email, when, phone, topic, notes),
	})

	l.Info("appointment requested", slog.String("appointment_id", a.ID), slog.Time("starts_at", a.StartsAt))
	return a, nil
}

// UpdateStatus moves an appointment along its lifecycle.
func (s *AppointmentService) UpdateStatus(ctx context.Context, actor policy.Actor, id string, to domain.AppointmentStatus) (domain.Appointment, error) {
	if !actor.Can(policy.AppointmentsManage) {
		return domain.Appointment{}, ErrForbidden
	}

	a, err := s.Store.Appointments().GetAppointment(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Appointment{}, ErrAppointmentNotFound
		}
		return domain.Appointment{}, err
	}
	if !a.Status.CanTransition(to) {
		return domain.Appointment{}, ErrInvalidTransition
	}

	now := clock(s.Now).now()
	if err := s.Store.Appointments().UpdateAppointmentStatus(ctx, id, a.Status, to, now); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return domain.Appointment{}, ErrInvalidTransition
		}
		return domain.Appointment{}, err
	}
	from := a.Status
	a.Status, a.UpdatedAt = to, now

	if to == domain.AppointmentConfirmed || to == domain.AppointmentCancelled {
		when := a.StartsAt.In(s.Hours.Location).Format("Monday 2 January 2006 at 3:04pm MST")
		sendEmail(ctx, s.Tasks, tasks.Email{
			To:      []string{a.Email},
			Subject: "Your appointment has been " + statusWord(to),
			Body:    fmt.Sprintf("Hi %s,\n\nYour appointment on %s has been %s.\n", a.Name, when, statusWord(to)),
		})
	}

	slogx.FromContext(ctx).Info("appointment status changed",
		slog.String("appointment_id", id),
		slog.String("from", string(from)),
		slog.String("to", string(to)),
		slog.String("by", actor.UserID),
	)
	return a, nil
}

func statusWord(st domain.AppointmentStatus) string {
	switch st {
	case domain.AppointmentConfirmed:
		return "confirmed"
	case domain.AppointmentCancelled:
		return "cancelled"
	case domain.AppointmentCompleted:
		return "completed"
	}
	return string(st)
}
