package sqlstore

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/ledgerdesk/internal/portal/domain"
	"github.com/aussiebroadwan/ledgerdesk/internal/portal/store"
)

type appointmentRow struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	Email     string    `db:"email"`
	Phone     string    `db:"phone"`
	Topic     string    `db:"topic"`
	Notes     string    `db:"notes"`
	StartsAt  time.Time `db:"starts_at"`
	EndsAt    time.Time `db:"ends_at"`
	Status    string    `db:"status"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func mapAppointment(row appointmentRow) domain.Appointment {
	return domain.Appointment{
		ID:        row.ID,
		Name:      row.Name,
		Email:     row.Email,
		Phone:     row.Phone,
		Topic:     row.Topic,
		Notes:     row.Notes,
		StartsAt:  row.StartsAt.UTC(),
		EndsAt:    row.EndsAt.UTC(),
		Status:    domain.AppointmentStatus(row.Status),
		CreatedAt: row.CreatedAt.UTC(),
		UpdatedAt: row.UpdatedAt.UTC(),
	}
}

const appointmentColumns = `id, name, email, phone, topic, notes, starts_at, ends_at, status, created_at, updated_at`

type appointmentsRepo struct {
	conn
}

func (r *appointmentsRepo) CreateAppointment(ctx context.Context, a domain.Appointment) error {
	_, err := r.exec(ctx, `
		INSERT INTO appointments (`+appointmentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Name, a.Email, a.Phone, a.Topic, a.Notes, utc(a.StartsAt), utc(a.EndsAt),
		string(a.Status), utc(a.CreatedAt), utc(a.UpdatedAt),
	)
	return err
}

func (r *appointmentsRepo) GetAppointment(ctx context.Context, id string) (domain.Appointment, error) {
	var row appointmentRow
	if err := r.get(ctx, &row, `SELECT `+appointmentColumns+` FROM appointments WHERE id = ?`, id); err != nil {
		return domain.Appointment{}, err
	}
	return mapAppointment(row), nil
}

func (r *appointmentsRepo) ListActiveBetween(ctx context.Context, from, to time.Time) ([]domain.Appointment, error) {
	var rows []appointmentRow
	err := r.list(ctx, &rows, `
		SELECT `+appointmentColumns+` FROM appointments
		WHERE status <> ? AND starts_at < ? AND ends_at > ?
		ORDER BY starts_at`,
		string(domain.AppointmentCancelled), utc(to), utc(from),
	)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Appointment, 0, len(rows))
	for _, row := range rows {
		out = append(out, mapAppointment(row))
	}
	return out, nil
}

func (r *appointmentsRepo) UpdateAppointmentStatus(
	ctx context.Context,
	id string,
	from, to domain.AppointmentStatus,
	now time.Time,
) error {
	n, err := r.exec(ctx, `UPDATE appointments SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(to), utc(now), id, string(from))
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrConflict
	}
	return nil
}

type enquiryRow struct {
	ID        string       `db:"id"`
	Name      string       `db:"name"`
	Email     string       `db:"email"`
	Phone     string       `db:"phone"`
	Subject   string       `db:"subject"`
	Message   string       `db:"message"`
	HandledAt sql.NullTime `db:"handled_at"`
	HandledBy string       `db:"handled_by"`
	CreatedAt time.Time    `db:"created_at"`
}

func mapEnquiry(row enquiryRow) domain.Enquiry {
	return domain.Enquiry{
		ID:        row.ID,
		Name:      row.Name,
		Email:     row.Email,
		Phone:     row.Phone,
		Subject:   row.Subject,
		Message:   row.Message,
		HandledAt: mapNullTimePtr(row.HandledAt),
		HandledBy: row.HandledBy,
		CreatedAt: row.CreatedAt.UTC(),
	}
}

const enquiryColumns = `id, name, email, phone, subject, message, handled_at, handled_by, created_at`

type enquiriesRepo struct {
	conn
}

func (r *enquiriesRepo) CreateEnquiry(ctx context.Context, e domain.Enquiry) error {
	_, err := r.exec(ctx, `INSERT INTO enquiries (`+enquiryColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Name, e.Email, e.Phone, e.Subject, e.Message,
		mapOptionalTime(e.HandledAt), e.HandledBy, utc(e.CreatedAt))
	return err
}

func (r *enquiriesRepo) ListEnquiries(ctx context.Context, openOnly bool, limit, offset int) ([]domain.Enquiry, error) {
	limit, offset = pageArgs(limit, offset)
	q := `SELECT ` + enquiryColumns + ` FROM enquiries`
	if openOnly {
		q += ` WHERE handled_at IS NULL`
	}
	q += ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`

	var rows []enquiryRow
	if err := r.list(ctx, &rows, q, limit, offset); err != nil {
		return nil, err
	}
	out := make([]domain.Enquiry, 0, len(rows))
	for _, row := range rows {
		out = append(out, mapEnquiry(row))
	}
	return out, nil
}

func (r *enquiriesRepo) MarkEnquiryHandled(ctx context.Context, id, by string, now time.Time) error {
	return r.execOne(ctx, `UPDATE enquiries SET handled_at = ?, handled_by = ? WHERE id = ?`, utc(now), by, id)
}
