package sqlstore

import (
	"context"
	"time"

	"github.com/aussiebroadwan/ledgerdesk/internal/portal/domain"
)

type settingRow struct {
	Key       string    `db:"key"`
	Value     string    `db:"value"`
	Secret    bool      `db:"secret"`
	UpdatedBy string    `db:"updated_by"`
	UpdatedAt time.Time `db:"updated_at"`
}

func mapSetting(row settingRow) domain.Setting {
	return domain.Setting{
		Key:       row.Key,
		Value:     row.Value,
		Secret:    row.Secret,
		UpdatedBy: row.UpdatedBy,
		UpdatedAt: row.UpdatedAt.UTC(),
	}
}

type settingsRepo struct {
	conn
}

func (r *settingsRepo) GetSetting(ctx context.Context, key string) (domain.Setting, error) {
	var row settingRow
	err := r.get(ctx, &row, `SELECT key, value, secret, updated_by, updated_at FROM settings WHERE key = ?`, key)
	if err != nil {
		return domain.Setting{}, err
	}
	return mapSetting(row), nil
}

func (r *settingsRepo) PutSetting(ctx context.Context, s domain.Setting) error {
	_, err := r.exec(ctx, `
		INSERT INTO settings (key, value, secret, updated_by, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET
			value = excluded.value,
			secret = excluded.secret,
			updated_by = excluded.updated_by,
			updated_at = excluded.updated_at`,
		s.Key, s.Value, s.Secret, s.UpdatedBy, utc(s.UpdatedAt),
	)
	return err
}

func (r *settingsRepo) ListSettings(ctx context.Context) ([]domain.Setting, error) {
	var rows []settingRow
	if err := r.list(ctx, &rows, `SELECT key, value, secret, updated_by, updated_at FROM settings ORDER BY key`); err != nil {
		return nil, err
	}
	out := make([]domain.Setting, 0, len(rows))
	for _, row := range rows {
		out = append(out, mapSetting(row))
	}
	return out, nil
}

type deadLetterRow struct {
	ID        string    `db:"id"`
	Kind      string    `db:"kind"`
	Payload   string    `db:"payload"`
	Error     string    `db:"error"`
	Attempts  int       `db:"attempts"`
	CreatedAt time.Time `db:"created_at"`
}

type deadLettersRepo struct {
	conn
}

func (r *deadLettersRepo) CreateDeadLetter(ctx context.Context, d domain.DeadLetter) error {
	_, err := r.exec(ctx, `
		INSERT INTO dead_letters (id, kind, payload, error, attempts, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		d.ID, d.Kind, d.Payload, d.Error, d.Attempts, utc(d.CreatedAt),
	)
	return err
}

func (r *deadLettersRepo) ListDeadLetters(ctx context.Context, limit int) ([]domain.DeadLetter, error) {
	limit, _ = pageArgs(limit, 0)
	var rows []deadLetterRow
	err := r.list(ctx, &rows, `
		SELECT id, kind, payload, error, attempts, created_at
		FROM dead_letters ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	out := make([]domain.DeadLetter, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.DeadLetter{
			ID:        row.ID,
			Kind:      row.Kind,
			Payload:   row.Payload,
			Error:     row.Error,
			Attempts:  row.Attempts,
			CreatedAt: row.CreatedAt.UTC(),
		})
	}
	return out, nil
}
