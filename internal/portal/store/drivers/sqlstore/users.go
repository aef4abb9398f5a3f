package sqlstore

import (
	"context"
	"time"

	"github.com/aussiebroadwan/ledgerdesk/internal/portal/domain"
)

type userRow struct {
	ID           string    `db:"id"`
	Email        string    `db:"email"`
	DisplayName  string    `db:"display_name"`
	PasswordHash string    `db:"password_hash"`
	Role         string    `db:"role"`
	Active       bool      `db:"active"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func mapUser(row userRow) domain.User {
	return domain.User{
		ID:           row.ID,
		Email:        row.Email,
		DisplayName:  row.DisplayName,
		PasswordHash: row.PasswordHash,
		Role:         domain.Role(row.Role),
		Active:       row.Active,
		CreatedAt:    row.CreatedAt.UTC(),
		UpdatedAt:    row.UpdatedAt.UTC(),
	}
}

const userColumns = `id, email, display_name, password_hash, role, active, created_at, updated_at`

type usersRepo struct {
	conn
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	_, err := r.exec(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.DisplayName, u.PasswordHash, string(u.Role), u.Active,
		utc(u.CreatedAt), utc(u.UpdatedAt),
	)
	return err
}

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	var row userRow
	if err := r.get(ctx, &row, `SELECT `+userColumns+` FROM users WHERE id = ?`, id); err != nil {
		return domain.User{}, err
	}
	return mapUser(row), nil
}

func (r *usersRepo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	var row userRow
	if err := r.get(ctx, &row, `SELECT `+userColumns+` FROM users WHERE email = ?`, email); err != nil {
		return domain.User{}, err
	}
	return mapUser(row), nil
}

func (r *usersRepo) ListUsers(ctx context.Context, role domain.Role) ([]domain.User, error) {
	var rows []userRow
	var err error
	if role == "" {
		err = r.list(ctx, &rows, `SELECT `+userColumns+` FROM users ORDER BY email`)
	} else {
		err = r.list(ctx, &rows, `SELECT `+userColumns+` FROM users WHERE role = ? ORDER BY email`, string(role))
	}
	if err != nil {
		return nil, err
	}

	users := make([]domain.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, mapUser(row))
	}
	return users, nil
}

func (r *usersRepo) SetActive(ctx context.Context, id string, active bool, now time.Time) error {
	return r.execOne(ctx, `UPDATE users SET active = ?, updated_at = ? WHERE id = ?`, active, utc(now), id)
}

func (r *usersRepo) UpdatePasswordHash(ctx context.Context, id, hash string, now time.Time) error {
	return r.execOne(ctx, `UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`, hash, utc(now), id)
}

func (r *usersRepo) CountAdmins(ctx context.Context) (int, error) {
	var n int
	err := r.get(ctx, &n, `SELECT COUNT(*) FROM users WHERE role = ?`, string(domain.RoleAdmin))
	return n, err
}

type sessionRow struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	TokenHash string    `db:"token_hash"`
	UserAgent string    `db:"user_agent"`
	IP        string    `db:"ip"`
	ExpiresAt time.Time `db:"expires_at"`
	CreatedAt time.Time `db:"created_at"`
}

func mapSession(row sessionRow) domain.WebSession {
	return domain.WebSession{
		ID:        row.ID,
		UserID:    row.UserID,
		TokenHash: row.TokenHash,
		UserAgent: row.UserAgent,
		IP:        row.IP,
		ExpiresAt: row.ExpiresAt.UTC(),
		CreatedAt: row.CreatedAt.UTC(),
	}
}

type sessionsRepo struct {
	conn
}

func (r *sessionsRepo) CreateSession(ctx context.Context, s domain.WebSession) error {
	_, err := r.exec(ctx, `
		INSERT INTO web_sessions (id, user_id, token_hash, user_agent, ip, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.UserID, s.TokenHash, s.UserAgent, s.IP, utc(s.ExpiresAt), utc(s.CreatedAt),
	)
	return err
}

func (r *sessionsRepo) GetSessionByHash(ctx context.Context, hash string) (domain.WebSession, error) {
	var row sessionRow
	err := r.get(ctx, &row, `
		SELECT id, user_id, token_hash, user_agent, ip, expires_at, created_at
		FROM web_sessions WHERE token_hash = ?`, hash)
	if err != nil {
		return domain.WebSession{}, err
	}
	return mapSession(row), nil
}

func (r *sessionsRepo) DeleteSessionByHash(ctx context.Context, hash string) error {
	_, err := r.exec(ctx, `DELETE FROM web_sessions WHERE token_hash = ?`, hash)
	return err
}

func (r *sessionsRepo) DeleteUserSessions(ctx context.Context, userID string) error {
	_, err := r.exec(ctx, `DELETE FROM web_sessions WHERE user_id = ?`, userID)
	return err
}

func (r *sessionsRepo) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	return r.exec(ctx, `DELETE FROM web_sessions WHERE expires_at <= ?`, utc(now))
}
