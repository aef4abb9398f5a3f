package sqlstore

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/ledgerdesk/internal/portal/domain"
	"github.com/aussiebroadwan/ledgerdesk/internal/portal/store"
)

type refreshTokenRow struct {
	ID        string       `db:"id"`
	UserID    string       `db:"user_id"`
	Family    string       `db:"family"`
	TokenHash string       `db:"token_hash"`
	ExpiresAt time.Time    `db:"expires_at"`
	RotatedAt sql.NullTime `db:"rotated_at"`
	RevokedAt sql.NullTime `db:"revoked_at"`
	CreatedAt time.Time    `db:"created_at"`
}

func mapRefreshToken(row refreshTokenRow) domain.RefreshToken {
	return domain.RefreshToken{
		ID:        row.ID,
		UserID:    row.UserID,
		Family:    row.Family,
		TokenHash: row.TokenHash,
		ExpiresAt: row.ExpiresAt.UTC(),
		RotatedAt: mapNullTimePtr(row.RotatedAt),
		RevokedAt: mapNullTimePtr(row.RevokedAt),
		CreatedAt: row.CreatedAt.UTC(),
	}
}

const refreshTokenColumns = `id, user_id, family, token_hash, expires_at, rotated_at, revoked_at, created_at`

type refreshTokensRepo struct {
	conn
}

func (r *refreshTokensRepo) CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error {
	_, err := r.exec(ctx, `
		INSERT INTO refresh_tokens (`+refreshTokenColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.Family, t.TokenHash, utc(t.ExpiresAt),
		mapOptionalTime(t.RotatedAt), mapOptionalTime(t.RevokedAt), utc(t.CreatedAt),
	)
	return err
}

func (r *refreshTokensRepo) GetRefreshTokenByHash(ctx context.Context, hash string) (domain.RefreshToken, error) {
	var row refreshTokenRow
	err := r.get(ctx, &row, `SELECT `+refreshTokenColumns+` FROM refresh_tokens WHERE token_hash = ?`, hash)
	if err != nil {
		return domain.RefreshToken{}, err
	}
	return mapRefreshToken(row), nil
}

func (r *refreshTokensRepo) MarkRotated(ctx context.Context, hash string, now time.Time) error {
	n, err := r.exec(ctx, `
		UPDATE refresh_tokens SET rotated_at = ?
		WHERE token_hash = ?
		  AND rotated_at IS NULL
		  AND revoked_at IS NULL
		  AND expires_at > ?`,
		utc(now), hash, utc(now),
	)
	if err != nil {
		return err
	}
	if n != 1 {
		return store.ErrConflict
	}
	return nil
}

func (r *refreshTokensRepo) RevokeFamily(ctx context.Context, family string, now time.Time) (int64, error) {
	return r.exec(ctx, `UPDATE refresh_tokens SET revoked_at = ? WHERE family = ? AND revoked_at IS NULL`,
		utc(now), family)
}

func (r *refreshTokensRepo) RevokeAllForUser(ctx context.Context, userID string, now time.Time) (int64, error) {
	return r.exec(ctx, `UPDATE refresh_tokens SET revoked_at = ? WHERE user_id = ? AND revoked_at IS NULL`,
		utc(now), userID)
}

func (r *refreshTokensRepo) FamilyActive(ctx context.Context, family string, now time.Time) (bool, error) {
	var n int
	err := r.get(ctx, &n, `
		SELECT COUNT(*) FROM refresh_tokens
		WHERE family = ?
		  AND rotated_at IS NULL
		  AND revoked_at IS NULL
		  AND expires_at > ?`,
		family, utc(now),
	)
	return n > 0, err
}

func (r *refreshTokensRepo) ListFamily(ctx context.Context, family string) ([]domain.RefreshToken, error) {
	var rows []refreshTokenRow
	err := r.list(ctx, &rows, `SELECT `+refreshTokenColumns+` FROM refresh_tokens WHERE family = ? ORDER BY created_at, id`, family)
	if err != nil {
		return nil, err
	}
	out := make([]domain.RefreshToken, 0, len(rows))
	for _, row := range rows {
		out = append(out, mapRefreshToken(row))
	}
	return out, nil
}

func (r *refreshTokensRepo) DeleteStaleRefreshTokens(ctx context.Context, cutoff time.Time) (int64, error) {
	c := utc(cutoff)
	return r.exec(ctx, `
		DELETE FROM refresh_tokens
		WHERE expires_at < ? OR revoked_at < ? OR rotated_at < ?`,
		c, c, c,
	)
}
