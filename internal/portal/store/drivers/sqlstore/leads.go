package sqlstore

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/ledgerdesk/internal/portal/domain"
	"github.com/aussiebroadwan/ledgerdesk/internal/portal/store"
)

type toolRow struct {
	ID        string    `db:"id"`
	Slug      string    `db:"slug"`
	Title     string    `db:"title"`
	BlobKey   string    `db:"blob_key"`
	MIMEType  string    `db:"mime_type"`
	Active    bool      `db:"active"`
	CreatedAt time.Time `db:"created_at"`
}

func mapTool(row toolRow) domain.Tool {
	return domain.Tool{
		ID:        row.ID,
		Slug:      row.Slug,
		Title:     row.Title,
		BlobKey:   row.BlobKey,
		MIMEType:  row.MIMEType,
		Active:    row.Active,
		CreatedAt: row.CreatedAt.UTC(),
	}
}

const toolColumns = `id, slug, title, blob_key, mime_type, active, created_at`

type toolsRepo struct {
	conn
}

func (r *toolsRepo) CreateTool(ctx context.Context, t domain.Tool) error {
	_, err := r.exec(ctx, `INSERT INTO tools (`+toolColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Slug, t.Title, t.BlobKey, t.MIMEType, t.Active, utc(t.CreatedAt))
	return err
}

func (r *toolsRepo) GetToolBySlug(ctx context.Context, slug string) (domain.Tool, error) {
	var row toolRow
	if err := r.get(ctx, &row, `SELECT `+toolColumns+` FROM tools WHERE slug = ?`, slug); err != nil {
		return domain.Tool{}, err
	}
	return mapTool(row), nil
}

func (r *toolsRepo) ListTools(ctx context.Context, activeOnly bool) ([]domain.Tool, error) {
	var rows []toolRow
	var err error
	if activeOnly {
		err = r.list(ctx, &rows, `SELECT `+toolColumns+` FROM tools WHERE active = ? ORDER BY slug`, true)
	} else {
		err = r.list(ctx, &rows, `SELECT `+toolColumns+` FROM tools ORDER BY slug`)
	}
	if err != nil {
		return nil, err
	}
	out := make([]domain.Tool, 0, len(rows))
	for _, row := range rows {
		out = append(out, mapTool(row))
	}
	return out, nil
}

type leadRow struct {
	ID         string       `db:"id"`
	Email      string       `db:"email"`
	Name       string       `db:"name"`
	ToolSlug   string       `db:"tool_slug"`
	VerifiedAt sql.NullTime `db:"verified_at"`
	CreatedAt  time.Time    `db:"created_at"`
	UpdatedAt  time.Time    `db:"updated_at"`
}

func mapLead(row leadRow) domain.Lead {
	return domain.Lead{
		ID:         row.ID,
		Email:      row.Email,
		Name:       row.Name,
		ToolSlug:   row.ToolSlug,
		VerifiedAt: mapNullTimePtr(row.VerifiedAt),
		CreatedAt:  row.CreatedAt.UTC(),
		UpdatedAt:  row.UpdatedAt.UTC(),
	}
}

const leadColumns = `id, email, name, tool_slug, verified_at, created_at, updated_at`

type leadsRepo struct {
	conn
}

func (r *leadsRepo) CreateLead(ctx context.Context, l domain.Lead) error {
	_, err := r.exec(ctx, `INSERT INTO leads (`+leadColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.Email, l.Name, l.ToolSlug, mapOptionalTime(l.VerifiedAt), utc(l.CreatedAt), utc(l.UpdatedAt))
	return err
}

func (r *leadsRepo) GetLead(ctx context.Context, id string) (domain.Lead, error) {
	var row leadRow
	if err := r.get(ctx, &row, `SELECT `+leadColumns+` FROM leads WHERE id = ?`, id); err != nil {
		return domain.Lead{}, err
	}
	return mapLead(row), nil
}

func (r *leadsRepo) GetLeadByEmailAndTool(ctx context.Context, email, toolSlug string) (domain.Lead, error) {
	var row leadRow
	err := r.get(ctx, &row, `SELECT `+leadColumns+` FROM leads WHERE email = ? AND tool_slug = ?`, email, toolSlug)
	if err != nil {
		return domain.Lead{}, err
	}
	return mapLead(row), nil
}

func (r *leadsRepo) TouchLead(ctx context.Context, id, name string, now time.Time) error {
	return r.execOne(ctx, `UPDATE leads SET name = ?, updated_at = ? WHERE id = ?`, name, utc(now), id)
}

func (r *leadsRepo) MarkLeadVerified(ctx context.Context, id string, now time.Time) error {
	return r.execOne(ctx, `UPDATE leads SET verified_at = ?, updated_at = ? WHERE id = ?`, utc(now), utc(now), id)
}

func (r *leadsRepo) ListLeads(ctx context.Context, limit, offset int) ([]domain.Lead, error) {
	limit, offset = pageArgs(limit, offset)
	var rows []leadRow
	err := r.list(ctx, &rows, `SELECT `+leadColumns+` FROM leads ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Lead, 0, len(rows))
	for _, row := range rows {
		out = append(out, mapLead(row))
	}
	return out, nil
}

type challengeRow struct {
	ID         string       `db:"id"`
	LeadID     string       `db:"lead_id"`
	ToolSlug   string       `db:"tool_slug"`
	Secret     string       `db:"secret"`
	IssuedAt   time.Time    `db:"issued_at"`
	Attempts   int          `db:"attempts"`
	ExpiresAt  time.Time    `db:"expires_at"`
	VerifiedAt sql.NullTime `db:"verified_at"`
}

func mapChallenge(row challengeRow) domain.OTPChallenge {
	return domain.OTPChallenge{
		ID:         row.ID,
		LeadID:     row.LeadID,
		ToolSlug:   row.ToolSlug,
		Secret:     row.Secret,
		IssuedAt:   row.IssuedAt.UTC(),
		Attempts:   row.Attempts,
		ExpiresAt:  row.ExpiresAt.UTC(),
		VerifiedAt: mapNullTimePtr(row.VerifiedAt),
	}
}

const challengeColumns = `id, lead_id, tool_slug, secret, issued_at, attempts, expires_at, verified_at`

type otpChallengesRepo struct {
	conn
}

func (r *otpChallengesRepo) CreateChallenge(ctx context.Context, c domain.OTPChallenge) error {
	_, err := r.exec(ctx, `INSERT INTO otp_challenges (`+challengeColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.LeadID, c.ToolSlug, c.Secret, utc(c.IssuedAt), c.Attempts, utc(c.ExpiresAt), mapOptionalTime(c.VerifiedAt))
	return err
}

func (r *otpChallengesRepo) GetChallenge(ctx context.Context, id string) (domain.OTPChallenge, error) {
	var row challengeRow
	if err := r.get(ctx, &row, `SELECT `+challengeColumns+` FROM otp_challenges WHERE id = ?`, id); err != nil {
		return domain.OTPChallenge{}, err
	}
	return mapChallenge(row), nil
}

func (r *otpChallengesRepo) IncrementAttempts(ctx context.Context, id string) (int, error) {
	var n int
	err := r.get(ctx, &n, `UPDATE otp_challenges SET attempts = attempts + 1 WHERE id = ? RETURNING attempts`, id)
	return n, err
}

func (r *otpChallengesRepo) MarkChallengeVerified(ctx context.Context, id string, now time.Time) error {
	n, err := r.exec(ctx, `UPDATE otp_challenges SET verified_at = ? WHERE id = ? AND verified_at IS NULL`, utc(now), id)
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrConflict
	}
	return nil
}

func (r *otpChallengesRepo) DeleteExpiredChallenges(ctx context.Context, now time.Time) (int64, error) {
	return r.exec(ctx, `DELETE FROM otp_challenges WHERE expires_at <= ?`, utc(now))
}

type grantRow struct {
	ID        string       `db:"id"`
	LeadID    string       `db:"lead_id"`
	ToolSlug  string       `db:"tool_slug"`
	TokenHash string       `db:"token_hash"`
	ExpiresAt time.Time    `db:"expires_at"`
	UsedAt    sql.NullTime `db:"used_at"`
}

func mapGrant(row grantRow) domain.DownloadGrant {
	return domain.DownloadGrant{
		ID:        row.ID,
		LeadID:    row.LeadID,
		ToolSlug:  row.ToolSlug,
		TokenHash: row.TokenHash,
		ExpiresAt: row.ExpiresAt.UTC(),
		UsedAt:    mapNullTimePtr(row.UsedAt),
	}
}

const grantColumns = `id, lead_id, tool_slug, token_hash, expires_at, used_at`

type downloadGrantsRepo struct {
	conn
}

func (r *downloadGrantsRepo) CreateGrant(ctx context.Context, g domain.DownloadGrant) error {
	_, err := r.exec(ctx, `INSERT INTO download_grants (`+grantColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		g.ID, g.LeadID, g.ToolSlug, g.TokenHash, utc(g.ExpiresAt), mapOptionalTime(g.UsedAt))
	return err
}

func (r *downloadGrantsRepo) RedeemGrant(ctx context.Context, hash string, now time.Time) (domain.DownloadGrant, error) {
	n, err := r.exec(ctx, `
		UPDATE download_grants SET used_at = ?
		WHERE token_hash = ? AND used_at IS NULL AND expires_at > ?`,
		utc(now), hash, utc(now),
	)
	if err != nil {
		return domain.DownloadGrant{}, err
	}

	var row grantRow
	if err := r.get(ctx, &row, `SELECT `+grantColumns+` FROM download_grants WHERE token_hash = ?`, hash); err != nil {
		return domain.DownloadGrant{}, err
	}
	if n == 0 {
		return mapGrant(row), store.ErrConflict
	}
	return mapGrant(row), nil
}

func (r *downloadGrantsRepo) DeleteExpiredGrants(ctx context.Context, now time.Time) (int64, error) {
	return r.exec(ctx, `DELETE FROM download_grants WHERE expires_at <= ?`, utc(now))
}
