package sqlstore

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/aussiebroadwan/ledgerdesk/internal/portal/store"
)

type txStore struct {
	tx *sqlx.Tx
}

func newTx(tx *sqlx.Tx) *txStore {
	return &txStore{tx: tx}
}

func (t *txStore) Commit() error   { return t.tx.Commit() }
func (t *txStore) Rollback() error { return t.tx.Rollback() }

func (t *txStore) Close() error { return nil } // outer DB stays open

func (t *txStore) Ping(ctx context.Context) error { return nil }

func (t *txStore) Tx(ctx context.Context) (store.Tx, error) {
	return nil, sql.ErrTxDone
}

func (t *txStore) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return sql.ErrTxDone
}

func (t *txStore) ApplyMigrations() error { return nil } // applied at startup, never inside a tx

func (t *txStore) Users() store.Users                   { return &usersRepo{conn{t.tx}} }
func (t *txStore) Sessions() store.Sessions             { return &sessionsRepo{conn{t.tx}} }
func (t *txStore) RefreshTokens() store.RefreshTokens   { return &refreshTokensRepo{conn{t.tx}} }
func (t *txStore) Documents() store.Documents           { return &documentsRepo{conn{t.tx}} }
func (t *txStore) Folders() store.Folders               { return &foldersRepo{conn{t.tx}} }
func (t *txStore) Tools() store.Tools                   { return &toolsRepo{conn{t.tx}} }
func (t *txStore) Leads() store.Leads                   { return &leadsRepo{conn{t.tx}} }
func (t *txStore) OTPChallenges() store.OTPChallenges   { return &otpChallengesRepo{conn{t.tx}} }
func (t *txStore) DownloadGrants() store.DownloadGrants { return &downloadGrantsRepo{conn{t.tx}} }
func (t *txStore) Appointments() store.Appointments     { return &appointmentsRepo{conn{t.tx}} }
func (t *txStore) Enquiries() store.Enquiries           { return &enquiriesRepo{conn{t.tx}} }
func (t *txStore) Settings() store.Settings             { return &settingsRepo{conn{t.tx}} }
func (t *txStore) DeadLetters() store.DeadLetters       { return &deadLettersRepo{conn{t.tx}} }
