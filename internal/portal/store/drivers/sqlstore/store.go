// Package sqlstore implements store.Store on sqlx. The same queries run on
// sqlite (modernc) and postgres (pgx); placeholders are written as ? and
// rebound per driver.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/aussiebroadwan/ledgerdesk/internal/portal/store"
)

type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// ParseDialect maps a config value to a Dialect.
func ParseDialect(s string) (Dialect, error) {
	switch s {
	case "", "sqlite", "sqlite3":
		return DialectSQLite, nil
	case "postgres", "postgresql", "pgx":
		return DialectPostgres, nil
	}
	return "", fmt.Errorf("sqlstore: unknown driver %q", s)
}

func (d Dialect) driverName() string {
	if d == DialectPostgres {
		return "pgx"
	}
	return "sqlite"
}

// SQLiteDSN builds a modernc DSN for a database file with WAL, a busy
// timeout and foreign keys enabled.
func SQLiteDSN(path string) string {
	return fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)", path)
}

type Store struct {
	db      *sqlx.DB
	dialect Dialect
}

func NewStore(dialect Dialect, dsn string) (*Store, error) {
	db, err := sqlx.Open(dialect.driverName(), dsn)
	if err != nil {
		return nil, err
	}

	if dialect == DialectSQLite {
		// One writer. Keeps :memory: databases alive and avoids SQLITE_BUSY
		// on concurrent rotations.
		db.SetMaxOpenConns(1)

		if _, err := db.ExecContext(context.Background(), `PRAGMA foreign_keys = ON;`); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	return &Store{db: db, dialect: dialect}, nil
}

func (s *Store) Dialect() Dialect { return s.dialect }

func (s *Store) Close() error { return s.db.Close() }

// Ping verifies the database connection is still alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Tx starts a read/write transaction and returns a Tx-scoped Store.
func (s *Store) Tx(ctx context.Context) (store.Tx, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return newTx(tx), nil
}

// WithTx executes fn within a transaction, committing on success.
func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	tx, err := s.Tx(ctx)
	if err != nil {
		return err
	}

	defer func() {
		_ = tx.Rollback() // no-op after commit
	}()

	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *Store) Users() store.Users                   { return &usersRepo{conn{s.db}} }
func (s *Store) Sessions() store.Sessions             { return &sessionsRepo{conn{s.db}} }
func (s *Store) RefreshTokens() store.RefreshTokens   { return &refreshTokensRepo{conn{s.db}} }
func (s *Store) Documents() store.Documents           { return &documentsRepo{conn{s.db}} }
func (s *Store) Folders() store.Folders               { return &foldersRepo{conn{s.db}} }
func (s *Store) Tools() store.Tools                   { return &toolsRepo{conn{s.db}} }
func (s *Store) Leads() store.Leads                   { return &leadsRepo{conn{s.db}} }
func (s *Store) OTPChallenges() store.OTPChallenges   { return &otpChallengesRepo{conn{s.db}} }
func (s *Store) DownloadGrants() store.DownloadGrants { return &downloadGrantsRepo{conn{s.db}} }
func (s *Store) Appointments() store.Appointments     { return &appointmentsRepo{conn{s.db}} }
func (s *Store) Enquiries() store.Enquiries           { return &enquiriesRepo{conn{s.db}} }
func (s *Store) Settings() store.Settings             { return &settingsRepo{conn{s.db}} }
func (s *Store) DeadLetters() store.DeadLetters       { return &deadLettersRepo{conn{s.db}} }

// querier is what *sqlx.DB and *sqlx.Tx have in common.
type querier interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
}

type conn struct {
	q querier
}

func (c conn) get(ctx context.Context, dest any, query string, args ...any) error {
	return mapNotFound(c.q.GetContext(ctx, dest, c.q.Rebind(query), args...))
}

func (c conn) list(ctx context.Context, dest any, query string, args ...any) error {
	return c.q.SelectContext(ctx, dest, c.q.Rebind(query), args...)
}

func (c conn) exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := c.q.ExecContext(ctx, c.q.Rebind(query), args...)
	if err != nil {
		return 0, mapConstraint(err)
	}
	return res.RowsAffected()
}

// execOne runs a statement that must touch exactly one row.
func (c conn) execOne(ctx context.Context, query string, args ...any) error {
	n, err := c.exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func mapNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

// mapConstraint turns unique violations from either driver into
// store.ErrAlreadyExists.
func mapConstraint(err error) error {
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return fmt.Errorf("%w: %v", store.ErrAlreadyExists, err)
		}
		return err
	}
	var pe *pgconn.PgError
	if errors.As(err, &pe) && pe.Code == "23505" {
		return fmt.Errorf("%w: %v", store.ErrAlreadyExists, err)
	}
	return err
}

// utc normalises every timestamp written so sqlite's text comparison
// orders correctly.
func utc(t time.Time) time.Time { return t.UTC().Truncate(time.Microsecond) }

func mapNullTimePtr(nt sql.NullTime) *time.Time {
	if nt.Valid {
		val := nt.Time.UTC()
		return &val
	}
	return nil
}

func mapOptionalTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{Valid: false}
	}
	return sql.NullTime{Time: utc(*t), Valid: true}
}

func mapNullStringPtr(ns sql.NullString) *string {
	if ns.Valid {
		val := ns.String
		return &val
	}
	return nil
}

func mapOptionalString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: *s, Valid: true}
}

func pageArgs(limit, offset int) (int, int) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
