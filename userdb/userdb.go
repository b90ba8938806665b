// Package userdb stores storefront accounts.
//
// The same queries run on SQLite (a file path or file: url) and on
// PostgreSQL (postgres:// url); the schema of each dialect is applied
// with goose when the database is opened.
package userdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/andrebq/pizzabox/internal/logutil"
	"github.com/cespare/xxhash/v2"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/mattn/go-sqlite3"
)

type (
	User struct {
		ID           int64
		Email        string
		Name         string
		Phone        string
		PasswordHash string
		CreatedAt    time.Time
		UpdatedAt    time.Time
	}

	NewUser struct {
		Email        string
		Name         string
		Phone        string
		PasswordHash string
	}

	DB struct {
		db      *sql.DB
		dialect dialect
	}

	dialect struct {
		driver     string
		goose      string
		migrations string
		positional bool
	}
)

var (
	sqliteDialect = dialect{
		driver:     "sqlite3",
		goose:      "sqlite3",
		migrations: "migrations/sqlite",
	}
	postgresDialect = dialect{
		driver:     "pgx",
		goose:      "pgx",
		migrations: "migrations/postgres",
		positional: true,
	}
)

// Open connects to dsn and applies any pending migration.
func Open(ctx context.Context, dsn string) (*DB, error) {
	d, connstr, err := parseDSN(dsn)
	if err != nil {
		return nil, err
	}
	conn, err := sql.Open(d.driver, connstr)
	if err != nil {
		return nil, fmt.Errorf("unable to open %v, cause %w", Redact(dsn), err)
	}
	err = conn.PingContext(ctx)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("unable to ping database %v, cause %w", Redact(dsn), err)
	}
	log := logutil.GetOrDefault(ctx).With().Str("component", "userdb").Logger()
	if err := migrate(ctx, conn, d, log); err != nil {
		conn.Close()
		return nil, err
	}
	return &DB{db: conn, dialect: d}, nil
}

func parseDSN(dsn string) (dialect, string, error) {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return postgresDialect, dsn, nil
	case strings.HasPrefix(dsn, "file:"):
		return sqliteDialect, dsn, nil
	case dsn == "" || strings.Contains(dsn, "://"):
		return dialect{}, "", UnsupportedDSN{DSN: dsn}
	}
	err := os.MkdirAll(filepath.Dir(dsn), 0755)
	if err != nil {
		return dialect{}, "", fmt.Errorf("unable to create directory to hold %v, cause %w", dsn, err)
	}
	return sqliteDialect, fmt.Sprintf("file:%v?_journal=wal&_busy_timeout=5000&_foreign_keys=on&mode=rwc", dsn), nil
}

// Redact hides the password of url shaped dsns so they can be logged.
func Redact(dsn string) string {
	if !strings.Contains(dsn, "://") {
		return dsn
	}
	u, err := url.Parse(dsn)
	if err != nil {
		return "<invalid dsn>"
	}
	return u.Redacted()
}

// NormalizeEmail returns the form used to store and compare emails.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (d *DB) FindUserByEmail(ctx context.Context, email string) (*User, error) {
	email, hash := normalizeEmail(email)
	u, err := d.scanUser(d.db.QueryRowContext(ctx, d.rebind(`select user_id, email, name, phone, password, created_at, updated_at
	from users where email_hash64 = ? and email = ?`), hash, email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, UserNotFound{Email: email}
	} else if err != nil {
		return nil, fmt.Errorf("unable to lookup user by email, cause %w", err)
	}
	return u, nil
}

func (d *DB) FindUserByID(ctx context.Context, id int64) (*User, error) {
	u, err := d.scanUser(d.db.QueryRowContext(ctx, d.rebind(`select user_id, email, name, phone, password, created_at, updated_at
	from users where user_id = ?`), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, UserNotFound{ID: id}
	} else if err != nil {
		return nil, fmt.Errorf("unable to lookup user %v, cause %w", id, err)
	}
	return u, nil
}

// InsertUser stores a new account, a second account with the same
// email results in DuplicateEmail.
func (d *DB) InsertUser(ctx context.Context, nu NewUser) (*User, error) {
	email, hash := normalizeEmail(nu.Email)
	now := time.Now().UTC().Truncate(time.Microsecond)
	u := &User{
		Email:        email,
		Name:         nu.Name,
		Phone:        nu.Phone,
		PasswordHash: nu.PasswordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	err := d.db.QueryRowContext(ctx, d.rebind(`insert into users(email, email_hash64, name, phone, password, created_at, updated_at)
	values (?, ?, ?, ?, ?, ?, ?) returning user_id`),
		email, hash, nu.Name, nullString(nu.Phone), nu.PasswordHash, now, now).Scan(&u.ID)
	if isUniqueViolation(err) {
		return nil, DuplicateEmail{Email: email}
	} else if err != nil {
		return nil, fmt.Errorf("unable to insert user, cause %w", err)
	}
	return u, nil
}

func (d *DB) DeleteUser(ctx context.Context, id int64) error {
	res, err := d.db.ExecContext(ctx, d.rebind(`delete from users where user_id = ?`), id)
	if err != nil {
		return fmt.Errorf("unable to delete user %v, cause %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return UserNotFound{ID: id}
	}
	return nil
}

func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) scanUser(row *sql.Row) (*User, error) {
	var u User
	var phone sql.NullString
	err := row.Scan(&u.ID, &u.Email, &u.Name, &phone, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	u.Phone = phone.String
	return &u, nil
}

// rebind turns ? placeholders into $n for drivers that need it
func (d *DB) rebind(query string) string {
	if !d.dialect.positional {
		return query
	}
	var sb strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

func normalizeEmail(email string) (string, int64) {
	email = NormalizeEmail(email)
	return email, int64(xxhash.Sum64String(email))
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
