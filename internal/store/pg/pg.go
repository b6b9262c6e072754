// Package pg implementa el credential store sobre PostgreSQL (pgx).
package pg

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ediflysi/jetdesk/internal/authz"
	"github.com/ediflysi/jetdesk/internal/domain/repository"
)

// Store implementa repository.CredentialRepository sobre un pool pgx.
type Store struct{ pool *pgxpool.Pool }

// Config son los parámetros de tuning del pool.
type Config struct {
	MaxConns        int32
	MinConns        int32
	ConnMaxLifetime time.Duration
}

// New abre el pool y verifica conectividad con un ping.
func New(ctx context.Context, dsn string, cfg Config) (*Store, error) {
	pcfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("pg: parse dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		pcfg.MinConns = cfg.MinConns
	}
	if cfg.ConnMaxLifetime > 0 {
		pcfg.MaxConnLifetime = cfg.ConnMaxLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("pg: open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pg: ping: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Pool expone el pool interno (health checks, métricas).
func (s *Store) Pool() *pgxpool.Pool {
	if s == nil {
		return nil
	}
	return s.pool
}

// Close cierra el pool subyacente (idempotente).
func (s *Store) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}

const credentialColumns = `id, username, name, email, phone, password_digest,
	level, role, active, blocked, twofa_secret_enc, twofa_enabled,
	failed_attempts, last_failed_at, locked_until, last_login,
	created_by, created_at, updated_at`

func scanCredential(row pgx.Row) (*repository.Credential, error) {
	var (
		c     repository.Credential
		id    uuid.UUID
		level int64
		role  string
	)
	err := row.Scan(&id, &c.Username, &c.Name, &c.Email, &c.Phone, &c.PasswordDigest,
		&level, &role, &c.Active, &c.Blocked, &c.TwoFactorSecretEnc, &c.TwoFactorEnabled,
		&c.Lockout.FailedAttempts, &c.Lockout.LastFailedAt, &c.Lockout.LockedUntil, &c.LastLogin,
		&c.CreatedBy, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	c.ID = id.String()
	c.Level = authz.Permission(level)
	c.Role = authz.Role(role)
	return &c, nil
}

func (s *Store) FindByUsername(ctx context.Context, username string) (*repository.Credential, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+credentialColumns+` FROM credentials WHERE username = $1`,
		strings.ToLower(strings.TrimSpace(username)))
	return scanCredential(row)
}

func (s *Store) FindByID(ctx context.Context, id string) (*repository.Credential, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, repository.ErrNotFound
	}
	row := s.pool.QueryRow(ctx,
		`SELECT `+credentialColumns+` FROM credentials WHERE id = $1`, uid)
	return scanCredential(row)
}

func (s *Store) Create(ctx context.Context, in repository.CreateInput) (*repository.Credential, error) {
	username := strings.ToLower(strings.TrimSpace(in.Username))
	if username == "" || in.PasswordDigest == "" {
		return nil, repository.ErrInvalidInput
	}
	id := uuid.New()
	row := s.pool.QueryRow(ctx, `
		INSERT INTO credentials (id, username, name, email, phone, password_digest, level, role, created_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING `+credentialColumns,
		id, username, in.Name, in.Email, in.Phone, in.PasswordDigest,
		int64(in.Level), string(in.Role), in.CreatedBy)
	c, err := scanCredential(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, repository.ErrConflict
		}
		return nil, err
	}
	return c, nil
}

func (s *Store) UpdateProfile(ctx context.Context, id string, in repository.ProfileInput) error {
	uid, err := uuid.Parse(id)
	if err != nil {
		return repository.ErrNotFound
	}
	// COALESCE deja intacto todo campo nil del input.
	tag, err := s.pool.Exec(ctx, `
		UPDATE credentials
		SET name = COALESCE($2, name),
		    email = COALESCE($3, email),
		    phone = COALESCE($4, phone),
		    updated_at = now()
		WHERE id = $1`, uid, in.Name, in.Email, in.Phone)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (s *Store) UpdatePassword(ctx context.Context, id, newDigest string) error {
	return s.exec(ctx, id,
		`UPDATE credentials SET password_digest = $2, updated_at = now() WHERE id = $1`, newDigest)
}

// AddFailedAttempt es un increment-and-fetch en una sola sentencia: el
// RETURNING garantiza que el contador observado es el que este request
// produjo, sin carrera contra otros logins concurrentes del mismo usuario.
func (s *Store) AddFailedAttempt(ctx context.Context, id string, now time.Time) (int, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return 0, repository.ErrNotFound
	}
	var n int
	err = s.pool.QueryRow(ctx, `
		UPDATE credentials
		SET failed_attempts = failed_attempts + 1,
		    last_failed_at = $2,
		    updated_at = now()
		WHERE id = $1
		RETURNING failed_attempts`, uid, now).Scan(&n)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, repository.ErrNotFound
		}
		return 0, err
	}
	return n, nil
}

func (s *Store) SetLock(ctx context.Context, id string, until time.Time) error {
	return s.exec(ctx, id,
		`UPDATE credentials SET locked_until = $2, updated_at = now() WHERE id = $1`, until)
}

func (s *Store) ResetLockout(ctx context.Context, id string) error {
	return s.exec(ctx, id, `
		UPDATE credentials
		SET failed_attempts = 0, last_failed_at = NULL, locked_until = NULL, updated_at = now()
		WHERE id = $1`)
}

func (s *Store) SetTwoFactorSecret(ctx context.Context, id, secretEnc string) error {
	return s.exec(ctx, id,
		`UPDATE credentials SET twofa_secret_enc = $2, updated_at = now() WHERE id = $1`, secretEnc)
}

func (s *Store) SetTwoFactorEnabled(ctx context.Context, id string, enabled bool) error {
	return s.exec(ctx, id,
		`UPDATE credentials SET twofa_enabled = $2, updated_at = now() WHERE id = $1`, enabled)
}

func (s *Store) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	return s.exec(ctx, id,
		`UPDATE credentials SET last_login = $2, updated_at = now() WHERE id = $1`, at)
}

// exec corre un UPDATE por id y mapea 0 filas afectadas a ErrNotFound.
func (s *Store) exec(ctx context.Context, id, sql string, args ...any) error {
	uid, err := uuid.Parse(id)
	if err != nil {
		return repository.ErrNotFound
	}
	tag, err := s.pool.Exec(ctx, sql, append([]any{uid}, args...)...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pge *pgconn.PgError
	return errors.As(err, &pge) && pge.Code == "23505"
}
