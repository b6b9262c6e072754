package pg

import (
	"context"
	"fmt"
	"hash/fnv"
	"io/fs"
	"sort"
	"time"

	migrations "github.com/ediflysi/jetdesk/migrations/postgres"
)

// migrationLockID es un advisory lock fijo: una sola instancia corre las
// migraciones, el resto espera.
func migrationLockID() int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte("jetdesk:migrate"))
	return int64(h.Sum64())
}

// Migrate aplica las migraciones embebidas pendientes en orden lexicográfico.
// Registra cada archivo aplicado en schema_migrations para no re-aplicarlo.
func (s *Store) Migrate(ctx context.Context) (int, error) {
	lockID := migrationLockID()

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer conn.Release()

	lctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if _, err := conn.Exec(lctx, `select pg_advisory_lock($1)`, lockID); err != nil {
		return 0, fmt.Errorf("pg: migration lock: %w", err)
	}
	defer func() {
		_, _ = conn.Exec(context.Background(), `select pg_advisory_unlock($1)`, lockID)
	}()

	if _, err := conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			filename text PRIMARY KEY,
			applied_at timestamptz NOT NULL DEFAULT now()
		)`); err != nil {
		return 0, err
	}

	entries, err := fs.Glob(migrations.PostgresFS, "*.sql")
	if err != nil {
		return 0, err
	}
	sort.Strings(entries)

	applied := 0
	for _, name := range entries {
		var done bool
		if err := conn.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE filename = $1)`, name).Scan(&done); err != nil {
			return applied, err
		}
		if done {
			continue
		}
		sqlBytes, err := fs.ReadFile(migrations.PostgresFS, name)
		if err != nil {
			return applied, err
		}
		if _, err := conn.Exec(ctx, string(sqlBytes)); err != nil {
			return applied, fmt.Errorf("pg: apply %s: %w", name, err)
		}
		if _, err := conn.Exec(ctx,
			`INSERT INTO schema_migrations (filename) VALUES ($1)`, name); err != nil {
			return applied, err
		}
		applied++
	}
	return applied, nil
}
