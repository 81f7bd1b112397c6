package postgres

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/example/booking-reminder/internal/persistence/migration"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrations returns the embedded schema files.
func Migrations() fs.FS {
	sub, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

type migrationExecutor struct {
	pool *pgxpool.Pool
}

func (e migrationExecutor) InitializeVersionTable(ctx context.Context) error {
	_, err := e.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			checksum TEXT,
			execution_time_ms BIGINT
		)`)
	if err != nil {
		return fmt.Errorf("create schema_migrations table: %w", err)
	}
	return nil
}

func (e migrationExecutor) AppliedMigrations(ctx context.Context) ([]migration.AppliedMigration, error) {
	rows, err := e.pool.Query(ctx, `
		SELECT version, applied_at, COALESCE(execution_time_ms, 0), COALESCE(checksum, '')
		FROM schema_migrations
		ORDER BY version ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var applied []migration.AppliedMigration
	for rows.Next() {
		var (
			m         migration.AppliedMigration
			elapsedMS int64
		)
		if err := rows.Scan(&m.Version, &m.AppliedAt, &elapsedMS, &m.Checksum); err != nil {
			return nil, err
		}
		m.ExecutionTime = time.Duration(elapsedMS) * time.Millisecond
		applied = append(applied, m)
	}
	return applied, rows.Err()
}

func (e migrationExecutor) Apply(ctx context.Context, m migration.Migration, statements []string) error {
	started := time.Now()
	return pgx.BeginFunc(ctx, e.pool, func(tx pgx.Tx) error {
		for i, stmt := range statements {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("statement %d: %w", i+1, err)
			}
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO schema_migrations (version, checksum, execution_time_ms) VALUES ($1, $2, $3)`,
			m.Version, m.Checksum, time.Since(started).Milliseconds(),
		)
		return err
	})
}
