package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"time"

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
	pool *ConnectionPool
}

var _ migration.Executor = migrationExecutor{}

func (e migrationExecutor) InitializeVersionTable(ctx context.Context) error {
	_, err := e.pool.DB().ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TEXT NOT NULL,
			checksum TEXT,
			execution_time_ms INTEGER
		)`)
	if err != nil {
		return fmt.Errorf("create schema_migrations table: %w", err)
	}
	return nil
}

func (e migrationExecutor) AppliedMigrations(ctx context.Context) ([]migration.AppliedMigration, error) {
	rows, err := e.pool.DB().QueryContext(ctx, `
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
			appliedAt string
			elapsedMS int64
		)
		if err := rows.Scan(&m.Version, &appliedAt, &elapsedMS, &m.Checksum); err != nil {
			return nil, err
		}
		m.AppliedAt, _ = time.Parse(time.RFC3339, appliedAt)
		m.ExecutionTime = time.Duration(elapsedMS) * time.Millisecond
		applied = append(applied, m)
	}
	return applied, rows.Err()
}

func (e migrationExecutor) Apply(ctx context.Context, m migration.Migration, statements []string) error {
	started := time.Now()
	return e.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		for i, stmt := range statements {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("statement %d: %w", i+1, err)
			}
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO schema_migrations (version, applied_at, checksum, execution_time_ms) VALUES (?, ?, ?, ?)`,
			m.Version, time.Now().UTC().Format(time.RFC3339), m.Checksum, time.Since(started).Milliseconds(),
		)
		return err
	})
}
