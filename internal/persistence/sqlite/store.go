// Package sqlite stores documents in a single SQLite table keyed by
// collection and id.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/booking-reminder/internal/persistence"
	"github.com/example/booking-reminder/internal/persistence/migration"
)

// Store implements persistence.DocumentStore on SQLite.
type Store struct {
	pool   *ConnectionPool
	retry  *RetryHelper
	mapper ErrorMapper
	hub    *persistence.Hub
	logger *slog.Logger
	now    func() time.Time

	// writeMu orders commits with hub publication so subscribers observe
	// changes in commit order.
	writeMu sync.Mutex
}

// Open connects to dsn with default options.
func Open(dsn string, logger *slog.Logger) (*Store, error) {
	return OpenWithOptions(dsn, DefaultOptions(), logger)
}

// OpenWithOptions connects to dsn using opts.
func OpenWithOptions(dsn string, opts Options, logger *slog.Logger) (*Store, error) {
	pool, err := NewConnectionPool(dsn, opts)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		pool:   pool,
		retry:  NewRetryHelper(DefaultRetryConfig()),
		hub:    persistence.NewHub(),
		logger: logger.With("component", "sqlite"),
		now:    time.Now,
	}, nil
}

// Migrate applies the embedded schema.
func (s *Store) Migrate(ctx context.Context) error {
	return migration.NewRunner(migrationExecutor{pool: s.pool}, s.logger).Run(ctx, Migrations())
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

var _ persistence.DocumentStore = (*Store)(nil)

func (s *Store) Create(ctx context.Context, collection, id string, doc any) (string, error) {
	if id == "" {
		id = uuid.NewString()
	}
	body, err := persistence.EncodeDocument(id, doc)
	if err != nil {
		return "", err
	}

	err = s.write(ctx, collection, func(tx *sql.Tx) (persistence.Change, error) {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO documents (collection, id, body, updated_at) VALUES (?, ?, ?, ?)`,
			collection, id, string(body), s.timestamp())
		if err != nil {
			return persistence.Change{}, err
		}
		return persistence.Change{Kind: persistence.ChangeAdded, ID: id, Data: body}, nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) Put(ctx context.Context, collection, id string, doc any) error {
	if id == "" {
		return fmt.Errorf("%w: put requires an id", persistence.ErrConstraintViolation)
	}
	body, err := persistence.EncodeDocument(id, doc)
	if err != nil {
		return err
	}

	return s.write(ctx, collection, func(tx *sql.Tx) (persistence.Change, error) {
		previous, err := selectBody(ctx, tx, collection, id)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return persistence.Change{}, err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO documents (collection, id, body, updated_at) VALUES (?, ?, ?, ?)
			ON CONFLICT (collection, id) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`,
			collection, id, string(body), s.timestamp())
		if err != nil {
			return persistence.Change{}, err
		}
		change := persistence.Change{Kind: persistence.ChangeAdded, ID: id, Data: body}
		if previous != nil {
			change.Kind = persistence.ChangeModified
			change.Previous = previous
		}
		return change, nil
	})
}

func (s *Store) Update(ctx context.Context, collection, id string, updates ...persistence.FieldUpdate) error {
	return s.write(ctx, collection, func(tx *sql.Tx) (persistence.Change, error) {
		previous, err := selectBody(ctx, tx, collection, id)
		if err != nil {
			return persistence.Change{}, err
		}
		body, err := persistence.ApplyUpdates(previous, updates)
		if err != nil {
			return persistence.Change{}, err
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE documents SET body = ?, updated_at = ? WHERE collection = ? AND id = ?`,
			string(body), s.timestamp(), collection, id)
		if err != nil {
			return persistence.Change{}, err
		}
		return persistence.Change{Kind: persistence.ChangeModified, ID: id, Data: body, Previous: previous}, nil
	})
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	return s.write(ctx, collection, func(tx *sql.Tx) (persistence.Change, error) {
		previous, err := selectBody(ctx, tx, collection, id)
		if err != nil {
			return persistence.Change{}, err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE collection = ? AND id = ?`, collection, id); err != nil {
			return persistence.Change{}, err
		}
		return persistence.Change{Kind: persistence.ChangeRemoved, ID: id, Previous: previous}, nil
	})
}

func (s *Store) Get(ctx context.Context, collection, id string) (persistence.Record, error) {
	var (
		body      string
		updatedAt string
	)
	err := s.pool.DB().QueryRowContext(ctx,
		`SELECT body, updated_at FROM documents WHERE collection = ? AND id = ?`,
		collection, id).Scan(&body, &updatedAt)
	if err != nil {
		return persistence.Record{}, fmt.Errorf("get %s/%s: %w", collection, id, s.mapper.MapError(err))
	}
	return persistence.Record{ID: id, Data: json.RawMessage(body), UpdatedAt: parseTimestamp(updatedAt)}, nil
}

func (s *Store) List(ctx context.Context, collection string) ([]persistence.Record, error) {
	rows, err := s.pool.DB().QueryContext(ctx,
		`SELECT id, body, updated_at FROM documents WHERE collection = ? ORDER BY id ASC`, collection)
	if err != nil {
		return nil, s.mapper.MapError(err)
	}
	defer rows.Close()

	records := make([]persistence.Record, 0)
	for rows.Next() {
		var id, body, updatedAt string
		if err := rows.Scan(&id, &body, &updatedAt); err != nil {
			return nil, s.mapper.MapError(err)
		}
		records = append(records, persistence.Record{ID: id, Data: json.RawMessage(body), UpdatedAt: parseTimestamp(updatedAt)})
	}
	return records, s.mapper.MapError(rows.Err())
}

func (s *Store) Subscribe(ctx context.Context, collection string, filter persistence.Filter) (<-chan persistence.Snapshot, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	records, err := s.List(ctx, collection)
	if err != nil {
		return nil, err
	}
	return s.hub.Subscribe(ctx, collection, filter, records), nil
}

func (s *Store) Close() error {
	return s.pool.Close()
}

func (s *Store) write(ctx context.Context, collection string, fn func(tx *sql.Tx) (persistence.Change, error)) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var change persistence.Change
	err := s.retry.WithRetry(ctx, func() error {
		return s.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			var err error
			change, err = fn(tx)
			return err
		})
	})
	if err != nil {
		return fmt.Errorf("write %s: %w", collection, s.mapper.MapError(err))
	}

	if s.hub.HasSubscribers(collection) {
		records, err := s.List(ctx, collection)
		if err != nil {
			s.logger.WarnContext(ctx, "failed to list after write", "collection", collection, "error", err)
			return nil
		}
		s.hub.Publish(collection, records, change)
	}
	return nil
}

func (s *Store) timestamp() string {
	return s.now().UTC().Format(time.RFC3339Nano)
}

func selectBody(ctx context.Context, tx *sql.Tx, collection, id string) (json.RawMessage, error) {
	var body string
	err := tx.QueryRowContext(ctx, `SELECT body FROM documents WHERE collection = ? AND id = ?`, collection, id).Scan(&body)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(body), nil
}

func parseTimestamp(value string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, value)
	return t
}
