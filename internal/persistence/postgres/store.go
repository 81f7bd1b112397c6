// Package postgres stores documents as JSONB rows and relays changes between
// processes with LISTEN/NOTIFY.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/puddle/v2"

	"github.com/example/booking-reminder/internal/persistence"
	"github.com/example/booking-reminder/internal/persistence/migration"
)

const (
	notifyChannel = "document_changes"
	// maxNotifyPrevious keeps NOTIFY payloads under the server limit.
	maxNotifyPrevious = 6000
)

// Store implements persistence.DocumentStore on PostgreSQL.
type Store struct {
	pool   *pgxpool.Pool
	hub    *persistence.Hub
	logger *slog.Logger
	origin string
	now    func() time.Time
}

// New wraps an existing pool.
func New(pool *pgxpool.Pool, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		pool:   pool,
		hub:    persistence.NewHub(),
		logger: logger.With("component", "postgres"),
		origin: uuid.NewString(),
		now:    time.Now,
	}
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

	err = s.write(ctx, collection, func(tx pgx.Tx) (persistence.Change, error) {
		_, err := tx.Exec(ctx,
			`INSERT INTO documents (collection, id, body, updated_at) VALUES ($1, $2, $3::jsonb, $4)`,
			collection, id, string(body), s.now().UTC())
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

	return s.write(ctx, collection, func(tx pgx.Tx) (persistence.Change, error) {
		previous, err := selectForUpdate(ctx, tx, collection, id)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return persistence.Change{}, err
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO documents (collection, id, body, updated_at) VALUES ($1, $2, $3::jsonb, $4)
			ON CONFLICT (collection, id) DO UPDATE SET body = EXCLUDED.body, updated_at = EXCLUDED.updated_at`,
			collection, id, string(body), s.now().UTC())
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
	return s.write(ctx, collection, func(tx pgx.Tx) (persistence.Change, error) {
		previous, err := selectForUpdate(ctx, tx, collection, id)
		if err != nil {
			return persistence.Change{}, err
		}
		body, err := persistence.ApplyUpdates(previous, updates)
		if err != nil {
			return persistence.Change{}, err
		}
		_, err = tx.Exec(ctx,
			`UPDATE documents SET body = $1::jsonb, updated_at = $2 WHERE collection = $3 AND id = $4`,
			string(body), s.now().UTC(), collection, id)
		if err != nil {
			return persistence.Change{}, err
		}
		return persistence.Change{Kind: persistence.ChangeModified, ID: id, Data: body, Previous: previous}, nil
	})
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	return s.write(ctx, collection, func(tx pgx.Tx) (persistence.Change, error) {
		previous, err := selectForUpdate(ctx, tx, collection, id)
		if err != nil {
			return persistence.Change{}, err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM documents WHERE collection = $1 AND id = $2`, collection, id); err != nil {
			return persistence.Change{}, err
		}
		return persistence.Change{Kind: persistence.ChangeRemoved, ID: id, Previous: previous}, nil
	})
}

func (s *Store) Get(ctx context.Context, collection, id string) (persistence.Record, error) {
	var (
		body      []byte
		updatedAt time.Time
	)
	err := s.pool.QueryRow(ctx,
		`SELECT body, updated_at FROM documents WHERE collection = $1 AND id = $2`,
		collection, id).Scan(&body, &updatedAt)
	if err != nil {
		return persistence.Record{}, fmt.Errorf("get %s/%s: %w", collection, id, mapError(err))
	}
	return persistence.Record{ID: id, Data: json.RawMessage(body), UpdatedAt: updatedAt}, nil
}

func (s *Store) List(ctx context.Context, collection string) ([]persistence.Record, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, body, updated_at FROM documents WHERE collection = $1 ORDER BY id ASC`, collection)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, mapError(err))
	}
	defer rows.Close()

	records := make([]persistence.Record, 0)
	for rows.Next() {
		var record persistence.Record
		var body []byte
		if err := rows.Scan(&record.ID, &body, &record.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan %s: %w", collection, err)
		}
		record.Data = json.RawMessage(body)
		records = append(records, record)
	}
	return records, rows.Err()
}

func (s *Store) Subscribe(ctx context.Context, collection string, filter persistence.Filter) (<-chan persistence.Snapshot, error) {
	records, err := s.List(ctx, collection)
	if err != nil {
		return nil, err
	}
	return s.hub.Subscribe(ctx, collection, filter, records), nil
}

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) write(ctx context.Context, collection string, fn func(tx pgx.Tx) (persistence.Change, error)) error {
	var change persistence.Change
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var err error
		if change, err = fn(tx); err != nil {
			return err
		}
		payload, err := s.notification(collection, change)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `SELECT pg_notify($1, $2)`, notifyChannel, payload)
		return err
	})
	if err != nil {
		return fmt.Errorf("write %s: %w", collection, mapError(err))
	}
	s.publish(ctx, collection, change)
	return nil
}

func (s *Store) publish(ctx context.Context, collection string, change persistence.Change) {
	if !s.hub.HasSubscribers(collection) {
		return
	}
	records, err := s.List(ctx, collection)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to list after change", "collection", collection, "error", err)
		return
	}
	s.hub.Publish(collection, records, change)
}

func selectForUpdate(ctx context.Context, tx pgx.Tx, collection, id string) (json.RawMessage, error) {
	var body []byte
	err := tx.QueryRow(ctx,
		`SELECT body FROM documents WHERE collection = $1 AND id = $2 FOR UPDATE`,
		collection, id).Scan(&body)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(body), nil
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %v", persistence.ErrNotFound, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%w: %v", persistence.ErrDuplicate, err)
		case "23502", "23503", "23514":
			return fmt.Errorf("%w: %v", persistence.ErrConstraintViolation, err)
		}
	}
	if errors.Is(err, puddle.ErrClosedPool) {
		return fmt.Errorf("%w: %v", persistence.ErrClosed, err)
	}
	return err
}
