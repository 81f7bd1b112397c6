package testfixtures

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/example/booking-reminder/internal/persistence/sqlite"
)

// NewSQLiteStore opens a migrated SQLite document store in a temporary
// directory. The store is closed when the test finishes.
func NewSQLiteStore(tb testing.TB) *sqlite.Store {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "booking.db")
	store, err := sqlite.Open(path, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}
	if err := store.Migrate(context.Background()); err != nil {
		_ = store.Close()
		tb.Fatalf("failed to migrate storage: %v", err)
	}

	tb.Cleanup(func() { _ = store.Close() })
	return store
}
