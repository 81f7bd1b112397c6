package application

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/example/booking-reminder/internal/persistence"
	"github.com/example/booking-reminder/internal/persistence/memory"
)

var (
	adminPrincipal = Principal{UserID: "admin-1", Email: "admin@example.com", Name: "Admin", IsAdmin: true}
	userPrincipal  = Principal{UserID: "user-1", Email: "user-1@example.com", Name: "User One"}
	otherPrincipal = Principal{UserID: "user-2", Email: "user-2@example.com", Name: "User Two"}
)

// monday0900 is Monday 10 June 2024, 09:00 in Asia/Bangkok.
var monday0900 = time.Date(2024, time.June, 10, 2, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type sequence struct {
	mu     sync.Mutex
	prefix string
	n      int
}

func newSequence(prefix string) *sequence {
	return &sequence{prefix: prefix}
}

func (s *sequence) next() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("%s-%d", s.prefix, s.n)
}

func fixedNow(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newTestStore(t *testing.T) *memory.Store {
	t.Helper()
	store := memory.New()
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func seedDocuments[T any](t *testing.T, store persistence.DocumentStore, collection string, docs map[string]T) {
	t.Helper()
	c := persistence.NewCollection[T](store, collection)
	for id, doc := range docs {
		if _, err := c.Create(context.Background(), id, doc); err != nil {
			t.Fatalf("failed to seed %s/%s: %v", collection, id, err)
		}
	}
}
