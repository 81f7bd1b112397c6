// Package memory provides an in-process DocumentStore used by tests and by
// the service when no database is configured.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/booking-reminder/internal/persistence"
)

// Store keeps documents in maps guarded by a single mutex.
type Store struct {
	mu          sync.RWMutex
	collections map[string]map[string]persistence.Record
	hub         *persistence.Hub
	now         func() time.Time
	closed      bool
}

// New returns an empty store.
func New() *Store {
	return NewWithClock(time.Now)
}

// NewWithClock returns an empty store stamping records with now.
func NewWithClock(now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{
		collections: make(map[string]map[string]persistence.Record),
		hub:         persistence.NewHub(),
		now:         now,
	}
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

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", persistence.ErrClosed
	}
	docs := s.collectionLocked(collection)
	if _, exists := docs[id]; exists {
		return "", fmt.Errorf("%w: %s/%s", persistence.ErrDuplicate, collection, id)
	}
	docs[id] = persistence.Record{ID: id, Data: body, UpdatedAt: s.now()}
	s.publishLocked(collection, persistence.Change{Kind: persistence.ChangeAdded, ID: id, Data: body})
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

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return persistence.ErrClosed
	}
	docs := s.collectionLocked(collection)
	change := persistence.Change{Kind: persistence.ChangeAdded, ID: id, Data: body}
	if existing, ok := docs[id]; ok {
		change.Kind = persistence.ChangeModified
		change.Previous = existing.Data
	}
	docs[id] = persistence.Record{ID: id, Data: body, UpdatedAt: s.now()}
	s.publishLocked(collection, change)
	return nil
}

func (s *Store) Update(ctx context.Context, collection, id string, updates ...persistence.FieldUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return persistence.ErrClosed
	}
	docs := s.collectionLocked(collection)
	existing, ok := docs[id]
	if !ok {
		return fmt.Errorf("%w: %s/%s", persistence.ErrNotFound, collection, id)
	}
	body, err := persistence.ApplyUpdates(existing.Data, updates)
	if err != nil {
		return err
	}
	docs[id] = persistence.Record{ID: id, Data: body, UpdatedAt: s.now()}
	s.publishLocked(collection, persistence.Change{Kind: persistence.ChangeModified, ID: id, Data: body, Previous: existing.Data})
	return nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return persistence.ErrClosed
	}
	docs := s.collectionLocked(collection)
	existing, ok := docs[id]
	if !ok {
		return fmt.Errorf("%w: %s/%s", persistence.ErrNotFound, collection, id)
	}
	delete(docs, id)
	s.publishLocked(collection, persistence.Change{Kind: persistence.ChangeRemoved, ID: id, Previous: existing.Data})
	return nil
}

func (s *Store) Get(ctx context.Context, collection, id string) (persistence.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return persistence.Record{}, persistence.ErrClosed
	}
	record, ok := s.collections[collection][id]
	if !ok {
		return persistence.Record{}, fmt.Errorf("%w: %s/%s", persistence.ErrNotFound, collection, id)
	}
	return cloneRecord(record), nil
}

func (s *Store) List(ctx context.Context, collection string) ([]persistence.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, persistence.ErrClosed
	}
	return s.listLocked(collection), nil
}

func (s *Store) Subscribe(ctx context.Context, collection string, filter persistence.Filter) (<-chan persistence.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, persistence.ErrClosed
	}
	return s.hub.Subscribe(ctx, collection, filter, s.listLocked(collection)), nil
}

// Close marks the store closed. Existing subscriptions end with their contexts.
func (s *Store) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *Store) collectionLocked(name string) map[string]persistence.Record {
	docs, ok := s.collections[name]
	if !ok {
		docs = make(map[string]persistence.Record)
		s.collections[name] = docs
	}
	return docs
}

func (s *Store) listLocked(collection string) []persistence.Record {
	docs := s.collections[collection]
	out := make([]persistence.Record, 0, len(docs))
	for _, record := range docs {
		out = append(out, cloneRecord(record))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) publishLocked(collection string, change persistence.Change) {
	if !s.hub.HasSubscribers(collection) {
		return
	}
	s.hub.Publish(collection, s.listLocked(collection), change)
}

func cloneRecord(record persistence.Record) persistence.Record {
	record.Data = append(json.RawMessage(nil), record.Data...)
	return record
}
