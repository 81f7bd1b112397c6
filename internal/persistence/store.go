package persistence

import (
	"context"
	"encoding/json"
	"time"
)

// Record is a stored document body together with its id.
type Record struct {
	ID        string
	Data      json.RawMessage
	UpdatedAt time.Time
}

// ChangeKind classifies a document change delivered to subscribers.
type ChangeKind string

const (
	ChangeAdded    ChangeKind = "added"
	ChangeModified ChangeKind = "modified"
	ChangeRemoved  ChangeKind = "removed"
)

// Change describes one document mutation. Previous carries the body before
// a modification or removal.
type Change struct {
	Kind     ChangeKind
	ID       string
	Data     json.RawMessage
	Previous json.RawMessage
}

// Snapshot is the full, filtered content of a collection plus the changes
// accumulated since the previous snapshot delivered to the same subscriber.
type Snapshot struct {
	Collection string
	Records    []Record
	Changes    []Change
}

// Filter narrows a subscription to matching documents.
type Filter func(Record) bool

// DocumentStore abstracts the document database. Every write is atomic per
// document; no operation spans several documents.
type DocumentStore interface {
	// Create stores doc under id, generating one when id is empty.
	Create(ctx context.Context, collection, id string, doc any) (string, error)
	// Put creates or replaces the document stored under id.
	Put(ctx context.Context, collection, id string, doc any) error
	// Update applies field level updates to an existing document.
	Update(ctx context.Context, collection, id string, updates ...FieldUpdate) error
	Delete(ctx context.Context, collection, id string) error
	Get(ctx context.Context, collection, id string) (Record, error)
	List(ctx context.Context, collection string) ([]Record, error)
	// Subscribe delivers an initial snapshot and one snapshot per batch of
	// changes until ctx is cancelled.
	Subscribe(ctx context.Context, collection string, filter Filter) (<-chan Snapshot, error)
	Close() error
}
