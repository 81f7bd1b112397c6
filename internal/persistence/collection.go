package persistence

import (
	"context"
	"encoding/json"
	"fmt"
)

// Collection is a typed view over one collection of a DocumentStore.
type Collection[T any] struct {
	store DocumentStore
	name  string
}

// NewCollection binds a typed view to store.
func NewCollection[T any](store DocumentStore, name string) Collection[T] {
	return Collection[T]{store: store, name: name}
}

// Name returns the collection name.
func (c Collection[T]) Name() string {
	return c.name
}

func (c Collection[T]) Get(ctx context.Context, id string) (T, error) {
	var zero T
	record, err := c.store.Get(ctx, c.name, id)
	if err != nil {
		return zero, err
	}
	return Decode[T](record.Data)
}

func (c Collection[T]) List(ctx context.Context) ([]T, error) {
	records, err := c.store.List(ctx, c.name)
	if err != nil {
		return nil, err
	}
	return decodeRecords[T](records)
}

// Where lists documents accepted by keep.
func (c Collection[T]) Where(ctx context.Context, keep func(T) bool) ([]T, error) {
	items, err := c.List(ctx)
	if err != nil {
		return nil, err
	}
	out := items[:0]
	for _, item := range items {
		if keep(item) {
			out = append(out, item)
		}
	}
	return out, nil
}

func (c Collection[T]) Create(ctx context.Context, id string, doc T) (string, error) {
	return c.store.Create(ctx, c.name, id, doc)
}

func (c Collection[T]) Put(ctx context.Context, id string, doc T) error {
	return c.store.Put(ctx, c.name, id, doc)
}

func (c Collection[T]) Update(ctx context.Context, id string, updates ...FieldUpdate) error {
	return c.store.Update(ctx, c.name, id, updates...)
}

func (c Collection[T]) Delete(ctx context.Context, id string) error {
	return c.store.Delete(ctx, c.name, id)
}

// TypedChange is a Change with decoded bodies.
type TypedChange[T any] struct {
	Kind     ChangeKind
	ID       string
	Item     T
	Previous *T
}

// TypedSnapshot is a Snapshot with decoded bodies.
type TypedSnapshot[T any] struct {
	Items   []T
	Changes []TypedChange[T]
}

// Watch subscribes to the collection and decodes every snapshot. Documents
// that fail to decode are skipped.
func (c Collection[T]) Watch(ctx context.Context, keep func(T) bool) (<-chan TypedSnapshot[T], error) {
	var filter Filter
	if keep != nil {
		filter = func(record Record) bool {
			item, err := Decode[T](record.Data)
			return err == nil && keep(item)
		}
	}
	raw, err := c.store.Subscribe(ctx, c.name, filter)
	if err != nil {
		return nil, err
	}
	out := make(chan TypedSnapshot[T])
	go func() {
		defer close(out)
		for snapshot := range raw {
			typed := TypedSnapshot[T]{}
			for _, record := range snapshot.Records {
				if item, err := Decode[T](record.Data); err == nil {
					typed.Items = append(typed.Items, item)
				}
			}
			for _, change := range snapshot.Changes {
				typedChange := TypedChange[T]{Kind: change.Kind, ID: change.ID}
				if len(change.Data) > 0 {
					if item, err := Decode[T](change.Data); err == nil {
						typedChange.Item = item
					}
				}
				if len(change.Previous) > 0 {
					if previous, err := Decode[T](change.Previous); err == nil {
						typedChange.Previous = &previous
					}
				}
				typed.Changes = append(typed.Changes, typedChange)
			}
			select {
			case out <- typed:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Decode unmarshals a stored document body.
func Decode[T any](data json.RawMessage) (T, error) {
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("persistence: decode %T: %w", out, err)
	}
	return out, nil
}

func decodeRecords[T any](records []Record) ([]T, error) {
	if len(records) == 0 {
		return nil, nil
	}
	out := make([]T, 0, len(records))
	for _, record := range records {
		item, err := Decode[T](record.Data)
		if err != nil {
			return nil, fmt.Errorf("%w (id %s)", err, record.ID)
		}
		out = append(out, item)
	}
	return out, nil
}
