package persistence

import (
	"context"
	"encoding/json"
	"sync"
)

// Hub fans collection changes out to subscribers. Each subscriber coalesces
// undelivered snapshots: the latest records win and changes accumulate, so
// a slow reader never blocks writers and never loses a change.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[*subscriber]struct{}
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[*subscriber]struct{})}
}

type subscriber struct {
	collection string
	filter     Filter

	mu      sync.Mutex
	pending *Snapshot
	signal  chan struct{}
	out     chan Snapshot
}

// Subscribe registers a subscriber primed with initial. Callers must hold
// whatever lock orders initial before later Publish calls.
func (h *Hub) Subscribe(ctx context.Context, collection string, filter Filter, initial []Record) <-chan Snapshot {
	sub := &subscriber{
		collection: collection,
		filter:     filter,
		signal:     make(chan struct{}, 1),
		out:        make(chan Snapshot),
	}
	changes := make([]Change, 0, len(initial))
	for _, record := range initial {
		changes = append(changes, Change{Kind: ChangeAdded, ID: record.ID, Data: record.Data})
	}
	sub.enqueue(initial, changes)

	h.mu.Lock()
	if h.subs[collection] == nil {
		h.subs[collection] = make(map[*subscriber]struct{})
	}
	h.subs[collection][sub] = struct{}{}
	h.mu.Unlock()

	go func() {
		defer func() {
			h.mu.Lock()
			delete(h.subs[collection], sub)
			h.mu.Unlock()
			close(sub.out)
		}()
		sub.run(ctx)
	}()
	return sub.out
}

// Publish delivers the current records of collection and the changes that
// produced them to every subscriber of that collection.
func (h *Hub) Publish(collection string, records []Record, changes ...Change) {
	h.mu.Lock()
	subs := make([]*subscriber, 0, len(h.subs[collection]))
	for sub := range h.subs[collection] {
		subs = append(subs, sub)
	}
	h.mu.Unlock()

	for _, sub := range subs {
		sub.enqueue(records, changes)
	}
}

// HasSubscribers reports whether anyone listens on collection.
func (h *Hub) HasSubscribers(collection string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[collection]) > 0
}

func (s *subscriber) enqueue(records []Record, changes []Change) {
	filteredRecords := make([]Record, 0, len(records))
	for _, record := range records {
		if s.matches(record.ID, record.Data) {
			filteredRecords = append(filteredRecords, record)
		}
	}
	filteredChanges := make([]Change, 0, len(changes))
	for _, change := range changes {
		if s.matches(change.ID, change.Data) || s.matches(change.ID, change.Previous) {
			filteredChanges = append(filteredChanges, change)
		}
	}

	s.mu.Lock()
	if s.pending == nil {
		s.pending = &Snapshot{Collection: s.collection}
	}
	s.pending.Records = filteredRecords
	s.pending.Changes = append(s.pending.Changes, filteredChanges...)
	s.mu.Unlock()

	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (s *subscriber) matches(id string, data json.RawMessage) bool {
	if len(data) == 0 {
		return false
	}
	if s.filter == nil {
		return true
	}
	return s.filter(Record{ID: id, Data: data})
}

func (s *subscriber) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.signal:
		}

		s.mu.Lock()
		snapshot := s.pending
		s.pending = nil
		s.mu.Unlock()
		if snapshot == nil {
			continue
		}

		select {
		case s.out <- *snapshot:
		case <-ctx.Done():
			return
		}
	}
}
