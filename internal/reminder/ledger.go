package reminder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/example/booking-reminder/internal/persistence"
)

const (
	defaultCacheTTL        = 2 * time.Minute
	defaultCacheMaxEntries = 4096
)

// occurrenceCache remembers recently fired occurrence keys so repeated ticks
// within the same minute skip the ledger round trip.
type occurrenceCache struct {
	mu         sync.RWMutex
	now        func() time.Time
	ttl        time.Duration
	maxEntries int
	entries    map[string]time.Time
}

func newOccurrenceCache(ttl time.Duration, maxEntries int, now func() time.Time) *occurrenceCache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	if maxEntries <= 0 {
		maxEntries = defaultCacheMaxEntries
	}
	if now == nil {
		now = time.Now
	}
	return &occurrenceCache{
		now:        now,
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    make(map[string]time.Time),
	}
}

func (c *occurrenceCache) Seen(key string) bool {
	c.mu.RLock()
	expiresAt, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return false
	}
	if c.now().After(expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return false
	}
	return true
}

func (c *occurrenceCache) Remember(key string) {
	expiry := c.now().Add(c.ttl)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.cleanupLocked()
	if len(c.entries) >= c.maxEntries {
		c.evictOneLocked()
	}
	c.entries[key] = expiry
}

func (c *occurrenceCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *occurrenceCache) cleanupLocked() {
	now := c.now()
	for key, expiresAt := range c.entries {
		if now.After(expiresAt) {
			delete(c.entries, key)
		}
	}
}

func (c *occurrenceCache) evictOneLocked() {
	var oldestKey string
	var oldest time.Time
	for key, expiresAt := range c.entries {
		if oldestKey == "" || expiresAt.Before(oldest) {
			oldestKey, oldest = key, expiresAt
		}
	}
	delete(c.entries, oldestKey)
}

// Ledger records fired occurrences. Claims are persisted in the
// firedOccurrences collection, so a key is claimed at most once across
// processes sharing the store.
type Ledger struct {
	fired persistence.Collection[persistence.FiredOccurrence]
	cache *occurrenceCache
	now   func() time.Time
}

// NewLedger constructs a ledger over store.
func NewLedger(store persistence.DocumentStore, now func() time.Time) *Ledger {
	if now == nil {
		now = time.Now
	}
	return &Ledger{
		fired: persistence.NewCollection[persistence.FiredOccurrence](store, persistence.CollectionFiredOccurrences),
		cache: newOccurrenceCache(defaultCacheTTL, defaultCacheMaxEntries, now),
		now:   now,
	}
}

// Claim marks occ as fired. It reports false when the occurrence was
// already claimed.
func (l *Ledger) Claim(ctx context.Context, occ Occurrence) (bool, error) {
	if l.cache.Seen(occ.Key) {
		return false, nil
	}
	entry := persistence.FiredOccurrence{
		ID:         occ.Key,
		ReminderID: occ.ReminderID,
		Date:       occ.Date,
		Time:       occ.Time,
		FiredAt:    l.now().UTC(),
	}
	_, err := l.fired.Create(ctx, occ.Key, entry)
	switch {
	case errors.Is(err, persistence.ErrDuplicate):
		l.cache.Remember(occ.Key)
		return false, nil
	case err != nil:
		return false, fmt.Errorf("claim occurrence %s: %w", occ.Key, err)
	}
	l.cache.Remember(occ.Key)
	return true, nil
}

// Fired reports whether key has been claimed.
func (l *Ledger) Fired(ctx context.Context, key string) (bool, error) {
	if l.cache.Seen(key) {
		return true, nil
	}
	_, err := l.fired.Get(ctx, key)
	if errors.Is(err, persistence.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Forget drops every ledger entry of a reminder.
func (l *Ledger) Forget(ctx context.Context, reminderID string) error {
	entries, err := l.fired.Where(ctx, func(entry persistence.FiredOccurrence) bool {
		return entry.ReminderID == reminderID
	})
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if err := l.fired.Delete(ctx, entry.ID); err != nil && !errors.Is(err, persistence.ErrNotFound) {
			return err
		}
	}
	return nil
}

// Prune deletes ledger entries fired before cutoff. One-time reminders stay
// terminal through their firedAt marker.
func (l *Ledger) Prune(ctx context.Context, cutoff time.Time) (int, error) {
	entries, err := l.fired.Where(ctx, func(entry persistence.FiredOccurrence) bool {
		return entry.FiredAt.Before(cutoff)
	})
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, entry := range entries {
		err := l.fired.Delete(ctx, entry.ID)
		if errors.Is(err, persistence.ErrNotFound) {
			continue
		}
		if err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
