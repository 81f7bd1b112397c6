package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/example/booking-reminder/internal/persistence"
)

type notification struct {
	Origin     string                 `json:"origin"`
	Collection string                 `json:"collection"`
	Kind       persistence.ChangeKind `json:"kind"`
	ID         string                 `json:"id"`
	Previous   json.RawMessage        `json:"previous,omitempty"`
}

func (s *Store) notification(collection string, change persistence.Change) (string, error) {
	n := notification{
		Origin:     s.origin,
		Collection: collection,
		Kind:       change.Kind,
		ID:         change.ID,
	}
	if len(change.Previous) <= maxNotifyPrevious {
		n.Previous = change.Previous
	}
	payload, err := json.Marshal(n)
	if err != nil {
		return "", fmt.Errorf("encode notification: %w", err)
	}
	return string(payload), nil
}

// Listen relays changes committed by other processes to local subscribers
// until ctx is cancelled, reconnecting after connection failures.
func (s *Store) Listen(ctx context.Context) error {
	for {
		err := s.listenOnce(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.logger.WarnContext(ctx, "change listener disconnected", "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
}

func (s *Store) listenOnce(ctx context.Context) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire listener connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+notifyChannel); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	s.logger.InfoContext(ctx, "listening for document changes", "channel", notifyChannel)

	for {
		msg, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		var n notification
		if err := json.Unmarshal([]byte(msg.Payload), &n); err != nil {
			s.logger.WarnContext(ctx, "ignoring malformed notification", "error", err)
			continue
		}
		if n.Origin == s.origin {
			continue
		}
		s.applyRemote(ctx, n)
	}
}

func (s *Store) applyRemote(ctx context.Context, n notification) {
	change := persistence.Change{Kind: n.Kind, ID: n.ID, Previous: n.Previous}
	if n.Kind != persistence.ChangeRemoved {
		record, err := s.Get(ctx, n.Collection, n.ID)
		if err != nil {
			s.logger.WarnContext(ctx, "failed to load changed document", "collection", n.Collection, "id", n.ID, "error", err)
			return
		}
		change.Data = record.Data
	}
	s.publish(ctx, n.Collection, change)
}
