package push

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/booking-reminder/internal/persistence"
)

// TokenRegistry stores one delivery token per user.
type TokenRegistry struct {
	tokens persistence.Collection[persistence.PushToken]
	now    func() time.Time
}

// NewTokenRegistry constructs a registry over store.
func NewTokenRegistry(store persistence.DocumentStore, now func() time.Time) *TokenRegistry {
	if now == nil {
		now = time.Now
	}
	return &TokenRegistry{
		tokens: persistence.NewCollection[persistence.PushToken](store, persistence.CollectionPushTokens),
		now:    now,
	}
}

// RegisterToken records token as the user's delivery address, replacing any
// previous one.
func (r *TokenRegistry) RegisterToken(ctx context.Context, userID, token string) (persistence.PushToken, error) {
	userID = strings.TrimSpace(userID)
	token = strings.TrimSpace(token)
	if userID == "" || token == "" {
		return persistence.PushToken{}, fmt.Errorf("%w: user id and token are required", persistence.ErrConstraintViolation)
	}
	channel, address := DetectChannel(token)
	record := persistence.PushToken{
		ID:        userID,
		UserID:    userID,
		Token:     address,
		Channel:   string(channel),
		UpdatedAt: r.now().UTC(),
	}
	if err := r.tokens.Put(ctx, userID, record); err != nil {
		return persistence.PushToken{}, err
	}
	return record, nil
}

// Lookup returns the user's token.
func (r *TokenRegistry) Lookup(ctx context.Context, userID string) (persistence.PushToken, error) {
	token, err := r.tokens.Get(ctx, userID)
	if errors.Is(err, persistence.ErrNotFound) {
		return persistence.PushToken{}, ErrNoToken
	}
	return token, err
}

// Forget removes the user's token.
func (r *TokenRegistry) Forget(ctx context.Context, userID string) error {
	err := r.tokens.Delete(ctx, userID)
	if errors.Is(err, persistence.ErrNotFound) {
		return nil
	}
	return err
}

// Dispatcher routes messages to the sender of each user's channel.
type Dispatcher struct {
	registry *TokenRegistry
	senders  map[Channel]Sender
	timeout  time.Duration
	logger   *slog.Logger
}

// NewDispatcher constructs a Dispatcher. Each send runs under timeout.
func NewDispatcher(registry *TokenRegistry, senders map[Channel]Sender, timeout time.Duration, logger *slog.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{registry: registry, senders: senders, timeout: timeout, logger: logger.With("component", "push")}
}

// Notify delivers msg to the user's registered device. Tokens the transport
// reports as unregistered are forgotten.
func (d *Dispatcher) Notify(ctx context.Context, userID string, msg Message) (Result, error) {
	token, err := d.registry.Lookup(ctx, userID)
	if err != nil {
		return Result{}, err
	}
	sender, ok := d.senders[Channel(token.Channel)]
	if !ok || sender == nil {
		return Result{}, fmt.Errorf("%w: %s", ErrUnsupportedChannel, token.Channel)
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	result, err := sender.Send(sendCtx, token.Token, msg)
	if errors.Is(err, ErrDeviceNotRegistered) {
		if forgetErr := d.registry.Forget(ctx, userID); forgetErr != nil {
			d.logger.WarnContext(ctx, "failed to forget stale token", "user_id", userID, "error", forgetErr)
		}
	}
	if err != nil {
		return Result{}, err
	}
	d.logger.DebugContext(ctx, "push delivered", "user_id", userID, "channel", token.Channel, "ticket", result.ID)
	return result, nil
}
