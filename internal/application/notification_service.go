package application

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/example/booking-reminder/internal/persistence"
	"github.com/example/booking-reminder/internal/push"
)

// NotificationService exposes a user's notification history and device
// registration.
type NotificationService struct {
	history  persistence.Collection[persistence.NotificationRecord]
	registry *push.TokenRegistry
	logger   *slog.Logger
}

// NewNotificationService constructs a notification service over store.
func NewNotificationService(store persistence.DocumentStore, registry *push.TokenRegistry, now func() time.Time, logger *slog.Logger) *NotificationService {
	if registry == nil {
		registry = push.NewTokenRegistry(store, now)
	}
	return &NotificationService{
		history:  persistence.NewCollection[persistence.NotificationRecord](store, persistence.CollectionNotificationHistory),
		registry: registry,
		logger:   defaultLogger(logger),
	}
}

func (s *NotificationService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "NotificationService", operation, attrs...)
}

// ListNotifications returns the caller's history, newest first.
func (s *NotificationService) ListNotifications(ctx context.Context, principal Principal) ([]persistence.NotificationRecord, error) {
	if strings.TrimSpace(principal.UserID) == "" {
		return nil, ErrUnauthorized
	}
	records, err := s.history.Where(ctx, func(r persistence.NotificationRecord) bool { return r.UserID == principal.UserID })
	if err != nil {
		return nil, err
	}
	sort.SliceStable(records, func(i, j int) bool { return records[i].Timestamp.After(records[j].Timestamp) })
	return records, nil
}

// MarkRead flags a history entry as read.
func (s *NotificationService) MarkRead(ctx context.Context, principal Principal, id string) (err error) {
	logger := s.loggerWith(ctx, "MarkRead", "principal_id", principal.UserID, "notification_id", id)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to mark notification read", "error", err, "error_kind", ErrorKind(err))
		}
	}()

	if err = s.owned(ctx, principal, id); err != nil {
		return
	}
	err = mapStoreError(s.history.Update(ctx, id, persistence.Set(true, "read")))
	return
}

// DeleteNotification removes a history entry.
func (s *NotificationService) DeleteNotification(ctx context.Context, principal Principal, id string) (err error) {
	logger := s.loggerWith(ctx, "DeleteNotification", "principal_id", principal.UserID, "notification_id", id)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to delete notification", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "notification deleted")
	}()

	if err = s.owned(ctx, principal, id); err != nil {
		return
	}
	err = mapStoreError(s.history.Delete(ctx, id))
	return
}

// RegisterDevice stores the caller's push token, replacing any previous one.
func (s *NotificationService) RegisterDevice(ctx context.Context, principal Principal, token string) (record persistence.PushToken, err error) {
	logger := s.loggerWith(ctx, "RegisterDevice", "principal_id", principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to register device", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "device registered", "channel", record.Channel)
	}()

	if strings.TrimSpace(principal.UserID) == "" {
		err = ErrUnauthorized
		return
	}
	if strings.TrimSpace(token) == "" {
		err = &ValidationError{FieldErrors: map[string]string{"token": "token is required"}}
		return
	}
	record, err = s.registry.RegisterToken(ctx, principal.UserID, token)
	return
}

// UnregisterDevice forgets the caller's push token.
func (s *NotificationService) UnregisterDevice(ctx context.Context, principal Principal) error {
	if strings.TrimSpace(principal.UserID) == "" {
		return ErrUnauthorized
	}
	return s.registry.Forget(ctx, principal.UserID)
}

func (s *NotificationService) owned(ctx context.Context, principal Principal, id string) error {
	if strings.TrimSpace(principal.UserID) == "" {
		return ErrUnauthorized
	}
	record, err := s.history.Get(ctx, id)
	if err != nil {
		return mapStoreError(err)
	}
	if record.UserID != principal.UserID {
		return ErrNotFound
	}
	return nil
}
