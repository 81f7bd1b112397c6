package reminder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/example/booking-reminder/internal/logging"
	"github.com/example/booking-reminder/internal/persistence"
	"github.com/example/booking-reminder/internal/push"
	"github.com/example/booking-reminder/internal/timeutil"
)

const (
	// NotificationType is the push payload type of a reminder alarm.
	NotificationType = "custom_alarm"
	// HistoryType is the notification history type of a reminder alarm.
	HistoryType = "custom"
	// HistoryDesc is the history description written for every alarm.
	HistoryDesc = "ถึงเวลาแล้ว"
)

// Notifier delivers a message to a user's registered device.
type Notifier interface {
	Notify(ctx context.Context, userID string, msg push.Message) (push.Result, error)
}

// Summary reports the outcome of one evaluation pass.
type Summary struct {
	Evaluated int `json:"evaluated"`
	Due       int `json:"due"`
	Fired     int `json:"fired"`
	Failed    int `json:"failed"`
}

// Evaluator runs the reminder state machine over every stored reminder.
type Evaluator struct {
	reminders persistence.Collection[persistence.Reminder]
	history   persistence.Collection[persistence.NotificationRecord]
	ledger    *Ledger
	notifier  Notifier
	now       func() time.Time
	logger    *slog.Logger

	mu sync.Mutex
}

// NewEvaluator constructs an Evaluator. notifier may be nil, in which case
// occurrences are recorded without delivery.
func NewEvaluator(store persistence.DocumentStore, notifier Notifier, now func() time.Time, logger *slog.Logger) *Evaluator {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{
		reminders: persistence.NewCollection[persistence.Reminder](store, persistence.CollectionReminders),
		history:   persistence.NewCollection[persistence.NotificationRecord](store, persistence.CollectionNotificationHistory),
		ledger:    NewLedger(store, now),
		notifier:  notifier,
		now:       now,
		logger:    logger.With("component", "reminder"),
	}
}

// Ledger exposes the dedup ledger.
func (e *Evaluator) Ledger() *Ledger {
	return e.ledger
}

// Trigger runs one pass at the current time.
func (e *Evaluator) Trigger(ctx context.Context) (Summary, error) {
	return e.Tick(ctx, e.now())
}

// Tick evaluates every reminder at now and fires the due occurrences that
// have not fired yet. Passes are serialized.
func (e *Evaluator) Tick(ctx context.Context, now time.Time) (Summary, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	logger := e.loggerFor(ctx)
	reminders, err := e.reminders.List(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "failed to load reminders", "error", err)
		return Summary{}, fmt.Errorf("load reminders: %w", err)
	}

	var summary Summary
	for _, def := range reminders {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		summary.Evaluated++
		if _, ok := Location(def); !ok && def.TimezoneRef != "" {
			logger.DebugContext(ctx, "reminder timezone unknown, using organisation timezone",
				"reminder_id", def.ID, "timezone", def.TimezoneRef)
		}
		occ, due := Due(def, now)
		if !due {
			continue
		}
		summary.Due++

		claimed, err := e.ledger.Claim(ctx, occ)
		if err != nil {
			summary.Failed++
			logger.ErrorContext(ctx, "failed to claim occurrence", "key", occ.Key, "error", err)
			continue
		}
		if !claimed {
			if !occ.Repeating && def.FiredAt == nil {
				// Edited back onto a key that already fired.
				if err := e.markFired(ctx, occ, now); err != nil {
					logger.ErrorContext(ctx, "failed to mark reminder fired", "reminder_id", occ.ReminderID, "error", err)
				}
			}
			continue
		}
		summary.Fired++
		if err := e.fire(ctx, logger, occ, now); err != nil {
			summary.Failed++
		}
	}

	if summary.Fired > 0 || summary.Failed > 0 {
		logger.InfoContext(ctx, "reminder pass completed",
			"evaluated", summary.Evaluated, "due", summary.Due, "fired", summary.Fired, "failed", summary.Failed)
	}
	return summary, nil
}

// fire performs the side effects of a claimed occurrence. Failures are
// logged and joined; the occurrence stays fired either way.
func (e *Evaluator) fire(ctx context.Context, logger *slog.Logger, occ Occurrence, now time.Time) error {
	logger = logger.With("reminder_id", occ.ReminderID, "key", occ.Key)
	var errs []error

	if !occ.Repeating {
		if err := e.markFired(ctx, occ, now); err != nil {
			logger.ErrorContext(ctx, "failed to mark reminder fired", "error", err)
			errs = append(errs, err)
		}
	}

	if e.notifier != nil {
		result, err := e.notifier.Notify(ctx, occ.UserID, Message(occ))
		switch {
		case errors.Is(err, push.ErrNoToken):
			logger.InfoContext(ctx, "reminder owner has no push token", "user_id", occ.UserID)
		case err != nil:
			logger.WarnContext(ctx, "failed to deliver reminder", "user_id", occ.UserID, "error", err)
			errs = append(errs, err)
		default:
			logger.InfoContext(ctx, "reminder delivered", "user_id", occ.UserID, "ticket", result.ID)
		}
	}

	record := HistoryRecord(occ, now)
	if _, err := e.history.Create(ctx, record.ID, record); err != nil && !errors.Is(err, persistence.ErrDuplicate) {
		logger.ErrorContext(ctx, "failed to write notification history", "error", err)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (e *Evaluator) markFired(ctx context.Context, occ Occurrence, now time.Time) error {
	err := e.reminders.Update(ctx, occ.ReminderID, persistence.Set(now.UTC(), "firedAt"))
	if errors.Is(err, persistence.ErrNotFound) {
		return nil
	}
	return err
}

func (e *Evaluator) loggerFor(ctx context.Context) *slog.Logger {
	if logger := logging.FromContext(ctx); logger != nil {
		return logger.With("component", "reminder")
	}
	return e.logger
}

// Message builds the push payload of an occurrence.
func Message(occ Occurrence) push.Message {
	body := fmt.Sprintf("ถึงเวลา %s แล้ว", occ.Time)
	return push.Message{
		Title: occ.Title,
		Body:  body,
		Data: map[string]string{
			"notificationId": occ.ReminderID,
			"type":           NotificationType,
			"time":           occ.Time,
			"title":          occ.Title,
			"body":           body,
			"date":           occ.Date,
		},
	}
}

// HistoryRecord builds the notification history entry of an occurrence.
// The record id is the occurrence key so a retried write stays single.
func HistoryRecord(occ Occurrence, now time.Time) persistence.NotificationRecord {
	scheduled, err := timeutil.At(occ.Date, occ.Time, occ.Location)
	if err != nil {
		scheduled = now
	}
	return persistence.NotificationRecord{
		ID:           occ.Key,
		UserID:       occ.UserID,
		Title:        occ.Title,
		Desc:         HistoryDesc,
		FullThaiInfo: timeutil.FormatThaiDateTime(scheduled, occ.Location),
		FooterTime:   timeutil.FormatFooterTime(now, occ.Location),
		Time:         occ.Time,
		Date:         occ.Date,
		Timestamp:    now.UTC(),
		Type:         HistoryType,
		Read:         false,
		OriginalID:   occ.ReminderID,
	}
}
