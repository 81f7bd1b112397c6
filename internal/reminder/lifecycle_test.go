package reminder_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/example/booking-reminder/internal/application"
	"github.com/example/booking-reminder/internal/persistence"
	"github.com/example/booking-reminder/internal/push"
	"github.com/example/booking-reminder/internal/reminder"
	"github.com/example/booking-reminder/internal/testfixtures"
	"github.com/example/booking-reminder/internal/timeutil"
)

type countingNotifier struct {
	mu    sync.Mutex
	users []string
}

func (n *countingNotifier) Notify(_ context.Context, userID string, _ push.Message) (push.Result, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.users = append(n.users, userID)
	return push.Result{ID: "ticket", Status: "ok"}, nil
}

func (n *countingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.users)
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestEditedReminderDoesNotRefireAfterRestart(t *testing.T) {
	t.Parallel()

	store := testfixtures.NewSQLiteStore(t)
	clock := testfixtures.NewClock(time.Time{})
	notifier := &countingNotifier{}
	evaluator := reminder.NewEvaluator(store, notifier, clock.NowFunc(), discard())
	services := testfixtures.NewServiceFactory(
		testfixtures.WithStore(store),
		testfixtures.WithClock(clock),
		testfixtures.WithIDGenerator(testfixtures.NewIDGenerator("rem")),
	).Services(nil, evaluator.Ledger())
	ctx := context.Background()
	owner := application.Principal{UserID: "user-1"}

	created, err := services.Reminders.CreateReminder(ctx, owner, application.ReminderInput{
		Title: "Call", Time: "09:00", Date: testfixtures.ReferenceDate,
	})
	if err != nil {
		t.Fatalf("CreateReminder returned error: %v", err)
	}
	if created.ID != "rem-1" {
		t.Fatalf("expected deterministic id rem-1, got %q", created.ID)
	}
	summary, err := evaluator.Trigger(ctx)
	if err != nil {
		t.Fatalf("Trigger returned error: %v", err)
	}
	if summary.Fired != 1 {
		t.Fatalf("expected the reminder to fire once, got %+v", summary)
	}

	for _, clockValue := range []string{"10:00", "09:00"} {
		view, err := services.Reminders.UpdateReminder(ctx, owner, created.ID, application.ReminderInput{
			Title: "Call", Time: clockValue, Date: testfixtures.ReferenceDate,
		})
		if err != nil {
			t.Fatalf("UpdateReminder(%s) returned error: %v", clockValue, err)
		}
		if view.FiredAt != nil {
			t.Fatalf("expected rescheduling to %s to re-arm the reminder", clockValue)
		}
	}

	restarted := reminder.NewEvaluator(store, notifier, clock.NowFunc(), discard())
	clock.Advance(24 * time.Hour)
	summary, err = restarted.Trigger(ctx)
	if err != nil {
		t.Fatalf("Trigger returned error: %v", err)
	}
	if summary.Fired != 0 || notifier.count() != 1 {
		t.Fatalf("expected occurrence rem-1_%s_09:00 to stay fired, got %+v and %d pushes",
			testfixtures.ReferenceDate, summary, notifier.count())
	}

	stored, err := persistence.NewCollection[persistence.Reminder](store, persistence.CollectionReminders).Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("failed to load reminder: %v", err)
	}
	if stored.FiredAt == nil {
		t.Fatalf("expected the reminder to be terminal again")
	}
}

func TestEvaluatorMinuteTicks(t *testing.T) {
	t.Parallel()

	bangkok, err := timeutil.LoadLocation(timeutil.OrgTimezone)
	if err != nil {
		t.Skipf("tz database unavailable: %v", err)
	}

	store := testfixtures.NewSQLiteStore(t)
	clock := testfixtures.NewClock(time.Time{})
	notifier := &countingNotifier{}

	weekly := testfixtures.NewReminder(
		testfixtures.WithReminderSchedule(testfixtures.ReferenceDate, "09:30"),
		testfixtures.WithReminderRepeat(time.Monday),
	)
	tokyo := testfixtures.NewReminder(
		testfixtures.WithReminderSchedule(testfixtures.ReferenceDate, "11:45"),
		testfixtures.WithReminderUser("user-2"),
		testfixtures.WithReminderTimezone("Asia/Tokyo"),
	)
	disabled := testfixtures.NewReminder(
		testfixtures.WithReminderSchedule(testfixtures.ReferenceDate, "09:15"),
		testfixtures.WithReminderDisabled(),
	)
	for _, def := range []persistence.Reminder{weekly, tokyo, disabled} {
		if _, err := store.Create(context.Background(), persistence.CollectionReminders, def.ID, def); err != nil {
			t.Fatalf("failed to seed reminder: %v", err)
		}
	}

	evaluator := reminder.NewEvaluator(store, notifier, clock.NowFunc(), discard())
	fired := map[string]string{}
	clock.Step(time.Minute, 60, func(now time.Time) {
		before := notifier.count()
		summary, err := evaluator.Tick(context.Background(), now)
		if err != nil {
			t.Fatalf("tick at %v failed: %v", now, err)
		}
		if summary.Fired > 0 {
			notifier.mu.Lock()
			for _, user := range notifier.users[before:] {
				fired[user] = clock.In(bangkok).Format("15:04")
			}
			notifier.mu.Unlock()
		}
	})

	if notifier.count() != 2 {
		t.Fatalf("expected two pushes over the hour, got %d", notifier.count())
	}
	if fired["user-1"] != "09:30" {
		t.Fatalf("expected the weekly reminder at 09:30 Bangkok, got %q", fired["user-1"])
	}
	// 11:45 in Tokyo is 09:45 in Bangkok.
	if fired["user-2"] != "09:45" {
		t.Fatalf("expected the Tokyo reminder at 09:45 Bangkok, got %q", fired["user-2"])
	}
}
