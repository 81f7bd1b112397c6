package reminder

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/example/booking-reminder/internal/persistence"
	"github.com/example/booking-reminder/internal/persistence/memory"
	"github.com/example/booking-reminder/internal/push"
)

type stubNotifier struct {
	mu       sync.Mutex
	messages []push.Message
	users    []string
	err      error
}

func (s *stubNotifier) Notify(_ context.Context, userID string, msg push.Message) (push.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = append(s.users, userID)
	s.messages = append(s.messages, msg)
	if s.err != nil {
		return push.Result{}, s.err
	}
	return push.Result{ID: "ticket", Status: "ok"}, nil
}

func (s *stubNotifier) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

func bangkok(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Bangkok")
	if err != nil {
		t.Skipf("tz database unavailable: %v", err)
	}
	return loc
}

func boolPtr(v bool) *bool { return &v }

func seedReminder(t *testing.T, store persistence.DocumentStore, def persistence.Reminder) {
	t.Helper()
	if _, err := store.Create(context.Background(), persistence.CollectionReminders, def.ID, def); err != nil {
		t.Fatalf("failed to seed reminder: %v", err)
	}
}

func TestDueRepeatingMatchesWeekdayAndMinute(t *testing.T) {
	t.Parallel()
	loc := bangkok(t)

	def := persistence.Reminder{ID: "r1", Time: "09:00", RepeatDays: []int{1}, TimezoneRef: "Asia/Bangkok"}
	monday := time.Date(2024, time.June, 10, 9, 0, 30, 0, loc)

	occ, ok := Due(def, monday)
	if !ok {
		t.Fatalf("expected reminder due on Monday 09:00")
	}
	if occ.Key != "r1_2024-06-10_09:00" {
		t.Fatalf("expected occurrence key r1_2024-06-10_09:00, got %s", occ.Key)
	}
	if !occ.Repeating {
		t.Fatalf("expected repeating occurrence")
	}
	if _, ok := Due(def, monday.Add(time.Minute)); ok {
		t.Fatalf("expected reminder not due at 09:01")
	}
	if _, ok := Due(def, monday.AddDate(0, 0, 1)); ok {
		t.Fatalf("expected reminder not due on Tuesday")
	}
}

func TestDueUsesReminderTimezone(t *testing.T) {
	t.Parallel()
	bangkok(t)

	def := persistence.Reminder{ID: "r1", Time: "09:00", RepeatDays: []int{1}, TimezoneRef: "Asia/Bangkok"}
	// 02:00 UTC on Monday is 09:00 in Bangkok.
	if _, ok := Due(def, time.Date(2024, time.June, 10, 2, 0, 0, 0, time.UTC)); !ok {
		t.Fatalf("expected reminder due at 02:00 UTC")
	}
	if _, ok := Due(def, time.Date(2024, time.June, 10, 9, 0, 0, 0, time.UTC)); ok {
		t.Fatalf("expected reminder not due at 09:00 UTC")
	}
}

func TestDueInvalidTimezoneFallsBackToOrg(t *testing.T) {
	t.Parallel()
	bangkok(t)

	def := persistence.Reminder{ID: "r1", Time: "09:00", RepeatDays: []int{1}, TimezoneRef: "Mars/Olympus"}
	if _, ok := Location(def); ok {
		t.Fatalf("expected unknown timezone to be reported")
	}
	if _, ok := Due(def, time.Date(2024, time.June, 10, 2, 0, 0, 0, time.UTC)); !ok {
		t.Fatalf("expected reminder evaluated in organisation timezone")
	}
}

func TestDueOneTime(t *testing.T) {
	t.Parallel()
	loc := bangkok(t)
	now := time.Date(2024, time.June, 10, 9, 0, 0, 0, loc)

	t.Run("exact minute", func(t *testing.T) {
		def := persistence.Reminder{ID: "once", Time: "09:00", Date: "2024-06-10", TimezoneRef: "Asia/Bangkok"}
		occ, ok := Due(def, now)
		if !ok || occ.Retroactive {
			t.Fatalf("expected on-time occurrence, got ok=%v retroactive=%v", ok, occ.Retroactive)
		}
	})

	t.Run("later today is idle", func(t *testing.T) {
		def := persistence.Reminder{ID: "once", Time: "10:00", Date: "2024-06-10", TimezoneRef: "Asia/Bangkok"}
		if _, ok := Due(def, now); ok {
			t.Fatalf("expected reminder idle before its minute")
		}
	})

	t.Run("past date is retroactive", func(t *testing.T) {
		def := persistence.Reminder{ID: "once", Time: "08:00", Date: "2024-06-09", TimezoneRef: "Asia/Bangkok"}
		occ, ok := Due(def, now)
		if !ok || !occ.Retroactive {
			t.Fatalf("expected retroactive occurrence")
		}
		if occ.Date != "2024-06-09" || occ.Key != "once_2024-06-09_08:00" {
			t.Fatalf("expected occurrence on the stored date, got %s", occ.Key)
		}
	})

	t.Run("fired is terminal", func(t *testing.T) {
		firedAt := now.Add(-time.Hour)
		def := persistence.Reminder{ID: "once", Time: "08:00", Date: "2024-06-09", FiredAt: &firedAt}
		if _, ok := Due(def, now); ok {
			t.Fatalf("expected fired reminder to stay terminal")
		}
	})

	t.Run("disabled", func(t *testing.T) {
		def := persistence.Reminder{ID: "once", Time: "09:00", Date: "2024-06-10", TimezoneRef: "Asia/Bangkok", IsEnabled: boolPtr(false)}
		if _, ok := Due(def, now); ok {
			t.Fatalf("expected disabled reminder never due")
		}
	})
}

func TestEvaluatorFiresRepeatingOncePerMinute(t *testing.T) {
	t.Parallel()
	loc := bangkok(t)

	store := memory.New()
	notifier := &stubNotifier{}
	seedReminder(t, store, persistence.Reminder{
		ID: "r1", UserID: "u1", Title: "Stretch", Time: "09:00",
		RepeatDays: []int{1}, TimezoneRef: "Asia/Bangkok",
	})
	evaluator := NewEvaluator(store, notifier, nil, nil)

	start := time.Date(2024, time.June, 10, 9, 0, 0, 0, loc)
	fired := 0
	for i := 0; i < 60; i++ {
		summary, err := evaluator.Tick(context.Background(), start.Add(time.Duration(i)*time.Second))
		if err != nil {
			t.Fatalf("tick %d failed: %v", i, err)
		}
		fired += summary.Fired
	}
	if fired != 1 || notifier.count() != 1 {
		t.Fatalf("expected exactly one firing, got %d fired and %d pushes", fired, notifier.count())
	}

	msg := notifier.messages[0]
	if msg.Body != "ถึงเวลา 09:00 แล้ว" {
		t.Fatalf("expected body with time, got %q", msg.Body)
	}
	if msg.Data["type"] != NotificationType || msg.Data["notificationId"] != "r1" || msg.Data["date"] != "2024-06-10" {
		t.Fatalf("unexpected payload %v", msg.Data)
	}

	// the next week fires again.
	summary, err := evaluator.Tick(context.Background(), start.AddDate(0, 0, 7))
	if err != nil {
		t.Fatalf("tick failed: %v", err)
	}
	if summary.Fired != 1 {
		t.Fatalf("expected firing the following week, got %d", summary.Fired)
	}
}

func TestEvaluatorRetroactiveOneTimeFiresOnce(t *testing.T) {
	t.Parallel()
	loc := bangkok(t)

	store := memory.New()
	notifier := &stubNotifier{}
	seedReminder(t, store, persistence.Reminder{
		ID: "once", UserID: "u1", Title: "Renew visa", Time: "08:00",
		Date: "2024-06-09", TimezoneRef: "Asia/Bangkok",
	})
	evaluator := NewEvaluator(store, notifier, nil, nil)
	ctx := context.Background()
	now := time.Date(2024, time.June, 10, 11, 17, 0, 0, loc)

	if _, err := evaluator.Tick(ctx, now); err != nil {
		t.Fatalf("tick failed: %v", err)
	}
	if notifier.count() != 1 {
		t.Fatalf("expected one push, got %d", notifier.count())
	}

	stored, err := persistence.NewCollection[persistence.Reminder](store, persistence.CollectionReminders).Get(ctx, "once")
	if err != nil {
		t.Fatalf("failed to load reminder: %v", err)
	}
	if stored.FiredAt == nil {
		t.Fatalf("expected firedAt to be recorded")
	}

	// clearing the ledger does not revive a terminal reminder.
	if _, err := evaluator.Ledger().Prune(ctx, now.Add(time.Hour)); err != nil {
		t.Fatalf("prune failed: %v", err)
	}
	if _, err := evaluator.Tick(ctx, now.Add(time.Minute)); err != nil {
		t.Fatalf("tick failed: %v", err)
	}
	if notifier.count() != 1 {
		t.Fatalf("expected no further pushes, got %d", notifier.count())
	}
}

func TestEvaluatorWritesHistoryRecord(t *testing.T) {
	t.Parallel()
	loc := bangkok(t)

	store := memory.New()
	seedReminder(t, store, persistence.Reminder{
		ID: "r1", UserID: "u1", Title: "Stretch", Time: "09:00",
		RepeatDays: []int{1}, TimezoneRef: "Asia/Bangkok",
	})
	evaluator := NewEvaluator(store, &stubNotifier{}, nil, nil)
	ctx := context.Background()
	if _, err := evaluator.Tick(ctx, time.Date(2024, time.June, 10, 9, 0, 5, 0, loc)); err != nil {
		t.Fatalf("tick failed: %v", err)
	}

	history := persistence.NewCollection[persistence.NotificationRecord](store, persistence.CollectionNotificationHistory)
	record, err := history.Get(ctx, "r1_2024-06-10_09:00")
	if err != nil {
		t.Fatalf("expected history record: %v", err)
	}
	if record.Desc != HistoryDesc || record.Type != HistoryType || record.OriginalID != "r1" || record.UserID != "u1" {
		t.Fatalf("unexpected history record %+v", record)
	}
	if record.FullThaiInfo != "10 มิ.ย. 2567 เวลา 09:00" {
		t.Fatalf("expected Thai date rendering, got %q", record.FullThaiInfo)
	}
	if record.Read {
		t.Fatalf("expected unread record")
	}
}

func TestEvaluatorDeliveryFailureKeepsOccurrenceFired(t *testing.T) {
	t.Parallel()
	loc := bangkok(t)

	store := memory.New()
	notifier := &stubNotifier{err: errors.New("push unavailable")}
	seedReminder(t, store, persistence.Reminder{
		ID: "r1", UserID: "u1", Title: "Stretch", Time: "09:00",
		RepeatDays: []int{1}, TimezoneRef: "Asia/Bangkok",
	})
	evaluator := NewEvaluator(store, notifier, nil, nil)
	now := time.Date(2024, time.June, 10, 9, 0, 0, 0, loc)

	summary, err := evaluator.Tick(context.Background(), now)
	if err != nil {
		t.Fatalf("tick failed: %v", err)
	}
	if summary.Fired != 1 || summary.Failed != 1 {
		t.Fatalf("expected one fired and failed occurrence, got %+v", summary)
	}
	summary, err = evaluator.Tick(context.Background(), now.Add(10*time.Second))
	if err != nil {
		t.Fatalf("tick failed: %v", err)
	}
	if summary.Fired != 0 || notifier.count() != 1 {
		t.Fatalf("expected no retry of a failed delivery, got %+v", summary)
	}
}

func TestEvaluatorSkipsDisabledReminders(t *testing.T) {
	t.Parallel()
	loc := bangkok(t)

	store := memory.New()
	notifier := &stubNotifier{}
	seedReminder(t, store, persistence.Reminder{
		ID: "r1", UserID: "u1", Title: "Stretch", Time: "09:00",
		RepeatDays: []int{1}, TimezoneRef: "Asia/Bangkok", IsEnabled: boolPtr(false),
	})
	evaluator := NewEvaluator(store, notifier, nil, nil)
	summary, err := evaluator.Tick(context.Background(), time.Date(2024, time.June, 10, 9, 0, 0, 0, loc))
	if err != nil {
		t.Fatalf("tick failed: %v", err)
	}
	if summary.Due != 0 || notifier.count() != 0 {
		t.Fatalf("expected disabled reminder to stay idle, got %+v", summary)
	}
}

func TestOccurrenceCacheExpires(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, time.June, 10, 2, 0, 0, 0, time.UTC)
	cache := newOccurrenceCache(time.Minute, 2, func() time.Time { return now })
	cache.Remember("a")
	if !cache.Seen("a") {
		t.Fatalf("expected key remembered")
	}
	now = now.Add(2 * time.Minute)
	if cache.Seen("a") {
		t.Fatalf("expected key expired")
	}

	cache.Remember("b")
	cache.Remember("c")
	cache.Remember("d")
	if cache.Len() > 2 {
		t.Fatalf("expected cache bounded to 2 entries, got %d", cache.Len())
	}
}
