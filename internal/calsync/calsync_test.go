package calsync

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/example/booking-reminder/internal/calendar"
	"github.com/example/booking-reminder/internal/persistence"
	"github.com/example/booking-reminder/internal/persistence/memory"
	"github.com/example/booking-reminder/internal/testfixtures"
)

type call struct {
	op      string
	account string
	eventID string
	event   calendar.Event
}

type fakeClient struct {
	mu      sync.Mutex
	calls   []call
	next    int
	failFor map[string]error
}

func (f *fakeClient) record(c call) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
	return f.failFor[c.op+":"+c.account]
}

func (f *fakeClient) CreateEvent(_ context.Context, account calendar.Account, event calendar.Event) (string, error) {
	if err := f.record(call{op: "create", account: account.Email, event: event}); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	return fmt.Sprintf("evt-%d", f.next), nil
}

func (f *fakeClient) UpdateEvent(_ context.Context, account calendar.Account, eventID string, event calendar.Event) error {
	return f.record(call{op: "update", account: account.Email, eventID: eventID, event: event})
}

func (f *fakeClient) DeleteEvent(_ context.Context, account calendar.Account, eventID string) error {
	return f.record(call{op: "delete", account: account.Email, eventID: eventID})
}

func (f *fakeClient) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if op == "" || c.op == op {
			n++
		}
	}
	return n
}

func (f *fakeClient) reset() {
	f.mu.Lock()
	f.calls = nil
	f.mu.Unlock()
}

var (
	accountA = "a@example.com"
	accountB = "b@example.com"
	start    = time.Date(2024, time.June, 10, 12, 0, 0, 0, time.UTC)
)

func seedAccounts(t *testing.T, store persistence.DocumentStore, emails ...string) {
	t.Helper()
	settings := persistence.AdminSettings{ID: persistence.AdminSettingsID}
	for _, email := range emails {
		settings.CalendarAccounts = append(settings.CalendarAccounts, persistence.CalendarAccount{Email: email, Credential: "token-" + email})
	}
	if err := store.Put(context.Background(), persistence.CollectionSettings, persistence.AdminSettingsID, settings); err != nil {
		t.Fatalf("failed to seed accounts: %v", err)
	}
}

func seedBooking(t *testing.T, store persistence.DocumentStore, booking persistence.Booking) {
	t.Helper()
	if booking.Status == "" {
		booking.Status = persistence.BookingConfirmed
	}
	if booking.StartTime.IsZero() {
		booking.StartTime = start
		booking.EndTime = start.Add(time.Hour)
	}
	if _, err := store.Create(context.Background(), persistence.CollectionBookings, booking.ID, booking); err != nil {
		t.Fatalf("failed to seed booking: %v", err)
	}
}

func loadBooking(t *testing.T, store persistence.DocumentStore, id string) persistence.Booking {
	t.Helper()
	booking, err := persistence.NewCollection[persistence.Booking](store, persistence.CollectionBookings).Get(context.Background(), id)
	if err != nil {
		t.Fatalf("failed to load booking: %v", err)
	}
	return booking
}

func TestReconcileIsIdempotent(t *testing.T) {
	t.Parallel()

	store := memory.New()
	client := &fakeClient{}
	seedAccounts(t, store, accountA, accountB)
	activity := testfixtures.NewActivityType(testfixtures.WithActivityName("Consulting"), testfixtures.WithActivityColor("#3f51b5"))
	if _, err := store.Create(context.Background(), persistence.CollectionActivityTypes, activity.ID, activity); err != nil {
		t.Fatalf("failed to seed activity type: %v", err)
	}
	seedBooking(t, store, testfixtures.NewBooking(testfixtures.WithBookingID("b1")))
	seedBooking(t, store, testfixtures.NewBooking(testfixtures.WithBookingID("b2"), testfixtures.WithBookingStatus(persistence.BookingCancelled)))
	syncer := New(store, client, Options{})

	stats, err := syncer.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("expected reconcile to succeed: %v", err)
	}
	if stats.Created != 2 || client.count("create") != 2 {
		t.Fatalf("expected two creations, got %+v and %d calls", stats, client.count("create"))
	}
	mapped := loadBooking(t, store, "b1").CalendarEventIDs
	if mapped[accountA] == "" || mapped[accountB] == "" {
		t.Fatalf("expected both accounts mapped, got %v", mapped)
	}
	if color := client.calls[0].event.ColorID; color != "9" {
		t.Fatalf("expected the activity color mapped to 9, got %q", color)
	}

	client.reset()
	if _, err := syncer.Reconcile(context.Background()); err != nil {
		t.Fatalf("expected reconcile to succeed: %v", err)
	}
	if client.count("") != 0 {
		t.Fatalf("expected zero external calls on second pass, got %d", client.count(""))
	}
}

func TestReconcileRespectsTargetAccount(t *testing.T) {
	t.Parallel()

	store := memory.New()
	client := &fakeClient{}
	seedAccounts(t, store, accountA, accountB)
	seedBooking(t, store, persistence.Booking{ID: "b1", TargetAccount: "B@example.com"})

	if _, err := New(store, client, Options{}).Reconcile(context.Background()); err != nil {
		t.Fatalf("expected reconcile to succeed: %v", err)
	}
	if client.count("create") != 1 || client.calls[0].account != accountB {
		t.Fatalf("expected a single creation for the target account, got %+v", client.calls)
	}
}

func TestReconcileLeavesFailuresPending(t *testing.T) {
	t.Parallel()

	store := memory.New()
	client := &fakeClient{failFor: map[string]error{"create:" + accountB: errors.New("quota exceeded")}}
	seedAccounts(t, store, accountA, accountB)
	seedBooking(t, store, persistence.Booking{ID: "b1"})
	syncer := New(store, client, Options{})

	stats, err := syncer.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("expected reconcile to succeed: %v", err)
	}
	if stats.Created != 1 || stats.Failed != 1 || stats.Pending != 1 {
		t.Fatalf("expected one created and one pending, got %+v", stats)
	}

	client.mu.Lock()
	client.failFor = nil
	client.calls = nil
	client.mu.Unlock()

	stats, err = syncer.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("expected reconcile to succeed: %v", err)
	}
	if stats.Created != 1 || client.count("create") != 1 || client.calls[0].account != accountB {
		t.Fatalf("expected the pending account retried, got %+v", client.calls)
	}
}

func TestReconcileWarnsOnStaleBookings(t *testing.T) {
	t.Parallel()

	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, &slog.HandlerOptions{Level: slog.LevelWarn}))
	warnings := func() int {
		return strings.Count(logs.String(), `"msg":"booking still missing calendar events"`)
	}

	store := memory.New()
	client := &fakeClient{failFor: map[string]error{"create:" + accountA: errors.New("quota exceeded")}}
	seedAccounts(t, store, accountA)
	seedBooking(t, store, testfixtures.NewBooking(testfixtures.WithBookingID("b-stale")))
	syncer := New(store, client, Options{Logger: logger})
	reconcile := func(passes int) {
		t.Helper()
		for i := 0; i < passes; i++ {
			if _, err := syncer.Reconcile(context.Background()); err != nil {
				t.Fatalf("expected reconcile to succeed: %v", err)
			}
		}
	}

	reconcile(StaleAfterTicks - 1)
	if warnings() != 0 {
		t.Fatalf("expected no warning before %d passes, got %s", StaleAfterTicks, logs.String())
	}
	reconcile(1)
	if warnings() != 1 || !strings.Contains(logs.String(), `"booking_id":"b-stale"`) {
		t.Fatalf("expected one warning for b-stale, got %s", logs.String())
	}
	reconcile(2)
	if warnings() != 1 {
		t.Fatalf("expected the warning to be emitted once, got %d", warnings())
	}

	client.mu.Lock()
	client.failFor = map[string]error{"create:" + accountB: errors.New("quota exceeded")}
	client.mu.Unlock()
	reconcile(1)
	if loadBooking(t, store, "b-stale").CalendarEventIDs[accountA] == "" {
		t.Fatalf("expected the booking mapped once creation succeeds")
	}
	syncer.mu.Lock()
	_, tracked := syncer.pendingTicks["b-stale"]
	syncer.mu.Unlock()
	if tracked {
		t.Fatalf("expected the pending counter cleared for a mapped booking")
	}

	// a newly connected account that keeps failing starts a fresh count.
	seedAccounts(t, store, accountA, accountB)
	reconcile(StaleAfterTicks - 1)
	if warnings() != 1 {
		t.Fatalf("expected the counter to restart after mapping, got %d warnings", warnings())
	}
	reconcile(1)
	if warnings() != 2 {
		t.Fatalf("expected a second warning after %d failing passes, got %d", StaleAfterTicks, warnings())
	}
}

func TestReconcileMigratesLegacyEventID(t *testing.T) {
	t.Parallel()

	store := memory.New()
	client := &fakeClient{}
	seedAccounts(t, store, accountA, accountB)
	seedBooking(t, store, persistence.Booking{ID: "b1", LegacyEventID: "legacy-1"})

	if _, err := New(store, client, Options{}).Reconcile(context.Background()); err != nil {
		t.Fatalf("expected reconcile to succeed: %v", err)
	}
	if client.count("create") != 1 || client.calls[0].account != accountB {
		t.Fatalf("expected creation only for the second account, got %+v", client.calls)
	}

	booking := loadBooking(t, store, "b1")
	if booking.LegacyEventID != "" {
		t.Fatalf("expected legacy id removed, got %q", booking.LegacyEventID)
	}
	if booking.CalendarEventIDs[accountA] != "legacy-1" || booking.CalendarEventIDs[accountB] == "" {
		t.Fatalf("expected legacy id moved to the first account, got %v", booking.CalendarEventIDs)
	}
}

func TestReconcileNotConfigured(t *testing.T) {
	t.Parallel()

	store := memory.New()
	client := &fakeClient{}
	seedBooking(t, store, persistence.Booking{ID: "b1"})

	_, err := New(store, client, Options{}).Reconcile(context.Background())
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	if client.count("") != 0 {
		t.Fatalf("expected no external calls")
	}
}

type failingOpener struct{}

func (failingOpener) Open(string) (string, error) { return "", errors.New("wrong key") }

func TestReconcileUnusableCredentials(t *testing.T) {
	t.Parallel()

	store := memory.New()
	seedAccounts(t, store, accountA)
	seedBooking(t, store, persistence.Booking{ID: "b1"})

	_, err := New(store, &fakeClient{}, Options{Opener: failingOpener{}}).Reconcile(context.Background())
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestBookingDeletedToleratesMissingEvents(t *testing.T) {
	t.Parallel()

	store := memory.New()
	client := &fakeClient{failFor: map[string]error{"delete:" + accountA: calendar.ErrEventNotFound}}
	seedAccounts(t, store, accountA, accountB)
	booking := testfixtures.NewBooking(testfixtures.WithBookingEvents(map[string]string{accountA: "evt-a", accountB: "evt-b"}))

	if err := New(store, client, Options{}).BookingDeleted(context.Background(), booking); err != nil {
		t.Fatalf("expected missing events tolerated, got %v", err)
	}
	if client.count("delete") != 2 {
		t.Fatalf("expected two delete calls, got %d", client.count("delete"))
	}
}

func TestBookingChangedUpdatesMappedEvents(t *testing.T) {
	t.Parallel()

	store := memory.New()
	client := &fakeClient{}
	seedAccounts(t, store, accountA, accountB)
	before := testfixtures.NewBooking(
		testfixtures.WithBookingWindow(start, time.Hour),
		testfixtures.WithBookingUser("user-2", "user-2@example.com"),
		testfixtures.WithBookingEvents(map[string]string{accountA: "evt-a"}),
	)
	syncer := New(store, client, Options{})

	mappingOnly := before
	mappingOnly.CalendarEventIDs = map[string]string{accountA: "evt-a", accountB: "evt-b"}
	if err := syncer.BookingChanged(context.Background(), before, mappingOnly); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if client.count("") != 0 {
		t.Fatalf("expected mapping-only change to issue no calls, got %d", client.count(""))
	}

	moved := before
	moved.StartTime = start.Add(time.Hour)
	moved.EndTime = start.Add(2 * time.Hour)
	if err := syncer.BookingChanged(context.Background(), before, moved); err != nil {
		t.Fatalf("expected update to succeed: %v", err)
	}
	if client.count("update") != 1 || client.calls[0].eventID != "evt-a" {
		t.Fatalf("expected one update of evt-a, got %+v", client.calls)
	}
	if !client.calls[0].event.Start.Equal(moved.StartTime) {
		t.Fatalf("expected updated start time, got %v", client.calls[0].event.Start)
	}
}

func TestBookingChangedCancellationDeletesEvents(t *testing.T) {
	t.Parallel()

	store := memory.New()
	client := &fakeClient{}
	seedAccounts(t, store, accountA)
	before := testfixtures.NewBooking(testfixtures.WithBookingID("b1"), testfixtures.WithBookingEvents(map[string]string{accountA: "evt-a"}))
	seedBooking(t, store, before)

	after := before
	after.Status = persistence.BookingCancelled
	if err := New(store, client, Options{}).BookingChanged(context.Background(), before, after); err != nil {
		t.Fatalf("expected cancellation to succeed: %v", err)
	}
	if client.count("delete") != 1 {
		t.Fatalf("expected one delete, got %d", client.count("delete"))
	}
	if mapped := loadBooking(t, store, "b1").CalendarEventIDs; len(mapped) != 0 {
		t.Fatalf("expected mapping cleared, got %v", mapped)
	}
}

func TestBuildEvent(t *testing.T) {
	t.Parallel()

	event := BuildEvent(persistence.Booking{
		Type: "Consult", Subject: "Thesis",
		StartTime: start, EndTime: start.Add(time.Hour),
		UserName: "Somchai", Email: "somchai@example.com",
		MeetingFormat: persistence.MeetingOnline, Location: "https://meet.example.com/x",
	}, "#3f51b5")

	if event.Summary != "[Consult] Thesis" {
		t.Fatalf("expected derived title, got %q", event.Summary)
	}
	if event.ColorID != "9" {
		t.Fatalf("expected color 9 for #3f51b5, got %s", event.ColorID)
	}
	if !strings.Contains(event.Description, "Somchai (somchai@example.com)") {
		t.Fatalf("expected requester in description, got %q", event.Description)
	}
	if event.TimeZone != "Asia/Bangkok" || !event.Start.Equal(start) {
		t.Fatalf("unexpected time fields %v %s", event.Start, event.TimeZone)
	}
	if len(event.Attendees) != 1 || event.Attendees[0] != "somchai@example.com" {
		t.Fatalf("expected requester as attendee, got %v", event.Attendees)
	}

	if defaulted := BuildEvent(persistence.Booking{}, "not-a-color"); defaulted.ColorID != "7" || defaulted.Description != "-" {
		t.Fatalf("expected default color and description, got %s %q", defaulted.ColorID, defaulted.Description)
	}
}

func TestWorkerFollowsBookings(t *testing.T) {
	t.Parallel()

	store := memory.New()
	client := &fakeClient{}
	seedAccounts(t, store, accountA)
	worker := NewWorker(New(store, client, Options{}), nil)
	passes := worker.Passes()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()

	seedBooking(t, store, persistence.Booking{ID: "b1"})
	waitFor(t, passes, func() bool { return client.count("create") == 1 })

	if err := store.Delete(context.Background(), persistence.CollectionBookings, "b1"); err != nil {
		t.Fatalf("failed to delete booking: %v", err)
	}
	deadline := time.After(2 * time.Second)
	for client.count("delete") != 1 {
		select {
		case <-deadline:
			t.Fatalf("expected the removed booking's event deleted")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("expected clean shutdown, got %v", err)
	}
}

func waitFor(t *testing.T, passes <-chan Stats, cond func() bool) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for !cond() {
		select {
		case <-passes:
		case <-deadline:
			t.Fatalf("condition not met before deadline")
		}
	}
}
