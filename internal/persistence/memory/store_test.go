package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/booking-reminder/internal/persistence"
)

func TestStoreCreateGetAndDuplicate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := New()
	bookings := persistence.NewCollection[persistence.Booking](store, persistence.CollectionBookings)

	id, err := bookings.Create(ctx, "booking-1", persistence.Booking{Subject: "Consult", Status: persistence.BookingConfirmed})
	if err != nil {
		t.Fatalf("expected create to succeed, got %v", err)
	}
	if id != "booking-1" {
		t.Fatalf("expected provided id to be kept, got %s", id)
	}

	got, err := bookings.Get(ctx, id)
	if err != nil {
		t.Fatalf("expected get to succeed, got %v", err)
	}
	if got.ID != "booking-1" || got.Subject != "Consult" {
		t.Fatalf("expected stored booking, got %#v", got)
	}

	if _, err := bookings.Create(ctx, "booking-1", persistence.Booking{}); !errors.Is(err, persistence.ErrDuplicate) {
		t.Fatalf("expected duplicate error, got %v", err)
	}

	generated, err := bookings.Create(ctx, "", persistence.Booking{Subject: "Other"})
	if err != nil || generated == "" {
		t.Fatalf("expected generated id, got %q (%v)", generated, err)
	}
}

func TestStoreUpdateNestedFieldWithDottedKey(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := New()
	bookings := persistence.NewCollection[persistence.Booking](store, persistence.CollectionBookings)

	if _, err := bookings.Create(ctx, "b1", persistence.Booking{LegacyEventID: "legacy"}); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	err := bookings.Update(ctx, "b1",
		persistence.Set("evt-1", "calendarEventIds", "admin@example.com"),
		persistence.Remove("googleCalendarEventId"),
	)
	if err != nil {
		t.Fatalf("expected update to succeed, got %v", err)
	}

	got, err := bookings.Get(ctx, "b1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.CalendarEventIDs["admin@example.com"] != "evt-1" {
		t.Fatalf("expected mapped id under dotted key, got %#v", got.CalendarEventIDs)
	}
	if got.LegacyEventID != "" {
		t.Fatalf("expected legacy id to be removed, got %q", got.LegacyEventID)
	}

	if err := bookings.Update(ctx, "missing", persistence.Set("x", "subject")); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := bookings.Update(ctx, "b1", persistence.Set("other", "id")); !errors.Is(err, persistence.ErrConstraintViolation) {
		t.Fatalf("expected id update to be rejected, got %v", err)
	}
}

func TestStoreSubscribeDeliversInitialSnapshotAndChanges(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	store := New()
	bookings := persistence.NewCollection[persistence.Booking](store, persistence.CollectionBookings)
	if _, err := bookings.Create(ctx, "b1", persistence.Booking{Subject: "first"}); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	stream, err := bookings.Watch(ctx, nil)
	if err != nil {
		t.Fatalf("watch failed: %v", err)
	}

	initial := <-stream
	if len(initial.Items) != 1 || len(initial.Changes) != 1 || initial.Changes[0].Kind != persistence.ChangeAdded {
		t.Fatalf("expected initial snapshot with one added change, got %#v", initial)
	}

	if err := bookings.Delete(ctx, "b1"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	next := <-stream
	if len(next.Items) != 0 {
		t.Fatalf("expected empty collection after delete, got %d items", len(next.Items))
	}
	if len(next.Changes) != 1 || next.Changes[0].Kind != persistence.ChangeRemoved {
		t.Fatalf("expected removal change, got %#v", next.Changes)
	}
	if next.Changes[0].Previous == nil || next.Changes[0].Previous.Subject != "first" {
		t.Fatalf("expected previous body on removal")
	}
}

func TestStoreSubscribeFilter(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	store := New()
	reminders := persistence.NewCollection[persistence.Reminder](store, persistence.CollectionReminders)
	stream, err := reminders.Watch(ctx, func(r persistence.Reminder) bool { return r.UserID == "u1" })
	if err != nil {
		t.Fatalf("watch failed: %v", err)
	}
	<-stream

	if _, err := reminders.Create(ctx, "r-other", persistence.Reminder{UserID: "u2"}); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := reminders.Create(ctx, "r-mine", persistence.Reminder{UserID: "u1"}); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	var snapshot persistence.TypedSnapshot[persistence.Reminder]
	for len(snapshot.Items) == 0 {
		snapshot = <-stream
	}
	if len(snapshot.Items) != 1 || snapshot.Items[0].ID != "r-mine" {
		t.Fatalf("expected only the filtered reminder, got %#v", snapshot.Items)
	}
	for _, change := range snapshot.Changes {
		if change.ID == "r-other" {
			t.Fatalf("expected filtered change to be dropped")
		}
	}
}
