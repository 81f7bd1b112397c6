package persistence

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestEncodeDocumentInjectsID(t *testing.T) {
	t.Parallel()

	body, err := EncodeDocument("a1", ActivityType{Name: "Consult", Color: "#fff"})
	if err != nil {
		t.Fatalf("expected encode to succeed, got %v", err)
	}
	decoded, err := Decode[ActivityType](body)
	if err != nil {
		t.Fatalf("expected decode to succeed, got %v", err)
	}
	if decoded.ID != "a1" || decoded.Name != "Consult" {
		t.Fatalf("expected id and fields to round trip, got %#v", decoded)
	}

	if _, err := EncodeDocument("x", []string{"not", "an", "object"}); !errors.Is(err, ErrConstraintViolation) {
		t.Fatalf("expected non-object document to be rejected, got %v", err)
	}
}

func TestApplyUpdatesCreatesAndRemovesNestedFields(t *testing.T) {
	t.Parallel()

	body := json.RawMessage(`{"id":"b1","subject":"old","calendarEventIds":{"a@example.com":"e1"}}`)
	updated, err := ApplyUpdates(body, []FieldUpdate{
		Set("new", "subject"),
		Set("e2", "calendarEventIds", "b@example.com"),
		Remove("calendarEventIds", "a@example.com"),
		Remove("missing", "nested"),
	})
	if err != nil {
		t.Fatalf("expected updates to apply, got %v", err)
	}

	booking, err := Decode[Booking](updated)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if booking.Subject != "new" {
		t.Fatalf("expected subject to change, got %q", booking.Subject)
	}
	if len(booking.CalendarEventIDs) != 1 || booking.CalendarEventIDs["b@example.com"] != "e2" {
		t.Fatalf("expected only the new mapping, got %#v", booking.CalendarEventIDs)
	}
}

func TestApplyUpdatesRejectsEmptyPath(t *testing.T) {
	t.Parallel()

	if _, err := ApplyUpdates(nil, []FieldUpdate{{Value: 1}}); !errors.Is(err, ErrConstraintViolation) {
		t.Fatalf("expected empty path to be rejected, got %v", err)
	}
}
