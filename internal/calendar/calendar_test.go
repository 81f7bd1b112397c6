package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	ics "github.com/arran4/golang-ical"

	"github.com/example/booking-reminder/internal/persistence"
)

func newTestGoogleClient(t *testing.T, handler http.HandlerFunc) *GoogleClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewGoogleClient("client", "secret", nil,
		WithEndpoint(server.URL+"/"),
		WithHTTPClient(server.Client()),
		WithTimeout(5*time.Second),
	)
}

func TestGoogleClientCreateEvent(t *testing.T) {
	t.Parallel()

	var received map[string]any
	client := newTestGoogleClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || !strings.HasSuffix(r.URL.Path, "/calendars/team@example.com/events") {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("failed to decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"evt-1"}`))
	})

	start := time.Date(2024, time.June, 10, 2, 0, 0, 0, time.UTC)
	id, err := client.CreateEvent(context.Background(), Account{Email: "team@example.com", CalendarID: "team@example.com"}, Event{
		Summary:  "[Consult] Thesis",
		Start:    start,
		End:      start.Add(time.Hour),
		TimeZone: "Asia/Bangkok",
		ColorID:  "9",
	})
	if err != nil {
		t.Fatalf("expected create to succeed: %v", err)
	}
	if id != "evt-1" {
		t.Fatalf("expected evt-1, got %s", id)
	}
	if received["summary"] != "[Consult] Thesis" || received["colorId"] != "9" {
		t.Fatalf("unexpected payload %v", received)
	}
}

func TestGoogleClientDeleteMissingEvent(t *testing.T) {
	t.Parallel()

	client := newTestGoogleClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusGone)
		_, _ = w.Write([]byte(`{"error":{"code":410,"message":"Resource has been deleted"}}`))
	})

	err := client.DeleteEvent(context.Background(), Account{Email: "team@example.com"}, "evt-1")
	if !errors.Is(err, ErrEventNotFound) {
		t.Fatalf("expected ErrEventNotFound, got %v", err)
	}
}

func TestGoogleClientUnauthorized(t *testing.T) {
	t.Parallel()

	client := newTestGoogleClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"code":401,"message":"Invalid Credentials"}}`))
	})

	err := client.UpdateEvent(context.Background(), Account{Email: "team@example.com"}, "evt-1", Event{})
	if !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("expected ErrInvalidCredential, got %v", err)
	}
}

func TestGoogleClientRequiresRefreshToken(t *testing.T) {
	t.Parallel()

	client := NewGoogleClient("client", "secret", nil)
	_, err := client.CreateEvent(context.Background(), Account{Email: "team@example.com"}, Event{})
	if !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("expected ErrInvalidCredential, got %v", err)
	}
}

func TestWriteFeed(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, time.June, 10, 2, 0, 0, 0, time.UTC)
	bookings := []persistence.Booking{
		{ID: "b1", Title: "[Consult] Thesis", StartTime: start, EndTime: start.Add(time.Hour), Location: "Room 4", Status: persistence.BookingConfirmed},
		{ID: "b2", Title: "[Consult] Cancelled", StartTime: start, EndTime: start.Add(time.Hour), Status: persistence.BookingCancelled},
	}

	var buf bytes.Buffer
	if err := WriteFeed(&buf, bookings, FeedOptions{Name: "Bookings", TimeZone: "Asia/Bangkok", Now: start}); err != nil {
		t.Fatalf("expected feed to serialize: %v", err)
	}

	parsed, err := ics.ParseCalendar(strings.NewReader(buf.String()))
	if err != nil {
		t.Fatalf("expected feed to parse: %v", err)
	}
	events := parsed.Events()
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if summary := events[0].GetProperty(ics.ComponentPropertySummary); summary == nil || summary.Value != "[Consult] Thesis" {
		t.Fatalf("unexpected summary %v", summary)
	}
	if status := events[1].GetProperty(ics.ComponentPropertyStatus); status == nil || status.Value != string(ics.ObjectStatusCancelled) {
		t.Fatalf("expected cancelled status, got %v", status)
	}
	startAt, err := events[0].GetStartAt()
	if err != nil || !startAt.Equal(start) {
		t.Fatalf("expected start %v, got %v (%v)", start, startAt, err)
	}
}
