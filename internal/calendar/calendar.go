// Package calendar talks to external calendar services and renders
// bookings as iCalendar feeds.
package calendar

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrEventNotFound is returned when the external event no longer exists.
	ErrEventNotFound = errors.New("calendar: event not found")
	// ErrInvalidCredential is returned when an account credential is
	// missing, revoked or cannot be refreshed.
	ErrInvalidCredential = errors.New("calendar: invalid credential")
)

// DefaultCalendarID addresses the account's primary calendar.
const DefaultCalendarID = "primary"

// Account is a connected calendar identity with its unsealed credential.
type Account struct {
	Email        string
	CalendarID   string
	RefreshToken string
}

// Calendar returns the target calendar id of the account.
func (a Account) Calendar() string {
	if a.CalendarID == "" {
		return DefaultCalendarID
	}
	return a.CalendarID
}

// Event is the provider independent payload of a booking.
type Event struct {
	Summary     string
	Description string
	Location    string
	Start       time.Time
	End         time.Time
	TimeZone    string
	ColorID     string
	Attendees   []string
}

// Client creates, updates and deletes events in external calendars.
type Client interface {
	CreateEvent(ctx context.Context, account Account, event Event) (string, error)
	UpdateEvent(ctx context.Context, account Account, eventID string, event Event) error
	DeleteEvent(ctx context.Context, account Account, eventID string) error
}
