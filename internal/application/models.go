package application

import (
	"time"

	"github.com/example/booking-reminder/internal/timeutil"
)

// Principal represents the caller identity asserted by the upstream gateway.
type Principal struct {
	UserID  string
	Email   string
	Name    string
	IsAdmin bool
}

// ActivityTypeInput captures caller provided activity type fields.
type ActivityTypeInput struct {
	Name  string
	Color string
}

// TemplateGroup is the display grouping of schedule template rows sharing
// type, time and duration.
type TemplateGroup struct {
	Type     string   `json:"type"`
	Time     string   `json:"time"`
	Duration string   `json:"duration,omitempty"`
	Days     []string `json:"days"`
	IDs      []string `json:"ids"`
}

// TemplateGroupInput captures caller provided schedule template fields.
// End may be empty for a single start time.
type TemplateGroupInput struct {
	Type     string
	Days     []string
	Start    string
	End      string
	Duration string
}

// BookingInput captures caller provided booking fields.
type BookingInput struct {
	Type          string
	Subject       string
	Date          string
	StartTime     string
	Duration      timeutil.Duration
	MeetingFormat string
	Location      string
	Description   string
	TargetAccount string
}

// ReminderInput captures caller provided reminder fields.
type ReminderInput struct {
	Title         string
	Time          string
	Date          string
	RepeatDays    []int
	TimezoneRef   string
	TimezoneLabel string
}

// ReminderView is a stored reminder decorated with its schedule summary.
type ReminderView struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Time           string     `json:"time"`
	Date           string     `json:"date,omitempty"`
	RepeatDays     []int      `json:"repeatDays,omitempty"`
	TimezoneRef    string     `json:"timezoneRef"`
	TimezoneLabel  string     `json:"timezone,omitempty"`
	Enabled        bool       `json:"isEnabled"`
	Repeat         string     `json:"repeat"`
	NextOccurrence *time.Time `json:"nextOccurrence,omitempty"`
	FiredAt        *time.Time `json:"firedAt,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
}

// CalendarAccountInput captures the fields required to connect an account.
type CalendarAccountInput struct {
	Email        string
	RefreshToken string
	CalendarID   string
}

// CalendarAccountView is a connected account without its credential.
type CalendarAccountView struct {
	Email       string    `json:"email"`
	CalendarID  string    `json:"calendarId,omitempty"`
	ConnectedAt time.Time `json:"connectedAt"`
}

// SlotQuery selects the availability to compute.
type SlotQuery struct {
	Type     string
	Date     string
	Duration timeutil.Duration
	Timezone string
	// UserID restricts the booked check to one user's bookings.
	UserID string
}
