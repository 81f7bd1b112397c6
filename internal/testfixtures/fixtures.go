package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/booking-reminder/internal/persistence"
	"github.com/example/booking-reminder/internal/timeutil"
)

var (
	activityCounter uint64
	templateCounter uint64
	bookingCounter  uint64
	reminderCounter uint64
)

// referenceTime is Monday 10 June 2024, 09:00 in Asia/Bangkok.
var referenceTime = time.Date(2024, time.June, 10, 2, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// ReferenceDate is the organization-local date of ReferenceTime.
const ReferenceDate = "2024-06-10"

// ----------------------------- Activity fixtures -----------------------------

// ActivityOption configures the generated activity type.
type ActivityOption func(*persistence.ActivityType)

// NewActivityType returns a deterministic activity type.
func NewActivityType(opts ...ActivityOption) persistence.ActivityType {
	idx := atomic.AddUint64(&activityCounter, 1)
	activity := persistence.ActivityType{
		ID:        fmt.Sprintf("activity-%03d", idx),
		Name:      fmt.Sprintf("Activity %03d", idx),
		Color:     "#3f51b5",
		CreatedAt: referenceTime,
	}
	for _, opt := range opts {
		opt(&activity)
	}
	return activity
}

// WithActivityName overrides the activity name.
func WithActivityName(name string) ActivityOption {
	return func(a *persistence.ActivityType) { a.Name = name }
}

// WithActivityColor overrides the activity color.
func WithActivityColor(hex string) ActivityOption {
	return func(a *persistence.ActivityType) { a.Color = hex }
}

// ----------------------------- Template fixtures -----------------------------

// NewTemplate returns one schedule template row for day (a weekday symbol)
// offering activityType in clock, either "HH:MM - HH:MM" or "HH:MM".
func NewTemplate(activityType, day, clock string) persistence.ScheduleTemplate {
	idx := atomic.AddUint64(&templateCounter, 1)
	return persistence.ScheduleTemplate{
		ID:          fmt.Sprintf("template-%03d", idx),
		Day:         day,
		Type:        activityType,
		Time:        clock,
		CreatedDate: referenceTime,
	}
}

// WeekTemplates returns one template per weekday symbol in days.
func WeekTemplates(activityType, clock string, days ...time.Weekday) []persistence.ScheduleTemplate {
	templates := make([]persistence.ScheduleTemplate, 0, len(days))
	for _, day := range days {
		templates = append(templates, NewTemplate(activityType, timeutil.WeekdaySymbol(day), clock))
	}
	return templates
}

// ----------------------------- Booking fixtures -----------------------------

// BookingOption configures the generated booking.
type BookingOption func(*persistence.Booking)

// NewBooking returns a confirmed one hour booking starting at ReferenceTime.
func NewBooking(opts ...BookingOption) persistence.Booking {
	idx := atomic.AddUint64(&bookingCounter, 1)
	booking := persistence.Booking{
		ID:            fmt.Sprintf("booking-%03d", idx),
		Type:          "Consulting",
		Subject:       fmt.Sprintf("Subject %03d", idx),
		Title:         fmt.Sprintf("[Consulting] Subject %03d", idx),
		StartTime:     referenceTime,
		EndTime:       referenceTime.Add(time.Hour),
		MeetingFormat: persistence.MeetingOnline,
		Location:      "https://meet.example.com/room",
		UserID:        "user-1",
		Email:         "user-1@example.com",
		UserName:      "User One",
		Status:        persistence.BookingConfirmed,
		ColorID:       "9",
		CreatedAt:     referenceTime.Add(-24 * time.Hour),
	}
	for _, opt := range opts {
		opt(&booking)
	}
	return booking
}

// WithBookingID overrides the booking id.
func WithBookingID(id string) BookingOption {
	return func(b *persistence.Booking) { b.ID = id }
}

// WithBookingUser overrides the owner of the booking.
func WithBookingUser(userID, email string) BookingOption {
	return func(b *persistence.Booking) {
		b.UserID = userID
		b.Email = email
	}
}

// WithBookingWindow sets the booking interval.
func WithBookingWindow(start time.Time, d time.Duration) BookingOption {
	return func(b *persistence.Booking) {
		b.StartTime = start
		b.EndTime = start.Add(d)
	}
}

// WithBookingStatus overrides the booking status.
func WithBookingStatus(status persistence.BookingStatus) BookingOption {
	return func(b *persistence.Booking) { b.Status = status }
}

// WithBookingEvents sets the external event mapping.
func WithBookingEvents(events map[string]string) BookingOption {
	return func(b *persistence.Booking) { b.CalendarEventIDs = events }
}

// ----------------------------- Reminder fixtures -----------------------------

// ReminderOption configures the generated reminder.
type ReminderOption func(*persistence.Reminder)

// NewReminder returns an enabled one-time reminder due at ReferenceTime.
func NewReminder(opts ...ReminderOption) persistence.Reminder {
	idx := atomic.AddUint64(&reminderCounter, 1)
	enabled := true
	reminder := persistence.Reminder{
		ID:          fmt.Sprintf("reminder-%03d", idx),
		UserID:      "user-1",
		Title:       fmt.Sprintf("Reminder %03d", idx),
		Time:        "09:00",
		Date:        ReferenceDate,
		TimezoneRef: timeutil.OrgTimezone,
		IsEnabled:   &enabled,
		CreatedAt:   referenceTime.Add(-time.Hour),
	}
	for _, opt := range opts {
		opt(&reminder)
	}
	return reminder
}

// WithReminderSchedule sets the clock and date of a one-time reminder.
func WithReminderSchedule(date, clock string) ReminderOption {
	return func(r *persistence.Reminder) {
		r.Date = date
		r.Time = clock
	}
}

// WithReminderRepeat turns the reminder into a weekly one.
func WithReminderRepeat(days ...time.Weekday) ReminderOption {
	return func(r *persistence.Reminder) {
		r.Date = ""
		r.RepeatDays = r.RepeatDays[:0]
		for _, day := range days {
			r.RepeatDays = append(r.RepeatDays, int(day))
		}
	}
}

// WithReminderUser overrides the owner of the reminder.
func WithReminderUser(userID string) ReminderOption {
	return func(r *persistence.Reminder) { r.UserID = userID }
}

// WithReminderTimezone overrides the timezone reference.
func WithReminderTimezone(ref string) ReminderOption {
	return func(r *persistence.Reminder) { r.TimezoneRef = ref }
}

// WithReminderDisabled clears the enabled flag.
func WithReminderDisabled() ReminderOption {
	return func(r *persistence.Reminder) {
		disabled := false
		r.IsEnabled = &disabled
	}
}
