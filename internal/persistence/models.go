package persistence

import "time"

// Collection names used by the document store.
const (
	CollectionActivityTypes       = "activityTypes"
	CollectionSchedules           = "schedules"
	CollectionBookings            = "bookings"
	CollectionReminders           = "customNotifications"
	CollectionFiredOccurrences    = "firedOccurrences"
	CollectionNotificationHistory = "notificationHistory"
	CollectionPushTokens          = "pushTokens"
	CollectionSettings            = "settings"

	// AdminSettingsID is the id of the single administrator settings document.
	AdminSettingsID = "admin"
)

// ActivityType is a named, colored category of bookable event.
type ActivityType struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Color     string    `json:"color"`
	OwnerID   string    `json:"ownerId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// ScheduleTemplate is one weekly availability row for a single day. Time
// holds either "HH:MM - HH:MM" or a single "HH:MM".
type ScheduleTemplate struct {
	ID          string    `json:"id"`
	Day         string    `json:"day"`
	Type        string    `json:"type"`
	Time        string    `json:"time"`
	Duration    string    `json:"duration,omitempty"`
	OwnerID     string    `json:"ownerId,omitempty"`
	CreatedDate time.Time `json:"createdDate"`
}

// BookingStatus is the stored lifecycle state of a booking.
type BookingStatus string

const (
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
)

// Meeting formats accepted on bookings.
const (
	MeetingOnline = "Online"
	MeetingOnSite = "On-site"
)

// Booking is a dated reservation of one slot by one user.
type Booking struct {
	ID               string            `json:"id"`
	Type             string            `json:"type"`
	Subject          string            `json:"subject"`
	Title            string            `json:"title"`
	StartTime        time.Time         `json:"startTime"`
	EndTime          time.Time         `json:"endTime"`
	MeetingFormat    string            `json:"meetingFormat"`
	Location         string            `json:"location"`
	Description      string            `json:"description"`
	UserID           string            `json:"userId"`
	Email            string            `json:"email"`
	UserName         string            `json:"userName,omitempty"`
	Status           BookingStatus     `json:"status"`
	ColorID          string            `json:"colorId,omitempty"`
	CalendarEventIDs map[string]string `json:"calendarEventIds,omitempty"`
	LegacyEventID    string            `json:"googleCalendarEventId,omitempty"`
	TargetAccount    string            `json:"targetAccount,omitempty"`
	CreatedAt        time.Time         `json:"createdAt"`
}

// Active reports whether the booking still holds its slot.
func (b Booking) Active() bool {
	return b.Status != BookingCancelled
}

// Completed reports the derived "completed" state.
func (b Booking) Completed(now time.Time) bool {
	return now.After(b.EndTime)
}

// Reminder is a user-defined one-time or weekly repeating alarm.
type Reminder struct {
	ID            string     `json:"id"`
	UserID        string     `json:"userId"`
	Title         string     `json:"title"`
	Time          string     `json:"time"`
	Date          string     `json:"date,omitempty"`
	RepeatDays    []int      `json:"repeatDays,omitempty"`
	TimezoneRef   string     `json:"timezoneRef"`
	TimezoneLabel string     `json:"timezone,omitempty"`
	IsEnabled     *bool      `json:"isEnabled,omitempty"`
	FiredAt       *time.Time `json:"firedAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// Enabled treats a missing flag as enabled.
func (r Reminder) Enabled() bool {
	return r.IsEnabled == nil || *r.IsEnabled
}

// Repeating reports whether the weekday set drives scheduling.
func (r Reminder) Repeating() bool {
	return len(r.RepeatDays) > 0
}

// FiredOccurrence is one entry of the reminder dedup ledger.
type FiredOccurrence struct {
	ID         string    `json:"id"`
	ReminderID string    `json:"reminderId"`
	Date       string    `json:"date"`
	Time       string    `json:"time"`
	FiredAt    time.Time `json:"firedAt"`
}

// NotificationRecord is a human readable history entry written on firing.
type NotificationRecord struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	Title        string    `json:"title"`
	Desc         string    `json:"desc"`
	FullThaiInfo string    `json:"fullThaiInfo"`
	FooterTime   string    `json:"footerTime"`
	Time         string    `json:"time"`
	Date         string    `json:"date"`
	Timestamp    time.Time `json:"timestamp"`
	Type         string    `json:"type"`
	Read         bool      `json:"read"`
	OriginalID   string    `json:"originalId"`
}

// PushToken is the registered delivery address of a user, keyed by user id.
type PushToken struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Token     string    `json:"token"`
	Channel   string    `json:"channel"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CalendarAccount is a connected external calendar identity. Credential is
// sealed at rest.
type CalendarAccount struct {
	Email       string    `json:"email"`
	Credential  string    `json:"credential"`
	CalendarID  string    `json:"calendarId,omitempty"`
	ConnectedAt time.Time `json:"connectedAt"`
}

// AdminSettings is the single administrator settings document.
type AdminSettings struct {
	ID               string            `json:"id"`
	CalendarAccounts []CalendarAccount `json:"calendarAccounts"`
}
