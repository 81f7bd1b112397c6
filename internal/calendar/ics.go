package calendar

import (
	"io"
	"time"

	ics "github.com/arran4/golang-ical"

	"github.com/example/booking-reminder/internal/persistence"
)

// FeedOptions describes the iCalendar feed document.
type FeedOptions struct {
	Name     string
	TimeZone string
	Now      time.Time
}

// BuildFeed renders bookings as an iCalendar document. Cancelled bookings
// are kept with a CANCELLED status so subscribers drop them.
func BuildFeed(bookings []persistence.Booking, opts FeedOptions) *ics.Calendar {
	cal := ics.NewCalendarFor("booking-reminder")
	cal.SetMethod(ics.MethodPublish)
	if opts.Name != "" {
		cal.SetName(opts.Name)
		cal.SetXWRCalName(opts.Name)
	}
	if opts.TimeZone != "" {
		cal.SetXWRTimezone(opts.TimeZone)
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	for _, booking := range bookings {
		event := cal.AddEvent(booking.ID + "@booking-reminder")
		event.SetDtStampTime(now.UTC())
		if !booking.CreatedAt.IsZero() {
			event.SetCreatedTime(booking.CreatedAt.UTC())
		}
		event.SetStartAt(booking.StartTime.UTC())
		event.SetEndAt(booking.EndTime.UTC())
		event.SetSummary(booking.Title)
		if booking.Description != "" {
			event.SetDescription(booking.Description)
		}
		if booking.Location != "" {
			event.SetLocation(booking.Location)
		}
		if booking.Email != "" {
			event.SetOrganizer("mailto:" + booking.Email)
		}
		if booking.Active() {
			event.SetStatus(ics.ObjectStatusConfirmed)
		} else {
			event.SetStatus(ics.ObjectStatusCancelled)
		}
	}
	return cal
}

// WriteFeed serializes the feed of bookings to w.
func WriteFeed(w io.Writer, bookings []persistence.Booking, opts FeedOptions) error {
	return BuildFeed(bookings, opts).SerializeTo(w)
}
