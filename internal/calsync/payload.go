package calsync

import (
	"fmt"
	"strings"

	"github.com/example/booking-reminder/internal/calendar"
	"github.com/example/booking-reminder/internal/colormap"
	"github.com/example/booking-reminder/internal/persistence"
	"github.com/example/booking-reminder/internal/timeutil"
)

// BuildEvent renders the external event payload of a booking. color is the
// display color of the booking's activity type.
func BuildEvent(booking persistence.Booking, color string) calendar.Event {
	loc := timeutil.OrgLocation()
	title := booking.Title
	if title == "" {
		title = fmt.Sprintf("[%s] %s", booking.Type, booking.Subject)
	}
	colorID := booking.ColorID
	if colorID == "" {
		colorID = colormap.MapToExternalColor(color)
	}
	event := calendar.Event{
		Summary:     title,
		Description: describe(booking),
		Location:    booking.Location,
		Start:       booking.StartTime.In(loc),
		End:         booking.EndTime.In(loc),
		TimeZone:    timeutil.OrgTimezone,
		ColorID:     colorID,
	}
	if booking.Email != "" {
		event.Attendees = []string{booking.Email}
	}
	return event
}

func describe(booking persistence.Booking) string {
	var b strings.Builder
	desc := strings.TrimSpace(booking.Description)
	if desc == "" {
		desc = "-"
	}
	b.WriteString(desc)

	requester := strings.TrimSpace(booking.UserName)
	if requester == "" {
		requester = booking.Email
	}
	if requester != "" {
		b.WriteString("\n\nผู้จอง: ")
		b.WriteString(requester)
		if booking.UserName != "" && booking.Email != "" {
			fmt.Fprintf(&b, " (%s)", booking.Email)
		}
	}
	if booking.MeetingFormat != "" {
		b.WriteString("\nรูปแบบ: ")
		b.WriteString(booking.MeetingFormat)
	}
	return b.String()
}

// PayloadChanged reports whether the fields rendered into the external
// event differ between two versions of a booking.
func PayloadChanged(before, after persistence.Booking) bool {
	return before.Title != after.Title ||
		before.Type != after.Type ||
		before.Subject != after.Subject ||
		!before.StartTime.Equal(after.StartTime) ||
		!before.EndTime.Equal(after.EndTime) ||
		before.Location != after.Location ||
		before.Description != after.Description ||
		before.MeetingFormat != after.MeetingFormat ||
		before.ColorID != after.ColorID ||
		before.UserName != after.UserName ||
		before.Email != after.Email
}

// NormalizeEventIDs returns the per-account event id mapping of a booking.
// A legacy single event id belongs to the first connected account unless
// that account already has a mapped id.
func NormalizeEventIDs(booking persistence.Booking, accounts []calendar.Account) map[string]string {
	mapping := make(map[string]string, len(booking.CalendarEventIDs)+1)
	for email, id := range booking.CalendarEventIDs {
		if id != "" {
			mapping[email] = id
		}
	}
	if booking.LegacyEventID != "" && len(accounts) > 0 {
		first := accounts[0].Email
		if _, ok := mapping[first]; !ok {
			mapping[first] = booking.LegacyEventID
		}
	}
	return mapping
}

// TargetAccounts narrows accounts to the booking's target account when it
// names one.
func TargetAccounts(booking persistence.Booking, accounts []calendar.Account) []calendar.Account {
	target := strings.TrimSpace(booking.TargetAccount)
	if target == "" {
		return accounts
	}
	for _, account := range accounts {
		if strings.EqualFold(account.Email, target) {
			return []calendar.Account{account}
		}
	}
	return nil
}

// MissingAccounts returns the target accounts without a mapped event.
func MissingAccounts(booking persistence.Booking, accounts []calendar.Account) []calendar.Account {
	mapping := NormalizeEventIDs(booking, accounts)
	var missing []calendar.Account
	for _, account := range TargetAccounts(booking, accounts) {
		if _, ok := mapping[account.Email]; !ok {
			missing = append(missing, account)
		}
	}
	return missing
}
