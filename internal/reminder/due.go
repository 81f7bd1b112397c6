// Package reminder decides which user reminders are due and fires each
// occurrence exactly once.
package reminder

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/example/booking-reminder/internal/persistence"
	"github.com/example/booking-reminder/internal/timeutil"
)

// Occurrence is one concrete firing of a reminder.
type Occurrence struct {
	ReminderID  string
	UserID      string
	Title       string
	Key         string
	Date        string
	Time        string
	Location    *time.Location
	Repeating   bool
	Retroactive bool
}

// OccurrenceKey identifies a firing in the dedup ledger.
func OccurrenceKey(reminderID, date, clock string) string {
	return fmt.Sprintf("%s_%s_%s", reminderID, date, clock)
}

// Location resolves the reminder's timezone. Unknown or empty references
// fall back to the organisation timezone and report ok=false.
func Location(def persistence.Reminder) (*time.Location, bool) {
	ref := strings.TrimSpace(def.TimezoneRef)
	if ref == "" {
		return timeutil.OrgLocation(), false
	}
	loc, err := timeutil.LoadLocation(ref)
	if err != nil {
		return timeutil.OrgLocation(), false
	}
	return loc, true
}

// Due reports whether def has an occurrence due at now.
//
// A repeating reminder is due when the weekday in its timezone is one of
// its repeat days and the wall clock minute equals its time. A one-time
// reminder is due on the minute of its stored date, or at any time after
// that date has passed without it firing.
func Due(def persistence.Reminder, now time.Time) (Occurrence, bool) {
	if !def.Enabled() {
		return Occurrence{}, false
	}
	hour, minute, err := timeutil.ParseClock(def.Time)
	if err != nil {
		return Occurrence{}, false
	}
	clock := timeutil.MinutesToTime(hour*60 + minute)

	loc, _ := Location(def)
	moment := timeutil.NowIn(loc, now)
	occ := Occurrence{
		ReminderID: def.ID,
		UserID:     def.UserID,
		Title:      def.Title,
		Time:       clock,
		Location:   loc,
	}

	if def.Repeating() {
		if moment.Time != clock || !slices.Contains(def.RepeatDays, int(moment.Weekday)) {
			return Occurrence{}, false
		}
		occ.Repeating = true
		occ.Date = moment.Date
		occ.Key = OccurrenceKey(def.ID, occ.Date, clock)
		return occ, true
	}

	date := strings.TrimSpace(def.Date)
	if date == "" || def.FiredAt != nil {
		return Occurrence{}, false
	}
	if _, err := time.Parse(timeutil.DateLayout, date); err != nil {
		return Occurrence{}, false
	}
	switch {
	case date == moment.Date && moment.Time == clock:
	case date < moment.Date:
		occ.Retroactive = true
	default:
		return Occurrence{}, false
	}
	occ.Date = date
	occ.Key = OccurrenceKey(def.ID, date, clock)
	return occ, true
}
