package scheduler

import (
	"sort"
	"time"

	"github.com/example/booking-reminder/internal/persistence"
)

// MinimumProbe is the window used when a slot has no duration yet, so at
// least its start boundary is checked.
const MinimumProbe = time.Minute

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// Probe returns [start, start+d), widening d to MinimumProbe when shorter.
func Probe(start time.Time, d time.Duration) Interval {
	if d < MinimumProbe {
		d = MinimumProbe
	}
	return Interval{Start: start, End: start.Add(d)}
}

// Valid reports whether Start precedes End.
func (i Interval) Valid() bool {
	return i.Start.Before(i.End)
}

// Overlaps applies half-open overlap: a.Start < b.End && a.End > b.Start.
func (i Interval) Overlaps(other Interval) bool {
	return i.Start.Before(other.End) && i.End.After(other.Start)
}

// ConflictType describes the type of conflict detected between bookings.
type ConflictType string

const (
	// ConflictTypeUser indicates the same user already holds an overlapping booking.
	ConflictTypeUser ConflictType = "user"
	// ConflictTypeSlot indicates another user's booking overlaps the candidate.
	ConflictTypeSlot ConflictType = "slot"
)

// Conflict details an overlapping booking that callers can present to users.
type Conflict struct {
	WithBookingID string
	Type          ConflictType
	UserID        string
	Interval      Interval
}

// Candidate is a prospective booking.
type Candidate struct {
	BookingID string
	UserID    string
	Interval  Interval
}

// DetectConflicts returns the active bookings overlapping the candidate,
// ordered by start time. Cancelled bookings and the candidate itself are
// ignored.
func DetectConflicts(existing []persistence.Booking, candidate Candidate) []Conflict {
	var conflicts []Conflict
	for _, booking := range existing {
		if !booking.Active() || (candidate.BookingID != "" && booking.ID == candidate.BookingID) {
			continue
		}
		span := Interval{Start: booking.StartTime, End: booking.EndTime}
		if !candidate.Interval.Overlaps(span) {
			continue
		}
		kind := ConflictTypeSlot
		if candidate.UserID != "" && booking.UserID == candidate.UserID {
			kind = ConflictTypeUser
		}
		conflicts = append(conflicts, Conflict{
			WithBookingID: booking.ID,
			Type:          kind,
			UserID:        booking.UserID,
			Interval:      span,
		})
	}
	sort.SliceStable(conflicts, func(i, j int) bool {
		return conflicts[i].Interval.Start.Before(conflicts[j].Interval.Start)
	})
	return conflicts
}

// Occupied reports whether any active booking, restricted to userID when it
// is non-empty, overlaps probe.
func Occupied(existing []persistence.Booking, userID string, probe Interval) bool {
	for _, booking := range existing {
		if !booking.Active() {
			continue
		}
		if userID != "" && booking.UserID != userID {
			continue
		}
		if probe.Overlaps(Interval{Start: booking.StartTime, End: booking.EndTime}) {
			return true
		}
	}
	return false
}
