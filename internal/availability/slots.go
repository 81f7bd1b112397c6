// Package availability expands weekly schedule templates into bookable
// start times for one date and marks the ones already taken.
package availability

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/example/booking-reminder/internal/persistence"
	"github.com/example/booking-reminder/internal/scheduler"
	"github.com/example/booking-reminder/internal/timeutil"
)

const (
	// FallbackStepMinutes spaces candidates when no duration is chosen yet.
	FallbackStepMinutes = 30
	// FallbackFitMinutes is the room a candidate needs inside its window when
	// no duration is chosen yet.
	FallbackFitMinutes = 60
)

// ErrInvalidRequest marks requests that cannot be evaluated.
var ErrInvalidRequest = errors.New("availability: invalid request")

// Request selects the slots to compute.
type Request struct {
	ActivityType    string
	Date            string
	DurationMinutes int
	// Viewer is the display timezone; nil renders in the org timezone.
	Viewer *time.Location
	// UserID restricts the booked check to one user's bookings when set.
	UserID string
}

// Slot is one bookable start time.
type Slot struct {
	Start   string    `json:"start"`
	StartAt time.Time `json:"startAt"`
	EndAt   time.Time `json:"endAt"`
	Display string    `json:"display"`
	Booked  bool      `json:"booked"`
}

// ComputeSlots returns the candidate slots of req.Date for req.ActivityType,
// ordered by start time. Clock times are interpreted in the organization
// timezone and rendered in req.Viewer.
func ComputeSlots(req Request, templates []persistence.ScheduleTemplate, bookings []persistence.Booking) ([]Slot, error) {
	if strings.TrimSpace(req.ActivityType) == "" {
		return nil, fmt.Errorf("%w: activity type is required", ErrInvalidRequest)
	}
	if req.DurationMinutes < 0 {
		return nil, fmt.Errorf("%w: duration must not be negative", ErrInvalidRequest)
	}
	weekday, err := timeutil.WeekdayOfDate(req.Date)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	starts := CandidateStarts(req.ActivityType, weekday, req.DurationMinutes, templates)

	org := timeutil.OrgLocation()
	viewer := req.Viewer
	if viewer == nil {
		viewer = org
	}
	span := time.Duration(req.DurationMinutes) * time.Minute
	if span == 0 {
		span = FallbackFitMinutes * time.Minute
	}

	slots := make([]Slot, 0, len(starts))
	for _, minutes := range starts {
		clock := timeutil.MinutesToTime(minutes)
		startAt, err := timeutil.At(req.Date, clock, org)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		endAt := startAt.Add(span)
		probe := scheduler.Probe(startAt, time.Duration(req.DurationMinutes)*time.Minute)
		slots = append(slots, Slot{
			Start:   clock,
			StartAt: startAt,
			EndAt:   endAt,
			Display: timeutil.FormatWindow(startAt.In(viewer).Format(timeutil.ClockLayout), endAt.In(viewer).Format(timeutil.ClockLayout)),
			Booked:  scheduler.Occupied(bookings, req.UserID, probe),
		})
	}
	return slots, nil
}

// CandidateStarts expands the templates of (activityType, weekday) into a
// sorted, de-duplicated list of start minutes. A window yields every step
// position p with p + fit <= end.
func CandidateStarts(activityType string, weekday time.Weekday, durationMinutes int, templates []persistence.ScheduleTemplate) []int {
	step, fit := durationMinutes, durationMinutes
	if step <= 0 {
		step, fit = FallbackStepMinutes, FallbackFitMinutes
	}

	seen := make(map[int]struct{})
	for _, template := range templates {
		if template.Type != activityType {
			continue
		}
		day, ok := timeutil.ParseWeekdaySymbol(template.Day)
		if !ok || day != weekday {
			continue
		}
		window, isRange := timeutil.ParseWindow(template.Time)
		if !isRange {
			if strings.TrimSpace(template.Time) != "" {
				seen[window.Start] = struct{}{}
			}
			continue
		}
		for p := window.Start; p+fit <= window.End; p += step {
			seen[p] = struct{}{}
		}
	}

	starts := make([]int, 0, len(seen))
	for minutes := range seen {
		starts = append(starts, minutes)
	}
	sort.Ints(starts)
	return starts
}
