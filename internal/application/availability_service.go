package application

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/example/booking-reminder/internal/availability"
	"github.com/example/booking-reminder/internal/persistence"
	"github.com/example/booking-reminder/internal/timeutil"
)

// AvailabilityService answers slot queries from the stored templates and
// bookings.
type AvailabilityService struct {
	templates persistence.Collection[persistence.ScheduleTemplate]
	bookings  persistence.Collection[persistence.Booking]
	logger    *slog.Logger
}

// NewAvailabilityService constructs an availability service over store.
func NewAvailabilityService(store persistence.DocumentStore, logger *slog.Logger) *AvailabilityService {
	return &AvailabilityService{
		templates: persistence.NewCollection[persistence.ScheduleTemplate](store, persistence.CollectionSchedules),
		bookings:  persistence.NewCollection[persistence.Booking](store, persistence.CollectionBookings),
		logger:    defaultLogger(logger),
	}
}

// Slots returns the candidate slots of query.Date, marking those that
// overlap an active booking.
func (s *AvailabilityService) Slots(ctx context.Context, query SlotQuery) ([]availability.Slot, error) {
	vErr := &ValidationError{}
	if strings.TrimSpace(query.Type) == "" {
		vErr.add("type", "activity type is required")
	}
	if strings.TrimSpace(query.Date) == "" {
		vErr.add("date", "date is required")
	}
	viewer := timeutil.OrgLocation()
	if tz := strings.TrimSpace(query.Timezone); tz != "" {
		loc, err := timeutil.LoadLocation(tz)
		if err != nil {
			vErr.add("timezone", "unknown timezone")
		} else {
			viewer = loc
		}
	}
	if vErr.HasErrors() {
		return nil, vErr
	}

	templates, err := s.templates.List(ctx)
	if err != nil {
		return nil, err
	}
	bookings, err := s.bookings.List(ctx)
	if err != nil {
		return nil, err
	}
	slots, err := availability.ComputeSlots(availability.Request{
		ActivityType:    strings.TrimSpace(query.Type),
		Date:            strings.TrimSpace(query.Date),
		DurationMinutes: timeutil.DurationToMinutes(query.Duration),
		Viewer:          viewer,
		UserID:          query.UserID,
	}, templates, bookings)
	if errors.Is(err, availability.ErrInvalidRequest) {
		serviceLogger(ctx, s.logger, "AvailabilityService", "Slots").DebugContext(ctx, "rejected slot query", "error", err)
		return nil, &ValidationError{FieldErrors: map[string]string{"date": err.Error()}}
	}
	return slots, err
}
