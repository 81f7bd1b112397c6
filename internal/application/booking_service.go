package application

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/example/booking-reminder/internal/availability"
	"github.com/example/booking-reminder/internal/calendar"
	"github.com/example/booking-reminder/internal/colormap"
	"github.com/example/booking-reminder/internal/persistence"
	"github.com/example/booking-reminder/internal/scheduler"
	"github.com/example/booking-reminder/internal/timeutil"
)

// BookingView is a stored booking with its derived state.
type BookingView struct {
	persistence.Booking
	Completed bool `json:"completed"`
}

// BookingService validates and stores bookings. External calendar events
// are maintained separately by the calendar synchronizer.
type BookingService struct {
	bookings    persistence.Collection[persistence.Booking]
	activities  persistence.Collection[persistence.ActivityType]
	templates   persistence.Collection[persistence.ScheduleTemplate]
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger

	// serializes the availability check with the write that claims the slot.
	createMu sync.Mutex
}

// NewBookingService constructs a booking service over store.
func NewBookingService(store persistence.DocumentStore, idGenerator func() string, now func() time.Time, logger *slog.Logger) *BookingService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &BookingService{
		bookings:    persistence.NewCollection[persistence.Booking](store, persistence.CollectionBookings),
		activities:  persistence.NewCollection[persistence.ActivityType](store, persistence.CollectionActivityTypes),
		templates:   persistence.NewCollection[persistence.ScheduleTemplate](store, persistence.CollectionSchedules),
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *BookingService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "BookingService", operation, attrs...)
}

// ListBookings returns the caller's bookings, or every booking for
// administrators, ordered by start time.
func (s *BookingService) ListBookings(ctx context.Context, principal Principal) ([]BookingView, error) {
	bookings, err := s.visible(ctx, principal)
	if err != nil {
		return nil, err
	}
	now := s.now()
	views := make([]BookingView, 0, len(bookings))
	for _, booking := range bookings {
		views = append(views, BookingView{Booking: booking, Completed: booking.Completed(now)})
	}
	return views, nil
}

// CreateBooking validates input, checks that the slot is offered and free,
// and stores a confirmed booking.
func (s *BookingService) CreateBooking(ctx context.Context, principal Principal, input BookingInput) (booking persistence.Booking, err error) {
	logger := s.loggerWith(ctx, "CreateBooking", "principal_id", principal.UserID, "type", input.Type, "date", input.Date)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create booking", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("booking_id", booking.ID).InfoContext(ctx, "booking created")
	}()

	if strings.TrimSpace(principal.UserID) == "" {
		err = ErrUnauthorized
		return
	}
	minutes, vErr := validateBookingInput(input)

	var activity persistence.ActivityType
	var found bool
	if strings.TrimSpace(input.Type) != "" {
		activity, found, err = s.activity(ctx, strings.TrimSpace(input.Type))
		if err != nil {
			return
		}
		if !found {
			vErr.add("type", "unknown activity type")
		}
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	org := timeutil.OrgLocation()
	var start time.Time
	start, err = timeutil.At(input.Date, input.StartTime, org)
	if err != nil {
		err = &ValidationError{FieldErrors: map[string]string{"date": err.Error()}}
		return
	}
	end := start.Add(time.Duration(minutes) * time.Minute)

	s.createMu.Lock()
	defer s.createMu.Unlock()

	var templates []persistence.ScheduleTemplate
	templates, err = s.templates.List(ctx)
	if err != nil {
		return
	}
	var existing []persistence.Booking
	existing, err = s.bookings.List(ctx)
	if err != nil {
		return
	}

	var slots []availability.Slot
	slots, err = availability.ComputeSlots(availability.Request{
		ActivityType:    activity.Name,
		Date:            input.Date,
		DurationMinutes: minutes,
	}, templates, existing)
	if err != nil {
		err = &ValidationError{FieldErrors: map[string]string{"date": err.Error()}}
		return
	}
	clock := timeutil.MinutesToTime(timeutil.TimeToMinutes(input.StartTime))
	if !slices.ContainsFunc(slots, func(slot availability.Slot) bool { return slot.Start == clock }) {
		err = &ValidationError{FieldErrors: map[string]string{"startTime": "start time is not an offered slot"}}
		return
	}

	conflicts := scheduler.DetectConflicts(existing, scheduler.Candidate{
		UserID:   principal.UserID,
		Interval: scheduler.Interval{Start: start, End: end},
	})
	if len(conflicts) > 0 {
		err = fmt.Errorf("%w: overlaps booking %s", ErrSlotUnavailable, conflicts[0].WithBookingID)
		return
	}

	subject := strings.TrimSpace(input.Subject)
	booking = persistence.Booking{
		ID:            s.idGenerator(),
		Type:          activity.Name,
		Subject:       subject,
		Title:         fmt.Sprintf("[%s] %s", activity.Name, subject),
		StartTime:     start.UTC(),
		EndTime:       end.UTC(),
		MeetingFormat: normalizeMeetingFormat(input.MeetingFormat),
		Location:      strings.TrimSpace(input.Location),
		Description:   strings.TrimSpace(input.Description),
		UserID:        principal.UserID,
		Email:         principal.Email,
		UserName:      principal.Name,
		Status:        persistence.BookingConfirmed,
		ColorID:       colormap.MapToExternalColor(activity.Color),
		TargetAccount: strings.TrimSpace(input.TargetAccount),
		CreatedAt:     s.now().UTC(),
	}
	booking.ID, err = s.bookings.Create(ctx, booking.ID, booking)
	err = mapStoreError(err)
	return
}

// CancelBooking marks a booking cancelled. Its slot becomes free and its
// external events are removed by the synchronizer.
func (s *BookingService) CancelBooking(ctx context.Context, principal Principal, id string) (err error) {
	logger := s.loggerWith(ctx, "CancelBooking", "principal_id", principal.UserID, "booking_id", id)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to cancel booking", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "booking cancelled")
	}()

	if _, err = s.owned(ctx, principal, id); err != nil {
		return
	}
	err = mapStoreError(s.bookings.Update(ctx, id, persistence.Set(persistence.BookingCancelled, "status")))
	return
}

// DeleteBooking removes a booking.
func (s *BookingService) DeleteBooking(ctx context.Context, principal Principal, id string) (err error) {
	logger := s.loggerWith(ctx, "DeleteBooking", "principal_id", principal.UserID, "booking_id", id)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to delete booking", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "booking deleted")
	}()

	if _, err = s.owned(ctx, principal, id); err != nil {
		return
	}
	err = mapStoreError(s.bookings.Delete(ctx, id))
	return
}

// WriteFeed renders the caller's visible bookings as an iCalendar feed.
func (s *BookingService) WriteFeed(ctx context.Context, principal Principal, w io.Writer) error {
	bookings, err := s.visible(ctx, principal)
	if err != nil {
		return err
	}
	return calendar.WriteFeed(w, bookings, calendar.FeedOptions{
		Name:     "Bookings",
		TimeZone: timeutil.OrgTimezone,
		Now:      s.now(),
	})
}

func (s *BookingService) visible(ctx context.Context, principal Principal) ([]persistence.Booking, error) {
	if strings.TrimSpace(principal.UserID) == "" && !principal.IsAdmin {
		return nil, ErrUnauthorized
	}
	bookings, err := s.bookings.Where(ctx, func(b persistence.Booking) bool {
		return principal.IsAdmin || b.UserID == principal.UserID
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(bookings, func(i, j int) bool { return bookings[i].StartTime.Before(bookings[j].StartTime) })
	return bookings, nil
}

func (s *BookingService) owned(ctx context.Context, principal Principal, id string) (persistence.Booking, error) {
	booking, err := s.bookings.Get(ctx, id)
	if err != nil {
		return persistence.Booking{}, mapStoreError(err)
	}
	if !principal.IsAdmin && booking.UserID != principal.UserID {
		return persistence.Booking{}, ErrUnauthorized
	}
	return booking, nil
}

func (s *BookingService) activity(ctx context.Context, name string) (persistence.ActivityType, bool, error) {
	types, err := s.activities.Where(ctx, func(a persistence.ActivityType) bool { return a.Name == name })
	if err != nil || len(types) == 0 {
		return persistence.ActivityType{}, false, err
	}
	return types[0], true, nil
}

// validateBookingInput checks every field and returns the duration in
// minutes.
func validateBookingInput(input BookingInput) (int, *ValidationError) {
	vErr := &ValidationError{}
	if strings.TrimSpace(input.Type) == "" {
		vErr.add("type", "activity type is required")
	}
	if strings.TrimSpace(input.Subject) == "" {
		vErr.add("subject", "subject is required")
	}

	minutes := timeutil.DurationToMinutes(input.Duration)
	switch {
	case input.Duration.IsZero():
		vErr.add("duration", "duration is required")
	case minutes <= 0:
		vErr.add("duration", "duration could not be understood")
	case input.Duration.IsCustom() && minutes < timeutil.MinimumCustomDuration:
		vErr.add("duration", fmt.Sprintf("custom duration must be at least %d minutes", timeutil.MinimumCustomDuration))
	}

	if strings.TrimSpace(input.Date) == "" {
		vErr.add("date", "date is required")
	} else if _, err := time.Parse(timeutil.DateLayout, strings.TrimSpace(input.Date)); err != nil {
		vErr.add("date", "date must be YYYY-MM-DD")
	}
	if strings.TrimSpace(input.StartTime) == "" {
		vErr.add("startTime", "start time is required")
	} else if _, _, err := timeutil.ParseClock(input.StartTime); err != nil {
		vErr.add("startTime", "start time must be HH:MM")
	}

	format := normalizeMeetingFormat(input.MeetingFormat)
	if format == "" {
		vErr.add("meetingFormat", "meeting format must be Online or On-site")
	}
	if strings.TrimSpace(input.Location) == "" {
		if format == persistence.MeetingOnSite {
			vErr.add("location", "location is required")
		} else {
			vErr.add("location", "meeting link is required")
		}
	}
	return minutes, vErr
}

func normalizeMeetingFormat(format string) string {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "online":
		return persistence.MeetingOnline
	case "on-site", "onsite", "on site":
		return persistence.MeetingOnSite
	}
	return ""
}
