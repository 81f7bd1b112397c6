package application

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/example/booking-reminder/internal/persistence"
	"github.com/example/booking-reminder/internal/recurrence"
	"github.com/example/booking-reminder/internal/reminder"
	"github.com/example/booking-reminder/internal/timeutil"
)

// OccurrenceForgetter drops the dedup entries of a reminder.
type OccurrenceForgetter interface {
	Forget(ctx context.Context, reminderID string) error
}

// ReminderService manages the reminders of individual users.
type ReminderService struct {
	reminders   persistence.Collection[persistence.Reminder]
	ledger      OccurrenceForgetter
	engine      *recurrence.Engine
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewReminderService constructs a reminder service over store. ledger may be
// nil.
func NewReminderService(store persistence.DocumentStore, ledger OccurrenceForgetter, idGenerator func() string, now func() time.Time, logger *slog.Logger) *ReminderService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &ReminderService{
		reminders:   persistence.NewCollection[persistence.Reminder](store, persistence.CollectionReminders),
		ledger:      ledger,
		engine:      recurrence.NewEngine(nil),
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *ReminderService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "ReminderService", operation, attrs...)
}

// ListReminders returns the caller's reminders ordered by time of day.
func (s *ReminderService) ListReminders(ctx context.Context, principal Principal) ([]ReminderView, error) {
	if strings.TrimSpace(principal.UserID) == "" {
		return nil, ErrUnauthorized
	}
	reminders, err := s.reminders.Where(ctx, func(r persistence.Reminder) bool { return r.UserID == principal.UserID })
	if err != nil {
		return nil, err
	}
	sort.SliceStable(reminders, func(i, j int) bool {
		return timeutil.TimeToMinutes(reminders[i].Time) < timeutil.TimeToMinutes(reminders[j].Time)
	})

	now := s.now()
	views := make([]ReminderView, 0, len(reminders))
	for _, def := range reminders {
		views = append(views, s.view(ctx, def, now))
	}
	return views, nil
}

// CreateReminder validates input and stores an enabled reminder.
func (s *ReminderService) CreateReminder(ctx context.Context, principal Principal, input ReminderInput) (view ReminderView, err error) {
	logger := s.loggerWith(ctx, "CreateReminder", "principal_id", principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create reminder", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("reminder_id", view.ID).InfoContext(ctx, "reminder created")
	}()

	if strings.TrimSpace(principal.UserID) == "" {
		err = ErrUnauthorized
		return
	}
	normalized, vErr := validateReminderInput(input)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	enabled := true
	def := persistence.Reminder{
		ID:            s.idGenerator(),
		UserID:        principal.UserID,
		Title:         normalized.Title,
		Time:          normalized.Time,
		Date:          normalized.Date,
		RepeatDays:    normalized.RepeatDays,
		TimezoneRef:   normalized.TimezoneRef,
		TimezoneLabel: normalized.TimezoneLabel,
		IsEnabled:     &enabled,
		CreatedAt:     s.now().UTC(),
	}
	def.ID, err = s.reminders.Create(ctx, def.ID, def)
	if err != nil {
		err = mapStoreError(err)
		return
	}
	view = s.view(ctx, def, s.now())
	return
}

// UpdateReminder replaces the schedule and title of a reminder. Moving a
// one-time reminder to a new date or time re-arms it; occurrences that
// already fired stay in the ledger.
func (s *ReminderService) UpdateReminder(ctx context.Context, principal Principal, id string, input ReminderInput) (view ReminderView, err error) {
	logger := s.loggerWith(ctx, "UpdateReminder", "principal_id", principal.UserID, "reminder_id", id)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update reminder", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "reminder updated")
	}()

	var current persistence.Reminder
	if current, err = s.owned(ctx, principal, id); err != nil {
		return
	}
	normalized, vErr := validateReminderInput(input)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	updates := []persistence.FieldUpdate{
		persistence.Set(normalized.Title, "title"),
		persistence.Set(normalized.Time, "time"),
		persistence.Set(normalized.Date, "date"),
		persistence.Set(normalized.RepeatDays, "repeatDays"),
		persistence.Set(normalized.TimezoneRef, "timezoneRef"),
		persistence.Set(normalized.TimezoneLabel, "timezone"),
	}
	rescheduled := normalized.Date != current.Date || normalized.Time != current.Time
	if rescheduled {
		updates = append(updates, persistence.Remove("firedAt"))
	}
	if err = mapStoreError(s.reminders.Update(ctx, id, updates...)); err != nil {
		return
	}

	var updated persistence.Reminder
	if updated, err = s.reminders.Get(ctx, id); err != nil {
		err = mapStoreError(err)
		return
	}
	view = s.view(ctx, updated, s.now())
	return
}

// ToggleReminder enables or disables a reminder.
func (s *ReminderService) ToggleReminder(ctx context.Context, principal Principal, id string, enabled bool) (err error) {
	logger := s.loggerWith(ctx, "ToggleReminder", "principal_id", principal.UserID, "reminder_id", id, "enabled", enabled)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to toggle reminder", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "reminder toggled")
	}()

	if _, err = s.owned(ctx, principal, id); err != nil {
		return
	}
	err = mapStoreError(s.reminders.Update(ctx, id, persistence.Set(enabled, "isEnabled")))
	return
}

// DeleteReminder removes a reminder together with its dedup entries.
func (s *ReminderService) DeleteReminder(ctx context.Context, principal Principal, id string) (err error) {
	logger := s.loggerWith(ctx, "DeleteReminder", "principal_id", principal.UserID, "reminder_id", id)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to delete reminder", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "reminder deleted")
	}()

	if _, err = s.owned(ctx, principal, id); err != nil {
		return
	}
	if err = mapStoreError(s.reminders.Delete(ctx, id)); err != nil {
		return
	}
	s.forget(ctx, logger, id)
	return
}

func (s *ReminderService) forget(ctx context.Context, logger *slog.Logger, id string) {
	if s.ledger == nil {
		return
	}
	if err := s.ledger.Forget(ctx, id); err != nil {
		logger.WarnContext(ctx, "failed to clear fired occurrences", "error", err)
	}
}

func (s *ReminderService) owned(ctx context.Context, principal Principal, id string) (persistence.Reminder, error) {
	if strings.TrimSpace(principal.UserID) == "" {
		return persistence.Reminder{}, ErrUnauthorized
	}
	def, err := s.reminders.Get(ctx, id)
	if err != nil {
		return persistence.Reminder{}, mapStoreError(err)
	}
	if def.UserID != principal.UserID {
		return persistence.Reminder{}, ErrNotFound
	}
	return def, nil
}

func (s *ReminderService) view(ctx context.Context, def persistence.Reminder, now time.Time) ReminderView {
	rule := recurrence.RuleFor(def)
	view := ReminderView{
		ID:            def.ID,
		Title:         def.Title,
		Time:          def.Time,
		Date:          def.Date,
		RepeatDays:    def.RepeatDays,
		TimezoneRef:   def.TimezoneRef,
		TimezoneLabel: def.TimezoneLabel,
		Enabled:       def.Enabled(),
		Repeat:        recurrence.Describe(rule),
		FiredAt:       def.FiredAt,
		CreatedAt:     def.CreatedAt,
	}
	if !def.Enabled() || def.FiredAt != nil {
		return view
	}
	loc, _ := reminder.Location(def)
	next, ok, err := s.engine.Next(rule, loc, now)
	if err != nil {
		s.loggerWith(ctx, "view", "reminder_id", def.ID).DebugContext(ctx, "next occurrence unavailable", "error", err)
		return view
	}
	if ok {
		view.NextOccurrence = &next
	}
	return view
}

func validateReminderInput(input ReminderInput) (ReminderInput, *ValidationError) {
	vErr := &ValidationError{}
	out := ReminderInput{
		Title:         strings.TrimSpace(input.Title),
		Date:          strings.TrimSpace(input.Date),
		TimezoneRef:   strings.TrimSpace(input.TimezoneRef),
		TimezoneLabel: strings.TrimSpace(input.TimezoneLabel),
	}
	if out.Title == "" {
		vErr.add("title", "title is required")
	}
	if hour, minute, err := timeutil.ParseClock(input.Time); err != nil {
		vErr.add("time", "time must be HH:MM")
	} else {
		out.Time = timeutil.MinutesToTime(hour*60 + minute)
	}

	seen := make(map[int]bool, len(input.RepeatDays))
	for _, day := range input.RepeatDays {
		if day < 0 || day > 6 {
			vErr.add("repeatDays", "repeat days must be between 0 (Sunday) and 6 (Saturday)")
			continue
		}
		if !seen[day] {
			seen[day] = true
			out.RepeatDays = append(out.RepeatDays, day)
		}
	}
	sort.Ints(out.RepeatDays)

	if len(out.RepeatDays) == 0 {
		if out.Date == "" {
			vErr.add("date", "date is required for a one-time reminder")
		} else if _, err := time.Parse(timeutil.DateLayout, out.Date); err != nil {
			vErr.add("date", "date must be YYYY-MM-DD")
		}
	} else {
		out.Date = ""
	}

	if out.TimezoneRef == "" {
		out.TimezoneRef = timeutil.OrgTimezone
	} else if _, err := timeutil.LoadLocation(out.TimezoneRef); err != nil {
		vErr.add("timezoneRef", "unknown timezone")
	}
	return out, vErr
}
