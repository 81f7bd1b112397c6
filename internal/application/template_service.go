package application

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/example/booking-reminder/internal/persistence"
	"github.com/example/booking-reminder/internal/timeutil"
)

// TemplateService manages weekly schedule templates. Each selected day is
// stored as its own row; callers work with groups of rows.
type TemplateService struct {
	templates   persistence.Collection[persistence.ScheduleTemplate]
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewTemplateService constructs a template service over store.
func NewTemplateService(store persistence.DocumentStore, idGenerator func() string, now func() time.Time, logger *slog.Logger) *TemplateService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &TemplateService{
		templates:   persistence.NewCollection[persistence.ScheduleTemplate](store, persistence.CollectionSchedules),
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *TemplateService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "TemplateService", operation, attrs...)
}

// Templates returns every stored template row.
func (s *TemplateService) Templates(ctx context.Context) ([]persistence.ScheduleTemplate, error) {
	return s.templates.List(ctx)
}

// ListGroups returns the template rows grouped by type, time and duration.
func (s *TemplateService) ListGroups(ctx context.Context) ([]TemplateGroup, error) {
	rows, err := s.templates.List(ctx)
	if err != nil {
		return nil, err
	}
	return GroupTemplates(rows), nil
}

// CreateGroup stores one template row per selected day.
func (s *TemplateService) CreateGroup(ctx context.Context, principal Principal, input TemplateGroupInput) (group TemplateGroup, err error) {
	logger := s.loggerWith(ctx, "CreateGroup", "principal_id", principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create schedule group", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("rows", len(group.IDs)).InfoContext(ctx, "schedule group created")
	}()

	if !principal.IsAdmin {
		err = ErrUnauthorized
		return
	}
	group, err = s.createRows(ctx, principal, input)
	return
}

// UpdateGroup replaces the rows ids with one row per newly selected day.
func (s *TemplateService) UpdateGroup(ctx context.Context, principal Principal, ids []string, input TemplateGroupInput) (group TemplateGroup, err error) {
	logger := s.loggerWith(ctx, "UpdateGroup", "principal_id", principal.UserID, "ids", ids)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update schedule group", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("rows", len(group.IDs)).InfoContext(ctx, "schedule group updated")
	}()

	if !principal.IsAdmin {
		err = ErrUnauthorized
		return
	}
	if len(ids) == 0 {
		err = &ValidationError{FieldErrors: map[string]string{"ids": "at least one template id is required"}}
		return
	}
	if vErr := validateTemplateInput(input); vErr.HasErrors() {
		err = vErr
		return
	}
	if err = s.deleteRows(ctx, ids); err != nil {
		return
	}
	group, err = s.createRows(ctx, principal, input)
	return
}

// DeleteGroup deletes every row of a group.
func (s *TemplateService) DeleteGroup(ctx context.Context, principal Principal, ids []string) error {
	if !principal.IsAdmin {
		return ErrUnauthorized
	}
	logger := s.loggerWith(ctx, "DeleteGroup", "principal_id", principal.UserID, "ids", ids)
	if err := s.deleteRows(ctx, ids); err != nil {
		logger.ErrorContext(ctx, "failed to delete schedule group", "error", err, "error_kind", ErrorKind(err))
		return err
	}
	logger.InfoContext(ctx, "schedule group deleted")
	return nil
}

// ImportTemplates stores rows as given, skipping ids that already exist.
// It returns the number of rows written.
func (s *TemplateService) ImportTemplates(ctx context.Context, rows []persistence.ScheduleTemplate) (int, error) {
	written := 0
	for _, row := range rows {
		if row.CreatedDate.IsZero() {
			row.CreatedDate = s.now().UTC()
		}
		if row.ID == "" {
			row.ID = s.idGenerator()
		}
		_, err := s.templates.Create(ctx, row.ID, row)
		if errors.Is(err, persistence.ErrDuplicate) {
			continue
		}
		if err != nil {
			return written, err
		}
		written++
	}
	return written, nil
}

func (s *TemplateService) createRows(ctx context.Context, principal Principal, input TemplateGroupInput) (TemplateGroup, error) {
	if vErr := validateTemplateInput(input); vErr.HasErrors() {
		return TemplateGroup{}, vErr
	}
	clock := templateClock(input)
	rows := make([]persistence.ScheduleTemplate, 0, len(input.Days))
	for _, day := range dedupeDays(input.Days) {
		row := persistence.ScheduleTemplate{
			ID:          s.idGenerator(),
			Day:         day,
			Type:        strings.TrimSpace(input.Type),
			Time:        clock,
			Duration:    strings.TrimSpace(input.Duration),
			OwnerID:     principal.UserID,
			CreatedDate: s.now().UTC(),
		}
		id, err := s.templates.Create(ctx, row.ID, row)
		if err != nil {
			return TemplateGroup{}, mapStoreError(err)
		}
		row.ID = id
		rows = append(rows, row)
	}
	groups := GroupTemplates(rows)
	if len(groups) == 0 {
		return TemplateGroup{}, nil
	}
	return groups[0], nil
}

func (s *TemplateService) deleteRows(ctx context.Context, ids []string) error {
	for _, id := range ids {
		err := s.templates.Delete(ctx, id)
		if err != nil && !errors.Is(err, persistence.ErrNotFound) {
			return err
		}
	}
	return nil
}

// GroupTemplates groups rows by (type, time, duration). Days are ordered
// Sunday first; groups by type then start time.
func GroupTemplates(rows []persistence.ScheduleTemplate) []TemplateGroup {
	type key struct{ typ, clock, duration string }
	index := make(map[key]int)
	var groups []TemplateGroup
	for _, row := range rows {
		k := key{row.Type, row.Time, row.Duration}
		i, ok := index[k]
		if !ok {
			i = len(groups)
			index[k] = i
			groups = append(groups, TemplateGroup{Type: row.Type, Time: row.Time, Duration: row.Duration})
		}
		groups[i].Days = append(groups[i].Days, row.Day)
		groups[i].IDs = append(groups[i].IDs, row.ID)
	}
	for i := range groups {
		sortDays(groups[i].Days)
		sort.Strings(groups[i].IDs)
	}
	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].Type != groups[j].Type {
			return groups[i].Type < groups[j].Type
		}
		return timeutil.TimeToMinutes(groups[i].Time) < timeutil.TimeToMinutes(groups[j].Time)
	})
	return groups
}

func validateTemplateInput(input TemplateGroupInput) *ValidationError {
	vErr := &ValidationError{}
	if strings.TrimSpace(input.Type) == "" {
		vErr.add("type", "activity type is required")
	}
	if len(input.Days) == 0 {
		vErr.add("days", "at least one day is required")
	}
	for _, day := range input.Days {
		if _, ok := timeutil.ParseWeekdaySymbol(day); !ok {
			vErr.add("days", "unknown day "+day)
		}
	}
	if _, _, err := timeutil.ParseClock(input.Start); err != nil {
		vErr.add("start", "start time must be HH:MM")
	}
	if strings.TrimSpace(input.End) != "" {
		if _, _, err := timeutil.ParseClock(input.End); err != nil {
			vErr.add("end", "end time must be HH:MM")
		} else if timeutil.TimeToMinutes(input.End) <= timeutil.TimeToMinutes(input.Start) {
			vErr.add("end", "end time must be after start time")
		}
	}
	return vErr
}

func templateClock(input TemplateGroupInput) string {
	start := timeutil.MinutesToTime(timeutil.TimeToMinutes(input.Start))
	if strings.TrimSpace(input.End) == "" {
		return start
	}
	return timeutil.FormatWindow(start, timeutil.MinutesToTime(timeutil.TimeToMinutes(input.End)))
}

// dedupeDays normalizes day names to their stored symbols.
func dedupeDays(days []string) []string {
	seen := make(map[string]struct{}, len(days))
	out := make([]string, 0, len(days))
	for _, day := range days {
		if weekday, ok := timeutil.ParseWeekdaySymbol(day); ok {
			day = timeutil.WeekdaySymbol(weekday)
		}
		if _, ok := seen[day]; ok {
			continue
		}
		seen[day] = struct{}{}
		out = append(out, day)
	}
	sortDays(out)
	return out
}

func sortDays(days []string) {
	order := func(day string) int {
		weekday, ok := timeutil.ParseWeekdaySymbol(day)
		if !ok {
			return 7
		}
		return int(weekday)
	}
	sort.SliceStable(days, func(i, j int) bool { return order(days[i]) < order(days[j]) })
}
