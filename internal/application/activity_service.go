package application

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/example/booking-reminder/internal/colormap"
	"github.com/example/booking-reminder/internal/persistence"
)

// ActivityService manages the catalogue of activity types.
type ActivityService struct {
	activities  persistence.Collection[persistence.ActivityType]
	templates   persistence.Collection[persistence.ScheduleTemplate]
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewActivityService constructs an activity service over store.
func NewActivityService(store persistence.DocumentStore, idGenerator func() string, now func() time.Time, logger *slog.Logger) *ActivityService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &ActivityService{
		activities:  persistence.NewCollection[persistence.ActivityType](store, persistence.CollectionActivityTypes),
		templates:   persistence.NewCollection[persistence.ScheduleTemplate](store, persistence.CollectionSchedules),
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *ActivityService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "ActivityService", operation, attrs...)
}

// ListActivityTypes returns every activity type ordered by name.
func (s *ActivityService) ListActivityTypes(ctx context.Context) ([]persistence.ActivityType, error) {
	types, err := s.activities.List(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(types, func(i, j int) bool {
		return strings.ToLower(types[i].Name) < strings.ToLower(types[j].Name)
	})
	return types, nil
}

// CreateActivityType validates input and stores a new activity type.
func (s *ActivityService) CreateActivityType(ctx context.Context, principal Principal, input ActivityTypeInput) (activity persistence.ActivityType, err error) {
	logger := s.loggerWith(ctx, "CreateActivityType", "principal_id", principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create activity type", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("activity_id", activity.ID).InfoContext(ctx, "activity type created")
	}()

	if !principal.IsAdmin {
		err = ErrUnauthorized
		return
	}
	if vErr := validateActivityInput(input); vErr.HasErrors() {
		err = vErr
		return
	}
	name := strings.TrimSpace(input.Name)
	if err = s.ensureUniqueName(ctx, name, ""); err != nil {
		return
	}

	activity = persistence.ActivityType{
		ID:        s.idGenerator(),
		Name:      name,
		Color:     normalizeColor(input.Color),
		OwnerID:   principal.UserID,
		CreatedAt: s.now().UTC(),
	}
	activity.ID, err = s.activities.Create(ctx, activity.ID, activity)
	err = mapStoreError(err)
	return
}

// UpdateActivityType renames or recolors an activity type. A rename is
// applied to every schedule template that referenced the old name.
func (s *ActivityService) UpdateActivityType(ctx context.Context, principal Principal, id string, input ActivityTypeInput) (activity persistence.ActivityType, err error) {
	logger := s.loggerWith(ctx, "UpdateActivityType", "principal_id", principal.UserID, "activity_id", id)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update activity type", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "activity type updated")
	}()

	if !principal.IsAdmin {
		err = ErrUnauthorized
		return
	}
	var existing persistence.ActivityType
	existing, err = s.activities.Get(ctx, id)
	if err != nil {
		err = mapStoreError(err)
		return
	}
	if vErr := validateActivityInput(input); vErr.HasErrors() {
		err = vErr
		return
	}
	name := strings.TrimSpace(input.Name)
	if err = s.ensureUniqueName(ctx, name, id); err != nil {
		return
	}

	activity = existing
	activity.Name = name
	activity.Color = normalizeColor(input.Color)
	err = s.activities.Update(ctx, id,
		persistence.Set(activity.Name, "name"),
		persistence.Set(activity.Color, "color"),
	)
	if err != nil {
		err = mapStoreError(err)
		return
	}

	if existing.Name != activity.Name {
		var renamed int
		renamed, err = s.renameTemplates(ctx, existing.Name, activity.Name)
		logger.InfoContext(ctx, "schedule templates renamed", "count", renamed)
	}
	return
}

// DeleteActivityType removes an activity type. Templates referencing it
// are kept.
func (s *ActivityService) DeleteActivityType(ctx context.Context, principal Principal, id string) error {
	if !principal.IsAdmin {
		return ErrUnauthorized
	}
	logger := s.loggerWith(ctx, "DeleteActivityType", "principal_id", principal.UserID, "activity_id", id)
	if err := s.activities.Delete(ctx, id); err != nil {
		err = mapStoreError(err)
		logger.ErrorContext(ctx, "failed to delete activity type", "error", err, "error_kind", ErrorKind(err))
		return err
	}
	logger.InfoContext(ctx, "activity type deleted")
	return nil
}

// Color returns the display color of the named activity type, or "" when
// it does not exist.
func (s *ActivityService) Color(ctx context.Context, name string) string {
	types, err := s.activities.Where(ctx, func(a persistence.ActivityType) bool { return a.Name == name })
	if err != nil || len(types) == 0 {
		return ""
	}
	return types[0].Color
}

func (s *ActivityService) ensureUniqueName(ctx context.Context, name, selfID string) error {
	clash, err := s.activities.Where(ctx, func(a persistence.ActivityType) bool {
		return a.ID != selfID && strings.EqualFold(a.Name, name)
	})
	if err != nil {
		return err
	}
	if len(clash) > 0 {
		return fmt.Errorf("%w: activity type %q", ErrAlreadyExists, name)
	}
	return nil
}

func (s *ActivityService) renameTemplates(ctx context.Context, from, to string) (int, error) {
	templates, err := s.templates.Where(ctx, func(t persistence.ScheduleTemplate) bool { return t.Type == from })
	if err != nil {
		return 0, err
	}
	for i, template := range templates {
		if err := s.templates.Update(ctx, template.ID, persistence.Set(to, "type")); err != nil {
			return i, fmt.Errorf("rename template %s: %w", template.ID, err)
		}
	}
	return len(templates), nil
}

func validateActivityInput(input ActivityTypeInput) *ValidationError {
	vErr := &ValidationError{}
	if strings.TrimSpace(input.Name) == "" {
		vErr.add("name", "name is required")
	}
	if _, _, _, ok := colormap.ParseHex(input.Color); !ok {
		vErr.add("color", "color must be a hex value such as #3f51b5")
	}
	return vErr
}

func normalizeColor(color string) string {
	color = strings.ToLower(strings.TrimSpace(color))
	if !strings.HasPrefix(color, "#") {
		color = "#" + color
	}
	return color
}
