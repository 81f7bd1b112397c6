// Package seed imports an activity and schedule catalogue from YAML.
package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/example/booking-reminder/internal/application"
	"github.com/example/booking-reminder/internal/persistence"
	"github.com/example/booking-reminder/internal/timeutil"
)

// Catalogue is the YAML document layout.
type Catalogue struct {
	ActivityTypes []ActivityType `yaml:"activityTypes"`
	Schedules     []Schedule     `yaml:"schedules"`
}

// ActivityType is one catalogue entry.
type ActivityType struct {
	Name  string `yaml:"name"`
	Color string `yaml:"color"`
}

// Schedule expands into one template row per day. End may be empty for a
// single start time.
type Schedule struct {
	Type     string   `yaml:"type"`
	Days     []string `yaml:"days"`
	Start    string   `yaml:"start"`
	End      string   `yaml:"end"`
	Duration string   `yaml:"duration"`
}

type activityCreator interface {
	CreateActivityType(ctx context.Context, principal application.Principal, input application.ActivityTypeInput) (persistence.ActivityType, error)
}

type templateImporter interface {
	ImportTemplates(ctx context.Context, rows []persistence.ScheduleTemplate) (int, error)
}

// Result counts what an import wrote.
type Result struct {
	ActivityTypes int
	Templates     int
}

var principal = application.Principal{UserID: "seed", Name: "seed", IsAdmin: true}

// Parse decodes a catalogue document.
func Parse(r io.Reader) (Catalogue, error) {
	var catalogue Catalogue
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&catalogue); err != nil && !errors.Is(err, io.EOF) {
		return Catalogue{}, fmt.Errorf("failed to decode catalogue: %w", err)
	}
	return catalogue, nil
}

// LoadFile parses the catalogue at path.
func LoadFile(path string) (Catalogue, error) {
	f, err := os.Open(path)
	if err != nil {
		return Catalogue{}, fmt.Errorf("failed to open catalogue: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Import creates missing activity types and template rows. Re-running an
// import with the same catalogue writes nothing.
func Import(ctx context.Context, catalogue Catalogue, activities activityCreator, templates templateImporter, logger *slog.Logger) (Result, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "seed")

	var result Result
	for _, entry := range catalogue.ActivityTypes {
		_, err := activities.CreateActivityType(ctx, principal, application.ActivityTypeInput{Name: entry.Name, Color: entry.Color})
		switch {
		case errors.Is(err, application.ErrAlreadyExists):
			logger.DebugContext(ctx, "activity type already present", "name", entry.Name)
		case err != nil:
			return result, fmt.Errorf("activity type %q: %w", entry.Name, err)
		default:
			result.ActivityTypes++
		}
	}

	rows, err := Rows(catalogue.Schedules)
	if err != nil {
		return result, err
	}
	if result.Templates, err = templates.ImportTemplates(ctx, rows); err != nil {
		return result, fmt.Errorf("failed to import schedules: %w", err)
	}

	logger.InfoContext(ctx, "catalogue imported", "activity_types", result.ActivityTypes, "templates", result.Templates)
	return result, nil
}

// Rows expands schedules into template rows with ids derived from their
// content.
func Rows(schedules []Schedule) ([]persistence.ScheduleTemplate, error) {
	var rows []persistence.ScheduleTemplate
	for i, schedule := range schedules {
		clock, err := scheduleClock(schedule)
		if err != nil {
			return nil, fmt.Errorf("schedule %d: %w", i, err)
		}
		if strings.TrimSpace(schedule.Type) == "" {
			return nil, fmt.Errorf("schedule %d: type is required", i)
		}
		if len(schedule.Days) == 0 {
			return nil, fmt.Errorf("schedule %d: at least one day is required", i)
		}
		for _, day := range schedule.Days {
			weekday, ok := timeutil.ParseWeekdaySymbol(day)
			if !ok {
				return nil, fmt.Errorf("schedule %d: unknown day %q", i, day)
			}
			row := persistence.ScheduleTemplate{
				Day:      timeutil.WeekdaySymbol(weekday),
				Type:     strings.TrimSpace(schedule.Type),
				Time:     clock,
				Duration: strings.TrimSpace(schedule.Duration),
				OwnerID:  principal.UserID,
			}
			row.ID = rowID(row)
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func scheduleClock(s Schedule) (string, error) {
	if _, _, err := timeutil.ParseClock(s.Start); err != nil {
		return "", fmt.Errorf("start: %w", err)
	}
	start := timeutil.MinutesToTime(timeutil.TimeToMinutes(s.Start))
	if strings.TrimSpace(s.End) == "" {
		return start, nil
	}
	if _, _, err := timeutil.ParseClock(s.End); err != nil {
		return "", fmt.Errorf("end: %w", err)
	}
	if timeutil.TimeToMinutes(s.End) <= timeutil.TimeToMinutes(s.Start) {
		return "", errors.New("end must be after start")
	}
	return timeutil.FormatWindow(start, timeutil.MinutesToTime(timeutil.TimeToMinutes(s.End))), nil
}

func rowID(row persistence.ScheduleTemplate) string {
	key := strings.Join([]string{row.Type, row.Day, row.Time, row.Duration}, "|")
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(key)).String()
}
