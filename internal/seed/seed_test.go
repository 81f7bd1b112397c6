package seed

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/example/booking-reminder/internal/application"
	"github.com/example/booking-reminder/internal/persistence"
	"github.com/example/booking-reminder/internal/testfixtures"
)

const catalogueYAML = `
activityTypes:
  - name: Consulting
    color: "#3f51b5"
  - name: Workshop
    color: "#33b679"
schedules:
  - type: Consulting
    days: [Monday, "พ."]
    start: "9:00"
    end: "12:00"
  - type: Workshop
    days: [fri]
    start: "14:00"
    duration: 2 hours
`

func TestParse(t *testing.T) {
	t.Parallel()

	catalogue, err := Parse(strings.NewReader(catalogueYAML))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if len(catalogue.ActivityTypes) != 2 || len(catalogue.Schedules) != 2 {
		t.Fatalf("unexpected catalogue %+v", catalogue)
	}

	if _, err := Parse(strings.NewReader("activities: []\n")); err == nil {
		t.Fatal("expected unknown fields to be rejected")
	}
	if catalogue, err := Parse(strings.NewReader("")); err != nil || len(catalogue.Schedules) != 0 {
		t.Fatalf("expected empty document to parse, got %+v %v", catalogue, err)
	}
}

func TestRows(t *testing.T) {
	t.Parallel()

	rows, err := Rows([]Schedule{{Type: "Consulting", Days: []string{"Monday", "จ."}, Start: "9:00", End: "12:00"}})
	if err != nil {
		t.Fatalf("Rows returned error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected one row per listed day, got %d", len(rows))
	}
	if rows[0].Day != "จ." || rows[0].Time != "09:00 - 12:00" {
		t.Fatalf("expected normalized row, got %+v", rows[0])
	}
	if rows[0].ID != rows[1].ID {
		t.Fatal("expected equal content to derive equal ids")
	}

	invalid := []Schedule{
		{Type: "Consulting", Days: []string{"Monday"}, Start: "25:00"},
		{Type: "Consulting", Days: []string{"Monday"}, Start: "10:00", End: "09:00"},
		{Type: "Consulting", Days: []string{"Someday"}, Start: "10:00"},
		{Type: "", Days: []string{"Monday"}, Start: "10:00"},
		{Type: "Consulting", Start: "10:00"},
	}
	for _, schedule := range invalid {
		if _, err := Rows([]Schedule{schedule}); err == nil {
			t.Fatalf("expected error for %+v", schedule)
		}
	}
}

func TestImportIsIdempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	services := testfixtures.NewServiceFactory().Services(nil, nil)
	catalogue, err := Parse(strings.NewReader(catalogueYAML))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}

	result, err := Import(ctx, catalogue, services.Activities, services.Templates, nil)
	if err != nil {
		t.Fatalf("Import returned error: %v", err)
	}
	if result.ActivityTypes != 2 || result.Templates != 3 {
		t.Fatalf("expected 2 activity types and 3 templates, got %+v", result)
	}

	again, err := Import(ctx, catalogue, services.Activities, services.Templates, nil)
	if err != nil {
		t.Fatalf("second Import returned error: %v", err)
	}
	if again.ActivityTypes != 0 || again.Templates != 0 {
		t.Fatalf("expected nothing written on re-import, got %+v", again)
	}

	groups, err := services.Templates.ListGroups(ctx)
	if err != nil {
		t.Fatalf("ListGroups returned error: %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("expected two schedule groups, got %+v", groups)
	}
}

type failingCreator struct{}

func (failingCreator) CreateActivityType(context.Context, application.Principal, application.ActivityTypeInput) (persistence.ActivityType, error) {
	return persistence.ActivityType{}, errors.New("store offline")
}

func TestImportStopsOnActivityFailure(t *testing.T) {
	t.Parallel()

	services := testfixtures.NewServiceFactory().Services(nil, nil)
	catalogue := Catalogue{ActivityTypes: []ActivityType{{Name: "Consulting", Color: "#3f51b5"}}}
	if _, err := Import(context.Background(), catalogue, failingCreator{}, services.Templates, nil); err == nil {
		t.Fatal("expected activity failure to abort the import")
	}
}
