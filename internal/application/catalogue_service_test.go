package application

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/example/booking-reminder/internal/persistence"
)

func TestActivityService_CreateAndRenameCascades(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ids := newSequence("id")
	activities := NewActivityService(store, ids.next, fixedNow(monday0900), discardLogger())
	templates := NewTemplateService(store, ids.next, fixedNow(monday0900), discardLogger())
	ctx := context.Background()

	if _, err := activities.CreateActivityType(ctx, userPrincipal, ActivityTypeInput{Name: "Consulting", Color: "#3f51b5"}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for non-admin, got %v", err)
	}

	created, err := activities.CreateActivityType(ctx, adminPrincipal, ActivityTypeInput{Name: "Consulting", Color: "3F51B5"})
	if err != nil {
		t.Fatalf("CreateActivityType returned error: %v", err)
	}
	if created.Color != "#3f51b5" {
		t.Fatalf("expected normalized color, got %q", created.Color)
	}
	if _, err := activities.CreateActivityType(ctx, adminPrincipal, ActivityTypeInput{Name: "consulting", Color: "#ffffff"}); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists for duplicate name, got %v", err)
	}

	group, err := templates.CreateGroup(ctx, adminPrincipal, TemplateGroupInput{
		Type:  "Consulting",
		Days:  []string{"Monday", "จ.", "พ."},
		Start: "9:00",
		End:   "12:00",
	})
	if err != nil {
		t.Fatalf("CreateGroup returned error: %v", err)
	}
	if !slices.Equal(group.Days, []string{"จ.", "พ."}) || group.Time != "09:00 - 12:00" {
		t.Fatalf("unexpected group %+v", group)
	}

	if _, err := activities.UpdateActivityType(ctx, adminPrincipal, created.ID, ActivityTypeInput{Name: "Coaching", Color: "#3f51b5"}); err != nil {
		t.Fatalf("UpdateActivityType returned error: %v", err)
	}
	rows, err := templates.Templates(ctx)
	if err != nil {
		t.Fatalf("Templates returned error: %v", err)
	}
	for _, row := range rows {
		if row.Type != "Coaching" {
			t.Fatalf("expected template %s to follow the rename, got %q", row.ID, row.Type)
		}
	}
	if got := activities.Color(ctx, "Coaching"); got != "#3f51b5" {
		t.Fatalf("expected color lookup by new name, got %q", got)
	}
}

func TestActivityService_Validation(t *testing.T) {
	t.Parallel()

	activities := NewActivityService(newTestStore(t), nil, nil, discardLogger())
	_, err := activities.CreateActivityType(context.Background(), adminPrincipal, ActivityTypeInput{Name: " ", Color: "blue"})
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(vErr.FieldErrors) != 2 {
		t.Fatalf("expected name and color errors, got %v", vErr.FieldErrors)
	}
	if _, err := activities.UpdateActivityType(context.Background(), adminPrincipal, "missing", ActivityTypeInput{Name: "x", Color: "#000000"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTemplateService_GroupLifecycle(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	templates := NewTemplateService(store, newSequence("tpl").next, fixedNow(monday0900), discardLogger())
	ctx := context.Background()

	group, err := templates.CreateGroup(ctx, adminPrincipal, TemplateGroupInput{Type: "Consulting", Days: []string{"ศ.", "จ."}, Start: "13:00"})
	if err != nil {
		t.Fatalf("CreateGroup returned error: %v", err)
	}
	if group.Time != "13:00" || !slices.Equal(group.Days, []string{"จ.", "ศ."}) {
		t.Fatalf("unexpected group %+v", group)
	}

	updated, err := templates.UpdateGroup(ctx, adminPrincipal, group.IDs, TemplateGroupInput{Type: "Consulting", Days: []string{"อ."}, Start: "14:00", End: "16:00"})
	if err != nil {
		t.Fatalf("UpdateGroup returned error: %v", err)
	}
	groups, err := templates.ListGroups(ctx)
	if err != nil {
		t.Fatalf("ListGroups returned error: %v", err)
	}
	if len(groups) != 1 || groups[0].Time != "14:00 - 16:00" || len(groups[0].IDs) != 1 {
		t.Fatalf("expected the group to be replaced, got %+v", groups)
	}

	if err := templates.DeleteGroup(ctx, userPrincipal, updated.IDs); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := templates.DeleteGroup(ctx, adminPrincipal, updated.IDs); err != nil {
		t.Fatalf("DeleteGroup returned error: %v", err)
	}
	if rows, _ := templates.Templates(ctx); len(rows) != 0 {
		t.Fatalf("expected all rows deleted, got %+v", rows)
	}
}

func TestTemplateService_Validation(t *testing.T) {
	t.Parallel()

	templates := NewTemplateService(newTestStore(t), nil, nil, discardLogger())
	_, err := templates.CreateGroup(context.Background(), adminPrincipal, TemplateGroupInput{Days: []string{"Funday"}, Start: "10:00", End: "09:00"})
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	for _, field := range []string{"type", "days", "end"} {
		if _, ok := vErr.FieldErrors[field]; !ok {
			t.Fatalf("expected error on %s, got %v", field, vErr.FieldErrors)
		}
	}
}

func TestTemplateService_ImportSkipsExisting(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	templates := NewTemplateService(store, newSequence("tpl").next, fixedNow(monday0900), discardLogger())
	rows := []persistence.ScheduleTemplate{
		{ID: "seed-1", Day: "จ.", Type: "Consulting", Time: "09:00 - 12:00"},
		{Day: "อ.", Type: "Consulting", Time: "09:00 - 12:00"},
	}

	written, err := templates.ImportTemplates(context.Background(), rows)
	if err != nil || written != 2 {
		t.Fatalf("expected two rows imported, got %d (%v)", written, err)
	}
	written, err = templates.ImportTemplates(context.Background(), rows[:1])
	if err != nil || written != 0 {
		t.Fatalf("expected existing row to be skipped, got %d (%v)", written, err)
	}
}
