package testfixtures

import (
	"context"
	"testing"
	"time"

	"github.com/example/booking-reminder/internal/application"
	"github.com/example/booking-reminder/internal/persistence"
	"github.com/example/booking-reminder/internal/timeutil"
)

func TestServiceFactoryBooksAcrossStores(t *testing.T) {
	stores := map[string]func(t *testing.T) persistence.DocumentStore{
		"memory": func(t *testing.T) persistence.DocumentStore { return nil },
		"sqlite": func(t *testing.T) persistence.DocumentStore { return NewSQLiteStore(t) },
	}

	for name, open := range stores {
		open := open
		t.Run(name, func(t *testing.T) {
			var opts []ServiceFactoryOption
			if store := open(t); store != nil {
				opts = append(opts, WithStore(store))
			}
			factory := NewServiceFactory(opts...)
			svc := factory.Services(nil, nil)
			ctx := context.Background()

			admin := application.Principal{UserID: "admin", IsAdmin: true}
			if _, err := svc.Activities.CreateActivityType(ctx, admin, application.ActivityTypeInput{Name: "Consulting", Color: "#3f51b5"}); err != nil {
				t.Fatalf("CreateActivityType returned error: %v", err)
			}
			if _, err := svc.Templates.ImportTemplates(ctx, WeekTemplates("Consulting", "09:00 - 12:00", time.Monday)); err != nil {
				t.Fatalf("ImportTemplates returned error: %v", err)
			}

			user := application.Principal{UserID: "user-1", Email: "user-1@example.com"}
			booking, err := svc.Bookings.CreateBooking(ctx, user, application.BookingInput{
				Type:      "Consulting",
				Subject:   "Intro",
				Date:      ReferenceDate,
				StartTime: "10:00",
				Duration:  timeutil.Duration{Label: "30 minutes"},
				Location:  "https://meet.example.com/intro",
			})
			if err != nil {
				t.Fatalf("CreateBooking returned error: %v", err)
			}
			if booking.ID != "id-2" {
				t.Fatalf("expected deterministic id id-2, got %q", booking.ID)
			}
			if !booking.CreatedAt.Equal(factory.Clock.Now()) {
				t.Fatalf("expected timestamp %v, got %v", factory.Clock.Now(), booking.CreatedAt)
			}

			slots, err := svc.Availability.Slots(ctx, application.SlotQuery{Type: "Consulting", Date: ReferenceDate, Duration: timeutil.Duration{Label: "30 minutes"}})
			if err != nil {
				t.Fatalf("Slots returned error: %v", err)
			}
			booked := 0
			for _, slot := range slots {
				if slot.Booked {
					booked++
				}
			}
			if len(slots) != 6 || booked != 1 {
				t.Fatalf("expected 6 slots with 1 booked, got %d slots and %d booked", len(slots), booked)
			}
		})
	}
}
