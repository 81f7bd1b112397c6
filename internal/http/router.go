package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// RouterConfig wires handlers into the router. Nil handlers leave their
// routes unmounted.
type RouterConfig struct {
	Bookings      *BookingHandler
	Reminders     *ReminderHandler
	Notifications *NotificationHandler
	Catalogue     *CatalogueHandler
	Accounts      *AccountHandler
	Ops           *OpsHandler
	Logger        *slog.Logger
	Middleware    []func(http.Handler) http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, RequestLogger(cfg.Logger), middleware.Recoverer, Identity)
	for _, mw := range cfg.Middleware {
		if mw != nil {
			r.Use(mw)
		}
	}

	if cfg.Ops != nil {
		r.Get("/healthz", cfg.Ops.Health)
		r.Get("/test", cfg.Ops.Trigger)
		r.Post("/trigger", cfg.Ops.Trigger)
	}

	if cfg.Catalogue != nil {
		r.Get("/slots", cfg.Catalogue.Slots)
		r.Route("/activity-types", func(r chi.Router) {
			r.Get("/", cfg.Catalogue.ListActivityTypes)
			r.Post("/", cfg.Catalogue.CreateActivityType)
			r.Put("/{id}", cfg.Catalogue.UpdateActivityType)
			r.Delete("/{id}", cfg.Catalogue.DeleteActivityType)
		})
		r.Route("/schedule-groups", func(r chi.Router) {
			r.Get("/", cfg.Catalogue.ListGroups)
			r.Post("/", cfg.Catalogue.CreateGroup)
			r.Put("/", cfg.Catalogue.UpdateGroup)
			r.Delete("/", cfg.Catalogue.DeleteGroup)
		})
	}

	if cfg.Bookings != nil {
		r.Route("/bookings", func(r chi.Router) {
			r.Get("/", cfg.Bookings.List)
			r.Post("/", cfg.Bookings.Create)
			r.Get("/calendar.ics", cfg.Bookings.Feed)
			r.Post("/{id}/cancel", cfg.Bookings.Cancel)
			r.Delete("/{id}", cfg.Bookings.Delete)
		})
	}

	if cfg.Reminders != nil {
		r.Route("/reminders", func(r chi.Router) {
			r.Get("/", cfg.Reminders.List)
			r.Post("/", cfg.Reminders.Create)
			r.Put("/{id}", cfg.Reminders.Update)
			r.Delete("/{id}", cfg.Reminders.Delete)
			r.Post("/{id}/toggle", cfg.Reminders.Toggle)
		})
	}

	if cfg.Notifications != nil {
		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", cfg.Notifications.List)
			r.Post("/{id}/read", cfg.Notifications.MarkRead)
			r.Delete("/{id}", cfg.Notifications.Delete)
		})
		r.Post("/push-tokens", cfg.Notifications.RegisterToken)
		r.Delete("/push-tokens", cfg.Notifications.UnregisterToken)
	}

	if cfg.Accounts != nil {
		r.Route("/calendar-accounts", func(r chi.Router) {
			r.Get("/", cfg.Accounts.List)
			r.Post("/", cfg.Accounts.Connect)
			r.Delete("/", cfg.Accounts.Disconnect)
		})
	}

	return r
}
