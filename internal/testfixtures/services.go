package testfixtures

import (
	"io"
	"log/slog"
	"time"

	"github.com/example/booking-reminder/internal/application"
	"github.com/example/booking-reminder/internal/persistence"
	"github.com/example/booking-reminder/internal/persistence/memory"
	"github.com/example/booking-reminder/internal/push"
)

// Services bundles the application services over one store.
type Services struct {
	Store         persistence.DocumentStore
	Activities    *application.ActivityService
	Templates     *application.TemplateService
	Bookings      *application.BookingService
	Reminders     *application.ReminderService
	Notifications *application.NotificationService
	Accounts      *application.AccountService
	Availability  *application.AvailabilityService
	Tokens        *push.TokenRegistry
}

// ServiceFactory assists tests with constructing application services using
// deterministic identifiers and clocks.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
	Logger      *slog.Logger
	Store       persistence.DocumentStore
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults: the reference
// clock, "id" prefixed identifiers, a discarding logger and a memory store
// driven by the same clock.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(time.Time{})
	}
	if factory.IDGenerator == nil {
		factory.IDGenerator = NewIDGenerator("id")
	}
	if factory.Logger == nil {
		factory.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if factory.Store == nil {
		factory.Store = memory.NewWithClock(factory.Clock.NowFunc())
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithIDGenerator overrides the identifier generator used by the factory.
func WithIDGenerator(generator *IDGenerator) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.IDGenerator = generator
	}
}

// WithStore overrides the document store used by the factory.
func WithStore(store persistence.DocumentStore) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Store = store
	}
}

// Services builds every application service. ledger may be nil.
func (f *ServiceFactory) Services(sealer application.CredentialSealer, ledger application.OccurrenceForgetter) Services {
	ids := f.IDGenerator.NextFunc()
	now := f.Clock.NowFunc()
	tokens := push.NewTokenRegistry(f.Store, now)
	return Services{
		Store:         f.Store,
		Activities:    application.NewActivityService(f.Store, ids, now, f.Logger),
		Templates:     application.NewTemplateService(f.Store, ids, now, f.Logger),
		Bookings:      application.NewBookingService(f.Store, ids, now, f.Logger),
		Reminders:     application.NewReminderService(f.Store, ledger, ids, now, f.Logger),
		Notifications: application.NewNotificationService(f.Store, tokens, now, f.Logger),
		Accounts:      application.NewAccountService(f.Store, sealer, now, f.Logger),
		Availability:  application.NewAvailabilityService(f.Store, f.Logger),
		Tokens:        tokens,
	}
}
