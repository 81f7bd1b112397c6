// Package calsync reconciles confirmed bookings with the events of every
// connected external calendar account.
package calsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/example/booking-reminder/internal/calendar"
	"github.com/example/booking-reminder/internal/logging"
	"github.com/example/booking-reminder/internal/persistence"
)

const (
	// DefaultConcurrency bounds the bookings reconciled in parallel.
	DefaultConcurrency = 4
	// StaleAfterTicks is the number of passes after which a booking still
	// missing events is reported.
	StaleAfterTicks = 3
)

// ErrNotConfigured is returned when no calendar account is connected or
// none has a usable credential.
var ErrNotConfigured = errors.New("calsync: no usable calendar account")

// CredentialOpener unseals stored account credentials.
type CredentialOpener interface {
	Open(sealed string) (string, error)
}

// Options tunes a Synchronizer.
type Options struct {
	Concurrency int
	Opener      CredentialOpener
	Logger      *slog.Logger
}

// Stats reports the work done by one reconciliation pass.
type Stats struct {
	Bookings int
	Created  int
	Failed   int
	Pending  int
}

// Synchronizer computes and applies the external calendar delta of the
// stored bookings.
type Synchronizer struct {
	bookings   persistence.Collection[persistence.Booking]
	settings   persistence.Collection[persistence.AdminSettings]
	activities persistence.Collection[persistence.ActivityType]
	client     calendar.Client
	opener     CredentialOpener
	limit      int
	logger     *slog.Logger

	mu            sync.Mutex
	notConfigured bool
	pendingTicks  map[string]int
}

// New constructs a Synchronizer over store and client.
func New(store persistence.DocumentStore, client calendar.Client, opts Options) *Synchronizer {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Synchronizer{
		bookings:     persistence.NewCollection[persistence.Booking](store, persistence.CollectionBookings),
		settings:     persistence.NewCollection[persistence.AdminSettings](store, persistence.CollectionSettings),
		activities:   persistence.NewCollection[persistence.ActivityType](store, persistence.CollectionActivityTypes),
		client:       client,
		opener:       opts.Opener,
		limit:        opts.Concurrency,
		logger:       opts.Logger.With("component", "calsync"),
		pendingTicks: make(map[string]int),
	}
}

// Accounts loads the connected accounts with unsealed credentials.
// Accounts whose credential cannot be opened are skipped.
func (s *Synchronizer) Accounts(ctx context.Context) ([]calendar.Account, error) {
	settings, err := s.settings.Get(ctx, persistence.AdminSettingsID)
	if errors.Is(err, persistence.ErrNotFound) {
		return nil, ErrNotConfigured
	}
	if err != nil {
		return nil, fmt.Errorf("load calendar accounts: %w", err)
	}

	accounts := make([]calendar.Account, 0, len(settings.CalendarAccounts))
	for _, stored := range settings.CalendarAccounts {
		token := stored.Credential
		if s.opener != nil {
			token, err = s.opener.Open(stored.Credential)
			if err != nil {
				s.loggerFor(ctx).WarnContext(ctx, "calendar account credential unusable", "account", stored.Email, "error", err)
				continue
			}
		}
		if token == "" {
			continue
		}
		accounts = append(accounts, calendar.Account{
			Email:        stored.Email,
			CalendarID:   stored.CalendarID,
			RefreshToken: token,
		})
	}
	if len(accounts) == 0 {
		return nil, ErrNotConfigured
	}
	return accounts, nil
}

// Reconcile creates the missing external event of every confirmed booking.
// Failed creations stay pending for the next pass.
func (s *Synchronizer) Reconcile(ctx context.Context) (Stats, error) {
	logger := s.loggerFor(ctx)

	accounts, err := s.accounts(ctx)
	if err != nil {
		return Stats{}, err
	}
	bookings, err := s.bookings.Where(ctx, func(b persistence.Booking) bool { return b.Active() })
	if err != nil {
		return Stats{}, fmt.Errorf("load bookings: %w", err)
	}
	colors, err := s.activityColors(ctx)
	if err != nil {
		logger.WarnContext(ctx, "failed to load activity colors", "error", err)
	}

	var created, failed atomic.Int64
	var pendingMu sync.Mutex
	pending := make(map[string]bool)

	var g errgroup.Group
	g.SetLimit(s.limit)
	for _, booking := range bookings {
		booking := booking
		g.Go(func() error {
			c, f, left := s.reconcileBooking(ctx, logger, booking, accounts, colors[booking.Type])
			created.Add(int64(c))
			failed.Add(int64(f))
			if left > 0 {
				pendingMu.Lock()
				pending[booking.ID] = true
				pendingMu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	stats := Stats{
		Bookings: len(bookings),
		Created:  int(created.Load()),
		Failed:   int(failed.Load()),
		Pending:  len(pending),
	}
	s.trackPending(ctx, logger, pending)
	if stats.Created > 0 || stats.Failed > 0 {
		logger.InfoContext(ctx, "calendar reconciliation completed",
			"bookings", stats.Bookings, "created", stats.Created, "failed", stats.Failed, "pending", stats.Pending)
	}
	return stats, ctx.Err()
}

// reconcileBooking creates the booking's missing events one account at a
// time and records every returned id. It returns the created, failed and
// still missing counts.
func (s *Synchronizer) reconcileBooking(ctx context.Context, logger *slog.Logger, booking persistence.Booking, accounts []calendar.Account, color string) (created, failed, left int) {
	missing := MissingAccounts(booking, accounts)
	if len(missing) == 0 {
		return 0, 0, 0
	}
	event := BuildEvent(booking, color)
	legacy := legacyMigration(booking, accounts)

	for _, account := range missing {
		if ctx.Err() != nil {
			return created, failed, len(missing) - created
		}
		eventID, err := s.client.CreateEvent(ctx, account, event)
		if err != nil {
			failed++
			logger.WarnContext(ctx, "failed to create calendar event",
				"booking_id", booking.ID, "account", account.Email, "error", err)
			continue
		}

		updates := []persistence.FieldUpdate{persistence.Set(eventID, "calendarEventIds", account.Email)}
		updates = append(updates, legacy...)
		if err := s.bookings.Update(ctx, booking.ID, updates...); err != nil {
			failed++
			logger.ErrorContext(ctx, "failed to record calendar event id",
				"booking_id", booking.ID, "account", account.Email, "event_id", eventID, "error", err)
			continue
		}
		legacy = nil
		created++
	}
	return created, failed, len(missing) - created
}

// legacyMigration returns the updates moving a legacy single event id into
// the per-account mapping. The id stays in place when the first account
// already has a mapped event.
func legacyMigration(booking persistence.Booking, accounts []calendar.Account) []persistence.FieldUpdate {
	if booking.LegacyEventID == "" || len(accounts) == 0 {
		return nil
	}
	first := accounts[0].Email
	if _, ok := booking.CalendarEventIDs[first]; ok {
		return nil
	}
	return []persistence.FieldUpdate{
		persistence.Set(booking.LegacyEventID, "calendarEventIds", first),
		persistence.Remove("googleCalendarEventId"),
	}
}

// BookingChanged propagates a booking edit to its mapped events. A booking
// that became cancelled has its events deleted.
func (s *Synchronizer) BookingChanged(ctx context.Context, before, after persistence.Booking) error {
	if before.Active() && !after.Active() {
		return s.deleteEvents(ctx, after, true)
	}
	if !after.Active() || !PayloadChanged(before, after) {
		return nil
	}

	accounts, err := s.accounts(ctx)
	if err != nil {
		return err
	}
	logger := s.loggerFor(ctx)
	colors, err := s.activityColors(ctx)
	if err != nil {
		logger.WarnContext(ctx, "failed to load activity colors", "error", err)
	}
	event := BuildEvent(after, colors[after.Type])
	mapping := NormalizeEventIDs(after, accounts)

	var errs []error
	for _, account := range accounts {
		eventID, ok := mapping[account.Email]
		if !ok {
			continue
		}
		err := s.client.UpdateEvent(ctx, account, eventID, event)
		switch {
		case errors.Is(err, calendar.ErrEventNotFound):
			// gone externally; drop the mapping so the next pass recreates it.
			logger.InfoContext(ctx, "calendar event missing, scheduling recreate",
				"booking_id", after.ID, "account", account.Email, "event_id", eventID)
			if err := s.forgetMapping(ctx, after, account.Email, accounts); err != nil {
				errs = append(errs, err)
			}
		case err != nil:
			logger.WarnContext(ctx, "failed to update calendar event",
				"booking_id", after.ID, "account", account.Email, "event_id", eventID, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// BookingDeleted deletes every mapped event of a removed booking. Events
// already gone count as deleted.
func (s *Synchronizer) BookingDeleted(ctx context.Context, booking persistence.Booking) error {
	return s.deleteEvents(ctx, booking, false)
}

func (s *Synchronizer) deleteEvents(ctx context.Context, booking persistence.Booking, clearMapping bool) error {
	accounts, err := s.accounts(ctx)
	if err != nil {
		return err
	}
	logger := s.loggerFor(ctx)
	mapping := NormalizeEventIDs(booking, accounts)

	var errs []error
	var cleared []persistence.FieldUpdate
	for _, account := range accounts {
		eventID, ok := mapping[account.Email]
		if !ok {
			continue
		}
		err := s.client.DeleteEvent(ctx, account, eventID)
		if err != nil && !errors.Is(err, calendar.ErrEventNotFound) {
			logger.WarnContext(ctx, "failed to delete calendar event",
				"booking_id", booking.ID, "account", account.Email, "event_id", eventID, "error", err)
			errs = append(errs, err)
			continue
		}
		cleared = append(cleared, persistence.Remove("calendarEventIds", account.Email))
	}

	if clearMapping && len(cleared) > 0 {
		if booking.LegacyEventID != "" {
			cleared = append(cleared, persistence.Remove("googleCalendarEventId"))
		}
		if err := s.bookings.Update(ctx, booking.ID, cleared...); err != nil && !errors.Is(err, persistence.ErrNotFound) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Synchronizer) forgetMapping(ctx context.Context, booking persistence.Booking, email string, accounts []calendar.Account) error {
	updates := []persistence.FieldUpdate{persistence.Remove("calendarEventIds", email)}
	if booking.LegacyEventID != "" {
		if accounts[0].Email == email {
			updates = append(updates, persistence.Remove("googleCalendarEventId"))
		} else {
			updates = append(updates, legacyMigration(booking, accounts)...)
		}
	}
	err := s.bookings.Update(ctx, booking.ID, updates...)
	if errors.Is(err, persistence.ErrNotFound) {
		return nil
	}
	return err
}

// accounts wraps Accounts with the single log line of the unconfigured
// state.
func (s *Synchronizer) accounts(ctx context.Context) ([]calendar.Account, error) {
	accounts, err := s.Accounts(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case errors.Is(err, ErrNotConfigured):
		if !s.notConfigured {
			s.notConfigured = true
			s.loggerFor(ctx).WarnContext(ctx, "calendar sync skipped: no usable calendar account")
		}
	case err == nil:
		s.notConfigured = false
	}
	return accounts, err
}

func (s *Synchronizer) activityColors(ctx context.Context) (map[string]string, error) {
	types, err := s.activities.List(ctx)
	if err != nil {
		return map[string]string{}, err
	}
	colors := make(map[string]string, len(types))
	for _, t := range types {
		colors[t.Name] = t.Color
	}
	return colors, nil
}

// trackPending counts consecutive passes a booking stays incomplete and
// warns once when it reaches StaleAfterTicks.
func (s *Synchronizer) trackPending(ctx context.Context, logger *slog.Logger, pending map[string]bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.pendingTicks {
		if !pending[id] {
			delete(s.pendingTicks, id)
		}
	}
	for id := range pending {
		s.pendingTicks[id]++
		if s.pendingTicks[id] == StaleAfterTicks {
			logger.WarnContext(ctx, "booking still missing calendar events", "booking_id", id, "ticks", StaleAfterTicks)
		}
	}
}

func (s *Synchronizer) loggerFor(ctx context.Context) *slog.Logger {
	if logger := logging.FromContext(ctx); logger != nil {
		return logger.With("component", "calsync")
	}
	return s.logger
}
