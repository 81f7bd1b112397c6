package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/example/booking-reminder/internal/calendar"
	"github.com/example/booking-reminder/internal/persistence"
)

// CredentialSealer encrypts account credentials before they are stored.
type CredentialSealer interface {
	Seal(plaintext string) (string, error)
}

// AccountService manages the external calendar accounts bookings are
// mirrored to. Only administrators may use it.
type AccountService struct {
	settings persistence.Collection[persistence.AdminSettings]
	sealer   CredentialSealer
	now      func() time.Time
	logger   *slog.Logger
}

// NewAccountService constructs an account service over store. Without a
// sealer credentials are stored as given.
func NewAccountService(store persistence.DocumentStore, sealer CredentialSealer, now func() time.Time, logger *slog.Logger) *AccountService {
	if now == nil {
		now = time.Now
	}
	return &AccountService{
		settings: persistence.NewCollection[persistence.AdminSettings](store, persistence.CollectionSettings),
		sealer:   sealer,
		now:      now,
		logger:   defaultLogger(logger),
	}
}

func (s *AccountService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "AccountService", operation, attrs...)
}

// ListAccounts returns the connected accounts in connection order.
func (s *AccountService) ListAccounts(ctx context.Context, principal Principal) ([]CalendarAccountView, error) {
	if !principal.IsAdmin {
		return nil, ErrUnauthorized
	}
	settings, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]CalendarAccountView, 0, len(settings.CalendarAccounts))
	for _, account := range settings.CalendarAccounts {
		views = append(views, CalendarAccountView{
			Email:       account.Email,
			CalendarID:  account.CalendarID,
			ConnectedAt: account.ConnectedAt,
		})
	}
	return views, nil
}

// ConnectAccount seals the credential and appends the account. The first
// connected account also receives bookings without a target account.
func (s *AccountService) ConnectAccount(ctx context.Context, principal Principal, input CalendarAccountInput) (view CalendarAccountView, err error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	logger := s.loggerWith(ctx, "ConnectAccount", "principal_id", principal.UserID, "account", email)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to connect calendar account", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "calendar account connected")
	}()

	if !principal.IsAdmin {
		err = ErrUnauthorized
		return
	}
	vErr := &ValidationError{}
	if email == "" {
		vErr.add("email", "email is required")
	} else if _, parseErr := mail.ParseAddress(email); parseErr != nil {
		vErr.add("email", "email is invalid")
	}
	if strings.TrimSpace(input.RefreshToken) == "" {
		vErr.add("refreshToken", "refresh token is required")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	var settings persistence.AdminSettings
	if settings, err = s.load(ctx); err != nil {
		return
	}
	for _, existing := range settings.CalendarAccounts {
		if strings.EqualFold(existing.Email, email) {
			err = fmt.Errorf("%w: calendar account %s", ErrAlreadyExists, email)
			return
		}
	}

	credential := strings.TrimSpace(input.RefreshToken)
	if s.sealer != nil {
		if credential, err = s.sealer.Seal(credential); err != nil {
			err = fmt.Errorf("seal credential: %w", err)
			return
		}
	}
	calendarID := strings.TrimSpace(input.CalendarID)
	if calendarID == "" {
		calendarID = calendar.DefaultCalendarID
	}
	account := persistence.CalendarAccount{
		Email:       email,
		Credential:  credential,
		CalendarID:  calendarID,
		ConnectedAt: s.now().UTC(),
	}
	settings.CalendarAccounts = append(settings.CalendarAccounts, account)
	if err = s.settings.Put(ctx, persistence.AdminSettingsID, settings); err != nil {
		return
	}
	view = CalendarAccountView{Email: account.Email, CalendarID: account.CalendarID, ConnectedAt: account.ConnectedAt}
	return
}

// DisconnectAccount removes an account. Events already created in it are
// left in place.
func (s *AccountService) DisconnectAccount(ctx context.Context, principal Principal, email string) (err error) {
	logger := s.loggerWith(ctx, "DisconnectAccount", "principal_id", principal.UserID, "account", email)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to disconnect calendar account", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "calendar account disconnected")
	}()

	if !principal.IsAdmin {
		err = ErrUnauthorized
		return
	}
	var settings persistence.AdminSettings
	if settings, err = s.load(ctx); err != nil {
		return
	}
	kept := settings.CalendarAccounts[:0]
	for _, account := range settings.CalendarAccounts {
		if !strings.EqualFold(account.Email, strings.TrimSpace(email)) {
			kept = append(kept, account)
		}
	}
	if len(kept) == len(settings.CalendarAccounts) {
		err = ErrNotFound
		return
	}
	settings.CalendarAccounts = kept
	err = s.settings.Put(ctx, persistence.AdminSettingsID, settings)
	return
}

func (s *AccountService) load(ctx context.Context) (persistence.AdminSettings, error) {
	settings, err := s.settings.Get(ctx, persistence.AdminSettingsID)
	if errors.Is(err, persistence.ErrNotFound) {
		return persistence.AdminSettings{ID: persistence.AdminSettingsID}, nil
	}
	if err != nil {
		return persistence.AdminSettings{}, err
	}
	settings.ID = persistence.AdminSettingsID
	return settings, nil
}
