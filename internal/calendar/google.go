package calendar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// DefaultTimeout bounds every call to the calendar API.
const DefaultTimeout = 30 * time.Second

// GoogleOption customises a GoogleClient.
type GoogleOption func(*GoogleClient)

// WithEndpoint points the client at an alternative API base URL.
func WithEndpoint(endpoint string) GoogleOption {
	return func(c *GoogleClient) { c.endpoint = endpoint }
}

// WithHTTPClient replaces the authenticated transport. Tokens are not
// attached to requests made through it.
func WithHTTPClient(client *http.Client) GoogleOption {
	return func(c *GoogleClient) { c.httpClient = client }
}

// WithTimeout overrides DefaultTimeout.
func WithTimeout(timeout time.Duration) GoogleOption {
	return func(c *GoogleClient) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// GoogleClient implements Client on the Google Calendar v3 API. Each
// account authenticates with an OAuth refresh token.
type GoogleClient struct {
	oauth      *oauth2.Config
	endpoint   string
	httpClient *http.Client
	timeout    time.Duration
	logger     *slog.Logger
}

var _ Client = (*GoogleClient)(nil)

// NewGoogleClient constructs a client for the OAuth application identified
// by clientID and clientSecret.
func NewGoogleClient(clientID, clientSecret string, logger *slog.Logger, opts ...GoogleOption) *GoogleClient {
	if logger == nil {
		logger = slog.Default()
	}
	c := &GoogleClient{
		oauth: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       []string{gcal.CalendarEventsScope},
		},
		timeout: DefaultTimeout,
		logger:  logger.With("component", "calendar"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *GoogleClient) service(ctx context.Context, account Account) (*gcal.Service, error) {
	var opts []option.ClientOption
	if c.endpoint != "" {
		opts = append(opts, option.WithEndpoint(c.endpoint))
	}
	if c.httpClient != nil {
		opts = append(opts, option.WithHTTPClient(c.httpClient))
	} else {
		if strings.TrimSpace(account.RefreshToken) == "" {
			return nil, fmt.Errorf("%w: %s has no refresh token", ErrInvalidCredential, account.Email)
		}
		source := c.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: account.RefreshToken})
		opts = append(opts, option.WithTokenSource(source))
	}
	svc, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("calendar: create service for %s: %w", account.Email, err)
	}
	return svc, nil
}

// CreateEvent inserts event and returns the external event id.
func (c *GoogleClient) CreateEvent(ctx context.Context, account Account, event Event) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	svc, err := c.service(ctx, account)
	if err != nil {
		return "", err
	}
	created, err := svc.Events.Insert(account.Calendar(), toAPIEvent(event)).Context(ctx).Do()
	if err != nil {
		return "", mapError(err)
	}
	c.logger.DebugContext(ctx, "calendar event created", "account", account.Email, "event_id", created.Id)
	return created.Id, nil
}

// UpdateEvent patches the external event with event.
func (c *GoogleClient) UpdateEvent(ctx context.Context, account Account, eventID string, event Event) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	svc, err := c.service(ctx, account)
	if err != nil {
		return err
	}
	if _, err := svc.Events.Patch(account.Calendar(), eventID, toAPIEvent(event)).Context(ctx).Do(); err != nil {
		return mapError(err)
	}
	return nil
}

// DeleteEvent removes the external event. Missing events yield
// ErrEventNotFound.
func (c *GoogleClient) DeleteEvent(ctx context.Context, account Account, eventID string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	svc, err := c.service(ctx, account)
	if err != nil {
		return err
	}
	if err := svc.Events.Delete(account.Calendar(), eventID).Context(ctx).Do(); err != nil {
		return mapError(err)
	}
	return nil
}

func toAPIEvent(event Event) *gcal.Event {
	out := &gcal.Event{
		Summary:     event.Summary,
		Description: event.Description,
		Location:    event.Location,
		ColorId:     event.ColorID,
		Start:       &gcal.EventDateTime{DateTime: event.Start.Format(time.RFC3339), TimeZone: event.TimeZone},
		End:         &gcal.EventDateTime{DateTime: event.End.Format(time.RFC3339), TimeZone: event.TimeZone},
	}
	for _, email := range event.Attendees {
		out.Attendees = append(out.Attendees, &gcal.EventAttendee{Email: email})
	}
	return out
}

func mapError(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusNotFound, http.StatusGone:
			return fmt.Errorf("%w: %v", ErrEventNotFound, err)
		case http.StatusUnauthorized:
			return fmt.Errorf("%w: %v", ErrInvalidCredential, err)
		}
	}
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}
	return err
}
