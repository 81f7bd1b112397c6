package application

import (
	"errors"
	"testing"

	"github.com/example/booking-reminder/internal/persistence"
)

func TestValidationError_Error(t *testing.T) {
	t.Parallel()

	var err *ValidationError
	if err.Error() != "" {
		t.Fatalf("expected empty string for nil error, got %q", err.Error())
	}

	empty := &ValidationError{}
	if got := empty.Error(); got != "validation failed" {
		t.Fatalf("expected generic message for empty error, got %q", got)
	}

	withFields := &ValidationError{FieldErrors: map[string]string{"time": "invalid", "date": "invalid"}}
	if got := withFields.Error(); got != "validation failed: date, time" {
		t.Fatalf("expected sorted field names, got %q", got)
	}
}

func TestValidationError_HasErrors(t *testing.T) {
	t.Parallel()

	if err := (&ValidationError{}).HasErrors(); err {
		t.Fatalf("expected HasErrors to report false for empty error")
	}

	if err := (&ValidationError{FieldErrors: map[string]string{"field": "bad"}}).HasErrors(); !err {
		t.Fatalf("expected HasErrors to report true when fields are present")
	}
}

func TestValidationError_AddAndMerge(t *testing.T) {
	t.Parallel()

	base := &ValidationError{}
	base.add("first", "value")
	base.add("first", "ignored")
	if got := base.FieldErrors["first"]; got != "value" {
		t.Fatalf("expected first message to win, got %q", got)
	}

	other := &ValidationError{FieldErrors: map[string]string{"second": "another"}}
	base.merge(other)
	if got := base.FieldErrors["second"]; got != "another" {
		t.Fatalf("expected merge to copy field, got %q", got)
	}

	base.merge(nil)
	if len(base.FieldErrors) != 2 {
		t.Fatalf("expected merge with nil to leave fields unchanged")
	}
}

func TestMapStoreError(t *testing.T) {
	t.Parallel()

	if !errors.Is(mapStoreError(persistence.ErrNotFound), ErrNotFound) {
		t.Fatalf("expected ErrNotFound mapping")
	}
	if !errors.Is(mapStoreError(persistence.ErrDuplicate), ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists mapping")
	}
	other := errors.New("boom")
	if !errors.Is(mapStoreError(other), other) {
		t.Fatalf("expected unknown errors passed through")
	}
	if mapStoreError(nil) != nil {
		t.Fatalf("expected nil for nil")
	}
}

func TestErrorKind(t *testing.T) {
	t.Parallel()

	cases := map[error]string{
		nil:                   "",
		ErrUnauthorized:       "unauthorized",
		ErrNotFound:           "not_found",
		ErrAlreadyExists:      "already_exists",
		ErrSlotUnavailable:    "slot_unavailable",
		&ValidationError{}:    "validation",
		errors.New("unknown"): "unexpected",
	}
	for err, want := range cases {
		if got := ErrorKind(err); got != want {
			t.Fatalf("expected %q for %v, got %q", want, err, got)
		}
	}
}
