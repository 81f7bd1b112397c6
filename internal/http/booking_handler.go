package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/example/booking-reminder/internal/application"
	"github.com/example/booking-reminder/internal/persistence"
	"github.com/example/booking-reminder/internal/timeutil"
)

type bookingService interface {
	ListBookings(ctx context.Context, principal application.Principal) ([]application.BookingView, error)
	CreateBooking(ctx context.Context, principal application.Principal, input application.BookingInput) (persistence.Booking, error)
	CancelBooking(ctx context.Context, principal application.Principal, id string) error
	DeleteBooking(ctx context.Context, principal application.Principal, id string) error
	WriteFeed(ctx context.Context, principal application.Principal, w io.Writer) error
}

type BookingHandler struct {
	service   bookingService
	responder responder
	logger    *slog.Logger
}

func NewBookingHandler(service bookingService, logger *slog.Logger) *BookingHandler {
	base := defaultLogger(logger)
	return &BookingHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *BookingHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return handlerLogger(ctx, h.logger, "BookingHandler", operation, attrs...)
}

func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())
	bookings, err := h.service.ListBookings(r.Context(), principal)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	if bookings == nil {
		bookings = []application.BookingView{}
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listBookingsResponse{Bookings: bookings})
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())

	var req bookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Create", "principal_id", principal.UserID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode booking request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	booking, err := h.service.CreateBooking(r.Context(), principal, req.toInput())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, bookingResponse{Booking: booking})
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingID)
		return
	}
	principal, _ := PrincipalFromContext(r.Context())
	if err := h.service.CancelBooking(r.Context(), principal, id); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *BookingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingID)
		return
	}
	principal, _ := PrincipalFromContext(r.Context())
	if err := h.service.DeleteBooking(r.Context(), principal, id); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

// Feed renders the caller's bookings as text/calendar.
func (h *BookingHandler) Feed(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())
	var buf bytes.Buffer
	if err := h.service.WriteFeed(r.Context(), principal, &buf); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `inline; filename="bookings.ics"`)
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.log(r.Context(), "Feed").WarnContext(r.Context(), "failed to write calendar feed", "error", err)
	}
}

type bookingRequest struct {
	Type          string  `json:"type"`
	Subject       string  `json:"subject"`
	Date          string  `json:"date"`
	StartTime     string  `json:"startTime"`
	Duration      string  `json:"duration"`
	CustomValue   float64 `json:"customValue"`
	CustomUnit    string  `json:"customUnit"`
	MeetingFormat string  `json:"meetingFormat"`
	Location      string  `json:"location"`
	Description   string  `json:"description"`
	TargetAccount string  `json:"targetAccount"`
}

func (r bookingRequest) toInput() application.BookingInput {
	return application.BookingInput{
		Type:          r.Type,
		Subject:       r.Subject,
		Date:          r.Date,
		StartTime:     r.StartTime,
		Duration:      timeutil.Duration{Label: r.Duration, CustomValue: r.CustomValue, CustomUnit: timeutil.ParseUnit(r.CustomUnit)},
		MeetingFormat: r.MeetingFormat,
		Location:      r.Location,
		Description:   r.Description,
		TargetAccount: r.TargetAccount,
	}
}

type listBookingsResponse struct {
	Bookings []application.BookingView `json:"bookings"`
}

type bookingResponse struct {
	Booking persistence.Booking `json:"booking"`
}
