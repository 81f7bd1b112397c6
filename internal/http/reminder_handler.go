package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/example/booking-reminder/internal/application"
)

type reminderService interface {
	ListReminders(ctx context.Context, principal application.Principal) ([]application.ReminderView, error)
	CreateReminder(ctx context.Context, principal application.Principal, input application.ReminderInput) (application.ReminderView, error)
	UpdateReminder(ctx context.Context, principal application.Principal, id string, input application.ReminderInput) (application.ReminderView, error)
	ToggleReminder(ctx context.Context, principal application.Principal, id string, enabled bool) error
	DeleteReminder(ctx context.Context, principal application.Principal, id string) error
}

type ReminderHandler struct {
	service   reminderService
	responder responder
	logger    *slog.Logger
}

func NewReminderHandler(service reminderService, logger *slog.Logger) *ReminderHandler {
	base := defaultLogger(logger)
	return &ReminderHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *ReminderHandler) List(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())
	reminders, err := h.service.ListReminders(r.Context(), principal)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	if reminders == nil {
		reminders = []application.ReminderView{}
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listRemindersResponse{Reminders: reminders})
}

func (h *ReminderHandler) Create(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())
	var req reminderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handlerLogger(r.Context(), h.logger, "ReminderHandler", "Create", "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode reminder request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	view, err := h.service.CreateReminder(r.Context(), principal, req.toInput())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, reminderResponse{Reminder: view})
}

func (h *ReminderHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	principal, _ := PrincipalFromContext(r.Context())
	var req reminderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handlerLogger(r.Context(), h.logger, "ReminderHandler", "Update", "reminder_id", id, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode reminder update", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	view, err := h.service.UpdateReminder(r.Context(), principal, id, req.toInput())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, reminderResponse{Reminder: view})
}

// Toggle sets the enabled flag to the value in the request body.
func (h *ReminderHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	principal, _ := PrincipalFromContext(r.Context())
	var req toggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Enabled == nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	if err := h.service.ToggleReminder(r.Context(), principal, id, *req.Enabled); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *ReminderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	principal, _ := PrincipalFromContext(r.Context())
	if err := h.service.DeleteReminder(r.Context(), principal, id); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

type reminderRequest struct {
	Title         string `json:"title"`
	Time          string `json:"time"`
	Date          string `json:"date"`
	RepeatDays    []int  `json:"repeatDays"`
	TimezoneRef   string `json:"timezoneRef"`
	TimezoneLabel string `json:"timezone"`
}

func (r reminderRequest) toInput() application.ReminderInput {
	return application.ReminderInput{
		Title:         r.Title,
		Time:          r.Time,
		Date:          r.Date,
		RepeatDays:    r.RepeatDays,
		TimezoneRef:   r.TimezoneRef,
		TimezoneLabel: r.TimezoneLabel,
	}
}

type toggleRequest struct {
	Enabled *bool `json:"isEnabled"`
}

type listRemindersResponse struct {
	Reminders []application.ReminderView `json:"reminders"`
}

type reminderResponse struct {
	Reminder application.ReminderView `json:"reminder"`
}
