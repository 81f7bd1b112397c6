package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/example/booking-reminder/internal/application"
	"github.com/example/booking-reminder/internal/persistence"
)

type notificationService interface {
	ListNotifications(ctx context.Context, principal application.Principal) ([]persistence.NotificationRecord, error)
	MarkRead(ctx context.Context, principal application.Principal, id string) error
	DeleteNotification(ctx context.Context, principal application.Principal, id string) error
	RegisterDevice(ctx context.Context, principal application.Principal, token string) (persistence.PushToken, error)
	UnregisterDevice(ctx context.Context, principal application.Principal) error
}

type NotificationHandler struct {
	service   notificationService
	responder responder
}

func NewNotificationHandler(service notificationService, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{service: service, responder: newResponder(defaultLogger(logger))}
}

func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())
	records, err := h.service.ListNotifications(r.Context(), principal)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	if records == nil {
		records = []persistence.NotificationRecord{}
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listNotificationsResponse{Notifications: records})
}

func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())
	if err := h.service.MarkRead(r.Context(), principal, strings.TrimSpace(chi.URLParam(r, "id"))); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *NotificationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())
	if err := h.service.DeleteNotification(r.Context(), principal, strings.TrimSpace(chi.URLParam(r, "id"))); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *NotificationHandler) RegisterToken(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())
	var req pushTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	record, err := h.service.RegisterDevice(r.Context(), principal, req.Token)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, pushTokenResponse{Channel: record.Channel, UpdatedAt: record.UpdatedAt.Format(time.RFC3339)})
}

func (h *NotificationHandler) UnregisterToken(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())
	if err := h.service.UnregisterDevice(r.Context(), principal); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

type pushTokenRequest struct {
	Token string `json:"token"`
}

type pushTokenResponse struct {
	Channel   string `json:"channel"`
	UpdatedAt string `json:"updatedAt"`
}

type listNotificationsResponse struct {
	Notifications []persistence.NotificationRecord `json:"notifications"`
}
