package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/example/booking-reminder/internal/application"
)

type accountService interface {
	ListAccounts(ctx context.Context, principal application.Principal) ([]application.CalendarAccountView, error)
	ConnectAccount(ctx context.Context, principal application.Principal, input application.CalendarAccountInput) (application.CalendarAccountView, error)
	DisconnectAccount(ctx context.Context, principal application.Principal, email string) error
}

type AccountHandler struct {
	service   accountService
	responder responder
}

func NewAccountHandler(service accountService, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{service: service, responder: newResponder(defaultLogger(logger))}
}

func (h *AccountHandler) List(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())
	accounts, err := h.service.ListAccounts(r.Context(), principal)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	if accounts == nil {
		accounts = []application.CalendarAccountView{}
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, map[string]any{"accounts": accounts})
}

func (h *AccountHandler) Connect(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())
	var req accountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	account, err := h.service.ConnectAccount(r.Context(), principal, application.CalendarAccountInput{
		Email:        req.Email,
		RefreshToken: req.RefreshToken,
		CalendarID:   req.CalendarID,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, map[string]any{"account": account})
}

// Disconnect removes the account named by the email query parameter.
func (h *AccountHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())
	email := r.URL.Query().Get("email")
	if email == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingID)
		return
	}
	if err := h.service.DisconnectAccount(r.Context(), principal, email); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

type accountRequest struct {
	Email        string `json:"email"`
	RefreshToken string `json:"refreshToken"`
	CalendarID   string `json:"calendarId"`
}
