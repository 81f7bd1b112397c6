package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/example/booking-reminder/internal/application"
	"github.com/example/booking-reminder/internal/availability"
	"github.com/example/booking-reminder/internal/persistence"
	"github.com/example/booking-reminder/internal/timeutil"
)

type activityService interface {
	ListActivityTypes(ctx context.Context) ([]persistence.ActivityType, error)
	CreateActivityType(ctx context.Context, principal application.Principal, input application.ActivityTypeInput) (persistence.ActivityType, error)
	UpdateActivityType(ctx context.Context, principal application.Principal, id string, input application.ActivityTypeInput) (persistence.ActivityType, error)
	DeleteActivityType(ctx context.Context, principal application.Principal, id string) error
}

type templateService interface {
	ListGroups(ctx context.Context) ([]application.TemplateGroup, error)
	CreateGroup(ctx context.Context, principal application.Principal, input application.TemplateGroupInput) (application.TemplateGroup, error)
	UpdateGroup(ctx context.Context, principal application.Principal, ids []string, input application.TemplateGroupInput) (application.TemplateGroup, error)
	DeleteGroup(ctx context.Context, principal application.Principal, ids []string) error
}

type slotService interface {
	Slots(ctx context.Context, query application.SlotQuery) ([]availability.Slot, error)
}

// CatalogueHandler serves activity types, schedule template groups and the
// slots derived from them.
type CatalogueHandler struct {
	activities activityService
	templates  templateService
	slots      slotService
	responder  responder
	logger     *slog.Logger
}

func NewCatalogueHandler(activities activityService, templates templateService, slots slotService, logger *slog.Logger) *CatalogueHandler {
	base := defaultLogger(logger)
	return &CatalogueHandler{
		activities: activities,
		templates:  templates,
		slots:      slots,
		responder:  newResponder(base),
		logger:     base,
	}
}

func (h *CatalogueHandler) decode(w http.ResponseWriter, r *http.Request, operation string, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		handlerLogger(r.Context(), h.logger, "CatalogueHandler", operation, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return false
	}
	return true
}

func (h *CatalogueHandler) ListActivityTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.activities.ListActivityTypes(r.Context())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	if types == nil {
		types = []persistence.ActivityType{}
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, map[string]any{"activityTypes": types})
}

func (h *CatalogueHandler) CreateActivityType(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())
	var req activityTypeRequest
	if !h.decode(w, r, "CreateActivityType", &req) {
		return
	}
	activity, err := h.activities.CreateActivityType(r.Context(), principal, req.toInput())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, map[string]any{"activityType": activity})
}

func (h *CatalogueHandler) UpdateActivityType(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())
	var req activityTypeRequest
	if !h.decode(w, r, "UpdateActivityType", &req) {
		return
	}
	activity, err := h.activities.UpdateActivityType(r.Context(), principal, strings.TrimSpace(chi.URLParam(r, "id")), req.toInput())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, map[string]any{"activityType": activity})
}

func (h *CatalogueHandler) DeleteActivityType(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())
	if err := h.activities.DeleteActivityType(r.Context(), principal, strings.TrimSpace(chi.URLParam(r, "id"))); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *CatalogueHandler) ListGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.templates.ListGroups(r.Context())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	if groups == nil {
		groups = []application.TemplateGroup{}
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, map[string]any{"groups": groups})
}

func (h *CatalogueHandler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())
	var req templateGroupRequest
	if !h.decode(w, r, "CreateGroup", &req) {
		return
	}
	group, err := h.templates.CreateGroup(r.Context(), principal, req.toInput())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, map[string]any{"group": group})
}

func (h *CatalogueHandler) UpdateGroup(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())
	var req templateGroupRequest
	if !h.decode(w, r, "UpdateGroup", &req) {
		return
	}
	if len(req.IDs) == 0 {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingIDs)
		return
	}
	group, err := h.templates.UpdateGroup(r.Context(), principal, req.IDs, req.toInput())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, map[string]any{"group": group})
}

func (h *CatalogueHandler) DeleteGroup(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())
	var req templateGroupRequest
	if !h.decode(w, r, "DeleteGroup", &req) {
		return
	}
	if len(req.IDs) == 0 {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingIDs)
		return
	}
	if err := h.templates.DeleteGroup(r.Context(), principal, req.IDs); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

// Slots answers GET /slots?type=&date=&duration=&custom_value=&custom_unit=&tz=&mine=.
func (h *CatalogueHandler) Slots(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())
	q := r.URL.Query()

	duration := timeutil.Duration{Label: q.Get("duration"), CustomUnit: timeutil.ParseUnit(q.Get("custom_unit"))}
	if raw := strings.TrimSpace(q.Get("custom_value")); raw != "" {
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
			return
		}
		duration.CustomValue = value
	}
	query := application.SlotQuery{
		Type:     q.Get("type"),
		Date:     q.Get("date"),
		Duration: duration,
		Timezone: q.Get("tz"),
	}
	if mine, _ := strconv.ParseBool(q.Get("mine")); mine {
		query.UserID = principal.UserID
	}

	slots, err := h.slots.Slots(r.Context(), query)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	if slots == nil {
		slots = []availability.Slot{}
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, map[string]any{"slots": slots})
}

type activityTypeRequest struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

func (r activityTypeRequest) toInput() application.ActivityTypeInput {
	return application.ActivityTypeInput{Name: r.Name, Color: r.Color}
}

type templateGroupRequest struct {
	IDs      []string `json:"ids"`
	Type     string   `json:"type"`
	Days     []string `json:"days"`
	Start    string   `json:"start"`
	End      string   `json:"end"`
	Duration string   `json:"duration"`
}

func (r templateGroupRequest) toInput() application.TemplateGroupInput {
	return application.TemplateGroupInput{
		Type:     r.Type,
		Days:     r.Days,
		Start:    r.Start,
		End:      r.End,
		Duration: r.Duration,
	}
}
