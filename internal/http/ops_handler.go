package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/booking-reminder/internal/reminder"
)

// ReminderTrigger runs one reminder evaluation pass.
type ReminderTrigger interface {
	Trigger(ctx context.Context) (reminder.Summary, error)
}

// SyncNotifier requests a calendar reconcile pass.
type SyncNotifier interface {
	Notify()
}

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// OpsHandler serves the manual trigger and health endpoints.
type OpsHandler struct {
	reminders ReminderTrigger
	sync      SyncNotifier
	store     Pinger
	responder responder
	logger    *slog.Logger
}

// NewOpsHandler constructs an OpsHandler. Any collaborator may be nil.
func NewOpsHandler(reminders ReminderTrigger, sync SyncNotifier, store Pinger, logger *slog.Logger) *OpsHandler {
	base := defaultLogger(logger)
	return &OpsHandler{reminders: reminders, sync: sync, store: store, responder: newResponder(base), logger: base}
}

// Trigger runs one reminder pass inline and queues a calendar reconcile.
func (h *OpsHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	logger := handlerLogger(r.Context(), h.logger, "OpsHandler", "Trigger")
	resp := triggerResponse{Status: "accepted"}

	if h.reminders != nil {
		summary, err := h.reminders.Trigger(r.Context())
		if err != nil {
			logger.WarnContext(r.Context(), "reminder pass finished with errors", "error", err)
			resp.Error = err.Error()
		}
		resp.Reminders = &summary
	}
	if h.sync != nil {
		h.sync.Notify()
		resp.SyncQueued = true
	}

	logger.InfoContext(r.Context(), "manual trigger handled", "sync_queued", resp.SyncQueued)
	h.responder.writeJSON(r.Context(), w, http.StatusAccepted, resp)
}

func (h *OpsHandler) Health(w http.ResponseWriter, r *http.Request) {
	if h.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.store.Ping(ctx); err != nil {
			h.responder.writeError(r.Context(), w, http.StatusServiceUnavailable, err)
			return
		}
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, map[string]string{"status": "ok"})
}

type triggerResponse struct {
	Status     string            `json:"status"`
	Reminders  *reminder.Summary `json:"reminders,omitempty"`
	SyncQueued bool              `json:"syncQueued"`
	Error      string            `json:"error,omitempty"`
}
