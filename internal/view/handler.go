package view

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/openclinic/patient-portal/internal/appointments"
	"github.com/openclinic/patient-portal/internal/notify"
	"github.com/openclinic/patient-portal/pkg/logging"
)

// Handler exposes the view model over HTTP. It is a pure boundary: reads go
// through Snapshot, writes through the engine's coordinators.
type Handler struct {
	engine    *Engine
	scheduler *Scheduler
	feed      *notify.Feed
	logger    *logging.Logger
}

// NewHandler creates the appointments HTTP handler.
func NewHandler(engine *Engine, scheduler *Scheduler, feed *notify.Feed, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{engine: engine, scheduler: scheduler, feed: feed, logger: logger}
}

// List handles GET /appointments.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	snap := h.engine.Snapshot(projectionFromQuery(r))
	writeJSON(w, http.StatusOK, snap)
}

// Refresh handles POST /appointments/refresh. The refresh happens on the
// scheduler's loop; the response only acknowledges the request.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	h.scheduler.Refresh()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "refresh scheduled"})
}

type mutationRequest struct {
	Confirm bool   `json:"confirm"`
	Status  string `json:"status,omitempty"`
}

// Cancel handles POST /appointments/{id}/cancel.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	req, ok := decodeMutation(w, r)
	if !ok {
		return
	}

	err := h.engine.Cancel(r.Context(), id, func(string) bool { return req.Confirm })
	if err != nil {
		h.writeMutationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

// UpdateStatus handles PUT /appointments/{id}/status.
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	req, ok := decodeMutation(w, r)
	if !ok {
		return
	}
	if req.Status == "" {
		http.Error(w, "status required", http.StatusBadRequest)
		return
	}

	err := h.engine.UpdateStatus(r.Context(), id, req.Status, func(string) bool { return req.Confirm })
	if err != nil {
		h.writeMutationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": req.Status})
}

// Notifications handles GET /notifications.
func (h *Handler) Notifications(w http.ResponseWriter, r *http.Request) {
	if h.feed == nil {
		writeJSON(w, http.StatusOK, []notify.Toast{})
		return
	}
	toasts := h.feed.Recent()
	if toasts == nil {
		toasts = []notify.Toast{}
	}
	writeJSON(w, http.StatusOK, toasts)
}

func (h *Handler) writeMutationError(w http.ResponseWriter, err error) {
	var svcErr *appointments.ServiceError
	switch {
	case errors.Is(err, ErrMissingID):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrConfirmationDeclined):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, ErrCancelInFlight):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.As(err, &svcErr):
		http.Error(w, svcErr.Error(), http.StatusBadGateway)
	default:
		h.logger.Error("mutation failed", "error", err)
		http.Error(w, "mutation failed", http.StatusInternalServerError)
	}
}

func decodeMutation(w http.ResponseWriter, r *http.Request) (mutationRequest, bool) {
	var req mutationRequest
	if r.Body == nil || r.ContentLength == 0 {
		return req, true
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return req, false
	}
	return req, true
}

func projectionFromQuery(r *http.Request) appointments.Projection {
	p := appointments.DefaultProjection()
	q := r.URL.Query()

	switch appointments.Tab(q.Get("tab")) {
	case appointments.TabPast:
		p.Tab = appointments.TabPast
	case appointments.TabUpcoming:
		p.Tab = appointments.TabUpcoming
	}
	if status := q.Get("status"); status != "" {
		p.Status = status
	}
	switch appointments.SortKey(q.Get("sort")) {
	case appointments.SortByDoctor:
		p.Sort = appointments.SortByDoctor
	case appointments.SortByStatus:
		p.Sort = appointments.SortByStatus
	case appointments.SortByDate:
		p.Sort = appointments.SortByDate
	}
	return p
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
