package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oriys/tower/internal/domain"
	"github.com/oriys/tower/internal/jobtracker"
	"github.com/oriys/tower/internal/logging"
	"github.com/oriys/tower/internal/metrics"
	"github.com/oriys/tower/internal/workitem"
)

// Pinger is a dependency the readiness probe checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

type inFlightCounter interface {
	InFlight() int
}

// Handler serves the work item bridge.
type Handler struct {
	WorkItems   workitem.Handler
	Tracker     *jobtracker.Tracker
	ResultTypes func() []string
	Credentials Pinger // optional
	started     time.Time
}

// RegisterRoutes registers all routes on the given mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	if h.started.IsZero() {
		h.started = time.Now()
	}

	mux.HandleFunc("POST /v1/workitems", h.ExecuteWorkItem)
	mux.HandleFunc("GET /v1/workitems", h.ListWorkItems)
	mux.HandleFunc("GET /v1/workitems/{id}", h.GetWorkItem)
	mux.HandleFunc("DELETE /v1/workitems/{id}", h.AbortWorkItem)
	mux.HandleFunc("GET /v1/result-types", h.ListResultTypes)

	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /health/live", h.HealthLive)
	mux.HandleFunc("GET /health/ready", h.HealthReady)

	mux.Handle("GET /metrics", metrics.PrometheusHandler())
}

type executeRequest struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Parameters map[string]any `json:"parameters"`
}

// ExecuteWorkItem handles POST /v1/workitems. The call runs synchronously
// unless ?async=true, in which case 202 is returned with the running record.
func (h *Handler) ExecuteWorkItem(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON payload", http.StatusBadRequest)
		return
	}
	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	item := &domain.WorkItem{ID: req.ID, Name: req.Name, Parameters: req.Parameters}

	if err := h.Tracker.Start(item); err != nil {
		if errors.Is(err, jobtracker.ErrRunning) {
			http.Error(w, "work item already running: "+item.ID, http.StatusConflict)
			return
		}
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	if r.URL.Query().Get("async") == "true" {
		go h.execute(context.WithoutCancel(r.Context()), item)
		writeJSON(w, http.StatusAccepted, h.Tracker.Get(item.ID))
		return
	}

	h.execute(r.Context(), item)
	rec := h.Tracker.Get(item.ID)
	writeJSON(w, recordStatus(rec), rec)
}

func (h *Handler) execute(ctx context.Context, item *domain.WorkItem) {
	if err := h.WorkItems.ExecuteWorkItem(ctx, item, h.Tracker); err != nil {
		logging.Op().Warn("work item returned error", "work_item_id", item.ID, "error", err)
	}
}

// recordStatus maps a finished record onto an HTTP status for the
// synchronous path.
func recordStatus(rec *jobtracker.Record) int {
	if rec == nil || rec.State != jobtracker.StateFailed {
		return http.StatusOK
	}
	switch domain.ErrorKind(rec.ErrorKind) {
	case domain.KindMissingParameter, domain.KindInvalidParameter,
		domain.KindUnsupportedMethod, domain.KindUnsupportedContentType:
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}

// ListWorkItems handles GET /v1/workitems
func (h *Handler) ListWorkItems(w http.ResponseWriter, r *http.Request) {
	records := h.Tracker.List()
	if state := r.URL.Query().Get("state"); state != "" {
		filtered := records[:0]
		for _, rec := range records {
			if strings.EqualFold(string(rec.State), state) {
				filtered = append(filtered, rec)
			}
		}
		records = filtered
	}
	writeJSON(w, http.StatusOK, records)
}

// GetWorkItem handles GET /v1/workitems/{id}
func (h *Handler) GetWorkItem(w http.ResponseWriter, r *http.Request) {
	rec := h.Tracker.Get(r.PathValue("id"))
	if rec == nil {
		http.Error(w, "work item not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// AbortWorkItem handles DELETE /v1/workitems/{id}. A running item is
// aborted and its record returned; a finished record is removed.
func (h *Handler) AbortWorkItem(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	found, err := h.Tracker.Remove(id)
	if !found {
		http.Error(w, "work item not found", http.StatusNotFound)
		return
	}
	if err == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	h.WorkItems.AbortWorkItem(&domain.WorkItem{ID: id}, h.Tracker)
	writeJSON(w, http.StatusOK, h.Tracker.Get(id))
}

// ListResultTypes handles GET /v1/result-types
func (h *Handler) ListResultTypes(w http.ResponseWriter, r *http.Request) {
	var names []string
	if h.ResultTypes != nil {
		names = h.ResultTypes()
	}
	writeJSON(w, http.StatusOK, map[string]any{"result_types": names})
}

// Health handles GET /health - detailed status
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := "ok"
	components := map[string]any{
		"tracked_work_items": len(h.Tracker.List()),
	}
	if c, ok := h.WorkItems.(inFlightCounter); ok {
		components["in_flight_work_items"] = c.InFlight()
	}
	if h.Credentials != nil {
		ok := h.Credentials.Ping(ctx) == nil
		components["credentials"] = ok
		if !ok {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":         status,
		"components":     components,
		"uptime_seconds": int64(time.Since(h.started).Seconds()),
	})
}

// HealthLive handles GET /health/live
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HealthReady handles GET /health/ready
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if h.Credentials != nil {
		if err := h.Credentials.Ping(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{
				"status": "not_ready",
				"error":  "credential store unavailable: " + err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
