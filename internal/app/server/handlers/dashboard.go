package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"garagelive/internal/core/domain"
	"garagelive/internal/core/services"
	"garagelive/internal/platform/logger"
	"garagelive/pkg/middleware"
)

// DashboardHandler exposes the bay/queue producer routes. The REST write
// succeeds or fails on the repository alone; broadcast fan-out is
// best-effort and never blocks the response.
type DashboardHandler struct {
	dashboard *services.DashboardService
}

func NewDashboardHandler(dashboard *services.DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboard: dashboard}
}

type bayStatusRequest struct {
	Status                  string     `json:"status"`
	AppointmentID           *int64     `json:"appointment_id"`
	MechanicID              *int64     `json:"mechanic_id"`
	ServiceType             string     `json:"service_type"`
	EstimatedCompletionTime *time.Time `json:"estimated_completion_time"`
}

func (h *DashboardHandler) UpdateBayStatus(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	identity := middleware.IdentityFromContext(r.Context())
	if !identity.CanUpdateProgress() {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	bayID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid bay id", http.StatusBadRequest)
		return
	}
	var req bayStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Status == "" {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	bay := &domain.ServiceBay{
		ID:                      bayID,
		Status:                  req.Status,
		AppointmentID:           req.AppointmentID,
		MechanicID:              req.MechanicID,
		ServiceType:             req.ServiceType,
		EstimatedCompletionTime: req.EstimatedCompletionTime,
	}
	if err := h.dashboard.UpdateBayStatus(r.Context(), bay); err != nil {
		if errors.Is(err, domain.ErrBayNotFound) {
			http.Error(w, "bay not found", http.StatusNotFound)
			return
		}
		log.ErrorContext(r.Context(), "dashboard handler - update bay status failed", "bay_id", bayID, "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type queueStatusRequest struct {
	AppointmentID int64  `json:"appointment_id"`
	Status        string `json:"status"`
	Position      int    `json:"position"`
}

func (h *DashboardHandler) UpdateQueueStatus(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())
	if !identity.CanUpdateProgress() {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	var req queueStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AppointmentID == 0 || req.Status == "" {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	entry := &domain.QueueEntry{
		AppointmentID: req.AppointmentID,
		Status:        req.Status,
		Position:      req.Position,
	}
	if err := h.dashboard.UpdateQueueStatus(r.Context(), entry); err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Queue serves the initial REST fetch clients make before subscribing.
func (h *DashboardHandler) Queue(w http.ResponseWriter, r *http.Request) {
	entries, err := h.dashboard.Queue(r.Context())
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	type entryResponse struct {
		AppointmentID int64     `json:"appointment_id"`
		Status        string    `json:"status"`
		Position      int       `json:"position"`
		UpdatedAt     time.Time `json:"updated_at"`
	}
	out := make([]entryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, entryResponse{
			AppointmentID: e.AppointmentID,
			Status:        e.Status,
			Position:      e.Position,
			UpdatedAt:     e.UpdatedAt,
		})
	}
	_ = json.NewEncoder(w).Encode(out)
}
