package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/klupa/klupa/internal/domain/model"
)

// AlertsHandler handles proximity alert subscriptions and checks.
type AlertsHandler struct {
	deps AlertDependencies
}

// NewAlertsHandler creates a new alerts handler.
func NewAlertsHandler(deps AlertDependencies) *AlertsHandler {
	return &AlertsHandler{deps: deps}
}

// createAlertRequest mirrors the body of POST /alerts.
type createAlertRequest struct {
	UserID       string  `json:"user_id"`
	ObjectID     string  `json:"object_id"`
	RadiusMeters float64 `json:"radius_meters"`
}

// HandleAlerts handles POST /alerts and GET /alerts?user_id=.
func (h *AlertsHandler) HandleAlerts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.handleCreate(w, r)
	case http.MethodGet:
		h.handleList(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (h *AlertsHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createAlertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	alert, err := h.deps.CreateAlert(r.Context(), req.UserID, req.ObjectID, req.RadiusMeters)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, alert)
}

func (h *AlertsHandler) handleList(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	alerts, err := h.deps.AlertsForUser(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if alerts == nil {
		alerts = []model.ProximityAlert{}
	}
	writeJSON(w, http.StatusOK, alerts)
}

// HandleDeleteAlert handles DELETE /alerts/{id}.
func (h *AlertsHandler) HandleDeleteAlert(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.NotFound(w, r)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/alerts/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	if err := h.deps.DeleteAlert(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// proximityCheckRequest mirrors the body of POST /proximity/check.
type proximityCheckRequest struct {
	UserID    string  `json:"user_id"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// HandleProximityCheck handles POST /proximity/check: it reports which
// subscribed objects are within range of the submitted location.
func (h *AlertsHandler) HandleProximityCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req proximityCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	triggered, err := h.deps.TriggeredAlerts(r.Context(), req.UserID, req.Latitude, req.Longitude)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if triggered == nil {
		triggered = []model.Object{}
	}
	writeJSON(w, http.StatusOK, triggered)
}
