package api

import (
	"net/http"
	"strings"
)

// UsersHandler handles per-user aggregate routes.
type UsersHandler struct {
	users  UserDependencies
	awards AwardDependencies
}

// NewUsersHandler creates a new users handler.
func NewUsersHandler(deps interface {
	UserDependencies
	AwardDependencies
}) *UsersHandler {
	return &UsersHandler{users: deps, awards: deps}
}

// HandleUserSubroutes dispatches GET /users/{id} plus the
// POST /users/{id}/logins and POST /users/{id}/profile award routes.
func (h *UsersHandler) HandleUserSubroutes(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/users/")
	parts := strings.Split(rest, "/")
	if parts[0] == "" {
		http.NotFound(w, r)
		return
	}
	userID := parts[0]

	switch {
	case len(parts) == 1:
		h.handleGet(w, r, userID)
	case len(parts) == 2 && parts[1] == "logins":
		h.handleDailyLogin(w, r, userID)
	case len(parts) == 2 && parts[1] == "profile":
		h.handleCompleteProfile(w, r, userID)
	default:
		http.NotFound(w, r)
	}
}

func (h *UsersHandler) handleGet(w http.ResponseWriter, r *http.Request, userID string) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	u, err := h.users.UserStats(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *UsersHandler) handleDailyLogin(w http.ResponseWriter, r *http.Request, userID string) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	points, outcome, err := h.awards.RecordDailyLogin(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, awardResponse{Points: points, Outcome: outcome})
}

func (h *UsersHandler) handleCompleteProfile(w http.ResponseWriter, r *http.Request, userID string) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	points, outcome, err := h.awards.CompleteProfile(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, awardResponse{Points: points, Outcome: outcome})
}
