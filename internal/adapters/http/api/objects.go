package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/klupa/klupa/internal/domain/filter"
	"github.com/klupa/klupa/internal/domain/model"
)

// ObjectsHandler handles located-record routes.
type ObjectsHandler struct {
	objects ObjectDependencies
	awards  AwardDependencies
}

// NewObjectsHandler creates a new objects handler.
func NewObjectsHandler(deps interface {
	ObjectDependencies
	AwardDependencies
}) *ObjectsHandler {
	return &ObjectsHandler{objects: deps, awards: deps}
}

// addObjectRequest mirrors the body of POST /objects.
type addObjectRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Kind        string  `json:"kind"`
	State       string  `json:"state"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	UserID      string  `json:"user_id"`
	ImageRef    string  `json:"image_ref"`
}

type addObjectResponse struct {
	Object model.Object `json:"object"`
	Points int          `json:"points"`
}

// HandleObjects handles POST /objects and GET /objects.
func (h *ObjectsHandler) HandleObjects(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.handleAdd(w, r)
	case http.MethodGet:
		h.handleList(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (h *ObjectsHandler) handleAdd(w http.ResponseWriter, r *http.Request) {
	var req addObjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}

	obj, points, err := h.objects.AddObject(r.Context(), model.Object{
		Name:        req.Name,
		Description: req.Description,
		Kind:        req.Kind,
		State:       req.State,
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
		UserID:      req.UserID,
		ImageRef:    req.ImageRef,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, addObjectResponse{Object: obj, Points: points})
}

// handleList handles GET /objects with the filter query parameters
// kind, state, lat, lng, radius, min_rating and q.
func (h *ObjectsHandler) handleList(w http.ResponseWriter, r *http.Request) {
	criteria, err := criteriaFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	records, err := h.objects.FilterObjects(r.Context(), criteria)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if records == nil {
		records = []model.Object{}
	}
	writeJSON(w, http.StatusOK, records)
}

func criteriaFromQuery(r *http.Request) (filter.Criteria, error) {
	q := r.URL.Query()
	c := filter.Criteria{
		Search: q.Get("q"),
	}
	if kinds, ok := q["kind"]; ok {
		c.Kinds = kinds
	}
	if states, ok := q["state"]; ok {
		c.States = states
	}

	latStr, lngStr := q.Get("lat"), q.Get("lng")
	if latStr != "" || lngStr != "" {
		lat, latErr := strconv.ParseFloat(latStr, 64)
		lng, lngErr := strconv.ParseFloat(lngStr, 64)
		radius, radErr := strconv.ParseFloat(q.Get("radius"), 64)
		if latErr != nil || lngErr != nil || radErr != nil || radius <= 0 {
			return filter.Criteria{}, errors.New("lat, lng and radius must be provided together")
		}
		c.HasOrigin = true
		c.OriginLat = lat
		c.OriginLng = lng
		c.RadiusMeters = radius
	}

	if minStr := q.Get("min_rating"); minStr != "" {
		min, err := strconv.ParseFloat(minStr, 64)
		if err != nil {
			return filter.Criteria{}, errors.New("invalid min_rating")
		}
		c.MinRating = min
	}
	return c, nil
}

// HandleObjectSubroutes dispatches /objects/{id} and
// /objects/{id}/{stats|ratings|reports|likes}.
func (h *ObjectsHandler) HandleObjectSubroutes(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/objects/")
	parts := strings.Split(rest, "/")
	if len(parts) == 1 && parts[0] != "" {
		h.handleGet(w, r, parts[0])
		return
	}
	if len(parts) != 2 || parts[0] == "" {
		http.NotFound(w, r)
		return
	}
	objectID, action := parts[0], parts[1]

	switch action {
	case "stats":
		h.handleStats(w, r, objectID)
	case "ratings":
		h.handleRate(w, r, objectID)
	case "reports":
		h.handleReport(w, r, objectID)
	case "likes":
		h.handleLike(w, r, objectID)
	default:
		http.NotFound(w, r)
	}
}

func (h *ObjectsHandler) handleGet(w http.ResponseWriter, r *http.Request, objectID string) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	obj, err := h.objects.GetObject(r.Context(), objectID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, obj)
}

func (h *ObjectsHandler) handleStats(w http.ResponseWriter, r *http.Request, objectID string) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	stats, err := h.objects.ObjectStats(r.Context(), objectID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// rateRequest mirrors the body of POST /objects/{id}/ratings.
type rateRequest struct {
	UserID  string `json:"user_id"`
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

func (h *ObjectsHandler) handleRate(w http.ResponseWriter, r *http.Request, objectID string) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req rateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	points, outcome, err := h.awards.RateObject(r.Context(), req.UserID, objectID, req.Rating, req.Comment)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, awardResponse{Points: points, Outcome: outcome})
}

// reportRequest mirrors the body of POST /objects/{id}/reports.
type reportRequest struct {
	UserID      string `json:"user_id"`
	ProblemKind string `json:"problem_kind"`
	NewState    string `json:"new_state"`
}

func (h *ObjectsHandler) handleReport(w http.ResponseWriter, r *http.Request, objectID string) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req reportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	points, outcome, err := h.awards.ReportProblem(r.Context(), req.UserID, objectID, req.ProblemKind, req.NewState)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, awardResponse{Points: points, Outcome: outcome})
}

// likeRequest mirrors the body of POST /objects/{id}/likes.
type likeRequest struct {
	UserID string `json:"user_id"`
}

func (h *ObjectsHandler) handleLike(w http.ResponseWriter, r *http.Request, objectID string) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req likeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	points, outcome, err := h.awards.LikeObject(r.Context(), req.UserID, objectID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, awardResponse{Points: points, Outcome: outcome})
}
