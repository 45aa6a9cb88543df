// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/klupa/klupa/internal/adapters/store"
	service "github.com/klupa/klupa/internal/app"
	"github.com/klupa/klupa/internal/domain/catalog"
	"github.com/klupa/klupa/internal/domain/filter"
	"github.com/klupa/klupa/internal/domain/model"
)

// Dependencies required by HTTP handlers. Using an interface bundle
// keeps the handler layer loosely coupled to implementations in other
// packages.
type Dependencies interface {
	ObjectDependencies
	AwardDependencies
	LeaderboardDependencies
	UserDependencies
	AlertDependencies
	NotificationDependencies
}

// ObjectDependencies covers the located-record operations.
type ObjectDependencies interface {
	AddObject(ctx context.Context, obj model.Object) (model.Object, int, error)
	FilterObjects(ctx context.Context, c filter.Criteria) ([]model.Object, error)
	GetObject(ctx context.Context, id string) (model.Object, error)
	ObjectStats(ctx context.Context, objectID string) (model.ObjectStats, error)
}

// AwardDependencies covers the point-earning interactions.
type AwardDependencies interface {
	RateObject(ctx context.Context, userID, objectID string, rating int, comment string) (int, service.Outcome, error)
	ReportProblem(ctx context.Context, userID, objectID, problemKind, newState string) (int, service.Outcome, error)
	LikeObject(ctx context.Context, userID, objectID string) (int, service.Outcome, error)
	RecordDailyLogin(ctx context.Context, userID string) (int, service.Outcome, error)
	CompleteProfile(ctx context.Context, userID string) (int, service.Outcome, error)
	AwardPoints(ctx context.Context, userID, kind, targetID string, meta catalog.Metadata) (int, service.Outcome, error)
}

// LeaderboardDependencies covers the ranking read side.
type LeaderboardDependencies interface {
	Leaderboard(ctx context.Context, limit int) ([]model.User, error)
}

// UserDependencies covers the per-user aggregate read side.
type UserDependencies interface {
	UserStats(ctx context.Context, userID string) (model.User, error)
}

// AlertDependencies covers proximity alert subscriptions and checks.
type AlertDependencies interface {
	CreateAlert(ctx context.Context, userID, objectID string, radiusMeters float64) (model.ProximityAlert, error)
	DeleteAlert(ctx context.Context, id string) error
	AlertsForUser(ctx context.Context, userID string) ([]model.ProximityAlert, error)
	TriggeredAlerts(ctx context.Context, userID string, lat, lng float64) ([]model.Object, error)
}

// NotificationDependencies covers the stored notification reads.
type NotificationDependencies interface {
	NotificationsForUser(ctx context.Context, userID string) ([]model.Notification, error)
	MarkNotificationRead(ctx context.Context, id string) error
	MarkAllNotificationsRead(ctx context.Context, userID string) error
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler        *HealthHandler
	statsHandler         *StatsHandler
	objectsHandler       *ObjectsHandler
	leaderboardHandler   *LeaderboardHandler
	usersHandler         *UsersHandler
	alertsHandler        *AlertsHandler
	notificationsHandler *NotificationsHandler
}

// ServerOption customizes the server during construction.
type ServerOption func(*Server)

// WithMaxLeaderboardLimit caps GET /leaderboard?limit.
func WithMaxLeaderboardLimit(limit int) ServerOption {
	return func(s *Server) {
		if limit > 0 {
			s.leaderboardHandler.maxLimit = limit
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...ServerOption) *Server {
	s := &Server{
		healthHandler:        NewHealthHandler(),
		statsHandler:         NewStatsHandler(statsProvider),
		objectsHandler:       NewObjectsHandler(deps),
		leaderboardHandler:   NewLeaderboardHandler(deps, defaultMaxLeaderboardLimit),
		usersHandler:         NewUsersHandler(deps),
		alertsHandler:        NewAlertsHandler(deps),
		notificationsHandler: NewNotificationsHandler(deps),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/objects", MetricsMiddleware(s.objectsHandler.HandleObjects, "objects"))
	mux.HandleFunc("/objects/", MetricsMiddleware(s.objectsHandler.HandleObjectSubroutes, "objects"))
	mux.HandleFunc("/leaderboard", MetricsMiddleware(s.leaderboardHandler.HandleGetLeaderboard, "leaderboard"))
	mux.HandleFunc("/users/", MetricsMiddleware(s.usersHandler.HandleUserSubroutes, "users"))
	mux.HandleFunc("/alerts", MetricsMiddleware(s.alertsHandler.HandleAlerts, "alerts"))
	mux.HandleFunc("/alerts/", MetricsMiddleware(s.alertsHandler.HandleDeleteAlert, "alerts"))
	mux.HandleFunc("/proximity/check", MetricsMiddleware(s.alertsHandler.HandleProximityCheck, "proximity"))
	mux.HandleFunc("/notifications", MetricsMiddleware(s.notificationsHandler.HandleList, "notifications"))
	mux.HandleFunc("/notifications/read-all", MetricsMiddleware(s.notificationsHandler.HandleReadAll, "notifications"))
	mux.HandleFunc("/notifications/", MetricsMiddleware(s.notificationsHandler.HandleMarkRead, "notifications"))
}

// awardResponse is the shared shape for endpoints that may grant
// points.
type awardResponse struct {
	Points  int             `json:"points"`
	Outcome service.Outcome `json:"outcome"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeServiceError maps domain errors onto status codes: missing
// records become 404, validation failures 400, everything else 500.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case isValidationError(err):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}

func isValidationError(err error) bool {
	for _, sentinel := range []error{
		service.ErrInvalidCoordinate,
		service.ErrInvalidKind,
		service.ErrInvalidState,
		service.ErrInvalidRating,
		service.ErrMissingName,
		service.ErrMissingUser,
		store.ErrInvalidLimit,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}
