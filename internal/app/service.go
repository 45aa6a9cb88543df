// Package service provides the core business service that implements
// the dependencies required by the HTTP API: point awards, geo
// filtering, proximity alerts and the read projections.
package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	notifqueue "github.com/klupa/klupa/internal/adapters/mq/queue"
	workerpool "github.com/klupa/klupa/internal/adapters/mq/worker"
	"github.com/klupa/klupa/internal/adapters/store"
	"github.com/klupa/klupa/internal/domain/catalog"
	"github.com/klupa/klupa/internal/domain/filter"
	"github.com/klupa/klupa/internal/domain/geo"
	"github.com/klupa/klupa/internal/domain/model"
	"github.com/klupa/klupa/internal/domain/rank"
	"github.com/klupa/klupa/pkg/logger"
	"github.com/klupa/klupa/pkg/metrics"
)

// Outcome classifies what an award attempt did.
type Outcome string

const (
	// OutcomeAwarded means points were granted and the ledger written.
	OutcomeAwarded Outcome = "awarded"
	// OutcomeAlreadyRewarded means the (user, action, target) triple was
	// already in the ledger; nothing changed.
	OutcomeAlreadyRewarded Outcome = "already_rewarded"
	// OutcomeNoOp means the action kind carries no points.
	OutcomeNoOp Outcome = "no_op"
)

// Default service configuration constants.
const (
	defaultWorkerCount = 4
	defaultQueueSize   = 10000
)

// Service wires the stores, the point catalog and the notification
// outbox into the operations the HTTP API exposes.
type Service struct {
	mu sync.RWMutex

	store  store.Store
	outbox notifqueue.Queue
	pool   *workerpool.Pool

	workerCount int
	queueSize   int

	started bool
	now     func() time.Time

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the persistence backend. Defaults to the in-memory
// store when unset.
func WithStore(st store.Store) Option {
	return func(s *Service) {
		if st != nil {
			s.store = st
		}
	}
}

// WithWorkerCount sets the number of notification delivery workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the notification outbox.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the wall-clock source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New constructs a Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount: defaultWorkerCount,
		queueSize:   defaultQueueSize,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start initializes the backend, the outbox and the delivery pool.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	if s.store == nil {
		s.store = store.NewMemStore()
		s.logger.Info(ctx, "using in-memory store")
	}

	s.outbox = notifqueue.NewInMemoryQueue(
		notifqueue.WithCapacity(s.queueSize),
		notifqueue.WithBufferSize(s.queueSize),
	)
	s.pool = workerpool.NewPool(s.workerCount, s.outbox, s.store)
	s.pool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
	)
	return nil
}

// Stop drains the outbox and closes the backend.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx := context.Background()
	s.logger.Info(ctx, "stopping service...")

	if s.pool != nil {
		_ = s.pool.Shutdown(ctx)
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Error(ctx, "error closing store", logger.Error(err))
		}
	}

	s.started = false
	s.logger.Info(ctx, "service stopped")
}

// AwardPoints runs one award attempt for a (user, action, target)
// triple. Duplicate non-repeatable actions return zero points with
// OutcomeAlreadyRewarded; unknown actions return zero points with
// OutcomeNoOp. Failures before the point commit leave no trace and are
// safe to retry.
func (s *Service) AwardPoints(ctx context.Context, userID, kind, targetID string, meta catalog.Metadata) (int, Outcome, error) {
	return s.award(ctx, model.Interaction{
		UserID:   userID,
		ObjectID: targetID,
		Kind:     kind,
	}, meta)
}

// award is the single write path for points. The entry carries the
// detail fields the ledger should keep; points and outcome are decided
// here. The check-then-append window means two racing calls for the
// same triple can both be granted; the ledger then holds two entries
// and the totals reflect both.
func (s *Service) award(ctx context.Context, entry model.Interaction, meta catalog.Metadata) (int, Outcome, error) {
	if entry.UserID == "" {
		return 0, "", ErrMissingUser
	}

	earned, err := s.store.HasEarned(ctx, entry.UserID, entry.Kind, entry.ObjectID)
	if err != nil {
		return 0, "", fmt.Errorf("dedup check: %w", err)
	}
	if earned {
		metrics.RecordAwardDuplicate()
		return 0, OutcomeAlreadyRewarded, nil
	}

	points := catalog.PointsFor(entry.Kind, meta)
	if points <= 0 {
		metrics.RecordAwardNoOp()
		return 0, OutcomeNoOp, nil
	}

	if _, err := s.store.EnsureUser(ctx, entry.UserID); err != nil {
		return 0, "", fmt.Errorf("ensure user %s: %w", entry.UserID, err)
	}

	u, err := s.store.AddPoints(ctx, entry.UserID, int64(points), store.CounterForAction(entry.Kind))
	if err != nil {
		return 0, "", fmt.Errorf("add points for %s: %w", entry.UserID, err)
	}
	metrics.RecordAwardGranted(points)

	// Points are committed; everything below is best-effort.
	newRank := rank.RankFor(u.Points)
	newLevel := catalog.LevelForExperience(u.Experience)
	if newRank != u.Rank || newLevel != u.Level {
		if err := s.store.SetRankLevel(ctx, entry.UserID, newRank, newLevel); err != nil {
			metrics.RecordRankUpdateError()
			s.logger.Error(ctx, "rank update failed",
				logger.String("userID", entry.UserID),
				logger.Error(err),
			)
		}
	}

	entry.PointsAwarded = points
	if _, err := s.store.Append(ctx, entry); err != nil {
		metrics.RecordLedgerAppendError()
		s.logger.Error(ctx, "ledger append failed",
			logger.String("userID", entry.UserID),
			logger.String("kind", entry.Kind),
			logger.Error(err),
		)
	}

	return points, OutcomeAwarded, nil
}

// HasEarned reports whether the triple is already in the ledger.
func (s *Service) HasEarned(ctx context.Context, userID, kind, targetID string) (bool, error) {
	return s.store.HasEarned(ctx, userID, kind, targetID)
}

// AddObject validates and stores a new located record, then awards the
// creation points. Returns the stored object and the points granted.
func (s *Service) AddObject(ctx context.Context, obj model.Object) (model.Object, int, error) {
	if obj.UserID == "" {
		return model.Object{}, 0, ErrMissingUser
	}
	if strings.TrimSpace(obj.Name) == "" {
		return model.Object{}, 0, ErrMissingName
	}
	if !geo.ValidCoordinate(obj.Latitude, obj.Longitude) {
		return model.Object{}, 0, ErrInvalidCoordinate
	}
	if !validKind(obj.Kind) {
		return model.Object{}, 0, ErrInvalidKind
	}
	if obj.State == "" {
		obj.State = model.StateWorking
	}
	if !validState(obj.State) {
		return model.Object{}, 0, ErrInvalidState
	}

	obj.ID = uuid.NewString()
	obj.Rating = 0
	obj.RatingCount = 0
	obj.CreatedAt = s.now()
	obj.UpdatedAt = obj.CreatedAt
	if err := s.store.PutObject(ctx, obj); err != nil {
		return model.Object{}, 0, fmt.Errorf("store object: %w", err)
	}

	points, _, err := s.award(ctx, model.Interaction{
		UserID:   obj.UserID,
		ObjectID: obj.ID,
		Kind:     model.ActionAddObject,
	}, catalog.Metadata{})
	if err != nil {
		// The object is stored; losing the award is recoverable noise.
		s.logger.Error(ctx, "creation award failed",
			logger.String("objectID", obj.ID),
			logger.Error(err),
		)
	}
	return obj, points, nil
}

// RateObject records a rating, with an optional review comment, and
// awards the matching points. A non-empty comment upgrades the action
// from a plain rating to a review with a length bonus. The object's
// denormalized average is refreshed after a granted award.
func (s *Service) RateObject(ctx context.Context, userID, objectID string, rating int, comment string) (int, Outcome, error) {
	if rating < 1 || rating > 5 {
		return 0, "", ErrInvalidRating
	}
	if _, err := s.store.GetObject(ctx, objectID); err != nil {
		return 0, "", err
	}

	kind := model.ActionAddRating
	meta := catalog.Metadata{Rating: rating}
	if strings.TrimSpace(comment) != "" {
		kind = model.ActionAddReview
		meta.ReviewLength = len(comment)
	}

	points, outcome, err := s.award(ctx, model.Interaction{
		UserID:   userID,
		ObjectID: objectID,
		Kind:     kind,
		Rating:   rating,
		Comment:  comment,
	}, meta)
	if err != nil || outcome != OutcomeAwarded {
		return points, outcome, err
	}

	s.refreshObjectRating(ctx, objectID)
	return points, outcome, nil
}

// refreshObjectRating recomputes the denormalized average from the
// ledger. Failures degrade the cached average, never the award.
func (s *Service) refreshObjectRating(ctx context.Context, objectID string) {
	entries, err := s.store.ForObject(ctx, objectID)
	if err != nil {
		s.logger.Warn(ctx, "rating refresh read failed",
			logger.String("objectID", objectID),
			logger.Error(err),
		)
		return
	}
	var sum, count int
	for _, e := range entries {
		if e.Rating > 0 {
			sum += e.Rating
			count++
		}
	}
	if count == 0 {
		return
	}
	avg := float64(sum) / float64(count)
	if err := s.store.SetObjectRating(ctx, objectID, avg, count); err != nil {
		s.logger.Warn(ctx, "rating refresh write failed",
			logger.String("objectID", objectID),
			logger.Error(err),
		)
	}
}

// ReportProblem records a problem report against an object, optionally
// moving it to a new state, and awards the confirmation points.
func (s *Service) ReportProblem(ctx context.Context, userID, objectID, problemKind, newState string) (int, Outcome, error) {
	if _, err := s.store.GetObject(ctx, objectID); err != nil {
		return 0, "", err
	}
	if newState != "" {
		if !validState(newState) {
			return 0, "", ErrInvalidState
		}
		if err := s.store.SetObjectState(ctx, objectID, newState, s.now()); err != nil {
			return 0, "", fmt.Errorf("update state: %w", err)
		}
	}

	return s.award(ctx, model.Interaction{
		UserID:      userID,
		ObjectID:    objectID,
		Kind:        model.ActionConfirmState,
		ProblemKind: problemKind,
		State:       newState,
	}, catalog.Metadata{ProblemKind: problemKind})
}

// LikeObject records a like and awards its points.
func (s *Service) LikeObject(ctx context.Context, userID, objectID string) (int, Outcome, error) {
	if _, err := s.store.GetObject(ctx, objectID); err != nil {
		return 0, "", err
	}
	return s.award(ctx, model.Interaction{
		UserID:   userID,
		ObjectID: objectID,
		Kind:     model.ActionLikeObject,
	}, catalog.Metadata{})
}

// RecordDailyLogin awards the daily login bonus at most once per
// calendar day; the day doubles as the dedup target.
func (s *Service) RecordDailyLogin(ctx context.Context, userID string) (int, Outcome, error) {
	day := s.now().UTC().Format("2006-01-02")
	return s.award(ctx, model.Interaction{
		UserID:   userID,
		ObjectID: "day:" + day,
		Kind:     model.ActionDailyLogin,
	}, catalog.Metadata{})
}

// CompleteProfile awards the one-time profile completion bonus.
func (s *Service) CompleteProfile(ctx context.Context, userID string) (int, Outcome, error) {
	return s.award(ctx, model.Interaction{
		UserID:   userID,
		ObjectID: "profile",
		Kind:     model.ActionCompleteProfile,
	}, catalog.Metadata{})
}

// GetObject returns one located record.
func (s *Service) GetObject(ctx context.Context, id string) (model.Object, error) {
	return s.store.GetObject(ctx, id)
}

// FilterObjects returns the objects matching the criteria, in stored
// order.
func (s *Service) FilterObjects(ctx context.Context, c filter.Criteria) ([]model.Object, error) {
	start := time.Now()
	defer func() {
		metrics.RecordFilterLatency(float64(time.Since(start).Milliseconds()))
	}()

	records, err := s.store.Objects(ctx)
	if err != nil {
		return nil, fmt.Errorf("object snapshot: %w", err)
	}
	return filter.Apply(records, c), nil
}

// UserStats returns the gamification aggregate for one user.
func (s *Service) UserStats(ctx context.Context, userID string) (model.User, error) {
	return s.store.GetUser(ctx, userID)
}

// Leaderboard returns the top users by points.
func (s *Service) Leaderboard(ctx context.Context, limit int) ([]model.User, error) {
	return s.store.Leaderboard(ctx, limit)
}

// ObjectStats summarizes the ledger entries recorded against an object.
func (s *Service) ObjectStats(ctx context.Context, objectID string) (model.ObjectStats, error) {
	if _, err := s.store.GetObject(ctx, objectID); err != nil {
		return model.ObjectStats{}, err
	}
	entries, err := s.store.ForObject(ctx, objectID)
	if err != nil {
		return model.ObjectStats{}, fmt.Errorf("ledger read: %w", err)
	}

	var stats model.ObjectStats
	var ratingSum int
	for _, e := range entries {
		switch e.Kind {
		case model.ActionAddRating, model.ActionAddReview:
			if e.Rating > 0 {
				stats.TotalRatings++
				ratingSum += e.Rating
			}
		case model.ActionConfirmState:
			stats.TotalReports++
		case model.ActionLikeObject:
			stats.TotalLikes++
		}
		if e.CreatedAt.After(stats.LastInteraction) {
			stats.LastInteraction = e.CreatedAt
		}
	}
	if stats.TotalRatings > 0 {
		stats.AverageRating = float64(ratingSum) / float64(stats.TotalRatings)
	}
	return stats, nil
}

// CreateAlert subscribes a user to proximity notifications for one
// object. A non-positive radius falls back to the default.
func (s *Service) CreateAlert(ctx context.Context, userID, objectID string, radiusMeters float64) (model.ProximityAlert, error) {
	if userID == "" {
		return model.ProximityAlert{}, ErrMissingUser
	}
	obj, err := s.store.GetObject(ctx, objectID)
	if err != nil {
		return model.ProximityAlert{}, err
	}
	if radiusMeters <= 0 {
		radiusMeters = model.DefaultAlertRadiusMeters
	}

	alert := model.ProximityAlert{
		ID:           uuid.NewString(),
		UserID:       userID,
		ObjectID:     obj.ID,
		ObjectName:   obj.Name,
		ObjectKind:   obj.Kind,
		RadiusMeters: radiusMeters,
		Enabled:      true,
		CreatedAt:    s.now(),
	}
	if err := s.store.PutAlert(ctx, alert); err != nil {
		return model.ProximityAlert{}, fmt.Errorf("store alert: %w", err)
	}
	return alert, nil
}

// DeleteAlert removes a subscription.
func (s *Service) DeleteAlert(ctx context.Context, id string) error {
	return s.store.DeleteAlert(ctx, id)
}

// AlertsForUser lists a user's subscriptions.
func (s *Service) AlertsForUser(ctx context.Context, userID string) ([]model.ProximityAlert, error) {
	return s.store.AlertsForUser(ctx, userID)
}

// TriggeredAlerts checks the user's enabled alerts against a location
// and returns the objects within each alert's own radius. Every
// trigger emits a notification through the outbox; the caller's check
// cadence is the only rate limit.
func (s *Service) TriggeredAlerts(ctx context.Context, userID string, lat, lng float64) ([]model.Object, error) {
	if !geo.ValidCoordinate(lat, lng) {
		return nil, ErrInvalidCoordinate
	}
	alerts, err := s.store.AlertsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("alerts for %s: %w", userID, err)
	}

	var triggered []model.Object
	for _, alert := range alerts {
		if !alert.Enabled {
			continue
		}
		obj, err := s.store.GetObject(ctx, alert.ObjectID)
		if err != nil {
			// The object may have been removed after subscription.
			continue
		}
		radius := alert.RadiusMeters
		if radius <= 0 {
			radius = model.DefaultAlertRadiusMeters
		}
		dist := geo.DistanceMeters(lat, lng, obj.Latitude, obj.Longitude)
		if dist > radius {
			continue
		}

		metrics.RecordAlertTriggered()
		triggered = append(triggered, obj)
		s.notify(ctx, model.Notification{
			UserID:   userID,
			Title:    obj.Name + " is nearby",
			Message:  fmt.Sprintf("%s is about %.0f m away", obj.Name, dist),
			Kind:     "PROXIMITY_ALERT",
			ObjectID: obj.ID,
		})
	}
	return triggered, nil
}

// notify hands a notification to the outbox. Fire and forget: a full
// or closed outbox drops the notification with a log line.
func (s *Service) notify(ctx context.Context, n model.Notification) {
	if s.outbox == nil {
		return
	}
	if !s.outbox.Enqueue(ctx, n) {
		s.logger.Warn(ctx, "notification dropped",
			logger.String("userID", n.UserID),
			logger.String("kind", n.Kind),
		)
	}
}

// NotificationsForUser lists a user's stored notifications, most
// recent first.
func (s *Service) NotificationsForUser(ctx context.Context, userID string) ([]model.Notification, error) {
	return s.store.NotificationsForUser(ctx, userID)
}

// MarkNotificationRead flips one notification to read.
func (s *Service) MarkNotificationRead(ctx context.Context, id string) error {
	return s.store.MarkNotificationRead(ctx, id)
}

// MarkAllNotificationsRead flips a user's whole inbox to read.
func (s *Service) MarkAllNotificationsRead(ctx context.Context, userID string) error {
	return s.store.MarkAllNotificationsRead(ctx, userID)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
	}
	if s.started {
		users := s.store.UserCount(ctx)
		objects := s.store.ObjectCount(ctx)
		pending := s.outbox.Len(ctx)

		stats["totalUsers"] = users
		stats["totalObjects"] = objects
		stats["pendingNotifications"] = pending

		metrics.UpdateTotalUsers(users)
		metrics.UpdateTotalObjects(objects)
		metrics.UpdateQueueSize(pending)
	}
	return stats
}

func validKind(kind string) bool {
	switch kind {
	case model.KindBench, model.KindFountain:
		return true
	}
	return false
}

func validState(state string) bool {
	switch state {
	case model.StateWorking, model.StateDamaged, model.StateBroken,
		model.StateMissing, model.StateMaintenance:
		return true
	}
	return false
}
