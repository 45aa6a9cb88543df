package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/klupa/klupa/internal/domain/model"
	"github.com/klupa/klupa/pkg/metrics"
)

// MemStore is the default in-process Store. Point increments happen
// under the write lock against the stored aggregate, never against a
// copy, so concurrent awards cannot lose updates.
type MemStore struct {
	mu            sync.RWMutex
	users         map[string]*model.User
	objects       map[string]*model.Object
	objectOrder   []string
	interactions  []model.Interaction
	earned        map[earnedKey]struct{}
	alerts        map[string]model.ProximityAlert
	notifications map[string]*model.Notification
	notifOrder    []string

	now func() time.Time
}

type earnedKey struct {
	userID   string
	kind     string
	objectID string
}

// MemOption applies a configuration option to the MemStore.
type MemOption func(*MemStore)

// WithClock overrides the wall-clock source, for tests.
func WithClock(now func() time.Time) MemOption {
	return func(s *MemStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewMemStore constructs an empty in-memory store.
func NewMemStore(opts ...MemOption) *MemStore {
	s := &MemStore{
		users:         make(map[string]*model.User),
		objects:       make(map[string]*model.Object),
		earned:        make(map[earnedKey]struct{}),
		alerts:        make(map[string]model.ProximityAlert),
		notifications: make(map[string]*model.Notification),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close implements Store.
func (s *MemStore) Close() error { return nil }

// GetUser implements UserStore.
func (s *MemStore) GetUser(ctx context.Context, id string) (model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return model.User{}, ErrNotFound
	}
	return *u, nil
}

// EnsureUser implements UserStore.
func (s *MemStore) EnsureUser(ctx context.Context, id string) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		now := s.now()
		u = &model.User{
			ID:           id,
			Level:        1,
			CreatedAt:    now,
			LastActivity: now,
		}
		s.users[id] = u
		metrics.UpdateTotalUsers(len(s.users))
	}
	return *u, nil
}

// AddPoints implements UserStore.
func (s *MemStore) AddPoints(ctx context.Context, id string, points int64, counter Counter) (model.User, error) {
	start := time.Now()
	defer func() {
		metrics.RecordStoreUpdateLatency(float64(time.Since(start).Milliseconds()))
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return model.User{}, ErrNotFound
	}

	u.Points += points
	u.Experience += points
	u.Interactions++
	u.LastActivity = s.now()
	switch counter {
	case CounterObjectsAdded:
		u.ObjectsAdded++
	case CounterReviewsWritten:
		u.ReviewsWritten++
	case CounterConfirmations:
		u.Confirmations++
	}
	return *u, nil
}

// SetRankLevel implements UserStore.
func (s *MemStore) SetRankLevel(ctx context.Context, id string, rank string, level int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return ErrNotFound
	}
	u.Rank = rank
	u.Level = level
	return nil
}

// Leaderboard implements UserStore.
func (s *MemStore) Leaderboard(ctx context.Context, limit int) ([]model.User, error) {
	start := time.Now()
	defer func() {
		metrics.RecordStoreQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	if limit < 1 {
		return nil, ErrInvalidLimit
	}

	s.mu.RLock()
	out := make([]model.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, *u)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Points != out[j].Points {
			return out[i].Points > out[j].Points
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// UserCount implements UserStore.
func (s *MemStore) UserCount(ctx context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}

// Append implements Ledger.
func (s *MemStore) Append(ctx context.Context, entry model.Interaction) (model.Interaction, error) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.interactions = append(s.interactions, entry)
	s.earned[earnedKey{entry.UserID, entry.Kind, entry.ObjectID}] = struct{}{}
	return entry, nil
}

// HasEarned implements Ledger.
func (s *MemStore) HasEarned(ctx context.Context, userID, kind, objectID string) (bool, error) {
	if kind == model.ActionAddObject {
		return false, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.earned[earnedKey{userID, kind, objectID}]
	return ok, nil
}

// ForObject implements Ledger.
func (s *MemStore) ForObject(ctx context.Context, objectID string) ([]model.Interaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Interaction
	for _, e := range s.interactions {
		if e.ObjectID == objectID {
			out = append(out, e)
		}
	}
	return out, nil
}

// ForUser implements Ledger.
func (s *MemStore) ForUser(ctx context.Context, userID string) ([]model.Interaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Interaction
	for _, e := range s.interactions {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

// PutObject implements ObjectStore.
func (s *MemStore) PutObject(ctx context.Context, obj model.Object) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.objects[obj.ID]; !ok {
		s.objectOrder = append(s.objectOrder, obj.ID)
	}
	cp := obj
	s.objects[obj.ID] = &cp
	metrics.UpdateTotalObjects(len(s.objects))
	return nil
}

// GetObject implements ObjectStore.
func (s *MemStore) GetObject(ctx context.Context, id string) (model.Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.objects[id]
	if !ok {
		return model.Object{}, ErrNotFound
	}
	return *o, nil
}

// Objects implements ObjectStore. Insertion order is preserved so
// filters stay stable across calls.
func (s *MemStore) Objects(ctx context.Context) ([]model.Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Object, 0, len(s.objectOrder))
	for _, id := range s.objectOrder {
		if o, ok := s.objects[id]; ok {
			out = append(out, *o)
		}
	}
	return out, nil
}

// SetObjectState implements ObjectStore.
func (s *MemStore) SetObjectState(ctx context.Context, id, state string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.objects[id]
	if !ok {
		return ErrNotFound
	}
	o.State = state
	o.UpdatedAt = at
	return nil
}

// SetObjectRating implements ObjectStore.
func (s *MemStore) SetObjectRating(ctx context.Context, id string, rating float64, count int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.objects[id]
	if !ok {
		return ErrNotFound
	}
	o.Rating = rating
	o.RatingCount = count
	return nil
}

// ObjectCount implements ObjectStore.
func (s *MemStore) ObjectCount(ctx context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

// PutAlert implements AlertStore.
func (s *MemStore) PutAlert(ctx context.Context, alert model.ProximityAlert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts[alert.ID] = alert
	return nil
}

// DeleteAlert implements AlertStore.
func (s *MemStore) DeleteAlert(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.alerts[id]; !ok {
		return ErrNotFound
	}
	delete(s.alerts, id)
	return nil
}

// AlertsForUser implements AlertStore.
func (s *MemStore) AlertsForUser(ctx context.Context, userID string) ([]model.ProximityAlert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.ProximityAlert
	for _, a := range s.alerts {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// AppendNotification implements NotificationStore.
func (s *MemStore) AppendNotification(ctx context.Context, n model.Notification) (model.Notification, error) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := n
	s.notifications[n.ID] = &cp
	s.notifOrder = append(s.notifOrder, n.ID)
	return n, nil
}

// NotificationsForUser implements NotificationStore. Most recent first.
func (s *MemStore) NotificationsForUser(ctx context.Context, userID string) ([]model.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Notification
	for i := len(s.notifOrder) - 1; i >= 0; i-- {
		n, ok := s.notifications[s.notifOrder[i]]
		if ok && n.UserID == userID {
			out = append(out, *n)
		}
	}
	return out, nil
}

// MarkNotificationRead implements NotificationStore.
func (s *MemStore) MarkNotificationRead(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.notifications[id]
	if !ok {
		return ErrNotFound
	}
	n.Read = true
	return nil
}

// MarkAllNotificationsRead implements NotificationStore.
func (s *MemStore) MarkAllNotificationsRead(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, n := range s.notifications {
		if n.UserID == userID {
			n.Read = true
		}
	}
	return nil
}
