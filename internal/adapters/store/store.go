// Package store defines the persistence contracts the engine runs
// against, plus in-memory, Redis and Postgres backends.
package store

import (
	"context"
	"time"

	"github.com/klupa/klupa/internal/domain/model"
)

// Counter names the per-action user counter bumped alongside a point
// award.
type Counter string

const (
	CounterNone           Counter = ""
	CounterObjectsAdded   Counter = "objects_added"
	CounterReviewsWritten Counter = "reviews_written"
	CounterConfirmations  Counter = "confirmations"
)

// CounterForAction maps an action kind to the user counter it bumps.
func CounterForAction(kind string) Counter {
	switch kind {
	case model.ActionAddObject:
		return CounterObjectsAdded
	case model.ActionAddRating, model.ActionAddReview:
		return CounterReviewsWritten
	case model.ActionConfirmState:
		return CounterConfirmations
	default:
		return CounterNone
	}
}

// UserStore holds the gamification aggregates. AddPoints is the only
// mutation of point totals and MUST be atomic against concurrent award
// calls for the same user: an add primitive, never read-modify-write of
// a cached value.
type UserStore interface {
	// GetUser returns ErrNotFound for unknown ids.
	GetUser(ctx context.Context, id string) (model.User, error)

	// EnsureUser creates a zero-initialized aggregate if absent and
	// returns the current one.
	EnsureUser(ctx context.Context, id string) (model.User, error)

	// AddPoints atomically adds points to the aggregate's points and
	// experience, bumps the interaction counter and the given per-action
	// counter, and returns the updated aggregate.
	AddPoints(ctx context.Context, id string, points int64, counter Counter) (model.User, error)

	// SetRankLevel persists the denormalized rank and level caches.
	SetRankLevel(ctx context.Context, id string, rank string, level int) error

	// Leaderboard returns up to limit users ordered by points
	// descending, ties broken by id ascending.
	Leaderboard(ctx context.Context, limit int) ([]model.User, error)

	// UserCount returns the number of aggregates tracked.
	UserCount(ctx context.Context) int
}

// Ledger is the append-only interaction log. Entries are never
// overwritten or deleted.
type Ledger interface {
	// Append stores the entry, assigning a fresh id and timestamp when
	// absent, and returns the stored entry.
	Append(ctx context.Context, entry model.Interaction) (model.Interaction, error)

	// HasEarned reports whether an entry matches (userID, kind,
	// objectID) exactly. ADD_OBJECT always reports false: object
	// creation dedup is a non-goal of the ledger and rides on each new
	// object carrying a freshly generated id.
	HasEarned(ctx context.Context, userID, kind, objectID string) (bool, error)

	// ForObject returns the entries recorded against one object.
	ForObject(ctx context.Context, objectID string) ([]model.Interaction, error)

	// ForUser returns the entries recorded by one user.
	ForUser(ctx context.Context, userID string) ([]model.Interaction, error)
}

// ObjectStore holds the located records.
type ObjectStore interface {
	PutObject(ctx context.Context, obj model.Object) error
	GetObject(ctx context.Context, id string) (model.Object, error)
	// Objects returns a point-in-time snapshot with no cross-read
	// consistency guarantee.
	Objects(ctx context.Context) ([]model.Object, error)
	// SetObjectState updates the condition and last-updated timestamp.
	SetObjectState(ctx context.Context, id, state string, at time.Time) error
	// SetObjectRating updates the denormalized average rating.
	SetObjectRating(ctx context.Context, id string, rating float64, count int) error
	ObjectCount(ctx context.Context) int
}

// AlertStore holds proximity alert subscriptions.
type AlertStore interface {
	PutAlert(ctx context.Context, alert model.ProximityAlert) error
	DeleteAlert(ctx context.Context, id string) error
	AlertsForUser(ctx context.Context, userID string) ([]model.ProximityAlert, error)
}

// NotificationStore holds the notifications produced for users.
type NotificationStore interface {
	AppendNotification(ctx context.Context, n model.Notification) (model.Notification, error)
	NotificationsForUser(ctx context.Context, userID string) ([]model.Notification, error)
	MarkNotificationRead(ctx context.Context, id string) error
	MarkAllNotificationsRead(ctx context.Context, userID string) error
}

// Store bundles every persistence concern behind one handle.
type Store interface {
	UserStore
	Ledger
	ObjectStore
	AlertStore
	NotificationStore

	Close() error
}
