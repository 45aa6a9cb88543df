// Package model contains domain models passed between layers.
package model

import "time"

// Object kinds. The set is closed at the API boundary but stored as a
// string so new kinds do not require a migration.
const (
	KindBench    = "BENCH"
	KindFountain = "FOUNTAIN"
)

// Object states.
const (
	StateWorking     = "WORKING"
	StateDamaged     = "DAMAGED"
	StateBroken      = "BROKEN"
	StateMissing     = "MISSING"
	StateMaintenance = "MAINTENANCE"
)

// Action kinds recorded in the interaction ledger. Each kind maps to a
// base point value in the catalog package.
const (
	ActionAddObject       = "ADD_OBJECT"
	ActionAddReview       = "ADD_REVIEW"
	ActionAddRating       = "ADD_RATING"
	ActionConfirmState    = "CONFIRM_STATE"
	ActionLikeObject      = "LIKE_OBJECT"
	ActionDailyLogin      = "DAILY_LOGIN"
	ActionCompleteProfile = "COMPLETE_PROFILE"
)

// User is the gamification aggregate for one account. Points are the
// source of truth; Rank and Level are denormalized caches recomputed on
// every point change. Mutated exclusively through the award path.
type User struct {
	ID             string    `json:"id"`
	Username       string    `json:"username,omitempty"`
	Points         int64     `json:"points"`
	Experience     int64     `json:"experience"`
	Level          int       `json:"level"`
	Rank           string    `json:"rank"`
	ObjectsAdded   int64     `json:"objects_added"`
	ReviewsWritten int64     `json:"reviews_written"`
	Confirmations  int64     `json:"confirmations"`
	Interactions   int64     `json:"interactions"`
	CreatedAt      time.Time `json:"created_at"`
	LastActivity   time.Time `json:"last_activity"`
}

// Object is a located public amenity placed on the map by a user.
type Object struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Kind        string    `json:"kind"`
	State       string    `json:"state"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	UserID      string    `json:"user_id"`
	ImageRef    string    `json:"image_ref,omitempty"`
	Rating      float64   `json:"rating"`
	RatingCount int       `json:"rating_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Interaction is one immutable ledger entry: a user action against a
// target object and the points it earned. The (UserID, Kind, ObjectID)
// triple doubles as the dedup index for non-repeatable actions.
type Interaction struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	ObjectID      string    `json:"object_id"`
	Kind          string    `json:"kind"`
	Rating        int       `json:"rating,omitempty"`
	Comment       string    `json:"comment,omitempty"`
	ProblemKind   string    `json:"problem_kind,omitempty"`
	State         string    `json:"state,omitempty"`
	PointsAwarded int       `json:"points_awarded"`
	CreatedAt     time.Time `json:"created_at"`
}

// ProximityAlert is a user subscription asking to be notified when a
// chosen object is within RadiusMeters of the user's location. Object
// name and kind are denormalized for display without a join.
type ProximityAlert struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	ObjectID     string    `json:"object_id"`
	ObjectName   string    `json:"object_name"`
	ObjectKind   string    `json:"object_kind"`
	RadiusMeters float64   `json:"radius_meters"`
	Enabled      bool      `json:"enabled"`
	CreatedAt    time.Time `json:"created_at"`
}

// DefaultAlertRadiusMeters is applied when an alert is created without
// an explicit radius.
const DefaultAlertRadiusMeters = 100.0

// Notification is a message produced for a user, e.g. by a triggered
// proximity alert. Delivery channels are out of scope; this is the
// stored record the UI reads.
type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Kind      string    `json:"kind"`
	ObjectID  string    `json:"object_id,omitempty"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

// ObjectStats summarizes the ledger entries recorded against one object.
type ObjectStats struct {
	TotalRatings    int       `json:"total_ratings"`
	AverageRating   float64   `json:"average_rating"`
	TotalReports    int       `json:"total_reports"`
	TotalLikes      int       `json:"total_likes"`
	LastInteraction time.Time `json:"last_interaction"`
}
