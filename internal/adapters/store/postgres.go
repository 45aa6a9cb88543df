package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/klupa/klupa/internal/domain/model"
	"github.com/klupa/klupa/pkg/metrics"
)

// PostgresStore persists everything in Postgres. Point totals are only
// ever changed with a relative UPDATE so concurrent awards serialize on
// the row lock instead of clobbering each other.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens the connection, verifies it and creates the
// schema if missing.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	s := &PostgresStore{db: db}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) initSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS users (
		id              TEXT PRIMARY KEY,
		username        TEXT NOT NULL DEFAULT '',
		points          BIGINT NOT NULL DEFAULT 0,
		experience      BIGINT NOT NULL DEFAULT 0,
		level           INT NOT NULL DEFAULT 1,
		rank            TEXT NOT NULL DEFAULT '',
		objects_added   BIGINT NOT NULL DEFAULT 0,
		reviews_written BIGINT NOT NULL DEFAULT 0,
		confirmations   BIGINT NOT NULL DEFAULT 0,
		interactions    BIGINT NOT NULL DEFAULT 0,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
		last_activity   TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	CREATE INDEX IF NOT EXISTS idx_users_points ON users (points DESC, id ASC);

	CREATE TABLE IF NOT EXISTS interactions (
		id             TEXT PRIMARY KEY,
		user_id        TEXT NOT NULL,
		object_id      TEXT NOT NULL,
		kind           TEXT NOT NULL,
		rating         INT NOT NULL DEFAULT 0,
		comment        TEXT NOT NULL DEFAULT '',
		problem_kind   TEXT NOT NULL DEFAULT '',
		state          TEXT NOT NULL DEFAULT '',
		points_awarded INT NOT NULL DEFAULT 0,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	CREATE INDEX IF NOT EXISTS idx_interactions_dedup ON interactions (user_id, kind, object_id);
	CREATE INDEX IF NOT EXISTS idx_interactions_object ON interactions (object_id);
	CREATE INDEX IF NOT EXISTS idx_interactions_user ON interactions (user_id);

	CREATE TABLE IF NOT EXISTS objects (
		id           TEXT PRIMARY KEY,
		name         TEXT NOT NULL,
		description  TEXT NOT NULL DEFAULT '',
		kind         TEXT NOT NULL,
		state        TEXT NOT NULL,
		latitude     DOUBLE PRECISION NOT NULL,
		longitude    DOUBLE PRECISION NOT NULL,
		user_id      TEXT NOT NULL,
		image_ref    TEXT NOT NULL DEFAULT '',
		rating       DOUBLE PRECISION NOT NULL DEFAULT 0,
		rating_count INT NOT NULL DEFAULT 0,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE TABLE IF NOT EXISTS alerts (
		id            TEXT PRIMARY KEY,
		user_id       TEXT NOT NULL,
		object_id     TEXT NOT NULL,
		object_name   TEXT NOT NULL DEFAULT '',
		object_kind   TEXT NOT NULL DEFAULT '',
		radius_meters DOUBLE PRECISION NOT NULL,
		enabled       BOOLEAN NOT NULL DEFAULT TRUE,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	CREATE INDEX IF NOT EXISTS idx_alerts_user ON alerts (user_id);

	CREATE TABLE IF NOT EXISTS notifications (
		id         TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL,
		title      TEXT NOT NULL DEFAULT '',
		message    TEXT NOT NULL DEFAULT '',
		kind       TEXT NOT NULL DEFAULT '',
		object_id  TEXT NOT NULL DEFAULT '',
		read       BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications (user_id, created_at DESC);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("postgres: init schema: %w", err)
	}
	return nil
}

// Close implements Store.
func (s *PostgresStore) Close() error { return s.db.Close() }

const userColumns = `id, username, points, experience, level, rank,
	objects_added, reviews_written, confirmations, interactions,
	created_at, last_activity`

func scanUser(row *sql.Row) (model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Username, &u.Points, &u.Experience, &u.Level,
		&u.Rank, &u.ObjectsAdded, &u.ReviewsWritten, &u.Confirmations,
		&u.Interactions, &u.CreatedAt, &u.LastActivity)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("postgres: scan user: %w", err)
	}
	return u, nil
}

// GetUser implements UserStore.
func (s *PostgresStore) GetUser(ctx context.Context, id string) (model.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// EnsureUser implements UserStore.
func (s *PostgresStore) EnsureUser(ctx context.Context, id string) (model.User, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO users (id) VALUES ($1)
		ON CONFLICT (id) DO UPDATE SET id = EXCLUDED.id
		RETURNING `+userColumns, id)
	return scanUser(row)
}

// AddPoints implements UserStore.
func (s *PostgresStore) AddPoints(ctx context.Context, id string, points int64, counter Counter) (model.User, error) {
	start := time.Now()
	defer func() {
		metrics.RecordStoreUpdateLatency(float64(time.Since(start).Milliseconds()))
	}()

	// counter is one of the fixed Counter constants, never caller input.
	counterSet := ""
	switch counter {
	case CounterObjectsAdded, CounterReviewsWritten, CounterConfirmations:
		counterSet = fmt.Sprintf(", %s = %s + 1", counter, counter)
	}

	row := s.db.QueryRowContext(ctx, `
		UPDATE users SET
			points = points + $2,
			experience = experience + $2,
			interactions = interactions + 1,
			last_activity = now()`+counterSet+`
		WHERE id = $1
		RETURNING `+userColumns, id, points)
	return scanUser(row)
}

// SetRankLevel implements UserStore.
func (s *PostgresStore) SetRankLevel(ctx context.Context, id string, rank string, level int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET rank = $2, level = $3 WHERE id = $1`, id, rank, level)
	if err != nil {
		return fmt.Errorf("postgres: set rank %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Leaderboard implements UserStore.
func (s *PostgresStore) Leaderboard(ctx context.Context, limit int) ([]model.User, error) {
	if limit < 1 {
		return nil, ErrInvalidLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY points DESC, id ASC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: leaderboard: %w", err)
	}
	defer rows.Close()

	var out []model.User
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.Username, &u.Points, &u.Experience,
			&u.Level, &u.Rank, &u.ObjectsAdded, &u.ReviewsWritten,
			&u.Confirmations, &u.Interactions, &u.CreatedAt, &u.LastActivity); err != nil {
			return nil, fmt.Errorf("postgres: leaderboard scan: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// UserCount implements UserStore.
func (s *PostgresStore) UserCount(ctx context.Context) int {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0
	}
	return n
}

// Append implements Ledger.
func (s *PostgresStore) Append(ctx context.Context, entry model.Interaction) (model.Interaction, error) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO interactions
			(id, user_id, object_id, kind, rating, comment, problem_kind, state, points_awarded, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		entry.ID, entry.UserID, entry.ObjectID, entry.Kind, entry.Rating,
		entry.Comment, entry.ProblemKind, entry.State, entry.PointsAwarded,
		entry.CreatedAt)
	if err != nil {
		return model.Interaction{}, fmt.Errorf("postgres: append interaction: %w", err)
	}
	return entry, nil
}

// HasEarned implements Ledger.
func (s *PostgresStore) HasEarned(ctx context.Context, userID, kind, objectID string) (bool, error) {
	if kind == model.ActionAddObject {
		return false, nil
	}
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM interactions
			WHERE user_id = $1 AND kind = $2 AND object_id = $3
		)`, userID, kind, objectID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("postgres: has earned: %w", err)
	}
	return exists, nil
}

// ForObject implements Ledger.
func (s *PostgresStore) ForObject(ctx context.Context, objectID string) ([]model.Interaction, error) {
	return s.interactionsWhere(ctx, "object_id", objectID)
}

// ForUser implements Ledger.
func (s *PostgresStore) ForUser(ctx context.Context, userID string) ([]model.Interaction, error) {
	return s.interactionsWhere(ctx, "user_id", userID)
}

func (s *PostgresStore) interactionsWhere(ctx context.Context, column, value string) ([]model.Interaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, object_id, kind, rating, comment, problem_kind,
			state, points_awarded, created_at
		FROM interactions WHERE `+column+` = $1 ORDER BY created_at ASC`, value)
	if err != nil {
		return nil, fmt.Errorf("postgres: interactions by %s: %w", column, err)
	}
	defer rows.Close()

	var out []model.Interaction
	for rows.Next() {
		var e model.Interaction
		if err := rows.Scan(&e.ID, &e.UserID, &e.ObjectID, &e.Kind, &e.Rating,
			&e.Comment, &e.ProblemKind, &e.State, &e.PointsAwarded, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: interaction scan: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// PutObject implements ObjectStore.
func (s *PostgresStore) PutObject(ctx context.Context, obj model.Object) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO objects
			(id, name, description, kind, state, latitude, longitude, user_id,
			 image_ref, rating, rating_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			kind = EXCLUDED.kind,
			state = EXCLUDED.state,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			image_ref = EXCLUDED.image_ref,
			rating = EXCLUDED.rating,
			rating_count = EXCLUDED.rating_count,
			updated_at = EXCLUDED.updated_at`,
		obj.ID, obj.Name, obj.Description, obj.Kind, obj.State, obj.Latitude,
		obj.Longitude, obj.UserID, obj.ImageRef, obj.Rating, obj.RatingCount,
		obj.CreatedAt, obj.UpdatedAt)
	if err != nil {
		return fmt.Errorf("postgres: put object %s: %w", obj.ID, err)
	}
	return nil
}

// GetObject implements ObjectStore.
func (s *PostgresStore) GetObject(ctx context.Context, id string) (model.Object, error) {
	var obj model.Object
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, kind, state, latitude, longitude,
			user_id, image_ref, rating, rating_count, created_at, updated_at
		FROM objects WHERE id = $1`, id).Scan(
		&obj.ID, &obj.Name, &obj.Description, &obj.Kind, &obj.State,
		&obj.Latitude, &obj.Longitude, &obj.UserID, &obj.ImageRef,
		&obj.Rating, &obj.RatingCount, &obj.CreatedAt, &obj.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Object{}, ErrNotFound
	}
	if err != nil {
		return model.Object{}, fmt.Errorf("postgres: get object %s: %w", id, err)
	}
	return obj, nil
}

// Objects implements ObjectStore.
func (s *PostgresStore) Objects(ctx context.Context) ([]model.Object, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, kind, state, latitude, longitude,
			user_id, image_ref, rating, rating_count, created_at, updated_at
		FROM objects ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list objects: %w", err)
	}
	defer rows.Close()

	var out []model.Object
	for rows.Next() {
		var obj model.Object
		if err := rows.Scan(&obj.ID, &obj.Name, &obj.Description, &obj.Kind,
			&obj.State, &obj.Latitude, &obj.Longitude, &obj.UserID,
			&obj.ImageRef, &obj.Rating, &obj.RatingCount, &obj.CreatedAt,
			&obj.UpdatedAt); err != nil {
			return nil, fmt.Errorf("postgres: object scan: %w", err)
		}
		out = append(out, obj)
	}
	return out, rows.Err()
}

// SetObjectState implements ObjectStore.
func (s *PostgresStore) SetObjectState(ctx context.Context, id, state string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE objects SET state = $2, updated_at = $3 WHERE id = $1`,
		id, state, at)
	if err != nil {
		return fmt.Errorf("postgres: set state %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetObjectRating implements ObjectStore.
func (s *PostgresStore) SetObjectRating(ctx context.Context, id string, rating float64, count int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE objects SET rating = $2, rating_count = $3 WHERE id = $1`,
		id, rating, count)
	if err != nil {
		return fmt.Errorf("postgres: set rating %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ObjectCount implements ObjectStore.
func (s *PostgresStore) ObjectCount(ctx context.Context) int {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM objects`).Scan(&n); err != nil {
		return 0
	}
	return n
}

// PutAlert implements AlertStore.
func (s *PostgresStore) PutAlert(ctx context.Context, alert model.ProximityAlert) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO alerts
			(id, user_id, object_id, object_name, object_kind, radius_meters, enabled, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			radius_meters = EXCLUDED.radius_meters,
			enabled = EXCLUDED.enabled`,
		alert.ID, alert.UserID, alert.ObjectID, alert.ObjectName,
		alert.ObjectKind, alert.RadiusMeters, alert.Enabled, alert.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres: put alert %s: %w", alert.ID, err)
	}
	return nil
}

// DeleteAlert implements AlertStore.
func (s *PostgresStore) DeleteAlert(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM alerts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: delete alert %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// AlertsForUser implements AlertStore.
func (s *PostgresStore) AlertsForUser(ctx context.Context, userID string) ([]model.ProximityAlert, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, object_id, object_name, object_kind,
			radius_meters, enabled, created_at
		FROM alerts WHERE user_id = $1 ORDER BY id ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("postgres: alerts for %s: %w", userID, err)
	}
	defer rows.Close()

	var out []model.ProximityAlert
	for rows.Next() {
		var a model.ProximityAlert
		if err := rows.Scan(&a.ID, &a.UserID, &a.ObjectID, &a.ObjectName,
			&a.ObjectKind, &a.RadiusMeters, &a.Enabled, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: alert scan: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// AppendNotification implements NotificationStore.
func (s *PostgresStore) AppendNotification(ctx context.Context, n model.Notification) (model.Notification, error) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications
			(id, user_id, title, message, kind, object_id, read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		n.ID, n.UserID, n.Title, n.Message, n.Kind, n.ObjectID, n.Read, n.CreatedAt)
	if err != nil {
		return model.Notification{}, fmt.Errorf("postgres: append notification: %w", err)
	}
	return n, nil
}

// NotificationsForUser implements NotificationStore.
func (s *PostgresStore) NotificationsForUser(ctx context.Context, userID string) ([]model.Notification, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, title, message, kind, object_id, read, created_at
		FROM notifications WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("postgres: notifications for %s: %w", userID, err)
	}
	defer rows.Close()

	var out []model.Notification
	for rows.Next() {
		var n model.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &n.Kind,
			&n.ObjectID, &n.Read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: notification scan: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkNotificationRead implements NotificationStore.
func (s *PostgresStore) MarkNotificationRead(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET read = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: mark read %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkAllNotificationsRead implements NotificationStore.
func (s *PostgresStore) MarkAllNotificationsRead(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET read = TRUE WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("postgres: mark all read %s: %w", userID, err)
	}
	return nil
}
