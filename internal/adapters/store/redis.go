package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/klupa/klupa/internal/domain/model"
	"github.com/redis/go-redis/v9"
)

// Redis key layout.
//
//	user:{id}                hash with the aggregate fields
//	users:by_points          zset member=user id, score=points
//	interaction:{id}         JSON-encoded ledger entry
//	ledger:user:{id}         set of interaction ids
//	ledger:object:{id}       set of interaction ids
//	earned:{uid}:{kind}:{oid} dedup marker
//	object:{id}              JSON-encoded object
//	objects:all              list of object ids in insertion order
//	alert:{id}               JSON-encoded alert
//	alerts:user:{id}         set of alert ids
//	notification:{id}        JSON-encoded notification
//	notifications:user:{id}  list of notification ids, most recent first
type RedisStore struct {
	client *redis.Client
	now    func() time.Time
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, addr, password string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis: connect %s: %w", addr, err)
	}
	return &RedisStore{client: client, now: time.Now}, nil
}

// Close implements Store.
func (s *RedisStore) Close() error { return s.client.Close() }

const leaderboardKey = "users:by_points"

func userKey(id string) string   { return "user:" + id }
func objectKey(id string) string { return "object:" + id }
func alertKey(id string) string  { return "alert:" + id }
func notifKey(id string) string  { return "notification:" + id }
func earnedKeyName(uid, kind, oid string) string {
	return "earned:" + uid + ":" + kind + ":" + oid
}

// GetUser implements UserStore.
func (s *RedisStore) GetUser(ctx context.Context, id string) (model.User, error) {
	fields, err := s.client.HGetAll(ctx, userKey(id)).Result()
	if err != nil {
		return model.User{}, fmt.Errorf("redis: get user %s: %w", id, err)
	}
	if len(fields) == 0 {
		return model.User{}, ErrNotFound
	}
	return userFromHash(id, fields), nil
}

// EnsureUser implements UserStore.
func (s *RedisStore) EnsureUser(ctx context.Context, id string) (model.User, error) {
	created, err := s.client.HSetNX(ctx, userKey(id), "created_at", s.now().UnixMilli()).Result()
	if err != nil {
		return model.User{}, fmt.Errorf("redis: ensure user %s: %w", id, err)
	}
	if created {
		pipe := s.client.TxPipeline()
		pipe.HSetNX(ctx, userKey(id), "level", 1)
		pipe.HSetNX(ctx, userKey(id), "last_activity", s.now().UnixMilli())
		pipe.ZAddNX(ctx, leaderboardKey, redis.Z{Score: 0, Member: id})
		if _, err := pipe.Exec(ctx); err != nil {
			return model.User{}, fmt.Errorf("redis: init user %s: %w", id, err)
		}
	}
	return s.GetUser(ctx, id)
}

// AddPoints implements UserStore. HINCRBY is the server-side atomic add
// primitive; no read-modify-write of cached values.
func (s *RedisStore) AddPoints(ctx context.Context, id string, points int64, counter Counter) (model.User, error) {
	exists, err := s.client.Exists(ctx, userKey(id)).Result()
	if err != nil {
		return model.User{}, fmt.Errorf("redis: add points %s: %w", id, err)
	}
	if exists == 0 {
		return model.User{}, ErrNotFound
	}

	pipe := s.client.TxPipeline()
	pipe.HIncrBy(ctx, userKey(id), "points", points)
	pipe.HIncrBy(ctx, userKey(id), "experience", points)
	pipe.HIncrBy(ctx, userKey(id), "interactions", 1)
	if counter != CounterNone {
		pipe.HIncrBy(ctx, userKey(id), string(counter), 1)
	}
	pipe.HSet(ctx, userKey(id), "last_activity", s.now().UnixMilli())
	pipe.ZIncrBy(ctx, leaderboardKey, float64(points), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return model.User{}, fmt.Errorf("redis: add points %s: %w", id, err)
	}
	return s.GetUser(ctx, id)
}

// SetRankLevel implements UserStore.
func (s *RedisStore) SetRankLevel(ctx context.Context, id string, rank string, level int) error {
	if err := s.client.HSet(ctx, userKey(id), "rank", rank, "level", level).Err(); err != nil {
		return fmt.Errorf("redis: set rank %s: %w", id, err)
	}
	return nil
}

// Leaderboard implements UserStore.
func (s *RedisStore) Leaderboard(ctx context.Context, limit int) ([]model.User, error) {
	if limit < 1 {
		return nil, ErrInvalidLimit
	}
	ids, err := s.client.ZRevRange(ctx, leaderboardKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: leaderboard: %w", err)
	}
	out := make([]model.User, 0, len(ids))
	for _, id := range ids {
		u, err := s.GetUser(ctx, id)
		if err != nil {
			continue // aggregate may lag behind the zset; skip
		}
		out = append(out, u)
	}
	return out, nil
}

// UserCount implements UserStore.
func (s *RedisStore) UserCount(ctx context.Context) int {
	n, err := s.client.ZCard(ctx, leaderboardKey).Result()
	if err != nil {
		return 0
	}
	return int(n)
}

// Append implements Ledger.
func (s *RedisStore) Append(ctx context.Context, entry model.Interaction) (model.Interaction, error) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now()
	}

	raw, err := json.Marshal(entry)
	if err != nil {
		return model.Interaction{}, fmt.Errorf("redis: encode interaction: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.SetNX(ctx, "interaction:"+entry.ID, raw, 0) // append-only, never overwrite
	pipe.SAdd(ctx, "ledger:user:"+entry.UserID, entry.ID)
	pipe.SAdd(ctx, "ledger:object:"+entry.ObjectID, entry.ID)
	pipe.Set(ctx, earnedKeyName(entry.UserID, entry.Kind, entry.ObjectID), "1", 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return model.Interaction{}, fmt.Errorf("redis: append interaction: %w", err)
	}
	return entry, nil
}

// HasEarned implements Ledger.
func (s *RedisStore) HasEarned(ctx context.Context, userID, kind, objectID string) (bool, error) {
	if kind == model.ActionAddObject {
		return false, nil
	}
	n, err := s.client.Exists(ctx, earnedKeyName(userID, kind, objectID)).Result()
	if err != nil {
		return false, fmt.Errorf("redis: has earned: %w", err)
	}
	return n > 0, nil
}

// ForObject implements Ledger.
func (s *RedisStore) ForObject(ctx context.Context, objectID string) ([]model.Interaction, error) {
	return s.ledgerEntries(ctx, "ledger:object:"+objectID)
}

// ForUser implements Ledger.
func (s *RedisStore) ForUser(ctx context.Context, userID string) ([]model.Interaction, error) {
	return s.ledgerEntries(ctx, "ledger:user:"+userID)
}

func (s *RedisStore) ledgerEntries(ctx context.Context, indexKey string) ([]model.Interaction, error) {
	ids, err := s.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: ledger index %s: %w", indexKey, err)
	}
	out := make([]model.Interaction, 0, len(ids))
	for _, id := range ids {
		raw, err := s.client.Get(ctx, "interaction:"+id).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("redis: ledger entry %s: %w", id, err)
		}
		var e model.Interaction
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			continue // skip undecodable entries rather than fail the read
		}
		out = append(out, e)
	}
	return out, nil
}

// PutObject implements ObjectStore.
func (s *RedisStore) PutObject(ctx context.Context, obj model.Object) error {
	raw, err := json.Marshal(obj)
	if err != nil {
		return fmt.Errorf("redis: encode object: %w", err)
	}
	existed, err := s.client.Exists(ctx, objectKey(obj.ID)).Result()
	if err != nil {
		return fmt.Errorf("redis: put object %s: %w", obj.ID, err)
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, objectKey(obj.ID), raw, 0)
	if existed == 0 {
		pipe.RPush(ctx, "objects:all", obj.ID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: put object %s: %w", obj.ID, err)
	}
	return nil
}

// GetObject implements ObjectStore.
func (s *RedisStore) GetObject(ctx context.Context, id string) (model.Object, error) {
	raw, err := s.client.Get(ctx, objectKey(id)).Result()
	if err == redis.Nil {
		return model.Object{}, ErrNotFound
	}
	if err != nil {
		return model.Object{}, fmt.Errorf("redis: get object %s: %w", id, err)
	}
	var obj model.Object
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		return model.Object{}, fmt.Errorf("redis: decode object %s: %w", id, err)
	}
	return obj, nil
}

// Objects implements ObjectStore.
func (s *RedisStore) Objects(ctx context.Context) ([]model.Object, error) {
	ids, err := s.client.LRange(ctx, "objects:all", 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: list objects: %w", err)
	}
	out := make([]model.Object, 0, len(ids))
	for _, id := range ids {
		obj, err := s.GetObject(ctx, id)
		if err != nil {
			continue
		}
		out = append(out, obj)
	}
	return out, nil
}

// SetObjectState implements ObjectStore.
func (s *RedisStore) SetObjectState(ctx context.Context, id, state string, at time.Time) error {
	obj, err := s.GetObject(ctx, id)
	if err != nil {
		return err
	}
	obj.State = state
	obj.UpdatedAt = at
	return s.PutObject(ctx, obj)
}

// SetObjectRating implements ObjectStore.
func (s *RedisStore) SetObjectRating(ctx context.Context, id string, rating float64, count int) error {
	obj, err := s.GetObject(ctx, id)
	if err != nil {
		return err
	}
	obj.Rating = rating
	obj.RatingCount = count
	return s.PutObject(ctx, obj)
}

// ObjectCount implements ObjectStore.
func (s *RedisStore) ObjectCount(ctx context.Context) int {
	n, err := s.client.LLen(ctx, "objects:all").Result()
	if err != nil {
		return 0
	}
	return int(n)
}

// PutAlert implements AlertStore.
func (s *RedisStore) PutAlert(ctx context.Context, alert model.ProximityAlert) error {
	raw, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("redis: encode alert: %w", err)
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, alertKey(alert.ID), raw, 0)
	pipe.SAdd(ctx, "alerts:user:"+alert.UserID, alert.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: put alert %s: %w", alert.ID, err)
	}
	return nil
}

// DeleteAlert implements AlertStore.
func (s *RedisStore) DeleteAlert(ctx context.Context, id string) error {
	raw, err := s.client.Get(ctx, alertKey(id)).Result()
	if err == redis.Nil {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("redis: delete alert %s: %w", id, err)
	}
	var alert model.ProximityAlert
	if err := json.Unmarshal([]byte(raw), &alert); err != nil {
		return fmt.Errorf("redis: decode alert %s: %w", id, err)
	}
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, alertKey(id))
	pipe.SRem(ctx, "alerts:user:"+alert.UserID, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: delete alert %s: %w", id, err)
	}
	return nil
}

// AlertsForUser implements AlertStore.
func (s *RedisStore) AlertsForUser(ctx context.Context, userID string) ([]model.ProximityAlert, error) {
	ids, err := s.client.SMembers(ctx, "alerts:user:"+userID).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: alerts for %s: %w", userID, err)
	}
	out := make([]model.ProximityAlert, 0, len(ids))
	for _, id := range ids {
		raw, err := s.client.Get(ctx, alertKey(id)).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("redis: alert %s: %w", id, err)
		}
		var alert model.ProximityAlert
		if err := json.Unmarshal([]byte(raw), &alert); err != nil {
			continue
		}
		out = append(out, alert)
	}
	return out, nil
}

// AppendNotification implements NotificationStore.
func (s *RedisStore) AppendNotification(ctx context.Context, n model.Notification) (model.Notification, error) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.now()
	}
	raw, err := json.Marshal(n)
	if err != nil {
		return model.Notification{}, fmt.Errorf("redis: encode notification: %w", err)
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, notifKey(n.ID), raw, 0)
	pipe.LPush(ctx, "notifications:user:"+n.UserID, n.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return model.Notification{}, fmt.Errorf("redis: append notification: %w", err)
	}
	return n, nil
}

// NotificationsForUser implements NotificationStore.
func (s *RedisStore) NotificationsForUser(ctx context.Context, userID string) ([]model.Notification, error) {
	ids, err := s.client.LRange(ctx, "notifications:user:"+userID, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: notifications for %s: %w", userID, err)
	}
	out := make([]model.Notification, 0, len(ids))
	for _, id := range ids {
		raw, err := s.client.Get(ctx, notifKey(id)).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("redis: notification %s: %w", id, err)
		}
		var n model.Notification
		if err := json.Unmarshal([]byte(raw), &n); err != nil {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

// MarkNotificationRead implements NotificationStore.
func (s *RedisStore) MarkNotificationRead(ctx context.Context, id string) error {
	raw, err := s.client.Get(ctx, notifKey(id)).Result()
	if err == redis.Nil {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("redis: mark read %s: %w", id, err)
	}
	var n model.Notification
	if err := json.Unmarshal([]byte(raw), &n); err != nil {
		return fmt.Errorf("redis: decode notification %s: %w", id, err)
	}
	n.Read = true
	updated, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("redis: encode notification %s: %w", id, err)
	}
	if err := s.client.Set(ctx, notifKey(id), updated, 0).Err(); err != nil {
		return fmt.Errorf("redis: mark read %s: %w", id, err)
	}
	return nil
}

// MarkAllNotificationsRead implements NotificationStore.
func (s *RedisStore) MarkAllNotificationsRead(ctx context.Context, userID string) error {
	all, err := s.NotificationsForUser(ctx, userID)
	if err != nil {
		return err
	}
	for _, n := range all {
		if n.Read {
			continue
		}
		if err := s.MarkNotificationRead(ctx, n.ID); err != nil {
			return err
		}
	}
	return nil
}

func userFromHash(id string, fields map[string]string) model.User {
	u := model.User{ID: id, Level: 1}
	u.Username = fields["username"]
	u.Rank = fields["rank"]
	u.Points = parseI64(fields["points"])
	u.Experience = parseI64(fields["experience"])
	u.Interactions = parseI64(fields["interactions"])
	u.ObjectsAdded = parseI64(fields[string(CounterObjectsAdded)])
	u.ReviewsWritten = parseI64(fields[string(CounterReviewsWritten)])
	u.Confirmations = parseI64(fields[string(CounterConfirmations)])
	if lvl := parseI64(fields["level"]); lvl > 0 {
		u.Level = int(lvl)
	}
	if ms := parseI64(fields["created_at"]); ms > 0 {
		u.CreatedAt = time.UnixMilli(ms)
	}
	if ms := parseI64(fields["last_activity"]); ms > 0 {
		u.LastActivity = time.UnixMilli(ms)
	}
	return u
}

func parseI64(s string) int64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return v
}
