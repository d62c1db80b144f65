package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const defaultTTL = 30 * time.Minute

// RedisStore keeps sessions as JSON blobs that expire after ttl of inactivity.
type RedisStore struct {
	redis  *redis.Client
	ttl    time.Duration
	tracer trace.Tracer
}

// NewRedisStore wraps client. A non-positive ttl means 30 minutes.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if client == nil {
		panic("session: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisStore{
		redis:  client,
		ttl:    ttl,
		tracer: otel.Tracer("gymbot.internal.session"),
	}
}

func (r *RedisStore) Get(ctx context.Context, userID string) (*Session, error) {
	ctx, span := r.tracer.Start(ctx, "session.get")
	defer span.End()

	data, err := r.redis.Get(ctx, sessionKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("session: failed to load session: %w", err)
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("session: failed to decode session: %w", err)
	}
	return &s, nil
}

func (r *RedisStore) Put(ctx context.Context, s *Session) error {
	ctx, span := r.tracer.Start(ctx, "session.put")
	defer span.End()

	if s == nil || s.UserID == "" {
		return errors.New("session: user id required")
	}
	data, err := json.Marshal(s)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: failed to marshal session: %w", err)
	}
	if err := r.redis.Set(ctx, sessionKey(s.UserID), data, r.ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: failed to persist session: %w", err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, userID string) error {
	ctx, span := r.tracer.Start(ctx, "session.delete")
	defer span.End()

	if err := r.redis.Del(ctx, sessionKey(userID)).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: failed to delete session: %w", err)
	}
	return nil
}

// Expire is a no-op; redis drops idle sessions through the key TTL.
func (r *RedisStore) Expire(context.Context, time.Time) (int, error) {
	return 0, nil
}

func sessionKey(userID string) string {
	return fmt.Sprintf("booking_session:%s", userID)
}
