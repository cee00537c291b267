package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// RedisStore persists sessions under per-chat keys with a native TTL that is
// refreshed on every read and write.
type RedisStore struct {
	client  *redis.Client
	timeout time.Duration
}

// NewRedisStore connects and pings the server; callers fall back to the
// memory backing when this fails.
func NewRedisStore(ctx context.Context, url string, timeout time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	log.Info().Msg("Redis session storage initialized")
	return &RedisStore{client: client, timeout: timeout}, nil
}

func sessionKey(chatID int64) string {
	return fmt.Sprintf("session:%d", chatID)
}

func (r *RedisStore) Get(ctx context.Context, chatID int64) (*Session, error) {
	// GETEX refreshes the sliding window atomically with the read.
	data, err := r.client.GetEx(ctx, sessionKey(chatID), r.timeout).Bytes()
	if err == redis.Nil {
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		log.Error().Err(err).Int64("chat_id", chatID).Msg("Corrupt session payload, resetting")
		return New(), nil
	}
	s.LastAccess = time.Now().Unix()
	return &s, nil
}

func (r *RedisStore) Save(ctx context.Context, chatID int64, s *Session) error {
	s.LastAccess = time.Now().Unix()
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := r.client.Set(ctx, sessionKey(chatID), data, r.timeout).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (r *RedisStore) Clear(ctx context.Context, chatID int64) error {
	if err := r.client.Del(ctx, sessionKey(chatID)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// SweepExpired is a no-op: redis expires keys natively.
func (r *RedisStore) SweepExpired(ctx context.Context) (int, error) {
	return 0, nil
}
