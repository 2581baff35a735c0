package checkpoint

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// defaultTTL bounds how long a checkpoint key lives in Redis. Gateway
// timestamps are monotone per source, so a bounded window is enough to
// suppress realistic duplicates.
const defaultTTL = 24 * time.Hour

// RedisStore is a Redis-backed Store, suitable when multiple bot
// instances share one gateway account.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithTTL sets the checkpoint expiry. Set 0 for no expiration.
func WithTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) { s.ttl = ttl }
}

// WithPrefix sets the key prefix. Default is "chatkit".
func WithPrefix(prefix string) RedisOption {
	return func(s *RedisStore) { s.prefix = prefix }
}

// NewRedisStore creates a Redis-backed checkpoint store.
//
// Example:
//
//	store := NewRedisStore(
//	    redis.NewClient(&redis.Options{Addr: "localhost:6379"}),
//	    WithTTL(12 * time.Hour),
//	)
func NewRedisStore(client *redis.Client, opts ...RedisOption) *RedisStore {
	store := &RedisStore{
		client: client,
		ttl:    defaultTTL,
		prefix: "chatkit",
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

func (s *RedisStore) key(source string, timestamp int64) string {
	return s.prefix + ":checkpoint:" + source + ":" + strconv.FormatInt(timestamp, 10)
}

// IsDuplicate implements Store.
func (s *RedisStore) IsDuplicate(ctx context.Context, source string, timestamp int64) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(source, timestamp)).Result()
	if err != nil {
		return false, fmt.Errorf("checkpoint: redis exists: %w", err)
	}
	return n > 0, nil
}

// MarkProcessed implements Store.
func (s *RedisStore) MarkProcessed(ctx context.Context, source string, timestamp int64, enqueuedAt time.Time) error {
	value := "1"
	if !enqueuedAt.IsZero() {
		value = enqueuedAt.UTC().Format(time.RFC3339Nano)
	}
	if err := s.client.Set(ctx, s.key(source, timestamp), value, s.ttl).Err(); err != nil {
		return fmt.Errorf("checkpoint: redis set: %w", err)
	}
	return nil
}

// Close implements Store.
func (s *RedisStore) Close() error { return s.client.Close() }
