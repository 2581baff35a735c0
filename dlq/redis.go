package dlq

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisQueue keeps dead letters in a Redis list, for deployments that
// already use Redis for checkpoints.
type RedisQueue struct {
	client *redis.Client
	key    string
}

// RedisOption configures a RedisQueue.
type RedisOption func(*RedisQueue)

// WithPrefix sets the key prefix. Default is "chatkit".
func WithPrefix(prefix string) RedisOption {
	return func(q *RedisQueue) { q.key = prefix + ":dlq" }
}

// NewRedisQueue creates a Redis-backed dead-letter queue.
func NewRedisQueue(client *redis.Client, opts ...RedisOption) *RedisQueue {
	q := &RedisQueue{client: client, key: "chatkit:dlq"}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Send implements Queue.
func (q *RedisQueue) Send(ctx context.Context, entry Entry) error {
	if entry.InsertedAt.IsZero() {
		entry.InsertedAt = nowUTC()
	}
	encoded, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("dlq: encoding entry: %w", err)
	}
	if err := q.client.RPush(ctx, q.key, encoded).Err(); err != nil {
		return fmt.Errorf("dlq: redis rpush: %w", err)
	}
	return nil
}

// Inspect implements Queue. Undecodable list items are skipped.
func (q *RedisQueue) Inspect(ctx context.Context) ([]Entry, error) {
	items, err := q.client.LRange(ctx, q.key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("dlq: redis lrange: %w", err)
	}
	var entries []Entry
	for _, item := range items {
		var entry Entry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Close implements Queue.
func (q *RedisQueue) Close() error { return q.client.Close() }
