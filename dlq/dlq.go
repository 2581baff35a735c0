// Package dlq captures messages whose handlers failed so they can be
// inspected and replayed out of band. Dead-lettering is best effort:
// callers log queue errors and keep going, because a broken DLQ must
// never stall the worker pool.
package dlq

import (
	"context"
	"encoding/json"
	"time"
)

// Entry is one dead-lettered message.
type Entry struct {
	// Raw is the original envelope payload, exactly as received.
	Raw json.RawMessage `json:"raw"`

	// Reason categorizes the failure, e.g. "command_failed".
	Reason string `json:"reason"`

	// Metadata carries dispatch context: command, trigger, worker_id,
	// shard_id, message_id, source, timestamp.
	Metadata map[string]any `json:"metadata,omitempty"`

	// InsertedAt is when the entry was dead-lettered.
	InsertedAt time.Time `json:"inserted_at"`
}

// Queue is the dead-letter contract.
type Queue interface {
	// Send appends an entry.
	Send(ctx context.Context, entry Entry) error

	// Inspect returns all entries in insertion order.
	Inspect(ctx context.Context) ([]Entry, error)

	// Close releases backend resources.
	Close() error
}
