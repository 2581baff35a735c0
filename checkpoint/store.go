// Package checkpoint records which (source, timestamp) pairs have been
// fully dispatched, giving the runtime its at-most-once guarantee.
//
// Store failures are non-fatal by contract: callers treat lookup
// errors as "not duplicate" and log-and-swallow mark errors. The store
// is the boundary between at-most-once and at-least-once semantics.
package checkpoint

import (
	"context"
	"time"
)

// Store is the deduplication contract.
type Store interface {
	// IsDuplicate reports whether (source, timestamp) was already
	// processed.
	IsDuplicate(ctx context.Context, source string, timestamp int64) (bool, error)

	// MarkProcessed records (source, timestamp) as dispatched.
	// enqueuedAt is kept for latency forensics; the zero value is fine.
	MarkProcessed(ctx context.Context, source string, timestamp int64, enqueuedAt time.Time) error

	// Close releases backend resources.
	Close() error
}
