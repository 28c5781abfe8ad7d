package audit

import (
	"context"
	"time"
)

// Query filters audit trail reads. Zero values mean "no constraint".
// Results are always ordered oldest first by sequence.
type Query struct {
	Actor    string
	Action   Action
	From     *time.Time
	To       *time.Time
	Page     int
	PageSize int
}

// Repository provides access to the append-only audit trail.
// Append must run inside the same storage transaction as the entity
// mutation it records; the transaction scope hands services a
// repository bound to that transaction.
type Repository interface {
	// Append durably inserts an entry and fills in its assigned sequence
	Append(ctx context.Context, entry *Entry) error

	// Find returns entries matching the query, ordered by sequence ascending
	Find(ctx context.Context, q Query) ([]Entry, error)

	// Count returns the number of entries matching the query
	Count(ctx context.Context, q Query) (int64, error)
}
