package shared

import (
	"context"
	"time"
)

// IdempotencyStore remembers processed keys so that at-least-once
// consumers (alert handlers, sweep runners) can suppress duplicates.
type IdempotencyStore interface {
	// MarkProcessed marks a key as processed with a TTL.
	// Returns true if the key was newly marked, false if it was already present.
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// IsProcessed checks whether a key has already been processed
	IsProcessed(ctx context.Context, key string) (bool, error)

	// Close releases store resources
	Close() error
}

// IdempotencyConfig holds configuration for duplicate suppression
type IdempotencyConfig struct {
	// TTL is how long a processed key is remembered.
	// After this duration the same key is treated as new again.
	TTL time.Duration

	// Enabled determines whether duplicate suppression is active
	Enabled bool
}

// DefaultIdempotencyConfig returns the default idempotency configuration
func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		TTL:     24 * time.Hour,
		Enabled: true,
	}
}
