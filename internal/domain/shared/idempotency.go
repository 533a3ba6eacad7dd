package shared

import (
	"context"
	"time"
)

// IdempotencyStore remembers keys of requests and events that were already
// applied, optionally with the result of the first attempt.
type IdempotencyStore interface {
	// MarkProcessed claims key for ttl.
	// Returns true if the key was newly marked, false if it was already claimed.
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// IsProcessed checks if a key has been claimed and has not expired
	IsProcessed(ctx context.Context, key string) (bool, error)

	// SaveResult stores the outcome of a claimed key, e.g. the ID of the
	// record a request created
	SaveResult(ctx context.Context, key, result string, ttl time.Duration) error

	// Result returns the stored outcome. ok is false when the key is
	// unknown, expired or still in progress.
	Result(ctx context.Context, key string) (result string, ok bool, err error)

	// Release forgets a key so a failed attempt can be retried
	Release(ctx context.Context, key string) error

	// Close closes the store and releases resources
	Close() error
}

// IdempotencyConfig holds configuration for idempotency handling
type IdempotencyConfig struct {
	// TTL is how long a processed key is remembered
	TTL time.Duration

	// Enabled determines whether idempotency checking is enabled
	Enabled bool
}

// DefaultIdempotencyConfig returns the default idempotency configuration
func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		TTL:     24 * time.Hour,
		Enabled: true,
	}
}
