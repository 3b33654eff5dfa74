// Package store provides storage backends for fixed-window rate limiting.
package store

import (
	"context"
	"time"
)

// TakeResult reports the outcome of a single admission attempt.
type TakeResult struct {
	// Allowed is true when the request fits in the current window.
	Allowed bool

	// Remaining is the number of requests left in the window.
	Remaining int64

	// ResetAt is when the current window expires.
	ResetAt time.Time
}

// Store decides fixed-window admissions. Implementations must make the
// check-and-increment in Take atomic: a rejected request never changes
// the counter.
type Store interface {
	// Take admits or rejects one request against the window for key.
	// The first admitted request anchors the window; its counter is
	// incremented only on admission.
	Take(ctx context.Context, key string, limit int64, window time.Duration) (*TakeResult, error)

	// Count returns the number of admitted requests in the current
	// window for key.
	Count(ctx context.Context, key string) (int64, error)

	// Delete removes the window record for the given key.
	Delete(ctx context.Context, key string) error

	// Sweep drops expired window records and reports how many were
	// removed. Backends with native expiry may treat this as a no-op.
	Sweep(ctx context.Context) (int, error)

	// Close closes the store and releases resources.
	Close() error
}

// ErrKeyNotFound is returned when a key is not found in the store.
type ErrKeyNotFound struct {
	Key string
}

func (e *ErrKeyNotFound) Error() string {
	return "key not found: " + e.Key
}

// IsKeyNotFound returns true if the error is a key not found error.
func IsKeyNotFound(err error) bool {
	_, ok := err.(*ErrKeyNotFound)
	return ok
}
