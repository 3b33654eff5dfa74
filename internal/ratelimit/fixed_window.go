package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/esshaancheema/rach-dev-monorepo-sub012/internal/ratelimit/store"
)

// FixedWindowLimiter implements the fixed window rate limiting
// algorithm over a pluggable store. Each window is anchored to its
// first admitted request rather than to wall-clock boundaries.
type FixedWindowLimiter struct {
	store   store.Store
	policy  Policy
	methods map[string]Policy
	logger  *zap.Logger

	// ownsStore is set when the limiter created its own default store
	// and is therefore responsible for closing it.
	ownsStore bool

	mu     sync.Mutex
	closed bool
}

// FixedWindowOption configures a FixedWindowLimiter.
type FixedWindowOption func(*FixedWindowLimiter)

// WithFixedWindowLogger sets the logger.
func WithFixedWindowLogger(logger *zap.Logger) FixedWindowOption {
	return func(l *FixedWindowLimiter) {
		l.logger = logger
	}
}

// WithMethodPolicy registers a per-method policy override. Overridden
// methods are counted in their own windows, keyed by method and caller.
func WithMethodPolicy(fullMethod string, policy Policy) FixedWindowOption {
	return func(l *FixedWindowLimiter) {
		l.methods[fullMethod] = policy
	}
}

// NewFixedWindowLimiter creates a new fixed window rate limiter. When
// s is nil a per-process memory store is created, swept at the default
// policy's window interval, and closed together with the limiter.
func NewFixedWindowLimiter(s store.Store, policy Policy, opts ...FixedWindowOption) (*FixedWindowLimiter, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	l := &FixedWindowLimiter{
		store:   s,
		policy:  policy,
		methods: make(map[string]Policy),
		logger:  zap.NewNop(),
	}

	for _, opt := range opts {
		opt(l)
	}

	for method, override := range l.methods {
		if err := override.Validate(); err != nil {
			return nil, fmt.Errorf("policy for %s: %w", method, err)
		}
	}

	if l.store == nil {
		l.store = store.NewMemoryStoreWithSweepInterval(policy.Window)
		l.ownsStore = true
	}

	return l, nil
}

// Allow implements Limiter.
func (l *FixedWindowLimiter) Allow(ctx context.Context, key, fullMethod string) (*Result, error) {
	policy := l.PolicyFor(fullMethod)

	take, err := l.store.Take(ctx, l.recordKey(key, fullMethod), int64(policy.Requests), policy.Window)
	if err != nil {
		return nil, err
	}

	resetAfter := time.Until(take.ResetAt)
	if resetAfter < 0 {
		resetAfter = 0
	}

	var retryAfter time.Duration
	if !take.Allowed {
		retryAfter = resetAfter
		l.logger.Debug("rate limit exceeded",
			zap.String("key", key),
			zap.String("method", fullMethod),
			zap.Int("limit", policy.Requests),
			zap.Duration("retry_after", retryAfter),
		)
	}

	return &Result{
		Allowed:    take.Allowed,
		Limit:      policy.Requests,
		Remaining:  int(take.Remaining),
		ResetAfter: resetAfter,
		RetryAfter: retryAfter,
	}, nil
}

// PolicyFor implements Limiter.
func (l *FixedWindowLimiter) PolicyFor(fullMethod string) Policy {
	if override, ok := l.methods[fullMethod]; ok {
		return override
	}
	return l.policy
}

// Reset implements Limiter.
func (l *FixedWindowLimiter) Reset(ctx context.Context, key, fullMethod string) error {
	return l.store.Delete(ctx, l.recordKey(key, fullMethod))
}

// Close implements Limiter. Close is idempotent. The underlying store
// is closed only when the limiter created it.
func (l *FixedWindowLimiter) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true

	if l.ownsStore {
		return l.store.Close()
	}
	return nil
}

// recordKey scopes overridden methods to their own windows. Methods on
// the default policy share one window per caller.
func (l *FixedWindowLimiter) recordKey(key, fullMethod string) string {
	if _, ok := l.methods[fullMethod]; ok {
		return fullMethod + ":" + key
	}
	return key
}

var _ Limiter = (*FixedWindowLimiter)(nil)
var _ Limiter = (*NoopLimiter)(nil)
