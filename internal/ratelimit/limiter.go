// Package ratelimit provides fixed-window rate limiting for mesh calls.
// Admission decisions are delegated to a pluggable store so a single
// process can run against local memory or a shared Redis.
package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// Limiter defines the interface for rate limiting.
type Limiter interface {
	// Allow checks if a single request for fullMethod is allowed for
	// the given key.
	Allow(ctx context.Context, key, fullMethod string) (*Result, error)

	// PolicyFor returns the policy applied to the given method.
	PolicyFor(fullMethod string) Policy

	// Reset clears the rate limit state for the given key and method.
	Reset(ctx context.Context, key, fullMethod string) error

	// Close releases limiter resources.
	Close() error
}

// Policy is a fixed-window rate limit configuration.
type Policy struct {
	// Requests is the maximum number of requests allowed in the window.
	Requests int

	// Window is the time window for the rate limit.
	Window time.Duration
}

// DefaultPolicy returns the policy applied when no override matches.
func DefaultPolicy() Policy {
	return Policy{
		Requests: 100,
		Window:   time.Minute,
	}
}

// Validate checks that the policy is usable.
func (p Policy) Validate() error {
	if p.Requests < 1 {
		return fmt.Errorf("policy requests must be at least 1, got %d", p.Requests)
	}
	if p.Window <= 0 {
		return fmt.Errorf("policy window must be positive, got %s", p.Window)
	}
	return nil
}

// Result represents the result of a rate limit check.
type Result struct {
	// Allowed indicates whether the request is allowed.
	Allowed bool

	// Limit is the maximum number of requests allowed.
	Limit int

	// Remaining is the number of requests remaining in the current window.
	Remaining int

	// ResetAfter is the duration until the rate limit resets.
	ResetAfter time.Duration

	// RetryAfter is the duration to wait before retrying (when not allowed).
	RetryAfter time.Duration
}

// NoopLimiter is a rate limiter that always allows requests.
type NoopLimiter struct{}

// NewNoopLimiter creates a new noop limiter.
func NewNoopLimiter() *NoopLimiter {
	return &NoopLimiter{}
}

// Allow implements Limiter.
func (l *NoopLimiter) Allow(ctx context.Context, key, fullMethod string) (*Result, error) {
	return &Result{
		Allowed:    true,
		Limit:      0,
		Remaining:  0,
		ResetAfter: 0,
		RetryAfter: 0,
	}, nil
}

// PolicyFor implements Limiter.
func (l *NoopLimiter) PolicyFor(fullMethod string) Policy {
	return Policy{}
}

// Reset implements Limiter.
func (l *NoopLimiter) Reset(ctx context.Context, key, fullMethod string) error {
	return nil
}

// Close implements Limiter.
func (l *NoopLimiter) Close() error {
	return nil
}
