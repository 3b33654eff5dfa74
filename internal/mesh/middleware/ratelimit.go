// Package middleware implements the mesh interceptor chain: auth,
// then rate limit, then logging, then metrics, wrapped by recovery and
// request-id handling. The same pipeline is available for client and
// server sides of a call.
package middleware

import (
	"context"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/esshaancheema/rach-dev-monorepo-sub012/internal/observability"
	"github.com/esshaancheema/rach-dev-monorepo-sub012/internal/ratelimit"
)

// RateLimit rejects calls whose caller has exhausted its fixed-window
// quota. Admission runs before dispatch; a rejected call never reaches
// the transport.
type RateLimit struct {
	limiter ratelimit.Limiter
	keyFunc ratelimit.KeyFunc
	skip    map[string]struct{}
	logger  observability.Logger
}

// RateLimitOption is a functional option for the rate limit
// interceptor.
type RateLimitOption func(*RateLimit)

// WithRateLimitLogger sets the logger.
func WithRateLimitLogger(logger observability.Logger) RateLimitOption {
	return func(rl *RateLimit) {
		rl.logger = logger
	}
}

// WithRateLimitKeyFunc overrides how the caller key is derived from
// the call context.
func WithRateLimitKeyFunc(fn ratelimit.KeyFunc) RateLimitOption {
	return func(rl *RateLimit) {
		if fn != nil {
			rl.keyFunc = fn
		}
	}
}

// WithRateLimitSkipMethods registers full method names that bypass
// rate limiting.
func WithRateLimitSkipMethods(methods ...string) RateLimitOption {
	return func(rl *RateLimit) {
		for _, m := range methods {
			rl.skip[m] = struct{}{}
		}
	}
}

// NewRateLimit creates the rate limit interceptor over a limiter. The
// default key is the resolved principal id, falling back to the
// anonymous key.
func NewRateLimit(limiter ratelimit.Limiter, opts ...RateLimitOption) (*RateLimit, error) {
	if limiter == nil {
		return nil, errors.New("rate limiter is required")
	}

	rl := &RateLimit{
		limiter: limiter,
		keyFunc: ratelimit.PrincipalKeyFunc,
		skip:    make(map[string]struct{}),
		logger:  observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(rl)
	}

	return rl, nil
}

// check runs the admission decision for one call. A limiter failure
// admits the call: the mesh must not go dark because the counter store
// is unhealthy.
func (rl *RateLimit) check(ctx context.Context, fullMethod string) error {
	key := rl.keyFunc(ctx)

	res, err := rl.limiter.Allow(ctx, key, fullMethod)
	if err != nil {
		rl.logger.Error("rate limit check failed",
			observability.String("method", fullMethod),
			observability.String("key", key),
			observability.Error(err),
		)
		return nil
	}

	if !res.Allowed {
		rl.logger.Debug("rate limit exceeded",
			observability.String("method", fullMethod),
			observability.String("key", key),
			observability.Int("limit", res.Limit),
			observability.Duration("retry_after", res.RetryAfter),
		)
		return status.Error(codes.ResourceExhausted, "rate limit exceeded")
	}

	return nil
}

// UnaryServerInterceptor applies rate limiting to inbound calls.
func (rl *RateLimit) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler,
	) (interface{}, error) {
		if _, ok := rl.skip[info.FullMethod]; ok {
			return handler(ctx, req)
		}

		if err := rl.check(ctx, info.FullMethod); err != nil {
			return nil, err
		}

		return handler(ctx, req)
	}
}

// UnaryClientInterceptor applies rate limiting to outbound calls
// before they are dispatched.
func (rl *RateLimit) UnaryClientInterceptor() grpc.UnaryClientInterceptor {
	return func(
		ctx context.Context, method string, req, reply interface{},
		cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption,
	) error {
		if _, ok := rl.skip[method]; ok {
			return invoker(ctx, method, req, reply, cc, opts...)
		}

		if err := rl.check(ctx, method); err != nil {
			return err
		}

		return invoker(ctx, method, req, reply, cc, opts...)
	}
}
