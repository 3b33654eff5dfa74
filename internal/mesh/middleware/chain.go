package middleware

import (
	"google.golang.org/grpc"

	"github.com/esshaancheema/rach-dev-monorepo-sub012/internal/auth"
	"github.com/esshaancheema/rach-dev-monorepo-sub012/internal/observability"
)

// Chain bundles the mesh interceptors. The pipeline order is fixed:
// auth, then rate limit, then logging, then metrics; recovery and
// request-id handling wrap the whole pipeline. A nil member skips that
// concern.
type Chain struct {
	Auth      *auth.Interceptor
	RateLimit *RateLimit
	Logging   *Logging
	Metrics   *Metrics

	// Logger backs the recovery interceptors.
	Logger observability.Logger
}

// UnaryClientInterceptors returns the ordered outbound chain for
// grpc.WithChainUnaryInterceptor. The first interceptor is outermost.
func (c *Chain) UnaryClientInterceptors() []grpc.UnaryClientInterceptor {
	interceptors := []grpc.UnaryClientInterceptor{
		UnaryClientRecoveryInterceptor(c.logger()),
		UnaryClientRequestIDInterceptor(),
	}

	if c.Auth != nil {
		interceptors = append(interceptors, c.Auth.UnaryClientInterceptor())
	}
	if c.RateLimit != nil {
		interceptors = append(interceptors, c.RateLimit.UnaryClientInterceptor())
	}
	if c.Logging != nil {
		interceptors = append(interceptors, c.Logging.UnaryClientInterceptor())
	}
	if c.Metrics != nil {
		interceptors = append(interceptors, c.Metrics.UnaryClientInterceptor())
	}

	return interceptors
}

// UnaryServerInterceptors returns the ordered inbound chain for
// grpc.ChainUnaryInterceptor. The first interceptor is outermost.
func (c *Chain) UnaryServerInterceptors() []grpc.UnaryServerInterceptor {
	interceptors := []grpc.UnaryServerInterceptor{
		UnaryRecoveryInterceptor(c.logger()),
		UnaryRequestIDInterceptor(),
	}

	if c.Auth != nil {
		interceptors = append(interceptors, c.Auth.UnaryServerInterceptor())
	}
	if c.RateLimit != nil {
		interceptors = append(interceptors, c.RateLimit.UnaryServerInterceptor())
	}
	if c.Logging != nil {
		interceptors = append(interceptors, c.Logging.UnaryServerInterceptor())
	}
	if c.Metrics != nil {
		interceptors = append(interceptors, c.Metrics.UnaryServerInterceptor())
	}

	return interceptors
}

// DialOption returns the chain as a grpc.DialOption for client
// connections.
func (c *Chain) DialOption() grpc.DialOption {
	return grpc.WithChainUnaryInterceptor(c.UnaryClientInterceptors()...)
}

// ServerOption returns the chain as a grpc.ServerOption for mesh
// services that terminate calls.
func (c *Chain) ServerOption() grpc.ServerOption {
	return grpc.ChainUnaryInterceptor(c.UnaryServerInterceptors()...)
}

func (c *Chain) logger() observability.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return observability.NopLogger()
}
