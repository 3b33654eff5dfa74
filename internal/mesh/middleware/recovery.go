package middleware

import (
	"context"
	"runtime/debug"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/esshaancheema/rach-dev-monorepo-sub012/internal/observability"
)

// UnaryRecoveryInterceptor returns a unary server interceptor that
// converts handler and interceptor panics into codes.Internal.
func UnaryRecoveryInterceptor(logger observability.Logger) grpc.UnaryServerInterceptor {
	if logger == nil {
		logger = observability.NopLogger()
	}

	return func(
		ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler,
	) (resp interface{}, err error) {
		defer func() {
			if r := recover(); r != nil {
				stack := string(debug.Stack())
				logger.Error("panic recovered in call handler",
					observability.String("method", info.FullMethod),
					observability.Any("panic", r),
					observability.String("stack", stack),
				)
				err = status.Errorf(codes.Internal, "internal server error")
			}
		}()

		return handler(ctx, req)
	}
}

// UnaryClientRecoveryInterceptor returns a unary client interceptor
// that converts panics on the outbound call path into codes.Internal
// instead of crashing the caller.
func UnaryClientRecoveryInterceptor(logger observability.Logger) grpc.UnaryClientInterceptor {
	if logger == nil {
		logger = observability.NopLogger()
	}

	return func(
		ctx context.Context, method string, req, reply interface{},
		cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption,
	) (err error) {
		defer func() {
			if r := recover(); r != nil {
				stack := string(debug.Stack())
				logger.Error("panic recovered in call path",
					observability.String("method", method),
					observability.Any("panic", r),
					observability.String("stack", stack),
				)
				err = status.Errorf(codes.Internal, "internal error")
			}
		}()

		return invoker(ctx, method, req, reply, cc, opts...)
	}
}
