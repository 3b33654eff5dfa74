package middleware

import (
	"context"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/esshaancheema/rach-dev-monorepo-sub012/internal/observability"
)

// RequestIDHeader is the metadata key for the request id.
const RequestIDHeader = "x-request-id"

// UnaryRequestIDInterceptor returns a unary server interceptor that
// ensures every call carries a request id, reusing the caller's when
// present.
func UnaryRequestIDInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler,
	) (interface{}, error) {
		ctx = ensureRequestID(ctx)
		return handler(ctx, req)
	}
}

// UnaryClientRequestIDInterceptor returns a unary client interceptor
// that stamps the request id into outgoing metadata, generating one
// when the context has none.
func UnaryClientRequestIDInterceptor() grpc.UnaryClientInterceptor {
	return func(
		ctx context.Context, method string, req, reply interface{},
		cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption,
	) error {
		requestID := observability.RequestIDFromContext(ctx)
		if requestID == "" {
			if md, ok := metadata.FromOutgoingContext(ctx); ok {
				if values := md.Get(RequestIDHeader); len(values) > 0 && values[0] != "" {
					requestID = values[0]
				}
			}
		}
		if requestID == "" {
			requestID = uuid.New().String()
		}

		ctx = observability.ContextWithRequestID(ctx, requestID)

		md, ok := metadata.FromOutgoingContext(ctx)
		if !ok {
			md = metadata.MD{}
		}
		md = md.Copy()
		md.Set(RequestIDHeader, requestID)

		return invoker(metadata.NewOutgoingContext(ctx, md), method, req, reply, cc, opts...)
	}
}

// ensureRequestID ensures a request id exists in the context.
func ensureRequestID(ctx context.Context) context.Context {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get(RequestIDHeader); len(values) > 0 && values[0] != "" {
			return observability.ContextWithRequestID(ctx, values[0])
		}
	}

	requestID := uuid.New().String()
	ctx = observability.ContextWithRequestID(ctx, requestID)

	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		md = metadata.MD{}
	}
	md = md.Copy()
	md.Set(RequestIDHeader, requestID)

	return metadata.NewIncomingContext(ctx, md)
}

// GetRequestID extracts the request id from the context.
func GetRequestID(ctx context.Context) string {
	if requestID := observability.RequestIDFromContext(ctx); requestID != "" {
		return requestID
	}

	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get(RequestIDHeader); len(values) > 0 {
			return values[0]
		}
	}

	return ""
}

// serverRequestID returns the request id for an inbound call, minting
// a correlation-only id when none was assigned.
func serverRequestID(ctx context.Context) string {
	if id := GetRequestID(ctx); id != "" {
		return id
	}
	return uuid.New().String()
}

// clientRequestID returns the request id for an outbound call, minting
// a correlation-only id when none was assigned.
func clientRequestID(ctx context.Context) string {
	if id := observability.RequestIDFromContext(ctx); id != "" {
		return id
	}
	if md, ok := metadata.FromOutgoingContext(ctx); ok {
		if values := md.Get(RequestIDHeader); len(values) > 0 && values[0] != "" {
			return values[0]
		}
	}
	return uuid.New().String()
}
