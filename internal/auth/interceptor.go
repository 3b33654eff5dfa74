package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/esshaancheema/rach-dev-monorepo-sub012/internal/auth/token"
	"github.com/esshaancheema/rach-dev-monorepo-sub012/internal/observability"
)

// Metadata keys for identity propagated to the next hop. Propagated
// identity is trusted only inside the mesh network; edge entry points
// must re-verify raw credentials instead.
const (
	UserIDHeader         = "user-id"
	UserRoleHeader       = "user-role"
	ServiceIDHeader      = "service-id"
	ServiceAccountHeader = "is-service-account"
)

// Interceptor gates calls on a valid credential and, where configured,
// a required permission set, and propagates resolved identity.
type Interceptor struct {
	resolver          CredentialResolver
	excludedMethods   map[string]struct{}
	methodPermissions map[string][]string
	adminRole         string
	logger            observability.Logger
}

// InterceptorOption is a functional option for the auth interceptor.
type InterceptorOption func(*Interceptor)

// WithInterceptorLogger sets the logger.
func WithInterceptorLogger(logger observability.Logger) InterceptorOption {
	return func(i *Interceptor) {
		i.logger = logger
	}
}

// WithExcludedMethods registers full method names that bypass
// authentication entirely.
func WithExcludedMethods(methods ...string) InterceptorOption {
	return func(i *Interceptor) {
		for _, m := range methods {
			i.excludedMethods[m] = struct{}{}
		}
	}
}

// WithMethodPermissions sets the required permission sets per full
// method name. A call satisfies a set by holding any one member.
func WithMethodPermissions(permissions map[string][]string) InterceptorOption {
	return func(i *Interceptor) {
		for method, required := range permissions {
			i.methodPermissions[method] = required
		}
	}
}

// WithAdminRole overrides the role that bypasses permission checks.
func WithAdminRole(role string) InterceptorOption {
	return func(i *Interceptor) {
		i.adminRole = role
	}
}

// NewInterceptor creates an auth interceptor over the given resolver.
func NewInterceptor(resolver CredentialResolver, opts ...InterceptorOption) (*Interceptor, error) {
	if resolver == nil {
		return nil, errors.New("credential resolver is required")
	}

	i := &Interceptor{
		resolver:          resolver,
		excludedMethods:   make(map[string]struct{}),
		methodPermissions: make(map[string][]string),
		adminRole:         DefaultAdminRole,
		logger:            observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(i)
	}

	return i, nil
}

// Excluded reports whether the method bypasses authentication.
func (i *Interceptor) Excluded(fullMethod string) bool {
	_, ok := i.excludedMethods[fullMethod]
	return ok
}

// Authenticate resolves the credential in md and enforces the method's
// permission requirements.
func (i *Interceptor) Authenticate(ctx context.Context, md metadata.MD, fullMethod string) (*Principal, error) {
	principal, err := i.resolver.Resolve(ctx, md)
	if err != nil {
		return nil, err
	}

	if required, ok := i.methodPermissions[fullMethod]; ok {
		if err := i.checkPermissions(principal, required); err != nil {
			i.logger.Debug("permission check failed",
				observability.String("method", fullMethod),
				observability.String("principal", principal.ID),
				observability.Strings("required", required),
			)
			return nil, err
		}
	}

	return principal, nil
}

// checkPermissions applies the allow-list rule: any required
// permission, the wildcard, or the admin role satisfies the method.
func (i *Interceptor) checkPermissions(principal *Principal, required []string) error {
	if len(required) == 0 {
		return nil
	}
	if principal.HasPermission(WildcardPermission) {
		return nil
	}
	if principal.Role != "" && principal.Role == i.adminRole {
		return nil
	}
	if principal.HasAnyPermission(required...) {
		return nil
	}
	return fmt.Errorf("%w: requires one of [%s]", ErrPermissionDenied, strings.Join(required, ", "))
}

// UnaryServerInterceptor authenticates inbound calls and injects the
// principal into the handler context.
func (i *Interceptor) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler,
	) (interface{}, error) {
		if i.Excluded(info.FullMethod) {
			return handler(ctx, req)
		}

		md, _ := metadata.FromIncomingContext(ctx)
		principal, err := i.Authenticate(ctx, md, info.FullMethod)
		if err != nil {
			return nil, toStatusError(err)
		}

		return handler(ContextWithPrincipal(ctx, principal), req)
	}
}

// UnaryClientInterceptor authenticates outbound calls before dispatch
// and stamps propagated identity headers for the next hop.
func (i *Interceptor) UnaryClientInterceptor() grpc.UnaryClientInterceptor {
	return func(
		ctx context.Context, method string, req, reply interface{},
		cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption,
	) error {
		if i.Excluded(method) {
			return invoker(ctx, method, req, reply, cc, opts...)
		}

		md, _ := metadata.FromOutgoingContext(ctx)
		principal, err := i.Authenticate(ctx, md, method)
		if err != nil {
			return toStatusError(err)
		}

		ctx = ContextWithPrincipal(ctx, principal)
		ctx = metadata.AppendToOutgoingContext(ctx, propagationPairs(principal)...)

		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

// propagationPairs returns the identity metadata pairs for a verified
// principal.
func propagationPairs(principal *Principal) []string {
	if principal.IsService() {
		return []string{
			ServiceIDHeader, principal.ID,
			ServiceAccountHeader, "true",
		}
	}
	return []string{
		UserIDHeader, principal.ID,
		UserRoleHeader, principal.Role,
		ServiceAccountHeader, "false",
	}
}

// toStatusError converts an authentication error to a gRPC status
// error, preserving the not-authenticated versus forbidden split.
func toStatusError(err error) error {
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return status.Error(codes.PermissionDenied, "permission denied")
	case errors.Is(err, ErrNoCredentials):
		return status.Error(codes.Unauthenticated, "authentication required")
	case errors.Is(err, ErrMalformedCredential):
		return status.Error(codes.Unauthenticated, "malformed credential")
	case errors.Is(err, token.ErrTokenExpired):
		return status.Error(codes.Unauthenticated, "token expired")
	case errors.Is(err, token.ErrInvalidSignature):
		return status.Error(codes.Unauthenticated, "invalid token signature")
	case errors.Is(err, token.ErrTokenMalformed),
		errors.Is(err, token.ErrTokenNotYetValid),
		errors.Is(err, token.ErrMissingSubject),
		errors.Is(err, token.ErrInvalidToken):
		return status.Error(codes.Unauthenticated, "invalid token")
	default:
		return status.Error(codes.Unauthenticated, "authentication failed")
	}
}
