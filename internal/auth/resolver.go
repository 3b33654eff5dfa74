package auth

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/grpc/metadata"

	"github.com/esshaancheema/rach-dev-monorepo-sub012/internal/auth/token"
	"github.com/esshaancheema/rach-dev-monorepo-sub012/internal/observability"
)

// Metadata keys carrying mesh credentials.
const (
	// AuthorizationHeader carries a user bearer token.
	AuthorizationHeader = "authorization"

	// ServiceTokenHeader carries a service token. It takes precedence
	// over the user bearer token when both are present.
	ServiceTokenHeader = "x-service-token"

	bearerPrefix = "bearer "
)

// CredentialResolver turns the raw credential in call metadata into a
// typed principal.
type CredentialResolver interface {
	// Resolve inspects the metadata bag and returns the verified
	// principal, or an error when no valid credential is present.
	Resolve(ctx context.Context, md metadata.MD) (*Principal, error)
}

// TokenResolver resolves principals from signed user and service
// tokens.
type TokenResolver struct {
	users    *token.UserCodec
	services *token.ServiceCodec
	logger   observability.Logger
}

// TokenResolverOption is a functional option for the token resolver.
type TokenResolverOption func(*TokenResolver)

// WithTokenResolverLogger sets the logger.
func WithTokenResolverLogger(logger observability.Logger) TokenResolverOption {
	return func(r *TokenResolver) {
		r.logger = logger
	}
}

// NewTokenResolver creates a resolver over the two credential codecs.
func NewTokenResolver(users *token.UserCodec, services *token.ServiceCodec, opts ...TokenResolverOption) (*TokenResolver, error) {
	if users == nil {
		return nil, errors.New("user token codec is required")
	}
	if services == nil {
		return nil, errors.New("service token codec is required")
	}

	r := &TokenResolver{
		users:    users,
		services: services,
		logger:   observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r, nil
}

// Resolve implements CredentialResolver. The service token header is
// consulted first; an invalid service token fails the call rather than
// falling back to the bearer token.
func (r *TokenResolver) Resolve(ctx context.Context, md metadata.MD) (*Principal, error) {
	if raw := firstValue(md, ServiceTokenHeader); raw != "" {
		claims, err := r.services.Verify(raw)
		if err != nil {
			r.logger.Debug("service token rejected", observability.Error(err))
			return nil, WrapAuthError(err, string(PrincipalService))
		}
		return servicePrincipal(claims), nil
	}

	raw := firstValue(md, AuthorizationHeader)
	if raw == "" {
		return nil, ErrNoCredentials
	}

	bearer, ok := stripBearer(raw)
	if !ok {
		return nil, ErrMalformedCredential
	}

	claims, err := r.users.Verify(bearer)
	if err != nil {
		r.logger.Debug("user token rejected", observability.Error(err))
		return nil, WrapAuthError(err, string(PrincipalUser))
	}

	return userPrincipal(claims), nil
}

// userPrincipal builds a Principal from verified user claims.
func userPrincipal(claims *token.UserClaims) *Principal {
	return &Principal{
		Kind:        PrincipalUser,
		ID:          claims.UserID(),
		Email:       claims.Email,
		Role:        claims.Role,
		Permissions: claims.Permissions,
	}
}

// servicePrincipal builds a Principal from verified service claims.
func servicePrincipal(claims *token.ServiceClaims) *Principal {
	return &Principal{
		Kind:        PrincipalService,
		ID:          claims.ServiceID(),
		ServiceName: claims.ServiceName,
		Permissions: claims.Permissions,
	}
}

// firstValue returns the first non-empty metadata value for the key.
func firstValue(md metadata.MD, key string) string {
	for _, v := range md.Get(key) {
		if v != "" {
			return v
		}
	}
	return ""
}

// stripBearer removes the Bearer prefix case-insensitively.
func stripBearer(value string) (string, bool) {
	if len(value) < len(bearerPrefix) {
		return "", false
	}
	if !strings.EqualFold(value[:len(bearerPrefix)], bearerPrefix) {
		return "", false
	}
	bearer := strings.TrimSpace(value[len(bearerPrefix):])
	if bearer == "" {
		return "", false
	}
	return bearer, true
}

// Ensure TokenResolver implements CredentialResolver.
var _ CredentialResolver = (*TokenResolver)(nil)
