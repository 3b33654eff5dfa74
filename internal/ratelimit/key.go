package ratelimit

import (
	"context"
	"strings"

	"google.golang.org/grpc/metadata"

	"github.com/esshaancheema/rach-dev-monorepo-sub012/internal/auth"
)

// AnonymousKey is the rate limit key for calls without an identity.
const AnonymousKey = "anonymous"

// KeyFunc is a function that extracts a rate limit key from a call
// context.
type KeyFunc func(ctx context.Context) string

// PrincipalKeyFunc keys on the authenticated caller: the user id for
// user credentials, the service id for service credentials, and
// AnonymousKey when no principal is attached.
func PrincipalKeyFunc(ctx context.Context) string {
	principal, ok := auth.PrincipalFromContext(ctx)
	if !ok || principal.ID == "" {
		return AnonymousKey
	}
	return principal.ID
}

// MetadataKeyFunc returns a KeyFunc that uses an incoming metadata
// value as the rate limit key.
func MetadataKeyFunc(header string) KeyFunc {
	return func(ctx context.Context) string {
		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return AnonymousKey
		}
		for _, value := range md.Get(header) {
			if value != "" {
				return value
			}
		}
		return AnonymousKey
	}
}

// CompositeKeyFunc returns a KeyFunc that combines multiple key
// functions.
func CompositeKeyFunc(funcs ...KeyFunc) KeyFunc {
	return func(ctx context.Context) string {
		parts := make([]string, 0, len(funcs))
		for _, fn := range funcs {
			if key := fn(ctx); key != "" {
				parts = append(parts, key)
			}
		}
		if len(parts) == 0 {
			return AnonymousKey
		}
		return strings.Join(parts, ":")
	}
}
