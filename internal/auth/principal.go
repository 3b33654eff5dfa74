package auth

import (
	"context"
)

// PrincipalKind distinguishes user principals from service principals.
type PrincipalKind string

// Principal kinds.
const (
	PrincipalUser    PrincipalKind = "user"
	PrincipalService PrincipalKind = "service"
)

// WildcardPermission satisfies every permission requirement.
const WildcardPermission = "*"

// DefaultAdminRole is the role that bypasses permission checks unless
// reconfigured.
const DefaultAdminRole = "admin"

// Principal is the resolved identity attached to a call after
// credential verification. Exactly one identity family is populated:
// Email and Role for users, ServiceName for services. Permissions is
// never nil.
type Principal struct {
	Kind        PrincipalKind `json:"kind"`
	ID          string        `json:"id"`
	Email       string        `json:"email,omitempty"`
	Role        string        `json:"role,omitempty"`
	ServiceName string        `json:"serviceName,omitempty"`
	Permissions []string      `json:"permissions"`
}

// IsService reports whether the principal is a service account.
func (p *Principal) IsService() bool {
	return p.Kind == PrincipalService
}

// HasPermission checks if the principal holds a specific permission.
func (p *Principal) HasPermission(permission string) bool {
	for _, granted := range p.Permissions {
		if granted == permission {
			return true
		}
	}
	return false
}

// HasAnyPermission checks if the principal holds any of the given
// permissions.
func (p *Principal) HasAnyPermission(permissions ...string) bool {
	for _, permission := range permissions {
		if p.HasPermission(permission) {
			return true
		}
	}
	return false
}

// Context key type for the principal.
type principalContextKey struct{}

// ContextWithPrincipal adds a principal to the context.
func ContextWithPrincipal(ctx context.Context, principal *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, principal)
}

// PrincipalFromContext extracts the principal from the context.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	principal, ok := ctx.Value(principalContextKey{}).(*Principal)
	if !ok || principal == nil {
		return nil, false
	}
	return principal, true
}

// PrincipalFromContextOrError extracts the principal from the context
// or returns ErrPrincipalNotFound.
func PrincipalFromContextOrError(ctx context.Context) (*Principal, error) {
	principal, ok := PrincipalFromContext(ctx)
	if !ok {
		return nil, ErrPrincipalNotFound
	}
	return principal, nil
}
