package auth

import (
	"errors"
	"fmt"
)

// Sentinel errors for authentication operations.
var (
	// ErrNoCredentials indicates that no credentials were provided.
	ErrNoCredentials = errors.New("no credentials provided")

	// ErrMalformedCredential indicates that a credential header was
	// present but not in the expected shape.
	ErrMalformedCredential = errors.New("malformed credential")

	// ErrPermissionDenied indicates a valid credential without the
	// required permission.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrPrincipalNotFound is returned when no principal is attached to
	// the context.
	ErrPrincipalNotFound = errors.New("principal not found in context")
)

// AuthError wraps a credential verification failure with the credential
// kind that produced it.
type AuthError struct {
	Kind    string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("auth error (%s): %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("auth error (%s): %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error.
func (e *AuthError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target.
func (e *AuthError) Is(target error) bool {
	_, ok := target.(*AuthError)
	return ok
}

// WrapAuthError wraps an error with the credential kind it came from.
func WrapAuthError(err error, kind string) error {
	if err == nil {
		return nil
	}
	return &AuthError{
		Kind:    kind,
		Message: err.Error(),
		Cause:   err,
	}
}

// IsAuthError checks if an error is an authentication error.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}
