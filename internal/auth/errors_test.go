package auth

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/esshaancheema/rach-dev-monorepo-sub012/internal/auth/token"
)

func TestAuthError_Error(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      *AuthError
		expected string
	}{
		{
			name: "without cause",
			err: &AuthError{
				Kind:    "user",
				Message: "token expired",
			},
			expected: "auth error (user): token expired",
		},
		{
			name: "with cause",
			err: &AuthError{
				Kind:    "service",
				Message: "verification failed",
				Cause:   errors.New("bad signature"),
			},
			expected: "auth error (service): verification failed: bad signature",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestAuthError_Unwrap(t *testing.T) {
	t.Parallel()

	cause := token.ErrTokenExpired
	err := WrapAuthError(cause, "user")

	assert.ErrorIs(t, err, token.ErrTokenExpired)
}

func TestAuthError_Is(t *testing.T) {
	t.Parallel()

	wrapped := WrapAuthError(errors.New("boom"), "user")

	assert.True(t, errors.Is(wrapped, &AuthError{}))
	assert.False(t, errors.Is(errors.New("boom"), &AuthError{}))
}

func TestIsAuthError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "wrapped auth error",
			err:  WrapAuthError(errors.New("boom"), "user"),
			want: true,
		},
		{
			name: "nested auth error",
			err:  fmt.Errorf("outer: %w", WrapAuthError(errors.New("boom"), "service")),
			want: true,
		},
		{
			name: "sentinel only",
			err:  ErrNoCredentials,
			want: false,
		},
		{
			name: "nil",
			err:  nil,
			want: false,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, IsAuthError(tt.err))
		})
	}
}
