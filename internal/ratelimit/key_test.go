package ratelimit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/metadata"

	"github.com/esshaancheema/rach-dev-monorepo-sub012/internal/auth"
)

func TestPrincipalKeyFunc(t *testing.T) {
	tests := []struct {
		name      string
		principal *auth.Principal
		want      string
	}{
		{
			name:      "user principal keys on user id",
			principal: &auth.Principal{Kind: auth.PrincipalUser, ID: "user-1"},
			want:      "user-1",
		},
		{
			name:      "service principal keys on service id",
			principal: &auth.Principal{Kind: auth.PrincipalService, ID: "svc-ai", ServiceName: "ai"},
			want:      "svc-ai",
		},
		{
			name:      "no principal falls back to anonymous",
			principal: nil,
			want:      AnonymousKey,
		},
		{
			name:      "empty id falls back to anonymous",
			principal: &auth.Principal{Kind: auth.PrincipalUser},
			want:      AnonymousKey,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			if tt.principal != nil {
				ctx = auth.ContextWithPrincipal(ctx, tt.principal)
			}

			assert.Equal(t, tt.want, PrincipalKeyFunc(ctx))
		})
	}
}

func TestMetadataKeyFunc(t *testing.T) {
	fn := MetadataKeyFunc("x-tenant-id")

	t.Run("header present", func(t *testing.T) {
		ctx := metadata.NewIncomingContext(context.Background(),
			metadata.Pairs("x-tenant-id", "tenant-42"))
		assert.Equal(t, "tenant-42", fn(ctx))
	})

	t.Run("header empty", func(t *testing.T) {
		ctx := metadata.NewIncomingContext(context.Background(),
			metadata.Pairs("x-tenant-id", ""))
		assert.Equal(t, AnonymousKey, fn(ctx))
	})

	t.Run("no metadata", func(t *testing.T) {
		assert.Equal(t, AnonymousKey, fn(context.Background()))
	})
}

func TestCompositeKeyFunc(t *testing.T) {
	ctx := auth.ContextWithPrincipal(context.Background(),
		&auth.Principal{Kind: auth.PrincipalUser, ID: "user-1"})
	ctx = metadata.NewIncomingContext(ctx, metadata.Pairs("x-tenant-id", "tenant-42"))

	fn := CompositeKeyFunc(MetadataKeyFunc("x-tenant-id"), PrincipalKeyFunc)
	assert.Equal(t, "tenant-42:user-1", fn(ctx))

	empty := CompositeKeyFunc()
	assert.Equal(t, AnonymousKey, empty(context.Background()))
}
