package store

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// newTestRedisStore spins up a miniredis-backed store.
func newTestRedisStore(t *testing.T) *RedisStore {
	t.Helper()

	mr := miniredis.RunT(t)

	store, err := NewRedisStore(mr.Addr(), "", 0, "test:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return store
}

// ============================================================================
// Constructor Tests
// ============================================================================

// TestNewRedisStore tests the basic constructor.
func TestNewRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)

	store, err := NewRedisStore(mr.Addr(), "", 0, "test:")
	require.NoError(t, err)
	require.NotNil(t, store)
	defer store.Close()

	assert.Equal(t, "test:", store.prefix)
	assert.NotNil(t, store.client)
}

// TestNewRedisStore_DefaultPrefix tests that empty prefix uses default.
func TestNewRedisStore_DefaultPrefix(t *testing.T) {
	mr := miniredis.RunT(t)

	store, err := NewRedisStore(mr.Addr(), "", 0, "")
	require.NoError(t, err)
	defer store.Close()

	assert.Equal(t, "ratelimit:", store.prefix)
}

// TestNewRedisStoreWithConfig_CustomConfig tests constructor with custom config.
func TestNewRedisStoreWithConfig_CustomConfig(t *testing.T) {
	mr := miniredis.RunT(t)

	config := &RedisConfig{
		Address:      mr.Addr(),
		Prefix:       "custom:",
		PoolSize:     5,
		MinIdleConns: 1,
		MaxRetries:   2,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
		Logger:       zap.NewNop(),
	}

	store, err := NewRedisStoreWithConfig(config)
	require.NoError(t, err)
	defer store.Close()

	assert.Equal(t, "custom:", store.prefix)
}

// TestNewRedisStore_ConnectionFailure tests fail-fast on unreachable server.
func TestNewRedisStore_ConnectionFailure(t *testing.T) {
	config := DefaultRedisConfig()
	config.Address = "127.0.0.1:1"
	config.DialTimeout = 100 * time.Millisecond
	config.MaxRetries = 0

	store, err := NewRedisStoreWithConfig(config)
	assert.Error(t, err)
	assert.Nil(t, store)
}

// ============================================================================
// Take Tests
// ============================================================================

// TestRedisStore_Take_AdmitsUntilLimit tests admission up to the limit.
func TestRedisStore_Take_AdmitsUntilLimit(t *testing.T) {
	store := newTestRedisStore(t)
	ctx := context.Background()

	for i := int64(1); i <= 3; i++ {
		res, err := store.Take(ctx, "key1", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.Equal(t, 3-i, res.Remaining)
	}

	res, err := store.Take(ctx, "key1", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, int64(0), res.Remaining)
}

// TestRedisStore_Take_RejectionDoesNotIncrement tests that rejected
// requests leave the counter untouched.
func TestRedisStore_Take_RejectionDoesNotIncrement(t *testing.T) {
	store := newTestRedisStore(t)
	ctx := context.Background()

	res, err := store.Take(ctx, "key1", 1, time.Minute)
	require.NoError(t, err)
	require.True(t, res.Allowed)

	for i := 0; i < 3; i++ {
		res, err = store.Take(ctx, "key1", 1, time.Minute)
		require.NoError(t, err)
		assert.False(t, res.Allowed)
	}

	count, err := store.Count(ctx, "key1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

// TestRedisStore_Take_WindowExpiry tests that an elapsed window admits
// again.
func TestRedisStore_Take_WindowExpiry(t *testing.T) {
	mr := miniredis.RunT(t)

	store, err := NewRedisStore(mr.Addr(), "", 0, "test:")
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()

	res, err := store.Take(ctx, "key1", 1, time.Second)
	require.NoError(t, err)
	require.True(t, res.Allowed)

	res, err = store.Take(ctx, "key1", 1, time.Second)
	require.NoError(t, err)
	require.False(t, res.Allowed)

	// Advance miniredis past the key TTL.
	mr.FastForward(2 * time.Second)

	res, err = store.Take(ctx, "key1", 1, time.Second)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

// TestRedisStore_Take_ZeroLimit tests that a non-positive limit rejects.
func TestRedisStore_Take_ZeroLimit(t *testing.T) {
	store := newTestRedisStore(t)
	ctx := context.Background()

	res, err := store.Take(ctx, "key1", 0, time.Minute)
	require.NoError(t, err)
	assert.False(t, res.Allowed)

	_, err = store.Count(ctx, "key1")
	assert.True(t, IsKeyNotFound(err))
}

// TestRedisStore_Take_Concurrent tests that concurrent takes admit
// exactly the limit.
func TestRedisStore_Take_Concurrent(t *testing.T) {
	store := newTestRedisStore(t)
	ctx := context.Background()

	const goroutines = 16
	const limit = 10

	var admitted atomic.Int64
	var wg sync.WaitGroup

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := store.Take(ctx, "key1", limit, time.Minute)
			if assert.NoError(t, err) && res.Allowed {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(limit), admitted.Load())
}

// TestRedisStore_Take_ContextCancelled tests fail-fast on cancelled context.
func TestRedisStore_Take_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := &RedisStore{prefix: "test:"}

	_, err := store.Take(ctx, "key1", 1, time.Minute)
	assert.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

// ============================================================================
// Count / Delete / Sweep Tests
// ============================================================================

// TestRedisStore_Count_KeyNotFound tests Count with a missing key.
func TestRedisStore_Count_KeyNotFound(t *testing.T) {
	store := newTestRedisStore(t)

	_, err := store.Count(context.Background(), "nonexistent")
	assert.Error(t, err)
	assert.True(t, IsKeyNotFound(err))
}

// TestRedisStore_Delete tests that Delete resets the window.
func TestRedisStore_Delete(t *testing.T) {
	store := newTestRedisStore(t)
	ctx := context.Background()

	res, err := store.Take(ctx, "key1", 1, time.Minute)
	require.NoError(t, err)
	require.True(t, res.Allowed)

	require.NoError(t, store.Delete(ctx, "key1"))

	res, err = store.Take(ctx, "key1", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

// TestRedisStore_Sweep tests that Sweep is a no-op.
func TestRedisStore_Sweep(t *testing.T) {
	store := newTestRedisStore(t)

	removed, err := store.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, removed)
}

// TestRedisStore_Sweep_ContextCancelled tests fail-fast on cancelled context.
func TestRedisStore_Sweep_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := &RedisStore{prefix: "test:"}

	_, err := store.Sweep(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
}

// ============================================================================
// Close Tests
// ============================================================================

// TestRedisStore_Close_Idempotent tests that Close can be called twice.
func TestRedisStore_Close_Idempotent(t *testing.T) {
	store := newTestRedisStore(t)

	require.NoError(t, store.Close())
	require.NoError(t, store.Close())
}

// ============================================================================
// parseTakeResult Tests
// ============================================================================

// TestParseTakeResult tests script result parsing.
func TestParseTakeResult(t *testing.T) {
	tests := []struct {
		name    string
		result  interface{}
		want    *TakeResult
		wantErr bool
	}{
		{
			name:   "allowed",
			result: []interface{}{int64(1), int64(4), int64(1700000000000)},
			want: &TakeResult{
				Allowed:   true,
				Remaining: 4,
				ResetAt:   time.UnixMilli(1700000000000),
			},
		},
		{
			name:   "rejected",
			result: []interface{}{int64(0), int64(0), int64(1700000000000)},
			want: &TakeResult{
				Allowed:   false,
				Remaining: 0,
				ResetAt:   time.UnixMilli(1700000000000),
			},
		},
		{
			name:    "wrong shape",
			result:  []interface{}{int64(1)},
			wantErr: true,
		},
		{
			name:    "wrong element type",
			result:  []interface{}{"1", int64(0), int64(0)},
			wantErr: true,
		},
		{
			name:    "not a slice",
			result:  "nope",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseTakeResult(tt.result)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
