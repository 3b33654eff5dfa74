package circuitbreaker

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/esshaancheema/rach-dev-monorepo-sub012/internal/observability"
)

// ============================================================================
// Test Cases for GoBreaker Construction
// ============================================================================

// TestNewGoBreaker verifies construction and default fallbacks.
func TestNewGoBreaker(t *testing.T) {
	b := NewGoBreaker(0, 0)

	assert.Equal(t, DefaultThreshold, b.threshold)
	assert.Equal(t, DefaultTimeout, b.timeout)
	assert.Equal(t, "closed", b.State("auth"))
	assert.Empty(t, b.States(), "states cover only services seen")
}

// TestNewGoBreaker_WithLogger verifies the logger option is applied
// and transitions log without incident.
func TestNewGoBreaker_WithLogger(t *testing.T) {
	b := NewGoBreaker(1, time.Minute, WithBreakerLogger(observability.NopLogger()))

	require.True(t, b.Allow("auth"))
	b.RecordOutcome("auth", false)

	assert.Equal(t, "open", b.State("auth"))
}

// ============================================================================
// Test Cases for Admission and Tripping
// ============================================================================

// TestGoBreaker_AllowWhenClosed verifies calls pass through a closed
// breaker.
func TestGoBreaker_AllowWhenClosed(t *testing.T) {
	b := NewGoBreaker(3, time.Minute)

	require.True(t, b.Allow("projects"))
	b.RecordOutcome("projects", true)

	assert.Equal(t, "closed", b.State("projects"))
}

// TestGoBreaker_TripsOnFailureRatio verifies the breaker opens once
// enough calls fail and rejects further calls.
func TestGoBreaker_TripsOnFailureRatio(t *testing.T) {
	b := NewGoBreaker(3, time.Minute)

	for i := 0; i < 3; i++ {
		require.True(t, b.Allow("projects"), "call %d should be admitted", i)
		b.RecordOutcome("projects", false)
	}

	assert.Equal(t, "open", b.State("projects"))
	assert.False(t, b.Allow("projects"))
}

// TestGoBreaker_StaysClosedBelowRatio verifies that a failure ratio
// under one half leaves the breaker closed.
func TestGoBreaker_StaysClosedBelowRatio(t *testing.T) {
	b := NewGoBreaker(4, time.Minute)

	outcomes := []bool{true, true, true, false, false}
	for _, success := range outcomes {
		require.True(t, b.Allow("collaboration"))
		b.RecordOutcome("collaboration", success)
	}

	// Two failures out of five is below the 0.5 trip ratio.
	assert.Equal(t, "closed", b.State("collaboration"))
	assert.True(t, b.Allow("collaboration"))
	b.RecordOutcome("collaboration", true)
}

// TestGoBreaker_SuccessesNeverTrip verifies a long run of successes
// keeps the breaker closed.
func TestGoBreaker_SuccessesNeverTrip(t *testing.T) {
	b := NewGoBreaker(2, time.Minute)

	for i := 0; i < 50; i++ {
		require.True(t, b.Allow("files"))
		b.RecordOutcome("files", true)
	}

	assert.Equal(t, "closed", b.State("files"))
}

// ============================================================================
// Test Cases for Recovery
// ============================================================================

// TestGoBreaker_RecoversThroughHalfOpen verifies the open breaker
// probes after the timeout and closes on a successful probe.
func TestGoBreaker_RecoversThroughHalfOpen(t *testing.T) {
	b := NewGoBreaker(1, 50*time.Millisecond)

	require.True(t, b.Allow("ai"))
	b.RecordOutcome("ai", false)

	assert.Equal(t, "open", b.State("ai"))
	assert.False(t, b.Allow("ai"))

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, "half-open", b.State("ai"))

	require.True(t, b.Allow("ai"))
	b.RecordOutcome("ai", true)

	assert.Equal(t, "closed", b.State("ai"))
}

// TestGoBreaker_HalfOpenFailureReopens verifies a failing probe sends
// the breaker straight back to open.
func TestGoBreaker_HalfOpenFailureReopens(t *testing.T) {
	b := NewGoBreaker(1, 50*time.Millisecond)

	require.True(t, b.Allow("ai"))
	b.RecordOutcome("ai", false)

	time.Sleep(60 * time.Millisecond)

	require.True(t, b.Allow("ai"))
	b.RecordOutcome("ai", false)

	assert.Equal(t, "open", b.State("ai"))
}

// TestGoBreaker_HalfOpenLimitsProbes verifies the half-open state
// admits only the configured number of in-flight probes.
func TestGoBreaker_HalfOpenLimitsProbes(t *testing.T) {
	b := NewGoBreaker(1, 50*time.Millisecond)

	require.True(t, b.Allow("files"))
	b.RecordOutcome("files", false)

	time.Sleep(60 * time.Millisecond)

	// The single probe slot is taken until its outcome is reported.
	require.True(t, b.Allow("files"))
	assert.False(t, b.Allow("files"))

	b.RecordOutcome("files", true)
	assert.Equal(t, "closed", b.State("files"))
}

// ============================================================================
// Test Cases for Outcome Matching
// ============================================================================

// TestGoBreaker_UnmatchedOutcomeIsDropped verifies an outcome without
// a prior Allow changes nothing.
func TestGoBreaker_UnmatchedOutcomeIsDropped(t *testing.T) {
	b := NewGoBreaker(1, time.Minute)

	b.RecordOutcome("auth", false)
	b.RecordOutcome("auth", false)

	assert.Equal(t, "closed", b.State("auth"))
	assert.True(t, b.Allow("auth"))
	b.RecordOutcome("auth", true)
}

// TestGoBreaker_InFlightOutcomesSettle verifies outcomes reported out
// of order settle the pending admitted calls.
func TestGoBreaker_InFlightOutcomesSettle(t *testing.T) {
	b := NewGoBreaker(100, time.Minute)

	for i := 0; i < 5; i++ {
		require.True(t, b.Allow("projects"))
	}
	for i := 0; i < 5; i++ {
		b.RecordOutcome("projects", true)
	}

	sb := b.get("projects")
	sb.mu.Lock()
	pending := len(sb.pending)
	sb.mu.Unlock()

	assert.Zero(t, pending, "all admitted calls should be settled")
	assert.Equal(t, "closed", b.State("projects"))
}

// ============================================================================
// Test Cases for Per-Service Isolation
// ============================================================================

// TestGoBreaker_IndependentServices verifies tripping one service
// leaves the others closed.
func TestGoBreaker_IndependentServices(t *testing.T) {
	b := NewGoBreaker(1, time.Minute)

	require.True(t, b.Allow("projects"))
	b.RecordOutcome("projects", false)

	assert.Equal(t, "open", b.State("projects"))
	assert.False(t, b.Allow("projects"))

	assert.Equal(t, "closed", b.State("files"))
	require.True(t, b.Allow("files"))
	b.RecordOutcome("files", true)
}

// TestGoBreaker_States verifies the per-service state snapshot.
func TestGoBreaker_States(t *testing.T) {
	b := NewGoBreaker(1, time.Minute)

	require.True(t, b.Allow("auth"))
	b.RecordOutcome("auth", true)

	require.True(t, b.Allow("ai"))
	b.RecordOutcome("ai", false)

	assert.Equal(t, map[string]string{
		"auth": "closed",
		"ai":   "open",
	}, b.States())
}

// ============================================================================
// Test Cases for Concurrency
// ============================================================================

// TestGoBreaker_Concurrent verifies concurrent Allow and RecordOutcome
// pairs leave no pending callbacks behind.
func TestGoBreaker_Concurrent(t *testing.T) {
	b := NewGoBreaker(1000, time.Minute)

	const (
		workers   = 16
		perWorker = 25
	)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				if b.Allow("auth") {
					b.RecordOutcome("auth", true)
				}
			}
		}()
	}
	wg.Wait()

	sb := b.get("auth")
	sb.mu.Lock()
	pending := len(sb.pending)
	sb.mu.Unlock()

	assert.Zero(t, pending)
	assert.Equal(t, "closed", b.State("auth"))
}
