// Package circuitbreaker guards mesh calls against failing downstream
// services. The mesh consults Allow before dispatching a call and
// reports the outcome afterwards; a service whose failure ratio
// crosses the trip threshold is cut off until the reset timeout
// elapses, after which probe calls decide whether it recovers.
package circuitbreaker

import (
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	// DefaultThreshold is the minimum number of calls in a counting
	// window before the failure ratio can trip a breaker.
	DefaultThreshold = 5

	// DefaultTimeout is how long a tripped breaker stays open before
	// probing the service again.
	DefaultTimeout = 30 * time.Second
)

// Breaker decides whether calls to downstream services may proceed.
// Every admitted call must be matched by exactly one RecordOutcome for
// the same service.
type Breaker interface {
	// Allow reports whether a call to the service may be dispatched.
	Allow(service string) bool

	// RecordOutcome reports how an admitted call ended.
	RecordOutcome(service string, success bool)
}

// Nop admits every call and records nothing. It stands in when circuit
// breaking is disabled.
type Nop struct{}

// Allow implements Breaker.
func (Nop) Allow(string) bool { return true }

// RecordOutcome implements Breaker.
func (Nop) RecordOutcome(string, bool) {}

// Successful reports whether a call outcome counts as a success for
// breaker purposes. Codes that indicate a caller mistake rather than
// service trouble are successes.
func Successful(err error) bool {
	if err == nil {
		return true
	}
	code := status.Code(err)
	switch code {
	case codes.OK, codes.Canceled, codes.InvalidArgument,
		codes.NotFound, codes.AlreadyExists, codes.PermissionDenied,
		codes.Unauthenticated, codes.FailedPrecondition, codes.OutOfRange:
		return true
	default:
		return false
	}
}

// safeIntToUint32 safely converts int to uint32.
func safeIntToUint32(n int) uint32 {
	if n < 0 {
		return 0
	}
	if n > int(^uint32(0)) {
		return ^uint32(0)
	}
	return uint32(n) //nolint:gosec // bounds checked above
}

var _ Breaker = Nop{}
