package circuitbreaker

import (
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/esshaancheema/rach-dev-monorepo-sub012/internal/observability"
)

// GoBreaker is a Breaker backed by sony/gobreaker, with one two-step
// circuit breaker per service created on first use. A breaker trips
// when at least the threshold number of calls were seen in the current
// window and half of them failed.
type GoBreaker struct {
	threshold int
	timeout   time.Duration
	logger    observability.Logger

	mu       sync.RWMutex
	services map[string]*serviceBreaker
}

// serviceBreaker pairs a gobreaker instance with the outcome callbacks
// of its admitted, still unreported calls.
type serviceBreaker struct {
	cb *gobreaker.TwoStepCircuitBreaker

	mu      sync.Mutex
	pending []func(success bool)
}

// BreakerOption is a functional option for configuring a GoBreaker.
type BreakerOption func(*GoBreaker)

// WithBreakerLogger sets the logger for state transitions and
// rejections.
func WithBreakerLogger(logger observability.Logger) BreakerOption {
	return func(b *GoBreaker) {
		b.logger = logger
	}
}

// NewGoBreaker creates a breaker collaborator. The threshold and
// timeout apply to every service; zero values fall back to the
// defaults.
func NewGoBreaker(threshold int, timeout time.Duration, opts ...BreakerOption) *GoBreaker {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	b := &GoBreaker{
		threshold: threshold,
		timeout:   timeout,
		logger:    observability.NopLogger(),
		services:  make(map[string]*serviceBreaker),
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// Allow implements Breaker.
func (b *GoBreaker) Allow(service string) bool {
	sb := b.get(service)

	done, err := sb.cb.Allow()
	if err != nil {
		recordRequest(service, false)
		b.logger.Warn("circuit breaker rejected call",
			observability.String("service", service),
			observability.String("state", sb.cb.State().String()),
		)
		return false
	}

	recordRequest(service, true)

	sb.mu.Lock()
	sb.pending = append(sb.pending, done)
	sb.mu.Unlock()

	return true
}

// RecordOutcome implements Breaker. Callbacks within one breaker
// generation are interchangeable and gobreaker drops reports from
// superseded generations, so an outcome may settle any pending
// admitted call for the service.
func (b *GoBreaker) RecordOutcome(service string, success bool) {
	sb := b.get(service)

	sb.mu.Lock()
	var done func(success bool)
	if n := len(sb.pending); n > 0 {
		done = sb.pending[n-1]
		sb.pending = sb.pending[:n-1]
	}
	sb.mu.Unlock()

	if done == nil {
		// Outcome without a matching Allow; nothing to settle.
		return
	}

	if success {
		recordSuccess(service)
	} else {
		recordFailure(service)
	}

	done(success)
}

// State returns the breaker state for a service: closed, half-open or
// open. Services never seen report closed.
func (b *GoBreaker) State(service string) string {
	b.mu.RLock()
	sb, ok := b.services[service]
	b.mu.RUnlock()

	if !ok {
		return gobreaker.StateClosed.String()
	}
	return sb.cb.State().String()
}

// States returns the current state of every breaker, keyed by service.
func (b *GoBreaker) States() map[string]string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	states := make(map[string]string, len(b.services))
	for service, sb := range b.services {
		states[service] = sb.cb.State().String()
	}
	return states
}

// get returns the breaker for a service, creating it on first use.
func (b *GoBreaker) get(service string) *serviceBreaker {
	b.mu.RLock()
	sb, ok := b.services[service]
	b.mu.RUnlock()

	if ok {
		return sb
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	// Double-check after acquiring write lock
	if sb, ok = b.services[service]; ok {
		return sb
	}

	sb = &serviceBreaker{cb: b.newBreaker(service)}
	b.services[service] = sb

	b.logger.Debug("created circuit breaker",
		observability.String("service", service),
	)

	return sb
}

func (b *GoBreaker) newBreaker(service string) *gobreaker.TwoStepCircuitBreaker {
	thresholdU32 := safeIntToUint32(b.threshold)

	settings := gobreaker.Settings{
		Name:        service,
		MaxRequests: thresholdU32,
		Interval:    b.timeout,
		Timeout:     b.timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= thresholdU32 && failureRatio >= 0.5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			recordStateChange(name, from, to)
			b.logger.Info("circuit breaker state change",
				observability.String("service", name),
				observability.String("from", from.String()),
				observability.String("to", to.String()),
			)
		},
	}

	return gobreaker.NewTwoStepCircuitBreaker(settings)
}

var _ Breaker = (*GoBreaker)(nil)
