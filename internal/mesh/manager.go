package mesh

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/status"

	"github.com/esshaancheema/rach-dev-monorepo-sub012/internal/circuitbreaker"
	"github.com/esshaancheema/rach-dev-monorepo-sub012/internal/discovery"
	"github.com/esshaancheema/rach-dev-monorepo-sub012/internal/mesh/middleware"
	"github.com/esshaancheema/rach-dev-monorepo-sub012/internal/observability"
)

const (
	// DefaultCallTimeout is applied to calls whose context carries no
	// deadline.
	DefaultCallTimeout = 30 * time.Second

	// DefaultProbeTimeout bounds a single health probe.
	DefaultProbeTimeout = 5 * time.Second

	// DefaultProbeInterval is the period of the background prober.
	DefaultProbeInterval = 10 * time.Second

	// DefaultKeepaliveTime is the client keepalive ping interval.
	DefaultKeepaliveTime = 30 * time.Second

	// DefaultKeepaliveTimeout is how long a keepalive ping may go
	// unanswered before the channel is considered broken.
	DefaultKeepaliveTimeout = 10 * time.Second

	// DefaultMaxMessageSize caps sent and received messages at 4 MiB.
	DefaultMaxMessageSize = 4 << 20

	// rehomeMinInterval is the shortest gap between endpoint moves for
	// one service. Faster discovery churn is dropped.
	rehomeMinInterval = 5 * time.Second
)

// Manager owns one client channel per platform service. Channels are
// dialed once at construction and re-homed when discovery pushes new
// endpoints. All calls go through Invoke, which consults the circuit
// breaker and tracks in-flight calls for draining.
type Manager struct {
	logger   observability.Logger
	breaker  circuitbreaker.Breaker
	resolver discovery.Resolver
	chain    *middleware.Chain

	extraDialOpts  []grpc.DialOption
	dialOpts       []grpc.DialOption
	defaultTimeout time.Duration
	probeTimeout   time.Duration

	mu     sync.RWMutex
	conns  map[string]*serviceConn
	closed bool

	inFlight  sync.WaitGroup
	closeOnce sync.Once

	cancelWatch    []func()
	rehomeLimiters map[string]*rate.Limiter

	proberStop chan struct{}
	proberWG   sync.WaitGroup
}

// ManagerOption configures the Manager.
type ManagerOption func(*Manager)

// WithManagerLogger sets the logger for the manager.
func WithManagerLogger(logger observability.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithBreaker sets the circuit breaker consulted before dispatch.
func WithBreaker(breaker circuitbreaker.Breaker) ManagerOption {
	return func(m *Manager) {
		if breaker != nil {
			m.breaker = breaker
		}
	}
}

// WithResolver sets the discovery resolver whose endpoint changes
// re-home managed channels.
func WithResolver(resolver discovery.Resolver) ManagerOption {
	return func(m *Manager) {
		m.resolver = resolver
	}
}

// WithChain attaches the interceptor chain to every managed channel.
func WithChain(chain *middleware.Chain) ManagerOption {
	return func(m *Manager) {
		m.chain = chain
	}
}

// WithDialOptions appends custom dial options.
func WithDialOptions(opts ...grpc.DialOption) ManagerOption {
	return func(m *Manager) {
		m.extraDialOpts = append(m.extraDialOpts, opts...)
	}
}

// WithDefaultTimeout sets the deadline applied to calls without one.
func WithDefaultTimeout(timeout time.Duration) ManagerOption {
	return func(m *Manager) {
		if timeout > 0 {
			m.defaultTimeout = timeout
		}
	}
}

// WithProbeTimeout bounds a single health probe.
func WithProbeTimeout(timeout time.Duration) ManagerOption {
	return func(m *Manager) {
		if timeout > 0 {
			m.probeTimeout = timeout
		}
	}
}

// NewManager dials one channel per entry in services. Construction is
// all or nothing: if any service fails to dial, every channel built so
// far is closed and the error is returned.
func NewManager(services map[string]discovery.Endpoint, opts ...ManagerOption) (*Manager, error) {
	if len(services) == 0 {
		return nil, fmt.Errorf("mesh manager requires at least one service")
	}

	m := &Manager{
		logger:         observability.NopLogger(),
		breaker:        circuitbreaker.Nop{},
		defaultTimeout: DefaultCallTimeout,
		probeTimeout:   DefaultProbeTimeout,
		conns:          make(map[string]*serviceConn, len(services)),
		rehomeLimiters: make(map[string]*rate.Limiter, len(services)),
	}

	for _, opt := range opts {
		opt(m)
	}

	m.dialOpts = m.buildDialOptions()

	for service, endpoint := range services {
		target := endpoint.Address()

		cc, err := grpc.NewClient(target, m.dialOpts...)
		if err != nil {
			for _, sc := range m.conns {
				_ = sc.close()
			}
			return nil, fmt.Errorf("dial %s at %s: %w", service, target, err)
		}

		m.conns[service] = &serviceConn{
			service: service,
			target:  target,
			cc:      cc,
			state:   StateConnecting,
		}

		m.logger.Info("service channel opened",
			observability.String("service", service),
			observability.String("target", target),
		)
	}

	if m.resolver != nil {
		for service := range m.conns {
			m.rehomeLimiters[service] = rate.NewLimiter(rate.Every(rehomeMinInterval), 1)

			svc := service
			cancel := m.resolver.OnChange(svc, func(endpoints []discovery.Endpoint) {
				m.rehome(svc, endpoints)
			})
			m.cancelWatch = append(m.cancelWatch, cancel)
		}
	}

	return m, nil
}

// buildDialOptions assembles the dial options for managed channels.
func (m *Manager) buildDialOptions() []grpc.DialOption {
	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                DefaultKeepaliveTime,
			Timeout:             DefaultKeepaliveTimeout,
			PermitWithoutStream: true,
		}),
		grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(DefaultMaxMessageSize),
			grpc.MaxCallSendMsgSize(DefaultMaxMessageSize),
		),
	}

	if m.chain != nil {
		opts = append(opts, m.chain.DialOption())
	}

	opts = append(opts, m.extraDialOpts...)
	return opts
}

// Invoke dispatches a unary call to the named service. The circuit
// breaker is consulted first; a denied call never reaches the wire and
// records no outcome. Calls without a deadline get the default one.
func (m *Manager) Invoke(ctx context.Context, service, method string, args, reply interface{}, opts ...grpc.CallOption) error {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return status.Error(codes.Unavailable, "connection manager closed")
	}
	sc, ok := m.conns[service]
	if ok {
		m.inFlight.Add(1)
	}
	m.mu.RUnlock()

	if !ok {
		return status.Errorf(codes.Unavailable, "unknown service %q", service)
	}
	defer m.inFlight.Done()

	if !m.breaker.Allow(service) {
		return status.Error(codes.Unavailable, "service unavailable: circuit breaker open")
	}

	callCtx, cancel := m.applyTimeout(ctx)
	if cancel != nil {
		defer cancel()
	}

	callOpts := make([]grpc.CallOption, 0, len(opts)+1)
	callOpts = append(callOpts, grpc.ForceCodec(&jsonCodec{}))
	callOpts = append(callOpts, opts...)

	err := sc.conn().Invoke(callCtx, method, args, reply, callOpts...)
	m.breaker.RecordOutcome(service, circuitbreaker.Successful(err))

	if err != nil {
		m.logger.Debug("mesh call failed",
			observability.String("service", service),
			observability.String("method", method),
			observability.Error(err),
		)
	}
	return err
}

// applyTimeout returns a context bounded by the default timeout when
// the caller supplied none. The cancel func is nil when the caller's
// own deadline is kept.
func (m *Manager) applyTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, nil
	}
	return context.WithTimeout(ctx, m.defaultTimeout)
}

// rehome points a service channel at a new endpoint. The first
// endpoint in the list becomes the new home; moves arriving faster
// than the churn guard allows are dropped.
func (m *Manager) rehome(service string, endpoints []discovery.Endpoint) {
	if len(endpoints) == 0 {
		m.logger.Warn("discovery pushed no endpoints, keeping current channel",
			observability.String("service", service),
		)
		return
	}

	m.mu.RLock()
	sc, ok := m.conns[service]
	closed := m.closed
	m.mu.RUnlock()

	if !ok || closed {
		return
	}

	target := endpoints[0].Address()
	if sc.currentTarget() == target {
		return
	}

	if limiter := m.rehomeLimiters[service]; limiter != nil && !limiter.Allow() {
		m.logger.Warn("endpoint change dropped by churn guard",
			observability.String("service", service),
			observability.String("target", target),
		)
		return
	}

	cc, err := grpc.NewClient(target, m.dialOpts...)
	if err != nil {
		m.logger.Error("failed to dial new endpoint",
			observability.String("service", service),
			observability.String("target", target),
			observability.Error(err),
		)
		return
	}

	old := sc.swap(target, cc)
	if old != nil {
		_ = old.Close()
	}

	m.logger.Info("service channel re-homed",
		observability.String("service", service),
		observability.String("target", target),
	)
}

// Services returns the managed service names, sorted.
func (m *Manager) Services() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	services := make([]string, 0, len(m.conns))
	for service := range m.conns {
		services = append(services, service)
	}
	sort.Strings(services)
	return services
}

// Targets returns the current endpoint address per service.
func (m *Manager) Targets() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	targets := make(map[string]string, len(m.conns))
	for service, sc := range m.conns {
		targets[service] = sc.currentTarget()
	}
	return targets
}

// States returns the connection state per service.
func (m *Manager) States() map[string]State {
	m.mu.RLock()
	defer m.mu.RUnlock()

	states := make(map[string]State, len(m.conns))
	for service, sc := range m.conns {
		states[service] = sc.currentState()
	}
	return states
}

// Close drains in-flight calls and shuts every channel down. It is
// idempotent; the context bounds how long draining may take. Calls
// still in flight when the context expires are abandoned.
func (m *Manager) Close(ctx context.Context) error {
	var err error

	m.closeOnce.Do(func() {
		m.mu.Lock()
		m.closed = true
		m.mu.Unlock()

		m.stopProber()

		for _, cancel := range m.cancelWatch {
			cancel()
		}

		drained := make(chan struct{})
		go func() {
			m.inFlight.Wait()
			close(drained)
		}()

		select {
		case <-drained:
		case <-ctx.Done():
			m.logger.Warn("shutdown deadline reached with calls still in flight")
			err = ctx.Err()
		}

		m.mu.Lock()
		for service, sc := range m.conns {
			if cerr := sc.close(); cerr != nil && err == nil {
				err = fmt.Errorf("close %s channel: %w", service, cerr)
			}
		}
		m.conns = make(map[string]*serviceConn)
		m.mu.Unlock()

		m.logger.Info("connection manager closed")
	})

	return err
}
