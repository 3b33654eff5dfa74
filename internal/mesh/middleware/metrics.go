package middleware

import (
	"context"
	"errors"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"github.com/esshaancheema/rach-dev-monorepo-sub012/internal/metrics"
)

// Metrics records per-call statistics into the snapshot store and,
// when collectors are configured, into Prometheus. Observation runs
// after completion for every terminal status, cancellation included.
type Metrics struct {
	store      *metrics.Store
	collectors *metrics.Collectors
}

// MetricsOption is a functional option for the metrics interceptor.
type MetricsOption func(*Metrics)

// WithCollectors adds Prometheus export alongside the snapshot store.
func WithCollectors(c *metrics.Collectors) MetricsOption {
	return func(m *Metrics) {
		m.collectors = c
	}
}

// NewMetrics creates the metrics interceptor over a snapshot store.
func NewMetrics(store *metrics.Store, opts ...MetricsOption) (*Metrics, error) {
	if store == nil {
		return nil, errors.New("metrics store is required")
	}

	m := &Metrics{store: store}

	for _, opt := range opts {
		opt(m)
	}

	return m, nil
}

// UnaryServerInterceptor records inbound call statistics.
func (m *Metrics) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler,
	) (interface{}, error) {
		service, _ := ParseFullMethod(info.FullMethod)
		m.incInFlight(service)
		defer m.decInFlight(service)
		start := time.Now()

		resp, err := handler(ctx, req)

		m.record(info.FullMethod, time.Since(start), err)

		return resp, err
	}
}

// UnaryClientInterceptor records outbound call statistics.
func (m *Metrics) UnaryClientInterceptor() grpc.UnaryClientInterceptor {
	return func(
		ctx context.Context, method string, req, reply interface{},
		cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption,
	) error {
		service, _ := ParseFullMethod(method)
		m.incInFlight(service)
		defer m.decInFlight(service)
		start := time.Now()

		err := invoker(ctx, method, req, reply, cc, opts...)

		m.record(method, time.Since(start), err)

		return err
	}
}

func (m *Metrics) record(fullMethod string, elapsed time.Duration, callErr error) {
	contain(func() {
		m.store.Record(fullMethod, elapsed, callErr)

		if m.collectors == nil {
			return
		}
		service, method := ParseFullMethod(fullMethod)
		m.collectors.RecordRequest(service, method, status.Code(callErr).String(), elapsed)
	})
}

func (m *Metrics) incInFlight(service string) {
	if m.collectors == nil {
		return
	}
	contain(func() { m.collectors.IncInFlight(service) })
}

func (m *Metrics) decInFlight(service string) {
	if m.collectors == nil {
		return
	}
	contain(func() { m.collectors.DecInFlight(service) })
}

// ParseFullMethod parses a gRPC full method name into service and method.
// Full method format: /package.Service/Method
func ParseFullMethod(fullMethod string) (service, method string) {
	fullMethod = strings.TrimPrefix(fullMethod, "/")

	idx := strings.LastIndex(fullMethod, "/")
	if idx < 0 {
		return fullMethod, ""
	}

	return fullMethod[:idx], fullMethod[idx+1:]
}
