// Package discovery resolves mesh service names to network endpoints.
// The mesh client resolves once per connection; pushing new endpoints
// through OnChange is how deployments move a service.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
)

// ErrServiceNotFound is returned when a service has no known endpoints.
var ErrServiceNotFound = errors.New("service not found")

// Endpoint is a resolved network address for one service instance.
type Endpoint struct {
	Host string `json:"host" yaml:"host"`
	Port int    `json:"port" yaml:"port"`
}

// Address returns the endpoint in host:port form.
func (e Endpoint) Address() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// Resolver looks up service endpoints.
type Resolver interface {
	// Resolve returns the current endpoints for a service name. The
	// slice is never empty when err is nil.
	Resolve(ctx context.Context, service string) ([]Endpoint, error)

	// OnChange registers a callback invoked whenever the endpoints for
	// a service change. The returned function cancels the
	// registration.
	OnChange(service string, fn func([]Endpoint)) (cancel func())
}

// Static resolves from a fixed endpoint table. SetEndpoints swaps
// entries at runtime and notifies watchers, which is enough for
// config-driven redeploys without a full discovery backend.
type Static struct {
	mu        sync.RWMutex
	endpoints map[string][]Endpoint
	watchers  map[string]map[int]func([]Endpoint)
	nextID    int
}

// NewStatic creates a resolver over the given endpoint table. Services
// mapped to empty endpoint lists are dropped.
func NewStatic(endpoints map[string][]Endpoint) *Static {
	table := make(map[string][]Endpoint, len(endpoints))
	for service, eps := range endpoints {
		if len(eps) == 0 {
			continue
		}
		table[service] = append([]Endpoint(nil), eps...)
	}

	return &Static{
		endpoints: table,
		watchers:  make(map[string]map[int]func([]Endpoint)),
	}
}

// Resolve implements Resolver.
func (s *Static) Resolve(ctx context.Context, service string) ([]Endpoint, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	eps, ok := s.endpoints[service]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrServiceNotFound, service)
	}

	return append([]Endpoint(nil), eps...), nil
}

// OnChange implements Resolver.
func (s *Static) OnChange(service string, fn func([]Endpoint)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.watchers[service] == nil {
		s.watchers[service] = make(map[int]func([]Endpoint))
	}

	id := s.nextID
	s.nextID++
	s.watchers[service][id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.watchers[service], id)
	}
}

// SetEndpoints updates the endpoints for a service and notifies
// watchers. An empty list removes the service. Watchers are called
// synchronously; they must not call back into the resolver while
// holding their own locks.
func (s *Static) SetEndpoints(service string, endpoints []Endpoint) {
	s.mu.Lock()
	if len(endpoints) == 0 {
		delete(s.endpoints, service)
	} else {
		s.endpoints[service] = append([]Endpoint(nil), endpoints...)
	}

	notified := append([]Endpoint(nil), endpoints...)
	fns := make([]func([]Endpoint), 0, len(s.watchers[service]))
	for _, fn := range s.watchers[service] {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(notified)
	}
}

// Services returns the known service names.
func (s *Static) Services() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	services := make([]string, 0, len(s.endpoints))
	for service := range s.endpoints {
		services = append(services, service)
	}
	return services
}

var _ Resolver = (*Static)(nil)
