package mesh

import (
	"context"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/esshaancheema/rach-dev-monorepo-sub012/internal/observability"
)

// HealthCheck probes every managed service in parallel and reports
// which ones answered SERVING. Probe results drive the connection
// states: a passing probe moves the service to Ready, a failing one
// to Degraded.
func (m *Manager) HealthCheck(ctx context.Context) map[string]bool {
	m.mu.RLock()
	conns := make([]*serviceConn, 0, len(m.conns))
	for _, sc := range m.conns {
		conns = append(conns, sc)
	}
	m.mu.RUnlock()

	results := make(map[string]bool, len(conns))

	var (
		wg    sync.WaitGroup
		resMu sync.Mutex
	)
	for _, sc := range conns {
		wg.Add(1)
		go func(sc *serviceConn) {
			defer wg.Done()

			healthy := m.probe(ctx, sc)

			resMu.Lock()
			results[sc.service] = healthy
			resMu.Unlock()
		}(sc)
	}
	wg.Wait()

	return results
}

// probe checks one service over the gRPC health protocol. Probes dial
// their own short-lived channel: the managed channel carries the
// interceptor chain, which would reject the credential-less health
// RPC.
func (m *Manager) probe(ctx context.Context, sc *serviceConn) bool {
	checkCtx, cancel := context.WithTimeout(ctx, m.probeTimeout)
	defer cancel()

	target := sc.currentTarget()

	cc, err := grpc.NewClient(target,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		m.observeProbe(sc, false, err)
		return false
	}
	defer func() { _ = cc.Close() }()

	resp, err := healthpb.NewHealthClient(cc).Check(checkCtx, &healthpb.HealthCheckRequest{})
	healthy := err == nil && resp.GetStatus() == healthpb.HealthCheckResponse_SERVING

	m.observeProbe(sc, healthy, err)
	return healthy
}

// observeProbe applies a probe result to the connection state.
func (m *Manager) observeProbe(sc *serviceConn, healthy bool, err error) {
	if healthy {
		if sc.currentState() != StateReady {
			m.logger.Info("service healthy",
				observability.String("service", sc.service),
				observability.String("target", sc.currentTarget()),
			)
		}
		sc.setState(StateReady)
		return
	}

	sc.setState(StateDegraded)

	fields := []observability.Field{
		observability.String("service", sc.service),
		observability.String("target", sc.currentTarget()),
	}
	if err != nil {
		fields = append(fields, observability.Error(err))
	}
	m.logger.Warn("health probe failed", fields...)
}

// StartProber runs HealthCheck on a fixed interval until the context
// is canceled or the manager closes. A second call while the prober
// is running is a no-op.
func (m *Manager) StartProber(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultProbeInterval
	}

	m.mu.Lock()
	if m.closed || m.proberStop != nil {
		m.mu.Unlock()
		return
	}
	m.proberStop = make(chan struct{})
	stop := m.proberStop
	m.mu.Unlock()

	m.proberWG.Add(1)
	go func() {
		defer m.proberWG.Done()

		// Prime the connection states before the first tick.
		m.HealthCheck(ctx)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case <-ticker.C:
				m.HealthCheck(ctx)
			}
		}
	}()
}

// stopProber halts the background prober and waits for it to exit.
// Safe to call when the prober never started.
func (m *Manager) stopProber() {
	m.mu.Lock()
	stop := m.proberStop
	m.proberStop = nil
	m.mu.Unlock()

	if stop != nil {
		close(stop)
	}
	m.proberWG.Wait()
}
