package mesh

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/esshaancheema/rach-dev-monorepo-sub012/internal/discovery"
)

// startHealthServer runs a real gRPC server answering health checks
// with the given status.
func startHealthServer(t *testing.T, status healthpb.HealthCheckResponse_ServingStatus) discovery.Endpoint {
	t.Helper()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := grpc.NewServer()
	hs := health.NewServer()
	hs.SetServingStatus("", status)
	healthpb.RegisterHealthServer(srv, hs)

	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	addr := lis.Addr().(*net.TCPAddr)
	return discovery.Endpoint{Host: "127.0.0.1", Port: addr.Port}
}

func TestManager_HealthCheck_Serving(t *testing.T) {
	t.Parallel()

	endpoint := startHealthServer(t, healthpb.HealthCheckResponse_SERVING)

	mgr, err := NewManager(map[string]discovery.Endpoint{
		ServiceAuth: endpoint,
	}, WithProbeTimeout(2*time.Second))
	require.NoError(t, err)
	defer mgr.Close(context.Background())

	results := mgr.HealthCheck(context.Background())

	assert.True(t, results[ServiceAuth])
	assert.Equal(t, StateReady, mgr.States()[ServiceAuth])
}

func TestManager_HealthCheck_NotServing(t *testing.T) {
	t.Parallel()

	endpoint := startHealthServer(t, healthpb.HealthCheckResponse_NOT_SERVING)

	mgr, err := NewManager(map[string]discovery.Endpoint{
		ServiceProjects: endpoint,
	}, WithProbeTimeout(2*time.Second))
	require.NoError(t, err)
	defer mgr.Close(context.Background())

	results := mgr.HealthCheck(context.Background())

	assert.False(t, results[ServiceProjects])
	assert.Equal(t, StateDegraded, mgr.States()[ServiceProjects])
}

func TestManager_HealthCheck_DeadBackend(t *testing.T) {
	t.Parallel()

	mgr, err := NewManager(map[string]discovery.Endpoint{
		ServiceFiles: {Host: "localhost", Port: 59999},
	}, WithProbeTimeout(200*time.Millisecond))
	require.NoError(t, err)
	defer mgr.Close(context.Background())

	results := mgr.HealthCheck(context.Background())

	assert.False(t, results[ServiceFiles])
	assert.Equal(t, StateDegraded, mgr.States()[ServiceFiles])
}

func TestManager_HealthCheck_MixedFleet(t *testing.T) {
	t.Parallel()

	serving := startHealthServer(t, healthpb.HealthCheckResponse_SERVING)

	mgr, err := NewManager(map[string]discovery.Endpoint{
		ServiceAuth:  serving,
		ServiceFiles: {Host: "localhost", Port: 59998},
	}, WithProbeTimeout(time.Second))
	require.NoError(t, err)
	defer mgr.Close(context.Background())

	results := mgr.HealthCheck(context.Background())

	require.Len(t, results, 2)
	assert.True(t, results[ServiceAuth])
	assert.False(t, results[ServiceFiles])

	states := mgr.States()
	assert.Equal(t, StateReady, states[ServiceAuth])
	assert.Equal(t, StateDegraded, states[ServiceFiles])
}

func TestManager_Probe_RecoversToReady(t *testing.T) {
	t.Parallel()

	endpoint := startHealthServer(t, healthpb.HealthCheckResponse_SERVING)

	mgr, err := NewManager(map[string]discovery.Endpoint{
		ServiceAI: endpoint,
	}, WithProbeTimeout(2*time.Second))
	require.NoError(t, err)
	defer mgr.Close(context.Background())

	// Force a degraded state, then let a passing probe repair it.
	mgr.mu.RLock()
	sc := mgr.conns[ServiceAI]
	mgr.mu.RUnlock()
	sc.setState(StateDegraded)

	results := mgr.HealthCheck(context.Background())

	assert.True(t, results[ServiceAI])
	assert.Equal(t, StateReady, sc.currentState())
}

func TestManager_StartProber_Lifecycle(t *testing.T) {
	t.Parallel()

	mgr, err := NewManager(map[string]discovery.Endpoint{
		ServiceCollaboration: {Host: "localhost", Port: 59997},
	}, WithProbeTimeout(100*time.Millisecond))
	require.NoError(t, err)

	mgr.StartProber(context.Background(), 50*time.Millisecond)

	// A second start while running is a no-op.
	mgr.StartProber(context.Background(), 50*time.Millisecond)

	// Wait for the initial probe to land.
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, StateDegraded, mgr.States()[ServiceCollaboration])

	require.NoError(t, mgr.Close(context.Background()))

	// Starting after close is a no-op.
	mgr.StartProber(context.Background(), 50*time.Millisecond)
}

func TestManager_StartProber_ContextCancellation(t *testing.T) {
	t.Parallel()

	mgr, err := NewManager(map[string]discovery.Endpoint{
		ServiceFiles: {Host: "localhost", Port: 59996},
	}, WithProbeTimeout(100*time.Millisecond))
	require.NoError(t, err)
	defer mgr.Close(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	mgr.StartProber(ctx, 50*time.Millisecond)

	cancel()

	// Stop should complete quickly once the context is gone.
	done := make(chan struct{})
	go func() {
		mgr.stopProber()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("prober did not stop in time")
	}
}
