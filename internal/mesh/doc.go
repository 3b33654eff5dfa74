// Package mesh manages the gRPC connections between platform services.
//
// The mesh package provides a connection manager that owns one client
// channel per platform service with support for:
//   - Typed clients for the auth, projects, ai, collaboration, and files services
//   - A fixed interceptor chain on every managed channel
//   - Circuit breaker consultation before dispatch
//   - Parallel health probing with per-service connection states
//   - Endpoint re-homing driven by service discovery
//   - Graceful draining of in-flight calls on shutdown
//
// Example usage:
//
//	mgr, err := mesh.NewManager(map[string]discovery.Endpoint{
//	    mesh.ServiceAuth:     {Host: "auth.internal", Port: 50051},
//	    mesh.ServiceProjects: {Host: "projects.internal", Port: 50051},
//	},
//	    mesh.WithManagerLogger(logger),
//	    mesh.WithBreaker(breaker),
//	    mesh.WithChain(chain),
//	)
//	if err != nil {
//	    return err
//	}
//	defer mgr.Close(context.Background())
//
//	project, err := mgr.Projects().Get(ctx, "proj-123")
package mesh
