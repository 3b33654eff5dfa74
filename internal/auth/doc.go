// Package auth resolves mesh credentials into typed principals and
// gates every call on them.
//
// Two credential kinds are supported, each with its own signing secret
// and payload shape (see the token subpackage):
//   - user bearer tokens carried in the authorization header
//   - service tokens carried in the x-service-token header
//
// Service tokens take precedence when both headers are present; an
// invalid service token fails the call rather than falling back to the
// bearer token.
//
// # Permission model
//
// The interceptor enforces per-method permission allow-lists. A
// requirement is satisfied by holding any listed permission, the
// wildcard permission "*", or the administrative role. Methods on the
// exclusion list bypass authentication entirely.
//
// # Usage
//
//	resolver, err := auth.NewTokenResolver(userCodec, serviceCodec)
//	if err != nil {
//	    return err
//	}
//
//	interceptor, err := auth.NewInterceptor(resolver,
//	    auth.WithExcludedMethods("/grpc.health.v1.Health/Check"),
//	    auth.WithMethodPermissions(map[string][]string{
//	        "/zoptal.projects.v1.ProjectsService/DeleteProject": {"projects:delete"},
//	    }),
//	)
//
//	// Outbound: installed on managed connections.
//	conn, err := grpc.NewClient(target,
//	    grpc.WithChainUnaryInterceptor(interceptor.UnaryClientInterceptor()),
//	)
//
//	// Inbound: installed on mesh servers.
//	server := grpc.NewServer(
//	    grpc.ChainUnaryInterceptor(interceptor.UnaryServerInterceptor()),
//	)
//
// On success the client interceptor writes the resolved identity into
// outgoing metadata (user-id, user-role, service-id,
// is-service-account) so the next hop can trust it without
// re-verifying the original credential. Propagated identity headers
// are only trustworthy inside the mesh network; edge-facing entry
// points must re-verify raw credentials.
package auth
