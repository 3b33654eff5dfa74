// Package config defines the YAML configuration for the mesh client and
// the tooling around it.
//
// The package provides:
//
//   - Config: the root configuration with sections for the connection
//     manager, the interceptor chain and observability
//   - Duration: a time.Duration wrapper that marshals to and from
//     human-readable strings ("30s", "5m")
//   - Load / LoadFromReader: YAML loading with environment variable
//     substitution (${VAR} and ${VAR:-default})
//   - Validate: structural validation with path-qualified errors
//   - Watcher: hot reload driven by fsnotify
//
// Example usage:
//
//	cfg, err := config.Load("mesh.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := config.Validate(cfg); err != nil {
//		log.Fatal(err)
//	}
package config
