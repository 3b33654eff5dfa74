// Package observability provides structured logging for the mesh
// client, built on zap, along with request correlation and metadata
// redaction.
//
// The package provides:
//
//   - Logger: the structured logging interface used throughout the
//     mesh client, with zap-backed construction via NewLogger
//   - ContextWithRequestID / RequestIDFromContext: request correlation
//     across interceptors and log lines
//   - Redactor: removes credential material from logged call metadata
//   - a process-global logger via SetGlobalLogger and L
//
// Example usage:
//
//	logger, err := observability.NewLogger(observability.LogConfig{
//		Level:  "info",
//		Format: "json",
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer logger.Sync()
//
//	logger.Info("call finished",
//		observability.String("service", "projects"),
//		observability.Duration("elapsed", elapsed),
//	)
package observability
