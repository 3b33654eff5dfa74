// Package main is the entry point for meshprobe, the operations tool
// for the Zoptal mesh client. It keeps managed channels to every
// configured service, runs the background health prober, exposes
// Prometheus metrics and can mint credentials for ad-hoc testing.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/esshaancheema/rach-dev-monorepo-sub012/internal/auth"
	"github.com/esshaancheema/rach-dev-monorepo-sub012/internal/auth/token"
	"github.com/esshaancheema/rach-dev-monorepo-sub012/internal/circuitbreaker"
	"github.com/esshaancheema/rach-dev-monorepo-sub012/internal/config"
	"github.com/esshaancheema/rach-dev-monorepo-sub012/internal/discovery"
	"github.com/esshaancheema/rach-dev-monorepo-sub012/internal/mesh"
	"github.com/esshaancheema/rach-dev-monorepo-sub012/internal/mesh/middleware"
	"github.com/esshaancheema/rach-dev-monorepo-sub012/internal/metrics"
	"github.com/esshaancheema/rach-dev-monorepo-sub012/internal/observability"
	"github.com/esshaancheema/rach-dev-monorepo-sub012/internal/ratelimit"
	ratelimitstore "github.com/esshaancheema/rach-dev-monorepo-sub012/internal/ratelimit/store"
)

// Version information (set at build time).
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// cliFlags holds command line flags.
type cliFlags struct {
	configPath  string
	logLevel    string
	logFormat   string
	showVersion bool

	mintUser    string
	mintRole    string
	mintService string
}

func main() {
	flags := parseFlags()

	if flags.showVersion {
		printVersion()
		return
	}

	logger := initLogger(flags)
	defer func() { _ = logger.Sync() }()

	cfg := loadAndValidateConfig(flags.configPath, logger)

	if flags.mintUser != "" || flags.mintService != "" {
		mintTokens(cfg, flags, logger)
		return
	}

	app := initApplication(cfg, logger)
	run(app, flags.configPath, logger)
}

// parseFlags parses command line flags.
func parseFlags() cliFlags {
	configPath := flag.String("config", getEnvOrDefault("MESHPROBE_CONFIG_PATH", "configs/mesh.yaml"),
		"Path to configuration file")
	logLevel := flag.String("log-level", getEnvOrDefault("MESHPROBE_LOG_LEVEL", "info"),
		"Log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", getEnvOrDefault("MESHPROBE_LOG_FORMAT", "json"),
		"Log format (json, console)")
	showVersion := flag.Bool("version", false, "Show version information")
	mintUser := flag.String("mint-user", "", "Mint a user token for the given user ID and exit")
	mintRole := flag.String("mint-role", "developer", "Role claim for minted user tokens")
	mintService := flag.String("mint-service", "", "Mint a service token for the given service ID and exit")
	flag.Parse()

	return cliFlags{
		configPath:  *configPath,
		logLevel:    *logLevel,
		logFormat:   *logFormat,
		showVersion: *showVersion,
		mintUser:    *mintUser,
		mintRole:    *mintRole,
		mintService: *mintService,
	}
}

// printVersion prints version information and exits.
func printVersion() {
	fmt.Printf("meshprobe version %s\n", version)
	fmt.Printf("  Build time: %s\n", buildTime)
	fmt.Printf("  Git commit: %s\n", gitCommit)
}

// initLogger initializes the logger.
func initLogger(flags cliFlags) observability.Logger {
	logger, err := observability.NewLogger(observability.LogConfig{
		Level:  flags.logLevel,
		Format: flags.logFormat,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	observability.SetGlobalLogger(logger)
	return logger
}

// loadAndValidateConfig loads and validates the configuration.
func loadAndValidateConfig(configPath string, logger observability.Logger) *config.Config {
	logger.Info("starting meshprobe",
		observability.String("version", version),
		observability.String("config", configPath),
	)

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatal("failed to load configuration", observability.Error(err))
	}

	if err := config.Validate(cfg); err != nil {
		logger.Fatal("invalid configuration", observability.Error(err))
	}

	// The typed clients only exist for the known platform services, so
	// an unknown name in the config is almost certainly a typo.
	known := make(map[string]struct{})
	for _, service := range mesh.KnownServices() {
		known[service] = struct{}{}
	}
	for name := range cfg.Mesh.Services {
		if _, ok := known[name]; !ok {
			logger.Fatal("unknown mesh service in configuration",
				observability.String("service", name),
				observability.Strings("known", mesh.KnownServices()),
			)
		}
	}

	logger.Info("configuration loaded",
		observability.Int("services", len(cfg.Mesh.Services)),
		observability.Bool("auth", cfg.Auth.Enabled),
		observability.Bool("rate_limit", cfg.RateLimit.Enabled),
		observability.Bool("circuit_breaker", cfg.Breaker.Enabled),
	)

	return cfg
}

// mintTokens signs and prints credentials for ad-hoc calls against the
// mesh, using the secrets from the loaded configuration.
func mintTokens(cfg *config.Config, flags cliFlags, logger observability.Logger) {
	if flags.mintUser != "" {
		codec, err := token.NewUserCodec(cfg.Auth.UserSecret, cfg.Auth.TokenTTL.Duration())
		if err != nil {
			logger.Fatal("failed to create user token codec", observability.Error(err))
		}
		signed, err := codec.Sign(flags.mintUser, "", flags.mintRole, nil)
		if err != nil {
			logger.Fatal("failed to mint user token", observability.Error(err))
		}
		fmt.Println(signed)
	}

	if flags.mintService != "" {
		codec, err := token.NewServiceCodec(cfg.Auth.ServiceSecret, cfg.Auth.TokenTTL.Duration())
		if err != nil {
			logger.Fatal("failed to create service token codec", observability.Error(err))
		}
		signed, err := codec.Sign(flags.mintService, flags.mintService, nil)
		if err != nil {
			logger.Fatal("failed to mint service token", observability.Error(err))
		}
		fmt.Println(signed)
	}
}

// application holds all application components.
type application struct {
	manager    *mesh.Manager
	resolver   *discovery.Static
	breaker    *circuitbreaker.GoBreaker
	limiter    ratelimit.Limiter
	store      *metrics.Store
	collectors *metrics.Collectors
	config     *config.Config
}

// initApplication initializes all application components.
func initApplication(cfg *config.Config, logger observability.Logger) *application {
	store := metrics.NewStore()
	collectors := metrics.NewCollectors("mesh")
	collectors.Init(mesh.KnownServices()...)

	limiter := buildLimiter(cfg, logger)
	chain := buildChain(cfg, limiter, store, collectors, logger)
	resolver := discovery.NewStatic(nil)

	opts := []mesh.ManagerOption{
		mesh.WithManagerLogger(logger),
		mesh.WithResolver(resolver),
		mesh.WithChain(chain),
		mesh.WithDefaultTimeout(cfg.Mesh.CallTimeout.Duration()),
		mesh.WithProbeTimeout(cfg.Mesh.ProbeTimeout.Duration()),
	}

	var breaker *circuitbreaker.GoBreaker
	if cfg.Breaker.Enabled {
		breaker = circuitbreaker.NewGoBreaker(cfg.Breaker.Threshold, cfg.Breaker.Timeout.Duration(),
			circuitbreaker.WithBreakerLogger(logger))
		opts = append(opts, mesh.WithBreaker(breaker))
	}

	manager, err := mesh.NewManager(cfg.Mesh.Services, opts...)
	if err != nil {
		logger.Fatal("failed to create connection manager", observability.Error(err))
	}

	return &application{
		manager:    manager,
		resolver:   resolver,
		breaker:    breaker,
		limiter:    limiter,
		store:      store,
		collectors: collectors,
		config:     cfg,
	}
}

// buildLimiter builds the rate limiter from configuration. It returns
// nil when rate limiting is disabled.
func buildLimiter(cfg *config.Config, logger observability.Logger) ratelimit.Limiter {
	if !cfg.RateLimit.Enabled {
		return nil
	}

	var st ratelimitstore.Store
	if cfg.RateLimit.Store == "redis" {
		redisStore, err := ratelimitstore.NewRedisStore(
			cfg.RateLimit.Redis.Address,
			cfg.RateLimit.Redis.Password,
			cfg.RateLimit.Redis.DB,
			"mesh:ratelimit:",
		)
		if err != nil {
			logger.Fatal("failed to connect rate limit store", observability.Error(err))
		}
		st = redisStore
	}

	opts := make([]ratelimit.FixedWindowOption, 0, len(cfg.RateLimit.MethodPolicies))
	for _, p := range cfg.RateLimit.MethodPolicies {
		opts = append(opts, ratelimit.WithMethodPolicy(p.Method, ratelimit.Policy{
			Requests: p.Requests,
			Window:   p.Window.Duration(),
		}))
	}

	limiter, err := ratelimit.NewFixedWindowLimiter(st, ratelimit.Policy{
		Requests: cfg.RateLimit.Requests,
		Window:   cfg.RateLimit.Window.Duration(),
	}, opts...)
	if err != nil {
		logger.Fatal("failed to create rate limiter", observability.Error(err))
	}

	return limiter
}

// buildChain assembles the interceptor chain from configuration.
// Disabled sections leave their slot nil, which the chain skips.
func buildChain(
	cfg *config.Config,
	limiter ratelimit.Limiter,
	store *metrics.Store,
	collectors *metrics.Collectors,
	logger observability.Logger,
) *middleware.Chain {
	chain := &middleware.Chain{
		Logging: middleware.NewLogging(logger),
		Logger:  logger,
	}

	if cfg.Auth.Enabled {
		users, err := token.NewUserCodec(cfg.Auth.UserSecret, cfg.Auth.TokenTTL.Duration())
		if err != nil {
			logger.Fatal("failed to create user token codec", observability.Error(err))
		}
		services, err := token.NewServiceCodec(cfg.Auth.ServiceSecret, cfg.Auth.TokenTTL.Duration())
		if err != nil {
			logger.Fatal("failed to create service token codec", observability.Error(err))
		}
		resolver, err := auth.NewTokenResolver(users, services, auth.WithTokenResolverLogger(logger))
		if err != nil {
			logger.Fatal("failed to create credential resolver", observability.Error(err))
		}
		interceptor, err := auth.NewInterceptor(resolver,
			auth.WithInterceptorLogger(logger),
			auth.WithAdminRole(cfg.Auth.AdminRole),
			auth.WithExcludedMethods(cfg.Auth.ExcludedMethods...),
		)
		if err != nil {
			logger.Fatal("failed to create auth interceptor", observability.Error(err))
		}
		chain.Auth = interceptor
	}

	if limiter != nil {
		rl, err := middleware.NewRateLimit(limiter, middleware.WithRateLimitLogger(logger))
		if err != nil {
			logger.Fatal("failed to create rate limit interceptor", observability.Error(err))
		}
		chain.RateLimit = rl
	}

	if cfg.Metrics.Enabled {
		m, err := middleware.NewMetrics(store, middleware.WithCollectors(collectors))
		if err != nil {
			logger.Fatal("failed to create metrics interceptor", observability.Error(err))
		}
		chain.Metrics = m
	}

	return chain
}

// run starts the health prober and auxiliary servers, then blocks until
// shutdown.
func run(app *application, configPath string, logger observability.Logger) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app.manager.StartProber(ctx, app.config.Mesh.ProbeInterval.Duration())

	startMetricsServerIfEnabled(app, logger)
	watcher := startConfigWatcher(app, configPath, logger)

	waitForShutdown(app, watcher, logger)
}

// startMetricsServerIfEnabled starts the metrics server if enabled.
func startMetricsServerIfEnabled(app *application, logger observability.Logger) {
	if !app.config.Metrics.Enabled {
		return
	}
	go startMetricsServer(app, logger)
}

// startMetricsServer serves Prometheus metrics and the health endpoints.
func startMetricsServer(app *application, logger observability.Logger) {
	mux := http.NewServeMux()
	mux.Handle(app.config.Metrics.Path, promhttp.Handler())
	mux.HandleFunc("/health", healthHandler(app))
	mux.HandleFunc("/ready", readinessHandler(app))
	mux.HandleFunc("/live", livenessHandler())

	addr := app.config.Metrics.Address
	logger.Info("starting metrics server",
		observability.String("address", addr),
		observability.String("metrics_path", app.config.Metrics.Path),
	)

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("metrics server error", observability.Error(err))
	}
}

// healthHandler reports the prober's current view of the fleet along
// with the circuit breaker states.
func healthHandler(app *application) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		states := app.manager.States()

		healthy := true
		services := make(map[string]string, len(states))
		for service, state := range states {
			services[service] = state.String()
			if state != mesh.StateReady {
				healthy = false
			}
		}

		body := struct {
			Status   string            `json:"status"`
			Services map[string]string `json:"services"`
			Breakers map[string]string `json:"breakers,omitempty"`
		}{
			Status:   "ok",
			Services: services,
		}
		if app.breaker != nil {
			body.Breakers = app.breaker.States()
		}

		code := http.StatusOK
		if !healthy {
			body.Status = "degraded"
			code = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(body)
	}
}

// readinessHandler reports ready once every managed channel is healthy.
func readinessHandler(app *application) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		for _, state := range app.manager.States() {
			if state != mesh.StateReady {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	}
}

// livenessHandler reports whether the process is up.
func livenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}
}

// startConfigWatcher starts the configuration watcher. Endpoint changes
// flow through the discovery resolver, which re-homes the managed
// channels.
func startConfigWatcher(app *application, configPath string, logger observability.Logger) *config.Watcher {
	watcher, err := config.NewWatcher(configPath, func(newCfg *config.Config) {
		logger.Info("configuration changed, applying endpoints")
		for service, endpoint := range newCfg.Mesh.Services {
			app.resolver.SetEndpoints(service, []discovery.Endpoint{endpoint})
		}
	}, config.WithErrorCallback(func(err error) {
		logger.Error("config reload failed, keeping previous config", observability.Error(err))
	}))

	if err != nil {
		logger.Warn("failed to create config watcher", observability.Error(err))
		return nil
	}

	if err := watcher.Start(); err != nil {
		logger.Warn("failed to start config watcher", observability.Error(err))
	}

	return watcher
}

// waitForShutdown waits for a shutdown signal, then drains and closes
// everything within the configured deadline.
func waitForShutdown(app *application, watcher *config.Watcher, logger observability.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("received shutdown signal", observability.String("signal", sig.String()))

	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		app.config.Mesh.ShutdownTimeout.Duration())
	defer cancel()

	if watcher != nil {
		watcher.Stop()
	}

	if err := app.manager.Close(shutdownCtx); err != nil {
		logger.Error("failed to close connection manager gracefully", observability.Error(err))
	}

	if app.limiter != nil {
		if err := app.limiter.Close(); err != nil {
			logger.Error("failed to close rate limiter", observability.Error(err))
		}
	}

	logger.Info("meshprobe stopped")
}

// getEnvOrDefault returns the environment variable value or a default.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
