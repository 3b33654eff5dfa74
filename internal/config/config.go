package config

import (
	"time"

	"github.com/esshaancheema/rach-dev-monorepo-sub012/internal/discovery"
)

// Config is the root configuration for the mesh client.
type Config struct {
	// Mesh configures the connection manager.
	Mesh MeshConfig `json:"mesh" yaml:"mesh"`

	// Auth configures the authentication interceptor.
	Auth AuthConfig `json:"auth" yaml:"auth"`

	// RateLimit configures the rate limiting interceptor.
	RateLimit RateLimitConfig `json:"rateLimit" yaml:"rateLimit"`

	// Breaker configures circuit breaking for outbound calls.
	Breaker BreakerConfig `json:"circuitBreaker" yaml:"circuitBreaker"`

	// Logging configures the structured logger.
	Logging LoggingConfig `json:"logging" yaml:"logging"`

	// Metrics configures the Prometheus metrics endpoint.
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`
}

// MeshConfig configures the connection manager and its health prober.
type MeshConfig struct {
	// Services maps service names to their endpoints.
	Services map[string]discovery.Endpoint `json:"services" yaml:"services"`

	// CallTimeout is the default deadline applied to calls without one.
	CallTimeout Duration `json:"callTimeout" yaml:"callTimeout"`

	// ProbeInterval is the period between health probe rounds.
	ProbeInterval Duration `json:"probeInterval" yaml:"probeInterval"`

	// ProbeTimeout bounds a single health probe.
	ProbeTimeout Duration `json:"probeTimeout" yaml:"probeTimeout"`

	// ShutdownTimeout bounds draining of in-flight calls on shutdown.
	ShutdownTimeout Duration `json:"shutdownTimeout" yaml:"shutdownTimeout"`
}

// AuthConfig configures token issuance and verification.
type AuthConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`

	// UserSecret signs and verifies user tokens.
	UserSecret string `json:"userSecret" yaml:"userSecret"`

	// ServiceSecret signs and verifies service-to-service tokens.
	ServiceSecret string `json:"serviceSecret" yaml:"serviceSecret"`

	// TokenTTL is the lifetime of minted tokens.
	TokenTTL Duration `json:"tokenTtl" yaml:"tokenTtl"`

	// AdminRole is the role that bypasses method permission checks.
	AdminRole string `json:"adminRole" yaml:"adminRole"`

	// ExcludedMethods are full method names that skip authentication.
	ExcludedMethods []string `json:"excludedMethods" yaml:"excludedMethods"`
}

// RateLimitConfig configures the sliding window rate limiter.
type RateLimitConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Store selects the counter backend: "memory" or "redis".
	Store string `json:"store" yaml:"store"`

	// Requests is the default window capacity.
	Requests int `json:"requests" yaml:"requests"`

	// Window is the default window length.
	Window Duration `json:"window" yaml:"window"`

	// Redis configures the counter store when Store is "redis".
	Redis RedisConfig `json:"redis" yaml:"redis"`

	// MethodPolicies override the default limit for specific methods.
	MethodPolicies []MethodPolicy `json:"methodPolicies" yaml:"methodPolicies"`
}

// MethodPolicy is a per-method rate limit override.
type MethodPolicy struct {
	// Method is the full method name, e.g.
	// "/zoptal.ai.v1.AIService/GenerateCode".
	Method   string   `json:"method" yaml:"method"`
	Requests int      `json:"requests" yaml:"requests"`
	Window   Duration `json:"window" yaml:"window"`
}

// RedisConfig configures the Redis connection for shared rate limit state.
type RedisConfig struct {
	Address  string `json:"address" yaml:"address"`
	Password string `json:"password" yaml:"password"`
	DB       int    `json:"db" yaml:"db"`
}

// BreakerConfig configures the per-service circuit breaker.
type BreakerConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Threshold is the number of consecutive failures that opens the
	// breaker.
	Threshold int `json:"threshold" yaml:"threshold"`

	// Timeout is how long the breaker stays open before probing again.
	Timeout Duration `json:"timeout" yaml:"timeout"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	// Level is one of "debug", "info", "warn" or "error".
	Level string `json:"level" yaml:"level"`

	// Format is "json" or "console".
	Format string `json:"format" yaml:"format"`

	// Output is "stdout", "stderr" or a file path.
	Output string `json:"output" yaml:"output"`
}

// MetricsConfig configures the Prometheus scrape endpoint.
type MetricsConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Address string `json:"address" yaml:"address"`
	Path    string `json:"path" yaml:"path"`
}

// DefaultConfig returns a configuration with production defaults. Loading
// a YAML file overlays it, so absent fields keep these values.
func DefaultConfig() *Config {
	return &Config{
		Mesh: MeshConfig{
			Services:        map[string]discovery.Endpoint{},
			CallTimeout:     Duration(30 * time.Second),
			ProbeInterval:   Duration(10 * time.Second),
			ProbeTimeout:    Duration(5 * time.Second),
			ShutdownTimeout: Duration(15 * time.Second),
		},
		Auth: AuthConfig{
			Enabled:   true,
			TokenTTL:  Duration(time.Hour),
			AdminRole: "admin",
		},
		RateLimit: RateLimitConfig{
			Enabled:  true,
			Store:    "memory",
			Requests: 100,
			Window:   Duration(time.Minute),
		},
		Breaker: BreakerConfig{
			Enabled:   true,
			Threshold: 5,
			Timeout:   Duration(30 * time.Second),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Address: ":9090",
			Path:    "/metrics",
		},
	}
}
