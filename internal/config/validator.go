package config

import (
	"fmt"
	"strings"
)

// ValidationError describes a single invalid configuration field.
type ValidationError struct {
	Path    string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ValidationErrors collects all validation failures for one config.
type ValidationErrors []*ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:", len(e)))
	for _, err := range e {
		sb.WriteString("\n  - ")
		sb.WriteString(err.Error())
	}
	return sb.String()
}

var (
	validLogLevels  = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	validLogFormats = map[string]bool{"json": true, "console": true}
	validStores     = map[string]bool{"memory": true, "redis": true}
)

type validator struct {
	errors ValidationErrors
}

func (v *validator) addError(path, format string, args ...interface{}) {
	v.errors = append(v.errors, &ValidationError{
		Path:    path,
		Message: fmt.Sprintf(format, args...),
	})
}

// Validate checks the configuration for structural errors. It returns a
// ValidationErrors value listing every problem found, or nil.
func Validate(cfg *Config) error {
	if cfg == nil {
		return ValidationErrors{{Path: "config", Message: "config is nil"}}
	}

	v := &validator{}
	v.validateMesh(&cfg.Mesh)
	v.validateAuth(&cfg.Auth)
	v.validateRateLimit(&cfg.RateLimit)
	v.validateBreaker(&cfg.Breaker)
	v.validateLogging(&cfg.Logging)
	v.validateMetrics(&cfg.Metrics)

	if len(v.errors) > 0 {
		return v.errors
	}
	return nil
}

func (v *validator) validateMesh(mesh *MeshConfig) {
	if len(mesh.Services) == 0 {
		v.addError("mesh.services", "at least one service is required")
	}
	for name, ep := range mesh.Services {
		path := fmt.Sprintf("mesh.services.%s", name)
		if name == "" {
			v.addError("mesh.services", "service name must not be empty")
		}
		if ep.Host == "" {
			v.addError(path+".host", "host is required")
		}
		if ep.Port < 1 || ep.Port > 65535 {
			v.addError(path+".port", "port must be between 1 and 65535, got %d", ep.Port)
		}
	}
	if mesh.CallTimeout <= 0 {
		v.addError("mesh.callTimeout", "must be positive, got %s", mesh.CallTimeout)
	}
	if mesh.ProbeInterval <= 0 {
		v.addError("mesh.probeInterval", "must be positive, got %s", mesh.ProbeInterval)
	}
	if mesh.ProbeTimeout <= 0 {
		v.addError("mesh.probeTimeout", "must be positive, got %s", mesh.ProbeTimeout)
	}
	if mesh.ShutdownTimeout <= 0 {
		v.addError("mesh.shutdownTimeout", "must be positive, got %s", mesh.ShutdownTimeout)
	}
}

func (v *validator) validateAuth(auth *AuthConfig) {
	if !auth.Enabled {
		return
	}
	if auth.UserSecret == "" {
		v.addError("auth.userSecret", "required when auth is enabled")
	}
	if auth.ServiceSecret == "" {
		v.addError("auth.serviceSecret", "required when auth is enabled")
	}
	if auth.TokenTTL <= 0 {
		v.addError("auth.tokenTtl", "must be positive, got %s", auth.TokenTTL)
	}
	for i, method := range auth.ExcludedMethods {
		if !strings.HasPrefix(method, "/") {
			v.addError(fmt.Sprintf("auth.excludedMethods[%d]", i),
				"must be a full method name starting with '/', got %q", method)
		}
	}
}

func (v *validator) validateRateLimit(rl *RateLimitConfig) {
	if !rl.Enabled {
		return
	}
	if !validStores[rl.Store] {
		v.addError("rateLimit.store", "must be one of [memory redis], got %q", rl.Store)
	}
	if rl.Requests < 1 {
		v.addError("rateLimit.requests", "must be at least 1, got %d", rl.Requests)
	}
	if rl.Window <= 0 {
		v.addError("rateLimit.window", "must be positive, got %s", rl.Window)
	}
	if rl.Store == "redis" && rl.Redis.Address == "" {
		v.addError("rateLimit.redis.address", "required when store is redis")
	}
	for i, policy := range rl.MethodPolicies {
		path := fmt.Sprintf("rateLimit.methodPolicies[%d]", i)
		if !strings.HasPrefix(policy.Method, "/") {
			v.addError(path+".method", "must be a full method name starting with '/', got %q", policy.Method)
		}
		if policy.Requests < 1 {
			v.addError(path+".requests", "must be at least 1, got %d", policy.Requests)
		}
		if policy.Window <= 0 {
			v.addError(path+".window", "must be positive, got %s", policy.Window)
		}
	}
}

func (v *validator) validateBreaker(br *BreakerConfig) {
	if !br.Enabled {
		return
	}
	if br.Threshold < 1 {
		v.addError("circuitBreaker.threshold", "must be at least 1, got %d", br.Threshold)
	}
	if br.Timeout <= 0 {
		v.addError("circuitBreaker.timeout", "must be positive, got %s", br.Timeout)
	}
}

func (v *validator) validateLogging(log *LoggingConfig) {
	if !validLogLevels[log.Level] {
		v.addError("logging.level", "must be one of [debug info warn error], got %q", log.Level)
	}
	if !validLogFormats[log.Format] {
		v.addError("logging.format", "must be one of [json console], got %q", log.Format)
	}
	if log.Output == "" {
		v.addError("logging.output", "output is required")
	}
}

func (v *validator) validateMetrics(m *MetricsConfig) {
	if !m.Enabled {
		return
	}
	if m.Address == "" {
		v.addError("metrics.address", "required when metrics are enabled")
	}
	if !strings.HasPrefix(m.Path, "/") {
		v.addError("metrics.path", "must start with '/', got %q", m.Path)
	}
}
