package raster

import (
	"fmt"
	"strings"
	"time"

	"svgdeck/internal/errors"
	"svgdeck/internal/logging"
	"svgdeck/internal/observability"
)

// Backend names a rasterizer implementation.
type Backend string

const (
	BackendAuto    Backend = "auto"
	BackendNative  Backend = "native"
	BackendCommand Backend = "command"
	BackendNone    Backend = "none"
)

// ParseBackend validates a backend name. Empty means auto.
func ParseBackend(name string) (Backend, error) {
	switch b := Backend(strings.ToLower(strings.TrimSpace(name))); b {
	case "":
		return BackendAuto, nil
	case BackendAuto, BackendNative, BackendCommand, BackendNone:
		return b, nil
	default:
		return "", fmt.Errorf("unknown rasterizer backend %q (want auto, native, command or none)", name)
	}
}

// Config selects and decorates the rasterizer.
type Config struct {
	Backend          string        `mapstructure:"backend" yaml:"backend"`
	Command          string        `mapstructure:"command" yaml:"command"`
	Args             []string      `mapstructure:"args" yaml:"args"`
	CacheSize        int           `mapstructure:"cache_size" yaml:"cache_size"`
	FailureThreshold int           `mapstructure:"failure_threshold" yaml:"failure_threshold"`
	ResetTimeout     time.Duration `mapstructure:"reset_timeout" yaml:"reset_timeout"`
}

// DefaultConfig returns the auto backend with caching and a breaker.
func DefaultConfig() Config {
	return Config{
		Backend:          string(BackendAuto),
		Command:          DefaultCommand,
		CacheSize:        DefaultCacheSize,
		FailureThreshold: 5,
		ResetTimeout:     30 * time.Second,
	}
}

// Probe resolves the configured backend once. It returns a nil Rasterizer
// and BackendNone when rasterization is disabled or no backend is
// available; builds then embed vector-only slides. Only an invalid backend
// name is an error.
//
// auto prefers the external command when it is on PATH, since it renders
// text, and otherwise uses the native renderer.
func Probe(cfg Config, metrics *observability.MetricsCollector, logger logging.Logger) (Rasterizer, Backend, error) {
	logger = logging.OrNop(logger)
	backend, err := ParseBackend(cfg.Backend)
	if err != nil {
		return nil, BackendNone, err
	}

	var base Rasterizer
	switch backend {
	case BackendNone:
		return nil, BackendNone, nil
	case BackendNative:
		base = NewNative()
	case BackendCommand:
		cmd, err := NewCommand(cfg.Command, cfg.Args)
		if err != nil {
			logger.Warn("rasterizer unavailable: %v", err)
			return nil, BackendNone, nil
		}
		base = cmd
	case BackendAuto:
		if cmd, err := NewCommand(cfg.Command, cfg.Args); err == nil {
			base, backend = cmd, BackendCommand
		} else {
			logger.Debug("external rasterizer not found, using native: %v", err)
			base, backend = NewNative(), BackendNative
		}
	}

	var r Rasterizer = NewInstrumented(base, string(backend), metrics)
	r = NewGuarded(r, errors.NewCircuitBreaker("raster-"+string(backend), errors.CircuitBreakerConfig{
		FailureThreshold: cfg.FailureThreshold,
		Timeout:          cfg.ResetTimeout,
		Logger:           logger,
	}))
	if cfg.CacheSize >= 0 {
		cached, err := NewCached(r, cfg.CacheSize)
		if err != nil {
			return nil, BackendNone, err
		}
		r = cached
	}
	logger.Info("rasterizer backend: %s", backend)
	return r, backend, nil
}
