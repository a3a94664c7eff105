// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) to build a Config with defaults.
// - Functions accept context.Context as the first parameter.
// - Errors wrap this package's sentinel kinds.
package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Errors returned by Load and Validate wrap one of these.
var (
	ErrInvalidConfig = errors.New("invalid config")
	ErrLoadConfig    = errors.New("load config failed")
)

// Authentication modes.
const (
	AuthHeader = "header"
	AuthJWT    = "jwt"
)

// maxValueDecimals keeps rendered values within int64 precision.
const maxValueDecimals = 18

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log encoding: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// Owner is the only identity allowed to change provider authorization.
	Owner string `koanf:"owner"`

	// Providers are authorized by the owner at startup.
	Providers []string `koanf:"providers"`

	// Quorum is the number of distinct submissions that finalizes a request.
	Quorum int `koanf:"quorum"`

	// CreationPolicy is "open" (anyone creates requests) or "owner".
	CreationPolicy string `koanf:"creation_policy"`

	// ValueDecimals is the fixed-point scale used to render values.
	ValueDecimals int32 `koanf:"value_decimals"`

	// DispatchQueueSize bounds the in-memory notification queue.
	DispatchQueueSize int `koanf:"dispatch_queue_size"`

	// DispatchWorkers is the number of notification workers. More than one
	// gives up journal ordering.
	DispatchWorkers int `koanf:"dispatch_workers"`

	// IdempotencyCacheSize bounds the Idempotency-Key cache.
	IdempotencyCacheSize int `koanf:"idempotency_cache_size"`

	// JournalPath enables the event journal when set.
	JournalPath string `koanf:"journal_path"`

	// AuthMode is "header" or "jwt".
	AuthMode string `koanf:"auth_mode"`

	// JWTSecret is the HS256 key for AuthMode "jwt".
	JWTSecret string `koanf:"jwt_secret"`

	// JWTIssuer, when set, must match the iss claim.
	JWTIssuer string `koanf:"jwt_issuer"`

	// RateLimitRPS caps mutating calls per caller. Zero disables limiting.
	RateLimitRPS float64 `koanf:"rate_limit_rps"`

	// RateLimitBurst is the token bucket size per caller.
	RateLimitBurst int `koanf:"rate_limit_burst"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// New creates a Config with defaults matching a three-provider local setup.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:             "info",
		LogFormat:            "text",
		Addr:                 ":9080",
		Owner:                "owner",
		Providers:            []string{"client1", "client2", "client3"},
		Quorum:               3,
		CreationPolicy:       "open",
		ValueDecimals:        2,
		DispatchQueueSize:    4096,
		DispatchWorkers:      1,
		IdempotencyCacheSize: 100_000,
		AuthMode:             AuthHeader,
		RateLimitRPS:         0,
		RateLimitBurst:       10,
		ShutdownTimeout:      10 * time.Second,
	}
}

// Validate reports the first invalid setting, wrapped in ErrInvalidConfig.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
	}

	switch {
	case strings.TrimSpace(c.Addr) == "":
		return invalid("addr must not be empty")
	case strings.TrimSpace(c.Owner) == "":
		return invalid("owner must not be empty")
	case c.Quorum < 1:
		return invalid("quorum must be at least 1, got %d", c.Quorum)
	case c.ValueDecimals < 0 || c.ValueDecimals > maxValueDecimals:
		return invalid("value_decimals must be within 0..%d, got %d", maxValueDecimals, c.ValueDecimals)
	case c.DispatchQueueSize < 1:
		return invalid("dispatch_queue_size must be positive")
	case c.RateLimitRPS < 0:
		return invalid("rate_limit_rps must not be negative")
	}

	providers := c.ProviderSet()
	if c.Quorum > len(providers) {
		return invalid("quorum %d exceeds %d configured providers", c.Quorum, len(providers))
	}

	switch strings.ToLower(c.CreationPolicy) {
	case "", "open", "owner":
	default:
		return invalid("unknown creation_policy %q", c.CreationPolicy)
	}

	switch strings.ToLower(c.AuthMode) {
	case "", AuthHeader:
	case AuthJWT:
		if c.JWTSecret == "" {
			return invalid("jwt_secret is required when auth_mode is jwt")
		}
	default:
		return invalid("unknown auth_mode %q", c.AuthMode)
	}
	return nil
}

// ProviderSet returns the configured providers trimmed, without blanks or
// repeats, in their original order.
func (c *Config) ProviderSet() []string {
	seen := make(map[string]struct{}, len(c.Providers))
	out := make([]string, 0, len(c.Providers))
	for _, p := range c.Providers {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
