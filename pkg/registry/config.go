package registry

import (
	"errors"
	"time"
)

// Config holds HTTP client settings loaded from the environment.
type Config struct {
	URL             string        `env:"PUSHKIT_REGISTRY_URL,required"`
	Token           string        `env:"PUSHKIT_REGISTRY_TOKEN"`
	Timeout         time.Duration `env:"PUSHKIT_REGISTRY_TIMEOUT" envDefault:"10s"`
	MaxRetries      int           `env:"PUSHKIT_REGISTRY_MAX_RETRIES" envDefault:"2"`
	BreakerFailures int           `env:"PUSHKIT_REGISTRY_BREAKER_FAILURES" envDefault:"5"`
	BreakerRecovery time.Duration `env:"PUSHKIT_REGISTRY_BREAKER_RECOVERY" envDefault:"30s"`
}

// Validate checks the config after parsing.
func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return errors.New("PUSHKIT_REGISTRY_TIMEOUT must be positive")
	}
	if c.MaxRetries < 0 {
		return errors.New("PUSHKIT_REGISTRY_MAX_RETRIES must not be negative")
	}
	return nil
}

// NewFromConfig creates a Client from cfg. Extra options are applied last.
func NewFromConfig(cfg Config, opts ...Option) (*Client, error) {
	configOpts := []Option{
		WithTimeout(cfg.Timeout),
		WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.Token != "" {
		configOpts = append(configOpts, WithToken(cfg.Token))
	}
	if cfg.BreakerFailures > 0 {
		configOpts = append(configOpts, WithCircuitBreaker(NewCircuitBreaker(cfg.BreakerFailures, 1, cfg.BreakerRecovery)))
	}
	return New(cfg.URL, append(configOpts, opts...)...)
}
