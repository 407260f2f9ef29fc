package httpserver

import (
	"errors"
	"time"
)

// Config is the listener configuration loaded from the environment.
type Config struct {
	Addr            string        `env:"PUSHKIT_HTTP_ADDR" envDefault:":8080"`
	ReadTimeout     time.Duration `env:"PUSHKIT_HTTP_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout    time.Duration `env:"PUSHKIT_HTTP_WRITE_TIMEOUT" envDefault:"30s"`
	IdleTimeout     time.Duration `env:"PUSHKIT_HTTP_IDLE_TIMEOUT" envDefault:"120s"`
	ShutdownTimeout time.Duration `env:"PUSHKIT_HTTP_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

func (c *Config) Validate() error {
	if c.Addr == "" {
		return errors.New("PUSHKIT_HTTP_ADDR must not be empty")
	}
	if c.ShutdownTimeout <= 0 {
		return errors.New("PUSHKIT_HTTP_SHUTDOWN_TIMEOUT must be positive")
	}
	return nil
}

// NewFromConfig creates a Server from cfg. Zero values keep the defaults;
// opts are applied after cfg.
func NewFromConfig(cfg Config, opts ...Option) *Server {
	return New(append([]Option{
		WithAddr(cfg.Addr),
		WithReadTimeout(cfg.ReadTimeout),
		WithWriteTimeout(cfg.WriteTimeout),
		WithIdleTimeout(cfg.IdleTimeout),
		WithShutdownTimeout(cfg.ShutdownTimeout),
	}, opts...)...)
}
