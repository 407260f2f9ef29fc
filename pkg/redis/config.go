package redis

import (
	"errors"
	"time"
)

// Config describes the connection. An empty ConnectionURL means Redis is not
// configured; callers fall back to local storage.
type Config struct {
	ConnectionURL  string        `env:"REDIS_URL"`                          // redis://:password@localhost:6379/0
	RetryAttempts  int           `env:"REDIS_RETRY_ATTEMPTS" envDefault:"3"`
	RetryInterval  time.Duration `env:"REDIS_RETRY_INTERVAL" envDefault:"2s"`
	ConnectTimeout time.Duration `env:"REDIS_CONNECT_TIMEOUT" envDefault:"30s"`
	KeyPrefix      string        `env:"REDIS_KEY_PREFIX" envDefault:"pushkit:"`
}

// Enabled reports whether a connection URL is set.
func (c *Config) Enabled() bool {
	return c.ConnectionURL != ""
}

func (c *Config) Validate() error {
	if c.RetryAttempts < 1 {
		return errors.New("REDIS_RETRY_ATTEMPTS must be at least 1")
	}
	if c.ConnectTimeout <= 0 {
		return errors.New("REDIS_CONNECT_TIMEOUT must be positive")
	}
	return nil
}
