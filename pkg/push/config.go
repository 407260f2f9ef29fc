package push

import (
	"errors"
	"time"
)

// Config holds manager settings loaded from the environment.
type Config struct {
	CallTimeout time.Duration `env:"PUSHKIT_CALL_TIMEOUT" envDefault:"10s"`
	DeviceLabel string        `env:"PUSHKIT_DEVICE_LABEL"`
}

func (c *Config) Validate() error {
	if c.CallTimeout <= 0 {
		return errors.New("PUSHKIT_CALL_TIMEOUT must be positive")
	}
	return nil
}
