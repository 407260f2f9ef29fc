package main

import (
	"errors"
	"time"

	"github.com/dmitrymomot/pushkit/pkg/vapid"
)

type appConfig struct {
	Env      string `env:"PUSHKIT_ENV" envDefault:"development"`
	Token    string `env:"PUSHKIT_REGISTRY_TOKEN"`
	StateDir string `env:"PUSHKIT_STATE_DIR" envDefault:".pushkit"`
	// Loopback delivers test pushes to an in-process relay instead of the
	// push services. Used with pushctl, whose channels are not reachable.
	Loopback bool `env:"PUSHKIT_LOOPBACK" envDefault:"false"`
	// TrustedProxyHeaders name the headers that carry the client address,
	// e.g. "CF-Connecting-IP" or "X-Forwarded-For". Empty means RemoteAddr.
	TrustedProxyHeaders []string `env:"PUSHKIT_TRUSTED_PROXY_HEADERS" envSeparator:","`
}

// limitConfig throttles the send-test endpoint per client IP.
type limitConfig struct {
	Burst    int           `env:"PUSHKIT_TEST_PUSH_BURST" envDefault:"3"`
	Interval time.Duration `env:"PUSHKIT_TEST_PUSH_INTERVAL" envDefault:"1m"`
	FailOpen bool          `env:"PUSHKIT_TEST_PUSH_FAIL_OPEN" envDefault:"true"`
}

func (c *limitConfig) Validate() error {
	if c.Burst < 1 {
		return errors.New("PUSHKIT_TEST_PUSH_BURST must be at least 1")
	}
	if c.Interval < time.Second {
		return errors.New("PUSHKIT_TEST_PUSH_INTERVAL must be at least 1s")
	}
	return nil
}

type vapidConfig struct {
	PublicKey  string        `env:"PUSHKIT_VAPID_PUBLIC_KEY"`
	PrivateKey string        `env:"PUSHKIT_VAPID_PRIVATE_KEY"`
	Subscriber string        `env:"PUSHKIT_VAPID_SUBSCRIBER" envDefault:"ops@example.com"`
	TTL        time.Duration `env:"PUSHKIT_VAPID_TTL" envDefault:"24h"`
}

func (c *vapidConfig) Validate() error {
	if (c.PublicKey == "") != (c.PrivateKey == "") {
		return errors.New("PUSHKIT_VAPID_PUBLIC_KEY and PUSHKIT_VAPID_PRIVATE_KEY must be set together")
	}
	if c.PublicKey == "" {
		return nil
	}
	raw, err := vapid.DecodeServerKey(c.PublicKey)
	if err != nil {
		return errors.Join(errors.New("PUSHKIT_VAPID_PUBLIC_KEY"), err)
	}
	if err := vapid.ValidatePublicKey(raw); err != nil {
		return errors.Join(errors.New("PUSHKIT_VAPID_PUBLIC_KEY"), err)
	}
	return nil
}
