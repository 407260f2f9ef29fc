// Package config loads typed configuration from environment variables.
//
// It wraps github.com/joho/godotenv (optional .env file) and
// github.com/caarlos0/env/v11 (struct tag parsing). Each configuration type is
// parsed once per process and cached; later Load calls for the same type return
// the cached copy.
//
// A configuration type may implement Validator. Validate runs after parsing and
// a failing config is never cached.
//
//	type Config struct {
//	    URL     string        `env:"PUSHKIT_REGISTRY_URL,required"`
//	    Timeout time.Duration `env:"PUSHKIT_REGISTRY_TIMEOUT" envDefault:"10s"`
//	}
//
//	var cfg Config
//	config.MustLoad(&cfg)
package config
