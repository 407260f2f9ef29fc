// Package redis connects to Redis for the shared key-value backend.
//
// Connect pings with retries so a service started alongside Redis waits for
// it instead of failing on the first attempt:
//
//	var cfg redis.Config
//	if err := config.Load(&cfg); err != nil {
//	    return err
//	}
//	if cfg.Enabled() {
//	    client, err := redis.Connect(ctx, cfg)
//	    if err != nil {
//	        return err
//	    }
//	    defer client.Close()
//	    store = kv.NewRedis(client, kv.WithPrefix(cfg.KeyPrefix))
//	}
//
// Healthcheck adapts the client to a readiness probe for
// httpserver.HealthHandler.
package redis
