// Package redis provides Redis client initialization and health checking.
//
// Connect validates the connection URL, creates a go-redis client, and
// verifies connectivity with a ping, retrying with exponential backoff:
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close()
//
// Both redis:// and rediss:// (TLS) URL schemes are supported. Healthcheck
// returns a probe function suitable for readiness endpoints.
package redis
