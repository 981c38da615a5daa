package config

// Redis backs the response cache, the distributed rate limiter and the
// asynq job queue.  The same address settings serve all three.

import (
    "context"
    "crypto/tls"
    "fmt"
    "os"
    "time"

    "github.com/redis/go-redis/v9"
)

// RedisConfig holds the connection settings shared by go-redis and asynq.
type RedisConfig struct {
    Addr     string
    Password string
    DB       int
    TLS      bool
}

// LoadRedisConfig reads REDIS_HOST/REDIS_PORT (or REDIS_ADDR),
// REDIS_PASSWORD, REDIS_DB and REDIS_TLS.  Host and port take precedence
// over REDIS_ADDR.
func LoadRedisConfig() RedisConfig {
    addr := os.Getenv("REDIS_ADDR")
    host, port := os.Getenv("REDIS_HOST"), os.Getenv("REDIS_PORT")
    if host != "" && port != "" {
        addr = host + ":" + port
    }
    if addr == "" {
        addr = "localhost:6379"
    }
    return RedisConfig{
        Addr:     addr,
        Password: os.Getenv("REDIS_PASSWORD"),
        DB:       envInt("REDIS_DB", 0),
        TLS:      envBool("REDIS_TLS", false),
    }
}

// TLSConfig returns nil unless REDIS_TLS is set.
func (c RedisConfig) TLSConfig() *tls.Config {
    if !c.TLS {
        return nil
    }
    return &tls.Config{MinVersion: tls.VersionTLS12}
}

// Options returns go-redis client options for c.
func (c RedisConfig) Options() *redis.Options {
    return &redis.Options{
        Addr:      c.Addr,
        Password:  c.Password,
        DB:        c.DB,
        TLSConfig: c.TLSConfig(),
    }
}

// NewRedisClient connects and pings Redis.  Callers degrade gracefully on
// error by disabling caching and falling back to the local rate limiter.
func NewRedisClient(ctx context.Context, c RedisConfig) (*redis.Client, error) {
    client := redis.NewClient(c.Options())
    ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
    defer cancel()
    if err := client.Ping(ctx).Err(); err != nil {
        _ = client.Close()
        return nil, fmt.Errorf("redis ping %s: %w", c.Addr, err)
    }
    return client, nil
}
