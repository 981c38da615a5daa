package config

import "time"

// RateLimitConfig drives the token bucket middleware.  The bucket lives
// in Redis when a client is available and in process memory otherwise.
type RateLimitConfig struct {
    Enabled        bool
    Capacity       int
    RefillTokens   int
    RefillInterval time.Duration
    TTL            time.Duration
    KeyStrategy    string // ip, user, route or any "_"-joined mix
    Prefix         string
    Debug          bool

    // The auth endpoints get their own, smaller bucket so that password
    // guessing runs dry long before ordinary traffic is throttled.
    AuthCapacity       int
    AuthRefillInterval time.Duration
}

func LoadRateLimitConfig() RateLimitConfig {
    c := RateLimitConfig{
        Enabled:            envBool("RATE_LIMIT_ENABLED", true),
        Capacity:           envInt("RATE_LIMIT_CAPACITY", 60),
        RefillTokens:       envInt("RATE_LIMIT_REFILL_TOKENS", 1),
        RefillInterval:     envDur("RATE_LIMIT_REFILL_INTERVAL", time.Second),
        TTL:                envDur("RATE_LIMIT_TTL", 10*time.Minute),
        KeyStrategy:        envStr("RATE_LIMIT_KEY_STRATEGY", "ip_user_route"),
        Prefix:             envStr("RATE_LIMIT_PREFIX", "parking:rl"),
        Debug:              envBool("RATE_LIMIT_DEBUG", false),
        AuthCapacity:       envInt("AUTH_RATE_LIMIT_CAPACITY", 10),
        AuthRefillInterval: envDur("AUTH_RATE_LIMIT_REFILL_INTERVAL", 6*time.Second),
    }
    c.normalize()
    return c
}

func (c *RateLimitConfig) normalize() {
    if c.Capacity < 1 {
        c.Capacity = 1
    }
    if c.RefillTokens < 1 {
        c.RefillTokens = 1
    }
    if c.RefillInterval <= 0 {
        c.RefillInterval = time.Second
    }
    if floor := 5 * c.RefillInterval; c.TTL < floor {
        c.TTL = floor
    }
    if c.AuthCapacity < 1 {
        c.AuthCapacity = 1
    }
    if c.AuthRefillInterval <= 0 {
        c.AuthRefillInterval = c.RefillInterval
    }
}

// PerTokenInterval is the time it takes to earn back one token.
func (c RateLimitConfig) PerTokenInterval() time.Duration {
    if c.RefillTokens < 1 {
        return c.RefillInterval
    }
    return c.RefillInterval / time.Duration(c.RefillTokens)
}

// ForAuth derives the bucket applied to /v1/auth.  It is keyed by client
// IP only, since callers there are not authenticated yet.
func (c RateLimitConfig) ForAuth() RateLimitConfig {
    a := c
    a.Capacity = c.AuthCapacity
    a.RefillTokens = 1
    a.RefillInterval = c.AuthRefillInterval
    a.KeyStrategy = "ip"
    a.Prefix = c.Prefix + ":auth"
    a.normalize()
    return a
}
