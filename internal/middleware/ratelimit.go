package middleware

import (
    "fmt"
    "math"
    "net/http"
    "strconv"
    "strings"
    "sync"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"
    "go.uber.org/zap"
    "golang.org/x/time/rate"

    "github.com/iliyamo/parking-reservation/internal/config"
)

// NewTokenBucket limits requests per key.  The bucket is kept in Redis
// so every API instance shares it; when rdb is nil, or a Redis call
// fails, a process-local bucket with the same capacity and refill rate
// answers instead.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client, log *zap.Logger) echo.MiddlewareFunc {
    if !cfg.Enabled {
        return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
    }
    local := newLocalBuckets(cfg)
    if rdb == nil {
        return local.middleware(cfg)
    }

    limiterScript := redis.NewScript(`
        local key = KEYS[1]
        local now_ms = tonumber(ARGV[1])
        local capacity = tonumber(ARGV[2])
        local refill_tokens = tonumber(ARGV[3])
        local interval_ms = tonumber(ARGV[4])
        local ttl_seconds = tonumber(ARGV[5])

        local state = redis.call('HMGET', key, 'tokens', 'last_refill_ms')
        local tokens = tonumber(state[1])
        local last_refill = tonumber(state[2])

        if tokens == nil or last_refill == nil then
            tokens = capacity
            last_refill = now_ms
        end

        if interval_ms > 0 and refill_tokens > 0 then
            local elapsed = math.max(0, now_ms - last_refill)
            local intervals = math.floor(elapsed / interval_ms)
            if intervals > 0 then
                tokens = math.min(capacity, tokens + (intervals * refill_tokens))
                last_refill = last_refill + (intervals * interval_ms)
            end
        end

        local allowed = 0
        local retry_after_ms = 0
        if tokens > 0 then
            allowed = 1
            tokens = tokens - 1
        else
            local until_next = interval_ms - (now_ms - last_refill)
            if until_next < 0 then until_next = 0 end
            retry_after_ms = until_next
        end

        redis.call('HMSET', key, 'tokens', tokens, 'last_refill_ms', last_refill, 'capacity', capacity)
        redis.call('EXPIRE', key, ttl_seconds)

        return { allowed, tokens, retry_after_ms }
    `)

    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            key := buildRateKey(cfg, c)
            now := time.Now()

            args := []interface{}{
                now.UnixMilli(),
                cfg.Capacity,
                cfg.RefillTokens,
                cfg.RefillInterval.Milliseconds(),
                int64(cfg.TTL / time.Second),
            }

            ctx := c.Request().Context()
            vals, err := limiterScript.Run(ctx, rdb, []string{key}, args...).Result()
            if err != nil {
                log.Debug("ratelimit: redis unavailable, using local bucket", zap.String("key", key), zap.Error(err))
                return local.handle(cfg, key, c, next)
            }

            allowed := false
            remaining := int64(0)
            retryMs := int64(0)

            if arr, ok := vals.([]interface{}); ok && len(arr) == 3 {
                if i, ok := arr[0].(int64); ok { allowed = (i == 1) } else { allowed = fmt.Sprint(arr[0]) == "1" }
                remaining = asInt64(arr[1])
                retryMs = asInt64(arr[2])
            } else {
                log.Warn("ratelimit: unexpected script result", zap.String("key", key), zap.Any("result", vals))
                return local.handle(cfg, key, c, next)
            }

            if !allowed {
                if cfg.Debug {
                    log.Info("ratelimit: block", zap.String("key", key), zap.Int64("retry_ms", retryMs))
                }
                return reject(c, cfg, remaining, time.Duration(retryMs)*time.Millisecond)
            }
            setLimitHeaders(c, cfg, remaining)
            if cfg.Debug {
                c.Response().Header().Set("X-RateLimit-Key", key)
            }
            return next(c)
        }
    }
}

func asInt64(v interface{}) int64 {
    switch t := v.(type) {
    case int64: return t
    case int32: return int64(t)
    case int: return int64(t)
    case float64: return int64(t)
    case float32: return int64(t)
    case string:
        if n, err := strconv.ParseInt(t, 10, 64); err == nil { return n }
    }
    return 0
}

func buildRateKey(cfg config.RateLimitConfig, c echo.Context) string {
    parts := []string{cfg.Prefix}
    strategy := strings.ToLower(cfg.KeyStrategy)
    ip := c.RealIP()
    if ip == "" { ip = "unknown" }
    uid := identity(c)
    route := c.Request().Method + " " + c.Path()

    switch strategy {
    case "ip":
        parts = append(parts, "ip", ip)
    case "user":
        parts = append(parts, "user", uid)
    case "route":
        parts = append(parts, "route", route)
    case "ip_user":
        parts = append(parts, "ip", ip, "user", uid)
    case "ip_route":
        parts = append(parts, "ip", ip, "route", route)
    case "user_route":
        parts = append(parts, "user", uid, "route", route)
    default:
        parts = append(parts, "ip", ip, "user", uid, "route", route)
    }
    return strings.Join(parts, ":")
}

func setLimitHeaders(c echo.Context, cfg config.RateLimitConfig, remaining int64) {
    c.Response().Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
    c.Response().Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
}

func reject(c echo.Context, cfg config.RateLimitConfig, remaining int64, retry time.Duration) error {
    setLimitHeaders(c, cfg, remaining)
    secs := int(math.Ceil(retry.Seconds()))
    if secs < 0 { secs = 0 }
    c.Response().Header().Set("Retry-After", strconv.Itoa(secs))
    return c.JSON(http.StatusTooManyRequests, echo.Map{
        "error":       "rate limit exceeded",
        "retry_after": secs,
    })
}

// localBuckets is the in-process limiter used without Redis.  Idle
// buckets are dropped once they have been full for cfg.TTL.
type localBuckets struct {
    mu       sync.Mutex
    limit    rate.Limit
    burst    int
    ttl      time.Duration
    buckets  map[string]*localBucket
    lastScan time.Time
}

type localBucket struct {
    lim  *rate.Limiter
    seen time.Time
}

func newLocalBuckets(cfg config.RateLimitConfig) *localBuckets {
    return &localBuckets{
        limit:   rate.Every(cfg.PerTokenInterval()),
        burst:   cfg.Capacity,
        ttl:     cfg.TTL,
        buckets: make(map[string]*localBucket),
    }
}

func (l *localBuckets) reserve(key string, now time.Time) (bool, int64, time.Duration) {
    l.mu.Lock()
    defer l.mu.Unlock()
    if now.Sub(l.lastScan) > l.ttl {
        for k, b := range l.buckets {
            if now.Sub(b.seen) > l.ttl {
                delete(l.buckets, k)
            }
        }
        l.lastScan = now
    }
    b, ok := l.buckets[key]
    if !ok {
        b = &localBucket{lim: rate.NewLimiter(l.limit, l.burst)}
        l.buckets[key] = b
    }
    b.seen = now
    r := b.lim.ReserveN(now, 1)
    if d := r.DelayFrom(now); d > 0 {
        r.CancelAt(now)
        return false, 0, d
    }
    return true, int64(b.lim.TokensAt(now)), 0
}

func (l *localBuckets) handle(cfg config.RateLimitConfig, key string, c echo.Context, next echo.HandlerFunc) error {
    ok, remaining, retry := l.reserve(key, time.Now())
    if !ok {
        return reject(c, cfg, 0, retry)
    }
    setLimitHeaders(c, cfg, remaining)
    return next(c)
}

func (l *localBuckets) middleware(cfg config.RateLimitConfig) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            return l.handle(cfg, buildRateKey(cfg, c), c, next)
        }
    }
}
