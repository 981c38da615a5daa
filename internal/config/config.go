package config // package config loads application configuration from environment variables

import (
    "fmt"
    "os"
    "strconv"
    "time"
)

// Config holds the core runtime configuration.  Required fields fail Load
// when unset; the rest fall back to defaults.
type Config struct {
    Env            string // application environment (e.g. "dev", "prod")
    Port           string // HTTP port to listen on
    DBUser         string
    DBPass         string // may be empty
    DBHost         string
    DBPort         string
    DBName         string
    JWTSecret      string
    AccessTTLMin   int // access token lifetime in minutes
    RefreshTTLDays int // refresh token lifetime in days
    BcryptCost     int

    // RabbitMQURL enables the event exchange.  Empty means events stay
    // inside the process and go straight to the websocket hub.
    RabbitMQURL     string
    OTLPEndpoint    string
    ServiceName     string
    AdminEmail      string
    AdminPassword   string
    ShutdownTimeout time.Duration
}

// Load reads the configuration from the environment.  The first missing
// or malformed required variable is reported as an error.
func Load() (Config, error) {
    var (
        c   Config
        err error
    )
    req := func(key string, dst *string) {
        if err != nil {
            return
        }
        *dst, err = requireEnv(key)
    }
    reqInt := func(key string, dst *int) {
        if err != nil {
            return
        }
        *dst, err = requireInt(key)
    }

    req("APP_ENV", &c.Env)
    req("APP_PORT", &c.Port)
    req("DB_USER", &c.DBUser)
    req("DB_HOST", &c.DBHost)
    req("DB_PORT", &c.DBPort)
    req("DB_NAME", &c.DBName)
    req("JWT_SECRET", &c.JWTSecret)
    reqInt("ACCESS_TOKEN_TTL_MIN", &c.AccessTTLMin)
    reqInt("REFRESH_TOKEN_TTL_DAYS", &c.RefreshTTLDays)
    reqInt("BCRYPT_COST", &c.BcryptCost)
    if err != nil {
        return Config{}, err
    }

    c.DBPass = os.Getenv("DB_PASS")
    c.RabbitMQURL = os.Getenv("RABBITMQ_URL")
    c.OTLPEndpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
    c.ServiceName = envStr("OTEL_SERVICE_NAME", "parking-reservation")
    c.AdminEmail = os.Getenv("ADMIN_EMAIL")
    c.AdminPassword = os.Getenv("ADMIN_PASSWORD")
    c.ShutdownTimeout = envDur("SHUTDOWN_TIMEOUT", 10*time.Second)
    return c, nil
}

// requireEnv retrieves the value of a required environment variable.
func requireEnv(key string) (string, error) {
    v, ok := os.LookupEnv(key)
    if !ok || v == "" {
        return "", fmt.Errorf("missing required env var: %s", key)
    }
    return v, nil
}

func requireInt(key string) (int, error) {
    s, err := requireEnv(key)
    if err != nil {
        return 0, err
    }
    n, err := strconv.Atoi(s)
    if err != nil {
        return 0, fmt.Errorf("invalid int for %s: %q", key, s)
    }
    return n, nil
}
