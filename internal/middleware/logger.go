package middleware

import (
    "github.com/labstack/echo/v4"
    echomw "github.com/labstack/echo/v4/middleware"
    "go.uber.org/zap"
    "go.uber.org/zap/zapcore"
)

// RequestLogger writes one access log line per request through zap.
// Server errors log at Error, client errors at Info.
func RequestLogger(log *zap.Logger) echo.MiddlewareFunc {
    log = log.Named("http")
    return echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
        LogStatus:    true,
        LogMethod:    true,
        LogURI:       true,
        LogRoutePath: true,
        LogLatency:   true,
        LogRemoteIP:  true,
        LogError:     true,
        HandleError:  true,
        LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
            level := zapcore.InfoLevel
            if v.Status >= 500 {
                level = zapcore.ErrorLevel
            }
            fields := []zap.Field{
                zap.String("method", v.Method),
                zap.String("uri", v.URI),
                zap.String("route", v.RoutePath),
                zap.Int("status", v.Status),
                zap.Duration("latency", v.Latency),
                zap.String("remote_ip", v.RemoteIP),
            }
            if id, ok := UserID(c); ok {
                fields = append(fields, zap.Uint64("user_id", id))
            }
            if v.Error != nil {
                fields = append(fields, zap.Error(v.Error))
            }
            if ce := log.Check(level, "request"); ce != nil {
                ce.Write(fields...)
            }
            return nil
        },
    })
}
