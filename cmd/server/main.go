package main // Entry point package

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.uber.org/zap"

	"github.com/iliyamo/parking-reservation/internal/config"
	"github.com/iliyamo/parking-reservation/internal/database"
	"github.com/iliyamo/parking-reservation/internal/handler"
	"github.com/iliyamo/parking-reservation/internal/jobs"
	"github.com/iliyamo/parking-reservation/internal/logging"
	"github.com/iliyamo/parking-reservation/internal/middleware"
	"github.com/iliyamo/parking-reservation/internal/queue"
	"github.com/iliyamo/parking-reservation/internal/realtime"
	"github.com/iliyamo/parking-reservation/internal/repository"
	"github.com/iliyamo/parking-reservation/internal/router"
	"github.com/iliyamo/parking-reservation/internal/service"
	"github.com/iliyamo/parking-reservation/internal/telemetry"
)

// redisPinger adapts *redis.Client to handler.Pinger.
type redisPinger struct{ rdb *redis.Client }

func (p redisPinger) PingContext(ctx context.Context) error { return p.rdb.Ping(ctx).Err() }

func main() {
	_ = godotenv.Load() // .env is optional; real env vars win

	logger, err := logging.NewLogger()
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(logger *zap.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Init(ctx, cfg.ServiceName, cfg.Env, cfg.OTLPEndpoint)
	if err != nil {
		return err
	}

	// ---- storage ----
	db, err := database.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := database.RunMigrations(ctx, db, logger); err != nil {
		return err
	}

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	if cfg.AdminEmail != "" && cfg.AdminPassword != "" {
		created, err := users.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword, cfg.BcryptCost)
		if err != nil {
			return err
		}
		if created {
			logger.Info("admin account created", zap.String("email", cfg.AdminEmail))
		}
	}
	store := repository.NewSQLStore(db)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := telemetry.NewMetrics(reg)

	// Redis backs the response cache, the distributed rate limiter and
	// the export queue.  Without it the API still serves bookings.
	redisCfg := config.LoadRedisConfig()
	rdb, err := config.NewRedisClient(ctx, redisCfg)
	if err != nil {
		logger.Warn("redis unavailable, cache and exports disabled", zap.String("addr", redisCfg.Addr), zap.Error(err))
		rdb = nil
	} else {
		defer rdb.Close()
	}

	// ---- events ----
	hub := realtime.NewHub(logger)
	var events service.EventPublisher = hub
	if cfg.RabbitMQURL != "" {
		pub := queue.NewPublisher(cfg.RabbitMQURL, logger)
		defer pub.Close()
		events = pub
		live := queue.NewConsumer(cfg.RabbitMQURL, queue.LiveBinding(), hub.Publish, logger)
		go func() { _ = live.Run(ctx) }()
	}

	// ---- services ----
	booking := service.NewBookingService(store, events, metrics, logger)
	lots := service.NewLotService(store, events, logger)
	usage := service.NewUsageService(store)
	forecast := service.NewForecastService(usage, nil)

	var exports *handler.ExportHandler
	pingers := []handler.Pinger{db}
	if rdb != nil {
		jc := jobs.NewClient(jobs.RedisOpt(redisCfg), config.LoadJobsConfig().ExportRetention, logger)
		defer jc.Close()
		exports = handler.NewExportHandler(jc)
		pingers = append(pingers, redisPinger{rdb})
	}

	// ---- http ----
	cacheCfg := config.LoadCacheConfig()
	cache := middleware.NewRedisCache(cacheCfg, rdb, logger)
	invalidate := middleware.InvalidateOnWrite(cacheCfg, rdb, logger)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(otelecho.Middleware(cfg.ServiceName))
	e.Use(middleware.RequestLogger(logger))
	e.Use(middleware.Metrics(metrics))
	rateCfg := config.LoadRateLimitConfig()
	e.Use(middleware.NewTokenBucket(rateCfg, rdb, logger))

	lotHandler := handler.NewLotHandler(lots, usage)
	authHandler := handler.NewAuthHandler(cfg, users, tokens, logger)

	router.RegisterRoutes(e, handler.Health(pingers...), promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	router.RegisterAuth(e, authHandler, cfg.JWTSecret, middleware.NewTokenBucket(rateCfg.ForAuth(), rdb, logger))
	router.RegisterPublic(e, lotHandler, cache, handler.LiveUpdates(hub))
	router.RegisterBooking(e, handler.NewBookingHandler(booking), cfg.JWTSecret, invalidate)
	router.RegisterReports(e, handler.NewReportHandler(usage, forecast), exports, cfg.JWTSecret)
	router.RegisterAdmin(e, lotHandler, authHandler, cfg.JWTSecret, invalidate)

	addr := ":" + cfg.Port
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down", zap.Duration("timeout", cfg.ShutdownTimeout))
	sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	err = e.Shutdown(sctx)
	if terr := shutdownTracing(sctx); terr != nil {
		logger.Warn("tracer shutdown failed", zap.Error(terr))
	}
	return err
}
