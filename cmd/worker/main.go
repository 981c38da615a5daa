package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/iliyamo/parking-reservation/internal/config"
	"github.com/iliyamo/parking-reservation/internal/database"
	"github.com/iliyamo/parking-reservation/internal/jobs"
	"github.com/iliyamo/parking-reservation/internal/logging"
	"github.com/iliyamo/parking-reservation/internal/notify"
	"github.com/iliyamo/parking-reservation/internal/queue"
	"github.com/iliyamo/parking-reservation/internal/repository"
	"github.com/iliyamo/parking-reservation/internal/service"
	"github.com/iliyamo/parking-reservation/internal/telemetry"
)

// The worker runs the asynq task handlers, the periodic scheduler and,
// when a broker is configured, the reservation audit consumer.
func main() {
	_ = godotenv.Load()

	logger, err := logging.NewLogger()
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(logger); err != nil {
		logger.Fatal("worker stopped", zap.Error(err))
	}
}

func run(logger *zap.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	jobsCfg := config.LoadJobsConfig()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Init(ctx, cfg.ServiceName+"-worker", cfg.Env, cfg.OTLPEndpoint)
	if err != nil {
		return err
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	db, err := database.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	reg := prometheus.NewRegistry()
	metrics := telemetry.NewMetrics(reg)

	store := repository.NewSQLStore(db)
	processor := jobs.NewProcessor(
		repository.NewUserRepo(db),
		service.NewUsageService(store),
		notify.NewSender(config.LoadMailConfig(), logger),
		repository.NewTokenRepo(db),
		metrics,
		logger,
	)

	opt := jobs.RedisOpt(config.LoadRedisConfig())
	srv := jobs.NewServer(opt, jobsCfg, processor.Mux(), logger)
	if err := srv.Start(); err != nil {
		return err
	}
	defer srv.Shutdown()

	sched, err := jobs.NewScheduler(opt, jobsCfg, logger)
	if err != nil {
		return err
	}
	if err := sched.Start(); err != nil {
		return err
	}
	defer sched.Shutdown()

	if cfg.RabbitMQURL != "" {
		audit := queue.NewAuditLog(jobsCfg.AuditLogPath)
		consumer := queue.NewConsumer(cfg.RabbitMQURL, queue.AuditBinding(), audit.Handle, logger)
		go func() { _ = consumer.Run(ctx) }()
	} else {
		logger.Info("RABBITMQ_URL not set, audit consumer disabled")
	}

	if jobsCfg.MetricsAddr != "" {
		ms := &http.Server{
			Addr:              jobsCfg.MetricsAddr,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := ms.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Warn("metrics listener stopped", zap.Error(err))
			}
		}()
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			_ = ms.Shutdown(sctx)
		}()
	}

	<-ctx.Done()
	logger.Info("shutting down")
	return nil
}
