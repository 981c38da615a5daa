package jobs

import (
	"context"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/iliyamo/parking-reservation/internal/config"
	"github.com/iliyamo/parking-reservation/internal/logging"
)

// Server runs the task handlers.
type Server struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	log    *zap.Logger
}

func NewServer(opt asynq.RedisConnOpt, cfg config.JobsConfig, mux *asynq.ServeMux, log *zap.Logger) *Server {
	log = logging.OrNop(log).Named("worker")
	srv := asynq.NewServer(opt, asynq.Config{
		Concurrency: cfg.Concurrency,
		Queues:      map[string]int{DefaultQueue: 10},
		Logger:      log.Sugar(),
		ErrorHandler: asynq.ErrorHandlerFunc(func(_ context.Context, task *asynq.Task, err error) {
			log.Error("task failed", zap.String("task_type", task.Type()), zap.Error(err))
		}),
	})
	return &Server{server: srv, mux: mux, log: log}
}

func (s *Server) Start() error {
	s.log.Info("starting asynq worker")
	return s.server.Start(s.mux)
}

func (s *Server) Shutdown() {
	s.log.Info("shutting down asynq worker")
	s.server.Shutdown()
}

// Scheduler enqueues the periodic tasks.
type Scheduler struct {
	scheduler *asynq.Scheduler
	log       *zap.Logger
}

// NewScheduler registers the reminder, report and token purge entries.
func NewScheduler(opt asynq.RedisConnOpt, cfg config.JobsConfig, log *zap.Logger) (*Scheduler, error) {
	log = logging.OrNop(log).Named("scheduler")
	s := asynq.NewScheduler(opt, &asynq.SchedulerOpts{Logger: log.Sugar()})

	report, err := NewMonthlyReportTask("")
	if err != nil {
		return nil, err
	}
	entries := []struct {
		spec string
		task *asynq.Task
	}{
		{cfg.ReminderCron, asynq.NewTask(TypeDailyReminder, nil)},
		{cfg.ReportCron, report},
		{cfg.TokenPurgeCron, asynq.NewTask(TypeTokenPurge, nil)},
	}
	for _, e := range entries {
		id, err := s.Register(e.spec, e.task, asynq.Queue(DefaultQueue), asynq.MaxRetry(1))
		if err != nil {
			return nil, err
		}
		log.Info("periodic task registered", zap.String("task_type", e.task.Type()), zap.String("cron", e.spec), zap.String("entry_id", id))
	}
	return &Scheduler{scheduler: s, log: log}, nil
}

func (s *Scheduler) Start() error { return s.scheduler.Start() }

func (s *Scheduler) Shutdown() { s.scheduler.Shutdown() }
