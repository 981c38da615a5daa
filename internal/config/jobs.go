package config

import "time"

// JobsConfig configures the asynq worker and scheduler.
type JobsConfig struct {
    Concurrency     int
    ReminderCron    string
    ReportCron      string
    ExportRetention time.Duration
    TokenPurgeCron  string
    AuditLogPath    string
    MetricsAddr     string // worker /metrics listener; empty disables it
}

func LoadJobsConfig() JobsConfig {
    c := JobsConfig{
        Concurrency:     envInt("WORKER_CONCURRENCY", 10),
        ReminderCron:    envStr("REMINDER_CRON", "15 1 * * *"),
        ReportCron:      envStr("MONTHLY_REPORT_CRON", "52 1 1 * *"),
        ExportRetention: envDur("EXPORT_RETENTION", 24*time.Hour),
        TokenPurgeCron:  envStr("TOKEN_PURGE_CRON", "0 3 * * *"),
        AuditLogPath:    envStr("AUDIT_LOG_PATH", "logs/reservations.log"),
        MetricsAddr:     envStr("WORKER_METRICS_ADDR", ":9091"),
    }
    if c.Concurrency < 1 {
        c.Concurrency = 1
    }
    return c
}
