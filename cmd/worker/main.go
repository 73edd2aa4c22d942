package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/gymdesk/gymdesk/internal/app"
	jobmetrics "github.com/gymdesk/gymdesk/internal/jobs"
	"github.com/gymdesk/gymdesk/internal/observability"
	"github.com/gymdesk/gymdesk/internal/platform/db"
	"github.com/gymdesk/gymdesk/jobs"
)

const idempotencyCleanupCron = "30 3 * * *"

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}
	_ = godotenv.Load()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	if _, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...any) {
		logger.Info(fmt.Sprintf(format, args...))
	})); err != nil {
		logger.Warn("set maxprocs", slog.Any("error", err))
	}

	shutdownTracing, err := observability.SetupTracing(ctx, "gymdesk-worker", cfg.OTLPEndpoint, logger)
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("tracing shutdown", slog.Any("error", err))
		}
	}()

	pool, err := db.New(ctx, cfg.PGDSN, cfg.FacilityTimezone)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	// Jobs never read the batch schedule, so no Redis cache is wired here.
	services, err := app.NewServices(cfg, pool, nil, nil, logger)
	if err != nil {
		return fmt.Errorf("wire services: %w", err)
	}

	registry := observability.NewMetrics()
	metrics := jobmetrics.NewMetrics(registry.Registerer())
	if cfg.WorkerMetricsAddr != "" {
		stopMetrics := serveMetrics(cfg.WorkerMetricsAddr, registry.Handler(), logger)
		defer stopMetrics()
	}

	worker, err := newWorker(cfg, services, metrics, logger)
	if err != nil {
		return err
	}
	logger.Info("worker started",
		slog.String("timezone", cfg.FacilityTimezone),
		slog.String("sweep_cron", cfg.SweepCron),
		slog.String("status_refresh_cron", cfg.StatusRefreshCron))
	return worker.Run(ctx)
}

func newWorker(cfg *app.Config, services *app.Services, metrics *jobmetrics.Metrics, logger *slog.Logger) (*jobs.Worker, error) {
	sweepTask, err := jobs.NewAbsenceSweepTask(nil)
	if err != nil {
		return nil, fmt.Errorf("build sweep task: %w", err)
	}
	sweep := jobs.NewAbsenceSweepJob(services.Sweeper, logger, metrics)
	refresh := jobs.NewStatusRefreshJob(services.Members, logger, metrics)
	cleanup := &jobs.IdempotencyCleanupJob{
		Store:     services.Idempotency,
		Retention: cfg.IdempotencyRetention,
		Logger:    logger,
		Metrics:   metrics,
	}

	return jobs.NewWorker(jobs.WorkerOptions{
		Redis:    asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB},
		Logger:   logger,
		Location: services.Clock.Location(),
	},
		jobs.Job{Type: jobs.TaskAbsenceSweep, Handle: sweep.Handle, Cron: cfg.SweepCron, Task: sweepTask, Retries: 3},
		jobs.Job{Type: jobs.TaskStatusRefresh, Handle: refresh.Handle, Cron: cfg.StatusRefreshCron, Task: jobs.NewStatusRefreshTask(), Retries: 3},
		jobs.Job{Type: jobs.TaskIdempotencyCleanup, Handle: cleanup.Handle, Cron: idempotencyCleanupCron, Task: jobs.NewIdempotencyCleanupTask(), Retries: 1},
	)
}

// serveMetrics exposes the job collectors for scraping and returns a stop
// function.
func serveMetrics(addr string, handler http.Handler, logger *slog.Logger) func() {
	r := chi.NewRouter()
	r.Method(http.MethodGet, "/metrics", handler)
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("worker metrics listener", slog.Any("error", err))
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
