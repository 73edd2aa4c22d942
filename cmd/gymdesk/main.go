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

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"go.uber.org/automaxprocs/maxprocs"
	"golang.org/x/sync/errgroup"

	"github.com/gymdesk/gymdesk/internal/app"
	"github.com/gymdesk/gymdesk/internal/attendance"
	"github.com/gymdesk/gymdesk/internal/billing"
	"github.com/gymdesk/gymdesk/internal/membership"
	"github.com/gymdesk/gymdesk/internal/observability"
	"github.com/gymdesk/gymdesk/internal/platform/cache"
	"github.com/gymdesk/gymdesk/internal/platform/db"
	"github.com/gymdesk/gymdesk/internal/schedule"
	"github.com/gymdesk/gymdesk/jobs"
)

const shutdownGrace = 10 * time.Second

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	if _, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...any) {
		logger.Info(fmt.Sprintf(format, args...))
	})); err != nil {
		logger.Warn("set maxprocs", slog.Any("error", err))
	}

	shutdownTracing, err := observability.SetupTracing(ctx, "gymdesk", cfg.OTLPEndpoint, logger)
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
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	// The schedule cache is optional; reads fall back to Postgres.
	redisOpts := cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
	redisClient, err := cache.New(ctx, redisOpts)
	if err != nil {
		logger.Warn("redis unavailable, schedule cache disabled", slog.Any("error", err))
	} else {
		defer redisClient.Close()
	}

	metrics := observability.NewMetrics()
	services, err := app.NewServices(cfg, pool, redisClient, metrics, logger)
	if err != nil {
		return fmt.Errorf("wire services: %w", err)
	}

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: redisOpts.Addr, Password: redisOpts.Password, DB: redisOpts.DB})
	defer inspector.Close()

	server := &http.Server{
		Addr:         cfg.AppAddr,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
		Handler: app.NewRouter(app.RouterParams{
			Logger:            logger,
			Config:            cfg,
			Metrics:           metrics,
			MembershipHandler: membership.NewHandler(logger, services.Members),
			BillingHandler:    billing.NewHandler(logger, services.Ledger),
			AttendanceHandler: attendance.NewHandler(logger, services.Gate, services.Attendance, services.Sweeper, app.CheckInLimiter(cfg)),
			ScheduleHandler:   schedule.NewHandler(logger, services.Schedule),
			JobHandler:        jobs.NewHandler(inspector, logger),
		}),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server listening",
			slog.String("addr", cfg.AppAddr),
			slog.String("timezone", cfg.FacilityTimezone))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
