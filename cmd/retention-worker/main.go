package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-appointment-engine/internal/appointment"
	"github.com/hackgods/clinic-appointment-engine/internal/config"
	"github.com/hackgods/clinic-appointment-engine/internal/db"
	"github.com/hackgods/clinic-appointment-engine/internal/logging"
	"github.com/hackgods/clinic-appointment-engine/internal/metrics"
)

const sweepTimeout = 5 * time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLogger := zerolog.New(os.Stderr)
		bootLogger.Fatal().Err(err).Msg("config load error")
	}

	logger := logging.New(cfg.Env, cfg.LogLevel).With().Str("service", "retention-worker").Logger()
	logger.Info().
		Str("env", cfg.Env).
		Str("schedule", cfg.RetentionSchedule).
		Dur("window", cfg.RetentionWindow).
		Msg("retention-worker starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, db.PoolOptions{MaxConns: 2})
	cancelPg()
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	logger.Info().Msg("connected to Postgres")

	rec := metrics.New()
	repo := appointment.NewPgRepository(pgPool, cfg.ClinicLocation)
	sweeper := appointment.NewSweeper(repo, cfg, logger, rec)

	metricsSrv := newMetricsServer(":"+cfg.MetricsPort, rec)
	go func() {
		logger.Info().Str("addr", metricsSrv.Addr).Msg("metrics server listening")
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics server error")
		}
	}()

	if cfg.RetentionOnStart {
		runOnce(rootCtx, sweeper, logger)
	}

	// The schedule is read in clinic time, so "0 2 * * 0" is Sunday 02:00 at the clinic.
	c := cron.New(
		cron.WithLocation(cfg.ClinicLocation),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	_, err = c.AddFunc(cfg.RetentionSchedule, func() {
		runOnce(rootCtx, sweeper, logger)
	})
	if err != nil {
		logger.Fatal().Err(err).Str("schedule", cfg.RetentionSchedule).Msg("invalid retention schedule")
	}

	c.Start()
	logger.Info().Time("next_run", c.Entries()[0].Next).Msg("retention sweep scheduled")

	<-rootCtx.Done()
	logger.Info().Msg("shutdown signal received, stopping retention worker")

	// wait for an in-flight sweep
	<-c.Stop().Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("metrics server shutdown error")
	}
	logger.Info().Msg("retention-worker stopped")
}

// newMetricsServer serves the sweep counters for scraping.
func newMetricsServer(addr string, rec *metrics.Recorder) *http.Server {
	r := chi.NewRouter()
	r.Handle("/metrics", rec.Handler())
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func runOnce(ctx context.Context, sweeper *appointment.Sweeper, logger zerolog.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, sweepTimeout)
	defer cancel()

	start := time.Now()
	res, err := sweeper.Sweep(runCtx)
	if err != nil {
		logger.Error().Err(err).Int("deleted", res.Deleted).Msg("retention run error")
		return
	}
	logger.Info().
		Int("deleted", res.Deleted).
		Int("failed", res.Failed).
		Dur("took", time.Since(start)).
		Msg("retention run complete")
}
