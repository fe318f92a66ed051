package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/caremesh/clinic-scheduling/internal/config"
	"github.com/caremesh/clinic-scheduling/internal/db"
	"github.com/caremesh/clinic-scheduling/internal/logging"
	redisclient "github.com/caremesh/clinic-scheduling/internal/redis"
	"github.com/caremesh/clinic-scheduling/internal/scheduling"
)

// The completion worker sweeps live appointments whose instant has
// passed, marks them completed and releases their slots so the booked
// flag never outlives its appointment.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := logging.New("prod", "completion-worker")
		fallback.Fatal().Err(err).Msg("config load error")
	}

	log := logging.New(cfg.Env, "completion-worker")
	log.Info().Str("env", cfg.Env).Str("cron", cfg.WorkerCron).Msg("completion-worker starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	log.Info().Msg("connected to Postgres")

	rdb, err := redisclient.NewRedisClient(rootCtx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		log.Fatal().Err(err).Msg("redis connection error")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Warn().Err(err).Msg("error closing redis")
		}
	}()

	repo := scheduling.NewPgRepository(pgPool)
	cache := redisclient.NewAvailabilityCache(rdb, cfg.AvailabilityTTL, log)
	svc := scheduling.NewService(repo, cache, scheduling.NewLogNotifier(log), log, scheduling.Policy{
		SlotDuration:     cfg.SlotDuration,
		CancelWindow:     cfg.CancelWindow,
		RescheduleWindow: cfg.RescheduleWindow,
	})

	// Run once at startup
	runOnce(rootCtx, svc, log)

	c := cron.New()
	if _, err := c.AddFunc(cfg.WorkerCron, func() { runOnce(rootCtx, svc, log) }); err != nil {
		log.Fatal().Err(err).Str("cron", cfg.WorkerCron).Msg("invalid worker cron spec")
	}
	c.Start()

	<-rootCtx.Done()
	log.Info().Msg("shutdown signal received, stopping completion worker")
	<-c.Stop().Done()
}

func runOnce(ctx context.Context, svc *scheduling.Service, log zerolog.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	completed, err := svc.CompleteOverdue(runCtx)
	if err != nil {
		log.Error().Err(err).Msg("completion run error")
		return
	}
	log.Info().Int("completed", completed).Dur("took", time.Since(start)).Msg("completion run complete")
}
