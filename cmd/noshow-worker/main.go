package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/brightsmile/clinic-scheduling/internal/clinic"
	"github.com/brightsmile/clinic-scheduling/internal/config"
	"github.com/brightsmile/clinic-scheduling/internal/db"
	redisclient "github.com/brightsmile/clinic-scheduling/internal/redis"
)

// The no-show worker periodically flags appointments that were never
// confirmed or checked in and whose end time has passed. The flag is
// compare-and-set, so staff updating the appointment concurrently always win.
func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("config load error")
	}

	log := zerolog.New(os.Stderr).With().Timestamp().Str("component", "noshow-worker").Logger()
	log.Info().
		Str("env", cfg.Env).
		Dur("interval", cfg.WorkerInterval).
		Dur("grace", cfg.NoShowGrace).
		Msg("noshow-worker starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	// One periodic CAS sweep at a time; the pool stays tiny.
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, 2)
	cancelPg()
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	log.Info().Msg("connected to Postgres")

	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword, 2)
	if err != nil {
		log.Fatal().Err(err).Msg("redis connection error")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Error().Err(err).Msg("error closing redis")
		}
	}()

	repo := clinic.NewPgRepository(pgPool)
	locker := redisclient.NewRedisDoctorLocker(rdb, cfg.LockTTL)
	scheduler := clinic.NewScheduler(repo, locker, clinic.NoopSink{}, log)

	// Run once at startup
	runOnce(rootCtx, scheduler, cfg.NoShowGrace, log)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			log.Info().Msg("shutdown signal received, stopping noshow-worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, scheduler, cfg.NoShowGrace, log)
		}
	}
}

func runOnce(ctx context.Context, scheduler *clinic.Scheduler, grace time.Duration, log zerolog.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	flagged, err := scheduler.MarkOverdueNoShows(runCtx, grace)
	if err != nil {
		log.Error().Err(err).Msg("no-show run error")
		return
	}
	log.Info().Int("flagged", flagged).Dur("took", time.Since(start)).Msg("no-show run complete")
}
