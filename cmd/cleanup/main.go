package main

import (
	"context"
	"os"
	"time"

	"bureau/internal/auth/store/jti"
	"bureau/internal/platform/config"
	"bureau/internal/platform/database"
	"bureau/internal/platform/logger"
	rlservice "bureau/internal/ratelimit/service"
	rlstore "bureau/internal/ratelimit/store"
	"bureau/internal/ratelimit/workers/cleanup"
)

// main runs one cleanup pass and exits. Meant for cron-style
// deployments where the long-running worker in the server is not
// wanted; both run the same sweep and are safe to overlap.
func main() {
	cfg := config.Load()
	log := logger.New()

	var (
		rateStore rlservice.Store
		jtiStore  jti.Store
	)
	if cfg.DatabaseURL != "" {
		dbCfg := database.DefaultConfig()
		dbCfg.URL = cfg.DatabaseURL
		pool, err := database.New(dbCfg)
		if err != nil {
			log.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close() //nolint:errcheck

		rateStore = rlstore.NewPostgres(pool.DB())
		jtiStore = jti.NewPostgres(pool.DB())
	} else {
		// Without a database the rate-limit data lives only inside the
		// server process; the flat-file registry is all there is to sweep.
		fileStore, err := jti.NewFile(cfg.JTIStorePath)
		if err != nil {
			log.Error("failed to open jti registry", "error", err, "path", cfg.JTIStorePath)
			os.Exit(1)
		}
		rateStore = rlstore.NewInMemory()
		jtiStore = fileStore
	}

	limiter, err := rlservice.New(rateStore, rlservice.WithLogger(log), rlservice.WithConfig(cfg.RateLimit))
	if err != nil {
		log.Error("failed to build rate limiter", "error", err)
		os.Exit(1)
	}

	opts := []cleanup.Option{cleanup.WithLogger(log)}
	if cfg.JTIRetention > 0 {
		opts = append(opts, cleanup.WithJTISweeper(jtiStore, cfg.JTIRetention))
	}
	worker := cleanup.New(limiter, opts...)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	start := time.Now()
	deleted, err := worker.RunOnce(ctx)
	if err != nil {
		log.Error("cleanup failed", "error", err, "duration_ms", time.Since(start).Milliseconds())
		os.Exit(1)
	}
	log.Info("cleanup completed", "rows_deleted", deleted, "duration_ms", time.Since(start).Milliseconds())
}
