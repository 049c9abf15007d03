package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	authhandler "bureau/internal/auth/handler"
	authmetrics "bureau/internal/auth/metrics"
	authservice "bureau/internal/auth/service"
	"bureau/internal/auth/store/jti"
	"bureau/internal/auth/store/user"
	"bureau/internal/auth/totp"
	jwttoken "bureau/internal/jwt_token"
	"bureau/internal/platform/config"
	"bureau/internal/platform/database"
	"bureau/internal/platform/health"
	"bureau/internal/platform/httpserver"
	"bureau/internal/platform/logger"
	rlmetrics "bureau/internal/ratelimit/metrics"
	rlservice "bureau/internal/ratelimit/service"
	rlstore "bureau/internal/ratelimit/store"
	"bureau/internal/ratelimit/workers/cleanup"
	httptransport "bureau/internal/transport/http"
)

// main wires dependencies and owns the process lifecycle. Business
// logic lives in the internal service packages.
func main() {
	cfg := config.Load()
	log := logger.New()

	log.Info("initializing bookmark bureau auth service",
		"addr", cfg.Addr,
		"persistent_storage", cfg.DatabaseURL != "",
	)

	healthHandler := health.New()

	// Storage selection: Postgres when DATABASE_URL is set, otherwise
	// in-process stores plus the flat-file JTI registry.
	var (
		userStore user.Store
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

		userStore = user.NewPostgres(pool.DB())
		rateStore = rlstore.NewPostgres(pool.DB())
		jtiStore = jti.NewPostgres(pool.DB())
		healthHandler.RegisterCheck("database", func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return pool.Health(ctx)
		})
	} else {
		fileStore, err := jti.NewFile(cfg.JTIStorePath)
		if err != nil {
			log.Error("failed to open jti registry", "error", err, "path", cfg.JTIStorePath)
			os.Exit(1)
		}
		userStore = user.NewInMemory()
		rateStore = rlstore.NewInMemory()
		jtiStore = fileStore
	}

	rlMetrics := rlmetrics.New()
	limiter, err := rlservice.New(rateStore,
		rlservice.WithLogger(log),
		rlservice.WithMetrics(rlMetrics),
		rlservice.WithConfig(cfg.RateLimit),
	)
	if err != nil {
		log.Error("failed to build rate limiter", "error", err)
		os.Exit(1)
	}

	codec := jwttoken.NewCodec(cfg.JWTSigningKey, cfg.Issuer, cfg.SessionTTL, cfg.RememberMeTTL)
	verifier := totp.NewVerifier(
		totp.WithDigits(cfg.TOTP.Digits),
		totp.WithPeriod(cfg.TOTP.Period),
		totp.WithSkew(cfg.TOTP.Skew),
	)

	auth, err := authservice.New(userStore, limiter, jtiStore, codec, verifier,
		authservice.WithLogger(log),
		authservice.WithMetrics(authmetrics.New()),
	)
	if err != nil {
		log.Error("failed to build auth service", "error", err)
		os.Exit(1)
	}

	router := httptransport.NewRouter(httptransport.Options{
		Auth:           authhandler.New(auth, log),
		Health:         healthHandler,
		Logger:         log,
		RequestTimeout: cfg.RequestTimeout,
	})
	srv := httpserver.New(cfg.Addr, router)

	workerOpts := []cleanup.Option{
		cleanup.WithLogger(log),
		cleanup.WithInterval(cfg.RateLimit.CleanupInterval),
		cleanup.WithMetrics(rlMetrics),
	}
	if cfg.JTIRetention > 0 {
		workerOpts = append(workerOpts, cleanup.WithJTISweeper(jtiStore, cfg.JTIRetention))
	}
	worker := cleanup.New(limiter, workerOpts...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		log.Info("starting http server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		err := worker.Start(groupCtx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("shutting down server gracefully")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}
