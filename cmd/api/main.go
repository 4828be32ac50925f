package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/celiaho/HocusFocusToDo/internal/config"
	"github.com/celiaho/HocusFocusToDo/internal/crypto"
	"github.com/celiaho/HocusFocusToDo/internal/handler"
	"github.com/celiaho/HocusFocusToDo/internal/logger"
	"github.com/celiaho/HocusFocusToDo/internal/metrics"
	"github.com/celiaho/HocusFocusToDo/internal/middleware"
	"github.com/celiaho/HocusFocusToDo/internal/repository"
	"github.com/celiaho/HocusFocusToDo/internal/service"
	"github.com/celiaho/HocusFocusToDo/internal/telemetry"
	"github.com/celiaho/HocusFocusToDo/internal/worker"
)

const serviceName = "hocusfocus-api"

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Warn("no .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	log := logger.SetupDefault(os.Stdout, logger.ParseLevel(cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, serviceName, cfg.OTELEndpoint)
	if err != nil {
		log.Error("tracing setup failed", "error", err)
		os.Exit(1)
	}

	db, err := repository.NewDB(cfg.DatabaseDriver, cfg.DatabaseDSN)
	if err != nil {
		log.Error("database open failed", "driver", cfg.DatabaseDriver, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := repository.Migrate(db); err != nil {
		log.Error("database migration failed", "error", err)
		os.Exit(1)
	}

	var resets repository.ResetCodeStore = repository.NewResetRepository(db)
	if cfg.RedisURL != "" {
		rdb, err := repository.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			log.Error("redis connection failed", "error", err)
			os.Exit(1)
		}
		defer rdb.Close()
		resets = repository.NewRedisResetStore(rdb)
		log.Info("reset codes stored in redis")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec := metrics.NewCollector(registry)

	users := repository.NewUserRepository(db)
	codec := crypto.NewCodec(cfg.JWTSecret, cfg.TokenTTL)
	authService := service.NewAuthService(
		users,
		resets,
		codec,
		crypto.NewPasswordHasher(crypto.DefaultHashParams()),
		service.NewLogCodeSender(log, cfg.LogResetCodes),
		rec,
		service.AuthOptions{ResetCodeTTL: cfg.ResetCodeTTL, ResetMaxAttempts: cfg.ResetMaxAttempts},
	)
	documentService := service.NewDocumentService(repository.NewDocumentRepository(db), users, rec)

	limiter := middleware.NewLimiter(cfg.AuthRateLimitRPS, cfg.AuthRateLimitBurst)
	go limiter.Run(ctx)

	sweeper := worker.NewResetSweeper(resets, rec, log)
	sweeper.Interval = cfg.ResetSweepInterval
	go sweeper.Run(ctx)

	router := handler.NewRouter(handler.Services{
		Auth:          authService,
		Authenticator: service.NewAuthenticator(codec, users),
		Documents:     documentService,
		Tasks:         service.NewTaskService(documentService),
		Profiles:      service.NewProfileService(users, resets),
	}, handler.RouterOptions{
		Logger:         log,
		Metrics:        rec,
		MetricsHandler: metrics.Handler(registry),
		AuthLimiter:    limiter,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("server starting", "port", cfg.Port, "env", cfg.Env, "database", cfg.DatabaseDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced shutdown", "error", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error("tracing shutdown failed", "error", err)
	}

	log.Info("server stopped")
}
