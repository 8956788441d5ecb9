package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"garagelive/internal/app/registry"
	"garagelive/internal/app/server"
	"garagelive/internal/app/worker"
	"garagelive/internal/config"
	"garagelive/internal/core/services"
	"garagelive/internal/platform/logger"
	"garagelive/internal/platform/telemetry"
	"garagelive/internal/plugins/postgres"
	redisPlugin "garagelive/internal/plugins/redis"
)

func main() {
	// Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Config
	cfg := config.Load()

	// Logger
	log := logger.NewLogger(*cfg)
	log.Info("starting application")

	otelShutdown, err := telemetry.InitTelemetry(ctx, *cfg)
	if err != nil {
		log.Error("failed to initialize telemetry", "err", err)
	}
	defer func() {
		log.Info("flushing telemetry...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			log.Error("telemetry shutdown failed", "err", err)
		}
	}()

	// Infra
	var pdb *sql.DB
	if pdb, err = postgres.New(ctx, *cfg.Postgres); err != nil {
		log.Error("postgres connection failed", "DSN", cfg.Postgres.DSN)
		return
	}
	log.Info("postgres connected")
	var rdb *redis.Client
	if rdb, err = redisPlugin.NewRedisClient(ctx, *cfg.Redis); err != nil {
		log.Error("redis connection failed", "url", cfg.Redis.URL)
		return
	}
	log.Info("redis connected")

	// Adapters
	bayRepo := postgres.NewBayRepo(pdb)
	queueRepo := postgres.NewQueueRepo(pdb)
	presStore := redisPlugin.NewRedisPresenceStore(rdb, cfg.Socket.PresenceTTL)
	reminderQueue := redisPlugin.NewRedisReminderQueue(rdb)

	// Core services. The hub is the one broadcaster for the whole
	// process; everything that emits gets this instance injected.
	reg := registry.NewRegistry()
	hub := registry.NewHub(log, reg)
	tokenSvc := services.NewTokenService(cfg.SecretToken)
	dashboardSvc := services.NewDashboardService(log, hub, bayRepo, queueRepo)
	notifySvc := services.NewNotifyService(log, hub)

	wrkr := worker.NewReminderWorker(log, reminderQueue, notifySvc, cfg.Worker.ReminderGroup)
	go func() {
		if err := wrkr.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error("reminder worker stopped", "err", err)
		}
	}()

	// Server
	srv := server.NewServer(log, cfg, hub, reg, presStore, tokenSvc, dashboardSvc)
	if err := srv.Start(); err != nil {
		log.Error("server stopped", "err", err)
	}
}
