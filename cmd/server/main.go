// Package main provides the local API server entry point for the marketplace client.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/IliyaBaranov/agora/internal/adapter"
	"github.com/IliyaBaranov/agora/internal/api"
	"github.com/IliyaBaranov/agora/internal/config"
	"github.com/IliyaBaranov/agora/internal/logging"
	"github.com/IliyaBaranov/agora/internal/storage"
	"github.com/IliyaBaranov/agora/internal/store"
	"github.com/IliyaBaranov/agora/internal/worker"
)

func main() {
	fmt.Println("Agora Marketplace Client")
	log.Println("Server starting...")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize structured logging
	logLevel := logging.ParseLogLevel(cfg.Logging.Level)
	logFormat := logging.ParseLogFormat(cfg.Logging.Format)
	logging.InitGlobalLogger(logLevel, logFormat)

	logger := logging.GetGlobalLogger()
	logger.WithFields(map[string]interface{}{
		"level":  cfg.Logging.Level,
		"format": cfg.Logging.Format,
	}).Info("Structured logging initialized")

	client, err := adapter.NewAgoraClient(cfg.API, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create backend client")
	}
	logger.WithField("baseUrl", cfg.API.BaseURL).Info("Backend client initialized")

	opts := []store.Option{store.WithLogger(logger)}
	var deps []api.ServerOption

	switch cfg.Journal.Backend {
	case config.JournalPostgres:
		if err := storage.RunMigrations(cfg.Database.Postgres.URL(), storage.DefaultMigrationsPath); err != nil {
			logger.WithError(err).Fatal("Failed to run Postgres migrations")
		}
		postgres, err := storage.NewPostgresDB(&cfg.Database.Postgres)
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to Postgres")
		}
		defer postgres.Close()
		opts = append(opts, store.WithJournal(storage.NewJournalRepository(postgres)))
		deps = append(deps, api.WithDependency("journal", postgres))
		logger.Info("Operation journal backed by Postgres")
	case config.JournalClickHouse:
		clickhouse, err := storage.NewClickHouseDB(&cfg.Database.ClickHouse)
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to ClickHouse")
		}
		defer func() { _ = clickhouse.Close() }()
		if err := storage.RunClickHouseMigrations(context.Background(), clickhouse, storage.DefaultClickHouseMigrationsPath); err != nil {
			logger.WithError(err).Fatal("Failed to run ClickHouse migrations")
		}
		opts = append(opts, store.WithJournal(storage.NewClickHouseJournal(clickhouse)))
		deps = append(deps, api.WithDependency("journal", clickhouse))
		logger.Info("Operation journal backed by ClickHouse")
	default:
		opts = append(opts, store.WithJournal(storage.NewMemoryJournal(cfg.Journal.MemoryCapacity)))
	}

	if cfg.Database.Redis.Enabled {
		redis, err := storage.NewRedisCache(&cfg.Database.Redis)
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to Redis")
		}
		defer redis.Close()
		opts = append(opts, store.WithSnapshotCache(storage.NewSnapshotCache(redis, cfg.Cache.TTL)))
		deps = append(deps, api.WithDependency("snapshotCache", redis))
		logger.WithField("ttl", cfg.Cache.TTL.String()).Info("Snapshot cache backed by Redis")
	}

	domain := store.New(client, opts...)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Warm start from the cache, then replace with the backend's view
	if restored, err := domain.Restore(ctx); err != nil {
		logger.WithError(err).Warn("Snapshot restore failed")
	} else if restored {
		logger.Info("Session restored from snapshot cache")
	}
	if err := domain.Bootstrap(ctx); err != nil {
		logger.WithError(err).Warn("Initial bootstrap failed, serving cached state")
	}

	serverOpts := append([]api.ServerOption{
		api.WithServerLogger(logger),
		api.WithBreakerStats(client),
	}, deps...)

	var refresher *worker.RefreshWorker
	if cfg.Refresh.Enabled {
		refresher, err = worker.NewRefreshWorker(&worker.RefreshWorkerConfig{
			Store:    domain,
			Interval: cfg.Refresh.Interval,
			Logger:   logger,
		})
		if err != nil {
			logger.WithError(err).Fatal("Failed to create refresh worker")
		}
		if err := refresher.Start(ctx); err != nil {
			logger.WithError(err).Fatal("Failed to start refresh worker")
		}
		serverOpts = append(serverOpts, api.WithRefreshStatus(refresher))
	}

	serverConfig := api.DefaultServerConfig(cfg.Server.Host, cfg.Server.Port)
	serverConfig.RequestsPerSec = cfg.RateLimit.RequestsPerSec
	serverConfig.Burst = cfg.RateLimit.Burst

	server := api.NewServer(serverConfig, domain, serverOpts...)

	// Start server in a goroutine
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	logger.WithFields(map[string]interface{}{
		"host": cfg.Server.Host,
		"port": cfg.Server.Port,
	}).Info("Server started successfully")

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), serverConfig.ShutdownTimeout)
	defer shutdownCancel()

	if refresher != nil {
		if err := refresher.Stop(shutdownCtx); err != nil {
			logger.WithError(err).Warn("Refresh worker did not stop cleanly")
		}
	}

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Fatal("Server forced to shutdown")
	}

	logger.Info("Server exited")
}
