package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/iplweb/dkp/internal/api"
	"github.com/iplweb/dkp/internal/bus"
	"github.com/iplweb/dkp/internal/comms"
	"github.com/iplweb/dkp/internal/config"
	"github.com/iplweb/dkp/internal/presence"
	"github.com/iplweb/dkp/internal/store"
	"github.com/iplweb/dkp/internal/ws"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	var logger zerolog.Logger
	if cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Logger()
	} else {
		logger = zerolog.New(os.Stdout).
			With().
			Timestamp().
			Logger()
	}

	ctx := context.Background()

	// Initialize persistence
	var db store.DataStore
	if cfg.DatabaseURL != "" {
		logger.Info().Msg("running database migrations...")
		if err := store.RunMigrations(ctx, cfg.DatabaseURL); err != nil {
			logger.Fatal().Err(err).Msg("migration failed")
		}
		logger.Info().Msg("migrations completed")

		pgStore, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres connection failed")
		}
		defer pgStore.Close()
		db = pgStore
		logger.Info().Msg("connected to PostgreSQL")
	} else {
		sqliteStore, err := store.NewSQLiteStore(ctx, cfg.SQLitePath)
		if err != nil {
			logger.Fatal().Err(err).Msg("sqlite open failed")
		}
		defer sqliteStore.Close()
		if err := sqliteStore.Seed(ctx); err != nil {
			logger.Fatal().Err(err).Msg("sqlite seed failed")
		}
		db = sqliteStore
		logger.Info().Msg("using SQLite store")
	}

	// Initialize presence store and broadcast bus
	var pres presence.Store
	var broadcastBus bus.Bus
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("invalid REDIS_URL")
		}
		client := redis.NewClient(opts)

		pres, err = presence.NewRedisStore(ctx, client, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connection failed")
		}
		defer pres.Close()

		broadcastBus, err = bus.NewRedisBus(ctx, client, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis bus setup failed")
		}
		defer broadcastBus.Close()
		logger.Info().Msg("connected to Redis")
	} else {
		pres = presence.NewLocalStore()
		broadcastBus = bus.NewLocalBus()
		logger.Warn().Msg("REDIS_URL not set, using in-process presence and bus")
	}

	// Presence counts from a previous process generation describe
	// sessions that no longer exist; clear them before accepting
	// connections. Failure to clear is logged, never fatal.
	if cfg.SkipPresenceReset {
		logger.Info().Msg("skipping startup presence reset")
	} else if err := pres.Reset(ctx); err != nil {
		logger.Warn().Err(err).Msg("unable to clear stale presence counts")
	}

	// Wire the message router and websocket handler
	commsRouter := comms.NewRouter(db, pres, broadcastBus, logger)
	wsHandler := ws.NewHandler(commsRouter, logger)

	// Create router
	router := api.NewRouter(logger, db, pres, wsHandler)

	// Create server
	srv := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: websocket sessions hold their connections
		// open indefinitely.
		IdleTimeout: 60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("env", cfg.Env).
			Msg("starting dkp comms server")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server...")

	// Graceful shutdown with 30 second timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("server stopped")
}
