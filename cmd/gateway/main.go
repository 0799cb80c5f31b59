// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/absmach/liveassist/auth"
	"github.com/absmach/liveassist/config"
	"github.com/absmach/liveassist/gateway"
	"github.com/absmach/liveassist/ownership"
	ownbadger "github.com/absmach/liveassist/ownership/badger"
	ownmemory "github.com/absmach/liveassist/ownership/memory"
	"github.com/absmach/liveassist/ratelimit"
	"github.com/absmach/liveassist/server/api"
	"github.com/absmach/liveassist/server/health"
	"github.com/absmach/liveassist/server/otel"
	"github.com/absmach/liveassist/server/websocket"
)

func main() {
	configFile := flag.String("config", "", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logLevel := slog.LevelInfo
	switch cfg.Log.Level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}

	var handler slog.Handler
	if cfg.Log.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)

	slog.Info("Starting realtime gateway", "version", "0.1.0")
	slog.Info("Configuration loaded",
		"ws_listener", cfg.Server.WSAddr,
		"ws_path", cfg.Server.WSPath,
		"api_enabled", cfg.Server.APIEnabled,
		"health_enabled", cfg.Server.HealthEnabled,
		"heartbeat_interval", cfg.Gateway.HeartbeatInterval,
		"ownership_store", cfg.Ownership.Type,
		"log_level", cfg.Log.Level)

	// OpenTelemetry
	instanceID := uuid.New().String()
	var otelShutdown func(context.Context) error
	if cfg.Server.MetricsEnabled {
		otelShutdown, err = otel.InitProvider(cfg.Server, instanceID)
		if err != nil {
			slog.Error("Failed to initialize OpenTelemetry", "error", err)
			os.Exit(1)
		}
	}

	// Ownership oracle: grant store behind a circuit breaker.
	var store ownership.Oracle
	var closeStore func() error
	switch cfg.Ownership.Type {
	case "memory":
		store = ownmemory.New()
		slog.Info("Using in-memory ownership store")
	case "badger":
		badgerStore, err := ownbadger.New(ownbadger.Config{
			Dir:        cfg.Ownership.BadgerDir,
			SyncWrites: cfg.Ownership.SyncWrites,
		})
		if err != nil {
			slog.Error("Failed to open ownership store", "error", err)
			os.Exit(1)
		}
		store = badgerStore
		closeStore = badgerStore.Close
		slog.Info("Using BadgerDB ownership store", "dir", cfg.Ownership.BadgerDir)
	}
	oracle := ownership.NewBreaker(store, cfg.Ownership.Breaker, logger)

	verifier := auth.NewTokenVerifier([]byte(cfg.Auth.TokenSecret))

	registry := gateway.NewRegistry(verifier, oracle, logger)
	router := gateway.NewRouter(registry, logger)
	connHandler := gateway.NewHandler(registry, gateway.HandlerConfig{
		AuthFailureLimit: cfg.Gateway.AuthFailureLimit,
	}, logger)

	if cfg.Server.MetricsEnabled {
		if err := otel.RegisterMetrics(registry.Stats()); err != nil {
			slog.Error("Failed to register metrics", "error", err)
			os.Exit(1)
		}
	}

	heartbeat := gateway.NewHeartbeat(registry, cfg.Gateway.HeartbeatInterval, logger)
	heartbeat.Start()

	var limiter *ratelimit.IPRateLimiter
	if cfg.RateLimit.Enabled {
		limiter = ratelimit.NewIPRateLimiter(cfg.RateLimit.Rate, cfg.RateLimit.Burst, cfg.RateLimit.CleanupInterval)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup

	wsServer := websocket.New(websocket.Config{
		Address:         cfg.Server.WSAddr,
		Path:            cfg.Server.WSPath,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		MaxFrameSize:    cfg.Server.MaxFrameSize,
		WriteTimeout:    cfg.Server.WriteTimeout,
	}, connHandler, limiter, logger)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := wsServer.Listen(ctx); err != nil {
			slog.Error("WebSocket server failed", "error", err)
			stop()
		}
	}()

	if cfg.Server.APIEnabled {
		apiServer := api.New(api.Config{
			Address:         cfg.Server.APIAddr,
			ShutdownTimeout: cfg.Server.ShutdownTimeout,
		}, router, logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := apiServer.Listen(ctx); err != nil {
				slog.Error("Ingest API server failed", "error", err)
				stop()
			}
		}()
	}

	if cfg.Server.HealthEnabled {
		healthServer := health.New(health.Config{
			Address:         cfg.Server.HealthAddr,
			ShutdownTimeout: cfg.Server.ShutdownTimeout,
		}, registry, logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := healthServer.Listen(ctx); err != nil {
				slog.Error("Health server failed", "error", err)
				stop()
			}
		}()
	}

	<-ctx.Done()
	slog.Info("Shutdown signal received")

	wg.Wait()
	heartbeat.Stop()
	if limiter != nil {
		limiter.Stop()
	}
	if closeStore != nil {
		if err := closeStore(); err != nil {
			slog.Error("Failed to close ownership store", "error", err)
		}
	}
	if otelShutdown != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Error("OpenTelemetry shutdown failed", "error", err)
		}
	}

	slog.Info("Gateway stopped")
}
