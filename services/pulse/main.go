// Copyright (C) 2025 ChainAcademy (engineering@chainacademy.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"

	"github.com/chainacademy/pulse/pkg/logging"
	"github.com/chainacademy/pulse/services/pulse/activity"
	"github.com/chainacademy/pulse/services/pulse/analytics"
	"github.com/chainacademy/pulse/services/pulse/cache"
	"github.com/chainacademy/pulse/services/pulse/config"
	"github.com/chainacademy/pulse/services/pulse/handlers"
	"github.com/chainacademy/pulse/services/pulse/kv"
	"github.com/chainacademy/pulse/services/pulse/leaderboard"
	"github.com/chainacademy/pulse/services/pulse/observability"
	"github.com/chainacademy/pulse/services/pulse/presence"
	"github.com/chainacademy/pulse/services/pulse/ratelimit"
	"github.com/chainacademy/pulse/services/pulse/routes"
	"github.com/chainacademy/pulse/services/pulse/session"

	// --- OpenTelemetry imports ---
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func initTracer() (func(context.Context), error) {
	ctx := context.Background()

	otelEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otelEndpoint == "" {
		otelEndpoint = "otel-collector:4317"
	}
	conn, err := grpc.NewClient(otelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("pulse-service")))
	if err != nil {
		return nil, err
	}
	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))
	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.
		TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}, nil
}

func main() {
	logger, _ := logging.New(logging.Config{
		Level:   slog.LevelInfo,
		Service: "pulse",
		LogDir:  os.Getenv("PULSE_LOG_DIR"),
	})
	defer logger.Close()
	slog.SetDefault(logger.Logger)

	cfg, err := config.Load(os.Getenv("PULSE_CONFIG"))
	if err != nil {
		log.Fatalf("failed to load the configuration: %v", err)
	}

	// --- Init the tracer ---
	cleanup, err := initTracer()
	if err != nil {
		log.Fatalf("failed to setup the OTLP tracer: %v", err)
	}
	defer cleanup(context.Background())

	metrics := observability.InitMetrics()

	store := kv.NewRedis(context.Background(), kv.Config{
		Addr:     cfg.Store.Addr,
		Password: cfg.Store.Password,
		DB:       cfg.Store.DB,
	}, logger.Logger)
	defer store.Close()

	// The primary database is optional; without it leaderboard backfill
	// and user existence checks are skipped.
	var boardSource leaderboard.Source
	var users handlers.UserDirectory
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("failed to open the database: %v", err)
		}
		defer db.Close()
		boardSource = leaderboard.NewSQLSource(db)
		users = handlers.NewSQLUserDirectory(db)
	} else {
		slog.Info("PULSE_DATABASE_URL not set, running store-only")
	}

	cacheMgr := cache.New(store, logger.Logger, cache.Options{
		MaxConcurrentRefreshes: cfg.MaxConcurrentRefreshes,
		Metrics:                metrics,
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cacheMgr.Start(ctx)

	h := &handlers.Handlers{
		Logger:      logger.Logger,
		Store:       store,
		Cache:       cacheMgr,
		Presence:    presence.New(store, logger.Logger, metrics, cfg.PresenceTTL.Std()),
		Leaderboard: leaderboard.New(store, boardSource, logger.Logger, metrics),
		Analytics:   analytics.New(store, logger.Logger, metrics),
		Notifier:    activity.NewNotifier(store, logger.Logger, metrics),
		ActivityLog: activity.NewLog(store, logger.Logger, metrics),
		Users:       users,
	}

	router := gin.Default()
	router.Use(otelgin.Middleware("pulse-service"))

	routes.SetupRoutes(router, h, routes.Options{
		Sessions:        session.NewStore(store, logger.Logger, metrics, cfg.SessionTTL.Std()),
		Limiter:         ratelimit.New(store, logger.Logger, metrics),
		Metrics:         metrics,
		RateLimitMax:    cfg.RateLimit.Max,
		RateLimitWindow: cfg.RateLimit.Window.Std(),
	})

	slog.Info("starting the pulse server", "port", cfg.Port)
	if err := router.Run(fmt.Sprintf(":%d", cfg.Port)); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
