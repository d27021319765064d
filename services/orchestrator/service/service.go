// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package service assembles the scan orchestration service: resource
// pool, decision engine, execution engine, predictor, optimizer, alert
// evaluator, persistence, ingestion, observability, and the HTTP API.
//
// # Description
//
// Every component is constructed explicitly here and injected into the
// ones that need it; nothing is created at import time. The process that
// hosts the service owns its lifecycle.
//
// # Thread Safety
//
// Thread-safe after construction. Run() blocks and should only be called
// once per instance.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/AleutianAI/AleutianGovern/services/orchestrator"
	"github.com/AleutianAI/AleutianGovern/services/orchestrator/alerts"
	"github.com/AleutianAI/AleutianGovern/services/orchestrator/config"
	"github.com/AleutianAI/AleutianGovern/services/orchestrator/dag"
	"github.com/AleutianAI/AleutianGovern/services/orchestrator/datatypes"
	"github.com/AleutianAI/AleutianGovern/services/orchestrator/decision"
	"github.com/AleutianAI/AleutianGovern/services/orchestrator/handlers"
	"github.com/AleutianAI/AleutianGovern/services/orchestrator/ingest"
	"github.com/AleutianAI/AleutianGovern/services/orchestrator/observability"
	"github.com/AleutianAI/AleutianGovern/services/orchestrator/optimizer"
	"github.com/AleutianAI/AleutianGovern/services/orchestrator/predictor"
	"github.com/AleutianAI/AleutianGovern/services/orchestrator/resourcepool"
	"github.com/AleutianAI/AleutianGovern/services/orchestrator/routes"
	"github.com/AleutianAI/AleutianGovern/services/orchestrator/store"
)

// Service is the orchestration service lifecycle contract.
type Service interface {
	// Run starts the HTTP server and blocks until shutdown or error.
	Run() error

	// Router returns the underlying gin engine for testing.
	Router() *gin.Engine

	// WatchConfig hot-reloads alert thresholds from the config file until
	// ctx is cancelled. Intended to run in its own goroutine.
	WatchConfig(ctx context.Context, path string) error

	// Close releases persistent resources (store, tracer).
	Close()
}

// Options tune service construction beyond the file configuration.
type Options struct {
	// Confirm is the supervised-mode confirmation hook.
	Confirm orchestrator.ConfirmFunc

	// EnableMetrics registers Prometheus metrics against the global
	// registry. Disable in tests that build multiple services.
	EnableMetrics bool

	// EnableTracing connects the OTLP exporter. Requires a reachable
	// collector at the configured endpoint.
	EnableTracing bool

	// GinMode overrides the gin framework mode ("debug", "release",
	// "test").
	GinMode string
}

type service struct {
	config config.Config
	router *gin.Engine

	pool         *resourcepool.Pool
	orchestrator *orchestrator.Orchestrator
	store        *store.Store
	hub          *handlers.EventHub
	evaluator    *alerts.Evaluator
	logger       *slog.Logger

	tracerCleanup func(context.Context)
}

// New builds the full service from configuration.
//
// # Description
//
// Construction order: tracing, metrics, store, pool, engines, optimizer,
// alert evaluator, ingestor, orchestrator, router. The step runner is the
// scan connector; until real connectors are registered a no-op runner
// that sleeps per step type stands in so the control plane is exercisable
// end to end.
func New(cfg config.Config, opts Options, runner dag.StepRunner, logger *slog.Logger) (Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &service{config: cfg, logger: logger}

	if opts.EnableTracing {
		cleanup, err := initTracer(cfg.OTLPEndpoint)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize tracer: %w", err)
		}
		s.tracerCleanup = cleanup
	}

	var metrics *observability.OrchestrationMetrics
	if opts.EnableMetrics {
		if observability.DefaultMetrics == nil {
			observability.InitMetrics()
		}
		metrics = observability.DefaultMetrics
		logger.Info("initialized Prometheus metrics for orchestration")
	}

	st, err := store.Open(store.Config{Path: cfg.StorePath, InMemory: cfg.StorePath == ""}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	s.store = st

	s.pool = resourcepool.New(datatypes.ResourceRequirement{
		CPUCores:    cfg.Pool.CPUCores,
		MemoryMB:    cfg.Pool.MemoryMB,
		NetworkMbps: cfg.Pool.NetworkMbps,
		StorageGB:   cfg.Pool.StorageGB,
	}, logger)

	s.hub = handlers.NewEventHub()
	engine := dag.NewEngine(dag.Config{
		MaxParallelism:     cfg.Engine.MaxParallelism,
		DefaultTimeout:     cfg.Engine.DefaultTimeout,
		DefaultMaxAttempts: cfg.Engine.DefaultMaxAttempts,
		SampleInterval:     cfg.Engine.SampleInterval,
		CancelGrace:        cfg.Engine.CancelGrace,
		OnEvent:            s.hub.Publish,
	}, dag.NewRuntimeSampler(), logger)

	pred := predictor.NewLinearPredictor(logger)
	opt := optimizer.New(optimizer.Config{
		HistoryCapacity: cfg.Optimizer.HistoryCapacity,
		MinSamples:      cfg.Optimizer.MinSamples,
		Window:          cfg.Optimizer.Window,
		SafetyThreshold: cfg.Optimizer.SafetyThreshold,
	}, nil, logger)

	evaluator := alerts.New(alerts.Thresholds(cfg.AlertThresholds), logger)
	s.evaluator = evaluator

	var sink ingest.SnapshotSink
	if cfg.Influx.URL != "" {
		sink = ingest.NewInfluxSink(cfg.Influx.URL, cfg.Influx.Token, cfg.Influx.Org, cfg.Influx.Bucket)
		logger.Info("snapshot sink: influxdb", "url", cfg.Influx.URL, "bucket", cfg.Influx.Bucket)
	}
	ingestor := ingest.New(evaluator, opt, sink, cfg.IngestRatePerSecond, metrics, logger)

	if runner == nil {
		runner = noopRunner(logger)
	}

	s.orchestrator = orchestrator.New(orchestrator.Config{
		DefaultMode:          datatypes.Mode(cfg.DefaultMode),
		MaxParallelWorkflows: cfg.MaxParallelWorkflows,
		MaxRetainedPlans:     cfg.MaxRetainedPlans,
		Confirm:              opts.Confirm,
		Metrics:              metrics,
	}, s.pool, decision.New(logger), engine, pred, opt, runner, logger)

	if opts.GinMode != "" {
		gin.SetMode(opts.GinMode)
	}
	s.router = gin.Default()
	s.router.Use(otelgin.Middleware("govern-service"))
	routes.SetupRoutes(s.router, routes.Deps{
		Orchestrator: s.orchestrator,
		Store:        st,
		Ingestor:     ingestor,
		Alerts:       evaluator,
		Optimizer:    opt,
		Predictor:    pred,
		Events:       s.hub,
	})

	return s, nil
}

// Run starts the HTTP server and blocks until it stops.
func (s *service) Run() error {
	defer s.Close()
	slog.Info("starting govern server", "addr", s.config.ListenAddr)
	return s.router.Run(s.config.ListenAddr)
}

// Router returns the configured gin engine.
func (s *service) Router() *gin.Engine {
	return s.router
}

// WatchConfig hot-reloads alert thresholds while ctx lives.
func (s *service) WatchConfig(ctx context.Context, path string) error {
	watcher := config.NewWatcher(path, func(thresholds map[string]float64) {
		s.evaluator.SetThresholds(alerts.Thresholds(thresholds))
	}, s.logger)
	return watcher.Watch(ctx)
}

// Close releases the store and flushes the tracer.
func (s *service) Close() {
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			slog.Warn("store close failed", "error", err)
		}
	}
	if s.tracerCleanup != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.tracerCleanup(ctx)
	}
}

// noopRunner simulates step execution with a short, type-dependent delay.
// It keeps the control plane runnable before real scan connectors exist.
func noopRunner(logger *slog.Logger) dag.StepRunner {
	return dag.StepRunnerFunc(func(ctx context.Context, wf datatypes.Workflow, step datatypes.Step) error {
		delay := 10 * time.Millisecond
		if step.Type == datatypes.StepScan {
			delay = 50 * time.Millisecond
		}
		select {
		case <-time.After(delay):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
}

// initTracer sets up the OTLP trace exporter.
func initTracer(endpoint string) (func(context.Context), error) {
	ctx := context.Background()

	conn, err := grpc.NewClient(endpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection: %w", err)
	}

	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("govern-service")))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))

	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		if err := traceProvider.Shutdown(ctx); err != nil {
			slog.Warn("tracer shutdown failed", "error", err)
		}
	}, nil
}
