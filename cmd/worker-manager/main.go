// cmd/worker-manager/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"handoff-workers/internal/api"
	"handoff-workers/internal/assignment"
	"handoff-workers/internal/common/camunda"
	"handoff-workers/internal/common/config"
	"handoff-workers/internal/common/database"
	"handoff-workers/internal/common/logger"
	"handoff-workers/internal/common/observability"
	"handoff-workers/internal/recommendation"
	"handoff-workers/pkg/registry"

	ir "handoff-workers/internal/workers/assignment/index-recommendations"
	lac "handoff-workers/internal/workers/assignment/load-assignment-context"
	ra "handoff-workers/internal/workers/assignment/recommend-assignments"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.NewWithOutput(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...",
		zap.String("service", cfg.App.Name),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	ctx := context.Background()

	obs, err := observability.New(ctx, observability.Options{
		ServiceName:   cfg.Observability.ServiceName,
		TraceEndpoint: cfg.Observability.JaegerEndpoint,
		SampleRatio:   cfg.Observability.SampleRatio,
	})
	if err != nil {
		zapLog.Fatal("observability setup failed", zap.Error(err))
	}

	// ==========================
	// External connections
	// ==========================

	var zeebe *camunda.Client
	err = retryWithBackoff(func() error {
		var err error
		zeebe, err = camunda.NewClient(ctx, camunda.ClientConfigFrom(cfg.Camunda))
		return err
	}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zapLog.Info("Zeebe client connected successfully", zap.String("gateway", cfg.Camunda.BrokerAddress))

	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		if err := pg.Ping(ctx); err != nil {
			pg.Close()
			return err
		}
		return nil
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	zapLog.Info("PostgreSQL connected successfully")

	var es *database.ElasticsearchClient
	err = retryWithBackoff(func() error {
		var err error
		es, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return err
		}
		return es.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
	if err != nil {
		zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
	}
	zapLog.Info("Elasticsearch connected successfully", zap.String("url", cfg.Database.Elasticsearch.GetURL()))

	// Redis only backs the rule cache, so the loader runs without it when it is unreachable.
	var rdb *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		rdb, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		if err := rdb.Ping(ctx); err != nil {
			rdb.Close()
			return err
		}
		return nil
	}, 5, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Warn("redis unavailable, rule cache disabled", zap.Error(err))
		rdb = nil
	} else {
		zapLog.Info("Redis connected successfully")
	}

	reg, err := registry.LoadRegistry(cfg.App.RegistryPath)
	if err != nil {
		zapLog.Warn("activity registry not loaded", zap.String("path", cfg.App.RegistryPath), zap.Error(err))
		reg = &registry.ActivityRegistry{}
	}

	// ==========================
	// Engine and workers
	// ==========================

	engineOpts := []assignment.Option{
		assignment.WithTopN(cfg.Assignment.TopN),
		assignment.WithParallelism(cfg.Assignment.Parallelism),
	}
	if !cfg.Assignment.Weights.IsZero() {
		w := cfg.Assignment.Weights
		engineOpts = append(engineOpts, assignment.WithWeights(assignment.Weights{
			Capacity:       w.Capacity,
			ARRMatch:       w.ARRMatch,
			IndustryMatch:  w.IndustryMatch,
			GeographyMatch: w.GeographyMatch,
			HealthScore:    w.HealthScore,
		}))
	}
	service := recommendation.NewService(assignment.NewEngine(engineOpts...), obs, log)

	workers := camunda.NewWorkerSet(zeebe.Zeebe(), log)

	{
		wcfg := config.GetWorkerConfig(cfg, lac.TaskType)
		lacCfg := lac.LoadConfig()
		lacCfg.Timeout = config.GetDuration(wcfg.Timeout)
		lacCfg.CacheTTL = cfg.Assignment.RulesCacheDuration()

		var cache *redis.Client
		if rdb != nil {
			cache = rdb.Client
		}
		handler := lac.NewHandler(lacCfg, pg.DB, cache, obs, log)
		workers.Start(lac.TaskType, wcfg, handler.Handle)
	}

	{
		wcfg := config.GetWorkerConfig(cfg, ra.TaskType)
		raCfg := ra.LoadConfig()
		raCfg.Timeout = config.GetDuration(wcfg.Timeout)

		handler := ra.NewHandler(raCfg, service, obs, log)
		workers.Start(ra.TaskType, wcfg, handler.Handle)
	}

	{
		wcfg := config.GetWorkerConfig(cfg, ir.TaskType)
		irCfg := ir.LoadConfig()
		irCfg.Timeout = config.GetDuration(wcfg.Timeout)
		irCfg.Index = cfg.Assignment.RecommendationIndex

		handler := ir.NewHandler(irCfg, es, obs, log)
		workers.Start(ir.TaskType, wcfg, handler.Handle)
	}

	if missing := reg.Missing(workers.TaskTypes()); len(missing) > 0 {
		zapLog.Warn("workers without an activity registry entry", zap.Strings("taskTypes", missing))
	}

	// ==========================
	// HTTP API
	// ==========================

	checkers := []api.Checker{zeebe, pg, es}
	if rdb != nil {
		checkers = append(checkers, rdb)
	}

	handler := api.NewHandler(api.Options{
		Service:        service,
		Registry:       reg,
		Checkers:       checkers,
		Logger:         log,
		MaxBodyBytes:   cfg.HTTP.MaxBodyBytes,
		RequestTimeout: config.GetDuration(cfg.HTTP.WriteTimeout),
		ServiceName:    cfg.App.Name,
		Version:        cfg.App.Version,
	})

	srv := &http.Server{
		Addr:         cfg.HTTP.Addr(),
		Handler:      api.NewRouter(handler, cfg.HTTP.CORSAllowedOrigins),
		ReadTimeout:  config.GetDuration(cfg.HTTP.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.HTTP.WriteTimeout),
	}

	go func() {
		zapLog.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("HTTP server failed", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	workers.Close()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error shutting down HTTP server", zap.Error(err))
	}
	if err := zeebe.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}
	if err := obs.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error flushing telemetry", zap.Error(err))
	}
	if rdb != nil {
		rdb.Close()
	}
	pg.Close()

	zapLog.Info("Worker manager stopped gracefully")
}
