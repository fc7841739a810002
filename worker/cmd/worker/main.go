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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"hdrEnhancer/pkg/logging"
	"hdrEnhancer/pkg/storage"
	"hdrEnhancer/worker/cache"
	"hdrEnhancer/worker/config"
	"hdrEnhancer/worker/converter"
	"hdrEnhancer/worker/enhancer"
	"hdrEnhancer/worker/kafka"
	"hdrEnhancer/worker/pool"
	"hdrEnhancer/worker/repository"
	"hdrEnhancer/worker/service"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Worker Service starting",
		zap.Strings("brokers", cfg.KafkaBrokers),
		zap.String("topic", cfg.KafkaTopic),
		zap.String("group", cfg.KafkaGroupID),
		zap.Int("workers", cfg.WorkerCount),
		zap.Duration("job_timeout", cfg.JobTimeout),
	)

	db, err := repository.Connect(ctx, cfg.DatabaseURL, int32(cfg.WorkerCount*3))
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()

	redisClient, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer redisClient.Close()

	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}

	engine := enhancer.NewToneMapEngine(cfg.ModelWeights, logger)
	defer engine.Close()

	processor := service.NewProcessor(
		repository.NewPostgresRepo(db),
		cache.NewCoordinator(redisClient),
		store,
		converter.NewConverter(logger, cfg.MaxPixels),
		engine,
		logger,
		cfg.JobTimeout,
	)

	workers := pool.NewWorkerPool(cfg.WorkerCount)
	consumer, err := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaGroupID, workers, cfg.RetryBackoff, logger)
	if err != nil {
		return fmt.Errorf("create kafka consumer: %w", err)
	}

	metricsServer := newMetricsServer(cfg.MetricsAddr)
	go func() {
		logger.Info("Metrics server started", zap.String("address", metricsServer.Addr))
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", zap.Error(err))
		}
	}()

	consumeErr := consumer.Consume(ctx, cfg.KafkaTopic, processor.Process)

	logger.Info("Shutting down worker", zap.Int("in_flight", workers.InFlight()))
	workers.Wait()

	if err := consumer.Close(); err != nil {
		logger.Warn("Failed to close consumer", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	metricsServer.Shutdown(shutdownCtx)

	if consumeErr != nil {
		return fmt.Errorf("consume: %w", consumeErr)
	}

	logger.Info("Worker stopped")
	return nil
}

func newMetricsServer(addr string) *http.Server {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	registry.MustRegister(service.Collectors()...)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
