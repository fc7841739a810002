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

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"hdrEnhancer/api/auth"
	"hdrEnhancer/api/cache"
	"hdrEnhancer/api/config"
	"hdrEnhancer/api/database"
	"hdrEnhancer/api/handlers"
	"hdrEnhancer/api/kafka"
	"hdrEnhancer/api/middleware"
	"hdrEnhancer/api/repository"
	"hdrEnhancer/api/service"
	"hdrEnhancer/api/validation"
	"hdrEnhancer/pkg/logging"
	"hdrEnhancer/pkg/storage"
)

const shutdownTimeout = 15 * time.Second

func runServer(parent context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("API Service starting",
		zap.String("port", cfg.Port),
		zap.String("env", cfg.Env),
		zap.String("storage_backend", cfg.Storage.Backend),
	)

	db, err := database.ConnectPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()

	if cfg.MigrateOnStart {
		if err := database.Migrate(ctx, db, logger, "up"); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	redisCache, err := database.ConnectCache(ctx, cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer redisCache.Close()

	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}

	producer, err := kafka.NewProducer(cfg.KafkaBrokers)
	if err != nil {
		return fmt.Errorf("create kafka producer: %w", err)
	}
	defer producer.Close()

	authenticator, err := newAuthenticator(cfg.Auth)
	if err != nil {
		return err
	}
	if cfg.Auth.Type == "none" {
		logger.Warn("Authentication disabled, every request runs as the dev user", zap.String("user", cfg.Auth.DevUser))
	}

	taskRepo := repository.NewPostgresRepo(db)
	profileRepo := repository.NewPostgresProfileRepo(db)

	taskService := service.NewTaskService(
		taskRepo,
		profileRepo,
		cache.NewStatusCache(redisCache),
		cache.NewRevoker(redisCache),
		producer,
		store,
		logger,
		service.Options{
			Topic:           cfg.KafkaTopic,
			EnforceQuota:    cfg.EnforceQuota,
			HistoryMaxLimit: cfg.HistoryMaxLimit,
		},
	)
	profileService := service.NewProfileService(profileRepo, taskRepo, logger)

	taskHandler := handlers.NewTaskHandler(taskService, logger, validation.Limits{
		MaxFileSize: cfg.MaxFileSize,
		MaxPixels:   cfg.MaxImagePixels,
	})
	profileHandler := handlers.NewProfileHandler(profileService, logger)

	metrics := middleware.NewMetrics("api")
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	registry.MustRegister(metrics.Collectors()...)
	registry.MustRegister(service.Collectors()...)

	r := chi.NewRouter()
	r.Use(middleware.TraceID)
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logging(logger))
	r.Use(metrics.Handler)

	r.NotFound(handlers.NotFound)
	r.Get("/health", handlers.Health(map[string]handlers.Pinger{
		"postgres": db,
		"redis":    redisCache,
	}))
	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(authenticator, cfg.Auth.RequiredGroup, logger))
		handlers.Mount(r, taskHandler, profileHandler)
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server started", zap.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("Shutting down API service")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	logger.Info("API service stopped")
	return nil
}

func newAuthenticator(cfg config.AuthConfig) (auth.Authenticator, error) {
	switch cfg.Type {
	case "jwt":
		return auth.NewJWTAuthenticator(cfg.JWTSecret), nil
	case "none":
		return auth.NewNoneAuthenticator(cfg.DevUser), nil
	default:
		return nil, fmt.Errorf("unknown auth type %q", cfg.Type)
	}
}
