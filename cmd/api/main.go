package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kursadbilgin/aggregation-engine/internal/config"
	"github.com/kursadbilgin/aggregation-engine/internal/handler"
	"github.com/kursadbilgin/aggregation-engine/internal/infra/postgresql"
	"github.com/kursadbilgin/aggregation-engine/internal/infra/postgresql/migrations"
	infraredis "github.com/kursadbilgin/aggregation-engine/internal/infra/redis"
	"github.com/kursadbilgin/aggregation-engine/internal/observability"
	"github.com/kursadbilgin/aggregation-engine/internal/repository"
	"github.com/kursadbilgin/aggregation-engine/internal/service"
	"github.com/kursadbilgin/aggregation-engine/internal/transport"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config", zap.Error(err))
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatal("failed to initialize logger", zap.Error(err))
	}
	defer logger.Sync() //nolint:errcheck

	db, err := postgresql.NewPostgres(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("postgres initialization failed", zap.Error(err))
	}

	if err := migrations.Migrate(db); err != nil {
		logger.Fatal("database migrations failed", zap.Error(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("postgres underlying db init failed", zap.Error(err))
	}
	defer sqlDB.Close()

	rdb, err := infraredis.NewRedis(cfg.RedisURL)
	if err != nil {
		logger.Fatal("redis initialization failed", zap.Error(err))
	}
	defer rdb.Close()

	limiter, err := infraredis.NewRedisRateLimiter(rdb, cfg.ScanRateLimitPerSec)
	if err != nil {
		logger.Fatal("rate limiter initialization failed", zap.Error(err))
	}

	metrics := observability.NewMetrics()

	batchService, err := service.NewBatchService(repository.NewGormBatchRepo(db), logger, metrics)
	if err != nil {
		logger.Fatal("batch service initialization failed", zap.Error(err))
	}
	productService, err := service.NewProductService(repository.NewGormProductRepo(db), logger, metrics)
	if err != nil {
		logger.Fatal("product service initialization failed", zap.Error(err))
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: transport.ErrorHandler(logger),
	})
	app.Use(observability.RequestIDMiddleware())
	app.Use(metrics.HTTPMiddleware())

	handler.RegisterHealthRoutes(app, sqlDB, rdb)
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	if err := handler.RegisterBatchRoutes(app, batchService); err != nil {
		logger.Fatal("batch routes registration failed", zap.Error(err))
	}
	if err := handler.RegisterProductRoutes(app, productService, limiter); err != nil {
		logger.Fatal("product routes registration failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("aggregation-engine api started", zap.Int("port", cfg.APIPort))
		if err := app.Listen(fmt.Sprintf(":%d", cfg.APIPort)); err != nil {
			return fmt.Errorf("api server stopped: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received")
		return app.ShutdownWithTimeout(shutdownTimeout)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("api terminated", zap.Error(err))
	}

	logger.Info("aggregation-engine api stopped")
}
