package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/delivery-router/internal/audit"
	"github.com/kursadbilgin/delivery-router/internal/config"
	"github.com/kursadbilgin/delivery-router/internal/domain"
	"github.com/kursadbilgin/delivery-router/internal/handler"
	"github.com/kursadbilgin/delivery-router/internal/infra/postgresql"
	"github.com/kursadbilgin/delivery-router/internal/infra/postgresql/migrations"
	infraredis "github.com/kursadbilgin/delivery-router/internal/infra/redis"
	"github.com/kursadbilgin/delivery-router/internal/observability"
	"github.com/kursadbilgin/delivery-router/internal/provider"
	"github.com/kursadbilgin/delivery-router/internal/repository"
	"github.com/kursadbilgin/delivery-router/internal/service"
	"github.com/kursadbilgin/delivery-router/internal/transport"
	"go.uber.org/zap"
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

	rateLimiter, err := infraredis.NewRedisRateLimiter(rdb, cfg.RateLimitPerSec)
	if err != nil {
		logger.Fatal("rate limiter initialization failed", zap.Error(err))
	}

	registry, err := buildRegistry(cfg)
	if err != nil {
		logger.Fatal("provider registry initialization failed", zap.Error(err))
	}

	tenantRepo := repository.NewGormTenantConfigRepo(db)
	logRepo := repository.NewGormDeliveryLogRepo(db)
	auditLogger := audit.NewLogger(logRepo, logger)

	metrics := observability.NewMetrics()
	sendTimeout := time.Duration(cfg.SendTimeoutSeconds) * time.Second

	routerService, err := service.NewRouterService(tenantRepo, registry, auditLogger, sendTimeout, logger)
	if err != nil {
		logger.Fatal("router service initialization failed", zap.Error(err))
	}
	routerService.SetMetrics(metrics)

	broadcastService, err := service.NewBroadcastService(routerService, rateLimiter, cfg.BroadcastConcurrency, logger)
	if err != nil {
		logger.Fatal("broadcast service initialization failed", zap.Error(err))
	}
	broadcastService.SetMetrics(metrics)

	verifyService, err := service.NewVerifyService(tenantRepo, registry, sendTimeout, logger)
	if err != nil {
		logger.Fatal("verify service initialization failed", zap.Error(err))
	}
	verifyService.SetMetrics(metrics)

	app := fiber.New(fiber.Config{
		AppName:      "delivery-router",
		ErrorHandler: transport.ErrorHandler(logger),
	})
	app.Use(metrics.HTTPMiddleware())

	handler.RegisterHealthRoutes(app, sqlDB, rdb)
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	if err := handler.RegisterDeliveryRoutes(app, routerService, broadcastService, verifyService, logRepo); err != nil {
		logger.Fatal("delivery routes registration failed", zap.Error(err))
	}
	if err := handler.RegisterTenantRoutes(app, tenantRepo); err != nil {
		logger.Fatal("tenant routes registration failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("delivery-router api started", zap.Int("port", cfg.APIPort))
		if err := app.Listen(fmt.Sprintf(":%d", cfg.APIPort)); err != nil {
			logger.Error("http server stopped", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Error("http server shutdown failed", zap.Error(err))
		os.Exit(1)
	}
}

func buildRegistry(cfg *config.Config) (*provider.Registry, error) {
	registry := provider.NewRegistry()

	metaGraph, err := provider.NewMetaGraphAdapter(cfg.MetaGraphBaseURL)
	if err != nil {
		return nil, err
	}
	if err := registry.Register(domain.ProviderMetaGraph, metaGraph); err != nil {
		return nil, err
	}

	techGateway, err := provider.NewTechGatewayAdapter()
	if err != nil {
		return nil, err
	}
	if err := registry.Register(domain.ProviderTechGateway, techGateway); err != nil {
		return nil, err
	}

	smsBridge, err := provider.NewSMSBridgeAdapter()
	if err != nil {
		return nil, err
	}
	if err := registry.Register(domain.ProviderSMSBridge, smsBridge); err != nil {
		return nil, err
	}

	if err := registry.Register(domain.ProviderDirectLink, provider.NewDirectLinkAdapter()); err != nil {
		return nil, err
	}

	return registry, nil
}
