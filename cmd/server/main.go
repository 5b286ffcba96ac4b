package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/serviceloop/service-booking/internal/application"
	"github.com/serviceloop/service-booking/internal/config"
	bookingDomain "github.com/serviceloop/service-booking/internal/domain/booking"
	"github.com/serviceloop/service-booking/internal/events"
	"github.com/serviceloop/service-booking/internal/handler"
	"github.com/serviceloop/service-booking/internal/platform/auth"
	"github.com/serviceloop/service-booking/internal/platform/database"
	"github.com/serviceloop/service-booking/internal/platform/health"
	"github.com/serviceloop/service-booking/internal/platform/kafka"
	"github.com/serviceloop/service-booking/internal/platform/logger"
	"github.com/serviceloop/service-booking/internal/platform/middleware"
	"github.com/serviceloop/service-booking/internal/repository"
)

const serviceName = "service-booking"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := logger.NewNamed(cfg.AppEnv, serviceName)
	if err != nil {
		panic(err)
	}
	defer log.Sync() //nolint:errcheck

	if err := run(cfg, log); err != nil {
		log.Fatal("service exited with error", zap.Error(err))
	}
}

func run(cfg *config.ServiceConfig, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(cfg.DB, log)
	if err != nil {
		return err
	}

	if cfg.AppEnv == "development" {
		if err := db.AutoMigrate(
			&repository.BookingModel{},
			&repository.ModificationProposalModel{},
			&repository.ProviderModel{},
			&repository.ServicePackageModel{},
			&repository.PortfolioItemModel{},
		); err != nil {
			return err
		}
		if err := repository.SeedServicePackages(ctx, db); err != nil {
			return err
		}
	} else {
		if err := database.RunMigrations(cfg.DB.DatabaseURL(), "migrations", log); err != nil {
			return err
		}
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
		DB:   cfg.RedisDB,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Warn("redis unreachable, provider cache disabled", zap.Error(err))
		redisClient = nil
	}

	producer := kafka.NewProducer(cfg.KafkaBrokers, log)
	defer producer.Close()
	publisher := events.NewPublisher(producer, serviceName)

	jwtManager := auth.NewJWTManager(cfg.JWTSecret, 15*time.Minute, 7*24*time.Hour)

	bookingRepo := repository.NewGormBookingRepository(db)
	providerRepo := repository.NewGormProviderRepository(db)
	packageRepo := repository.NewGormPackageRepository(db)
	portfolioRepo := repository.NewGormPortfolioRepository(db)

	catalogService := application.NewCatalogService(providerRepo, packageRepo, portfolioRepo, redisClient, log)
	bookingService := application.NewBookingService(
		bookingRepo,
		catalogService,
		bookingDomain.NewFlatRatePricingStrategy(),
		publisher,
		log,
	)

	catalogConsumer := events.NewCatalogEventConsumer(cfg.KafkaBrokers, serviceName, catalogService, log)
	defer catalogConsumer.Close()
	go func() {
		if err := catalogConsumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("catalog consumer stopped", zap.Error(err))
		}
	}()

	if cfg.AppEnv != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(
		middleware.RecoveryMiddleware(log),
		middleware.RequestIDMiddleware(),
		middleware.LoggerMiddleware(log),
		middleware.CORSMiddleware(),
		middleware.SecurityHeadersMiddleware(),
	)

	health.NewHandler(db, serviceName).RegisterRoutes(router)

	api := router.Group("/api/v1")

	catalogHandler := handler.NewCatalogHandler(catalogService)
	catalogHandler.RegisterPublicRoutes(api)

	authenticated := api.Group("", middleware.AuthMiddleware(jwtManager))
	handler.NewBookingHandler(bookingService).RegisterRoutes(authenticated)
	handler.NewAdminHandler(bookingService).RegisterRoutes(authenticated)
	catalogHandler.RegisterProviderRoutes(authenticated)

	srv := &http.Server{
		Addr:              cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
