package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/learnsphere/service-payment/internal/adapter"
	"github.com/learnsphere/service-payment/internal/application"
	"github.com/learnsphere/service-payment/internal/config"
	billingEvents "github.com/learnsphere/service-payment/internal/events"
	"github.com/learnsphere/service-payment/internal/handler"
	"github.com/learnsphere/service-payment/internal/platform/auth"
	"github.com/learnsphere/service-payment/internal/platform/database"
	"github.com/learnsphere/service-payment/internal/platform/health"
	"github.com/learnsphere/service-payment/internal/platform/kafka"
	"github.com/learnsphere/service-payment/internal/platform/logger"
	"github.com/learnsphere/service-payment/internal/platform/middleware"
	"github.com/learnsphere/service-payment/internal/repository"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	// Initialize logger
	zapLogger, err := logger.NewNamed(cfg.AppEnv, "service-payment")
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("starting service-payment",
		zap.String("port", cfg.Port),
	)

	// Connect to database
	db, err := database.Connect(cfg.DB.DSN(), zapLogger)
	if err != nil {
		zapLogger.Fatal("failed to connect to database", zap.Error(err))
	}

	// Run database migrations
	if cfg.AppEnv == "development" {
		if err := db.AutoMigrate(
			&repository.PaymentModel{},
			&repository.TransactionModel{},
			&repository.PromoModel{},
			&repository.RedemptionModel{},
			&repository.SubscriptionModel{},
		); err != nil {
			zapLogger.Fatal("failed to auto-migrate", zap.Error(err))
		}
		zapLogger.Info("database migration completed (dev auto-migrate)")
	} else {
		if err := database.RunMigrations(cfg.DB.URL(), "migrations", zapLogger); err != nil {
			zapLogger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	// Initialize JWT manager
	jwtManager := auth.NewJWTManager(
		cfg.JWT.Secret,
		cfg.JWT.AccessExpiry,
		cfg.JWT.RefreshExpiry,
	)

	// Initialize Kafka producer and event publisher
	kafkaProducer := kafka.NewProducer(cfg.Kafka.Brokers, zapLogger)
	defer kafkaProducer.Close()
	publisher := billingEvents.NewPublisher(kafkaProducer, zapLogger)

	// Initialize gateway adapters
	paymeeAdapter := adapter.NewPaymeeAdapter(adapter.PaymeeConfig{
		APIBaseURL: cfg.Paymee.APIBaseURL,
		APIKey:     cfg.Paymee.APIKey,
		ReturnURL:  cfg.Paymee.ReturnURL,
		CancelURL:  cfg.Paymee.CancelURL,
	}, zapLogger)

	stripeAdapter := adapter.NewStripeAdapter(adapter.StripeConfig{
		APIBaseURL:    cfg.Stripe.APIBaseURL,
		SecretKey:     cfg.Stripe.SecretKey,
		WebhookSecret: cfg.Stripe.WebhookSecret,
		SuccessURL:    cfg.Stripe.SuccessURL,
		CancelURL:     cfg.Stripe.CancelURL,
		USDToTNDRate:  cfg.Stripe.USDToTNDRate,
	}, zapLogger)

	gatewayRegistry := adapter.NewRegistry(paymeeAdapter, stripeAdapter)

	// Initialize repositories
	paymentRepo := repository.NewPaymentRepository(db)
	txnRepo := repository.NewTransactionRepository(db)
	promoRepo := repository.NewPromoRepository(db)
	subRepo := repository.NewSubscriptionRepository(db)

	// Initialize application services
	promoService := application.NewPromoService(promoRepo, publisher, zapLogger)
	checkoutService := application.NewCheckoutService(
		paymentRepo, txnRepo, subRepo, promoService, gatewayRegistry, publisher, zapLogger,
	)
	subService := application.NewSubscriptionService(subRepo, checkoutService, zapLogger)

	// Initialize Kafka consumer for billing commands
	commandConsumer := billingEvents.NewBillingCommandConsumer(
		cfg.Kafka.Brokers,
		cfg.Kafka.GroupID,
		checkoutService,
		zapLogger,
	)
	defer commandConsumer.Close()

	// Start Kafka consumer in a goroutine
	consumerCtx, consumerCancel := context.WithCancel(context.Background())
	defer consumerCancel()

	go func() {
		zapLogger.Info("starting billing command consumer")
		if err := commandConsumer.Start(consumerCtx); err != nil {
			if consumerCtx.Err() == nil {
				zapLogger.Error("billing command consumer failed", zap.Error(err))
			}
		}
	}()

	// Initialize HTTP handlers
	paymentHandler := handler.NewPaymentHandler(checkoutService)
	promoHandler := handler.NewPromoHandler(promoService)
	subHandler := handler.NewSubscriptionHandler(subService)
	webhookHandler := handler.NewWebhookHandler(checkoutService, zapLogger)
	adminHandler := handler.NewAdminHandler(checkoutService, promoService)

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	// Apply global middleware
	router.Use(middleware.RecoveryMiddleware(zapLogger))
	router.Use(middleware.LoggerMiddleware(zapLogger))
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.SecurityHeadersMiddleware())

	// Register health check routes
	healthHandler := health.NewHandler(db, "service-payment")
	healthHandler.RegisterRoutes(router)

	// Register API routes
	apiV1 := router.Group("/api/v1")
	paymentHandler.RegisterRoutes(apiV1, jwtManager)
	promoHandler.RegisterRoutes(apiV1, jwtManager)
	subHandler.RegisterRoutes(apiV1, jwtManager)
	webhookHandler.RegisterRoutes(apiV1)
	adminHandler.RegisterRoutes(apiV1, jwtManager)

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		zapLogger.Info("HTTP server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("shutting down service-payment...")

	// Cancel Kafka consumer
	consumerCancel()

	// Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("server forced to shutdown", zap.Error(err))
	}

	zapLogger.Info("service-payment stopped")
}
