package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"storefront/internal/app"
	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/events"
	"storefront/internal/logging"
	"storefront/internal/payment"
	"storefront/internal/payment/oxpay"
	"storefront/internal/repositories"
	"storefront/internal/services"
	"storefront/pkg/kafka"
	"storefront/pkg/rabbitmq"
	"storefront/pkg/redisx"
)

func main() {
	// --- Configuration ---
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Database ---
	db, err := database.Open(cfg.Database)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	if err := database.Migrate(db); err != nil {
		logger.Fatal("failed to migrate database", zap.Error(err))
	}
	txm, err := database.NewTxManager(db, cfg.Database.Isolation, cfg.Database.MaxRetries)
	if err != nil {
		logger.Fatal("invalid transaction settings", zap.Error(err))
	}

	checks := map[string]app.HealthCheck{"database": pingDB(db)}

	// --- Redis (optional) ---
	var (
		dedup services.Deduper
		cache services.StatusCache
	)
	if cfg.Redis.Addr != "" {
		rdb, err := redisx.New(ctx, cfg.Redis.Addr)
		if err != nil {
			logger.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer rdb.Close()
		dedup = redisx.NewDedupStore(rdb, cfg.Redis.DedupTTL)
		cache = redisx.NewStatusCache(rdb, cfg.Redis.CacheTTL)
		checks["redis"] = func() error {
			pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return rdb.Ping(pingCtx).Err()
		}
	}

	// --- Events ---
	var publisher events.Publisher = events.NopPublisher{}
	switch cfg.Events.Driver {
	case "rabbitmq":
		mqClient, err := rabbitmq.NewClient(rabbitmq.Config{URL: cfg.Events.RabbitMQURL}, logger)
		if err != nil {
			logger.Fatal("failed to initialize RabbitMQ client", zap.Error(err))
		}
		defer mqClient.Close()
		publisher = events.NewBrokerPublisher(mqClient, logger)
		if err := mqClient.ConsumeOrderEvents(ctx, events.LogHandler(logger)); err != nil {
			logger.Error("failed to start RabbitMQ consumer", zap.Error(err))
		}
	case "kafka":
		producer := kafka.NewProducer(cfg.Events.KafkaBrokers, cfg.Events.KafkaTopic)
		defer producer.Close()
		publisher = events.NewBrokerPublisher(producer, logger)
	case "none", "":
	default:
		logger.Fatal("unknown events driver", zap.String("driver", cfg.Events.Driver))
	}

	// --- Repositories ---
	userRepo := repositories.NewGORMUserRepository(db)
	productRepo := repositories.NewGORMProductRepository(db)
	categoryRepo := repositories.NewGORMCategoryRepository(db)
	cartRepo := repositories.NewGORMCartRepository(db)
	addressRepo := repositories.NewGORMAddressRepository(db)
	orderRepo := repositories.NewGORMOrderRepository(db)
	paymentRepo := repositories.NewGORMPaymentRepository(db)

	// --- Payment providers ---
	gateways := payment.NewRegistry(oxpay.New(cfg.OxPay, logger))

	// --- Services ---
	reconciler := services.NewReconcileService(services.ReconcileServiceDeps{
		Tx:        txm,
		Gateways:  gateways,
		Orders:    orderRepo,
		Payments:  paymentRepo,
		Products:  productRepo,
		Dedup:     dedup,
		Cache:     cache,
		Publisher: publisher,
		Logger:    logger,
		Producer:  cfg.Events.ServiceName,
	})
	svc := app.Services{
		Auth:      services.NewAuthService(userRepo, cfg.Auth.JWTSecret, cfg.Auth.TokenDuration, logger),
		Products:  services.NewProductService(productRepo, categoryRepo, logger),
		Carts:     services.NewCartService(cartRepo, productRepo, logger),
		Addresses: services.NewAddressService(addressRepo),
		Orders: services.NewOrderService(services.OrderServiceDeps{
			Tx:        txm,
			Orders:    orderRepo,
			Payments:  paymentRepo,
			Products:  productRepo,
			Carts:     cartRepo,
			Addresses: addressRepo,
			Publisher: publisher,
			Logger:    logger,
			Currency:  cfg.App.Currency,
			Producer:  cfg.Events.ServiceName,
			Providers: gateways.Names(),
		}),
		Payments: services.NewPaymentService(services.PaymentServiceDeps{
			Gateways:   gateways,
			Orders:     orderRepo,
			Payments:   paymentRepo,
			Users:      userRepo,
			Reconciler: reconciler,
			Cache:      cache,
			Logger:     logger,
			BaseURL:    cfg.App.BaseURL,
			ReceiptURL: cfg.App.ReceiptURL,
		}),
		Reconcile: reconciler,
	}

	// --- HTTP server ---
	server := app.New(svc, app.Options{Logger: logger, AccessLog: true, Checks: checks})

	go func() {
		logger.Info("starting server", zap.String("port", cfg.App.Port))
		if err := server.Listen(cfg.App.Port); err != nil {
			logger.Error("server stopped", zap.Error(err))
			stop()
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	<-ctx.Done()
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("error during shutdown", zap.Error(err))
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	logger.Info("server gracefully stopped")
}

func pingDB(db *gorm.DB) app.HealthCheck {
	return func() error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return sqlDB.PingContext(ctx)
	}
}
