package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/example/navalha/internal/cache"
	"github.com/example/navalha/internal/config"
	"github.com/example/navalha/internal/database"
	"github.com/example/navalha/internal/events"
	"github.com/example/navalha/internal/handlers"
	"github.com/example/navalha/internal/middleware"
	"github.com/example/navalha/internal/repositories"
	"github.com/example/navalha/internal/routes"
	"github.com/example/navalha/internal/services"
	"github.com/example/navalha/internal/workers"
)

func main() {
	cfg := config.Load()

	log, err := newLogger(cfg.AppEnv)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	db, err := database.Connect(cfg.DatabaseURL, log, cfg.AppEnv == "development")
	if err != nil {
		log.Fatal("database connection failed", zap.Error(err))
	}
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatal("database handle unavailable", zap.Error(err))
	}

	var rateCache services.RateCache = cache.NewMemoryRateCache()
	if cfg.RedisAddr != "" {
		rdb, err := cache.InitRedis(cfg.RedisAddr, cfg.RedisPassword, log)
		if err != nil {
			log.Warn("redis unavailable, using in-memory rate cache", zap.Error(err))
		} else {
			defer rdb.Close()
			rateCache = cache.NewRedisRateCache(rdb, log)
		}
	}

	telegram := services.NewTelegramService(cfg.TelegramBotToken, cfg.TelegramAdminChat, log)
	notifiers := services.MultiNotifier{telegram}
	if len(cfg.KafkaBrokers) > 0 {
		producer, err := events.InitProducer(cfg.KafkaBrokers, log)
		if err != nil {
			log.Warn("kafka unavailable, payment events disabled", zap.Error(err))
		} else {
			publisher := events.NewPublisher(producer, cfg.KafkaPaymentTopic, log)
			defer publisher.Close()
			notifiers = append(notifiers, publisher)
		}
	}

	paymentRepo := repositories.NewPaymentRepository(db)
	appointmentRepo := repositories.NewAppointmentRepository(db)
	userRepo := repositories.NewUserRepository(db)

	ledger := services.NewEsploraLedger(cfg.LedgerAPIURL, cfg.LedgerMempool)
	oracle := services.NewHTTPPriceOracle(cfg.PriceOracleURL, rateCache, cfg.PriceCacheTTL, log)
	bitcoin := services.NewBitcoinService(oracle, services.NewStaticAddressProvider(cfg.BitcoinAddress), cfg.BitcoinFallbackRate, log)

	syncer := services.NewAppointmentSynchronizer(appointmentRepo, log)
	settler := services.NewSettler(paymentRepo, syncer, notifiers, telegram, log)
	monitor := services.NewSettlementMonitor(paymentRepo, ledger, settler, cfg.BitcoinPollInterval, log)

	paymentService := services.NewPaymentService(services.PaymentConfig{
		PixKey:        cfg.PixKey,
		MerchantName:  cfg.PixMerchantName,
		MerchantCity:  cfg.PixMerchantCity,
		PixExpiry:     cfg.PixExpiry,
		BitcoinExpiry: cfg.BitcoinExpiry,
	}, services.PaymentServiceDeps{
		Payments:     paymentRepo,
		Appointments: appointmentRepo,
		Bitcoin:      bitcoin,
		Ledger:       ledger,
		QR:           services.NewURLQRRenderer(cfg.QRRenderURL),
		Monitor:      monitor,
		Settler:      settler,
		Logger:       log,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	monitor.Start(ctx)
	if _, err := monitor.Resume(ctx); err != nil {
		log.Error("resume pending bitcoin payments failed", zap.Error(err))
	}
	workers.NewExpiryWorker(paymentService, cfg.ExpirySweepInterval, log).Start(ctx)

	authHandler := handlers.NewAuthHandler(userRepo, cfg.JWTSecret, cfg.TokenExpires, log)
	if err := authHandler.EnsureAdmin(ctx, cfg.AdminPhone, cfg.AdminPassword); err != nil {
		log.Error("bootstrap admin not created", zap.Error(err))
	}

	app := fiber.New(fiber.Config{
		AppName: "Navalha Payments",
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(middleware.LoggerMiddleware(log))
	app.Use(middleware.MetricsMiddleware())

	routes.Register(app, routes.Handlers{
		Auth:         authHandler,
		Appointments: handlers.NewAppointmentHandler(appointmentRepo),
		Payments:     handlers.NewPaymentHandler(paymentService, log),
		Health:       handlers.NewHealthHandler(sqlDB),
	}, cfg.JWTSecret, cfg.PixWebhookKey)

	go func() {
		<-ctx.Done()
		log.Info("shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Error("fiber shutdown error", zap.Error(err))
		}
	}()

	log.Info("starting server", zap.String("port", cfg.AppPort))
	if err := app.Listen(":" + cfg.AppPort); err != nil {
		log.Error("fiber.Listen error", zap.Error(err))
	}

	monitor.Stop()
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "development" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
