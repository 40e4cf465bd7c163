package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"biblioteca/internal/app"
	"biblioteca/internal/config"
	"biblioteca/internal/database"
	"biblioteca/internal/logging"
	"biblioteca/internal/services"
	"biblioteca/pkg/rabbitmq"
	"biblioteca/pkg/revocation"

	"go.uber.org/zap"
)

func main() {
	// --- Configuration ---
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// --- Database ---
	db, err := database.Open(cfg.DatabaseDriver, cfg.DatabaseDSN, logger)
	if err != nil {
		logger.Fatal("failed to open database", zap.String("driver", cfg.DatabaseDriver), zap.Error(err))
	}
	if err := database.Migrate(db, cfg.BlockReturned); err != nil {
		logger.Fatal("failed to migrate database", zap.Error(err))
	}

	// --- Token revocation ---
	var revoker services.TokenRevoker
	if cfg.RedisAddr != "" {
		redisRevoker, err := revocation.NewRedisRevoker(cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			logger.Fatal("failed to initialize token revocation", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		}
		defer redisRevoker.Close()
		revoker = redisRevoker
		logger.Info("token revocation backed by redis", zap.String("addr", cfg.RedisAddr))
	} else {
		revoker = revocation.NewMemoryRevoker()
		logger.Info("token revocation kept in memory")
	}

	// --- Loan events ---
	var publisher services.EventPublisher
	if cfg.RabbitMQURL != "" {
		mqClient, err := rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQURL}, logger)
		if err != nil {
			logger.Fatal("failed to initialize RabbitMQ client", zap.Error(err))
		}
		defer mqClient.Close()
		publisher = mqClient

		if err := mqClient.ConsumeLoanEvents(rabbitmq.LogLoanEvents(logger)); err != nil {
			logger.Error("failed to start loan event consumer", zap.Error(err))
		}
	} else {
		logger.Info("RABBITMQ_URL not set, loan events disabled")
	}

	// --- Application ---
	application := app.New(app.Options{
		DB:             db,
		Logger:         logger,
		Revoker:        revoker,
		Publisher:      publisher,
		JWTSecret:      cfg.JWTSecret,
		TokenTTL:       cfg.TokenTTL,
		BlockReturned:  cfg.BlockReturned,
		LoginRateLimit: cfg.LoginRateLimit,
		AccessLog:      true,

		AllowAdminRegistration: cfg.AllowAdminRegistration,
	})

	if cfg.Admin.Enabled() {
		admin, err := application.Users.EnsureAdmin(cfg.Admin.Name, cfg.Admin.CPF, cfg.Admin.Password)
		if err != nil {
			logger.Fatal("failed to bootstrap administrator", zap.Error(err))
		}
		logger.Info("administrator ready", zap.Uint("user_id", admin.ID))
	}

	// --- Start HTTP Server ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("starting server", zap.String("addr", cfg.AppPort))
		if err := application.Fiber.Listen(cfg.AppPort); err != nil {
			logger.Fatal("server failed to start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	<-quit
	logger.Info("shutting down server")

	if err := application.Fiber.Shutdown(); err != nil {
		logger.Error("error during shutdown", zap.Error(err))
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
	logger.Info("server gracefully stopped")
}
