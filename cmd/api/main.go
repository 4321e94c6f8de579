package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/rahadianir/stocklet/config"
	"github.com/rahadianir/stocklet/internal/router"
	stockHandler "github.com/rahadianir/stocklet/internal/stock/handler"
	stockListener "github.com/rahadianir/stocklet/internal/stock/listener"
	stockPublisher "github.com/rahadianir/stocklet/internal/stock/publisher"
	stockRepo "github.com/rahadianir/stocklet/internal/stock/repository"
	stockUC "github.com/rahadianir/stocklet/internal/stock/usecase"
	"github.com/rahadianir/stocklet/pkg/broker"
	"github.com/rahadianir/stocklet/pkg/cache"
	"github.com/rahadianir/stocklet/pkg/logger"
	"github.com/rahadianir/stocklet/pkg/postgres"
)

func main() {
	// 1. Load Configuration
	_ = godotenv.Load() // Load .env file if it exists
	cfg := config.LoadEnv()

	// 2. Initialize Logger
	logConfig := &logger.ZapLoggerConfig{
		IsDevelopment:     false,
		Encoding:          "json",
		Level:             "info",
		DisableCaller:     cfg.Logger.DisableCaller,
		DisableStacktrace: cfg.Logger.DisableStacktrace,
	}

	if cfg.Server.AppEnv == "development" || cfg.Server.AppEnv == "dev" {
		logConfig.IsDevelopment = true
		logConfig.Encoding = cfg.Logger.Encoding
		logConfig.Level = cfg.Logger.Level
	}

	appLogger := logger.NewZapLogger(logConfig)
	defer appLogger.Sync()

	// 3. Connect to Database
	db, err := postgres.NewPostgres(&postgres.Config{
		Host:            cfg.Postgres.Host,
		Port:            cfg.Postgres.Port,
		User:            cfg.Postgres.User,
		Password:        cfg.Postgres.Password,
		DBName:          cfg.Postgres.DBName,
		SSLMode:         cfg.Postgres.SSLMode,
		MaxOpenConns:    cfg.Postgres.MaxOpenConns,
		MaxIdleConns:    cfg.Postgres.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.Postgres.ConnMaxLifetime) * time.Second,
		ConnMaxIdleTime: time.Duration(cfg.Postgres.ConnMaxIdleTime) * time.Second,
	})
	if err != nil {
		appLogger.Fatal("could not connect to database", zap.Error(err))
	}
	defer db.Close()
	appLogger.Info("connected to postgres", zap.String("db_name", cfg.Postgres.DBName))

	// 4. Initialize Redis
	redisClient, err := cache.NewRedisClient(&cache.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		appLogger.Fatal("could not connect to redis", zap.Error(err))
	}
	defer redisClient.Close()
	appLogger.Info("connected to redis", zap.String("addr", cfg.Redis.Addr))

	// 5. Initialize Kafka
	ledgerProducer := broker.NewProducer(&broker.Config{
		Brokers: cfg.Kafka.Brokers,
		Topic:   cfg.Kafka.LedgerTopic,
	})
	defer ledgerProducer.Close()

	ordersConsumer := broker.NewConsumer(&broker.Config{
		Brokers: cfg.Kafka.Brokers,
		Topic:   cfg.Kafka.OrdersTopic,
		GroupID: cfg.Kafka.OrdersGroupID,
	})
	defer ordersConsumer.Close()
	appLogger.Info("connected to kafka",
		zap.Strings("brokers", cfg.Kafka.Brokers),
		zap.String("orders_topic", cfg.Kafka.OrdersTopic),
		zap.String("ledger_topic", cfg.Kafka.LedgerTopic),
	)

	// 6. Initialize Repository, UseCase, Publisher
	repo := stockRepo.NewPGRepository(db)
	publisher := stockPublisher.NewLedgerEventPublisher(ledgerProducer)

	uc := stockUC.NewStockUseCase(repo, redisClient, publisher, appLogger, stockUC.Config{
		LowStockThreshold: int64(cfg.Stock.LowStockThreshold),
		MaxRetries:        cfg.Stock.MaxRetries,
		CacheTTL:          time.Duration(cfg.Stock.CacheTTLSeconds) * time.Second,
	})

	// 7. Start Order Listener
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	orderListener := stockListener.NewOrderListener(ordersConsumer, uc, appLogger)
	go orderListener.Start(ctx)

	// 8. Start HTTP Server
	h := stockHandler.NewStockHandler(uc, appLogger)
	engine := router.New(h, appLogger, cfg.Server.AppEnv)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.HTTPPort,
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		appLogger.Info("starting http server", zap.String("port", cfg.Server.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatal("http server crashed", zap.Error(err))
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("graceful shutdown failed", zap.Error(err))
	}
	appLogger.Info("server stopped")
}
