package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"inventory-service/config"
	"inventory-service/internal/cache"
	"inventory-service/internal/database"
	"inventory-service/internal/logger"
	"inventory-service/internal/producer"
	"inventory-service/internal/repository"
	"inventory-service/internal/service"
	"inventory-service/internal/sweeper"
	transport "inventory-service/internal/transport/http"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()
	isDev := os.Getenv("ENV") == "development"
	if err := logger.Init(isDev); err != nil {
		panic(err)
	}

	defer logger.Sync()

	log := logger.L()

	cfg := config.Load(log)
	db := database.ConnectDB(&cfg.DB.Config, log)
	defer database.CloseDB(db, log)

	var redisClient *cache.RedisClient
	if cfg.Redis.Enabled {
		rc, err := cache.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB,
			time.Duration(cfg.Redis.TTLSeconds)*time.Second, log)
		if err != nil {
			log.Fatal("redis connection failed", zap.Error(err))
		}
		defer rc.Close()
		redisClient = rc
	}

	var bus service.EventBus
	if cfg.Kafka.Enabled {
		p := producer.NewStockEventProducer(cfg.Kafka.Brokers, cfg.Kafka.LowStockTopic, cfg.Kafka.MovementTopic)
		defer p.Close()
		bus = p
	}

	repos := repository.New(db)

	var availabilityCache service.AvailabilityCache
	if redisClient != nil {
		availabilityCache = redisClient
	}

	svc := service.NewInventoryService(repos, bus, availabilityCache, log, service.Options{
		ReservationTTL:      cfg.Engine.ReservationTTL,
		DefaultSafetyStock:  cfg.Engine.DefaultSafetyStock,
		DefaultMaxStock:     cfg.Engine.DefaultMaxStock,
		ReplenishMultiplier: cfg.Engine.ReplenishMultiplier,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sw := sweeper.New(repos, svc, log, cfg.Sweeper.Interval, cfg.Sweeper.BatchSize)
	sw.Start(ctx)
	defer sw.Stop()

	handler := transport.NewHandler(svc, redisClient, log)
	router := transport.Router(handler)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Info("Inventory HTTP server listening", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	log.Info("Shutting down inventory service...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	}
	log.Info("Inventory service stopped gracefully")
}
