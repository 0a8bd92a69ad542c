package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	appengine "main/internal/application/service/engine"
	apporderlog "main/internal/application/service/orderlog"
	appsecurities "main/internal/application/service/securities"
	"main/internal/application/service/orderflow"
	"main/internal/config"
	"main/internal/infrastructure/broker"
	infraorderlog "main/internal/infrastructure/orderlog"
	infrasecurities "main/internal/infrastructure/securities"
	infrahttp "main/internal/interfaces/http"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}

	securitiesRepo, err := infrasecurities.NewRepository(ctx, cfg.Postgres.DSN)
	if err != nil {
		logger.Fatalf("failed to init securities repo: %v", err)
	}
	defer securitiesRepo.Close()

	orderlogRepo, err := infraorderlog.NewRepository(ctx, cfg.Postgres.DSN)
	if err != nil {
		logger.Fatalf("failed to init order log repo: %v", err)
	}
	defer orderlogRepo.Close()

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
	}

	securitiesService := appsecurities.NewService(securitiesRepo)
	orderlogService := apporderlog.NewService(orderlogRepo)

	engine := appengine.New(orderflow.Settings{
		MaxDepth:            cfg.Engine.MaxDepth,
		SpreadSize:          cfg.Engine.SpreadSize,
		VolumeMultiplier:    cfg.Engine.VolumeMultiplier,
		IncreaseDepthVolume: cfg.Engine.IncreaseDepthVolume,
		MatchProbability:    cfg.Engine.MatchProbability,
		VolumeMin:           cfg.Engine.VolumeMin,
		VolumeMax:           cfg.Engine.VolumeMax,
	}, securitiesService, logger, cfg.Engine.Seed)

	batcher := broker.NewBatchWriter(broker.BatchConfig{
		Size:    cfg.RabbitMQ.BatchSize,
		Timeout: cfg.RabbitMQ.BatchTimeout,
	}, orderlogService, logger)

	consumer, err := broker.NewConsumer(cfg.RabbitMQ, engine, batcher, logger)
	if err != nil {
		logger.Fatalf("failed to init consumer: %v", err)
	}
	if err := consumer.Start(ctx); err != nil {
		logger.Fatalf("failed to start consumer: %v", err)
	}

	cacheTTL := time.Duration(cfg.Cache.TTLSeconds) * time.Second
	handler := infrahttp.NewHandler(securitiesService, orderlogService, engine, redisClient, cacheTTL)

	server := &http.Server{
		Addr:    cfg.HTTP.Addr(),
		Handler: handler,
	}

	go func() {
		logger.Infof("HTTP server listening on %s", cfg.HTTP.Addr())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("http server error: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Infof("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("server shutdown error: %v", err)
	}
	if err := consumer.Close(shutdownCtx); err != nil {
		logger.Errorf("consumer shutdown error: %v", err)
	}
	logger.Info("server stopped")
}
