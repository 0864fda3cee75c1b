package main

import (
	"context"
	"log"
	"time"

	"chat-requests/config"
	"chat-requests/internal/events"
	"chat-requests/internal/handler"
	"chat-requests/internal/redis"
	"chat-requests/internal/repository"
	"chat-requests/internal/server"
	"chat-requests/internal/services"
	"chat-requests/pkg/database"
	"chat-requests/pkg/logger"
)

func main() {
	cfg := config.LoadConfig()

	mode := logger.DevelopmentMode
	if cfg.AppMode == server.ReleaseMode {
		mode = logger.ProductionMode
	}
	l := logger.New(mode)
	logger.SetGlobalLogger(l)
	defer l.Sync()

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close(db)

	if err := repository.InitSchema(db); err != nil {
		log.Fatalf("Failed to apply migrations: %v", err)
	}

	store := repository.NewStore(db)
	authService := services.NewAuthService(store.Users(), cfg)
	chatService := services.NewChatService(store)
	chatRequestService := services.NewChatRequestService(store, chatService, l)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deps := server.Dependencies{
		Auth: authService,
		HealthCheck: func(ctx context.Context) error {
			return database.HealthCheck(ctx, db)
		},
	}

	var worker *services.OutboxWorker
	var limiter *redis.RateLimiter
	if cfg.RedisEnabled {
		client, err := redis.Connect(ctx, redis.ConfigFrom(cfg), 3*time.Second)
		if err != nil {
			log.Fatalf("Failed to connect to redis: %v", err)
		}
		defer client.Close()

		limiter = redis.NewRateLimiter(client, redis.RateLimitConfigFrom(cfg))
		deps.RateLimiter = limiter

		bus := events.NewRedisEventBus(client, events.NewUserChannelResolver())
		worker = services.NewOutboxWorker(store.Events(), bus, l,
			time.Duration(cfg.OutboxIntervalMs)*time.Millisecond, cfg.OutboxBatchSize)
		worker.Start(ctx)
	} else {
		l.Warnf("Redis disabled: rate limiting is off and outbox events stay unpublished")
	}

	authHandler := handler.NewAuthHandler(authService, l)
	if limiter != nil {
		authHandler.ResetAttemptsOnLogin(limiter)
	}

	srv := server.New(cfg, l)
	srv.SetupRoutes(&server.Handlers{
		Auth:        authHandler,
		ChatRequest: handler.NewChatRequestHandler(chatRequestService, l),
		Chat:        handler.NewChatHandler(chatService, l),
	}, deps)

	if err := srv.Start(); err != nil {
		l.Errorf("server exited: %v", err)
	}
	if worker != nil {
		worker.Stop()
	}
}
