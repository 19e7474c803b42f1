package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"chat-gateway/internal/auth"
	"chat-gateway/internal/config"
	"chat-gateway/internal/db"
	"chat-gateway/internal/gateway"
	"chat-gateway/internal/handlers"
	"chat-gateway/internal/middleware"
	"chat-gateway/internal/notifications"
	"chat-gateway/internal/observability"
	"chat-gateway/internal/presence"
	"chat-gateway/internal/rabbitmq"
	"chat-gateway/internal/repositories"
	"chat-gateway/internal/telemetry"
	"chat-gateway/internal/ws"
)

func main() {
	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.InitTracing(ctx, cfg.ServiceName, cfg.OTLPEndpoint, cfg.Environment)
	if err != nil {
		log.Fatalf("failed to init tracing: %v", err)
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	chatRepo, friendRepo, closeStore := openStore(ctx, cfg)
	defer closeStore()

	var redisClient *redis.Client
	if cfg.PresenceBackend == config.BackendRedis || cfg.NotificationBackend == config.BackendRedis {
		redisClient, err = db.ConnectRedis(ctx, cfg.RedisURI)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
	}

	var registry presence.Registry
	switch cfg.PresenceBackend {
	case config.BackendMemory:
		registry = presence.NewMemoryRegistry()
	default:
		registry = presence.NewRedisRegistry(redisClient, cfg.RedisKeyPrefix)
	}

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	defer publisher.Close()
	log.Printf("rabbitmq publisher mode=%s reason=%q", rabbitmq.PublisherMode(publisher), rabbitmq.PublisherNoopReason(publisher))
	observability.SetPublisher(publisher)

	var queue notifications.Queue
	switch cfg.NotificationBackend {
	case config.BackendRedis:
		queue = notifications.NewRedisQueue(redisClient, cfg.RedisKeyPrefix)
	default:
		queue = notifications.NewAMQPQueue(publisher, cfg.NotificationQueue)
	}

	auditEmitter := telemetry.NewAuditEmitter(publisher, cfg.AuditRoutingKey, cfg.ServiceName, cfg.Environment)

	hub := ws.NewHub()
	gw := gateway.New(chatRepo, friendRepo, registry, queue, hub, auditEmitter, gateway.Options{
		ConflictRetries: cfg.ConflictRetries,
		TypingTimeout:   cfg.TypingTimeout,
		EventsPerSecond: cfg.WSEventsPerSecond,
		EventBurst:      cfg.WSEventBurst,
	})
	verifier := auth.NewJWTVerifier(cfg.JWTSecret)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// middlewares
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(cfg.ServiceName))
	router.Use(handlers.RequestID())
	router.Use(observability.HTTPMetricsMiddleware())

	router.GET("/metrics", observability.MetricsHandler())
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/ws", ws.NewHandler(hub, gw, verifier, cfg.WSSendBuffer).Handle)

	api := router.Group("/", middleware.AuthMiddleware(verifier))
	handlers.NewChatHandler(gw).Register(api)
	handlers.RegisterDebugRoutes(api, auditEmitter, gw, cfg.DebugRoutes)

	grpcServer, healthServer := observability.NewHealthServer()
	lis, err := net.Listen("tcp", cfg.GRPCHealthAddr)
	if err != nil {
		log.Fatalf("failed to listen for grpc health: %v", err)
	}
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			log.Printf("grpc health server stopped: %v", err)
		}
	}()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: router}
	go func() {
		log.Printf("chat-gateway listening port=%s store=%s presence=%s notifications=%s",
			cfg.Port, cfg.ChatStore, cfg.PresenceBackend, cfg.NotificationBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down")
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	grpcServer.GracefulStop()
}

// openStore selects the chat store and the friend directory backing it.
func openStore(ctx context.Context, cfg *config.Config) (repositories.ChatRepository, repositories.FriendRepository, func()) {
	switch cfg.ChatStore {
	case config.StoreMemory:
		log.Printf("chat store: memory")
		return repositories.NewMemoryChatRepo(), repositories.NewMemoryFriendRepo(), func() {}

	case config.StoreMongo:
		client, database, err := db.ConnectMongo(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			log.Fatalf("failed to connect to mongo: %v", err)
		}
		repo := repositories.NewMongoChatRepo(database)
		if err := repo.EnsureIndexes(ctx); err != nil {
			log.Fatalf("failed to create mongo indexes: %v", err)
		}
		return repo, repositories.NewMongoFriendRepo(database), func() { _ = client.Disconnect(context.Background()) }

	default:
		database, err := db.Connect(cfg.PostgresDSN)
		if err != nil {
			log.Fatalf("failed to connect to db: %v", err)
		}
		return repositories.NewChatRepo(database), repositories.NewFriendRepo(database), func() { _ = database.Close() }
	}
}
