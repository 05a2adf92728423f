package main

import (
	"context"
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"room-chat-service/internal/auth"
	"room-chat-service/internal/chat"
	"room-chat-service/internal/config"
	"room-chat-service/internal/db"
	"room-chat-service/internal/handlers"
	"room-chat-service/internal/middleware"
	"room-chat-service/internal/observability"
	"room-chat-service/internal/presence"
	"room-chat-service/internal/rabbitmq"
	"room-chat-service/internal/repositories"
	"room-chat-service/internal/telemetry"
	"room-chat-service/internal/ws"
)

const serviceName = "room-chat-service"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	shutdownTracing, err := telemetry.SetupTracing(context.Background(), cfg.OTLPEndpoint, serviceName)
	if err != nil {
		log.Fatalf("failed to set up tracing: %v", err)
	}
	defer shutdownTracing(context.Background())

	database, err := db.Connect(cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}

	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		log.Fatalf("failed to create upload dir: %v", err)
	}

	eventPublisher, err := observability.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	if err != nil {
		log.Printf("event publishing disabled: %v", err)
	} else {
		observability.SetPublisher(eventPublisher)
		defer eventPublisher.Close()
	}

	auditPublisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	defer auditPublisher.Close()
	log.Printf("audit publisher mode=%s", rabbitmq.PublisherMode(auditPublisher))
	auditEmitter := telemetry.NewAuditEmitter(auditPublisher, "audit_log", serviceName, cfg.Environment)

	userRepo := repositories.NewUserRepo(database)
	roomRepo := repositories.NewRoomRepo(database)
	messageRepo := repositories.NewMessageRepo(database)

	tokenManager := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTTTL)
	tracker := presence.NewTracker(userRepo)

	hub := ws.NewHub()
	ingestor := chat.NewIngestor(roomRepo, messageRepo, hub)
	gate := ws.NewGate(tokenManager, userRepo)
	wsHandler := ws.NewHandler(hub, gate, ingestor, roomRepo, tracker)

	authHandler := handlers.NewAuthHandler(userRepo, roomRepo, tokenManager, auditEmitter)
	roomHandler := handlers.NewRoomHandler(roomRepo)
	messageHandler := handlers.NewMessageHandler(roomRepo, messageRepo, userRepo, ingestor, cfg.UploadDir)
	legacyHandler := handlers.NewLegacyHandler(roomRepo, messageRepo, ingestor)

	router := gin.Default()

	// middlewares
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	router.Use(observability.HTTPMetricsMiddleware())

	authMiddleware := middleware.AuthMiddleware(tokenManager)

	router.POST("/api/auth/register", authHandler.Register)
	router.POST("/api/auth/login", authHandler.Login)
	router.GET("/api/auth/me", authMiddleware, authHandler.Me)

	router.POST("/api/rooms", authMiddleware, roomHandler.CreateRoom)
	router.GET("/api/rooms", authMiddleware, roomHandler.ListRooms)
	router.GET("/api/rooms/:room_id", authMiddleware, roomHandler.GetRoom)
	router.POST("/api/rooms/:room_id/join", authMiddleware, roomHandler.JoinRoom)
	router.POST("/api/rooms/:room_id/leave", authMiddleware, roomHandler.LeaveRoom)

	router.GET("/api/messages/:room_id", authMiddleware, messageHandler.GetRoomMessages)
	router.POST("/api/messages/:room_id", authMiddleware, messageHandler.PostRoomMessage)
	router.POST("/api/messages/:room_id/upload", authMiddleware, messageHandler.UploadFile)
	router.Static("/uploads", cfg.UploadDir)

	// legacy surface, preserved for prior API consumers
	router.GET("/messages", legacyHandler.GetMessages)
	router.POST("/send", legacyHandler.PostMessage)

	router.GET("/ws", wsHandler.Handle)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	handlers.RegisterDebugRoutes(router, auditEmitter, cfg.DebugRoutes)

	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
