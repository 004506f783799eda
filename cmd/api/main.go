package main

import (
	"log"
	"net/http"
	"time"

	"chat-sessions/internal/config"
	apihttp "chat-sessions/internal/http"
	"chat-sessions/internal/llm"
	"chat-sessions/internal/report"
	"chat-sessions/internal/repository"
	"chat-sessions/internal/service"
	"chat-sessions/internal/storage"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// El backend se elige una sola vez al arranque: redis si hay URL
	// configurada, de lo contrario mapas en memoria.
	var (
		sessionRepo repository.SessionRepository
		messageRepo repository.MessageRepository
	)
	if cfg.RedisURL != "" {
		conn := storage.NewConnector(cfg.RedisURL, logger)
		sessionRepo = repository.NewRedisSessionRepository(conn, logger)
		messageRepo = repository.NewRedisMessageRepository(conn, logger)
		logger.Info("using redis storage backend")
	} else {
		sessionRepo = repository.NewMemorySessionRepository()
		messageRepo = repository.NewMemoryMessageRepository()
		logger.Info("redis not configured, falling back to in-memory storage")
	}

	var replier llm.Client = &llm.MockClient{Response: llm.MockReply}
	if cfg.LLMAPIKey != "" && !cfg.LLMForceMock {
		replier = llm.NewHTTPClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel, logger)
	} else {
		logger.Warn("llm api key not configured, using mock replies")
	}

	reporter := report.NewZapReporter(logger)
	chatSvc := service.NewChatService(logger, sessionRepo, messageRepo, replier, reporter)
	chatHandler := apihttp.NewChatHandler(logger, chatSvc)
	router := apihttp.NewRouter(logger, chatHandler)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("starting server", zap.String("port", cfg.HTTPPort))

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("server error", zap.Error(err))
	}
}
