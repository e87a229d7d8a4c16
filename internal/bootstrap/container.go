package bootstrap

import (
	"context"
	"log"
	"time"

	"research-assistant-be/internal/config"
	"research-assistant-be/internal/controller"
	"research-assistant-be/internal/handler"
	"research-assistant-be/internal/pkg/logger"
	"research-assistant-be/internal/repository/memory"
	"research-assistant-be/internal/repository/unitofwork"
	"research-assistant-be/internal/service"
	"research-assistant-be/internal/websocket"
	"research-assistant-be/pkg/bus"
	"research-assistant-be/pkg/llm/factory"
	"research-assistant-be/pkg/papers"
	"research-assistant-be/pkg/ranking"

	pktNats "research-assistant-be/pkg/nats"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	ChatController    controller.IChatController
	PaperController   controller.IPaperController
	RankingController controller.IRankingController

	// Background Services (Exposed for main.go to run)
	ConsumerService service.IConsumerService

	// WebSockets
	StreamHandler *handler.StreamHandler
	WebSocketHub  *websocket.Hub

	// Shared infrastructure main.go shuts down
	SessionBus *bus.SessionBus
	NatsPub    *pktNats.Publisher
	NatsSub    *pktNats.Subscriber
	Logger     logger.ILogger
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	// 2. Session event bus (in-process, one topic per session)
	sessionBus := bus.New()

	// 3. LLM Provider
	llmProvider, err := factory.NewLLMProvider(
		cfg.Ai.LLMProvider,
		cfg.Ai.LLMModel,
		cfg.Ai.LLMBaseURL,
		cfg.Ai.LLMAPIKey,
	)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize LLM Provider: %v", err)
	}
	log.Printf("[INFO] Using LLM Provider: %s (%s)", cfg.Ai.LLMProvider, cfg.Ai.LLMModel)

	// In-Memory Session Storage
	sessionRepo := memory.NewSessionRepository()

	// 3.5 Infrastructure
	// NATS
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
	}
	natsSub, err := pktNats.NewSubscriber(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Subscriber: %v", err)
	}

	// Redis
	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{
			Addr: cfg.App.RedisURL,
		}
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v", err)
	}

	// WebSocket Hub
	wsLogger := logger.NewIsolatedLogger("logs/stream.log")
	wsHub := websocket.NewHub(rdb, wsLogger)
	go wsHub.Run()

	// 4. Domain services
	papersClient := papers.NewClient(cfg.Papers.DailyPapersURL)
	paperService := service.NewPaperService(papersClient, uowFactory, natsPub, sysLogger)

	scorerModel := cfg.Ai.ScorerModel
	scorer := service.NewPaperScorer(llmProvider, scorerModel)
	evaluator := ranking.NewEvaluator(
		scorer,
		cfg.Evaluator.Workers,
		time.Duration(cfg.Ai.RankerTimeout)*time.Second,
	)
	rankingCache := ranking.NewCache()
	rankingService := service.NewRankingService(rankingCache, evaluator, paperService, uowFactory, natsPub, sysLogger)

	summarizer := service.NewLLMGithubSummarizer(llmProvider)
	profileService := service.NewProfileService(uowFactory, llmProvider, summarizer, sysLogger)

	chatService := service.NewChatService(
		uowFactory,
		sessionRepo,
		llmProvider,
		sessionBus,
		wsHub,
		profileService,
		rankingService,
		sysLogger,
	)

	consumerService := service.NewConsumerService(natsSub, wsHub, wsLogger)

	// 5. Controllers
	return &Container{
		ChatController:    controller.NewChatController(chatService, sessionBus, cfg.App.APIKey, cfg.App.KeepaliveSeconds),
		PaperController:   controller.NewPaperController(paperService, cfg.App.APIKey),
		RankingController: controller.NewRankingController(rankingService, cfg.App.APIKey),

		ConsumerService: consumerService,

		StreamHandler: handler.NewStreamHandler(wsHub, cfg.App.APIKey, wsLogger),
		WebSocketHub:  wsHub,

		SessionBus: sessionBus,
		NatsPub:    natsPub,
		NatsSub:    natsSub,
		Logger:     sysLogger,
	}
}
