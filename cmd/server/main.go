package main

import (
	"context"
	"fmt"
	"log"

	"github.com/qs3c/repo_audit_server/config"
	"github.com/qs3c/repo_audit_server/internal/api"
	"github.com/qs3c/repo_audit_server/internal/api/handler"
	"github.com/qs3c/repo_audit_server/internal/database"
	"github.com/qs3c/repo_audit_server/internal/dispatch"
	"github.com/qs3c/repo_audit_server/internal/github"
	"github.com/qs3c/repo_audit_server/internal/llm"
	"github.com/qs3c/repo_audit_server/internal/pkg/oss"
	"github.com/qs3c/repo_audit_server/internal/pkg/pubsub"
	"github.com/qs3c/repo_audit_server/internal/pkg/queue"
	"github.com/qs3c/repo_audit_server/internal/pkg/webhook"
	"github.com/qs3c/repo_audit_server/internal/pkg/ws"
	"github.com/qs3c/repo_audit_server/internal/repository"
	"github.com/qs3c/repo_audit_server/internal/service"
	"github.com/qs3c/repo_audit_server/internal/worker"
)

func main() {
	// 加载配置
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化数据库
	db, err := database.NewMySQL(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect database: %v", err)
	}
	log.Println("Database connected")

	// 初始化 Redis（不可达不阻止启动，派发退化为进程内执行）
	rdb, err := database.NewRedis(&cfg.Redis)
	if err != nil {
		log.Printf("Warning: redis unavailable: %v", err)
		rdb = nil
	} else {
		log.Println("Redis connected")
	}

	// 初始化 OSS（可选）
	var ossClient *oss.Client
	if cfg.OSS.Endpoint != "" && cfg.OSS.AccessKeyID != "" {
		ossClient, err = oss.NewClient(&cfg.OSS)
		if err != nil {
			log.Printf("Warning: Failed to init OSS client: %v", err)
		} else {
			log.Println("OSS client initialized")
		}
	}

	// 初始化 WebSocket Hub
	wsHub := ws.NewHub()
	log.Println("WebSocket hub started")

	// 初始化 Repository
	userRepo := repository.NewUserRepository(db)
	jobRepo := repository.NewJobRepository(db)

	// 组装分析管线（立即执行策略在本进程内跑完整管线）
	ghClient := github.NewClient(cfg.GitHub.Token, cfg.GitHub.APIBaseURL, cfg.GitHub.TimeoutSeconds)
	fetcher := github.NewFetcher(ghClient, cfg.Analysis.MaxSourceFiles)
	llmClient := llm.NewClient(cfg.LLM.Endpoint, cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.TimeoutSeconds)
	validator := llm.NewValidator(llmClient, cfg.Analysis.FilterCap)
	notifier := webhook.NewNotifier(cfg.Webhook.URL, cfg.Webhook.TimeoutSeconds)

	var jobQueue *queue.Queue
	var publisher *pubsub.Publisher
	if rdb != nil {
		jobQueue = queue.NewQueue(rdb, cfg.Queue.AnalysisQueue)
		publisher = pubsub.NewPublisher(rdb)
	}

	processor := worker.NewProcessor(jobRepo, fetcher, validator, ossClient, publisher, notifier, cfg)

	// 选定派发策略：Redis 可达走队列，否则进程内立即执行
	strategy := dispatch.Select(rdb, jobQueue, processor, cfg.Queue.MaxInlineJobs)

	// 初始化 Service
	authService := service.NewAuthService(userRepo, cfg)
	analysisService := service.NewAnalysisService(jobRepo, strategy, cfg)

	// 初始化 Handler
	authHandler := handler.NewAuthHandler(authService)
	analysisHandler := handler.NewAnalysisHandler(analysisService)
	websocketHandler := handler.NewWebSocketHandler(wsHub, cfg.JWT.Secret)

	// 订阅任务进度，转发给在线用户
	if rdb != nil {
		subscriber := pubsub.NewSubscriber(rdb)
		go func() {
			err := subscriber.Subscribe(context.Background(), func(msg *pubsub.ProgressMessage) {
				if !wsHub.IsOnline(msg.UserID) {
					return
				}
				if err := wsHub.SendToUser(msg.UserID, &ws.Message{
					Type: msg.Type,
					Data: msg,
				}); err != nil {
					log.Printf("Failed to push progress to user %d: %v", msg.UserID, err)
				}
			})
			if err != nil {
				log.Printf("Progress subscriber stopped: %v", err)
			}
		}()
	}

	// 初始化 Router
	router := api.NewRouter(
		authHandler,
		analysisHandler,
		websocketHandler,
		cfg,
	)
	engine := router.Setup()

	// 启动服务器
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Printf("Server starting on %s", addr)
	if err := engine.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
