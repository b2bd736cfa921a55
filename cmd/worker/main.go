package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/qs3c/repo_audit_server/config"
	"github.com/qs3c/repo_audit_server/internal/database"
	"github.com/qs3c/repo_audit_server/internal/github"
	"github.com/qs3c/repo_audit_server/internal/llm"
	"github.com/qs3c/repo_audit_server/internal/pkg/oss"
	"github.com/qs3c/repo_audit_server/internal/pkg/pubsub"
	"github.com/qs3c/repo_audit_server/internal/pkg/queue"
	"github.com/qs3c/repo_audit_server/internal/pkg/webhook"
	"github.com/qs3c/repo_audit_server/internal/repository"
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

	// worker 进程必须有 Redis，否则没有队列可消费
	rdb, err := database.NewRedis(&cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect redis: %v", err)
	}
	log.Println("Redis connected")

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

	// 初始化 Queue 和 Pub/Sub
	jobQueue := queue.NewQueue(rdb, cfg.Queue.AnalysisQueue)
	publisher := pubsub.NewPublisher(rdb)

	// 初始化 Repository
	jobRepo := repository.NewJobRepository(db)

	// 组装分析管线
	ghClient := github.NewClient(cfg.GitHub.Token, cfg.GitHub.APIBaseURL, cfg.GitHub.TimeoutSeconds)
	fetcher := github.NewFetcher(ghClient, cfg.Analysis.MaxSourceFiles)
	llmClient := llm.NewClient(cfg.LLM.Endpoint, cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.TimeoutSeconds)
	validator := llm.NewValidator(llmClient, cfg.Analysis.FilterCap)
	notifier := webhook.NewNotifier(cfg.Webhook.URL, cfg.Webhook.TimeoutSeconds)

	processor := worker.NewProcessor(jobRepo, fetcher, validator, ossClient, publisher, notifier, cfg)

	// 创建 context 用于优雅关闭
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 监听退出信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Println("Received shutdown signal")
		cancel()
	}()

	log.Printf("Worker started, max workers: %d", cfg.Queue.MaxWorkers)

	// 启动 worker 循环
	for i := 0; i < cfg.Queue.MaxWorkers; i++ {
		go func(workerID int) {
			for {
				select {
				case <-ctx.Done():
					log.Printf("Worker %d shutting down", workerID)
					return
				default:
					// 从队列获取任务
					msg, err := jobQueue.Pop(ctx, 5*time.Second)
					if err != nil {
						if ctx.Err() != nil {
							return
						}
						log.Printf("Worker %d: failed to pop job: %v", workerID, err)
						continue
					}

					if msg == nil {
						continue // 超时，继续等待
					}

					log.Printf("Worker %d: processing job %d", workerID, msg.JobID)
					if err := processor.Process(ctx, msg); err != nil {
						log.Printf("Worker %d: job %d failed: %v", workerID, msg.JobID, err)
					}
				}
			}
		}(i)
	}

	// 等待 context 取消
	<-ctx.Done()
	log.Println("Worker shutdown complete")
}
