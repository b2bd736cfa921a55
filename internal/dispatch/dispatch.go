// Package dispatch 任务派发策略。Redis 可达时走分布式队列，
// 不可达时退化为进程内立即执行，两种策略跑同一份管线实现。
// 策略在进程启动时一次性选定，运行中不做自动切换。
package dispatch

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/qs3c/repo_audit_server/internal/pkg/queue"
	"github.com/qs3c/repo_audit_server/internal/worker"
)

// ErrTooManyJobs 立即执行策略达到并发上限
var ErrTooManyJobs = errors.New("当前分析任务过多，请稍后重试")

// Strategy 派发契约。两种实现对调用方完全等价。
type Strategy interface {
	Submit(ctx context.Context, msg *queue.JobMessage) error
	Name() string
}

// QueuedStrategy 把任务推入 Redis 队列，由独立 worker 进程消费。
// 启动后 Redis 掉线时 Submit 会报错，由上层落成任务失败。
type QueuedStrategy struct {
	queue *queue.Queue
}

func NewQueuedStrategy(q *queue.Queue) *QueuedStrategy {
	return &QueuedStrategy{queue: q}
}

func (s *QueuedStrategy) Submit(ctx context.Context, msg *queue.JobMessage) error {
	return s.queue.Push(ctx, msg)
}

func (s *QueuedStrategy) Name() string {
	return "queued"
}

// ImmediateStrategy 在本进程新起 goroutine 跑管线，
// 用计数信号量限制并发扇出。
type ImmediateStrategy struct {
	processor *worker.Processor
	slots     chan struct{}
}

func NewImmediateStrategy(processor *worker.Processor, maxJobs int) *ImmediateStrategy {
	if maxJobs <= 0 {
		maxJobs = 4
	}
	return &ImmediateStrategy{
		processor: processor,
		slots:     make(chan struct{}, maxJobs),
	}
}

func (s *ImmediateStrategy) Submit(ctx context.Context, msg *queue.JobMessage) error {
	select {
	case s.slots <- struct{}{}:
	default:
		return ErrTooManyJobs
	}

	// 对调用方立即返回，管线在后台执行。
	// 不继承请求 context：HTTP 请求结束不应中断任务。
	go func() {
		defer func() { <-s.slots }()
		if err := s.processor.Process(context.Background(), msg); err != nil {
			log.Printf("Immediate job %d failed: %v", msg.JobID, err)
		}
	}()

	return nil
}

func (s *ImmediateStrategy) Name() string {
	return "immediate"
}

// Select 进程启动时选定策略：Ping 通 Redis 用队列，否则立即执行。
func Select(rdb *redis.Client, q *queue.Queue, processor *worker.Processor, maxInlineJobs int) Strategy {
	if rdb != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err == nil {
			log.Println("Dispatch: redis reachable, using queued strategy")
			return NewQueuedStrategy(q)
		}
		log.Println("Dispatch: redis unreachable, falling back to immediate strategy")
	} else {
		log.Println("Dispatch: redis not configured, using immediate strategy")
	}
	return NewImmediateStrategy(processor, maxInlineJobs)
}
