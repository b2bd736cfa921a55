package llm

import (
	"log"
	"sync"
	"time"
)

type breakerState int

const (
	stateClosed breakerState = iota
	stateOpen
	stateHalfOpen
)

// quotaBreaker 配额熔断器。遇到限流错误后打开，冷却期内所有校验
// 调用直通；冷却期满进入半开，用一次真实请求探测。
type quotaBreaker struct {
	mu       sync.Mutex
	state    breakerState
	openedAt time.Time
	cooldown time.Duration
	now      func() time.Time // 测试注入
}

func newQuotaBreaker(cooldown time.Duration) *quotaBreaker {
	if cooldown <= 0 {
		cooldown = time.Hour
	}
	return &quotaBreaker{
		cooldown: cooldown,
		now:      time.Now,
	}
}

// Allow 当前是否允许发起外呼
func (b *quotaBreaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case stateClosed, stateHalfOpen:
		return true
	case stateOpen:
		if b.now().Sub(b.openedAt) >= b.cooldown {
			b.state = stateHalfOpen
			log.Printf("LLM quota breaker: cooldown elapsed, probing")
			return true
		}
		return false
	}
	return true
}

// OnQuotaError 记录一次限流错误。只在状态翻转时打日志，避免刷屏。
func (b *quotaBreaker) OnQuotaError() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != stateOpen {
		log.Printf("LLM quota exceeded, validation disabled for %s", b.cooldown)
	}
	b.state = stateOpen
	b.openedAt = b.now()
}

// OnSuccess 半开探测成功则闭合
func (b *quotaBreaker) OnSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == stateHalfOpen {
		b.state = stateClosed
		log.Printf("LLM quota breaker: probe succeeded, resuming validation")
	}
}
