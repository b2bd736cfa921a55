package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	batchSize     = 5
	contextWindow = 5 // finding 前后各取的行数
	minConfidence = 0.6
)

// Candidate 待校验的 finding，安全/规范两类共用这一中间表示
type Candidate struct {
	File           string
	Line           int
	Severity       string
	Message        string
	Recommendation string
	Snippet        string
}

// Verdict 校验服务的响应
type Verdict struct {
	IsValidIssue   bool    `json:"is_valid_issue"`
	Confidence     float64 `json:"confidence"`
	Message        string  `json:"improved_message,omitempty"`
	Recommendation string  `json:"improved_recommendation,omitempty"`
	Severity       string  `json:"improved_severity,omitempty"`
}

// Validator 置信度过滤器。只会保留或改写输入 finding，绝不新增。
type Validator struct {
	client  *Client
	breaker *quotaBreaker
	cap     int // 每次调用最多送检的 finding 数，超出部分直通
}

func NewValidator(client *Client, filterCap int) *Validator {
	if filterCap <= 0 {
		filterCap = 50
	}
	return &Validator{
		client:  client,
		breaker: newQuotaBreaker(time.Hour),
		cap:     filterCap,
	}
}

// Enabled 服务是否可用（已配置且未熔断）
func (v *Validator) Enabled() bool {
	return v != nil && v.client.Configured()
}

// Filter 按文件分组、每 5 条一批并发校验。
// contents 为 path → 文件内容，用于构造 ±5 行的上下文窗口。
// 服务未配置或熔断打开时原样返回。
func (v *Validator) Filter(ctx context.Context, candidates []Candidate, contents map[string]string) []Candidate {
	if len(candidates) == 0 || !v.Enabled() {
		return candidates
	}
	if !v.breaker.Allow() {
		return candidates
	}

	// 只送检前 cap 条，剩余直通
	toValidate := candidates
	var passThrough []Candidate
	if len(candidates) > v.cap {
		toValidate = candidates[:v.cap]
		passThrough = candidates[v.cap:]
	}

	kept := make([]Candidate, 0, len(candidates))

	// 按文件分组（保持首次出现顺序）
	byFile := make(map[string][]Candidate)
	var fileOrder []string
	for _, c := range toValidate {
		if _, ok := byFile[c.File]; !ok {
			fileOrder = append(fileOrder, c.File)
		}
		byFile[c.File] = append(byFile[c.File], c)
	}

	for _, file := range fileOrder {
		group := byFile[file]
		content := contents[file]

		for start := 0; start < len(group); start += batchSize {
			end := start + batchSize
			if end > len(group) {
				end = len(group)
			}
			batch := group[start:end]

			// 熔断打开后剩余 finding 全部直通
			if !v.breaker.Allow() {
				kept = append(kept, group[start:]...)
				break
			}

			kept = append(kept, v.validateBatch(ctx, batch, content)...)
		}
	}

	return append(kept, passThrough...)
}

// validateBatch 批内并发校验。拿不到有效裁决的 finding 原样保留，
// 错误不允许吞掉 finding。
func (v *Validator) validateBatch(ctx context.Context, batch []Candidate, content string) []Candidate {
	results := make([]*Candidate, len(batch))

	g, gctx := errgroup.WithContext(ctx)
	for i := range batch {
		i := i
		g.Go(func() error {
			verdict, ok := v.validateOne(gctx, batch[i], content)
			if !ok {
				// 服务出错或熔断，保留未修改的 finding
				keep := batch[i]
				results[i] = &keep
				return nil
			}
			if verdict.IsValidIssue && verdict.Confidence > minConfidence {
				updated := batch[i]
				if verdict.Message != "" {
					updated.Message = verdict.Message
				}
				if verdict.Recommendation != "" {
					updated.Recommendation = verdict.Recommendation
				}
				if verdict.Severity != "" {
					updated.Severity = verdict.Severity
				}
				results[i] = &updated
			}
			return nil
		})
	}
	g.Wait() // goroutine 均不返回错误

	kept := make([]Candidate, 0, len(batch))
	for _, r := range results {
		if r != nil {
			kept = append(kept, *r)
		}
	}
	return kept
}

// validateOne 校验单条 finding。返回 ok=false 表示没有拿到有效裁决
// （熔断、请求失败或响应不可解析），调用方应原样保留该 finding。
func (v *Validator) validateOne(ctx context.Context, c Candidate, content string) (Verdict, bool) {
	if !v.breaker.Allow() {
		return Verdict{IsValidIssue: true, Confidence: 1.0}, false
	}

	raw, err := v.client.Complete(ctx, validationSystemPrompt, buildPrompt(c, content))
	if err != nil {
		if errors.Is(err, ErrQuotaExceeded) {
			v.breaker.OnQuotaError()
			return Verdict{IsValidIssue: true, Confidence: 1.0}, false
		}
		log.Printf("LLM validation failed for %s:%d: %v", c.File, c.Line, err)
		return Verdict{IsValidIssue: true, Confidence: 0.5}, false
	}
	v.breaker.OnSuccess()

	verdict, err := parseVerdict(raw)
	if err != nil {
		log.Printf("LLM returned unparseable verdict for %s:%d: %v", c.File, c.Line, err)
		return Verdict{IsValidIssue: true, Confidence: 0.5}, false
	}
	return verdict, true
}

const validationSystemPrompt = `You are a senior code reviewer validating automated scan findings.
Respond ONLY with a JSON object: {"is_valid_issue": bool, "confidence": number between 0 and 1,
"improved_message": string (optional), "improved_recommendation": string (optional),
"improved_severity": "low"|"medium"|"high" (optional)}.`

// buildPrompt 构造单条 finding 的校验提示，带 ±5 行上下文
func buildPrompt(c Candidate, content string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "File: %s\nLine: %d\n", c.File, c.Line)
	if c.Severity != "" {
		fmt.Fprintf(&sb, "Severity: %s\n", c.Severity)
	}
	fmt.Fprintf(&sb, "Finding: %s\n", c.Message)
	if c.Snippet != "" {
		fmt.Fprintf(&sb, "Code: %s\n", c.Snippet)
	}
	if window := contextAround(content, c.Line); window != "" {
		fmt.Fprintf(&sb, "Context:\n%s\n", window)
	}
	sb.WriteString("Is this a real issue?")
	return sb.String()
}

// contextAround 取目标行前后各 contextWindow 行
func contextAround(content string, line int) string {
	if content == "" || line <= 0 {
		return ""
	}
	lines := strings.Split(content, "\n")
	start := line - 1 - contextWindow
	if start < 0 {
		start = 0
	}
	end := line + contextWindow
	if end > len(lines) {
		end = len(lines)
	}
	if start >= end {
		return ""
	}
	return strings.Join(lines[start:end], "\n")
}

// parseVerdict 解析响应 JSON，容忍 markdown 代码块包裹
func parseVerdict(raw string) (Verdict, error) {
	trimmed := strings.TrimSpace(raw)
	if idx := strings.Index(trimmed, "{"); idx >= 0 {
		if last := strings.LastIndex(trimmed, "}"); last > idx {
			trimmed = trimmed[idx : last+1]
		}
	}

	var verdict Verdict
	if err := json.Unmarshal([]byte(trimmed), &verdict); err != nil {
		return Verdict{}, err
	}
	return verdict, nil
}
