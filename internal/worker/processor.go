package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/qs3c/repo_audit_server/config"
	"github.com/qs3c/repo_audit_server/internal/detector"
	"github.com/qs3c/repo_audit_server/internal/github"
	"github.com/qs3c/repo_audit_server/internal/llm"
	"github.com/qs3c/repo_audit_server/internal/model"
	"github.com/qs3c/repo_audit_server/internal/pkg/oss"
	"github.com/qs3c/repo_audit_server/internal/pkg/pubsub"
	"github.com/qs3c/repo_audit_server/internal/pkg/queue"
	"github.com/qs3c/repo_audit_server/internal/pkg/webhook"
	"github.com/qs3c/repo_audit_server/internal/repository"
)

// Processor 分析管线。队列 worker 和立即执行策略跑的是同一份实现。
type Processor struct {
	jobRepo   *repository.JobRepository
	fetcher   *github.Fetcher
	validator *llm.Validator
	ossClient *oss.Client
	publisher *pubsub.Publisher
	notifier  *webhook.Notifier
	cfg       *config.Config
}

func NewProcessor(
	jobRepo *repository.JobRepository,
	fetcher *github.Fetcher,
	validator *llm.Validator,
	ossClient *oss.Client,
	publisher *pubsub.Publisher,
	notifier *webhook.Notifier,
	cfg *config.Config,
) *Processor {
	return &Processor{
		jobRepo:   jobRepo,
		fetcher:   fetcher,
		validator: validator,
		ossClient: ossClient,
		publisher: publisher,
		notifier:  notifier,
		cfg:       cfg,
	}
}

// Process 处理一个分析任务：拉取内容 → 模式检测 → AI 校验 → 汇总报告。
// 拉取和检测阶段的错误使任务转入 failed；校验阶段的错误只降级不失败。
func (p *Processor) Process(ctx context.Context, msg *queue.JobMessage) (err error) {
	job, err := p.jobRepo.GetByID(msg.JobID)
	if err != nil {
		return fmt.Errorf("failed to get job %d: %w", msg.JobID, err)
	}
	if model.IsTerminal(job.Status) {
		log.Printf("Job %d: already %s, skipping", job.ID, job.Status)
		return nil
	}

	// 检测阶段任何 panic 都要落成任务失败，而不是砸掉 worker
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during analysis: %v", r)
			p.failJob(ctx, job, err.Error())
		}
	}()

	publishProgress := func(step, status, errMsg string) {
		if p.publisher == nil {
			return
		}
		p.publisher.PublishProgress(ctx, &pubsub.ProgressMessage{
			UserID: msg.UserID,
			JobID:  msg.JobID,
			Status: status,
			Step:   step,
			Error:  errMsg,
		})
	}

	// Step 1: 开始执行
	if err := p.jobRepo.MarkProcessing(job.ID); err != nil {
		return fmt.Errorf("failed to mark job %d processing: %w", job.ID, err)
	}
	log.Printf("Job %d: fetching %s", job.ID, job.RepoFullName)
	publishProgress(pubsub.StepFetching, model.JobStatusProcessing, "")

	// Step 2: 拉取仓库内容（认证/可达性失败使整个任务失败）
	files, err := p.fetcher.FetchRepository(ctx, msg.RepoOwner, msg.RepoName)
	if err != nil {
		p.failJob(ctx, job, err.Error())
		publishProgress(pubsub.StepFetching, model.JobStatusFailed, err.Error())
		return err
	}
	if len(files) == 0 {
		err := fmt.Errorf("仓库中没有可分析的文件")
		p.failJob(ctx, job, err.Error())
		publishProgress(pubsub.StepFetching, model.JobStatusFailed, err.Error())
		return err
	}

	p.jobRepo.UpdateProgress(job.ID, 30)
	log.Printf("Job %d: detecting over %d files", job.ID, len(files))
	publishProgress(pubsub.StepDetecting, model.JobStatusProcessing, "")

	// Step 3: 并行检测源码文件（文件之间相互独立）
	reports, err := p.detectAll(ctx, files)
	if err != nil {
		p.failJob(ctx, job, err.Error())
		publishProgress(pubsub.StepDetecting, model.JobStatusFailed, err.Error())
		return err
	}

	security, bestPractices := collectFindings(reports)

	p.jobRepo.UpdateProgress(job.ID, 90)
	log.Printf("Job %d: validating %d security / %d best-practice findings",
		job.ID, len(security), len(bestPractices))
	publishProgress(pubsub.StepValidating, model.JobStatusProcessing, "")

	// Step 4: AI 校验（不可用时直通，绝不使任务失败）
	contents := contentIndex(files)
	security = filterSecurity(ctx, p.validator, security, contents)
	bestPractices = filterBestPractices(ctx, p.validator, bestPractices, contents)

	p.jobRepo.UpdateProgress(job.ID, 95)
	publishProgress(pubsub.StepReporting, model.JobStatusProcessing, "")

	// Step 5: 汇总结果
	result := buildResult(files, reports, security, bestPractices)

	// Step 6: 报告归档（OSS 或本地，失败不影响任务完成）
	reportURL := p.archiveReport(job.ID, result)

	if err := p.jobRepo.Complete(job.ID, result, reportURL); err != nil {
		return fmt.Errorf("failed to complete job %d: %w", job.ID, err)
	}
	publishProgress(pubsub.StepDone, model.JobStatusCompleted, "")

	if p.notifier.Enabled() {
		p.notifier.Notify(ctx, webhook.TerminalEvent(
			job.ID, job.RepoFullName, model.JobStatusCompleted, result.Summary, ""))
	}

	log.Printf("Job %d: completed, %d files, %d issues, score %d",
		job.ID, result.Summary.TotalFiles,
		result.Metrics.CodeQuality.IssueCount, result.Metrics.CodeQuality.Score)

	return nil
}

// failJob 任务转入失败终态并发出通知
func (p *Processor) failJob(ctx context.Context, job *model.AnalysisJob, errMsg string) {
	if err := p.jobRepo.Fail(job.ID, errMsg); err != nil {
		log.Printf("Job %d: failed to record failure: %v", job.ID, err)
	}
	if p.notifier.Enabled() {
		p.notifier.Notify(ctx, webhook.TerminalEvent(
			job.ID, job.RepoFullName, model.JobStatusFailed, nil, errMsg))
	}
	log.Printf("Job %d: failed: %s", job.ID, errMsg)
}

// detectAll 并行扫描所有可分析的源码文件，结果按文件序排列
func (p *Processor) detectAll(ctx context.Context, files []detector.SourceFile) ([]detector.FileReport, error) {
	analyzable := make([]detector.SourceFile, 0, len(files))
	for _, f := range files {
		if detector.IsSourceFile(f.Path) {
			analyzable = append(analyzable, f)
		}
	}

	reports := make([]detector.FileReport, len(analyzable))

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Analysis.DetectWorkers)
	for i := range analyzable {
		i := i
		g.Go(func() error {
			reports[i] = detector.Detect(analyzable[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return reports, nil
}

// collectFindings 合并各文件的检测结果
func collectFindings(reports []detector.FileReport) ([]model.SecurityFinding, []model.BestPracticeFinding) {
	var security []model.SecurityFinding
	var bestPractices []model.BestPracticeFinding
	for _, r := range reports {
		security = append(security, r.Security...)
		bestPractices = append(bestPractices, r.BestPractices...)
	}
	return security, bestPractices
}

func contentIndex(files []detector.SourceFile) map[string]string {
	contents := make(map[string]string, len(files))
	for _, f := range files {
		contents[f.Path] = f.Content
	}
	return contents
}

// buildResult 汇总最终报告。语言/行数统计覆盖全部抓取文件，
// 复杂度只统计参与检测的源码文件。
func buildResult(
	files []detector.SourceFile,
	reports []detector.FileReport,
	security []model.SecurityFinding,
	bestPractices []model.BestPracticeFinding,
) *model.JobResult {
	maxComplexity := 0
	totalComplexity := 0
	for _, r := range reports {
		totalComplexity += r.Complexity
		if r.Complexity > maxComplexity {
			maxComplexity = r.Complexity
		}
	}
	avgComplexity := 0.0
	if len(reports) > 0 {
		avgComplexity = float64(totalComplexity) / float64(len(reports))
	}

	if security == nil {
		security = []model.SecurityFinding{}
	}
	if bestPractices == nil {
		bestPractices = []model.BestPracticeFinding{}
	}

	return &model.JobResult{
		Summary: model.Summary{
			TotalFiles: len(files),
			TotalLines: detector.TotalLines(files),
			Languages:  detector.CountLanguages(files),
			TechStack:  detector.DetectTechStack(files),
		},
		Metrics: model.Metrics{
			Complexity: model.Complexity{
				Average: avgComplexity,
				Max:     maxComplexity,
			},
			CodeQuality: model.CodeQuality{
				Score:      qualityScore(security, bestPractices),
				IssueCount: len(security) + len(bestPractices),
			},
		},
		Findings: model.Findings{
			Security:      security,
			BestPractices: bestPractices,
		},
	}
}

// qualityScore 质量评分：100 分起扣，按严重级别加权，下限 0
func qualityScore(security []model.SecurityFinding, bestPractices []model.BestPracticeFinding) int {
	score := 100
	for _, f := range security {
		switch f.Severity {
		case model.SeverityHigh:
			score -= 8
		case model.SeverityMedium:
			score -= 4
		default:
			score -= 2
		}
	}
	score -= len(bestPractices)
	if score < 0 {
		score = 0
	}
	return score
}

// archiveReport 报告写入 OSS，未配置时落本地目录
func (p *Processor) archiveReport(jobID int64, result *model.JobResult) string {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		log.Printf("Job %d: failed to marshal report: %v", jobID, err)
		return ""
	}

	if p.ossClient != nil {
		url, err := p.ossClient.UploadReport(jobID, data)
		if err != nil {
			log.Printf("Job %d: failed to upload report: %v", jobID, err)
			return ""
		}
		return url
	}

	localDir := p.cfg.Analysis.ReportLocalDir
	if err := os.MkdirAll(localDir, 0755); err != nil {
		log.Printf("Job %d: failed to create report dir: %v", jobID, err)
		return ""
	}
	localPath := filepath.Join(localDir, fmt.Sprintf("%d.json", jobID))
	if err := os.WriteFile(localPath, data, 0644); err != nil {
		log.Printf("Job %d: failed to save report locally: %v", jobID, err)
		return ""
	}
	// 本地存储用特殊前缀标记
	return fmt.Sprintf("local://%d", jobID)
}

// filterSecurity 安全类 finding 过 AI 校验
func filterSecurity(ctx context.Context, v *llm.Validator, findings []model.SecurityFinding, contents map[string]string) []model.SecurityFinding {
	if v == nil || !v.Enabled() || len(findings) == 0 {
		return findings
	}

	candidates := make([]llm.Candidate, len(findings))
	for i, f := range findings {
		candidates[i] = llm.Candidate{
			File:           f.File,
			Line:           f.Line,
			Severity:       f.Severity,
			Message:        f.Message,
			Recommendation: f.Recommendation,
			Snippet:        f.Snippet,
		}
	}

	kept := v.Filter(ctx, candidates, contents)

	result := make([]model.SecurityFinding, len(kept))
	for i, c := range kept {
		result[i] = model.SecurityFinding{
			File:           c.File,
			Line:           c.Line,
			Severity:       c.Severity,
			Message:        c.Message,
			Recommendation: c.Recommendation,
			Snippet:        c.Snippet,
		}
	}
	return result
}

// filterBestPractices 规范类 finding 过 AI 校验
func filterBestPractices(ctx context.Context, v *llm.Validator, findings []model.BestPracticeFinding, contents map[string]string) []model.BestPracticeFinding {
	if v == nil || !v.Enabled() || len(findings) == 0 {
		return findings
	}

	candidates := make([]llm.Candidate, len(findings))
	for i, f := range findings {
		candidates[i] = llm.Candidate{
			File:           f.File,
			Line:           f.Line,
			Message:        f.Message,
			Recommendation: f.Recommendation,
			Snippet:        f.Snippet,
		}
	}

	kept := v.Filter(ctx, candidates, contents)

	result := make([]model.BestPracticeFinding, len(kept))
	for i, c := range kept {
		result[i] = model.BestPracticeFinding{
			File:           c.File,
			Line:           c.Line,
			Message:        c.Message,
			Recommendation: c.Recommendation,
			Snippet:        c.Snippet,
		}
	}
	return result
}
