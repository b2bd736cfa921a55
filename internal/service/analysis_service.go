package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/qs3c/repo_audit_server/config"
	"github.com/qs3c/repo_audit_server/internal/dispatch"
	"github.com/qs3c/repo_audit_server/internal/model"
	"github.com/qs3c/repo_audit_server/internal/model/dto"
	"github.com/qs3c/repo_audit_server/internal/pkg/queue"
	"github.com/qs3c/repo_audit_server/internal/repository"
)

var (
	ErrJobNotFound   = errors.New("任务不存在")
	ErrJobPermission = errors.New("无权查看此任务")
	ErrBatchTooLarge = errors.New("单次批量最多提交 10 个仓库")
	ErrInvalidRepo   = errors.New("仓库 owner 和 repo 不能为空")
)

type AnalysisService struct {
	jobRepo  *repository.JobRepository
	strategy dispatch.Strategy
	cfg      *config.Config
}

func NewAnalysisService(jobRepo *repository.JobRepository, strategy dispatch.Strategy, cfg *config.Config) *AnalysisService {
	return &AnalysisService{
		jobRepo:  jobRepo,
		strategy: strategy,
		cfg:      cfg,
	}
}

// StartAnalysis 创建任务并派发，立即返回任务 ID，不等待执行
func (s *AnalysisService) StartAnalysis(ctx context.Context, userID int64, owner, repo string) (*dto.StartAnalysisResponse, error) {
	if owner == "" || repo == "" {
		return nil, ErrInvalidRepo
	}

	job := &model.AnalysisJob{
		UserID:       userID,
		RepoOwner:    owner,
		RepoName:     repo,
		RepoFullName: fmt.Sprintf("%s/%s", owner, repo),
		Status:       model.JobStatusPending,
	}

	if err := s.jobRepo.Create(job); err != nil {
		return nil, err
	}

	msg := &queue.JobMessage{
		JobID:     job.ID,
		UserID:    userID,
		RepoOwner: owner,
		RepoName:  repo,
	}

	// 派发失败不是静默丢弃：任务直接落成 failed，状态查询可见
	if err := s.strategy.Submit(ctx, msg); err != nil {
		log.Printf("Job %d: submit via %s strategy failed: %v", job.ID, s.strategy.Name(), err)
		s.jobRepo.Fail(job.ID, fmt.Sprintf("任务派发失败: %v", err))
	}

	return &dto.StartAnalysisResponse{JobID: job.ID}, nil
}

// BatchStart 批量发起分析，重复调用单次逻辑，一个仓库一个任务
func (s *AnalysisService) BatchStart(ctx context.Context, userID int64, req *dto.BatchStartRequest) (*dto.BatchStartResponse, error) {
	if len(req.Repositories) > s.cfg.Analysis.MaxBatchRepos {
		return nil, ErrBatchTooLarge
	}

	jobIDs := make([]int64, 0, len(req.Repositories))
	for _, r := range req.Repositories {
		resp, err := s.StartAnalysis(ctx, userID, r.Owner, r.Repo)
		if err != nil {
			return nil, err
		}
		jobIDs = append(jobIDs, resp.JobID)
	}

	return &dto.BatchStartResponse{JobIDs: jobIDs}, nil
}

// GetJobStatus 查询任务状态，完成后带完整结果
func (s *AnalysisService) GetJobStatus(userID, jobID int64) (*dto.JobStatusResponse, error) {
	job, err := s.jobRepo.GetByID(jobID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}

	if job.UserID != userID {
		return nil, ErrJobPermission
	}

	resp := &dto.JobStatusResponse{
		JobID:        job.ID,
		RepoOwner:    job.RepoOwner,
		RepoName:     job.RepoName,
		RepoFullName: job.RepoFullName,
		Status:       job.Status,
		Progress:     job.Progress,
		Result:       job.Result,
		ErrorMessage: job.ErrorMessage,
		ReportURL:    job.ReportURL,
		CreatedAt:    job.CreatedAt.Format(time.RFC3339),
	}

	if job.StartedAt != nil {
		resp.StartedAt = job.StartedAt.Format(time.RFC3339)
	}
	if job.CompletedAt != nil {
		resp.CompletedAt = job.CompletedAt.Format(time.RFC3339)
	}

	return resp, nil
}

// History 最近完成的任务，最多 50 条，按完成时间倒序
func (s *AnalysisService) History(userID int64) ([]*dto.HistoryItem, error) {
	jobs, err := s.jobRepo.ListCompletedByUser(userID, s.cfg.Analysis.HistoryLimit)
	if err != nil {
		return nil, err
	}

	items := make([]*dto.HistoryItem, len(jobs))
	for i, job := range jobs {
		items[i] = &dto.HistoryItem{
			JobID:        job.ID,
			RepoFullName: job.RepoFullName,
			Status:       job.Status,
		}
		if job.Result != nil {
			items[i].IssueCount = job.Result.Metrics.CodeQuality.IssueCount
			items[i].QualityScore = job.Result.Metrics.CodeQuality.Score
		}
		if job.CompletedAt != nil {
			items[i].CompletedAt = job.CompletedAt.Format(time.RFC3339)
		}
	}

	return items, nil
}
