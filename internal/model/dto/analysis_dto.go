package dto

import "github.com/qs3c/repo_audit_server/internal/model"

// StartAnalysisRequest 发起分析请求
type StartAnalysisRequest struct {
	Owner string `json:"owner" binding:"required,max=100"`
	Repo  string `json:"repo" binding:"required,max=200"`
}

// StartAnalysisResponse 发起分析响应
type StartAnalysisResponse struct {
	JobID int64 `json:"job_id"`
}

// BatchStartRequest 批量发起分析请求，最多 10 个仓库
type BatchStartRequest struct {
	Repositories []StartAnalysisRequest `json:"repositories" binding:"required,min=1,dive"`
}

// BatchStartResponse 批量发起分析响应
type BatchStartResponse struct {
	JobIDs []int64 `json:"job_ids"`
}

// JobStatusResponse 任务状态响应，完成后带完整结果
type JobStatusResponse struct {
	JobID        int64            `json:"job_id"`
	RepoOwner    string           `json:"repo_owner"`
	RepoName     string           `json:"repo_name"`
	RepoFullName string           `json:"repo_full_name"`
	Status       string           `json:"status"`
	Progress     int              `json:"progress"`
	Result       *model.JobResult `json:"result,omitempty"`
	ErrorMessage string           `json:"error_message,omitempty"`
	ReportURL    string           `json:"report_url,omitempty"`
	CreatedAt    string           `json:"created_at"`
	StartedAt    string           `json:"started_at,omitempty"`
	CompletedAt  string           `json:"completed_at,omitempty"`
}

// HistoryItem 历史记录列表项
type HistoryItem struct {
	JobID        int64  `json:"job_id"`
	RepoFullName string `json:"repo_full_name"`
	Status       string `json:"status"`
	IssueCount   int    `json:"issue_count"`
	QualityScore int    `json:"quality_score"`
	CompletedAt  string `json:"completed_at"`
}
