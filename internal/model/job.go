package model

import (
	"time"
)

// 任务状态，只允许 pending → processing → completed/failed 的单向流转
const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

// IsTerminal 判断状态是否为终态
func IsTerminal(status string) bool {
	return status == JobStatusCompleted || status == JobStatusFailed
}

type AnalysisJob struct {
	ID           int64      `gorm:"primaryKey" json:"id"`
	UserID       int64      `gorm:"not null;index" json:"user_id"`
	RepoOwner    string     `gorm:"size:100;not null" json:"repo_owner"`
	RepoName     string     `gorm:"size:200;not null" json:"repo_name"`
	RepoFullName string     `gorm:"size:300;not null" json:"repo_full_name"`
	Status       string     `gorm:"size:20;default:pending;index" json:"status"`
	Progress     int        `gorm:"default:0" json:"progress"`
	Result       *JobResult `gorm:"type:json" json:"result,omitempty"`
	ErrorMessage string     `gorm:"type:text" json:"error_message,omitempty"`
	ReportURL    string     `gorm:"size:500" json:"report_url,omitempty"`
	CreatedAt    time.Time  `gorm:"index" json:"created_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `gorm:"index" json:"completed_at,omitempty"`
}

func (AnalysisJob) TableName() string {
	return "analysis_jobs"
}
