package testutil

import (
	"fmt"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/qs3c/repo_audit_server/internal/model"
)

// TestUser 创建测试用户
func TestUser(t *testing.T, db *gorm.DB, opts ...func(*model.User)) *model.User {
	t.Helper()

	email := fmt.Sprintf("test_%d@example.com", time.Now().UnixNano())
	passwordHash := "$2a$10$abcdefghijklmnopqrstuvwxyz123456" // bcrypt hash placeholder
	user := &model.User{
		Username:     fmt.Sprintf("testuser_%d", time.Now().UnixNano()%100000),
		Email:        &email,
		PasswordHash: &passwordHash,
	}

	for _, opt := range opts {
		opt(user)
	}

	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}

	return user
}

// WithUsername 设置用户名
func WithUsername(username string) func(*model.User) {
	return func(u *model.User) {
		u.Username = username
	}
}

// WithEmail 设置邮箱
func WithEmail(email string) func(*model.User) {
	return func(u *model.User) {
		u.Email = &email
	}
}

// TestJob 创建测试分析任务
func TestJob(t *testing.T, db *gorm.DB, userID int64, opts ...func(*model.AnalysisJob)) *model.AnalysisJob {
	t.Helper()

	job := &model.AnalysisJob{
		UserID:    userID,
		RepoOwner: "octocat",
		RepoName:  fmt.Sprintf("repo-%d", time.Now().UnixNano()%100000),
		Status:    model.JobStatusPending,
	}
	job.RepoFullName = fmt.Sprintf("%s/%s", job.RepoOwner, job.RepoName)

	for _, opt := range opts {
		opt(job)
	}

	if err := db.Create(job).Error; err != nil {
		t.Fatalf("Failed to create test job: %v", err)
	}

	return job
}

// WithRepo 设置仓库
func WithRepo(owner, name string) func(*model.AnalysisJob) {
	return func(j *model.AnalysisJob) {
		j.RepoOwner = owner
		j.RepoName = name
		j.RepoFullName = fmt.Sprintf("%s/%s", owner, name)
	}
}

// WithJobStatus 设置任务状态
func WithJobStatus(status string) func(*model.AnalysisJob) {
	return func(j *model.AnalysisJob) {
		j.Status = status
	}
}

// WithProgress 设置进度
func WithProgress(progress int) func(*model.AnalysisJob) {
	return func(j *model.AnalysisJob) {
		j.Progress = progress
	}
}

// WithResult 设置分析结果
func WithResult(result *model.JobResult) func(*model.AnalysisJob) {
	return func(j *model.AnalysisJob) {
		j.Result = result
	}
}

// WithCompletedAt 设置完成时间
func WithCompletedAt(at time.Time) func(*model.AnalysisJob) {
	return func(j *model.AnalysisJob) {
		j.CompletedAt = &at
	}
}

// WithCreatedAt 设置创建时间
func WithCreatedAt(at time.Time) func(*model.AnalysisJob) {
	return func(j *model.AnalysisJob) {
		j.CreatedAt = at
	}
}
