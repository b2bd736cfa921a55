package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/qs3c/repo_audit_server/internal/model"
)

// JobRepository 任务存储。状态机约束全部落在带条件的 UPDATE 上：
// 终态记录的任何后续更新都会命中 0 行，直接被忽略。
type JobRepository struct {
	db *gorm.DB
}

func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

func (r *JobRepository) Create(job *model.AnalysisJob) error {
	return r.db.Create(job).Error
}

func (r *JobRepository) GetByID(id int64) (*model.AnalysisJob, error) {
	var job model.AnalysisJob
	err := r.db.Where("id = ?", id).First(&job).Error
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// MarkProcessing pending → processing，记录开始时间并把进度抬到 10
func (r *JobRepository) MarkProcessing(id int64) error {
	now := time.Now()
	return r.db.Model(&model.AnalysisJob{}).
		Where("id = ? AND status = ?", id, model.JobStatusPending).
		Updates(map[string]interface{}{
			"status":     model.JobStatusProcessing,
			"progress":   10,
			"started_at": &now,
		}).Error
}

// UpdateProgress 进度只增不减，终态任务不受影响
func (r *JobRepository) UpdateProgress(id int64, progress int) error {
	return r.db.Model(&model.AnalysisJob{}).
		Where("id = ? AND status IN ? AND progress < ?",
			id, []string{model.JobStatusPending, model.JobStatusProcessing}, progress).
		Update("progress", progress).Error
}

// Complete 终态迁移：附加结果和完成时间，结果只会写入一次
func (r *JobRepository) Complete(id int64, result *model.JobResult, reportURL string) error {
	now := time.Now()
	return r.db.Model(&model.AnalysisJob{}).
		Where("id = ? AND status IN ?",
			id, []string{model.JobStatusPending, model.JobStatusProcessing}).
		Updates(map[string]interface{}{
			"status":       model.JobStatusCompleted,
			"progress":     100,
			"result":       result,
			"report_url":   reportURL,
			"completed_at": &now,
		}).Error
}

// Fail 终态迁移：记录错误信息
func (r *JobRepository) Fail(id int64, errMsg string) error {
	now := time.Now()
	return r.db.Model(&model.AnalysisJob{}).
		Where("id = ? AND status IN ?",
			id, []string{model.JobStatusPending, model.JobStatusProcessing}).
		Updates(map[string]interface{}{
			"status":        model.JobStatusFailed,
			"error_message": errMsg,
			"completed_at":  &now,
		}).Error
}

// ListCompletedByUser 某用户最近完成的任务，按完成时间倒序
func (r *JobRepository) ListCompletedByUser(userID int64, limit int) ([]*model.AnalysisJob, error) {
	var jobs []*model.AnalysisJob
	err := r.db.Where("user_id = ? AND status = ?", userID, model.JobStatusCompleted).
		Order("completed_at DESC").
		Limit(limit).
		Find(&jobs).Error
	return jobs, err
}

// ListStale 获取卡在非终态超过 cutoff 的任务（清理用）
func (r *JobRepository) ListStale(cutoff time.Time) ([]*model.AnalysisJob, error) {
	var jobs []*model.AnalysisJob
	err := r.db.Where("status IN ? AND created_at < ?",
		[]string{model.JobStatusPending, model.JobStatusProcessing}, cutoff).
		Find(&jobs).Error
	return jobs, err
}
