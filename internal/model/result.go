package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

// 安全问题严重级别
const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// SecurityFinding 单条安全问题
type SecurityFinding struct {
	File           string `json:"file"`
	Line           int    `json:"line"`
	Severity       string `json:"severity"`
	Message        string `json:"message"`
	Recommendation string `json:"recommendation,omitempty"`
	Snippet        string `json:"snippet,omitempty"`
}

// BestPracticeFinding 单条规范问题
type BestPracticeFinding struct {
	File           string `json:"file"`
	Line           int    `json:"line"`
	Message        string `json:"message"`
	Recommendation string `json:"recommendation,omitempty"`
	Snippet        string `json:"snippet,omitempty"`
}

// TechStack 从清单文件识别出的技术栈
type TechStack struct {
	Frameworks []string `json:"frameworks"`
	Libraries  []string `json:"libraries"`
	BuildTools []string `json:"build_tools"`
	Databases  []string `json:"databases"`
	Other      []string `json:"other"`
}

// Summary 仓库概览，语言行数统计覆盖全部抓取到的文件
type Summary struct {
	TotalFiles int            `json:"total_files"`
	TotalLines int            `json:"total_lines"`
	Languages  map[string]int `json:"languages"`
	TechStack  TechStack      `json:"tech_stack"`
}

// Complexity 圈复杂度近似值统计
type Complexity struct {
	Average float64 `json:"average"`
	Max     int     `json:"max"`
}

// CodeQuality 质量评分，IssueCount 恒等于两类 finding 总数
type CodeQuality struct {
	Score      int `json:"score"`
	IssueCount int `json:"issue_count"`
}

type Metrics struct {
	Complexity  Complexity  `json:"complexity"`
	CodeQuality CodeQuality `json:"code_quality"`
}

type Findings struct {
	Security      []SecurityFinding     `json:"security"`
	BestPractices []BestPracticeFinding `json:"best_practices"`
}

// JobResult 分析结果，任务完成后一次性写入，之后不再变更
type JobResult struct {
	Summary  Summary  `json:"summary"`
	Metrics  Metrics  `json:"metrics"`
	Findings Findings `json:"findings"`
}

func (r JobResult) Value() (driver.Value, error) {
	return json.Marshal(r)
}

func (r *JobResult) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("unsupported type for JobResult")
	}
	return json.Unmarshal(bytes, r)
}
