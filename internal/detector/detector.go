// Package detector 对仓库文件做基于行的正则/启发式扫描，产出安全问题、
// 规范问题和复杂度指标。全部为纯函数，不做 I/O，可跨文件并发调用。
package detector

import (
	"strings"

	"github.com/qs3c/repo_audit_server/internal/model"
)

// SourceFile 一个待扫描的文件
type SourceFile struct {
	Path     string
	Content  string
	Language string
}

// FileReport 单文件扫描结果
type FileReport struct {
	Security      []model.SecurityFinding
	BestPractices []model.BestPracticeFinding
	Complexity    int
}

const snippetMaxLen = 120

// Detect 扫描单个文件。相同输入必然产生相同输出。
func Detect(file SourceFile) FileReport {
	lines := strings.Split(file.Content, "\n")

	return FileReport{
		Security:      detectSecurity(file, lines),
		BestPractices: detectBestPractices(file, lines),
		Complexity:    complexityOf(file.Content),
	}
}

// isCommentLine 判断整行是否为注释
func isCommentLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return false
	}
	for _, prefix := range []string{"//", "#", "/*", "*", "<!--", "--", ";;"} {
		if strings.HasPrefix(trimmed, prefix) {
			return true
		}
	}
	return false
}

// isTestFile 判断路径是否属于测试文件
func isTestFile(path string) bool {
	lower := strings.ToLower(path)
	for _, marker := range []string{"_test.", ".test.", ".spec.", "/test/", "/tests/", "/__tests__/", "/spec/"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return strings.HasPrefix(lower, "test/") || strings.HasPrefix(lower, "tests/")
}

// truncateSnippet 截断代码片段，避免报告体积失控
func truncateSnippet(line string) string {
	trimmed := strings.TrimSpace(line)
	if len(trimmed) > snippetMaxLen {
		return trimmed[:snippetMaxLen] + "..."
	}
	return trimmed
}

func pathContainsAny(path string, keywords []string) bool {
	lower := strings.ToLower(path)
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
