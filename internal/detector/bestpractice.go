package detector

import (
	"regexp"
	"strings"

	"github.com/qs3c/repo_audit_server/internal/model"
)

const maxLineLength = 150

var (
	// TODO/FIXME 等标记，要求后面有实际说明
	todoMarkerRe = regexp.MustCompile(`(?i)\b(TODO|FIXME|HACK|XXX|BUG)\b[:\s]+(\S.*)`)

	// 调试输出调用
	debugPrintRe = regexp.MustCompile(`(?i)(console\.(log|debug|trace)\s*\(|fmt\.Print(ln|f)?\s*\(|System\.out\.print|var_dump\s*\(|\bprint\s*\(.+\)\s*(#.*)?$)`)

	// 同一行内的空 catch 块
	emptyCatchInlineRe = regexp.MustCompile(`(?i)\b(catch|except)\b[^{]*\{\s*\}`)
	// catch 开头（块体可能在后续行）
	catchOpenRe = regexp.MustCompile(`(?i)\b(catch\s*(\([^)]*\))?|except[^:]*:?)\s*\{?\s*$`)
	// Python 空 except（except: 后紧跟 pass）
	pythonExceptRe = regexp.MustCompile(`(?i)^\s*except[^:]*:\s*(#.*)?$`)

	// React 已废弃的生命周期方法
	deprecatedLifecycleRe = regexp.MustCompile(`\b(componentWillMount|componentWillReceiveProps|componentWillUpdate)\s*\(`)

	// JS/TS 的 var 声明
	varDeclRe = regexp.MustCompile(`^\s*var\s+[A-Za-z_$]`)

	// 宽松相等（== / !=，排除 === / !== / <= / >=）
	looseEqualityRe = regexp.MustCompile(`[^=!<>](==|!=)[^=]`)
)

var jsFamilyExts = map[string]bool{
	".js": true, ".jsx": true, ".ts": true, ".tsx": true, ".vue": true, ".mjs": true, ".cjs": true,
}

func detectBestPractices(file SourceFile, lines []string) []model.BestPracticeFinding {
	var findings []model.BestPracticeFinding

	isTest := isTestFile(file.Path)
	ext := strings.ToLower(fileExt(file.Path))
	isJS := jsFamilyExts[ext]
	isUIComponent := isUIComponentFile(file.Path, ext)
	isPython := ext == ".py"

	for i, line := range lines {
		lineNo := i + 1
		comment := isCommentLine(line)

		// 超长行（注释行除外）
		if len(line) > maxLineLength && !comment {
			findings = append(findings, model.BestPracticeFinding{
				File:    file.Path,
				Line:    lineNo,
				Message: "Line exceeds 150 characters",
				Snippet: truncateSnippet(line),
			})
		}

		// TODO/FIXME/HACK/XXX/BUG 标记（测试文件不计）
		if !isTest {
			if m := todoMarkerRe.FindStringSubmatch(line); m != nil && strings.TrimSpace(m[2]) != "" {
				findings = append(findings, model.BestPracticeFinding{
					File:           file.Path,
					Line:           lineNo,
					Message:        strings.ToUpper(m[1]) + " marker left in code",
					Recommendation: "Track the work item in the issue tracker and remove the marker",
					Snippet:        truncateSnippet(line),
				})
			}
		}

		if comment {
			continue
		}

		// 调试输出（测试文件不计）
		if !isTest && debugPrintRe.MatchString(line) {
			findings = append(findings, model.BestPracticeFinding{
				File:           file.Path,
				Line:           lineNo,
				Message:        "Debug print statement left in code",
				Recommendation: "Use a logger or remove before release",
				Snippet:        truncateSnippet(line),
			})
		}

		// 空异常处理块
		if emptyCatch(lines, i, isPython) {
			findings = append(findings, model.BestPracticeFinding{
				File:           file.Path,
				Line:           lineNo,
				Message:        "Empty exception handler swallows errors",
				Recommendation: "Handle the error or at least log it",
				Snippet:        truncateSnippet(line),
			})
		}

		// UI 组件文件中的废弃生命周期方法
		if isUIComponent && deprecatedLifecycleRe.MatchString(line) {
			findings = append(findings, model.BestPracticeFinding{
				File:           file.Path,
				Line:           lineNo,
				Message:        "Deprecated component lifecycle method",
				Recommendation: "Migrate to the replacement lifecycle APIs",
				Snippet:        truncateSnippet(line),
			})
		}

		if isJS {
			// var 声明
			if varDeclRe.MatchString(line) {
				findings = append(findings, model.BestPracticeFinding{
					File:           file.Path,
					Line:           lineNo,
					Message:        "Use of var declaration",
					Recommendation: "Prefer let or const",
					Snippet:        truncateSnippet(line),
				})
			}

			// 宽松相等
			if looseEqualityRe.MatchString(line) {
				findings = append(findings, model.BestPracticeFinding{
					File:           file.Path,
					Line:           lineNo,
					Message:        "Loose equality operator (== or !=)",
					Recommendation: "Use strict equality (=== / !==)",
					Snippet:        truncateSnippet(line),
				})
			}
		}
	}

	return findings
}

// emptyCatch 判断第 i 行是否开启了一个空的异常处理块，
// 包括块体为空且右括号在下一非空行的情况。
func emptyCatch(lines []string, i int, isPython bool) bool {
	line := lines[i]

	if emptyCatchInlineRe.MatchString(line) {
		return true
	}

	if isPython {
		if !pythonExceptRe.MatchString(line) {
			return false
		}
		next := nextNonBlank(lines, i+1)
		return next != "" && strings.TrimSpace(next) == "pass"
	}

	// catch (...) { 且下一非空行直接闭合
	trimmed := strings.TrimSpace(line)
	if !strings.Contains(trimmed, "catch") || !strings.HasSuffix(trimmed, "{") {
		return false
	}
	if !catchOpenRe.MatchString(trimmed) {
		return false
	}
	next := nextNonBlank(lines, i+1)
	return strings.HasPrefix(strings.TrimSpace(next), "}")
}

func nextNonBlank(lines []string, from int) string {
	for j := from; j < len(lines); j++ {
		if strings.TrimSpace(lines[j]) != "" {
			return lines[j]
		}
	}
	return ""
}

// isUIComponentFile UI 组件文件：jsx/tsx/vue，或位于 components 目录下的 js/ts
func isUIComponentFile(path, ext string) bool {
	if ext == ".jsx" || ext == ".tsx" || ext == ".vue" {
		return true
	}
	if jsFamilyExts[ext] {
		lower := strings.ToLower(path)
		return strings.Contains(lower, "/components/") || strings.Contains(lower, "/views/")
	}
	return false
}

func fileExt(path string) string {
	idx := strings.LastIndex(path, ".")
	if idx < 0 {
		return ""
	}
	slash := strings.LastIndex(path, "/")
	if idx < slash {
		return ""
	}
	return path[idx:]
}
