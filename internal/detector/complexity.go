package detector

import "regexp"

// 控制流结构的正则，对全文件计数。
// 这是圈复杂度的近似值，不是精确计算。
var complexityPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\bif\b`),
	regexp.MustCompile(`\bfor\b`),
	regexp.MustCompile(`\bwhile\b`),
	regexp.MustCompile(`\bcase\b`),
	regexp.MustCompile(`\bcatch\b`),
	regexp.MustCompile(`\bexcept\b`),
	regexp.MustCompile(`\bawait\b`),
	regexp.MustCompile(`\btry\b`),
}

// complexityOf 基数 1，每命中一次控制流结构 +1
func complexityOf(content string) int {
	complexity := 1
	for _, re := range complexityPatterns {
		complexity += len(re.FindAllStringIndex(content, -1))
	}
	return complexity
}
