package detector

import (
	"regexp"
	"strings"

	"github.com/qs3c/repo_audit_server/internal/model"
)

// 安全规则正则。Go 的 RE2 不支持 lookaround，
// 注释/环境变量/ORM 等上下文排除用独立判断实现。
var (
	// 硬编码凭据：password/secret/key/token 等被赋予 ≥8 字符的字面量
	credentialRe = regexp.MustCompile(`(?i)\b(password|passwd|pwd|secret|api[_-]?key|apikey|access[_-]?key|token|private[_-]?key)\b\s*[:=]+\s*["'][^"']{8,}["']`)
	// 环境变量取值，命中则不算硬编码
	envAccessorRe = regexp.MustCompile(`(?i)(process\.env|os\.getenv|os\.environ|getenv\s*\(|\benv\s*\[|ENV\[|System\.getenv|\$\{[A-Z_]+\}|config\.get)`)
	// 占位样例值，不计入
	placeholderRe = regexp.MustCompile(`(?i)(example|sample|placeholder|changeme|your[_-]?(key|token|password)|xxx+)`)

	// SQL 注入风险：查询执行调用里出现字符串拼接/插值
	queryConcatRe = regexp.MustCompile(`(?i)\b(query|execute|exec|raw)\w*\s*\([^)]*(\+\s*|\$\{|%s|%d|\.format\()`)
	// ORM 风格调用，视为已参数化
	ormCallRe = regexp.MustCompile(`(?i)\b(findOne|findMany|findAll|findBy\w+|createQueryBuilder|prepare|preparedStatement)\s*\(|\.where\s*\(`)

	// 动态代码执行
	evalRe = regexp.MustCompile(`(?i)\beval\s*\(|new\s+Function\s*\(`)

	// 非加密随机数
	insecureRandomRe = regexp.MustCompile(`(?i)(Math\.random\s*\(|math/rand|\brandom\.random\b|\brand\(\)|\brandint\()`)

	// 过时哈希算法
	weakHashRe = regexp.MustCompile(`(?i)\b(md5|sha1)\b`)
)

var (
	securityPathKeywords = []string{"token", "session", "password", "crypto", "auth"}
	hashingPathKeywords  = []string{"hash", "crypto", "sign", "digest", "security"}
)

func detectSecurity(file SourceFile, lines []string) []model.SecurityFinding {
	var findings []model.SecurityFinding

	inSecurityPath := pathContainsAny(file.Path, securityPathKeywords)
	inHashingPath := pathContainsAny(file.Path, hashingPathKeywords)
	isTest := isTestFile(file.Path)

	for i, line := range lines {
		lineNo := i + 1

		if isCommentLine(line) {
			continue
		}

		// 硬编码凭据（测试/样例值不计）
		if !isTest && credentialRe.MatchString(line) &&
			!envAccessorRe.MatchString(line) && !placeholderRe.MatchString(line) {
			match := credentialRe.FindStringSubmatch(line)
			findings = append(findings, model.SecurityFinding{
				File:           file.Path,
				Line:           lineNo,
				Severity:       model.SeverityHigh,
				Message:        "Hardcoded " + normalizeCredentialKind(match[1]) + " detected",
				Recommendation: "Move the value to an environment variable or a secret manager",
				Snippet:        truncateSnippet(line),
			})
		}

		// 注入风险
		if queryConcatRe.MatchString(line) && !ormCallRe.MatchString(line) {
			findings = append(findings, model.SecurityFinding{
				File:           file.Path,
				Line:           lineNo,
				Severity:       model.SeverityHigh,
				Message:        "Possible injection: string concatenation inside a query call",
				Recommendation: "Use parameterized queries or prepared statements",
				Snippet:        truncateSnippet(line),
			})
		}

		// 动态代码执行
		if evalRe.MatchString(line) {
			findings = append(findings, model.SecurityFinding{
				File:           file.Path,
				Line:           lineNo,
				Severity:       model.SeverityHigh,
				Message:        "Dynamic code evaluation (eval-like construct)",
				Recommendation: "Avoid eval; use explicit parsing or dispatch instead",
				Snippet:        truncateSnippet(line),
			})
		}

		// 安全上下文中使用非加密随机数
		if inSecurityPath && insecureRandomRe.MatchString(line) {
			findings = append(findings, model.SecurityFinding{
				File:           file.Path,
				Line:           lineNo,
				Severity:       model.SeverityMedium,
				Message:        "Non-cryptographic random number used in a security context",
				Recommendation: "Use a CSPRNG (crypto/rand, crypto.getRandomValues, secrets)",
				Snippet:        truncateSnippet(line),
			})
		}

		// 哈希上下文中使用过时算法
		if inHashingPath && weakHashRe.MatchString(line) {
			findings = append(findings, model.SecurityFinding{
				File:           file.Path,
				Line:           lineNo,
				Severity:       model.SeverityMedium,
				Message:        "Deprecated hash algorithm (MD5/SHA1)",
				Recommendation: "Use SHA-256 or stronger for hashing",
				Snippet:        truncateSnippet(line),
			})
		}
	}

	return findings
}

// normalizeCredentialKind 保留命中的关键词本身（小写），如 password / api_key / token
func normalizeCredentialKind(matched string) string {
	if matched == "" {
		return "credential"
	}
	return strings.ToLower(matched)
}
