package detector

import "strings"

// 扩展名到语言的映射
var extToLanguage = map[string]string{
	".go":    "Go",
	".js":    "JavaScript",
	".jsx":   "JavaScript",
	".mjs":   "JavaScript",
	".cjs":   "JavaScript",
	".ts":    "TypeScript",
	".tsx":   "TypeScript",
	".py":    "Python",
	".java":  "Java",
	".rb":    "Ruby",
	".php":   "PHP",
	".cs":    "C#",
	".c":     "C",
	".h":     "C",
	".cc":    "C++",
	".cpp":   "C++",
	".hpp":   "C++",
	".rs":    "Rust",
	".kt":    "Kotlin",
	".swift": "Swift",
	".scala": "Scala",
	".vue":   "Vue",
	".html":  "HTML",
	".css":   "CSS",
	".scss":  "SCSS",
	".sql":   "SQL",
	".sh":    "Shell",
	".yml":   "YAML",
	".yaml":  "YAML",
	".json":  "JSON",
	".toml":  "TOML",
	".md":    "Markdown",
}

// 参与安全/规范扫描的源码扩展名
var analyzableExts = map[string]bool{
	".go": true, ".js": true, ".jsx": true, ".mjs": true, ".cjs": true,
	".ts": true, ".tsx": true, ".py": true, ".java": true, ".rb": true,
	".php": true, ".cs": true, ".c": true, ".cc": true, ".cpp": true,
	".rs": true, ".kt": true, ".swift": true, ".scala": true, ".vue": true,
	".sql": true, ".sh": true,
}

// LanguageOf 根据扩展名推断语言，未知返回 "Other"
func LanguageOf(path string) string {
	if lang, ok := extToLanguage[strings.ToLower(fileExt(path))]; ok {
		return lang
	}
	return "Other"
}

// IsSourceFile 是否为可扫描的源码文件
func IsSourceFile(path string) bool {
	return analyzableExts[strings.ToLower(fileExt(path))]
}

// CountLanguages 统计各语言的行数，覆盖传入的全部文件
func CountLanguages(files []SourceFile) map[string]int {
	languages := make(map[string]int)
	for _, f := range files {
		lang := f.Language
		if lang == "" {
			lang = LanguageOf(f.Path)
		}
		languages[lang] += countLines(f.Content)
	}
	return languages
}

// TotalLines 统计所有文件的总行数
func TotalLines(files []SourceFile) int {
	total := 0
	for _, f := range files {
		total += countLines(f.Content)
	}
	return total
}

func countLines(content string) int {
	if content == "" {
		return 0
	}
	return strings.Count(content, "\n") + 1
}
