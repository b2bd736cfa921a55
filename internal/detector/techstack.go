package detector

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/qs3c/repo_audit_server/internal/model"
)

// 技术栈类别
const (
	categoryFramework = "framework"
	categoryLibrary   = "library"
	categoryBuildTool = "build_tool"
	categoryDatabase  = "database"
	categoryOther     = "other"
)

type stackEntry struct {
	category string
	label    string
}

// 依赖名/内容关键词 → 技术栈标签 的固定查表。
// 先命中者生效，同一标签只记一次。
var stackLookup = []struct {
	key string
	stackEntry
}{
	// 框架
	{"react", stackEntry{categoryFramework, "React"}},
	{"vue", stackEntry{categoryFramework, "Vue"}},
	{"@angular/core", stackEntry{categoryFramework, "Angular"}},
	{"next", stackEntry{categoryFramework, "Next.js"}},
	{"nuxt", stackEntry{categoryFramework, "Nuxt"}},
	{"svelte", stackEntry{categoryFramework, "Svelte"}},
	{"express", stackEntry{categoryFramework, "Express"}},
	{"koa", stackEntry{categoryFramework, "Koa"}},
	{"fastify", stackEntry{categoryFramework, "Fastify"}},
	{"nestjs", stackEntry{categoryFramework, "NestJS"}},
	{"django", stackEntry{categoryFramework, "Django"}},
	{"flask", stackEntry{categoryFramework, "Flask"}},
	{"fastapi", stackEntry{categoryFramework, "FastAPI"}},
	{"spring-boot", stackEntry{categoryFramework, "Spring Boot"}},
	{"rails", stackEntry{categoryFramework, "Ruby on Rails"}},
	{"laravel", stackEntry{categoryFramework, "Laravel"}},
	{"gin-gonic/gin", stackEntry{categoryFramework, "Gin"}},
	{"labstack/echo", stackEntry{categoryFramework, "Echo"}},
	// 库
	{"axios", stackEntry{categoryLibrary, "Axios"}},
	{"lodash", stackEntry{categoryLibrary, "Lodash"}},
	{"jquery", stackEntry{categoryLibrary, "jQuery"}},
	{"redux", stackEntry{categoryLibrary, "Redux"}},
	{"rxjs", stackEntry{categoryLibrary, "RxJS"}},
	{"moment", stackEntry{categoryLibrary, "Moment.js"}},
	{"graphql", stackEntry{categoryLibrary, "GraphQL"}},
	{"gorm.io/gorm", stackEntry{categoryLibrary, "GORM"}},
	{"numpy", stackEntry{categoryLibrary, "NumPy"}},
	{"pandas", stackEntry{categoryLibrary, "pandas"}},
	// 构建工具
	{"webpack", stackEntry{categoryBuildTool, "Webpack"}},
	{"vite", stackEntry{categoryBuildTool, "Vite"}},
	{"rollup", stackEntry{categoryBuildTool, "Rollup"}},
	{"esbuild", stackEntry{categoryBuildTool, "esbuild"}},
	{"@babel/core", stackEntry{categoryBuildTool, "Babel"}},
	{"gulp", stackEntry{categoryBuildTool, "Gulp"}},
	{"grunt", stackEntry{categoryBuildTool, "Grunt"}},
	// 数据库
	{"mysql", stackEntry{categoryDatabase, "MySQL"}},
	{"mysql2", stackEntry{categoryDatabase, "MySQL"}},
	{"pg", stackEntry{categoryDatabase, "PostgreSQL"}},
	{"postgres", stackEntry{categoryDatabase, "PostgreSQL"}},
	{"mongodb", stackEntry{categoryDatabase, "MongoDB"}},
	{"mongoose", stackEntry{categoryDatabase, "MongoDB"}},
	{"redis", stackEntry{categoryDatabase, "Redis"}},
	{"sqlite", stackEntry{categoryDatabase, "SQLite"}},
	{"sqlite3", stackEntry{categoryDatabase, "SQLite"}},
	{"elasticsearch", stackEntry{categoryDatabase, "Elasticsearch"}},
	// 其他
	{"typescript", stackEntry{categoryOther, "TypeScript"}},
	{"eslint", stackEntry{categoryOther, "ESLint"}},
	{"prettier", stackEntry{categoryOther, "Prettier"}},
	{"jest", stackEntry{categoryOther, "Jest"}},
	{"mocha", stackEntry{categoryOther, "Mocha"}},
	{"pytest", stackEntry{categoryOther, "pytest"}},
}

// 识别的清单/配置文件名
var manifestNames = map[string]bool{
	"package.json":        true,
	"package-lock.json":   true,
	"yarn.lock":           true,
	"pnpm-lock.yaml":      true,
	"go.mod":              true,
	"go.sum":              true,
	"requirements.txt":    true,
	"pipfile":             true,
	"pyproject.toml":      true,
	"pom.xml":             true,
	"build.gradle":        true,
	"build.gradle.kts":    true,
	"gemfile":             true,
	"composer.json":       true,
	"cargo.toml":          true,
	"dockerfile":          true,
	"docker-compose.yml":  true,
	"docker-compose.yaml": true,
	"makefile":            true,
	"cmakelists.txt":      true,
	"tsconfig.json":       true,
	"webpack.config.js":   true,
	"vite.config.js":      true,
	"vite.config.ts":      true,
	"next.config.js":      true,
	"nuxt.config.js":      true,
	"angular.json":        true,
	"vue.config.js":       true,
	"tailwind.config.js":  true,
}

// 文件名本身即可判定的技术栈
var manifestNameStack = map[string]stackEntry{
	"dockerfile":          {categoryBuildTool, "Docker"},
	"docker-compose.yml":  {categoryBuildTool, "Docker Compose"},
	"docker-compose.yaml": {categoryBuildTool, "Docker Compose"},
	"makefile":            {categoryBuildTool, "Make"},
	"cmakelists.txt":      {categoryBuildTool, "CMake"},
	"pom.xml":             {categoryBuildTool, "Maven"},
	"build.gradle":        {categoryBuildTool, "Gradle"},
	"build.gradle.kts":    {categoryBuildTool, "Gradle"},
	"cargo.toml":          {categoryBuildTool, "Cargo"},
}

// IsManifestFile 是否为识别的清单/配置文件
func IsManifestFile(path string) bool {
	return manifestNames[strings.ToLower(baseName(path))]
}

// DetectTechStack 扫描清单文件识别技术栈。
// package.json 解析依赖键做精确匹配，其余清单做内容关键词匹配。
func DetectTechStack(files []SourceFile) model.TechStack {
	seen := make(map[string]bool)
	stack := model.TechStack{
		Frameworks: []string{},
		Libraries:  []string{},
		BuildTools: []string{},
		Databases:  []string{},
		Other:      []string{},
	}

	add := func(entry stackEntry) {
		if seen[entry.label] {
			return
		}
		seen[entry.label] = true
		switch entry.category {
		case categoryFramework:
			stack.Frameworks = append(stack.Frameworks, entry.label)
		case categoryLibrary:
			stack.Libraries = append(stack.Libraries, entry.label)
		case categoryBuildTool:
			stack.BuildTools = append(stack.BuildTools, entry.label)
		case categoryDatabase:
			stack.Databases = append(stack.Databases, entry.label)
		default:
			stack.Other = append(stack.Other, entry.label)
		}
	}

	for _, f := range files {
		name := strings.ToLower(baseName(f.Path))
		if !manifestNames[name] {
			continue
		}

		if entry, ok := manifestNameStack[name]; ok {
			add(entry)
		}

		if name == "package.json" {
			for _, dep := range packageJSONDeps(f.Content) {
				for _, lookup := range stackLookup {
					if dep == lookup.key {
						add(lookup.stackEntry)
					}
				}
			}
			continue
		}

		lower := strings.ToLower(f.Content)
		for _, lookup := range stackLookup {
			if strings.Contains(lower, lookup.key) {
				add(lookup.stackEntry)
			}
		}
	}

	return stack
}

// packageJSONDeps 提取 package.json 的依赖键（dependencies + devDependencies）
func packageJSONDeps(content string) []string {
	var manifest struct {
		Dependencies    map[string]string `json:"dependencies"`
		DevDependencies map[string]string `json:"devDependencies"`
	}
	if err := json.Unmarshal([]byte(content), &manifest); err != nil {
		return nil
	}

	deps := make([]string, 0, len(manifest.Dependencies)+len(manifest.DevDependencies))
	for dep := range manifest.Dependencies {
		deps = append(deps, dep)
	}
	for dep := range manifest.DevDependencies {
		deps = append(deps, dep)
	}
	sort.Strings(deps) // map 遍历无序，排序保证结果可复现
	return deps
}

func baseName(path string) string {
	idx := strings.LastIndex(path, "/")
	if idx < 0 {
		return path
	}
	return path[idx+1:]
}
