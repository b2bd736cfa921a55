package detector

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectBestPractices_LongLine(t *testing.T) {
	long := "x = " + strings.Repeat("a", 160)
	file := SourceFile{Path: "src/gen.py", Content: long}

	report := Detect(file)

	require.Len(t, report.BestPractices, 1)
	assert.Contains(t, report.BestPractices[0].Message, "150")
	assert.True(t, len(report.BestPractices[0].Snippet) <= snippetMaxLen+3)
}

func TestDetectBestPractices_LongCommentLineIgnored(t *testing.T) {
	long := "// " + strings.Repeat("a", 160)
	file := SourceFile{Path: "src/gen.go", Content: long}

	report := Detect(file)
	assert.Empty(t, report.BestPractices)
}

func TestDetectBestPractices_TodoMarker(t *testing.T) {
	file := SourceFile{
		Path:    "src/handler.go",
		Content: "// TODO: handle pagination here",
	}

	report := Detect(file)

	require.Len(t, report.BestPractices, 1)
	assert.Equal(t, "TODO marker left in code", report.BestPractices[0].Message)
}

func TestDetectBestPractices_TodoWithoutText_Ignored(t *testing.T) {
	file := SourceFile{
		Path:    "src/handler.go",
		Content: "// TODO:",
	}

	report := Detect(file)
	assert.Empty(t, report.BestPractices)
}

func TestDetectBestPractices_TodoInTestFile_Ignored(t *testing.T) {
	file := SourceFile{
		Path:    "src/handler_test.go",
		Content: "// FIXME: flaky on CI",
	}

	report := Detect(file)
	assert.Empty(t, report.BestPractices)
}

func TestDetectBestPractices_DebugPrint(t *testing.T) {
	tests := []struct {
		name string
		path string
		line string
	}{
		{"console.log", "src/app.js", `console.log("debug", payload);`},
		{"fmt.Println", "cmd/run.go", `fmt.Println("here", v)`},
		{"python print", "src/job.py", `print(result)`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := Detect(SourceFile{Path: tt.path, Content: tt.line})
			require.NotEmpty(t, report.BestPractices)
			assert.Contains(t, report.BestPractices[0].Message, "Debug print")
		})
	}
}

func TestDetectBestPractices_EmptyCatch(t *testing.T) {
	t.Run("inline", func(t *testing.T) {
		file := SourceFile{
			Path:    "src/app.js",
			Content: "try { run(); } catch (e) {}",
		}
		report := Detect(file)
		require.NotEmpty(t, report.BestPractices)
		assert.Contains(t, report.BestPractices[0].Message, "Empty exception handler")
	})

	t.Run("brace on next line", func(t *testing.T) {
		file := SourceFile{
			Path: "src/app.js",
			Content: `try {
  run();
} catch (e) {
}`,
		}
		report := Detect(file)
		found := false
		for _, f := range report.BestPractices {
			if strings.Contains(f.Message, "Empty exception handler") {
				found = true
			}
		}
		assert.True(t, found)
	})

	t.Run("python except pass", func(t *testing.T) {
		file := SourceFile{
			Path: "src/job.py",
			Content: `try:
    run()
except Exception:
    pass`,
		}
		report := Detect(file)
		found := false
		for _, f := range report.BestPractices {
			if strings.Contains(f.Message, "Empty exception handler") {
				found = true
			}
		}
		assert.True(t, found)
	})

	t.Run("non-empty catch ignored", func(t *testing.T) {
		file := SourceFile{
			Path: "src/app.js",
			Content: `try {
  run();
} catch (e) {
  logger.error(e);
}`,
		}
		report := Detect(file)
		for _, f := range report.BestPractices {
			assert.NotContains(t, f.Message, "Empty exception handler")
		}
	})
}

func TestDetectBestPractices_DeprecatedLifecycle(t *testing.T) {
	content := "componentWillMount() {"

	inComponent := Detect(SourceFile{Path: "src/components/Widget.jsx", Content: content})
	require.NotEmpty(t, inComponent.BestPractices)
	assert.Contains(t, inComponent.BestPractices[0].Message, "lifecycle")

	// 非 UI 组件文件不计
	elsewhere := Detect(SourceFile{Path: "src/util/compat.go", Content: content})
	assert.Empty(t, elsewhere.BestPractices)
}

func TestDetectBestPractices_VarAndLooseEquality(t *testing.T) {
	file := SourceFile{
		Path: "src/app.js",
		Content: `var count = 0;
if (count == null) { reset(); }`,
	}

	report := Detect(file)

	var messages []string
	for _, f := range report.BestPractices {
		messages = append(messages, f.Message)
	}
	assert.Contains(t, messages, "Use of var declaration")
	assert.Contains(t, messages, "Loose equality operator (== or !=)")
}

func TestDetectBestPractices_StrictEqualityIgnored(t *testing.T) {
	file := SourceFile{
		Path:    "src/app.js",
		Content: "if (count === expected && other !== base) { go(); }",
	}

	report := Detect(file)
	for _, f := range report.BestPractices {
		assert.NotContains(t, f.Message, "Loose equality")
	}
}

func TestDetectBestPractices_JSRulesSkippedForGo(t *testing.T) {
	file := SourceFile{
		Path:    "src/main.go",
		Content: `ok := a == b`,
	}

	report := Detect(file)
	assert.Empty(t, report.BestPractices)
}
