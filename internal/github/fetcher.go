package github

import (
	"context"
	"log"

	"github.com/qs3c/repo_audit_server/internal/detector"
)

// Fetcher 按选取策略抓取仓库内容：
// 全部识别的清单文件（不设上限）+ 最多 maxSourceFiles 个源码文件，清单优先。
type Fetcher struct {
	client         *Client
	maxSourceFiles int
}

func NewFetcher(client *Client, maxSourceFiles int) *Fetcher {
	if maxSourceFiles <= 0 {
		maxSourceFiles = 50
	}
	return &Fetcher{
		client:         client,
		maxSourceFiles: maxSourceFiles,
	}
}

// FetchRepository 抓取仓库文件。单个文件抓取失败只记日志并跳过，
// 分支解析/列树失败（含 401/404）则整体失败。
func (f *Fetcher) FetchRepository(ctx context.Context, owner, repo string) ([]detector.SourceFile, error) {
	branch, err := f.client.DefaultBranch(ctx, owner, repo)
	if err != nil {
		return nil, err
	}

	tree, err := f.client.ListTree(ctx, owner, repo, branch)
	if err != nil {
		return nil, err
	}

	selected := selectPaths(tree, f.maxSourceFiles)

	files := make([]detector.SourceFile, 0, len(selected))
	for _, path := range selected {
		content, err := f.client.FileContent(ctx, owner, repo, path, branch)
		if err != nil {
			log.Printf("Fetch: skipping %s/%s %s: %v", owner, repo, path, err)
			continue
		}
		files = append(files, detector.SourceFile{
			Path:     path,
			Content:  content,
			Language: detector.LanguageOf(path),
		})
	}

	return files, nil
}

// selectPaths 清单文件全收，源码文件按树序取前 limit 个
func selectPaths(tree []TreeEntry, limit int) []string {
	var manifests, sources []string
	for _, entry := range tree {
		switch {
		case detector.IsManifestFile(entry.Path):
			manifests = append(manifests, entry.Path)
		case detector.IsSourceFile(entry.Path):
			if len(sources) < limit {
				sources = append(sources, entry.Path)
			}
		}
	}
	return append(manifests, sources...)
}
